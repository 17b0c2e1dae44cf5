package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/machdxc/internal/link"
	"github.com/Norgate-AV/machdxc/internal/resolver"
)

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Show the platform, URL and cache key for a target without downloading",
		Long: `Show the platform, URL and cache key for a target without downloading.

Only the text and json formats apply; the link directive formats need a
fetched archive.`,
		RunE:  runResolve,
		Args:  cobra.NoArgs,
	}
}

// planJSON is the json output of resolve
type planJSON struct {
	Target   string `json:"target"`
	Platform string `json:"platform"`
	Variant  string `json:"variant"`
	Release  string `json:"release"`
	URL      string `json:"url"`
	Key      string `json:"key"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	d, err := cfg.Descriptor()
	if err != nil {
		return err
	}

	plan, err := resolver.NewPlan(d, cfg.Reference())
	if err != nil {
		return err
	}

	format, err := link.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}

	if format != link.FormatText && format != link.FormatJSON {
		return fmt.Errorf("resolve supports only the %s and %s formats, not %s", link.FormatText, link.FormatJSON, format)
	}

	out := planJSON{
		Target:   d.String(),
		Platform: plan.Platform.String(),
		Variant:  plan.Platform.Variant.String(),
		Release:  plan.Release,
		URL:      plan.URL,
		Key:      plan.Key,
	}

	if format == link.FormatJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Target:   %s\n", out.Target)
	fmt.Fprintf(w, "Platform: %s\n", out.Platform)
	fmt.Fprintf(w, "Variant:  %s\n", out.Variant)
	fmt.Fprintf(w, "Release:  %s\n", out.Release)
	fmt.Fprintf(w, "URL:      %s\n", out.URL)
	fmt.Fprintf(w, "Key:      %s\n", out.Key)

	return nil
}
