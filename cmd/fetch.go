package cmd

import (
	"fmt"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/machdxc/internal/cache"
	"github.com/Norgate-AV/machdxc/internal/command"
	"github.com/Norgate-AV/machdxc/internal/config"
	"github.com/Norgate-AV/machdxc/internal/extract"
	"github.com/Norgate-AV/machdxc/internal/fetch"
	"github.com/Norgate-AV/machdxc/internal/link"
	"github.com/Norgate-AV/machdxc/internal/resolver"
)

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the library for a target and emit link directives",
		Long: `Resolve the target, download and extract the matching mach-dxcompiler
archive into the cache (skipped when already cached), and write the link
directives in the selected format.`,
		RunE:         runFetch,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
	}
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	d, err := cfg.Descriptor()
	if err != nil {
		return err
	}

	// Fail on unsupported targets before the cache is touched.
	if _, err := resolver.NewPlan(d, cfg.Reference()); err != nil {
		return err
	}

	c, err := cache.Open(cfg.CacheDir, cfg.LockTimeout)
	if err != nil {
		return err
	}
	defer c.Close()

	runner := command.NewRunner(logger)
	r := resolver.New(c, newTransport(cfg, runner, logger), newExtractor(cfg, runner), logger)

	res, err := r.Resolve(cmd.Context(), d, cfg.Reference())
	if err != nil {
		return err
	}

	format, err := link.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}

	if cfg.Output != "" {
		if err := link.WriteFile(cfg.Output, format, res.Directive, cfg.Package); err != nil {
			return err
		}
	} else if err := link.Emit(cmd.OutOrStdout(), format, res.Directive, cfg.Package); err != nil {
		return err
	}

	state := color.GreenString("fetched")
	if res.Cached {
		state = color.CyanString("cached")
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s (%s) -> %s\n", state, res.Platform, res.Platform.Variant, res.Directive.SearchDir)

	return nil
}

func newTransport(cfg *config.Config, runner *command.Runner, logger *slog.Logger) fetch.Transport {
	if cfg.Transport == config.TransportCurl {
		return fetch.NewCurlTransport(runner, cfg.CurlPath)
	}

	return fetch.NewHTTPTransport(cfg.HTTPTimeout, logger)
}

func newExtractor(cfg *config.Config, runner *command.Runner) extract.Extractor {
	if cfg.Extractor == config.ExtractorTar {
		return extract.NewTarExtractor(runner, cfg.TarPath)
	}

	return extract.NewArchiveExtractor()
}
