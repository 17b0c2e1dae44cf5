package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/machdxc/internal/cache"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the archive cache",
		Long: `Manage the cache of downloaded mach-dxcompiler archives.

Examples:
  # List cached archives
  machdxc cache list

  # Show entry count and disk usage
  machdxc cache stats

  # Remove one entry, or everything
  machdxc cache clean <key>
  machdxc cache clean`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List cached archives",
			RunE:  runCacheList,
			Args:  cobra.NoArgs,
		},
		&cobra.Command{
			Use:   "stats",
			Short: "Show cache statistics",
			RunE:  runCacheStats,
			Args:  cobra.NoArgs,
		},
		&cobra.Command{
			Use:   "clean [key]",
			Short: "Remove one cached archive, or all of them",
			RunE:  runCacheClean,
			Args:  cobra.MaximumNArgs(1),
		},
	)

	return cmd
}

func openCache(cmd *cobra.Command) (*cache.Cache, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	return cache.Open(cfg.CacheDir, cfg.LockTimeout)
}

func runCacheList(cmd *cobra.Command, args []string) error {
	c, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	entries, err := c.List()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(w, "No cached archives")
		return nil
	}

	for _, e := range entries {
		fmt.Fprintf(w, "%s  %-22s %-12s %-24s %8s  %s\n",
			color.YellowString(shortKey(e.Key)),
			e.Platform,
			e.Variant,
			e.Release,
			formatBytes(e.ArchiveSize),
			e.Timestamp.Format(time.RFC3339))
	}

	return nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	c, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	count, size, err := c.Stats()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Cache:   %s\n", c.Root())
	fmt.Fprintf(w, "Entries: %d\n", count)
	fmt.Fprintf(w, "Size:    %s\n", formatBytes(size))

	return nil
}

func runCacheClean(cmd *cobra.Command, args []string) error {
	c, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	if len(args) == 1 {
		key, err := matchKey(c, args[0])
		if err != nil {
			return err
		}

		if err := c.Remove(key); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", key)
		return nil
	}

	if err := c.Clear(); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("Cache cleared"))
	return nil
}

// matchKey expands an unambiguous key prefix, as printed by cache list or
// resolve. Archives without an index entry match too.
func matchKey(c *cache.Cache, prefix string) (string, error) {
	keys, err := c.Keys()
	if err != nil {
		return "", err
	}

	var matches []string
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			matches = append(matches, k)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no cache entry matches %q", prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("cache key prefix %q is ambiguous (%d matches)", prefix, len(matches))
	}
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}

	return key
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
