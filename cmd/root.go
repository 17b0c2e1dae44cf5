package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Norgate-AV/machdxc/internal/config"
	"github.com/Norgate-AV/machdxc/internal/release"
	"github.com/Norgate-AV/machdxc/internal/version"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "machdxc",
		Short: "Fetch and link the prebuilt DirectX shader compiler",
		Long: `Download the prebuilt mach-dxcompiler static library for a build target,
cache it, and print the directives needed to link it.

Examples:
  # Link for the machine you are building on
  machdxc --host --format env

  # Generate a cgo directive file for a Windows MSVC build with a static CRT
  machdxc fetch --target x86_64-pc-windows-msvc --static-crt --format cgo --out dxc/zlink.go`,
		RunE:          runFetch,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		Version:       fmt.Sprintf("%s (%s) %s", version.Version, version.Commit, version.BuildTime),
	}

	addTargetFlags(rootCmd)
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("cache-dir", "", "Cache directory (default: user cache dir)")
	rootCmd.PersistentFlags().Duration("lock-timeout", config.DefaultLockTimeout, "How long to wait for another machdxc holding the cache")

	rootCmd.AddCommand(
		newFetchCmd(),
		newResolveCmd(),
		newCacheCmd(),
	)

	return rootCmd
}

// addTargetFlags registers the target, release and output flags
func addTargetFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringP("target", "t", "", "Target triple (e.g., x86_64-unknown-linux-gnu, aarch64-apple-darwin)")
	flags.String("arch", "", "Target architecture")
	flags.String("os", "", "Target operating system")
	flags.String("vendor", "", "Target vendor")
	flags.String("abi", "", "Target ABI / environment (gnu, musl, msvc)")
	flags.Bool("static-crt", false, "Link the C runtime statically (MSVC targets)")
	flags.String("cflags", "", "Compiler flags to inspect for a static CRT request")
	flags.String("target-features", "", "Comma-separated target features to inspect for crt-static")
	flags.Bool("host", false, "Fill missing target fields from the running toolchain")
	flags.String("base-url", release.DefaultBaseURL, "Release download base URL")
	flags.String("release", release.DefaultVersion, "Release version for non-MSVC targets")
	flags.String("msvc-release", release.DefaultMSVCVersion, "Release version for MSVC targets")
	flags.String("transport", config.DefaultTransport, "Download backend (http, curl)")
	flags.String("extractor", config.DefaultExtractor, "Extraction backend (native, tar)")
	flags.String("curl-path", "", "curl executable for --transport curl")
	flags.String("tar-path", "", "tar executable for --extractor tar")
	flags.Duration("http-timeout", 0, "Timeout for --transport http (0 = none)")
	flags.StringP("format", "f", config.DefaultFormat, "Link directive format (text, env, json, cgo, cargo)")
	flags.StringP("out", "o", "", "Write link directives to this file instead of stdout")
	flags.String("package", config.DefaultPackage, "Package name of the generated cgo file")
}

// loadConfig resets viper and loads configuration for cmd
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	viper.Reset()

	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := newLogger(cmd, verbose)

	cfg, err := config.NewLoader(logger).LoadForCommand(cmd)
	if err != nil {
		return nil, nil, err
	}

	return cfg, newLogger(cmd, cfg.Verbose), nil
}

func newLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
