package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// envNames lists the environment variables read for each key, in priority
// order. The CARGO_* names let machdxc run unchanged from a Cargo build script.
var envNames = map[string][]string{
	"target":          {"MACHDXC_TARGET", "TARGET"},
	"arch":            {"MACHDXC_TARGET_ARCH", "CARGO_CFG_TARGET_ARCH"},
	"os":              {"MACHDXC_TARGET_OS", "CARGO_CFG_TARGET_OS"},
	"vendor":          {"MACHDXC_TARGET_VENDOR", "CARGO_CFG_TARGET_VENDOR"},
	"abi":             {"MACHDXC_TARGET_ENV", "CARGO_CFG_TARGET_ENV"},
	"static_crt":      {"MACHDXC_STATIC_CRT"},
	"cflags":          {"MACHDXC_CFLAGS", "CARGO_ENCODED_RUSTFLAGS"},
	"target_features": {"MACHDXC_TARGET_FEATURES", "CARGO_CFG_TARGET_FEATURE"},
	"base_url":        {"MACHDXC_BASE_URL"},
	"release":         {"MACHDXC_RELEASE"},
	"msvc_release":    {"MACHDXC_MSVC_RELEASE"},
	"cache_dir":       {"MACHDXC_CACHE_DIR"},
	"transport":       {"MACHDXC_TRANSPORT"},
	"extractor":       {"MACHDXC_EXTRACTOR"},
	"http_timeout":    {"MACHDXC_HTTP_TIMEOUT"},
	"lock_timeout":    {"MACHDXC_LOCK_TIMEOUT"},
}

// flagKeys maps command line flags to viper keys where they differ
var flagKeys = map[string]string{
	"static-crt":      "static_crt",
	"target-features": "target_features",
	"base-url":        "base_url",
	"msvc-release":    "msvc_release",
	"cache-dir":       "cache_dir",
	"http-timeout":    "http_timeout",
	"lock-timeout":    "lock_timeout",
	"curl-path":       "curl_path",
	"tar-path":        "tar_path",
}

// Loader handles configuration loading from various sources
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}

	return &Loader{logger: logger}
}

// LoadForCommand loads configuration for a command: defaults, then the
// global config file, then the nearest local config file, then environment,
// then flags.
func (l *Loader) LoadForCommand(cmd *cobra.Command) (*Config, error) {
	l.setupViperDefaults()
	l.loadGlobalConfig()
	l.loadLocalConfig()
	l.bindEnv()
	l.bindCommandFlags(cmd)

	return Load()
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	viper.SetDefault("transport", DefaultTransport)
	viper.SetDefault("extractor", DefaultExtractor)
	viper.SetDefault("format", DefaultFormat)
	viper.SetDefault("package", DefaultPackage)
	viper.SetDefault("lock_timeout", DefaultLockTimeout)
	viper.SetDefault("verbose", DefaultVerbose)
}

// loadGlobalConfig loads global configuration from the user config directory
func (l *Loader) loadGlobalConfig() {
	dir, err := os.UserConfigDir()
	if err != nil {
		return
	}

	if path := FindGlobalConfig(filepath.Join(dir, "machdxc")); path != "" {
		l.readConfig(path)
	}
}

// loadLocalConfig loads local configuration from the working directory or its parents
func (l *Loader) loadLocalConfig() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	if path := FindLocalConfig(cwd); path != "" {
		l.readConfig(path)
	}
}

func (l *Loader) readConfig(path string) {
	viper.SetConfigFile(path)

	if err := viper.MergeInConfig(); err != nil {
		l.logger.Warn("ignoring unreadable config file", "path", path, "error", err)
		return
	}

	l.logger.Debug("loaded config file", "path", path)
}

// bindEnv binds environment variables to viper keys
func (l *Loader) bindEnv() {
	for key, names := range envNames {
		_ = viper.BindEnv(append([]string{key}, names...)...)
	}
}

// bindCommandFlags binds every flag of cmd to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key := f.Name
		if k, ok := flagKeys[f.Name]; ok {
			key = k
		}

		_ = viper.BindPFlag(key, f)
	})
}
