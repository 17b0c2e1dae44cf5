package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/Norgate-AV/machdxc/internal/cache"
	"github.com/Norgate-AV/machdxc/internal/link"
	"github.com/Norgate-AV/machdxc/internal/release"
	"github.com/Norgate-AV/machdxc/internal/target"
)

// Default configuration values
const (
	DefaultTransport   = TransportHTTP
	DefaultExtractor   = ExtractorNative
	DefaultFormat      = string(link.FormatText)
	DefaultPackage     = "dxc"
	DefaultLockTimeout = cache.DefaultLockTimeout
	DefaultVerbose     = false
)

// Transport and extractor backends
const (
	TransportHTTP   = "http"
	TransportCurl   = "curl"
	ExtractorNative = "native"
	ExtractorTar    = "tar"
)

// Holds the configuration options for machdxc
type Config struct {
	// Full target triple (e.g., x86_64-pc-windows-msvc); split into the fields below
	Triple string

	// Target architecture, operating system, vendor and ABI. Explicit
	// values override the corresponding part of Triple.
	Arch   string
	OS     string
	Vendor string
	ABI    string

	// Link the C runtime statically (MSVC targets only)
	StaticCRT bool

	// Compiler flags inspected for a static CRT request
	CFlags string

	// Comma-separated target features inspected for crt-static
	TargetFeatures string

	// Fill missing target fields from the running toolchain
	UseHost bool

	// Release to fetch
	BaseURL     string
	Release     string
	MSVCRelease string

	// Cache root; empty means the user cache directory
	CacheDir string

	// How long to wait for another process holding the cache
	LockTimeout time.Duration

	// Timeout of the HTTP transport; zero disables it
	HTTPTimeout time.Duration

	// Download and extraction backends
	Transport string
	Extractor string
	CurlPath  string
	TarPath   string

	// Link directive output format, destination file and generated package name
	Format  string
	Output  string
	Package string

	// Enable verbose output
	Verbose bool
}

func Load() (*Config, error) {
	cfg := &Config{
		Triple:         viper.GetString("target"),
		Arch:           viper.GetString("arch"),
		OS:             viper.GetString("os"),
		Vendor:         viper.GetString("vendor"),
		ABI:            viper.GetString("abi"),
		StaticCRT:      viper.GetBool("static_crt"),
		CFlags:         viper.GetString("cflags"),
		TargetFeatures: viper.GetString("target_features"),
		UseHost:        viper.GetBool("host"),
		BaseURL:        viper.GetString("base_url"),
		Release:        viper.GetString("release"),
		MSVCRelease:    viper.GetString("msvc_release"),
		CacheDir:       viper.GetString("cache_dir"),
		LockTimeout:    viper.GetDuration("lock_timeout"),
		HTTPTimeout:    viper.GetDuration("http_timeout"),
		Transport:      viper.GetString("transport"),
		Extractor:      viper.GetString("extractor"),
		CurlPath:       viper.GetString("curl_path"),
		TarPath:        viper.GetString("tar_path"),
		Format:         viper.GetString("format"),
		Output:         viper.GetString("out"),
		Package:        viper.GetString("package"),
		Verbose:        viper.GetBool("verbose"),
	}

	// Apply defaults if not set
	if cfg.BaseURL == "" {
		cfg.BaseURL = release.DefaultBaseURL
	}

	if cfg.Release == "" {
		cfg.Release = release.DefaultVersion
	}

	if cfg.MSVCRelease == "" {
		cfg.MSVCRelease = release.DefaultMSVCVersion
	}

	if cfg.Transport == "" {
		cfg.Transport = DefaultTransport
	}

	if cfg.Extractor == "" {
		cfg.Extractor = DefaultExtractor
	}

	if cfg.Format == "" {
		cfg.Format = DefaultFormat
	}

	if cfg.Package == "" {
		cfg.Package = DefaultPackage
	}

	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultLockTimeout
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Reference().Validate(); err != nil {
		return err
	}

	switch c.Transport {
	case TransportHTTP, TransportCurl:
	default:
		return fmt.Errorf("invalid transport: %s (want %s or %s)", c.Transport, TransportHTTP, TransportCurl)
	}

	switch c.Extractor {
	case ExtractorNative, ExtractorTar:
	default:
		return fmt.Errorf("invalid extractor: %s (want %s or %s)", c.Extractor, ExtractorNative, ExtractorTar)
	}

	if _, err := link.ParseFormat(c.Format); err != nil {
		return err
	}

	if c.HTTPTimeout < 0 {
		return fmt.Errorf("invalid http timeout: %s", c.HTTPTimeout)
	}

	// Resolve paths
	if c.CacheDir != "" {
		abs, err := filepath.Abs(c.CacheDir)
		if err != nil {
			return fmt.Errorf("invalid cache directory: %v", err)
		}
		c.CacheDir = abs
	}

	if c.Output != "" {
		abs, err := filepath.Abs(c.Output)
		if err != nil {
			return fmt.Errorf("invalid output file path: %v", err)
		}
		c.Output = abs
	}

	return nil
}

// Reference returns the release the configuration points at
func (c *Config) Reference() release.Reference {
	return release.Reference{
		BaseURL:     c.BaseURL,
		Version:     c.Release,
		MSVCVersion: c.MSVCRelease,
	}
}

// Descriptor assembles the target tuple from the triple, the explicit
// fields and, with UseHost, the running toolchain. Architecture and OS are
// required; the ABI may be absent.
func (c *Config) Descriptor() (target.Descriptor, error) {
	var d target.Descriptor

	if c.Triple != "" {
		parsed, err := target.ParseTriple(c.Triple)
		if err != nil {
			return target.Descriptor{}, err
		}
		d = parsed
	}

	override(&d.Arch, c.Arch)
	override(&d.OS, c.OS)
	override(&d.Vendor, c.Vendor)
	override(&d.ABI, c.ABI)

	if c.UseHost {
		host := target.Host()
		if d.Arch == "" {
			d.Arch = host.Arch
		}

		if d.OS == "" {
			d.OS = host.OS
			d.Vendor = host.Vendor
			if d.ABI == "" {
				d.ABI = host.ABI
			}
		}
	}

	if d.Arch == "" {
		return target.Descriptor{}, &EnvironmentMissingError{Key: "arch"}
	}

	if d.OS == "" {
		return target.Descriptor{}, &EnvironmentMissingError{Key: "os"}
	}

	d.StaticCRT = c.StaticCRT ||
		target.StaticCRTFromFlags(c.CFlags) ||
		target.StaticCRTFromFeatures(c.TargetFeatures)

	return d, nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
