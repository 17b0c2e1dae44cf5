// Package target maps build-target metadata onto the platform strings used
// by the prebuilt mach-dxcompiler release archives.
package target

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// NoABI is the ABI of targets that do not carry one (e.g. macOS).
const NoABI = "none"

// Variant selects which flavour of the static library archive to fetch.
type Variant int

const (
	// VariantDefault is the only archive published for non-MSVC targets.
	VariantDefault Variant = iota

	// VariantDynamicCRT links against the shared MSVC runtime (/MD).
	VariantDynamicCRT

	// VariantStaticCRT has the MSVC runtime linked in (/MT).
	VariantStaticCRT
)

func (v Variant) String() string {
	switch v {
	case VariantDefault:
		return "default"
	case VariantDynamicCRT:
		return "dynamic-crt"
	case VariantStaticCRT:
		return "static-crt"
	default:
		return fmt.Sprintf("unknown(%d)", int(v))
	}
}

// Suffix returns the archive name suffix appended after "_lib".
func (v Variant) Suffix() string {
	switch v {
	case VariantDynamicCRT:
		return "_dynamic_crt"
	case VariantStaticCRT:
		return "_static_crt"
	default:
		return ""
	}
}

// Descriptor is the raw target tuple handed over by the build.
type Descriptor struct {
	Arch      string
	OS        string
	Vendor    string
	ABI       string
	StaticCRT bool
}

func (d Descriptor) String() string {
	parts := []string{d.Arch}
	if d.Vendor != "" {
		parts = append(parts, d.Vendor)
	}
	parts = append(parts, d.OS)
	if d.ABI != "" {
		parts = append(parts, d.ABI)
	}

	return strings.Join(parts, "-")
}

// Platform is a resolved, supported target.
type Platform struct {
	Arch    string
	OS      string
	ABI     string
	Variant Variant
}

// String returns the platform string used in archive names, e.g. x86_64-linux-gnu.
func (p Platform) String() string {
	return p.Arch + "-" + p.OS + "-" + p.ABI
}

// IsMSVC reports whether the platform uses the MSVC ABI.
func (p Platform) IsMSVC() bool {
	return p.ABI == "msvc"
}

var supported = map[string]struct{}{
	"x86_64-linux-gnu":     {},
	"x86_64-linux-musl":    {},
	"aarch64-linux-gnu":    {},
	"aarch64-linux-musl":   {},
	"x86_64-windows-gnu":   {},
	"x86_64-windows-msvc":  {},
	"aarch64-windows-gnu":  {},
	"aarch64-windows-msvc": {},
	"x86_64-macos-none":    {},
	"aarch64-macos-none":   {},
}

var archAliases = map[string]string{
	"amd64": "x86_64",
	"x64":   "x86_64",
	"arm64": "aarch64",
}

// Keyed by "vendor/os"; checked before osAliases.
var vendorOSAliases = map[string]string{
	"apple/darwin": "macos",
	"apple/macosx": "macos",
	"pc/win32":     "windows",
}

var osAliases = map[string]string{
	"darwin": "macos",
	"macosx": "macos",
	"win32":  "windows",
}

var knownVendors = map[string]struct{}{
	"pc":      {},
	"apple":   {},
	"unknown": {},
	"w64":     {},
}

// Supported returns the sorted allow-list of platform strings.
func Supported() []string {
	out := make([]string, 0, len(supported))
	for p := range supported {
		out = append(out, p)
	}
	sort.Strings(out)

	return out
}

// Normalize canonicalizes architecture, OS and ABI spellings. It never fails.
func Normalize(d Descriptor) Descriptor {
	n := Descriptor{
		Arch:      strings.ToLower(strings.TrimSpace(d.Arch)),
		OS:        strings.ToLower(strings.TrimSpace(d.OS)),
		Vendor:    strings.ToLower(strings.TrimSpace(d.Vendor)),
		ABI:       strings.ToLower(strings.TrimSpace(d.ABI)),
		StaticCRT: d.StaticCRT,
	}

	if a, ok := archAliases[n.Arch]; ok {
		n.Arch = a
	}

	if o, ok := vendorOSAliases[n.Vendor+"/"+n.OS]; ok {
		n.OS = o
	} else if o, ok := osAliases[n.OS]; ok {
		n.OS = o
	}

	if n.ABI == "" {
		n.ABI = NoABI
	}

	return n
}

// Resolve maps a descriptor onto a supported platform. It performs no I/O.
func Resolve(d Descriptor) (Platform, error) {
	n := Normalize(d)
	p := Platform{Arch: n.Arch, OS: n.OS, ABI: n.ABI}

	if _, ok := supported[p.String()]; !ok {
		return Platform{}, &UnsupportedTargetError{Raw: d.String(), Normalized: p.String()}
	}

	if p.IsMSVC() {
		if n.StaticCRT {
			p.Variant = VariantStaticCRT
		} else {
			p.Variant = VariantDynamicCRT
		}
	}

	return p, nil
}

// ParseTriple splits a target triple such as x86_64-pc-windows-msvc,
// aarch64-apple-darwin or x86_64-linux-gnu into a descriptor.
func ParseTriple(triple string) (Descriptor, error) {
	parts := strings.Split(strings.TrimSpace(triple), "-")
	for _, p := range parts {
		if p == "" {
			return Descriptor{}, fmt.Errorf("invalid target triple %q", triple)
		}
	}

	switch len(parts) {
	case 2:
		return Descriptor{Arch: parts[0], OS: parts[1]}, nil
	case 3:
		if _, ok := knownVendors[strings.ToLower(parts[1])]; ok {
			return Descriptor{Arch: parts[0], Vendor: parts[1], OS: parts[2]}, nil
		}

		return Descriptor{Arch: parts[0], OS: parts[1], ABI: parts[2]}, nil
	case 4:
		return Descriptor{Arch: parts[0], Vendor: parts[1], OS: parts[2], ABI: parts[3]}, nil
	default:
		return Descriptor{}, fmt.Errorf("invalid target triple %q", triple)
	}
}

// FromGo builds a descriptor for a GOOS/GOARCH pair. cgo on Windows goes
// through MinGW, so the GNU ABI is assumed there.
func FromGo(goos, goarch string) Descriptor {
	d := Descriptor{Arch: goarch, OS: goos}

	switch goos {
	case "linux", "windows":
		d.ABI = "gnu"
	case "darwin":
		d.Vendor = "apple"
	}

	return d
}

// Host returns the descriptor of the running toolchain.
func Host() Descriptor {
	return FromGo(runtime.GOOS, runtime.GOARCH)
}

// StaticCRTFromFlags reports whether compiler flags request a statically
// linked C runtime. Flags may be separated by whitespace or by the 0x1f
// separator used in encoded flag lists.
func StaticCRTFromFlags(flags string) bool {
	static := false

	fields := strings.FieldsFunc(flags, func(r rune) bool {
		return r == 0x1f || r == ' ' || r == '\t' || r == '\n'
	})
	for _, f := range fields {
		switch {
		case strings.Contains(f, "+crt-static"), f == "/MT", f == "/MTd", f == "-MT", f == "-MTd":
			static = true
		case strings.Contains(f, "-crt-static"), f == "/MD", f == "/MDd", f == "-MD", f == "-MDd":
			static = false
		}
	}

	return static
}

// StaticCRTFromFeatures reports whether a comma-separated target feature
// list (as in CARGO_CFG_TARGET_FEATURE) enables crt-static.
func StaticCRTFromFeatures(features string) bool {
	for _, f := range strings.Split(features, ",") {
		if strings.TrimSpace(f) == "crt-static" {
			return true
		}
	}

	return false
}
