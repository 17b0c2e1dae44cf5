// Package release composes download URLs for mach-dxcompiler release archives.
package release

import (
	"fmt"
	"strings"

	"github.com/Norgate-AV/machdxc/internal/target"
)

const (
	// DefaultBaseURL is where the prebuilt archives are published.
	DefaultBaseURL = "https://github.com/hexops/mach-dxcompiler/releases/download"

	// DefaultVersion is the release used for every non-MSVC target.
	DefaultVersion = "2024.11.22+284d956.1"

	// DefaultMSVCVersion is the release used for MSVC targets.
	DefaultMSVCVersion = "2024.11.22+284d956.2"

	// Optimize is the optimization mode baked into the archive names.
	Optimize = "ReleaseFast"

	// ArchiveExt is the extension of published archives.
	ArchiveExt = ".tar.gz"

	// LibraryName is the static library contained in every archive.
	LibraryName = "machdxcompiler"
)

// Reference pins the release a build links against.
type Reference struct {
	BaseURL     string
	Version     string
	MSVCVersion string
}

// Default returns the reference bundled with this release of machdxc.
func Default() Reference {
	return Reference{
		BaseURL:     DefaultBaseURL,
		Version:     DefaultVersion,
		MSVCVersion: DefaultMSVCVersion,
	}
}

// VersionFor returns the version string of the linkage family p belongs to.
func (r Reference) VersionFor(p target.Platform) string {
	if p.IsMSVC() && r.MSVCVersion != "" {
		return r.MSVCVersion
	}

	return r.Version
}

// Validate checks that the reference can produce URLs.
func (r Reference) Validate() error {
	if r.BaseURL == "" {
		return fmt.Errorf("release base URL is empty")
	}

	if r.Version == "" {
		return fmt.Errorf("release version is empty")
	}

	return nil
}

// ArchiveName returns the archive file name for a platform,
// e.g. x86_64-linux-gnu_ReleaseFast_lib.tar.gz.
func ArchiveName(p target.Platform) string {
	return p.String() + "_" + Optimize + "_lib" + p.Variant.Suffix() + ArchiveExt
}

// BuildURL composes {base}/{version}/{archive}. It performs no I/O.
func BuildURL(p target.Platform, r Reference) string {
	return strings.TrimRight(r.BaseURL, "/") + "/" + r.VersionFor(p) + "/" + ArchiveName(p)
}
