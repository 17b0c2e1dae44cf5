// Package link turns an extracted archive into linker directives.
package link

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Norgate-AV/machdxc/internal/target"
)

// Format selects how directives are written.
type Format string

const (
	FormatText  Format = "text"
	FormatEnv   Format = "env"
	FormatJSON  Format = "json"
	FormatCGo   Format = "cgo"
	FormatCargo Format = "cargo"
)

// Formats lists every supported format
var Formats = []Format{FormatText, FormatEnv, FormatJSON, FormatCGo, FormatCargo}

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == strings.ToLower(s) {
			return f, nil
		}
	}

	return "", fmt.Errorf("unknown link directive format %q", s)
}

// Directive tells the build which static library to link and where it is.
type Directive struct {
	Library    string   `json:"library"`
	SearchDir  string   `json:"search_dir"`
	SystemLibs []string `json:"system_libs,omitempty"`
	Platform   string   `json:"platform"`
	URL        string   `json:"url"`
}

// SystemLibs returns the extra libraries a C++ static library needs on p.
func SystemLibs(p target.Platform) []string {
	switch {
	case p.OS == "macos":
		return []string{"c++"}
	case p.OS == "windows" && p.IsMSVC():
		return []string{"ole32", "oleaut32"}
	case p.OS == "windows":
		return []string{"stdc++", "ole32", "oleaut32"}
	default:
		return []string{"stdc++", "m"}
	}
}

// LocateLibrary returns the directory under root holding the static library
// (lib<name>.a or <name>.lib). If none is found, root itself is returned
// with found=false.
func LocateLibrary(root, name string) (dir string, found bool, err error) {
	candidates := map[string]struct{}{
		"lib" + name + ".a": {},
		name + ".lib":       {},
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if _, ok := candidates[d.Name()]; ok && !d.IsDir() {
			dir = filepath.Dir(path)
			found = true
			return fs.SkipAll
		}

		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to search %s: %w", root, err)
	}

	if !found {
		return root, false, nil
	}

	return dir, true, nil
}

// LDFlags renders the directive as linker flags
func (d Directive) LDFlags() []string {
	flags := []string{"-L" + d.SearchDir, "-l" + d.Library}
	for _, lib := range d.SystemLibs {
		flags = append(flags, "-l"+lib)
	}

	return flags
}

// Emit writes d to w in format f.
func Emit(w io.Writer, f Format, d Directive, pkg string) error {
	var err error

	switch f {
	case FormatText:
		_, err = fmt.Fprintf(w, "library: %s\nsearch_dir: %s\nsystem_libs: %s\n",
			d.Library, d.SearchDir, strings.Join(d.SystemLibs, " "))
	case FormatEnv:
		_, err = fmt.Fprintf(w, "CGO_LDFLAGS=%s\n", shellQuote(strings.Join(d.LDFlags(), " ")))
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(d)
	case FormatCGo:
		err = writeCGo(w, d, pkg)
	case FormatCargo:
		_, err = fmt.Fprintf(w, "cargo:rustc-link-lib=static=%s\ncargo:rustc-link-search=native=%s\n", d.Library, d.SearchDir)
	default:
		return fmt.Errorf("unknown link directive format %q", f)
	}

	return err
}

// WriteFile emits d into path, replacing any previous contents
func WriteFile(path string, f Format, d Directive, pkg string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := Emit(out, f, d, pkg); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}

func writeCGo(w io.Writer, d Directive, pkg string) error {
	if pkg == "" {
		pkg = "dxc"
	}

	flags := d.LDFlags()
	for i, flag := range flags {
		if strings.ContainsAny(flag, " \t") {
			flags[i] = `"` + flag + `"`
		}
	}

	_, err := fmt.Fprintf(w, `// Code generated by machdxc for %s; DO NOT EDIT.

//go:build cgo && dxcompiler

package %s

/*
#cgo LDFLAGS: %s
*/
import "C"
`, d.Platform, pkg, strings.Join(flags, " "))

	return err
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
