package extract

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies how a tar stream is compressed.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
	CompressionLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// DetectCompression picks the decompressor from an archive file name.
func DetectCompression(name string) (Compression, error) {
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return CompressionGzip, nil
	case strings.HasSuffix(name, ".tar.zst"), strings.HasSuffix(name, ".tzst"):
		return CompressionZstd, nil
	case strings.HasSuffix(name, ".tar.lz4"):
		return CompressionLZ4, nil
	case strings.HasSuffix(name, ".tar"):
		return CompressionNone, nil
	default:
		return 0, fmt.Errorf("unrecognized archive format: %s", filepath.Base(name))
	}
}

// ArchiveExtractor unpacks tar archives in process.
type ArchiveExtractor struct{}

// NewArchiveExtractor creates an in-process extractor
func NewArchiveExtractor() *ArchiveExtractor {
	return &ArchiveExtractor{}
}

// Extract unpacks archive into outDir. Every write goes through an os.Root
// opened on outDir, so entries that would land outside it, directly or
// through links created by earlier entries, are rejected.
func (x *ArchiveExtractor) Extract(ctx context.Context, archive, outDir string) error {
	compression, err := DetectCompression(archive)
	if err != nil {
		return err
	}

	f, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	r, closer, err := decompressor(f, compression)
	if err != nil {
		return err
	}
	defer closer()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	root, err := os.OpenRoot(outDir)
	if err != nil {
		return fmt.Errorf("failed to open output directory: %w", err)
	}
	defer root.Close()

	tr := tar.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read archive: %w", err)
		}

		if err := writeEntry(tr, hdr, root); err != nil {
			return err
		}
	}
}

func decompressor(r io.Reader, c Compression) (io.Reader, func(), error) {
	switch c {
	case CompressionGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}

		return gz, func() { gz.Close() }, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}

		return dec, dec.Close, nil
	case CompressionLZ4:
		return lz4.NewReader(r), func() {}, nil
	default:
		return r, func() {}, nil
	}
}

func writeEntry(tr *tar.Reader, hdr *tar.Header, root *os.Root) error {
	name, err := entryPath(hdr.Name)
	if err != nil {
		return err
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		return root.MkdirAll(name, 0o755)
	case tar.TypeReg:
		if err := mkdirParent(root, name); err != nil {
			return err
		}

		out, err := root.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, hdr.FileInfo().Mode().Perm()|0o600)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", hdr.Name, err)
		}

		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return fmt.Errorf("failed to write %s: %w", hdr.Name, err)
		}

		return out.Close()
	case tar.TypeSymlink:
		if filepath.IsAbs(hdr.Linkname) {
			return fmt.Errorf("archive entry %s links outside the output directory", hdr.Name)
		}

		if _, err := entryPath(path.Join(path.Dir(filepath.ToSlash(name)), filepath.ToSlash(hdr.Linkname))); err != nil {
			return err
		}

		if err := mkdirParent(root, name); err != nil {
			return err
		}

		if err := root.Symlink(hdr.Linkname, name); err != nil {
			return fmt.Errorf("failed to link %s: %w", hdr.Name, err)
		}

		return nil
	case tar.TypeLink:
		target, err := entryPath(hdr.Linkname)
		if err != nil {
			return err
		}

		if err := mkdirParent(root, name); err != nil {
			return err
		}

		if err := root.Link(target, name); err != nil {
			return fmt.Errorf("failed to link %s: %w", hdr.Name, err)
		}

		return nil
	default:
		return fmt.Errorf("archive entry %s has unsupported type %q", hdr.Name, hdr.Typeflag)
	}
}

func mkdirParent(root *os.Root, name string) error {
	dir := filepath.Dir(name)
	if dir == "." {
		return nil
	}

	return root.MkdirAll(dir, 0o755)
}

// entryPath cleans an archive entry name into a path relative to the output
// directory, rejecting names that climb out of it.
func entryPath(name string) (string, error) {
	clean := path.Clean("/" + filepath.ToSlash(name))[1:]
	if clean == "" {
		clean = "."
	}

	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") || climbs(name) {
		return "", fmt.Errorf("archive entry %s escapes the output directory", name)
	}

	return filepath.FromSlash(clean), nil
}

func climbs(name string) bool {
	rel := path.Clean(filepath.ToSlash(name))
	return rel == ".." || strings.HasPrefix(rel, "../")
}
