// Package extract unpacks downloaded release archives into cache directories.
package extract

import (
	"context"
	"fmt"
	"os"
)

// Extractor unpacks archive into outDir, which already exists and is empty
type Extractor interface {
	Extract(ctx context.Context, archive, outDir string) error
}

// IsPopulated reports whether dir is a directory with at least one entry.
func IsPopulated(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}

	f, err := os.Open(dir)
	if err != nil {
		return false
	}
	defer f.Close()

	names, err := f.Readdirnames(1)
	return err == nil && len(names) > 0
}

// Extract unpacks archive into outDir through x unless outDir is already
// populated. A failed extraction removes outDir so the next run starts clean.
func Extract(ctx context.Context, x Extractor, archive, outDir string) error {
	if IsPopulated(outDir) {
		return nil
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return &ExtractError{Archive: archive, Err: fmt.Errorf("failed to create output directory: %w", err)}
	}

	err := x.Extract(ctx, archive, outDir)
	if err == nil && !IsPopulated(outDir) {
		err = fmt.Errorf("archive contained no files")
	}

	if err != nil {
		if rmErr := os.RemoveAll(outDir); rmErr != nil {
			return &ExtractError{Archive: archive, Err: fmt.Errorf("%w (cleanup of %s also failed: %v)", err, outDir, rmErr)}
		}

		return &ExtractError{Archive: archive, Err: err}
	}

	return nil
}
