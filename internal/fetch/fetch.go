// Package fetch downloads release archives into the local cache.
//
// Downloads are idempotent: an existing non-empty file at the destination is
// taken as a valid earlier download. No checksum is verified, so a corrupt
// archive of non-zero size stays cached until the cache entry is removed
// (machdxc cache clean).
package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Transport retrieves a URL into a file
type Transport interface {
	Download(ctx context.Context, url, dest string) error
}

// IsCached reports whether dest holds a previous, non-empty download.
func IsCached(dest string) bool {
	info, err := os.Stat(dest)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// Fetch downloads url to dest through t unless dest is already cached.
// On failure any partially written dest is removed before the error is
// returned.
func Fetch(ctx context.Context, t Transport, url, dest string) error {
	if IsCached(dest) {
		return nil
	}

	// A zero-length leftover is never a valid download.
	if err := removeIfExists(dest); err != nil {
		return &DownloadError{URL: url, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return &DownloadError{URL: url, Err: fmt.Errorf("failed to create download directory: %w", err)}
	}

	err := t.Download(ctx, url, dest)
	if err == nil && !IsCached(dest) {
		err = fmt.Errorf("transfer produced no data at %s", dest)
	}

	if err != nil {
		if rmErr := removeIfExists(dest); rmErr != nil {
			return &DownloadError{URL: url, Err: errors.Join(err, rmErr)}
		}

		return &DownloadError{URL: url, Err: err}
	}

	return nil
}

// removeIfExists deletes path; a missing file is not an error.
func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove partial download %s: %w", path, err)
	}

	return nil
}
