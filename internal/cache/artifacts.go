package cache

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// CollectFiles walks dir and returns every regular file relative to dir
func CollectFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read artifact directory: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

// DirSize returns the total size of regular files under dir; a missing dir is empty
func DirSize(dir string) (int64, error) {
	var total int64

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}

			return err
		}

		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}

			total += info.Size()
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return total, nil
}
