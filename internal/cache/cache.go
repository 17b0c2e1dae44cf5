// Package cache manages the on-disk store of downloaded release archives.
//
// Layout under the cache root:
//
//	downloads/<key><ext>   the archive as fetched
//	artifacts/<key>/       the extracted archive contents
//	cache.db               BoltDB index of entries (metadata only)
//
// The key is derived from the fully resolved download URL, so a new release
// version or archive variant lands in a fresh entry. An entry is usable iff
// its artifact directory is non-empty; the index never overrides that check.
//
// Opening the cache takes the BoltDB file lock, which serializes machdxc
// processes sharing a cache root for as long as the cache stays open.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// DirName is the cache directory name under the user cache dir
	DirName = "machdxc"

	// bucketName is the BoltDB bucket name for cache entries
	bucketName = "archives"

	// DefaultLockTimeout bounds how long Open waits for another process
	DefaultLockTimeout = 10 * time.Minute
)

// Cache manages fetched archives and their metadata using BoltDB
type Cache struct {
	db   *bbolt.DB
	root string
}

// DefaultRoot returns the default cache root in the user cache directory
func DefaultRoot() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user cache directory: %w", err)
	}

	return filepath.Join(dir, DirName), nil
}

// Open opens (creating if needed) the cache rooted at root.
// If root is empty, DefaultRoot is used.
func Open(root string, lockTimeout time.Duration) (*Cache, error) {
	if root == "" {
		var err error
		if root, err = DefaultRoot(); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dbPath := filepath.Join(root, "cache.db")
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: lockTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	return &Cache{
		db:   db,
		root: root,
	}, nil
}

// Close closes the cache database and releases the lock
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}

	return nil
}

// Root returns the cache root directory
func (c *Cache) Root() string {
	return c.root
}

// ArtifactDir returns the extraction directory for a key
func (c *Cache) ArtifactDir(key string) string {
	return filepath.Join(c.root, "artifacts", key)
}

// DownloadPath returns where the archive for key is stored; ext is the
// archive extension including the leading dot
func (c *Cache) DownloadPath(key, ext string) string {
	return filepath.Join(c.root, "downloads", key+ext)
}

// Get retrieves an entry by key. Returns nil on a miss.
func (c *Cache) Get(key string) (*Entry, error) {
	var entry Entry
	err := c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(key))
		if data == nil {
			return nil
		}

		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, err
	}

	if entry.Key == "" {
		return nil, nil
	}

	return &entry, nil
}

// Record stores metadata for a populated entry
func (c *Cache) Record(entry *Entry) error {
	if entry.Key == "" {
		return fmt.Errorf("cache entry has no key")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	err = c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(entry.Key), data)
	})
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}

	return nil
}

// List returns all indexed entries, newest first
func (c *Cache) List() ([]*Entry, error) {
	var entries []*Entry

	err := c.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("corrupt cache entry %s: %w", k, err)
			}

			entries = append(entries, &entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	return entries, nil
}

// Remove deletes an entry's index record, archive and artifacts
func (c *Cache) Remove(key string) error {
	entry, err := c.Get(key)
	if err != nil {
		return err
	}

	if entry != nil && entry.ArchivePath != "" {
		if err := os.Remove(entry.ArchivePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove archive: %w", err)
		}
	}

	// Archives that never made it into the index, such as one that failed to extract
	downloads, err := os.ReadDir(filepath.Join(c.root, "downloads"))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read downloads: %w", err)
	}
	for _, d := range downloads {
		if keyOf(d.Name()) != key {
			continue
		}

		if err := os.Remove(filepath.Join(c.root, "downloads", d.Name())); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove archive: %w", err)
		}
	}

	if err := os.RemoveAll(c.ArtifactDir(key)); err != nil {
		return fmt.Errorf("failed to remove artifacts: %w", err)
	}

	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(key))
	})
}

// Keys returns every key with an index entry, a downloaded archive or an
// artifact directory, sorted.
func (c *Cache) Keys() ([]string, error) {
	seen := make(map[string]struct{})

	entries, err := c.List()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		seen[e.Key] = struct{}{}
	}

	for _, sub := range []string{"downloads", "artifacts"} {
		dirEntries, err := os.ReadDir(filepath.Join(c.root, sub))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", sub, err)
		}

		for _, d := range dirEntries {
			seen[keyOf(d.Name())] = struct{}{}
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys, nil
}

// keyOf strips the archive extension from a downloads/ or artifacts/ name
func keyOf(name string) string {
	if i := strings.IndexByte(name, '.'); i > 0 {
		return name[:i]
	}

	return name
}

// Clear removes all cache entries, archives and artifacts
func (c *Cache) Clear() error {
	err := c.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil {
			return err
		}

		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
	if err != nil {
		return err
	}

	for _, dir := range []string{"artifacts", "downloads"} {
		if err := os.RemoveAll(filepath.Join(c.root, dir)); err != nil {
			return fmt.Errorf("failed to remove %s: %w", dir, err)
		}
	}

	return nil
}

// Stats returns the number of indexed entries and the bytes used on disk
func (c *Cache) Stats() (int, int64, error) {
	var count int

	err := c.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket([]byte(bucketName)).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	var totalSize int64
	for _, dir := range []string{"artifacts", "downloads"} {
		size, err := DirSize(filepath.Join(c.root, dir))
		if err != nil {
			return 0, 0, err
		}

		totalSize += size
	}

	return count, totalSize, nil
}
