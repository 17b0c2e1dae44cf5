package cache

import "time"

// Entry describes a fetched and extracted archive
type Entry struct {
	// Key is the cache key, derived from URL
	Key string `json:"key"`

	// URL the archive was downloaded from
	URL string `json:"url"`

	// Platform is the resolved platform string (e.g., "x86_64-linux-gnu")
	Platform string `json:"platform"`

	// Variant is the archive variant (default, dynamic-crt, static-crt)
	Variant string `json:"variant"`

	// Release is the release version the URL points at
	Release string `json:"release"`

	// ArchivePath is where the downloaded archive is kept
	ArchivePath string `json:"archive_path"`

	// ArchiveSize in bytes
	ArchiveSize int64 `json:"archive_size"`

	// ArchiveHash is the BLAKE3 digest of the archive, recorded for inspection only
	ArchiveHash string `json:"archive_hash"`

	// Dir is the extraction directory
	Dir string `json:"dir"`

	// Files lists extracted files relative to Dir
	Files []string `json:"files"`

	// Timestamp when this entry was recorded
	Timestamp time.Time `json:"timestamp"`
}
