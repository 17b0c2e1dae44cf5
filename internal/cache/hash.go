package cache

import (
	"encoding/hex"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// Key returns the cache key of a download URL: the hex BLAKE3-256 digest
func Key(url string) string {
	sum := blake3.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// HashFile creates a hash of a file's content
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
