package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()

	c, err := Open(t.TempDir(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	return c
}

func TestKey(t *testing.T) {
	url := "https://example.com/1.0/x86_64-linux-gnu_ReleaseFast_lib.tar.gz"

	key := Key(url)
	assert.Len(t, key, 64)
	assert.Equal(t, key, Key(url), "key should be deterministic")
	assert.NotEqual(t, key, Key("https://example.com/1.1/x86_64-linux-gnu_ReleaseFast_lib.tar.gz"))
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	h1, err := HashFile(path)
	require.NoError(t, err)
	assert.Len(t, h1, 64)

	require.NoError(t, os.WriteFile(path, []byte("other"), 0o644))
	h2, err := HashFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)

	_, err = HashFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestOpen_CreatesLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "cache")

	c, err := Open(root, time.Second)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, root, c.Root())
	assert.FileExists(t, filepath.Join(root, "cache.db"))
	assert.Equal(t, filepath.Join(root, "artifacts", "abc"), c.ArtifactDir("abc"))
	assert.Equal(t, filepath.Join(root, "downloads", "abc.tar.gz"), c.DownloadPath("abc", ".tar.gz"))
}

func TestOpen_LockTimeout(t *testing.T) {
	root := t.TempDir()

	first, err := Open(root, time.Second)
	require.NoError(t, err)
	defer first.Close()

	_, err = Open(root, 50*time.Millisecond)
	assert.Error(t, err, "a second open must wait for the lock and time out")
}

func TestCache_RecordGet(t *testing.T) {
	c := openTestCache(t)

	entry, err := c.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, entry)

	want := &Entry{
		Key:       "abc",
		URL:       "https://example.com/a.tar.gz",
		Platform:  "x86_64-linux-gnu",
		Variant:   "default",
		Release:   "1.0",
		Files:     []string{"libmachdxcompiler.a"},
		Timestamp: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, c.Record(want))

	got, err := c.Get("abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.URL, got.URL)
	assert.Equal(t, want.Platform, got.Platform)
	assert.Equal(t, want.Files, got.Files)
	assert.True(t, want.Timestamp.Equal(got.Timestamp))

	assert.Error(t, c.Record(&Entry{}), "entries without a key are rejected")
}

func TestCache_ListNewestFirst(t *testing.T) {
	c := openTestCache(t)
	now := time.Now()

	require.NoError(t, c.Record(&Entry{Key: "old", Timestamp: now.Add(-time.Hour)}))
	require.NoError(t, c.Record(&Entry{Key: "new", Timestamp: now}))

	entries, err := c.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "new", entries[0].Key)
	assert.Equal(t, "old", entries[1].Key)
}

func populate(t *testing.T, c *Cache, key string) *Entry {
	t.Helper()

	dir := c.ArtifactDir(key)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "libmachdxcompiler.a"), []byte("0123456789"), 0o644))

	archive := c.DownloadPath(key, ".tar.gz")
	require.NoError(t, os.MkdirAll(filepath.Dir(archive), 0o755))
	require.NoError(t, os.WriteFile(archive, []byte("12345"), 0o644))

	entry := &Entry{Key: key, Dir: dir, ArchivePath: archive, Timestamp: time.Now()}
	require.NoError(t, c.Record(entry))

	return entry
}

func TestCache_Stats(t *testing.T) {
	c := openTestCache(t)

	count, size, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, int64(0), size)

	populate(t, c, "one")
	populate(t, c, "two")

	count, size, err = c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, int64(30), size)
}

func TestCache_Remove(t *testing.T) {
	c := openTestCache(t)
	entry := populate(t, c, "one")
	populate(t, c, "two")

	require.NoError(t, c.Remove("one"))

	assert.NoDirExists(t, entry.Dir)
	assert.NoFileExists(t, entry.ArchivePath)

	got, err := c.Get("one")
	require.NoError(t, err)
	assert.Nil(t, got)

	other, err := c.Get("two")
	require.NoError(t, err)
	assert.NotNil(t, other)
}

func TestCache_RemoveUnindexedArchive(t *testing.T) {
	c := openTestCache(t)
	populate(t, c, "indexed")

	// An archive that failed to extract is on disk without an index entry
	archive := c.DownloadPath("corrupt", ".tar.gz")
	require.NoError(t, os.WriteFile(archive, []byte("garbage"), 0o644))

	keys, err := c.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"corrupt", "indexed"}, keys)

	require.NoError(t, c.Remove("corrupt"))
	assert.NoFileExists(t, archive)
	assert.FileExists(t, c.DownloadPath("indexed", ".tar.gz"))

	keys, err = c.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"indexed"}, keys)
}

func TestCache_KeysIncludesArtifactDirs(t *testing.T) {
	c := openTestCache(t)
	require.NoError(t, os.MkdirAll(c.ArtifactDir("orphan"), 0o755))

	keys, err := c.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"orphan"}, keys)
}

func TestCache_Clear(t *testing.T) {
	c := openTestCache(t)
	populate(t, c, "one")

	require.NoError(t, c.Clear())

	entries, err := c.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoDirExists(t, filepath.Join(c.Root(), "artifacts"))
	assert.NoDirExists(t, filepath.Join(c.Root(), "downloads"))

	// Usable after clearing
	require.NoError(t, c.Record(&Entry{Key: "again", Timestamp: time.Now()}))
}
