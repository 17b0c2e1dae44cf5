package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "empty"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib", "libmachdxcompiler.a"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "LICENSE"), []byte("b"), 0o644))

	files, err := CollectFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"LICENSE", "lib/libmachdxcompiler.a"}, files)
}

func TestCollectFiles_MissingDir(t *testing.T) {
	files, err := CollectFiles(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestDirSize(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), []byte("1234"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b"), []byte("12"), 0o644))

	size, err := DirSize(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(6), size)

	size, err = DirSize(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
}
