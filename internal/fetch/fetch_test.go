package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/machdxc/internal/command"
)

// fakeTransport writes body to dest and counts calls
type fakeTransport struct {
	calls int
	body  []byte
	err   error
}

func (f *fakeTransport) Download(ctx context.Context, url, dest string) error {
	f.calls++

	if f.body != nil {
		if err := os.WriteFile(dest, f.body, 0o644); err != nil {
			return err
		}
	}

	return f.err
}

func TestFetch_Idempotent(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "downloads", "archive.tar.gz")
	transport := &fakeTransport{body: []byte("archive")}

	require.NoError(t, Fetch(context.Background(), transport, "https://example.com/a.tar.gz", dest))
	require.NoError(t, Fetch(context.Background(), transport, "https://example.com/a.tar.gz", dest))

	assert.Equal(t, 1, transport.calls, "second fetch should reuse the cached archive")
	assert.True(t, IsCached(dest))
}

func TestFetch_CleansUpOnFailure(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "archive.tar.gz")
	transport := &fakeTransport{body: []byte("partial"), err: fmt.Errorf("connection reset")}

	err := Fetch(context.Background(), transport, "https://example.com/a.tar.gz", dest)
	require.Error(t, err)

	var downloadErr *DownloadError
	require.ErrorAs(t, err, &downloadErr)
	assert.Equal(t, "https://example.com/a.tar.gz", downloadErr.URL)
	assert.Contains(t, err.Error(), "connection reset")

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr), "partial download must be removed")
}

func TestFetch_FailureWithoutPartialFile(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "archive.tar.gz")
	transport := &fakeTransport{err: fmt.Errorf("exit status 6")}

	err := Fetch(context.Background(), transport, "https://example.com/a.tar.gz", dest)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "failed to remove")
}

func TestFetch_ZeroLengthIsNotCached(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "archive.tar.gz")
	require.NoError(t, os.WriteFile(dest, nil, 0o644))

	transport := &fakeTransport{body: []byte("archive")}
	require.NoError(t, Fetch(context.Background(), transport, "https://example.com/a.tar.gz", dest))

	assert.Equal(t, 1, transport.calls)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "archive", string(data))
}

func TestFetch_EmptyTransferFails(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "archive.tar.gz")
	transport := &fakeTransport{body: []byte{}}

	err := Fetch(context.Background(), transport, "https://example.com/a.tar.gz", dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data")

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFetch_UnremovableDestinationIsFatal(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "archive.tar.gz")
	require.NoError(t, os.MkdirAll(filepath.Join(dest, "child"), 0o755))

	transport := &fakeTransport{body: []byte("archive")}
	err := Fetch(context.Background(), transport, "https://example.com/a.tar.gz", dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to remove partial download")
	assert.Equal(t, 0, transport.calls)
}

func TestHTTPTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ok.tar.gz" {
			_, _ = w.Write([]byte("payload"))
			return
		}

		http.NotFound(w, r)
	}))
	defer srv.Close()

	transport := NewHTTPTransport(0, nil)
	dir := t.TempDir()

	t.Run("success", func(t *testing.T) {
		dest := filepath.Join(dir, "ok.tar.gz")
		require.NoError(t, Fetch(context.Background(), transport, srv.URL+"/ok.tar.gz", dest))

		data, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(data))
	})

	t.Run("not found", func(t *testing.T) {
		dest := filepath.Join(dir, "missing.tar.gz")
		err := Fetch(context.Background(), transport, srv.URL+"/missing.tar.gz", dest)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 404")

		_, statErr := os.Stat(dest)
		assert.True(t, os.IsNotExist(statErr))
	})
}

type recordingCommander struct {
	run func() error
}

func (c *recordingCommander) Run() error {
	return c.run()
}

func TestCurlTransport(t *testing.T) {
	var gotName string
	var gotArgs []string

	runner := command.NewRunner(nil).WithExec(func(ctx context.Context, name string, args ...string) command.Commander {
		gotName = name
		gotArgs = args

		return &recordingCommander{run: func() error { return nil }}
	})

	transport := NewCurlTransport(runner, "")
	require.NoError(t, transport.Download(context.Background(), "https://example.com/a.tar.gz", "/tmp/a.tar.gz"))

	assert.Equal(t, "curl", gotName)
	assert.Equal(t, []string{
		"--fail", "--location", "--silent", "--show-error",
		"--output", "/tmp/a.tar.gz",
		"https://example.com/a.tar.gz",
	}, gotArgs)
}
