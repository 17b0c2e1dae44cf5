package resolver

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/machdxc/internal/cache"
	"github.com/Norgate-AV/machdxc/internal/extract"
	"github.com/Norgate-AV/machdxc/internal/fetch"
	"github.com/Norgate-AV/machdxc/internal/release"
	"github.com/Norgate-AV/machdxc/internal/target"
)

func libArchive(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	body := []byte("!<arch>\n")
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "lib/libmachdxcompiler.a", Mode: 0o644, Size: int64(len(body))}))
	_, err := tw.Write(body)
	require.NoError(t, err)

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	return buf.Bytes()
}

// requestLog records request paths served by releaseServer
type requestLog struct {
	mu    sync.Mutex
	paths []string
}

func (l *requestLog) add(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths = append(l.paths, path)
}

func (l *requestLog) Paths() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.paths...)
}

// releaseServer serves archive for every request
func releaseServer(t *testing.T, archive []byte, hits *atomic.Int32, log *requestLog) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if log != nil {
			log.add(r.URL.Path)
		}

		_, _ = w.Write(archive)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func newResolver(t *testing.T, transport fetch.Transport) (*Resolver, *cache.Cache) {
	t.Helper()

	c, err := cache.Open(t.TempDir(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	return New(c, transport, extract.NewArchiveExtractor(), nil), c
}

func TestResolve_EndToEnd(t *testing.T) {
	var hits atomic.Int32
	var log requestLog
	srv := releaseServer(t, libArchive(t), &hits, &log)

	r, c := newResolver(t, fetch.NewHTTPTransport(0, nil))
	ref := release.Reference{BaseURL: srv.URL, Version: "REL", MSVCVersion: "REL-MSVC"}
	d := target.Descriptor{Arch: "x86_64", OS: "linux", ABI: "gnu"}

	res, err := r.Resolve(context.Background(), d, ref)
	require.NoError(t, err)

	assert.Equal(t, "x86_64-linux-gnu", res.Platform.String())
	assert.Equal(t, srv.URL+"/REL/x86_64-linux-gnu_ReleaseFast_lib.tar.gz", res.URL)
	assert.Equal(t, cache.Key(res.URL), res.Key)
	assert.Equal(t, []string{"/REL/x86_64-linux-gnu_ReleaseFast_lib.tar.gz"}, log.Paths())
	assert.False(t, res.Cached)

	assert.Equal(t, c.ArtifactDir(res.Key), res.Dir)
	assert.True(t, extract.IsPopulated(res.Dir))
	assert.Equal(t, filepath.Join(res.Dir, "lib"), res.Directive.SearchDir)
	assert.Equal(t, release.LibraryName, res.Directive.Library)
	assert.Equal(t, "x86_64-linux-gnu", res.Directive.Platform)

	entry, err := c.Get(res.Key)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, res.URL, entry.URL)
	assert.Equal(t, "REL", entry.Release)
	assert.Equal(t, []string{"lib/libmachdxcompiler.a"}, entry.Files)
	assert.NotEmpty(t, entry.ArchiveHash)

	// Second run is served from the cache
	res2, err := r.Resolve(context.Background(), d, ref)
	require.NoError(t, err)
	assert.True(t, res2.Cached)
	assert.Equal(t, res.Directive, res2.Directive)
	assert.Equal(t, int32(1), hits.Load())
}

func TestResolve_ReextractsFromCachedArchive(t *testing.T) {
	var hits atomic.Int32
	srv := releaseServer(t, libArchive(t), &hits, nil)

	r, _ := newResolver(t, fetch.NewHTTPTransport(0, nil))
	ref := release.Reference{BaseURL: srv.URL, Version: "REL"}
	d := target.Descriptor{Arch: "aarch64", OS: "linux", ABI: "musl"}

	res, err := r.Resolve(context.Background(), d, ref)
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(res.Dir))

	res, err = r.Resolve(context.Background(), d, ref)
	require.NoError(t, err)
	assert.True(t, extract.IsPopulated(res.Dir))
	assert.Equal(t, int32(1), hits.Load(), "the archive is still cached")
}

func TestResolve_MacOSNormalization(t *testing.T) {
	var log requestLog
	var hits atomic.Int32
	srv := releaseServer(t, libArchive(t), &hits, &log)

	r, _ := newResolver(t, fetch.NewHTTPTransport(0, nil))
	ref := release.Reference{BaseURL: srv.URL, Version: "REL"}

	res, err := r.Resolve(context.Background(), target.Descriptor{Arch: "aarch64", Vendor: "apple", OS: "darwin"}, ref)
	require.NoError(t, err)
	assert.Equal(t, "aarch64-macos-none", res.Platform.String())
	assert.Equal(t, []string{"/REL/aarch64-macos-none_ReleaseFast_lib.tar.gz"}, log.Paths())
	assert.Equal(t, []string{"c++"}, res.Directive.SystemLibs)
}

// countingTransport records calls and fails
type countingTransport struct {
	calls int
	err   error
}

func (c *countingTransport) Download(ctx context.Context, url, dest string) error {
	c.calls++
	if err := os.WriteFile(dest, []byte("partial"), 0o644); err != nil {
		return err
	}

	return c.err
}

func TestResolve_UnsupportedTargetDoesNoIO(t *testing.T) {
	transport := &countingTransport{}
	r, c := newResolver(t, transport)

	_, err := r.Resolve(context.Background(), target.Descriptor{Arch: "riscv64", OS: "linux", ABI: "gnu"}, release.Default())
	require.Error(t, err)
	assert.True(t, target.IsUnsupported(err))
	assert.Equal(t, 0, transport.calls)

	assert.NoDirExists(t, filepath.Join(c.Root(), "downloads"))
	assert.NoDirExists(t, filepath.Join(c.Root(), "artifacts"))
}

func TestResolve_DownloadFailure(t *testing.T) {
	transport := &countingTransport{err: fmt.Errorf("connection refused")}
	r, _ := newResolver(t, transport)

	d := target.Descriptor{Arch: "x86_64", OS: "windows", ABI: "msvc", StaticCRT: true}
	ref := release.Reference{BaseURL: "https://example.invalid", Version: "1", MSVCVersion: "2"}

	_, err := r.Resolve(context.Background(), d, ref)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "x86_64-windows-msvc")
	assert.Contains(t, err.Error(), "connection refused")

	var downloadErr *fetch.DownloadError
	require.ErrorAs(t, err, &downloadErr)
	assert.Equal(t, "https://example.invalid/2/x86_64-windows-msvc_ReleaseFast_lib_static_crt.tar.gz", downloadErr.URL)

	plan, err := NewPlan(d, ref)
	require.NoError(t, err)
	assert.NoFileExists(t, r.cache.DownloadPath(plan.Key, release.ArchiveExt))
}

func TestResolve_ExtractFailure(t *testing.T) {
	var hits atomic.Int32
	srv := releaseServer(t, []byte("definitely not a gzip stream"), &hits, nil)

	r, _ := newResolver(t, fetch.NewHTTPTransport(0, nil))
	ref := release.Reference{BaseURL: srv.URL, Version: "REL"}

	_, err := r.Resolve(context.Background(), target.Descriptor{Arch: "x86_64", OS: "linux", ABI: "gnu"}, ref)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to extract mach-dxcompiler for x86_64-linux-gnu")

	var extractErr *extract.ExtractError
	assert.ErrorAs(t, err, &extractErr)
}

func TestNewPlan(t *testing.T) {
	ref := release.Reference{BaseURL: "https://example.com", Version: "1", MSVCVersion: "2"}

	plan, err := NewPlan(target.Descriptor{Arch: "x86_64", OS: "windows", ABI: "msvc"}, ref)
	require.NoError(t, err)
	assert.Equal(t, "2", plan.Release)
	assert.Equal(t, target.VariantDynamicCRT, plan.Platform.Variant)
	assert.Equal(t, "https://example.com/2/x86_64-windows-msvc_ReleaseFast_lib_dynamic_crt.tar.gz", plan.URL)
	assert.Equal(t, cache.Key(plan.URL), plan.Key)

	plan, err = NewPlan(target.Descriptor{Arch: "x86_64", OS: "linux", ABI: "gnu"}, ref)
	require.NoError(t, err)
	assert.Equal(t, "1", plan.Release)
	assert.Equal(t, target.VariantDefault, plan.Platform.Variant)
}
