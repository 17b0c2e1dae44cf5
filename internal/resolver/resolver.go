// Package resolver runs the artifact pipeline: resolve the target, build the
// release URL, fetch the archive into the cache, extract it and produce the
// link directive.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Norgate-AV/machdxc/internal/cache"
	"github.com/Norgate-AV/machdxc/internal/extract"
	"github.com/Norgate-AV/machdxc/internal/fetch"
	"github.com/Norgate-AV/machdxc/internal/link"
	"github.com/Norgate-AV/machdxc/internal/release"
	"github.com/Norgate-AV/machdxc/internal/target"
)

// Plan is everything that can be computed about a target without I/O.
type Plan struct {
	Descriptor target.Descriptor
	Platform   target.Platform
	Release    string
	URL        string
	Key        string
}

// NewPlan resolves d against ref. Unsupported targets fail here, before any
// network or filesystem access.
func NewPlan(d target.Descriptor, ref release.Reference) (Plan, error) {
	p, err := target.Resolve(d)
	if err != nil {
		return Plan{}, err
	}

	url := release.BuildURL(p, ref)

	return Plan{
		Descriptor: d,
		Platform:   p,
		Release:    ref.VersionFor(p),
		URL:        url,
		Key:        cache.Key(url),
	}, nil
}

// Result describes a completed run.
type Result struct {
	Plan
	Archive   string
	Dir       string
	Cached    bool
	Directive link.Directive
}

// Resolver fetches and extracts archives into a cache
type Resolver struct {
	cache     *cache.Cache
	transport fetch.Transport
	extractor extract.Extractor
	logger    *slog.Logger
	library   string
}

// New creates a resolver
func New(c *cache.Cache, t fetch.Transport, x extract.Extractor, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{
		cache:     c,
		transport: t,
		extractor: x,
		logger:    logger,
		library:   release.LibraryName,
	}
}

// Resolve makes the library for d available and returns its link directive.
func (r *Resolver) Resolve(ctx context.Context, d target.Descriptor, ref release.Reference) (*Result, error) {
	plan, err := NewPlan(d, ref)
	if err != nil {
		return nil, err
	}

	logger := r.logger.With("platform", plan.Platform.String(), "variant", plan.Platform.Variant.String())
	logger.Debug("resolved target", "url", plan.URL, "key", plan.Key)

	res := &Result{
		Plan:    plan,
		Archive: r.cache.DownloadPath(plan.Key, release.ArchiveExt),
		Dir:     r.cache.ArtifactDir(plan.Key),
	}

	if extract.IsPopulated(res.Dir) {
		res.Cached = true
		logger.Debug("using cached artifacts", "dir", res.Dir)
	} else {
		if fetch.IsCached(res.Archive) {
			logger.Debug("using cached archive", "archive", res.Archive)
		} else {
			logger.Info("downloading mach-dxcompiler", "url", plan.URL)
		}

		if err := fetch.Fetch(ctx, r.transport, plan.URL, res.Archive); err != nil {
			return nil, fmt.Errorf("failed to fetch mach-dxcompiler for %s: %w", plan.Platform, err)
		}

		if err := extract.Extract(ctx, r.extractor, res.Archive, res.Dir); err != nil {
			return nil, fmt.Errorf("failed to extract mach-dxcompiler for %s: %w", plan.Platform, err)
		}

		r.record(logger, res)
	}

	searchDir, found, err := link.LocateLibrary(res.Dir, r.library)
	if err != nil {
		return nil, err
	}
	if !found {
		logger.Warn("static library not found in archive, linking against the archive root", "library", r.library, "dir", res.Dir)
	}

	res.Directive = link.Directive{
		Library:    r.library,
		SearchDir:  searchDir,
		SystemLibs: link.SystemLibs(plan.Platform),
		Platform:   plan.Platform.String(),
		URL:        plan.URL,
	}

	return res, nil
}

// record indexes a freshly extracted entry. The index is informational, so
// failures are logged and do not fail the build.
func (r *Resolver) record(logger *slog.Logger, res *Result) {
	entry := &cache.Entry{
		Key:         res.Key,
		URL:         res.URL,
		Platform:    res.Platform.String(),
		Variant:     res.Platform.Variant.String(),
		Release:     res.Release,
		ArchivePath: res.Archive,
		Dir:         res.Dir,
		Timestamp:   time.Now(),
	}

	if info, err := os.Stat(res.Archive); err == nil {
		entry.ArchiveSize = info.Size()
	}

	if hash, err := cache.HashFile(res.Archive); err == nil {
		entry.ArchiveHash = hash
	}

	files, err := cache.CollectFiles(res.Dir)
	if err != nil {
		logger.Warn("failed to list extracted files", "error", err)
	}
	entry.Files = files

	if err := r.cache.Record(entry); err != nil {
		logger.Warn("failed to record cache entry", "error", err)
	}
}
