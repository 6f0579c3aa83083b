// Package audit runs a full dependency audit of a JavaScript/TypeScript
// project: it scans source files, analyzes each one in parallel, and
// reconciles the imported packages against package.json.
package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"

	"github.com/panbanda/depaudit/internal/cache"
	"github.com/panbanda/depaudit/internal/fileproc"
	"github.com/panbanda/depaudit/internal/scanner"
	"github.com/panbanda/depaudit/pkg/config"
	"github.com/panbanda/depaudit/pkg/manifest"
	"github.com/panbanda/depaudit/pkg/models"
	"github.com/panbanda/depaudit/pkg/reconcile"
	"github.com/panbanda/depaudit/pkg/usage"
)

// ProgressFunc reports per-file progress. It is called once with current == 0
// before any file is analyzed, then once per file from worker goroutines.
type ProgressFunc func(current, total int)

type options struct {
	config      *config.Config
	excludeDirs []string
	extensions  []string
	resolver    reconcile.VersionResolver
	installed   bool
	workers     int
	progress    ProgressFunc
	cache       *cache.Cache
}

// Option configures Validate.
type Option func(*options)

// WithConfig uses cfg instead of the configuration file found under root.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// WithExcludeDirs replaces the directory names skipped during the scan.
func WithExcludeDirs(dirs []string) Option {
	return func(o *options) {
		o.excludeDirs = dirs
	}
}

// WithExtensions replaces the file extensions that are scanned.
func WithExtensions(exts []string) Option {
	return func(o *options) {
		o.extensions = exts
	}
}

// WithInstalledResolver compares declared versions against the versions
// fn reports instead of comparing the two manifest groups.
func WithInstalledResolver(fn reconcile.VersionResolver) Option {
	return func(o *options) {
		o.resolver = fn
	}
}

// WithInstalledVersions enables installed mode using the packages under
// root/node_modules.
func WithInstalledVersions(enabled bool) Option {
	return func(o *options) {
		o.installed = enabled
	}
}

// WithWorkers bounds the number of files analyzed concurrently.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// WithCache serves extraction results from c.
func WithCache(c *cache.Cache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// Validate audits the project at root. An empty root means the current
// working directory. The returned error is non-nil only for conditions that
// prevent a report: an inaccessible root, a config file under root that
// cannot be loaded, a missing or malformed manifest, or cancellation of ctx.
// Unreadable files become report warnings.
func Validate(ctx context.Context, root string, opts ...Option) (*models.ProjectReport, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve working directory: %w", err)
		}
		root = wd
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, &scanner.AccessError{Path: root, Err: err}
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, &scanner.AccessError{Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &scanner.AccessError{Path: root, Err: scanner.ErrNotDirectory}
	}

	cfg, err := effectiveConfig(absRoot, o)
	if err != nil {
		return nil, err
	}

	m, err := manifest.Load(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	scan := scanner.NewScanner(cfg)
	files, err := scan.ScanDir(absRoot)
	if err != nil {
		return nil, err
	}

	report := models.NewProjectReport(absRoot)
	report.Warnings = append(report.Warnings, scan.Warnings()...)

	files, oversized := scanner.FilterBySize(files, cfg.Scan.MaxFileSize)
	for _, f := range oversized {
		report.Warnings = append(report.Warnings, models.Warning{
			Path:    relPath(absRoot, f),
			Message: fmt.Sprintf("skipped file larger than %d bytes", cfg.Scan.MaxFileSize),
		})
	}

	c := o.cache
	if c == nil && cfg.Cache.Enabled {
		if c, err = cache.New(cache.ResolveDir(absRoot, cfg.Cache.Dir), cfg.Cache.TTL, true); err != nil {
			report.Warnings = append(report.Warnings, models.Warning{
				Path:    cfg.Cache.Dir,
				Message: "cache disabled: " + err.Error(),
			})
			c = nil
		}
	}

	analyzer := usage.New(usage.WithResolveExtensions(cfg.Audit.ResolveExtensions))
	analyze := func(path string) (models.FileAnalysis, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return models.FileAnalysis{}, err
		}
		rel := relPath(absRoot, path)
		decls := c.Extract(rel, data)
		return analyzer.Analyze(path, rel, string(data), decls), nil
	}

	procOpts := []fileproc.Option{fileproc.WithWorkers(workerCount(cfg, o))}
	if o.progress != nil {
		total := len(files)
		var done atomic.Int64
		o.progress(0, total)
		procOpts = append(procOpts, fileproc.WithProgress(func() {
			o.progress(int(done.Add(1)), total)
		}))
	}

	perFile, procErrs := fileproc.ForEachFile(ctx, files, analyze, procOpts...)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, pe := range procErrs.Sorted() {
		report.Warnings = append(report.Warnings, models.Warning{
			Path:    relPath(absRoot, pe.Path),
			Message: "skipped unreadable file: " + pe.Err.Error(),
		})
	}

	sort.Slice(perFile, func(i, j int) bool { return perFile[i].Path < perFile[j].Path })
	if perFile != nil {
		report.PerFile = perFile
	}

	importPaths := make([][]string, len(report.PerFile))
	for i, f := range report.PerFile {
		importPaths[i] = f.ImportPaths
	}

	result := reconcile.Reconcile(reconcile.Input{
		ImportPaths:  importPaths,
		Runtime:      m.Runtime,
		Dev:          m.Dev,
		Resolver:     versionResolver(absRoot, cfg, o),
		Ignore:       cfg.Audit.Ignore,
		SkipBuiltins: cfg.Audit.SkipBuiltins,
	})
	report.UnusedDependencies = result.Unused
	report.MissingDependencies = result.Missing
	report.MismatchedDependencies = result.Mismatched

	sort.SliceStable(report.Warnings, func(i, j int) bool {
		return report.Warnings[i].Path < report.Warnings[j].Path
	})
	report.Summarize(len(result.Declared), len(result.Used))
	report.Fingerprint = report.ComputeFingerprint()

	return report, nil
}

// effectiveConfig returns the configuration for this run with option
// overrides applied. The caller's config is never modified.
func effectiveConfig(root string, o *options) (*config.Config, error) {
	var cfg config.Config
	if o.config != nil {
		cfg = *o.config
	} else {
		loaded, err := config.LoadOrDefault(root)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}
	if o.excludeDirs != nil {
		cfg.Exclude.Dirs = o.excludeDirs
	}
	if len(o.extensions) > 0 {
		cfg.Scan.Extensions = o.extensions
	}
	if o.installed {
		cfg.Audit.InstalledVersions = true
	}
	return &cfg, nil
}

func workerCount(cfg *config.Config, o *options) int {
	if o.workers > 0 {
		return o.workers
	}
	return cfg.Scan.Workers
}

func versionResolver(root string, cfg *config.Config, o *options) reconcile.VersionResolver {
	if o.resolver != nil {
		return o.resolver
	}
	if cfg.Audit.InstalledVersions {
		return reconcile.VersionResolver(manifest.InstalledResolver(root))
	}
	return nil
}

// relPath returns path relative to root with forward slashes.
func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
