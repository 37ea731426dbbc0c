package magic

import (
	"errors"
	"os"

	"github.com/jmgilman/go/magic/progress"
)

// Result holds the outcome of identifying one path in a batch. Exactly one
// of Value and Err is set.
type Result struct {
	// Value is the identification reported by the engine.
	Value string

	// Err is the failure recorded for this path.
	Err error
}

// ScanOption is a function that configures a single batch identification.
type ScanOption func(*scanConfig)

// scanConfig collects the options applied to one batch identification.
// trackerSet distinguishes an explicitly supplied nil tracker, which is a
// usage error, from no tracker at all.
type scanConfig struct {
	tracker              *progress.Tracker
	trackerSet           bool
	followSymlinks       bool
	skipPermissionDenied bool
}

func newScanConfig(opts ...ScanOption) *scanConfig {
	cfg := &scanConfig{
		followSymlinks:       true,
		skipPermissionDenied: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithTracker returns a ScanOption that shares tracker with the batch. The
// tracker is reset to one total step per path to process and advances one
// step per processed path. Supplying a nil tracker is a usage error.
func WithTracker(tracker *progress.Tracker) ScanOption {
	return func(c *scanConfig) {
		c.tracker = tracker
		c.trackerSet = true
	}
}

// WithFollowSymlinks returns a ScanOption that controls whether a
// directory scan descends into symlinked directories. The default is true.
func WithFollowSymlinks(follow bool) ScanOption {
	return func(c *scanConfig) {
		c.followSymlinks = follow
	}
}

// WithSkipPermissionDenied returns a ScanOption that controls whether a
// directory scan skips directories it is not allowed to read. The default
// is true.
func WithSkipPermissionDenied(skip bool) ScanOption {
	return func(c *scanConfig) {
		c.skipPermissionDenied = skip
	}
}

// IdentifyDirectory identifies every entry under root, recursing into
// subdirectories. It fails on the first entry that cannot be identified,
// leaving a supplied tracker at its partial progress.
func (m *Magic) IdentifyDirectory(root string, opts ...ScanOption) (map[string]string, error) {
	cfg := newScanConfig(opts...)

	if err := m.batchGate(cfg); err != nil {
		return nil, err
	}

	paths, err := m.scanDirectory(root, cfg)
	if err != nil {
		return nil, err
	}
	return m.identifyAll(paths, cfg.tracker)
}

// TryIdentifyDirectory identifies every entry under root, recording
// per-entry failures in the results instead of failing the batch. Failures
// not tied to a single entry abort the batch and are returned alongside
// the partial results. A supplied tracker is driven to completion whenever
// processing began, and on the closed and database-not-loaded
// short-circuits.
func (m *Magic) TryIdentifyDirectory(root string, opts ...ScanOption) (map[string]Result, error) {
	cfg := newScanConfig(opts...)

	if results, done := m.tryBatchGate(cfg); done {
		return results, nil
	}

	paths, err := m.scanDirectory(root, cfg)
	if err != nil {
		return map[string]Result{}, err
	}
	return m.tryIdentifyAll(paths, cfg.tracker)
}

// IdentifyFiles identifies every path in paths, in order, without any
// existence filtering up front. It fails on the first path that cannot be
// identified, leaving a supplied tracker at its partial progress.
// Duplicate paths overwrite rather than accumulate.
func (m *Magic) IdentifyFiles(paths []string, opts ...ScanOption) (map[string]string, error) {
	cfg := newScanConfig(opts...)

	if err := m.batchGate(cfg); err != nil {
		return nil, err
	}
	return m.identifyAll(paths, cfg.tracker)
}

// TryIdentifyFiles identifies every path in paths, in order, recording
// per-path failures in the results instead of failing the batch. An empty
// path is recorded and stops the remaining batch; failures outside the
// identification taxonomy abort it and are returned alongside the partial
// results. A supplied tracker is driven to completion whenever processing
// began, and on the closed and database-not-loaded short-circuits.
func (m *Magic) TryIdentifyFiles(paths []string, opts ...ScanOption) (map[string]Result, error) {
	cfg := newScanConfig(opts...)

	if results, done := m.tryBatchGate(cfg); done {
		return results, nil
	}
	return m.tryIdentifyAll(paths, cfg.tracker)
}

// batchGate validates the handle state and tracker before a batch starts.
// The tracker is not touched on any gate failure.
func (m *Magic) batchGate(cfg *scanConfig) error {
	if !m.IsOpen() {
		return ErrClosed
	}
	if !m.IsDatabaseLoaded() {
		return ErrDatabaseNotLoaded
	}
	if cfg.trackerSet && cfg.tracker == nil {
		return ErrNilTracker
	}
	return nil
}

// tryBatchGate mirrors batchGate for the recording variants, which report
// gate failures as zero work instead of an error. The closed and
// database-not-loaded short-circuits drive a supplied tracker to
// completion.
func (m *Magic) tryBatchGate(cfg *scanConfig) (map[string]Result, bool) {
	if !m.IsOpen() || !m.IsDatabaseLoaded() {
		if cfg.tracker != nil {
			cfg.tracker.MarkAsCompleted()
		}
		return map[string]Result{}, true
	}
	if cfg.trackerSet && cfg.tracker == nil {
		return map[string]Result{}, true
	}
	return nil, false
}

// scanDirectory validates root and enumerates every entry beneath it. The
// root itself is not part of the result.
func (m *Magic) scanDirectory(root string, cfg *scanConfig) ([]string, error) {
	if root == "" {
		return nil, ErrEmptyPath
	}

	info, err := m.fsys.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &PathError{Path: root, Err: ErrNotExist}
		}
		return nil, &FilesystemError{Op: "stat", Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &PathError{Path: root, Err: ErrNotDirectory}
	}

	return m.walk(root, cfg)
}

// walk collects the entries under dir in filesystem order, descending into
// subdirectories and, when configured, into symlinked directories.
func (m *Magic) walk(dir string, cfg *scanConfig) ([]string, error) {
	entries, err := m.fsys.ReadDir(dir)
	if err != nil {
		if cfg.skipPermissionDenied && os.IsPermission(err) {
			return nil, nil
		}
		return nil, &FilesystemError{Op: "read dir", Path: dir, Err: err}
	}

	var paths []string
	for _, entry := range entries {
		path := m.fsys.Join(dir, entry.Name())
		paths = append(paths, path)

		mode := entry.Mode()
		if mode&os.ModeSymlink != 0 {
			if !cfg.followSymlinks {
				continue
			}
			info, err := m.fsys.Stat(path)
			if err != nil {
				// Dangling links stay in the batch as entries but are
				// never descended into.
				if os.IsNotExist(err) || (cfg.skipPermissionDenied && os.IsPermission(err)) {
					continue
				}
				return nil, &FilesystemError{Op: "stat", Path: path, Err: err}
			}
			mode = info.Mode()
		}

		if !mode.IsDir() {
			continue
		}
		children, err := m.walk(path, cfg)
		if err != nil {
			return nil, err
		}
		paths = append(paths, children...)
	}
	return paths, nil
}

// identifyAll identifies paths one at a time, failing fast on the first
// error. A tracker sized to the batch is completed only when every path
// succeeded.
func (m *Magic) identifyAll(paths []string, tracker *progress.Tracker) (map[string]string, error) {
	if tracker != nil {
		tracker.Reset(uint64(len(paths)))
	}

	types := make(map[string]string, len(paths))
	for _, path := range paths {
		value, err := m.IdentifyFile(path)
		if err != nil {
			return nil, err
		}
		types[path] = value
		if tracker != nil {
			tracker.Advance(1)
		}
	}

	if tracker != nil {
		tracker.MarkAsCompleted()
	}
	return types, nil
}

// tryIdentifyAll identifies paths one at a time, recording failures per
// path. Retryable failures keep the batch running; an empty path stops it
// after being recorded, and permanent failures abort it. The tracker is
// completed on every exit path.
func (m *Magic) tryIdentifyAll(paths []string, tracker *progress.Tracker) (map[string]Result, error) {
	if tracker != nil {
		tracker.Reset(uint64(len(paths)))
		defer tracker.MarkAsCompleted()
	}

	results := make(map[string]Result, len(paths))
	for _, path := range paths {
		value, err := m.IdentifyFile(path)
		if err != nil {
			results[path] = Result{Err: err}
			if errors.Is(err, ErrEmptyPath) {
				break
			}
			if !classify(err).IsRetryable() {
				return results, err
			}
		} else {
			results[path] = Result{Value: value}
		}

		if tracker != nil {
			tracker.Advance(1)
		}
	}
	return results, nil
}
