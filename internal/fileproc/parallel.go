// Package fileproc provides concurrent file processing utilities.
package fileproc

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// ProcessingError represents an error that occurred while processing a file.
type ProcessingError struct {
	Path string
	Err  error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e ProcessingError) Unwrap() error {
	return e.Err
}

// ProcessingErrors collects multiple file processing errors.
type ProcessingErrors struct {
	Errors []ProcessingError
	mu     sync.Mutex
}

// Add appends an error to the collection (thread-safe).
func (e *ProcessingErrors) Add(path string, err error) {
	e.mu.Lock()
	e.Errors = append(e.Errors, ProcessingError{Path: path, Err: err})
	e.mu.Unlock()
}

// HasErrors returns true if any errors were collected.
func (e *ProcessingErrors) HasErrors() bool {
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors) > 0
}

// Sorted returns the collected errors ordered by path.
func (e *ProcessingErrors) Sorted() []ProcessingError {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ProcessingError, len(e.Errors))
	copy(out, e.Errors)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Error implements the error interface.
func (e *ProcessingErrors) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d files failed to process (first: %v)", len(e.Errors), e.Errors[0])
}

// DefaultWorkerMultiplier is the multiplier applied to NumCPU for worker count.
// Per-file work is mostly I/O bound.
const DefaultWorkerMultiplier = 2

// DefaultWorkers returns the worker count used when none is configured.
func DefaultWorkers() int {
	return runtime.NumCPU() * DefaultWorkerMultiplier
}

// ProgressFunc is called after each file is processed.
type ProgressFunc func()

// Option configures a parallel run.
type Option func(*options)

type options struct {
	workers    int
	onProgress ProgressFunc
}

// WithWorkers bounds the number of concurrent workers. Values <= 0 select
// DefaultWorkers.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithProgress registers a callback invoked once per file, whether it
// succeeded, failed or was cancelled.
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) {
		o.onProgress = fn
	}
}

// ForEachFile processes files in parallel with context cancellation support.
// Successful results are returned in the order of files, independent of
// scheduling. Failed files are left out of the results and reported in the
// returned ProcessingErrors, which is nil when every file succeeded.
// Files not yet started when ctx is cancelled are recorded with ctx.Err().
func ForEachFile[T any](ctx context.Context, files []string, fn func(string) (T, error), opts ...Option) ([]T, *ProcessingErrors) {
	if len(files) == 0 {
		return nil, nil
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers <= 0 {
		o.workers = DefaultWorkers()
	}

	slots := make([]T, len(files))
	ok := make([]bool, len(files))
	errs := &ProcessingErrors{}

	p := pool.New().WithMaxGoroutines(o.workers).WithContext(ctx)
	for i, path := range files {
		p.Go(func(ctx context.Context) error {
			if o.onProgress != nil {
				defer o.onProgress()
			}

			// Check for cancellation before processing
			select {
			case <-ctx.Done():
				errs.Add(path, ctx.Err())
				return nil
			default:
			}

			result, err := fn(path)
			if err != nil {
				errs.Add(path, err)
				return nil // Don't stop pool on individual file errors
			}

			// Each goroutine owns its slot.
			slots[i] = result
			ok[i] = true
			return nil
		})
	}
	_ = p.Wait() // Errors are captured in errs

	results := make([]T, 0, len(files))
	for i := range slots {
		if ok[i] {
			results = append(results, slots[i])
		}
	}

	if !errs.HasErrors() {
		return results, nil
	}
	return results, errs
}
