package archive

import (
	"errors"
	"fmt"
)

var (
	// ErrDateNotFound is returned when a selected date is not in the index.
	ErrDateNotFound = errors.New("archive: date not in index")
	// ErrNotReady is returned when an operation runs before startup finished
	// or after it failed.
	ErrNotReady = errors.New("archive: engine not ready")
	// ErrEmptyArchive is wrapped by IndexLoadError when the index lists no dates.
	ErrEmptyArchive = errors.New("archive: index has no dates")
	// ErrCacheMiss is wrapped by Cache.Get when nothing is stored under a key.
	// Any other Get error is a cache failure and gets logged.
	ErrCacheMiss = errors.New("archive: cache miss")

	errAlreadyStarted = errors.New("archive: engine already started")
)

// NoticeDateNotFound is the user-facing notice for ErrDateNotFound.
const NoticeDateNotFound = "No comic available for the selected date."

// IndexLoadError means no usable index could be obtained. Startup fatal.
type IndexLoadError struct {
	Status int
	Cause  error
}

func (e *IndexLoadError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("archive: load index: status %d: %v", e.Status, e.Cause)
	}
	return fmt.Sprintf("archive: load index: %v", e.Cause)
}

func (e *IndexLoadError) Unwrap() error { return e.Cause }

// ShardLoadError reports a failed year load. Status is the origin's status
// code when it reported one.
type ShardLoadError struct {
	Year   string
	Status int
	Cause  error
}

func (e *ShardLoadError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("archive: load year %s: status %d: %v", e.Year, e.Status, e.Cause)
	}
	return fmt.Sprintf("archive: load year %s: %v", e.Year, e.Cause)
}

func (e *ShardLoadError) Unwrap() error { return e.Cause }

// CacheError describes a persistent cache failure. It is logged, never
// returned from a load.
type CacheError struct {
	Op    string
	Key   string
	Cause error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("archive: cache %s %q: %v", e.Op, e.Key, e.Cause)
}

func (e *CacheError) Unwrap() error { return e.Cause }

// statusOf extracts an origin status code from err, or 0.
func statusOf(err error) int {
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}
