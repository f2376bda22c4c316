// Package source fetches archive documents from their origin: an HTTP
// server, a local directory, or an S3-compatible bucket. Every origin
// shares the same layout: one index document plus one document per year.
package source

import (
	"context"
	"errors"
	"fmt"
	"path"
)

// ErrNotFound matches any StatusError carrying a 404.
var ErrNotFound = errors.New("source: document not found")

// StatusError reports a non-success response from an origin.
type StatusError struct {
	Path string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("source: %s: status %d", e.Path, e.Code)
}

// StatusCode returns the origin status (HTTP semantics for every origin).
func (e *StatusError) StatusCode() int { return e.Code }

// Is lets errors.Is(err, ErrNotFound) match 404s.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == 404
}

// Layout names the documents inside an origin.
type Layout struct {
	// IndexPath is the index document, e.g. "comics-index.json".
	IndexPath string
	// ShardDir holds "<year>.json" documents, e.g. "comics-data".
	ShardDir string
}

// DefaultLayout matches the published archive.
func DefaultLayout() Layout {
	return Layout{IndexPath: "comics-index.json", ShardDir: "comics-data"}
}

func (l Layout) withDefaults() Layout {
	def := DefaultLayout()
	if l.IndexPath == "" {
		l.IndexPath = def.IndexPath
	}
	if l.ShardDir == "" {
		l.ShardDir = def.ShardDir
	}
	return l
}

// ShardPath returns the slash-separated path of a year document.
func (l Layout) ShardPath(year string) string {
	return path.Join(l.ShardDir, year+".json")
}

// ValidateYear rejects anything that is not a plain decimal year, so a year
// can never escape the shard directory.
func ValidateYear(year string) error {
	if year == "" || len(year) > 6 {
		return fmt.Errorf("source: invalid year %q", year)
	}
	for _, r := range year {
		if r < '0' || r > '9' {
			return fmt.Errorf("source: invalid year %q", year)
		}
	}
	return nil
}

// fetchFunc reads one document by layout path.
type fetchFunc func(ctx context.Context, p string) ([]byte, error)

// origin implements FetchIndex/FetchShard on top of a fetchFunc.
type origin struct {
	layout Layout
	get    fetchFunc
}

// FetchIndex reads the index document.
func (o origin) FetchIndex(ctx context.Context) ([]byte, error) {
	return o.get(ctx, o.layout.IndexPath)
}

// FetchShard reads the document for one year.
func (o origin) FetchShard(ctx context.Context, year string) ([]byte, error) {
	if err := ValidateYear(year); err != nil {
		return nil, err
	}
	return o.get(ctx, o.layout.ShardPath(year))
}
