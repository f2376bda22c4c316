package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Dir reads documents from a local copy of the archive.
type Dir struct {
	origin
	root string
}

// NewDir creates a directory origin. The directory must exist.
func NewDir(root string, layout Layout) (*Dir, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("source: dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source: %s is not a directory", root)
	}
	d := &Dir{root: root}
	d.origin = origin{layout: layout.withDefaults(), get: d.get}
	return d, nil
}

// Root returns the directory being served.
func (d *Dir) Root() string { return d.root }

func (d *Dir) get(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(d.root, filepath.FromSlash(p)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &StatusError{Path: p, Code: 404}
	}
	if err != nil {
		return nil, fmt.Errorf("source: read %s: %w", p, err)
	}
	return data, nil
}
