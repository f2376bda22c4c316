package source

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the burst of events a single file save produces.
const watchDebounce = 200 * time.Millisecond

// Change names a document rewritten on disk: the index, or one year shard.
type Change struct {
	Index bool
	Year  string
}

// Watch reports documents rewritten under the directory until ctx is done.
// Events are debounced; each changed document is reported once per burst.
// Files outside the layout are ignored. A shard directory created after
// Watch starts is not picked up.
func (d *Dir) Watch(ctx context.Context, onChange func(Change)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("source: watch: %w", err)
	}
	indexDir := filepath.Dir(filepath.Join(d.root, filepath.FromSlash(d.layout.IndexPath)))
	shardDir := filepath.Join(d.root, filepath.FromSlash(d.layout.ShardDir))
	if err := w.Add(indexDir); err != nil {
		_ = w.Close()
		return fmt.Errorf("source: watch %s: %w", indexDir, err)
	}
	if shardDir != indexDir {
		if err := w.Add(shardDir); err != nil {
			sourceLog.Warn("watch_shard_dir_failed",
				slog.String("dir", shardDir),
				slog.String("error", err.Error()),
			)
		}
	}

	go d.watchLoop(ctx, w, onChange)
	return nil
}

func (d *Dir) watchLoop(ctx context.Context, w *fsnotify.Watcher, onChange func(Change)) {
	defer w.Close()

	var (
		mu      sync.Mutex
		pending = make(map[Change]bool)
		timer   *time.Timer
	)
	flush := func() {
		mu.Lock()
		batch := pending
		pending = make(map[Change]bool)
		mu.Unlock()
		for c := range batch {
			if ctx.Err() != nil {
				return
			}
			onChange(c)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
				continue
			}
			c, ok := d.changeFor(ev.Name)
			if !ok {
				continue
			}
			mu.Lock()
			pending[c] = true
			mu.Unlock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, flush)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			sourceLog.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}

// changeFor maps a file path inside the root to the document it holds.
func (d *Dir) changeFor(name string) (Change, bool) {
	rel, err := filepath.Rel(d.root, name)
	if err != nil {
		return Change{}, false
	}
	rel = filepath.ToSlash(rel)
	if rel == d.layout.IndexPath {
		return Change{Index: true}, true
	}
	dir, file := filepath.Split(filepath.FromSlash(rel))
	if filepath.ToSlash(filepath.Clean(dir)) != d.layout.ShardDir {
		return Change{}, false
	}
	year, ok := strings.CutSuffix(file, ".json")
	if !ok || ValidateYear(year) != nil {
		return Change{}, false
	}
	return Change{Year: year}, true
}
