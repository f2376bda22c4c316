package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/asheshgoplani/archive-deck/internal/archive"
	"github.com/asheshgoplani/archive-deck/internal/cache"
	"github.com/asheshgoplani/archive-deck/internal/config"
	"github.com/asheshgoplani/archive-deck/internal/history"
	"github.com/asheshgoplani/archive-deck/internal/logging"
	"github.com/asheshgoplani/archive-deck/internal/source"
)

// app is one wired engine: origin, optional persistent cache, loader,
// history and engine.
type app struct {
	cfg     *config.Config
	db      *cache.DB
	loader  *archive.Loader
	history *history.History
	engine  *archive.Engine

	stopWatch context.CancelFunc
}

// openApp wires an engine from cfg. tweak, when set, adjusts the engine
// options before construction.
func openApp(cfg *config.Config, requested string, tweak func(*archive.Options)) (*app, error) {
	src, err := cfg.NewSource()
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}

	db, err := cfg.OpenCache()
	if err != nil {
		return nil, err
	}
	var c archive.Cache
	if db != nil {
		c = db
	}

	opts := cfg.EngineOptions()
	if tweak != nil {
		tweak(&opts)
	}

	a := &app{
		cfg:     cfg,
		db:      db,
		loader:  archive.NewLoader(src, c),
		history: history.New(requested),
	}
	a.engine = archive.New(a.loader, a.history, opts)

	if dir, ok := src.(*source.Dir); ok && db != nil {
		a.watchDir(dir)
	}
	return a, nil
}

// watchDir evicts cached copies of documents rewritten in a local archive,
// so the next load reads the new file.
func (a *app) watchDir(dir *source.Dir) {
	ctx, cancel := context.WithCancel(context.Background())
	log := logging.ForComponent(logging.CompCache)
	err := dir.Watch(ctx, func(c source.Change) {
		key := c.Year
		if c.Index {
			key = archive.IndexKey
		}
		if err := a.db.Delete(ctx, key); err != nil {
			log.Warn("cache_evict_failed", slog.String("key", key), slog.String("error", err.Error()))
			return
		}
		log.Info("cache_evicted", slog.String("key", key))
	})
	if err != nil {
		cancel()
		log.Warn("dir_watch_unavailable", slog.String("error", err.Error()))
		return
	}
	a.stopWatch = cancel
}

// Close stops the engine, drains pending cache writes and closes the cache.
func (a *app) Close() {
	if a.stopWatch != nil {
		a.stopWatch()
	}
	a.engine.Close()
	if a.db != nil {
		_ = a.db.Close()
	}
}
