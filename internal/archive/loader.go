package archive

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/asheshgoplani/archive-deck/internal/logging"
)

var loadLog = logging.ForComponent(logging.CompLoader)

// IndexKey is the cache key of the index document. Year shards use the
// year string as key.
const IndexKey = "index"

// cacheWriteTimeout bounds a single fire-and-forget cache write.
const cacheWriteTimeout = 10 * time.Second

// Source fetches raw documents from the archive origin.
type Source interface {
	FetchIndex(ctx context.Context) ([]byte, error)
	FetchShard(ctx context.Context, year string) ([]byte, error)
}

// Cache persists raw documents across sessions. Get reports an absent key
// with an error wrapping ErrCacheMiss. Every Get error falls through to the
// origin; failures other than a miss, and all Put failures, are logged.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, doc []byte) error
}

// Loader resolves the index and year shards: resident first, then the
// persistent cache, then the origin. Resident shards are never evicted.
type Loader struct {
	src   Source
	cache Cache
	group singleflight.Group

	mu     sync.RWMutex
	index  *Index
	shards map[string]Shard
	loaded yearSet // successful loads
	failed yearSet // attempts that ended in error

	writes sync.WaitGroup
}

// NewLoader creates a loader. cache may be nil.
func NewLoader(src Source, cache Cache) *Loader {
	return &Loader{
		src:    src,
		cache:  cache,
		shards: make(map[string]Shard),
		loaded: newYearSet(),
		failed: newYearSet(),
	}
}

// Index returns the loaded index, or nil.
func (l *Loader) Index() *Index {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.index
}

// LoadIndex returns the session index, loading it once.
func (l *Loader) LoadIndex(ctx context.Context) (*Index, error) {
	if idx := l.Index(); idx != nil {
		return idx, nil
	}

	ch := l.group.DoChan(IndexKey, func() (any, error) {
		if idx := l.Index(); idx != nil {
			return idx, nil
		}
		fctx := context.WithoutCancel(ctx)

		if data, ok := l.cacheGet(fctx, IndexKey); ok {
			idx, err := ParseIndex(data)
			if err == nil {
				loadLog.Debug("index_cache_hit", slog.Int("dates", idx.Len()))
				return l.setIndex(idx), nil
			}
			l.logCacheError(&CacheError{Op: "decode", Key: IndexKey, Cause: err})
		}

		data, err := l.src.FetchIndex(fctx)
		if err != nil {
			return nil, &IndexLoadError{Status: statusOf(err), Cause: err}
		}
		idx, err := ParseIndex(data)
		if err != nil {
			return nil, &IndexLoadError{Cause: err}
		}
		l.writeThrough(IndexKey, data)
		loadLog.Info("index_fetched", slog.Int("dates", idx.Len()), slog.Int("bytes", len(data)))
		return l.setIndex(idx), nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Index), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Loader) setIndex(idx *Index) *Index {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.index == nil {
		l.index = idx
	}
	return l.index
}

// LoadYear returns the shard for year, fetching it at most once per session
// on success. Concurrent callers for the same year share one fetch. A year
// whose previous load failed is attempted again.
func (l *Loader) LoadYear(ctx context.Context, year string) (Shard, error) {
	if s, ok := l.Resident(year); ok {
		return s, nil
	}

	ch := l.group.DoChan("year:"+year, func() (any, error) {
		if s, ok := l.Resident(year); ok {
			return s, nil
		}
		// The fetch outlives a canceled caller so other waiters still get it.
		fctx := context.WithoutCancel(ctx)
		s, err := l.fetchYear(fctx, year)
		if err != nil {
			l.mu.Lock()
			l.failed.add(year)
			l.mu.Unlock()
			return nil, err
		}
		l.mu.Lock()
		if existing, ok := l.shards[year]; ok {
			s = existing
		} else {
			l.shards[year] = s
		}
		l.loaded.add(year)
		l.failed.remove(year)
		l.mu.Unlock()
		return s, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Shard), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Loader) fetchYear(ctx context.Context, year string) (Shard, error) {
	if data, ok := l.cacheGet(ctx, year); ok {
		s, err := ParseShard(data)
		if err == nil {
			logging.Aggregate(logging.CompLoader, "shard_cache_hit", slog.String("year", year))
			return s, nil
		}
		l.logCacheError(&CacheError{Op: "decode", Key: year, Cause: err})
	}

	start := time.Now()
	data, err := l.src.FetchShard(ctx, year)
	if err != nil {
		return nil, &ShardLoadError{Year: year, Status: statusOf(err), Cause: err}
	}
	s, err := ParseShard(data)
	if err != nil {
		return nil, &ShardLoadError{Year: year, Cause: err}
	}
	l.writeThrough(year, data)
	loadLog.Info("shard_fetched",
		slog.String("year", year),
		slog.Int("comics", len(s)),
		slog.Int("bytes", len(data)),
		slog.Duration("elapsed", time.Since(start)))
	return s, nil
}

func (l *Loader) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if l.cache == nil {
		return nil, false
	}
	data, err := l.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			l.logCacheError(&CacheError{Op: "get", Key: key, Cause: err})
		}
		return nil, false
	}
	return data, true
}

// writeThrough stores doc in the cache without blocking the caller.
func (l *Loader) writeThrough(key string, doc []byte) {
	if l.cache == nil {
		return
	}
	l.writes.Add(1)
	go func() {
		defer l.writes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
		defer cancel()
		if err := l.cache.Put(ctx, key, doc); err != nil {
			l.logCacheError(&CacheError{Op: "put", Key: key, Cause: err})
		}
	}()
}

func (l *Loader) logCacheError(err *CacheError) {
	loadLog.Warn("cache_error",
		slog.String("op", err.Op),
		slog.String("key", err.Key),
		slog.String("error", err.Cause.Error()))
}

// Wait blocks until pending cache writes have finished.
func (l *Loader) Wait() {
	l.writes.Wait()
}

// Resident returns the in-memory shard for year.
func (l *Loader) Resident(year string) (Shard, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.shards[year]
	return s, ok
}

// ResidentYears returns the resident years in ascending order.
func (l *Loader) ResidentYears() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	years := make([]string, 0, len(l.shards))
	for y := range l.shards {
		years = append(years, y)
	}
	sort.Strings(years)
	return years
}

// residentShards returns a copy of the resident map. Shards are immutable,
// so the copy is safe to scan without the lock.
func (l *Loader) residentShards() map[string]Shard {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]Shard, len(l.shards))
	for y, s := range l.shards {
		out[y] = s
	}
	return out
}

// IsLoaded reports whether year has loaded successfully.
func (l *Loader) IsLoaded(year string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loaded.contains(year)
}

// Settled reports whether year is resident or has had a load attempt that
// ended, successful or not. Prefetchers skip settled years.
func (l *Loader) Settled(year string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, ok := l.shards[year]; ok {
		return true
	}
	return l.loaded.contains(year) || l.failed.contains(year)
}

// Comic returns the resident record for date.
func (l *Loader) Comic(date string) (Comic, bool) {
	s, ok := l.Resident(YearOf(date))
	if !ok {
		return Comic{}, false
	}
	c, ok := s[date]
	return c, ok
}
