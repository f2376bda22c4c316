package config

import (
	"fmt"
	"os"
	"time"

	"github.com/asheshgoplani/archive-deck/internal/archive"
	"github.com/asheshgoplani/archive-deck/internal/cache"
	"github.com/asheshgoplani/archive-deck/internal/logging"
	"github.com/asheshgoplani/archive-deck/internal/source"
)

// EngineOptions translates the prefetch and search sections.
func (c *Config) EngineOptions() archive.Options {
	opts := archive.DefaultOptions()
	p := c.Prefetch
	opts.Background = p.GetBackground()
	opts.Adjacent = p.GetAdjacent()
	opts.MinYear = p.MinYear
	opts.MaxYear = p.MaxYear
	if p.Order == string(archive.OrderOldest) {
		opts.Order = archive.OrderOldest
	}
	if p.SuccessDelayMs > 0 {
		opts.SuccessDelay = time.Duration(p.SuccessDelayMs) * time.Millisecond
	}
	if p.SkipDelayMs > 0 {
		opts.SkipDelay = time.Duration(p.SkipDelayMs) * time.Millisecond
	}

	s := c.Search
	if s.DebounceMs > 0 {
		opts.Debounce = time.Duration(s.DebounceMs) * time.Millisecond
	}
	if s.ExcerptRadius > 0 {
		opts.ExcerptRadius = s.ExcerptRadius
	}
	if s.PreviewLen > 0 {
		opts.PreviewLen = s.PreviewLen
	}
	return opts
}

// Layout returns the origin document layout.
func (s *SourceSettings) Layout() source.Layout {
	return source.Layout{IndexPath: s.IndexPath, ShardDir: s.ShardDir}
}

// NewSource builds the configured origin.
func (c *Config) NewSource() (archive.Source, error) {
	s := c.Source
	switch s.GetKind() {
	case "dir":
		if s.Dir == "" {
			return nil, fmt.Errorf("config: [source] kind = \"dir\" needs dir")
		}
		d, err := source.NewDir(expandHome(s.Dir), s.Layout())
		if err != nil {
			return nil, err
		}
		return d, nil
	case "s3":
		o, err := source.NewObjectStore(source.ObjectStoreConfig{
			Endpoint:  s.S3.Endpoint,
			Bucket:    s.S3.Bucket,
			Prefix:    s.S3.Prefix,
			AccessKey: s.S3.AccessKey,
			SecretKey: s.S3.SecretKey,
			Region:    s.S3.Region,
			UseSSL:    s.S3.UseSSL,
			Layout:    s.Layout(),
		})
		if err != nil {
			return nil, err
		}
		return o, nil
	}
	limit, burst := s.GetRateLimit()
	h, err := source.NewHTTP(s.GetBaseURL(), source.HTTPOptions{
		Layout:    s.Layout(),
		Timeout:   s.GetTimeout(),
		RateLimit: limit,
		Burst:     burst,
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// OpenCache opens the persistent cache, or returns nil when disabled.
func (c *Config) OpenCache() (*cache.DB, error) {
	if !c.Cache.GetEnabled() {
		return nil, nil
	}
	return cache.Open(c.Cache.GetPath(), cache.Options{Compress: c.Cache.GetCompress()})
}

// LoggingConfig translates the logs section. debug is forced on by the
// ARCHIVEDECK_DEBUG environment variable.
func (c *Config) LoggingConfig(debug bool) logging.Config {
	if os.Getenv(DebugEnv) != "" {
		debug = true
	}
	dir, _ := Dir()
	l := c.Logs
	ringMB := l.RingBufferMB
	if ringMB <= 0 {
		ringMB = 4
	}
	return logging.Config{
		LogDir:                dir,
		Level:                 l.DebugLevel,
		Format:                l.DebugFormat,
		MaxSizeMB:             l.DebugMaxMB,
		MaxBackups:            l.DebugBackups,
		MaxAgeDays:            l.DebugRetentionDays,
		Compress:              l.DebugCompress,
		RingBufferSize:        ringMB * 1024 * 1024,
		AggregateIntervalSecs: l.AggregateIntervalSecs,
		PprofEnabled:          l.PprofEnabled,
		Debug:                 debug,
	}
}
