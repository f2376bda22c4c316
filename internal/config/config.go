// Package config loads archive-deck's TOML configuration from
// ~/.archive-deck/config.toml. Unset values fall back to defaults in the
// Get* accessors, so a missing file is a valid configuration.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	dark "github.com/thiagokokada/dark-mode-go"
)

// FileName is the TOML config file inside Dir().
const FileName = "config.toml"

// HomeEnv overrides the config directory.
const HomeEnv = "ARCHIVEDECK_HOME"

// DebugEnv enables debug logging when set to a non-empty value.
const DebugEnv = "ARCHIVEDECK_DEBUG"

// Config is the user configuration.
type Config struct {
	Source   SourceSettings   `toml:"source"`
	Cache    CacheSettings    `toml:"cache"`
	Prefetch PrefetchSettings `toml:"prefetch"`
	Search   SearchSettings   `toml:"search"`
	UI       UISettings       `toml:"ui"`
	Web      WebSettings      `toml:"web"`
	Logs     LogSettings      `toml:"logs"`
}

// SourceSettings selects the archive origin.
type SourceSettings struct {
	// Kind is "http" (default), "dir" or "s3"
	Kind string `toml:"kind"`

	// BaseURL is the HTTP origin root (default: http://127.0.0.1:8421/data/)
	BaseURL string `toml:"base_url"`

	// Dir is the local archive copy for kind = "dir"
	Dir string `toml:"dir"`

	// IndexPath is the index document name (default: comics-index.json)
	IndexPath string `toml:"index_path"`

	// ShardDir holds <year>.json documents (default: comics-data)
	ShardDir string `toml:"shard_dir"`

	// TimeoutSecs bounds each HTTP request (default: 15)
	TimeoutSecs int `toml:"timeout_secs"`

	// RateLimit is origin requests per second (default: 20, negative disables)
	RateLimit float64 `toml:"rate_limit"`

	// Burst is the rate limiter burst (default: 5)
	Burst int `toml:"burst"`

	S3 S3Settings `toml:"s3"`
}

// S3Settings configures an S3-compatible origin.
type S3Settings struct {
	Endpoint  string `toml:"endpoint"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Region    string `toml:"region"`
	UseSSL    bool   `toml:"use_ssl"`
}

// CacheSettings configures the persistent document cache.
type CacheSettings struct {
	// Enabled turns the cache on (default: true)
	Enabled *bool `toml:"enabled"`

	// Path is the SQLite file (default: $XDG_CACHE_HOME/archive-deck/cache.db)
	Path string `toml:"path"`

	// Compress stores documents zstd-compressed (default: true)
	Compress *bool `toml:"compress"`
}

// PrefetchSettings tunes background and adjacent-year prefetch.
type PrefetchSettings struct {
	// Background drains every remaining year after startup (default: true)
	Background *bool `toml:"background"`

	// Adjacent loads year-1 and year+1 on year change (default: true)
	Adjacent *bool `toml:"adjacent"`

	// MinYear and MaxYear bound the background window (0 = unbounded)
	MinYear int `toml:"min_year"`
	MaxYear int `toml:"max_year"`

	// Order is "newest" (default) or "oldest"
	Order string `toml:"order"`

	// SuccessDelayMs follows each background load (default: 100)
	SuccessDelayMs int `toml:"success_delay_ms"`

	// SkipDelayMs follows each skipped year (default: 50)
	SkipDelayMs int `toml:"skip_delay_ms"`
}

// SearchSettings tunes search.
type SearchSettings struct {
	// DebounceMs delays search after the last keystroke (default: 500)
	DebounceMs int `toml:"debounce_ms"`

	// ExcerptRadius is the context either side of a match (default: 25)
	ExcerptRadius int `toml:"excerpt_radius"`

	// PreviewLen is the excerpt length for title-only matches (default: 50)
	PreviewLen int `toml:"preview_len"`
}

// UISettings configures the terminal UI.
type UISettings struct {
	// Theme is "dark" (default), "light" or "system"
	Theme string `toml:"theme"`
}

// WebSettings configures the serve command.
type WebSettings struct {
	// Listen is the bind address (default: 127.0.0.1:8421)
	Listen string `toml:"listen"`

	// Token, when set, is required on API requests
	Token string `toml:"token"`

	// DataDir is served under /data/ so the HTTP origin can point at it
	DataDir string `toml:"data_dir"`
}

// LogSettings configures debug logging.
type LogSettings struct {
	DebugLevel            string `toml:"debug_level"`
	DebugFormat           string `toml:"debug_format"`
	DebugMaxMB            int    `toml:"debug_max_mb"`
	DebugBackups          int    `toml:"debug_backups"`
	DebugRetentionDays    int    `toml:"debug_retention_days"`
	DebugCompress         bool   `toml:"debug_compress"`
	RingBufferMB          int    `toml:"ring_buffer_mb"`
	AggregateIntervalSecs int    `toml:"aggregate_interval_secs"`
	PprofEnabled          bool   `toml:"pprof_enabled"`
}

var defaultConfig = Config{}

// Cache for the config (loaded once per process)
var (
	configCache   *Config
	configCacheMu sync.RWMutex
)

// Dir returns the archive-deck home directory.
func Dir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".archive-deck"), nil
}

// Path returns the config file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load returns the cached config, reading it on first use. A parse error
// returns defaults together with the error so callers can display it.
func Load() (*Config, error) {
	configCacheMu.RLock()
	if configCache != nil {
		defer configCacheMu.RUnlock()
		return configCache, nil
	}
	configCacheMu.RUnlock()

	configCacheMu.Lock()
	defer configCacheMu.Unlock()

	// Double-check after acquiring write lock
	if configCache != nil {
		return configCache, nil
	}

	path, err := Path()
	if err != nil {
		configCache = &defaultConfig
		return configCache, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		configCache = &defaultConfig
		return configCache, nil
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		// Cache defaults to prevent repeated parse attempts
		configCache = &defaultConfig
		return configCache, fmt.Errorf("config.toml parse error: %w", err)
	}
	configCache = &cfg
	return configCache, nil
}

// Reload forces the next read from disk.
func Reload() (*Config, error) {
	ClearCache()
	return Load()
}

// ClearCache drops the cached config without reloading.
func ClearCache() {
	configCacheMu.Lock()
	configCache = nil
	configCacheMu.Unlock()
}

// Save writes cfg atomically (temp file, fsync, rename) and clears the cache.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# archive-deck configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if f, err := os.Open(tmpPath); err == nil {
		_ = f.Sync()
		f.Close()
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize config save: %w", err)
	}

	ClearCache()
	return nil
}

// GetKind returns the origin kind, defaulting to "http".
func (s *SourceSettings) GetKind() string {
	switch s.Kind {
	case "http", "dir", "s3":
		return s.Kind
	}
	return "http"
}

// GetBaseURL returns the HTTP origin root.
func (s *SourceSettings) GetBaseURL() string {
	if s.BaseURL == "" {
		return "http://127.0.0.1:8421/data/"
	}
	return s.BaseURL
}

// GetTimeout returns the per-request timeout.
func (s *SourceSettings) GetTimeout() time.Duration {
	if s.TimeoutSecs <= 0 {
		return 15 * time.Second
	}
	return time.Duration(s.TimeoutSecs) * time.Second
}

// GetRateLimit returns requests per second and burst.
func (s *SourceSettings) GetRateLimit() (float64, int) {
	limit, burst := s.RateLimit, s.Burst
	if limit == 0 {
		limit = 20
	}
	if burst <= 0 {
		burst = 5
	}
	return limit, burst
}

// GetEnabled returns whether the cache is on, defaulting to true.
func (c *CacheSettings) GetEnabled() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// GetCompress returns whether cached documents are compressed, defaulting to true.
func (c *CacheSettings) GetCompress() bool {
	if c.Compress == nil {
		return true
	}
	return *c.Compress
}

// GetPath returns the cache database path under the XDG cache dir by default.
func (c *CacheSettings) GetPath() string {
	if c.Path != "" {
		return expandHome(c.Path)
	}
	return filepath.Join(xdg.CacheHome, "archive-deck", "cache.db")
}

// GetBackground returns whether the background drain runs, defaulting to true.
func (p *PrefetchSettings) GetBackground() bool {
	if p.Background == nil {
		return true
	}
	return *p.Background
}

// GetAdjacent returns whether adjacent years are prefetched, defaulting to true.
func (p *PrefetchSettings) GetAdjacent() bool {
	if p.Adjacent == nil {
		return true
	}
	return *p.Adjacent
}

// GetTheme returns the configured theme, defaulting to "dark".
func (u *UISettings) GetTheme() string {
	switch u.Theme {
	case "dark", "light", "system":
		return u.Theme
	}
	return "dark"
}

// ResolveTheme resolves "system" to "dark" or "light" using the OS setting.
// Detection failures fall back to "dark".
func (u *UISettings) ResolveTheme() string {
	theme := u.GetTheme()
	if theme != "system" {
		return theme
	}
	isDark, err := dark.IsDarkMode()
	if err != nil || isDark {
		return "dark"
	}
	return "light"
}

// GetListen returns the serve bind address.
func (w *WebSettings) GetListen() string {
	if w.Listen == "" {
		return "127.0.0.1:8421"
	}
	return w.Listen
}

func expandHome(p string) string {
	if len(p) < 2 || p[:2] != "~/" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}
