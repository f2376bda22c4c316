package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/asheshgoplani/archive-deck/internal/logging"
)

var sourceLog = logging.ForComponent(logging.CompSource)

// maxDocumentBytes caps a single document read; the largest year is a few MB.
const maxDocumentBytes = 64 << 20

// HTTPOptions configures an HTTP origin.
type HTTPOptions struct {
	Layout Layout
	// Timeout bounds each request (default 15s).
	Timeout time.Duration
	// RateLimit is requests per second across all callers (default 20, burst 5).
	// Negative disables throttling.
	RateLimit float64
	Burst     int
	// Client overrides the HTTP client (tests).
	Client *http.Client
}

// HTTP fetches documents relative to a base URL.
type HTTP struct {
	origin
	base    *url.URL
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTP creates an HTTP origin rooted at baseURL.
func NewHTTP(baseURL string, opts HTTPOptions) (*HTTP, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("source: base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("source: base url %q: scheme must be http or https", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	var limiter *rate.Limiter
	if opts.RateLimit >= 0 {
		limit := opts.RateLimit
		if limit == 0 {
			limit = 20
		}
		burst := opts.Burst
		if burst <= 0 {
			burst = 5
		}
		limiter = rate.NewLimiter(rate.Limit(limit), burst)
	}

	h := &HTTP{base: u, client: client, limiter: limiter}
	h.origin = origin{layout: opts.Layout.withDefaults(), get: h.get}
	return h, nil
}

// URL resolves a layout path against the base URL.
func (h *HTTP) URL(p string) string {
	return h.base.ResolveReference(&url.URL{Path: p}).String()
}

func (h *HTTP) get(ctx context.Context, p string) ([]byte, error) {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	target := h.URL(p)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: get %s: %w", p, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Path: p, Code: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("source: read %s: %w", p, err)
	}
	if len(data) > maxDocumentBytes {
		return nil, fmt.Errorf("source: %s exceeds %d bytes", p, maxDocumentBytes)
	}

	sourceLog.Debug("document_fetched",
		slog.String("url", target),
		slog.Int("bytes", len(data)),
		slog.Duration("elapsed", time.Since(start)))
	return data, nil
}
