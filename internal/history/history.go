// Package history is an in-memory, browser-style session history of
// viewed dates. It implements the engine's navigation context: explicit
// moves push entries, silent defaults replace the current one, and Back and
// Forward notify listeners the way a popstate event would.
package history

import (
	"net/url"
	"slices"
	"strings"
	"sync"
)

// History is safe for concurrent use. Listeners run on the caller's
// goroutine, outside the lock.
type History struct {
	mu        sync.Mutex
	entries   []string
	pos       int
	limit     int
	listeners []func(date string)
}

// DefaultLimit caps the number of entries kept.
const DefaultLimit = 200

// New creates a history whose current entry is initial ("" for none).
func New(initial string) *History {
	return &History{entries: []string{initial}, limit: DefaultLimit}
}

// RequestedDate returns the date of the current entry.
func (h *History) RequestedDate() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.pos]
}

// PushDate adds an entry after the current one, dropping forward entries.
// Pushing the current date again is a no-op.
func (h *History) PushDate(date string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.entries[h.pos] == date {
		return
	}
	h.entries = append(h.entries[:h.pos+1], date)
	if len(h.entries) > h.limit {
		drop := len(h.entries) - h.limit
		h.entries = append([]string(nil), h.entries[drop:]...)
	}
	h.pos = len(h.entries) - 1
}

// ReplaceDate rewrites the current entry.
func (h *History) ReplaceDate(date string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[h.pos] = date
}

// OnExternalChange registers fn to run after Back, Forward or Go moves.
func (h *History) OnExternalChange(fn func(date string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Back moves one entry back. It reports whether a move happened.
func (h *History) Back() bool { return h.Go(-1) }

// Forward moves one entry forward. It reports whether a move happened.
func (h *History) Forward() bool { return h.Go(1) }

// Go moves delta entries and notifies listeners. Out-of-range moves are
// ignored.
func (h *History) Go(delta int) bool {
	h.mu.Lock()
	target := h.pos + delta
	if delta == 0 || target < 0 || target >= len(h.entries) {
		h.mu.Unlock()
		return false
	}
	h.pos = target
	date := h.entries[target]
	listeners := slices.Clone(h.listeners)
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(date)
	}
	return true
}

// CanBack reports whether Back would move.
func (h *History) CanBack() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pos > 0
}

// CanForward reports whether Forward would move.
func (h *History) CanForward() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pos < len(h.entries)-1
}

// Entries returns a copy of all entries and the current position.
func (h *History) Entries() ([]string, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.entries...), h.pos
}

// Query renders the current entry as a shareable "?date=" query, or "".
func (h *History) Query() string {
	date := h.RequestedDate()
	if date == "" {
		return ""
	}
	return "?" + url.Values{"date": {date}}.Encode()
}

// ParseQuery extracts the date parameter from "?date=...", "date=..." or a
// full URL. It returns "" when absent or malformed.
func ParseQuery(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[i+1:]
	}
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return ""
	}
	return values.Get("date")
}
