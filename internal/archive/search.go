package archive

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/asheshgoplani/archive-deck/internal/logging"
)

var searchLog = logging.ForComponent(logging.CompSearch)

// Search status lines.
const (
	StatusSearching = "Searching..."
	StatusNoResults = "No results found"
	StatusFailed    = "Search failed"
)

// Result is one search hit.
type Result struct {
	Date         string `json:"date"`
	Title        string `json:"title"`
	Excerpt      string `json:"excerpt"`
	MatchedTitle bool   `json:"matchedTitle"`
	Comic        Comic  `json:"comic"`
}

// StatusText renders a result count.
func StatusText(n int) string {
	switch n {
	case 0:
		return StatusNoResults
	case 1:
		return "1 result found"
	}
	return fmt.Sprintf("%d results found", n)
}

// foldCase lowercases rune by rune so indices line up with the original.
func foldCase(s string) string {
	return strings.Map(unicode.ToLower, s)
}

// collapseSpace collapses whitespace runs to a single space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

type matcher struct {
	term    []rune
	folded  string
	radius  int
	preview int
}

func newMatcher(query string, radius, preview int) matcher {
	folded := foldCase(collapseSpace(query))
	return matcher{term: []rune(folded), folded: folded, radius: radius, preview: preview}
}

func (m matcher) empty() bool { return m.folded == "" }

// matches reports whether s contains the term once its whitespace is
// collapsed the same way as the query's.
func (m matcher) matches(s string) bool {
	return strings.Contains(foldCase(collapseSpace(s)), m.folded)
}

// excerpt returns a window of radius runes either side of the first match
// in the normalized transcript, with "..." on each truncated side. Without
// a match it returns the first preview runes.
func (m matcher) excerpt(transcript string) (string, bool) {
	text := []rune(collapseSpace(transcript))
	at := runeIndex(text, m.term)
	if at < 0 {
		if len(text) <= m.preview {
			return string(text), false
		}
		return string(text[:m.preview]) + "...", false
	}

	start := max(at-m.radius, 0)
	end := min(at+len(m.term)+m.radius, len(text))
	var b strings.Builder
	if start > 0 {
		b.WriteString("...")
	}
	b.WriteString(string(text[start:end]))
	if end < len(text) {
		b.WriteString("...")
	}
	return b.String(), true
}

// runeIndex finds term in text case-insensitively, in rune positions.
func runeIndex(text, term []rune) int {
	if len(term) == 0 || len(term) > len(text) {
		return -1
	}
outer:
	for i := 0; i+len(term) <= len(text); i++ {
		for j, r := range term {
			if unicode.ToLower(text[i+j]) != r {
				continue outer
			}
		}
		return i
	}
	return -1
}

type hit struct {
	date  string
	year  string
	title string
}

// Search runs a query synchronously. Titles are matched against the whole
// index; transcripts only against resident shards. Years holding title
// matches are loaded concurrently before results are assembled; any load
// failure aborts the search. Results are sorted by date, newest first.
func (e *Engine) Search(ctx context.Context, query string) ([]Result, error) {
	return e.search(ctx, query, nil)
}

func (e *Engine) search(ctx context.Context, query string, onGapFill func()) ([]Result, error) {
	m := newMatcher(query, e.opts.ExcerptRadius, e.opts.PreviewLen)
	if m.empty() {
		return nil, nil
	}
	idx := e.readyIndex()
	if idx == nil {
		return nil, ErrNotReady
	}
	start := time.Now()

	var titleHits []hit
	titled := make(map[string]bool)
	for _, ent := range idx.Entries() {
		if m.matches(ent.Title) {
			titleHits = append(titleHits, hit{date: ent.Date, year: ent.Year, title: ent.Title})
			titled[ent.Date] = true
		}
	}

	resident := e.loader.residentShards()
	var transcriptHits []hit
	for year, shard := range resident {
		for date, c := range shard {
			if titled[date] {
				continue
			}
			if m.matches(c.Transcript) {
				transcriptHits = append(transcriptHits, hit{date: date, year: year, title: c.Title})
			}
		}
	}

	var gaps []string
	for _, h := range titleHits {
		if _, ok := resident[h.year]; !ok && !slices.Contains(gaps, h.year) {
			gaps = append(gaps, h.year)
		}
	}

	if len(gaps) > 0 {
		if onGapFill != nil {
			onGapFill()
		}
		searchLog.Debug("gap_fill", slog.Any("years", gaps))
		g, gctx := errgroup.WithContext(ctx)
		for _, year := range gaps {
			g.Go(func() error {
				_, err := e.loader.LoadYear(gctx, year)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		for _, year := range gaps {
			if s, ok := e.loader.Resident(year); ok {
				resident[year] = s
			}
		}
	}

	results := make([]Result, 0, len(titleHits)+len(transcriptHits))
	seen := make(map[string]bool, cap(results))
	for _, h := range titleHits {
		c, ok := resident[h.year][h.date]
		if !ok {
			continue
		}
		excerpt, _ := m.excerpt(c.Transcript)
		results = append(results, Result{Date: h.date, Title: h.title, Excerpt: excerpt, MatchedTitle: true, Comic: c})
		seen[h.date] = true
	}
	for _, h := range transcriptHits {
		if seen[h.date] {
			continue
		}
		c := resident[h.year][h.date]
		excerpt, _ := m.excerpt(c.Transcript)
		results = append(results, Result{Date: h.date, Title: h.title, Excerpt: excerpt, Comic: c})
		seen[h.date] = true
	}

	slices.SortFunc(results, func(a, b Result) int {
		return strings.Compare(b.Date, a.Date)
	})

	searchLog.Debug("search_complete",
		slog.String("query", query),
		slog.Int("results", len(results)),
		slog.Int("gap_years", len(gaps)),
		slog.Duration("elapsed", time.Since(start)))
	return results, nil
}

// SetQuery records the query and schedules a debounced search. An empty
// query clears results and status at once.
func (e *Engine) SetQuery(q string) {
	e.mu.Lock()
	e.query = q
	if strings.TrimSpace(q) == "" {
		e.searchGen++
		e.results = nil
		e.status = ""
		if e.stage == StageSearch {
			e.stage = StageNone
		}
		e.mu.Unlock()
		e.debounce.Cancel()
		e.notify()
		return
	}
	// A search still running for the previous query must not publish.
	e.searchGen++
	e.mu.Unlock()
	e.notify()

	e.debounce.Trigger(func() {
		e.spawn(func() { e.runSearch(q) })
	})
}

// SearchNow skips the debounce delay and searches the current query.
func (e *Engine) SearchNow() {
	e.debounce.Cancel()
	e.mu.Lock()
	q := e.query
	e.mu.Unlock()
	e.spawn(func() { e.runSearch(q) })
}

// runSearch executes a search and publishes its outcome unless a newer
// search has started. A failure keeps the previous results.
func (e *Engine) runSearch(q string) {
	e.mu.Lock()
	e.searchGen++
	gen := e.searchGen
	if strings.TrimSpace(q) == "" {
		e.results = nil
		e.status = ""
		e.mu.Unlock()
		e.notify()
		return
	}
	e.status = StatusSearching
	e.mu.Unlock()
	e.notify()

	results, err := e.search(e.ctx, q, func() {
		e.mu.Lock()
		if gen == e.searchGen {
			e.stage = StageSearch
		}
		e.mu.Unlock()
		e.notify()
	})

	e.mu.Lock()
	if gen != e.searchGen {
		e.mu.Unlock()
		return
	}
	if e.stage == StageSearch {
		e.stage = StageNone
	}
	if err != nil {
		e.err = err
		e.status = StatusFailed
	} else {
		e.results = results
		e.status = StatusText(len(results))
	}
	e.mu.Unlock()
	e.notify()

	if err != nil {
		searchLog.Warn("search_failed", slog.String("query", q), slog.String("error", err.Error()))
	}
}
