package archive

import (
	"log/slog"
	"slices"
	"strconv"

	"github.com/asheshgoplani/archive-deck/internal/logging"
)

var prefetchLog = logging.ForComponent(logging.CompPrefetch)

// StartBackground starts the background drain of every index year that is
// not yet settled, within the configured window. It returns false when the
// engine is not ready, a drain is already running, or nothing is left.
func (e *Engine) StartBackground() bool {
	idx := e.loader.Index()
	if idx == nil {
		return false
	}
	queue := e.backgroundQueue(idx)

	e.mu.Lock()
	if e.closed || e.phase != PhaseReady || e.progress.Active || len(queue) == 0 {
		e.mu.Unlock()
		return false
	}
	e.progress = Progress{Active: true, Total: len(queue)}
	e.wg.Add(1)
	e.mu.Unlock()
	e.notify()

	prefetchLog.Info("background_started", slog.Int("years", len(queue)), slog.String("order", string(e.opts.Order)))
	go func() {
		defer e.wg.Done()
		e.drain(queue)
	}()
	return true
}

// backgroundQueue lists unsettled years inside the window, ordered by policy.
func (e *Engine) backgroundQueue(idx *Index) []string {
	type entry struct {
		year string
		n    int
	}
	var picked []entry
	for _, y := range idx.AllYears() {
		n, err := strconv.Atoi(y)
		if err != nil {
			continue
		}
		if e.opts.MinYear > 0 && n < e.opts.MinYear {
			continue
		}
		if e.opts.MaxYear > 0 && n > e.opts.MaxYear {
			continue
		}
		if e.loader.Settled(y) {
			continue
		}
		picked = append(picked, entry{year: y, n: n})
	}
	slices.SortFunc(picked, func(a, b entry) int {
		if e.opts.Order == OrderOldest {
			return a.n - b.n
		}
		return b.n - a.n
	})
	out := make([]string, len(picked))
	for i, p := range picked {
		out[i] = p.year
	}
	return out
}

// drain loads the queue strictly one year at a time. Years that became
// settled since enqueueing are counted and skipped; failures are logged and
// counted. Completed reaches Total unless the engine closes first.
func (e *Engine) drain(queue []string) {
	defer func() {
		e.mu.Lock()
		e.progress.Active = false
		e.progress.CurrentYear = ""
		done, total := e.progress.Completed, e.progress.Total
		e.mu.Unlock()
		e.notify()
		prefetchLog.Info("background_finished", slog.Int("completed", done), slog.Int("total", total))
	}()

	for i, year := range queue {
		if e.ctx.Err() != nil {
			return
		}

		delay := e.opts.SkipDelay
		if e.loader.Settled(year) {
			logging.Aggregate(logging.CompPrefetch, "background_skip", slog.String("year", year))
		} else {
			e.mu.Lock()
			e.progress.CurrentYear = year
			e.mu.Unlock()
			e.notify()

			if _, err := e.loader.LoadYear(e.ctx, year); err != nil {
				prefetchLog.Warn("background_load_failed", slog.String("year", year), slog.String("error", err.Error()))
			}
			delay = e.opts.SuccessDelay
		}

		e.mu.Lock()
		e.progress.Completed++
		e.progress.CurrentYear = ""
		e.mu.Unlock()
		e.notify()

		if i < len(queue)-1 && !sleepCtx(e.ctx, delay) {
			return
		}
	}
}

// prefetchAdjacent loads year-1 and year+1 on detached goroutines when they
// are in the index and not yet settled.
func (e *Engine) prefetchAdjacent(year string) {
	if !e.opts.Adjacent {
		return
	}
	idx := e.loader.Index()
	n, err := strconv.Atoi(year)
	if idx == nil || err != nil {
		return
	}
	for _, y := range []string{strconv.Itoa(n - 1), strconv.Itoa(n + 1)} {
		if !idx.HasYear(y) || e.loader.Settled(y) {
			continue
		}
		e.spawn(func() {
			if _, err := e.loader.LoadYear(e.ctx, y); err != nil {
				prefetchLog.Warn("adjacent_load_failed", slog.String("year", y), slog.String("error", err.Error()))
				return
			}
			prefetchLog.Debug("adjacent_loaded", slog.String("year", y))
			e.notify()
		})
	}
}
