package archive

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/asheshgoplani/archive-deck/internal/logging"
)

var navLog = logging.ForComponent(logging.CompNav)

// Action is a sequential or random navigation request.
type Action string

const (
	ActionFirst    Action = "first"
	ActionPrevious Action = "previous"
	ActionNext     Action = "next"
	ActionLast     Action = "last"
	ActionRandom   Action = "random"
)

// ParseAction accepts the action names plus the short forms prev and rand.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "first":
		return ActionFirst, nil
	case "previous", "prev":
		return ActionPrevious, nil
	case "next":
		return ActionNext, nil
	case "last":
		return ActionLast, nil
	case "random", "rand":
		return ActionRandom, nil
	}
	return "", fmt.Errorf("archive: unknown navigation action %q", s)
}

// ResolveTarget computes the date an action lands on. dates must be sorted.
// previous and next clamp at the ends. random never returns current when
// there are at least two dates; with one date it returns that date.
func ResolveTarget(dates []string, current string, action Action, rng *rand.Rand) (string, error) {
	n := len(dates)
	if n == 0 {
		return "", ErrEmptyArchive
	}
	cur := sort.SearchStrings(dates, current)
	if cur >= n || dates[cur] != current {
		cur = -1
	}

	var i int
	switch action {
	case ActionFirst:
		i = 0
	case ActionPrevious:
		i = max(cur-1, 0)
	case ActionNext:
		i = min(cur+1, n-1)
	case ActionLast:
		i = n - 1
	case ActionRandom:
		switch {
		case n == 1:
			i = 0
		case cur < 0:
			i = rng.IntN(n)
		default:
			// Sample from the n-1 other positions directly.
			i = rng.IntN(n - 1)
			if i >= cur {
				i++
			}
		}
	default:
		return "", fmt.Errorf("archive: unknown navigation action %q", action)
	}
	return dates[i], nil
}

// Navigate moves the current record by action. If the target year is not
// resident it is loaded first; a load failure leaves the current record
// unchanged and is returned. The new date is pushed onto the location.
func (e *Engine) Navigate(ctx context.Context, action Action) (string, error) {
	idx := e.readyIndex()
	if idx == nil {
		return "", ErrNotReady
	}

	e.mu.Lock()
	target, err := ResolveTarget(idx.SortedDates(), e.current, action, e.rng)
	e.mu.Unlock()
	if err != nil {
		return "", err
	}

	if err := e.moveTo(ctx, target, true); err != nil {
		return "", err
	}
	navLog.Debug("navigated", slog.String("action", string(action)), slog.String("date", target))
	return target, nil
}

// SelectDate makes date current after checking it exists in the index. An
// unknown date sets the not-found notice and returns ErrDateNotFound
// without touching loading state.
func (e *Engine) SelectDate(ctx context.Context, date string) error {
	idx := e.readyIndex()
	if idx == nil {
		return ErrNotReady
	}
	if !idx.Has(date) {
		e.mu.Lock()
		e.notice = NoticeDateNotFound
		e.mu.Unlock()
		e.notify()
		return ErrDateNotFound
	}
	return e.moveTo(ctx, date, true)
}

// OpenResult makes a search result current and clears the query, results
// and status.
func (e *Engine) OpenResult(ctx context.Context, date string) error {
	if err := e.SelectDate(ctx, date); err != nil {
		return err
	}
	e.debounce.Cancel()
	e.mu.Lock()
	e.searchGen++
	e.query = ""
	e.results = nil
	e.status = ""
	if e.stage == StageSearch {
		e.stage = StageNone
	}
	e.mu.Unlock()
	e.notify()
	return nil
}

// ensureResident loads year when needed, surfacing the year stage while the
// load is in flight. Failures are recorded as the engine error.
func (e *Engine) ensureResident(ctx context.Context, year string) error {
	if _, ok := e.loader.Resident(year); ok {
		return nil
	}

	e.mu.Lock()
	e.stage = StageYear
	e.loadingYear = year
	e.mu.Unlock()
	e.notify()

	_, err := e.loader.LoadYear(ctx, year)

	e.mu.Lock()
	if e.stage == StageYear && e.loadingYear == year {
		e.stage = StageNone
		e.loadingYear = ""
	}
	if err != nil {
		e.err = err
	}
	e.mu.Unlock()
	e.notify()

	if err != nil {
		navLog.Warn("year_load_failed", slog.String("year", year), slog.String("error", err.Error()))
	}
	return err
}

func (e *Engine) moveTo(ctx context.Context, date string, push bool) error {
	year := YearOf(date)
	if err := e.ensureResident(ctx, year); err != nil {
		return err
	}
	e.setCurrent(date)
	if push {
		e.loc.PushDate(date)
	}
	return nil
}

// setCurrent points the engine at a resident date and triggers adjacency
// prefetch when the year changed.
func (e *Engine) setCurrent(date string) {
	year := YearOf(date)
	e.mu.Lock()
	e.current = date
	e.err = nil
	e.notice = ""
	changed := year != e.currentYear
	e.currentYear = year
	e.mu.Unlock()
	e.notify()

	if changed {
		e.prefetchAdjacent(year)
	}
}

// handleExternalChange follows a back/forward move of the location. The
// record changes only if the date is present in its now-resident shard.
func (e *Engine) handleExternalChange(date string) {
	if e.readyIndex() == nil || date == "" {
		return
	}
	year := YearOf(date)
	if year == "" {
		return
	}
	if err := e.ensureResident(e.ctx, year); err != nil {
		return
	}
	if _, ok := e.loader.Comic(date); !ok {
		navLog.Debug("external_date_missing", slog.String("date", date))
		return
	}
	e.setCurrent(date)
}
