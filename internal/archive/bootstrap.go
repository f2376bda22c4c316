package archive

import (
	"context"
	"log/slog"

	"github.com/asheshgoplani/archive-deck/internal/logging"
)

var bootLog = logging.ForComponent(logging.CompBootstrap)

// Start runs the startup stages: load the index, resolve the requested
// date, load its year, and establish the current record. A failure in any
// stage is terminal: the engine moves to PhaseFailed and Start returns the
// error. On success, adjacency and background prefetch are kicked off.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.phase != PhasePending {
		e.mu.Unlock()
		return errAlreadyStarted
	}
	e.mu.Unlock()

	e.setPhase(PhaseIndex, StageIndex, "")
	idx, err := e.loader.LoadIndex(ctx)
	if err != nil {
		return e.fail(PhaseIndex, err)
	}
	if idx.Len() == 0 {
		return e.fail(PhaseIndex, &IndexLoadError{Cause: ErrEmptyArchive})
	}

	e.setPhase(PhaseResolve, StageIndex, "")
	requested := e.loc.RequestedDate()
	year := idx.LatestYear
	if y := YearOf(requested); y != "" && idx.HasYear(y) {
		year = y
	} else if requested != "" {
		bootLog.Info("requested_date_ignored", slog.String("date", requested))
	}
	if year == "" {
		year = YearOf(idx.LastDate())
	}

	e.setPhase(PhaseYear, StageYear, year)
	shard, err := e.loader.LoadYear(ctx, year)
	if err != nil {
		return e.fail(PhaseYear, err)
	}

	e.setPhase(PhaseEstablish, StageYear, year)
	date := requested
	if _, ok := shard[requested]; !ok || requested == "" {
		date = shard.LastDate()
		if date == "" {
			date = idx.LastDate()
		}
		// The fallback may live in another year; its shard must be resident.
		if fy := YearOf(date); fy != year {
			e.setPhase(PhaseEstablish, StageYear, fy)
			if _, err := e.loader.LoadYear(ctx, fy); err != nil {
				return e.fail(PhaseEstablish, err)
			}
		}
	}

	e.mu.Lock()
	e.phase = PhaseReady
	e.stage = StageNone
	e.loadingYear = ""
	e.err = nil
	e.current = date
	e.currentYear = YearOf(date)
	e.mu.Unlock()
	e.notify()

	if date != requested {
		e.loc.ReplaceDate(date)
	}
	e.loc.OnExternalChange(e.handleExternalChange)

	bootLog.Info("startup_complete",
		slog.String("date", date),
		slog.String("year", YearOf(date)),
		slog.Bool("defaulted", date != requested))

	e.prefetchAdjacent(YearOf(date))
	if e.opts.Background {
		e.StartBackground()
	}
	return nil
}

func (e *Engine) setPhase(p Phase, s Stage, year string) {
	e.mu.Lock()
	e.phase = p
	e.stage = s
	e.loadingYear = year
	e.mu.Unlock()
	e.notify()
}

func (e *Engine) fail(at Phase, err error) error {
	e.mu.Lock()
	e.phase = PhaseFailed
	e.stage = StageNone
	e.loadingYear = ""
	e.err = err
	e.mu.Unlock()
	e.notify()
	bootLog.Error("startup_failed", slog.String("phase", string(at)), slog.String("error", err.Error()))
	return err
}
