package logging

import (
	"cmp"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// maxSummaryValues caps the distinct values kept per attribute in one window.
const maxSummaryValues = 16

type summaryKey struct {
	component string
	event     string
}

// summary counts one event and collects the distinct values each of its
// attributes took, in first-seen order.
type summary struct {
	count     int64
	attrOrder []string
	values    map[string][]string
	truncated map[string]bool
}

func (s *summary) add(attrs []slog.Attr) {
	s.count++
	for _, a := range attrs {
		v := a.Value.Resolve().String()
		seen, ok := s.values[a.Key]
		if !ok {
			s.attrOrder = append(s.attrOrder, a.Key)
		}
		if slices.Contains(seen, v) {
			continue
		}
		if len(seen) >= maxSummaryValues {
			s.truncated[a.Key] = true
			continue
		}
		s.values[a.Key] = append(seen, v)
	}
}

// Aggregator folds high-frequency events (cache hits, prefetch skips,
// request lines) into one "event_summary" record per event per window.
type Aggregator struct {
	logger *slog.Logger
	window time.Duration

	mu        sync.Mutex
	summaries map[summaryKey]*summary

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewAggregator creates an aggregator with a window of intervalSecs
// seconds (30 when unset). Events recorded with a nil logger are dropped
// at flush.
func NewAggregator(logger *slog.Logger, intervalSecs int) *Aggregator {
	if intervalSecs <= 0 {
		intervalSecs = 30
	}
	return &Aggregator{
		logger:    logger,
		window:    time.Duration(intervalSecs) * time.Second,
		summaries: make(map[summaryKey]*summary),
		done:      make(chan struct{}),
	}
}

// Start runs the periodic flush.
func (a *Aggregator) Start() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.window)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.flush()
			case <-a.done:
				return
			}
		}
	}()
}

// Stop ends the periodic flush and writes what is pending. Idempotent.
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() {
		close(a.done)
		a.wg.Wait()
		a.flush()
	})
}

// Record counts one occurrence of event. Attribute values are summarized
// as the set of distinct values seen in the window.
func (a *Aggregator) Record(component, event string, attrs ...slog.Attr) {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := summaryKey{component: component, event: event}
	s := a.summaries[k]
	if s == nil {
		s = &summary{values: make(map[string][]string), truncated: make(map[string]bool)}
		a.summaries[k] = s
	}
	s.add(attrs)
}

func (a *Aggregator) flush() {
	a.mu.Lock()
	pending := a.summaries
	a.summaries = make(map[summaryKey]*summary)
	a.mu.Unlock()

	if a.logger == nil || len(pending) == 0 {
		return
	}

	keys := make([]summaryKey, 0, len(pending))
	for k := range pending {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(x, y summaryKey) int {
		return cmp.Or(cmp.Compare(x.component, y.component), cmp.Compare(x.event, y.event))
	})

	for _, k := range keys {
		s := pending[k]
		args := []any{
			slog.String("component", k.component),
			slog.String("event", k.event),
			slog.Int64("count", s.count),
			slog.Int("window_seconds", int(a.window.Seconds())),
		}
		for _, name := range s.attrOrder {
			vals := s.values[name]
			if len(vals) == 1 && !s.truncated[name] {
				args = append(args, slog.String(name, vals[0]))
				continue
			}
			args = append(args, slog.Any(name, vals))
			if s.truncated[name] {
				args = append(args, slog.Bool(name+"_truncated", true))
			}
		}
		a.logger.Info("event_summary", args...)
	}
}
