package archive

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// Location is the shareable navigation context (the "?date=" of a URL).
// The engine reads and updates it but does not own it.
type Location interface {
	RequestedDate() string
	PushDate(date string)
	ReplaceDate(date string)
	OnExternalChange(fn func(date string))
}

type nopLocation struct{}

func (nopLocation) RequestedDate() string         { return "" }
func (nopLocation) PushDate(string)               {}
func (nopLocation) ReplaceDate(string)            {}
func (nopLocation) OnExternalChange(func(string)) {}

// PrefetchOrder selects the background drain order.
type PrefetchOrder string

const (
	OrderNewest PrefetchOrder = "newest"
	OrderOldest PrefetchOrder = "oldest"
)

// Options tunes the engine.
type Options struct {
	// Background enables the background drain after startup.
	Background bool
	// Adjacent enables prefetch of year-1 and year+1 on year change.
	Adjacent bool
	// MinYear and MaxYear bound the background window; 0 is unbounded.
	MinYear int
	MaxYear int
	Order   PrefetchOrder
	// SuccessDelay follows a background load (success or failure);
	// SkipDelay follows a skipped year.
	SuccessDelay time.Duration
	SkipDelay    time.Duration

	Debounce      time.Duration
	ExcerptRadius int
	PreviewLen    int

	// Rand drives random navigation. Nil seeds a new generator.
	Rand *rand.Rand
}

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return Options{
		Background:    true,
		Adjacent:      true,
		Order:         OrderNewest,
		SuccessDelay:  100 * time.Millisecond,
		SkipDelay:     50 * time.Millisecond,
		Debounce:      500 * time.Millisecond,
		ExcerptRadius: 25,
		PreviewLen:    50,
	}
}

// Phase is the startup state machine position.
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseIndex     Phase = "index"
	PhaseResolve   Phase = "resolve"
	PhaseYear      Phase = "year"
	PhaseEstablish Phase = "establish"
	PhaseReady     Phase = "ready"
	PhaseFailed    Phase = "failed"
)

// Stage is the loading label shown to the user.
type Stage string

const (
	StageNone   Stage = ""
	StageIndex  Stage = "index"
	StageYear   Stage = "year"
	StageSearch Stage = "search"
)

// Progress reports the background drain.
type Progress struct {
	Active      bool   `json:"active"`
	CurrentYear string `json:"currentYear,omitempty"`
	Completed   int    `json:"completed"`
	Total       int    `json:"total"`
}

// Snapshot is a consistent copy of the engine state for consumers.
type Snapshot struct {
	Phase         Phase    `json:"phase"`
	Ready         bool     `json:"ready"`
	Stage         Stage    `json:"stage,omitempty"`
	LoadingYear   string   `json:"loadingYear,omitempty"`
	Error         string   `json:"error,omitempty"`
	Err           error    `json:"-"`
	Notice        string   `json:"notice,omitempty"`
	CurrentDate   string   `json:"currentDate,omitempty"`
	Current       *Comic   `json:"current,omitempty"`
	FirstDate     string   `json:"firstDate,omitempty"`
	LastDate      string   `json:"lastDate,omitempty"`
	Query         string   `json:"query"`
	Results       []Result `json:"results"`
	Status        string   `json:"status"`
	Progress      Progress `json:"progress"`
	ResidentYears []string `json:"residentYears"`
}

// LoadingMessage renders the stage as a user-facing line, or "".
func (s Snapshot) LoadingMessage() string {
	switch {
	case s.Stage == StageIndex:
		return "Loading index..."
	case s.Stage == StageYear && s.LoadingYear != "":
		return fmt.Sprintf("Loading comics data for %s...", s.LoadingYear)
	case s.Stage == StageSearch:
		return "Searching comics..."
	case s.Phase != PhaseReady && s.Phase != PhaseFailed:
		return "Loading comics data..."
	}
	return ""
}

// Engine owns the session state: the current record, search state and
// prefetch progress. Every exported method is safe for concurrent use.
type Engine struct {
	loader   *Loader
	loc      Location
	opts     Options
	debounce *Debouncer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	closed      bool
	phase       Phase
	stage       Stage
	loadingYear string
	err         error
	notice      string
	current     string
	currentYear string
	query       string
	results     []Result
	status      string
	searchGen   uint64
	progress    Progress
	rng         *rand.Rand
	subs        map[int]chan struct{}
	nextSub     int
}

// New creates an engine. Call Start to run startup.
func New(loader *Loader, loc Location, opts Options) *Engine {
	if loc == nil {
		loc = nopLocation{}
	}
	def := DefaultOptions()
	if opts.Order == "" {
		opts.Order = def.Order
	}
	if opts.Debounce <= 0 {
		opts.Debounce = def.Debounce
	}
	if opts.ExcerptRadius <= 0 {
		opts.ExcerptRadius = def.ExcerptRadius
	}
	if opts.PreviewLen <= 0 {
		opts.PreviewLen = def.PreviewLen
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		loader:   loader,
		loc:      loc,
		opts:     opts,
		debounce: NewDebouncer(opts.Debounce),
		ctx:      ctx,
		cancel:   cancel,
		phase:    PhasePending,
		rng:      rng,
		subs:     make(map[int]chan struct{}),
	}
}

// Loader returns the engine's shard loader.
func (e *Engine) Loader() *Loader { return e.loader }

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	s := Snapshot{
		Phase:       e.phase,
		Ready:       e.phase == PhaseReady,
		Stage:       e.stage,
		LoadingYear: e.loadingYear,
		Err:         e.err,
		Notice:      e.notice,
		CurrentDate: e.current,
		Query:       e.query,
		Results:     e.results,
		Status:      e.status,
		Progress:    e.progress,
	}
	e.mu.Unlock()

	if s.Err != nil {
		s.Error = s.Err.Error()
	}
	if s.CurrentDate != "" {
		if c, ok := e.loader.Comic(s.CurrentDate); ok {
			s.Current = &c
		}
	}
	if s.Ready {
		if idx := e.loader.Index(); idx != nil {
			s.FirstDate = idx.FirstDate()
			s.LastDate = idx.LastDate()
		}
	}
	s.ResidentYears = e.loader.ResidentYears()
	return s
}

// FirstDate returns the earliest archived date once ready.
func (e *Engine) FirstDate() string {
	if idx := e.readyIndex(); idx != nil {
		return idx.FirstDate()
	}
	return ""
}

// LastDate returns the latest archived date once ready.
func (e *Engine) LastDate() string {
	if idx := e.readyIndex(); idx != nil {
		return idx.LastDate()
	}
	return ""
}

// Index returns the session index once ready, or nil.
func (e *Engine) Index() *Index { return e.readyIndex() }

func (e *Engine) readyIndex() *Index {
	e.mu.Lock()
	ready := e.phase == PhaseReady
	e.mu.Unlock()
	if !ready {
		return nil
	}
	return e.loader.Index()
}

// DismissNotice clears the user-facing notice.
func (e *Engine) DismissNotice() {
	e.mu.Lock()
	e.notice = ""
	e.mu.Unlock()
	e.notify()
}

// Subscribe returns a channel that receives a value whenever the state
// changes, and a function that cancels the subscription. Notifications
// coalesce; read Snapshot after each one. The channel is closed on Close.
func (e *Engine) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		close(ch)
		return ch, func() {}
	}
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if c, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(c)
		}
	}
}

func (e *Engine) notify() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// spawn runs fn on a tracked goroutine unless the engine is closed.
func (e *Engine) spawn(fn func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn()
	}()
	return true
}

// Close stops background work, waits for it, and closes subscriptions.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.debounce.Cancel()
	e.cancel()
	e.wg.Wait()
	e.loader.Wait()

	e.mu.Lock()
	for id, ch := range e.subs {
		delete(e.subs, id)
		close(ch)
	}
	e.mu.Unlock()
}

// sleepCtx waits for d or until ctx is done. It reports whether the full
// delay elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
