package web

import (
	"context"
	"sync"

	"github.com/asheshgoplani/archive-deck/internal/archive"
)

// fakeEngine records calls and serves a canned snapshot.
type fakeEngine struct {
	mu        sync.Mutex
	snap      archive.Snapshot
	navErr    error
	selectErr error
	results   []archive.Result
	searchErr error
	subs      []chan struct{}

	navigated []archive.Action
	selected  []string
	opened    []string
	queries   []string
	searchNow int
	dismissed int
}

func (f *fakeEngine) Snapshot() archive.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeEngine) Subscribe() (<-chan struct{}, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{}, 1)
	f.subs = append(f.subs, ch)
	return ch, func() {}
}

func (f *fakeEngine) setSnapshot(s archive.Snapshot) {
	f.mu.Lock()
	f.snap = s
	subs := append([]chan struct{}(nil), f.subs...)
	f.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (f *fakeEngine) Navigate(_ context.Context, action archive.Action) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigated = append(f.navigated, action)
	if f.navErr != nil {
		return "", f.navErr
	}
	return f.snap.CurrentDate, nil
}

func (f *fakeEngine) SelectDate(_ context.Context, date string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = append(f.selected, date)
	return f.selectErr
}

func (f *fakeEngine) OpenResult(_ context.Context, date string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, date)
	return f.selectErr
}

func (f *fakeEngine) SetQuery(q string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
}

func (f *fakeEngine) SearchNow() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchNow++
}

func (f *fakeEngine) Search(_ context.Context, _ string) ([]archive.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.results, f.searchErr
}

func (f *fakeEngine) DismissNotice() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dismissed++
	f.snap.Notice = ""
}

func (f *fakeEngine) calls() (nav []archive.Action, sel, open, queries []string, now int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]archive.Action(nil), f.navigated...),
		append([]string(nil), f.selected...),
		append([]string(nil), f.opened...),
		append([]string(nil), f.queries...),
		f.searchNow
}

type fakeHistory struct {
	back, forward bool
	location      string
}

func (h *fakeHistory) Back() bool { return h.back }
func (h *fakeHistory) Forward() bool { return h.forward }
func (h *fakeHistory) Query() string { return h.location }

func newTestServer(eng *fakeEngine, hist History) *Server {
	return NewServer(Config{
		ListenAddr: "127.0.0.1:0",
		Engine:     eng,
		History:    hist,
	})
}
