package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type statusErr struct{ code int }

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", e.code) }
func (e statusErr) StatusCode() int { return e.code }

// fakeSource serves an in-memory archive and counts fetches.
type fakeSource struct {
	mu         sync.Mutex
	index      []byte
	indexErr   error
	shards     map[string][]byte
	fail       map[string]int
	gate       chan struct{}
	indexCalls int
	shardCalls map[string]int
}

func (f *fakeSource) FetchIndex(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexCalls++
	if f.indexErr != nil {
		return nil, f.indexErr
	}
	return f.index, nil
}

func (f *fakeSource) FetchShard(ctx context.Context, year string) ([]byte, error) {
	f.mu.Lock()
	f.shardCalls[year]++
	gate := f.gate
	code, failing := f.fail[year]
	data, ok := f.shards[year]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if failing {
		return nil, statusErr{code: code}
	}
	if !ok {
		return nil, statusErr{code: 404}
	}
	return data, nil
}

func (f *fakeSource) calls(year string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shardCalls[year]
}

func (f *fakeSource) totalShardCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.shardCalls {
		n += c
	}
	return n
}

func (f *fakeSource) setFail(year string, code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if code == 0 {
		delete(f.fail, year)
		return
	}
	f.fail[year] = code
}

// mapCache is an in-memory Cache.
type mapCache struct {
	mu     sync.Mutex
	docs   map[string][]byte
	getErr error
	putErr error
	puts   int
}

func newMapCache() *mapCache { return &mapCache{docs: make(map[string][]byte)} }

func (c *mapCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	doc, ok := c.docs[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return doc, nil
}

func (c *mapCache) Put(ctx context.Context, key string, doc []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	if c.putErr != nil {
		return c.putErr
	}
	c.docs[key] = doc
	return nil
}

func (c *mapCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.docs[key]
	return ok
}

// fakeLocation records pushes and replaces.
type fakeLocation struct {
	mu        sync.Mutex
	requested string
	pushes    []string
	replaces  []string
	listener  func(string)
}

func (l *fakeLocation) RequestedDate() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.requested
}

func (l *fakeLocation) PushDate(d string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pushes = append(l.pushes, d)
}

func (l *fakeLocation) ReplaceDate(d string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.replaces = append(l.replaces, d)
}

func (l *fakeLocation) OnExternalChange(fn func(string)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listener = fn
}

func (l *fakeLocation) fire(date string) {
	l.mu.Lock()
	fn := l.listener
	l.mu.Unlock()
	if fn != nil {
		fn(date)
	}
}

func (l *fakeLocation) pushed() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.pushes...)
}

func (l *fakeLocation) replaced() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.replaces...)
}

// fixture is the test archive. Index dates are deliberately unsorted.
var fixture = []struct {
	date       string
	title      string
	transcript string
}{
	{"2010-01-01", "Widget Meeting", "Boss: we need synergy\n   now.\nWally: sure."},
	{"1999-05-05", "Consulting", "Dogbert sells a widget to the boss."},
	{"2021-01-01", "The End", "Fin."},
	{"2020-12-31", "Synergy Time", "Dilbert: there is no synergy in this widget."},
	{"2020-06-01", "Coffee", "Wally drinks coffee."},
}

func newFixtureSource(t *testing.T) *fakeSource {
	t.Helper()
	idx := Index{LatestYear: "2021"}
	shards := map[string]Shard{}
	seenYear := map[string]bool{}
	for _, f := range fixture {
		y := YearOf(f.date)
		idx.Dates = append(idx.Dates, IndexEntry{Date: f.date, Year: y, Title: f.title})
		if !seenYear[y] {
			seenYear[y] = true
			idx.Years = append(idx.Years, y)
			shards[y] = Shard{}
		}
		shards[y][f.date] = Comic{
			Title:      f.title,
			Transcript: f.transcript,
			Fields:     map[string]json.RawMessage{"image": json.RawMessage(`"` + f.date + `.png"`)},
		}
	}

	src := &fakeSource{shards: map[string][]byte{}, fail: map[string]int{}, shardCalls: map[string]int{}}
	var err error
	src.index, err = json.Marshal(idx)
	require.NoError(t, err)
	for y, s := range shards {
		src.shards[y], err = json.Marshal(s)
		require.NoError(t, err)
	}
	return src
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Background = false
	opts.Adjacent = false
	opts.SuccessDelay = 0
	opts.SkipDelay = 0
	opts.Debounce = 20 * time.Millisecond
	opts.Rand = rand.New(rand.NewPCG(1, 2))
	return opts
}

// startEngine boots an engine over the fixture archive.
func startEngine(t *testing.T, src *fakeSource, loc *fakeLocation, opts Options) *Engine {
	t.Helper()
	e := New(NewLoader(src, newMapCache()), loc, opts)
	t.Cleanup(e.Close)
	require.NoError(t, e.Start(context.Background()))
	return e
}
