package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartDefaultsToLatestYear(t *testing.T) {
	src := newFixtureSource(t)
	loc := &fakeLocation{}
	e := startEngine(t, src, loc, testOptions())

	snap := e.Snapshot()
	assert.True(t, snap.Ready)
	assert.Equal(t, PhaseReady, snap.Phase)
	assert.Equal(t, "2021-01-01", snap.CurrentDate)
	assert.Equal(t, "1999-05-05", snap.FirstDate)
	assert.Equal(t, "2021-01-01", snap.LastDate)
	assert.Equal(t, []string{"2021"}, snap.ResidentYears)
	assert.Equal(t, []string{"2021-01-01"}, loc.replaced(), "default date replaces location")
	assert.Empty(t, loc.pushed())
	assert.Empty(t, snap.LoadingMessage())
}

func TestStartHonoursRequestedDate(t *testing.T) {
	src := newFixtureSource(t)
	loc := &fakeLocation{requested: "2010-01-01"}
	e := startEngine(t, src, loc, testOptions())

	assert.Equal(t, "2010-01-01", e.Snapshot().CurrentDate)
	assert.Empty(t, loc.replaced())
	assert.Equal(t, 0, src.calls("2021"))
}

func TestStartRequestedDateMissingFromShard(t *testing.T) {
	src := newFixtureSource(t)
	loc := &fakeLocation{requested: "2020-02-02"}
	e := startEngine(t, src, loc, testOptions())

	assert.Equal(t, "2020-12-31", e.Snapshot().CurrentDate, "last date of the requested year")
	assert.Equal(t, []string{"2020-12-31"}, loc.replaced())
}

func TestStartUnknownYearFallsBackToLatest(t *testing.T) {
	src := newFixtureSource(t)
	loc := &fakeLocation{requested: "1850-01-01"}
	e := startEngine(t, src, loc, testOptions())

	assert.Equal(t, "2021-01-01", e.Snapshot().CurrentDate)
	assert.Equal(t, 0, src.calls("1850"))
}

func TestStartEmptyShardFallsBackToIndex(t *testing.T) {
	src := newFixtureSource(t)
	src.shards["2021"] = []byte(`{}`)
	e := startEngine(t, src, &fakeLocation{}, testOptions())

	snap := e.Snapshot()
	assert.Equal(t, "2021-01-01", snap.CurrentDate)
	assert.Nil(t, snap.Current, "index date with no record in its shard")
}

func TestStartIndexFailureIsTerminal(t *testing.T) {
	src := newFixtureSource(t)
	src.indexErr = statusErr{code: 404}
	e := New(NewLoader(src, nil), &fakeLocation{}, testOptions())
	defer e.Close()

	err := e.Start(context.Background())
	var ie *IndexLoadError
	require.ErrorAs(t, err, &ie)

	snap := e.Snapshot()
	assert.Equal(t, PhaseFailed, snap.Phase)
	assert.False(t, snap.Ready)
	assert.Contains(t, snap.Error, "status 404")
	assert.Empty(t, snap.CurrentDate)
	assert.Empty(t, snap.LoadingMessage())

	assert.ErrorIs(t, e.Start(context.Background()), errAlreadyStarted)
	_, err = e.Search(context.Background(), "widget")
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestStartEmptyArchive(t *testing.T) {
	src := newFixtureSource(t)
	src.index = []byte(`{"dates":[],"years":[],"latestYear":""}`)
	e := New(NewLoader(src, nil), nil, testOptions())
	defer e.Close()

	err := e.Start(context.Background())
	assert.ErrorIs(t, err, ErrEmptyArchive)
	var ie *IndexLoadError
	assert.ErrorAs(t, err, &ie)
}

func TestStartYearFailureIsTerminal(t *testing.T) {
	src := newFixtureSource(t)
	src.setFail("2021", 500)
	e := New(NewLoader(src, nil), &fakeLocation{}, testOptions())
	defer e.Close()

	err := e.Start(context.Background())
	var se *ShardLoadError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "2021", se.Year)
	assert.Equal(t, PhaseFailed, e.Snapshot().Phase)
}

func TestLoadingMessage(t *testing.T) {
	assert.Equal(t, "Loading index...", Snapshot{Stage: StageIndex}.LoadingMessage())
	assert.Equal(t, "Loading comics data for 1994...", Snapshot{Stage: StageYear, LoadingYear: "1994"}.LoadingMessage())
	assert.Equal(t, "Searching comics...", Snapshot{Stage: StageSearch, Phase: PhaseReady}.LoadingMessage())
	assert.Equal(t, "Loading comics data...", Snapshot{Phase: PhasePending}.LoadingMessage())
	assert.Equal(t, "", Snapshot{Phase: PhaseReady}.LoadingMessage())
}

// bigArchive builds an index with n consecutive years starting at 1990.
func bigArchive(t *testing.T, n int) *fakeSource {
	t.Helper()
	idx := Index{}
	src := &fakeSource{shards: map[string][]byte{}, fail: map[string]int{}, shardCalls: map[string]int{}}
	for i := range n {
		y := fmt.Sprint(1990 + i)
		d := y + "-06-01"
		idx.Dates = append(idx.Dates, IndexEntry{Date: d, Year: y, Title: "Strip " + y})
		idx.Years = append(idx.Years, y)
		doc, err := json.Marshal(Shard{d: {Title: "Strip " + y, Transcript: "year " + y}})
		require.NoError(t, err)
		src.shards[y] = doc
	}
	idx.LatestYear = fmt.Sprint(1990 + n - 1)
	var err error
	src.index, err = json.Marshal(idx)
	require.NoError(t, err)
	return src
}

func TestBackgroundDrainCountsEveryYearOnce(t *testing.T) {
	const years = 12
	src := bigArchive(t, years)
	src.setFail("1993", 500)
	src.setFail("1997", 404)

	opts := testOptions()
	opts.Background = true
	opts.Adjacent = true
	e := New(NewLoader(src, nil), &fakeLocation{}, opts)
	defer e.Close()

	ch, cancel := e.Subscribe()
	defer cancel()

	var mu sync.Mutex
	var maxCompleted, finishes int
	done := make(chan struct{})
	go func() {
		defer close(done)
		wasActive := false
		for range ch {
			p := e.Snapshot().Progress
			mu.Lock()
			maxCompleted = max(maxCompleted, p.Completed)
			if wasActive && !p.Active {
				finishes++
			}
			mu.Unlock()
			wasActive = p.Active
		}
	}()

	require.NoError(t, e.Start(context.Background()))
	require.Eventually(t, func() bool {
		p := e.Snapshot().Progress
		return !p.Active && p.Total > 0 && p.Completed == p.Total
	}, 5*time.Second, 5*time.Millisecond)

	p := e.Snapshot().Progress
	assert.Equal(t, years-1, p.Total, "startup year is excluded")
	assert.Equal(t, years-1, p.Completed)

	for i := range years {
		y := fmt.Sprint(1990 + i)
		assert.LessOrEqual(t, src.calls(y), 1, "year %s fetched more than once", y)
	}
	assert.Len(t, e.Snapshot().ResidentYears, years-2)
	assert.False(t, e.StartBackground(), "nothing left to drain")

	e.Close()
	<-done
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, years-1, maxCompleted)
	assert.LessOrEqual(t, finishes, 1)
}

func TestBackgroundWindowAndOrder(t *testing.T) {
	src := bigArchive(t, 10)
	opts := testOptions()
	opts.MinYear = 1992
	opts.MaxYear = 1995
	opts.Order = OrderOldest
	e := startEngine(t, src, &fakeLocation{}, opts)

	assert.Equal(t, []string{"1992", "1993", "1994", "1995"}, e.backgroundQueue(e.Loader().Index()))

	opts.Order = OrderNewest
	e.opts = opts
	assert.Equal(t, []string{"1995", "1994", "1993", "1992"}, e.backgroundQueue(e.Loader().Index()))
}

func TestAdjacentPrefetch(t *testing.T) {
	src := bigArchive(t, 5)
	opts := testOptions()
	opts.Adjacent = true
	loc := &fakeLocation{requested: "1992-06-01"}
	e := startEngine(t, src, loc, opts)

	require.Eventually(t, func() bool {
		return e.Loader().IsLoaded("1991") && e.Loader().IsLoaded("1993")
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, src.calls("1990"))
	assert.Equal(t, 0, src.calls("1994"))

	_, err := e.Navigate(context.Background(), ActionNext)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return e.Loader().IsLoaded("1994") }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, src.calls("1993"), "already resident, not refetched")
}

func TestSubscribeClosedOnClose(t *testing.T) {
	e := New(NewLoader(newFixtureSource(t), nil), nil, testOptions())
	ch, cancel := e.Subscribe()
	e.Close()
	_, open := <-ch
	assert.False(t, open)
	cancel()

	ch, _ = e.Subscribe()
	_, open = <-ch
	assert.False(t, open)
}

func TestDismissNotice(t *testing.T) {
	e := startEngine(t, newFixtureSource(t), &fakeLocation{}, testOptions())
	require.ErrorIs(t, e.SelectDate(context.Background(), "1800-01-01"), ErrDateNotFound)
	e.DismissNotice()
	assert.Empty(t, e.Snapshot().Notice)
}
