package archive

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTarget(t *testing.T) {
	dates := []string{"1990-01-01", "1995-06-15", "2000-12-31", "2023-03-12"}
	rng := rand.New(rand.NewPCG(7, 7))

	tests := []struct {
		name    string
		current string
		action  Action
		want    string
	}{
		{"first", "2000-12-31", ActionFirst, "1990-01-01"},
		{"last", "1990-01-01", ActionLast, "2023-03-12"},
		{"previous", "2000-12-31", ActionPrevious, "1995-06-15"},
		{"next", "1995-06-15", ActionNext, "2000-12-31"},
		{"previous clamps at first", "1990-01-01", ActionPrevious, "1990-01-01"},
		{"next clamps at last", "2023-03-12", ActionNext, "2023-03-12"},
		{"next from unknown date", "1980-01-01", ActionNext, "1990-01-01"},
		{"previous from unknown date", "", ActionPrevious, "1990-01-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveTarget(dates, tt.current, tt.action, rng)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveTargetRandomNeverCurrent(t *testing.T) {
	dates := []string{"1990-01-01", "1995-06-15", "2000-12-31"}
	rng := rand.New(rand.NewPCG(1, 1))
	seen := map[string]bool{}
	for range 300 {
		got, err := ResolveTarget(dates, "1995-06-15", ActionRandom, rng)
		require.NoError(t, err)
		require.NotEqual(t, "1995-06-15", got)
		seen[got] = true
	}
	assert.Len(t, seen, 2, "both other dates are reachable")

	for range 50 {
		got, err := ResolveTarget(dates[:2], "1990-01-01", ActionRandom, rng)
		require.NoError(t, err)
		require.Equal(t, "1995-06-15", got)
	}
}

func TestResolveTargetRandomSingleDate(t *testing.T) {
	got, err := ResolveTarget([]string{"2001-01-01"}, "2001-01-01", ActionRandom, rand.New(rand.NewPCG(1, 1)))
	require.NoError(t, err)
	assert.Equal(t, "2001-01-01", got)
}

func TestResolveTargetErrors(t *testing.T) {
	_, err := ResolveTarget(nil, "", ActionFirst, nil)
	assert.ErrorIs(t, err, ErrEmptyArchive)
	_, err = ResolveTarget([]string{"2001-01-01"}, "", Action("sideways"), nil)
	assert.Error(t, err)
}

func TestParseAction(t *testing.T) {
	for in, want := range map[string]Action{
		"first": ActionFirst, "prev": ActionPrevious, "Previous": ActionPrevious,
		"next": ActionNext, " last ": ActionLast, "rand": ActionRandom,
	} {
		got, err := ParseAction(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseAction("up")
	assert.Error(t, err)
}

func TestNavigateLoadsYearAndPushes(t *testing.T) {
	src := newFixtureSource(t)
	loc := &fakeLocation{}
	e := startEngine(t, src, loc, testOptions())
	require.Equal(t, "2021-01-01", e.Snapshot().CurrentDate)

	date, err := e.Navigate(context.Background(), ActionPrevious)
	require.NoError(t, err)
	assert.Equal(t, "2020-12-31", date)

	snap := e.Snapshot()
	assert.Equal(t, "2020-12-31", snap.CurrentDate)
	require.NotNil(t, snap.Current)
	assert.Equal(t, "Synergy Time", snap.Current.Title)
	assert.Equal(t, StageNone, snap.Stage)
	assert.Equal(t, []string{"2020-12-31"}, loc.pushed())

	date, err = e.Navigate(context.Background(), ActionFirst)
	require.NoError(t, err)
	assert.Equal(t, "1999-05-05", date)
	date, err = e.Navigate(context.Background(), ActionPrevious)
	require.NoError(t, err)
	assert.Equal(t, "1999-05-05", date)
	assert.Equal(t, 1, src.calls("1999"))

	date, err = e.Navigate(context.Background(), ActionRandom)
	require.NoError(t, err)
	assert.NotEqual(t, "1999-05-05", date)
}

func TestNavigateFailureKeepsCurrent(t *testing.T) {
	src := newFixtureSource(t)
	src.setFail("1999", 500)
	e := startEngine(t, src, &fakeLocation{}, testOptions())

	_, err := e.Navigate(context.Background(), ActionFirst)
	var se *ShardLoadError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 500, se.Status)

	snap := e.Snapshot()
	assert.Equal(t, "2021-01-01", snap.CurrentDate)
	assert.NotEmpty(t, snap.Error)
	assert.Equal(t, StageNone, snap.Stage)

	// The next successful move clears the error.
	_, err = e.Navigate(context.Background(), ActionLast)
	require.NoError(t, err)
	assert.Empty(t, e.Snapshot().Error)
}

func TestSelectDate(t *testing.T) {
	src := newFixtureSource(t)
	loc := &fakeLocation{}
	e := startEngine(t, src, loc, testOptions())
	before := src.totalShardCalls()

	err := e.SelectDate(context.Background(), "2005-05-05")
	require.ErrorIs(t, err, ErrDateNotFound)
	snap := e.Snapshot()
	assert.Equal(t, NoticeDateNotFound, snap.Notice)
	assert.Equal(t, StageNone, snap.Stage)
	assert.Equal(t, "2021-01-01", snap.CurrentDate)
	assert.Equal(t, before, src.totalShardCalls())

	require.NoError(t, e.SelectDate(context.Background(), "2010-01-01"))
	snap = e.Snapshot()
	assert.Equal(t, "2010-01-01", snap.CurrentDate)
	assert.Empty(t, snap.Notice)
	assert.Equal(t, []string{"2010-01-01"}, loc.pushed())
}

func TestExternalChange(t *testing.T) {
	src := newFixtureSource(t)
	loc := &fakeLocation{}
	e := startEngine(t, src, loc, testOptions())

	loc.fire("2020-06-01")
	assert.Equal(t, "2020-06-01", e.Snapshot().CurrentDate)
	assert.Empty(t, loc.pushed(), "external moves are not pushed")

	// Date missing from its shard leaves the record alone.
	loc.fire("2020-06-02")
	assert.Equal(t, "2020-06-01", e.Snapshot().CurrentDate)

	loc.fire("garbage")
	assert.Equal(t, "2020-06-01", e.Snapshot().CurrentDate)
}

func TestNavigateBeforeStart(t *testing.T) {
	e := New(NewLoader(newFixtureSource(t), nil), nil, testOptions())
	defer e.Close()
	_, err := e.Navigate(context.Background(), ActionNext)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, e.SelectDate(context.Background(), "2010-01-01"), ErrNotReady)
}
