package ui

import (
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"github.com/asheshgoplani/archive-deck/internal/archive"
)

func manyResults(n int) archive.Snapshot {
	snap := archive.Snapshot{Query: "q"}
	for i := range n {
		snap.Results = append(snap.Results, archive.Result{
			Date:  fmt.Sprintf("2000-01-%02d", n-i),
			Title: fmt.Sprintf("Result %d", i),
		})
	}
	snap.Status = archive.StatusText(n)
	return snap
}

func TestSearchEnterWithoutSelectionSearchesNow(t *testing.T) {
	s := NewSearch()
	s.Show()

	intent, _ := s.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, intentSearchNow, intent)
}

func TestSearchCursorScrollsWindow(t *testing.T) {
	s := NewSearch()
	s.SetWidth(80)
	s.Show()
	s.Sync(manyResults(20))

	for range 12 {
		s.Update(tea.KeyMsg{Type: tea.KeyDown})
	}
	r, ok := s.Selected()
	assert.True(t, ok)
	assert.Equal(t, "Result 11", r.Title)
	assert.Equal(t, 11-maxVisibleResults+1, s.offset)
	assert.Contains(t, s.View(), "Result 11")
	assert.NotContains(t, s.View(), "Result 0 ")

	intent, _ := s.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, intentOpen, intent)
}

func TestSearchTypingResetsCursor(t *testing.T) {
	s := NewSearch()
	s.Show()
	s.Sync(manyResults(3))
	s.Update(tea.KeyMsg{Type: tea.KeyDown})

	intent, _ := s.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	assert.Equal(t, intentQueryChanged, intent)
	_, ok := s.Selected()
	assert.False(t, ok)
}

func TestSearchSyncClampsCursor(t *testing.T) {
	s := NewSearch()
	s.Show()
	s.Sync(manyResults(5))
	for range 4 {
		s.Update(tea.KeyMsg{Type: tea.KeyDown})
	}
	s.Sync(manyResults(2))

	r, ok := s.Selected()
	assert.True(t, ok)
	assert.Equal(t, "Result 1", r.Title)
}

func TestSearchSyncAdoptsQueryWhenUnfocused(t *testing.T) {
	s := NewSearch()
	s.Sync(archive.Snapshot{Query: "coffee"})
	assert.Equal(t, "coffee", s.Value())
}
