package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/asheshgoplani/archive-deck/internal/archive"
)

// maxVisibleResults caps the result rows drawn under the search box.
const maxVisibleResults = 8

// Search is the search panel: a query input over the engine's current
// results. The engine owns query state; Search only mirrors it.
type Search struct {
	input   textinput.Model
	results []archive.Result
	status  string
	cursor  int // -1 while the input has focus
	offset  int
	width   int
	visible bool
}

// NewSearch creates a hidden search panel
func NewSearch() *Search {
	ti := textinput.New()
	ti.Placeholder = "Search titles and transcripts..."
	ti.Prompt = "/ "
	ti.CharLimit = 200
	ti.Width = 50

	return &Search{input: ti, cursor: -1}
}

func (s *Search) SetWidth(width int) {
	s.width = width
	s.input.Width = max(10, width-8)
}

func (s *Search) Show() tea.Cmd {
	s.visible = true
	s.cursor = -1
	return s.input.Focus()
}

func (s *Search) Hide() {
	s.visible = false
	s.input.Blur()
}

func (s *Search) IsVisible() bool { return s.visible }

func (s *Search) Value() string { return s.input.Value() }

// Sync mirrors the engine's results and status. The cursor is kept when it
// still points at a result.
func (s *Search) Sync(snap archive.Snapshot) {
	s.results = snap.Results
	s.status = snap.Status
	if s.input.Value() != snap.Query && !s.input.Focused() {
		s.input.SetValue(snap.Query)
	}
	if s.cursor >= len(s.results) {
		s.cursor = len(s.results) - 1
	}
	s.clampOffset()
}

// Selected returns the highlighted result, if any.
func (s *Search) Selected() (archive.Result, bool) {
	if s.cursor < 0 || s.cursor >= len(s.results) {
		return archive.Result{}, false
	}
	return s.results[s.cursor], true
}

// searchIntent is what a key press inside the panel asks the home model
// to do.
type searchIntent int

const (
	intentNone searchIntent = iota
	intentQueryChanged
	intentSearchNow
	intentOpen
	intentClose
)

// Update handles keys while the panel is focused.
func (s *Search) Update(msg tea.KeyMsg) (searchIntent, tea.Cmd) {
	switch msg.String() {
	case "esc":
		s.Hide()
		return intentClose, nil
	case "enter":
		if _, ok := s.Selected(); ok {
			return intentOpen, nil
		}
		return intentSearchNow, nil
	case "down", "ctrl+j":
		if s.cursor < len(s.results)-1 {
			s.cursor++
			s.clampOffset()
		}
		return intentNone, nil
	case "up", "ctrl+k":
		if s.cursor >= 0 {
			s.cursor--
			s.clampOffset()
		}
		return intentNone, nil
	}

	before := s.input.Value()
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	if s.input.Value() != before {
		s.cursor = -1
		s.offset = 0
		return intentQueryChanged, cmd
	}
	return intentNone, cmd
}

func (s *Search) clampOffset() {
	if s.cursor < 0 {
		s.offset = 0
		return
	}
	if s.cursor < s.offset {
		s.offset = s.cursor
	}
	if s.cursor >= s.offset+maxVisibleResults {
		s.offset = s.cursor - maxVisibleResults + 1
	}
}

// View renders the input, the status line and a window of results.
func (s *Search) View() string {
	if !s.visible {
		return ""
	}
	width := max(20, s.width)

	var b strings.Builder
	b.WriteString(SearchBoxStyle.Width(width - 4).Render(s.input.View()))
	b.WriteString("\n")
	if s.status != "" {
		b.WriteString(DimStyle.Render(" " + s.status))
		b.WriteString("\n")
	}

	end := min(len(s.results), s.offset+maxVisibleResults)
	for i := s.offset; i < end; i++ {
		r := s.results[i]
		line := truncate(fmt.Sprintf("%s  %s", r.Date, r.Title), width-4)
		if i == s.cursor {
			b.WriteString(SelectedResultStyle.Render("› " + line))
		} else {
			b.WriteString(ResultItemStyle.Render("  " + line))
		}
		b.WriteString("\n")
		if r.Excerpt != "" {
			b.WriteString(ExcerptStyle.Render(truncate(r.Excerpt, width-6)))
			b.WriteString("\n")
		}
	}
	if len(s.results) > end {
		b.WriteString(DimStyle.Render(fmt.Sprintf("  … %d more", len(s.results)-end)))
		b.WriteString("\n")
	}
	return lipgloss.NewStyle().Width(width).Render(strings.TrimRight(b.String(), "\n"))
}
