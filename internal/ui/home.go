package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/asheshgoplani/archive-deck/internal/archive"
	"github.com/asheshgoplani/archive-deck/internal/logging"
)

var uiLog = logging.ForComponent(logging.CompUI)

const (
	// actionTimeout bounds a single foreground load started from a key press.
	actionTimeout = 60 * time.Second
	// errorDisplayDuration is how long a transient action error stays on screen.
	errorDisplayDuration = 5 * time.Second
	// layoutNarrow switches the help bar to its short form.
	layoutNarrow = 70
)

// Engine is the part of *archive.Engine the terminal UI drives.
type Engine interface {
	Snapshot() archive.Snapshot
	Subscribe() (<-chan struct{}, func())
	Navigate(ctx context.Context, action archive.Action) (string, error)
	SelectDate(ctx context.Context, date string) error
	OpenResult(ctx context.Context, date string) error
	SetQuery(q string)
	SearchNow()
	DismissNotice()
}

// History is the back/forward side of the navigation context.
type History interface {
	Back() bool
	Forward() bool
	CanBack() bool
	CanForward() bool
}

type engineChangedMsg struct{}

type actionDoneMsg struct {
	op  string
	err error
}

type mode int

const (
	modeBrowse mode = iota
	modeSearch
	modeDate
)

// Options configures the home model.
type Options struct {
	// FollowSystemTheme watches the OS dark mode setting.
	FollowSystemTheme bool
}

// Home is the single-screen archive browser.
type Home struct {
	ctx    context.Context
	cancel context.CancelFunc

	engine      Engine
	history     History
	changes     <-chan struct{}
	unsubscribe func()
	snap        archive.Snapshot

	width  int
	height int
	mode   mode

	search       *Search
	datePrompt   textinput.Model
	help         *HelpOverlay
	spinner      spinner.Model
	themeWatcher *ThemeWatcher

	scroll  int
	err     error
	errTime time.Time
}

// NewHome builds the model around a started or starting engine. history may
// be nil.
func NewHome(eng Engine, history History, opts Options) *Home {
	ctx, cancel := context.WithCancel(context.Background())

	dp := textinput.New()
	dp.Placeholder = "YYYY-MM-DD"
	dp.Prompt = "Go to date: "
	dp.CharLimit = 10
	dp.Width = 12

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(ColorAccent)

	h := &Home{
		ctx:        ctx,
		cancel:     cancel,
		engine:     eng,
		history:    history,
		search:     NewSearch(),
		datePrompt: dp,
		help:       NewHelpOverlay(),
		spinner:    sp,
	}
	h.changes, h.unsubscribe = eng.Subscribe()
	h.snap = eng.Snapshot()
	h.search.Sync(h.snap)
	if opts.FollowSystemTheme {
		h.themeWatcher = NewThemeWatcher(ctx)
	}
	return h
}

// Init starts listening for engine changes.
func (h *Home) Init() tea.Cmd {
	return tea.Batch(
		listenForChanges(h.changes),
		listenForTheme(h.themeWatcher),
		h.spinner.Tick,
	)
}

// listenForChanges waits for the next engine state change.
func listenForChanges(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, open := <-ch; !open {
			return nil
		}
		return engineChangedMsg{}
	}
}

// Close releases the subscription and watchers. Safe to call twice.
func (h *Home) Close() {
	h.cancel()
	if h.unsubscribe != nil {
		h.unsubscribe()
		h.unsubscribe = nil
	}
	if h.themeWatcher != nil {
		h.themeWatcher.Close()
	}
}

func (h *Home) setError(err error) {
	h.err = err
	if err != nil {
		h.errTime = time.Now()
	}
}

func (h *Home) clearError() {
	h.err = nil
	h.errTime = time.Time{}
}

// run executes fn off the UI goroutine and reports the result.
func (h *Home) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	parent := h.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, actionTimeout)
		defer cancel()
		return actionDoneMsg{op: op, err: fn(ctx)}
	}
}

func (h *Home) navigate(action archive.Action) tea.Cmd {
	return h.run(string(action), func(ctx context.Context) error {
		_, err := h.engine.Navigate(ctx, action)
		return err
	})
}

func (h *Home) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h.width = msg.Width
		h.height = msg.Height
		h.search.SetWidth(msg.Width)
		h.help.SetSize(msg.Width, msg.Height)
		return h, nil

	case engineChangedMsg:
		prev := h.snap.CurrentDate
		h.snap = h.engine.Snapshot()
		h.search.Sync(h.snap)
		if h.snap.CurrentDate != prev {
			h.scroll = 0
		}
		return h, listenForChanges(h.changes)

	case actionDoneMsg:
		h.snap = h.engine.Snapshot()
		h.search.Sync(h.snap)
		switch {
		case msg.err == nil:
			h.clearError()
		case errors.Is(msg.err, archive.ErrDateNotFound):
			// Shown through the engine notice.
		case errors.Is(msg.err, context.Canceled):
		default:
			uiLog.Debug("action_failed", slog.String("op", msg.op), slog.String("error", msg.err.Error()))
			h.setError(msg.err)
		}
		return h, nil

	case themeChangedMsg:
		if msg.dark {
			InitTheme(string(ThemeDark))
		} else {
			InitTheme(string(ThemeLight))
		}
		return h, listenForTheme(h.themeWatcher)

	case spinner.TickMsg:
		var cmd tea.Cmd
		h.spinner, cmd = h.spinner.Update(msg)
		return h, cmd

	case tea.KeyMsg:
		return h.handleKey(msg)
	}
	return h, nil
}

func (h *Home) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return h.quit()
	}
	if h.help.IsVisible() {
		h.help.Update(msg)
		return h, nil
	}
	switch h.mode {
	case modeSearch:
		return h.handleSearchKey(msg)
	case modeDate:
		return h.handleDateKey(msg)
	}
	return h.handleMainKey(msg)
}

func (h *Home) handleMainKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return h.quit()
	case "?":
		h.help.Show()
		return h, nil
	case "esc":
		h.clearError()
		return h, nil
	}

	if !h.snap.Ready {
		return h, nil
	}

	switch msg.String() {
	case "left", "h", "p":
		return h, h.navigate(archive.ActionPrevious)
	case "right", "l", "n":
		return h, h.navigate(archive.ActionNext)
	case "home", "<":
		return h, h.navigate(archive.ActionFirst)
	case "end", ">":
		return h, h.navigate(archive.ActionLast)
	case "r":
		return h, h.navigate(archive.ActionRandom)
	case "/":
		h.mode = modeSearch
		return h, h.search.Show()
	case "g":
		h.mode = modeDate
		h.datePrompt.SetValue(h.snap.CurrentDate)
		h.datePrompt.CursorEnd()
		return h, h.datePrompt.Focus()
	case "[":
		return h, h.historyMove(false)
	case "]":
		return h, h.historyMove(true)
	case "x":
		h.engine.DismissNotice()
		return h, nil
	case "j", "down":
		h.scroll++
		return h, nil
	case "k", "up":
		if h.scroll > 0 {
			h.scroll--
		}
		return h, nil
	}
	return h, nil
}

func (h *Home) historyMove(forward bool) tea.Cmd {
	if h.history == nil {
		return nil
	}
	if (forward && !h.history.CanForward()) || (!forward && !h.history.CanBack()) {
		return nil
	}
	// Moving fires the engine's external-change handler, which may load a
	// year, so it runs off the UI goroutine.
	return h.run("history", func(context.Context) error {
		if forward {
			h.history.Forward()
		} else {
			h.history.Back()
		}
		return nil
	})
}

func (h *Home) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	intent, cmd := h.search.Update(msg)
	switch intent {
	case intentQueryChanged:
		h.engine.SetQuery(h.search.Value())
	case intentSearchNow:
		h.engine.SetQuery(h.search.Value())
		h.engine.SearchNow()
	case intentOpen:
		r, _ := h.search.Selected()
		h.search.Hide()
		h.mode = modeBrowse
		date := r.Date
		return h, tea.Batch(cmd, h.run("open", func(ctx context.Context) error {
			return h.engine.OpenResult(ctx, date)
		}))
	case intentClose:
		h.mode = modeBrowse
	}
	return h, cmd
}

func (h *Home) handleDateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		h.datePrompt.Blur()
		h.mode = modeBrowse
		return h, nil
	case "enter":
		date := strings.TrimSpace(h.datePrompt.Value())
		h.datePrompt.Blur()
		h.mode = modeBrowse
		if date == "" {
			return h, nil
		}
		return h, h.run("select", func(ctx context.Context) error {
			return h.engine.SelectDate(ctx, date)
		})
	}
	var cmd tea.Cmd
	h.datePrompt, cmd = h.datePrompt.Update(msg)
	return h, cmd
}

func (h *Home) quit() (tea.Model, tea.Cmd) {
	h.Close()
	return h, tea.Quit
}

func (h *Home) View() string {
	if h.width == 0 {
		return "Loading..."
	}
	if h.help.IsVisible() {
		return h.help.View()
	}
	if h.snap.Phase == archive.PhaseFailed {
		return h.renderFatal()
	}
	if !h.snap.Ready {
		return h.renderLoading()
	}

	header := h.renderHeader()
	footer := h.renderFooter()

	var overlay string
	switch h.mode {
	case modeSearch:
		overlay = h.search.View()
	case modeDate:
		overlay = SearchBoxStyle.Width(max(20, h.width-4)).Render(h.datePrompt.View())
	}

	used := lipgloss.Height(header) + lipgloss.Height(footer)
	if overlay != "" {
		used += lipgloss.Height(overlay)
	}
	body := ensureExactHeight(h.renderComic(max(1, h.height-used)), max(1, h.height-used))

	parts := []string{header}
	if overlay != "" {
		parts = append(parts, overlay)
	}
	parts = append(parts, body, footer)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderFatal is the startup error screen.
func (h *Home) renderFatal() string {
	var b strings.Builder
	b.WriteString(ErrorStyle.Render("Error loading comics data"))
	b.WriteString("\n\n")
	if h.snap.Error != "" {
		for _, line := range wrap(h.snap.Error, max(20, h.width-8)) {
			b.WriteString(DimStyle.Render(line) + "\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(DimStyle.Render("Press q to quit."))
	return lipgloss.Place(h.width, h.height, lipgloss.Center, lipgloss.Center, b.String())
}

// renderLoading is the splash shown until the first record is ready.
func (h *Home) renderLoading() string {
	content := TitleStyle.Render("Archive Deck") + "\n\n" +
		h.spinner.View() + " " + DimStyle.Render(h.snap.LoadingMessage())
	return lipgloss.Place(h.width, h.height, lipgloss.Center, lipgloss.Center,
		lipgloss.NewStyle().Align(lipgloss.Center).Render(content))
}

func (h *Home) renderHeader() string {
	left := HighlightStyle.Render("Archive Deck")
	if h.snap.CurrentDate != "" {
		left += "  " + DateStyle.Render(h.snap.CurrentDate)
	}
	right := h.renderNavHints()
	if h.snap.Stage != archive.StageNone {
		right = h.spinner.View() + " " + DimStyle.Render(h.snap.LoadingMessage()) + "  " + right
	}
	gap := max(1, h.width-lipgloss.Width(left)-lipgloss.Width(right))
	line := left + strings.Repeat(" ", gap) + right
	border := BorderStyle.Render(strings.Repeat("─", max(0, h.width)))
	return lipgloss.JoinVertical(lipgloss.Left, ensureExactWidth(line, h.width), border)
}

// renderNavHints dims the arrows that cannot move.
func (h *Home) renderNavHints() string {
	prev, next := HelpDescStyle, HelpDescStyle
	if h.snap.CurrentDate == h.snap.FirstDate {
		prev = DimStyle
	}
	if h.snap.CurrentDate == h.snap.LastDate {
		next = DimStyle
	}
	return prev.Render("◀") + " " + next.Render("▶")
}

func (h *Home) renderComic(height int) string {
	width := max(10, h.width-2)
	var lines []string

	if h.snap.Notice != "" {
		lines = append(lines, NoticeStyle.Render(truncate(h.snap.Notice+"  (x to dismiss)", width)), "")
	}
	if h.snap.Error != "" {
		lines = append(lines, ErrorStyle.Render(truncate(h.snap.Error, width)), "")
	}

	c := h.snap.Current
	if c == nil {
		lines = append(lines, DimStyle.Render("No comic selected."))
		return strings.Join(lines, "\n")
	}

	for _, l := range wrap(c.Title, width) {
		lines = append(lines, TitleStyle.Render(l))
	}
	for _, field := range presentationFields(*c) {
		lines = append(lines, DimStyle.Render(truncate(field, width)))
	}
	lines = append(lines, "")

	transcript := wrap(c.Transcript, width)
	if len(transcript) == 0 {
		transcript = []string{DimStyle.Render("(no transcript)")}
	}
	room := max(1, height-len(lines))
	h.scroll = min(h.scroll, max(0, len(transcript)-room))
	end := min(len(transcript), h.scroll+room)
	for _, l := range transcript[h.scroll:end] {
		lines = append(lines, TextStyle.Render(l))
	}
	return strings.Join(lines, "\n")
}

func (h *Home) renderFooter() string {
	border := BorderStyle.Render(strings.Repeat("─", max(0, h.width)))

	var status []string
	if p := h.snap.Progress; p.Active && p.Total > 0 {
		status = append(status, ProgressStyle.Render(renderProgress(p, 20)))
	}
	if h.err != nil && time.Since(h.errTime) < errorDisplayDuration {
		status = append(status, ErrorStyle.Render(h.err.Error()))
	}

	help := h.renderHelpBar()
	if len(status) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, border, help)
	}
	return lipgloss.JoinVertical(lipgloss.Left, border,
		ensureExactWidth(strings.Join(status, "  "), h.width), help)
}

func (h *Home) renderHelpBar() string {
	if h.width < layoutNarrow {
		return DimStyle.Render(truncate("←/→ move  / search  g date  ? help  q quit", h.width))
	}
	keys := []string{
		helpKey("←/→", "prev/next"),
		helpKey("r", "random"),
		helpKey("/", "search"),
		helpKey("g", "date"),
		helpKey("?", "help"),
		helpKey("q", "quit"),
	}
	return ensureExactWidth(strings.Join(keys, " "), h.width)
}

// presentationFields lists the comic's extra string fields as "name: value",
// sorted by name.
func presentationFields(c archive.Comic) []string {
	names := make([]string, 0, len(c.Fields))
	for name := range c.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	var out []string
	for _, name := range names {
		if v := c.Field(name); v != "" {
			out = append(out, name+": "+v)
		}
	}
	return out
}

func helpKey(key, desc string) string {
	return HelpKeyStyle.Render(key) + " " + HelpDescStyle.Render(desc)
}

// renderProgress draws a background-load bar such as
// "2003 [████░░░░] 12/34".
func renderProgress(p archive.Progress, width int) string {
	filled := 0
	if p.Total > 0 {
		filled = min(width, p.Completed*width/p.Total)
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	label := fmt.Sprintf("[%s] %d/%d", bar, p.Completed, p.Total)
	if p.CurrentYear != "" {
		label = "Loading " + p.CurrentYear + " " + label
	}
	return label
}
