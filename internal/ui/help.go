package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Version is shown in the help footer. Set by main.
var Version = "dev"

// SetVersion sets the version string shown in the help overlay.
func SetVersion(v string) {
	Version = v
}

type helpSection struct {
	title string
	items [][2]string // key, description
}

var helpSections = []helpSection{
	{
		title: "NAVIGATION",
		items: [][2]string{
			{"h / Left", "Previous comic"},
			{"l / Right", "Next comic"},
			{"Home / End", "First / latest comic"},
			{"r", "Random comic"},
			{"g", "Go to date"},
			{"[ / ]", "History back / forward"},
			{"j / k", "Scroll transcript"},
		},
	},
	{
		title: "SEARCH",
		items: [][2]string{
			{"/", "Open search"},
			{"Enter", "Search now / open result"},
			{"Up / Down", "Select result"},
			{"Esc", "Close search"},
		},
	},
	{
		title: "OTHER",
		items: [][2]string{
			{"x", "Dismiss notice"},
			{"q", "Quit"},
			{"?", "This help"},
		},
	},
}

// HelpOverlay shows keyboard shortcuts in a modal
type HelpOverlay struct {
	visible      bool
	width        int
	height       int
	scrollOffset int
}

func NewHelpOverlay() *HelpOverlay {
	return &HelpOverlay{}
}

func (h *HelpOverlay) Show() {
	h.visible = true
	h.scrollOffset = 0
}

func (h *HelpOverlay) Hide() {
	h.visible = false
}

func (h *HelpOverlay) IsVisible() bool {
	return h.visible
}

func (h *HelpOverlay) SetSize(width, height int) {
	h.width = width
	h.height = height
}

// Update scrolls on j/k and closes on any other key.
func (h *HelpOverlay) Update(msg tea.Msg) (*HelpOverlay, tea.Cmd) {
	if !h.visible {
		return h, nil
	}
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "j", "down":
			h.scrollOffset++
		case "k", "up":
			if h.scrollOffset > 0 {
				h.scrollOffset--
			}
		default:
			h.Hide()
		}
	}
	return h, nil
}

func (h *HelpOverlay) View() string {
	if !h.visible {
		return ""
	}

	sectionStyle := lipgloss.NewStyle().Foreground(ColorCyan).Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(ColorAccent).Width(14)
	footerStyle := lipgloss.NewStyle().Foreground(ColorComment).Italic(true)

	var lines []string
	lines = append(lines, HighlightStyle.Render("KEYBOARD SHORTCUTS"), "")
	for i, section := range helpSections {
		lines = append(lines, sectionStyle.Render(section.title))
		for _, item := range section.items {
			lines = append(lines, "  "+keyStyle.Render(item[0])+HelpDescStyle.Render(item[1]))
		}
		if i < len(helpSections)-1 {
			lines = append(lines, "")
		}
	}
	lines = append(lines, "", footerStyle.Render("Archive Deck v"+Version))

	available := max(10, h.height-8)
	maxScroll := max(0, len(lines)-available)
	h.scrollOffset = min(max(0, h.scrollOffset), maxScroll)
	visible := lines[h.scrollOffset:min(len(lines), h.scrollOffset+available)]

	box := OverlayStyle.Render(strings.Join(visible, "\n"))
	if h.width == 0 || h.height == 0 {
		return box
	}
	return lipgloss.Place(h.width, h.height, lipgloss.Center, lipgloss.Center, box)
}
