package ui

import (
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Theme represents the current color scheme
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

var currentTheme Theme = ThemeDark

type palette struct {
	Bg, Surface, Border, Text, TextDim lipgloss.Color
	Accent, Cyan, Green, Yellow, Red   lipgloss.Color
	Comment                            lipgloss.Color
}

// Tokyo Night
var darkColors = palette{
	Bg:      lipgloss.Color("#1a1b26"),
	Surface: lipgloss.Color("#24283b"),
	Border:  lipgloss.Color("#414868"),
	Text:    lipgloss.Color("#c0caf5"),
	TextDim: lipgloss.Color("#787fa0"),
	Accent:  lipgloss.Color("#7aa2f7"),
	Cyan:    lipgloss.Color("#7dcfff"),
	Green:   lipgloss.Color("#9ece6a"),
	Yellow:  lipgloss.Color("#e0af68"),
	Red:     lipgloss.Color("#f7768e"),
	Comment: lipgloss.Color("#787fa0"),
}

// Tokyo Night Light
var lightColors = palette{
	Bg:      lipgloss.Color("#d5d6db"),
	Surface: lipgloss.Color("#e9e9ec"),
	Border:  lipgloss.Color("#9699a3"),
	Text:    lipgloss.Color("#343b58"),
	TextDim: lipgloss.Color("#6a6d7c"),
	Accent:  lipgloss.Color("#34548a"),
	Cyan:    lipgloss.Color("#166775"),
	Green:   lipgloss.Color("#485e30"),
	Yellow:  lipgloss.Color("#8f5e15"),
	Red:     lipgloss.Color("#8c4351"),
	Comment: lipgloss.Color("#6a6d7c"),
}

// Active color variables (set by InitTheme)
var (
	ColorBg      lipgloss.Color
	ColorSurface lipgloss.Color
	ColorBorder  lipgloss.Color
	ColorText    lipgloss.Color
	ColorTextDim lipgloss.Color
	ColorAccent  lipgloss.Color
	ColorCyan    lipgloss.Color
	ColorGreen   lipgloss.Color
	ColorYellow  lipgloss.Color
	ColorRed     lipgloss.Color
	ColorComment lipgloss.Color
)

// themeMu protects the color and style globals during live theme switches.
var themeMu sync.RWMutex

// InitTheme sets the active color palette based on theme name.
// Must be called before any UI rendering.
func InitTheme(theme string) {
	themeMu.Lock()
	defer themeMu.Unlock()

	p := darkColors
	currentTheme = ThemeDark
	if theme == string(ThemeLight) {
		p = lightColors
		currentTheme = ThemeLight
	}
	ColorBg = p.Bg
	ColorSurface = p.Surface
	ColorBorder = p.Border
	ColorText = p.Text
	ColorTextDim = p.TextDim
	ColorAccent = p.Accent
	ColorCyan = p.Cyan
	ColorGreen = p.Green
	ColorYellow = p.Yellow
	ColorRed = p.Red
	ColorComment = p.Comment
	initStyles()
}

// GetCurrentTheme returns the active theme
func GetCurrentTheme() Theme {
	themeMu.RLock()
	defer themeMu.RUnlock()
	return currentTheme
}

func init() {
	InitTheme("dark")
}

var (
	TitleStyle     lipgloss.Style
	DateStyle      lipgloss.Style
	TextStyle      lipgloss.Style
	DimStyle       lipgloss.Style
	ErrorStyle     lipgloss.Style
	NoticeStyle    lipgloss.Style
	HighlightStyle lipgloss.Style
	BorderStyle    lipgloss.Style
)

var (
	SearchBoxStyle      lipgloss.Style
	ResultItemStyle     lipgloss.Style
	SelectedResultStyle lipgloss.Style
	ExcerptStyle        lipgloss.Style
)

var (
	HelpKeyStyle  lipgloss.Style
	HelpDescStyle lipgloss.Style
	OverlayStyle  lipgloss.Style
	ProgressStyle lipgloss.Style
)

func initStyles() {
	TitleStyle = lipgloss.NewStyle().Foreground(ColorText).Bold(true)
	DateStyle = lipgloss.NewStyle().Foreground(ColorCyan)
	TextStyle = lipgloss.NewStyle().Foreground(ColorText)
	DimStyle = lipgloss.NewStyle().Foreground(ColorTextDim)
	ErrorStyle = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
	NoticeStyle = lipgloss.NewStyle().Foreground(ColorYellow)
	HighlightStyle = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	BorderStyle = lipgloss.NewStyle().Foreground(ColorBorder)

	SearchBoxStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorAccent).
		Padding(0, 1)
	ResultItemStyle = lipgloss.NewStyle().Foreground(ColorText).Padding(0, 1)
	SelectedResultStyle = lipgloss.NewStyle().
		Padding(0, 1).
		Background(ColorAccent).
		Foreground(ColorBg)
	ExcerptStyle = lipgloss.NewStyle().Foreground(ColorComment).Padding(0, 3)

	HelpKeyStyle = lipgloss.NewStyle().
		Foreground(ColorBg).
		Background(ColorAccent).
		Bold(true).
		Padding(0, 1)
	HelpDescStyle = lipgloss.NewStyle().Foreground(ColorText)
	OverlayStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorAccent).
		Padding(1, 2)
	ProgressStyle = lipgloss.NewStyle().Foreground(ColorGreen)
}
