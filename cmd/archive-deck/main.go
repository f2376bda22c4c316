package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/asheshgoplani/archive-deck/internal/config"
	"github.com/asheshgoplani/archive-deck/internal/history"
	"github.com/asheshgoplani/archive-deck/internal/logging"
	"github.com/asheshgoplani/archive-deck/internal/ui"
)

const Version = "0.1.0"

func init() {
	initColorProfile()
}

// initColorProfile configures the lipgloss color profile.
// ARCHIVEDECK_COLOR: truecolor, 256, 16, none
func initColorProfile() {
	if colorEnv := os.Getenv("ARCHIVEDECK_COLOR"); colorEnv != "" {
		switch strings.ToLower(colorEnv) {
		case "truecolor", "true", "24bit":
			lipgloss.SetColorProfile(termenv.TrueColor)
			return
		case "256", "ansi256":
			lipgloss.SetColorProfile(termenv.ANSI256)
			return
		case "16", "ansi", "basic":
			lipgloss.SetColorProfile(termenv.ANSI)
			return
		case "none", "off", "ascii":
			lipgloss.SetColorProfile(termenv.Ascii)
			return
		}
	}

	colorTerm := os.Getenv("COLORTERM")
	if colorTerm == "truecolor" || colorTerm == "24bit" {
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}

	term := os.Getenv("TERM")
	for _, t := range []string{"xterm-256color", "screen-256color", "tmux-256color", "xterm-direct", "alacritty", "kitty", "wezterm"} {
		if strings.Contains(term, t) {
			lipgloss.SetColorProfile(termenv.TrueColor)
			return
		}
	}
	if os.Getenv("WT_SESSION") != "" || os.Getenv("ITERM_SESSION_ID") != "" {
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}
	lipgloss.SetColorProfile(termenv.ANSI256)
}

func main() {
	debug, args := extractDebugFlag(os.Args[1:])

	if len(args) > 0 {
		switch args[0] {
		case "version", "--version", "-v":
			fmt.Printf("Archive Deck v%s\n", Version)
			return
		case "help", "--help", "-h":
			printHelp()
			return
		case "show":
			exitOnError(handleShow(debug, args[1:]))
			return
		case "search":
			exitOnError(handleSearch(debug, args[1:]))
			return
		case "prefetch":
			exitOnError(handlePrefetch(debug, args[1:]))
			return
		case "cache":
			exitOnError(handleCache(args[1:]))
			return
		case "serve":
			exitOnError(handleServe(debug, args[1:]))
			return
		case "tui":
			args = args[1:]
		}
	}

	if len(args) > 0 {
		if s := suggestCommand(args[0]); s != "" {
			fmt.Fprintf(os.Stderr, "Error: unknown command %q. Did you mean %q?\n", args[0], s)
			fmt.Fprintln(os.Stderr, "Run 'archive-deck help' for usage.")
			os.Exit(1)
		}
	}

	exitOnError(runTUI(debug, args))
}

func exitOnError(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// extractDebugFlag pulls a global --debug out of args before subcommand
// dispatch.
func extractDebugFlag(args []string) (bool, []string) {
	debug := false
	remaining := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == "--debug" || arg == "-debug" {
			debug = true
			continue
		}
		remaining = append(remaining, arg)
	}
	return debug, remaining
}

// loadConfig loads the user config. A parse error is reported and the
// defaults are used.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
	}
	return cfg
}

func runTUI(debug bool, args []string) error {
	fs := flag.NewFlagSet("tui", flag.ContinueOnError)
	date := fs.String("date", "", "Open this date (YYYY-MM-DD or ?date=YYYY-MM-DD)")
	fs.Usage = func() {
		fmt.Println("Usage: archive-deck [tui] [--date YYYY-MM-DD]")
		fmt.Println()
		fs.PrintDefaults()
	}
	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		return err
	}
	requested := *date
	if requested == "" && fs.NArg() > 0 {
		requested = fs.Arg(0)
	}
	requested = history.ParseQuery(requested)

	cfg := loadConfig()

	// The TUI owns the terminal: logs only go to the rotated file.
	logCfg := cfg.LoggingConfig(debug)
	logging.Init(logCfg)
	defer logging.Shutdown()
	uiLog := logging.ForComponent(logging.CompUI)
	uiLog.Info("tui_started", slog.Int("pid", os.Getpid()), slog.String("version", Version))

	if logCfg.LogDir != "" {
		usr1 := make(chan os.Signal, 1)
		signal.Notify(usr1, syscall.SIGUSR1)
		defer signal.Stop(usr1)
		go func() {
			for range usr1 {
				dumpPath := filepath.Join(logCfg.LogDir, fmt.Sprintf("crash-dump-%d.jsonl", time.Now().Unix()))
				if err := logging.DumpRingBuffer(dumpPath); err != nil {
					uiLog.Error("crash_dump_failed", slog.String("error", err.Error()))
				} else {
					uiLog.Info("crash_dump_written", slog.String("path", dumpPath))
				}
			}
		}()
	}

	ui.SetVersion(Version)
	ui.InitTheme(cfg.UI.ResolveTheme())

	a, err := openApp(cfg, requested, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := a.engine.Start(ctx); err != nil {
			uiLog.Error("startup_failed", slog.String("error", err.Error()))
		}
	}()

	home := ui.NewHome(a.engine, a.history, ui.Options{FollowSystemTheme: cfg.UI.GetTheme() == "system"})
	defer home.Close()

	p := tea.NewProgram(home, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

func printHelp() {
	fmt.Printf("Archive Deck v%s\n", Version)
	fmt.Println("Browse and search a date-sharded comic archive.")
	fmt.Println()
	fmt.Println("Usage: archive-deck [--debug] [command] [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  tui [--date D]        Interactive browser (default)")
	fmt.Println("  show [DATE]           Print one comic (latest by default)")
	fmt.Println("  search QUERY          Search titles and transcripts")
	fmt.Println("  prefetch              Load every year into the persistent cache")
	fmt.Println("  cache stats|keys|clear  Inspect or clear the persistent cache")
	fmt.Println("  serve                 Serve the web UI, API and optionally the dataset")
	fmt.Println("  version               Show version")
	fmt.Println("  help                  Show this help")
	fmt.Println()
	fmt.Println("Configuration: ~/.archive-deck/config.toml (override the directory with ARCHIVEDECK_HOME)")
	fmt.Println("Debug logging: --debug or ARCHIVEDECK_DEBUG=1")
}
