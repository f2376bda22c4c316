package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/asheshgoplani/archive-deck/internal/archive"
)

// drainBackground runs the background drain and blocks until it finishes.
// report, when set, sees every progress change.
func drainBackground(ctx context.Context, eng *archive.Engine, report func(archive.Progress)) error {
	changes, unsubscribe := eng.Subscribe()
	defer unsubscribe()

	if !eng.StartBackground() && !eng.Snapshot().Progress.Active {
		return nil
	}
	for {
		p := eng.Snapshot().Progress
		if report != nil {
			report(p)
		}
		if !p.Active {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, open := <-changes:
			if !open {
				return nil
			}
		}
	}
}

// handlePrefetch loads every year of the archive so later sessions start
// from the persistent cache.
func handlePrefetch(debug bool, args []string) error {
	fs := flag.NewFlagSet("prefetch", flag.ContinueOnError)
	quiet := fs.Bool("quiet", false, "Do not print progress")
	oldest := fs.Bool("oldest-first", false, "Load the oldest years first")
	from := fs.Int("from", 0, "First year to load (0 = config min_year)")
	to := fs.Int("to", 0, "Last year to load (0 = config max_year)")
	fs.Usage = func() {
		fmt.Println("Usage: archive-deck prefetch [--from YEAR] [--to YEAR] [--oldest-first] [--quiet]")
		fmt.Println()
		fs.PrintDefaults()
	}
	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if *from > 0 && *to > 0 && *from > *to {
		return fmt.Errorf("--from %d is after --to %d", *from, *to)
	}

	cfg := loadConfig()
	initCLILogging(cfg, debug)
	if !cfg.Cache.GetEnabled() {
		fmt.Fprintln(os.Stderr, "Warning: the persistent cache is disabled; nothing will be kept")
	}

	a, err := openApp(cfg, "", func(o *archive.Options) {
		o.Background = false
		o.Adjacent = false
		o.SuccessDelay = 0
		o.SkipDelay = 0
		if *oldest {
			o.Order = archive.OrderOldest
		}
		if *from > 0 {
			o.MinYear = *from
		}
		if *to > 0 {
			o.MaxYear = *to
		}
	})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.engine.Start(ctx); err != nil {
		return err
	}

	tty := term.IsTerminal(int(os.Stdout.Fd()))
	lastCompleted := -1
	report := func(p archive.Progress) {
		if *quiet || p.Total == 0 {
			return
		}
		line := fmt.Sprintf("Loading years: %d/%d", p.Completed, p.Total)
		if p.CurrentYear != "" {
			line += " (" + p.CurrentYear + ")"
		}
		switch {
		case tty:
			fmt.Printf("\r\033[K%s", line)
		case p.Completed != lastCompleted:
			fmt.Println(line)
		}
		lastCompleted = p.Completed
	}
	if err := drainBackground(ctx, a.engine, report); err != nil {
		if tty && !*quiet {
			fmt.Println()
		}
		return err
	}
	if tty && !*quiet && lastCompleted >= 0 {
		fmt.Println()
	}

	resident := a.loader.ResidentYears()
	minYear, maxYear := cfg.Prefetch.MinYear, cfg.Prefetch.MaxYear
	if *from > 0 {
		minYear = *from
	}
	if *to > 0 {
		maxYear = *to
	}
	missing := missingYears(a.engine.Index(), resident, minYear, maxYear)
	fmt.Printf("%d years resident", len(resident))
	if len(missing) > 0 {
		fmt.Printf(", %d failed: %v", len(missing), missing)
	}
	fmt.Println()

	if a.db != nil {
		// Write-through is asynchronous; settle it before reading stats.
		a.loader.Wait()
		if st, err := a.db.Stats(ctx); err == nil {
			fmt.Printf("Cache: %d documents, %s stored\n", st.Documents, humanize.Bytes(uint64(st.StoredBytes)))
		}
	}
	return nil
}

// missingYears lists numeric index years inside [minYear, maxYear] that are
// not resident. Zero bounds are open.
func missingYears(idx *archive.Index, resident []string, minYear, maxYear int) []string {
	if idx == nil {
		return nil
	}
	have := make(map[string]bool, len(resident))
	for _, y := range resident {
		have[y] = true
	}
	var out []string
	for _, y := range idx.AllYears() {
		n, err := strconv.Atoi(y)
		if err != nil || (minYear > 0 && n < minYear) || (maxYear > 0 && n > maxYear) {
			continue
		}
		if !have[y] {
			out = append(out, y)
		}
	}
	return out
}
