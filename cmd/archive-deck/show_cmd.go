package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/asheshgoplani/archive-deck/internal/archive"
)

type showOutput struct {
	Date  string        `json:"date"`
	Comic archive.Comic `json:"comic"`
}

// handleShow prints one comic: the latest, a given date, or a random one.
func handleShow(debug bool, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	random := fs.Bool("random", false, "Show a random comic")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	fs.Usage = func() {
		fmt.Println("Usage: archive-deck show [DATE] [--random] [--json]")
		fmt.Println()
		fs.PrintDefaults()
	}
	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		return err
	}
	date := fs.Arg(0)
	if fs.NArg() > 1 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args()[1:])
	}

	cfg := loadConfig()
	initCLILogging(cfg, debug)

	a, err := openApp(cfg, date, func(o *archive.Options) {
		o.Background = false
		o.Adjacent = false
	})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	if err := a.engine.Start(ctx); err != nil {
		return err
	}

	switch {
	case *random:
		if _, err := a.engine.Navigate(ctx, archive.ActionRandom); err != nil {
			return err
		}
	case date != "" && a.engine.Snapshot().CurrentDate != date:
		// Startup fell back to the latest comic; selecting reports why.
		if err := a.engine.SelectDate(ctx, date); err != nil {
			if errors.Is(err, archive.ErrDateNotFound) {
				return errors.New(archive.NoticeDateNotFound)
			}
			return err
		}
	}

	snap := a.engine.Snapshot()
	if snap.Current == nil {
		return errors.New("no comic available")
	}
	if *jsonOut {
		return printJSON(showOutput{Date: snap.CurrentDate, Comic: *snap.Current})
	}
	printComic(snap.CurrentDate, *snap.Current)
	return nil
}
