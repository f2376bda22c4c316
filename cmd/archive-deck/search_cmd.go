package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/asheshgoplani/archive-deck/internal/archive"
)

type searchOutput struct {
	Query   string           `json:"query"`
	Status  string           `json:"status"`
	Results []archive.Result `json:"results"`
}

// handleSearch runs one search. Transcript matches cover the years that are
// resident after startup; --all loads every year first.
func handleSearch(debug bool, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output as JSON")
	all := fs.Bool("all", false, "Load every year first so transcripts of the whole archive are searched")
	limit := fs.Int("limit", 0, "Print at most this many results (0 = all)")
	fs.Usage = func() {
		fmt.Println("Usage: archive-deck search QUERY [--all] [--limit N] [--json]")
		fmt.Println()
		fs.PrintDefaults()
	}
	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		return err
	}
	query := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(query) == "" {
		fs.Usage()
		return errors.New("search query is required")
	}

	cfg := loadConfig()
	initCLILogging(cfg, debug)

	a, err := openApp(cfg, "", func(o *archive.Options) {
		o.Background = false
		o.Adjacent = false
		o.SuccessDelay = 0
		o.SkipDelay = 0
	})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	if err := a.engine.Start(ctx); err != nil {
		return err
	}
	if *all {
		if err := drainBackground(ctx, a.engine, nil); err != nil {
			return err
		}
	}

	results, err := a.engine.Search(ctx, query)
	if err != nil {
		return err
	}
	status := archive.StatusText(len(results))
	if *limit > 0 && len(results) > *limit {
		results = results[:*limit]
	}

	if *jsonOut {
		if results == nil {
			results = []archive.Result{}
		}
		return printJSON(searchOutput{Query: query, Status: status, Results: results})
	}

	fmt.Println(status)
	for _, r := range results {
		fmt.Printf("%s  %s\n", r.Date, r.Title)
		if r.Excerpt != "" {
			fmt.Printf("    %s\n", r.Excerpt)
		}
	}
	return nil
}
