package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/asheshgoplani/archive-deck/internal/cache"
)

type cacheStatsOutput struct {
	Path          string    `json:"path"`
	SchemaVersion int       `json:"schema_version"`
	Documents     int       `json:"documents"`
	StoredBytes   int64     `json:"stored_bytes"`
	RawBytes      int64     `json:"raw_bytes"`
	Oldest        time.Time `json:"oldest,omitzero"`
	Newest        time.Time `json:"newest,omitzero"`
}

// handleCache inspects or clears the persistent cache.
func handleCache(args []string) error {
	if len(args) == 0 {
		printCacheHelp()
		return errors.New("cache subcommand required")
	}

	fs := flag.NewFlagSet("cache "+args[0], flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output as JSON")
	fs.Usage = printCacheHelp
	if err := fs.Parse(normalizeArgs(fs, args[1:])); err != nil {
		return err
	}

	cfg := loadConfig()
	path := cfg.Cache.GetPath()
	db, err := cache.Open(path, cache.Options{Compress: cfg.Cache.GetCompress()})
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	switch args[0] {
	case "stats":
		st, err := db.Stats(ctx)
		if err != nil {
			return err
		}
		version, err := db.SchemaVersion()
		if err != nil {
			return err
		}
		if *jsonOut {
			return printJSON(cacheStatsOutput{
				Path:          path,
				SchemaVersion: version,
				Documents:     st.Documents,
				StoredBytes:   st.StoredBytes,
				RawBytes:      st.RawBytes,
				Oldest:        st.Oldest,
				Newest:        st.Newest,
			})
		}
		fmt.Printf("Path:      %s\n", path)
		fmt.Printf("Schema:    v%d\n", version)
		fmt.Printf("Documents: %d\n", st.Documents)
		fmt.Printf("Stored:    %s (raw %s)\n", humanize.Bytes(uint64(st.StoredBytes)), humanize.Bytes(uint64(st.RawBytes)))
		if st.Documents > 0 {
			fmt.Printf("Oldest:    %s\n", humanize.Time(st.Oldest))
			fmt.Printf("Newest:    %s\n", humanize.Time(st.Newest))
		}
		if !cfg.Cache.GetEnabled() {
			fmt.Println("Note: the cache is disabled in config.toml")
		}
		return nil

	case "keys":
		keys, err := db.Keys(ctx)
		if err != nil {
			return err
		}
		if *jsonOut {
			if keys == nil {
				keys = []string{}
			}
			return printJSON(keys)
		}
		for _, k := range keys {
			fmt.Println(k)
		}
		return nil

	case "clear":
		n, err := db.Clear(ctx)
		if err != nil {
			return err
		}
		if *jsonOut {
			return printJSON(map[string]int64{"removed": n})
		}
		fmt.Printf("Removed %d cached documents\n", n)
		return nil
	}

	printCacheHelp()
	return fmt.Errorf("unknown cache subcommand %q", args[0])
}

func printCacheHelp() {
	fmt.Println("Usage: archive-deck cache <stats|keys|clear> [--json]")
	fmt.Println()
	fmt.Println("  stats   Document count, size and age")
	fmt.Println("  keys    List cached document keys")
	fmt.Println("  clear   Drop every cached document")
}
