package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/asheshgoplani/archive-deck/internal/archive"
	"github.com/asheshgoplani/archive-deck/internal/config"
	"github.com/asheshgoplani/archive-deck/internal/logging"
)

// normalizeArgs reorders args so flags come before positional arguments.
// Go's flag package stops parsing at the first non-flag argument, which
// means "search coffee --json" would silently ignore --json.
func normalizeArgs(fs *flag.FlagSet, args []string) []string {
	boolFlags := make(map[string]bool)
	fs.VisitAll(func(f *flag.Flag) {
		if bf, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && bf.IsBoolFlag() {
			boolFlags[f.Name] = true
		}
	})

	var flags, positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}

		if strings.HasPrefix(arg, "-") && arg != "-" {
			flags = append(flags, arg)
			name := strings.TrimLeft(arg, "-")
			if strings.Contains(name, "=") {
				continue
			}
			if !boolFlags[name] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, arg)
		}
	}
	return append(flags, positional...)
}

// initCLILogging sends logs to stderr as text when debugging a one-shot
// command; otherwise they are discarded.
func initCLILogging(cfg *config.Config, debug bool) {
	logCfg := cfg.LoggingConfig(debug)
	if logCfg.Debug {
		logCfg.Stderr = os.Stderr
		logCfg.Format = "text"
	}
	logging.Init(logCfg)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printComic writes a comic as plain text: date and title, extra string
// fields, then the transcript.
func printComic(date string, c archive.Comic) {
	fmt.Printf("%s  %s\n", date, c.Title)
	names := make([]string, 0, len(c.Fields))
	for name := range c.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if v := c.Field(name); v != "" {
			fmt.Printf("%s: %s\n", name, v)
		}
	}
	if c.Transcript != "" {
		fmt.Println()
		fmt.Println(c.Transcript)
	}
}
