package main

import (
	"strings"
	"unicode"

	"github.com/sahilm/fuzzy"
)

// commandNames lists the subcommands main dispatches.
var commandNames = []string{"cache", "help", "prefetch", "search", "serve", "show", "tui", "version"}

// suggestCommand returns the closest subcommand for a mistyped first
// argument, or "" when arg looks like a date, a flag, or matches nothing.
func suggestCommand(arg string) string {
	if arg == "" || strings.HasPrefix(arg, "-") || strings.HasPrefix(arg, "?") {
		return ""
	}
	if unicode.IsDigit(rune(arg[0])) {
		return ""
	}
	matches := fuzzy.Find(strings.ToLower(arg), commandNames)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}
