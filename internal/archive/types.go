// Package archive is the data engine behind archive-deck: it decides which
// year shards are resident, keeps the persistent cache in sync with the
// origin, prefetches the rest of the archive in the background and answers
// navigation and full-text search requests.
package archive

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// IndexEntry is one dated record in the index document.
type IndexEntry struct {
	Date  string `json:"date"`
	Year  string `json:"year"`
	Title string `json:"title"`
}

// Index is the lightweight manifest of every known date. It is immutable
// once parsed.
type Index struct {
	Dates      []IndexEntry `json:"dates"`
	Years      []string     `json:"years"`
	LatestYear string       `json:"latestYear"`

	sorted  []IndexEntry
	dates   []string
	byDate  map[string]int
	yearSet yearSet
}

// ParseIndex decodes an index document and builds its lookup tables.
// Dates need not arrive sorted; duplicates keep the first entry.
func ParseIndex(data []byte) (*Index, error) {
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("archive: parse index: %w", err)
	}
	idx.build()
	return &idx, nil
}

func (idx *Index) build() {
	idx.byDate = make(map[string]int, len(idx.Dates))
	idx.sorted = make([]IndexEntry, 0, len(idx.Dates))
	idx.yearSet = newYearSet()

	for _, e := range idx.Dates {
		if e.Date == "" {
			continue
		}
		if _, dup := idx.byDate[e.Date]; dup {
			continue
		}
		if e.Year == "" {
			e.Year = YearOf(e.Date)
		}
		idx.byDate[e.Date] = 0
		idx.sorted = append(idx.sorted, e)
		if e.Year != "" {
			idx.yearSet.add(e.Year)
		}
	}
	for _, y := range idx.Years {
		idx.yearSet.add(y)
	}

	slices.SortFunc(idx.sorted, func(a, b IndexEntry) int {
		return strings.Compare(a.Date, b.Date)
	})
	idx.dates = make([]string, len(idx.sorted))
	for i, e := range idx.sorted {
		idx.dates[i] = e.Date
		idx.byDate[e.Date] = i
	}

	if idx.LatestYear == "" {
		if years := idx.yearSet.slice(); len(years) > 0 {
			idx.LatestYear = years[len(years)-1]
		}
	}
}

// Len returns the number of distinct dates.
func (idx *Index) Len() int { return len(idx.dates) }

// SortedDates returns every date in ascending order. Callers must not modify it.
func (idx *Index) SortedDates() []string { return idx.dates }

// Entries returns the entries sorted by date. Callers must not modify it.
func (idx *Index) Entries() []IndexEntry { return idx.sorted }

// Has reports whether date is in the index.
func (idx *Index) Has(date string) bool {
	_, ok := idx.byDate[date]
	return ok
}

// Entry returns the index entry for date.
func (idx *Index) Entry(date string) (IndexEntry, bool) {
	i, ok := idx.byDate[date]
	if !ok {
		return IndexEntry{}, false
	}
	return idx.sorted[i], true
}

// Position returns the sorted position of date, or -1.
func (idx *Index) Position(date string) int {
	i, ok := idx.byDate[date]
	if !ok {
		return -1
	}
	return i
}

// HasYear reports whether year is one of the archive's shards.
func (idx *Index) HasYear(year string) bool { return idx.yearSet.contains(year) }

// AllYears returns every shard year in ascending order.
func (idx *Index) AllYears() []string { return idx.yearSet.slice() }

// FirstDate returns the earliest date, or "".
func (idx *Index) FirstDate() string {
	if len(idx.dates) == 0 {
		return ""
	}
	return idx.dates[0]
}

// LastDate returns the latest date, or "".
func (idx *Index) LastDate() string {
	if len(idx.dates) == 0 {
		return ""
	}
	return idx.dates[len(idx.dates)-1]
}

// Comic is one archived record. Title and Transcript drive search; every
// other field is kept verbatim for presentation.
type Comic struct {
	Title      string
	Transcript string
	Fields     map[string]json.RawMessage
}

// Field returns a string-valued presentation field, or "".
func (c Comic) Field(name string) string {
	raw, ok := c.Fields[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func (c *Comic) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Comic{}
	if v, ok := raw["title"]; ok {
		_ = json.Unmarshal(v, &c.Title)
		delete(raw, "title")
	}
	if v, ok := raw["transcript"]; ok {
		_ = json.Unmarshal(v, &c.Transcript)
		delete(raw, "transcript")
	}
	if len(raw) > 0 {
		c.Fields = raw
	}
	return nil
}

func (c Comic) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(c.Fields)+2)
	for k, v := range c.Fields {
		out[k] = v
	}
	title, err := json.Marshal(c.Title)
	if err != nil {
		return nil, err
	}
	transcript, err := json.Marshal(c.Transcript)
	if err != nil {
		return nil, err
	}
	out["title"] = title
	out["transcript"] = transcript
	return json.Marshal(out)
}

// Shard holds one year of comics keyed by ISO date.
type Shard map[string]Comic

// ParseShard decodes a year document. Null records are dropped.
func ParseShard(data []byte) (Shard, error) {
	var raw map[string]*Comic
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("archive: parse shard: %w", err)
	}
	s := make(Shard, len(raw))
	for date, c := range raw {
		if c == nil {
			continue
		}
		s[date] = *c
	}
	return s, nil
}

// Dates returns the shard's dates in ascending order.
func (s Shard) Dates() []string {
	dates := make([]string, 0, len(s))
	for d := range s {
		dates = append(dates, d)
	}
	slices.Sort(dates)
	return dates
}

// LastDate returns the lexicographically last date, or "".
func (s Shard) LastDate() string {
	last := ""
	for d := range s {
		if d > last {
			last = d
		}
	}
	return last
}

// YearOf returns the year component of a "YYYY-MM-DD" date, or "" when the
// date has no numeric year prefix.
func YearOf(date string) string {
	year, _, _ := strings.Cut(date, "-")
	if year == "" || len(year) > 6 {
		return ""
	}
	for _, r := range year {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return year
}
