package archive

import (
	"slices"
	"strconv"

	"github.com/RoaringBitmap/roaring/v2"
)

// yearSet is a set of year strings. Canonical decimal years live in a
// roaring bitmap; anything else falls back to a map. Not safe for
// concurrent use.
type yearSet struct {
	bits  *roaring.Bitmap
	other map[string]struct{}
}

func newYearSet() yearSet {
	return yearSet{bits: roaring.New()}
}

// yearNum parses a canonical decimal year ("1989", not "01989").
func yearNum(year string) (uint32, bool) {
	n, err := strconv.ParseUint(year, 10, 32)
	if err != nil || strconv.FormatUint(n, 10) != year {
		return 0, false
	}
	return uint32(n), true
}

func (s *yearSet) add(year string) {
	if n, ok := yearNum(year); ok {
		s.bits.Add(n)
		return
	}
	if s.other == nil {
		s.other = make(map[string]struct{})
	}
	s.other[year] = struct{}{}
}

func (s *yearSet) remove(year string) {
	if n, ok := yearNum(year); ok {
		s.bits.Remove(n)
		return
	}
	delete(s.other, year)
}

func (s *yearSet) contains(year string) bool {
	if n, ok := yearNum(year); ok {
		return s.bits.Contains(n)
	}
	_, ok := s.other[year]
	return ok
}

func (s *yearSet) len() int {
	return int(s.bits.GetCardinality()) + len(s.other)
}

// slice returns numeric years ascending, followed by any others sorted.
func (s *yearSet) slice() []string {
	out := make([]string, 0, s.len())
	it := s.bits.Iterator()
	for it.HasNext() {
		out = append(out, strconv.FormatUint(uint64(it.Next()), 10))
	}
	if len(s.other) > 0 {
		rest := make([]string, 0, len(s.other))
		for y := range s.other {
			rest = append(rest, y)
		}
		slices.Sort(rest)
		out = append(out, rest...)
	}
	return out
}
