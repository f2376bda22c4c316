package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPushReplaceBackForward(t *testing.T) {
	h := New("")
	var seen []string
	h.OnExternalChange(func(d string) { seen = append(seen, d) })

	h.ReplaceDate("2023-03-12")
	h.PushDate("2023-03-11")
	h.PushDate("2023-03-10")
	h.PushDate("2023-03-10")

	entries, pos := h.Entries()
	assert.Equal(t, []string{"2023-03-12", "2023-03-11", "2023-03-10"}, entries)
	assert.Equal(t, 2, pos)
	assert.Empty(t, seen, "push and replace do not notify")

	assert.True(t, h.Back())
	assert.True(t, h.Back())
	assert.False(t, h.Back())
	assert.Equal(t, "2023-03-12", h.RequestedDate())
	assert.Equal(t, []string{"2023-03-11", "2023-03-12"}, seen)
	assert.False(t, h.CanBack())
	assert.True(t, h.CanForward())

	assert.True(t, h.Forward())
	assert.Equal(t, "2023-03-11", h.RequestedDate())

	// Pushing drops the forward entries.
	h.PushDate("1990-01-01")
	entries, pos = h.Entries()
	assert.Equal(t, []string{"2023-03-12", "2023-03-11", "1990-01-01"}, entries)
	assert.Equal(t, 2, pos)
	assert.False(t, h.Forward())
}

func TestLimit(t *testing.T) {
	h := New("a")
	h.limit = 3
	for _, d := range []string{"b", "c", "d", "e"} {
		h.PushDate(d)
	}
	entries, pos := h.Entries()
	assert.Equal(t, []string{"c", "d", "e"}, entries)
	assert.Equal(t, 2, pos)
}

func TestQuery(t *testing.T) {
	h := New("")
	assert.Equal(t, "", h.Query())
	h.PushDate("2001-02-03")
	assert.Equal(t, "?date=2001-02-03", h.Query())
}

func TestParseQuery(t *testing.T) {
	cases := map[string]string{
		"?date=2001-02-03":                         "2001-02-03",
		"date=2001-02-03":                          "2001-02-03",
		"https://example.com/?x=1&date=1999-01-01": "1999-01-01",
		"https://example.com/?date=1999-01-01#top": "1999-01-01",
		"":                                         "",
		"?other=1":                                 "",
		"?date=%zz":                                "",
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseQuery(in), in)
	}
}

func TestListenerMayRegisterDuringNotify(t *testing.T) {
	h := New("2001-01-01")
	h.PushDate("2001-01-02")
	h.PushDate("2001-01-03")

	first, second := 0, 0
	h.OnExternalChange(func(string) {
		first++
		if first == 1 {
			h.OnExternalChange(func(string) { second++ })
		}
	})

	assert.True(t, h.Back())
	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second, "a listener added mid-notify waits for the next change")

	assert.True(t, h.Back())
	assert.Equal(t, 2, first)
	assert.Equal(t, 1, second)
}
