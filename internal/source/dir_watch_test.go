package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirChangeFor(t *testing.T) {
	root := t.TempDir()
	d, err := NewDir(root, Layout{})
	require.NoError(t, err)

	tests := []struct {
		path string
		want Change
		ok   bool
	}{
		{"comics-index.json", Change{Index: true}, true},
		{"comics-data/1999.json", Change{Year: "1999"}, true},
		{"comics-data/1999.json.tmp", Change{}, false},
		{"comics-data/notes.json", Change{}, false},
		{"other/1999.json", Change{}, false},
		{"README.md", Change{}, false},
	}
	for _, tt := range tests {
		got, ok := d.changeFor(filepath.Join(root, filepath.FromSlash(tt.path)))
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}

func TestDirWatchReportsRewrites(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "comics-data"), 0o755))
	d, err := NewDir(root, Layout{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan Change, 8)
	require.NoError(t, d.Watch(ctx, func(c Change) { changes <- c }))

	require.NoError(t, os.WriteFile(filepath.Join(root, "comics-data", "2001.json"), []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ignored.txt"), []byte(`x`), 0o644))

	select {
	case c := <-changes:
		assert.Equal(t, Change{Year: "2001"}, c)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	select {
	case c := <-changes:
		t.Fatalf("unexpected extra change %+v", c)
	case <-time.After(2 * watchDebounce):
	}
}

func TestDirWatchMissingRoot(t *testing.T) {
	d := &Dir{root: filepath.Join(t.TempDir(), "gone")}
	d.origin = origin{layout: DefaultLayout()}
	assert.Error(t, d.Watch(context.Background(), func(Change) {}))
}
