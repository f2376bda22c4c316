package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateYear(t *testing.T) {
	for _, ok := range []string{"1990", "2024", "7"} {
		assert.NoError(t, ValidateYear(ok), ok)
	}
	for _, bad := range []string{"", "../etc", "19a0", "2024.json", "1234567"} {
		assert.Error(t, ValidateYear(bad), bad)
	}
}

func TestStatusErrorMatchesNotFound(t *testing.T) {
	var err error = &StatusError{Path: "comics-data/1999.json", Code: 404}
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, 404, err.(*StatusError).StatusCode())

	err = &StatusError{Path: "x", Code: 500}
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestHTTPFetch(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/archive/comics-index.json":
			_, _ = w.Write([]byte(`{"2024-01-01":{"year":"2024"}}`))
		case "/archive/comics-data/2024.json":
			_, _ = w.Write([]byte(`{"2024-01-01":{"title":"t"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	h, err := NewHTTP(srv.URL+"/archive", HTTPOptions{RateLimit: -1})
	require.NoError(t, err)

	ctx := context.Background()
	idx, err := h.FetchIndex(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(idx), "2024-01-01")

	shard, err := h.FetchShard(ctx, "2024")
	require.NoError(t, err)
	assert.Contains(t, string(shard), `"title":"t"`)

	_, err = h.FetchShard(ctx, "1990")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "comics-data/1990.json", se.Path)

	_, err = h.FetchShard(ctx, "../secret")
	require.Error(t, err)
	assert.Equal(t, int32(3), hits.Load(), "invalid year never reaches the origin")
}

func TestHTTPRejectsBadScheme(t *testing.T) {
	_, err := NewHTTP("ftp://example.com", HTTPOptions{})
	assert.Error(t, err)
}

func TestHTTPCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	h, err := NewHTTP(srv.URL, HTTPOptions{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.FetchIndex(ctx)
	assert.Error(t, err)
}

func TestDirFetch(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "comics-data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "comics-index.json"), []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "comics-data", "1995.json"), []byte(`{"a":1}`), 0o644))

	d, err := NewDir(root, Layout{})
	require.NoError(t, err)

	ctx := context.Background()
	idx, err := d.FetchIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(idx))

	shard, err := d.FetchShard(ctx, "1995")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(shard))

	_, err = d.FetchShard(ctx, "1996")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewDirMissing(t *testing.T) {
	_, err := NewDir(filepath.Join(t.TempDir(), "nope"), Layout{})
	assert.Error(t, err)
}

func TestObjectStoreKeys(t *testing.T) {
	o := newObjectStore(nil, ObjectStoreConfig{Bucket: "b", Prefix: "/archive/"})
	assert.Equal(t, "archive/comics-index.json", o.key(o.layout.IndexPath))
	assert.Equal(t, "archive/comics-data/2001.json", o.key(o.layout.ShardPath("2001")))

	o = newObjectStore(nil, ObjectStoreConfig{Bucket: "b"})
	assert.Equal(t, "comics-index.json", o.key("comics-index.json"))
}

func TestNewObjectStoreValidates(t *testing.T) {
	_, err := NewObjectStore(ObjectStoreConfig{Bucket: "b"})
	assert.Error(t, err)
	o, err := NewObjectStore(ObjectStoreConfig{Endpoint: "localhost:9000", Bucket: "b", AccessKey: "k", SecretKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, "b", o.bucket)
}
