package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestStore(t *testing.T, handler http.Handler, cfg Config) *BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, cfg)
	require.NoError(t, err)
	return store
}

func TestPutObjectUploadsWithPrefix(t *testing.T) {
	var (
		mu      sync.Mutex
		gotName string
		gotBody string
	)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/lore-bucket/o")
		name := r.URL.Query().Get("name")
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		mu.Lock()
		gotName, gotBody = name, string(body)
		mu.Unlock()
		fmt.Fprintln(w, `{"name": "`+name+`", "bucket": "lore-bucket"}`)
	})

	store := newTestStore(t, handler, Config{Bucket: "lore-bucket", Prefix: "/runs/"})
	uri, err := store.PutObject(context.Background(), "progress.json", "application/json", strings.NewReader(`[{"name":"JINX"}]`))
	require.NoError(t, err)
	require.Equal(t, "gs://lore-bucket/runs/progress.json", uri)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "runs/progress.json", gotName)
	require.Contains(t, gotBody, `[{"name":"JINX"}]`)
	require.Contains(t, gotBody, "application/json")
}

func TestPutObjectServerError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	store := newTestStore(t, handler, Config{Bucket: "lore-bucket"})
	_, err := store.PutObject(context.Background(), "out.csv", "text/csv", strings.NewReader("a,b"))
	require.Error(t, err)
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer client.Close()

	_, err = New(client, Config{Bucket: "  "})
	require.Error(t, err)

	store, err := New(client, Config{Bucket: "b"})
	require.NoError(t, err)
	require.Equal(t, "x.json", store.ObjectName("x.json"))
}

func TestPutObjectRequiresPath(t *testing.T) {
	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer client.Close()

	store, err := New(client, Config{Bucket: "b"})
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), " ", "", strings.NewReader(""))
	require.Error(t, err)
}
