package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestStore(t *testing.T, handler http.Handler) *BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)

	store, err := New(client, Config{Bucket: "test-bucket"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPutObjectUploadsToBucket(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/test-bucket/o")
		assert.Equal(t, "scdx/run/out.jsonl", r.URL.Query().Get("name"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), `{"url":"http://example.com/a"}`)
		assert.Contains(t, string(body), "application/x-ndjson")

		fmt.Fprintln(w, `{"name":"scdx/run/out.jsonl","bucket":"test-bucket"}`)
	})
	store := newTestStore(t, handler)

	uri, err := store.PutObject(context.Background(), "scdx/run/out.jsonl", "application/x-ndjson",
		strings.NewReader("{\"url\":\"http://example.com/a\"}\n"))
	require.NoError(t, err)
	require.Equal(t, "gs://test-bucket/scdx/run/out.jsonl", uri)
}

func TestPutObjectServerError(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"denied"}}`, http.StatusForbidden)
	}))

	_, err := store.PutObject(context.Background(), "obj", "", strings.NewReader("x"))
	require.Error(t, err)
}

func TestValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	store := &BlobStore{bucket: "b"}
	_, err = store.PutObject(context.Background(), "  ", "", strings.NewReader(""))
	require.Error(t, err)
}
