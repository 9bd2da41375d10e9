package clients

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"suppliersync/internal/supplier/pkg"
	"suppliersync/internal/supplier/storage"
)

func TestMediaClient_FetchImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		io.WriteString(w, "PNGDATA")
	}))
	defer srv.Close()

	dir := t.TempDir()
	client := NewImageClient(storage.NewImageStore(dir), 5*time.Second, "test-agent", io.Discard)

	path, err := client.FetchImage(context.Background(), srv.URL+"/media/4411", "4411")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "4411.png"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "PNGDATA", string(data))
}

func TestMediaClient_FetchImageFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	dir := t.TempDir()
	client := NewImageClient(storage.NewImageStore(dir), 5*time.Second, "", io.Discard)

	_, err := client.FetchImage(context.Background(), srv.URL+"/a.jpg", "a")
	require.Error(t, err)
	assert.True(t, pkg.IsTransient(err))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestImageExtension(t *testing.T) {
	assert.Equal(t, ".webp", imageExtension("image/jpeg", "https://cdn.example/x/y.WEBP?v=2"))
	assert.Equal(t, ".png", imageExtension("image/png", "https://cdn.example/media/12"))
	assert.Equal(t, ".jpg", imageExtension("", "https://cdn.example/media/12"))
}
