package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	opts, err := parseArgs([]string{"run", "ids.txt", "--download-images", "--source", "listing"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "ids.txt", opts.file)
	assert.True(t, opts.images)
	assert.Equal(t, "listing", opts.source)

	opts, err = parseArgs([]string{"sync", "--config", "c.yaml", "ids.txt", "--every", "15m"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "c.yaml", opts.configPath)
	assert.Equal(t, 15*time.Minute, opts.every)

	for _, args := range [][]string{
		nil,
		{"run"},
		{"export", "ids.txt"},
		{"run", "a.txt", "b.txt"},
		{"run", "ids.txt", "--every", "1h"},
	} {
		_, err := parseArgs(args, io.Discard)
		assert.Error(t, err, "%v", args)
	}
}

func TestRun_MissingFile(t *testing.T) {
	var stderr bytes.Buffer
	code := run(context.Background(), []string{"run", filepath.Join(t.TempDir(), "nope.txt")}, io.Discard, &stderr)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr.String(), "usage:")

	assert.Equal(t, exitUsage, run(context.Background(), []string{"run"}, io.Discard, io.Discard))
}

func writeConfig(t *testing.T, apiURL string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf(`supplier:
  api_url: %s
sync:
  concurrency: 2
  per_request_delay: 0s
  inter_batch_delay: 0s
  base_delay: 0s
storage:
  driver: sqlite3
  sqlite:
    path: %s
export:
  dir: %s
`, apiURL, filepath.Join(dir, "catalog.db"), filepath.Join(dir, "exports"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func writeIDs(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ids.txt")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRun_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"product":{"id":4411,"code":"EL-100","name":"Berry Blast 10ml","stock":3,"price":"3.20","category":"E-liquids"}}`)
	}))
	defer srv.Close()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"run", writeIDs(t, "EL-100\n"), "--config", writeConfig(t, srv.URL)}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "Fetched 1 records from 1 identifiers (0 failed)")
	assert.Contains(t, out, "Berry Blast 10ml")
	assert.Contains(t, out, "Exported to ")
}

func TestRun_NothingFetched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	var stderr bytes.Buffer
	code := run(context.Background(), []string{"run", writeIDs(t, "EL-404\n"), "--config", writeConfig(t, srv.URL)}, io.Discard, &stderr)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr.String(), "no records were fetched")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestServeMetrics(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	var logs syncBuffer
	stop := serveMetrics(addr, &logs)
	defer stop()

	assert.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)
	assert.Contains(t, logs.String(), "[ Metrics ]")
}

func TestServeMetrics_ListenErrorIsLogged(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	var logs syncBuffer
	stop := serveMetrics(ln.Addr().String(), &logs)
	defer stop()

	assert.Eventually(t, func() bool {
		return bytes.Contains([]byte(logs.String()), []byte("metrics server:"))
	}, 2*time.Second, 20*time.Millisecond)
}
