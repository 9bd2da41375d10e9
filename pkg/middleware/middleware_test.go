package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChain_OrderAndHeader(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next RoundTrip) RoundTrip {
			return func(ctx context.Context, req *http.Request) (*http.Response, error) {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}

	var seenKey string
	final := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		seenKey = req.Header.Get("X-Api-Key")
		return &http.Response{StatusCode: http.StatusOK}, nil
	}

	rt := Chain(final, tag("outer"), Header("X-Api-Key", "secret"), tag("inner"), SupplierMetrics("test"))
	req := httptest.NewRequest(http.MethodGet, "http://supplier.test/x", nil)

	resp, err := rt(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"outer", "inner"}, order)
	assert.Equal(t, "secret", seenKey)
}

func TestHeader_EmptyValueIsSkipped(t *testing.T) {
	var present bool
	final := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		_, present = req.Header["X-Api-Key"]
		return &http.Response{StatusCode: http.StatusOK}, nil
	}
	req := httptest.NewRequest(http.MethodGet, "http://supplier.test/x", nil)
	_, err := Chain(final, Header("X-Api-Key", ""))(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, present)
}

func TestPrometheusMiddleware_KeepsStatus(t *testing.T) {
	h := PrometheusMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestTransport_RunsChain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Echo", r.Header.Get("X-Api-Key"))
	}))
	defer srv.Close()

	client := &http.Client{Transport: Transport(nil, Header("X-Api-Key", "k1"), SupplierMetrics("test"))}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "k1", resp.Header.Get("X-Echo"))
}
