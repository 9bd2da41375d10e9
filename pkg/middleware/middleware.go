package middleware

import (
	"context"
	"net/http"
	"time"

	"suppliersync/metrics"
)

// RoundTrip performs one outbound supplier request.
type RoundTrip func(ctx context.Context, req *http.Request) (*http.Response, error)

type Middleware func(next RoundTrip) RoundTrip

// Chain wraps rt so that the first middleware is the outermost.
func Chain(rt RoundTrip, mws ...Middleware) RoundTrip {
	for i := len(mws) - 1; i >= 0; i-- {
		rt = mws[i](rt)
	}
	return rt
}

// SupplierMetrics records status and latency of every supplier request under
// the given source label.
func SupplierMetrics(source string) Middleware {
	return func(next RoundTrip) RoundTrip {
		return func(ctx context.Context, req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			status := 0
			if resp != nil {
				status = resp.StatusCode
			}
			metrics.RecordSupplierRequest(source, status, time.Since(start))
			return resp, err
		}
	}
}

// Header sets a static header on every request, e.g. the supplier API key.
func Header(key, value string) Middleware {
	return func(next RoundTrip) RoundTrip {
		return func(ctx context.Context, req *http.Request) (*http.Response, error) {
			if value != "" {
				req.Header.Set(key, value)
			}
			return next(ctx, req)
		}
	}
}

type transport struct {
	rt RoundTrip
}

func (t transport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.rt(req.Context(), req)
}

// Transport exposes a middleware chain as an http.RoundTripper for clients
// that own their http.Client, like the listing collector.
func Transport(base http.RoundTripper, mws ...Middleware) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	send := func(_ context.Context, req *http.Request) (*http.Response, error) {
		return base.RoundTrip(req)
	}
	return transport{rt: Chain(send, mws...)}
}
