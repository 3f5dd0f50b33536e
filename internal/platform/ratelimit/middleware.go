package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// KeyFunc derives the limiter key from a request.
type KeyFunc func(r *http.Request) string

// RejectFunc writes the response for a denied request.
type RejectFunc func(w http.ResponseWriter, r *http.Request, retryAfter time.Duration)

// Options configures Middleware.
type Options struct {
	Store *Store
	Stats StatsRecorder
	KeyFn KeyFunc
	// KeyHeader is consulted by the default key function before the client IP.
	KeyHeader string
	// RouteFn labels stats events; defaults to the raw URL path.
	RouteFn  func(r *http.Request) string
	OnReject RejectFunc
	// AddHeaders exposes the limiter configuration on every response.
	AddHeaders bool
	// Skip bypasses limiting for matching requests.
	Skip func(r *http.Request) bool
	// OnStatsError observes failed stats writes.
	OnStatsError func(error)
}

// DefaultKeyFunc keys by header value, then by remote IP.
func DefaultKeyFunc(keyHeader string) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// Middleware rejects requests whose key exhausted its token bucket.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader)
	}
	if opts.RouteFn == nil {
		opts.RouteFn = func(r *http.Request) string { return r.URL.Path }
	}
	if opts.OnReject == nil {
		opts.OnReject = func(w http.ResponseWriter, _ *http.Request, _ time.Duration) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}
	}

	return func(next http.Handler) http.Handler {
		if opts.Store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.Skip != nil && opts.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			key := opts.KeyFn(r)
			if opts.AddHeaders {
				w.Header().Set("X-RateLimit-RPS", strconv.FormatFloat(opts.Store.RPS(), 'f', -1, 64))
				w.Header().Set("X-RateLimit-Burst", strconv.Itoa(opts.Store.Burst()))
			}

			dec := opts.Store.Allow(key)
			if opts.Stats != nil {
				err := opts.Stats.Record(r.Context(), StatsEvent{
					Key:     key,
					Allowed: dec.Allowed,
					Method:  r.Method,
					Path:    opts.RouteFn(r),
					At:      time.Now(),
				})
				if err != nil && opts.OnStatsError != nil {
					opts.OnStatsError(err)
				}
			}
			if !dec.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(dec.RetryAfter)))
				opts.OnReject(w, r, dec.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
