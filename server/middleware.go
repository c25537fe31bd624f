package server

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/juju/ratelimit"

	"github.com/giygas/medisearch/config"
	"github.com/giygas/medisearch/handlers"
	"github.com/giygas/medisearch/logging"
	"github.com/giygas/medisearch/metrics"
	"github.com/giygas/medisearch/session"
)

// Resolver decides where a request for a location may go. *session.Gate
// implements it.
type Resolver interface {
	Resolve(location string) session.Decision
}

// GateMiddleware applies the session gate to every request it wraps: allowed
// requests pass, redirects point at the login or root path and requests made
// while the session is still resolving get a loading response.
func GateMiddleware(gate Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := gate.Resolve(r.URL.Path)

			switch decision.Kind {
			case session.DecisionAllow:
				next.ServeHTTP(w, r)

			case session.DecisionRedirect:
				code := http.StatusFound
				if r.Method != http.MethodGet && r.Method != http.MethodHead {
					code = http.StatusSeeOther
				}
				http.Redirect(w, r, decision.Location, code)

			default:
				w.Header().Set("Retry-After", "1")
				handlers.RespondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status":  "loading",
					"message": "Loading...",
				})
			}
		})
	}
}

// RealIPMiddleware replaces RemoteAddr with the client address reported by a
// proxy, preferring X-Real-IP over the first X-Forwarded-For entry. Values
// that are not IP addresses are ignored.
func RealIPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		candidate := strings.TrimSpace(r.Header.Get("X-Real-IP"))
		if candidate == "" {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				candidate, _, _ = strings.Cut(xff, ",")
				candidate = strings.TrimSpace(candidate)
			}
		}

		if candidate != "" && net.ParseIP(candidate) != nil {
			r.RemoteAddr = candidate
		}
		next.ServeHTTP(w, r)
	})
}

// RequestSizeMiddleware limits the size of request headers and body
func RequestSizeMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > cfg.MaxRequestBody {
				logging.Warn("Request body too large",
					"content_length", r.ContentLength,
					"max_allowed", cfg.MaxRequestBody,
					"remote_addr", r.RemoteAddr,
					"user_agent", r.UserAgent())

				handlers.RespondWithError(w, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("Request body too large. Maximum allowed size is %d bytes", cfg.MaxRequestBody))
				return
			}

			// Check header size (rough estimate)
			headerSize := int64(0)
			for key, values := range r.Header {
				headerSize += int64(len(key))
				for _, value := range values {
					headerSize += int64(len(value))
				}
			}

			if headerSize > cfg.MaxHeaderSize {
				logging.Warn("Request headers too large",
					"header_size", headerSize,
					"max_allowed", cfg.MaxHeaderSize,
					"remote_addr", r.RemoteAddr,
					"user_agent", r.UserAgent())

				handlers.RespondWithError(w, http.StatusRequestHeaderFieldsTooLarge,
					fmt.Sprintf("Request headers too large. Maximum allowed size is %d bytes", cfg.MaxHeaderSize))
				return
			}

			// Chunked bodies carry no Content-Length
			r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxRequestBody)
			next.ServeHTTP(w, r)
		})
	}
}

const (
	defaultRate     = 3
	defaultCapacity = 1000
)

// RateLimiter manages per-client rate limiting
type RateLimiter struct {
	clients  map[string]*ratelimit.Bucket
	mu       sync.RWMutex
	rate     float64
	capacity int64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a rate limiter refilling rate tokens per second up
// to capacity for every client
func NewRateLimiter(rate float64, capacity int64) *RateLimiter {
	return &RateLimiter{
		clients:  make(map[string]*ratelimit.Bucket),
		rate:     rate,
		capacity: capacity,
		stop:     make(chan struct{}),
	}
}

func (rl *RateLimiter) getBucket(clientIP string) *ratelimit.Bucket {
	rl.mu.RLock()
	bucket, exists := rl.clients[clientIP]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		if bucket, exists = rl.clients[clientIP]; !exists {
			bucket = ratelimit.NewBucketWithRate(rl.rate, rl.capacity)
			rl.clients[clientIP] = bucket
			metrics.RateLimiterBucketsTotal.Set(float64(len(rl.clients)))
		}
		rl.mu.Unlock()
	}

	return bucket
}

// sweep removes clients whose bucket has refilled completely
func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, bucket := range rl.clients {
		if bucket.Available() == bucket.Capacity() {
			delete(rl.clients, ip)
		}
	}
	metrics.RateLimiterBucketsTotal.Set(float64(len(rl.clients)))
}

// StartCleanup sweeps idle clients every interval until Stop
func (rl *RateLimiter) StartCleanup(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-rl.stop:
				return
			case <-ticker.C:
				rl.sweep()
			}
		}
	}()
}

// Stop ends the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// getTokenCost prices a request. Keystrokes are cheap because a user sends
// one per character, sign-in attempts are expensive.
func getTokenCost(r *http.Request) int64 {
	path := r.URL.Path

	switch path {
	case "/metrics":
		return 0
	case "/health":
		return 5
	case "/login":
		if r.Method == http.MethodPost {
			return 50
		}
		return 5
	case "/admin/search/input":
		return 2
	case "/admin/search":
		return 10
	case "/admin/search/voice":
		return 20
	}

	if strings.HasPrefix(path, "/admin/medicine/") {
		return 10
	}

	return 5
}

// clientKey strips the port so every connection of a client shares a bucket
func clientKey(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

// Middleware implements rate limiting using token bucket
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bucket := rl.getBucket(clientKey(r.RemoteAddr))
		tokenCost := getTokenCost(r)

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(rl.capacity, 10))
		w.Header().Set("X-RateLimit-Rate", strconv.FormatFloat(rl.rate, 'f', -1, 64))

		// A refused request takes nothing from the bucket
		if _, ok := bucket.TakeMaxDuration(tokenCost, 0); !ok {
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", "60")
			handlers.RespondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(bucket.Available(), 10))
		next.ServeHTTP(w, r)
	})
}
