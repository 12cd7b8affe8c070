package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	staticmetrics "github.com/dreschagin/static-server/internal/metrics"
	"golang.org/x/time/rate"
)

const (
	maxClients = 10_000
	clientTTL  = 10 * time.Minute
)

// client is the bucket kept for one peer address.
type client struct {
	bucket *rate.Limiter
	seen   time.Time
}

// Limiter enforces a process-wide token bucket and one bucket per peer
// address. Peers idle for longer than clientTTL are swept lazily, at most
// once per TTL unless the table is full.
type Limiter struct {
	rps   rate.Limit
	burst int
	now   func() time.Time

	global *rate.Limiter

	mu        sync.Mutex
	clients   map[string]*client
	lastSweep time.Time
}

func New(rps float64, burst int) *Limiter {
	return &Limiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
		global:  rate.NewLimiter(rate.Limit(rps), burst),
		clients: make(map[string]*client),
	}
}

// Middleware answers over-limit requests with 429 and a Retry-After hint.
// metrics may be nil.
func (l *Limiter) Middleware(metrics *staticmetrics.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.allow(peerAddr(r)) {
			next.ServeHTTP(w, r)
			return
		}

		if metrics != nil {
			metrics.RateLimitDropped.Inc()
		}
		w.Header().Set("Retry-After", "1")
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
	})
}

func (l *Limiter) allow(addr string) bool {
	now := l.now()
	if !l.global.AllowN(now, 1) {
		return false
	}
	return l.bucket(addr, now).AllowN(now, 1)
}

func (l *Limiter) bucket(addr string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.clients) >= maxClients || now.Sub(l.lastSweep) >= clientTTL {
		l.sweepLocked(now)
	}

	c, ok := l.clients[addr]
	if !ok {
		c = &client{bucket: rate.NewLimiter(l.rps, l.burst)}
		l.clients[addr] = c
	}
	c.seen = now
	return c.bucket
}

func (l *Limiter) sweepLocked(now time.Time) {
	cutoff := now.Add(-clientTTL)
	for addr, c := range l.clients {
		if c.seen.Before(cutoff) {
			delete(l.clients, addr)
		}
	}
	l.lastSweep = now
}

// peerAddr keys limits on the socket peer. The server binds to loopback, so
// forwarding headers are not trusted.
func peerAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
