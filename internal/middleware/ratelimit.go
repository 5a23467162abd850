// Package middleware holds the login rate limiter shared by the HTTP and gRPC
// transports.
package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/PaulBabatuyi/pairchat/internal/normalize"
)

// idleTTL is how long an untouched limiter survives cleanup.
const idleTTL = 10 * time.Minute

// LimiterStore keeps one token bucket per key and drops idle buckets.
type LimiterStore struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*clientEntry
	now     func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiterStore creates a store allowing perMinute events per key with the
// given burst. A cleanup goroutine runs every cleanupInterval until Stop.
func NewLimiterStore(perMinute, burst int, cleanupInterval time.Duration) *LimiterStore {
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst <= 0 {
		burst = perMinute
	}
	s := &LimiterStore{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   burst,
		clients: map[string]*clientEntry{},
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go s.cleanupLoop(cleanupInterval)
	}
	return s
}

func (s *LimiterStore) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

// sweep removes limiters not used within idleTTL.
func (s *LimiterStore) sweep() {
	cutoff := s.now().Add(-idleTTL)
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.clients {
		if v.lastSeen.Before(cutoff) {
			delete(s.clients, k)
		}
	}
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (s *LimiterStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *LimiterStore) getLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if e, ok := s.clients[key]; ok {
		e.lastSeen = now
		return e.limiter
	}
	limiter := rate.NewLimiter(s.limit, s.burst)
	s.clients[key] = &clientEntry{limiter: limiter, lastSeen: now}
	return limiter
}

// Allow reports whether an event for key is permitted now.
func (s *LimiterStore) Allow(key string) bool {
	return s.getLimiter(key).AllowN(s.now(), 1)
}

// LoginKey picks the bucket for a login attempt: the normalized phone when
// present, otherwise the remote address.
func LoginKey(phone, remoteAddr string) string {
	if p := normalize.Phone(phone); p != "" {
		return "phone:" + p
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		remoteAddr = host
	}
	if remoteAddr == "" {
		return "unknown"
	}
	return "addr:" + remoteAddr
}

// RateLimitUnaryInterceptor limits the listed methods. Requests exposing
// GetPhone are keyed by phone, everything else by peer address.
func RateLimitUnaryInterceptor(store *LimiterStore, limitedMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !limitedMethods[info.FullMethod] {
			return handler(ctx, req)
		}

		var addr, phone string
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			addr = p.Addr.String()
		}
		type phoneGetter interface{ GetPhone() string }
		if pg, ok := req.(phoneGetter); ok {
			phone = pg.GetPhone()
		}

		if !store.Allow(LoginKey(phone, addr)) {
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(ctx, req)
	}
}

// RateLimitLogin wraps an HTTP login handler. The phone form field selects the
// bucket; rejected requests get 429 from onLimited.
func RateLimitLogin(store *LimiterStore, onLimited http.HandlerFunc, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !store.Allow(LoginKey(r.FormValue("phone"), r.RemoteAddr)) {
			onLimited(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
