package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ucgmax/webhook-receiver/internal/api"
	"github.com/ucgmax/webhook-receiver/internal/metrics"
	"go.uber.org/zap"
)

// WindowStore counts hits per key in fixed windows.
// Hit records one hit and returns the count so far in the current window and when it ends.
type WindowStore interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
}

// clientState tracks request counts for a single key.
type clientState struct {
	count     int64
	windowEnd time.Time
}

// MemoryWindowStore keeps windows in process memory.
type MemoryWindowStore struct {
	mu          sync.Mutex
	clients     map[string]*clientState
	now         func() time.Time
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewMemoryWindowStore creates an in-memory store. When cleanupEvery is positive a
// background goroutine drops expired windows; call Stop to end it.
func NewMemoryWindowStore(cleanupEvery time.Duration) *MemoryWindowStore {
	s := &MemoryWindowStore{
		clients:     make(map[string]*clientState),
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}
	if cleanupEvery > 0 {
		go s.cleanupLoop(cleanupEvery)
	}
	return s
}

// Hit implements WindowStore
func (s *MemoryWindowStore) Hit(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	client, ok := s.clients[key]
	if !ok || !now.Before(client.windowEnd) {
		client = &clientState{windowEnd: now.Add(window)}
		s.clients[key] = client
	}
	client.count++
	return client.count, client.windowEnd, nil
}

func (s *MemoryWindowStore) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

// cleanup removes expired windows and reports how many were dropped.
func (s *MemoryWindowStore) cleanup() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, client := range s.clients {
		if !now.Before(client.windowEnd) {
			delete(s.clients, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (s *MemoryWindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Stop ends the cleanup goroutine.
func (s *MemoryWindowStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
}

// RedisWindowStore shares windows between processes through Redis INCR and PEXPIRE.
type RedisWindowStore struct {
	client *redis.Client
	prefix string
}

// NewRedisWindowStore creates a store keyed under prefix.
func NewRedisWindowStore(client *redis.Client, prefix string) *RedisWindowStore {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisWindowStore{client: client, prefix: prefix}
}

// NewRedisClient parses a redis:// URL and verifies the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Hit implements WindowStore
func (s *RedisWindowStore) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	k := s.prefix + key

	count, err := s.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	if count == 1 {
		if err := s.client.PExpire(ctx, k, window).Err(); err != nil {
			return 0, time.Time{}, err
		}
		return count, time.Now().Add(window), nil
	}

	ttl, err := s.client.PTTL(ctx, k).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	if ttl < 0 {
		// The expiry was lost (e.g. a crash between INCR and PEXPIRE); start a new window.
		if err := s.client.PExpire(ctx, k, window).Err(); err != nil {
			return 0, time.Time{}, err
		}
		ttl = window
	}
	return count, time.Now().Add(ttl), nil
}

// RateLimiter rejects clients exceeding Limit requests per Window.
// Store failures let the request through and are logged.
type RateLimiter struct {
	store  WindowStore
	limit  int64
	window time.Duration
	logger *zap.Logger
}

// NewRateLimiter creates a fixed window per client IP limiter.
func NewRateLimiter(store WindowStore, limit int, window time.Duration, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		store:  store,
		limit:  int64(limit),
		window: window,
		logger: logger,
	}
}

// Wrap applies the limit before next runs. A non-positive limit disables it.
func (rl *RateLimiter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.limit <= 0 || rl.window <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		ip := ClientIP(r)
		count, resetAt, err := rl.store.Hit(r.Context(), ip, rl.window)
		if err != nil {
			rl.logger.Warn("rate limit store unavailable, allowing request",
				zap.String("client_ip", ip), RequestIDField(r.Context()), zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		remaining := max(rl.limit-count, 0)
		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(rl.limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > rl.limit {
			retryAfter := int64(time.Until(resetAt).Seconds() + 0.999)
			w.Header().Set("Retry-After", strconv.FormatInt(max(retryAfter, 1), 10))
			metrics.RecordRateLimited()
			rl.logger.Info("rate limit exceeded",
				zap.String("client_ip", ip), zap.String("path", r.URL.Path), RequestIDField(r.Context()))
			api.RespondErrorWithCode(w, http.StatusTooManyRequests, api.CodeRateLimited, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the request's client address without port.
// RemoteAddr is the socket peer unless TrustedProxies.RealIP rewrote it for a known proxy.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
