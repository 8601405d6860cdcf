// Package session stores authenticated sessions in Redis. A session token
// maps to the principal resolved at login; the catalog and route table are
// per-process, so the session carries only identity and role assignments.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/canopysoft/atrium/pkg/observability"
	"github.com/canopysoft/atrium/pkg/principal"
)

// ErrNotFound is returned for a missing or expired session token
var ErrNotFound = fmt.Errorf("session not found")

// Session is one authenticated session
type Session struct {
	Token     string               `json:"token"`
	Principal *principal.Principal `json:"principal"`
	CreatedAt time.Time            `json:"created_at"`
	ExpiresAt time.Time            `json:"expires_at"`
}

// Config configures the session store
type Config struct {
	RedisURL      string
	RedisPassword string
	TTL           time.Duration
}

// Store keeps sessions in Redis with a sliding TTL
type Store struct {
	client  *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewStore connects to Redis and returns a session store
func NewStore(config Config, metrics *observability.Metrics) (*Store, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if config.RedisPassword != "" {
		opts.Password = config.RedisPassword
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := config.TTL
	if ttl == 0 {
		ttl = 12 * time.Hour
	}
	return &Store{client: client, ttl: ttl, metrics: metrics}, nil
}

// Client exposes the underlying redis client for health checks
func (s *Store) Client() *redis.Client {
	return s.client
}

func sessionKey(token string) string {
	return "session:" + token
}

// Create stores a new session for the principal and returns it
func (s *Store) Create(ctx context.Context, p *principal.Principal) (*Session, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	session := &Session{
		Token:     token,
		Principal: p,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(token), data, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	if s.metrics != nil {
		s.metrics.SessionsActive.Inc()
	}
	return session, nil
}

// Get resolves a session token. The TTL slides on every successful lookup
// so active sessions stay alive.
func (s *Store) Get(ctx context.Context, token string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKey(token)).Result()
	if err == redis.Nil {
		s.observeLookup("miss")
		return nil, ErrNotFound
	}
	if err != nil {
		s.observeLookup("error")
		return nil, fmt.Errorf("session lookup failed: %w", err)
	}

	var session Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		// corrupt entry; drop it rather than serving garbage
		s.client.Del(ctx, sessionKey(token))
		s.observeLookup("error")
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	s.client.Expire(ctx, sessionKey(token), s.ttl)
	s.observeLookup("hit")
	return &session, nil
}

// Delete removes a session (logout)
func (s *Store) Delete(ctx context.Context, token string) error {
	removed, err := s.client.Del(ctx, sessionKey(token)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if removed > 0 && s.metrics != nil {
		s.metrics.SessionsActive.Dec()
	}
	return nil
}

// Count scans for live session keys. The active-sessions gauge drifts when
// sessions expire silently in redis; Count gives maintenance jobs the true
// value to resync it with.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var total int64
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, "session:*", 512).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to scan sessions: %w", err)
		}
		total += int64(len(keys))
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}

// SyncActiveGauge resets the active-sessions gauge to the scanned count
func (s *Store) SyncActiveGauge(ctx context.Context) (int64, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.SessionsActive.Set(float64(count))
	}
	return count, nil
}

// Close closes the redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) observeLookup(result string) {
	if s.metrics != nil {
		s.metrics.SessionLookupsTotal.WithLabelValues(result).Inc()
	}
}

func newToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
