package shared

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionManager issues bearer tokens and keeps their payload in Redis.
type SessionManager struct {
	client *redis.Client
	ttl    time.Duration
	secret []byte
	clock  Clock
}

// Session holds per-token data.
type Session struct {
	ID        string            `json:"-"`
	UserID    int64             `json:"user_id"`
	Values    map[string]string `json:"values"`
	IssuedAt  time.Time         `json:"issued_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, secret string, ttl time.Duration, clock Clock) *SessionManager {
	if clock == nil {
		clock = SystemClock(time.UTC)
	}
	return &SessionManager{
		client: client,
		ttl:    ttl,
		secret: []byte(secret),
		clock:  clock,
	}
}

// Issue creates a session for userID and returns the signed token.
func (sm *SessionManager) Issue(ctx context.Context, userID int64, values map[string]string) (string, *Session, error) {
	if userID <= 0 {
		return "", nil, errors.New("session: user id required")
	}
	now := sm.clock.Now()
	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Values:    values,
		IssuedAt:  now,
		ExpiresAt: now.Add(sm.ttl),
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return "", nil, err
	}
	if err := sm.client.Set(ctx, sm.redisKey(sess.ID), data, sm.ttl).Err(); err != nil {
		return "", nil, fmt.Errorf("session: store: %w", err)
	}
	return sm.sign(sess.ID), sess, nil
}

// Load resolves a token into its session. Unknown, expired or tampered tokens
// yield ErrUnauthorized.
func (sm *SessionManager) Load(ctx context.Context, token string) (*Session, error) {
	id, ok := sm.verify(token)
	if !ok {
		return nil, ErrUnauthorized
	}
	payload, err := sm.client.Get(ctx, sm.redisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, err
	}
	sess.ID = id
	return &sess, nil
}

// Destroy revokes the token.
func (sm *SessionManager) Destroy(ctx context.Context, token string) error {
	id, ok := sm.verify(token)
	if !ok {
		return ErrUnauthorized
	}
	if err := sm.client.Del(ctx, sm.redisKey(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// Get retrieves a value.
func (s *Session) Get(key string) string {
	if s == nil || s.Values == nil {
		return ""
	}
	return s.Values[key]
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func (sm *SessionManager) redisKey(id string) string {
	return "session:" + id
}

func (sm *SessionManager) sign(id string) string {
	return id + "." + base64.RawURLEncoding.EncodeToString(sm.mac(id))
}

func (sm *SessionManager) verify(token string) (string, bool) {
	id, sig, found := strings.Cut(token, ".")
	if !found || id == "" {
		return "", false
	}
	raw, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", false
	}
	if !hmac.Equal(raw, sm.mac(id)) {
		return "", false
	}
	return id, true
}

func (sm *SessionManager) mac(id string) []byte {
	mac := hmac.New(sha256.New, sm.secret)
	_, _ = mac.Write([]byte(id))
	return mac.Sum(nil)
}
