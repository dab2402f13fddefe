package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNoSession means the session expired, was destroyed or never existed.
var ErrNoSession = errors.New("session not found")

const keyPrefix = "meeting:session:"

// Session is a server-side login.
type Session struct {
	ID        string
	MemberID  string
	ExpiresAt time.Time
}

// Store keeps sessions in Redis with a sliding TTL.
type Store struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewStore creates a session store.
func NewStore(client redis.UniversalClient, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

// TTL is the idle lifetime of a session.
func (s *Store) TTL() time.Duration { return s.ttl }

// Create starts a session for memberID.
func (s *Store) Create(ctx context.Context, memberID string) (Session, error) {
	sess := Session{
		ID:        uuid.NewString(),
		MemberID:  memberID,
		ExpiresAt: time.Now().Add(s.ttl),
	}
	if err := s.client.Set(ctx, keyPrefix+sess.ID, memberID, s.ttl).Err(); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Lookup returns the member bound to id and extends the session.
func (s *Store) Lookup(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", ErrNoSession
	}
	memberID, err := s.client.GetEx(ctx, keyPrefix+id, s.ttl).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", err
	}
	return memberID, nil
}

// Destroy ends a session. Destroying an unknown session is not an error.
func (s *Store) Destroy(ctx context.Context, id string) error {
	return s.client.Del(ctx, keyPrefix+id).Err()
}
