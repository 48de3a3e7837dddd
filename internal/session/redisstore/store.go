// Package redisstore keeps web sessions in Redis. A key is live while its
// Redis entry exists; deleting the entry logs the device out.
package redisstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultPrefix = "session:"
	DefaultTTL    = 14 * 24 * time.Hour

	// 20 random bytes hex-encode to the 40 characters a session key column holds
	keyBytes = 20
)

type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func New(client *redis.Client, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Store{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Create mints a fresh key bound to userID.
func (s *Store) Create(ctx context.Context, userID int64) (string, error) {
	for attempt := 0; attempt < 3; attempt++ {
		key, err := newKey()
		if err != nil {
			return "", err
		}
		ok, err := s.client.SetNX(ctx, s.buildKey(key), strconv.FormatInt(userID, 10), s.ttl).Result()
		if err != nil {
			return "", fmt.Errorf("failed to store session in Redis: %w", err)
		}
		if ok {
			return key, nil
		}
	}
	return "", errors.New("failed to allocate a unique session key")
}

func (s *Store) Exists(ctx context.Context, sessionKey string) (bool, error) {
	n, err := s.client.Exists(ctx, s.buildKey(sessionKey)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session in Redis: %w", err)
	}
	return n > 0, nil
}

// UserID returns the owner recorded for sessionKey, or 0 when it is gone.
func (s *Store) UserID(ctx context.Context, sessionKey string) (int64, error) {
	val, err := s.client.Get(ctx, s.buildKey(sessionKey)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read session from Redis: %w", err)
	}
	return strconv.ParseInt(val, 10, 64)
}

func (s *Store) Delete(ctx context.Context, sessionKeys ...string) error {
	if len(sessionKeys) == 0 {
		return nil
	}
	keys := make([]string, len(sessionKeys))
	for i, k := range sessionKeys {
		keys[i] = s.buildKey(k)
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete sessions from Redis: %w", err)
	}
	return nil
}

func (s *Store) buildKey(sessionKey string) string {
	return s.prefix + sessionKey
}

func newKey() (string, error) {
	b := make([]byte, keyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session key: %w", err)
	}
	return hex.EncodeToString(b), nil
}
