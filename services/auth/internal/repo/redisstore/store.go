// Package redisstore keeps revocation records in Redis. Every key carries a
// TTL equal to the remaining lifetime of its token, so Redis expires records
// by itself and Sweep has nothing to do.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	jwthelp "github.com/Skotchmaster/authtrust/pkg/jwt"
	"github.com/Skotchmaster/authtrust/services/auth/internal/repo"
)

type Store struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "authtrust"
	}
	return &Store{client: client, prefix: prefix, now: time.Now}
}

func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *Store) revokedKey(token string) string {
	return s.prefix + ":revoked:" + jwthelp.TokenKey(token)
}

func (s *Store) consumedKey(jti string) string {
	return s.prefix + ":consumed:" + jti
}

func (s *Store) ttl(expiry time.Time) time.Duration {
	d := expiry.Sub(s.now())
	if d < time.Second {
		return time.Second
	}
	return d
}

func (s *Store) Add(ctx context.Context, token string, expiry time.Time) error {
	return s.client.SetNX(ctx, s.revokedKey(token), 1, s.ttl(expiry)).Err()
}

func (s *Store) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Exists(ctx, s.revokedKey(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) ConsumeRefresh(ctx context.Context, jti string, userID uint, expiry time.Time) error {
	ok, err := s.client.SetNX(ctx, s.consumedKey(jti), userID, s.ttl(expiry)).Result()
	if err != nil {
		return err
	}
	if !ok {
		return repo.ErrAlreadyConsumed
	}
	return nil
}

func (s *Store) Sweep(context.Context) (int64, error) { return 0, nil }

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
