package kv

import (
	"context"
	"time"
)

func (s *Store) revokedKey(jti string) string { return s.key("session", "revoked", jti) }

// Revoke 把 token 的 jti 加入黑名单，直到 token 自身过期
func (s *Store) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, s.revokedKey(jti), 1, ttl).Err()
}

func (s *Store) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.revokedKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
