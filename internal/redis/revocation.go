package redis

import (
	"context"
	"time"
)

func revokedKey(tokenID string) string {
	return "revoked:" + tokenID
}

// Revoke blocks a token id until it would have expired anyway
func (s *Store) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, revokedKey(tokenID), 1, ttl).Err()
}

// IsRevoked reports whether a token id was revoked
func (s *Store) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
