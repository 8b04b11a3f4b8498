package store

import (
	"context"
	"time"
)

// Store is the KV port backing credential and auth-state storage. Absent
// keys are reported through the ok result, never as an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Put writes value under key. A ttl <= 0 stores the key without expiry.
	Put(ctx context.Context, key string, value string, ttl time.Duration) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Key builders for the shared flat namespace. Access tokens expire with the
// upstream-declared lifetime; refresh tokens and account IDs are durable.

func StateKey(token string) string { return "state:" + token }

func AccessTokenKey(userID string) string { return "access_token:" + userID }

func RefreshTokenKey(userID string) string { return "refresh_token:" + userID }

func AccountIDsKey(userID string) string { return "account_ids:" + userID }
