package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/potwatch/potwatch/internal/config"
	"github.com/potwatch/potwatch/internal/logger"
	"github.com/potwatch/potwatch/internal/monzo"
	"github.com/potwatch/potwatch/internal/store"
	"go.uber.org/zap"
)

// ErrNoAccounts means the user has no account of the configured type, which
// points at a misconfigured account_type or the wrong Monzo login.
var ErrNoAccounts = errors.New("no accounts of the configured type")

// Lister is the accounts surface the resolver needs from the API client
type Lister interface {
	Accounts(ctx context.Context, accessToken, accountType string) ([]monzo.Account, error)
}

// Resolver discovers which account IDs belong to a user and caches them
// without expiry. Account sets are stable, so a cached non-empty set is
// trusted and never revalidated; an empty result is never cached.
type Resolver struct {
	store       store.Store
	client      Lister
	accountType string
}

func NewResolver(s store.Store, client *monzo.Client, cfg *config.Config) *Resolver {
	return &Resolver{
		store:       s,
		client:      client,
		accountType: cfg.Monzo.AccountType,
	}
}

// Resolve returns the user's account IDs, from cache when possible
func (r *Resolver) Resolve(ctx context.Context, userID, accessToken string) ([]string, error) {
	key := store.AccountIDsKey(userID)

	cached, ok, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached account ids: %w", err)
	}
	if ok {
		var ids []string
		if err := json.Unmarshal([]byte(cached), &ids); err == nil && len(ids) > 0 {
			return ids, nil
		}
		// empty or unreadable cache entries fall through to a re-resolve
	}

	listed, err := r.client.Accounts(ctx, accessToken, r.accountType)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(listed))
	for _, account := range listed {
		ids = append(ids, account.ID)
	}
	if len(ids) == 0 {
		return nil, ErrNoAccounts
	}

	encoded, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to encode account ids: %w", err)
	}
	if err := r.store.Put(ctx, key, string(encoded), 0); err != nil {
		return nil, fmt.Errorf("failed to cache account ids: %w", err)
	}

	logger.Info("Resolved accounts",
		zap.String("user_id", userID),
		zap.Int("count", len(ids)),
	)
	return ids, nil
}
