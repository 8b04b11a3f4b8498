package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/potwatch/potwatch/internal/store"
)

// stateTTL bounds how long a login may sit between redirect and callback
const stateTTL = 5 * time.Minute

// ErrStateNotFound means the callback carried a state token that was never
// issued, already used, or expired.
var ErrStateNotFound = errors.New("auth state not found or expired")

// StateManager issues and verifies the single-use state tokens tying a
// callback to a login started here.
type StateManager struct {
	store store.Store
}

func NewStateManager(s store.Store) *StateManager {
	return &StateManager{store: s}
}

// Mint stores a fresh unguessable state token and returns it
func (m *StateManager) Mint(ctx context.Context) (string, error) {
	token := uuid.NewString()
	mintedAt := time.Now().UTC().Format(time.RFC3339)
	if err := m.store.Put(ctx, store.StateKey(token), mintedAt, stateTTL); err != nil {
		return "", fmt.Errorf("failed to persist auth state: %w", err)
	}
	return token, nil
}

// Consume verifies a state token and invalidates it so replays fail
func (m *StateManager) Consume(ctx context.Context, token string) error {
	key := store.StateKey(token)
	_, ok, err := m.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to look up auth state: %w", err)
	}
	if !ok {
		return ErrStateNotFound
	}
	if err := m.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to invalidate auth state: %w", err)
	}
	return nil
}
