package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/potwatch/potwatch/internal/auth"
	"github.com/potwatch/potwatch/internal/logger"
	"github.com/potwatch/potwatch/internal/store"
	"go.uber.org/zap"
)

// ErrNoRefreshToken means the user has no stored refresh token, so only a
// fresh browser login can mint credentials.
var ErrNoRefreshToken = errors.New("no refresh token stored")

// Exchanger is the refresh-grant surface the manager needs from the OAuth
// layer. The implementation persists the new token pair before returning.
type Exchanger interface {
	ExchangeRefreshToken(ctx context.Context, refreshToken string) (*auth.Credential, error)
}

// Manager resolves a usable access token for a user, refreshing through the
// stored refresh token when the cached one is gone. Concurrent refreshes are
// not synchronized; the store keeps whichever exchange finished last.
type Manager struct {
	store     store.Store
	exchanger Exchanger
}

func NewManager(s store.Store, exchanger *auth.Exchanger) *Manager {
	return &Manager{
		store:     s,
		exchanger: exchanger,
	}
}

// AccessToken returns the cached access token when present, otherwise
// performs exactly one refresh exchange. ErrNoRefreshToken means the user
// has to re-authenticate through the browser flow.
func (m *Manager) AccessToken(ctx context.Context, userID string) (string, error) {
	cached, ok, err := m.store.Get(ctx, store.AccessTokenKey(userID))
	if err != nil {
		return "", fmt.Errorf("failed to read cached access token: %w", err)
	}
	if ok {
		return cached, nil
	}
	return m.refresh(ctx, userID)
}

// ForceRefresh drops the cached access token and refreshes. Used when
// upstream rejected a token that has not expired locally yet.
func (m *Manager) ForceRefresh(ctx context.Context, userID string) (string, error) {
	if err := m.store.Delete(ctx, store.AccessTokenKey(userID)); err != nil {
		return "", fmt.Errorf("failed to drop stale access token: %w", err)
	}
	return m.refresh(ctx, userID)
}

func (m *Manager) refresh(ctx context.Context, userID string) (string, error) {
	refreshToken, ok, err := m.store.Get(ctx, store.RefreshTokenKey(userID))
	if err != nil {
		return "", fmt.Errorf("failed to read refresh token: %w", err)
	}
	if !ok || refreshToken == "" {
		return "", ErrNoRefreshToken
	}

	logger.Info("Refreshing access token", zap.String("user_id", userID))
	cred, err := m.exchanger.ExchangeRefreshToken(ctx, refreshToken)
	if err != nil {
		return "", fmt.Errorf("refresh failed for %s: %w", userID, err)
	}
	return cred.AccessToken, nil
}
