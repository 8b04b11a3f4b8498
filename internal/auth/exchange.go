package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/potwatch/potwatch/internal/config"
	"github.com/potwatch/potwatch/internal/logger"
	"github.com/potwatch/potwatch/internal/monzo"
	"github.com/potwatch/potwatch/internal/store"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Exchanger drives both OAuth grants against Monzo and persists the outcome.
// Monzo rotates refresh tokens on every grant, so persisting here keeps the
// stored pair current no matter which path triggered the exchange.
type Exchanger struct {
	oauth2Config *oauth2.Config
	store        store.Store
}

func NewExchanger(cfg *config.Config, s store.Store) *Exchanger {
	endpoint := monzo.OAuthEndpoint
	if cfg.Monzo.AuthURL != "" {
		endpoint.AuthURL = cfg.Monzo.AuthURL
	}
	if cfg.Monzo.TokenURL != "" {
		endpoint.TokenURL = cfg.Monzo.TokenURL
	}
	return &Exchanger{
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.Monzo.ClientID,
			ClientSecret: cfg.Monzo.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  cfg.RedirectURL(),
		},
		store: s,
	}
}

// AuthorizeURL is the Monzo consent URL for a login attempt
func (e *Exchanger) AuthorizeURL(state string) string {
	return e.oauth2Config.AuthCodeURL(state)
}

// ExchangeAuthorizationCode trades a callback code for a token pair and
// persists it.
func (e *Exchanger) ExchangeAuthorizationCode(ctx context.Context, code string) (*Credential, error) {
	token, err := e.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return e.persist(ctx, token)
}

// ExchangeRefreshToken trades a refresh token for a new token pair and
// persists it, replacing the rotated refresh token.
func (e *Exchanger) ExchangeRefreshToken(ctx context.Context, refreshToken string) (*Credential, error) {
	token, err := e.oauth2Config.TokenSource(ctx, &oauth2.Token{
		RefreshToken: refreshToken,
	}).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to exchange refresh token: %w", err)
	}
	return e.persist(ctx, token)
}

func (e *Exchanger) persist(ctx context.Context, token *oauth2.Token) (*Credential, error) {
	cred, err := credentialFromToken(token)
	if err != nil {
		return nil, err
	}

	ttl := time.Duration(cred.ExpiresIn) * time.Second
	if err := e.store.Put(ctx, store.AccessTokenKey(cred.UserID), cred.AccessToken, ttl); err != nil {
		return nil, fmt.Errorf("failed to persist access token: %w", err)
	}
	if err := e.store.Put(ctx, store.RefreshTokenKey(cred.UserID), cred.RefreshToken, 0); err != nil {
		return nil, fmt.Errorf("failed to persist refresh token: %w", err)
	}

	logger.Debug("Stored credential",
		zap.String("user_id", cred.UserID),
		zap.Int("expires_in", cred.ExpiresIn),
	)
	return cred, nil
}

// credentialFromToken validates that the token response carries everything
// later requests depend on.
func credentialFromToken(token *oauth2.Token) (*Credential, error) {
	userID, _ := token.Extra("user_id").(string)

	cred := &Credential{
		UserID:       userID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresIn:    declaredLifetime(token),
	}
	switch {
	case cred.AccessToken == "":
		return nil, fmt.Errorf("token response missing access_token")
	case cred.RefreshToken == "":
		return nil, fmt.Errorf("token response missing refresh_token")
	case cred.UserID == "":
		return nil, fmt.Errorf("token response missing user_id")
	case cred.ExpiresIn <= 0:
		return nil, fmt.Errorf("token response missing expires_in")
	}
	return cred, nil
}

// declaredLifetime prefers the raw expires_in field so the stored TTL
// matches what upstream declared, not what is left after exchange latency.
func declaredLifetime(token *oauth2.Token) int {
	if v, ok := token.Extra("expires_in").(float64); ok && v > 0 {
		return int(v)
	}
	if !token.Expiry.IsZero() {
		if d := time.Until(token.Expiry); d > 0 {
			return int(d / time.Second)
		}
	}
	return 0
}
