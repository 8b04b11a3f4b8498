package balances

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/potwatch/potwatch/internal/config"
	"github.com/potwatch/potwatch/internal/logger"
	"github.com/potwatch/potwatch/internal/models"
	"github.com/potwatch/potwatch/internal/money"
	"github.com/potwatch/potwatch/internal/monzo"
	"github.com/potwatch/potwatch/internal/token"
)

// APIClient is the upstream surface the reporter needs from the Monzo client
type APIClient interface {
	Balance(ctx context.Context, accessToken, accountID string) (monzo.Balance, error)
	Pots(ctx context.Context, accessToken, currentAccountID string) ([]monzo.Pot, error)
}

// TokenSource yields access tokens for a user and can force a refresh when
// upstream rejects one
type TokenSource interface {
	AccessToken(ctx context.Context, userID string) (string, error)
	ForceRefresh(ctx context.Context, userID string) (string, error)
}

// Reporter assembles formatted balance entries for a user's accounts. The
// configured mode decides whether each account contributes its pots or a
// single whole-account balance entry.
type Reporter struct {
	mode      config.ReportMode
	client    APIClient
	tokens    TokenSource
	formatter *money.Formatter
	overrides *Overrides
}

// NewReporter creates a Reporter and loads the optional display overrides file
func NewReporter(cfg *config.Config, client *monzo.Client, tokens *token.Manager, formatter *money.Formatter) (*Reporter, error) {
	overrides := NewOverrides()
	if err := overrides.Load(cfg.Balances.OverridesFile); err != nil {
		return nil, fmt.Errorf("failed to load display overrides: %w", err)
	}

	return &Reporter{
		mode:      cfg.Balances.Mode,
		client:    client,
		tokens:    tokens,
		formatter: formatter,
		overrides: overrides,
	}, nil
}

// Report fetches balances for every resolved account. In pots mode a
// non-empty requestedPotIDs set restricts the output to matching pots;
// unmatched IDs are dropped without error. In accounts mode requestedPotIDs
// is ignored.
func (r *Reporter) Report(ctx context.Context, userID string, accountIDs, requestedPotIDs []string) ([]models.BalanceEntry, error) {
	accessToken, err := r.tokens.AccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	entries := make([]models.BalanceEntry, 0)
	for _, accountID := range accountIDs {
		if r.mode == config.ReportModeAccounts {
			entry, err := r.accountEntry(ctx, userID, &accessToken, accountID)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
			continue
		}

		potEntries, err := r.potEntries(ctx, userID, &accessToken, accountID, requestedPotIDs)
		if err != nil {
			return nil, err
		}
		entries = append(entries, potEntries...)
	}
	return entries, nil
}

func (r *Reporter) potEntries(ctx context.Context, userID string, accessToken *string, accountID string, requestedPotIDs []string) ([]models.BalanceEntry, error) {
	var pots []monzo.Pot
	err := r.callWithRetry(ctx, userID, accessToken, func(accessToken string) error {
		var err error
		pots, err = r.client.Pots(ctx, accessToken, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}

	requested := make(map[string]bool, len(requestedPotIDs))
	for _, id := range requestedPotIDs {
		requested[id] = true
	}

	entries := make([]models.BalanceEntry, 0, len(pots))
	for _, pot := range pots {
		if pot.Deleted {
			continue
		}
		if len(requested) > 0 && !requested[pot.ID] {
			continue
		}
		if r.overrides.Hidden(pot.ID) {
			continue
		}

		balance, err := r.formatter.MinorUnits(pot.Balance, pot.Currency)
		if err != nil {
			return nil, fmt.Errorf("failed to format balance of pot %s: %w", pot.ID, err)
		}
		entries = append(entries, models.BalanceEntry{
			Name:          r.overrides.DisplayName(pot.ID, pot.Name),
			Balance:       balance,
			CoverImageURL: pot.CoverImageURL,
		})
	}
	return entries, nil
}

func (r *Reporter) accountEntry(ctx context.Context, userID string, accessToken *string, accountID string) (models.BalanceEntry, error) {
	var balance monzo.Balance
	err := r.callWithRetry(ctx, userID, accessToken, func(accessToken string) error {
		var err error
		balance, err = r.client.Balance(ctx, accessToken, accountID)
		return err
	})
	if err != nil {
		return models.BalanceEntry{}, err
	}

	formatted, err := r.formatter.MinorUnits(balance.Balance, balance.Currency)
	if err != nil {
		return models.BalanceEntry{}, fmt.Errorf("failed to format balance for account %s: %w", accountID, err)
	}
	return models.BalanceEntry{Balance: formatted}, nil
}

// callWithRetry runs fn with the current access token. When upstream rejects
// the token it forces a single refresh and retries once; the refreshed token
// replaces the caller's so later calls in the same report reuse it. A second
// rejection propagates.
func (r *Reporter) callWithRetry(ctx context.Context, userID string, accessToken *string, fn func(accessToken string) error) error {
	err := fn(*accessToken)
	if err == nil || !monzo.IsUnauthorized(err) {
		return err
	}

	logger.Info("Access token rejected upstream, refreshing", zap.String("user_id", userID))
	refreshed, refreshErr := r.tokens.ForceRefresh(ctx, userID)
	if refreshErr != nil {
		return refreshErr
	}

	*accessToken = refreshed
	return fn(*accessToken)
}
