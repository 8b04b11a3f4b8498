package server

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/potwatch/potwatch/internal/accounts"
	"github.com/potwatch/potwatch/internal/auth"
	"github.com/potwatch/potwatch/internal/config"
	"github.com/potwatch/potwatch/internal/logger"
	"github.com/potwatch/potwatch/internal/token"
	"github.com/potwatch/potwatch/internal/utils"
)

// handleAuthStart mints a pending state token and redirects the browser to
// the Monzo authorization page
func (s *Server) handleAuthStart(w http.ResponseWriter, r *http.Request) {
	authURL, err := s.auth.BeginLogin(r.Context())
	if err != nil {
		logger.Error("Failed to begin login", zap.Error(err))
		utils.WriteError(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// handleAuthCallback completes the login: verifies the state token, exchanges
// the authorization code and stores the resulting credential
func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	code := query.Get("code")
	state := query.Get("state")
	if code == "" || state == "" {
		utils.WriteError(w, http.StatusBadRequest, "code and state are required")
		return
	}

	cred, err := s.auth.CompleteLogin(r.Context(), code, state)
	if err != nil {
		if errors.Is(err, auth.ErrStateNotFound) {
			utils.WriteError(w, http.StatusBadRequest, "invalid or expired state")
			return
		}
		logger.Error("Failed to complete login", zap.Error(err))
		utils.WriteError(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	utils.WriteText(w, http.StatusOK, fmt.Sprintf("authenticated as %s", cred.UserID))
}

// handleBalances reports the balances for a user's accounts or pots
func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if !s.secretMatches(query.Get("secret")) {
		utils.WriteError(w, http.StatusBadRequest, "invalid secret")
		return
	}
	userID := query.Get("user_id")
	if userID == "" {
		utils.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	potIDs := splitPotIDs(query.Get("pot_ids"))

	ctx := r.Context()
	accessToken, err := s.tokens.AccessToken(ctx, userID)
	if err != nil {
		s.writeBalancesError(w, userID, err)
		return
	}

	accountIDs, err := s.accounts.Resolve(ctx, userID, accessToken)
	if err != nil {
		s.writeBalancesError(w, userID, err)
		return
	}

	entries, err := s.balances.Report(ctx, userID, accountIDs, potIDs)
	if err != nil {
		s.writeBalancesError(w, userID, err)
		return
	}

	utils.WriteJSON(w, entries)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, map[string]interface{}{
		"status":    "ok",
		"service":   "potwatch",
		"version":   config.Version(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleFallback answers any unrouted path with a pointer at the login flow
func (s *Server) handleFallback(w http.ResponseWriter, r *http.Request) {
	utils.WriteText(w, http.StatusOK, "try /auth/monzo")
}

// writeBalancesError maps domain failures to response codes: missing
// credentials ask the user to re-authenticate, an empty account set is a
// configuration problem, anything else is an upstream or store failure.
func (s *Server) writeBalancesError(w http.ResponseWriter, userID string, err error) {
	switch {
	case errors.Is(err, token.ErrNoRefreshToken):
		utils.WriteError(w, http.StatusUnauthorized, "no credentials: visit /auth/monzo to connect your account")
	case errors.Is(err, accounts.ErrNoAccounts):
		utils.WriteError(w, http.StatusNotFound, "no accounts of the configured type")
	default:
		logger.Error("Failed to report balances", zap.String("user_id", userID), zap.Error(err))
		utils.WriteError(w, http.StatusInternalServerError, "something went wrong")
	}
}

// secretMatches decodes the base64 query secret and compares it to the
// configured shared secret in constant time
func (s *Server) secretMatches(encoded string) bool {
	if encoded == "" {
		return false
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(decoded, []byte(s.config.Balances.SharedSecret)) == 1
}

func splitPotIDs(raw string) []string {
	if raw == "" {
		return nil
	}

	ids := make([]string, 0)
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
