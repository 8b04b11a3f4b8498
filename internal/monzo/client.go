package monzo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/potwatch/potwatch/internal/config"
)

// DefaultAPIBaseURL is the production Monzo API host
const DefaultAPIBaseURL = "https://api.monzo.com"

// Client is a typed client for the Monzo endpoints the service reads:
// accounts, balance and pots. Every call authenticates with the caller's
// bearer token; a 401 surfaces as *APIError so callers can decide to refresh.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client against monzo.api_base_url, falling back to the
// production host.
func NewClient(cfg *config.Config) *Client {
	baseURL := cfg.Monzo.APIBaseURL
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Accounts lists the user's accounts of the given type
func (c *Client) Accounts(ctx context.Context, accessToken, accountType string) ([]Account, error) {
	query := url.Values{}
	if accountType != "" {
		query.Set("account_type", accountType)
	}

	var result accountsResponse
	if err := c.get(ctx, "/accounts", query, accessToken, &result); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return result.Accounts, nil
}

// Balance returns the raw balance of a single account
func (c *Client) Balance(ctx context.Context, accessToken, accountID string) (Balance, error) {
	query := url.Values{"account_id": {accountID}}

	var result Balance
	if err := c.get(ctx, "/balance", query, accessToken, &result); err != nil {
		return Balance{}, fmt.Errorf("failed to fetch balance for %s: %w", accountID, err)
	}
	return result, nil
}

// Pots lists the pots attached to a current account, deleted ones included
func (c *Client) Pots(ctx context.Context, accessToken, currentAccountID string) ([]Pot, error) {
	query := url.Values{"current_account_id": {currentAccountID}}

	var result potsResponse
	if err := c.get(ctx, "/pots", query, accessToken, &result); err != nil {
		return nil, fmt.Errorf("failed to list pots for %s: %w", currentAccountID, err)
	}
	return result.Pots, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, accessToken string, result interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	return c.handleResponse(resp, result)
}

func (c *Client) handleResponse(resp *http.Response, result interface{}) error {
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
		var errorResponse struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &errorResponse) == nil {
			apiErr.Code = errorResponse.Code
			apiErr.Message = errorResponse.Message
		}
		return apiErr
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}
