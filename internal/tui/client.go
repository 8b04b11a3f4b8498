package tui

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/potwatch/potwatch/internal/models"
)

// Client fetches balance entries from a running potwatch server
type Client struct {
	baseURL    string
	secret     string
	userID     string
	potIDs     []string
	httpClient *http.Client
}

// NewClient creates a dashboard client for the given server and user
func NewClient(baseURL, secret, userID string, potIDs []string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		secret:  secret,
		userID:  userID,
		potIDs:  potIDs,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Balances fetches the current balance entries
func (c *Client) Balances(ctx context.Context) ([]models.BalanceEntry, error) {
	params := url.Values{}
	params.Set("secret", base64.StdEncoding.EncodeToString([]byte(c.secret)))
	params.Set("user_id", c.userID)
	if len(c.potIDs) > 0 {
		params.Set("pot_ids", strings.Join(c.potIDs, ","))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/balances?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch balances: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var entries []models.BalanceEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal balances: %w", err)
	}
	return entries, nil
}
