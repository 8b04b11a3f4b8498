package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potwatch/potwatch/internal/accounts"
	"github.com/potwatch/potwatch/internal/auth"
	"github.com/potwatch/potwatch/internal/balances"
	"github.com/potwatch/potwatch/internal/config"
	"github.com/potwatch/potwatch/internal/models"
	"github.com/potwatch/potwatch/internal/money"
	"github.com/potwatch/potwatch/internal/monzo"
	"github.com/potwatch/potwatch/internal/store"
	"github.com/potwatch/potwatch/internal/token"
)

const testSecret = "hunter2"

// fakeMonzo simulates the upstream API: the token endpoint with rotating
// refresh tokens, and the accounts, balance and pots endpoints with bearer
// checks.
type fakeMonzo struct {
	t *testing.T

	mu            sync.Mutex
	issued        int
	accessTokens  map[string]bool
	refreshTokens map[string]bool
	revoked       map[string]bool
	codeGrants    int
	refreshGrants int
	accountsCalls int
	balanceCalls  int
	potsCalls     int
}

func newFakeMonzo(t *testing.T) (*fakeMonzo, *httptest.Server) {
	t.Helper()
	f := &fakeMonzo{
		t:             t,
		accessTokens:  map[string]bool{},
		refreshTokens: map[string]bool{},
		revoked:       map[string]bool{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", f.handleToken)
	mux.HandleFunc("/accounts", f.handleAccounts)
	mux.HandleFunc("/balance", f.handleBalance)
	mux.HandleFunc("/pots", f.handlePots)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return f, server
}

func (f *fakeMonzo) handleToken(w http.ResponseWriter, r *http.Request) {
	require.NoError(f.t, r.ParseForm())
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.PostFormValue("grant_type") {
	case "authorization_code":
		if r.PostFormValue("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"code":"bad_request.invalid_code"}`)
			return
		}
		f.codeGrants++
	case "refresh_token":
		if !f.refreshTokens[r.PostFormValue("refresh_token")] {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"code":"bad_request.invalid_grant"}`)
			return
		}
		f.refreshGrants++
	default:
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// Every grant rotates both tokens.
	f.issued++
	access := fmt.Sprintf("access-%d", f.issued)
	refresh := fmt.Sprintf("refresh-%d", f.issued)
	f.accessTokens[access] = true
	f.refreshTokens = map[string]bool{refresh: true}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"access_token":%q,"refresh_token":%q,"token_type":"Bearer","expires_in":21600,"user_id":"user_1"}`, access, refresh)
}

func (f *fakeMonzo) handleAccounts(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		writeUnauthorized(w)
		return
	}
	f.count(&f.accountsCalls)
	assert.Equal(f.t, "uk_retail", r.URL.Query().Get("account_type"))

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"accounts":[{"id":"acc_1","description":"user_1's account","created":"2020-01-02T14:04:05Z"}]}`)
}

func (f *fakeMonzo) handleBalance(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		writeUnauthorized(w)
		return
	}
	f.count(&f.balanceCalls)
	assert.Equal(f.t, "acc_1", r.URL.Query().Get("account_id"))

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"balance":150000,"currency":"GBP"}`)
}

func (f *fakeMonzo) handlePots(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		writeUnauthorized(w)
		return
	}
	f.count(&f.potsCalls)
	assert.Equal(f.t, "acc_1", r.URL.Query().Get("current_account_id"))

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"pots":[
		{"id":"pot_a","name":"Savings","balance":12345,"currency":"GBP","deleted":false,"cover_image_url":"https://img.example/a.png"},
		{"id":"pot_b","name":"Old","balance":50,"currency":"GBP","deleted":true},
		{"id":"pot_c","name":"Bills","balance":5000,"currency":"GBP","deleted":false}
	]}`)
}

func (f *fakeMonzo) authorized(r *http.Request) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	return f.accessTokens[tok] && !f.revoked[tok]
}

// revokeAccessTokens invalidates every issued access token upstream while the
// cached copies stay live, the situation the 401-retry path exists for.
func (f *fakeMonzo) revokeAccessTokens() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for tok := range f.accessTokens {
		f.revoked[tok] = true
	}
}

func (f *fakeMonzo) count(counter *int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	*counter++
}

func (f *fakeMonzo) grants() (code, refresh int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.codeGrants, f.refreshGrants
}

func (f *fakeMonzo) calls() (accounts, balance, pots int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accountsCalls, f.balanceCalls, f.potsCalls
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprint(w, `{"code":"unauthorized.bad_access_token","message":"token expired"}`)
}

type testServer struct {
	handler  http.Handler
	upstream *fakeMonzo
	store    store.Store
}

func newTestServer(t *testing.T, mode config.ReportMode) *testServer {
	t.Helper()
	upstream, upstreamServer := newFakeMonzo(t)

	cfg := &config.Config{
		Server: config.ServerConfig{
			Host:    "127.0.0.1",
			Port:    8080,
			BaseURL: "http://potwatch.local",
		},
		Monzo: config.MonzoConfig{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			TokenURL:     upstreamServer.URL + "/oauth2/token",
			APIBaseURL:   upstreamServer.URL,
			AccountType:  "uk_retail",
		},
		Balances: config.BalancesConfig{
			SharedSecret: testSecret,
			Mode:         mode,
			Locale:       "en-GB",
		},
	}

	s := store.NewMemoryStore(nil)
	exchanger := auth.NewExchanger(cfg, s)
	service := auth.NewService(auth.NewStateManager(s), exchanger)
	manager := token.NewManager(s, exchanger)
	client := monzo.NewClient(cfg)
	resolver := accounts.NewResolver(s, client, cfg)

	formatter, err := money.NewFormatter(cfg.Balances.Locale)
	require.NoError(t, err)
	reporter, err := balances.NewReporter(cfg, client, manager, formatter)
	require.NoError(t, err)

	srv := NewServer(cfg, service, manager, resolver, reporter)
	return &testServer{
		handler:  srv.routes(),
		upstream: upstream,
		store:    s,
	}
}

func (ts *testServer) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest("GET", target, nil))
	return rec
}

// login walks the full flow: mint a state via the redirect, then present it
// at the callback with a code the upstream accepts.
func (ts *testServer) login(t *testing.T) string {
	t.Helper()
	rec := ts.get(t, "/auth/monzo")
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := location.Query().Get("state")
	require.NotEmpty(t, state)

	rec = ts.get(t, "/auth/monzo/callback?code=good-code&state="+url.QueryEscape(state))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "authenticated as user_1", strings.TrimSpace(rec.Body.String()))
	return state
}

func balancesTarget(secret, userID string, potIDs ...string) string {
	params := url.Values{}
	if secret != "" {
		params.Set("secret", base64.StdEncoding.EncodeToString([]byte(secret)))
	}
	if userID != "" {
		params.Set("user_id", userID)
	}
	if len(potIDs) > 0 {
		params.Set("pot_ids", strings.Join(potIDs, ","))
	}
	return "/balances?" + params.Encode()
}

func decodeEntries(t *testing.T, rec *httptest.ResponseRecorder) []models.BalanceEntry {
	t.Helper()
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var entries []models.BalanceEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	return entries
}

func TestAuthStartRedirect(t *testing.T) {
	ts := newTestServer(t, config.ReportModePots)

	rec := ts.get(t, "/auth/monzo")
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "auth.monzo.com", location.Host)

	query := location.Query()
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "client-id", query.Get("client_id"))
	assert.Equal(t, "http://potwatch.local/auth/monzo/callback", query.Get("redirect_uri"))
	assert.NotEmpty(t, query.Get("state"))
}

func TestLoginAndBalancesFlow(t *testing.T) {
	ts := newTestServer(t, config.ReportModePots)
	ts.login(t)

	rec := ts.get(t, balancesTarget(testSecret, "user_1"))
	require.Equal(t, http.StatusOK, rec.Code)

	expected := []models.BalanceEntry{
		{Name: "Savings", Balance: "£123.45", CoverImageURL: "https://img.example/a.png"},
		{Name: "Bills", Balance: "£50.00"},
	}
	if diff := cmp.Diff(expected, decodeEntries(t, rec)); diff != "" {
		t.Errorf("unexpected entries (-want +got):\n%s", diff)
	}

	codeGrants, refreshGrants := ts.upstream.grants()
	assert.Equal(t, 1, codeGrants)
	assert.Zero(t, refreshGrants)

	cached, ok, err := ts.store.Get(context.Background(), store.AccountIDsKey("user_1"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `["acc_1"]`, cached)

	// A second request reuses the cached token and account set.
	rec = ts.get(t, balancesTarget(testSecret, "user_1"))
	require.Equal(t, http.StatusOK, rec.Code)

	accountsCalls, _, potsCalls := ts.upstream.calls()
	assert.Equal(t, 1, accountsCalls)
	assert.Equal(t, 2, potsCalls)
}

func TestBalancesPotFiltering(t *testing.T) {
	ts := newTestServer(t, config.ReportModePots)
	ts.login(t)

	// Unmatched requested IDs drop out silently.
	rec := ts.get(t, balancesTarget(testSecret, "user_1", "pot_a", "pot_typo"))
	require.Equal(t, http.StatusOK, rec.Code)

	expected := []models.BalanceEntry{
		{Name: "Savings", Balance: "£123.45", CoverImageURL: "https://img.example/a.png"},
	}
	if diff := cmp.Diff(expected, decodeEntries(t, rec)); diff != "" {
		t.Errorf("unexpected entries (-want +got):\n%s", diff)
	}
}

func TestBalancesAccountsMode(t *testing.T) {
	ts := newTestServer(t, config.ReportModeAccounts)
	ts.login(t)

	rec := ts.get(t, balancesTarget(testSecret, "user_1", "pot_a"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"balance":"£1,500.00"}]`, rec.Body.String())

	_, balanceCalls, potsCalls := ts.upstream.calls()
	assert.Equal(t, 1, balanceCalls)
	assert.Zero(t, potsCalls)
}

func TestBalancesRefreshOnUpstreamRejection(t *testing.T) {
	ts := newTestServer(t, config.ReportModePots)
	ts.login(t)

	rec := ts.get(t, balancesTarget(testSecret, "user_1"))
	require.Equal(t, http.StatusOK, rec.Code)

	// Upstream drops every issued access token; the cached one is now a lie.
	ts.upstream.revokeAccessTokens()

	rec = ts.get(t, balancesTarget(testSecret, "user_1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeEntries(t, rec), 2)

	_, refreshGrants := ts.upstream.grants()
	assert.Equal(t, 1, refreshGrants)
}

func TestBalancesRejectsBadSecret(t *testing.T) {
	ts := newTestServer(t, config.ReportModePots)
	ts.login(t)

	tests := []struct {
		name   string
		target string
	}{
		{name: "missing secret", target: balancesTarget("", "user_1")},
		{name: "wrong secret", target: balancesTarget("not-the-secret", "user_1")},
		{name: "undecodable secret", target: "/balances?secret=%21%21%21&user_id=user_1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.get(t, tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "invalid secret", strings.TrimSpace(rec.Body.String()))
		})
	}

	// The secret gate runs before anything touches the store or upstream.
	accountsCalls, _, potsCalls := ts.upstream.calls()
	assert.Zero(t, accountsCalls)
	assert.Zero(t, potsCalls)
}

func TestBalancesRequiresUserID(t *testing.T) {
	ts := newTestServer(t, config.ReportModePots)

	rec := ts.get(t, balancesTarget(testSecret, ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "user_id is required", strings.TrimSpace(rec.Body.String()))
}

func TestBalancesWithoutCredentials(t *testing.T) {
	ts := newTestServer(t, config.ReportModePots)

	rec := ts.get(t, balancesTarget(testSecret, "user_9"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "/auth/monzo")
}

func TestCallbackStateReplay(t *testing.T) {
	ts := newTestServer(t, config.ReportModePots)
	state := ts.login(t)

	rec := ts.get(t, "/auth/monzo/callback?code=good-code&state="+url.QueryEscape(state))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid or expired state", strings.TrimSpace(rec.Body.String()))

	// The replay was rejected before reaching the token endpoint.
	codeGrants, _ := ts.upstream.grants()
	assert.Equal(t, 1, codeGrants)
}

func TestCallbackMissingParams(t *testing.T) {
	ts := newTestServer(t, config.ReportModePots)

	for _, target := range []string{
		"/auth/monzo/callback",
		"/auth/monzo/callback?code=good-code",
		"/auth/monzo/callback?state=some-state",
	} {
		rec := ts.get(t, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "target %s", target)
		assert.Equal(t, "code and state are required", strings.TrimSpace(rec.Body.String()))
	}
}

func TestCallbackForgedState(t *testing.T) {
	ts := newTestServer(t, config.ReportModePots)

	rec := ts.get(t, "/auth/monzo/callback?code=good-code&state=forged")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	codeGrants, _ := ts.upstream.grants()
	assert.Zero(t, codeGrants)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, config.ReportModePots)

	rec := ts.get(t, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var health map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "potwatch", health["service"])
	assert.NotEmpty(t, health["timestamp"])
}

func TestFallbackRoute(t *testing.T) {
	ts := newTestServer(t, config.ReportModePots)

	rec := ts.get(t, "/nothing/here")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "try /auth/monzo", strings.TrimSpace(rec.Body.String()))
}

func TestBalancesCORSPreflight(t *testing.T) {
	ts := newTestServer(t, config.ReportModePots)

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest("OPTIONS", "/balances", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
