package auth

// Credential is the outcome of a successful token exchange. ExpiresIn is the
// upstream-declared access-token lifetime in seconds; the refresh token has
// no declared expiry. UserID comes from the token response and keys all
// storage.
type Credential struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}
