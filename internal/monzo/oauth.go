package monzo

import "golang.org/x/oauth2"

// OAuthEndpoint is Monzo's OAuth 2.0 endpoint. The authorize host differs
// from the API host that serves the token endpoint.
var OAuthEndpoint = oauth2.Endpoint{
	AuthURL:  "https://auth.monzo.com/",
	TokenURL: "https://api.monzo.com/oauth2/token",
}
