// Package auth builds Spotify API clients authenticated with a pre-issued
// bearer token.
package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

// ErrMissingToken is returned when no API token is configured.
var ErrMissingToken = errors.New("missing SPOTIFY_API_TOKEN")

// tokenType is the authorization scheme sent with every request.
const tokenType = "Bearer"

// TokenSource returns a source that always yields the given access token.
// Refreshing the token is the caller's responsibility.
func TokenSource(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   tokenType,
	})
}

// HTTPClient returns an http.Client that adds "Authorization: Bearer <token>"
// to every request. If ctx carries an oauth2.HTTPClient it is used as the
// underlying transport.
func HTTPClient(ctx context.Context, token string) (*http.Client, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	return oauth2.NewClient(ctx, TokenSource(token)), nil
}

// NewClient returns a Spotify API client using the bearer token.
// Automatic retry on rate limiting stays disabled so a failed call
// fails the run.
func NewClient(ctx context.Context, token string, opts ...spotify.ClientOption) (*spotify.Client, error) {
	httpClient, err := HTTPClient(ctx, token)
	if err != nil {
		return nil, err
	}
	return spotify.New(httpClient, opts...), nil
}
