// Package spotify provides a wrapper around the Spotify Web API.
package spotify

import (
	"context"
	"errors"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/spotify-recently-played-etl/internal/auth"
)

// DefaultBaseURL is the Spotify Web API root. It must end with a slash.
const DefaultBaseURL = "https://api.spotify.com/v1/"

// ErrUnexpectedResponse is returned when the API answers with a body that
// does not have the expected shape.
var ErrUnexpectedResponse = errors.New("unexpected response from spotify")

// Client wraps the Spotify API client with convenience methods.
type Client struct {
	api *spotify.Client
}

// New creates a new Spotify client wrapper.
// The underlying client should already be authenticated.
func New(api *spotify.Client) *Client {
	return &Client{api: api}
}

// NewWithToken creates a client that authenticates with a bearer token
// against baseURL. An empty baseURL selects DefaultBaseURL.
func NewWithToken(ctx context.Context, token, baseURL string) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	api, err := auth.NewClient(ctx, token, spotify.WithBaseURL(baseURL))
	if err != nil {
		return nil, err
	}
	return New(api), nil
}
