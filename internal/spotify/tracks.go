package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/spotify-recently-played-etl/internal/staging"
)

// Layouts for played_at. The API sends millisecond precision.
const (
	playedAtLayout       = time.RFC3339
	playedAtMillisLayout = "2006-01-02T15:04:05.000Z07:00"
)

// RecentlyPlayed returns the plays recorded after the given time, in the
// order the API returns them. The bound is sent in whole seconds expressed
// as milliseconds. No limit parameter is sent, so the API default applies.
func (c *Client) RecentlyPlayed(ctx context.Context, after time.Time) ([]staging.PlayEvent, error) {
	items, err := c.api.PlayerRecentlyPlayedOpt(ctx, &spotify.RecentlyPlayedOptions{
		AfterEpochMs: after.Unix() * 1000,
	})
	if err != nil {
		if isUnavailable(err) {
			return nil, fmt.Errorf("fetching recently played: %w", err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}

	// A missing or null "items" decodes to nil; an empty array does not.
	if items == nil {
		return nil, fmt.Errorf("%w: response has no items", ErrUnexpectedResponse)
	}

	events := make([]staging.PlayEvent, 0, len(items))
	for i, item := range items {
		e, err := convertPlay(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		events = append(events, e)
	}
	return events, nil
}

// convertPlay converts a RecentlyPlayedItem into a staged row.
// The artist is the first artist of the track's album.
func convertPlay(item spotify.RecentlyPlayedItem) (staging.PlayEvent, error) {
	artists := item.Track.Album.Artists
	if len(artists) == 0 {
		return staging.PlayEvent{}, fmt.Errorf("%w: track %q has no album artist", ErrUnexpectedResponse, item.Track.Name)
	}
	if item.PlayedAt.IsZero() {
		return staging.PlayEvent{}, fmt.Errorf("%w: track %q has no played_at", ErrUnexpectedResponse, item.Track.Name)
	}

	return staging.NewPlayEvent(item.Track.Name, artists[0].Name, formatPlayedAt(item.PlayedAt)), nil
}

// formatPlayedAt writes t in the offset it was parsed with, so listen_date
// keeps the API's calendar date. Whole seconds are written without a
// fraction and millisecond values with exactly three digits; an API value
// of ".000" therefore comes back without its fraction.
func formatPlayedAt(t time.Time) string {
	ns := t.Nanosecond()
	switch {
	case ns == 0:
		return t.Format(playedAtLayout)
	case ns%int(time.Millisecond) == 0:
		return t.Format(playedAtMillisLayout)
	default:
		return t.Format(time.RFC3339Nano)
	}
}

// isUnavailable reports whether err means the API could not be reached or
// answered with a non-2xx status. Anything else failed while decoding a 2xx
// body. zmb3 reports non-2xx answers as spotify.Error, or as a plain error
// prefixed "spotify: " when the error body itself is unreadable.
func isUnavailable(err error) bool {
	var urlErr *url.Error
	var apiErr spotify.Error
	switch {
	case errors.As(err, &urlErr), errors.As(err, &apiErr):
		return true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return strings.HasPrefix(err.Error(), "spotify: ")
}
