package lastfm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the Last.fm web service root.
const DefaultBaseURL = "https://ws.audioscrobbler.com/2.0/"

const (
	// DefaultTimeout caps a single recent-tracks request.
	DefaultTimeout = 10 * time.Second

	// DefaultRetryWait is the pause before the single retry of a failed request.
	DefaultRetryWait = 300 * time.Millisecond
)

// ErrNoRecentTracks is returned when an account has no scrobbles at all.
var ErrNoRecentTracks = errors.New("lastfm: no recent tracks")

// Config holds Last.fm client settings.
type Config struct {
	APIKey    string
	BaseURL   string
	Timeout   time.Duration
	RetryWait time.Duration
}

// Client queries the Last.fm recent-tracks endpoint. A transient failure is
// retried once after a short fixed wait; after that the error surfaces to the
// caller, which treats it as an absent signal.
type Client struct {
	apiKey  string
	baseURL string
	http    *retryablehttp.Client
	logger  zerolog.Logger
}

// NewClient creates a Last.fm client.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = DefaultRetryWait
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 1
	rc.RetryWaitMin = cfg.RetryWait
	rc.RetryWaitMax = cfg.RetryWait
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = nil // suppress retryablehttp's default logging

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		http:    rc,
		logger:  logger.With().Str("component", "lastfm").Logger(),
	}
}

// RecentTrack fetches the single most recent track for a user. The returned
// track may be the currently playing one (marked by its @attr.nowplaying).
func (c *Client) RecentTrack(ctx context.Context, user string) (*RawTrack, error) {
	q := url.Values{}
	q.Set("method", "user.getrecenttracks")
	q.Set("user", user)
	q.Set("api_key", c.apiKey)
	q.Set("format", "json")
	q.Set("limit", "1")

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build recent-tracks request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recent tracks for %s: %w", user, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recent tracks for %s: unexpected status %d", user, resp.StatusCode)
	}

	var parsed recentTracksResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode recent tracks for %s: %w", user, err)
	}

	// The API reports errors in the body with a 200 status.
	if parsed.Error != 0 {
		return nil, fmt.Errorf("recent tracks for %s: api error %d: %s", user, parsed.Error, parsed.Message)
	}

	if len(parsed.RecentTracks.Track) == 0 {
		return nil, ErrNoRecentTracks
	}

	track := parsed.RecentTracks.Track[0]
	c.logger.Debug().
		Str("user", user).
		Str("track", track.Name).
		Bool("now_playing", track.NowPlaying()).
		Msg("Fetched recent track")

	return &track, nil
}

// HandleFromProfile extracts the Last.fm account handle from a profile
// reference, which may be a bare username or a profile URL such as
// "https://www.last.fm/user/someone".
func HandleFromProfile(ref string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(ref), "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}
