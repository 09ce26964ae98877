package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://api.clashofclans.com/v1"

// ClientOptions parameterise the Clash of Clans API client.
type ClientOptions struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	UserAgent string
}

// Client talks to the Clash of Clans REST API.
type Client struct {
	opts    ClientOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewClient constructs an API client.
func NewClient(opts ClientOptions, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "coc_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Clan fetches the clan-level payload for a tag.
func (c *Client) Clan(ctx context.Context, tag string) (Clan, error) {
	var clan Clan
	if err := c.get(ctx, "/clans/"+encodeTag(tag), &clan); err != nil {
		return Clan{}, err
	}
	return clan, nil
}

// Members fetches the clan member list for a tag.
func (c *Client) Members(ctx context.Context, tag string) ([]Member, error) {
	var payload struct {
		Items []Member `json:"items"`
	}
	if err := c.get(ctx, "/clans/"+encodeTag(tag)+"/members", &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

// Player fetches the detailed player payload for a tag.
func (c *Client) Player(ctx context.Context, tag string) (Player, error) {
	var player Player
	if err := c.get(ctx, "/players/"+encodeTag(tag), &player); err != nil {
		return Player{}, err
	}
	return player, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if c.opts.Token == "" {
		return errors.New("api token required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return parseAPIError(resp.StatusCode, payload)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// apiError carries the upstream error body. Rate limiting (429) and
// maintenance (503) are the transient cases the poller logs and retries on
// the next tick.
type apiError struct {
	StatusCode int
	Reason     string
	Message    string
}

func (e *apiError) Error() string {
	if e.Reason == "" && e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: status %d: %s %s", e.StatusCode, e.Reason, e.Message)
}

func parseAPIError(status int, payload []byte) error {
	var body struct {
		Reason  string `json:"reason"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(payload, &body)
	return &apiError{StatusCode: status, Reason: body.Reason, Message: body.Message}
}

// encodeTag escapes a clan or player tag for use in a URL path. Tags start
// with '#', which must travel as %23.
func encodeTag(tag string) string {
	return url.PathEscape(tag)
}
