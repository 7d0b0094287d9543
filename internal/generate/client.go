// Package generate calls the external generation services, one HTTP endpoint
// per platform kind. Requests carry the session bearer and are bounded by the
// configured generation timeout; there is no automatic retry, the user
// re-triggers after a failure.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inkdeck/inkdeck/internal/config"
	"github.com/inkdeck/inkdeck/internal/content"
	"github.com/inkdeck/inkdeck/internal/session"
)

// Tweet length bounds enforced before the request leaves the client.
const (
	TweetMinLength = 50
	TweetMaxLength = 280
	TopicMaxLength = 500
)

// TokenSource yields the bearer credential attached to generation requests.
type TokenSource interface {
	Current() (session.Session, error)
}

// Client invokes the per-platform generation endpoints.
type Client struct {
	services   map[string]config.ServiceConfig
	timeout    time.Duration
	tokens     TokenSource
	httpClient *http.Client
}

// Option customizes client construction.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (used by tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout overrides the per-request budget.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient builds a generation client from configuration.
func NewClient(cfg *config.Config, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		services:   map[string]config.ServiceConfig{},
		timeout:    cfg.GenerationTimeout(),
		tokens:     tokens,
		httpClient: &http.Client{},
	}
	for kind, svc := range cfg.File.Services {
		c.services[kind] = svc
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// TweetInput is everything the tweet service needs for one generation.
type TweetInput struct {
	Topic  string
	Length int
	Style  string
}

func (in TweetInput) validate() error {
	topic := strings.TrimSpace(in.Topic)
	if topic == "" {
		return fmt.Errorf("generate: tweet topic is required")
	}
	if len([]rune(topic)) > TopicMaxLength {
		return fmt.Errorf("generate: tweet topic exceeds %d characters", TopicMaxLength)
	}
	if in.Length < TweetMinLength || in.Length > TweetMaxLength {
		return fmt.Errorf("generate: tweet length must be between %d and %d", TweetMinLength, TweetMaxLength)
	}
	return nil
}

type artifactPayload struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Content        string `json:"content"`
	HTMLContent    string `json:"html_content"`
	Tweet          string `json:"tweet"`
	Status         string `json:"status"`
	CharacterCount int    `json:"character_count"`
}

func (p artifactPayload) artifact() content.Artifact {
	body := p.Content
	if body == "" {
		body = p.HTMLContent
	}
	if body == "" {
		body = p.Tweet
	}
	count := p.CharacterCount
	if count == 0 {
		count = len([]rune(content.StripTags(body)))
	}
	return content.Artifact{
		ID:             p.ID,
		Title:          p.Title,
		Body:           body,
		Status:         content.Status(p.Status),
		CharacterCount: count,
	}
}

// GenerateBlog asks the blog service to turn aggregated research into a
// long-form post. The service performs the initial store insert and returns
// the created row, so the artifact carries a durable-looking id that is still
// unconfirmed until the dashboard's first successful write.
func (c *Client) GenerateBlog(ctx context.Context, research string) (content.Artifact, error) {
	if strings.TrimSpace(research) == "" {
		return content.Artifact{}, fmt.Errorf("generate: research content is required")
	}
	svc, err := c.service("blog")
	if err != nil {
		return content.Artifact{}, err
	}
	var payload artifactPayload
	err = c.post(ctx, svc.Endpoint, map[string]any{"research": research}, &payload)
	if err != nil {
		return content.Artifact{}, err
	}
	return payload.artifact(), nil
}

// GenerateLinkedIn produces a LinkedIn post from research content at the
// requested target length.
func (c *Client) GenerateLinkedIn(ctx context.Context, research string, length int) (content.Artifact, error) {
	if strings.TrimSpace(research) == "" {
		return content.Artifact{}, fmt.Errorf("generate: research content is required")
	}
	svc, err := c.service("linkedin")
	if err != nil {
		return content.Artifact{}, err
	}
	var payload artifactPayload
	err = c.post(ctx, svc.Endpoint, map[string]any{"research": research, "length": length}, &payload)
	if err != nil {
		return content.Artifact{}, err
	}
	return payload.artifact(), nil
}

// GenerateTweet produces a tweet for the given topic, length, and style.
func (c *Client) GenerateTweet(ctx context.Context, in TweetInput) (content.Artifact, error) {
	if err := in.validate(); err != nil {
		return content.Artifact{}, err
	}
	svc, err := c.service("tweet")
	if err != nil {
		return content.Artifact{}, err
	}
	body := map[string]any{
		"topic":  strings.TrimSpace(in.Topic),
		"length": in.Length,
	}
	if in.Style != "" {
		body["style"] = in.Style
	}
	var payload artifactPayload
	if err := c.post(ctx, svc.Endpoint, body, &payload); err != nil {
		return content.Artifact{}, err
	}
	return payload.artifact(), nil
}

// TweetStyles fetches the enumeration of valid tweet styles. Callers treat a
// failure as an empty option set rather than blocking generation.
func (c *Client) TweetStyles(ctx context.Context) ([]string, error) {
	svc, err := c.service("tweet")
	if err != nil {
		return nil, err
	}
	if svc.StylesEndpoint == "" {
		return nil, fmt.Errorf("generate: no tweet styles endpoint configured")
	}
	var payload struct {
		Styles []string `json:"styles"`
	}
	if err := c.get(ctx, svc.StylesEndpoint, false, &payload); err != nil {
		return nil, err
	}
	return payload.Styles, nil
}

// DefaultStyle fetches the user's preferred tweet style.
func (c *Client) DefaultStyle(ctx context.Context) (string, error) {
	svc, err := c.service("tweet")
	if err != nil {
		return "", err
	}
	if svc.PreferencesEndpoint == "" {
		return "", fmt.Errorf("generate: no tweet preferences endpoint configured")
	}
	var payload struct {
		DefaultStyle string `json:"default_style"`
	}
	if err := c.get(ctx, svc.PreferencesEndpoint, true, &payload); err != nil {
		return "", err
	}
	return payload.DefaultStyle, nil
}

// Share cross-posts the edited text through the LinkedIn share endpoint.
// The text argument is always the caller's current content.
func (c *Client) Share(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("generate: share text is required")
	}
	svc, err := c.service("linkedin")
	if err != nil {
		return err
	}
	if svc.ShareEndpoint == "" {
		return fmt.Errorf("generate: no linkedin share endpoint configured")
	}
	return c.post(ctx, svc.ShareEndpoint, map[string]any{"text": text}, nil)
}

func (c *Client) service(kind string) (config.ServiceConfig, error) {
	svc, ok := c.services[kind]
	if !ok || svc.Endpoint == "" {
		return config.ServiceConfig{}, fmt.Errorf("generate: no %s endpoint configured", kind)
	}
	return svc, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload map[string]any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("generate: encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, endpoint, body, true, out)
}

func (c *Client) get(ctx context.Context, endpoint string, authed bool, out any) error {
	return c.do(ctx, http.MethodGet, endpoint, nil, authed, out)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, authed bool, out any) error {
	var token string
	if authed {
		ses, err := c.currentSession()
		if err != nil {
			return err
		}
		token = ses.AccessToken
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("generate: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportErr(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("generate: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatus(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("generate: decode response: %w", err)
	}
	return nil
}

func (c *Client) currentSession() (session.Session, error) {
	if c.tokens == nil {
		return session.Session{}, content.ErrUnauthenticated
	}
	return c.tokens.Current()
}

func classifyStatus(status int, body []byte) error {
	var payload struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)
	message := payload.Detail
	if message == "" {
		message = payload.Message
	}
	if message == "" {
		message = strings.TrimSpace(string(body))
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("generate: %s: %w", message, content.ErrUnauthenticated)
	}
	return &content.ServerError{StatusCode: status, Message: message}
}

func classifyTransportErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("generate: %w", content.ErrTimeout)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("generate: %w", content.ErrTimeout)
	}
	return fmt.Errorf("generate: %w: %v", content.ErrNetwork, err)
}
