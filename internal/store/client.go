// Package store wraps the remote PostgREST-style content collection with a
// typed CRUD surface. Every operation is single-attempt: the
// schema-fallback retry lives in the draft machine, because only the caller
// knows which field substitution is semantically safe.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/inkdeck/inkdeck/internal/config"
	"github.com/inkdeck/inkdeck/internal/content"
	"github.com/inkdeck/inkdeck/internal/session"
)

const requestTimeout = 15 * time.Second

// TokenSource yields the bearer credential attached to every request.
type TokenSource interface {
	Current() (session.Session, error)
}

// Client talks to the persisted-content table.
type Client struct {
	baseURL     string
	apiKey      string
	table       string
	bodyColumns []string
	tokens      TokenSource
	httpClient  *http.Client
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

// NewClient builds a store client from configuration.
func NewClient(cfg config.StoreConfig, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(cfg.URL, "/"),
		apiKey:      cfg.APIKey,
		table:       cfg.Table,
		bodyColumns: append([]string{}, cfg.BodyColumns...),
		tokens:      tokens,
		httpClient:  &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// BodyColumns returns the ordered body column candidates the store has
// carried across migrations. The first entry is the preferred write target.
func (c *Client) BodyColumns() []string {
	return append([]string{}, c.bodyColumns...)
}

// UpdateRequest is one candidate write shape. BodyColumn names the column
// the body is written under, so the caller can try alternates in order.
type UpdateRequest struct {
	Title      *string
	Body       *string
	BodyColumn string
	Status     *content.Status
}

func (r UpdateRequest) payload() (map[string]any, error) {
	fields := map[string]any{}
	if r.Title != nil {
		fields["title"] = *r.Title
	}
	if r.Body != nil {
		column := strings.TrimSpace(r.BodyColumn)
		if column == "" {
			return nil, fmt.Errorf("store: update body requires a body column")
		}
		fields[column] = *r.Body
	}
	if r.Status != nil {
		if !r.Status.Valid() {
			return nil, fmt.Errorf("store: invalid status %q", *r.Status)
		}
		fields["status"] = *r.Status
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("store: update has no fields")
	}
	return fields, nil
}

// ListByOwner returns the owner's items ordered by recency.
func (c *Client) ListByOwner(ctx context.Context, ownerID string) ([]content.Item, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, fmt.Errorf("store: owner id is required")
	}
	query := url.Values{}
	query.Set("user_id", "eq."+ownerID)
	query.Set("select", "id,title,status,views,created_at,user_id")
	query.Set("order", "created_at.desc")
	var items []content.Item
	if err := c.do(ctx, http.MethodGet, query, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ReadBody fetches the editable body for one item. Both historical body
// columns are selected and the first non-empty value wins.
func (c *Client) ReadBody(ctx context.Context, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("store: item id is required")
	}
	query := url.Values{}
	query.Set("id", "eq."+id)
	query.Set("select", strings.Join(c.bodyColumns, ","))
	var rows []map[string]string
	if err := c.do(ctx, http.MethodGet, query, nil, &rows); err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("store: read body of %s: %w", id, content.ErrNotFound)
	}
	for _, column := range c.bodyColumns {
		if value := rows[0][column]; value != "" {
			return value, nil
		}
	}
	return "", nil
}

// Update applies one candidate write shape to an item and returns the
// resulting row.
func (c *Client) Update(ctx context.Context, id string, req UpdateRequest) (content.Item, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return content.Item{}, fmt.Errorf("store: item id is required")
	}
	fields, err := req.payload()
	if err != nil {
		return content.Item{}, err
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return content.Item{}, fmt.Errorf("store: encode update: %w", err)
	}
	query := url.Values{}
	query.Set("id", "eq."+id)
	var rows []content.Item
	if err := c.do(ctx, http.MethodPatch, query, body, &rows); err != nil {
		return content.Item{}, err
	}
	if len(rows) == 0 {
		return content.Item{}, fmt.Errorf("store: update %s: %w", id, content.ErrNotFound)
	}
	return rows[0], nil
}

func (c *Client) do(ctx context.Context, method string, query url.Values, body []byte, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("store: base url is not configured")
	}
	ses, err := c.currentSession()
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, c.table, query.Encode())
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("store: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=representation")
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	req.Header.Set("Authorization", "Bearer "+ses.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportErr(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("store: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatus(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("store: decode response: %w", err)
	}
	return nil
}

func (c *Client) currentSession() (session.Session, error) {
	if c.tokens == nil {
		return session.Session{}, content.ErrUnauthenticated
	}
	ses, err := c.tokens.Current()
	if err != nil {
		return session.Session{}, err
	}
	return ses, nil
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
	Hint    string `json:"hint"`
}

// Unknown-column codes seen across the store's two schema eras: PGRST204
// comes from the REST layer's schema cache, 42703 from Postgres itself.
var schemaMismatchCodes = map[string]struct{}{
	"PGRST204": {},
	"42703":    {},
}

func classifyStatus(status int, body []byte) error {
	var payload errorPayload
	_ = json.Unmarshal(body, &payload)
	message := payload.Message
	if message == "" {
		message = strings.TrimSpace(string(body))
	}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("store: %s: %w", message, content.ErrUnauthenticated)
	case http.StatusNotFound:
		return fmt.Errorf("store: %s: %w", message, content.ErrNotFound)
	}
	if _, ok := schemaMismatchCodes[payload.Code]; ok {
		return fmt.Errorf("store: %s: %w", message, content.ErrSchemaMismatch)
	}
	if strings.Contains(strings.ToLower(message), "column") {
		return fmt.Errorf("store: %s: %w", message, content.ErrSchemaMismatch)
	}
	return &content.ServerError{StatusCode: status, Message: message}
}

func classifyTransportErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("store: %w", content.ErrTimeout)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("store: %w", content.ErrTimeout)
	}
	return fmt.Errorf("store: %w: %v", content.ErrNetwork, err)
}
