// Package session resolves the authenticated session on demand. Tokens come
// from the environment (INKDECK_ACCESS_TOKEN / INKDECK_USER_ID) or from the
// session.json written by the login tooling; nothing is cached here so a
// refreshed file takes effect on the next call.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/inkdeck/inkdeck/internal/content"
)

// Session is the bearer credential plus the owning user.
type Session struct {
	AccessToken string    `json:"access_token"`
	UserID      string    `json:"user_id"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

// Accessor loads the current session when asked.
type Accessor struct {
	path string
	now  func() time.Time
}

// Option customizes accessor construction for tests.
type Option func(*Accessor)

// WithClock lets tests control expiry checks.
func WithClock(now func() time.Time) Option {
	return func(a *Accessor) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAccessor creates an accessor reading the session file at path.
func NewAccessor(path string, opts ...Option) *Accessor {
	a := &Accessor{
		path: path,
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Current returns the active session. Absence of a usable session yields
// content.ErrUnauthenticated so callers fail before attempting the network.
func (a *Accessor) Current() (Session, error) {
	if a == nil {
		return Session{}, content.ErrUnauthenticated
	}
	if ses, ok := fromEnv(); ok {
		return ses, nil
	}
	ses, err := a.fromFile()
	if err != nil {
		return Session{}, err
	}
	if !ses.ExpiresAt.IsZero() && !a.now().Before(ses.ExpiresAt) {
		return Session{}, fmt.Errorf("session expired at %s: %w",
			ses.ExpiresAt.Format(time.RFC3339), content.ErrUnauthenticated)
	}
	return ses, nil
}

func fromEnv() (Session, bool) {
	token := strings.TrimSpace(os.Getenv("INKDECK_ACCESS_TOKEN"))
	if token == "" {
		return Session{}, false
	}
	return Session{
		AccessToken: token,
		UserID:      strings.TrimSpace(os.Getenv("INKDECK_USER_ID")),
	}, true
}

func (a *Accessor) fromFile() (Session, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Session{}, content.ErrUnauthenticated
		}
		return Session{}, fmt.Errorf("session: read %s: %w", a.path, err)
	}
	var ses Session
	if err := json.Unmarshal(data, &ses); err != nil {
		return Session{}, fmt.Errorf("session: parse %s: %w", a.path, err)
	}
	ses.AccessToken = strings.TrimSpace(ses.AccessToken)
	ses.UserID = strings.TrimSpace(ses.UserID)
	if ses.AccessToken == "" {
		return Session{}, content.ErrUnauthenticated
	}
	return ses, nil
}

// Save persists a session for later runs. Used by login tooling and tests.
func Save(path string, ses Session) error {
	data, err := json.MarshalIndent(ses, "", "  ")
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("session: write %s: %w", path, err)
	}
	return nil
}
