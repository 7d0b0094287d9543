// Package snapshot mirrors the active draft to disk so edits survive a failed
// save or a crashed session. Each item gets one markdown file under the
// drafts directory with a YAML frontmatter block carrying its metadata.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/inkdeck/inkdeck/internal/content"
)

var (
	// ErrMissingFrontMatter indicates the file did not start with a YAML fence.
	ErrMissingFrontMatter = errors.New("snapshot: missing frontmatter")
	// ErrMalformedFrontMatter indicates the YAML block could not be parsed.
	ErrMalformedFrontMatter = errors.New("snapshot: malformed frontmatter")
)

// Snapshot is one on-disk mirror of a draft.
type Snapshot struct {
	ID       string
	Title    string
	Status   content.Status
	Platform string
	Body     string
	SavedAt  time.Time
}

// Store manages snapshot IO rooted at the drafts directory.
type Store struct {
	dir string
	now func() time.Time
}

// Option customizes a Store during construction.
type Option func(*Store)

// WithClock overrides the clock used for saved-at timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewStore builds a store writing into dir.
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{
		dir: dir,
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Save writes the snapshot for snap.ID, replacing any previous one.
func (s *Store) Save(snap Snapshot) error {
	if strings.TrimSpace(snap.ID) == "" {
		return fmt.Errorf("snapshot: id is required")
	}
	if snap.SavedAt.IsZero() {
		snap.SavedAt = s.now()
	}
	data, err := render(snap)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("snapshot: ensure drafts dir: %w", err)
	}
	if err := os.WriteFile(s.path(snap.ID), data, 0o644); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", snap.ID, err)
	}
	return nil
}

// Load reads the snapshot for an id. A missing file yields fs.ErrNotExist.
func (s *Store) Load(id string) (Snapshot, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return Snapshot{}, err
	}
	snap, err := parse(data)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: load %s: %w", id, err)
	}
	return snap, nil
}

// Remove deletes the snapshot for an id. Called after a confirmed write, when
// the remote store holds the content. Removing a missing snapshot is fine.
func (s *Store) Remove(id string) error {
	err := os.Remove(s.path(id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("snapshot: remove %s: %w", id, err)
	}
	return nil
}

// List returns the snapshots on disk, newest first.
func (s *Store) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("snapshot: list drafts: %w", err)
	}
	var snaps []Snapshot
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		snap, err := parse(data)
		if err != nil {
			continue
		}
		snaps = append(snaps, snap)
	}
	for i := 1; i < len(snaps); i++ {
		for j := i; j > 0 && snaps[j].SavedAt.After(snaps[j-1].SavedAt); j-- {
			snaps[j], snaps[j-1] = snaps[j-1], snaps[j]
		}
	}
	return snaps, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".md")
}

type envelope struct {
	Inkdeck metadata `yaml:"inkdeck"`
}

type metadata struct {
	ID       string `yaml:"id"`
	Title    string `yaml:"title,omitempty"`
	Status   string `yaml:"status,omitempty"`
	Platform string `yaml:"platform,omitempty"`
	SavedAt  string `yaml:"saved_at"`
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func render(snap Snapshot) ([]byte, error) {
	env := envelope{metadata{
		ID:       snap.ID,
		Title:    snap.Title,
		Status:   string(snap.Status),
		Platform: snap.Platform,
		SavedAt:  snap.SavedAt.UTC().Format(timeLayout),
	}}
	meta, err := yaml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(bytes.TrimRight(meta, "\n"))
	buf.WriteString("\n---\n\n")
	buf.WriteString(snap.Body)
	return buf.Bytes(), nil
}

func parse(data []byte) (Snapshot, error) {
	normalized := bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return Snapshot{}, ErrMissingFrontMatter
	}
	parts := bytes.SplitN(normalized[4:], []byte("\n---\n"), 2)
	if len(parts) < 2 {
		return Snapshot{}, ErrMalformedFrontMatter
	}
	var env envelope
	if err := yaml.Unmarshal(parts[0], &env); err != nil {
		return Snapshot{}, fmt.Errorf("parse frontmatter: %w", err)
	}
	if env.Inkdeck.ID == "" {
		return Snapshot{}, ErrMalformedFrontMatter
	}
	savedAt, err := time.Parse(timeLayout, env.Inkdeck.SavedAt)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse saved_at: %w", err)
	}
	body := string(parts[1])
	body = strings.TrimPrefix(body, "\n")
	return Snapshot{
		ID:       env.Inkdeck.ID,
		Title:    env.Inkdeck.Title,
		Status:   content.Status(env.Inkdeck.Status),
		Platform: env.Inkdeck.Platform,
		Body:     body,
		SavedAt:  savedAt.UTC(),
	}, nil
}
