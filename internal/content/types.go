// Package content holds the domain types shared by the store, the
// generation clients, and the draft machine: the persisted Item, the
// ephemeral generated Artifact, and the error taxonomy every network
// operation maps onto.
package content

import (
	"strings"
	"time"
)

// Status is the publication state of a persisted item.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	// StatusScheduled is unused by the current flows but must round-trip
	// through the store untouched.
	StatusScheduled Status = "scheduled"
)

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusScheduled:
		return true
	}
	return false
}

// Item is the persisted unit of work. The id is assigned by the store on
// creation (the generation service performs the initial insert); the
// dashboard only reads and updates.
type Item struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	Status    Status    `json:"status,omitempty"`
	ViewCount int       `json:"views,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	OwnerID   string    `json:"user_id,omitempty"`
}

// Artifact is the producer-only output of a generation call. It is not
// guaranteed durable until a store write for its id succeeds.
type Artifact struct {
	ID             string
	Title          string
	Body           string
	Status         Status
	CharacterCount int
}

// Item converts the artifact into the list summary the dashboard shows
// immediately after generation. Missing statuses default to draft.
func (a Artifact) Item(now time.Time) Item {
	status := a.Status
	if !status.Valid() {
		status = StatusDraft
	}
	return Item{
		ID:        a.ID,
		Title:     a.Title,
		Status:    status,
		ViewCount: 0,
		CreatedAt: now,
	}
}

// StripTags removes HTML markup from rich content, yielding the plain text
// used for character counting and plain-text platforms.
func StripTags(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	inTag := false
	for _, r := range value {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}
