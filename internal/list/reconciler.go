// Package list maintains the locally cached, recency-ordered collection of
// content summaries. Mutations merge in place so the dashboard never needs a
// full refetch after a write; staleness against the remote store is accepted
// until the next explicit load.
package list

import (
	"github.com/inkdeck/inkdeck/internal/content"
)

// Entry is one cached summary. Unconfirmed marks items shown optimistically
// after generation whose durability the store has not yet confirmed.
type Entry struct {
	content.Item
	Unconfirmed bool
}

// Reconciler owns the cached collection. It is driven from the single-threaded
// update loop and needs no locking.
type Reconciler struct {
	entries []Entry
}

// New returns an empty reconciler.
func New() *Reconciler {
	return &Reconciler{}
}

// UpsertOption adjusts how one upsert behaves.
type UpsertOption func(*upsertParams)

type upsertParams struct {
	front       bool
	unconfirmed bool
}

// WithFront moves the item to the head of the list regardless of its prior
// position. Used for freshly generated artifacts so the most recent work
// surfaces first.
func WithFront() UpsertOption {
	return func(p *upsertParams) { p.front = true }
}

// AsUnconfirmed marks the entry as not yet durably persisted.
func AsUnconfirmed() UpsertOption {
	return func(p *upsertParams) { p.unconfirmed = true }
}

// ReplaceAll resets the collection from an owner-scoped load. Order is taken
// as given (the store already sorts by recency).
func (r *Reconciler) ReplaceAll(items []content.Item) {
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, Entry{Item: item})
	}
	r.entries = entries
}

// Upsert merges one item into the cache. A new id is inserted at the front.
// An existing id is updated in place, keeping its position unless WithFront
// is given. Zero-valued incoming fields are treated as absent and preserve
// the cached values, so a partial update never blanks what the cache knows.
func (r *Reconciler) Upsert(item content.Item, opts ...UpsertOption) {
	var params upsertParams
	for _, opt := range opts {
		if opt != nil {
			opt(&params)
		}
	}
	idx := r.indexOf(item.ID)
	if idx < 0 {
		entry := Entry{Item: item, Unconfirmed: params.unconfirmed}
		r.entries = append([]Entry{entry}, r.entries...)
		return
	}

	entry := r.entries[idx]
	entry.Item = merge(entry.Item, item)
	if params.unconfirmed {
		entry.Unconfirmed = true
	}
	if params.front && idx > 0 {
		r.entries = append(r.entries[:idx], r.entries[idx+1:]...)
		r.entries = append([]Entry{entry}, r.entries...)
		return
	}
	r.entries[idx] = entry
}

// Confirm clears the unconfirmed mark after the first successful store write
// for the id.
func (r *Reconciler) Confirm(id string) {
	if idx := r.indexOf(id); idx >= 0 {
		r.entries[idx].Unconfirmed = false
	}
}

// Get returns the cached entry for an id.
func (r *Reconciler) Get(id string) (Entry, bool) {
	if idx := r.indexOf(id); idx >= 0 {
		return r.entries[idx], true
	}
	return Entry{}, false
}

// Items returns a copy of the cached entries in display order.
func (r *Reconciler) Items() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len reports the number of cached entries.
func (r *Reconciler) Len() int {
	return len(r.entries)
}

func (r *Reconciler) indexOf(id string) int {
	for i, entry := range r.entries {
		if entry.ID == id {
			return i
		}
	}
	return -1
}

func merge(cached, incoming content.Item) content.Item {
	out := cached
	if incoming.Title != "" {
		out.Title = incoming.Title
	}
	if incoming.Status != "" {
		out.Status = incoming.Status
	}
	if incoming.ViewCount != 0 {
		out.ViewCount = incoming.ViewCount
	}
	if !incoming.CreatedAt.IsZero() {
		out.CreatedAt = incoming.CreatedAt
	}
	if incoming.OwnerID != "" {
		out.OwnerID = incoming.OwnerID
	}
	return out
}
