// Package draft holds the state machine for the item currently being edited.
// The machine is pure state: the TUI update loop drives transitions and runs
// the network effects, then reports results back via the Complete methods.
// A failed write never empties the editor, the dirty content stays put.
package draft

import (
	"errors"
	"fmt"
	"strings"

	"github.com/inkdeck/inkdeck/internal/content"
)

// Phase is where the active draft sits in its lifecycle.
type Phase int

const (
	PhaseEmpty Phase = iota
	PhaseLoading
	PhaseReady
	PhaseSaving
	PhasePublishing
)

// String returns the phase name for logs.
func (p Phase) String() string {
	switch p {
	case PhaseEmpty:
		return "empty"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseSaving:
		return "saving"
	case PhasePublishing:
		return "publishing"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// ReadErrorPlaceholder is shown in the editor when a body read fails.
// Content errors are visible, not fatal.
const ReadErrorPlaceholder = "Error loading content."

var (
	// ErrBusy is returned when a write is requested while another write for
	// the active draft is still in flight.
	ErrBusy = errors.New("draft: write already in flight")

	// ErrNoActive is returned when an operation needs an active draft.
	ErrNoActive = errors.New("draft: no active item")

	// ErrNotEditable is returned when an edit arrives outside Ready.
	ErrNotEditable = errors.New("draft: not editable in current phase")

	// ErrAlreadyPublished is returned when publish is requested for an item
	// that is already published. Resending would be safe at the store layer,
	// the machine still refuses so the affordance stays honest.
	ErrAlreadyPublished = errors.New("draft: item already published")
)

// Machine reconciles the in-memory draft against generation results and
// store results. Single-owner: only the update loop touches it.
type Machine struct {
	bodyColumns []string

	phase     Phase
	id        string
	title     string
	body      string
	status    content.Status
	dirty     bool
	confirmed bool

	// artifact is the most recent generation result, kept so selecting it
	// from the list adopts the held body without a redundant fetch.
	artifact *content.Artifact
}

// New builds a machine. bodyColumns is the ordered list of candidate body
// column names for store writes, primary first.
func New(bodyColumns []string) *Machine {
	return &Machine{
		bodyColumns: append([]string{}, bodyColumns...),
		phase:       PhaseEmpty,
	}
}

// Phase returns the current lifecycle phase.
func (m *Machine) Phase() Phase { return m.phase }

// ID returns the active item id, empty when no item is active.
func (m *Machine) ID() string { return m.id }

// Title returns the draft title.
func (m *Machine) Title() string { return m.title }

// Body returns the draft body.
func (m *Machine) Body() string { return m.body }

// Status returns the active item's publication status.
func (m *Machine) Status() content.Status { return m.status }

// Dirty reports whether there are unsaved edits.
func (m *Machine) Dirty() bool { return m.dirty }

// Busy reports whether a save or publish is in flight.
func (m *Machine) Busy() bool {
	return m.phase == PhaseSaving || m.phase == PhasePublishing
}

// CanPublish reports whether the publish affordance should be enabled.
func (m *Machine) CanPublish() bool {
	return m.id != "" && m.status != content.StatusPublished && !m.Busy() && m.phase != PhaseLoading
}

// CanVisitLive reports whether the live-site affordance should be enabled.
// It requires a confirmed publish, never an attempted one.
func (m *Machine) CanVisitLive() bool {
	return m.confirmed && m.status == content.StatusPublished
}

// AdoptArtifact makes a freshly generated artifact the active draft. The
// artifact's content is held in full, so no read is needed, but the draft is
// unconfirmed until the first successful store write.
func (m *Machine) AdoptArtifact(a content.Artifact) {
	held := a
	m.artifact = &held
	m.id = a.ID
	m.title = a.Title
	m.body = a.Body
	m.status = a.Status
	if !m.status.Valid() {
		m.status = content.StatusDraft
	}
	m.dirty = false
	m.confirmed = false
	m.phase = PhaseReady
}

// Select makes a listed item the active draft. When the item is the held
// generation artifact its body is adopted directly and no fetch is needed.
// Otherwise the machine enters Loading and the caller must issue a body read
// and deliver the result through ApplyRead.
func (m *Machine) Select(item content.Item) (needsFetch bool) {
	if m.artifact != nil && m.artifact.ID == item.ID {
		title := item.Title
		if title == "" {
			title = m.artifact.Title
		}
		m.id = item.ID
		m.title = title
		m.body = m.artifact.Body
		m.status = item.Status
		if !m.status.Valid() {
			m.status = content.StatusDraft
		}
		m.dirty = false
		m.phase = PhaseReady
		return false
	}
	m.id = item.ID
	m.title = item.Title
	m.body = ""
	m.status = item.Status
	m.dirty = false
	m.confirmed = true
	m.phase = PhaseLoading
	return true
}

// ApplyRead delivers the result of a body read. Results for an id that is no
// longer the loading target are dropped, so a stale response from a quickly
// superseded selection cannot clobber the newer draft. A failed read shows
// the error placeholder and still lands in Ready.
func (m *Machine) ApplyRead(id, body string, err error) {
	if m.phase != PhaseLoading || m.id != id {
		return
	}
	if err != nil {
		m.body = ReadErrorPlaceholder
		m.phase = PhaseReady
		return
	}
	m.body = body
	m.phase = PhaseReady
}

// EditTitle records a title edit. Only legal from Ready.
func (m *Machine) EditTitle(title string) error {
	if err := m.editable(); err != nil {
		return err
	}
	if m.title == title {
		return nil
	}
	m.title = title
	m.dirty = true
	return nil
}

// EditBody records a body edit. Only legal from Ready.
func (m *Machine) EditBody(body string) error {
	if err := m.editable(); err != nil {
		return err
	}
	if m.body == body {
		return nil
	}
	m.body = body
	m.dirty = true
	return nil
}

func (m *Machine) editable() error {
	if m.id == "" {
		return ErrNoActive
	}
	if m.Busy() {
		return ErrBusy
	}
	if m.phase != PhaseReady {
		return ErrNotEditable
	}
	return nil
}

// BeginSave starts a save of the current title and body. The returned plan
// carries the ordered candidate write shapes; the caller executes it and
// reports back through CompleteSave.
func (m *Machine) BeginSave() (WritePlan, error) {
	if m.id == "" {
		return WritePlan{}, ErrNoActive
	}
	if m.Busy() {
		return WritePlan{}, ErrBusy
	}
	if m.phase != PhaseReady {
		return WritePlan{}, ErrNotEditable
	}
	plan := m.plan(nil)
	m.phase = PhaseSaving
	return plan, nil
}

// BeginPublish starts a publish: the current title and body plus
// status=published, with the same fallback policy as a save.
func (m *Machine) BeginPublish() (WritePlan, error) {
	if m.id == "" {
		return WritePlan{}, ErrNoActive
	}
	if m.Busy() {
		return WritePlan{}, ErrBusy
	}
	if m.phase != PhaseReady {
		return WritePlan{}, ErrNotEditable
	}
	if m.status == content.StatusPublished {
		return WritePlan{}, ErrAlreadyPublished
	}
	published := content.StatusPublished
	plan := m.plan(&published)
	m.phase = PhasePublishing
	return plan, nil
}

// CompleteSave delivers the save result. Failure keeps the edited content
// and the dirty mark; success cleans the draft and confirms durability.
func (m *Machine) CompleteSave(item content.Item, err error) {
	if m.phase != PhaseSaving {
		return
	}
	m.phase = PhaseReady
	if err != nil {
		return
	}
	m.applyWrite(item)
}

// CompletePublish delivers the publish result. Same contract as CompleteSave.
func (m *Machine) CompletePublish(item content.Item, err error) {
	if m.phase != PhasePublishing {
		return
	}
	m.phase = PhaseReady
	if err != nil {
		return
	}
	m.applyWrite(item)
}

// Clear drops the active draft and returns to Empty. The held artifact is
// kept so re-selecting it still avoids a fetch.
func (m *Machine) Clear() {
	m.id = ""
	m.title = ""
	m.body = ""
	m.status = ""
	m.dirty = false
	m.confirmed = false
	m.phase = PhaseEmpty
}

func (m *Machine) applyWrite(item content.Item) {
	if item.Title != "" {
		m.title = item.Title
	}
	if item.Status.Valid() {
		m.status = item.Status
	}
	m.dirty = false
	m.confirmed = true
}

func (m *Machine) plan(status *content.Status) WritePlan {
	title := m.title
	body := m.body
	requests := make([]WriteRequest, 0, len(m.bodyColumns))
	for _, column := range m.bodyColumns {
		if strings.TrimSpace(column) == "" {
			continue
		}
		requests = append(requests, WriteRequest{
			Title:      title,
			Body:       body,
			BodyColumn: column,
			Status:     status,
		})
	}
	return WritePlan{ID: m.id, Requests: requests}
}
