package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/inkdeck/inkdeck/internal/config"
	"github.com/inkdeck/inkdeck/internal/content"
	"github.com/inkdeck/inkdeck/internal/generate"
	itemlist "github.com/inkdeck/inkdeck/internal/list"
	"github.com/inkdeck/inkdeck/internal/session"
	"github.com/inkdeck/inkdeck/internal/snapshot"
	"github.com/inkdeck/inkdeck/internal/store"
	"github.com/inkdeck/inkdeck/plugins"
)

type fakeSessions struct{}

func (fakeSessions) Current() (session.Session, error) {
	return session.Session{AccessToken: "tok", UserID: "owner-1"}, nil
}

type fakeStore struct {
	items    []content.Item
	bodies   map[string]string
	updateFn func(id string, req store.UpdateRequest) (content.Item, error)
	updates  int
}

func (f *fakeStore) ListByOwner(_ context.Context, _ string) ([]content.Item, error) {
	return f.items, nil
}

func (f *fakeStore) ReadBody(_ context.Context, id string) (string, error) {
	body, ok := f.bodies[id]
	if !ok {
		return "", content.ErrNotFound
	}
	return body, nil
}

func (f *fakeStore) Update(_ context.Context, id string, req store.UpdateRequest) (content.Item, error) {
	f.updates++
	if f.updateFn == nil {
		return content.Item{ID: id}, nil
	}
	return f.updateFn(id, req)
}

type fakeGenerator struct {
	artifact content.Artifact
	err      error
	calls    int
	shared   []string
}

func (f *fakeGenerator) GenerateBlog(context.Context, string) (content.Artifact, error) {
	f.calls++
	return f.artifact, f.err
}

func (f *fakeGenerator) GenerateLinkedIn(context.Context, string, int) (content.Artifact, error) {
	f.calls++
	return f.artifact, f.err
}

func (f *fakeGenerator) GenerateTweet(context.Context, generate.TweetInput) (content.Artifact, error) {
	f.calls++
	return f.artifact, f.err
}

func (f *fakeGenerator) TweetStyles(context.Context) ([]string, error) {
	return nil, content.ErrNetwork
}

func (f *fakeGenerator) DefaultStyle(context.Context) (string, error) {
	return "", content.ErrNetwork
}

func (f *fakeGenerator) Share(_ context.Context, text string) error {
	f.shared = append(f.shared, text)
	return f.err
}

func newTestApp(t *testing.T, st *fakeStore, gen *fakeGenerator) *App {
	t.Helper()
	return newTestAppAt(t, t.TempDir(), st, gen)
}

func newTestAppAt(t *testing.T, baseDir string, st *fakeStore, gen *fakeGenerator) *App {
	t.Helper()
	if err := config.InitHomeDir(baseDir); err != nil {
		t.Fatalf("init home dir: %v", err)
	}
	app, err := NewApp(baseDir,
		WithSessionSource(fakeSessions{}),
		WithStore(st),
		WithGenerator(gen),
		WithClipboard(func(string) error { return nil }),
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }),
	)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return app
}

// deliver runs one command synchronously and feeds its message back.
func deliver(t *testing.T, app *App, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatalf("expected a command")
	}
	msg := cmd()
	if msg == nil {
		t.Fatalf("expected a message")
	}
	app.Update(msg)
}

func openWorkspace(t *testing.T, app *App, platformID string) {
	t.Helper()
	def, ok := app.registry.Get(platformID)
	if !ok {
		t.Fatalf("platform %s missing", platformID)
	}
	app.openWorkspace(def)
}

func TestGenerateAdoptsArtifactAndFrontsList(t *testing.T) {
	st := &fakeStore{
		items: []content.Item{
			{ID: "old", Title: "Older", Status: content.StatusDraft, ViewCount: 5},
		},
		bodies: map[string]string{},
	}
	gen := &fakeGenerator{artifact: content.Artifact{
		ID:    "a1",
		Title: "T",
		Body:  "<p>x</p>",
	}}
	app := newTestApp(t, st, gen)
	deliver(t, app, app.loadItems())
	openWorkspace(t, app, "blog")

	deliver(t, app, app.generateContent(app.workspace.def, workspaceInput{research: "notes"}))

	if app.machine.Title() != "T" || app.machine.Body() != "<p>x</p>" {
		t.Fatalf("draft not adopted: title=%q body=%q", app.machine.Title(), app.machine.Body())
	}
	entries := app.reconciler.Items()
	if len(entries) != 2 || entries[0].ID != "a1" {
		t.Fatalf("generated item must lead the list: %+v", entries)
	}
	if entries[0].Status != content.StatusDraft || entries[0].ViewCount != 0 {
		t.Fatalf("unexpected list head: %+v", entries[0])
	}
	if !entries[0].Unconfirmed {
		t.Fatalf("generated entry must be unconfirmed before the first write")
	}
	if app.statusMsg != "Generated!" {
		t.Fatalf("unexpected status: %q", app.statusMsg)
	}
}

func TestGenerateBusyGuardBlocksSecondRequest(t *testing.T) {
	gen := &fakeGenerator{artifact: content.Artifact{ID: "a1", Body: "x"}}
	app := newTestApp(t, &fakeStore{bodies: map[string]string{}}, gen)
	openWorkspace(t, app, "blog")

	first := app.generateContent(app.workspace.def, workspaceInput{research: "notes"})
	if first == nil {
		t.Fatalf("expected generation command")
	}
	if cmd := app.generateContent(app.workspace.def, workspaceInput{research: "notes"}); cmd == nil {
		t.Fatalf("expected busy status command")
	}
	if app.statusMsg != "Generation already running" {
		t.Fatalf("unexpected status: %q", app.statusMsg)
	}
	deliver(t, app, first)
	if gen.calls != 1 {
		t.Fatalf("second request must not reach the service, calls=%d", gen.calls)
	}
}

func TestGenerationFailureLeavesDraftAlone(t *testing.T) {
	st := &fakeStore{bodies: map[string]string{"a1": "<p>old</p>"}}
	gen := &fakeGenerator{err: content.ErrTimeout}
	app := newTestApp(t, st, gen)
	openWorkspace(t, app, "blog")

	entry := content.Item{ID: "a1", Title: "Kept", Status: content.StatusDraft}
	app.reconciler.Upsert(entry)
	if cmd := app.selectItem(appEntry(app, "a1")); cmd != nil {
		deliver(t, app, cmd)
	}

	deliver(t, app, app.generateContent(app.workspace.def, workspaceInput{research: "notes"}))

	if app.machine.Body() != "<p>old</p>" {
		t.Fatalf("timeout must not clear the draft, body=%q", app.machine.Body())
	}
	if app.statusMsg != "Request timed out. Please try again." {
		t.Fatalf("unexpected status: %q", app.statusMsg)
	}
	if app.generating {
		t.Fatalf("generate must re-enable after a timeout")
	}
}

func TestSelectItemFetchesBody(t *testing.T) {
	st := &fakeStore{
		items:  []content.Item{{ID: "a1", Title: "T", Status: content.StatusDraft}},
		bodies: map[string]string{"a1": "<p>stored</p>"},
	}
	app := newTestApp(t, st, &fakeGenerator{})
	deliver(t, app, app.loadItems())
	openWorkspace(t, app, "blog")

	deliver(t, app, app.selectItem(appEntry(app, "a1")))

	if app.machine.Body() != "<p>stored</p>" {
		t.Fatalf("body not applied: %q", app.machine.Body())
	}
	if app.workspace.bodyArea.Value() != "<p>stored</p>" {
		t.Fatalf("editor not synced: %q", app.workspace.bodyArea.Value())
	}
}

func TestSaveFailureKeepsEditsAndShowsMessage(t *testing.T) {
	st := &fakeStore{
		items:  []content.Item{{ID: "a1", Title: "T", Status: content.StatusDraft}},
		bodies: map[string]string{"a1": "<p>stored</p>"},
		updateFn: func(string, store.UpdateRequest) (content.Item, error) {
			return content.Item{}, &content.ServerError{StatusCode: 500, Message: "db on fire"}
		},
	}
	app := newTestApp(t, st, &fakeGenerator{})
	deliver(t, app, app.loadItems())
	openWorkspace(t, app, "blog")
	deliver(t, app, app.selectItem(appEntry(app, "a1")))

	if err := app.machine.EditBody("<p>edited</p>"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	deliver(t, app, app.saveDraft())

	if app.machine.Body() != "<p>edited</p>" || !app.machine.Dirty() {
		t.Fatalf("failed save must keep edits, body=%q dirty=%v", app.machine.Body(), app.machine.Dirty())
	}
	if app.statusMsg != "db on fire" {
		t.Fatalf("unexpected status: %q", app.statusMsg)
	}
	snap, err := app.snapshots.Load("a1")
	if err != nil {
		t.Fatalf("failed save must leave a snapshot: %v", err)
	}
	if snap.Body != "<p>edited</p>" {
		t.Fatalf("snapshot must hold the edits, got %q", snap.Body)
	}
}

func TestSaveSuccessConfirmsAndUpdatesList(t *testing.T) {
	st := &fakeStore{
		items:  []content.Item{{ID: "a1", Title: "T", Status: content.StatusDraft, ViewCount: 7}},
		bodies: map[string]string{"a1": "<p>stored</p>"},
		updateFn: func(id string, req store.UpdateRequest) (content.Item, error) {
			return content.Item{ID: id, Title: *req.Title, Status: content.StatusDraft}, nil
		},
	}
	app := newTestApp(t, st, &fakeGenerator{})
	deliver(t, app, app.loadItems())
	openWorkspace(t, app, "blog")
	deliver(t, app, app.selectItem(appEntry(app, "a1")))

	if err := app.machine.EditTitle("Renamed"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	deliver(t, app, app.saveDraft())

	if app.machine.Dirty() {
		t.Fatalf("successful save must clean the draft")
	}
	entry := appEntry(app, "a1")
	if entry.Title != "Renamed" || entry.Unconfirmed {
		t.Fatalf("list entry not reconciled: %+v", entry)
	}
	if entry.ViewCount != 7 {
		t.Fatalf("cached view count lost: %+v", entry)
	}
	if app.statusMsg != "Saved!" {
		t.Fatalf("unexpected status: %q", app.statusMsg)
	}
}

func TestSnapshotRestoredAcrossSessions(t *testing.T) {
	baseDir := t.TempDir()
	failing := &fakeStore{
		items:  []content.Item{{ID: "a1", Title: "T", Status: content.StatusDraft}},
		bodies: map[string]string{"a1": "<p>stored</p>"},
		updateFn: func(string, store.UpdateRequest) (content.Item, error) {
			return content.Item{}, content.ErrNetwork
		},
	}
	app := newTestAppAt(t, baseDir, failing, &fakeGenerator{})
	deliver(t, app, app.loadItems())
	openWorkspace(t, app, "blog")
	deliver(t, app, app.selectItem(appEntry(app, "a1")))
	if err := app.machine.EditBody("<p>edited</p>"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	deliver(t, app, app.saveDraft())

	// A new session over the same home directory picks the mirror back up.
	healthy := &fakeStore{
		items:  failing.items,
		bodies: map[string]string{"a1": "<p>stored</p>"},
	}
	app = newTestAppAt(t, baseDir, healthy, &fakeGenerator{})
	deliver(t, app, app.loadItems())
	openWorkspace(t, app, "blog")
	deliver(t, app, app.selectItem(appEntry(app, "a1")))

	if app.machine.Body() != "<p>edited</p>" || !app.machine.Dirty() {
		t.Fatalf("mirrored edits not restored, body=%q dirty=%v", app.machine.Body(), app.machine.Dirty())
	}
	if app.workspace.bodyArea.Value() != "<p>edited</p>" {
		t.Fatalf("editor not synced with restored body: %q", app.workspace.bodyArea.Value())
	}
	if app.statusMsg != "Restored unsaved edits" {
		t.Fatalf("unexpected status: %q", app.statusMsg)
	}

	// A confirmed save clears the mirror so the next read trusts the remote.
	deliver(t, app, app.saveDraft())
	if _, err := app.snapshots.Load("a1"); err == nil {
		t.Fatalf("confirmed save must remove the snapshot")
	}
}

func TestSnapshotMatchingRemoteRestoresSilently(t *testing.T) {
	baseDir := t.TempDir()
	st := &fakeStore{
		items:  []content.Item{{ID: "a1", Title: "T", Status: content.StatusDraft}},
		bodies: map[string]string{"a1": "<p>stored</p>"},
	}
	app := newTestAppAt(t, baseDir, st, &fakeGenerator{})
	snap := snapshot.Snapshot{ID: "a1", Title: "T", Body: "<p>stored</p>"}
	if err := app.snapshots.Save(snap); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}
	deliver(t, app, app.loadItems())
	openWorkspace(t, app, "blog")
	deliver(t, app, app.selectItem(appEntry(app, "a1")))

	if app.machine.Dirty() {
		t.Fatalf("identical mirror must not dirty the draft")
	}
	if app.statusMsg == "Restored unsaved edits" {
		t.Fatalf("identical mirror must not announce a restore")
	}
}

func TestPublishFlipsStatusAndGatesVisitLive(t *testing.T) {
	st := &fakeStore{
		items:  []content.Item{{ID: "a1", Title: "T", Status: content.StatusDraft}},
		bodies: map[string]string{"a1": "<p>stored</p>"},
		updateFn: func(id string, req store.UpdateRequest) (content.Item, error) {
			item := content.Item{ID: id, Title: "T", Status: content.StatusDraft}
			if req.Status != nil {
				item.Status = *req.Status
			}
			return item, nil
		},
	}
	app := newTestApp(t, st, &fakeGenerator{})
	deliver(t, app, app.loadItems())
	openWorkspace(t, app, "blog")
	deliver(t, app, app.selectItem(appEntry(app, "a1")))

	if app.machine.CanVisitLive() {
		t.Fatalf("visit-live must be off before publish")
	}
	deliver(t, app, app.publishDraft())

	if app.machine.Status() != content.StatusPublished {
		t.Fatalf("status not flipped: %q", app.machine.Status())
	}
	if !app.machine.CanVisitLive() {
		t.Fatalf("visit-live must enable after a confirmed publish")
	}
	if entry := appEntry(app, "a1"); entry.Status != content.StatusPublished {
		t.Fatalf("list entry not published: %+v", entry)
	}
	if app.statusMsg != "Published!" {
		t.Fatalf("unexpected status: %q", app.statusMsg)
	}
	// Second publish is refused at the machine boundary.
	if cmd := app.publishDraft(); cmd == nil {
		t.Fatalf("expected refusal status command")
	}
	if app.statusMsg != "Already published" {
		t.Fatalf("unexpected status: %q", app.statusMsg)
	}
	if st.updates != 1 {
		t.Fatalf("refused publish must not hit the store, updates=%d", st.updates)
	}
}

func TestShareSendsEditedText(t *testing.T) {
	st := &fakeStore{
		items:  []content.Item{{ID: "a1", Status: content.StatusDraft}},
		bodies: map[string]string{"a1": "<p>hello <b>world</b></p>"},
	}
	gen := &fakeGenerator{}
	app := newTestApp(t, st, gen)
	deliver(t, app, app.loadItems())
	openWorkspace(t, app, "linkedin")
	deliver(t, app, app.selectItem(appEntry(app, "a1")))

	deliver(t, app, app.shareDraft())

	if len(gen.shared) != 1 {
		t.Fatalf("expected one share call, got %d", len(gen.shared))
	}
	if gen.shared[0] != "hello world" {
		t.Fatalf("share must send the stripped edited text, got %q", gen.shared[0])
	}
	if app.sharing {
		t.Fatalf("share guard must release")
	}
}

func TestTweetOptionsDegradeToEmptySet(t *testing.T) {
	app := newTestApp(t, &fakeStore{bodies: map[string]string{}}, &fakeGenerator{})
	openWorkspace(t, app, "tweet")

	deliver(t, app, app.loadTweetOptions())

	if len(app.workspace.styles) != 0 {
		t.Fatalf("expected empty style set, got %v", app.workspace.styles)
	}
	// Generation stays available without styles.
	if cmd := app.generateContent(app.workspace.def, workspaceInput{topic: "go", length: 280}); cmd == nil {
		t.Fatalf("generation must work with no styles")
	}
}

func TestSuggestionKeyCyclesIntoTopic(t *testing.T) {
	app := newTestApp(t, &fakeStore{bodies: map[string]string{}}, &fakeGenerator{})
	openWorkspace(t, app, "tweet")
	want := app.workspace.def.Suggestions
	if len(want) < 2 {
		t.Fatalf("tweet builtin must carry suggestions, got %v", want)
	}

	app.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	if got := app.workspace.promptArea.Value(); got != want[0] {
		t.Fatalf("first press must fill the topic, got %q", got)
	}
	app.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	if got := app.workspace.promptArea.Value(); got != want[1] {
		t.Fatalf("second press must cycle to the next suggestion, got %q", got)
	}
}

func TestStatusMessageAutoDismisses(t *testing.T) {
	app := newTestApp(t, &fakeStore{bodies: map[string]string{}}, &fakeGenerator{})
	app.setStatus("First")
	app.setStatus("Second")
	app.Update(statusExpiredMsg{seq: app.statusSeq - 1})
	if app.statusMsg != "Second" {
		t.Fatalf("stale expiry must not clear a newer message, got %q", app.statusMsg)
	}
	app.Update(statusExpiredMsg{seq: app.statusSeq})
	if app.statusMsg != "" {
		t.Fatalf("status must clear on expiry, got %q", app.statusMsg)
	}
}

func TestDeckMenuListsPlatformsAndExit(t *testing.T) {
	app := newTestApp(t, &fakeStore{bodies: map[string]string{}}, &fakeGenerator{})
	items := app.deckMenu.Items()
	if len(items) != 4 {
		t.Fatalf("expected 3 builtins plus exit, got %d", len(items))
	}
	last, ok := items[len(items)-1].(menuItem)
	if !ok || !strings.EqualFold(last.id, "exit") {
		t.Fatalf("expected exit entry last, got %+v", items[len(items)-1])
	}
	if _, ok := app.registry.Get(plugins.KindLinkedIn); !ok {
		t.Fatalf("linkedin builtin missing")
	}
}

func appEntry(app *App, id string) itemlist.Entry {
	e, _ := app.reconciler.Get(id)
	return e
}
