// internal/tui/app.go
//
// This is the main TUI for inkdeck. It uses bubbletea, which follows The Elm
// Architecture:
//
// 1. Model: Your application state
// 2. Update: A function that updates state based on messages
// 3. View: A function that renders state to a string
//
// The flow is: User Input -> Message -> Update -> New Model -> View -> Screen
//
// All network effects run as tea.Cmd functions; their results come back as
// messages, so the draft machine and the list reconciler are only ever
// touched from Update.

package tui

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/inkdeck/inkdeck/internal/config"
	"github.com/inkdeck/inkdeck/internal/content"
	"github.com/inkdeck/inkdeck/internal/draft"
	"github.com/inkdeck/inkdeck/internal/generate"
	itemlist "github.com/inkdeck/inkdeck/internal/list"
	"github.com/inkdeck/inkdeck/internal/logbook"
	"github.com/inkdeck/inkdeck/internal/preview"
	"github.com/inkdeck/inkdeck/internal/session"
	"github.com/inkdeck/inkdeck/internal/snapshot"
	"github.com/inkdeck/inkdeck/internal/store"
	"github.com/inkdeck/inkdeck/plugins"
)

// appState represents which "screen" we're on
type appState int

const (
	stateDeck      appState = iota // Platform picker
	stateWorkspace                 // Editing inside one platform workspace
)

const copiedResetInterval = 2 * time.Second

// ContentStore is the store surface the dashboard needs.
type ContentStore interface {
	ListByOwner(ctx context.Context, ownerID string) ([]content.Item, error)
	ReadBody(ctx context.Context, id string) (string, error)
	Update(ctx context.Context, id string, req store.UpdateRequest) (content.Item, error)
}

// Generator is the generation-service surface the dashboard needs.
type Generator interface {
	GenerateBlog(ctx context.Context, research string) (content.Artifact, error)
	GenerateLinkedIn(ctx context.Context, research string, length int) (content.Artifact, error)
	GenerateTweet(ctx context.Context, in generate.TweetInput) (content.Artifact, error)
	TweetStyles(ctx context.Context) ([]string, error)
	DefaultStyle(ctx context.Context) (string, error)
	Share(ctx context.Context, text string) error
}

// SessionSource yields the current session.
type SessionSource interface {
	Current() (session.Session, error)
}

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithStore overrides the content store client.
func WithStore(s ContentStore) AppOption {
	return func(a *App) {
		if s != nil {
			a.store = s
		}
	}
}

// WithGenerator overrides the generation client.
func WithGenerator(g Generator) AppOption {
	return func(a *App) {
		if g != nil {
			a.generator = g
		}
	}
}

// WithSessionSource overrides the session accessor.
func WithSessionSource(s SessionSource) AppOption {
	return func(a *App) {
		if s != nil {
			a.sessions = s
		}
	}
}

// WithClock overrides the clock used for optimistic list entries.
func WithClock(now func() time.Time) AppOption {
	return func(a *App) {
		if now != nil {
			a.now = now
		}
	}
}

// WithClipboard overrides the clipboard writer.
func WithClipboard(write func(string) error) AppOption {
	return func(a *App) {
		if write != nil {
			a.copyText = write
		}
	}
}

// Messages produced by async commands.

type itemsLoadedMsg struct {
	items []content.Item
	err   error
}

type bodyReadMsg struct {
	id   string
	body string
	err  error
}

type generatedMsg struct {
	platform string
	artifact content.Artifact
	err      error
}

type writeDoneMsg struct {
	publish bool
	item    content.Item
	err     error
}

type sharedMsg struct {
	err error
}

type tweetOptionsMsg struct {
	styles       []string
	defaultStyle string
	err          error
}

type statusExpiredMsg struct {
	seq int
}

type copiedResetMsg struct {
	seq int
}

type previewReadyMsg struct {
	url string
	err error
}

// App is the main application model. In bubbletea, this holds ALL your state.
type App struct {
	state   appState
	config  *config.Config
	logbook *logbook.Logbook

	store     ContentStore
	generator Generator
	sessions  SessionSource
	registry  *plugins.Registry
	snapshots *snapshot.Store
	preview   *preview.Server

	machine    *draft.Machine
	reconciler *itemlist.Reconciler

	now      func() time.Time
	copyText func(string) error

	// UI components
	deckMenu  list.Model
	workspace *workspaceView
	statusMsg string
	statusSeq int

	// In-flight guards. The draft machine guards save/publish itself; these
	// cover the operations it does not own.
	loadingList bool
	generating  bool
	sharing     bool

	width  int
	height int
}

// menuItem implements list.Item for the deck menu.
type menuItem struct {
	id    string
	title string
	desc  string
}

func (i menuItem) Title() string       { return i.title }
func (i menuItem) Description() string { return i.desc }
func (i menuItem) FilterValue() string { return i.title }

// NewApp creates the dashboard rooted at baseDir.
func NewApp(baseDir string, opts ...AppOption) (*App, error) {
	cfg, err := config.NewConfig(baseDir)
	if err != nil {
		return nil, err
	}
	lb, err := logbook.New(filepath.Join(cfg.LogsDir(), "inkdeck.log"))
	if err != nil {
		lb = nil
	}
	registry, err := plugins.LoadPlatforms(cfg.PlatformsDir())
	if err != nil {
		return nil, err
	}
	accessor := session.NewAccessor(cfg.SessionPath())

	app := &App{
		state:      stateDeck,
		config:     cfg,
		logbook:    lb,
		sessions:   accessor,
		registry:   registry,
		snapshots:  snapshot.NewStore(cfg.DraftsDir()),
		machine:    draft.New(cfg.File.Store.BodyColumns),
		reconciler: itemlist.New(),
		now:        func() time.Time { return time.Now().UTC() },
		copyText:   clipboard.WriteAll,
	}
	app.store = store.NewClient(cfg.File.Store, accessor)
	app.generator = generate.NewClient(cfg, accessor)
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}

	app.deckMenu = buildDeckMenu(registry)
	if lb != nil {
		lb.Info("Session opened · %d platforms available", len(registry.All()))
	}
	return app, nil
}

func buildDeckMenu(registry *plugins.Registry) list.Model {
	items := []list.Item{}
	for _, def := range registry.All() {
		items = append(items, menuItem{id: def.ID, title: def.Name, desc: def.Description})
	}
	items = append(items, menuItem{id: "exit", title: "Exit", desc: "Quit inkdeck"})
	menu := list.New(items, list.NewDefaultDelegate(), 0, 0)
	menu.Title = "✎ INKDECK"
	menu.SetShowStatusBar(false)
	menu.SetFilteringEnabled(false)
	return menu
}

// Config exposes the loaded configuration.
func (a *App) Config() *config.Config { return a.config }

// SetPreview attaches a running preview server for the visit-live affordance.
func (a *App) SetPreview(server *preview.Server) { a.preview = server }

func (a *App) logInfo(format string, args ...any) {
	if a.logbook != nil {
		a.logbook.Info(format, args...)
	}
}

func (a *App) logWarn(format string, args ...any) {
	if a.logbook != nil {
		a.logbook.Warn(format, args...)
	}
}

func (a *App) logError(format string, args ...any) {
	if a.logbook != nil {
		a.logbook.Error(format, args...)
	}
}

// setStatus shows a transient footer message and schedules its dismissal.
func (a *App) setStatus(msg string) tea.Cmd {
	a.statusMsg = msg
	a.statusSeq++
	seq := a.statusSeq
	return tea.Tick(a.config.StatusMessageTTL(), func(time.Time) tea.Msg {
		return statusExpiredMsg{seq: seq}
	})
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return a.loadItems()
}

// loadItems fetches the owner's content list.
func (a *App) loadItems() tea.Cmd {
	if a.loadingList {
		return nil
	}
	a.loadingList = true
	contentStore := a.store
	sessions := a.sessions
	return func() tea.Msg {
		ses, err := sessions.Current()
		if err != nil {
			return itemsLoadedMsg{err: err}
		}
		items, err := contentStore.ListByOwner(context.Background(), ses.UserID)
		return itemsLoadedMsg{items: items, err: err}
	}
}

func (a *App) readBody(id string) tea.Cmd {
	contentStore := a.store
	return func() tea.Msg {
		body, err := contentStore.ReadBody(context.Background(), id)
		return bodyReadMsg{id: id, body: body, err: err}
	}
}

func (a *App) executeWrite(plan draft.WritePlan, publish bool) tea.Cmd {
	contentStore := a.store
	return func() tea.Msg {
		item, err := plan.Execute(context.Background(), contentStore)
		return writeDoneMsg{publish: publish, item: item, err: err}
	}
}

func (a *App) loadTweetOptions() tea.Cmd {
	generator := a.generator
	return func() tea.Msg {
		styles, err := generator.TweetStyles(context.Background())
		if err != nil {
			return tweetOptionsMsg{err: err}
		}
		defaultStyle, err := generator.DefaultStyle(context.Background())
		if err != nil {
			// The selector still works without a preference.
			return tweetOptionsMsg{styles: styles, err: err}
		}
		return tweetOptionsMsg{styles: styles, defaultStyle: defaultStyle}
	}
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.deckMenu.SetSize(max(0, msg.Width-6), max(0, msg.Height-10))
		if a.workspace != nil {
			a.workspace.setSize(msg.Width, msg.Height)
		}
		return a, nil

	case itemsLoadedMsg:
		a.loadingList = false
		if msg.err != nil {
			a.logError("List load failed: %v", msg.err)
			return a, a.setStatus(content.UserMessage(msg.err))
		}
		a.reconciler.ReplaceAll(msg.items)
		if a.workspace != nil {
			a.workspace.refreshPosts()
		}
		a.logInfo("Loaded %d items", len(msg.items))
		return a, nil

	case bodyReadMsg:
		a.machine.ApplyRead(msg.id, msg.body, msg.err)
		if msg.err != nil {
			a.logWarn("Body read for %s failed: %v", msg.id, msg.err)
		}
		cmd := a.restoreSnapshot(msg.id)
		if a.workspace != nil {
			a.workspace.syncEditor()
		}
		return a, cmd

	case generatedMsg:
		return a.handleGenerated(msg)

	case writeDoneMsg:
		return a.handleWriteDone(msg)

	case sharedMsg:
		a.sharing = false
		if msg.err != nil {
			a.logError("Share failed: %v", msg.err)
			return a, a.setStatus(content.UserMessage(msg.err))
		}
		a.logInfo("Shared to LinkedIn")
		return a, a.setStatus("Posted to LinkedIn!")

	case tweetOptionsMsg:
		if a.workspace != nil {
			a.workspace.applyTweetOptions(msg.styles, msg.defaultStyle)
		}
		if msg.err != nil {
			a.logWarn("Tweet style fetch degraded: %v", msg.err)
		}
		return a, nil

	case statusExpiredMsg:
		if msg.seq == a.statusSeq {
			a.statusMsg = ""
		}
		return a, nil

	case copiedResetMsg:
		if a.workspace != nil {
			a.workspace.resetCopied(msg.seq)
		}
		return a, nil

	case previewReadyMsg:
		if msg.err != nil {
			a.logWarn("Preview unavailable: %v", msg.err)
			return a, a.setStatus("Preview unavailable")
		}
		if err := a.copyText(msg.url); err != nil {
			return a, a.setStatus(msg.url)
		}
		return a, a.setStatus("Live URL copied: " + msg.url)

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a.updateFocused(msg)
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "q":
		if a.state == stateDeck {
			return a, tea.Quit
		}
	case "esc":
		if a.state == stateWorkspace {
			return a.returnToDeck()
		}
	case "ctrl+r":
		return a, tea.Batch(a.setStatus("Refreshing..."), a.loadItems())
	case "enter":
		if a.state == stateDeck {
			return a.handleDeckSelection()
		}
	}
	return a.updateFocused(msg)
}

func (a *App) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch a.state {
	case stateDeck:
		var menuCmd tea.Cmd
		a.deckMenu, menuCmd = a.deckMenu.Update(msg)
		if menuCmd != nil {
			cmds = append(cmds, menuCmd)
		}
	case stateWorkspace:
		if a.workspace != nil {
			if cmd := a.workspace.update(msg); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
	}
	return a, tea.Batch(cmds...)
}

// handleDeckSelection opens the selected platform workspace.
func (a *App) handleDeckSelection() (tea.Model, tea.Cmd) {
	item, ok := a.deckMenu.SelectedItem().(menuItem)
	if !ok {
		return a, nil
	}
	if item.id == "exit" {
		a.logInfo("Menu · Exit selected")
		return a, tea.Quit
	}
	def, ok := a.registry.Get(item.id)
	if !ok {
		return a, a.setStatus("Unknown platform " + item.id)
	}
	return a.openWorkspace(def)
}

func (a *App) openWorkspace(def plugins.PlatformDefinition) (tea.Model, tea.Cmd) {
	a.logInfo("Workspace · %s opened", def.ID)
	a.state = stateWorkspace
	a.workspace = newWorkspaceView(a, def)
	a.workspace.setSize(a.width, a.height)
	if err := a.config.SetDefaultPlatform(def.ID); err != nil {
		a.logWarn("Could not persist default platform: %v", err)
	}
	var cmds []tea.Cmd
	if def.Kind == plugins.KindTweet {
		cmds = append(cmds, a.loadTweetOptions())
	}
	if a.reconciler.Len() == 0 {
		cmds = append(cmds, a.loadItems())
	}
	return a, tea.Batch(cmds...)
}

// returnToDeck transitions back to the platform picker.
func (a *App) returnToDeck() (tea.Model, tea.Cmd) {
	a.state = stateDeck
	a.workspace = nil
	a.logInfo("Returned to deck")
	return a, nil
}

// selectItem makes a listed item the active draft, fetching its body when the
// machine does not already hold it.
func (a *App) selectItem(entry itemlist.Entry) tea.Cmd {
	if a.machine.Busy() {
		return a.setStatus("Hold on, a write is in flight")
	}
	needsFetch := a.machine.Select(entry.Item)
	if a.workspace != nil {
		a.workspace.syncEditor()
	}
	if !needsFetch {
		return nil
	}
	return a.readBody(entry.ID)
}

// generateContent dispatches a generation request for the active workspace.
func (a *App) generateContent(def plugins.PlatformDefinition, input workspaceInput) tea.Cmd {
	if a.generating {
		return a.setStatus("Generation already running")
	}
	a.generating = true
	generator := a.generator
	platform := def.ID
	switch def.Kind {
	case plugins.KindBlog:
		research := input.research
		return func() tea.Msg {
			artifact, err := generator.GenerateBlog(context.Background(), research)
			return generatedMsg{platform: platform, artifact: artifact, err: err}
		}
	case plugins.KindLinkedIn:
		research := input.research
		length := input.length
		return func() tea.Msg {
			artifact, err := generator.GenerateLinkedIn(context.Background(), research, length)
			return generatedMsg{platform: platform, artifact: artifact, err: err}
		}
	case plugins.KindTweet:
		in := generate.TweetInput{Topic: input.topic, Length: input.length, Style: input.style}
		return func() tea.Msg {
			artifact, err := generator.GenerateTweet(context.Background(), in)
			return generatedMsg{platform: platform, artifact: artifact, err: err}
		}
	}
	a.generating = false
	return a.setStatus("Platform kind " + def.Kind + " cannot generate")
}

func (a *App) handleGenerated(msg generatedMsg) (tea.Model, tea.Cmd) {
	a.generating = false
	if msg.err != nil {
		a.logError("Generation for %s failed: %v", msg.platform, msg.err)
		return a, a.setStatus(content.UserMessage(msg.err))
	}
	artifact := msg.artifact
	a.machine.AdoptArtifact(artifact)
	if artifact.ID != "" {
		a.reconciler.Upsert(artifact.Item(a.now()), itemlist.WithFront(), itemlist.AsUnconfirmed())
	}
	a.saveSnapshot(msg.platform)
	if a.workspace != nil {
		a.workspace.refreshPosts()
		a.workspace.syncEditor()
	}
	a.logInfo("Generated %s content (%d chars)", msg.platform, artifact.CharacterCount)
	return a, a.setStatus("Generated!")
}

// saveDraft starts a save for the active draft.
func (a *App) saveDraft() tea.Cmd {
	plan, err := a.machine.BeginSave()
	if err != nil {
		return a.writeRefused("Save", err)
	}
	a.logInfo("Saving %s", plan.ID)
	return a.executeWrite(plan, false)
}

// publishDraft starts a publish for the active draft.
func (a *App) publishDraft() tea.Cmd {
	plan, err := a.machine.BeginPublish()
	if err != nil {
		return a.writeRefused("Publish", err)
	}
	a.logInfo("Publishing %s", plan.ID)
	return a.executeWrite(plan, true)
}

func (a *App) writeRefused(verb string, err error) tea.Cmd {
	switch {
	case errors.Is(err, draft.ErrBusy):
		return a.setStatus(verb + " already in progress")
	case errors.Is(err, draft.ErrNoActive):
		return a.setStatus("Nothing selected")
	case errors.Is(err, draft.ErrAlreadyPublished):
		return a.setStatus("Already published")
	default:
		return a.setStatus(fmt.Sprintf("%s unavailable: %v", verb, err))
	}
}

func (a *App) handleWriteDone(msg writeDoneMsg) (tea.Model, tea.Cmd) {
	id := a.machine.ID()
	if msg.publish {
		a.machine.CompletePublish(msg.item, msg.err)
	} else {
		a.machine.CompleteSave(msg.item, msg.err)
	}
	if a.workspace != nil {
		defer a.workspace.syncEditor()
	}
	if msg.err != nil {
		a.logError("Write for %s failed: %v", id, msg.err)
		// Mirror the unsaved edits to disk so nothing is lost.
		a.saveSnapshot(a.activePlatformID())
		return a, a.setStatus(content.UserMessage(msg.err))
	}
	a.reconciler.Upsert(msg.item)
	a.reconciler.Confirm(msg.item.ID)
	if err := a.snapshots.Remove(msg.item.ID); err != nil {
		a.logWarn("Snapshot cleanup for %s: %v", msg.item.ID, err)
	}
	if a.workspace != nil {
		a.workspace.refreshPosts()
	}
	if msg.publish {
		a.logInfo("Published %s", msg.item.ID)
		return a, a.setStatus("Published!")
	}
	a.logInfo("Saved %s", msg.item.ID)
	return a, a.setStatus("Saved!")
}

// shareDraft cross-posts the current edited text. Always the real content,
// never a canned payload.
func (a *App) shareDraft() tea.Cmd {
	if a.sharing {
		return a.setStatus("Share already in progress")
	}
	text := strings.TrimSpace(content.StripTags(a.machine.Body()))
	if text == "" {
		return a.setStatus("Nothing to share")
	}
	a.sharing = true
	generator := a.generator
	return func() tea.Msg {
		return sharedMsg{err: generator.Share(context.Background(), text)}
	}
}

// visitLive resolves the live URL for a confirmed publish.
func (a *App) visitLive() tea.Cmd {
	if !a.machine.CanVisitLive() {
		return a.setStatus("Publish first")
	}
	if a.preview == nil {
		return a.setStatus("Preview server disabled")
	}
	url := a.preview.LiveURL(a.machine.ID())
	return func() tea.Msg {
		return previewReadyMsg{url: url}
	}
}

// copyBody copies the draft body to the clipboard and schedules the
// "Copied!" label reset.
func (a *App) copyBody() tea.Cmd {
	body := a.machine.Body()
	if a.workspace != nil && a.workspace.def.PlainText {
		body = content.StripTags(body)
	}
	if strings.TrimSpace(body) == "" {
		return a.setStatus("Nothing to copy")
	}
	if err := a.copyText(body); err != nil {
		a.logWarn("Clipboard write failed: %v", err)
		return a.setStatus("Clipboard unavailable")
	}
	var seq int
	if a.workspace != nil {
		seq = a.workspace.markCopied()
	}
	return tea.Tick(copiedResetInterval, func(time.Time) tea.Msg {
		return copiedResetMsg{seq: seq}
	})
}

// restoreSnapshot overlays edits mirrored to disk onto the freshly read
// draft. The mirror outlives failed writes and crashed sessions, so the
// remote body loses to it until the next confirmed write clears it.
func (a *App) restoreSnapshot(id string) tea.Cmd {
	if id == "" || a.machine.ID() != id {
		return nil
	}
	snap, err := a.snapshots.Load(id)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			a.logWarn("Snapshot read for %s: %v", id, err)
		}
		return nil
	}
	if snap.Title != "" {
		if err := a.machine.EditTitle(snap.Title); err != nil {
			a.logWarn("Snapshot restore for %s: %v", id, err)
			return nil
		}
	}
	if err := a.machine.EditBody(snap.Body); err != nil {
		a.logWarn("Snapshot restore for %s: %v", id, err)
		return nil
	}
	if !a.machine.Dirty() {
		// The mirror matches the remote copy; nothing was at risk.
		return nil
	}
	a.logInfo("Restored unsaved edits for %s", id)
	return a.setStatus("Restored unsaved edits")
}

func (a *App) saveSnapshot(platform string) {
	if a.machine.ID() == "" {
		return
	}
	snap := snapshot.Snapshot{
		ID:       a.machine.ID(),
		Title:    a.machine.Title(),
		Status:   a.machine.Status(),
		Platform: platform,
		Body:     a.machine.Body(),
	}
	if err := a.snapshots.Save(snap); err != nil {
		a.logWarn("Snapshot for %s: %v", snap.ID, err)
	}
}

func (a *App) activePlatformID() string {
	if a.workspace != nil {
		return a.workspace.def.ID
	}
	return a.config.DefaultPlatform()
}

// View renders the current state to a string.
func (a *App) View() string {
	var body string
	switch a.state {
	case stateDeck:
		body = a.deckMenu.View()
	case stateWorkspace:
		if a.workspace != nil {
			body = a.workspace.view()
		}
	}
	sections := []string{a.renderHeader(), body}
	if log := a.renderLogPanel(); log != "" {
		sections = append(sections, log)
	}
	if footer := a.renderFooter(); footer != "" {
		sections = append(sections, footer)
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (a *App) renderHeader() string {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		MarginBottom(1).
		Render("✎ INKDECK")
}

func (a *App) renderFooter() string {
	if a.statusMsg == "" {
		return ""
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFD166")).
		Render(a.statusMsg)
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines := a.logbook.Tail(5)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("LOG · %s", fileName))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(fmt.Sprintf("%s\n%s", head, body))
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
