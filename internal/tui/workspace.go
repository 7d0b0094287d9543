package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/inkdeck/inkdeck/internal/content"
	"github.com/inkdeck/inkdeck/internal/draft"
	"github.com/inkdeck/inkdeck/internal/generate"
	itemlist "github.com/inkdeck/inkdeck/internal/list"
	"github.com/inkdeck/inkdeck/plugins"
)

type workspaceFocus int

const (
	focusPosts workspaceFocus = iota
	focusPrompt
	focusTitle
	focusBody
)

const (
	tweetLengthStep    = 10
	linkedInLengthStep = 50
	linkedInMinLength  = 100
)

// workspaceInput carries whatever the focused platform needs to generate.
type workspaceInput struct {
	research string
	topic    string
	style    string
	length   int
}

// postItem implements list.Item for the cached content summaries.
type postItem struct {
	entry itemlist.Entry
}

func (i postItem) Title() string {
	title := strings.TrimSpace(i.entry.Title)
	if title == "" {
		title = "Untitled"
	}
	if i.entry.Unconfirmed {
		title += " *"
	}
	return title
}

func (i postItem) Description() string {
	return fmt.Sprintf("%s · %d views", i.entry.Status, i.entry.ViewCount)
}

func (i postItem) FilterValue() string { return i.entry.Title }

// workspaceView is the per-platform editing screen: the cached post list on
// the left, the prompt and editor on the right.
type workspaceView struct {
	app *App
	def plugins.PlatformDefinition

	postList   list.Model
	promptArea textarea.Model
	titleInput textinput.Model
	bodyArea   textarea.Model
	spin       spinner.Model

	styles        []string
	styleIdx      int
	suggestionIdx int
	targetLength  int

	focus   workspaceFocus
	copied  bool
	copySeq int

	width  int
	height int
}

func newWorkspaceView(app *App, def plugins.PlatformDefinition) *workspaceView {
	posts := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	posts.Title = def.Name + " posts"
	posts.SetShowStatusBar(false)
	posts.SetFilteringEnabled(false)

	prompt := textarea.New()
	if def.Kind == plugins.KindTweet {
		prompt.Placeholder = "Topic (what should the tweet be about?)"
		prompt.CharLimit = generate.TopicMaxLength
	} else {
		prompt.Placeholder = "Paste research notes here"
	}

	title := textinput.New()
	title.Placeholder = "Title"

	body := textarea.New()
	body.Placeholder = "Generated content appears here"

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	view := &workspaceView{
		app:        app,
		def:        def,
		postList:   posts,
		promptArea: prompt,
		titleInput: title,
		bodyArea:   body,
		spin:       spin,
		focus:      focusPrompt,
	}
	switch def.Kind {
	case plugins.KindTweet:
		view.targetLength = generate.TweetMaxLength
	case plugins.KindLinkedIn:
		view.targetLength = def.OptimalMax
		if view.targetLength == 0 {
			view.targetLength = 300
		}
	}
	view.promptArea.Focus()
	view.refreshPosts()
	view.syncEditor()
	return view
}

func (w *workspaceView) setSize(width, height int) {
	w.width = width
	w.height = height
	listWidth := max(24, width/3)
	editorWidth := max(30, width-listWidth-8)
	w.postList.SetSize(listWidth, max(8, height-16))
	w.promptArea.SetWidth(editorWidth)
	w.promptArea.SetHeight(4)
	w.titleInput.Width = editorWidth
	w.bodyArea.SetWidth(editorWidth)
	w.bodyArea.SetHeight(max(6, height-22))
}

// refreshPosts rebuilds the post list from the reconciler cache.
func (w *workspaceView) refreshPosts() {
	entries := w.app.reconciler.Items()
	items := make([]list.Item, len(entries))
	for i, entry := range entries {
		items[i] = postItem{entry: entry}
	}
	w.postList.SetItems(items)
}

// syncEditor pulls the machine's draft into the editor components.
func (w *workspaceView) syncEditor() {
	w.titleInput.SetValue(w.app.machine.Title())
	w.bodyArea.SetValue(w.app.machine.Body())
}

func (w *workspaceView) applyTweetOptions(styles []string, defaultStyle string) {
	w.styles = styles
	w.styleIdx = 0
	for i, style := range styles {
		if style == defaultStyle {
			w.styleIdx = i
			break
		}
	}
}

func (w *workspaceView) currentStyle() string {
	if len(w.styles) == 0 {
		return ""
	}
	return w.styles[w.styleIdx]
}

func (w *workspaceView) cycleStyle() {
	if len(w.styles) > 0 {
		w.styleIdx = (w.styleIdx + 1) % len(w.styles)
	}
}

// applySuggestion fills the prompt with the next quick suggestion the
// platform declares. Repeated presses cycle through them.
func (w *workspaceView) applySuggestion() {
	if len(w.def.Suggestions) == 0 {
		return
	}
	w.promptArea.SetValue(w.def.Suggestions[w.suggestionIdx])
	w.suggestionIdx = (w.suggestionIdx + 1) % len(w.def.Suggestions)
}

func (w *workspaceView) adjustLength(delta int) {
	switch w.def.Kind {
	case plugins.KindTweet:
		w.targetLength += delta * tweetLengthStep
		if w.targetLength < generate.TweetMinLength {
			w.targetLength = generate.TweetMinLength
		}
		if w.targetLength > generate.TweetMaxLength {
			w.targetLength = generate.TweetMaxLength
		}
	case plugins.KindLinkedIn:
		w.targetLength += delta * linkedInLengthStep
		if w.targetLength < linkedInMinLength {
			w.targetLength = linkedInMinLength
		}
		if w.def.MaxChars > 0 && w.targetLength > w.def.MaxChars {
			w.targetLength = w.def.MaxChars
		}
	}
}

func (w *workspaceView) markCopied() int {
	w.copied = true
	w.copySeq++
	return w.copySeq
}

func (w *workspaceView) resetCopied(seq int) {
	if seq == w.copySeq {
		w.copied = false
	}
}

func (w *workspaceView) input() workspaceInput {
	return workspaceInput{
		research: w.promptArea.Value(),
		topic:    w.promptArea.Value(),
		style:    w.currentStyle(),
		length:   w.targetLength,
	}
}

func (w *workspaceView) update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok {
		if cmd, handled := w.handleKey(key); handled {
			return cmd
		}
	}
	return w.updateFocusedComponent(msg)
}

func (w *workspaceView) handleKey(key tea.KeyMsg) (tea.Cmd, bool) {
	switch key.String() {
	case "tab":
		w.cycleFocus()
		return nil, true
	case "shift+tab":
		w.cycleFocusBack()
		return nil, true
	case "ctrl+g":
		return w.app.generateContent(w.def, w.input()), true
	case "ctrl+s":
		return w.app.saveDraft(), true
	case "ctrl+p":
		return w.app.publishDraft(), true
	case "ctrl+y":
		return w.app.copyBody(), true
	case "ctrl+l":
		if w.def.Kind == plugins.KindLinkedIn {
			return w.app.shareDraft(), true
		}
	case "ctrl+o":
		return w.app.visitLive(), true
	case "ctrl+t":
		if w.def.Kind == plugins.KindTweet {
			w.cycleStyle()
			return nil, true
		}
	case "ctrl+n":
		if len(w.def.Suggestions) > 0 {
			w.applySuggestion()
			return nil, true
		}
	case "+", "=":
		if w.focus != focusPrompt && w.focus != focusTitle && w.focus != focusBody {
			w.adjustLength(1)
			return nil, true
		}
	case "-":
		if w.focus != focusPrompt && w.focus != focusTitle && w.focus != focusBody {
			w.adjustLength(-1)
			return nil, true
		}
	case "enter":
		if w.focus == focusPosts {
			return w.selectHighlighted(), true
		}
	}
	return nil, false
}

func (w *workspaceView) selectHighlighted() tea.Cmd {
	item, ok := w.postList.SelectedItem().(postItem)
	if !ok {
		return nil
	}
	return w.app.selectItem(item.entry)
}

func (w *workspaceView) cycleFocus() {
	w.setFocus((w.focus + 1) % 4)
}

func (w *workspaceView) cycleFocusBack() {
	w.setFocus((w.focus + 3) % 4)
}

func (w *workspaceView) setFocus(focus workspaceFocus) {
	w.focus = focus
	w.promptArea.Blur()
	w.titleInput.Blur()
	w.bodyArea.Blur()
	switch focus {
	case focusPrompt:
		w.promptArea.Focus()
	case focusTitle:
		w.titleInput.Focus()
	case focusBody:
		w.bodyArea.Focus()
	}
}

func (w *workspaceView) updateFocusedComponent(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch w.focus {
	case focusPosts:
		w.postList, cmd = w.postList.Update(msg)
	case focusPrompt:
		w.promptArea, cmd = w.promptArea.Update(msg)
	case focusTitle:
		w.titleInput, cmd = w.titleInput.Update(msg)
		w.pushTitleEdit()
	case focusBody:
		w.bodyArea, cmd = w.bodyArea.Update(msg)
		w.pushBodyEdit()
	}
	return cmd
}

// pushTitleEdit propagates editor text into the machine. Edits outside Ready
// are rejected there, so the component is re-synced to the machine instead.
func (w *workspaceView) pushTitleEdit() {
	if err := w.app.machine.EditTitle(w.titleInput.Value()); err != nil {
		w.titleInput.SetValue(w.app.machine.Title())
	}
}

func (w *workspaceView) pushBodyEdit() {
	if err := w.app.machine.EditBody(w.bodyArea.Value()); err != nil {
		w.bodyArea.SetValue(w.app.machine.Body())
	}
}

func (w *workspaceView) view() string {
	left := w.postList.View()
	right := w.renderEditor()
	columns := lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right)
	return lipgloss.JoinVertical(lipgloss.Left, columns, w.renderControls())
}

func (w *workspaceView) renderEditor() string {
	var sections []string
	prompt := lipgloss.NewStyle().Bold(true).Render(w.promptLabel())
	sections = append(sections, prompt, w.promptArea.View())
	if chips := w.renderSuggestions(); chips != "" {
		sections = append(sections, chips)
	}
	if w.def.Kind == plugins.KindTweet {
		sections = append(sections, w.renderTweetOptions())
	}
	if w.def.Kind == plugins.KindBlog {
		sections = append(sections, "", w.titleInput.View())
	}
	sections = append(sections, "", w.bodyArea.View(), w.renderCharCount())
	if w.app.generating {
		sections = append(sections, w.spin.View()+" generating...")
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (w *workspaceView) promptLabel() string {
	if w.def.Kind == plugins.KindTweet {
		return "Topic"
	}
	return "Research"
}

func (w *workspaceView) renderSuggestions() string {
	if len(w.def.Suggestions) == 0 {
		return ""
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		Render("try (ctrl+n): " + strings.Join(w.def.Suggestions, " · "))
}

func (w *workspaceView) renderTweetOptions() string {
	style := w.currentStyle()
	if style == "" {
		style = "(none)"
	}
	return fmt.Sprintf("style: %s (ctrl+t) · length: %d (+/-)", style, w.targetLength)
}

// renderCharCount shows the plain-text length against the platform cap and
// its optimal band.
func (w *workspaceView) renderCharCount() string {
	if w.def.MaxChars == 0 && w.def.OptimalMax == 0 {
		return ""
	}
	count := len([]rune(content.StripTags(w.app.machine.Body())))
	line := fmt.Sprintf("%d", count)
	if w.def.MaxChars > 0 {
		line = fmt.Sprintf("%d / %d", count, w.def.MaxChars)
	}
	color := "#9CCC65"
	switch {
	case w.def.MaxChars > 0 && count > w.def.MaxChars:
		color = "#FF6B6B"
	case w.def.OptimalMax > 0 && (count < w.def.OptimalMin || count > w.def.OptimalMax):
		color = "#FFD166"
	}
	if w.def.OptimalMax > 0 {
		line += fmt.Sprintf(" (optimal %d-%d)", w.def.OptimalMin, w.def.OptimalMax)
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(line)
}

func (w *workspaceView) renderControls() string {
	controls := []string{"ctrl+g generate", "ctrl+s save"}
	if w.app.machine.CanPublish() {
		controls = append(controls, "ctrl+p publish")
	} else if w.app.machine.Status() == content.StatusPublished {
		controls = append(controls, "published ✓")
	}
	if w.app.machine.CanVisitLive() {
		controls = append(controls, "ctrl+o visit live")
	}
	if w.def.Kind == plugins.KindLinkedIn {
		controls = append(controls, "ctrl+l post to LinkedIn")
	}
	if w.copied {
		controls = append(controls, "Copied!")
	} else {
		controls = append(controls, "ctrl+y copy")
	}
	controls = append(controls, "esc back")
	line := strings.Join(controls, " · ")
	if w.app.machine.Busy() {
		verb := "saving"
		if w.app.machine.Phase() == draft.PhasePublishing {
			verb = "publishing"
		}
		line = w.spin.View() + " " + verb + "... · " + line
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Render(line)
}
