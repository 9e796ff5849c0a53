package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/jobsync/internal/models"
	"github.com/desertthunder/jobsync/internal/shared"
	"github.com/desertthunder/jobsync/internal/tasks"
)

// ViewState is the sub-view of the review overlay.
type ViewState int

const (
	ReviewView ViewState = iota
	SearchView
	CandidateView
)

const (
	defaultWidth  = 80
	defaultHeight = 24
)

// Model represents the TUI application state.
type Model struct {
	ctx        context.Context
	client     *tasks.Client
	view       ViewState
	width      int
	height     int
	songs      list.Model
	candidates list.Model
	query      textinput.Model
	spin       spinner.Model
	help       help.Model
	keys       keyMap
	changes    chan struct{}
	status     tasks.Notification
	err        error
}

// NewModel creates a TUI model bound to client. Session, ledger and reconciler changes wake the model.
func NewModel(ctx context.Context, client *tasks.Client) *Model {
	m := &Model{
		ctx:     ctx,
		client:  client,
		view:    ReviewView,
		width:   defaultWidth,
		height:  defaultHeight,
		help:    help.New(),
		keys:    newKeyMap(),
		changes: make(chan struct{}, 1),
		status:  client.Session.Status(),
	}

	m.songs = newList("Review")
	m.candidates = newList("Candidates")

	m.query = textinput.New()
	m.query.Placeholder = "song name"
	m.query.CharLimit = 120

	m.spin = spinner.New()
	m.spin.Spinner = spinner.Dot

	wake := func() {
		select {
		case m.changes <- struct{}{}:
		default:
		}
	}
	client.Session.OnChange(wake)
	client.Reconciler.OnChange(wake)
	client.Ledger.Subscribe(func([]models.Process) { wake() })

	m.resize(m.width, m.height)
	m.refresh()
	return m
}

func newList(title string) list.Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	return l
}

// Init starts the change and notification listeners, the countdown tick and resumption.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.waitForChange(),
		m.waitForNotification(),
		m.spin.Tick,
		tick(),
		m.resume(),
	)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) && m.view != SearchView {
			return m, tea.Quit
		}
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.client.Session.Overlay() {
		case models.OverlaySongSyncStatus:
			return m.handleReviewKeys(msg)
		default:
			return m.handleOverlayKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgStateChanged:
		m.refresh()
		return m, m.waitForChange()

	case MsgNotification:
		m.status = msg.data.(tasks.Notification)
		return m, m.waitForNotification()

	case MsgTick:
		return m, tick()

	case MsgCandidates:
		res := msg.data.(candidatesResult)
		if res.err != nil {
			m.err = res.err
			return m, nil
		}
		m.err = nil
		items := make([]list.Item, len(res.candidates))
		for i, c := range res.candidates {
			items[i] = candidateItem{candidate: c}
		}
		m.candidates.Title = fmt.Sprintf("Candidates for '%s'", m.query.Value())
		m.view = CandidateView
		m.query.Blur()
		return m, m.candidates.SetItems(items)

	case MsgFinalized:
		if err, _ := msg.data.(error); err != nil {
			m.err = err
		}
		m.refresh()
		return m, nil

	case MsgResumed:
		m.refresh()
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current overlay.
func (m *Model) View() string {
	var body string
	switch m.client.Session.Overlay() {
	case models.OverlayProcesses:
		body = m.renderProcesses()
	case models.OverlayFinalizing:
		body = m.renderFinalizing()
	case models.OverlaySongSyncStatus:
		body = m.renderReview()
	default:
		body = m.renderIdle()
	}

	return fmt.Sprintf("%s\n%s\n\n%s\n%s", m.renderHeader(), body, m.renderStatus(), m.renderHelp())
}

func (m *Model) handleReviewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.view {
	case SearchView:
		switch msg.String() {
		case "esc":
			m.view = ReviewView
			m.query.Blur()
			return m, nil
		case "enter":
			return m, m.search(m.query.Value())
		}
		var cmd tea.Cmd
		m.query, cmd = m.query.Update(msg)
		return m, cmd

	case CandidateView:
		switch {
		case key.Matches(msg, m.keys.back):
			m.view = SearchView
			return m, m.query.Focus()
		case key.Matches(msg, m.keys.choose):
			if item, ok := m.candidates.SelectedItem().(candidateItem); ok {
				if dir, idx, _, active := m.client.Reconciler.Active(); active {
					m.client.Reconciler.ApplySelection(dir, idx, item.candidate)
				}
			}
			m.view = ReviewView
			m.refresh()
			return m, nil
		}
		var cmd tea.Cmd
		m.candidates, cmd = m.candidates.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.tab):
		next := models.Reverse
		if m.direction() == models.Reverse {
			next = models.Forward
		}
		m.client.Tab.Set(string(next))
		m.songs.Select(0)
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.search):
		item, ok := m.songs.SelectedItem().(songItem)
		if !ok {
			return m, nil
		}
		m.client.Reconciler.BeginManualSearch(item.dir, item.song, item.index)
		m.query.SetValue(item.song.Name)
		m.query.CursorEnd()
		m.view = SearchView
		m.err = nil
		return m, m.query.Focus()

	case key.Matches(msg, m.keys.skip):
		if item, ok := m.songs.SelectedItem().(songItem); ok {
			m.client.Reconciler.BeginManualSearch(item.dir, item.song, item.index)
			m.client.Reconciler.ApplySkip(item.dir, item.index)
			m.refresh()
		}
		return m, nil

	case msg.String() == "f":
		// disabled bindings never match; f would otherwise page the list
		if !m.keys.finalize.Enabled() {
			return m, nil
		}
		return m, m.finalize()

	case key.Matches(msg, m.keys.processes):
		m.client.Session.SetOverlay(models.OverlayProcesses)
		return m, nil

	case key.Matches(msg, m.keys.back):
		m.client.Session.SetOverlay(models.OverlayNone)
		return m, nil
	}

	var cmd tea.Cmd
	m.songs, cmd = m.songs.Update(msg)
	return m, cmd
}

func (m *Model) handleOverlayKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.processes):
		if m.client.Session.Overlay() == models.OverlayProcesses {
			m.client.Session.SetOverlay(models.OverlayNone)
		} else {
			m.client.Session.SetOverlay(models.OverlayProcesses)
		}
	case key.Matches(msg, m.keys.review):
		if !m.client.Reconciler.Empty() && !m.client.Session.Finalizing() {
			m.view = ReviewView
			m.client.Session.SetOverlay(models.OverlaySongSyncStatus)
		}
	case key.Matches(msg, m.keys.resume):
		return m, m.resume()
	case key.Matches(msg, m.keys.back):
		if m.client.Session.Overlay() == models.OverlayProcesses {
			m.client.Session.SetOverlay(models.OverlayNone)
		}
	}
	return m, nil
}

func (m *Model) resize(w, h int) {
	m.width, m.height = w, h
	m.songs.SetSize(w-4, h-10)
	m.candidates.SetSize(w-4, h-12)
	m.query.Width = max(w-10, 10)
	m.help.Width = w
}

// direction is the review tab, falling back to the job's direction.
func (m *Model) direction() models.Direction {
	if d, err := models.ParseDirection(m.client.Tab.Get()); err == nil {
		return d
	}
	return m.client.Poller.JobDirection()
}

// refresh rebuilds the song list for the active tab and the finalize key state.
func (m *Model) refresh() {
	dir := m.direction()
	songs := m.client.Reconciler.Songs(dir)
	items := make([]list.Item, len(songs))
	for i, s := range songs {
		items[i] = songItem{index: i, dir: dir, song: s}
	}
	m.songs.SetItems(items)

	c := m.client.Reconciler.Counts(dir)
	if m.client.Session.Overlay() != models.OverlaySongSyncStatus {
		m.view = ReviewView
		m.query.Blur()
	}

	m.songs.Title = fmt.Sprintf("%s • %d songs • %d found • %d unresolved", strings.ToUpper(string(dir)), c.Total, c.Found, c.Unresolved)

	m.keys.finalize.SetEnabled(m.client.Reconciler.CanFinalize() && !m.client.Session.Finalizing() && !m.client.Observer())
	m.keys.review.SetEnabled(!m.client.Reconciler.Empty())
}

func (m *Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.changes:
			return stateChangedMsg()
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) waitForNotification() tea.Cmd {
	return func() tea.Msg {
		select {
		case n := <-m.client.Session.Notifications():
			return notificationMsg(n)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) resume() tea.Cmd {
	return func() tea.Msg {
		return resumedMsg(m.client.Resume(m.ctx))
	}
}

func (m *Model) search(query string) tea.Cmd {
	return func() tea.Msg {
		candidates, err := m.client.Reconciler.Search(m.ctx, query)
		return candidatesMsg(candidates, err)
	}
}

func (m *Model) finalize() tea.Cmd {
	return func() tea.Msg {
		return finalizedMsg(m.client.Finalize(m.ctx))
	}
}

func (m *Model) renderHeader() string {
	snap := m.client.Snapshot()

	health := styles.err.Render("○ offline")
	if snap.Connected {
		health = styles.ok.Render("● online")
	}

	job := "no job"
	if snap.JobID != "" {
		job = fmt.Sprintf("job %s", snap.JobID)
		if snap.Status != "" {
			job = fmt.Sprintf("%s (%s)", job, snap.Status)
		}
	}

	parts := []string{styles.badge.Render("jobsync"), job, snap.Backend, health}
	if snap.Observer {
		parts = append(parts, styles.warn.Render("observer"))
	}
	return strings.Join(parts, "  ")
}

func (m *Model) renderProcesses() string {
	title := styles.title.Render("Processes")
	procs := m.client.Ledger.Processes()
	if len(procs) == 0 {
		return fmt.Sprintf("%s\n%s", title, styles.help.Render("Nothing running."))
	}

	now := time.Now()
	var b strings.Builder
	for _, p := range procs {
		icon := " "
		switch p.Status {
		case models.ProcessPending, models.ProcessInProgress:
			icon = m.spin.View()
		case models.ProcessCompleted, models.ProcessDone:
			icon = styles.ok.Render("✓")
		case models.ProcessError:
			icon = styles.err.Render("✗")
		}

		line := fmt.Sprintf("%s %s  %s", icon, p.Type, p.Message)
		if !p.CountdownEnd.IsZero() {
			line += styles.help.Render(fmt.Sprintf("  ~%s left", shared.FormatRemaining(p.Remaining(now))))
		}
		b.WriteString(line + "\n")
		if p.SubMessage != "" {
			b.WriteString(styles.help.Render("    "+p.SubMessage) + "\n")
		}
		if p.Interactive && p.Status == models.ProcessDone {
			b.WriteString(styles.warn.Render("    press v to review") + "\n")
		}
	}
	return fmt.Sprintf("%s\n%s", title, strings.TrimRight(b.String(), "\n"))
}

func (m *Model) renderFinalizing() string {
	title := styles.title.Render("Finalizing")
	return fmt.Sprintf("%s\n%s Applying reviewed songs to job %s…", title, m.spin.View(), m.client.Poller.CurrentJobID())
}

func (m *Model) renderReview() string {
	var body string
	switch m.view {
	case SearchView:
		_, _, song, _ := m.client.Reconciler.Active()
		title := styles.title.Render(fmt.Sprintf("Manual search: %s - %s", song.Artist, song.Name))
		body = fmt.Sprintf("%s\n%s", title, m.query.View())
	case CandidateView:
		body = m.candidates.View()
	default:
		if m.client.Reconciler.Empty() {
			body = styles.help.Render("No songs to review.")
		} else {
			body = m.songs.View()
		}
	}

	if m.client.Dismiss.Fading() {
		return styles.dim.Render(body)
	}
	return body
}

func (m *Model) renderIdle() string {
	title := styles.title.Render("No active job")
	hint := "Start a sync with `jobsync sync start`, or press r to resume the latest job."
	if !m.client.Reconciler.Empty() {
		hint = "Review lists are waiting. Press v to open them."
	}
	return fmt.Sprintf("%s\n%s", title, styles.help.Render(hint))
}

func (m *Model) renderStatus() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v", m.err))
	}
	if m.status.Message == "" {
		return ""
	}
	switch m.status.Kind {
	case tasks.NotifySuccess:
		return styles.ok.Render(m.status.Message)
	case tasks.NotifyError:
		return styles.err.Render(m.status.Message)
	default:
		return m.status.Message
	}
}

func (m *Model) renderHelp() string {
	var keys []key.Binding
	switch m.client.Session.Overlay() {
	case models.OverlaySongSyncStatus:
		switch m.view {
		case SearchView:
			keys = []key.Binding{
				key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "search")),
				m.keys.back,
			}
		case CandidateView:
			keys = []key.Binding{m.keys.up, m.keys.down, m.keys.choose, m.keys.back, m.keys.quit}
		default:
			keys = []key.Binding{m.keys.tab, m.keys.search, m.keys.skip, m.keys.finalize, m.keys.processes, m.keys.back, m.keys.quit}
		}
	default:
		keys = []key.Binding{m.keys.processes, m.keys.review, m.keys.resume, m.keys.quit}
	}
	return m.help.ShortHelpView(keys)
}
