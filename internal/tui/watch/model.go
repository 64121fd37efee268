// Package watch is the interactive `mb watch` dashboard: the project list,
// sync activity and auto-sync state.
package watch

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/mb/internal/models"
	"github.com/marcus/mb/internal/session"
	"github.com/marcus/mb/internal/syncer"
)

// Backend performs the sync operations the dashboard triggers.
type Backend interface {
	SyncAll(ctx context.Context) (syncer.Report, error)
	SyncOneResult(ctx context.Context, p models.Project) syncer.Result
	StartAutoSync(ctx context.Context, interval time.Duration) error
	StopAutoSync()
	AutoSyncRunning() bool
}

// ProjectSource is the cached project list.
type ProjectSource interface {
	Refresh(ctx context.Context) error
	Projects() []models.Project
}

// maxActivity bounds the activity log.
const maxActivity = 100

// Activity is one line in the activity log.
type Activity struct {
	At    time.Time
	Level syncer.Level
	Text  string
}

// Model is the Bubble Tea model for mb watch.
type Model struct {
	ctx      context.Context
	backend  Backend
	source   ProjectSource
	interval time.Duration

	Width  int
	Height int

	Projects []models.Project
	Cursor   int
	Activity []Activity
	Session  session.Snapshot
	Syncing  bool
	AutoSync bool
	LastSync time.Time
	ShowHelp bool

	spinner spinner.Model
	help    help.Model
	keys    keyMap
}

// NoticeMsg carries a notice from the sync manager.
type NoticeMsg struct {
	Level syncer.Level
	Text  string
}

// SessionMsg reports a session state change.
type SessionMsg session.Snapshot

// ProjectsMsg carries a refreshed project list.
type ProjectsMsg struct {
	Projects []models.Project
	Err      error
}

// SyncDoneMsg reports a finished SyncAll.
type SyncDoneMsg struct {
	Report syncer.Report
	Err    error
	At     time.Time
}

// SyncOneDoneMsg reports a finished single-project sync.
type SyncOneDoneMsg struct {
	Result syncer.Result
	At     time.Time
}

// AutoSyncMsg reports an auto-sync state change made outside the
// dashboard.
type AutoSyncMsg struct {
	Running bool
}

type autoSyncToggledMsg struct {
	running bool
	err     error
}

// NewModel creates the dashboard. autoSync reflects whether periodic
// sync was already started by the caller.
func NewModel(ctx context.Context, backend Backend, source ProjectSource, interval time.Duration, snap session.Snapshot) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle

	return Model{
		ctx:      ctx,
		backend:  backend,
		source:   source,
		interval: interval,
		Projects: source.Projects(),
		Session:  snap,
		AutoSync: backend.AutoSyncRunning(),
		spinner:  sp,
		help:     help.New(),
		keys:     defaultKeyMap(),
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return m.refresh()
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		if !m.Syncing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case NoticeMsg:
		m.log(msg.Level, msg.Text)
		m.Projects = m.source.Projects()
		m.clampCursor()
		return m, nil

	case SessionMsg:
		m.Session = session.Snapshot(msg)
		return m, nil

	case AutoSyncMsg:
		m.AutoSync = msg.Running
		return m, nil

	case autoSyncToggledMsg:
		m.AutoSync = msg.running
		switch {
		case msg.err != nil:
			m.log(syncer.LevelWarn, syncer.Describe(msg.err, ""))
		case msg.running:
			m.log(syncer.LevelInfo, "Auto-sync every "+m.interval.String())
		default:
			m.log(syncer.LevelInfo, "Auto-sync stopped")
		}
		return m, nil

	case ProjectsMsg:
		if msg.Err != nil {
			m.log(syncer.LevelError, syncer.Describe(msg.Err, ""))
			return m, nil
		}
		m.Projects = msg.Projects
		m.clampCursor()
		return m, nil

	case SyncDoneMsg:
		m.Syncing = false
		if errors.Is(msg.Err, syncer.ErrSyncInProgress) {
			m.log(syncer.LevelWarn, syncer.Describe(msg.Err, ""))
		}
		if msg.Err == nil {
			m.LastSync = msg.At
			m.Projects = m.source.Projects()
			m.clampCursor()
		}
		return m, nil

	case SyncOneDoneMsg:
		m.Syncing = false
		if msg.Result.OK {
			m.LastSync = msg.At
			m.log(syncer.LevelInfo, "Synced "+msg.Result.Slug)
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.ShowHelp = !m.ShowHelp
		m.help.ShowAll = m.ShowHelp
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.Cursor > 0 {
			m.Cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.Cursor < len(m.Projects)-1 {
			m.Cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, m.refresh()

	case key.Matches(msg, m.keys.SyncAll):
		if m.Syncing {
			m.log(syncer.LevelWarn, syncer.Describe(syncer.ErrSyncInProgress, ""))
			return m, nil
		}
		m.Syncing = true
		return m, tea.Batch(m.spinner.Tick, m.syncAll())

	case key.Matches(msg, m.keys.SyncOne):
		if m.Syncing || len(m.Projects) == 0 {
			return m, nil
		}
		m.Syncing = true
		p := m.Projects[m.Cursor]
		m.log(syncer.LevelInfo, "Syncing "+p.Slug+"...")
		return m, tea.Batch(m.spinner.Tick, m.syncOne(p))

	case key.Matches(msg, m.keys.AutoSync):
		return m.toggleAutoSync()
	}

	return m, nil
}

// toggleAutoSync starts or stops periodic sync off the event loop. Stop
// waits for an in-flight run, and that run may still send notices here.
func (m Model) toggleAutoSync() (Model, tea.Cmd) {
	ctx, backend, interval := m.ctx, m.backend, m.interval
	if backend.AutoSyncRunning() {
		m.log(syncer.LevelInfo, "Stopping auto-sync...")
		return m, func() tea.Msg {
			backend.StopAutoSync()
			return autoSyncToggledMsg{running: false}
		}
	}
	return m, func() tea.Msg {
		if err := backend.StartAutoSync(ctx, interval); err != nil {
			return autoSyncToggledMsg{err: err}
		}
		return autoSyncToggledMsg{running: true}
	}
}

func (m *Model) log(level syncer.Level, text string) {
	m.Activity = append(m.Activity, Activity{At: time.Now(), Level: level, Text: text})
	if over := len(m.Activity) - maxActivity; over > 0 {
		m.Activity = m.Activity[over:]
	}
}

func (m *Model) clampCursor() {
	m.Cursor = max(0, min(m.Cursor, len(m.Projects)-1))
}

func (m Model) refresh() tea.Cmd {
	ctx, source := m.ctx, m.source
	return func() tea.Msg {
		err := source.Refresh(ctx)
		return ProjectsMsg{Projects: source.Projects(), Err: err}
	}
}

func (m Model) syncAll() tea.Cmd {
	ctx, backend := m.ctx, m.backend
	return func() tea.Msg {
		report, err := backend.SyncAll(ctx)
		return SyncDoneMsg{Report: report, Err: err, At: time.Now()}
	}
}

func (m Model) syncOne(p models.Project) tea.Cmd {
	ctx, backend := m.ctx, m.backend
	return func() tea.Msg {
		return SyncOneDoneMsg{Result: backend.SyncOneResult(ctx, p), At: time.Now()}
	}
}

// View implements tea.Model
func (m Model) View() string {
	return m.renderView()
}
