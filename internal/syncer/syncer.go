// Package syncer publishes workspace folders to Markbase: it syncs one or
// all projects, creates and deletes projects, and drives periodic sync.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marcus/mb/internal/apiclient"
	"github.com/marcus/mb/internal/autosync"
	"github.com/marcus/mb/internal/models"
	"github.com/marcus/mb/internal/session"
)

// Archiver zips a workspace-relative folder.
type Archiver interface {
	Archive(ctx context.Context, root string) ([]byte, error)
}

// Remote is the subset of the API used by the manager.
type Remote interface {
	GetProjectBySlug(ctx context.Context, slug string) (*models.Project, error)
	CreateProject(ctx context.Context, req *apiclient.CreateRequest) (*models.Project, error)
	SyncProject(ctx context.Context, slug string, archive []byte) error
	DeleteProject(ctx context.Context, id string) error
}

// ProjectSource is the cached project list.
type ProjectSource interface {
	Refresh(ctx context.Context) error
	Projects() []models.Project
}

// SessionGuard reports whether the credential is currently valid.
type SessionGuard interface {
	Valid() bool
}

// Level is the severity of a Notice.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

// Notifier displays transient status messages to the user.
type Notifier interface {
	Notify(level Level, msg string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(level Level, msg string)

func (f NotifierFunc) Notify(level Level, msg string) { f(level, msg) }

type nopNotifier struct{}

func (nopNotifier) Notify(Level, string) {}

// Recorder persists operation outcomes.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// Event is one recorded operation.
type Event struct {
	Op       string
	Slug     string
	OK       bool
	Kind     Kind
	Message  string
	Duration time.Duration
	At       time.Time
}

// Result is the outcome of syncing one project.
type Result struct {
	Slug     string
	OK       bool
	Err      error
	Kind     Kind
	Duration time.Duration
}

// Report summarises a SyncAll run. Results are in project order.
type Report struct {
	Results []Result
}

// OK reports whether every project synced.
func (r Report) OK() bool {
	for _, res := range r.Results {
		if !res.OK {
			return false
		}
	}
	return true
}

// Failed returns the number of projects that did not sync.
func (r Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.OK {
			n++
		}
	}
	return n
}

// Outcomes maps slug to success.
func (r Report) Outcomes() map[string]bool {
	out := make(map[string]bool, len(r.Results))
	for _, res := range r.Results {
		out[res.Slug] = res.OK
	}
	return out
}

// CreateInput is the user-entered data for a new project.
type CreateInput struct {
	Slug   string
	Name   string
	Folder string
	Public bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithNotifier sets where user-facing notices go.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) {
		if n != nil {
			m.notifier = n
		}
	}
}

// WithRecorder records every sync, create and delete outcome.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// ErrSyncInProgress is returned by SyncAll while another SyncAll runs.
var ErrSyncInProgress = errors.New("sync already in progress")

// Manager coordinates archive, upload and the project list.
type Manager struct {
	archiver Archiver
	remote   Remote
	projects ProjectSource
	session  SessionGuard
	notifier Notifier
	recorder Recorder

	syncing atomic.Bool

	mu   sync.Mutex
	auto *autosync.Scheduler
}

// New creates a Manager.
func New(arch Archiver, remote Remote, projects ProjectSource, sess SessionGuard, opts ...Option) *Manager {
	m := &Manager{
		archiver: arch,
		remote:   remote,
		projects: projects,
		session:  sess,
		notifier: nopNotifier{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SyncOne archives and uploads p. It reports success; the cause of any
// failure is logged and shown through the Notifier.
func (m *Manager) SyncOne(ctx context.Context, p models.Project) bool {
	return m.SyncOneResult(ctx, p).OK
}

// SyncOneResult is SyncOne with the full outcome.
func (m *Manager) SyncOneResult(ctx context.Context, p models.Project) Result {
	start := time.Now()
	res := Result{Slug: p.Slug}

	err := m.syncProject(ctx, p)
	res.Duration = time.Since(start)
	switch kind := Classify(err); kind {
	case KindNone:
		res.OK = true
		slog.Info("synced", "slug", p.Slug, "duration", res.Duration)
	case KindCanceled:
		// Stopped by the user; nothing to show or record.
		res.Err, res.Kind = err, kind
		slog.Info("sync cancelled", "slug", p.Slug)
		return res
	default:
		res.Err, res.Kind = err, kind
		slog.Error("sync failed", "slug", p.Slug, "kind", kind, "err", err)
		m.notifier.Notify(LevelError, Describe(err, p.Slug))
	}

	m.record(ctx, Event{Op: "sync", Slug: p.Slug, OK: res.OK, Kind: res.Kind, Message: Describe(err, p.Slug), Duration: res.Duration})
	return res
}

func (m *Manager) syncProject(ctx context.Context, p models.Project) error {
	data, err := m.archiver.Archive(ctx, p.FolderToShare)
	if err != nil {
		return err
	}
	if err := m.remote.SyncProject(ctx, p.Slug, data); err != nil {
		return fmt.Errorf("sync %s: %w", p.Slug, err)
	}
	return nil
}

// SyncAll refreshes the project list and syncs each project in turn. A
// failed project never stops the loop. With an invalid session nothing
// is attempted and session.ErrInvalidSession is returned. Only one
// SyncAll runs at a time; a concurrent call gets ErrSyncInProgress.
func (m *Manager) SyncAll(ctx context.Context) (Report, error) {
	if !m.session.Valid() {
		m.notifier.Notify(LevelWarn, Describe(session.ErrInvalidSession, ""))
		return Report{}, session.ErrInvalidSession
	}
	if !m.syncing.CompareAndSwap(false, true) {
		slog.Info("sync all skipped, previous run still in progress")
		return Report{}, ErrSyncInProgress
	}
	defer m.syncing.Store(false)

	m.notifier.Notify(LevelInfo, "Syncing all projects...")
	if err := m.projects.Refresh(ctx); err != nil {
		slog.Error("refresh projects", "err", err)
		m.notifier.Notify(LevelError, Describe(err, ""))
		return Report{}, err
	}

	var report Report
	for _, p := range m.projects.Projects() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Results = append(report.Results, m.SyncOneResult(ctx, p))
	}

	slog.Info("sync all finished", "projects", len(report.Results), "failed", report.Failed())
	m.notifier.Notify(LevelInfo, "Finished syncing all projects")
	return report, nil
}

// CreateProject validates the input, checks the slug is free, archives
// the folder and creates the project. Nothing is archived when the slug
// is taken. The caller refreshes the project list afterwards.
func (m *Manager) CreateProject(ctx context.Context, in CreateInput) (*models.Project, error) {
	start := time.Now()
	p, err := m.createProject(ctx, in)
	m.recordUnlessCanceled(ctx, err, Event{Op: "create", Slug: in.Slug, OK: err == nil, Kind: Classify(err), Message: Describe(err, in.Slug), Duration: time.Since(start)})
	if err != nil {
		slog.Error("create project failed", "slug", in.Slug, "kind", Classify(err), "err", err)
		return nil, err
	}
	slog.Info("project created", "slug", p.Slug, "id", p.ID)
	return p, nil
}

// ValidateInput checks slug, name and folder without any network call.
func ValidateInput(in CreateInput) error {
	if err := models.ValidateSlug(in.Slug); err != nil {
		return err
	}
	if err := models.ValidateName(in.Name); err != nil {
		return err
	}
	return models.ValidateFolder(in.Folder)
}

func (m *Manager) createProject(ctx context.Context, in CreateInput) (*models.Project, error) {
	if err := ValidateInput(in); err != nil {
		return nil, err
	}
	folder := models.NormalizeFolder(in.Folder)

	if !m.session.Valid() {
		return nil, session.ErrInvalidSession
	}

	existing, err := m.remote.GetProjectBySlug(ctx, in.Slug)
	switch {
	case err == nil && existing != nil:
		return nil, fmt.Errorf("create %s: %w", in.Slug, apiclient.ErrSlugInUse)
	case err != nil && !errors.Is(err, apiclient.ErrNotFound):
		return nil, fmt.Errorf("check slug %s: %w", in.Slug, err)
	}

	data, err := m.archiver.Archive(ctx, folder)
	if err != nil {
		return nil, err
	}

	p, err := m.remote.CreateProject(ctx, &apiclient.CreateRequest{
		Slug:          in.Slug,
		Name:          in.Name,
		FolderToShare: folder,
		Public:        in.Public,
		Archive:       data,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", in.Slug, err)
	}
	return p, nil
}

// DeleteProject removes a project by id. The caller refreshes the list.
func (m *Manager) DeleteProject(ctx context.Context, p models.Project) error {
	start := time.Now()
	err := m.deleteProject(ctx, p)
	m.recordUnlessCanceled(ctx, err, Event{Op: "delete", Slug: p.Slug, OK: err == nil, Kind: Classify(err), Message: Describe(err, p.Slug), Duration: time.Since(start)})
	if err != nil {
		slog.Error("delete project failed", "slug", p.Slug, "id", p.ID, "err", err)
		return err
	}
	slog.Info("project deleted", "slug", p.Slug, "id", p.ID)
	return nil
}

func (m *Manager) deleteProject(ctx context.Context, p models.Project) error {
	if !m.session.Valid() {
		return session.ErrInvalidSession
	}
	if err := m.remote.DeleteProject(ctx, p.ID.String()); err != nil {
		return fmt.Errorf("delete %s: %w", p.Slug, err)
	}
	return nil
}

// StartAutoSync runs SyncAll every interval until StopAutoSync or ctx is
// done. It refuses to start with an invalid session; validity is not
// rechecked on later ticks. Starting again restarts with the new interval.
func (m *Manager) StartAutoSync(ctx context.Context, interval time.Duration) error {
	if !m.session.Valid() {
		m.notifier.Notify(LevelWarn, Describe(session.ErrInvalidSession, ""))
		return session.ErrInvalidSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.auto != nil {
		m.auto.Stop()
	}
	m.auto = autosync.New(interval, func(ctx context.Context) {
		if _, err := m.SyncAll(ctx); err != nil {
			slog.Warn("auto-sync run failed", "err", err)
		}
	})
	if err := m.auto.Start(ctx); err != nil {
		m.auto = nil
		return err
	}
	slog.Info("auto-sync started", "interval", m.auto.Interval())
	return nil
}

// StopAutoSync stops periodic sync. It is safe to call when not running.
func (m *Manager) StopAutoSync() {
	m.mu.Lock()
	auto := m.auto
	m.auto = nil
	m.mu.Unlock()
	if auto != nil {
		auto.Stop()
		slog.Info("auto-sync stopped")
	}
}

// Syncing reports whether a SyncAll is in progress.
func (m *Manager) Syncing() bool {
	return m.syncing.Load()
}

// AutoSyncRunning reports whether periodic sync is active.
func (m *Manager) AutoSyncRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.auto != nil && m.auto.Running()
}

// AutoSyncStats returns tick counters for the active scheduler.
func (m *Manager) AutoSyncStats() autosync.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.auto == nil {
		return autosync.Stats{}
	}
	return m.auto.Stats()
}

func (m *Manager) recordUnlessCanceled(ctx context.Context, err error, ev Event) {
	if Classify(err) == KindCanceled {
		return
	}
	m.record(ctx, ev)
}

func (m *Manager) record(ctx context.Context, ev Event) {
	if m.recorder == nil {
		return
	}
	ev.At = time.Now()
	if err := m.recorder.Record(context.WithoutCancel(ctx), ev); err != nil {
		slog.Warn("record history", "op", ev.Op, "err", err)
	}
}
