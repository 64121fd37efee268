package cmd

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/mb/internal/apiclient"
	"github.com/marcus/mb/internal/models"
	"github.com/marcus/mb/internal/session"
	"github.com/marcus/mb/internal/syncer"
	"github.com/marcus/mb/internal/tui/watch"
)

type staticArchiver struct{}

func (staticArchiver) Archive(ctx context.Context, root string) ([]byte, error) {
	return []byte("zip"), nil
}

// hangingRemote blocks every upload until its context is cancelled, then
// fails with a non-cancellation error so the manager sends a notice.
type hangingRemote struct {
	started   chan struct{}
	cancelled chan struct{}
	once      sync.Once
}

func (r *hangingRemote) GetProjectBySlug(ctx context.Context, slug string) (*models.Project, error) {
	return nil, apiclient.ErrNotFound
}

func (r *hangingRemote) CreateProject(ctx context.Context, req *apiclient.CreateRequest) (*models.Project, error) {
	return nil, errors.New("not used")
}

func (r *hangingRemote) SyncProject(ctx context.Context, slug string, archive []byte) error {
	r.once.Do(func() { close(r.started) })
	<-ctx.Done()
	close(r.cancelled)
	return errors.New("connection reset by peer")
}

func (r *hangingRemote) DeleteProject(ctx context.Context, id string) error { return nil }

type oneProject struct{}

func (oneProject) Refresh(ctx context.Context) error { return nil }
func (oneProject) Projects() []models.Project {
	return []models.Project{{ID: "1", Slug: "tomsblog", FolderToShare: "blog"}}
}

type alwaysValid struct{}

func (alwaysValid) Valid() bool { return true }

func within(t *testing.T, d time.Duration, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(d):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestStopAutoSyncMidRunKeepsDashboardResponsive(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	remote := &hangingRemote{started: make(chan struct{}), cancelled: make(chan struct{})}
	relay := newNoticeRelay()
	mgr := syncer.New(staticArchiver{}, remote, oneProject{}, alwaysValid{}, syncer.WithNotifier(relay))
	defer mgr.StopAutoSync()

	if err := mgr.StartAutoSync(ctx, 20*time.Millisecond); err != nil {
		t.Fatalf("StartAutoSync: %v", err)
	}

	model := watch.NewModel(ctx, mgr, oneProject{}, 20*time.Millisecond, session.Snapshot{State: session.StateValid})
	p := tea.NewProgram(model,
		tea.WithContext(ctx),
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
		tea.WithoutRenderer(),
		tea.WithoutSignalHandler(),
	)
	detach := relay.attach(p)
	defer detach()

	exited := make(chan struct{})
	go func() {
		defer close(exited)
		p.Run()
	}()

	within(t, 3*time.Second, remote.started, "the first upload")

	go func() {
		p.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}})
		p.Send(tea.Quit())
	}()

	within(t, 3*time.Second, exited, "the dashboard to handle quit after toggling auto-sync off")
	within(t, 3*time.Second, remote.cancelled, "the in-flight upload to be cancelled")
	if mgr.AutoSyncRunning() {
		t.Error("auto-sync should be stopped")
	}
}

func TestNoticeRelayNotifyNeverBlocks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The program is never run, so nothing drains its message channel.
	p := tea.NewProgram(watch.NewModel(ctx, syncer.New(staticArchiver{}, &hangingRemote{}, oneProject{}, alwaysValid{}), oneProject{}, time.Minute, session.Snapshot{}),
		tea.WithContext(ctx), tea.WithInput(nil), tea.WithOutput(io.Discard))
	relay := newNoticeRelay()
	detach := relay.attach(p)
	defer detach()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range noticeBuffer * 2 {
			relay.Notify(syncer.LevelError, "Error zipping files for tomsblog")
		}
	}()
	within(t, time.Second, done, "Notify to return")
}

func TestNoticeRelayDetached(t *testing.T) {
	relay := newNoticeRelay()
	relay.Notify(syncer.LevelInfo, "Syncing all projects...")
	if len(relay.queue) != 0 {
		t.Errorf("queue = %d, detached notices should only be logged", len(relay.queue))
	}
}
