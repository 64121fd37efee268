package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/marcus/mb/internal/config"
	"github.com/marcus/mb/internal/lockfile"
	"github.com/marcus/mb/internal/output"
	"github.com/marcus/mb/internal/session"
	"github.com/marcus/mb/internal/syncer"
	"github.com/marcus/mb/internal/tui/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep projects in sync from a live dashboard",
	Long: `Open a dashboard of your projects and keep them synced.

Auto-sync runs SyncAll on an interval when enabled in config
(auto_sync.enabled) or with --auto. Send SIGHUP to reload the stored
token without restarting. Use --headless to run without the dashboard,
for example under a service manager.`,
	Example: `  mb watch
  mb watch --auto --interval 10m
  mb watch --headless --auto`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		headless, _ := cmd.Flags().GetBool("headless")

		interval := config.AutoSyncInterval()
		if cmd.Flags().Changed("interval") {
			d, _ := cmd.Flags().GetDuration("interval")
			if d < config.MinAutoSyncInterval {
				return fmt.Errorf("--interval must be at least %s", config.MinAutoSyncInterval)
			}
			interval = d
		}
		auto := config.AutoSyncEnabled()
		if cmd.Flags().Changed("auto") {
			auto, _ = cmd.Flags().GetBool("auto")
		}

		dir, err := config.Dir()
		if err != nil {
			return err
		}
		lock := lockfile.New(filepath.Join(dir, "watch.lock"))
		if err := lock.TryAcquire(); err != nil {
			if errors.Is(err, lockfile.ErrLocked) {
				output.Error("mb watch is already running (%s)", lock.Holder())
				return reportedError{err}
			}
			return err
		}
		defer lock.Release()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		relay := newNoticeRelay()
		var notifier syncer.Notifier = relay
		if headless {
			notifier = nil
		}
		a, err := newApp(notifier)
		if err != nil {
			return report(err, "")
		}
		defer a.Close()

		if err := a.session.Verify(ctx); err != nil {
			slog.Warn("verify token", "err", err)
		}
		if !a.session.Valid() {
			output.Warning("%s", syncer.Describe(session.ErrInvalidSession, ""))
		}

		go reloadTokenOnHangup(ctx, a.session)

		w := &watcher{app: a, interval: interval, auto: auto, onStart: config.AutoSyncOnStart()}
		if headless {
			return w.runHeadless(ctx)
		}
		return w.runDashboard(ctx, relay)
	},
}

// watcher runs the long-lived sync loop behind mb watch.
type watcher struct {
	app      *app
	interval time.Duration
	auto     bool
	onStart  bool
}

// start performs the initial sync and starts auto-sync as configured.
// Failures are reported through the notifier and do not end the watch.
func (w *watcher) start(ctx context.Context) {
	if !w.app.session.Valid() {
		return
	}
	if w.onStart {
		if _, err := w.app.syncer.SyncAll(ctx); err != nil {
			slog.Warn("initial sync", "err", err)
		}
	}
	if w.auto {
		if err := w.app.syncer.StartAutoSync(ctx, w.interval); err != nil {
			slog.Warn("start auto-sync", "err", err)
		}
	}
}

func (w *watcher) runHeadless(ctx context.Context) error {
	w.app.session.AddObserver(func(s session.Snapshot) {
		slog.Info("session changed", "state", s.State, "subscribed", s.Subscribed)
		if s.Valid() && w.auto && !w.app.syncer.AutoSyncRunning() {
			if err := w.app.syncer.StartAutoSync(ctx, w.interval); err != nil {
				slog.Warn("start auto-sync", "err", err)
			}
		}
	})

	w.start(ctx)
	if w.auto {
		output.Info("Watching %s, auto-sync every %s. Ctrl+C to stop.", w.app.workspace, w.interval)
	} else {
		output.Info("Watching %s with auto-sync off. Ctrl+C to stop.", w.app.workspace)
	}

	<-ctx.Done()
	w.app.syncer.StopAutoSync()
	output.Info("Stopped.")
	return nil
}

func (w *watcher) runDashboard(ctx context.Context, relay *noticeRelay) error {
	model := watch.NewModel(ctx, w.app.syncer, w.app.registry, w.interval, w.app.session.Snapshot())
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	detach := relay.attach(p)
	defer detach()
	w.app.session.AddObserver(func(s session.Snapshot) { p.Send(watch.SessionMsg(s)) })
	go func() {
		w.start(ctx)
		p.Send(watch.AutoSyncMsg{Running: w.app.syncer.AutoSyncRunning()})
	}()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// reloadTokenOnHangup re-reads the stored token on SIGHUP. The session
// debounces the change and re-verifies.
func reloadTokenOnHangup(ctx context.Context, sess *session.Manager) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			token, source, err := config.LoadToken()
			if err != nil {
				slog.Error("reload token", "err", err)
				continue
			}
			slog.Info("token reloaded", "source", source)
			sess.SetToken(token)
		}
	}
}

// noticeBuffer bounds notices waiting for the dashboard.
const noticeBuffer = 64

// noticeRelay forwards sync notices to the dashboard once it is running
// and logs them before that. Notify never blocks: the sender may be a
// sync run that the event loop itself is waiting on.
type noticeRelay struct {
	mu    sync.Mutex
	p     *tea.Program
	queue chan watch.NoticeMsg
}

func newNoticeRelay() *noticeRelay {
	return &noticeRelay{queue: make(chan watch.NoticeMsg, noticeBuffer)}
}

// attach starts forwarding queued notices to p. The returned func stops it.
func (r *noticeRelay) attach(p *tea.Program) (detach func()) {
	done := make(chan struct{})
	r.mu.Lock()
	r.p = p
	r.mu.Unlock()

	go func() {
		for {
			select {
			case <-done:
				return
			case n := <-r.queue:
				p.Send(n)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.p = nil
			r.mu.Unlock()
			close(done)
		})
	}
}

func (r *noticeRelay) Notify(level syncer.Level, msg string) {
	r.mu.Lock()
	attached := r.p != nil
	r.mu.Unlock()
	if !attached {
		slog.Info("notice", "level", level, "msg", msg)
		return
	}
	select {
	case r.queue <- watch.NoticeMsg{Level: level, Text: msg}:
	default:
		slog.Warn("dashboard busy, notice dropped", "msg", msg)
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().Bool("headless", false, "Run without the dashboard")
	watchCmd.Flags().Bool("auto", false, "Enable auto-sync (default from auto_sync.enabled)")
	watchCmd.Flags().Duration("interval", 0, "Auto-sync interval (default from auto_sync.interval)")
}
