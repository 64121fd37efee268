package cmd

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/marcus/mb/internal/apiclient"
	"github.com/marcus/mb/internal/archive"
	"github.com/marcus/mb/internal/config"
	"github.com/marcus/mb/internal/history"
	"github.com/marcus/mb/internal/output"
	"github.com/marcus/mb/internal/registry"
	"github.com/marcus/mb/internal/session"
	"github.com/marcus/mb/internal/syncer"
)

// app holds the wired components for one command invocation.
type app struct {
	client    *apiclient.Client
	session   *session.Manager
	registry  *registry.Registry
	syncer    *syncer.Manager
	history   *history.Store
	workspace string
}

// newApp wires the API client, session, registry and sync manager from
// config. notifier may be nil to print notices to the terminal.
func newApp(notifier syncer.Notifier) (*app, error) {
	token, source, err := config.LoadToken()
	if err != nil {
		return nil, err
	}
	slog.Debug("credential loaded", "source", source, "present", token != "")

	a := &app{workspace: config.Workspace()}
	a.client = apiclient.New(config.APIURL(), token)
	a.session = session.New(a.client, token, session.WithDebounce(config.VerifyDebounce()))
	a.registry = registry.New(a.client, a.session)

	opts := []syncer.Option{}
	if notifier == nil {
		notifier = terminalNotifier()
	}
	opts = append(opts, syncer.WithNotifier(notifier))

	if dir, err := config.Dir(); err == nil {
		if store, err := history.Open(filepath.Join(dir, "history.db")); err == nil {
			a.history = store
			opts = append(opts, syncer.WithRecorder(historyRecorder{store}))
		} else {
			slog.Warn("history unavailable", "err", err)
		}
	}

	a.syncer = syncer.New(archive.NewOS(a.workspace), a.client, a.registry, a.session, opts...)
	return a, nil
}

// verify checks the credential. It returns session.ErrInvalidSession when
// the credential is missing or rejected, or the transport error when the
// server could not be reached.
func (a *app) verify(ctx context.Context) error {
	if err := a.session.Verify(ctx); err != nil {
		return err
	}
	return a.session.RequireValid()
}

func (a *app) Close() {
	a.syncer.StopAutoSync()
	a.session.Close()
	if a.history != nil {
		a.history.Close()
	}
}

// terminalNotifier prints sync notices with the output helpers.
func terminalNotifier() syncer.Notifier {
	return syncer.NotifierFunc(func(level syncer.Level, msg string) {
		switch level {
		case syncer.LevelError:
			output.Error("%s", msg)
		case syncer.LevelWarn:
			output.Warning("%s", msg)
		default:
			output.Info("%s", msg)
		}
	})
}

// historyRecorder stores sync manager events in the history database.
type historyRecorder struct {
	store *history.Store
}

func (r historyRecorder) Record(ctx context.Context, ev syncer.Event) error {
	return r.store.Record(ctx, history.Entry{
		Op:        ev.Op,
		Slug:      ev.Slug,
		OK:        ev.OK,
		Kind:      string(ev.Kind),
		Message:   ev.Message,
		Duration:  ev.Duration,
		Timestamp: ev.At,
	})
}
