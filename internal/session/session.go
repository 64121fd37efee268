// Package session tracks whether the configured credential is currently
// accepted by the API.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/marcus/mb/internal/apiclient"
)

// ErrInvalidSession blocks every project operation until the credential
// is corrected and re-verified.
var ErrInvalidSession = errors.New("token invalid: unable to fetch or create projects")

const (
	// DefaultDebounce is the quiet window before a changed token is verified.
	DefaultDebounce = 500 * time.Millisecond

	defaultVerifyTimeout = 30 * time.Second
)

// State is the client's belief about credential validity.
type State int

const (
	StateUnknown State = iota
	StateValid
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	Token      string
	State      State
	Subscribed bool
	CheckedAt  time.Time
}

// Valid reports whether the credential was last verified as valid.
func (s Snapshot) Valid() bool {
	return s.State == StateValid
}

// Client is the subset of the API client the session needs.
type Client interface {
	SetToken(token string)
	VerifyToken(ctx context.Context) (*apiclient.Verification, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithDebounce sets the quiet window used by SetToken.
func WithDebounce(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.debounce = d
		}
	}
}

// WithObserver registers fn to run after every applied state change.
func WithObserver(fn func(Snapshot)) Option {
	return func(m *Manager) {
		m.observers = append(m.observers, fn)
	}
}

// Manager owns the credential and its verification state.
//
// Every verification is tagged with a sequence number; a result is only
// applied if no newer verification or token change happened while it
// was in flight.
type Manager struct {
	client        Client
	debounce      time.Duration
	verifyTimeout time.Duration

	mu        sync.Mutex
	snap      Snapshot
	seq       uint64
	timer     *time.Timer
	timerGen  uint64
	observers []func(Snapshot)
}

// New creates a Manager bound to client. The initial token is whatever
// the client was constructed with; call SetToken or Verify to evaluate it.
func New(client Client, token string, opts ...Option) *Manager {
	m := &Manager{
		client:        client,
		debounce:      DefaultDebounce,
		verifyTimeout: defaultVerifyTimeout,
		snap:          Snapshot{Token: token},
	}
	for _, opt := range opts {
		opt(m)
	}
	client.SetToken(token)
	return m
}

// AddObserver registers fn to run after every applied state change.
func (m *Manager) AddObserver(fn func(Snapshot)) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

// Snapshot returns the current session state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Valid reports whether the credential is currently verified.
func (m *Manager) Valid() bool {
	return m.Snapshot().Valid()
}

// RequireValid returns ErrInvalidSession unless the credential is verified.
func (m *Manager) RequireValid() error {
	if !m.Valid() {
		return ErrInvalidSession
	}
	return nil
}

// Verify checks the current token and applies the result. Transport
// errors mark the session invalid and are returned for logging.
func (m *Manager) Verify(ctx context.Context) error {
	m.mu.Lock()
	m.seq++
	seq := m.seq
	m.mu.Unlock()

	res, err := m.client.VerifyToken(ctx)

	m.mu.Lock()
	if seq != m.seq {
		m.mu.Unlock()
		slog.Debug("session: discarding superseded verification", "seq", seq)
		return nil
	}
	m.snap.CheckedAt = time.Now()
	if err != nil || res == nil || !res.Valid {
		m.snap.State = StateInvalid
		m.snap.Subscribed = false
	} else {
		m.snap.State = StateValid
		m.snap.Subscribed = res.Subscribed
	}
	snap := m.snap
	observers := append([]func(Snapshot){}, m.observers...)
	m.mu.Unlock()

	slog.Debug("session: verified", "state", snap.State, "subscribed", snap.Subscribed)
	notify(observers, snap)
	return err
}

// SetToken rebinds the credential and schedules a verification once the
// token has been stable for the debounce window. Rapid edits coalesce
// into a single verification of the last value.
func (m *Manager) SetToken(token string) {
	m.mu.Lock()
	changed := token != m.snap.Token
	if changed {
		m.snap.Token = token
		m.snap.State = StateUnknown
		m.snap.Subscribed = false
		m.seq++ // results still in flight belong to the old token
		m.client.SetToken(token)
	}

	if m.timer != nil {
		m.timer.Stop()
	}
	m.timerGen++
	gen := m.timerGen
	m.timer = time.AfterFunc(m.debounce, func() { m.fire(gen) })

	snap := m.snap
	observers := append([]func(Snapshot){}, m.observers...)
	m.mu.Unlock()

	if changed {
		notify(observers, snap)
	}
}

func (m *Manager) fire(gen uint64) {
	m.mu.Lock()
	stale := gen != m.timerGen
	if !stale {
		m.timer = nil
	}
	m.mu.Unlock()
	if stale {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.verifyTimeout)
	defer cancel()
	if err := m.Verify(ctx); err != nil {
		slog.Warn("session: verify token", "err", err)
	}
}

// Pending reports whether a debounced verification is scheduled.
func (m *Manager) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timer != nil
}

// Close cancels any pending debounced verification.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.timerGen++
}

func notify(observers []func(Snapshot), snap Snapshot) {
	for _, fn := range observers {
		fn(snap)
	}
}
