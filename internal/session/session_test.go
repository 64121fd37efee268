package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/marcus/mb/internal/apiclient"
)

// fakeClient answers VerifyToken from a fixed table keyed by token.
type fakeClient struct {
	mu      sync.Mutex
	token   string
	valid   map[string]bool
	calls   []string
	block   map[string]chan struct{}
	failFor map[string]error
}

func newFakeClient(valid map[string]bool) *fakeClient {
	return &fakeClient{valid: valid, block: map[string]chan struct{}{}, failFor: map[string]error{}}
}

func (f *fakeClient) SetToken(token string) {
	f.mu.Lock()
	f.token = token
	f.mu.Unlock()
}

func (f *fakeClient) VerifyToken(ctx context.Context) (*apiclient.Verification, error) {
	f.mu.Lock()
	token := f.token
	f.calls = append(f.calls, token)
	wait := f.block[token]
	err := f.failFor[token]
	valid := f.valid[token]
	f.mu.Unlock()

	if wait != nil {
		<-wait
	}
	if err != nil {
		return nil, err
	}
	return &apiclient.Verification{Valid: valid, Subscribed: valid}, nil
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestVerifyTransitions(t *testing.T) {
	client := newFakeClient(map[string]bool{"good": true})
	var seen []State
	m := New(client, "good", WithObserver(func(s Snapshot) { seen = append(seen, s.State) }))

	if got := m.Snapshot().State; got != StateUnknown {
		t.Fatalf("initial state: got %v, want unknown", got)
	}
	if m.Valid() {
		t.Fatal("unknown session must not be valid")
	}

	if err := m.Verify(context.Background()); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	snap := m.Snapshot()
	if !snap.Valid() || !snap.Subscribed {
		t.Errorf("after verify: got %+v, want valid+subscribed", snap)
	}
	if err := m.RequireValid(); err != nil {
		t.Errorf("RequireValid: %v", err)
	}
	if len(seen) != 1 || seen[0] != StateValid {
		t.Errorf("observer saw %v, want [valid]", seen)
	}
}

func TestVerifyErrorMarksInvalid(t *testing.T) {
	client := newFakeClient(map[string]bool{"tok": true})
	client.failFor["tok"] = errors.New("connection refused")
	m := New(client, "tok")

	if err := m.Verify(context.Background()); err == nil {
		t.Fatal("expected transport error to be returned")
	}
	if m.Snapshot().State != StateInvalid {
		t.Errorf("state = %v, want invalid", m.Snapshot().State)
	}
	if !errors.Is(m.RequireValid(), ErrInvalidSession) {
		t.Error("RequireValid should return ErrInvalidSession")
	}
}

func TestSetTokenDebounceLastWriteWins(t *testing.T) {
	client := newFakeClient(map[string]bool{"c1": true, "c2": false})
	m := New(client, "", WithDebounce(30*time.Millisecond))
	defer m.Close()

	m.SetToken("c1")
	m.SetToken("c2")

	waitFor(t, func() bool { return client.callCount() == 1 })
	// Give a stray timer a chance to fire.
	time.Sleep(80 * time.Millisecond)

	if n := client.callCount(); n != 1 {
		t.Fatalf("verify calls: got %d, want 1", n)
	}
	if client.calls[0] != "c2" {
		t.Errorf("verified %q, want c2", client.calls[0])
	}
	snap := m.Snapshot()
	if snap.Token != "c2" || snap.State != StateInvalid {
		t.Errorf("final snapshot = %+v, want c2/invalid", snap)
	}
}

func TestSetTokenMarksUnknown(t *testing.T) {
	client := newFakeClient(map[string]bool{"c1": true})
	m := New(client, "c1", WithDebounce(time.Hour))
	defer m.Close()

	if err := m.Verify(context.Background()); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	m.SetToken("c2")
	if m.Valid() {
		t.Error("changing the token must clear validity until re-verified")
	}
	if !m.Pending() {
		t.Error("expected a pending debounced verification")
	}
	m.Close()
	if m.Pending() {
		t.Error("Close should cancel the pending verification")
	}
}

func TestSupersededVerificationDiscarded(t *testing.T) {
	client := newFakeClient(map[string]bool{"c1": true, "c2": false})
	release := make(chan struct{})
	client.block["c1"] = release
	m := New(client, "c1", WithDebounce(time.Hour))
	defer m.Close()

	done := make(chan error, 1)
	go func() { done <- m.Verify(context.Background()) }()
	waitFor(t, func() bool { return client.callCount() == 1 })

	m.SetToken("c2")
	if err := m.Verify(context.Background()); err != nil {
		t.Fatalf("Verify c2: %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Verify c1: %v", err)
	}

	snap := m.Snapshot()
	if snap.Token != "c2" || snap.State != StateInvalid {
		t.Errorf("stale c1 result was applied: %+v", snap)
	}
}

func TestStateString(t *testing.T) {
	if StateValid.String() != "valid" || StateInvalid.String() != "invalid" || StateUnknown.String() != "unknown" {
		t.Error("unexpected State strings")
	}
}
