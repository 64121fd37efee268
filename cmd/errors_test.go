package cmd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/marcus/mb/internal/apiclient"
	"github.com/marcus/mb/internal/session"
)

func TestReportWrapsOriginal(t *testing.T) {
	if report(nil, "") != nil {
		t.Fatal("report(nil) should be nil")
	}

	cause := fmt.Errorf("sync alpha: %w", apiclient.ErrRateLimited)
	err := report(cause, "alpha")

	var r reportedError
	if !errors.As(err, &r) {
		t.Fatalf("expected reportedError, got %T", err)
	}
	if !errors.Is(err, apiclient.ErrRateLimited) {
		t.Error("reported error should still match its cause")
	}
	if err.Error() != cause.Error() {
		t.Errorf("Error() = %q, want %q", err.Error(), cause.Error())
	}
}

func TestReportAuth(t *testing.T) {
	err := report(session.ErrInvalidSession, "")
	if !errors.Is(err, session.ErrInvalidSession) {
		t.Errorf("got %v", err)
	}
}
