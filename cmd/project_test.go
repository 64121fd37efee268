package cmd

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marcus/mb/internal/apiclient"
	"github.com/marcus/mb/internal/models"
	"github.com/marcus/mb/internal/syncer"
)

func TestNotFoundMessage(t *testing.T) {
	projects := []models.Project{{Slug: "tomsblog"}, {Slug: "recipes"}}

	msg := notFoundMessage("tomsblgo", projects)
	if !strings.Contains(msg, "Did you mean tomsblog?") {
		t.Errorf("expected suggestion, got %q", msg)
	}
	msg = notFoundMessage("zzzzzzzzzzzz", projects)
	if !strings.Contains(msg, "mb project list") {
		t.Errorf("expected list hint, got %q", msg)
	}
}

func TestProjectNotFoundIsReported(t *testing.T) {
	err := projectNotFound("nope1", nil)
	var r reportedError
	if !errors.As(err, &r) || !errors.Is(err, apiclient.ErrNotFound) {
		t.Errorf("got %v", err)
	}
}

func TestNeedsCreateForm(t *testing.T) {
	full := syncer.CreateInput{Slug: "tomsblog", Name: "Tom", Folder: "blog"}
	if needsCreateForm(full) {
		t.Error("complete flags should skip the form")
	}
	for _, in := range []syncer.CreateInput{
		{Name: "Tom", Folder: "blog"},
		{Slug: "tomsblog", Folder: "blog"},
		{Slug: "tomsblog", Name: "Tom"},
	} {
		if !needsCreateForm(in) {
			t.Errorf("%+v should need the form", in)
		}
	}
}

func TestCreateRejectsBadSlugBeforeAnyRequest(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("MB_WORKSPACE", t.TempDir())
	t.Setenv("MB_API_URL", srv.URL)
	t.Setenv("MB_TOKEN", "revoked-token")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rootCmd.SetArgs([]string{"project", "create", "--slug", "ab", "--name", "Tom", "--folder", "blog"})
	err := rootCmd.ExecuteContext(ctx)

	if !errors.Is(err, models.ErrInvalidSlug) {
		t.Fatalf("expected a slug validation error, got %v", err)
	}
	if n := requests.Load(); n != 0 {
		t.Errorf("server saw %d requests, want 0", n)
	}
}
