package apiclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestVerifyToken(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token/verify" {
			t.Errorf("path = %s, want /token/verify", r.URL.Path)
		}
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			w.Write([]byte(`{"valid": true, "subscribed": true}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"code":"unauthorized","message":"bad token"}`))
		}
	})

	c := New(srv.URL, "good")
	v, err := c.VerifyToken(context.Background())
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if !v.Valid || !v.Subscribed {
		t.Errorf("got %+v, want valid and subscribed", v)
	}

	c.SetToken("bad")
	v, err = c.VerifyToken(context.Background())
	if err != nil {
		t.Fatalf("VerifyToken with bad token should not error: %v", err)
	}
	if v.Valid {
		t.Error("bad token reported valid")
	}
}

func TestVerifyTokenAnonymousSkipsRequest(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	v, err := New(srv.URL, "").VerifyToken(context.Background())
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if v.Valid {
		t.Error("empty token reported valid")
	}
	if calls.Load() != 0 {
		t.Errorf("expected no requests, got %d", calls.Load())
	}
}

func TestVerifyTokenServerError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := New(srv.URL, "tok").VerifyToken(context.Background())
	if !errors.Is(err, ErrServer) {
		t.Fatalf("expected ErrServer, got %v", err)
	}
}

func TestListProjects(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/projects/user" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID header")
		}
		w.Write([]byte(`{"projects":[
			{"id": 1, "slug": "tomsblog", "name": "Tom", "folderToShare": "blog", "public": true, "publishedUrl": "https://tomsblog.markbase.xyz"},
			{"id": 2, "slug": "garden", "name": "Garden", "folderToShare": "/"}
		]}`))
	})

	projects, err := New(srv.URL, "tok").ListProjects(context.Background())
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("len(projects) = %d, want 2", len(projects))
	}
	if projects[0].Slug != "tomsblog" || projects[1].Slug != "garden" {
		t.Errorf("server order not preserved: %v", projects)
	}
	if projects[0].ID != "1" || !projects[0].Published() {
		t.Errorf("project[0] = %+v", projects[0])
	}
}

func TestCallsWithoutTokenFailFast(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := New(srv.URL, "").ListProjects(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no requests, got %d", calls.Load())
	}
}

func TestGetProjectBySlug(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/projects/slug/tomsblog":
			w.Write([]byte(`{"project": {"id": "p1", "slug": "tomsblog"}}`))
		case "/projects/slug/nullproj":
			w.Write([]byte(`{"project": null}`))
		default:
			http.NotFound(w, r)
		}
	})
	c := New(srv.URL, "tok")

	p, err := c.GetProjectBySlug(context.Background(), "tomsblog")
	if err != nil {
		t.Fatalf("GetProjectBySlug: %v", err)
	}
	if p.ID != "p1" {
		t.Errorf("ID = %q, want p1", p.ID)
	}

	for _, slug := range []string{"nullproj", "missing"} {
		if _, err := c.GetProjectBySlug(context.Background(), slug); !errors.Is(err, ErrNotFound) {
			t.Errorf("%s: expected ErrNotFound, got %v", slug, err)
		}
	}
}

func TestCreateProjectMultipart(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/projects/user" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		for field, want := range map[string]string{
			"slug": "tomsblog", "name": "Tom's blog", "folderToShare": "blog", "public": "true",
		} {
			if got := r.FormValue(field); got != want {
				t.Errorf("field %s = %q, want %q", field, got, want)
			}
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		data, _ := io.ReadAll(f)
		if string(data) != "zipbytes" {
			t.Errorf("archive = %q, want zipbytes", data)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"project": {"id": 7, "slug": "tomsblog", "name": "Tom's blog"}}`))
	})

	p, err := New(srv.URL, "tok").CreateProject(context.Background(), &CreateRequest{
		Slug: "tomsblog", Name: "Tom's blog", FolderToShare: "blog", Public: true, Archive: []byte("zipbytes"),
	})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if p.ID != "7" {
		t.Errorf("ID = %q, want 7", p.ID)
	}
}

func TestCreateProjectSlugInUse(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"code":"slug_in_use","message":"slug taken"}`))
	})

	_, err := New(srv.URL, "tok").CreateProject(context.Background(), &CreateRequest{Slug: "tomsblog"})
	if !errors.Is(err, ErrSlugInUse) {
		t.Fatalf("expected ErrSlugInUse, got %v", err)
	}
}

func TestSyncProjectRateLimited(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/projects/user/sync" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusTooManyRequests)
	})

	err := New(srv.URL, "tok").SyncProject(context.Background(), "tomsblog", []byte("zip"))
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestSyncProjectGenericError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	})

	err := New(srv.URL, "tok").SyncProject(context.Background(), "tomsblog", []byte("zip"))
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T %v", err, err)
	}
	if apiErr.Status != 500 || apiErr.Message != "boom" {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if errors.Is(err, ErrRateLimited) {
		t.Error("500 must not be reported as rate limited")
	}
}

func TestDeleteProject(t *testing.T) {
	var gotPath, gotMethod string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		w.WriteHeader(http.StatusNoContent)
	})

	if err := New(srv.URL, "tok").DeleteProject(context.Background(), "42"); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/projects/id/42" {
		t.Errorf("got %s %s", gotMethod, gotPath)
	}
}

func TestBodylessRequestsSendNoContentType(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "" {
			t.Errorf("%s %s: Content-Type = %q, want none", r.Method, r.URL.Path, ct)
		}
		if body, _ := io.ReadAll(r.Body); len(body) != 0 {
			t.Errorf("%s %s: unexpected body %q", r.Method, r.URL.Path, body)
		}
		w.Write([]byte(`{"projects":[]}`))
	})

	c := New(srv.URL, "tok")
	if _, err := c.ListProjects(context.Background()); err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if err := c.DeleteProject(context.Background(), "42"); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
}

func TestWithTokenRebinds(t *testing.T) {
	var gotAuth atomic.Value
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.Write([]byte(`{"projects":[]}`))
	})

	orig := New(srv.URL, "first")
	rebound := orig.WithToken("second")
	if _, err := rebound.ListProjects(context.Background()); err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if got := gotAuth.Load(); got != "Bearer second" {
		t.Errorf("Authorization = %v, want Bearer second", got)
	}
	if orig.Token() != "first" {
		t.Errorf("original client token changed to %q", orig.Token())
	}
}
