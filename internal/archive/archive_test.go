package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

func writeTree(t *testing.T, fsys afero.Fs, files map[string]string) {
	t.Helper()
	for name, content := range files {
		if err := fsys.MkdirAll(filepath.Dir(name), 0755); err != nil {
			t.Fatalf("mkdir %s: %v", name, err)
		}
		if err := afero.WriteFile(fsys, name, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeTree(t, fsys, map[string]string{
		"/vault/blog/index.md":            "# Home\n",
		"/vault/blog/posts/first.md":      "first post",
		"/vault/blog/posts/img/cover.png": "\x89PNG\x00\x01binary",
		"/vault/private/secret.md":        "not shared",
	})
	if err := fsys.MkdirAll("/vault/blog/empty", 0755); err != nil {
		t.Fatalf("mkdir empty: %v", err)
	}

	data, err := New(fsys).Archive(context.Background(), "/vault/blog")
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}

	got, err := ReadAll(data)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	wantFiles := map[string]string{
		"index.md":            "# Home\n",
		"posts/first.md":      "first post",
		"posts/img/cover.png": "\x89PNG\x00\x01binary",
	}
	for name, content := range wantFiles {
		b, ok := got[name]
		if !ok {
			t.Errorf("missing %s in archive", name)
			continue
		}
		if string(b) != content {
			t.Errorf("%s: got %q, want %q", name, b, content)
		}
	}
	for _, dir := range []string{"posts", "posts/img", "empty"} {
		if b, ok := got[dir]; !ok || b != nil {
			t.Errorf("expected directory entry %s", dir)
		}
	}
	if _, ok := got["secret.md"]; ok {
		t.Error("archive should not include files outside the root")
	}
	if len(got) != len(wantFiles)+3 {
		t.Errorf("archive has %d entries, want %d", len(got), len(wantFiles)+3)
	}
}

func TestArchiveOSRoot(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "notes"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes", "a.md"), []byte("a"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "top.md"), []byte("top"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := NewOS(dir).Archive(context.Background(), "/")
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	got, err := ReadAll(data)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got["top.md"]) != "top" || string(got["notes/a.md"]) != "a" {
		t.Errorf("unexpected archive contents: %v", got)
	}
}

func TestArchiveMissingRoot(t *testing.T) {
	data, err := New(afero.NewMemMapFs()).Archive(context.Background(), "/nope")
	if err == nil {
		t.Fatal("expected error for missing root")
	}
	if data != nil {
		t.Error("failed archive must not return a buffer")
	}
	if !errors.Is(err, ErrArchive) {
		t.Errorf("error should wrap ErrArchive: %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error should wrap the cause: %v", err)
	}
	var ae *Error
	if !errors.As(err, &ae) || ae.Op != "stat" {
		t.Errorf("expected *Error with Op stat, got %#v", err)
	}
}

func TestArchiveRootIsFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeTree(t, fsys, map[string]string{"/vault/file.md": "x"})

	if _, err := New(fsys).Archive(context.Background(), "/vault/file.md"); !errors.Is(err, ErrArchive) {
		t.Fatalf("expected ErrArchive for a file root, got %v", err)
	}
}

func TestArchiveCancelled(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeTree(t, fsys, map[string]string{"/vault/a.md": "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(fsys).Archive(ctx, "/vault")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
