package output

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/marcus/mb/internal/models"
)

// TestFormatTimeAgo covers each bucket of the relative formatter
func TestFormatTimeAgo(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{0, "just now"},
		{59 * time.Second, "just now"},
		{1 * time.Minute, "1m ago"},
		{59 * time.Minute, "59m ago"},
		{1 * time.Hour, "1h ago"},
		{23 * time.Hour, "23h ago"},
		{24 * time.Hour, "1d ago"},
		{6 * 24 * time.Hour, "6d ago"},
	}
	for _, tc := range tests {
		if got := FormatTimeAgo(time.Now().Add(-tc.ago)); got != tc.want {
			t.Errorf("FormatTimeAgo(-%v) = %q, want %q", tc.ago, got, tc.want)
		}
	}

	old := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if got := FormatTimeAgo(old); got != "2024-01-02" {
		t.Errorf("FormatTimeAgo(old) = %q", got)
	}
}

func TestFormatProjectShort(t *testing.T) {
	p := models.Project{Slug: "tomsblog", Name: "Tom's Blog", FolderToShare: "blog", Public: true, PublishedURL: "https://tomsblog.markbase.xyz"}
	got := ansi.Strip(FormatProjectShort(p))
	for _, want := range []string{"tomsblog", "Tom's Blog", "blog", "[public]", "https://tomsblog.markbase.xyz"} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatProjectShort missing %q: %q", want, got)
		}
	}

	p.Public, p.PublishedURL = false, ""
	got = ansi.Strip(FormatProjectShort(p))
	if !strings.Contains(got, "[private]") || strings.Contains(got, "https://") {
		t.Errorf("private unpublished project: %q", got)
	}
}

func TestProjectTableTruncates(t *testing.T) {
	projects := []models.Project{
		{Slug: "alpha", Name: strings.Repeat("very long name ", 10), FolderToShare: "notes/alpha"},
		{Slug: "bravo-site", Name: "Bravo", FolderToShare: "b", Public: true},
	}
	got := ansi.Strip(ProjectTable(projects, 60))
	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("want header + 2 rows, got %d lines:\n%s", len(lines), got)
	}
	if !strings.HasPrefix(lines[0], "SLUG") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "…") {
		t.Errorf("long name should be truncated: %q", lines[1])
	}
	for _, l := range lines[1:] {
		if w := ansi.StringWidth(l); w > 60 {
			t.Errorf("row wider than terminal (%d): %q", w, l)
		}
	}
}

func TestProjectTableEmpty(t *testing.T) {
	if got := ansi.Strip(ProjectTable(nil, 80)); !strings.Contains(got, "No projects yet") {
		t.Errorf("empty table = %q", got)
	}
}

func TestCreatedPanel(t *testing.T) {
	got := ansi.Strip(CreatedPanel(models.Project{Slug: "tomsblog", Name: "Tom's Blog", FolderToShare: "blog"}))
	for _, want := range []string{"Project successfully created!", "tomsblog", "blog", models.DashboardURL} {
		if !strings.Contains(got, want) {
			t.Errorf("panel missing %q:\n%s", want, got)
		}
	}
}

func TestProjectMarkdown(t *testing.T) {
	p := models.Project{ID: "7", Slug: "tomsblog", Name: "Tom's Blog", FolderToShare: "blog", RepositoryURL: "https://github.com/markbase/tomsblog"}
	md := ProjectMarkdown(p)
	for _, want := range []string{"# Tom's Blog", "`tomsblog`", "`7`", "private", "not published yet", "Repository: https://github.com/markbase/tomsblog"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestRenderMarkdownWithWidth(t *testing.T) {
	if got, err := RenderMarkdownWithWidth("   ", 80); err != nil || got != "" {
		t.Errorf("blank input: %q, %v", got, err)
	}
	got, err := RenderMarkdownWithWidth("# Title\n\nbody text", 5)
	if err != nil {
		t.Fatalf("RenderMarkdownWithWidth: %v", err)
	}
	if !strings.Contains(ansi.Strip(got), "body") {
		t.Errorf("rendered output missing body: %q", got)
	}
}

func TestTerminalWidthFallsBackToColumns(t *testing.T) {
	t.Setenv("COLUMNS", "132")
	// Under go test stdout is not a terminal, so COLUMNS decides.
	if got := TerminalWidth(80); got != 132 && got <= 0 {
		t.Errorf("TerminalWidth = %d", got)
	}
	t.Setenv("COLUMNS", "")
	if got := TerminalWidth(0); got <= 0 {
		t.Errorf("TerminalWidth fallback = %d", got)
	}
}
