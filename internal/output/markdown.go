package output

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"github.com/marcus/mb/internal/models"
)

const (
	defaultMarkdownWidth = 80
	minMarkdownWidth     = 20
)

// TerminalWidth returns the current terminal width or a fallback when unavailable.
func TerminalWidth(fallback int) int {
	if fallback <= 0 {
		fallback = defaultMarkdownWidth
	}
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if parsed, err := strconv.Atoi(cols); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

// ProjectMarkdown describes a project as a markdown document for
// `mb project show`.
func ProjectMarkdown(p models.Project) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", p.Name)

	visibility := "private"
	if p.Public {
		visibility = "public"
	}
	sb.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Slug | `%s` |\n", p.Slug)
	fmt.Fprintf(&sb, "| ID | `%s` |\n", p.ID)
	fmt.Fprintf(&sb, "| Folder | `%s` |\n", p.FolderToShare)
	fmt.Fprintf(&sb, "| Visibility | %s |\n", visibility)
	if !p.Metadata.CreatedAt.IsZero() {
		fmt.Fprintf(&sb, "| Created | %s |\n", p.Metadata.CreatedAt.Format("2006-01-02 15:04"))
	}
	if !p.Metadata.UpdatedAt.IsZero() {
		fmt.Fprintf(&sb, "| Updated | %s |\n", p.Metadata.UpdatedAt.Format("2006-01-02 15:04"))
	}

	sb.WriteString("\n## Links\n\n")
	if p.Published() {
		fmt.Fprintf(&sb, "- Site: %s\n", p.PublishedURL)
	} else {
		sb.WriteString("- Site: not published yet\n")
	}
	if p.RepositoryURL != "" {
		fmt.Fprintf(&sb, "- Repository: %s\n", p.RepositoryURL)
	}
	fmt.Fprintf(&sb, "- Dashboard: %s\n", models.DashboardURL)
	return sb.String()
}

// RenderMarkdown renders markdown using Glamour with terminal-aware wrapping.
func RenderMarkdown(text string) (string, error) {
	return RenderMarkdownWithWidth(text, TerminalWidth(defaultMarkdownWidth))
}

// RenderMarkdownWithWidth renders markdown using Glamour with explicit wrapping.
func RenderMarkdownWithWidth(text string, width int) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	width = max(width, minMarkdownWidth)

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	rendered, err := renderer.Render(text)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(rendered, "\n"), nil
}
