// Package output provides styled terminal output helpers (success, error,
// warning, project formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/marcus/mb/internal/models"
)

var (
	// Styles
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	publicStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	privateStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	linkStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Underline(true)
	panelStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("42")).
			Padding(0, 1)
)

// Success prints a success message
func Success(format string, args ...any) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...any) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...any) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...any) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON
func JSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// JSONError outputs an error as JSON
func JSONError(code, message string) {
	data, _ := json.Marshal(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
	fmt.Println(string(data))
}

// Visibility renders the public/private badge.
func Visibility(public bool) string {
	if public {
		return publicStyle.Render("[public]")
	}
	return privateStyle.Render("[private]")
}

// FormatProjectShort formats a project on one line.
func FormatProjectShort(p models.Project) string {
	parts := []string{
		titleStyle.Render(p.Slug),
		p.Name,
		subtleStyle.Render(p.FolderToShare),
		Visibility(p.Public),
	}
	if p.Published() {
		parts = append(parts, linkStyle.Render(p.PublishedURL))
	}
	return strings.Join(parts, "  ")
}

// ProjectTable renders projects as aligned columns fitted to width.
// Long names and folders are truncated rather than wrapped.
func ProjectTable(projects []models.Project, width int) string {
	if len(projects) == 0 {
		return subtleStyle.Render("No projects yet. Create one with `mb project create`.")
	}

	slugW, folderW := len("SLUG"), len("FOLDER")
	for _, p := range projects {
		slugW = max(slugW, ansi.StringWidth(p.Slug))
		folderW = max(folderW, ansi.StringWidth(p.FolderToShare))
	}
	folderW = min(folderW, 30)
	const visW = 9 // "[private]"
	nameW := max(width-slugW-folderW-visW-6, 10)

	var sb strings.Builder
	header := fmt.Sprintf("%-*s  %-*s  %-*s  %s", slugW, "SLUG", nameW, "NAME", folderW, "FOLDER", "VISIBILITY")
	sb.WriteString(subtleStyle.Render(header))
	for _, p := range projects {
		sb.WriteString("\n")
		sb.WriteString(titleStyle.Render(pad(p.Slug, slugW)))
		sb.WriteString("  ")
		sb.WriteString(pad(ansi.Truncate(p.Name, nameW, "…"), nameW))
		sb.WriteString("  ")
		sb.WriteString(subtleStyle.Render(pad(ansi.Truncate(p.FolderToShare, folderW, "…"), folderW)))
		sb.WriteString("  ")
		sb.WriteString(Visibility(p.Public))
	}
	return sb.String()
}

// pad right-pads s to w display cells.
func pad(s string, w int) string {
	if n := ansi.StringWidth(s); n < w {
		return s + strings.Repeat(" ", w-n)
	}
	return s
}

// CreatedPanel is the confirmation shown after a project is created.
func CreatedPanel(p models.Project) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Project successfully created!"))
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("%s  %s\n", p.Name, Visibility(p.Public)))
	sb.WriteString(fmt.Sprintf("Slug:   %s\n", p.Slug))
	sb.WriteString(fmt.Sprintf("Folder: %s\n", p.FolderToShare))
	sb.WriteString("\nYour site is being built and will be live in a few minutes.\n")
	sb.WriteString("Track its progress on " + linkStyle.Render(models.DashboardURL))
	return panelStyle.Render(sb.String())
}

// FormatTimeAgo formats a time as a human-readable "ago" string
func FormatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}

// OutcomeMark returns a coloured check or cross.
func OutcomeMark(ok bool) string {
	if ok {
		return successStyle.Render("✓")
	}
	return errorStyle.Render("✗")
}

// SectionHeader returns a formatted section header for CLI output
// e.g., "\nPROJECTS:\n"
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}
