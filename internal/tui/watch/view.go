package watch

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/marcus/mb/internal/session"
	"github.com/marcus/mb/internal/syncer"
)

// MinWidth is the minimum terminal width for the full layout
const MinWidth = 40

// MinHeight is the minimum terminal height for the full layout
const MinHeight = 12

func (m Model) renderView() string {
	if m.Width == 0 || m.Height == 0 {
		return "Loading..."
	}
	if m.Width < MinWidth || m.Height < MinHeight {
		return m.renderCompact()
	}

	header := m.renderHeader()
	footer := m.help.View(m.keys)

	available := m.Height - lipgloss.Height(header) - lipgloss.Height(footer) - 4
	projectsH := max(available/2, 3)
	activityH := max(available-projectsH, 3)

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.renderPanel("Projects", m.projectLines(), projectsH),
		m.renderPanel("Activity", m.activityLines(activityH), activityH),
		footer,
	)
}

func (m Model) renderCompact() string {
	var s strings.Builder
	s.WriteString("mb watch (resize for full view)\n\n")
	fmt.Fprintf(&s, "Projects: %d\n", len(m.Projects))
	fmt.Fprintf(&s, "Session: %s | Auto-sync: %s\n", m.Session.State, onOff(m.AutoSync))
	if m.Syncing {
		s.WriteString("Syncing...\n")
	}
	s.WriteString("\ns:sync a:auto q:quit")
	return s.String()
}

func (m Model) renderHeader() string {
	parts := []string{titleStyle.Render("Markbase")}

	switch m.Session.State {
	case session.StateValid:
		plan := "free"
		if m.Session.Subscribed {
			plan = "premium"
		}
		parts = append(parts, okStyle.Render("● token valid")+subtleStyle.Render(" ("+plan+")"))
	case session.StateInvalid:
		parts = append(parts, errStyle.Render("● token invalid"))
	default:
		parts = append(parts, warnStyle.Render("● verifying token"))
	}

	parts = append(parts, "auto-sync: "+onOff(m.AutoSync))
	if m.AutoSync {
		parts[len(parts)-1] += subtleStyle.Render(" every " + m.interval.String())
	}

	if m.Syncing {
		parts = append(parts, m.spinner.View()+" syncing")
	} else if !m.LastSync.IsZero() {
		parts = append(parts, subtleStyle.Render("last sync "+m.LastSync.Format("15:04:05")))
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderPanel(title string, lines []string, height int) string {
	width := m.Width - 4
	if len(lines) > height {
		lines = lines[len(lines)-height:]
	}
	for i, l := range lines {
		lines[i] = ansi.Truncate(l, width, "…")
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	body := panelTitleStyle.Render(title) + "\n" + strings.Join(lines, "\n")
	return panelStyle.Width(m.Width - 2).Render(body)
}

func (m Model) projectLines() []string {
	if len(m.Projects) == 0 {
		return []string{subtleStyle.Render("No projects. Create one with `mb project create`.")}
	}
	lines := make([]string, 0, len(m.Projects))
	for i, p := range m.Projects {
		cursor := "  "
		slug := p.Slug
		if i == m.Cursor {
			cursor = selectedStyle.Render("> ")
			slug = selectedStyle.Render(slug)
		}
		vis := "private"
		if p.Public {
			vis = "public"
		}
		lines = append(lines, fmt.Sprintf("%s%s  %s  %s", cursor, slug, subtleStyle.Render(p.FolderToShare), subtleStyle.Render("["+vis+"]")))
	}
	return lines
}

func (m Model) activityLines(height int) []string {
	if len(m.Activity) == 0 {
		return []string{subtleStyle.Render("Nothing yet. Press s to sync all projects.")}
	}
	start := max(0, len(m.Activity)-height)
	lines := make([]string, 0, len(m.Activity)-start)
	for _, a := range m.Activity[start:] {
		lines = append(lines, timestampStyle.Render(a.At.Format("15:04:05"))+" "+levelStyle(a.Level).Render(a.Text))
	}
	return lines
}

func levelStyle(l syncer.Level) lipgloss.Style {
	switch l {
	case syncer.LevelError:
		return errStyle
	case syncer.LevelWarn:
		return warnStyle
	default:
		return lipgloss.NewStyle()
	}
}

func onOff(b bool) string {
	if b {
		return okStyle.Render("on")
	}
	return subtleStyle.Render("off")
}
