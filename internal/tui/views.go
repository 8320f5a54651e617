package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/voxhire/interview-client/pkg/session"
)

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}
	switch m.viewMode {
	case ViewJoin:
		return m.viewJoin()
	case ViewWaiting:
		return m.viewWaiting()
	case ViewInterview:
		return m.viewInterview()
	case ViewReport:
		return m.viewReport()
	}
	return ""
}

func (m Model) viewJoin() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Voxhire Interview"))
	b.WriteString("\n\n")
	b.WriteString(" Join the interview\n\n ")
	b.WriteString(m.nameInput.View())
	b.WriteString("\n ")
	b.WriteString(m.cvInput.View())
	b.WriteString("\n\n")
	b.WriteString(mutedStyle.Render(" tab: switch field · enter: continue · esc: quit"))
	if m.joinErr != "" {
		b.WriteString("\n\n ")
		b.WriteString(alertStyle.Render(m.joinErr))
	}
	return panelStyle.Width(m.width - 2).Render(b.String())
}

func (m Model) viewWaiting() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Waiting Room"))
	b.WriteString("\n\n")
	switch {
	case m.uploadPending:
		b.WriteString(" Preparing your CV...\n")
	case m.countdown > 0 && !m.countdownDone:
		b.WriteString(fmt.Sprintf(" Joining in %d...\n", m.countdown))
	default:
		b.WriteString(" Connecting...\n")
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(" t: test audio · enter: join now · q: quit"))
	if m.toneStatus != "" {
		b.WriteString("\n\n ")
		b.WriteString(helpDescStyle.Render(m.toneStatus))
	}
	return panelStyle.Width(m.width - 2).Render(b.String())
}

func (m Model) viewInterview() string {
	var sections []string

	header := titleStyle.Render("Voxhire Interview") +
		statusBarStyle.Render(fmt.Sprintf("· %s · %s", m.status, formatElapsed(m.elapsed)))
	sections = append(sections, header)

	for _, a := range m.alerts {
		line := "⚠ " + a.Reason
		if a.FaceCount != nil {
			line += fmt.Sprintf(" (faces: %d)", *a.FaceCount)
		}
		sections = append(sections, alertStyle.Render(line))
	}

	if m.question != "" {
		sections = append(sections, questionStyle.Render(agentStyle.Render("Q: ")+m.question))
	}

	sections = append(sections, panelStyle.Render(m.viewport.View()))

	if len(m.reactions) > 0 {
		var emojis []string
		for _, r := range m.reactions {
			emojis = append(emojis, r.Emoji)
		}
		sections = append(sections, "  "+strings.Join(emojis, " "))
	}

	for _, w := range m.warnings {
		sections = append(sections, warningStyle.Render("! "+w))
	}

	sections = append(sections, m.statusBar())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) statusBar() string {
	mic := "mic on"
	if !m.micOn {
		mic = "mic off"
	}
	cam := "cam on"
	if !m.camOn {
		cam = "cam off"
	}
	parts := []string{mic, cam}
	if m.sharing {
		parts = append(parts, liveStyle.Render("sharing"))
	}
	if m.answering {
		parts = append(parts, liveStyle.Render("listening..."))
	}

	var help []string
	for _, b := range m.keys.ShortHelp() {
		help = append(help,
			helpKeyStyle.Render(b.Help().Key)+" "+helpDescStyle.Render(b.Help().Desc))
	}
	return statusBarStyle.Render(strings.Join(parts, " · ") + "   " + strings.Join(help, "  "))
}

func (m Model) viewReport() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Interview Complete"))
	b.WriteString("\n\n")
	if m.report == nil {
		b.WriteString(" The interview ended before a report was issued.\n")
	} else {
		b.WriteString(fmt.Sprintf(" Recommendation: %s\n", scoreStyle.Render(m.report.Recommendation)))
		b.WriteString(fmt.Sprintf(" Final score:    %s\n", scoreStyle.Render(fmt.Sprintf("%.1f", m.report.FinalScore))))
		if m.report.Narrative != "" {
			b.WriteString("\n")
			b.WriteString(m.report.Narrative)
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(" q: quit"))
	return reportStyle.Width(m.width - 2).Render(b.String())
}

func (m Model) renderChat() string {
	if len(m.entries) == 0 {
		return mutedStyle.Render("Waiting for the first question...")
	}
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch e.Role {
		case session.RoleAgent:
			b.WriteString(agentStyle.Render("Interviewer: "))
		case session.RoleCandidate:
			b.WriteString(candidateStyle.Render("You: "))
		}
		b.WriteString(e.Text)
	}
	return b.String()
}
