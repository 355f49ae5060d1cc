package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/rewire-app/rewire-client/internal/chat"
	"github.com/rewire-app/rewire-client/internal/models"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	noteStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	quoteStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("245"))
	selfStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	remoteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("120")).Bold(true)

	statusStyles = map[chat.ConnectionState]lipgloss.Style{
		chat.Connected:    lipgloss.NewStyle().Foreground(lipgloss.Color("40")),
		chat.Connecting:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		chat.Disconnected: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

func (m Model) View() string {
	if !m.ready {
		return "\n  " + m.spinner.View() + " starting..."
	}

	switch m.mode {
	case modeLoading:
		return m.viewLoading()
	case modeLogin:
		return m.viewLogin()
	case modeChat:
		return m.viewChat()
	}

	return ""
}

func (m Model) viewLoading() string {
	var b strings.Builder
	b.WriteString("\n  " + titleStyle.Render("rewire") + "\n\n")
	b.WriteString("  " + m.spinner.View() + " restoring session...\n")
	b.WriteString(m.viewQuote())
	return b.String()
}

func (m Model) viewLogin() string {
	var b strings.Builder
	b.WriteString("\n  " + titleStyle.Render("rewire") + "  " + labelStyle.Render("sign in") + "\n\n")
	b.WriteString("  " + m.emailInput.View() + "\n")
	b.WriteString("  " + m.passwordInput.View() + "\n\n")

	if m.loggingIn {
		b.WriteString("  " + m.spinner.View() + " signing in...\n")
	} else if m.loginErr != "" {
		b.WriteString("  " + errorStyle.Render(m.loginErr) + "\n")
	} else {
		b.WriteString("  " + labelStyle.Render("tab to switch fields, enter to submit") + "\n")
	}

	b.WriteString(m.viewQuote())
	return b.String()
}

func (m Model) viewChat() string {
	status := statusStyles[m.connState].Render(m.connState.String())

	header := titleStyle.Render("Rebot") + "  " + status
	if st := m.session.State(); st.User != nil && st.User.FirstName != "" {
		header += "  " + labelStyle.Render(st.User.FirstName)
	}

	var footer string
	switch {
	case m.chatNote != "":
		footer = noteStyle.Render(m.chatNote)
	case m.connState != chat.Connected:
		footer = m.spinner.View() + " " + labelStyle.Render("reconnecting...")
	default:
		footer = labelStyle.Render("enter to send, esc to quit")
	}

	return fmt.Sprintf("%s\n%s\n%s\n%s", header, m.viewport.View(), m.chatInput.View(), footer)
}

func (m Model) viewQuote() string {
	if m.quote == nil {
		return ""
	}
	line := fmt.Sprintf("%q", m.quote.Text)
	if m.quote.Author != "" {
		line += " - " + m.quote.Author
	}
	return "\n  " + quoteStyle.Render(line) + "\n"
}

func (m *Model) resizeViewport() {
	// Три служебные строки: заголовок, поле ввода и подвал.
	height := m.height - 3
	if height < 1 {
		height = 1
	}

	if m.viewport.Width == 0 {
		m.viewport = viewport.New(m.width, height)
	} else {
		m.viewport.Width = m.width
		m.viewport.Height = height
	}

	m.chatInput.Width = m.width - 4
	m.refreshViewport()
}

func (m *Model) refreshViewport() {
	if m.viewport.Width == 0 {
		return
	}

	var b strings.Builder
	for _, msg := range m.messages {
		b.WriteString(renderMessage(msg))
		b.WriteString("\n")
	}

	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func renderMessage(msg models.ChatMessage) string {
	if msg.Sender == models.SenderSelf {
		return selfStyle.Render("you") + "  " + msg.Text
	}
	return remoteStyle.Render("rebot") + "  " + msg.Text
}
