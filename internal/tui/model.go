// Package tui реализует интерактивный терминальный интерфейс клиента:
// экран загрузки, форма входа и чат с Rebot.
//
// Модель построена поверх bubbletea: состояние описывается структурой Model,
// все внешние эффекты (инициализация сессии, вход, цитата дня, события
// чат-канала) приходят сообщениями tea.Msg из команд.
package tui

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rewire-app/rewire-client/internal/chat"
	"github.com/rewire-app/rewire-client/internal/client"
	"github.com/rewire-app/rewire-client/internal/config"
	"github.com/rewire-app/rewire-client/internal/models"
	"github.com/rewire-app/rewire-client/internal/session"
)

// mode — текущий экран интерфейса.
type mode int

const (
	modeLoading mode = iota
	modeLogin
	modeChat
)

// Model — корневая модель интерфейса.
type Model struct {
	cfg     *config.Config
	session *session.Manager
	api     *client.Client
	channel *chat.Channel
	log     *slog.Logger

	mode mode

	// Форма входа.
	emailInput    textinput.Model
	passwordInput textinput.Model
	focusPassword bool
	loginErr      string
	loggingIn     bool

	// Чат.
	chatInput textinput.Model
	viewport  viewport.Model
	messages  []models.ChatMessage
	connState chat.ConnectionState
	chatNote  string

	spinner spinner.Model
	quote   *models.Quote

	width  int
	height int
	ready  bool
}

// Сообщения tea-цикла.
type (
	initDoneMsg struct{ state session.State }

	loginDoneMsg struct {
		state session.State
		err   error
	}

	quoteMsg struct{ quote *models.Quote }

	chatEventMsg struct{ event chat.Event }
	chatClosedMsg struct{}
)

// New собирает модель поверх уже инициализированных зависимостей.
func New(cfg *config.Config, sess *session.Manager, api *client.Client, log *slog.Logger) Model {
	email := textinput.New()
	email.Placeholder = "email"
	email.CharLimit = 254
	email.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.CharLimit = 128

	input := textinput.New()
	input.Placeholder = "Message Rebot..."
	input.CharLimit = 2000

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		cfg:           cfg,
		session:       sess,
		api:           api,
		log:           log,
		mode:          modeLoading,
		emailInput:    email,
		passwordInput: password,
		chatInput:     input,
		spinner:       sp,
		connState:     chat.Disconnected,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		textinput.Blink,
		m.initSession(),
		m.fetchQuote(),
	)
}

// initSession восстанавливает сессию из локального хранилища.
func (m Model) initSession() tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		sess.Initialize(context.Background())
		return initDoneMsg{state: sess.State()}
	}
}

func (m Model) fetchQuote() tea.Cmd {
	api := m.api
	log := m.log
	return func() tea.Msg {
		quote, err := api.RandomQuote(context.Background())
		if err != nil {
			log.Warn("quote_fetch_failed", slog.String("err", err.Error()))
			return nil
		}
		return quoteMsg{quote: quote}
	}
}

func (m Model) submitLogin() tea.Cmd {
	sess := m.session
	email := strings.TrimSpace(m.emailInput.Value())
	password := m.passwordInput.Value()

	return func() tea.Msg {
		err := sess.Login(context.Background(), email, password)
		return loginDoneMsg{state: sess.State(), err: err}
	}
}

// openChannel запускает чат-канал и подписку на его события.
func (m *Model) openChannel() tea.Cmd {
	room := m.cfg.Chat.DefaultRoom
	if st := m.session.State(); st.User != nil && st.User.UserName != "" {
		room = st.User.UserName
	}

	m.channel = chat.New(m.cfg.Chat, m.cfg.Reconnect, room)
	if err := m.channel.Connect(context.Background()); err != nil {
		m.log.Error("chat_connect_failed", slog.String("err", err.Error()))
		m.chatNote = "chat unavailable: " + err.Error()
		m.channel = nil
		return nil
	}

	m.connState = chat.Connecting
	return waitForEvent(m.channel)
}

// waitForEvent отдаёт следующее событие канала как tea.Msg.
func waitForEvent(ch *chat.Channel) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch.Events()
		if !ok {
			return chatClosedMsg{}
		}
		return chatEventMsg{event: ev}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()
		m.ready = true
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case initDoneMsg:
		if msg.state.LoggedIn {
			m.mode = modeChat
			m.chatInput.Focus()
			return m, m.openChannel()
		}
		m.mode = modeLogin
		return m, nil

	case loginDoneMsg:
		m.loggingIn = false
		if msg.err != nil {
			m.loginErr = loginErrorText(msg.err)
			m.passwordInput.SetValue("")
			return m, nil
		}
		m.loginErr = ""
		m.mode = modeChat
		m.chatInput.Focus()
		return m, m.openChannel()

	case quoteMsg:
		m.quote = msg.quote
		return m, nil

	case chatEventMsg:
		m.applyChatEvent(msg.event)
		return m, waitForEvent(m.channel)

	case chatClosedMsg:
		m.connState = chat.Disconnected
		return m, nil
	}

	return m, m.updateInputs(msg)
}

func (m *Model) applyChatEvent(ev chat.Event) {
	switch ev.Kind {
	case chat.EventMessage:
		m.messages = m.channel.Messages()
		m.chatNote = ""
	case chat.EventState:
		m.connState = ev.State
	case chat.EventError, chat.EventSystem:
		m.chatNote = ev.Text
	}
	m.refreshViewport()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		if m.channel != nil {
			m.channel.Close()
		}
		return m, tea.Quit
	}

	switch m.mode {
	case modeLogin:
		return m.handleLoginKey(msg)
	case modeChat:
		return m.handleChatKey(msg)
	}

	return m, nil
}

func (m Model) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyTab, tea.KeyShiftTab:
		m.focusPassword = !m.focusPassword
		if m.focusPassword {
			m.emailInput.Blur()
			m.passwordInput.Focus()
		} else {
			m.passwordInput.Blur()
			m.emailInput.Focus()
		}
		return m, nil

	case tea.KeyEnter:
		if m.loggingIn {
			return m, nil
		}
		if !m.focusPassword {
			m.focusPassword = true
			m.emailInput.Blur()
			m.passwordInput.Focus()
			return m, nil
		}
		m.loggingIn = true
		m.loginErr = ""
		return m, tea.Batch(m.spinner.Tick, m.submitLogin())
	}

	return m, m.updateInputs(msg)
}

func (m Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEnter {
		text := m.chatInput.Value()
		m.chatInput.SetValue("")

		if m.channel == nil {
			return m, nil
		}

		if err := m.channel.Send(context.Background(), text); err != nil {
			switch {
			case errors.Is(err, chat.ErrEmptyMessage):
				// Пустой ввод молча игнорируем.
			case errors.Is(err, chat.ErrNotConnected):
				m.chatNote = "not connected, reconnecting..."
			default:
				m.chatNote = err.Error()
			}
			return m, nil
		}

		m.messages = m.channel.Messages()
		m.refreshViewport()
		return m, nil
	}

	var cmd tea.Cmd
	m.chatInput, cmd = m.chatInput.Update(msg)
	return m, cmd
}

func (m *Model) updateInputs(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.emailInput, cmd = m.emailInput.Update(msg)
	cmds = append(cmds, cmd)
	m.passwordInput, cmd = m.passwordInput.Update(msg)
	cmds = append(cmds, cmd)
	m.chatInput, cmd = m.chatInput.Update(msg)
	cmds = append(cmds, cmd)

	return tea.Batch(cmds...)
}

func loginErrorText(err error) string {
	switch {
	case errors.Is(err, session.ErrValidation):
		return "email and password are required"
	case errors.Is(err, client.ErrInvalidCredentials):
		return "invalid email or password"
	default:
		return "login failed, try again later"
	}
}
