package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	voiceclient "github.com/hvoss-dev/calvoice-core/core"
	"github.com/hvoss-dev/calvoice-core/core/calendar"
)

// Messages pushed into the program from client callbacks.
type (
	messageAppendedMsg   voiceclient.ChatMessage
	sessionStateMsg      voiceclient.SessionState
	noticeMsg            string
	confirmationMsg      string
	eventsRefreshedMsg   []calendar.Event
	interimTranscriptMsg string
	sessionStartedMsg    struct{ err error }
)

type keyMap struct {
	ToggleVoice key.Binding
	Submit      key.Binding
	Quit        key.Binding
}

var keys = keyMap{
	ToggleVoice: key.NewBinding(
		key.WithKeys("ctrl+t"),
		key.WithHelp("ctrl+t", "talk"),
	),
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "send"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "esc"),
		key.WithHelp("ctrl+c", "quit"),
	),
}

type appModel struct {
	client *voiceclient.Client
	engine *calendar.Engine

	viewport viewport.Model
	input    textinput.Model

	messages     []voiceclient.ChatMessage
	interim      string
	sessionState voiceclient.SessionState
	notice       string
	events       []calendar.Event

	agentModel   string
	voiceEnabled bool

	width  int
	height int
	ready  bool
}

func newAppModel(client *voiceclient.Client, engine *calendar.Engine, agentModel string, voiceEnabled bool) appModel {
	input := textinput.New()
	input.Placeholder = "Ask about your calendar..."
	input.Focus()

	return appModel{
		client:       client,
		engine:       engine,
		input:        input,
		agentModel:   agentModel,
		voiceEnabled: voiceEnabled,
		sessionState: client.SessionState(),
	}
}

func (m appModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		conversationHeight := m.height - 10
		if conversationHeight < 3 {
			conversationHeight = 3
		}
		if !m.ready {
			m.viewport = viewport.New(m.width-4, conversationHeight)
			m.ready = true
		} else {
			m.viewport.Width = m.width - 4
			m.viewport.Height = conversationHeight
		}
		m.input.Width = m.width - 8
		m.viewport.SetContent(m.renderConversation())
		m.viewport.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		m.notice = ""
		switch {
		case key.Matches(msg, keys.Quit):
			m.client.Close()
			return m, tea.Quit

		case key.Matches(msg, keys.ToggleVoice):
			if !m.voiceEnabled {
				m.notice = "No speech backend is configured."
				return m, nil
			}
			if m.sessionState == voiceclient.SessionListening {
				m.client.StopSession()
				return m, nil
			}
			return m, func() tea.Msg {
				return sessionStartedMsg{err: m.client.StartSession()}
			}

		case key.Matches(msg, keys.Submit):
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.input.Reset()
			m.client.SendPrompt(text)
			return m, nil
		}

	case sessionStartedMsg:
		if msg.err != nil {
			m.notice = fmt.Sprintf("Could not start listening: %v", msg.err)
		}
		return m, nil

	case messageAppendedMsg:
		m.messages = append(m.messages, voiceclient.ChatMessage(msg))
		m.interim = ""
		if m.ready {
			m.viewport.SetContent(m.renderConversation())
			m.viewport.GotoBottom()
		}
		return m, nil

	case interimTranscriptMsg:
		m.interim = string(msg)
		if m.ready {
			m.viewport.SetContent(m.renderConversation())
			m.viewport.GotoBottom()
		}
		return m, nil

	case sessionStateMsg:
		m.sessionState = voiceclient.SessionState(msg)
		if m.sessionState != voiceclient.SessionListening {
			m.interim = ""
		}
		return m, nil

	case noticeMsg:
		m.notice = string(msg)
		return m, nil

	case confirmationMsg:
		m.client.Log().Append(voiceclient.SenderAgent, string(msg))
		return m, nil

	case eventsRefreshedMsg:
		m.events = msg
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m appModel) View() string {
	if !m.ready {
		return "Starting..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(conversationBoxStyle.Width(m.width - 2).Render(m.viewport.View()))
	b.WriteString("\n")
	b.WriteString(m.renderEvents())
	b.WriteString("\n")
	if m.notice != "" {
		b.WriteString(noticeStyle.Render(wordwrap.String(m.notice, m.width-2)))
		b.WriteString("\n")
	}
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter send • ctrl+t talk • ctrl+c quit"))
	return b.String()
}

func (m appModel) renderHeader() string {
	title := titleStyle.Render("calvoice")
	model := helpStyle.Render("agent: " + m.agentModel)
	state := sessionStateStyle(string(m.sessionState)).Render(string(m.sessionState))
	return lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", model, "  ", state)
}

func (m appModel) renderConversation() string {
	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}

	var b strings.Builder
	for _, message := range m.messages {
		var line string
		switch message.Sender {
		case voiceclient.SenderUser:
			line = userMessageStyle.Render("you: ") + message.Text
		case voiceclient.SenderAgent:
			line = agentMessageStyle.Render(message.Text)
		case voiceclient.SenderError:
			line = errorMessageStyle.Render(message.Text)
		}
		b.WriteString(wordwrap.String(line, width))
		b.WriteString("\n")
	}
	if m.interim != "" {
		b.WriteString(interimStyle.Render(wordwrap.String(m.interim+"…", width)))
		b.WriteString("\n")
	}
	return b.String()
}

const maxVisibleEvents = 4

func (m appModel) renderEvents() string {
	if len(m.events) == 0 {
		return eventsBoxStyle.Width(m.width - 2).Render(helpStyle.Render("No upcoming events."))
	}

	var b strings.Builder
	for i, event := range m.events {
		if i == maxVisibleEvents {
			b.WriteString(helpStyle.Render(fmt.Sprintf("… and %d more", len(m.events)-maxVisibleEvents)))
			break
		}
		marker := syncStatusStyle(string(event.SyncStatus)).Render("●")
		when := eventTimeStyle.Render(event.StartTime.Local().Format("Mon Jan 2 15:04"))
		b.WriteString(fmt.Sprintf("%s %s  %s\n", marker, when, eventTitleStyle.Render(event.Title)))
	}
	return eventsBoxStyle.Width(m.width - 2).Render(strings.TrimRight(b.String(), "\n"))
}
