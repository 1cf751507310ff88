package main

import (
	"encoding/json"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gosuda/discord-bridge/bridge-chat/chat"
)

var (
	colorConnected    = lipgloss.Color("#43b581")
	colorDisconnected = lipgloss.Color("#f04747")
	colorWeb          = lipgloss.Color("#7289da")
	colorDiscord      = lipgloss.Color("#5865f2")
	colorMuted        = lipgloss.Color("#8e9297")

	titleStyle     = lipgloss.NewStyle().Bold(true)
	usernameStyle  = lipgloss.NewStyle().Bold(true)
	timestampStyle = lipgloss.NewStyle().Foreground(colorMuted)
	systemStyle    = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)
	helpStyle      = lipgloss.NewStyle().Foreground(colorMuted)
)

var (
	webBlockStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.ThickBorder()).
			BorderLeft(true).
			BorderForeground(colorWeb).
			PaddingLeft(1)
	discordBlockStyle = webBlockStyle.BorderForeground(colorDiscord)
)

const (
	headerHeight = 2
	inputHeight  = 2
)

type viewItem struct {
	notice string
	block  *chat.Block
}

// screen is the terminal rendition of the chat page: a status header, the
// scrolling message panel and whichever input the current mode allows.
type screen struct {
	title     string
	status    chat.Status
	username  string
	mode      chat.Mode
	items     []viewItem
	width     int
	panel     viewport.Model
	nameInput textinput.Model
	msgInput  textinput.Model
}

func newScreen(title string) *screen {
	name := textinput.New()
	name.Placeholder = "Enter your username"
	name.Prompt = "> "
	name.CharLimit = 64
	name.Focus()

	msg := textinput.New()
	msg.Placeholder = "Type a message..."
	msg.Prompt = "> "
	msg.CharLimit = 2000

	return &screen{
		title:     title,
		width:     80,
		panel:     viewport.New(80, 20),
		nameInput: name,
		msgInput:  msg,
	}
}

func (s *screen) RenderMessage(b chat.Block) {
	s.items = append(s.items, viewItem{block: &b})
	s.refresh()
}

func (s *screen) RenderNotice(text string) {
	s.items = append(s.items, viewItem{notice: text})
	s.refresh()
}

func (s *screen) SetStatus(st chat.Status) { s.status = st }

func (s *screen) SetUsername(name string) { s.username = name }

func (s *screen) SetMode(m chat.Mode) {
	s.mode = m
	if m == chat.Composing {
		s.nameInput.Blur()
		return
	}
	s.msgInput.Blur()
	s.nameInput.Focus()
}

func (s *screen) ClearMessageInput() { s.msgInput.Reset() }

func (s *screen) FocusMessageInput() {
	s.nameInput.Blur()
	s.msgInput.Focus()
}

func (s *screen) ScrollToBottom() { s.panel.GotoBottom() }

func (s *screen) resize(w, h int) {
	s.width = w
	s.panel.Width = w
	s.panel.Height = max(h-headerHeight-inputHeight, 1)
	s.nameInput.Width = max(w-4, 1)
	s.msgInput.Width = max(w-4, 1)
	s.refresh()
	s.panel.GotoBottom()
}

func (s *screen) refresh() {
	rendered := make([]string, 0, len(s.items))
	for _, it := range s.items {
		rendered = append(rendered, s.renderItem(it))
	}
	s.panel.SetContent(strings.Join(rendered, "\n"))
}

func (s *screen) renderItem(it viewItem) string {
	if it.block == nil {
		return systemStyle.Width(max(s.width-1, 1)).Render(it.notice)
	}
	b := it.block
	var header strings.Builder
	if host := avatarHost(b.AvatarURL); host != "" {
		header.WriteString(timestampStyle.Render("[avatar " + host + "]"))
		header.WriteString(" ")
	}
	header.WriteString(usernameStyle.Render(b.Username))
	header.WriteString(" ")
	header.WriteString(timestampStyle.Render(b.Time))

	style := webBlockStyle
	if b.Origin == chat.RemoteBridge {
		style = discordBlockStyle
	}
	// Content is drawn as text only; lipgloss never interprets markup.
	return style.Width(max(s.width-2, 1)).Render(header.String() + "\n" + b.Content)
}

func (s *screen) statusLine() string {
	color := colorDisconnected
	if s.status == chat.Connected {
		color = colorConnected
	}
	line := titleStyle.Render(s.title) + "  " + lipgloss.NewStyle().Foreground(color).Render(s.status.String())
	if s.username != "" {
		line += "  " + "Username: " + s.username
	}
	return line
}

func (s *screen) View() string {
	input := s.nameInput.View()
	help := "enter: set username · esc: quit"
	if s.mode == chat.Composing {
		input = s.msgInput.View()
		help = "enter: send · pgup/pgdn: scroll · esc: quit"
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		s.statusLine(),
		"",
		s.panel.View(),
		input,
		helpStyle.Render(help),
	)
}

// inboundMsg carries a relay event into the Bubble Tea loop.
type inboundMsg struct {
	event string
	data  json.RawMessage
}

// model is the Bubble Tea program: its Update is the single event loop every
// controller call runs on.
type model struct {
	screen *screen
	ctrl   *chat.Controller
	route  *router
}

func newModel(title string, out chat.Emitter, autoName string, mirrors ...chat.Renderer) *model {
	s := newScreen(title)
	var view chat.Renderer = s
	if len(mirrors) > 0 {
		view = fanout(append([]chat.Renderer{s}, mirrors...))
	}
	ctrl := chat.NewController(out, view)
	return &model{
		screen: s,
		ctrl:   ctrl,
		route:  newRouter(ctrl, autoName),
	}
}

func (m *model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.screen.mode == chat.Composing {
				m.ctrl.RequestSendMessage(m.screen.msgInput.Value())
			} else {
				m.ctrl.RequestUsername(m.screen.nameInput.Value())
			}
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.screen.panel, cmd = m.screen.panel.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		if m.screen.mode == chat.Composing {
			m.screen.msgInput, cmd = m.screen.msgInput.Update(msg)
		} else {
			m.screen.nameInput, cmd = m.screen.nameInput.Update(msg)
		}
		return m, cmd
	case tea.WindowSizeMsg:
		m.screen.resize(msg.Width, msg.Height)
	case inboundMsg:
		m.route.handle(msg.event, msg.data)
	}
	return m, nil
}

func (m *model) View() string {
	return m.screen.View()
}
