// Package chat holds the client-side chat logic: session state, the handlers
// bound to user input and relay events, and the interfaces through which it
// reaches the transport and the screen.
//
// Every Controller method must be called from a single event loop goroutine.
package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Outbound event names.
const (
	EventSetUsername = "set_username"
	EventSendMessage = "send_message"
)

// Emitter sends an event to the relay.
type Emitter interface {
	Emit(event string, payload any) error
}

// Renderer is the presentation surface driven by the Controller.
type Renderer interface {
	RenderMessage(b Block)
	RenderNotice(text string)
	SetStatus(s Status)
	SetUsername(name string)
	SetMode(m Mode)
	ClearMessageInput()
	FocusMessageInput()
	ScrollToBottom()
}

// SetUsernamePayload is the body of set_username.
type SetUsernamePayload struct {
	Username string `json:"username"`
}

// SendMessagePayload is the body of send_message.
type SendMessagePayload struct {
	Message string `json:"message"`
}

// Controller binds input and relay events to the renderer.
type Controller struct {
	session Session
	out     Emitter
	view    Renderer
	now     func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock used for records without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController returns a Controller that starts Disconnected and awaiting a
// username.
func NewController(out Emitter, view Renderer, opts ...Option) *Controller {
	c := &Controller{
		out:  out,
		view: view,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.view.SetStatus(Disconnected)
	c.view.SetMode(AwaitingUsername)
	return c
}

// Session returns a copy of the current state.
func (c *Controller) Session() Session {
	return c.session
}

// OnConnect marks the session connected.
func (c *Controller) OnConnect() {
	c.session.Status = Connected
	c.notice("Connected to server")
	c.view.SetStatus(Connected)
}

// OnDisconnect marks the session disconnected. Username and mode are kept.
func (c *Controller) OnDisconnect() {
	c.session.Status = Disconnected
	c.notice("Disconnected from server")
	c.view.SetStatus(Disconnected)
}

// RequestUsername asks the relay for a username. Local state only changes when
// the relay confirms it.
func (c *Controller) RequestUsername(proposed string) {
	name := strings.TrimSpace(proposed)
	if name == "" || c.session.Mode == Composing {
		return
	}
	c.emit(EventSetUsername, SetUsernamePayload{Username: name})
}

// OnUsernameConfirmed switches to composing. Repeated confirmations update the
// name but never leave Composing. An empty name is ignored so composing is
// never enabled without a username.
func (c *Controller) OnUsernameConfirmed(name string) {
	if strings.TrimSpace(name) == "" {
		log.Warn().Msg("[bridge-chat] relay confirmed an empty username")
		return
	}
	c.session.Username = name
	c.session.Mode = Composing
	c.view.SetUsername(name)
	c.view.SetMode(Composing)
	c.notice(fmt.Sprintf("You joined as %s", name))
	c.view.FocusMessageInput()
}

// RequestSendMessage sends raw once trimmed. The input is cleared right away,
// without waiting for the echo.
func (c *Controller) RequestSendMessage(raw string) {
	text := strings.TrimSpace(raw)
	if text == "" || !c.session.CanCompose() {
		return
	}
	c.emit(EventSendMessage, SendMessagePayload{Message: text})
	c.view.ClearMessageInput()
}

// OnMessageEchoed renders the relay's echo of our own message.
func (c *Controller) OnMessageEchoed(r Record) {
	r.Origin = Self
	c.render(r)
}

// OnRemoteMessage renders a message bridged in from Discord.
func (c *Controller) OnRemoteMessage(r Record) {
	r.Origin = RemoteBridge
	c.render(r)
}

// OnTransportError shows message as an error notice.
func (c *Controller) OnTransportError(message string) {
	c.notice("Error: " + message)
}

func (c *Controller) emit(event string, payload any) {
	if err := c.out.Emit(event, payload); err != nil {
		log.Debug().Err(err).Str("event", event).Msg("[bridge-chat] emit failed")
		c.OnTransportError(err.Error())
	}
}

func (c *Controller) render(r Record) {
	c.view.RenderMessage(NewBlock(r, c.now()))
	c.view.ScrollToBottom()
}

func (c *Controller) notice(text string) {
	c.view.RenderNotice(text)
	c.view.ScrollToBottom()
}
