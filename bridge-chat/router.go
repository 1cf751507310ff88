package main

import (
	"encoding/json"
	"sync"

	"github.com/gosuda/discord-bridge/bridge-chat/chat"
)

// router feeds relay events to the controller. With a preset username it asks
// for it once, right after the first connect.
type router struct {
	ctrl     *chat.Controller
	username string
	asked    bool
}

func newRouter(ctrl *chat.Controller, username string) *router {
	return &router{ctrl: ctrl, username: username}
}

func (r *router) handle(event string, data json.RawMessage) {
	chat.Dispatch(r.ctrl, event, data)
	if event == chat.EventConnect && r.username != "" && !r.asked {
		r.asked = true
		r.ctrl.RequestUsername(r.username)
	}
}

// link is the controller's emitter. It stays unbound until the relay
// connection exists.
type link struct {
	mu     sync.Mutex
	client *relayClient
}

func (l *link) bind(c *relayClient) {
	l.mu.Lock()
	l.client = c
	l.mu.Unlock()
}

func (l *link) Emit(event string, payload any) error {
	l.mu.Lock()
	c := l.client
	l.mu.Unlock()
	if c == nil {
		return ErrNotConnected
	}
	return c.Emit(event, payload)
}

// fanout mirrors every render call to several renderers in order.
type fanout []chat.Renderer

func (f fanout) RenderMessage(b chat.Block) {
	for _, r := range f {
		r.RenderMessage(b)
	}
}

func (f fanout) RenderNotice(text string) {
	for _, r := range f {
		r.RenderNotice(text)
	}
}

func (f fanout) SetStatus(s chat.Status) {
	for _, r := range f {
		r.SetStatus(s)
	}
}

func (f fanout) SetUsername(name string) {
	for _, r := range f {
		r.SetUsername(name)
	}
}

func (f fanout) SetMode(m chat.Mode) {
	for _, r := range f {
		r.SetMode(m)
	}
}

func (f fanout) ClearMessageInput() {
	for _, r := range f {
		r.ClearMessageInput()
	}
}

func (f fanout) FocusMessageInput() {
	for _, r := range f {
		r.FocusMessageInput()
	}
}

func (f fanout) ScrollToBottom() {
	for _, r := range f {
		r.ScrollToBottom()
	}
}
