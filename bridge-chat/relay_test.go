package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// testRelay is an in-process Socket.IO v4 relay speaking the same events as
// the production relay.
type testRelay struct {
	t        *testing.T
	history  []json.RawMessage
	refuse   string
	drop     bool
	ping     bool
	stray    bool
	received chan string

	mu    sync.Mutex
	names map[*websocket.Conn]string
}

func newTestRelay(t *testing.T) *testRelay {
	return &testRelay{
		t:        t,
		received: make(chan string, 64),
		names:    map[*websocket.Conn]string{},
	}
}

func (r *testRelay) router() http.Handler {
	mux := chi.NewRouter()
	mux.Get("/socket.io/", r.serveWS)
	return mux
}

func (r *testRelay) serveWS(w http.ResponseWriter, req *http.Request) {
	if req.URL.Query().Get("EIO") != "4" || req.URL.Query().Get("transport") != "websocket" {
		http.Error(w, "unsupported transport", http.StatusBadRequest)
		return
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	write := func(frame string) bool {
		return conn.WriteMessage(websocket.TextMessage, []byte(frame)) == nil
	}
	if !write(`0{"sid":"eio-1","upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`) {
		return
	}

	ns := defaultNamespace
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		r.received <- string(frame)
		p, err := decodePacket(frame)
		if err != nil || p.engine != eioMessage {
			continue
		}
		switch p.socket {
		case sioConnect:
			ns = p.namespace
			if r.refuse != "" {
				write(string(socketHeader(sioConnectError, ns)) + `{"message":"` + r.refuse + `"}`)
				return
			}
			if !write(string(connectFrame(ns)) + `{"sid":"sio-1"}`) {
				return
			}
			if r.stray && !r.emit(conn, "/elsewhere", "discord_message", json.RawMessage(`{"username":"x","content":"stray"}`)) {
				return
			}
			for _, m := range r.history {
				if !r.emit(conn, ns, "discord_message", m) {
					return
				}
			}
			if r.drop {
				return
			}
			if r.ping && !write("2") {
				return
			}
		case sioDisconnect:
			return
		case sioEvent:
			if !r.handleEvent(conn, ns, p) {
				return
			}
		}
	}
}

func (r *testRelay) handleEvent(conn *websocket.Conn, ns string, p packet) bool {
	switch p.event {
	case "set_username":
		var body struct {
			Username string `json:"username"`
		}
		_ = json.Unmarshal(p.data, &body)
		if body.Username == "" {
			body.Username = "Anonymous"
		}
		r.mu.Lock()
		r.names[conn] = body.Username
		r.mu.Unlock()
		out, _ := json.Marshal(map[string]string{"username": body.Username})
		return r.emit(conn, ns, "username_set", out)
	case "send_message":
		r.mu.Lock()
		name, ok := r.names[conn]
		r.mu.Unlock()
		if !ok {
			return r.emit(conn, ns, "error", json.RawMessage(`{"message":"Please set a username first"}`))
		}
		var body struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(p.data, &body)
		out, _ := json.Marshal(map[string]string{
			"username":  name,
			"content":   body.Message,
			"timestamp": time.Now().Format("2006-01-02 15:04:05"),
		})
		return r.emit(conn, ns, "message_sent", out)
	}
	return true
}

func (r *testRelay) emit(conn *websocket.Conn, ns, event string, data json.RawMessage) bool {
	frame, err := encodeEvent(ns, event, data)
	if err != nil {
		r.t.Errorf("encode %s: %v", event, err)
		return false
	}
	return conn.WriteMessage(websocket.TextMessage, frame) == nil
}
