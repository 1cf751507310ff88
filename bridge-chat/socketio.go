package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Engine.IO v4 packet types.
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'
	eioNoop    = '6'
)

// Socket.IO v4 packet types, carried inside an Engine.IO message.
const (
	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioConnectError = '4'
)

var errBadPacket = errors.New("bad socket.io packet")

// openPacket is the Engine.IO handshake sent by the server right after upgrade.
type openPacket struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

// readTimeout is how long the server may stay silent before the link is dead.
func (p openPacket) readTimeout() time.Duration {
	if p.PingInterval <= 0 || p.PingTimeout <= 0 {
		return pongWait
	}
	return time.Duration(p.PingInterval+p.PingTimeout) * time.Millisecond
}

// packet is one decoded frame from the relay.
type packet struct {
	engine    byte
	socket    byte
	namespace string
	event     string
	data      json.RawMessage
}

const defaultNamespace = "/"

// normalizeNamespace returns ns with a leading slash, or "/" when empty.
func normalizeNamespace(ns string) string {
	ns = strings.TrimSpace(ns)
	if ns == "" || ns == defaultNamespace {
		return defaultNamespace
	}
	if !strings.HasPrefix(ns, "/") {
		ns = "/" + ns
	}
	return ns
}

// socketHeader is the Engine.IO message prefix for a Socket.IO packet type on
// ns. Packets for the default namespace carry no namespace segment.
func socketHeader(kind byte, ns string) []byte {
	h := []byte{eioMessage, kind}
	if ns = normalizeNamespace(ns); ns != defaultNamespace {
		h = append(h, ns...)
		h = append(h, ',')
	}
	return h
}

// socketURL turns a relay base URL into the websocket endpoint.
func socketURL(base string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("server url %q has no host", base)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/socket.io/"
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// encodeEvent builds the frame for emitting event with payload on ns.
func encodeEvent(ns, event string, payload any) ([]byte, error) {
	args := []any{event}
	if payload != nil {
		args = append(args, payload)
	}
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return append(socketHeader(sioEvent, ns), body...), nil
}

func connectFrame(ns string) []byte    { return socketHeader(sioConnect, ns) }
func disconnectFrame(ns string) []byte { return socketHeader(sioDisconnect, ns) }

// decodePacket parses one text frame.
func decodePacket(frame []byte) (packet, error) {
	if len(frame) == 0 {
		return packet{}, errBadPacket
	}
	p := packet{engine: frame[0]}
	rest := frame[1:]
	switch p.engine {
	case eioOpen:
		p.data = json.RawMessage(rest)
		return p, nil
	case eioClose, eioPing, eioPong, eioNoop:
		return p, nil
	case eioMessage:
	default:
		return packet{}, fmt.Errorf("%w: engine type %q", errBadPacket, p.engine)
	}
	if len(rest) == 0 {
		return packet{}, fmt.Errorf("%w: empty message", errBadPacket)
	}
	p.socket = rest[0]
	p.namespace = defaultNamespace
	rest = rest[1:]
	// An optional namespace ("/chat,") comes before the ack id digits.
	if len(rest) > 0 && rest[0] == '/' {
		i := strings.IndexByte(string(rest), ',')
		if i < 0 {
			p.namespace = string(rest)
			rest = nil
		} else {
			p.namespace = string(rest[:i])
			rest = rest[i+1:]
		}
	}
	for len(rest) > 0 && rest[0] >= '0' && rest[0] <= '9' {
		rest = rest[1:]
	}
	switch p.socket {
	case sioConnect, sioDisconnect, sioConnectError:
		p.data = json.RawMessage(rest)
		return p, nil
	case sioEvent:
		var args []json.RawMessage
		if err := json.Unmarshal(rest, &args); err != nil {
			return packet{}, fmt.Errorf("%w: %v", errBadPacket, err)
		}
		if len(args) == 0 {
			return packet{}, fmt.Errorf("%w: event without name", errBadPacket)
		}
		if err := json.Unmarshal(args[0], &p.event); err != nil {
			return packet{}, fmt.Errorf("%w: event name: %v", errBadPacket, err)
		}
		if len(args) > 1 {
			p.data = args[1]
		}
		return p, nil
	default:
		return packet{}, fmt.Errorf("%w: socket type %q", errBadPacket, p.socket)
	}
}

// connectErrorMessage extracts the reason from a CONNECT_ERROR body.
func connectErrorMessage(data json.RawMessage) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Message != "" {
		return body.Message
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil && s != "" {
		return s
	}
	return "connection refused"
}
