package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/discord-bridge/bridge-chat/chat"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	sendBufferSize = 64
	readLimit      = 1 << 20
)

var (
	// ErrNotConnected is returned by Emit before the namespace is joined or
	// after the link dropped.
	ErrNotConnected = errors.New("not connected")
	errSendQueue    = errors.New("send queue full")
)

// deliverFunc hands an inbound event to the event loop.
type deliverFunc func(event string, data json.RawMessage)

// relayClient is a Socket.IO v4 client over a single websocket.
type relayClient struct {
	conn      *websocket.Conn
	deliver   deliverFunc
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	connected atomic.Bool
	namespace string
	timeout   time.Duration
	wg        sync.WaitGroup
}

// dialRelay opens the websocket, completes the Engine.IO handshake and joins
// cfg.Namespace. connect is delivered once the relay acknowledges. When ln is
// non-nil it is bound before any event can be delivered, so handlers may emit
// straight from connect.
func dialRelay(ctx context.Context, cfg Config, ln *link, deliver deliverFunc) (*relayClient, error) {
	endpoint, err := socketURL(cfg.ServerURL)
	if err != nil {
		return nil, err
	}
	handshake := cfg.HandshakeTimeout
	dialer := websocket.Dialer{HandshakeTimeout: handshake}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	conn.SetReadLimit(readLimit)

	_ = conn.SetReadDeadline(time.Now().Add(handshake))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read open packet: %w", err)
	}
	p, err := decodePacket(frame)
	if err != nil || p.engine != eioOpen {
		_ = conn.Close()
		return nil, fmt.Errorf("expected open packet: %w", errBadPacket)
	}
	var open openPacket
	if err := json.Unmarshal(p.data, &open); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("decode open packet: %w", err)
	}
	log.Debug().Str("sid", open.SID).Int("ping_interval", open.PingInterval).Msg("[bridge-chat] engine.io open")

	c := &relayClient{
		conn:      conn,
		deliver:   deliver,
		send:      make(chan []byte, sendBufferSize),
		done:      make(chan struct{}),
		namespace: normalizeNamespace(cfg.Namespace),
		timeout:   open.readTimeout(),
	}
	if ln != nil {
		ln.bind(c)
	}
	c.send <- connectFrame(c.namespace)
	c.wg.Add(2)
	go c.readLoop()
	go c.writeLoop()
	return c, nil
}

// Emit queues an event for the relay. It never blocks the caller.
func (c *relayClient) Emit(event string, payload any) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	frame, err := encodeEvent(c.namespace, event, payload)
	if err != nil {
		return err
	}
	return c.push(frame)
}

func (c *relayClient) push(frame []byte) error {
	select {
	case <-c.done:
		return ErrNotConnected
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return errSendQueue
	}
}

// Close leaves the namespace and tears down the websocket. It waits for both
// loops to exit.
func (c *relayClient) Close() error {
	c.shutdown()
	c.wg.Wait()
	return nil
}

// Done is closed when the link is gone.
func (c *relayClient) Done() <-chan struct{} {
	return c.done
}

func (c *relayClient) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *relayClient) readLoop() {
	// disconnect is delivered before Done closes and before Close returns.
	defer func() {
		if c.connected.Swap(false) {
			c.deliver(chat.EventDisconnect, nil)
		}
		c.shutdown()
		c.wg.Done()
	}()
	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.timeout))
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				log.Debug().Err(err).Msg("[bridge-chat] read message")
			}
			return
		}
		p, err := decodePacket(frame)
		if err != nil {
			log.Warn().Err(err).Msg("[bridge-chat] skipping frame")
			continue
		}
		if !c.handle(p) {
			return
		}
	}
}

// handle processes one packet and reports whether the link stays up.
func (c *relayClient) handle(p packet) bool {
	switch p.engine {
	case eioPing:
		if err := c.push([]byte{eioPong}); err != nil {
			log.Debug().Err(err).Msg("[bridge-chat] pong")
		}
		return true
	case eioClose:
		return false
	case eioMessage:
	default:
		return true
	}
	if p.namespace != c.namespace {
		log.Debug().Str("namespace", p.namespace).Msg("[bridge-chat] packet for another namespace")
		return true
	}
	switch p.socket {
	case sioConnect:
		if !c.connected.Swap(true) {
			c.deliver(chat.EventConnect, nil)
		}
	case sioConnectError:
		msg, _ := json.Marshal(chat.ErrorPayload{Message: connectErrorMessage(p.data)})
		c.deliver(chat.EventError, msg)
		return false
	case sioDisconnect:
		return false
	case sioEvent:
		c.deliver(p.event, p.data)
	}
	return true
}

func (c *relayClient) writeLoop() {
	defer func() {
		_ = c.conn.Close()
		c.wg.Done()
	}()
	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug().Err(err).Msg("[bridge-chat] write message")
				c.shutdown()
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if c.connected.Load() {
				_ = c.conn.WriteMessage(websocket.TextMessage, disconnectFrame(c.namespace))
			}
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
