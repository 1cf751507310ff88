package chat

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Inbound event names.
const (
	EventConnect        = "connect"
	EventDisconnect     = "disconnect"
	EventUsernameSet    = "username_set"
	EventMessageSent    = "message_sent"
	EventDiscordMessage = "discord_message"
	EventError          = "error"
)

// UsernameSetPayload is the body of username_set.
type UsernameSetPayload struct {
	Username string `json:"username"`
}

// ErrorPayload is the body of error.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Dispatch decodes an inbound relay event and calls the matching handler.
// Unknown events are ignored; undecodable payloads are shown as errors.
func Dispatch(c *Controller, event string, data json.RawMessage) {
	switch event {
	case EventConnect:
		c.OnConnect()
	case EventDisconnect:
		c.OnDisconnect()
	case EventUsernameSet:
		var p UsernameSetPayload
		if !decode(c, event, data, &p) {
			return
		}
		c.OnUsernameConfirmed(p.Username)
	case EventMessageSent:
		var r Record
		if !decode(c, event, data, &r) {
			return
		}
		c.OnMessageEchoed(r)
	case EventDiscordMessage:
		var r Record
		if !decode(c, event, data, &r) {
			return
		}
		c.OnRemoteMessage(r)
	case EventError:
		var p ErrorPayload
		if !decode(c, event, data, &p) {
			return
		}
		c.OnTransportError(p.Message)
	default:
		log.Debug().Str("event", event).Msg("[bridge-chat] ignoring unknown event")
	}
}

func decode(c *Controller, event string, data json.RawMessage, v any) bool {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Warn().Err(err).Str("event", event).Msg("[bridge-chat] bad payload")
		c.OnTransportError(fmt.Sprintf("malformed %s payload", event))
		return false
	}
	return true
}
