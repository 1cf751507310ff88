package chat

// Status is the connection state shown in the status indicator.
type Status int

const (
	Disconnected Status = iota
	Connected
)

func (s Status) String() string {
	if s == Connected {
		return "Connected"
	}
	return "Disconnected"
}

// Mode selects which input is visible. The two modes never overlap.
type Mode int

const (
	AwaitingUsername Mode = iota
	Composing
)

func (m Mode) String() string {
	if m == Composing {
		return "composing"
	}
	return "awaiting-username"
}

// Session is the per-process client state. It starts with an empty username,
// Disconnected and AwaitingUsername.
type Session struct {
	Username string
	Status   Status
	Mode     Mode
}

// CanCompose reports whether the message input may be used.
func (s *Session) CanCompose() bool {
	return s.Mode == Composing && s.Username != ""
}
