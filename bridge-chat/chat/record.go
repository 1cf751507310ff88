package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Origin tells where a rendered message came from.
type Origin int

const (
	Self Origin = iota
	RemoteBridge
)

// Class returns the style class used for blocks of this origin.
func (o Origin) Class() string {
	if o == RemoteBridge {
		return "discord-message"
	}
	return "web-message"
}

// Record is a chat message as delivered by the relay.
type Record struct {
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Timestamp Timestamp `json:"timestamp,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Origin    Origin    `json:"-"`
}

// Timestamp accepts the formats relays put on the wire. A zero value means the
// record carried no usable time.
type Timestamp struct {
	time.Time
}

// Accepted string layouts, tried in order. Layouts without a zone are read in
// local time.
var timestampLayouts = []struct {
	layout string
	local  bool
}{
	{time.RFC3339Nano, false},
	{"2006-01-02 15:04:05.999999999Z07:00", false},
	{"2006-01-02 15:04:05.999999999", true},
	{"2006-01-02T15:04:05.999999999", true},
}

// ParseTimestamp parses a relay timestamp string.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	for _, l := range timestampLayouts {
		var (
			t   time.Time
			err error
		)
		if l.local {
			t, err = time.ParseInLocation(l.layout, s, time.Local)
		} else {
			t, err = time.Parse(l.layout, s)
		}
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		// Unparseable strings fall back to render time instead of failing the
		// whole record.
		parsed, err := ParseTimestamp(s)
		if err != nil {
			t.Time = time.Time{}
			return nil
		}
		t.Time = parsed
		return nil
	}
	var ms float64
	if err := json.Unmarshal(b, &ms); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	// Out-of-range epochs would overflow the conversion; treat them as missing.
	if math.IsNaN(ms) || ms >= math.MaxInt64 || ms < math.MinInt64 {
		t.Time = time.Time{}
		return nil
	}
	t.Time = time.UnixMilli(int64(ms))
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UnixMilli())
}

// FormatTime renders t as local hour:minute.
func FormatTime(t time.Time) string {
	return t.Local().Format("15:04")
}

// Block is a message ready for display.
type Block struct {
	Username  string
	Content   string
	Time      string
	AvatarURL string
	Origin    Origin
}

// NewBlock builds the display block for r. now is used when r has no timestamp.
func NewBlock(r Record, now time.Time) Block {
	ts := r.Timestamp.Time
	if ts.IsZero() {
		ts = now
	}
	return Block{
		Username:  r.Username,
		Content:   r.Content,
		Time:      FormatTime(ts),
		AvatarURL: r.AvatarURL,
		Origin:    r.Origin,
	}
}
