package chat

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emitted struct {
	event   string
	payload any
}

type fakeEmitter struct {
	sent []emitted
	err  error
}

func (f *fakeEmitter) Emit(event string, payload any) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, emitted{event: event, payload: payload})
	return nil
}

type entry struct {
	notice string
	block  *Block
}

// recordingView keeps what a screen would show and tracks scrolling.
type recordingView struct {
	entries    []entry
	status     Status
	statusSets int
	username   string
	mode       Mode
	cleared    int
	focused    int
	scrolledAt int
}

func (v *recordingView) RenderMessage(b Block) { v.entries = append(v.entries, entry{block: &b}) }
func (v *recordingView) RenderNotice(text string) {
	v.entries = append(v.entries, entry{notice: text})
}
func (v *recordingView) SetStatus(s Status)      { v.status = s; v.statusSets++ }
func (v *recordingView) SetUsername(name string) { v.username = name }
func (v *recordingView) SetMode(m Mode)          { v.mode = m }
func (v *recordingView) ClearMessageInput()      { v.cleared++ }
func (v *recordingView) FocusMessageInput()      { v.focused++ }
func (v *recordingView) ScrollToBottom()         { v.scrolledAt = len(v.entries) }

func (v *recordingView) last() entry {
	return v.entries[len(v.entries)-1]
}

func newTestController(t *testing.T) (*Controller, *fakeEmitter, *recordingView) {
	t.Helper()
	out := &fakeEmitter{}
	view := &recordingView{}
	clock := func() time.Time { return time.Date(2024, 5, 1, 9, 7, 0, 0, time.Local) }
	return NewController(out, view, WithClock(clock)), out, view
}

func join(t *testing.T, c *Controller, name string) {
	t.Helper()
	c.OnUsernameConfirmed(name)
	require.Equal(t, Composing, c.Session().Mode)
}

func TestNewControllerInitialState(t *testing.T) {
	c, out, view := newTestController(t)

	s := c.Session()
	assert.Empty(t, s.Username)
	assert.Equal(t, Disconnected, s.Status)
	assert.Equal(t, AwaitingUsername, s.Mode)
	assert.Equal(t, AwaitingUsername, view.mode)
	assert.Equal(t, Disconnected, view.status)
	assert.Empty(t, out.sent)
	assert.Empty(t, view.entries)
}

func TestConnectAndDisconnect(t *testing.T) {
	c, _, view := newTestController(t)

	c.OnConnect()
	assert.Equal(t, Connected, c.Session().Status)
	assert.Equal(t, "Connected", view.status.String())
	assert.Equal(t, "Connected to server", view.last().notice)

	c.OnDisconnect()
	assert.Equal(t, Disconnected, c.Session().Status)
	assert.Equal(t, "Disconnected", view.status.String())
	assert.Equal(t, "Disconnected from server", view.last().notice)
	assert.Equal(t, len(view.entries), view.scrolledAt)
}

func TestRequestUsernameEmitsTrimmedValueOnly(t *testing.T) {
	for _, proposed := range []string{"alice", "  alice  ", "\talice\n"} {
		c, out, view := newTestController(t)
		c.RequestUsername(proposed)

		require.Len(t, out.sent, 1)
		assert.Equal(t, EventSetUsername, out.sent[0].event)
		assert.Equal(t, SetUsernamePayload{Username: "alice"}, out.sent[0].payload)
		assert.Empty(t, c.Session().Username)
		assert.Equal(t, AwaitingUsername, c.Session().Mode)
		assert.Empty(t, view.entries)
	}
}

func TestWhitespaceInputEmitsNothing(t *testing.T) {
	for _, raw := range []string{"", " ", "\t\n ", " "} {
		c, out, view := newTestController(t)
		c.RequestUsername(raw)
		join(t, c, "alice")
		c.RequestSendMessage(raw)

		assert.Empty(t, out.sent, "input %q", raw)
		assert.Zero(t, view.cleared)
	}
}

func TestUsernameConfirmedSwitchesMode(t *testing.T) {
	c, _, view := newTestController(t)
	c.OnUsernameConfirmed("alice")

	assert.Equal(t, "alice", c.Session().Username)
	assert.Equal(t, Composing, view.mode)
	assert.Equal(t, "alice", view.username)
	assert.Equal(t, "You joined as alice", view.last().notice)
	assert.Equal(t, 1, view.focused)
	assert.Equal(t, len(view.entries), view.scrolledAt)
}

func TestUsernameConfirmedNeverReverts(t *testing.T) {
	c, out, view := newTestController(t)
	join(t, c, "alice")
	c.OnUsernameConfirmed("bob")
	c.OnDisconnect()
	c.OnConnect()

	assert.Equal(t, Composing, c.Session().Mode)
	assert.Equal(t, Composing, view.mode)
	assert.Equal(t, "bob", c.Session().Username)

	c.RequestUsername("carol")
	assert.Empty(t, out.sent)
}

func TestEmptyConfirmationIgnored(t *testing.T) {
	c, _, view := newTestController(t)
	c.OnUsernameConfirmed("  ")

	assert.Equal(t, AwaitingUsername, c.Session().Mode)
	assert.Empty(t, view.entries)
}

func TestRequestSendMessage(t *testing.T) {
	c, out, view := newTestController(t)
	join(t, c, "alice")

	c.RequestSendMessage("  hello ")
	require.Len(t, out.sent, 1)
	assert.Equal(t, EventSendMessage, out.sent[0].event)
	assert.Equal(t, SendMessagePayload{Message: "hello"}, out.sent[0].payload)
	assert.Equal(t, 1, view.cleared)
}

func TestSendBeforeUsernameIsDropped(t *testing.T) {
	c, out, view := newTestController(t)
	c.RequestSendMessage("hello")

	assert.Empty(t, out.sent)
	assert.Zero(t, view.cleared)
}

func TestSendFailureShowsNoticeAndStillClears(t *testing.T) {
	c, out, view := newTestController(t)
	join(t, c, "alice")
	out.err = errors.New("not connected")

	c.RequestSendMessage("hello")
	assert.Equal(t, "Error: not connected", view.last().notice)
	assert.Equal(t, 1, view.cleared)
}

func TestSendThenEchoRendersOneBlock(t *testing.T) {
	c, _, view := newTestController(t)
	join(t, c, "alice")
	before := len(view.entries)

	c.RequestSendMessage("hello")
	c.OnMessageEchoed(Record{Username: "alice", Content: "hello"})

	require.Len(t, view.entries, before+1)
	b := view.last().block
	require.NotNil(t, b)
	assert.Equal(t, "hello", b.Content)
	assert.Equal(t, Self, b.Origin)
	assert.Equal(t, "09:07", b.Time)
	assert.Equal(t, len(view.entries), view.scrolledAt)
}

func TestMarkupStaysLiteral(t *testing.T) {
	c, _, view := newTestController(t)
	c.OnMessageEchoed(Record{Username: "alice", Content: "<b>x</b>"})

	assert.Equal(t, "<b>x</b>", view.last().block.Content)
}

func TestRemoteMessageStyledDistinctly(t *testing.T) {
	c, _, view := newTestController(t)
	c.OnRemoteMessage(Record{Username: "bridge-bot", Content: "hi", AvatarURL: "http://x/a.png"})
	remote := *view.last().block
	c.OnMessageEchoed(Record{Username: "alice", Content: "hi"})
	own := *view.last().block

	assert.Equal(t, RemoteBridge, remote.Origin)
	assert.Equal(t, "http://x/a.png", remote.AvatarURL)
	assert.NotEqual(t, own.Origin.Class(), remote.Origin.Class())
	assert.Empty(t, own.AvatarURL)
}

func TestTransportError(t *testing.T) {
	c, _, view := newTestController(t)
	c.OnConnect()
	c.OnTransportError("rate limited")

	assert.Equal(t, "Error: rate limited", view.last().notice)
	assert.Equal(t, len(view.entries), view.scrolledAt)
}

func TestRecordTimestampWins(t *testing.T) {
	c, _, view := newTestController(t)
	ts := time.Date(2024, 5, 1, 23, 45, 0, 0, time.Local)
	c.OnRemoteMessage(Record{Username: "bot", Content: "late", Timestamp: Timestamp{ts}})

	assert.Equal(t, "23:45", view.last().block.Time)
}
