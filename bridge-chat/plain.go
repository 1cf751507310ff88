package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/discord-bridge/bridge-chat/chat"
)

// plainView writes the chat as plain lines, for pipes and dumb terminals.
// Inputs and scrolling are the terminal's business, so those calls only
// update prompts.
type plainView struct {
	w    io.Writer
	mode chat.Mode
}

func newPlainView(w io.Writer) *plainView {
	return &plainView{w: w}
}

func (v *plainView) RenderMessage(b chat.Block) {
	tag := "web"
	if b.Origin == chat.RemoteBridge {
		tag = "discord"
	}
	avatar := ""
	if host := avatarHost(b.AvatarURL); host != "" {
		avatar = " [avatar " + host + "]"
	}
	v.printf("[%s] %s <%s>%s %s\n", b.Time, tag, b.Username, avatar, b.Content)
}

func (v *plainView) RenderNotice(text string) {
	v.printf("* %s\n", text)
}

func (v *plainView) SetStatus(s chat.Status) {
	v.printf("-- status: %s\n", s)
}

func (v *plainView) SetUsername(name string) {
	v.printf("-- Username: %s\n", name)
}

func (v *plainView) SetMode(m chat.Mode) {
	if m == v.mode && m == chat.Composing {
		return
	}
	v.mode = m
	if m == chat.AwaitingUsername {
		v.printf("-- enter a username\n")
	} else {
		v.printf("-- type a message and press enter\n")
	}
}

func (v *plainView) ClearMessageInput() {}
func (v *plainView) FocusMessageInput() {}
func (v *plainView) ScrollToBottom()    {}

func (v *plainView) printf(format string, args ...any) {
	if _, err := fmt.Fprintf(v.w, format, args...); err != nil {
		log.Debug().Err(err).Msg("[bridge-chat] write output")
	}
}

// readInput routes stdin lines to the controller on the event loop until r is
// exhausted or ctx ends.
func readInput(ctx context.Context, r io.Reader, loop *eventLoop, ctrl *chat.Controller) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := sc.Text()
		ok := loop.enqueue(func() {
			if ctrl.Session().Mode == chat.AwaitingUsername {
				ctrl.RequestUsername(line)
				return
			}
			ctrl.RequestSendMessage(line)
		})
		if !ok {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

// avatarHost shortens an avatar URL for text output.
func avatarHost(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Host
}
