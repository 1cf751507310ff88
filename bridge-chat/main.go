package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/discord-bridge/bridge-chat/chat"
)

var rootCmd = &cobra.Command{
	Use:   "bridge-chat",
	Short: "Terminal client for a Socket.IO chat relay bridged to Discord",
	RunE:  runChat,
}

var (
	cfg    Config
	cfgErr error
)

func init() {
	cfg, cfgErr = loadConfig()
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.ServerURL, "server-url", cfg.ServerURL, "relay base URL (env BRIDGE_CHAT_SERVER_URL)")
	flags.StringVar(&cfg.Namespace, "namespace", cfg.Namespace, "Socket.IO namespace to join")
	flags.StringVar(&cfg.Title, "title", cfg.Title, "relay display name shown in the header")
	flags.StringVar(&cfg.Username, "username", cfg.Username, "request this username as soon as the relay connects")
	flags.BoolVar(&cfg.Plain, "plain", cfg.Plain, "line-oriented output instead of the full-screen UI")
	flags.StringVar(&cfg.TranscriptPath, "transcript", cfg.TranscriptPath, "write an HTML transcript of the session to this file on exit")
	flags.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "append logs to this file")
	flags.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug logging")
	flags.DurationVar(&cfg.HandshakeTimeout, "handshake-timeout", cfg.HandshakeTimeout, "websocket handshake timeout")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute bridge-chat command")
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	if cfgErr != nil {
		return cfgErr
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	plain := cfg.Plain || !isatty.IsTerminal(os.Stdin.Fd())
	closeLog, err := setupLogging(cfg, !plain)
	if err != nil {
		return err
	}
	defer closeLog()

	var tr *transcript
	var mirrors []chat.Renderer
	if cfg.TranscriptPath != "" {
		tr = newTranscript(cfg.Title, 20)
		mirrors = append(mirrors, tr)
	}

	if plain {
		err = runPlain(ctx, cfg, os.Stdin, os.Stdout, mirrors)
	} else {
		err = runTUI(ctx, cfg, mirrors)
	}

	if tr != nil {
		if werr := tr.WriteFile(cfg.TranscriptPath); werr != nil {
			log.Error().Err(werr).Msg("[bridge-chat] transcript")
		} else {
			log.Info().Msgf("[bridge-chat] transcript written to %s", cfg.TranscriptPath)
		}
	}
	log.Info().Msg("[bridge-chat] shutdown complete")
	return err
}

func setupLogging(cfg Config, interactive bool) (func(), error) {
	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		log.Logger = zerolog.New(f).With().Timestamp().Logger()
		return func() { _ = f.Close() }, nil
	}
	if interactive {
		// Anything written to the terminal would tear the full-screen UI.
		log.Logger = zerolog.Nop()
		return func() {}, nil
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	return func() {}, nil
}

// runTUI drives the controller from the Bubble Tea loop. Relay events reach it
// through Program.Send.
func runTUI(ctx context.Context, cfg Config, mirrors []chat.Renderer) error {
	ln := &link{}
	m := newModel(cfg.Title, ln, cfg.Username, mirrors...)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	dialCtx, cancelDial := context.WithCancel(ctx)
	dialed := make(chan *relayClient, 1)
	go func() {
		defer close(dialed)
		c, err := dialRelay(dialCtx, cfg, ln, func(event string, data json.RawMessage) {
			p.Send(inboundMsg{event: event, data: data})
		})
		if err != nil {
			log.Error().Err(err).Msg("[bridge-chat] connect relay")
			p.Send(inboundMsg{event: chat.EventError, data: errorPayload(err)})
			return
		}
		dialed <- c
	}()

	_, err := p.Run()
	cancelDial()
	if c := <-dialed; c != nil {
		_ = c.Close()
	}
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

// runPlain drives the controller from an eventLoop fed by in and the relay. A
// dropped link is reported on out and the session stays open until ctx ends or
// both the link and in are gone.
func runPlain(ctx context.Context, cfg Config, in io.Reader, out io.Writer, mirrors []chat.Renderer) error {
	loop := newEventLoop()
	defer loop.close()

	ln := &link{}
	var view chat.Renderer = newPlainView(out)
	if len(mirrors) > 0 {
		view = fanout(append([]chat.Renderer{view}, mirrors...))
	}
	ctrl := chat.NewController(ln, view)
	rt := newRouter(ctrl, cfg.Username)

	c, err := dialRelay(ctx, cfg, ln, func(event string, data json.RawMessage) {
		loop.enqueue(func() { rt.handle(event, data) })
	})
	if err != nil {
		return fmt.Errorf("connect relay: %w", err)
	}
	defer c.Close()

	inputDone := make(chan error, 1)
	go func() { inputDone <- readInput(ctx, in, loop, ctrl) }()

	linkDone := c.Done()
	for linkDone != nil || inputDone != nil {
		select {
		case <-ctx.Done():
			return nil
		case <-linkDone:
			log.Info().Msg("[bridge-chat] relay link closed")
			linkDone = nil
		case err := <-inputDone:
			if err != nil {
				return err
			}
			log.Info().Msg("[bridge-chat] input closed; still listening")
			inputDone = nil
		}
	}
	return nil
}

func errorPayload(err error) json.RawMessage {
	b, _ := json.Marshal(chat.ErrorPayload{Message: err.Error()})
	return b
}
