package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is read from BRIDGE_CHAT_* variables first; flags override it.
type Config struct {
	ServerURL        string        `env:"BRIDGE_CHAT_SERVER_URL" envDefault:"http://127.0.0.1:5000"`
	Namespace        string        `env:"BRIDGE_CHAT_NAMESPACE" envDefault:"/"`
	Title            string        `env:"BRIDGE_CHAT_TITLE" envDefault:"Loneliness Talking Device"`
	Username         string        `env:"BRIDGE_CHAT_USERNAME"`
	Plain            bool          `env:"BRIDGE_CHAT_PLAIN"`
	TranscriptPath   string        `env:"BRIDGE_CHAT_TRANSCRIPT"`
	LogFile          string        `env:"BRIDGE_CHAT_LOG_FILE"`
	Debug            bool          `env:"BRIDGE_CHAT_DEBUG"`
	HandshakeTimeout time.Duration `env:"BRIDGE_CHAT_HANDSHAKE_TIMEOUT" envDefault:"10s"`
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if _, err := socketURL(c.ServerURL); err != nil {
		return err
	}
	if strings.ContainsAny(c.Namespace, ",?") {
		return fmt.Errorf("namespace %q must not contain ',' or '?'", c.Namespace)
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("handshake timeout must be positive, got %s", c.HandshakeTimeout)
	}
	return nil
}
