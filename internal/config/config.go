// Package config resolves the settings of a call or a relay from CLI flags,
// environment variables and defaults, in that order of priority.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/1ureka/meshcall/internal/negotiator"
	"github.com/1ureka/meshcall/internal/room"
)

const (
	DefaultSignalURL = "ws://localhost:8080/ws"
	DefaultRelayAddr = ":8080"
	DefaultTimeout   = 30 * time.Second
	DefaultAudio     = "opus"
	DefaultVideo     = "vp8"
)

// Environment variables consulted when a flag is not given.
const (
	EnvRoom      = "MESHCALL_ROOM"
	EnvSignalURL = "MESHCALL_SIGNAL_URL"
	EnvSTUN      = "MESHCALL_STUN"
	EnvTimeout   = "MESHCALL_TIMEOUT"
	EnvRelayAddr = "MESHCALL_RELAY_ADDR"
)

// Config is everything needed to join a room.
type Config struct {
	Room        room.ID
	SignalURL   string
	STUNServers []string

	// NegotiationTimeout bounds how long a peer may take to get media up.
	// Zero disables it.
	NegotiationTimeout time.Duration

	AudioCodec string // empty for no audio
	VideoCodec string // empty for no video
	Mesh       bool
}

// Options are the CLI flag values; zero values mean "not given".
type Options struct {
	Room      string // room id, "#id", or a link with the id in its fragment
	SignalURL string
	STUN      string // comma separated; "none" for host candidates only
	Timeout   string // Go duration; "0" disables the timeout

	AudioCodec string
	VideoCodec string
	NoAudio    bool
	NoVideo    bool
	NoMesh     bool
}

// Load resolves a call configuration. A missing room is generated.
func Load(opts Options) (*Config, error) {
	id, err := room.Resolve(pick(opts.Room, os.Getenv(EnvRoom), ""))
	if err != nil {
		return nil, err
	}

	signalURL, err := LoadSignalURL(opts.SignalURL)
	if err != nil {
		return nil, err
	}

	var stun []string
	switch raw := pick(opts.STUN, os.Getenv(EnvSTUN), ""); raw {
	case "":
		stun = negotiator.DefaultSTUNServers
	case "none":
	default:
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				stun = append(stun, s)
			}
		}
	}

	timeout := DefaultTimeout
	if raw := pick(opts.Timeout, os.Getenv(EnvTimeout), ""); raw != "" {
		timeout, err = time.ParseDuration(raw)
		if err != nil || timeout < 0 {
			return nil, fmt.Errorf("invalid negotiation timeout %q", raw)
		}
	}

	cfg := &Config{
		Room:               id,
		SignalURL:          signalURL,
		STUNServers:        stun,
		NegotiationTimeout: timeout,
		AudioCodec:         pick(opts.AudioCodec, DefaultAudio),
		VideoCodec:         pick(opts.VideoCodec, DefaultVideo),
		Mesh:               !opts.NoMesh,
	}
	if opts.NoAudio {
		cfg.AudioCodec = ""
	}
	if opts.NoVideo {
		cfg.VideoCodec = ""
	}
	return cfg, nil
}

// LoadSignalURL resolves only the relay URL, for commands that need no room.
func LoadSignalURL(flag string) (string, error) {
	signalURL := pick(flag, os.Getenv(EnvSignalURL), DefaultSignalURL)
	if err := checkSignalURL(signalURL); err != nil {
		return "", err
	}
	return signalURL, nil
}

// RelayConfig is everything needed to run a relay.
type RelayConfig struct {
	Addr string
}

// LoadRelay resolves the relay listen address.
func LoadRelay(addr string) *RelayConfig {
	return &RelayConfig{Addr: pick(addr, os.Getenv(EnvRelayAddr), DefaultRelayAddr)}
}

// RoomLink returns a shareable link to the room on the relay's host.
func (c *Config) RoomLink() string {
	u, err := url.Parse(c.SignalURL)
	if err != nil {
		return c.Room.Fragment()
	}
	scheme := "http"
	if u.Scheme == "wss" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, u.Host, c.Room.Fragment())
}

func checkSignalURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid signaling URL %q: %w", raw, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("signaling URL %q must use ws:// or wss://", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("signaling URL %q has no host", raw)
	}
	return nil
}

// pick returns the first non-empty value.
func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
