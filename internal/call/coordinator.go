// Package call joins a room: it acquires local media and drives one
// negotiation per remote peer through the room's signaling router.
package call

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/meshcall/internal/media"
	"github.com/1ureka/meshcall/internal/negotiator"
	"github.com/1ureka/meshcall/internal/room"
	"github.com/1ureka/meshcall/internal/signaling"
	"github.com/1ureka/meshcall/internal/util"
)

var _ signaling.Negotiator = (*negotiator.Negotiator)(nil)

// NegotiatorFactory builds the negotiator of one peer around the shared local
// stream.
type NegotiatorFactory func(local *media.Stream) (signaling.Negotiator, error)

// PionNegotiators builds negotiators on api.
func PionNegotiators(api *negotiator.API) NegotiatorFactory {
	return func(local *media.Stream) (signaling.Negotiator, error) {
		n, err := api.New(local)
		if err != nil {
			return nil, err
		}
		return n, nil
	}
}

// Config configures a Coordinator.
type Config struct {
	Room               room.ID
	Channel            signaling.Channel
	Source             media.Source
	NewNegotiator      NegotiatorFactory
	NegotiationTimeout time.Duration
	Mesh               bool
}

// StreamHandler receives a remote peer's stream. It owns the stream's tracks.
type StreamHandler func(peer signaling.PeerID, stream *media.RemoteStream)

// Coordinator is one participation in a room.
type Coordinator struct {
	cfg Config

	mu       sync.Mutex
	onStream StreamHandler
	onState  func(peer signaling.PeerID, state signaling.State)
	router   *signaling.Router
}

// New creates a Coordinator; nothing happens until Join.
func New(cfg Config) *Coordinator {
	return &Coordinator{cfg: cfg}
}

// OnRemoteStream sets the handler for remote streams. Without one, remote
// tracks are read and discarded so the transport keeps flowing.
func (c *Coordinator) OnRemoteStream(fn StreamHandler) {
	c.mu.Lock()
	c.onStream = fn
	c.mu.Unlock()
}

// OnPeerState observes session state changes. fn must not block.
func (c *Coordinator) OnPeerState(fn func(peer signaling.PeerID, state signaling.State)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

// Join acquires local media, joins the room and offers to whoever is there.
// It blocks until ctx is cancelled (leaving the room, which returns nil) or
// the channel fails. No session is created if local media is unavailable.
func (c *Coordinator) Join(ctx context.Context) error {
	local, err := c.cfg.Source.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire local media: %w", err)
	}
	util.LogDebug("local stream %s with %d track(s)", local.ID, len(local.Tracks))

	router := signaling.NewRouter(signaling.RouterConfig{
		Room:    c.cfg.Room,
		Channel: c.cfg.Channel,
		NewNegotiator: func() (signaling.Negotiator, error) {
			return c.cfg.NewNegotiator(local)
		},
		NegotiationTimeout: c.cfg.NegotiationTimeout,
		Mesh:               c.cfg.Mesh,
		Hooks: signaling.Hooks{
			OnState:  c.peerState,
			OnStream: c.remoteStream,
		},
	})
	c.mu.Lock()
	c.router = router
	c.mu.Unlock()

	errc := make(chan error, 1)
	go func() { errc <- router.Run(ctx) }()

	if err := router.Offer(ctx); err != nil {
		util.LogDebug("offer on join: %v", err)
	}
	return <-errc
}

// Peers reports the session state per remote peer.
func (c *Coordinator) Peers(ctx context.Context) (map[signaling.PeerID]signaling.State, error) {
	c.mu.Lock()
	router := c.router
	c.mu.Unlock()
	if router == nil {
		return nil, errors.New("not joined")
	}
	return router.Snapshot(ctx)
}

func (c *Coordinator) peerState(peer signaling.PeerID, state signaling.State) {
	c.mu.Lock()
	fn := c.onState
	c.mu.Unlock()
	if fn != nil {
		fn(peer, state)
	}
}

func (c *Coordinator) remoteStream(peer signaling.PeerID, stream *media.RemoteStream) {
	c.mu.Lock()
	fn := c.onStream
	c.mu.Unlock()
	if fn != nil {
		go fn(peer, stream)
		return
	}
	go drain(stream)
}

// drain consumes every track of stream, counting the bytes received.
func drain(stream *media.RemoteStream) {
	for track := range stream.Tracks() {
		go drainTrack(track)
	}
}

func drainTrack(track *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		n, _, err := track.Read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				util.LogDebug("track %s: %v", track.ID(), err)
			}
			return
		}
		util.Stats.AddMedia(n)
	}
}
