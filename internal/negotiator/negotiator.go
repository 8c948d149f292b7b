// Package negotiator wraps a pion PeerConnection as the per-peer negotiation
// capability. Descriptions and candidates cross its API as opaque JSON, the
// same shape they travel in over the broadcast channel.
package negotiator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/meshcall/internal/media"
	"github.com/1ureka/meshcall/internal/util"
)

var (
	// ErrDescriptionRejected marks a remote offer/answer that is structurally
	// invalid. It is reported upward and never retried.
	ErrDescriptionRejected = errors.New("description rejected")

	// ErrNoRemoteOffer is returned by CreateAnswer before an offer was applied.
	ErrNoRemoteOffer = errors.New("no remote offer applied")
)

// Negotiator drives one PeerConnection towards one remote peer.
//
// Callbacks may be registered at any time and are invoked from pion's
// goroutines.
type Negotiator struct {
	pc *webrtc.PeerConnection

	mu          sync.Mutex
	stream      *media.RemoteStream
	onCandidate func(json.RawMessage)
	onStream    func(*media.RemoteStream)
	onConnected func()
	onClose     func()

	connectedOnce sync.Once
	closeOnce     sync.Once
}

// New creates a Negotiator with the local tracks attached. Kinds the local
// stream lacks are still negotiated as receive-only so that a peer without a
// camera can watch others.
func (a *API) New(local *media.Stream) (*Negotiator, error) {
	pc, err := a.newPeerConnection()
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	n := &Negotiator{pc: pc}
	if err := n.attach(local); err != nil {
		pc.Close()
		return nil, err
	}

	pc.OnICECandidate(n.handleICECandidate)
	pc.OnTrack(n.handleTrack)
	pc.OnConnectionStateChange(n.handleConnectionState)

	return n, nil
}

func (n *Negotiator) attach(local *media.Stream) error {
	if local != nil {
		for _, track := range local.Tracks {
			sender, err := n.pc.AddTrack(track)
			if err != nil {
				return fmt.Errorf("add %s track: %w", track.Kind(), err)
			}
			// Read incoming RTCP packets
			go func() {
				rtcpBuf := make([]byte, 1500)
				for {
					if _, _, err := sender.Read(rtcpBuf); err != nil {
						return
					}
				}
			}()
		}
	}

	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		if local != nil && local.Has(kind) {
			continue
		}
		if _, err := n.pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			return fmt.Errorf("add %s transceiver: %w", kind, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Negotiation
// ---------------------------------------------------------------------------

// CreateOffer generates an offer and applies it as the local description.
func (n *Negotiator) CreateOffer(ctx context.Context) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	offer, err := n.pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	if err := n.pc.SetLocalDescription(offer); err != nil {
		return nil, fmt.Errorf("set local offer: %w", err)
	}
	return json.Marshal(offer)
}

// CreateAnswer generates an answer to the applied remote offer and applies it
// as the local description.
func (n *Negotiator) CreateAnswer(ctx context.Context) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n.pc.SignalingState() != webrtc.SignalingStateHaveRemoteOffer {
		return nil, ErrNoRemoteOffer
	}
	answer, err := n.pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("create answer: %w", err)
	}
	if err := n.pc.SetLocalDescription(answer); err != nil {
		return nil, fmt.Errorf("set local answer: %w", err)
	}
	return json.Marshal(answer)
}

// SetRemoteDescription applies a remote offer or answer.
func (n *Negotiator) SetRemoteDescription(ctx context.Context, payload json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	desc, err := parseDescription(payload)
	if err != nil {
		return err
	}
	if err := n.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote %s: %w", desc.Type, err)
	}
	return nil
}

// AddICECandidate applies a remote candidate. Candidates are best-effort, so
// callers log a failure and carry on.
func (n *Negotiator) AddICECandidate(payload json.RawMessage) error {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &init); err != nil {
		return fmt.Errorf("decode ICE candidate: %w", err)
	}
	if err := n.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("add ICE candidate: %w", err)
	}
	return nil
}

// parseDescription checks that payload is an offer or answer carrying a
// parsable SDP body.
func parseDescription(payload json.RawMessage) (webrtc.SessionDescription, error) {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(payload, &desc); err != nil {
		return desc, fmt.Errorf("%w: %v", ErrDescriptionRejected, err)
	}
	if desc.Type != webrtc.SDPTypeOffer && desc.Type != webrtc.SDPTypeAnswer {
		return desc, fmt.Errorf("%w: unsupported type %q", ErrDescriptionRejected, desc.Type)
	}
	if strings.TrimSpace(desc.SDP) == "" {
		return desc, fmt.Errorf("%w: missing sdp", ErrDescriptionRejected)
	}
	var parsed sdp.SessionDescription
	if err := parsed.UnmarshalString(desc.SDP); err != nil {
		return desc, fmt.Errorf("%w: %v", ErrDescriptionRejected, err)
	}
	return desc, nil
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

// OnICECandidate registers a callback for every local candidate, delivered
// one at a time as pion gathers them.
func (n *Negotiator) OnICECandidate(fn func(candidate json.RawMessage)) {
	n.mu.Lock()
	n.onCandidate = fn
	n.mu.Unlock()
}

// OnRemoteStream registers a callback fired once, when the first remote
// track of this negotiation arrives.
func (n *Negotiator) OnRemoteStream(fn func(stream *media.RemoteStream)) {
	n.mu.Lock()
	n.onStream = fn
	n.mu.Unlock()
}

// OnConnected registers a callback fired once the media connection is up.
func (n *Negotiator) OnConnected(fn func()) {
	n.mu.Lock()
	n.onConnected = fn
	n.mu.Unlock()
}

// OnClose registers a callback fired once the media connection fails or
// closes.
func (n *Negotiator) OnClose(fn func()) {
	n.mu.Lock()
	n.onClose = fn
	n.mu.Unlock()
}

func (n *Negotiator) handleICECandidate(c *webrtc.ICECandidate) {
	// nil marks the end of gathering; nothing to send.
	if c == nil {
		return
	}
	data, err := json.Marshal(c.ToJSON())
	if err != nil {
		util.LogWarning("encode local ICE candidate: %v", err)
		return
	}
	n.mu.Lock()
	fn := n.onCandidate
	n.mu.Unlock()
	if fn != nil {
		fn(data)
	}
}

func (n *Negotiator) handleTrack(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	n.mu.Lock()
	first := n.stream == nil
	if first {
		n.stream = media.NewRemoteStream(track.StreamID())
	}
	stream, fn := n.stream, n.onStream
	n.mu.Unlock()

	util.LogDebug("remote %s track %s (%s)", track.Kind(), track.ID(), track.Codec().MimeType)
	stream.Add(track)
	if first && fn != nil {
		fn(stream)
	}
}

func (n *Negotiator) handleConnectionState(state webrtc.PeerConnectionState) {
	util.LogDebug("PeerConnection state: %s", state.String())

	switch state {
	case webrtc.PeerConnectionStateConnected:
		n.connectedOnce.Do(func() {
			n.mu.Lock()
			fn := n.onConnected
			n.mu.Unlock()
			if fn != nil {
				fn()
			}
		})
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
		n.closeOnce.Do(func() {
			n.mu.Lock()
			fn, stream := n.onClose, n.stream
			n.mu.Unlock()
			if stream != nil {
				stream.Close()
			}
			if fn != nil {
				fn()
			}
		})
	}
}

// Close shuts down the PeerConnection. Safe to call multiple times.
func (n *Negotiator) Close() error {
	err := n.pc.Close()
	n.mu.Lock()
	stream := n.stream
	n.mu.Unlock()
	if stream != nil {
		stream.Close()
	}
	return err
}
