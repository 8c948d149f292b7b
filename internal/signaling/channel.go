package signaling

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrClosed is returned when using a channel or router that has shut down.
var ErrClosed = errors.New("signaling closed")

// Channel is the broadcast medium of a room. Delivery is best-effort with no
// ordering across senders, and every subscriber receives every message,
// including the ones it sent itself.
type Channel interface {
	// Self is the identity the channel stamps on our own messages.
	Self() PeerID

	// Broadcast sends env to every subscriber.
	Broadcast(ctx context.Context, env Envelope) error

	// Subscribe delivers received envelopes until ctx is cancelled or the
	// channel fails, then closes the returned channel.
	Subscribe(ctx context.Context) (<-chan Delivery, error)
}

// Delivery is a received envelope with the sender supplied by the channel.
type Delivery struct {
	Peer PeerID
	Envelope
}

// FrameHello is the control frame type the relay sends first, announcing the
// identity it assigned to the connection.
const FrameHello = "hello"

// Frame is the JSON structure exchanged with the relay over the WebSocket.
// Peer is always stamped by the relay; whatever a client puts there is
// overwritten.
type Frame struct {
	Peer    PeerID          `json:"peer,omitempty"`
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message,omitempty"`
	To      PeerID          `json:"to,omitempty"`
	Session string          `json:"sid,omitempty"`
}
