// Package signaling turns a broadcast-only room channel into pairwise
// offer/answer/ICE negotiation between the peers of that room.
package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/1ureka/meshcall/internal/room"
)

var (
	// ErrMalformedType is returned for envelopes whose type is not "<room>:<KIND>".
	ErrMalformedType = errors.New("malformed message type")

	// ErrForeignRoom is returned for envelopes tagged with another room.
	ErrForeignRoom = errors.New("message for another room")

	// ErrUnknownKind is returned for envelopes of an unsupported kind.
	ErrUnknownKind = errors.New("unknown message kind")
)

// PeerID identifies a participant as seen by the broadcast channel. It is
// ephemeral: a peer that reconnects is a new peer.
type PeerID string

// String prints the empty id, meaning "anyone in the room", as "*".
func (p PeerID) String() string {
	if p == "" {
		return "*"
	}
	return string(p)
}

// Kind is the negotiation step a message carries.
type Kind string

const (
	KindOffer     Kind = "OFFER"
	KindAnswer    Kind = "ANSWER"
	KindCandidate Kind = "ICE_CANDIDATE"
)

// Envelope is the broadcast message shape. Type is "<room>:<KIND>"; Message
// is the opaque negotiation payload. To optionally addresses one peer; every
// subscriber still receives the envelope.
//
// Session tags the negotiation a message belongs to. The offerer picks it;
// the answer and the candidates of both sides repeat it, so a late message
// from an earlier negotiation with the same peer is told apart. Messages
// without a tag match any negotiation.
type Envelope struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message,omitempty"`
	To      PeerID          `json:"to,omitempty"`
	Session string          `json:"sid,omitempty"`
}

// Signal is a decoded envelope: one of Offer, Answer or Candidate.
type Signal interface {
	Kind() Kind
}

// Offer carries a remote session description offering a session.
type Offer struct{ Payload json.RawMessage }

// Answer carries a remote session description answering our offer.
type Answer struct{ Payload json.RawMessage }

// Candidate carries one remote ICE candidate.
type Candidate struct{ Payload json.RawMessage }

func (Offer) Kind() Kind     { return KindOffer }
func (Answer) Kind() Kind    { return KindAnswer }
func (Candidate) Kind() Kind { return KindCandidate }

func payloadOf(s Signal) json.RawMessage {
	switch s := s.(type) {
	case Offer:
		return s.Payload
	case Answer:
		return s.Payload
	case Candidate:
		return s.Payload
	}
	return nil
}

// Encode wraps s into an envelope namespaced by r and addressed to `to`
// (empty for everyone).
func Encode(r room.ID, s Signal, to PeerID) Envelope {
	return Envelope{
		Type:    fmt.Sprintf("%s:%s", r, s.Kind()),
		Message: payloadOf(s),
		To:      to,
	}
}

// Decode classifies env for room r. Room tags must match exactly.
func Decode(r room.ID, env Envelope) (Signal, error) {
	i := strings.LastIndexByte(env.Type, ':')
	if i <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrMalformedType, env.Type)
	}
	if room.ID(env.Type[:i]) != r {
		return nil, fmt.Errorf("%w: %q", ErrForeignRoom, env.Type[:i])
	}

	switch Kind(env.Type[i+1:]) {
	case KindOffer:
		return Offer{Payload: env.Message}, nil
	case KindAnswer:
		return Answer{Payload: env.Message}, nil
	case KindCandidate:
		return Candidate{Payload: env.Message}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type[i+1:])
	}
}
