package signaling

import (
	"context"
	"encoding/json"
	"time"
)

// State is the negotiation state of a peer session.
type State int

const (
	StateIdle State = iota
	StateAwaitingLocalAnswer
	StateAwaitingRemoteAnswer
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAwaitingLocalAnswer:
		return "AwaitingLocalAnswer"
	case StateAwaitingRemoteAnswer:
		return "AwaitingRemoteAnswer"
	case StateConnected:
		return "Connected"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// transitions lists the legal moves; Closed is reachable from anywhere.
var transitions = map[State][]State{
	StateIdle:                 {StateAwaitingRemoteAnswer, StateAwaitingLocalAnswer},
	StateAwaitingLocalAnswer:  {StateConnected},
	StateAwaitingRemoteAnswer: {StateConnected},
}

func canTransition(from, to State) bool {
	if to == StateClosed {
		return from != StateClosed
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// session is the negotiation with one remote peer. It is owned by the
// router's loop goroutine and never touched elsewhere.
type session struct {
	peer  PeerID // empty while our undirected offer has no answerer
	sid   string // negotiation tag, see Envelope.Session
	state State
	neg   Negotiator

	ctx    context.Context
	cancel context.CancelFunc
	timer  *time.Timer

	// answeredBroadcast marks a session created by answering an undirected
	// offer; a later offer addressed to us by the same peer replaces it.
	answeredBroadcast bool

	answerSeen bool // an ANSWER is being or has been applied
	remoteSet  bool // remote description applied; candidates go straight in
	localSent  bool // local description broadcast; candidates may follow
	mediaUp    bool

	pending []json.RawMessage   // remote candidates awaiting the remote description
	outbox  []json.RawMessage   // local candidates awaiting the local description
	applied map[uint64]struct{} // fingerprints of applied remote candidates
}

// matches reports whether a message tagged sid belongs to this negotiation.
func (s *session) matches(sid string) bool {
	return sid == "" || s.sid == "" || sid == s.sid
}
