package signaling

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/1ureka/meshcall/internal/util"
)

// receive demultiplexes one delivery. It never fails: whatever does not
// concern this room and this peer is dropped, since stale, duplicate and
// foreign messages are normal on a broadcast channel.
func (r *Router) receive(d Delivery) {
	// Our own broadcast echoed back, or a sender the channel could not name.
	if d.Peer == r.self || d.Peer == "" {
		return
	}
	if d.To != "" && d.To != r.self {
		return
	}

	sig, err := Decode(r.room, d.Envelope)
	if err != nil {
		if errors.Is(err, ErrForeignRoom) {
			util.LogTrace("from %s: %v", d.Peer, err)
		} else {
			util.LogDebug("dropping message from %s: %v", d.Peer, err)
		}
		return
	}
	util.Stats.AddRecv()
	util.LogDebug("received %s from %s", sig.Kind(), d.Peer)

	switch sig := sig.(type) {
	case Offer:
		r.onOffer(d.Peer, sig.Payload, d.To != "", d.Session)
	case Answer:
		r.onAnswer(d.Peer, sig.Payload, d.Session)
	case Candidate:
		r.onCandidate(d.Peer, sig.Payload, d.Session)
	}
}

// onOffer opens a session answering peer. An offer for a peer we already
// have a session with is a duplicate, unless peer now addresses us directly
// after we answered its broadcast offer: it gave its offer to someone else
// and starts over with us.
func (r *Router) onOffer(peer PeerID, payload json.RawMessage, directed bool, sid string) {
	if s, ok := r.sessions[peer]; ok {
		if !directed || !s.answeredBroadcast {
			if s.state == StateConnected {
				util.LogWarning("peer %s: offer while connected ignored", peer)
			} else {
				util.LogDebug("peer %s: duplicate offer in state %s ignored", peer, s.state)
			}
			return
		}
		r.close(s, "superseded by a directed offer")
	}

	s, err := r.newSession(peer)
	if err != nil {
		util.LogError("peer %s: %v", peer, err)
		return
	}
	s.sid = sid
	s.answeredBroadcast = !directed
	r.register(s)
	r.setState(s, StateAwaitingLocalAnswer)

	go func() {
		err := s.neg.SetRemoteDescription(s.ctx, payload)
		r.post(func() { r.offerApplied(s, err) })
	}()
}

func (r *Router) offerApplied(s *session, err error) {
	if s.state == StateClosed {
		return
	}
	if err != nil {
		util.LogWarning("peer %s: offer rejected: %v", s.peer, err)
		r.close(s, "offer rejected")
		return
	}
	s.remoteSet = true
	r.flushPending(s)

	go func() {
		answer, err := s.neg.CreateAnswer(s.ctx)
		r.post(func() { r.answerCreated(s, answer, err) })
	}()
}

// onAnswer applies an answer to the offer we made peer. Answers nobody is
// waiting for, or tagged with a negotiation other than the one waiting, are
// dropped.
func (r *Router) onAnswer(peer PeerID, payload json.RawMessage, sid string) {
	s, ok := r.sessions[peer]
	switch {
	case ok && s.state == StateAwaitingRemoteAnswer && !s.answerSeen && s.matches(sid):
		// answer to a directed offer
	case ok && r.winsCollision(s, peer, sid):
		r.close(s, "offer collision, keeping ours")
		s = r.bind(peer)
	case ok:
		util.LogDebug("peer %s: answer in state %s dropped", peer, s.state)
		return
	case r.open != nil && r.open.state == StateAwaitingRemoteAnswer && !r.open.answerSeen && r.open.matches(sid):
		s = r.bind(peer)
	case r.mesh && r.answersBroadcast(sid):
		util.LogDebug("peer %s answered an offer already taken, offering directly", peer)
		if err := r.startOffer(peer); err != nil {
			util.LogError("peer %s: %v", peer, err)
		}
		return
	default:
		util.LogDebug("peer %s: answer without a pending offer dropped", peer)
		return
	}

	s.answerSeen = true
	go func() {
		err := s.neg.SetRemoteDescription(s.ctx, payload)
		r.post(func() { r.answerApplied(s, err) })
	}()
}

// winsCollision decides the case where peer and we offered to the room at
// the same time and answered each other. Both sides compare the same pair of
// ids, so exactly one keeps its own offer and the other keeps its answer.
func (r *Router) winsCollision(s *session, peer PeerID, sid string) bool {
	return s.answeredBroadcast &&
		r.open != nil &&
		r.open.state == StateAwaitingRemoteAnswer &&
		!r.open.answerSeen &&
		r.open.matches(sid) &&
		r.self < peer
}

// answersBroadcast reports whether an answer tagged sid replies to one of our
// broadcast offers.
func (r *Router) answersBroadcast(sid string) bool {
	if sid == "" {
		return len(r.offered) > 0
	}
	_, ok := r.offered[sid]
	return ok
}

func (r *Router) answerApplied(s *session, err error) {
	if s.state == StateClosed {
		return
	}
	if err != nil {
		// Stay put; the peer may send a usable answer again.
		s.answerSeen = false
		util.LogWarning("peer %s: answer rejected: %v", s.peer, err)
		return
	}
	s.remoteSet = true
	r.setState(s, StateConnected)
	r.flushPending(s)
}

// onCandidate applies a remote candidate, or holds it until the remote
// description is in place.
func (r *Router) onCandidate(peer PeerID, payload json.RawMessage, sid string) {
	s, ok := r.sessions[peer]
	if !ok {
		util.LogDebug("peer %s: candidate without a session dropped", peer)
		return
	}
	if !s.matches(sid) {
		util.LogDebug("peer %s: candidate from an earlier negotiation dropped", peer)
		return
	}
	if !s.remoteSet {
		s.pending = append(s.pending, payload)
		return
	}
	r.applyCandidate(s, payload)
}

func (r *Router) flushPending(s *session) {
	pending := s.pending
	s.pending = nil
	for _, c := range pending {
		r.applyCandidate(s, c)
	}
}

// applyCandidate adds a candidate once; repeats are ignored.
func (r *Router) applyCandidate(s *session, payload json.RawMessage) {
	key := util.Fingerprint(payload)
	if _, dup := s.applied[key]; dup {
		return
	}
	s.applied[key] = struct{}{}
	if err := s.neg.AddICECandidate(payload); err != nil {
		util.LogWarning("peer %s: %v", s.peer, fmt.Errorf("candidate not applied: %w", err))
	}
}
