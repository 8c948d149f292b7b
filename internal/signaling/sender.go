package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/1ureka/meshcall/internal/util"
)

// send broadcasts sig for s, tagged with our room and s's negotiation and
// addressed to s's peer when known. Delivery is best-effort; a failed send is
// logged and not retried.
func (r *Router) send(s *session, sig Signal) {
	env := Encode(r.room, sig, s.peer)
	env.Session = s.sid
	if err := r.ch.Broadcast(r.ctx, env); err != nil {
		util.LogWarning("broadcast %s: %v", env.Type, err)
		return
	}
	util.Stats.AddSent()
	util.LogDebug("sent %s to %s", sig.Kind(), s.peer)
}

// startOffer opens a session offering to target, or to the whole room when
// target is empty.
func (r *Router) startOffer(target PeerID) error {
	if target == "" && r.open != nil {
		return nil
	}

	s, err := r.newSession(target)
	if err != nil {
		return err
	}
	s.sid = uuid.NewString()
	if target == "" {
		r.open = s
	} else {
		r.register(s)
	}

	go func() {
		offer, err := s.neg.CreateOffer(s.ctx)
		r.post(func() { r.offerCreated(s, offer, err) })
	}()
	return nil
}

func (r *Router) offerCreated(s *session, offer json.RawMessage, err error) {
	if s.state == StateClosed {
		return
	}
	if err != nil {
		r.close(s, fmt.Sprintf("create offer: %v", err))
		return
	}
	r.send(s, Offer{Payload: offer})
	if s.peer == "" {
		r.offered[s.sid] = struct{}{}
	}
	s.localSent = true
	r.setState(s, StateAwaitingRemoteAnswer)
	r.flushOutbox(s)
}

func (r *Router) answerCreated(s *session, answer json.RawMessage, err error) {
	if s.state == StateClosed {
		return
	}
	if err != nil {
		r.close(s, fmt.Sprintf("create answer: %v", err))
		return
	}
	r.send(s, Answer{Payload: answer})
	s.localSent = true
	r.setState(s, StateConnected)
	r.flushOutbox(s)
}

// localCandidate forwards a candidate our negotiator gathered. Candidates are
// held back until our description is on the wire so a peer never receives a
// candidate for a negotiation it has not heard of.
func (r *Router) localCandidate(s *session, c json.RawMessage) {
	if s.state == StateClosed {
		return
	}
	if !s.localSent {
		s.outbox = append(s.outbox, c)
		return
	}
	r.send(s, Candidate{Payload: c})
}

func (r *Router) flushOutbox(s *session) {
	outbox := s.outbox
	s.outbox = nil
	for _, c := range outbox {
		r.send(s, Candidate{Payload: c})
	}
}
