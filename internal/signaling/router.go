package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/1ureka/meshcall/internal/media"
	"github.com/1ureka/meshcall/internal/room"
	"github.com/1ureka/meshcall/internal/util"
)

// Negotiator is the per-peer negotiation capability a Router drives.
// Descriptions and candidates are opaque JSON.
type Negotiator interface {
	CreateOffer(ctx context.Context) (json.RawMessage, error)
	CreateAnswer(ctx context.Context) (json.RawMessage, error)
	SetRemoteDescription(ctx context.Context, desc json.RawMessage) error
	AddICECandidate(candidate json.RawMessage) error

	OnICECandidate(fn func(candidate json.RawMessage))
	OnRemoteStream(fn func(stream *media.RemoteStream))
	OnConnected(fn func())
	OnClose(fn func())

	Close() error
}

// Hooks observe a Router. They run on the router goroutine and must not block.
type Hooks struct {
	OnState  func(peer PeerID, state State)
	OnStream func(peer PeerID, stream *media.RemoteStream)
}

// RouterConfig configures a Router.
type RouterConfig struct {
	Room          room.ID
	Channel       Channel
	NewNegotiator func() (Negotiator, error)

	// NegotiationTimeout closes a session whose media is not up in time.
	// Zero disables it.
	NegotiationTimeout time.Duration

	// Mesh sends a directed offer to every peer that answers our broadcast
	// offer after it was already taken, so that late answerers connect too.
	Mesh bool

	Hooks Hooks
}

// Router owns every peer session of one room. All session state lives on the
// goroutine running Run; negotiation steps run asynchronously and report back
// to it, so a slow peer never holds up the others.
type Router struct {
	room          room.ID
	self          PeerID
	ch            Channel
	newNegotiator func() (Negotiator, error)
	timeout       time.Duration
	mesh          bool
	hooks         Hooks

	ctx      context.Context
	sessions map[PeerID]*session
	open     *session            // our broadcast offer until somebody answers it
	offered  map[string]struct{} // tags of every broadcast offer that went out

	events   chan func()
	done     chan struct{}
	doneOnce sync.Once
	running  atomic.Bool
}

// NewRouter creates a Router for cfg.Room. Call Run to start it.
func NewRouter(cfg RouterConfig) *Router {
	return &Router{
		room:          cfg.Room,
		self:          cfg.Channel.Self(),
		ch:            cfg.Channel,
		newNegotiator: cfg.NewNegotiator,
		timeout:       cfg.NegotiationTimeout,
		mesh:          cfg.Mesh,
		hooks:         cfg.Hooks,
		sessions:      make(map[PeerID]*session),
		offered:       make(map[string]struct{}),
		events:        make(chan func()),
		done:          make(chan struct{}),
	}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Run subscribes to the room and processes signals until ctx is cancelled
// (leaving the room) or the channel fails. Every session is closed and the
// subscription released before Run returns.
func (r *Router) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return errors.New("router already running")
	}
	r.ctx = ctx

	subCtx, unsubscribe := context.WithCancel(ctx)
	defer unsubscribe()

	deliveries, err := r.ch.Subscribe(subCtx)
	if err != nil {
		r.teardown("subscribe failed")
		return fmt.Errorf("subscribe to room %s: %w", r.room, err)
	}
	util.LogDebug("joined room %s as %s", r.room, r.self)

	for {
		select {
		case d, ok := <-deliveries:
			if !ok {
				r.teardown("channel closed")
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("room %s: %w", r.room, ErrClosed)
			}
			r.receive(d)

		case fn := <-r.events:
			fn()

		case <-ctx.Done():
			r.teardown("left room")
			return nil
		}
	}
}

// Done returns a channel that is closed once the router has shut down.
func (r *Router) Done() <-chan struct{} {
	return r.done
}

// teardown closes every session. Posts from negotiators racing with it are
// discarded once done is closed.
func (r *Router) teardown(reason string) {
	all := make([]*session, 0, len(r.sessions)+1)
	for _, s := range r.sessions {
		all = append(all, s)
	}
	if r.open != nil {
		all = append(all, r.open)
	}
	for _, s := range all {
		r.retire(s)
	}
	r.sessions = make(map[PeerID]*session)
	r.open = nil
	r.doneOnce.Do(func() { close(r.done) })

	var wg sync.WaitGroup
	for _, s := range all {
		s := s
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.neg.Close(); err != nil {
				util.LogDebug("peer %s: close negotiator: %v", s.peer, err)
			}
		}()
	}
	wg.Wait()

	util.LogDebug("room %s: %d session(s) closed (%s)", r.room, len(all), reason)
}

// post runs fn on the router goroutine. It is dropped if the router is gone.
func (r *Router) post(fn func()) {
	select {
	case r.events <- fn:
	case <-r.done:
	}
}

// call runs fn on the router goroutine and waits for its result.
func (r *Router) call(ctx context.Context, fn func() error) error {
	errCh := make(chan error, 1)
	select {
	case r.events <- func() { errCh <- fn() }:
		return <-errCh
	case <-r.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ---------------------------------------------------------------------------
// API
// ---------------------------------------------------------------------------

// Offer broadcasts an offer to whoever is in the room; the first peer to
// answer it gets the session. It is what a peer does when it joins. At most
// one such offer is outstanding at a time.
func (r *Router) Offer(ctx context.Context) error {
	return r.call(ctx, func() error { return r.startOffer("") })
}

// Snapshot returns the state of every session, keyed by peer. A broadcast
// offer nobody answered yet is listed under the empty PeerID.
func (r *Router) Snapshot(ctx context.Context) (map[PeerID]State, error) {
	var out map[PeerID]State
	err := r.call(ctx, func() error {
		out = make(map[PeerID]State, len(r.sessions)+1)
		for peer, s := range r.sessions {
			out[peer] = s.state
		}
		if r.open != nil {
			out[""] = r.open.state
		}
		return nil
	})
	return out, err
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

// newSession creates a session and routes its negotiator's events back onto
// the router goroutine.
func (r *Router) newSession(peer PeerID) (*session, error) {
	neg, err := r.newNegotiator()
	if err != nil {
		return nil, fmt.Errorf("create negotiator: %w", err)
	}

	ctx, cancel := context.WithCancel(r.ctx)
	s := &session{
		peer:    peer,
		neg:     neg,
		ctx:     ctx,
		cancel:  cancel,
		applied: make(map[uint64]struct{}),
	}

	neg.OnICECandidate(func(c json.RawMessage) {
		r.post(func() { r.localCandidate(s, c) })
	})
	neg.OnRemoteStream(func(stream *media.RemoteStream) {
		r.post(func() { r.remoteStream(s, stream) })
	})
	neg.OnConnected(func() {
		r.post(func() { r.mediaConnected(s) })
	})
	neg.OnClose(func() {
		r.post(func() { r.close(s, "media connection closed") })
	})

	return s, nil
}

// register files s under its peer and starts its negotiation deadline.
func (r *Router) register(s *session) {
	r.sessions[s.peer] = s
	if r.timeout > 0 {
		s.timer = time.AfterFunc(r.timeout, func() {
			r.post(func() {
				if !s.mediaUp {
					r.close(s, "negotiation timed out")
				}
			})
		})
	}
}

// bind hands our broadcast offer to the peer that answered it.
func (r *Router) bind(peer PeerID) *session {
	s := r.open
	r.open = nil
	s.peer = peer
	r.register(s)
	util.LogInfo("peer %s answered our offer", peer)
	return s
}

func (r *Router) setState(s *session, to State) bool {
	if !canTransition(s.state, to) {
		util.LogWarning("peer %s: unexpected transition %s → %s ignored", s.peer, s.state, to)
		return false
	}
	util.LogDebug("peer %s: %s → %s", s.peer, s.state, to)
	s.state = to
	if r.hooks.OnState != nil {
		r.hooks.OnState(s.peer, to)
	}
	return true
}

// retire marks s closed and forgets it without closing its negotiator.
func (r *Router) retire(s *session) bool {
	if s.state == StateClosed {
		return false
	}
	r.setState(s, StateClosed)
	s.cancel()
	if s.timer != nil {
		s.timer.Stop()
	}
	if r.open == s {
		r.open = nil
	}
	if cur, ok := r.sessions[s.peer]; ok && cur == s {
		delete(r.sessions, s.peer)
	}
	if s.mediaUp {
		util.Stats.RemovePeer()
	}
	return true
}

// close ends a single session.
func (r *Router) close(s *session, reason string) {
	if !r.retire(s) {
		return
	}
	util.LogInfo("peer %s: session closed (%s)", s.peer, reason)
	go func() {
		if err := s.neg.Close(); err != nil {
			util.LogDebug("peer %s: close negotiator: %v", s.peer, err)
		}
	}()
}

func (r *Router) remoteStream(s *session, stream *media.RemoteStream) {
	if s.state == StateClosed {
		return
	}
	util.LogInfo("peer %s: remote stream %s available", s.peer, stream.ID)
	if r.hooks.OnStream != nil {
		r.hooks.OnStream(s.peer, stream)
	}
}

func (r *Router) mediaConnected(s *session) {
	if s.state == StateClosed || s.mediaUp {
		return
	}
	s.mediaUp = true
	if s.timer != nil {
		s.timer.Stop()
	}
	util.Stats.AddPeer()
	util.LogSuccess("peer %s: media connected", s.peer)
}
