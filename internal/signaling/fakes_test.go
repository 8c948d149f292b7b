package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/1ureka/meshcall/internal/media"
)

var errFakeRejected = errors.New("fake: description rejected")

// fakeNegotiator records what the router feeds it. When gate is non-nil,
// CreateOffer and SetRemoteDescription wait for it to be closed.
type fakeNegotiator struct {
	id   int
	gate chan struct{}

	mu          sync.Mutex
	remotes     []json.RawMessage
	candidates  []json.RawMessage
	closed      bool
	onCandidate func(json.RawMessage)
	onStream    func(*media.RemoteStream)
	onConnected func()
	onClose     func()
}

var _ Negotiator = (*fakeNegotiator)(nil)

func (n *fakeNegotiator) wait(ctx context.Context) error {
	if n.gate == nil {
		return nil
	}
	select {
	case <-n.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *fakeNegotiator) CreateOffer(ctx context.Context) (json.RawMessage, error) {
	if err := n.wait(ctx); err != nil {
		return nil, err
	}
	return json.RawMessage(fmt.Sprintf(`{"type":"offer","sdp":"offer-%d"}`, n.id)), nil
}

func (n *fakeNegotiator) CreateAnswer(ctx context.Context) (json.RawMessage, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.remotes) == 0 {
		return nil, errors.New("fake: no remote offer")
	}
	return json.RawMessage(fmt.Sprintf(`{"type":"answer","sdp":"answer-%d"}`, n.id)), nil
}

func (n *fakeNegotiator) SetRemoteDescription(ctx context.Context, desc json.RawMessage) error {
	if err := n.wait(ctx); err != nil {
		return err
	}
	if bytes.Contains(desc, []byte("reject")) {
		return errFakeRejected
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.remotes = append(n.remotes, desc)
	return nil
}

func (n *fakeNegotiator) AddICECandidate(c json.RawMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.candidates = append(n.candidates, c)
	return nil
}

func (n *fakeNegotiator) OnICECandidate(fn func(json.RawMessage)) {
	n.mu.Lock()
	n.onCandidate = fn
	n.mu.Unlock()
}

func (n *fakeNegotiator) OnRemoteStream(fn func(*media.RemoteStream)) {
	n.mu.Lock()
	n.onStream = fn
	n.mu.Unlock()
}

func (n *fakeNegotiator) OnConnected(fn func()) {
	n.mu.Lock()
	n.onConnected = fn
	n.mu.Unlock()
}

func (n *fakeNegotiator) OnClose(fn func()) {
	n.mu.Lock()
	n.onClose = fn
	n.mu.Unlock()
}

func (n *fakeNegotiator) Close() error {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	return nil
}

func (n *fakeNegotiator) emitCandidate(c string) {
	n.mu.Lock()
	fn := n.onCandidate
	n.mu.Unlock()
	fn(json.RawMessage(c))
}

func (n *fakeNegotiator) emitStream(s *media.RemoteStream) {
	n.mu.Lock()
	fn := n.onStream
	n.mu.Unlock()
	fn(s)
}

func (n *fakeNegotiator) emitConnected() {
	n.mu.Lock()
	fn := n.onConnected
	n.mu.Unlock()
	fn()
}

func (n *fakeNegotiator) emitClose() {
	n.mu.Lock()
	fn := n.onClose
	n.mu.Unlock()
	fn()
}

func (n *fakeNegotiator) snapshot() (remotes, candidates []string, closed bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, r := range n.remotes {
		remotes = append(remotes, string(r))
	}
	for _, c := range n.candidates {
		candidates = append(candidates, string(c))
	}
	return remotes, candidates, n.closed
}

func (n *fakeNegotiator) isClosed() bool {
	_, _, closed := n.snapshot()
	return closed
}

// fakeFactory hands out fakeNegotiators and remembers them in order.
type fakeFactory struct {
	gated bool

	mu   sync.Mutex
	negs []*fakeNegotiator
}

func (f *fakeFactory) New() (Negotiator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := &fakeNegotiator{id: len(f.negs)}
	if f.gated {
		n.gate = make(chan struct{})
	}
	f.negs = append(f.negs, n)
	return n, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.negs)
}

// nth waits for the i-th negotiator to be created.
func (f *fakeFactory) nth(t *testing.T, i int) *fakeNegotiator {
	t.Helper()
	waitFor(t, fmt.Sprintf("negotiator #%d", i), func() bool { return f.count() > i })
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.negs[i]
}

// fakeChannel hands deliveries straight to the router: a send on in returns
// once the router has taken the delivery.
type fakeChannel struct {
	self PeerID
	in   chan Delivery
	sent chan Envelope
}

var _ Channel = (*fakeChannel)(nil)

func newFakeChannel(self PeerID) *fakeChannel {
	return &fakeChannel{
		self: self,
		in:   make(chan Delivery),
		sent: make(chan Envelope, 64),
	}
}

func (c *fakeChannel) Self() PeerID { return c.self }

func (c *fakeChannel) Broadcast(ctx context.Context, env Envelope) error {
	select {
	case c.sent <- env:
		return nil
	default:
		return errors.New("fake: send buffer full")
	}
}

func (c *fakeChannel) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	return c.in, nil
}

// memBus is an in-memory broadcast channel shared by several peers.
type memBus struct {
	mu   sync.Mutex
	subs map[chan Delivery]struct{}
}

func newMemBus() *memBus {
	return &memBus{subs: make(map[chan Delivery]struct{})}
}

type memChannel struct {
	bus  *memBus
	self PeerID
}

var _ Channel = (*memChannel)(nil)

func (b *memBus) join(self PeerID) *memChannel {
	return &memChannel{bus: b, self: self}
}

func (c *memChannel) Self() PeerID { return c.self }

// Broadcast drops the message for a subscriber whose buffer is full, like a
// lossy transport would.
func (c *memChannel) Broadcast(ctx context.Context, env Envelope) error {
	c.bus.mu.Lock()
	defer c.bus.mu.Unlock()
	for ch := range c.bus.subs {
		select {
		case ch <- Delivery{Peer: c.self, Envelope: env}:
		default:
		}
	}
	return nil
}

func (c *memChannel) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	ch := make(chan Delivery, 256)
	c.bus.mu.Lock()
	c.bus.subs[ch] = struct{}{}
	c.bus.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.bus.mu.Lock()
		delete(c.bus.subs, ch)
		close(ch)
		c.bus.mu.Unlock()
	}()
	return ch, nil
}

// waitFor polls cond until it holds or the test deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
