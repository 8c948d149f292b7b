// Package relay is the broadcast server peers signal through. It does not
// know about rooms or negotiation: every frame a peer sends is stamped with
// the sender's id and forwarded to every connected peer, the sender included.
package relay

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/1ureka/meshcall/internal/signaling"
	"github.com/1ureka/meshcall/internal/util"
)

// Hub owns the set of connected peers. All of it is managed by the Run
// goroutine.
type Hub struct {
	clients map[*client]struct{}

	register   chan *client
	unregister chan *client
	inbound    chan signaling.Frame

	metrics *metrics
	done    chan struct{}
}

// NewHub creates a Hub. Call Run to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		inbound:    make(chan signaling.Frame, 64),
		metrics:    newMetrics(),
		done:       make(chan struct{}),
	}
}

// Registry exposes the hub's Prometheus collectors.
func (h *Hub) Registry() *prometheus.Registry {
	return h.metrics.registry
}

// Run processes registrations and frames until ctx is cancelled, then drops
// every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.metrics.peers.Inc()
			util.LogDebug("peer %s connected from %s", c.id, c.conn.RemoteAddr())

			hello, _ := json.Marshal(signaling.Frame{Type: signaling.FrameHello, Peer: c.id})
			c.send <- hello

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.metrics.peers.Dec()
				util.LogDebug("peer %s disconnected", c.id)
			}

		case frame := <-h.inbound:
			h.fanOut(frame)

		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.metrics.peers.Set(0)
			return
		}
	}
}

// fanOut forwards frame to every peer. A peer whose queue is full misses it.
func (h *Hub) fanOut(frame signaling.Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.metrics.frames.WithLabelValues(resultMalformed).Inc()
		return
	}
	h.metrics.frames.WithLabelValues(resultRelayed).Inc()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.metrics.frames.WithLabelValues(resultDropped).Inc()
			util.LogWarning("peer %s is not keeping up, frame dropped", c.id)
		}
	}
	util.LogTrace("relayed %s from %s to %d peer(s)", frame.Type, frame.Peer, len(h.clients))
}

func newPeerID() signaling.PeerID {
	return signaling.PeerID(uuid.NewString())
}
