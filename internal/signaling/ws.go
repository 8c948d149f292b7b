package signaling

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	helloWait    = 10 * time.Second
	maxFrameSize = 64 * 1024
)

// WSChannel is a Channel backed by a WebSocket connection to a relay that
// fans every frame out to every connection.
type WSChannel struct {
	conn     *websocket.Conn
	self     PeerID
	outgoing chan Frame

	mu   sync.Mutex
	subs map[*subscriber]struct{}

	done      chan struct{}
	closeOnce sync.Once
	err       error
}

type subscriber struct {
	ctx context.Context
	ch  chan Delivery
}

var _ Channel = (*WSChannel)(nil)

// Dial connects to the relay at url and waits for it to announce our
// identity.
func Dial(ctx context.Context, url string) (*WSChannel, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to relay: %w", err)
	}
	conn.SetReadLimit(maxFrameSize)

	deadline := time.Now().Add(helloWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetReadDeadline(deadline)

	var hello Frame
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read relay hello: %w", err)
	}
	if hello.Type != FrameHello || hello.Peer == "" {
		conn.Close()
		return nil, fmt.Errorf("unexpected first frame %q from relay", hello.Type)
	}

	c := &WSChannel{
		conn:     conn,
		self:     hello.Peer,
		outgoing: make(chan Frame, 16),
		subs:     make(map[*subscriber]struct{}),
		done:     make(chan struct{}),
	}

	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	return c, nil
}

// Self returns the identity the relay assigned to this connection.
func (c *WSChannel) Self() PeerID {
	return c.self
}

// Broadcast queues env for the relay.
func (c *WSChannel) Broadcast(ctx context.Context, env Envelope) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	frame := Frame{Type: env.Type, Message: env.Message, To: env.To, Session: env.Session}
	select {
	case c.outgoing <- frame:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns a channel of every frame the relay forwards from now on.
func (c *WSChannel) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	sub := &subscriber{ctx: ctx, ch: make(chan Delivery, 64)}

	c.mu.Lock()
	if c.subs == nil {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.subs[sub] = struct{}{}
	c.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-c.done:
			return
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[sub]; ok {
			delete(c.subs, sub)
			close(sub.ch)
		}
	}()

	return sub.ch, nil
}

// Done is closed once the connection is gone.
func (c *WSChannel) Done() <-chan struct{} {
	return c.done
}

// Err reports why the connection ended, or nil after Close.
func (c *WSChannel) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close says goodbye to the relay and ends every subscription.
func (c *WSChannel) Close() error {
	c.shutdown(nil)
	return nil
}

func (c *WSChannel) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.err = err
		close(c.done)

		c.mu.Lock()
		for sub := range c.subs {
			close(sub.ch)
		}
		c.subs = nil
		c.mu.Unlock()
	})
}

func (c *WSChannel) readPump() {
	defer c.conn.Close()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var frame Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = ErrClosed
			}
			c.shutdown(fmt.Errorf("relay connection lost: %w", err))
			return
		}
		if frame.Type == FrameHello {
			continue
		}
		c.deliver(Delivery{
			Peer:     frame.Peer,
			Envelope: Envelope{Type: frame.Type, Message: frame.Message, To: frame.To, Session: frame.Session},
		})
	}
}

// deliver hands d to every subscriber. A subscriber that stops reading only
// holds up the others until its context ends.
func (c *WSChannel) deliver(d Delivery) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for sub := range c.subs {
		select {
		case sub.ch <- d:
		case <-sub.ctx.Done():
		case <-c.done:
			return
		}
	}
}

func (c *WSChannel) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(frame); err != nil {
				c.shutdown(fmt.Errorf("write to relay: %w", err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown(fmt.Errorf("ping relay: %w", err))
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
