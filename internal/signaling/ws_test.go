package signaling_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/1ureka/meshcall/internal/relay"
	"github.com/1ureka/meshcall/internal/signaling"
)

func startRelay(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := relay.NewHub()
	go hub.Run(ctx)
	srv := httptest.NewServer(relay.NewServer(hub))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *signaling.WSChannel {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	ch, err := signaling.Dial(ctx, url)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { ch.Close() })
	return ch
}

func next(t *testing.T, deliveries <-chan signaling.Delivery) signaling.Delivery {
	t.Helper()
	select {
	case d, ok := <-deliveries:
		if !ok {
			t.Fatal("subscription closed")
		}
		return d
	case <-time.After(3 * time.Second):
		t.Fatal("nothing delivered")
	}
	return signaling.Delivery{}
}

func TestWSChannelBroadcastReachesEveryone(t *testing.T) {
	url := startRelay(t)
	a, b := dial(t, url), dial(t, url)
	if a.Self() == "" || a.Self() == b.Self() {
		t.Fatalf("ids %q and %q", a.Self(), b.Self())
	}

	ctx := context.Background()
	subA, err := a.Subscribe(ctx)
	if err != nil {
		t.Fatal(err)
	}
	subB, err := b.Subscribe(ctx)
	if err != nil {
		t.Fatal(err)
	}

	env := signaling.Envelope{
		Type:    "x-ray-table-rotten:OFFER",
		Message: json.RawMessage(`{"type":"offer","sdp":"v=0"}`),
		To:      b.Self(),
		Session: "neg-1",
	}
	if err := a.Broadcast(ctx, env); err != nil {
		t.Fatal(err)
	}

	for name, sub := range map[string]<-chan signaling.Delivery{"a": subA, "b": subB} {
		d := next(t, sub)
		if d.Peer != a.Self() {
			t.Errorf("%s: from %s, want %s", name, d.Peer, a.Self())
		}
		if d.Type != env.Type || d.To != env.To || d.Session != env.Session || string(d.Message) != string(env.Message) {
			t.Errorf("%s: got %+v", name, d.Envelope)
		}
	}
}

func TestWSChannelUnsubscribe(t *testing.T) {
	url := startRelay(t)
	a := dial(t, url)

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := a.Subscribe(ctx)
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case _, ok := <-sub:
		if ok {
			t.Fatal("delivery after unsubscribe")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("subscription not closed")
	}
}

func TestWSChannelClose(t *testing.T) {
	url := startRelay(t)
	a := dial(t, url)
	sub, err := a.Subscribe(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	a.Close()
	if _, ok := <-sub; ok {
		t.Fatal("subscription open after Close")
	}
	<-a.Done()
	if err := a.Broadcast(context.Background(), signaling.Envelope{Type: "r:OFFER"}); !errors.Is(err, signaling.ErrClosed) {
		t.Fatalf("Broadcast after Close = %v, want ErrClosed", err)
	}
	if _, err := a.Subscribe(context.Background()); !errors.Is(err, signaling.ErrClosed) {
		t.Fatalf("Subscribe after Close = %v, want ErrClosed", err)
	}
}

func TestDialRejectsNonRelay(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := signaling.Dial(ctx, "ws://127.0.0.1:1/ws"); err == nil {
		t.Fatal("Dial to a closed port succeeded")
	}
}
