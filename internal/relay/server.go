package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/1ureka/meshcall/internal/util"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server exposes a Hub over HTTP: peers connect at /ws, metrics are served at
// /metrics.
type Server struct {
	hub *Hub
	mux *http.ServeMux
}

// NewServer wires the HTTP routes of hub.
func NewServer(hub *Hub) *Server {
	s := &Server{hub: hub, mux: http.NewServeMux()}
	s.mux.HandleFunc("/ws", s.handleWS)
	s.mux.Handle("/metrics", promhttp.HandlerFor(hub.Registry(), promhttp.HandlerOpts{}))
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		util.LogDebug("websocket upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}

	c := &client{
		hub:  s.hub,
		id:   newPeerID(),
		conn: conn,
		send: make(chan []byte, sendQueue),
	}

	select {
	case s.hub.register <- c:
	case <-s.hub.done:
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay shutting down"))
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// ListenAndServe runs the hub and serves it on addr until ctx is cancelled.
// ready, if not nil, receives the bound address once listening.
func ListenAndServe(ctx context.Context, addr string, ready func(net.Addr)) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start relay: %w", err)
	}

	hub := NewHub()
	go hub.Run(ctx)

	srv := &http.Server{Handler: NewServer(hub), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if ready != nil {
		ready(listener.Addr())
	}
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("relay stopped: %w", err)
	}
	return nil
}
