package negotiator

import (
	"github.com/pion/webrtc/v4"
)

// DefaultSTUNServers are the public STUN servers a call uses unless told
// otherwise. No TURN: sessions are direct peer to peer.
var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// Config selects the ICE servers used by every negotiator built from it.
type Config struct {
	STUNServers []string
}

// API builds PeerConnections sharing one pion setting engine.
type API struct {
	api    *webrtc.API
	config webrtc.Configuration
}

// NewAPI creates an API whose pion internals log through the application
// logger.
func NewAPI(cfg Config) *API {
	se := webrtc.SettingEngine{LoggerFactory: pionLoggerFactory{}}

	config := webrtc.Configuration{}
	if len(cfg.STUNServers) > 0 {
		config.ICEServers = []webrtc.ICEServer{{URLs: cfg.STUNServers}}
	}

	return &API{
		api:    webrtc.NewAPI(webrtc.WithSettingEngine(se)),
		config: config,
	}
}

// newPeerConnection creates a PeerConnection with the configured ICE servers.
func (a *API) newPeerConnection() (*webrtc.PeerConnection, error) {
	return a.api.NewPeerConnection(a.config)
}
