// Package media describes the local stream shared by every peer session and
// the remote streams that negotiations produce.
package media

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// ErrNoDevices is returned when neither audio nor video was requested.
var ErrNoDevices = errors.New("no audio or video device available")

// Source acquires the local user's media.
type Source interface {
	Acquire(ctx context.Context) (*Stream, error)
}

// Stream is the local media. Peer sessions attach its tracks but never
// modify them.
type Stream struct {
	ID     string
	Tracks []webrtc.TrackLocal
}

// Has reports whether the stream carries a track of the given kind.
func (s *Stream) Has(kind webrtc.RTPCodecType) bool {
	for _, t := range s.Tracks {
		if t.Kind() == kind {
			return true
		}
	}
	return false
}

// Devices is a Source producing sample-based local tracks. It opens no
// microphone or camera: the tracks stay silent and blank, and peers receive
// no media, until a capture backend writes samples into them.
type Devices struct {
	AudioCodec string // "opus" or empty for no audio
	VideoCodec string // "vp8", "vp9", "h264" or empty for no video
}

// Acquire builds the local tracks. Failure is fatal to a join attempt.
func (d Devices) Acquire(ctx context.Context) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.AudioCodec == "" && d.VideoCodec == "" {
		return nil, ErrNoDevices
	}

	stream := &Stream{ID: "meshcall-" + uuid.NewString()}
	if d.AudioCodec != "" {
		track, err := newTrack("audio", stream.ID, d.AudioCodec)
		if err != nil {
			return nil, err
		}
		stream.Tracks = append(stream.Tracks, track)
	}
	if d.VideoCodec != "" {
		track, err := newTrack("video", stream.ID, d.VideoCodec)
		if err != nil {
			return nil, err
		}
		stream.Tracks = append(stream.Tracks, track)
	}
	return stream, nil
}

func newTrack(kind, streamID, codec string) (*webrtc.TrackLocalStaticSample, error) {
	codec = strings.ToLower(codec)
	var mime string
	switch kind {
	case "audio":
		switch codec {
		case "opus":
			mime = webrtc.MimeTypeOpus
		}
	case "video":
		switch codec {
		case "h264":
			mime = webrtc.MimeTypeH264
		case "vpx", "vp8":
			mime = webrtc.MimeTypeVP8
		case "vp9":
			mime = webrtc.MimeTypeVP9
		}
	}
	if mime == "" {
		return nil, fmt.Errorf("unsupported codec %s:%s", kind, codec)
	}
	return webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: mime}, kind, streamID)
}

// RemoteStream is the media a remote peer sends us. It is announced once per
// negotiation; its tracks arrive on Tracks as the transport surfaces them.
type RemoteStream struct {
	ID string

	mu     sync.Mutex
	closed bool
	tracks chan *webrtc.TrackRemote
}

// NewRemoteStream creates an empty remote stream.
func NewRemoteStream(id string) *RemoteStream {
	return &RemoteStream{ID: id, tracks: make(chan *webrtc.TrackRemote, 8)}
}

// Add publishes a track. Tracks beyond the buffer or after Close are dropped.
func (s *RemoteStream) Add(track *webrtc.TrackRemote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.tracks <- track:
	default:
	}
}

// Tracks yields remote tracks; it is closed with the stream.
func (s *RemoteStream) Tracks() <-chan *webrtc.TrackRemote {
	return s.tracks
}

// Close ends the stream. Safe to call multiple times.
func (s *RemoteStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.tracks)
	}
}
