package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide signaling/media counter.
var Stats = &stats{}

type stats struct {
	PeersUp     atomic.Int64 // cumulative count of peer sessions whose media came up
	PeersDown   atomic.Int64 // cumulative count of peer sessions closed
	SignalsSent atomic.Int64 // cumulative signaling messages broadcast
	SignalsRecv atomic.Int64 // cumulative signaling messages accepted for this room
	BytesRecv   atomic.Int64 // cumulative media bytes read from remote tracks
}

func (s *stats) AddPeer()       { s.PeersUp.Add(1) }
func (s *stats) RemovePeer()    { s.PeersDown.Add(1) }
func (s *stats) AddSent()       { s.SignalsSent.Add(1) }
func (s *stats) AddRecv()       { s.SignalsRecv.Add(1) }
func (s *stats) AddMedia(n int) { s.BytesRecv.Add(int64(n)) }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs call statistics
// every 10 seconds. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		var prevBytes, prevSent, prevRecv int64
		for {
			select {
			case <-ticker.C:
				up := Stats.PeersUp.Load()
				down := Stats.PeersDown.Load()
				sent := Stats.SignalsSent.Load()
				recv := Stats.SignalsRecv.Load()
				media := Stats.BytesRecv.Load()

				rate := float64(media-prevBytes) / 10.0
				if rate > 10 || sent != prevSent || recv != prevRecv {
					pterm.DefaultLogger.Info(formatStats(rate, up-down, sent-prevSent, recv-prevRecv))
				}

				prevBytes = media
				prevSent = sent
				prevRecv = recv

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats returns a formatted string of the current stats for display in the logger.
func formatStats(rate float64, peers, sent, recv int64) string {
	return fmt.Sprintf("Media: %s/s | Peers: %2d | Signals: %2d↑ %2d↓",
		formatBytes(rate),
		peers,
		sent,
		recv,
	)
}
