package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/1ureka/meshcall/internal/call"
	"github.com/1ureka/meshcall/internal/config"
	"github.com/1ureka/meshcall/internal/media"
	"github.com/1ureka/meshcall/internal/negotiator"
	"github.com/1ureka/meshcall/internal/room"
	"github.com/1ureka/meshcall/internal/signaling"
	"github.com/1ureka/meshcall/internal/util"
)

var joinOpts config.Options

var joinCmd = &cobra.Command{
	Use:   "join [room-or-link]",
	Short: "Join a room and call everyone in it",
	Long: `Join a room and set up a direct call with every other participant.

The room is taken from the argument, which may be a room id or a link with
the id in its fragment. Without one you are asked for it, and an empty answer
creates a new room.

No microphone or camera is opened. The call negotiates audio and video
tracks, but they carry no media until a capture backend feeds them samples.

Examples:
  meshcall join x-ray-table-rotten
  meshcall join 'https://meshcall.example/#x-ray-table-rotten'
  meshcall join --signal wss://relay.example/ws --no-video`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			joinOpts.Room = args[0]
		}
		return runJoin(cmd.Context(), joinOpts)
	},
}

func init() {
	f := joinCmd.Flags()
	f.StringVar(&joinOpts.SignalURL, "signal", "", "Relay WebSocket URL (env "+config.EnvSignalURL+")")
	f.StringVar(&joinOpts.STUN, "stun", "", "Comma separated STUN servers, or 'none' (env "+config.EnvSTUN+")")
	f.StringVar(&joinOpts.Timeout, "timeout", "", "Negotiation timeout per peer, 0 to disable (env "+config.EnvTimeout+")")
	f.StringVar(&joinOpts.AudioCodec, "audio-codec", "", "Audio codec (default "+config.DefaultAudio+")")
	f.StringVar(&joinOpts.VideoCodec, "video-codec", "", "Video codec: vp8, vp9 or h264 (default "+config.DefaultVideo+")")
	f.BoolVar(&joinOpts.NoAudio, "no-audio", false, "Do not send audio")
	f.BoolVar(&joinOpts.NoVideo, "no-video", false, "Do not send video")
	f.BoolVar(&joinOpts.NoMesh, "no-mesh", false, "Only connect to the first peer answering our offer")
}

// runJoin stays in the room until ctx is cancelled.
func runJoin(ctx context.Context, opts config.Options) error {
	if opts.Room == "" && os.Getenv(config.EnvRoom) == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		opts.Room = askRoom()
	}

	cfg, err := config.Load(opts)
	if err != nil {
		return err
	}

	pterm.Info.Println(fmt.Sprintf("Meshcall — v%s", version))
	pterm.Println()
	util.LogInfo("room %s, invite others with %s", cfg.Room, cfg.RoomLink())

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	ch, err := signaling.Dial(dialCtx, cfg.SignalURL)
	cancel()
	if err != nil {
		return err
	}
	defer ch.Close()
	util.LogSuccess("connected to %s as %s", cfg.SignalURL, ch.Self())

	coord := call.New(call.Config{
		Room:               cfg.Room,
		Channel:            ch,
		Source:             media.Devices{AudioCodec: cfg.AudioCodec, VideoCodec: cfg.VideoCodec},
		NewNegotiator:      call.PionNegotiators(negotiator.NewAPI(negotiator.Config{STUNServers: cfg.STUNServers})),
		NegotiationTimeout: cfg.NegotiationTimeout,
		Mesh:               cfg.Mesh,
	})
	coord.OnPeerState(func(peer signaling.PeerID, state signaling.State) {
		switch state {
		case signaling.StateConnected:
			util.LogInfo("negotiated with %s", peer)
		case signaling.StateClosed:
			if peer != "" {
				util.LogInfo("%s left", peer)
			}
		}
	})

	util.StartStatsReporter(ctx)

	if err := coord.Join(ctx); err != nil {
		return fmt.Errorf("call ended: %w", err)
	}
	util.LogInfo("left room %s", cfg.Room)
	return nil
}

// askRoom prompts for a room until a valid one (or nothing) is entered.
func askRoom() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Room id or link (empty for a new room)").
			Show()
		pterm.Println()

		if _, err := room.Resolve(raw); err == nil {
			return raw
		}
		util.LogWarning("invalid room: use lowercase letters, digits and dashes")
	}
}
