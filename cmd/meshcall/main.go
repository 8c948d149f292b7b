// Meshcall: CLI entry point.
//
// Every participant of a room connects to every other one directly over
// WebRTC. Negotiation runs over a relay that broadcasts each message to the
// whole room; no media ever goes through it.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/1ureka/meshcall/internal/util"
)

var version = "dev"

var (
	flagDebug bool
	flagTrace bool
)

var rootCmd = &cobra.Command{
	Use:           "meshcall",
	Short:         "Peer-to-peer group calls over WebRTC",
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagTrace {
			util.EnableTrace()
		} else if flagDebug {
			util.EnableDebug()
		}
	},
}

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagTrace, "trace", false, "Enable debug logging including WebRTC internals")
	rootCmd.AddCommand(joinCmd, relayCmd, roomCmd)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		util.LogError("%v", err)
		stop()
		os.Exit(1)
	}
}
