package main

import (
	"net"

	"github.com/spf13/cobra"

	"github.com/1ureka/meshcall/internal/config"
	"github.com/1ureka/meshcall/internal/relay"
	"github.com/1ureka/meshcall/internal/util"
)

var relayAddr string

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the signaling relay",
	Long: `Run the relay that participants signal through. It forwards every
message to every connected participant and serves Prometheus metrics at
/metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadRelay(relayAddr)
		err := relay.ListenAndServe(cmd.Context(), cfg.Addr, func(addr net.Addr) {
			util.LogSuccess("relay listening on %s (WebSocket at /ws, metrics at /metrics)", addr)
		})
		if err != nil {
			return err
		}
		util.LogInfo("relay stopped")
		return nil
	},
}

func init() {
	relayCmd.Flags().StringVar(&relayAddr, "addr", "", "Listen address (env "+config.EnvRelayAddr+", default "+config.DefaultRelayAddr+")")
}
