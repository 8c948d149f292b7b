package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/1ureka/meshcall/internal/config"
	"github.com/1ureka/meshcall/internal/room"
)

var roomSignal string

var roomCmd = &cobra.Command{
	Use:   "room",
	Short: "Generate a new room and print its invite link",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		signalURL, err := config.LoadSignalURL(roomSignal)
		if err != nil {
			return err
		}
		cfg := &config.Config{Room: room.Generate(), SignalURL: signalURL}
		pterm.Println(cfg.Room)
		pterm.Println(cfg.RoomLink())
		return nil
	},
}

func init() {
	roomCmd.Flags().StringVar(&roomSignal, "signal", "", "Relay WebSocket URL the link points to (env "+config.EnvSignalURL+")")
}
