// Castd — a headless WebRTC answering host. It serves a WebSocket signaling
// endpoint, answers peer offers, optionally attaches an RTP-fed video track,
// and exchanges application messages over the peer data channel.
package main

import (
	"os"

	cmd "github.com/castkit/castkit/cmd/castd/commands"
)

func main() {
	rootCmd := cmd.RootCmd

	// Do not print usage when an error occurs.
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
