package cli

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Jaypalsingh1/sovereignshare/internal/ui"
	"github.com/Jaypalsingh1/sovereignshare/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "sovereign",
	Short:   "Peer-to-peer chat and file exchange over direct WebRTC channels",
	Long: `SovereignShare connects two peers directly for chat and file exchange.
A lightweight relay only brokers the introduction; once the direct channel
opens, every message and file travels peer to peer without touching a server.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
