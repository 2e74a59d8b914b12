package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Jaypalsingh1/sovereignshare/internal/config"
	"github.com/Jaypalsingh1/sovereignshare/internal/ui"
)

var (
	flagDomain      string
	flagRelayURL    string
	flagSTUN        string
	flagTURN        string
	flagTURNUser    string
	flagTURNPass    string
	flagRelay       bool
	flagDownloadDir string
)

var shareCmd = &cobra.Command{
	Use:     "share",
	Aliases: []string{"host"},
	Short:   "Register an identity and wait for peers to connect",
	Long: `Register a fresh identity with the relay and wait for an incoming
session. Give the printed identity (or invite link) to a peer; they connect
with "sovereign connect <identity>".

Examples:
  sovereign share
  sovereign share --domain relay.example.com
  sovereign share --download-dir ~/Downloads`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShare()
	},
}

func runShare() error {
	cfg, err := loadConfig(config.Options{
		Domain:      flagDomain,
		RelayURL:    flagRelayURL,
		STUNServer:  flagSTUN,
		TURNServer:  flagTURN,
		TURNUser:    flagTURNUser,
		TURNPass:    flagTURNPass,
		ForceRelay:  flagRelay,
		DownloadDir: flagDownloadDir,
	})
	if err != nil {
		return err
	}

	spin := ui.NewConnectionSpinner("Connecting to relay...")
	spin.Start()
	ctx, err := newConnectionContext(cfg)
	if err != nil {
		spin.Stop()
		return err
	}
	defer ctx.Close()

	if err := ctx.register(); err != nil {
		spin.Stop()
		return err
	}
	spin.Stop()

	ctx.buildMachine()
	go ctx.pumpSignals()

	fmt.Println(ui.IdentityCard(ctx.Local, cfg.InviteLink(ctx.Local)))
	fmt.Printf("\n%s Waiting for a peer to connect...\n", ui.IconWaiting)

	return runSession(ctx, true)
}

func init() {
	rootCmd.AddCommand(shareCmd)

	shareCmd.Flags().StringVarP(&flagDomain, "domain", "d", "", "Custom relay domain")
	shareCmd.Flags().StringVar(&flagRelayURL, "relay-url", "", "Full relay websocket URL (overrides domain)")
	shareCmd.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	shareCmd.Flags().StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	shareCmd.Flags().StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	shareCmd.Flags().StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	shareCmd.Flags().BoolVarP(&flagRelay, "relay", "r", false, "Force relay mode")
	shareCmd.Flags().StringVarP(&flagDownloadDir, "download-dir", "o", "", "Directory for received files")
}
