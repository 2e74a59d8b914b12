package cli

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Jaypalsingh1/sovereignshare/internal/config"
	"github.com/Jaypalsingh1/sovereignshare/internal/identity"
	"github.com/Jaypalsingh1/sovereignshare/internal/ui"
)

var (
	connDomain      string
	connRelayURL    string
	connSTUN        string
	connTURN        string
	connTURNUser    string
	connTURNPass    string
	connRelay       bool
	connDownloadDir string
)

var connectCmd = &cobra.Command{
	Use:     "connect <identity|invite-link>",
	Aliases: []string{"c"},
	Short:   "Connect to a sharing peer",
	Long: `Connect to a peer that is waiting with "sovereign share". The target
is the peer's identity or the invite link they gave you.

Examples:
  sovereign connect Xm4PqR7nKd
  sovereign connect https://share.sovereignshare.app/?peer=Xm4PqR7nKd`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := parseTarget(args[0])
		if err != nil {
			return err
		}
		return runConnect(target)
	},
}

// parseTarget accepts a bare identity or an invite link carrying one in
// its peer query parameter.
func parseTarget(arg string) (string, error) {
	target := strings.TrimSpace(arg)

	if strings.Contains(target, "://") {
		u, err := url.Parse(target)
		if err != nil {
			return "", fmt.Errorf("invalid invite link: %w", err)
		}
		target = u.Query().Get("peer")
		if target == "" {
			return "", fmt.Errorf("invite link carries no peer identity")
		}
	}

	if !identity.Valid(target) {
		return "", fmt.Errorf("%q is not a valid identity", target)
	}
	return target, nil
}

func runConnect(target string) error {
	cfg, err := loadConfig(config.Options{
		Domain:      connDomain,
		RelayURL:    connRelayURL,
		STUNServer:  connSTUN,
		TURNServer:  connTURN,
		TURNUser:    connTURNUser,
		TURNPass:    connTURNPass,
		ForceRelay:  connRelay,
		DownloadDir: connDownloadDir,
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

	ui.PrintInfof("Registered as %s", ui.SelfStyle.Render(ctx.Local))

	fmt.Printf("%s Offering a session to %s...\n", ui.IconConnect, ui.PeerStyle.Render(target))
	if err := ctx.Machine.Connect(target); err != nil {
		return err
	}

	return runSession(ctx, false)
}

func init() {
	rootCmd.AddCommand(connectCmd)

	connectCmd.Flags().StringVarP(&connDomain, "domain", "d", "", "Custom relay domain")
	connectCmd.Flags().StringVar(&connRelayURL, "relay-url", "", "Full relay websocket URL (overrides domain)")
	connectCmd.Flags().StringVarP(&connSTUN, "stun", "s", "", "Custom STUN server")
	connectCmd.Flags().StringVarP(&connTURN, "turn", "t", "", "Custom TURN server")
	connectCmd.Flags().StringVarP(&connTURNUser, "turn-user", "u", "", "TURN username")
	connectCmd.Flags().StringVarP(&connTURNPass, "turn-pass", "p", "", "TURN password")
	connectCmd.Flags().BoolVarP(&connRelay, "relay", "r", false, "Force relay mode")
	connectCmd.Flags().StringVarP(&connDownloadDir, "download-dir", "o", "", "Directory for received files")
}
