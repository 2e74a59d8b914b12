package config

import (
	"fmt"
	"net/url"
	"os"
)

// Default configuration values.
const (
	DefaultDomain = "share.sovereignshare.app"
	DefaultSTUN   = "stun:stun.l.google.com:19302"
)

// Config holds client configuration.
type Config struct {
	// Domain is the relay server domain.
	Domain string

	// RelayURL is the signaling websocket endpoint, constructed from
	// Domain unless overridden directly.
	RelayURL string

	// ICE servers for the direct channel.
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// ForceRelay restricts candidate gathering to TURN relays.
	ForceRelay bool

	// DownloadDir is where received files are written. Empty means the
	// current directory.
	DownloadDir string
}

// Options carries CLI flag overrides into Load.
type Options struct {
	Domain      string
	RelayURL    string
	STUNServer  string
	TURNServer  string
	TURNUser    string
	TURNPass    string
	ForceRelay  bool
	DownloadDir string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	domain := firstNonEmpty(opts.Domain, os.Getenv("SOVEREIGNSHARE_DOMAIN"), DefaultDomain)
	stun := firstNonEmpty(opts.STUNServer, os.Getenv("STUN_SERVER"), DefaultSTUN)
	turn := firstNonEmpty(opts.TURNServer, os.Getenv("TURN_SERVER"))
	turnUser := firstNonEmpty(opts.TURNUser, os.Getenv("TURN_USERNAME"))
	turnPass := firstNonEmpty(opts.TURNPass, os.Getenv("TURN_PASSWORD"))

	relayURL := firstNonEmpty(opts.RelayURL, os.Getenv("SOVEREIGNSHARE_RELAY_URL"))
	if relayURL == "" {
		relayURL = fmt.Sprintf("wss://%s/ws", domain)
	} else if _, err := url.Parse(relayURL); err != nil {
		return nil, fmt.Errorf("invalid relay URL: %w", err)
	}

	cfg := &Config{
		Domain:      domain,
		RelayURL:    relayURL,
		STUNServer:  stun,
		TURNServer:  turn,
		TURNUser:    turnUser,
		TURNPass:    turnPass,
		ForceRelay:  opts.ForceRelay,
		DownloadDir: opts.DownloadDir,
	}

	if cfg.ForceRelay && len(cfg.TURNServers()) == 0 {
		return nil, fmt.Errorf("cannot force relay mode without a TURN server configured")
	}

	return cfg, nil
}

// InviteLink returns the shareable URL that pre-fills identity as the
// connect target. Purely a convenience, not a security boundary.
func (c *Config) InviteLink(identity string) string {
	return fmt.Sprintf("https://%s/?peer=%s", c.Domain, identity)
}

// STUNServers returns STUN server URLs.
func (c *Config) STUNServers() []string {
	return []string{c.STUNServer}
}

// TURNServers returns TURN server URLs if configured.
func (c *Config) TURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
		fmt.Sprintf("turns:%s:5349?transport=tcp", c.TURNServer),
	}
}

// TURNCredentials returns the TURN username and password.
func (c *Config) TURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
