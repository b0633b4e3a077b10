// Package config holds the castd configuration types and defaults.
package config

// Default configuration values.
const (
	DefaultListenAddr = "127.0.0.1:8080"
	DefaultEndpoint   = "/ws"
	DefaultICEAddress = "stun:stun.l.google.com:19302"
)

// Config contains all runtime properties of a castd host.
type Config struct {
	// ListenAddr is the IP:Port of the HTTP server exposing the signaling
	// endpoint.
	ListenAddr string `mapstructure:"listen"`

	// Endpoint is the websocket path peers connect to.
	Endpoint string `mapstructure:"endpoint"`

	// ICEServers lists the STUN/TURN URLs relayed into every peer
	// connection. The host does no NAT traversal of its own.
	ICEServers []string `mapstructure:"ice"`

	// RTPAddr is the UDP address the media source listens on for RTP from
	// an external capture pipeline. Empty disables outbound media.
	RTPAddr string `mapstructure:"rtp-listen"`

	// Debug enables debug logging.
	Debug bool `mapstructure:"debug"`
}

// NewDefaultConfig returns a Config with default values.
func NewDefaultConfig() *Config {
	return &Config{
		ListenAddr: DefaultListenAddr,
		Endpoint:   DefaultEndpoint,
		ICEServers: []string{DefaultICEAddress},
	}
}
