package config

import "time"

const (
	DefaultClientURL       = "ws://localhost:3000/hmr"
	DefaultListen          = "localhost:3000"
	DefaultInitialInterval = 500 * time.Millisecond
	DefaultMaxInterval     = 10 * time.Second
)

// GetDefaultConfig returns the configuration used when no config.yaml exists.
func GetDefaultConfig() HotpatchConfig {
	return HotpatchConfig{
		Client: ClientConfig{
			URL: DefaultClientURL,
			Reconnect: ReconnectConfig{
				InitialInterval: DefaultInitialInterval,
				MaxInterval:     DefaultMaxInterval,
			},
		},
		Server: ServerConfig{
			Listen:          DefaultListen,
			RemoveProcessed: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
