package config

import (
	"time"

	"github.com/giantswarm/hotpatch/internal/resource"
)

// HotpatchConfig is the top-level configuration structure for hotpatch.
type HotpatchConfig struct {
	Client  ClientConfig  `yaml:"client"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// ClientConfig configures "hotpatch watch".
type ClientConfig struct {
	URL       string              `yaml:"url"`                 // Update socket address (default: ws://localhost:3000/hmr)
	Resources []resource.Resource `yaml:"resources,omitempty"` // Resources subscribed on start
	Reconnect ReconnectConfig     `yaml:"reconnect"`
}

// ReconnectConfig bounds the exponential reconnect backoff.
type ReconnectConfig struct {
	InitialInterval time.Duration `yaml:"initialInterval"`
	MaxInterval     time.Duration `yaml:"maxInterval"`
}

// ServerConfig configures "hotpatch serve".
type ServerConfig struct {
	Listen          string              `yaml:"listen"`             // Address of the HTTP listener (default: localhost:3000)
	SpoolDir        string              `yaml:"spoolDir,omitempty"` // Directory watched for update files; empty disables spooling
	RemoveProcessed bool                `yaml:"removeProcessed"`    // Delete spool files once published
	Missing         []resource.Resource `yaml:"missing,omitempty"`  // Resources answered with notFound
}

// LoggingConfig selects log verbosity and encoding.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn or error
	Format string `yaml:"format"` // text or json
}
