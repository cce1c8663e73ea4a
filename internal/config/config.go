// Package config loads client settings with precedence ENV > file > defaults.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultHost is where the Crowd Control SimpleTCP connector listens.
	DefaultHost = "127.0.0.1"
	// DefaultPort is the connector port configured in the game pack.
	DefaultPort = 2323
	// DefaultChunkSize is the size of a single socket read.
	DefaultChunkSize = 4096

	TransportTCP = "tcp"
	TransportWS  = "ws"
)

// Config holds every setting of the client.
type Config struct {
	Host      string        `yaml:"host"`
	Port      int           `yaml:"port"`
	Transport string        `yaml:"transport"`
	WSPath    string        `yaml:"wsPath"`
	ChunkSize int           `yaml:"chunkSize"`
	KeepAlive time.Duration `yaml:"keepAlive"`
	// DialTimeout bounds connection establishment only; reads never time out.
	DialTimeout time.Duration `yaml:"dialTimeout"`

	// ReportFinished sends an EffectStatus/Finished message when a timed effect completes.
	ReportFinished bool `yaml:"reportFinished"`

	CatalogPath string `yaml:"catalog"`
	MetricsAddr string `yaml:"metricsAddr"`
	LogLevel    string `yaml:"logLevel"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Host:        DefaultHost,
		Port:        DefaultPort,
		Transport:   TransportTCP,
		WSPath:      "/",
		ChunkSize:   DefaultChunkSize,
		KeepAlive:   15 * time.Second,
		DialTimeout: 5 * time.Second,
		LogLevel:    "info",
	}
}

// Address returns host:port.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// URL returns the dial target for the configured transport.
func (c Config) URL() string {
	if c.Transport == TransportWS {
		path := c.WSPath
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		return "ws://" + c.Address() + path
	}
	return c.Address()
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	switch c.Transport {
	case TransportTCP, TransportWS:
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalidConfig, c.Transport)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunkSize must be positive", ErrInvalidConfig)
	}
	if c.KeepAlive < 0 {
		return fmt.Errorf("%w: keepAlive must not be negative", ErrInvalidConfig)
	}
	if c.DialTimeout < 0 {
		return fmt.Errorf("%w: dialTimeout must not be negative", ErrInvalidConfig)
	}
	return nil
}
