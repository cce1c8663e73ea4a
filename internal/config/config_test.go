package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:2323", cfg.Address())
	assert.Equal(t, TransportTCP, cfg.Transport)
	assert.Equal(t, DefaultChunkSize, cfg.ChunkSize)
	assert.False(t, cfg.ReportFinished)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
host: 10.0.0.5
port: 4000
reportFinished: true
keepAlive: 30s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5:4000", cfg.Address())
	assert.True(t, cfg.ReportFinished)
	assert.Equal(t, 30*time.Second, cfg.KeepAlive)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "port: 4000\n")
	t.Setenv(EnvPort, "5000")
	t.Setenv(EnvTransport, "ws")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, "ws://127.0.0.1:5000/", cfg.URL())
}

func TestLoad_InvalidEnvKeepsFileValue(t *testing.T) {
	path := writeFile(t, "port: 4000\n")
	t.Setenv(EnvPort, "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Port)
}

func TestLoad_UnknownField(t *testing.T) {
	path := writeFile(t, "hostname: nope\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownConfigField)
}

func TestLoad_MultipleDocuments(t *testing.T) {
	path := writeFile(t, "port: 1\n---\nport: 2\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple documents")
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeFile(t, "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty host", func(c *Config) { c.Host = " " }},
		{"zero port", func(c *Config) { c.Port = 0 }},
		{"port too large", func(c *Config) { c.Port = 70000 }},
		{"unknown transport", func(c *Config) { c.Transport = "udp" }},
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }},
		{"negative keepalive", func(c *Config) { c.KeepAlive = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestURL_WSPathWithoutSlash(t *testing.T) {
	cfg := Default()
	cfg.Transport = TransportWS
	cfg.WSPath = "cc"
	assert.Equal(t, "ws://127.0.0.1:2323/cc", cfg.URL())
}
