package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "oszid.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 115200, cfg.Baud)
	assert.Equal(t, "tarm", cfg.Driver)
	assert.Equal(t, 12*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, time.Second, cfg.Timeouts.Response)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.WaveformIdle)
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `
link: socket://192.168.1.20:2000
driver: bugst
http: 127.0.0.1:8080
reconnect_delay: 30s
log:
  level: debug
  format: json
timeouts:
  response: 1500ms
  waveform_idle: 2s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "socket://192.168.1.20:2000", cfg.Link)
	assert.Equal(t, 115200, cfg.Baud, "unset values keep their default")
	assert.Equal(t, "bugst", cfg.Driver)
	assert.Equal(t, "127.0.0.1:8080", cfg.HTTP)
	assert.Equal(t, 30*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 1500*time.Millisecond, cfg.Timeouts.Response)
	assert.Equal(t, 2*time.Second, cfg.Timeouts.WaveformIdle)
	assert.Equal(t, time.Second, cfg.Timeouts.Handshake)

	assert.IsType(t, &logrus.JSONFormatter{}, cfg.Formatter())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading config file")

	_, err = Load(writeFile(t, "baud: [fast]\n"))
	assert.ErrorContains(t, err, "parsing config file")

	_, err = Load(writeFile(t, "baud: -9600\ndriver: ftdi\n"))
	assert.ErrorContains(t, err, "baud must be positive")
	assert.ErrorContains(t, err, "unknown serial driver")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		want   string
	}{
		{"empty link", func(c *Config) { c.Link = "" }, "link must not be empty"},
		{"zero baud", func(c *Config) { c.Baud = 0 }, "baud must be positive"},
		{"driver", func(c *Config) { c.Driver = "usbtmc" }, "unknown serial driver"},
		{"reconnect delay", func(c *Config) { c.ReconnectDelay = 0 }, "reconnect_delay"},
		{"log level", func(c *Config) { c.Log.Level = "chatty" }, "not a valid logrus Level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
		{"timeout", func(c *Config) { c.Timeouts.Terminator = -time.Second }, "timeouts.terminator"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestFormatter(t *testing.T) {
	f, ok := Default().Formatter().(*logrus.TextFormatter)
	require.True(t, ok)
	assert.True(t, f.FullTimestamp)
}
