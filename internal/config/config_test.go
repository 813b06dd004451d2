package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.APIURL)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.BiometricMaxAttempts)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"KINBOARD_API_URL":                "https://panel.example.com",
		"KINBOARD_REQUEST_TIMEOUT":        "5s",
		"KINBOARD_BIOMETRIC_MAX_ATTEMPTS": "5",
		"KINBOARD_LOG_FORMAT":             "text",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://panel.example.com", cfg.APIURL)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5, cfg.BiometricMaxAttempts)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromProcessEnv(t *testing.T) {
	t.Setenv("KINBOARD_DATA_DIR", "/tmp/kinboard")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/kinboard", cfg.DataDir)
}

func TestLoadRejectsMalformed(t *testing.T) {
	_, err := LoadFrom(map[string]string{"KINBOARD_REQUEST_TIMEOUT": "soon"})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative url", func(c *Config) { c.APIURL = "/api" }},
		{"ftp url", func(c *Config) { c.APIURL = "ftp://example.com" }},
		{"empty data dir", func(c *Config) { c.DataDir = " " }},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }},
		{"zero attempts", func(c *Config) { c.BiometricMaxAttempts = 0 }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{LogLevel: "warn", LogFormat: "json"}
	logger, err := cfg.NewLogger(&buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	cfg.LogFormat = "text"
	logger, err = cfg.NewLogger(&buf)
	require.NoError(t, err)
	logger.Warn("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}
