package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/gstbooks/internal/domain/tax"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Minute, cfg.Credential.RefreshWindow)
	assert.Equal(t, 5*time.Minute, cfg.Credential.StatusPollInterval)
	assert.Equal(t, "INR", cfg.Books.Currency)
	assert.Equal(t, tax.DiscountOnLineTotals, cfg.DiscountBase())
	assert.Empty(t, cfg.Redis.URL)
}

func TestLoadFrom_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9090
books:
  discount_base: taxable
gst_api:
  base_url: http://gst.internal/api
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("GSTBOOKS_SERVER_PORT", "7070")
	t.Setenv("GSTBOOKS_GST_API_TIMEOUT", "5s")
	t.Setenv("GSTBOOKS_CREDENTIAL_REFRESH_WINDOW", "10m")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "http://gst.internal/api", cfg.GSTAPI.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.GSTAPI.Timeout)
	assert.Equal(t, 10*time.Minute, cfg.Credential.RefreshWindow)
	assert.Equal(t, tax.DiscountOnTaxable, cfg.DiscountBase())
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"GSTBOOKS_SERVER_PORT":                   "server.port",
		"GSTBOOKS_GST_API_BASE_URL":              "gst_api.base_url",
		"GSTBOOKS_RATE_LIMIT_OTP_BURST":          "rate_limit.otp_burst",
		"GSTBOOKS_CREDENTIAL_STATUS_POLL_INTERVAL": "credential.status_poll_interval",
		"GSTBOOKS_ENVIRONMENT":                   "environment",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{
			name:    "unknown discount base",
			mutate:  func(c *Config) { c.Books.DiscountBase = "gross" },
			wantErr: "books.discount_base",
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.Credential.StatusPollInterval = 0 },
			wantErr: "status_poll_interval",
		},
		{
			name:    "negative refresh window",
			mutate:  func(c *Config) { c.Credential.RefreshWindow = -time.Minute },
			wantErr: "refresh_window",
		},
		{
			name:    "sampling rate above one",
			mutate:  func(c *Config) { c.Telemetry.SamplingRate = 1.5 },
			wantErr: "sampling_rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
