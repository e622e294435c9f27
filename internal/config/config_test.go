package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("WHATSAPP_TOKEN", "token")
	t.Setenv("WHATSAPP_PHONE_NUMBER_ID", "106540352242922")
	t.Setenv("META_VERIFY_TOKEN", "verify")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load("testdata/does-not-exist.env")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "https://graph.facebook.com", cfg.WhatsApp.BaseURL)
	assert.Equal(t, "v20.0", cfg.WhatsApp.APIVersion)
	assert.True(t, cfg.WhatsApp.FilterUpdates)
	assert.Equal(t, "/!", cfg.Bot.CommandPrefixes)
	assert.False(t, cfg.Sheets.Enabled())
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_PORT", "9090")
	t.Setenv("WHATSAPP_FILTER_UPDATES", "false")
	t.Setenv("FLOW_ENDPOINT_ENABLED", "true")
	t.Setenv("FLOW_PRIVATE_KEY_PATH", "/etc/wacloud/flow.pem")
	t.Setenv("COMMAND_PREFIXES", "#")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("TRACING_EXPORTER", "otlp")
	t.Setenv("OTLP_ENDPOINT", "localhost:4318")

	cfg, err := Load("testdata/does-not-exist.env")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.False(t, cfg.WhatsApp.FilterUpdates)
	assert.True(t, cfg.Server.FlowEndpointEnabled)
	assert.Equal(t, "/etc/wacloud/flow.pem", cfg.Server.FlowPrivateKeyPath)
	assert.Equal(t, "#", cfg.Bot.CommandPrefixes)
	assert.Equal(t, "localhost:4318", cfg.Tracing.Endpoint)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:    ServerConfig{Port: "8080"},
			WhatsApp:  WhatsAppConfig{AccessToken: "t", PhoneNumberID: "1", VerifyToken: "v", BaseURL: "http://x", APIVersion: "v20.0"},
			Bot:       BotConfig{CommandPrefixes: "/"},
			Reporting: ReportingConfig{CronSchedule: "0 20 * * *", Timezone: "UTC"},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing token", func(c *Config) { c.WhatsApp.AccessToken = "" }, "WHATSAPP_TOKEN"},
		{"missing phone id", func(c *Config) { c.WhatsApp.PhoneNumberID = "" }, "WHATSAPP_PHONE_NUMBER_ID"},
		{"missing verify token", func(c *Config) { c.WhatsApp.VerifyToken = "" }, "META_VERIFY_TOKEN"},
		{"flow endpoint without key", func(c *Config) { c.Server.FlowEndpointEnabled = true }, "FLOW_PRIVATE_KEY_PATH"},
		{"half sheets config", func(c *Config) { c.Sheets.SpreadsheetID = "sheet" }, "GOOGLE_SHEETS_CREDENTIALS_PATH"},
		{"otlp without endpoint", func(c *Config) {
			c.Tracing = TracingConfig{Enabled: true, Exporter: "otlp"}
		}, "OTLP_ENDPOINT"},
		{"unknown exporter", func(c *Config) {
			c.Tracing = TracingConfig{Enabled: true, Exporter: "zipkin"}
		}, "TRACING_EXPORTER"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	var nilCfg *Config
	assert.Error(t, nilCfg.Validate())
}
