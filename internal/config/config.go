package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	WhatsApp  WhatsAppConfig
	Bot       BotConfig
	Sheets    SheetsConfig
	Reporting ReportingConfig
	AI        AIConfig
	MongoDB   MongoDBConfig
	Logging   LoggingConfig
	Tracing   TracingConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port                string
	FlowEndpointEnabled bool
	// FlowPrivateKeyPath is the PEM key flow requests are encrypted for.
	FlowPrivateKeyPath string
}

// WhatsAppConfig contains credentials and options for the Meta WhatsApp Cloud API.
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	VerifyToken   string
	// AppSecret signs webhook deliveries. Signature checks are skipped when empty.
	AppSecret  string
	BaseURL    string
	APIVersion string
	// FilterUpdates drops updates addressed to another business phone number.
	FilterUpdates bool
}

// BotConfig holds the behaviour of the reference bot.
type BotConfig struct {
	AdminNumber     string
	CommandPrefixes string
}

// SheetsConfig contains configuration required to interact with Google Sheets.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
}

// Enabled reports whether failed deliveries should be written to a sheet.
func (s SheetsConfig) Enabled() bool {
	return s.CredentialsPath != "" && s.SpreadsheetID != ""
}

// ReportingConfig holds scheduler-related settings.
type ReportingConfig struct {
	CronSchedule string
	Timezone     string
}

// AIConfig holds settings for LLM providers.
type AIConfig struct {
	AnthropicKey string
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level string
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled  bool
	Exporter string
	Endpoint string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are acceptable when configuration comes from the
		// environment directly.
		_ = godotenv.Load()
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:                getenvWithDefault("APP_PORT", "8080"),
			FlowEndpointEnabled: getenvBool("FLOW_ENDPOINT_ENABLED", false),
			FlowPrivateKeyPath:  os.Getenv("FLOW_PRIVATE_KEY_PATH"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:   os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			VerifyToken:   os.Getenv("META_VERIFY_TOKEN"),
			AppSecret:     os.Getenv("META_APP_SECRET"),
			BaseURL:       getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:    getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
			FilterUpdates: getenvBool("WHATSAPP_FILTER_UPDATES", true),
		},
		Bot: BotConfig{
			AdminNumber:     os.Getenv("WHATSAPP_ADMIN_NUMBER"),
			CommandPrefixes: getenvWithDefault("COMMAND_PREFIXES", "/!"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_DATABASE_ID"),
		},
		Reporting: ReportingConfig{
			CronSchedule: getenvWithDefault("REPORT_CRON_SCHEDULE", "0 20 * * *"),
			Timezone:     getenvWithDefault("TIMEZONE", "UTC"),
		},
		AI: AIConfig{
			AnthropicKey: os.Getenv("ANTHROPIC_API_KEY"),
		},
		MongoDB: MongoDBConfig{
			URI:    os.Getenv("MONGODB_URI"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "wacloud"),
		},
		Logging: LoggingConfig{
			Level: getenvWithDefault("LOG_LEVEL", "info"),
		},
		Tracing: TracingConfig{
			Enabled:  getenvBool("TRACING_ENABLED", false),
			Exporter: getenvWithDefault("TRACING_EXPORTER", "stdout"),
			Endpoint: os.Getenv("OTLP_ENDPOINT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	if c.Server.FlowEndpointEnabled && c.Server.FlowPrivateKeyPath == "" {
		return errors.New("FLOW_PRIVATE_KEY_PATH must be provided when FLOW_ENDPOINT_ENABLED is set")
	}

	switch {
	case c.WhatsApp.AccessToken == "":
		return errors.New("WHATSAPP_TOKEN must be provided")
	case c.WhatsApp.PhoneNumberID == "":
		return errors.New("WHATSAPP_PHONE_NUMBER_ID must be provided")
	case c.WhatsApp.VerifyToken == "":
		return errors.New("META_VERIFY_TOKEN must be provided")
	}

	if c.WhatsApp.BaseURL == "" {
		return errors.New("WHATSAPP_BASE_URL must not be empty")
	}

	if c.WhatsApp.APIVersion == "" {
		return errors.New("WHATSAPP_API_VERSION must not be empty")
	}

	if c.Bot.CommandPrefixes == "" {
		return errors.New("COMMAND_PREFIXES must not be empty")
	}

	if c.Reporting.CronSchedule == "" {
		return errors.New("REPORT_CRON_SCHEDULE must be provided")
	}

	if c.Reporting.Timezone == "" {
		return errors.New("TIMEZONE must be provided")
	}

	if (c.Sheets.CredentialsPath == "") != (c.Sheets.SpreadsheetID == "") {
		return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH and GOOGLE_SHEET_DATABASE_ID must be provided together")
	}

	if c.Tracing.Enabled {
		switch strings.ToLower(c.Tracing.Exporter) {
		case "stdout":
		case "otlp":
			if c.Tracing.Endpoint == "" {
				return errors.New("OTLP_ENDPOINT must be provided when TRACING_EXPORTER=otlp")
			}
		default:
			return fmt.Errorf("unsupported TRACING_EXPORTER %q", c.Tracing.Exporter)
		}
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
