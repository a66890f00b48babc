package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/pratik-mahalle/assetwatch/internal/domain/alert"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Auth         AuthConfig
	Logging      LoggingConfig
	Alerts       AlertsConfig
	Notification NotificationConfig
	DataSource   DataSourceConfig
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	FrontendURL     string
	Environment     string
	RateLimitRPS    float64
	RateLimitBurst  int
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Driver          string // sqlite, postgres or memory
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// For SQLite
	Path string
}

// AuthConfig contains authentication configuration
type AuthConfig struct {
	JWTSecret string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string
	Format string // json or console
}

// AlertsConfig contains alert engine configuration
type AlertsConfig struct {
	SweepEnabled    bool
	SweepSchedule   string
	EscalationRules []alert.EscalationRule
}

// NotificationConfig contains channel sender configuration
type NotificationConfig struct {
	SMTPHost           string
	SMTPPort           int
	SMTPUser           string
	SMTPPassword       string
	SMTPFrom           string
	SlackWebhookURL    string
	SMSGatewayURL      string
	SMSAPIKey          string
	EventWebhookURLs   []string
	EventWebhookSecret string
	Timeout            time.Duration
}

// DataSourceConfig selects where asset snapshots are read from
type DataSourceConfig struct {
	Kind string // database or appwrite

	AppwriteEndpoint string
	AppwriteProject  string
	AppwriteAPIKey   string
	AppwriteDatabase string
	AppwriteAssets   string
	AppwriteRequests string
	AppwriteIssues   string
	AppwriteReturns  string
	AppwriteTimeout  time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors as it's optional)
	_ = godotenv.Load()

	rules, err := ParseEscalationRules(getEnv("ALERT_ESCALATION_RULES", DefaultEscalationRules))
	if err != nil {
		return nil, fmt.Errorf("invalid ALERT_ESCALATION_RULES: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			FrontendURL:     getEnv("FRONTEND_URL", "http://localhost:3000"),
			Environment:     getEnv("ENVIRONMENT", "development"),
			RateLimitRPS:    getEnvAsFloat("RATE_LIMIT_RPS", 50),
			RateLimitBurst:  getEnvAsInt("RATE_LIMIT_BURST", 100),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "assetwatch"),
			User:            getEnv("DB_USER", ""),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			Path:            getEnv("DB_PATH", "./assetwatch.db"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Alerts: AlertsConfig{
			SweepEnabled:    getEnvAsBool("ALERT_SWEEP_ENABLED", true),
			SweepSchedule:   getEnv("ALERT_SWEEP_SCHEDULE", "@every 5m"),
			EscalationRules: rules,
		},
		Notification: NotificationConfig{
			SMTPHost:           getEnv("SMTP_HOST", ""),
			SMTPPort:           getEnvAsInt("SMTP_PORT", 587),
			SMTPUser:           getEnv("SMTP_USER", ""),
			SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
			SMTPFrom:           getEnv("SMTP_FROM", "alerts@assetwatch.local"),
			SlackWebhookURL:    getEnv("SLACK_WEBHOOK_URL", ""),
			SMSGatewayURL:      getEnv("SMS_GATEWAY_URL", ""),
			SMSAPIKey:          getEnv("SMS_API_KEY", ""),
			EventWebhookURLs:   getEnvAsList("EVENT_WEBHOOK_URLS"),
			EventWebhookSecret: getEnv("EVENT_WEBHOOK_SECRET", ""),
			Timeout:            getEnvAsDuration("NOTIFICATION_TIMEOUT", 10*time.Second),
		},
		DataSource: DataSourceConfig{
			Kind:             getEnv("DATA_SOURCE", "database"),
			AppwriteEndpoint: getEnv("APPWRITE_ENDPOINT", ""),
			AppwriteProject:  getEnv("APPWRITE_PROJECT_ID", ""),
			AppwriteAPIKey:   getEnv("APPWRITE_API_KEY", ""),
			AppwriteDatabase: getEnv("APPWRITE_DATABASE_ID", ""),
			AppwriteAssets:   getEnv("APPWRITE_ASSETS_COLLECTION_ID", "assets"),
			AppwriteRequests: getEnv("APPWRITE_REQUESTS_COLLECTION_ID", "asset_requests"),
			AppwriteIssues:   getEnv("APPWRITE_ISSUES_COLLECTION_ID", "asset_issues"),
			AppwriteReturns:  getEnv("APPWRITE_RETURNS_COLLECTION_ID", "asset_returns"),
			AppwriteTimeout:  getEnvAsDuration("APPWRITE_TIMEOUT", 15*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Alerts.SweepEnabled {
		if _, err := cron.ParseStandard(c.Alerts.SweepSchedule); err != nil {
			return fmt.Errorf("invalid ALERT_SWEEP_SCHEDULE %q: %w", c.Alerts.SweepSchedule, err)
		}
	}

	switch c.DataSource.Kind {
	case "database":
		if c.Database.Driver == "memory" {
			return fmt.Errorf("DATA_SOURCE=database requires a sqlite or postgres DB_DRIVER")
		}
	case "appwrite":
		if c.DataSource.AppwriteEndpoint == "" || c.DataSource.AppwriteProject == "" || c.DataSource.AppwriteDatabase == "" {
			return fmt.Errorf("APPWRITE_ENDPOINT, APPWRITE_PROJECT_ID and APPWRITE_DATABASE_ID are required for DATA_SOURCE=appwrite")
		}
	default:
		return fmt.Errorf("unsupported data source: %s", c.DataSource.Kind)
	}

	return nil
}

// DefaultEscalationRules applies when ALERT_ESCALATION_RULES is unset
const DefaultEscalationRules = "critical:15:admin;high:60:admin;medium:240:admin"

// ParseEscalationRules parses "priority:minutes:recipient,recipient;..."
func ParseEscalationRules(s string) ([]alert.EscalationRule, error) {
	var rules []alert.EscalationRule
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.SplitN(part, ":", 3)
		if len(fields) < 2 {
			return nil, fmt.Errorf("rule %q: want priority:minutes[:recipients]", part)
		}
		priority := alert.Priority(strings.TrimSpace(fields[0]))
		if !priority.IsValid() {
			return nil, fmt.Errorf("rule %q: unknown priority %q", part, priority)
		}
		minutes, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil || minutes < 1 {
			return nil, fmt.Errorf("rule %q: minutes must be a positive integer", part)
		}
		rule := alert.EscalationRule{Priority: priority, EscalateAfterMinutes: minutes}
		if len(fields) == 3 {
			for _, r := range strings.Split(fields[2], ",") {
				if r = strings.TrimSpace(r); r != "" {
					rule.EscalateTo = append(rule.EscalateTo, r)
				}
			}
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
