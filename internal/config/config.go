package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the LMS service
type Config struct {
	Environment string
	Port        string
	LogLevel    slog.Level

	DatabaseURL string
	RedisURL    string

	Casdoor CasdoorConfig
	Kafka   KafkaConfig
	Session SessionConfig
	Demo    DemoConfig
	Chat    ChatConfig

	CORSAllowedOrigins []string
}

// CasdoorConfig holds identity provider settings
type CasdoorConfig struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Cert         string
	Organization string
	Application  string
}

// KafkaConfig holds event broker settings. Empty Brokers selects the in-process publisher.
type KafkaConfig struct {
	Brokers []string
}

// SessionConfig controls locally issued session tokens
type SessionConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// DemoConfig controls the demo account endpoints
type DemoConfig struct {
	EmailDomain string
	Password    string
	AdminKey    string
}

// ChatConfig points at the OpenAI-compatible chat completion server
type ChatConfig struct {
	Endpoint string
	Model    string
	Timeout  time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("database_url", "host=localhost user=postgres password=postgres dbname=aicademy port=5432 sslmode=disable")
	v.SetDefault("redis_url", "")

	v.SetDefault("casdoor_endpoint", "http://localhost:8000")
	v.SetDefault("casdoor_client_id", "")
	v.SetDefault("casdoor_client_secret", "")
	v.SetDefault("casdoor_cert", "")
	v.SetDefault("casdoor_organization", "aicademy")
	v.SetDefault("casdoor_application", "aicademy-lms")

	v.SetDefault("kafka_brokers", "")

	v.SetDefault("session_secret", "change-me-in-production")
	v.SetDefault("session_ttl", 8*time.Hour)
	v.SetDefault("session_issuer", "aicademy-lms")

	v.SetDefault("demo_email_domain", "demo.aicademy.local")
	v.SetDefault("demo_password", "DemoAccount#2024")
	v.SetDefault("demo_admin_key", "")

	v.SetDefault("chat_endpoint", "http://localhost:1234/v1/chat/completions")
	v.SetDefault("chat_model", "local-model")
	v.SetDefault("chat_timeout", 60*time.Second)

	v.SetDefault("cors_allowed_origins", "http://localhost:3000")
}

// LoadConfig reads configuration from the environment, loading a .env file first when present
func LoadConfig() (*Config, error) {
	// A missing .env file is not an error
	_ = godotenv.Load()

	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)
	v.AutomaticEnv()

	level, err := parseLogLevel(v.GetString("log_level"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Environment: v.GetString("environment"),
		Port:        v.GetString("port"),
		LogLevel:    level,
		DatabaseURL: v.GetString("database_url"),
		RedisURL:    v.GetString("redis_url"),
		Casdoor: CasdoorConfig{
			Endpoint:     v.GetString("casdoor_endpoint"),
			ClientID:     v.GetString("casdoor_client_id"),
			ClientSecret: v.GetString("casdoor_client_secret"),
			Cert:         v.GetString("casdoor_cert"),
			Organization: v.GetString("casdoor_organization"),
			Application:  v.GetString("casdoor_application"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("kafka_brokers")),
		},
		Session: SessionConfig{
			Secret: v.GetString("session_secret"),
			TTL:    v.GetDuration("session_ttl"),
			Issuer: v.GetString("session_issuer"),
		},
		Demo: DemoConfig{
			EmailDomain: v.GetString("demo_email_domain"),
			Password:    v.GetString("demo_password"),
			AdminKey:    v.GetString("demo_admin_key"),
		},
		Chat: ChatConfig{
			Endpoint: v.GetString("chat_endpoint"),
			Model:    v.GetString("chat_model"),
			Timeout:  v.GetDuration("chat_timeout"),
		},
		CORSAllowedOrigins: splitList(v.GetString("cors_allowed_origins")),
	}

	if cfg.Environment == "production" && cfg.Session.Secret == "change-me-in-production" {
		return nil, fmt.Errorf("SESSION_SECRET must be set in production")
	}

	return cfg, nil
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q", level)
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
