package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Chat     ChatConfig     `yaml:"chat"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	BasePath        string        `yaml:"base_path"`
	Env             string        `yaml:"env"`
	LogLevel        string        `yaml:"log_level"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     string        `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver"` // postgres | sqlite
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

type AuthConfig struct {
	SecretKey string        `yaml:"secret_key"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type ChatConfig struct {
	HistoryLimit   int           `yaml:"history_limit"`
	TypingTTL      time.Duration `yaml:"typing_ttl"`
	SendBuffer     int           `yaml:"send_buffer"`
	MaxMessageSize int64         `yaml:"max_message_size"`
}

// Default returns the configuration used when no file or env var overrides a value.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            5000,
			BasePath:        "/api",
			Env:             "dev",
			LogLevel:        "debug",
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     "http://localhost:3000",
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			MaxOpenConns:    100,
			MaxIdleConns:    10,
			ConnMaxLifetime: time.Hour,
		},
		Redis: RedisConfig{
			URL: "redis://localhost:6379/0",
		},
		Auth: AuthConfig{
			SecretKey: "devsecret",
			TokenTTL:  7 * 24 * time.Hour,
		},
		Chat: ChatConfig{
			HistoryLimit:   200,
			TypingTTL:      6 * time.Second,
			SendBuffer:     256,
			MaxMessageSize: 8192,
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	// Load from yaml file if exists
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	// Override with environment variables
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if basePath := os.Getenv("SERVER_BASE_PATH"); basePath != "" {
		cfg.Server.BasePath = basePath
	}
	if env := os.Getenv("ENV"); env != "" {
		cfg.Server.Env = env
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}
	if origin := os.Getenv("CLIENT_ORIGIN"); origin != "" {
		cfg.Server.CORSOrigins = origin
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.Server.CORSOrigins = origins
	}
	if driver := os.Getenv("DATABASE_DRIVER"); driver != "" {
		cfg.Database.Driver = driver
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Redis.URL = redisURL
		cfg.Redis.Enabled = true
	}
	if secretKey := os.Getenv("SECRET_KEY"); secretKey != "" {
		cfg.Auth.SecretKey = secretKey
	}
	if secretKey := os.Getenv("JWT_SECRET"); secretKey != "" {
		cfg.Auth.SecretKey = secretKey
	}
	if ttl := os.Getenv("TYPING_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.Chat.TypingTTL = d
		}
	}
	if limit := os.Getenv("HISTORY_LIMIT"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			cfg.Chat.HistoryLimit = n
		}
	}

	return cfg, cfg.Validate()
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// AllowedOrigins splits the comma separated CORS origin list.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.Server.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func (c *Config) Validate() error {
	var errs []error
	if c.IsProduction() && (c.Auth.SecretKey == "" || c.Auth.SecretKey == "devsecret") {
		errs = append(errs, errors.New("auth.secret_key must be set in production"))
	}
	if c.Chat.HistoryLimit <= 0 || c.Chat.HistoryLimit > 200 {
		errs = append(errs, errors.New("chat.history_limit must be between 1 and 200"))
	}
	if c.Chat.SendBuffer <= 0 {
		errs = append(errs, errors.New("chat.send_buffer must be positive"))
	}
	switch strings.ToLower(c.Database.Driver) {
	case "postgres", "sqlite":
	default:
		errs = append(errs, errors.New("database.driver must be postgres or sqlite"))
	}
	return errors.Join(errs...)
}
