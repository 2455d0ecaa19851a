package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/xxxsen/common/logger"

	"github.com/xxxsen/tablereserve/internal/pkg/password"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port        int              `json:"port"`
	APIPrefix   string           `json:"api_prefix"`
	Database    DatabaseConfig   `json:"database"`
	JWTSecret   string           `json:"jwt_secret"`
	JWTTTLHours int              `json:"jwt_ttl_hours"`
	Password    PasswordConfig   `json:"password"`
	CORSOrigins []string         `json:"cors_origins"`
	// RateLimitMS is the per-client window for create and login, 0 disables it.
	RateLimitMS int              `json:"rate_limit_ms"`
	LogConfig   logger.LogConfig `json:"log_config"`
}

type DatabaseConfig struct {
	Driver   string `json:"driver"`
	DSN      string `json:"dsn"`
	Path     string `json:"path"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type PasswordConfig struct {
	Method    string `json:"method"`
	SaltBytes int    `json:"salt_bytes"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

func Parse(r io.Reader) (*Config, error) {
	var cfg Config
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() error {
	if cfg.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/"
	}
	if cfg.RateLimitMS < 0 {
		return fmt.Errorf("rate_limit_ms must not be negative")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Password.Method == "" {
		cfg.Password.Method = password.MethodArgon2id
	}
	if !password.Supported(cfg.Password.Method) {
		return fmt.Errorf("password.method must be %s or %s", password.MethodArgon2id, password.MethodSSHA512)
	}
	if cfg.Password.SaltBytes == 0 {
		cfg.Password.SaltBytes = password.DefaultSaltBytes
	}
	if cfg.Password.SaltBytes < 16 {
		return fmt.Errorf("password.salt_bytes must be at least 16")
	}
	db := &cfg.Database
	if db.Driver == "" {
		db.Driver = DriverPostgres
	}
	switch db.Driver {
	case DriverPostgres:
		if db.DSN == "" && db.Host == "" {
			return fmt.Errorf("database.dsn or database.host is required for postgres")
		}
		if db.Port == 0 {
			db.Port = 5432
		}
	case DriverSQLite:
		if db.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite")
	}
	return nil
}
