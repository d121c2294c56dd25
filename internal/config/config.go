package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/robfig/cron/v3"
	"golang.org/x/crypto/bcrypt"
)

// Config holds the application configuration.
type Config struct {
	ServerPort     int           `toml:"server_port"`
	DatabaseDriver string        `toml:"database_driver"` // "sqlite" or "postgres"
	DatabaseDSN    string        `toml:"database_dsn"`
	JWTSecret      string        `toml:"jwt_secret"`
	TokenTTL       time.Duration `toml:"token_ttl"`
	BcryptCost     int           `toml:"bcrypt_cost"`

	DefaultPageSize int `toml:"default_page_size"`
	MaxPageSize     int `toml:"max_page_size"`

	AllowedOrigins []string `toml:"allowed_origins"`

	// Redis is optional; an empty address disables the account view cache.
	RedisAddr     string        `toml:"redis_addr"`
	RedisPassword string        `toml:"redis_password"`
	RedisDB       int           `toml:"redis_db"`
	CacheTTL      time.Duration `toml:"cache_ttl"`

	LogLevel  string `toml:"log_level"`
	LogPretty bool   `toml:"log_pretty"`

	AuditRetention    time.Duration `toml:"audit_retention"`
	RetentionSchedule string        `toml:"retention_schedule"`

	// AdminOverrideIDs may edit any account's profile or password.
	AdminOverrideIDs []string `toml:"admin_override_ids"`

	BootstrapManagerLogin    string `toml:"bootstrap_manager_login"`
	BootstrapManagerPassword string `toml:"bootstrap_manager_password"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		ServerPort:        8080,
		DatabaseDriver:    "sqlite",
		DatabaseDSN:       "./accounts.db",
		TokenTTL:          24 * time.Hour,
		BcryptCost:        bcrypt.DefaultCost,
		DefaultPageSize:   10,
		MaxPageSize:       100,
		AllowedOrigins:    []string{"http://localhost:3000"},
		CacheTTL:          10 * time.Minute,
		LogLevel:          "info",
		LogPretty:         true,
		AuditRetention:    90 * 24 * time.Hour,
		RetentionSchedule: "0 3 * * *",
	}
}

// Load builds the configuration from defaults, then the TOML file named by
// CONFIG_FILE (if set), then environment variables.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var err error
	if c.ServerPort, err = getEnvInt("PORT", c.ServerPort); err != nil {
		return err
	}
	c.DatabaseDriver = getEnv("DATABASE_DRIVER", c.DatabaseDriver)
	c.DatabaseDSN = getEnv("DATABASE_DSN", getEnv("DATABASE_PATH", c.DatabaseDSN))
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	if c.TokenTTL, err = getEnvDuration("TOKEN_TTL", c.TokenTTL); err != nil {
		return err
	}
	if c.BcryptCost, err = getEnvInt("BCRYPT_COST", c.BcryptCost); err != nil {
		return err
	}
	if c.DefaultPageSize, err = getEnvInt("DEFAULT_PAGE_SIZE", c.DefaultPageSize); err != nil {
		return err
	}
	if c.MaxPageSize, err = getEnvInt("MAX_PAGE_SIZE", c.MaxPageSize); err != nil {
		return err
	}
	c.AllowedOrigins = getEnvList("ALLOWED_ORIGINS", c.AllowedOrigins)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	if c.RedisDB, err = getEnvInt("REDIS_DB", c.RedisDB); err != nil {
		return err
	}
	if c.CacheTTL, err = getEnvDuration("CACHE_TTL", c.CacheTTL); err != nil {
		return err
	}
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	if v, ok := os.LookupEnv("LOG_PRETTY"); ok {
		if c.LogPretty, err = strconv.ParseBool(v); err != nil {
			return fmt.Errorf("invalid LOG_PRETTY: %w", err)
		}
	}
	if c.AuditRetention, err = getEnvDuration("AUDIT_RETENTION", c.AuditRetention); err != nil {
		return err
	}
	c.RetentionSchedule = getEnv("RETENTION_SCHEDULE", c.RetentionSchedule)
	c.AdminOverrideIDs = getEnvList("ADMIN_OVERRIDE_IDS", c.AdminOverrideIDs)
	c.BootstrapManagerLogin = getEnv("BOOTSTRAP_MANAGER_LOGIN", c.BootstrapManagerLogin)
	c.BootstrapManagerPassword = getEnv("BOOTSTRAP_MANAGER_PASSWORD", c.BootstrapManagerPassword)
	return nil
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("server port %d out of range", c.ServerPort))
	}
	if c.DatabaseDriver != "sqlite" && c.DatabaseDriver != "postgres" {
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.DatabaseDriver))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database dsn is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", c.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.DefaultPageSize <= 0 || c.MaxPageSize <= 0 || c.DefaultPageSize > c.MaxPageSize {
		errs = append(errs, fmt.Errorf("page sizes must satisfy 0 < default (%d) <= max (%d)", c.DefaultPageSize, c.MaxPageSize))
	}
	if c.AuditRetention <= 0 {
		errs = append(errs, errors.New("audit retention must be positive"))
	}
	if _, err := cron.ParseStandard(c.RetentionSchedule); err != nil {
		errs = append(errs, fmt.Errorf("invalid retention schedule: %w", err))
	}
	if (c.BootstrapManagerLogin == "") != (c.BootstrapManagerPassword == "") {
		errs = append(errs, errors.New("bootstrap manager login and password must be set together"))
	}
	return errors.Join(errs...)
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
