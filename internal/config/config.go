// Package config loads gateway settings from .env and the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"duelgate/internal/session"
)

// MySQLConfig holds connection settings for the game record store.
// An empty Host disables record keeping.
type MySQLConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// DSN returns the go-sql-driver/mysql data source name.
func (m MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		m.User, m.Password, m.Host, m.Port, m.Database)
}

// Enabled reports whether a MySQL host was configured.
func (m MySQLConfig) Enabled() bool {
	return m.Host != ""
}

// MongoConfig holds connection settings for the token store.
// An empty URI disables the token lookup.
type MongoConfig struct {
	URI string `mapstructure:"uri"`
	DB  string `mapstructure:"db"`
}

// Enabled reports whether a MongoDB URI was configured.
func (m MongoConfig) Enabled() bool {
	return m.URI != ""
}

// WSConfig holds websocket listener settings.
type WSConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// AllowedOrigin restricts the Origin header of upgrade requests. Empty allows any.
	AllowedOrigin string `mapstructure:"allowed_origin"`
	// SendBuffer is the per-connection outbound message buffer.
	SendBuffer int `mapstructure:"send_buffer"`
	// WriteTimeout bounds a single websocket write.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the "host:port" listen address.
func (w WSConfig) Addr() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}

// JWTConfig holds identity verification settings.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// AuthConfig holds optional verification steps beyond the signature check.
type AuthConfig struct {
	// CheckTokenStore requires the token to be present in the Mongo user_tokens collection.
	CheckTokenStore bool `mapstructure:"check_token_store"`
}

// MatchConfig holds matchmaking policy settings.
type MatchConfig struct {
	// BlockedPairs lists players that are never paired, as "1-2,7-9".
	BlockedPairs string `mapstructure:"blocked_pairs"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level gateway configuration.
type Config struct {
	MySQL   MySQLConfig   `mapstructure:"mysql"`
	Mongo   MongoConfig   `mapstructure:"mongo"`
	WS      WSConfig      `mapstructure:"ws"`
	JWT     JWTConfig     `mapstructure:"jwt"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Match   MatchConfig   `mapstructure:"match"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Validate checks all configuration invariants and reports every violation at once.
func (c Config) Validate() error {
	var errs []string

	if c.JWT.Secret == "" {
		errs = append(errs, "jwt.secret must not be empty")
	}
	if c.WS.Port < 1 || c.WS.Port > 65535 {
		errs = append(errs, fmt.Sprintf("ws.port must be 1-65535, got %d", c.WS.Port))
	}
	if c.WS.SendBuffer < 1 {
		errs = append(errs, fmt.Sprintf("ws.send_buffer must be >= 1, got %d", c.WS.SendBuffer))
	}
	if c.WS.WriteTimeout < 0 {
		errs = append(errs, "ws.write_timeout must not be negative")
	}
	if c.MySQL.Enabled() {
		if c.MySQL.Port < 1 || c.MySQL.Port > 65535 {
			errs = append(errs, fmt.Sprintf("mysql.port must be 1-65535, got %d", c.MySQL.Port))
		}
		if c.MySQL.Database == "" {
			errs = append(errs, "mysql.database must not be empty")
		}
	}
	if c.Mongo.Enabled() && c.Mongo.DB == "" {
		errs = append(errs, "mongo.db must not be empty")
	}
	if c.Auth.CheckTokenStore && !c.Mongo.Enabled() {
		errs = append(errs, "auth.check_token_store requires mongo.uri")
	}
	if _, err := session.ParseBlockList(c.Match.BlockedPairs); err != nil {
		errs = append(errs, fmt.Sprintf("match.blocked_pairs: %v", err))
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads the optional .env files, applies environment overrides and
// validates the result. Keys map to environment names by upper-casing and
// replacing "." with "_", so mysql.host is read from MYSQL_HOST.
func Load(envFiles ...string) (Config, error) {
	// A missing .env is fine; the environment alone is a valid source.
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading env file: %w", err)
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mysql.host", "")
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.user", "")
	v.SetDefault("mysql.password", "")
	v.SetDefault("mysql.database", "")

	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.db", "")

	v.SetDefault("ws.host", "0.0.0.0")
	v.SetDefault("ws.port", 8080)
	v.SetDefault("ws.allowed_origin", "")
	v.SetDefault("ws.send_buffer", 32)
	v.SetDefault("ws.write_timeout", "10s")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("auth.check_token_store", false)
	v.SetDefault("match.blocked_pairs", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
