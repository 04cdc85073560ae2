// Package config loads runtime configuration from defaults, an optional
// config file, a .env file, and environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"

	"github.com/agentgate-ai/agentgate/pkg/types"
)

// Config is the full runtime configuration.
type Config struct {
	LogLevel  string         `json:"log_level"`
	LogFormat string         `json:"log_format"`
	Store     StoreConfig    `json:"store"`
	Database  DatabaseConfig `json:"database"`
	Cache     CacheConfig    `json:"cache"`
	Session   SessionConfig  `json:"session"`
	Approval  ApprovalConfig `json:"approval"`
}

// StoreConfig selects and configures the key-value store backend.
type StoreConfig struct {
	Backend       string   `json:"backend"`
	EtcdEndpoints []string `json:"etcd_endpoints"`
	EtcdTimeout   Duration `json:"etcd_timeout"`
}

// DatabaseConfig selects and configures the relational backend.
type DatabaseConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// CacheConfig configures the session read cache.
type CacheConfig struct {
	TTL Duration `json:"ttl"`
}

// SessionConfig carries the per-session defaults applied at creation.
type SessionConfig struct {
	MaxMessages       int      `json:"max_messages"`
	MaxAttachmentSize int64    `json:"max_attachment_size"`
	TTL               Duration `json:"ttl"`
}

// ApprovalConfig configures the tool-call approval workflow.
type ApprovalConfig struct {
	Timeout Duration `json:"timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	sessionDefaults := types.DefaultSessionConfig()
	return &Config{
		LogLevel:  "info",
		LogFormat: "json",
		Store: StoreConfig{
			Backend:     "memory",
			EtcdTimeout: Duration(5 * time.Second),
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "agentgate.db",
		},
		Cache: CacheConfig{
			TTL: Duration(30 * time.Minute),
		},
		Session: SessionConfig{
			MaxMessages:       sessionDefaults.MaxMessages,
			MaxAttachmentSize: sessionDefaults.MaxAttachmentSize,
			TTL:               Duration(sessionDefaults.TTL),
		},
		Approval: ApprovalConfig{
			Timeout: Duration(5 * time.Minute),
		},
	}
}

// Load builds the configuration from, in priority order: defaults, an
// agentgate.json or agentgate.jsonc file in directory, a .env file in
// directory, then AGENTGATE_* environment variables.
func Load(directory string) (*Config, error) {
	config := Default()

	for _, name := range []string{"agentgate.json", "agentgate.jsonc"} {
		path := name
		if directory != "" {
			path = filepath.Join(directory, name)
		}
		if err := loadFile(path, config); err != nil {
			return nil, err
		}
	}

	envPath := ".env"
	if directory != "" {
		envPath = filepath.Join(directory, ".env")
	}
	// godotenv never overrides variables already set in the environment.
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

// loadFile merges one config file into config. A missing file is skipped; a
// present but unparsable file is an error.
func loadFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	data = jsonc.ToJSON(data)
	if err := json.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies AGENTGATE_* environment variables, the highest
// priority source.
func applyEnvOverrides(config *Config) {
	setString(&config.LogLevel, "AGENTGATE_LOG_LEVEL")
	setString(&config.LogFormat, "AGENTGATE_LOG_FORMAT")
	setString(&config.Store.Backend, "AGENTGATE_STORE_BACKEND")
	if v := os.Getenv("AGENTGATE_ETCD_ENDPOINTS"); v != "" {
		config.Store.EtcdEndpoints = strings.Split(v, ",")
	}
	setString(&config.Database.Driver, "AGENTGATE_DB_DRIVER")
	setString(&config.Database.DSN, "AGENTGATE_DB_DSN")
	setDuration(&config.Cache.TTL, "AGENTGATE_CACHE_TTL")
	setInt(&config.Session.MaxMessages, "AGENTGATE_SESSION_MAX_MESSAGES")
	setInt64(&config.Session.MaxAttachmentSize, "AGENTGATE_SESSION_MAX_ATTACHMENT_SIZE")
	setDuration(&config.Session.TTL, "AGENTGATE_SESSION_TTL")
	setDuration(&config.Approval.Timeout, "AGENTGATE_APPROVAL_TIMEOUT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}

// SessionDefaults converts the configured per-session defaults into the
// value the session service applies at creation.
func (c *Config) SessionDefaults() types.SessionConfig {
	return types.SessionConfig{
		MaxMessages:       c.Session.MaxMessages,
		MaxAttachmentSize: c.Session.MaxAttachmentSize,
		TTL:               time.Duration(c.Session.TTL),
	}
}

// Duration is a time.Duration that unmarshals from either a JSON number of
// nanoseconds or a duration string such as "5m".
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	default:
		return fmt.Errorf("invalid duration: %s", string(data))
	}
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
