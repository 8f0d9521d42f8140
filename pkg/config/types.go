package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent banter configuration stored as config.toml
// in the .banter/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version int           `toml:"version"`
	Storage StorageConfig `toml:"storage"`
	Cache   CacheConfig   `toml:"cache"`
	LLM     LLMConfig     `toml:"llm"`
	Matrix  MatrixConfig  `toml:"matrix"`
	API     APIConfig     `toml:"api"`
	Events  EventsConfig  `toml:"events"`
	Metrics MetricsConfig `toml:"metrics"`
}

// StorageConfig selects and configures the durable profile store.
type StorageConfig struct {
	// Driver is one of "sqlite", "postgres" or "memory".
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// CacheConfig selects and configures the fast cache holding personas and
// transcripts. Durations use time.ParseDuration syntax ("12h", "90m").
type CacheConfig struct {
	// Provider is one of "redis" or "memory".
	Provider      string `toml:"provider,omitempty"`
	RedisAddr     string `toml:"redis_addr,omitempty"`
	RedisDB       int    `toml:"redis_db,omitempty"`
	RedisPassword string `toml:"redis_password,omitempty"`
	TranscriptTTL string `toml:"transcript_ttl,omitempty"`
	PersonaTTL    string `toml:"persona_ttl,omitempty"`
	MaxMessages   int    `toml:"max_messages,omitempty"`
}

// TranscriptTTLDuration parses TranscriptTTL.
func (c CacheConfig) TranscriptTTLDuration() (time.Duration, error) {
	return parseTTL("cache.transcript_ttl", c.TranscriptTTL)
}

// PersonaTTLDuration parses PersonaTTL.
func (c CacheConfig) PersonaTTLDuration() (time.Duration, error) {
	return parseTTL("cache.persona_ttl", c.PersonaTTL)
}

func parseTTL(key, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid value for %s: must be positive", key)
	}
	return d, nil
}

// LLMConfig configures the chat completion backend.
type LLMConfig struct {
	Provider string `toml:"provider,omitempty"`
	BaseURL  string `toml:"base_url,omitempty"`
	Model    string `toml:"model,omitempty"`
	APIKey   string `toml:"api_key,omitempty"`
}

// MatrixConfig holds the credentials the bot logs in to Matrix with.
type MatrixConfig struct {
	Homeserver  string   `toml:"homeserver,omitempty"`
	UserID      string   `toml:"user_id,omitempty"`
	AccessToken string   `toml:"access_token,omitempty"`
	Rooms       []string `toml:"rooms,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// EventsConfig configures where exchange events are published.
type EventsConfig struct {
	// Provider is one of "nop" or "kafka".
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Namespace string `toml:"namespace,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func intKey(name string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.Itoa(*field(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = n
			return nil
		},
	}
}

func durationKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := parseTTL(name, v); err != nil {
				return err
			}
			*field(c) = v
			return nil
		},
	}
}

// listKey stores comma separated values as a TOML array.
func listKey(field func(c *Config) *[]string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strings.Join(*field(c), ",") },
		set: func(c *Config, v string) error {
			var out []string
			for _, item := range strings.Split(v, ",") {
				if item = strings.TrimSpace(item); item != "" {
					out = append(out, item)
				}
			}
			*field(c) = out
			return nil
		},
	}
}

func oneOfKey(name string, allowed []string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			for _, a := range allowed {
				if v == a {
					*field(c) = v
					return nil
				}
			}
			return fmt.Errorf("invalid value for %s: %q (allowed: %s)", name, v, strings.Join(allowed, ", "))
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.driver": oneOfKey("storage.driver", []string{"sqlite", "postgres", "memory"},
		func(c *Config) *string { return &c.Storage.Driver }),
	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),

	"cache.provider": oneOfKey("cache.provider", []string{"redis", "memory"},
		func(c *Config) *string { return &c.Cache.Provider }),
	"cache.redis_addr":     stringKey(func(c *Config) *string { return &c.Cache.RedisAddr }),
	"cache.redis_db":       intKey("cache.redis_db", func(c *Config) *int { return &c.Cache.RedisDB }),
	"cache.redis_password": stringKey(func(c *Config) *string { return &c.Cache.RedisPassword }),
	"cache.transcript_ttl": durationKey("cache.transcript_ttl", func(c *Config) *string { return &c.Cache.TranscriptTTL }),
	"cache.persona_ttl":    durationKey("cache.persona_ttl", func(c *Config) *string { return &c.Cache.PersonaTTL }),
	"cache.max_messages":   intKey("cache.max_messages", func(c *Config) *int { return &c.Cache.MaxMessages }),

	"llm.provider": oneOfKey("llm.provider", []string{"openai"},
		func(c *Config) *string { return &c.LLM.Provider }),
	"llm.base_url": stringKey(func(c *Config) *string { return &c.LLM.BaseURL }),
	"llm.model":    stringKey(func(c *Config) *string { return &c.LLM.Model }),
	"llm.api_key":  stringKey(func(c *Config) *string { return &c.LLM.APIKey }),

	"matrix.homeserver":   stringKey(func(c *Config) *string { return &c.Matrix.Homeserver }),
	"matrix.user_id":      stringKey(func(c *Config) *string { return &c.Matrix.UserID }),
	"matrix.access_token": stringKey(func(c *Config) *string { return &c.Matrix.AccessToken }),
	"matrix.rooms":        listKey(func(c *Config) *[]string { return &c.Matrix.Rooms }),

	"api.listen": stringKey(func(c *Config) *string { return &c.API.Listen }),

	"events.provider": oneOfKey("events.provider", []string{"nop", "kafka"},
		func(c *Config) *string { return &c.Events.Provider }),
	"events.brokers": listKey(func(c *Config) *[]string { return &c.Events.Brokers }),
	"events.topic":   stringKey(func(c *Config) *string { return &c.Events.Topic }),

	"metrics.namespace": stringKey(func(c *Config) *string { return &c.Metrics.Namespace }),
}

// secretKeys are masked by "banter config list".
var secretKeys = map[string]bool{
	"storage.postgres_dsn": true,
	"cache.redis_password": true,
	"llm.api_key":          true,
	"matrix.access_token":  true,
}

// IsSecretKey reports whether key holds a credential.
func IsSecretKey(key string) bool {
	return secretKeys[key]
}
