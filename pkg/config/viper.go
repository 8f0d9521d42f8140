package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/banter/pkg/dotdir"
)

// EnvPrefix prefixes every environment variable banter reads.
const EnvPrefix = "BANTER"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the BANTER_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (BANTER_LLM_API_KEY, BANTER_CACHE_REDIS_ADDR, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: BANTER_API_LISTEN, BANTER_STORAGE_SQLITE_PATH, etc.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	// Cache
	v.SetDefault("cache.provider", d.Cache.Provider)
	v.SetDefault("cache.redis_addr", d.Cache.RedisAddr)
	v.SetDefault("cache.redis_db", d.Cache.RedisDB)
	v.SetDefault("cache.redis_password", d.Cache.RedisPassword)
	v.SetDefault("cache.transcript_ttl", d.Cache.TranscriptTTL)
	v.SetDefault("cache.persona_ttl", d.Cache.PersonaTTL)
	v.SetDefault("cache.max_messages", d.Cache.MaxMessages)

	// LLM
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.api_key", d.LLM.APIKey)

	// Matrix
	v.SetDefault("matrix.homeserver", d.Matrix.Homeserver)
	v.SetDefault("matrix.user_id", d.Matrix.UserID)
	v.SetDefault("matrix.access_token", d.Matrix.AccessToken)
	v.SetDefault("matrix.rooms", d.Matrix.Rooms)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)

	// Metrics
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
}

// FromViper resolves every supported key through v's precedence chain into
// a Config. List values given as a single comma separated string (the form
// environment variables take) are split.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Storage: StorageConfig{
			Driver:      v.GetString("storage.driver"),
			SQLitePath:  v.GetString("storage.sqlite_path"),
			PostgresDSN: v.GetString("storage.postgres_dsn"),
		},
		Cache: CacheConfig{
			Provider:      v.GetString("cache.provider"),
			RedisAddr:     v.GetString("cache.redis_addr"),
			RedisDB:       v.GetInt("cache.redis_db"),
			RedisPassword: v.GetString("cache.redis_password"),
			TranscriptTTL: v.GetString("cache.transcript_ttl"),
			PersonaTTL:    v.GetString("cache.persona_ttl"),
			MaxMessages:   v.GetInt("cache.max_messages"),
		},
		LLM: LLMConfig{
			Provider: v.GetString("llm.provider"),
			BaseURL:  v.GetString("llm.base_url"),
			Model:    v.GetString("llm.model"),
			APIKey:   v.GetString("llm.api_key"),
		},
		Matrix: MatrixConfig{
			Homeserver:  v.GetString("matrix.homeserver"),
			UserID:      v.GetString("matrix.user_id"),
			AccessToken: v.GetString("matrix.access_token"),
			Rooms:       splitList(v.GetStringSlice("matrix.rooms")),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Events: EventsConfig{
			Provider: v.GetString("events.provider"),
			Brokers:  splitList(v.GetStringSlice("events.brokers")),
			Topic:    v.GetString("events.topic"),
		},
		Metrics: MetricsConfig{
			Namespace: v.GetString("metrics.namespace"),
		},
	}
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
