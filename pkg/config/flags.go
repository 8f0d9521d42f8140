package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --model
// on both "banter serve" and "banter chat").
type Flag struct {
	// Name is the long flag name (e.g. "model").
	Name string

	// Shorthand is the one-letter short flag (e.g. "m"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "llm.model").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddIntFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagStorageDriver = "storage-driver"
	FlagSQLite        = "sqlite"
	FlagPostgresDSN   = "postgres-dsn"
	FlagCacheProvider = "cache-provider"
	FlagRedisAddr     = "redis-addr"
	FlagMaxMessages   = "max-messages"
	FlagTranscriptTTL = "transcript-ttl"
	FlagPersonaTTL    = "persona-ttl"
	FlagLLMBaseURL    = "llm-base-url"
	FlagModel         = "model"
	FlagAPIListen     = "api-listen"
	FlagHomeserver    = "homeserver"
	FlagEvents        = "events-provider"
)

// Flags is the registry shared by every banter command.
var Flags = FlagSet{
	FlagStorageDriver: {Name: "storage-driver", ViperKey: "storage.driver", Description: "Profile store driver (sqlite, postgres, memory)"},
	FlagSQLite:        {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to SQLite database (default: <config-dir>/banter.sqlite)"},
	FlagPostgresDSN:   {Name: "postgres-dsn", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string"},
	FlagCacheProvider: {Name: "cache-provider", ViperKey: "cache.provider", Description: "Cache provider (redis, memory)"},
	FlagRedisAddr:     {Name: "redis-addr", ViperKey: "cache.redis_addr", Description: "Redis address (host:port)"},
	FlagMaxMessages:   {Name: "max-messages", ViperKey: "cache.max_messages", Description: "Messages kept per transcript"},
	FlagTranscriptTTL: {Name: "transcript-ttl", ViperKey: "cache.transcript_ttl", Description: "Idle lifetime of a transcript (e.g. 12h)"},
	FlagPersonaTTL:    {Name: "persona-ttl", ViperKey: "cache.persona_ttl", Description: "Lifetime of a cached persona (e.g. 1h)"},
	FlagLLMBaseURL:    {Name: "llm-base-url", ViperKey: "llm.base_url", Description: "OpenAI-compatible API base URL"},
	FlagModel:         {Name: "model", Shorthand: "m", ViperKey: "llm.model", Description: "Chat model name"},
	FlagAPIListen:     {Name: "api-listen", Shorthand: "a", ViperKey: "api.listen", Description: "Address for the HTTP API to listen on (empty to disable)"},
	FlagHomeserver:    {Name: "homeserver", ViperKey: "matrix.homeserver", Description: "Matrix homeserver URL (empty to disable the Matrix bot)"},
	FlagEvents:        {Name: "events-provider", ViperKey: "events.provider", Description: "Exchange event publisher (nop, kafka)"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *int) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultInt(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().IntVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultInt returns the default int value for a viper key from NewDefaultConfig.
func defaultInt(viperKey string) int {
	v := viper.New()
	setViperDefaults(v)
	return v.GetInt(viperKey)
}
