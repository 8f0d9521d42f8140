// Package bootstrap resolves configuration and builds the orchestrator shared
// by the banter commands.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	cacheutils "github.com/papercomputeco/banter/pkg/cache/utils"
	"github.com/papercomputeco/banter/pkg/config"
	"github.com/papercomputeco/banter/pkg/dialogue"
	"github.com/papercomputeco/banter/pkg/dotdir"
	eventstreamutils "github.com/papercomputeco/banter/pkg/eventstream/utils"
	llmutils "github.com/papercomputeco/banter/pkg/llm/utils"
	"github.com/papercomputeco/banter/pkg/logger"
	"github.com/papercomputeco/banter/pkg/metrics"
	"github.com/papercomputeco/banter/pkg/storage"
	storageutils "github.com/papercomputeco/banter/pkg/storage/utils"
)

// ConfigDir returns the persistent --config-dir flag value.
func ConfigDir(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("config-dir")
	return dir
}

// LoadConfig resolves the configuration for cmd: flags registered under
// flagKeys override BANTER_* environment variables, which override
// config.toml, which overrides the defaults.
func LoadConfig(cmd *cobra.Command, flagKeys []string) (*config.Config, error) {
	v, err := config.InitViper(ConfigDir(cmd))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)

	return config.FromViper(v), nil
}

// StoreFlags are the flags every user management command accepts.
var StoreFlags = []string{
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagCacheProvider,
	config.FlagRedisAddr,
}

// AddStoreFlags registers StoreFlags on cmd.
func AddStoreFlags(cmd *cobra.Command) {
	var driver, sqlitePath, dsn, provider, addr string
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &driver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &dsn)
	config.AddStringFlag(cmd, config.Flags, config.FlagCacheProvider, &provider)
	config.AddStringFlag(cmd, config.Flags, config.FlagRedisAddr, &addr)
}

// Open resolves the configuration for a user management command and builds
// an orchestrator from it.
func Open(cmd *cobra.Command) (*dialogue.Orchestrator, error) {
	cfg, err := LoadConfig(cmd, StoreFlags)
	if err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return NewOrchestrator(ctx, Options{
		Config:    cfg,
		ConfigDir: ConfigDir(cmd),
	})
}

// Options configures NewOrchestrator.
type Options struct {
	Config    *config.Config
	ConfigDir string
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// NewOrchestrator connects the stores, the completion backend and the event
// publisher described by o.Config. The returned orchestrator owns them all.
func NewOrchestrator(ctx context.Context, o Options) (*dialogue.Orchestrator, error) {
	cfg := o.Config
	log := logger.OrNop(o.Logger)

	transcriptTTL, err := cfg.Cache.TranscriptTTLDuration()
	if err != nil {
		return nil, err
	}
	personaTTL, err := cfg.Cache.PersonaTTLDuration()
	if err != nil {
		return nil, err
	}

	profiles, err := newProfiles(ctx, cfg, o.ConfigDir, log)
	if err != nil {
		return nil, err
	}

	kv, err := cacheutils.NewStore(&cacheutils.NewStoreOpts{
		ProviderType: cfg.Cache.Provider,
		Addr:         cfg.Cache.RedisAddr,
		Password:     cfg.Cache.RedisPassword,
		DB:           cfg.Cache.RedisDB,
	})
	if err != nil {
		return nil, closeAll(err, profiles)
	}
	log.Debug("using cache", "provider", cfg.Cache.Provider, "addr", cfg.Cache.RedisAddr)

	backend, err := llmutils.NewCompleter(&llmutils.NewCompleterOpts{
		ProviderType: cfg.LLM.Provider,
		BaseURL:      cfg.LLM.BaseURL,
		Model:        cfg.LLM.Model,
		APIKey:       cfg.LLM.APIKey,
	})
	if err != nil {
		return nil, closeAll(err, profiles, kv)
	}

	publisher, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: cfg.Events.Provider,
		Brokers:      cfg.Events.Brokers,
		Topic:        cfg.Events.Topic,
	})
	if err != nil {
		return nil, closeAll(err, profiles, kv)
	}

	orch, err := dialogue.New(dialogue.Config{
		Profiles:      profiles,
		Cache:         kv,
		Backend:       backend,
		Publisher:     publisher,
		MaxMessages:   cfg.Cache.MaxMessages,
		TranscriptTTL: transcriptTTL,
		PersonaTTL:    personaTTL,
		Logger:        log,
		Metrics:       o.Metrics,
	})
	if err != nil {
		return nil, closeAll(err, profiles, kv, publisher)
	}

	return orch, nil
}

func newProfiles(ctx context.Context, cfg *config.Config, configDir string, log *slog.Logger) (storage.Driver, error) {
	opts := &storageutils.NewDriverOpts{
		DriverType:  cfg.Storage.Driver,
		PostgresDSN: cfg.Storage.PostgresDSN,
	}

	if cfg.Storage.Driver == "sqlite" {
		path, err := dotdir.NewManager().SQLitePath(cfg.Storage.SQLitePath, configDir)
		if err != nil {
			return nil, fmt.Errorf("resolving sqlite path: %w", err)
		}
		opts.SQLitePath = path
		log.Debug("using sqlite profile store", "path", path)
	}

	profiles, err := storageutils.NewDriver(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("opening profile store: %w", err)
	}
	return profiles, nil
}

type closer interface {
	Close() error
}

// closeAll closes what was opened before a construction step failed.
func closeAll(err error, opened ...closer) error {
	errs := []error{err}
	for _, c := range opened {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
