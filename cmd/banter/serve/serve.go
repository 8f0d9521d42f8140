// Package servecmder provides the serve command, which runs the Matrix bot
// and the HTTP API against one shared orchestrator.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/banter/api"
	"github.com/papercomputeco/banter/bot"
	"github.com/papercomputeco/banter/bot/matrix"
	"github.com/papercomputeco/banter/cmd/banter/bootstrap"
	"github.com/papercomputeco/banter/pkg/config"
	"github.com/papercomputeco/banter/pkg/logger"
	"github.com/papercomputeco/banter/pkg/metrics"
)

const healthTimeout = 10 * time.Second

type serveCommander struct {
	cfg       *config.Config
	configDir string
	logFile   string
	debug     bool

	// Flag targets; resolved values are read from cfg.
	storageDriver string
	sqlitePath    string
	postgresDSN   string
	cacheProvider string
	redisAddr     string
	maxMessages   int
	transcriptTTL string
	personaTTL    string
	llmBaseURL    string
	model         string
	apiListen     string
	homeserver    string
	events        string

	logger *slog.Logger
}

var serveFlags = []string{
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagCacheProvider,
	config.FlagRedisAddr,
	config.FlagMaxMessages,
	config.FlagTranscriptTTL,
	config.FlagPersonaTTL,
	config.FlagLLMBaseURL,
	config.FlagModel,
	config.FlagAPIListen,
	config.FlagHomeserver,
	config.FlagEvents,
}

const serveLongDesc string = `Run the banter bot.

The Matrix bot starts when matrix.homeserver is set and the HTTP API starts
when api.listen is set; both share the same profile store, cache and
completion backend. The profile store and the cache are checked before
anything starts.

Settings come from flags, BANTER_* environment variables, config.toml and
the defaults, in that order.

Examples:
  banter serve
  banter serve --homeserver https://matrix.example.org
  banter serve --cache-provider memory --storage-driver memory
  banter serve --log-file /var/log/banter.log`

const serveShortDesc string = "Run the Matrix bot and the HTTP API"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := bootstrap.LoadConfig(cmd, serveFlags)
			if err != nil {
				return err
			}
			cmder.cfg = cfg
			cmder.configDir = bootstrap.ConfigDir(cmd)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagCacheProvider, &cmder.cacheProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagRedisAddr, &cmder.redisAddr)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxMessages, &cmder.maxMessages)
	config.AddStringFlag(cmd, config.Flags, config.FlagTranscriptTTL, &cmder.transcriptTTL)
	config.AddStringFlag(cmd, config.Flags, config.FlagPersonaTTL, &cmder.personaTTL)
	config.AddStringFlag(cmd, config.Flags, config.FlagLLMBaseURL, &cmder.llmBaseURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.apiListen)
	config.AddStringFlag(cmd, config.Flags, config.FlagHomeserver, &cmder.homeserver)
	config.AddStringFlag(cmd, config.Flags, config.FlagEvents, &cmder.events)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	log, closeLog, err := c.newLogger()
	if err != nil {
		return err
	}
	defer closeLog()
	c.logger = log

	if c.cfg.API.Listen == "" && c.cfg.Matrix.Homeserver == "" {
		return errors.New("nothing to serve: set api.listen or matrix.homeserver")
	}

	m := metrics.New(c.cfg.Metrics.Namespace)

	orch, err := bootstrap.NewOrchestrator(ctx, bootstrap.Options{
		Config:    c.cfg,
		ConfigDir: c.configDir,
		Logger:    c.logger,
		Metrics:   m,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := orch.Close(); err != nil {
			c.logger.Error("failed to close stores", "error", err)
		}
	}()

	healthCtx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	if err := orch.CheckHealth(healthCtx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	c.logger.Info("stores healthy",
		"storage", c.cfg.Storage.Driver,
		"cache", c.cfg.Cache.Provider,
	)

	errChan := make(chan error, 2)

	if c.cfg.API.Listen != "" {
		apiServer := api.NewServer(api.Config{
			ListenAddr:     c.cfg.API.Listen,
			MetricsHandler: m.Handler(),
		}, orch, c.logger.With("component", "api"))

		go func() {
			if err := apiServer.Run(); err != nil {
				errChan <- fmt.Errorf("API server error: %w", err)
			}
		}()
		defer func() {
			if err := apiServer.Shutdown(); err != nil {
				c.logger.Error("failed to shut down API server", "error", err)
			}
		}()
	}

	if c.cfg.Matrix.Homeserver != "" {
		b, err := bot.New(bot.Config{Dialogue: orch, Logger: c.logger.With("component", "bot")})
		if err != nil {
			return err
		}

		matrixClient, err := matrix.New(matrix.Config{
			Homeserver:  c.cfg.Matrix.Homeserver,
			UserID:      c.cfg.Matrix.UserID,
			AccessToken: c.cfg.Matrix.AccessToken,
			Rooms:       c.cfg.Matrix.Rooms,
			Logger:      c.logger.With("component", "matrix"),
		}, b)
		if err != nil {
			return err
		}
		if err := matrixClient.Start(ctx); err != nil {
			return err
		}
		defer matrixClient.Stop()
	}

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	return nil
}

// newLogger writes pretty logs to stdout and, with --log-file, JSON logs to
// the file as well.
func (c *serveCommander) newLogger() (*slog.Logger, func(), error) {
	console := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))
	if c.logFile == "" {
		return console, func() {}, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	file := logger.New(logger.WithDebug(c.debug), logger.WithJSON(true), logger.WithWriter(f))
	return logger.Multi(console, file), func() { _ = f.Close() }, nil
}
