package api

import (
	"context"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/banter/pkg/llm"
	"github.com/papercomputeco/banter/pkg/logger"
	"github.com/papercomputeco/banter/pkg/persona"
	"github.com/papercomputeco/banter/pkg/storage"
)

// Dialogue is the orchestrator surface the API exposes.
type Dialogue interface {
	Register(ctx context.Context, userID, displayName string) (*storage.Profile, error)
	HandleMessage(ctx context.Context, userID, text string) (string, error)
	Persona(ctx context.Context, userID string) persona.Persona
	SetPersona(ctx context.Context, userID string, p persona.Persona) error
	Transcript(ctx context.Context, userID string) ([]llm.Turn, error)
	Reset(ctx context.Context, userID string) (bool, error)
}

// Server is the HTTP API server for banter.
type Server struct {
	config   Config
	dialogue Dialogue
	logger   *slog.Logger
	app      *fiber.App
}

// NewServer creates a new API server.
// The dialogue is injected so it can be shared with the Matrix bot.
func NewServer(config Config, dialogue Dialogue, log *slog.Logger) *Server {
	// Handler values outlive the request: ids end up in queued exchange
	// events and in-memory stores, so they must not alias fasthttp buffers.
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		Immutable:             true,
	})

	s := &Server{
		config:   config,
		dialogue: dialogue,
		logger:   logger.OrNop(log),
		app:      app,
	}

	app.Get("/ping", s.handlePing)

	v1 := app.Group("/v1")
	v1.Post("/users", s.handleRegister)
	v1.Get("/users/:id/persona", s.handleGetPersona)
	v1.Put("/users/:id/persona", s.handleSetPersona)
	v1.Post("/users/:id/messages", s.handleMessage)
	v1.Get("/users/:id/transcript", s.handleGetTranscript)
	v1.Delete("/users/:id/transcript", s.handleResetTranscript)

	if config.MetricsHandler != nil {
		app.Get("/metrics", adaptor.HTTPHandler(config.MetricsHandler))
	}

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
