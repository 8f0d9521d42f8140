// Package dialogue wires the persona resolver, the conversation builder and
// the event stream into the per-message flow every transport (Matrix, HTTP
// API, local chat) drives. The Orchestrator owns the injected store clients
// and closes them on shutdown.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/banter/pkg/cache"
	"github.com/papercomputeco/banter/pkg/conversation"
	"github.com/papercomputeco/banter/pkg/eventstream"
	"github.com/papercomputeco/banter/pkg/eventstream/nop"
	"github.com/papercomputeco/banter/pkg/eventstream/worker"
	"github.com/papercomputeco/banter/pkg/llm"
	"github.com/papercomputeco/banter/pkg/logger"
	"github.com/papercomputeco/banter/pkg/metrics"
	"github.com/papercomputeco/banter/pkg/persona"
	"github.com/papercomputeco/banter/pkg/preference"
	"github.com/papercomputeco/banter/pkg/storage"
)

// Config wires an Orchestrator. Profiles, Cache and Backend are required.
type Config struct {
	Profiles storage.Driver
	Cache    cache.Store
	Backend  llm.Completer

	// Publisher receives an event after every completed exchange.
	// Defaults to a no-op publisher.
	Publisher eventstream.Publisher

	MaxMessages   int
	TranscriptTTL time.Duration
	PersonaTTL    time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Orchestrator handles one message at a time per call; calls may run
// concurrently.
type Orchestrator struct {
	profiles  storage.Driver
	cache     cache.Store
	publisher eventstream.Publisher
	events    *worker.Pool
	personas  *preference.Resolver
	convo     *conversation.Builder
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// New creates an Orchestrator and starts its event workers.
func New(c Config) (*Orchestrator, error) {
	if c.Profiles == nil {
		return nil, errors.New("dialogue: profile store is required")
	}

	log := logger.OrNop(c.Logger)

	personas, err := preference.New(preference.Config{
		Cache:    c.Cache,
		Profiles: c.Profiles,
		TTL:      c.PersonaTTL,
		Logger:   log.With("component", "preference"),
		Metrics:  c.Metrics,
	})
	if err != nil {
		return nil, err
	}

	convo, err := conversation.New(conversation.Config{
		Cache:       c.Cache,
		Backend:     c.Backend,
		MaxMessages: c.MaxMessages,
		TTL:         c.TranscriptTTL,
		Logger:      log.With("component", "conversation"),
		Metrics:     c.Metrics,
	})
	if err != nil {
		return nil, err
	}

	publisher := c.Publisher
	if publisher == nil {
		publisher = nop.NewPublisher()
	}

	events, err := worker.NewPool(&worker.Config{
		Publisher: publisher,
		Logger:    log.With("component", "events"),
		OnDrop: func(*eventstream.ExchangeCompletedEvent) {
			c.Metrics.EventDropped()
		},
	})
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		profiles:  c.Profiles,
		cache:     c.Cache,
		publisher: publisher,
		events:    events,
		personas:  personas,
		convo:     convo,
		logger:    log,
		metrics:   c.Metrics,
	}, nil
}

// CheckHealth pings the durable store and the cache.
func (o *Orchestrator) CheckHealth(ctx context.Context) error {
	if err := o.profiles.Ping(ctx); err != nil {
		return fmt.Errorf("profile store unavailable: %w", err)
	}
	if err := o.cache.Ping(ctx); err != nil {
		return fmt.Errorf("cache unavailable: %w", err)
	}
	return nil
}

// Register creates the user's profile on first contact. Registering again
// returns the existing profile.
func (o *Orchestrator) Register(ctx context.Context, userID, displayName string) (*storage.Profile, error) {
	profile, created, err := o.profiles.Create(ctx, userID, displayName)
	if err != nil {
		o.metrics.StoreError(metrics.StoreProfiles, "create")
		return nil, fmt.Errorf("register %s: %w", userID, err)
	}

	o.metrics.Registration(created)
	if created {
		o.logger.Info("user registered", "user_id", userID, "display_name", displayName)
	}
	return profile, nil
}

// HandleMessage answers text from userID in the user's current persona.
// Backend failures are returned as *conversation.BackendError.
func (o *Orchestrator) HandleMessage(ctx context.Context, userID, text string) (string, error) {
	start := time.Now()

	p := o.personas.GetPersona(ctx, userID)
	reply, err := o.convo.HandleTurn(ctx, userID, text, p)
	if err != nil {
		return "", err
	}

	o.events.Enqueue(eventstream.NewExchangeCompleted(userID, p, text, reply, time.Since(start)))
	return reply, nil
}

// Persona returns the user's current persona.
func (o *Orchestrator) Persona(ctx context.Context, userID string) persona.Persona {
	return o.personas.GetPersona(ctx, userID)
}

// SetPersona changes the user's persona. See preference.Resolver.SetPersona
// for the error contract.
func (o *Orchestrator) SetPersona(ctx context.Context, userID string, p persona.Persona) error {
	return o.personas.SetPersona(ctx, userID, p)
}

// Transcript returns the user's recent turns, oldest first.
func (o *Orchestrator) Transcript(ctx context.Context, userID string) ([]llm.Turn, error) {
	return o.convo.History(ctx, userID)
}

// Reset forgets the user's transcript. The persona is kept.
func (o *Orchestrator) Reset(ctx context.Context, userID string) (bool, error) {
	return o.convo.Reset(ctx, userID)
}

// Close drains pending events and closes the publisher and both stores.
func (o *Orchestrator) Close() error {
	o.events.Close()

	return errors.Join(
		o.publisher.Close(),
		o.cache.Close(),
		o.profiles.Close(),
	)
}
