// Package conversation assembles the message list sent to the completion
// backend and keeps each user's rolling transcript in the cache.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/banter/pkg/cache"
	"github.com/papercomputeco/banter/pkg/llm"
	"github.com/papercomputeco/banter/pkg/logger"
	"github.com/papercomputeco/banter/pkg/metrics"
	"github.com/papercomputeco/banter/pkg/persona"
)

const (
	// DefaultMaxMessages bounds the transcript length.
	DefaultMaxMessages = 40

	// DefaultTTL is how long an idle transcript is kept.
	DefaultTTL = 12 * time.Hour
)

// Key returns the cache key holding the transcript for userID.
func Key(userID string) string {
	return "conv:" + userID
}

// BackendError wraps a failure of the completion backend. The user turn has
// already been recorded when it is returned.
type BackendError struct {
	Err error
}

func (e *BackendError) Error() string {
	return "completion backend failed: " + e.Err.Error()
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// IsBackendError reports whether err came from the completion backend.
func IsBackendError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}

// ComposePrompt returns the instruction prefix for p: exactly one system
// turn.
func ComposePrompt(p persona.Persona) []llm.Turn {
	return []llm.Turn{llm.NewTurn(llm.RoleSystem, p.Instruction())}
}

// Config wires a Builder.
type Config struct {
	Cache   cache.Store
	Backend llm.Completer

	// MaxMessages bounds the transcript. Defaults to DefaultMaxMessages.
	MaxMessages int

	// TTL of an idle transcript. Defaults to DefaultTTL.
	TTL time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Builder owns the conv:* keys of the cache.
type Builder struct {
	cache       cache.Store
	backend     llm.Completer
	maxMessages int
	ttl         time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// New creates a Builder.
func New(c Config) (*Builder, error) {
	if c.Cache == nil {
		return nil, errors.New("conversation: cache is required")
	}
	if c.Backend == nil {
		return nil, errors.New("conversation: completion backend is required")
	}

	maxMessages := c.MaxMessages
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Builder{
		cache:       c.Cache,
		backend:     c.Backend,
		maxMessages: maxMessages,
		ttl:         ttl,
		logger:      logger.OrNop(c.Logger),
		metrics:     c.Metrics,
	}, nil
}

// HandleTurn records the user's text, asks the backend for a reply with the
// persona prompt and the transcript as context, records the reply and returns
// it. Cache failures are logged and do not stop the turn; backend failures
// are returned as *BackendError.
func (b *Builder) HandleTurn(ctx context.Context, userID, text string, p persona.Persona) (string, error) {
	userTurn := llm.NewTurn(llm.RoleUser, text)
	b.append(ctx, userID, userTurn)

	history, err := b.History(ctx, userID)
	if err != nil {
		b.metrics.StoreError(metrics.StoreCache, "read")
		b.logger.Warn("transcript read failed", "key", Key(userID), "error", err)
	}
	if len(history) == 0 {
		history = []llm.Turn{userTurn}
	}

	turns := append(ComposePrompt(p), history...)

	start := time.Now()
	reply, err := b.backend.Complete(ctx, turns)
	elapsed := time.Since(start)
	if err != nil {
		b.metrics.ObserveTurn(metrics.OutcomeBackendError, elapsed)
		b.logger.Error("completion backend failed",
			"user_id", userID,
			"persona", p.String(),
			"error", err,
		)
		return "", &BackendError{Err: err}
	}
	b.metrics.ObserveTurn(metrics.OutcomeOK, elapsed)

	b.append(ctx, userID, llm.NewTurn(llm.RoleAssistant, reply))

	b.logger.Debug("turn completed",
		"user_id", userID,
		"persona", p.String(),
		"context_turns", len(turns),
		"duration", elapsed,
	)

	return reply, nil
}

// History returns the transcript for userID, oldest first. Entries that do
// not decode are skipped.
func (b *Builder) History(ctx context.Context, userID string) ([]llm.Turn, error) {
	key := Key(userID)

	raw, err := b.cache.ReadRange(ctx, key, 0, -1)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	turns := make([]llm.Turn, 0, len(raw))
	for _, r := range raw {
		t, err := llm.DecodeTurn(r)
		if err != nil {
			b.logger.Warn("skipping malformed transcript entry", "key", key, "error", err)
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// Reset deletes the transcript for userID and reports whether one existed.
func (b *Builder) Reset(ctx context.Context, userID string) (bool, error) {
	existed, err := b.cache.Delete(ctx, Key(userID))
	if err != nil {
		b.metrics.StoreError(metrics.StoreCache, "delete")
		return false, fmt.Errorf("reset transcript: %w", err)
	}
	return existed, nil
}

// append writes t to the transcript, logging failures.
func (b *Builder) append(ctx context.Context, userID string, t llm.Turn) {
	key := Key(userID)

	encoded, err := t.Encode()
	if err != nil {
		b.logger.Error("failed to encode turn", "key", key, "role", t.Role, "error", err)
		return
	}

	if err := b.cache.AppendAndTrim(ctx, key, encoded, b.maxMessages, b.ttl); err != nil {
		b.metrics.StoreError(metrics.StoreCache, "append")
		b.logger.Warn("transcript append failed", "key", key, "role", t.Role, "error", err)
	}
}
