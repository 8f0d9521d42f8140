// Package bot turns chat messages into orchestrator calls. Messages starting
// with the command prefix are routed to a command handler; everything else is
// answered by the completion backend in the user's persona.
//
// The bot is transport agnostic: the Matrix adapter and "banter chat" both
// feed it messages and deliver the replies it returns.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/papercomputeco/banter/pkg/logger"
	"github.com/papercomputeco/banter/pkg/persona"
	"github.com/papercomputeco/banter/pkg/preference"
	"github.com/papercomputeco/banter/pkg/storage"
	"github.com/papercomputeco/banter/pkg/utils"
)

// DefaultPrefix marks a message as a command.
const DefaultPrefix = "!"

// Replies shared across transports.
const (
	Apology         = "Sorry, I couldn't come up with a reply right now. Please try again later."
	SomethingWrong  = "Something went wrong, please try again later."
	Registered      = "You are registered, now you can start using the bot."
	NotRegistered   = "You are not registered yet. Send !start first."
	UnknownCommand  = "Unknown command. Send !help for the list of commands."
	HistoryReset    = "Your chat history has been reset."
	NoHistory       = "There was no chat history to reset."
	ModeSavedLater  = "Mode saved. It may take up to an hour to take effect."
	aboutTextFormat = "banter %s: a chat assistant that answers in the style you pick with !mode."
)

// Dialogue is the orchestrator surface the bot drives.
type Dialogue interface {
	Register(ctx context.Context, userID, displayName string) (*storage.Profile, error)
	HandleMessage(ctx context.Context, userID, text string) (string, error)
	Persona(ctx context.Context, userID string) persona.Persona
	SetPersona(ctx context.Context, userID string, p persona.Persona) error
	Reset(ctx context.Context, userID string) (bool, error)
}

// Message is one inbound chat message.
type Message struct {
	UserID string
	Text   string

	// DisplayName resolves the sender's name; only called by !start.
	// When nil the user id is used.
	DisplayName func(ctx context.Context) string
}

func (m Message) displayName(ctx context.Context) string {
	if m.DisplayName != nil {
		if name := m.DisplayName(ctx); name != "" {
			return name
		}
	}
	return m.UserID
}

// Command is a parsed command message.
type Command struct {
	Name string
	Args []string
}

// ErrNotACommand is returned by Parse for plain messages.
var ErrNotACommand = errors.New("not a command")

// handler answers a command with one or more replies.
type handler func(ctx context.Context, cmd *Command, msg Message) []string

type commandInfo struct {
	name        string
	description string
	handle      handler
}

// Config configures a Bot.
type Config struct {
	Dialogue Dialogue

	// Prefix defaults to DefaultPrefix.
	Prefix string
	Logger *slog.Logger
}

// Bot routes messages for every user; it holds no per-user state.
type Bot struct {
	dialogue Dialogue
	prefix   string
	commands []commandInfo
	logger   *slog.Logger
}

// New creates a Bot.
func New(c Config) (*Bot, error) {
	if c.Dialogue == nil {
		return nil, errors.New("bot: dialogue is required")
	}

	prefix := c.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	b := &Bot{
		dialogue: c.Dialogue,
		prefix:   prefix,
		logger:   logger.OrNop(c.Logger),
	}

	b.commands = []commandInfo{
		{name: "start", description: "start using the bot", handle: b.handleStart},
		{name: "help", description: "list of available commands", handle: b.handleHelp},
		{name: "reset", description: "reset your chat history", handle: b.handleReset},
		{name: "about", description: "show information about the bot", handle: b.handleAbout},
		{name: "mode", description: "show or change the reply style (strict, neutral, casual)", handle: b.handleMode},
	}

	return b, nil
}

// Parse parses a command message. Command names are case-insensitive.
func (b *Bot) Parse(text string) (*Command, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, b.prefix) {
		return nil, ErrNotACommand
	}

	parts := strings.Fields(strings.TrimPrefix(text, b.prefix))
	if len(parts) == 0 {
		return nil, ErrNotACommand
	}

	return &Command{
		Name: strings.ToLower(parts[0]),
		Args: parts[1:],
	}, nil
}

// Handle answers msg. It always returns at least one reply.
func (b *Bot) Handle(ctx context.Context, msg Message) []string {
	cmd, err := b.Parse(msg.Text)
	if errors.Is(err, ErrNotACommand) {
		return []string{b.chat(ctx, msg)}
	}

	for _, c := range b.commands {
		if c.name == cmd.Name {
			return c.handle(ctx, cmd, msg)
		}
	}
	return []string{UnknownCommand}
}

func (b *Bot) chat(ctx context.Context, msg Message) string {
	if strings.TrimSpace(msg.Text) == "" {
		return UnknownCommand
	}

	reply, err := b.dialogue.HandleMessage(ctx, msg.UserID, msg.Text)
	if err != nil {
		b.logger.Error("failed to answer message", "user_id", msg.UserID, "error", err)
		return Apology
	}
	return reply
}

func (b *Bot) handleStart(ctx context.Context, _ *Command, msg Message) []string {
	name := msg.displayName(ctx)
	replies := []string{fmt.Sprintf("Hello, %s!\nWait a moment, I'm registering you.", name)}

	if _, err := b.dialogue.Register(ctx, msg.UserID, name); err != nil {
		b.logger.Error("failed to register user", "user_id", msg.UserID, "error", err)
		return append(replies, SomethingWrong)
	}
	return append(replies, Registered)
}

func (b *Bot) handleHelp(context.Context, *Command, Message) []string {
	var sb strings.Builder
	sb.WriteString("Here is the list of available commands:\n")
	for _, c := range b.commands {
		fmt.Fprintf(&sb, "%s%s - %s\n", b.prefix, c.name, c.description)
	}
	return []string{strings.TrimRight(sb.String(), "\n")}
}

func (b *Bot) handleReset(ctx context.Context, _ *Command, msg Message) []string {
	deleted, err := b.dialogue.Reset(ctx, msg.UserID)
	switch {
	case err != nil:
		b.logger.Error("failed to reset transcript", "user_id", msg.UserID, "error", err)
		return []string{SomethingWrong}
	case deleted:
		return []string{HistoryReset}
	default:
		return []string{NoHistory}
	}
}

func (b *Bot) handleAbout(context.Context, *Command, Message) []string {
	return []string{fmt.Sprintf(aboutTextFormat, utils.Version)}
}

func (b *Bot) handleMode(ctx context.Context, cmd *Command, msg Message) []string {
	if len(cmd.Args) == 0 {
		current := b.dialogue.Persona(ctx, msg.UserID)
		return []string{fmt.Sprintf("Current mode: %s\nAvailable modes: %s", current.Label(), modeNames())}
	}

	p, err := persona.Parse(cmd.Args[0])
	if err != nil {
		return []string{fmt.Sprintf("Unknown mode %q. Available modes: %s", cmd.Args[0], modeNames())}
	}

	err = b.dialogue.SetPersona(ctx, msg.UserID, p)
	switch {
	case err == nil:
		return []string{fmt.Sprintf("Mode set to %s.", p.Label())}
	case storage.IsNotFound(err):
		return []string{NotRegistered}
	case errors.Is(err, preference.ErrCacheNotUpdated):
		b.logger.Warn("persona saved but cache not updated", "user_id", msg.UserID, "error", err)
		return []string{ModeSavedLater}
	default:
		b.logger.Error("failed to set persona", "user_id", msg.UserID, "persona", p, "error", err)
		return []string{SomethingWrong}
	}
}

func modeNames() string {
	names := make([]string, 0, len(persona.All()))
	for _, p := range persona.All() {
		names = append(names, strings.ToLower(p.String()))
	}
	return strings.Join(names, ", ")
}
