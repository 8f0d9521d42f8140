// Package matrix connects the bot to a Matrix homeserver. Every text message
// in a watched room is handed to the bot and its replies are sent back to the
// same room.
package matrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/papercomputeco/banter/bot"
	"github.com/papercomputeco/banter/pkg/logger"
	"github.com/papercomputeco/banter/pkg/utils"
)

const (
	backoffMin    = 2 * time.Second
	backoffMax    = 5 * time.Minute
	typingTimeout = 30 * time.Second
)

// Handler answers one message. *bot.Bot implements it.
type Handler interface {
	Handle(ctx context.Context, msg bot.Message) []string
}

// Config holds Matrix client configuration.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string

	// Rooms restricts the bot to these room ids. Empty means every room the
	// bot is a member of, and invites are accepted.
	Rooms []string

	Logger *slog.Logger
}

// Client wraps the mautrix client.
type Client struct {
	client  *mautrix.Client
	config  Config
	handler Handler
	logger  *slog.Logger

	startedAt  time.Time
	stopCh     chan struct{}
	stopOnce   sync.Once
	cancelSync context.CancelFunc

	// syncDone is closed when the sync loop exits; nil until Start.
	syncDone chan struct{}

	// wg tracks answers in flight.
	wg sync.WaitGroup
}

// New creates a Matrix client that routes messages to handler.
func New(c Config, handler Handler) (*Client, error) {
	if c.Homeserver == "" || c.UserID == "" || c.AccessToken == "" {
		return nil, errors.New("matrix: homeserver, user id and access token are required")
	}
	if handler == nil {
		return nil, errors.New("matrix: handler is required")
	}

	client, err := mautrix.NewClient(c.Homeserver, id.UserID(c.UserID), c.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Matrix client: %w", err)
	}

	return &Client{
		client:  client,
		config:  c,
		handler: handler,
		logger:  logger.OrNop(c.Logger),
		stopCh:  make(chan struct{}),
	}, nil
}

// Start joins the configured rooms and syncs in the background, reconnecting
// with exponential back-off until Stop is called.
func (c *Client) Start(ctx context.Context) error {
	c.startedAt = time.Now()

	syncer, ok := c.client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return errors.New("matrix: unexpected syncer type")
	}
	syncer.OnEventType(event.EventMessage, c.handleMessage)
	syncer.OnEventType(event.StateMember, c.handleMembership)

	for _, roomID := range c.config.Rooms {
		if err := c.joinRoom(ctx, id.RoomID(roomID)); err != nil {
			return fmt.Errorf("failed to join room %s: %w", roomID, err)
		}
	}

	c.logger.Info("starting matrix sync", "homeserver", c.config.Homeserver, "user_id", c.config.UserID)

	// StopSync only ends a Sync that is already running, so the loop also
	// watches a context Stop cancels.
	syncCtx, cancel := context.WithCancel(ctx)
	c.cancelSync = cancel
	c.syncDone = make(chan struct{})

	go func() {
		defer close(c.syncDone)

		backoff := backoffMin
		for {
			err := c.client.SyncWithContext(syncCtx)
			if err == nil || syncCtx.Err() != nil {
				return
			}

			select {
			case <-c.stopCh:
				return
			default:
			}

			c.logger.Error("matrix sync stopped, reconnecting", "error", err, "backoff", backoff)
			select {
			case <-c.stopCh:
				return
			case <-time.After(backoff):
			}

			backoff = min(backoff*2, backoffMax)
		}
	}()

	return nil
}

// Stop ends syncing and waits for in-flight messages to be answered.
// Event handlers run inside the sync loop, so no answer can start once the
// loop has exited.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		if c.cancelSync != nil {
			c.cancelSync()
		}
		c.client.StopSync()
	})
	if c.syncDone != nil {
		<-c.syncDone
	}
	c.wg.Wait()
}

// watches reports whether the bot answers in roomID.
func (c *Client) watches(roomID id.RoomID) bool {
	return len(c.config.Rooms) == 0 || slices.Contains(c.config.Rooms, roomID.String())
}

func (c *Client) handleMessage(ctx context.Context, evt *event.Event) {
	if evt.Sender == id.UserID(c.config.UserID) {
		return
	}

	// The first sync replays recent history.
	if time.UnixMilli(evt.Timestamp).Before(c.startedAt) {
		return
	}

	content := evt.Content.AsMessage()
	if content == nil || content.MsgType != event.MsgText || strings.TrimSpace(content.Body) == "" {
		return
	}

	if !c.watches(evt.RoomID) {
		return
	}

	c.logger.Debug("message received",
		"room_id", evt.RoomID,
		"user_id", evt.Sender,
		"preview", utils.Truncate(content.Body, 48),
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.answer(context.WithoutCancel(ctx), evt.RoomID, evt.Sender, content.Body)
	}()
}

func (c *Client) answer(ctx context.Context, roomID id.RoomID, sender id.UserID, text string) {
	if _, err := c.client.UserTyping(ctx, roomID, true, typingTimeout); err != nil {
		c.logger.Debug("failed to set typing", "room_id", roomID, "error", err)
	}

	replies := c.handler.Handle(ctx, bot.Message{
		UserID: sender.String(),
		Text:   text,
		DisplayName: func(ctx context.Context) string {
			return c.displayName(ctx, sender)
		},
	})

	if _, err := c.client.UserTyping(ctx, roomID, false, 0); err != nil {
		c.logger.Debug("failed to clear typing", "room_id", roomID, "error", err)
	}

	for _, reply := range replies {
		if _, err := c.client.SendText(ctx, roomID, reply); err != nil {
			c.logger.Error("failed to send reply", "room_id", roomID, "user_id", sender, "error", err)
			return
		}
	}
}

// handleMembership accepts invites to rooms the bot watches.
func (c *Client) handleMembership(ctx context.Context, evt *event.Event) {
	if evt.GetStateKey() != c.config.UserID {
		return
	}

	member := evt.Content.AsMember()
	if member == nil || member.Membership != event.MembershipInvite || !c.watches(evt.RoomID) {
		return
	}

	if err := c.joinRoom(ctx, evt.RoomID); err != nil {
		c.logger.Warn("failed to accept invite", "room_id", evt.RoomID, "error", err)
		return
	}
	c.logger.Info("joined room", "room_id", evt.RoomID, "invited_by", evt.Sender)
}

func (c *Client) joinRoom(ctx context.Context, roomID id.RoomID) error {
	_, err := c.client.JoinRoomByID(ctx, roomID)
	if err != nil {
		// Homeservers answer M_FORBIDDEN when the bot is already a member.
		if errors.Is(err, mautrix.MForbidden) {
			c.logger.Warn("already a member or access denied, continuing", "room_id", roomID)
			return nil
		}
		return err
	}
	return nil
}

// displayName returns the sender's profile name, or the localpart of the
// user id when the profile cannot be read.
func (c *Client) displayName(ctx context.Context, userID id.UserID) string {
	profile, err := c.client.GetProfile(ctx, userID)
	if err == nil && profile.DisplayName != "" {
		return profile.DisplayName
	}

	localpart, _, splitErr := userID.Parse()
	if splitErr != nil || localpart == "" {
		return userID.String()
	}
	return localpart
}
