// ABOUTME: Matrix front-end: syncs with the homeserver and routes room messages
// ABOUTME: Each direct-message room is one principal; ! commands map onto router actions

package matrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/handoff-gateway/internal/chatqueue"
	"github.com/2389/handoff-gateway/internal/dedupe"
	"github.com/2389/handoff-gateway/internal/notify"
	"github.com/2389/handoff-gateway/internal/router"
)

const (
	textAskPhone      = "👋 Welcome! To contact an operator, please send your phone number: !phone <number>"
	textPhoneRequired = "📱 Please send your phone number first: !phone <number>"
	textPhoneUsage    = "❌ Usage: !phone <number>"
	textUnknown       = "🤔 Unknown command. Send !start to open the menu."
)

// networkTimeout bounds Matrix API calls made outside a send.
const networkTimeout = 10 * time.Second

// Handler is the part of the router the bridge drives.
type Handler interface {
	Start(ctx context.Context, p router.Principal) (bool, error)
	SaveContact(ctx context.Context, p router.Principal, phone string) error
	Navigate(ctx context.Context, p router.Principal, label string) error
	HandleText(ctx context.Context, p router.Principal, text string) error
	HandleAction(ctx context.Context, p router.Principal, action string) error
	HandleCommand(ctx context.Context, p router.Principal, name, args string) error
	IsStaff(p router.Principal) bool
}

// Config holds the homeserver credentials.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
}

// NewClient creates a mautrix client for the bot account.
func NewClient(cfg Config) (*mautrix.Client, error) {
	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}
	return client, nil
}

// Bot connects Matrix rooms to the router.
type Bot struct {
	client    *mautrix.Client
	self      id.UserID
	messenger notify.Messenger
	handler   Handler
	logger    *slog.Logger
	seen      *dedupe.Window
	rooms     chatqueue.Queue

	// ctx is the parent context for message processing goroutines
	ctx context.Context
}

// NewBot creates a Bot. messenger should wrap client.
func NewBot(client *mautrix.Client, messenger notify.Messenger, handler Handler, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bot{
		client:    client,
		messenger: messenger,
		handler:   handler,
		logger:    logger.With("component", "matrix"),
		seen:      dedupe.NewWindow(10*time.Minute, 10000),
		ctx:       context.Background(),
	}
	if client != nil {
		b.self = client.UserID
	}
	return b
}

// Run syncs until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("starting matrix bot", "homeserver", b.client.HomeserverURL.String(), "user_id", b.self)

	var cancel context.CancelFunc
	b.ctx, cancel = context.WithCancel(ctx)
	defer cancel()

	syncer, ok := b.client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return fmt.Errorf("unexpected syncer type: %T", b.client.Syncer)
	}
	syncer.OnSync(b.client.DontProcessOldEvents)
	syncer.OnEventType(event.EventMessage, b.handleMessageEvent)
	syncer.OnEventType(event.StateMember, b.handleMemberEvent)

	syncErr := make(chan error, 1)
	go func() {
		syncErr <- b.client.SyncWithContext(b.ctx)
	}()

	select {
	case <-ctx.Done():
		b.logger.Info("shutting down matrix bot")
		b.client.StopSync()
		b.rooms.Wait()
		return nil
	case err := <-syncErr:
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("matrix sync failed: %w", err)
	}
}

// handleMemberEvent joins rooms the bot is invited to, so users can open a
// direct chat with it.
func (b *Bot) handleMemberEvent(ctx context.Context, evt *event.Event) {
	if evt.GetStateKey() != b.self.String() {
		return
	}
	member := evt.Content.AsMember()
	if member.Membership != event.MembershipInvite {
		return
	}

	joinCtx, cancel := context.WithTimeout(ctx, networkTimeout)
	defer cancel()
	if _, err := b.client.JoinRoomByID(joinCtx, evt.RoomID); err != nil {
		b.logger.Warn("failed to join room", "room", evt.RoomID.String(), "error", err)
		return
	}
	b.logger.Info("joined room", "room", evt.RoomID.String(), "inviter", evt.Sender.String())
}

// handleMessageEvent filters inbound messages and processes them off the
// sync goroutine, one at a time per room.
func (b *Bot) handleMessageEvent(_ context.Context, evt *event.Event) {
	if evt.Sender == b.self {
		return
	}
	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok || content.MsgType != event.MsgText {
		return
	}
	if b.seen.Observe(evt.ID.String()) {
		b.logger.Debug("dropping replayed event", "event_id", evt.ID.String())
		return
	}

	p := router.Principal{
		ID:       evt.RoomID.String(),
		Name:     evt.Sender.Localpart(),
		Username: evt.Sender.String(),
	}
	body := strings.TrimSpace(content.Body)
	if body == "" {
		return
	}

	b.rooms.Submit(p.ID, func() {
		if err := b.process(b.ctx, p, body); err != nil {
			b.logger.Error("handling message", "room", p.ID, "error", err)
		}
	})
}

func (b *Bot) process(ctx context.Context, p router.Principal, body string) error {
	if name, args, ok := parseCommand(body); ok {
		return b.handleCommand(ctx, p, name, args)
	}

	err := b.handler.HandleText(ctx, p, body)
	switch {
	case errors.Is(err, router.ErrPhoneRequired):
		return b.say(ctx, p, textPhoneRequired)
	case errors.Is(err, router.ErrNotDialogTraffic):
		if !b.handler.IsStaff(p) {
			err := b.handler.Navigate(ctx, p, body)
			if !errors.Is(err, router.ErrUnknownLabel) {
				return err
			}
		}
		return b.start(ctx, p)
	}
	return err
}

func (b *Bot) handleCommand(ctx context.Context, p router.Principal, name, args string) error {
	switch name {
	case "menu":
		if args == "" {
			return b.start(ctx, p)
		}
		err := b.handler.HandleAction(ctx, p, notify.Action(notify.ActionMenu, firstField(args)))
		if errors.Is(err, router.ErrPhoneRequired) {
			return b.say(ctx, p, textPhoneRequired)
		}
		return err
	case "start", "help":
		return b.start(ctx, p)
	case "phone":
		if args == "" {
			return b.say(ctx, p, textPhoneUsage)
		}
		return b.handler.SaveContact(ctx, p, args)
	case "accept":
		return b.handler.HandleAction(ctx, p, notify.Action(notify.ActionAccept, firstField(args)))
	case "continue":
		return b.handler.HandleAction(ctx, p, notify.ActionContinue)
	case "reply":
		dialogID, text, _ := strings.Cut(args, " ")
		if strings.TrimSpace(text) == "" && dialogID != "" {
			return b.handler.HandleAction(ctx, p, notify.Action(notify.ActionReply, dialogID))
		}
	}

	err := b.handler.HandleCommand(ctx, p, name, args)
	if errors.Is(err, router.ErrUnknownCommand) {
		return b.say(ctx, p, textUnknown)
	}
	return err
}

func (b *Bot) start(ctx context.Context, p router.Principal) error {
	needPhone, err := b.handler.Start(ctx, p)
	if err != nil {
		return err
	}
	if needPhone {
		return b.say(ctx, p, textAskPhone)
	}
	return nil
}

func (b *Bot) say(ctx context.Context, p router.Principal, text string) error {
	return b.messenger.Send(ctx, p.ID, notify.OutgoingMessage{Text: text})
}

// parseCommand splits "!name args" into its parts.
func parseCommand(body string) (name, args string, ok bool) {
	rest, ok := strings.CutPrefix(body, CommandPrefix)
	if !ok || rest == "" {
		return "", "", false
	}
	name, args, _ = strings.Cut(rest, " ")
	return strings.ToLower(name), strings.TrimSpace(args), name != ""
}

func firstField(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}
