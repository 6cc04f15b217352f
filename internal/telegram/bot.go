// ABOUTME: Telegram long-polling front-end translating updates into router calls
// ABOUTME: Handles /start, contact sharing, inline button callbacks, commands and plain text

package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "gopkg.in/telegram-bot-api.v4"

	"github.com/2389/handoff-gateway/internal/chatqueue"
	"github.com/2389/handoff-gateway/internal/dedupe"
	"github.com/2389/handoff-gateway/internal/router"
)

const (
	labelSharePhone   = "📱 Share phone number"
	textAskPhone      = "👋 Welcome! To contact an operator, please share your phone number using the button below."
	textPhoneRequired = "📱 Please share your phone number using the button below before we continue."
	textForeignPhone  = "❌ Please share your own contact, not someone else's."
	textUnknown       = "🤔 Unknown command. Send /start to open the menu."
)

// Handler is the part of the router the bot drives.
type Handler interface {
	Start(ctx context.Context, p router.Principal) (bool, error)
	SaveContact(ctx context.Context, p router.Principal, phone string) error
	Navigate(ctx context.Context, p router.Principal, label string) error
	HandleText(ctx context.Context, p router.Principal, text string) error
	HandleAction(ctx context.Context, p router.Principal, action string) error
	HandleCommand(ctx context.Context, p router.Principal, name, args string) error
	IsStaff(p router.Principal) bool
}

// Config tunes the bot.
type Config struct {
	PollTimeout time.Duration
	// ActionWindow suppresses repeated presses of the same button.
	ActionWindow time.Duration
}

// Bot receives updates and hands them to the router.
type Bot struct {
	api       botAPI
	messenger *Messenger
	handler   Handler
	cfg       Config
	logger    *slog.Logger

	updates *dedupe.Window
	actions *dedupe.Window
	chats   chatqueue.Queue
}

// NewClient authorizes against the Bot API.
func NewClient(token string, debug bool) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("authorizing telegram bot: %w", err)
	}
	api.Debug = debug
	return api, nil
}

// NewBot creates a Bot. messenger must wrap the same api.
func NewBot(api botAPI, messenger *Messenger, handler Handler, cfg Config, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 60 * time.Second
	}
	if cfg.ActionWindow <= 0 {
		cfg.ActionWindow = 3 * time.Second
	}
	return &Bot{
		api:       api,
		messenger: messenger,
		handler:   handler,
		cfg:       cfg,
		logger:    logger.With("component", "telegram"),
		updates:   dedupe.NewWindow(10*time.Minute, 10000),
		actions:   dedupe.NewWindow(cfg.ActionWindow, 1000),
	}
}

// Run polls for updates until ctx is cancelled. Updates of one chat are
// handled one at a time in arrival order; different chats run in parallel.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(b.cfg.PollTimeout / time.Second)

	updates, err := b.api.GetUpdatesChan(u)
	if err != nil {
		return fmt.Errorf("starting telegram updates: %w", err)
	}
	b.logger.Info("telegram bot polling", "poll_timeout", b.cfg.PollTimeout)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("shutting down telegram bot")
			b.api.StopReceivingUpdates()
			b.chats.Wait()
			return nil
		case update, ok := <-updates:
			if !ok {
				return errors.New("telegram update channel closed")
			}
			if b.updates.Observe("update:" + strconv.Itoa(update.UpdateID)) {
				b.logger.Debug("dropping replayed update", "update_id", update.UpdateID)
				continue
			}
			b.chats.Submit(chatKey(update), func() { b.handleUpdate(ctx, update) })
		}
	}
}

// chatKey is the chat an update belongs to.
func chatKey(update tgbotapi.Update) string {
	switch {
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil:
		return strconv.FormatInt(update.CallbackQuery.Message.Chat.ID, 10)
	case update.Message != nil && update.Message.Chat != nil:
		return strconv.FormatInt(update.Message.Chat.ID, 10)
	}
	return "update:" + strconv.Itoa(update.UpdateID)
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	var err error
	switch {
	case update.CallbackQuery != nil:
		err = b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		err = b.handleMessage(ctx, update.Message)
	default:
		return
	}
	if err != nil {
		b.logger.Error("handling update", "update_id", update.UpdateID, "error", err)
	}
}

// principalOf identifies the sender. In private chats the chat id is the
// user id, which is what replies are addressed to.
func principalOf(from *tgbotapi.User, chat *tgbotapi.Chat) router.Principal {
	name := strings.TrimSpace(from.FirstName + " " + from.LastName)
	return router.Principal{
		ID:       strconv.FormatInt(chat.ID, 10),
		Name:     name,
		Username: from.UserName,
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
		return nil
	}
	p := principalOf(msg.From, msg.Chat)

	switch {
	case msg.Contact != nil:
		return b.handleContact(ctx, p, msg)
	case msg.IsCommand():
		return b.handleCommand(ctx, p, msg.Command(), msg.CommandArguments())
	case strings.TrimSpace(msg.Text) == "":
		return nil
	}

	err := b.handler.HandleText(ctx, p, msg.Text)
	switch {
	case errors.Is(err, router.ErrPhoneRequired):
		return b.askPhone(ctx, p, textPhoneRequired)
	case errors.Is(err, router.ErrNotDialogTraffic):
		// Free text outside a dialog is menu navigation; anything that is
		// not a menu entry brings the menu back.
		if !b.handler.IsStaff(p) {
			err := b.handler.Navigate(ctx, p, msg.Text)
			if !errors.Is(err, router.ErrUnknownLabel) {
				return err
			}
		}
		return b.start(ctx, p)
	}
	return err
}

func (b *Bot) handleContact(ctx context.Context, p router.Principal, msg *tgbotapi.Message) error {
	if msg.Contact.UserID != 0 && msg.Contact.UserID != msg.From.ID {
		return b.messenger.send(ctx, p.ID, tgbotapi.NewMessage(msg.Chat.ID, textForeignPhone))
	}
	return b.handler.SaveContact(ctx, p, msg.Contact.PhoneNumber)
}

func (b *Bot) handleCommand(ctx context.Context, p router.Principal, name, args string) error {
	switch name {
	case "start", "help":
		return b.start(ctx, p)
	case "menu":
		if strings.TrimSpace(args) == "" {
			return b.start(ctx, p)
		}
	}

	err := b.handler.HandleCommand(ctx, p, name, args)
	switch {
	case errors.Is(err, router.ErrUnknownCommand):
		return b.messenger.send(ctx, p.ID, tgbotapi.NewMessage(mustChatID(p.ID), textUnknown))
	case errors.Is(err, router.ErrPhoneRequired):
		return b.askPhone(ctx, p, textPhoneRequired)
	}
	return err
}

func (b *Bot) start(ctx context.Context, p router.Principal) error {
	needPhone, err := b.handler.Start(ctx, p)
	if err != nil {
		return err
	}
	if needPhone {
		return b.askPhone(ctx, p, textAskPhone)
	}
	return nil
}

func (b *Bot) askPhone(ctx context.Context, p router.Principal, text string) error {
	return b.messenger.send(ctx, p.ID, contactRequest(mustChatID(p.ID), text))
}

// handleCallback runs the action behind an inline button. The query is
// always answered so the client stops its spinner.
func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	defer func() {
		if _, err := b.api.AnswerCallbackQuery(tgbotapi.NewCallback(q.ID, "")); err != nil {
			b.logger.Debug("answering callback", "error", err)
		}
	}()

	if q.From == nil || q.Message == nil || q.Message.Chat == nil {
		return nil
	}
	p := principalOf(q.From, q.Message.Chat)

	if b.actions.Observe(p.ID + "|" + q.Data) {
		b.logger.Debug("dropping repeated button press", "chat_id", p.ID, "action", q.Data)
		return nil
	}

	err := b.handler.HandleAction(ctx, p, q.Data)
	switch {
	case errors.Is(err, router.ErrUnknownCommand):
		return nil
	case errors.Is(err, router.ErrPhoneRequired):
		return b.askPhone(ctx, p, textPhoneRequired)
	}
	return err
}

// mustChatID converts a principal id that came from a Telegram chat.
func mustChatID(id string) int64 {
	n, _ := strconv.ParseInt(id, 10, 64)
	return n
}
