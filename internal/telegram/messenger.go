// ABOUTME: Telegram implementation of notify.Messenger
// ABOUTME: Renders choices as inline keyboards and sends plain text

package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "gopkg.in/telegram-bot-api.v4"

	"github.com/2389/handoff-gateway/internal/notify"
)

// maxCallbackData is Telegram's limit on inline button payloads.
const maxCallbackData = 64

// botAPI is the part of tgbotapi.BotAPI the transport uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	AnswerCallbackQuery(config tgbotapi.CallbackConfig) (tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) (tgbotapi.UpdatesChannel, error)
	StopReceivingUpdates()
}

// Messenger sends notify messages through the Bot API.
type Messenger struct {
	api botAPI
}

// NewMessenger wraps an authorized bot.
func NewMessenger(api botAPI) *Messenger {
	return &Messenger{api: api}
}

// Send delivers msg to chatID. The Bot API call has no context of its own,
// so a cancelled ctx abandons the wait, not the request.
func (m *Messenger) Send(ctx context.Context, chatID string, msg notify.OutgoingMessage) error {
	config, err := buildMessage(chatID, msg)
	if err != nil {
		return &notify.DeliveryError{ChatID: chatID, Err: err}
	}
	return m.send(ctx, chatID, config)
}

func (m *Messenger) send(ctx context.Context, chatID string, c tgbotapi.Chattable) error {
	done := make(chan error, 1)
	go func() {
		_, err := m.api.Send(c)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return &notify.DeliveryError{ChatID: chatID, Err: err}
		}
		return nil
	case <-ctx.Done():
		return &notify.DeliveryError{ChatID: chatID, Err: ctx.Err()}
	}
}

func buildMessage(chatID string, msg notify.OutgoingMessage) (tgbotapi.MessageConfig, error) {
	id, err := parseChatID(chatID)
	if err != nil {
		return tgbotapi.MessageConfig{}, err
	}

	text := msg.Text
	if msg.Markdown {
		text = plainText(text)
	}
	config := tgbotapi.NewMessage(id, text)
	config.DisableWebPagePreview = true

	if len(msg.Choices) > 0 {
		markup, err := inlineKeyboard(msg.Choices)
		if err != nil {
			return tgbotapi.MessageConfig{}, err
		}
		config.ReplyMarkup = markup
	}
	return config, nil
}

func inlineKeyboard(choices [][]notify.Choice) (tgbotapi.InlineKeyboardMarkup, error) {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(choices))
	for _, row := range choices {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, c := range row {
			if len(c.Action) > maxCallbackData {
				return tgbotapi.InlineKeyboardMarkup{}, fmt.Errorf("action %q exceeds %d bytes", c.Action, maxCallbackData)
			}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(c.Label, c.Action))
		}
		if len(buttons) > 0 {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
		}
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), nil
}

// contactRequest asks the chat to share its phone number with a one-tap
// reply keyboard.
func contactRequest(chatID int64, text string) tgbotapi.MessageConfig {
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonContact(labelSharePhone)),
	)
	keyboard.OneTimeKeyboard = true
	keyboard.ResizeKeyboard = true

	config := tgbotapi.NewMessage(chatID, text)
	config.ReplyMarkup = keyboard
	return config
}

// plainText drops the bold markers messages use; relayed text is never
// parsed as markup, so user input cannot break formatting.
func plainText(s string) string {
	return strings.ReplaceAll(s, "**", "")
}

func parseChatID(chatID string) (int64, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram chat id %q", chatID)
	}
	return id, nil
}
