// ABOUTME: Tests for the Telegram transport using a fake Bot API and router
// ABOUTME: Covers keyboard rendering, contact capture, callbacks, update dedupe and per-chat ordering

package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tgbotapi "gopkg.in/telegram-bot-api.v4"

	"github.com/2389/handoff-gateway/internal/notify"
	"github.com/2389/handoff-gateway/internal/router"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	answered []string
	sendErr  error
	updates  chan tgbotapi.Update
	stopped  bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 10)}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) AnswerCallbackQuery(c tgbotapi.CallbackConfig) (tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, c.CallbackQueryID)
	return tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) (tgbotapi.UpdatesChannel, error) {
	return f.updates, nil
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

type fakeHandler struct {
	mu        sync.Mutex
	calls     []string
	needPhone bool
	textErr   error
	navErr    error
	staff     bool
	// hold, when set, blocks HandleText for the text "wait" until closed.
	hold chan struct{}
}

func (h *fakeHandler) record(s string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, s)
}

func (h *fakeHandler) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func (h *fakeHandler) Start(_ context.Context, p router.Principal) (bool, error) {
	h.record("start:" + p.ID)
	return h.needPhone, nil
}

func (h *fakeHandler) SaveContact(_ context.Context, p router.Principal, phone string) error {
	h.record("contact:" + p.ID + ":" + phone)
	return nil
}

func (h *fakeHandler) Navigate(_ context.Context, p router.Principal, label string) error {
	h.record("navigate:" + label)
	return h.navErr
}

func (h *fakeHandler) HandleText(_ context.Context, p router.Principal, text string) error {
	h.record("text:" + text)
	if text == "wait" && h.hold != nil {
		<-h.hold
	}
	return h.textErr
}

func (h *fakeHandler) HandleAction(_ context.Context, p router.Principal, action string) error {
	h.record("action:" + action)
	return nil
}

func (h *fakeHandler) HandleCommand(_ context.Context, p router.Principal, name, args string) error {
	h.record("command:" + name + ":" + args)
	if name == "bogus" {
		return router.ErrUnknownCommand
	}
	return nil
}

func (h *fakeHandler) IsStaff(router.Principal) bool { return h.staff }

func newTestBot(h *fakeHandler) (*Bot, *fakeAPI) {
	api := newFakeAPI()
	return NewBot(api, NewMessenger(api), h, Config{}, nil), api
}

func privateMessage(userID int, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID, FirstName: "Ann", LastName: "Lee", UserName: "ann"},
		Chat: &tgbotapi.Chat{ID: int64(userID), Type: "private"},
		Text: text,
	}
}

func command(userID int, text string) *tgbotapi.Message {
	msg := privateMessage(userID, text)
	msg.Entities = &[]tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(firstWord(text))}}
	return msg
}

func firstWord(s string) string {
	for i, r := range s {
		if r == ' ' {
			return s[:i]
		}
	}
	return s
}

func TestMessenger_RendersChoices(t *testing.T) {
	api := newFakeAPI()
	m := NewMessenger(api)

	err := m.Send(context.Background(), "42", notify.OutgoingMessage{
		Text:     "**New dialog** from Ann",
		Markdown: true,
		Choices: [][]notify.Choice{
			{{Label: "Accept", Action: "accept:abc"}},
			{{Label: "Reply", Action: "reply:abc"}, {Label: "Close", Action: "close:abc"}},
		},
	})
	require.NoError(t, err)

	msgs := api.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(42), msgs[0].ChatID)
	assert.Equal(t, "New dialog from Ann", msgs[0].Text)
	assert.Empty(t, msgs[0].ParseMode)

	markup, ok := msgs[0].ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Len(t, markup.InlineKeyboard[1], 2)
	require.NotNil(t, markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "accept:abc", *markup.InlineKeyboard[0][0].CallbackData)
}

func TestMessenger_KeepsPlainTextVerbatim(t *testing.T) {
	api := newFakeAPI()
	require.NoError(t, NewMessenger(api).Send(context.Background(), "1", notify.OutgoingMessage{Text: "a **b** _c_"}))
	assert.Equal(t, "a **b** _c_", api.messages()[0].Text)
}

func TestMessenger_Failures(t *testing.T) {
	api := newFakeAPI()
	m := NewMessenger(api)

	var de *notify.DeliveryError
	err := m.Send(context.Background(), "not-a-number", notify.OutgoingMessage{Text: "x"})
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "not-a-number", de.ChatID)

	api.sendErr = errors.New("Forbidden: bot was blocked by the user")
	err = m.Send(context.Background(), "7", notify.OutgoingMessage{Text: "x"})
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "7", de.ChatID)

	long := make([]byte, maxCallbackData+1)
	for i := range long {
		long[i] = 'a'
	}
	api.sendErr = nil
	err = m.Send(context.Background(), "7", notify.OutgoingMessage{Text: "x", Choices: [][]notify.Choice{{{Label: "L", Action: string(long)}}}})
	require.ErrorAs(t, err, &de)
}

func TestBot_StartAsksForPhone(t *testing.T) {
	h := &fakeHandler{needPhone: true}
	b, api := newTestBot(h)

	require.NoError(t, b.handleMessage(context.Background(), command(5, "/start")))
	assert.Equal(t, []string{"start:5"}, h.Calls())

	msgs := api.messages()
	require.Len(t, msgs, 1)
	kb, ok := msgs[0].ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	assert.True(t, kb.Keyboard[0][0].RequestContact)
}

func TestBot_ContactSaved(t *testing.T) {
	h := &fakeHandler{}
	b, api := newTestBot(h)

	msg := privateMessage(5, "")
	msg.Contact = &tgbotapi.Contact{PhoneNumber: "+15550100", UserID: 5}
	require.NoError(t, b.handleMessage(context.Background(), msg))
	assert.Equal(t, []string{"contact:5:+15550100"}, h.Calls())

	foreign := privateMessage(5, "")
	foreign.Contact = &tgbotapi.Contact{PhoneNumber: "+15550199", UserID: 9}
	require.NoError(t, b.handleMessage(context.Background(), foreign))
	assert.Len(t, h.Calls(), 1, "someone else's contact is rejected")
	assert.Equal(t, textForeignPhone, api.messages()[0].Text)
}

func TestBot_TextRouting(t *testing.T) {
	t.Run("dialog traffic", func(t *testing.T) {
		h := &fakeHandler{}
		b, _ := newTestBot(h)
		require.NoError(t, b.handleMessage(context.Background(), privateMessage(5, "hello")))
		assert.Equal(t, []string{"text:hello"}, h.Calls())
	})

	t.Run("phone required", func(t *testing.T) {
		h := &fakeHandler{textErr: router.ErrPhoneRequired}
		b, api := newTestBot(h)
		require.NoError(t, b.handleMessage(context.Background(), privateMessage(5, "hello")))
		require.Len(t, api.messages(), 1)
		assert.Equal(t, textPhoneRequired, api.messages()[0].Text)
	})

	t.Run("menu navigation", func(t *testing.T) {
		h := &fakeHandler{textErr: router.ErrNotDialogTraffic}
		b, _ := newTestBot(h)
		require.NoError(t, b.handleMessage(context.Background(), privateMessage(5, "Billing")))
		assert.Equal(t, []string{"text:Billing", "navigate:Billing"}, h.Calls())
	})

	t.Run("unknown label shows the menu", func(t *testing.T) {
		h := &fakeHandler{textErr: router.ErrNotDialogTraffic, navErr: router.ErrUnknownLabel}
		b, _ := newTestBot(h)
		require.NoError(t, b.handleMessage(context.Background(), privateMessage(5, "what?")))
		assert.Equal(t, []string{"text:what?", "navigate:what?", "start:5"}, h.Calls())
	})

	t.Run("staff do not navigate", func(t *testing.T) {
		h := &fakeHandler{textErr: router.ErrNotDialogTraffic, staff: true}
		b, _ := newTestBot(h)
		require.NoError(t, b.handleMessage(context.Background(), privateMessage(5, "hi")))
		assert.Equal(t, []string{"text:hi", "start:5"}, h.Calls())
	})

	t.Run("group chats ignored", func(t *testing.T) {
		h := &fakeHandler{}
		b, _ := newTestBot(h)
		msg := privateMessage(5, "hello")
		msg.Chat.Type = "group"
		require.NoError(t, b.handleMessage(context.Background(), msg))
		assert.Empty(t, h.Calls())
	})
}

func TestBot_Commands(t *testing.T) {
	h := &fakeHandler{}
	b, api := newTestBot(h)

	require.NoError(t, b.handleMessage(context.Background(), command(5, "/reply abc thanks")))
	assert.Equal(t, []string{"command:reply:abc thanks"}, h.Calls())

	require.NoError(t, b.handleMessage(context.Background(), command(5, "/bogus")))
	require.Len(t, api.messages(), 1)
	assert.Equal(t, textUnknown, api.messages()[0].Text)

	require.NoError(t, b.handleMessage(context.Background(), command(5, "/menu 1.0")))
	require.NoError(t, b.handleMessage(context.Background(), command(5, "/menu")))
	assert.Equal(t, []string{"command:reply:abc thanks", "command:bogus:", "command:menu:1.0", "start:5"}, h.Calls())
}

func TestBot_CallbackDedupe(t *testing.T) {
	h := &fakeHandler{}
	b, api := newTestBot(h)

	q := &tgbotapi.CallbackQuery{
		ID:      "q1",
		From:    &tgbotapi.User{ID: 7},
		Message: privateMessage(7, ""),
		Data:    "accept:abc",
	}
	require.NoError(t, b.handleCallback(context.Background(), q))
	q.ID = "q2"
	require.NoError(t, b.handleCallback(context.Background(), q))

	assert.Equal(t, []string{"action:accept:abc"}, h.Calls())
	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, []string{"q1", "q2"}, api.answered, "every query is answered")
}

func TestBot_RunDropsReplayedUpdates(t *testing.T) {
	h := &fakeHandler{}
	b, api := newTestBot(h)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	api.updates <- tgbotapi.Update{UpdateID: 1, Message: privateMessage(5, "one")}
	api.updates <- tgbotapi.Update{UpdateID: 1, Message: privateMessage(5, "one")}
	api.updates <- tgbotapi.Update{UpdateID: 2, Message: privateMessage(5, "two")}

	assert.Eventually(t, func() bool { return len(h.Calls()) == 2 }, time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"text:one", "text:two"}, h.Calls())

	cancel()
	require.NoError(t, <-done)
	api.mu.Lock()
	defer api.mu.Unlock()
	assert.True(t, api.stopped)
}

func TestBot_RunSerializesEachChat(t *testing.T) {
	h := &fakeHandler{hold: make(chan struct{})}
	b, api := newTestBot(h)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	api.updates <- tgbotapi.Update{UpdateID: 1, Message: privateMessage(5, "wait")}
	api.updates <- tgbotapi.Update{UpdateID: 2, Message: privateMessage(5, "second")}
	api.updates <- tgbotapi.Update{UpdateID: 3, Message: privateMessage(6, "other chat")}

	// Another chat proceeds while chat 5 is busy, and chat 5 waits its turn.
	assert.Eventually(t, func() bool { return len(h.Calls()) == 2 }, time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"text:wait", "text:other chat"}, h.Calls())

	close(h.hold)
	assert.Eventually(t, func() bool { return len(h.Calls()) == 3 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "text:second", h.Calls()[2])

	cancel()
	require.NoError(t, <-done)
}

func TestChatKey(t *testing.T) {
	assert.Equal(t, "5", chatKey(tgbotapi.Update{Message: privateMessage(5, "hi")}))
	assert.Equal(t, "7", chatKey(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{Message: privateMessage(7, "")}}))
	assert.Equal(t, "update:9", chatKey(tgbotapi.Update{UpdateID: 9}))
}
