// ABOUTME: Tests for the Matrix transport
// ABOUTME: Covers HTML rendering, command hints, command routing and per-room ordering

package matrix

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/handoff-gateway/internal/notify"
	"github.com/2389/handoff-gateway/internal/router"
)

type fakeSender struct {
	rooms    []id.RoomID
	contents []*event.MessageEventContent
	err      error
}

func (f *fakeSender) SendMessageEvent(_ context.Context, roomID id.RoomID, _ event.Type, contentJSON any, _ ...mautrix.ReqSendEvent) (*mautrix.RespSendEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.rooms = append(f.rooms, roomID)
	f.contents = append(f.contents, contentJSON.(*event.MessageEventContent))
	return &mautrix.RespSendEvent{EventID: "$sent"}, nil
}

func TestMessenger_RendersMarkdownAndHints(t *testing.T) {
	s := &fakeSender{}
	m := NewMessenger(s)

	err := m.Send(context.Background(), "!ops:example.org", notify.OutgoingMessage{
		Text:     "**New dialog** from Ann",
		Markdown: true,
		Choices:  [][]notify.Choice{{{Label: "Accept", Action: "accept:d1"}}},
	})
	require.NoError(t, err)

	require.Len(t, s.contents, 1)
	assert.Equal(t, id.RoomID("!ops:example.org"), s.rooms[0])
	c := s.contents[0]
	assert.Equal(t, event.MsgText, c.MsgType)
	assert.Equal(t, event.FormatHTML, c.Format)
	assert.Equal(t, "New dialog from Ann\n\nAccept: !accept d1", c.Body)
	assert.Contains(t, c.FormattedBody, "<strong>New dialog</strong>")
	assert.Contains(t, c.FormattedBody, "Accept: !accept d1")
}

func TestMessenger_EscapesPlainText(t *testing.T) {
	s := &fakeSender{}
	require.NoError(t, NewMessenger(s).Send(context.Background(), "!r:x", notify.OutgoingMessage{Text: "<b>hi</b>\nthere"}))

	c := s.contents[0]
	assert.Equal(t, "<b>hi</b>\nthere", c.Body)
	assert.Equal(t, "&lt;b&gt;hi&lt;/b&gt;<br>there", c.FormattedBody)
}

func TestMessenger_FailureIsDeliveryError(t *testing.T) {
	s := &fakeSender{err: errors.New("M_FORBIDDEN")}
	err := NewMessenger(s).Send(context.Background(), "!r:x", notify.OutgoingMessage{Text: "x"})

	var de *notify.DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "!r:x", de.ChatID)
}

func TestCommandFor(t *testing.T) {
	tests := map[string]string{
		"accept:d1": "!accept d1",
		"reply:d1":  "!reply d1 <text>",
		"close:d1":  "!close d1",
		"cancel:d1": "!cancel d1",
		"continue":  "!continue",
		"dialogs":   "!dialogs",
		"handoff":   "!operator",
		"menu":      "!menu",
		"menu:1.0":  "!menu 1.0",
		"bogus":     "",
	}
	for action, want := range tests {
		assert.Equal(t, want, commandFor(action), action)
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		body, name, args string
		ok               bool
	}{
		{"!start", "start", "", true},
		{"!Reply d1  thanks a lot ", "reply", "d1  thanks a lot", true},
		{"!", "", "", false},
		{"hello", "", "", false},
	}
	for _, tt := range tests {
		name, args, ok := parseCommand(tt.body)
		assert.Equal(t, tt.ok, ok, tt.body)
		assert.Equal(t, tt.name, name, tt.body)
		assert.Equal(t, tt.args, args, tt.body)
	}
}

type fakeHandler struct {
	mu        sync.Mutex
	calls     []string
	needPhone bool
	textErr   error
	navErr    error
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

func (h *fakeHandler) Start(context.Context, router.Principal) (bool, error) {
	h.record("start")
	return h.needPhone, nil
}

func (h *fakeHandler) SaveContact(_ context.Context, _ router.Principal, phone string) error {
	h.record("contact:" + phone)
	return nil
}

func (h *fakeHandler) Navigate(_ context.Context, _ router.Principal, label string) error {
	h.record("navigate:" + label)
	return h.navErr
}

func (h *fakeHandler) HandleText(_ context.Context, _ router.Principal, text string) error {
	h.record("text:" + text)
	if text == "wait" && h.hold != nil {
		<-h.hold
	}
	return h.textErr
}

func (h *fakeHandler) HandleAction(_ context.Context, _ router.Principal, action string) error {
	h.record("action:" + action)
	return nil
}

func (h *fakeHandler) HandleCommand(_ context.Context, _ router.Principal, name, args string) error {
	h.record("command:" + name + ":" + args)
	if name == "bogus" {
		return router.ErrUnknownCommand
	}
	return nil
}

func (h *fakeHandler) IsStaff(router.Principal) bool { return false }

func TestBot_CommandRouting(t *testing.T) {
	p := router.Principal{ID: "!dm:example.org"}

	tests := []struct {
		body string
		want []string
	}{
		{"!phone +15550100", []string{"contact:+15550100"}},
		{"!accept d1", []string{"action:accept:d1"}},
		{"!reply d1", []string{"action:reply:d1"}},
		{"!reply d1 on my way", []string{"command:reply:d1 on my way"}},
		{"!continue", []string{"action:continue"}},
		{"!close d1", []string{"command:close:d1"}},
		{"!cancel", []string{"command:cancel:"}},
		{"!dialogs", []string{"command:dialogs:"}},
		{"!operator", []string{"command:operator:"}},
		{"!menu", []string{"start"}},
		{"!menu 1.0", []string{"action:menu:1.0"}},
		{"hello", []string{"text:hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			h := &fakeHandler{}
			b := NewBot(nil, notify.NewMockMessenger(), h, nil)
			require.NoError(t, b.process(context.Background(), p, tt.body))
			assert.Equal(t, tt.want, h.calls)
		})
	}
}

func TestBot_PhonePrompts(t *testing.T) {
	p := router.Principal{ID: "!dm:example.org"}

	h := &fakeHandler{needPhone: true}
	mm := notify.NewMockMessenger()
	b := NewBot(nil, mm, h, nil)

	require.NoError(t, b.process(context.Background(), p, "!start"))
	require.NoError(t, b.process(context.Background(), p, "!phone"))

	sent := mm.SentTo(p.ID)
	require.Len(t, sent, 2)
	assert.Equal(t, textAskPhone, sent[0].Text)
	assert.Equal(t, textPhoneUsage, sent[1].Text)

	h.textErr = router.ErrPhoneRequired
	require.NoError(t, b.process(context.Background(), p, "hi"))
	assert.Equal(t, textPhoneRequired, mm.SentTo(p.ID)[2].Text)
}

func TestBot_UnknownCommandAndNavigation(t *testing.T) {
	p := router.Principal{ID: "!dm:example.org"}
	h := &fakeHandler{textErr: router.ErrNotDialogTraffic}
	mm := notify.NewMockMessenger()
	b := NewBot(nil, mm, h, nil)

	require.NoError(t, b.process(context.Background(), p, "!bogus"))
	assert.Equal(t, textUnknown, mm.SentTo(p.ID)[0].Text)

	require.NoError(t, b.process(context.Background(), p, "Billing"))
	assert.Equal(t, []string{"command:bogus:", "text:Billing", "navigate:Billing"}, h.calls)

	h.navErr = router.ErrUnknownLabel
	require.NoError(t, b.process(context.Background(), p, "what?"))
	assert.Equal(t, []string{"text:what?", "navigate:what?", "start"}, h.calls[3:])
}

func TestBot_IgnoresOwnAndReplayedEvents(t *testing.T) {
	h := &fakeHandler{}
	b := NewBot(nil, notify.NewMockMessenger(), h, nil)
	b.self = "@bot:example.org"

	own := &event.Event{
		Sender:  "@bot:example.org",
		ID:      "$1",
		RoomID:  "!dm:example.org",
		Content: event.Content{Parsed: &event.MessageEventContent{MsgType: event.MsgText, Body: "hi"}},
	}
	b.handleMessageEvent(context.Background(), own)
	assert.Equal(t, 0, b.seen.Len())

	other := *own
	other.Sender = "@ann:example.org"
	b.handleMessageEvent(context.Background(), &other)
	b.handleMessageEvent(context.Background(), &other)
	assert.Equal(t, 1, b.seen.Len())
	assert.Eventually(t, func() bool { return len(h.Calls()) == 1 }, time.Second, 10*time.Millisecond)
}

func textEvent(eventID id.EventID, room id.RoomID, body string) *event.Event {
	return &event.Event{
		Sender:  "@ann:example.org",
		ID:      eventID,
		RoomID:  room,
		Content: event.Content{Parsed: &event.MessageEventContent{MsgType: event.MsgText, Body: body}},
	}
}

func TestBot_SerializesEachRoom(t *testing.T) {
	h := &fakeHandler{hold: make(chan struct{})}
	b := NewBot(nil, notify.NewMockMessenger(), h, nil)

	b.handleMessageEvent(context.Background(), textEvent("$1", "!a:example.org", "wait"))
	b.handleMessageEvent(context.Background(), textEvent("$2", "!a:example.org", "second"))
	b.handleMessageEvent(context.Background(), textEvent("$3", "!b:example.org", "other room"))

	assert.Eventually(t, func() bool { return len(h.Calls()) == 2 }, time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"text:wait", "text:other room"}, h.Calls())

	close(h.hold)
	assert.Eventually(t, func() bool { return len(h.Calls()) == 3 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "text:second", h.Calls()[2])
	b.rooms.Wait()
}
