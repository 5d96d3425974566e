package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shift_attendance_bot/internal/domain/escalation"
	"shift_attendance_bot/internal/domain/notification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"
)

type sentMessage struct {
	chatID int64
	text   string
	opts   *telebot.SendOptions
}

type fakeClient struct {
	sent []sentMessage
	err  error
}

func (f *fakeClient) SendMessage(chatID int64, text string, opts *telebot.SendOptions) error {
	f.sent = append(f.sent, sentMessage{chatID, text, opts})
	return f.err
}

func TestChatSender_ConfirmableMessageCarriesButton(t *testing.T) {
	client := &fakeClient{}
	s := NewChatSender(client)

	err := s.Send(context.Background(),
		notification.Recipient{WorkerID: "w-1", TelegramID: 42},
		notification.Message{Text: "confirm please", RecordID: "rec-1", Confirmable: true})
	require.NoError(t, err)
	require.Len(t, client.sent, 1)

	msg := client.sent[0]
	assert.Equal(t, int64(42), msg.chatID)
	assert.Equal(t, "confirm please", msg.text)
	require.NotNil(t, msg.opts.ReplyMarkup)
	assert.Equal(t, "present_rec-1", msg.opts.ReplyMarkup.InlineKeyboard[0][0].Data)
}

func TestChatSender_PlainMessageAndMissingAccount(t *testing.T) {
	client := &fakeClient{}
	s := NewChatSender(client)

	require.NoError(t, s.Send(context.Background(),
		notification.Recipient{WorkerID: "w-2", TelegramID: 7},
		notification.Message{Text: "cover needed", RecordID: "rec-1"}))
	assert.Nil(t, client.sent[0].opts.ReplyMarkup)

	err := s.Send(context.Background(), notification.Recipient{WorkerID: "w-3"}, notification.Message{Text: "x"})
	assert.ErrorIs(t, err, notification.ErrNoAddress)
	assert.Len(t, client.sent, 1)
}

func TestWebhookSender_Send(t *testing.T) {
	var received WebhookPayload
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	s := NewWebhookSender(escalation.ChannelSMS, server.URL, "secret", time.Second)
	err := s.Send(context.Background(),
		notification.Recipient{WorkerID: "w-1", Name: "Ann", Phone: "+15550100"},
		notification.Message{Text: "please confirm", RecordID: "rec-1"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, WebhookPayload{
		Channel: "sms", To: "+15550100", Name: "Ann", WorkerID: "w-1", RecordID: "rec-1", Text: "please confirm",
	}, received)
	assert.Equal(t, "sms-webhook", s.Name())
}

func TestWebhookSender_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	s := NewWebhookSender(escalation.ChannelCall, server.URL, "", time.Second)
	err := s.Send(context.Background(), notification.Recipient{WorkerID: "w-1", Phone: "+1"}, notification.Message{Text: "x"})
	assert.ErrorContains(t, err, "webhook returned 502")

	err = s.Send(context.Background(), notification.Recipient{WorkerID: "w-1"}, notification.Message{Text: "x"})
	assert.ErrorIs(t, err, notification.ErrNoAddress)
}

type stubSender struct {
	name  string
	calls int
	err   error
}

func (s *stubSender) Send(context.Context, notification.Recipient, notification.Message) error {
	s.calls++
	return s.err
}

func (s *stubSender) Name() string { return s.name }

func TestRouter(t *testing.T) {
	chat := &stubSender{name: "chat"}
	sms := &stubSender{name: "sms-webhook", err: errors.New("provider down")}
	r := NewRouter().Register(escalation.ChannelChat, chat).Register(escalation.ChannelSMS, sms)

	require.NoError(t, r.Send(context.Background(), escalation.ChannelChat, notification.Recipient{}, notification.Message{}))
	assert.Equal(t, 1, chat.calls)

	err := r.Send(context.Background(), escalation.ChannelSMS, notification.Recipient{}, notification.Message{})
	assert.EqualError(t, err, "sms-webhook: provider down")

	err = r.Send(context.Background(), escalation.ChannelCall, notification.Recipient{}, notification.Message{})
	assert.ErrorIs(t, err, notification.ErrChannelNotConfigured)

	assert.ElementsMatch(t, []escalation.Channel{escalation.ChannelChat, escalation.ChannelSMS}, r.Channels())
}
