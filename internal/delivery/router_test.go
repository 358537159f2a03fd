package delivery

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"

	"github.com/coachlyhq/coachly-backend/pkg/db/models"
	"github.com/coachlyhq/coachly-backend/pkg/enums"
)

type fakeGateway struct {
	channel enums.Channel
	sendFn  func(ctx context.Context, user *models.User, msg Message) (Receipt, error)
	sends   int
}

func (f *fakeGateway) Channel() enums.Channel { return f.channel }

func (f *fakeGateway) Send(ctx context.Context, user *models.User, msg Message) (Receipt, error) {
	f.sends++
	if f.sendFn != nil {
		return f.sendFn(ctx, user, msg)
	}
	return Receipt{Channel: f.channel}, nil
}

type fakeInbox struct {
	items []*models.InboxItem
	err   error
}

func (f *fakeInbox) Create(ctx context.Context, item *models.InboxItem) error {
	if f.err != nil {
		return f.err
	}
	f.items = append(f.items, item)
	return nil
}

func TestRouter_SendOnRequestedChannel(t *testing.T) {
	telegram := &fakeGateway{channel: enums.ChannelTelegram}
	inApp := &fakeGateway{channel: enums.ChannelInApp}
	router := NewRouter(telegram, inApp)

	user := &models.User{ID: uuid.New()}
	_, err := router.Send(context.Background(), user, enums.ChannelTelegram, Message{Title: "hi", Body: "there"})
	if err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if telegram.sends != 1 || inApp.sends != 0 {
		t.Fatalf("expected telegram send only, got telegram=%d inapp=%d", telegram.sends, inApp.sends)
	}
}

func TestRouter_UnroutableFallsBackToInApp(t *testing.T) {
	telegram := &fakeGateway{
		channel: enums.ChannelTelegram,
		sendFn: func(ctx context.Context, user *models.User, msg Message) (Receipt, error) {
			return Receipt{}, ErrUnroutable
		},
	}
	inApp := &fakeGateway{channel: enums.ChannelInApp}
	router := NewRouter(telegram, inApp)

	receipt, err := router.Send(context.Background(), &models.User{ID: uuid.New()}, enums.ChannelTelegram, Message{Body: "hi"})
	if err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if receipt.Channel != enums.ChannelInApp {
		t.Fatalf("expected in-app receipt, got %s", receipt.Channel)
	}
	if inApp.sends != 1 {
		t.Fatalf("expected fallback send, got %d", inApp.sends)
	}
}

func TestRouter_MissingChannelFallsBackToInApp(t *testing.T) {
	inApp := &fakeGateway{channel: enums.ChannelInApp}
	router := NewRouter(inApp)

	receipt, err := router.Send(context.Background(), &models.User{ID: uuid.New()}, enums.ChannelTelegram, Message{Body: "hi"})
	if err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if receipt.Channel != enums.ChannelInApp {
		t.Fatalf("expected in-app receipt, got %s", receipt.Channel)
	}
}

func TestRouter_TransportErrorPropagates(t *testing.T) {
	boom := errors.New("telegram down")
	telegram := &fakeGateway{
		channel: enums.ChannelTelegram,
		sendFn: func(ctx context.Context, user *models.User, msg Message) (Receipt, error) {
			return Receipt{}, boom
		},
	}
	inApp := &fakeGateway{channel: enums.ChannelInApp}
	router := NewRouter(telegram, inApp)

	_, err := router.Send(context.Background(), &models.User{ID: uuid.New()}, enums.ChannelTelegram, Message{Body: "hi"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected transport error to surface, got %v", err)
	}
	if inApp.sends != 0 {
		t.Fatal("transport errors must not fall back; the dispatcher retries them")
	}
}

func TestNewRouterSkipsNilGateways(t *testing.T) {
	inApp := &fakeGateway{channel: enums.ChannelInApp}
	router := NewRouter(nil, inApp)

	if _, err := router.Send(context.Background(), &models.User{ID: uuid.New()}, enums.ChannelInApp, Message{Body: "hi"}); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
}

func TestInAppGatewayWritesInboxItem(t *testing.T) {
	inbox := &fakeInbox{}
	gw := NewInAppGateway(inbox)

	user := &models.User{ID: uuid.New()}
	msg := Message{NotificationID: uuid.New(), Type: enums.NotificationTypeReminder, Title: "Stretch", Body: "Time to move"}
	receipt, err := gw.Send(context.Background(), user, msg)
	if err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if len(inbox.items) != 1 {
		t.Fatalf("expected 1 inbox item, got %d", len(inbox.items))
	}
	item := inbox.items[0]
	if item.UserID != user.ID || item.Title != msg.Title || item.Body != msg.Body {
		t.Fatalf("inbox item fields mismatch: %+v", item)
	}
	if item.NotificationID == nil || *item.NotificationID != msg.NotificationID {
		t.Fatal("expected notification link on inbox item")
	}
	if receipt.ProviderID != item.ID.String() {
		t.Fatal("expected receipt to reference the inbox item")
	}
}

type fakeTelegramSender struct {
	sendFn func(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

func (f *fakeTelegramSender) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	return f.sendFn(to, what, opts...)
}

func TestTelegramGatewayUnlinkedUserIsUnroutable(t *testing.T) {
	gw := &TelegramGateway{bot: &fakeTelegramSender{
		sendFn: func(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
			t.Fatal("send must not be called for unlinked users")
			return nil, nil
		},
	}}

	_, err := gw.Send(context.Background(), &models.User{ID: uuid.New()}, Message{Body: "hi"})
	if !errors.Is(err, ErrUnroutable) {
		t.Fatalf("expected unroutable error, got %v", err)
	}
}

func TestTelegramGatewaySend(t *testing.T) {
	chatID := int64(42)
	var sentText string
	gw := &TelegramGateway{bot: &fakeTelegramSender{
		sendFn: func(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
			sentText, _ = what.(string)
			return &tele.Message{ID: 7}, nil
		},
	}}

	user := &models.User{ID: uuid.New(), TelegramChatID: &chatID}
	receipt, err := gw.Send(context.Background(), user, Message{Title: "Stretch <now>", Body: "Go"})
	if err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if receipt.ProviderID != "7" {
		t.Fatalf("expected provider id 7, got %s", receipt.ProviderID)
	}
	if sentText == "" || sentText == "Go" {
		t.Fatalf("expected formatted title and body, got %q", sentText)
	}
}

func TestNewTelegramGatewayEmptyTokenDisabled(t *testing.T) {
	gw, err := NewTelegramGateway("  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gw != nil {
		t.Fatal("expected nil gateway without a token")
	}
}
