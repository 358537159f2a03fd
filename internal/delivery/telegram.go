package delivery

import (
	"context"
	"html"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/coachlyhq/coachly-backend/pkg/db/models"
	"github.com/coachlyhq/coachly-backend/pkg/enums"
)

type telegramSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// TelegramGateway delivers through the coaching bot. Users without a linked
// chat are unroutable and degrade to in-app via the router.
type TelegramGateway struct {
	bot telegramSender
}

// NewTelegramGateway connects the bot. An empty token returns a nil gateway
// so the router simply runs without the channel.
func NewTelegramGateway(token string) (*TelegramGateway, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	bot, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, err
	}
	return &TelegramGateway{bot: bot}, nil
}

func (g *TelegramGateway) Channel() enums.Channel {
	return enums.ChannelTelegram
}

func (g *TelegramGateway) Send(ctx context.Context, user *models.User, msg Message) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	if user.TelegramChatID == nil {
		return Receipt{}, ErrUnroutable
	}

	text := msg.Body
	if msg.Title != "" {
		text = "<b>" + html.EscapeString(msg.Title) + "</b>\n\n" + html.EscapeString(msg.Body)
	}
	sent, err := g.bot.Send(&tele.Chat{ID: *user.TelegramChatID}, text, &tele.SendOptions{ParseMode: tele.ModeHTML})
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{Channel: enums.ChannelTelegram, ProviderID: strconv.Itoa(sent.ID)}, nil
}
