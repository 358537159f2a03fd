package delivery

import (
	"context"

	"github.com/google/uuid"

	"github.com/coachlyhq/coachly-backend/pkg/db/models"
	"github.com/coachlyhq/coachly-backend/pkg/enums"
)

// InboxWriter persists delivered in-app messages.
type InboxWriter interface {
	Create(ctx context.Context, item *models.InboxItem) error
}

// InAppGateway lands messages in the user's inbox. It is the terminal
// fallback for every other channel, so it has no unroutable case.
type InAppGateway struct {
	inbox InboxWriter
}

// NewInAppGateway wires the inbox-backed gateway.
func NewInAppGateway(inbox InboxWriter) *InAppGateway {
	return &InAppGateway{inbox: inbox}
}

func (g *InAppGateway) Channel() enums.Channel {
	return enums.ChannelInApp
}

func (g *InAppGateway) Send(ctx context.Context, user *models.User, msg Message) (Receipt, error) {
	item := &models.InboxItem{
		ID:             uuid.New(),
		UserID:         user.ID,
		NotificationID: &msg.NotificationID,
		Type:           msg.Type,
		Title:          msg.Title,
		Body:           msg.Body,
	}
	if err := g.inbox.Create(ctx, item); err != nil {
		return Receipt{}, err
	}
	return Receipt{Channel: enums.ChannelInApp, ProviderID: item.ID.String()}, nil
}
