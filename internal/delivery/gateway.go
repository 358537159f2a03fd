package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/coachlyhq/coachly-backend/pkg/db/models"
	"github.com/coachlyhq/coachly-backend/pkg/enums"
)

// ErrUnroutable marks a send that this gateway can never complete for this
// user (no linked chat, channel disabled). The router falls back to in-app
// instead of letting the dispatcher burn retries on it.
var ErrUnroutable = errors.New("recipient unroutable on channel")

// Message is the rendered payload handed to a gateway.
type Message struct {
	NotificationID uuid.UUID
	Type           enums.NotificationType
	Title          string
	Body           string
}

// Receipt reports where a message actually landed.
type Receipt struct {
	Channel    enums.Channel
	ProviderID string
}

// Gateway delivers rendered messages on one channel.
type Gateway interface {
	Channel() enums.Channel
	Send(ctx context.Context, user *models.User, msg Message) (Receipt, error)
}

// Router picks the gateway for a notification's channel. When the channel is
// unregistered or reports the user unroutable, delivery degrades to in-app so
// the message is never silently lost.
type Router struct {
	gateways map[enums.Channel]Gateway
}

// NewRouter registers the provided gateways. Nil gateways are skipped so
// callers can pass conditionally constructed ones directly.
func NewRouter(gateways ...Gateway) *Router {
	r := &Router{gateways: make(map[enums.Channel]Gateway)}
	for _, gw := range gateways {
		if gw == nil {
			continue
		}
		r.gateways[gw.Channel()] = gw
	}
	return r
}

// Send delivers the message on the requested channel, degrading to in-app
// when the channel cannot take it.
func (r *Router) Send(ctx context.Context, user *models.User, channel enums.Channel, msg Message) (Receipt, error) {
	gw, ok := r.gateways[channel]
	if !ok {
		return r.fallback(ctx, user, channel, msg)
	}

	receipt, err := gw.Send(ctx, user, msg)
	if err != nil {
		if errors.Is(err, ErrUnroutable) {
			return r.fallback(ctx, user, channel, msg)
		}
		return Receipt{}, err
	}
	return receipt, nil
}

func (r *Router) fallback(ctx context.Context, user *models.User, requested enums.Channel, msg Message) (Receipt, error) {
	if requested == enums.ChannelInApp {
		return Receipt{}, fmt.Errorf("no gateway registered for channel %s", requested)
	}
	inApp, ok := r.gateways[enums.ChannelInApp]
	if !ok {
		return Receipt{}, fmt.Errorf("no gateway registered for channel %s and no in-app fallback", requested)
	}
	return inApp.Send(ctx, user, msg)
}
