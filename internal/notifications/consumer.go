package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/curatedly/curatedly-backend/pkg/enums"
	"github.com/curatedly/curatedly-backend/pkg/logger"
	"github.com/curatedly/curatedly-backend/pkg/outbox"
	"github.com/curatedly/curatedly-backend/pkg/outbox/payloads"
	"github.com/curatedly/curatedly-backend/pkg/outbox/registry"
)

const purchaseEmailConsumer = "purchase-email"

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type processedTracker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type ConsumerParams struct {
	Subscription  receiver
	Idempotency   processedTracker
	Dispatcher    Dispatcher
	PublicBaseURL string
	Logger        *logger.Logger
}

// Consumer turns order_completed events into purchase confirmation emails.
type Consumer struct {
	subscription receiver
	idempotency  processedTracker
	dispatcher   Dispatcher
	decoders     *registry.DecoderRegistry
	baseURL      string
	logg         *logger.Logger
}

func NewConsumer(p ConsumerParams) (*Consumer, error) {
	if p.Subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	if p.Idempotency == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if p.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if strings.TrimSpace(p.PublicBaseURL) == "" {
		return nil, fmt.Errorf("public base url required")
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}

	decoders := registry.NewDecoderRegistry()
	decoders.Register(enums.EventOrderCompleted, 1, registry.JSONDecoder[payloads.OrderCompletedEvent]())

	return &Consumer{
		subscription: p.Subscription,
		idempotency:  p.Idempotency,
		dispatcher:   p.Dispatcher,
		decoders:     decoders,
		baseURL:      p.PublicBaseURL,
		logg:         logg,
	}, nil
}

// Run receives until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg) == outcomeNack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type outcome int

const (
	outcomeAck outcome = iota
	outcomeNack
)

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) outcome {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
	})

	if eventType != enums.EventOrderCompleted {
		c.logg.Debug(logCtx, "skipping event")
		return outcomeAck
	}

	envelope, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return outcomeAck
	}
	eventID, err := envelope.ParsedEventID()
	if err == nil && eventID == uuid.Nil {
		err = errors.New("nil event id")
	}
	if err != nil {
		// without an event id the purchase email cannot be deduplicated
		c.logg.Error(c.logg.WithField(logCtx, "event_id", envelope.EventID), "invalid envelope event id", err)
		return outcomeAck
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	decoded, err := c.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode payload", err)
		return outcomeAck
	}
	event, ok := decoded.(*payloads.OrderCompletedEvent)
	if !ok || event.OrderID == uuid.Nil || strings.TrimSpace(event.BuyerEmail) == "" {
		c.logg.Error(logCtx, "order completed payload incomplete", errors.New("order id or buyer email missing"))
		return outcomeAck
	}
	logCtx = c.logg.WithOrderID(logCtx, event.OrderID.String())

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, purchaseEmailConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return outcomeNack
	}
	if already {
		c.logg.Info(logCtx, "purchase email already sent")
		return outcomeAck
	}

	message, err := PurchaseConfirmation(c.baseURL, event)
	if err != nil {
		c.logg.Error(logCtx, "failed to render purchase email", err)
		return outcomeAck
	}

	if err := c.dispatcher.Dispatch(ctx, message); err != nil {
		c.logg.Error(logCtx, "purchase email dispatch failed", err)
		if relErr := c.idempotency.Release(ctx, purchaseEmailConsumer, eventID); relErr != nil {
			c.logg.Warn(c.logg.WithField(logCtx, "error", relErr.Error()), "failed to release idempotency mark")
		}
		return outcomeNack
	}

	c.logg.Info(logCtx, "purchase email sent")
	return outcomeAck
}
