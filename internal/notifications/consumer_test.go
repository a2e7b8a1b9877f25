package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatedly/curatedly-backend/pkg/enums"
	"github.com/curatedly/curatedly-backend/pkg/outbox"
	"github.com/curatedly/curatedly-backend/pkg/outbox/idempotency"
	"github.com/curatedly/curatedly-backend/pkg/outbox/payloads"
)

type memoryStore struct {
	mu   sync.Mutex
	keys map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{keys: map[string]string{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key], nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = "1"
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "cur:idempotency:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

type recordingDispatcher struct {
	sent []Message
	err  error
}

func (r *recordingDispatcher) Dispatch(_ context.Context, msg Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

type nopReceiver struct{}

func (nopReceiver) Receive(context.Context, func(context.Context, *pubsub.Message)) error {
	return nil
}

func newTestConsumer(t *testing.T, dispatcher Dispatcher) (*Consumer, *memoryStore) {
	t.Helper()
	store := newMemoryStore()
	manager, err := idempotency.NewManager(store, time.Hour)
	require.NoError(t, err)

	consumer, err := NewConsumer(ConsumerParams{
		Subscription:  nopReceiver{},
		Idempotency:   manager,
		Dispatcher:    dispatcher,
		PublicBaseURL: "https://curatedly.test/",
	})
	require.NoError(t, err)
	return consumer, store
}

func completedMessage(t *testing.T, eventID uuid.UUID, event payloads.OrderCompletedEvent) *pubsub.Message {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID.String(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	require.NoError(t, err)
	return &pubsub.Message{
		ID:   "msg-" + eventID.String(),
		Data: envelope,
		Attributes: map[string]string{
			"event_id":   eventID.String(),
			"event_type": string(enums.EventOrderCompleted),
		},
	}
}

func paidEvent() payloads.OrderCompletedEvent {
	return payloads.OrderCompletedEvent{
		OrderID:           uuid.New(),
		ListingID:         uuid.New(),
		SellerID:          uuid.New(),
		BuyerEmail:        "buyer@example.com",
		ListingTitle:      "Tokyo coffee map",
		SellerDisplayName: "Maya Eats",
		SellerSlug:        "maya",
		AmountCents:       2000,
		Currency:          "usd",
		CompletedAt:       time.Now().UTC(),
	}
}

func TestConsumerSendsPurchaseEmailOnce(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	consumer, _ := newTestConsumer(t, dispatcher)

	event := paidEvent()
	msg := completedMessage(t, uuid.New(), event)

	assert.Equal(t, outcomeAck, consumer.process(context.Background(), msg))
	assert.Equal(t, outcomeAck, consumer.process(context.Background(), msg))

	require.Len(t, dispatcher.sent, 1)
	sent := dispatcher.sent[0]
	assert.Equal(t, "buyer@example.com", sent.To)
	assert.Equal(t, "Your order: Tokyo coffee map", sent.Subject)
	assert.Contains(t, sent.Text, "20.00 USD")
	assert.Contains(t, sent.Text, "https://curatedly.test/orders/"+event.OrderID.String()+"/confirmation")
	assert.Contains(t, sent.HTML, `href="https://curatedly.test/maya"`)
}

func TestConsumerReleasesMarkOnDispatchFailure(t *testing.T) {
	dispatcher := &recordingDispatcher{err: errors.New("sendgrid down")}
	consumer, store := newTestConsumer(t, dispatcher)

	eventID := uuid.New()
	msg := completedMessage(t, eventID, paidEvent())

	assert.Equal(t, outcomeNack, consumer.process(context.Background(), msg))
	assert.Empty(t, store.keys)

	dispatcher.err = nil
	assert.Equal(t, outcomeAck, consumer.process(context.Background(), msg))
	assert.Len(t, dispatcher.sent, 1)
}

func TestConsumerAcksPoisonMessages(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	consumer, store := newTestConsumer(t, dispatcher)

	garbage := &pubsub.Message{
		ID:         "bad",
		Data:       []byte("{not json"),
		Attributes: map[string]string{"event_type": string(enums.EventOrderCompleted)},
	}
	assert.Equal(t, outcomeAck, consumer.process(context.Background(), garbage))

	missingEmail := paidEvent()
	missingEmail.BuyerEmail = ""
	assert.Equal(t, outcomeAck, consumer.process(context.Background(), completedMessage(t, uuid.New(), missingEmail)))

	assert.Empty(t, dispatcher.sent)
	assert.Empty(t, store.keys)
}

func TestConsumerAcksMessagesWithoutUsableEventID(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	consumer, store := newTestConsumer(t, dispatcher)

	data, err := json.Marshal(paidEvent())
	require.NoError(t, err)
	for name, eventID := range map[string]string{
		"malformed": "not-a-uuid",
		"nil":       uuid.Nil.String(),
	} {
		t.Run(name, func(t *testing.T) {
			envelope, err := json.Marshal(outbox.PayloadEnvelope{
				Version:    1,
				EventID:    eventID,
				OccurredAt: time.Now().UTC(),
				Data:       data,
			})
			require.NoError(t, err)
			msg := &pubsub.Message{
				ID:         "msg-" + name,
				Data:       envelope,
				Attributes: map[string]string{"event_type": string(enums.EventOrderCompleted)},
			}

			assert.Equal(t, outcomeAck, consumer.process(context.Background(), msg))
		})
	}

	assert.Empty(t, dispatcher.sent)
	assert.Empty(t, store.keys, "no dedupe mark may be written for an unusable event id")
}

func TestConsumerSkipsOtherEvents(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	consumer, _ := newTestConsumer(t, dispatcher)

	msg := completedMessage(t, uuid.New(), paidEvent())
	msg.Attributes["event_type"] = string(enums.EventPayoutAccountUpdated)

	assert.Equal(t, outcomeAck, consumer.process(context.Background(), msg))
	assert.Empty(t, dispatcher.sent)
}

func TestPurchaseConfirmationFreeListing(t *testing.T) {
	event := paidEvent()
	event.AmountCents = 0
	event.Free = true
	event.SellerDisplayName = ""

	msg, err := PurchaseConfirmation("https://curatedly.test", &event)
	require.NoError(t, err)
	assert.Contains(t, msg.Text, `You grabbed "Tokyo coffee map" from maya for free.`)
	assert.NotContains(t, msg.Text, "USD")
}

func TestPurchaseConfirmationEscapesHTML(t *testing.T) {
	event := paidEvent()
	event.ListingTitle = "<script>alert(1)</script>"

	msg, err := PurchaseConfirmation("https://curatedly.test", &event)
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<script>")
	assert.Contains(t, msg.HTML, "&lt;script&gt;")
}
