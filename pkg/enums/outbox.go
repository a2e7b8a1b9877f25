package enums

// OutboxAggregateType names the entity an outbox event describes (aggregate_type_enum).
type OutboxAggregateType string

const (
	AggregateOrder  OutboxAggregateType = "order"
	AggregateSeller OutboxAggregateType = "seller"
)

var validAggregateTypes = []OutboxAggregateType{AggregateOrder, AggregateSeller}

func (a OutboxAggregateType) IsValid() bool {
	_, err := ParseOutboxAggregateType(string(a))
	return err == nil
}

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse("aggregate type", validAggregateTypes, value)
}

// OutboxEventType maps to event_type_enum. Consumers route on it via the
// event_type message attribute.
type OutboxEventType string

const (
	EventOrderCompleted       OutboxEventType = "order_completed"
	EventOrderFailed          OutboxEventType = "order_failed"
	EventPayoutAccountUpdated OutboxEventType = "payout_account_updated"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCompleted,
	EventOrderFailed,
	EventPayoutAccountUpdated,
}

func (e OutboxEventType) IsValid() bool {
	_, err := ParseOutboxEventType(string(e))
	return err == nil
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse("event type", validOutboxEventTypes, value)
}
