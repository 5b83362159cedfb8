package enums

// OutboxAggregateType maps to outbox_events.aggregate_type.
type OutboxAggregateType string

const AggregateOrder OutboxAggregateType = "order"

var aggregateTypes = []OutboxAggregateType{AggregateOrder}

func (a OutboxAggregateType) IsValid() bool { return valid(aggregateTypes, a) }

// OutboxEventType maps to outbox_events.event_type and is forwarded as the
// event_type message attribute.
type OutboxEventType string

const (
	EventOrderPlaced        OutboxEventType = "order_placed"
	EventOrderCancelled     OutboxEventType = "order_cancelled"
	EventOrderStatusChanged OutboxEventType = "order_status_changed"
)

var outboxEventTypes = []OutboxEventType{
	EventOrderPlaced,
	EventOrderCancelled,
	EventOrderStatusChanged,
}

func (e OutboxEventType) IsValid() bool { return valid(outboxEventTypes, e) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse("event type", outboxEventTypes, value)
}
