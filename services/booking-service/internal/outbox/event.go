package outbox

import "github.com/google/uuid"

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (event per topic).
type Event struct {
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// NewEvent assigns a fresh event id; the id doubles as the inbox
// deduplication key on the consumer side.
func NewEvent(aggregateType, aggregateID, eventType string, payload []byte) Event {
	return Event{
		EventID:       uuid.NewString(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
	}
}
