package interfaces

// EventPublisher delivers ledger notifications to downstream consumers.
// The ledger only publishes after the operation that raised the event committed.
type EventPublisher interface {
	Publish(topic string, event any) error
}
