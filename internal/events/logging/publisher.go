// Package logging provides an EventPublisher that writes events to a log.Logger.
// It is used when no message broker is configured.
package logging

import (
	"encoding/json"
	"log"

	interfaces "github.com/sheikh-saqib/batch-settlement-ledger/internal/interfaces"
)

type Publisher struct {
	logger *log.Logger
}

// NewPublisher logs through logger, or the standard logger when nil.
func NewPublisher(logger *log.Logger) *Publisher {
	if logger == nil {
		logger = log.Default()
	}
	return &Publisher{logger: logger}
}

func (p *Publisher) Publish(topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	p.logger.Printf("event %s %s", topic, data)
	return nil
}

var _ interfaces.EventPublisher = (*Publisher)(nil)
