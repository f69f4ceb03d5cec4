package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	interfaces "github.com/sheikh-saqib/batch-settlement-ledger/internal/interfaces"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/models"
)

// SettlementTopic carries finalized batches to settlement authorities.
const SettlementTopic = "ledger.batch_settlements"

// SettlementMessage is the wire form of a finalized batch.
type SettlementMessage struct {
	Authority string          `json:"authority"`
	Batch     uint64          `json:"batch"`
	Entries   []models.Entry  `json:"entries"`
	NetAmount decimal.Decimal `json:"net_amount"`
}

// SettlementNotifier delivers finalized batches over Kafka. Writes wait for
// every in-sync replica so a returned nil means the authority can consume the batch.
type SettlementNotifier struct {
	writer *kafka.Writer
}

func NewSettlementNotifier(brokers []string) *SettlementNotifier {
	return &SettlementNotifier{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  SettlementTopic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
	}
}

func (n *SettlementNotifier) ReceiveBatch(ctx context.Context, authority string, batch uint64, entries []models.Entry, netAmount decimal.Decimal) error {
	data, err := json.Marshal(SettlementMessage{
		Authority: authority,
		Batch:     batch,
		Entries:   entries,
		NetAmount: netAmount,
	})
	if err != nil {
		return fmt.Errorf("kafka: encode settlement: %w", err)
	}

	return n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(authority),
		Value: data,
		Headers: []kafka.Header{
			{Key: "batch", Value: []byte(strconv.FormatUint(batch, 10))},
		},
	})
}

func (n *SettlementNotifier) Close() error {
	return n.writer.Close()
}

var _ interfaces.SettlementNotifier = (*SettlementNotifier)(nil)
