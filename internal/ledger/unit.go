package ledger

import (
	"context"
	"fmt"
	"log"

	interfaces "github.com/sheikh-saqib/batch-settlement-ledger/internal/interfaces"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/models/events"
)

// unit is the staged state of one operation: the store tx, the custodian tx
// (nil for operations that move no funds) and the events it raised.
type unit struct {
	ledger *Ledger
	store  interfaces.BatchTx
	funds  interfaces.CustodianTx
	events []events.Envelope
}

func (l *Ledger) begin(ctx context.Context, withFunds bool) (*unit, error) {
	storeTx, err := l.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: begin store tx: %w", err)
	}
	u := &unit{ledger: l, store: storeTx}

	if withFunds {
		var fundsTx interfaces.CustodianTx
		if joiner, ok := l.custodian.(interfaces.TxJoiner); ok {
			fundsTx, err = joiner.Join(storeTx)
		} else {
			fundsTx, err = l.custodian.Begin(ctx)
		}
		if err != nil {
			_ = storeTx.Rollback()
			return nil, fmt.Errorf("ledger: begin custodian tx: %w", err)
		}
		u.funds = fundsTx
	}
	return u, nil
}

func (u *unit) emit(topic string, payload any) {
	u.events = append(u.events, events.NewEnvelope(topic, payload, u.ledger.now()))
}

// commit makes the store writes durable first, then the transfers. A custodian
// joined to the store tx has nothing left to commit by then.
func (u *unit) commit() error {
	if err := u.store.Commit(); err != nil {
		u.rollback()
		return fmt.Errorf("ledger: commit store tx: %w", err)
	}
	if u.funds != nil {
		if err := u.funds.Commit(); err != nil {
			log.Printf("ledger: custodian commit failed after store commit: %v", err)
			return fmt.Errorf("ledger: commit custodian tx: %w", err)
		}
	}
	return nil
}

func (u *unit) rollback() {
	if err := u.store.Rollback(); err != nil {
		log.Printf("ledger: rollback store tx: %v", err)
	}
	if u.funds != nil {
		if err := u.funds.Rollback(); err != nil {
			log.Printf("ledger: rollback custodian tx: %v", err)
		}
	}
	u.events = nil
}
