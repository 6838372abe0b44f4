package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Op says what happened to a transaction.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

func (o Op) IsValid() bool {
	return o == OpUpsert || o == OpDelete
}

var ErrInvalidEvent = errors.New("invalid transaction event")

// TransactionEvent announces a change to one transaction. It carries only
// the ID; consumers load the current record from the store, so a late event
// never writes stale data.
type TransactionEvent struct {
	ID        string    `json:"id"`
	Op        Op        `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionEvent(id string, op Op) *TransactionEvent {
	return &TransactionEvent{
		ID:        id,
		Op:        op,
		Timestamp: time.Now().UTC(),
	}
}

func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes and validates an event body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var ev TransactionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if ev.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	if !ev.Op.IsValid() {
		return nil, fmt.Errorf("%w: unknown op %q", ErrInvalidEvent, ev.Op)
	}
	return &ev, nil
}
