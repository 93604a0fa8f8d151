package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	TransactionCreated EventType = "transaction.created"
	TransactionUpdated EventType = "transaction.updated"
	TransactionDeleted EventType = "transaction.deleted"
	CategoryCreated    EventType = "category.created"
)

// LedgerEvent announces a committed ledger change. It carries ids only;
// consumers read current state from the ledger.
type LedgerEvent struct {
	Type      EventType `json:"type"`
	UserID    int64     `json:"userId"`
	EntityID  int64     `json:"entityId"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerEvent(t EventType, userID, entityID int64) *LedgerEvent {
	return &LedgerEvent{
		Type:      t,
		UserID:    userID,
		EntityID:  entityID,
		Timestamp: time.Now(),
	}
}

func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and checks an event body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	switch e.Type {
	case TransactionCreated, TransactionUpdated, TransactionDeleted, CategoryCreated:
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	return &e, nil
}
