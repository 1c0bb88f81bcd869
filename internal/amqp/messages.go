package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// EventType names a committed ledger mutation.
type EventType string

const (
	EventTransactionCreated EventType = "transaction.created"
	EventTransactionUpdated EventType = "transaction.updated"
	EventTransactionDeleted EventType = "transaction.deleted"
	EventGoalCreated        EventType = "goal.created"
	EventGoalUpdated        EventType = "goal.updated"
	EventGoalDeleted        EventType = "goal.deleted"
	EventGoalFunded         EventType = "goal.funded"
	EventChallengeAccepted  EventType = "challenge.accepted"
	EventChallengeAbandoned EventType = "challenge.abandoned"
	EventBalanceToppedUp    EventType = "balance.topped_up"
)

// LedgerEvent is a lightweight notification of a committed mutation. It
// carries ids only; consumers read current state from the repository.
type LedgerEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	UserID     string    `json:"user_id"`
	EntityID   string    `json:"entity_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewLedgerEvent creates an event stamped with a fresh id and the current time.
func NewLedgerEvent(typ EventType, userID, entityID string) *LedgerEvent {
	return &LedgerEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		UserID:     userID,
		EntityID:   entityID,
		OccurredAt: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event and rejects ones without a type or user.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.Type == "" || e.UserID == "" {
		return nil, errors.New("ledger event missing type or user_id")
	}
	return &e, nil
}
