package amqp

import (
	"encoding/json"
	"time"
)

// ChangeType names what happened to the budget.
type ChangeType string

const (
	ItemCreated   ChangeType = "item.created"
	ItemUpdated   ChangeType = "item.updated"
	ItemDeleted   ChangeType = "item.deleted"
	SettingsSaved ChangeType = "settings.saved"
)

// ChangeEvent is a lightweight notification that budget data changed.
// Consumers reload through their own store; the event carries no payload.
type ChangeEvent struct {
	Type      ChangeType `json:"type"`
	ID        string     `json:"id,omitempty"`
	Month     string     `json:"month,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewChangeEvent creates an event stamped with the current time
func NewChangeEvent(t ChangeType, id, month string) *ChangeEvent {
	return &ChangeEvent{
		Type:      t,
		ID:        id,
		Month:     month,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (m *ChangeEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeEventFromJSON creates an event from JSON bytes
func ChangeEventFromJSON(data []byte) (*ChangeEvent, error) {
	var msg ChangeEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
