package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Actions carried by RecordsChangedMessage.
const (
	ActionAdd    = "add"
	ActionEdit   = "edit"
	ActionDelete = "delete"
	ActionReload = "reload"
)

// RecordsChangedMessage announces that the record table changed. Consumers
// re-read the table; the row is informational since positions shift.
type RecordsChangedMessage struct {
	ID        uuid.UUID `json:"id"`
	Action    string    `json:"action"`
	Row       int       `json:"row,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordsChangedMessage(action string, row int) *RecordsChangedMessage {
	return &RecordsChangedMessage{
		ID:        uuid.New(),
		Action:    action,
		Row:       row,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordsChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordsChangedMessageFromJSON decodes and validates a message body.
func RecordsChangedMessageFromJSON(data []byte) (*RecordsChangedMessage, error) {
	var msg RecordsChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Action {
	case ActionAdd, ActionEdit, ActionDelete, ActionReload:
	default:
		return nil, fmt.Errorf("unknown action %q", msg.Action)
	}
	return &msg, nil
}
