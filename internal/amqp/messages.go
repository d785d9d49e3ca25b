package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"vet/internal/core"
)

// ExpenseChangedMessage announces that records were created, edited or
// synced. It carries only ids; consumers read the records from their store.
type ExpenseChangedMessage struct {
	Op        core.ChangeOp `json:"op"`
	IDs       []string      `json:"ids"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewExpenseChangedMessage wraps a change event for publishing
func NewExpenseChangedMessage(event core.ChangeEvent) *ExpenseChangedMessage {
	return &ExpenseChangedMessage{
		Op:        event.Op,
		IDs:       append([]string(nil), event.IDs...),
		Timestamp: time.Now(),
	}
}

// Event converts the message back into a change event.
func (m *ExpenseChangedMessage) Event() core.ChangeEvent {
	return core.ChangeEvent{Op: m.Op, IDs: append([]string(nil), m.IDs...)}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseChangedMessageFromJSON decodes a message. A message without an op
// is rejected.
func ExpenseChangedMessageFromJSON(data []byte) (*ExpenseChangedMessage, error) {
	var msg ExpenseChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Op == "" {
		return nil, errors.New("message has no op")
	}
	return &msg, nil
}
