package websocket

import (
	"encoding/json"

	"github.com/isdelr/ender-accounts/internal/models"
)

// Message defines the structure for websocket messages.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload"`
}

// ActionAuditEvent tags messages carrying an audit event.
const ActionAuditEvent = "audit_event"

// NewEventMessage encodes an audit event for the wire.
func NewEventMessage(event models.Event) ([]byte, error) {
	return json.Marshal(Message{Action: ActionAuditEvent, Payload: event})
}
