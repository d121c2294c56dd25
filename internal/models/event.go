package models

import "time"

// Event represents an entry in the account audit trail.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`  // e.g., "account.created", "auth.failed"
	Level     string    `json:"level"` // e.g., "info", "warn", "error"
	Message   string    `json:"message"`
	AccountID *string   `json:"accountId,omitempty"` // Nullable for events without a resolved account
	CreatedAt time.Time `json:"createdAt"`
}
