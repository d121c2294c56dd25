package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/ender-accounts/internal/database"
	"github.com/isdelr/ender-accounts/internal/models"
	"github.com/isdelr/ender-accounts/internal/policy"
)

// Audit event types.
const (
	EventAccountCreated    = "account.created"
	EventAuthSucceeded     = "auth.succeeded"
	EventAuthFailed        = "auth.failed"
	EventPasswordChanged   = "password.changed"
	EventProfileUpdated    = "profile.updated"
	EventAccessDenied      = "access.denied"
	EventCredentialCorrupt = "credential.corrupt"
)

// Audit event levels.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

const maxEventLimit = 200

// EventPublisher receives every recorded event, e.g. for live feeds.
type EventPublisher interface {
	Publish(event models.Event)
}

// AuditServiceProvider defines the interface for audit services.
type AuditServiceProvider interface {
	Record(ctx context.Context, eventType, level, message string, accountID *string) error
	ListEvents(ctx context.Context, p models.Principal, limit int) ([]models.Event, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditService persists the account audit trail.
type AuditService struct {
	db        *sql.DB
	driver    string
	authz     Authorizer
	publisher EventPublisher
	now       func() time.Time
}

// NewAuditService creates a new AuditService. publisher may be nil.
func NewAuditService(db *sql.DB, driver string, authz Authorizer, publisher EventPublisher) *AuditService {
	return &AuditService{
		db:        db,
		driver:    driver,
		authz:     authz,
		publisher: publisher,
		now:       time.Now,
	}
}

// Record stores a new event and hands it to the publisher.
func (s *AuditService) Record(ctx context.Context, eventType, level, message string, accountID *string) error {
	event := models.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Level:     level,
		Message:   message,
		AccountID: accountID,
		CreatedAt: s.now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		database.Rebind(s.driver, "INSERT INTO audit_events (id, type, level, message, account_id, created_at) VALUES (?, ?, ?, ?, ?, ?)"),
		event.ID, event.Type, event.Level, event.Message, event.AccountID, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}

	if s.publisher != nil {
		s.publisher.Publish(event)
	}
	return nil
}

// ListEvents returns the most recent events, newest first. Managers only.
func (s *AuditService) ListEvents(ctx context.Context, p models.Principal, limit int) ([]models.Event, error) {
	if d := s.authz.Authorize(p, policy.OpViewAuditLog, ""); !d.Allowed {
		return nil, &ForbiddenError{Operation: policy.OpViewAuditLog, Reason: d.Reason}
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	rows, err := s.db.QueryContext(ctx,
		database.Rebind(s.driver, "SELECT id, type, level, message, account_id, created_at FROM audit_events ORDER BY created_at DESC, id DESC LIMIT ?"),
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var event models.Event
		var accountID sql.NullString
		if err := rows.Scan(&event.ID, &event.Type, &event.Level, &event.Message, &accountID, &event.CreatedAt); err != nil {
			return nil, err
		}
		if accountID.Valid {
			id := accountID.String
			event.AccountID = &id
		}
		event.CreatedAt = event.CreatedAt.UTC()
		events = append(events, event)
	}
	return events, rows.Err()
}

// PruneBefore deletes events older than cutoff and reports how many went.
func (s *AuditService) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		database.Rebind(s.driver, "DELETE FROM audit_events WHERE created_at < ?"),
		cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	return res.RowsAffected()
}
