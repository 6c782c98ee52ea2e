package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DBLogger implements audit logging to PostgreSQL database. The audit_logs
// table is created by the storage migrations.
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a new database-based audit logger
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &DBLogger{db: db}, nil
}

// Log logs an audit event to the database
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	prepare(event)

	var changes []byte
	if event.Changes != nil {
		var err error
		if changes, err = json.Marshal(event.Changes); err != nil {
			return fmt.Errorf("failed to marshal changes: %w", err)
		}
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, timestamp, action, actor_id, organization_id,
			resource_type, resource_id, request_id, message, changes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, event.ID, event.Timestamp, event.Action, event.ActorID, nullUUID(event.OrganizationID),
		nullString(string(event.ResourceType)), nullString(event.ResourceID),
		nullString(event.RequestID), nullString(event.Message), changes)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// Search searches audit logs based on filters
func (l *DBLogger) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	var (
		conditions []string
		args       []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if filter.OrganizationID != "" {
		if _, err := uuid.Parse(filter.OrganizationID); err != nil {
			return []*Event{}, nil
		}
		add("organization_id = $%d", filter.OrganizationID)
	}
	if filter.Action != "" {
		add("action = $%d", filter.Action)
	}
	if filter.StartTime != nil {
		add("timestamp >= $%d", *filter.StartTime)
	}
	if filter.EndTime != nil {
		add("timestamp <= $%d", *filter.EndTime)
	}

	query := `
		SELECT id, timestamp, action, actor_id, organization_id,
			resource_type, resource_id, request_id, message, changes
		FROM audit_logs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, filter.limit())
	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d", len(args))

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit logs: %w", err)
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		var (
			e       Event
			changes []byte
		)
		var orgID, resourceType, resourceID, requestID, message sql.NullString
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Action, &e.ActorID, &orgID,
			&resourceType, &resourceID, &requestID, &message, &changes); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		e.OrganizationID = orgID.String
		e.ResourceType = ResourceType(resourceType.String)
		e.ResourceID = resourceID.String
		e.RequestID = requestID.String
		e.Message = message.String
		if len(changes) > 0 {
			e.Changes = &ChangeDetails{}
			if err := json.Unmarshal(changes, e.Changes); err != nil {
				return nil, fmt.Errorf("failed to unmarshal changes: %w", err)
			}
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// Close is a no-op; the database handle is owned by the caller.
func (l *DBLogger) Close() error {
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullUUID keeps non-UUID organization ids out of the UUID column.
func nullUUID(s string) sql.NullString {
	if _, err := uuid.Parse(s); err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
