package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuditEvent records a curation or lifecycle action for later review.
type AuditEvent struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	TargetID  string    `json:"target_id"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AppendAudit writes an audit event. Audit rows are append-only.
func (s *SQLiteStore) AppendAudit(ctx context.Context, action, targetID, detail string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, action, target_id, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), action, targetID, detail, time.Now().UTC().Format(time.RFC3339))
	return err
}

// ListAudit returns the most recent audit events, newest first.
func (s *SQLiteStore) ListAudit(ctx context.Context, limit int) ([]AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action, target_id, detail, created_at FROM audit_events
		 ORDER BY created_at DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditEvent
	for rows.Next() {
		var e AuditEvent
		var createdAt string
		var detail string
		if err := rows.Scan(&e.ID, &e.Action, &e.TargetID, &detail, &createdAt); err != nil {
			return nil, err
		}
		e.Detail = detail
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}
