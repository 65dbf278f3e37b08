package audit

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepo appends to audit_events. It issues INSERT only.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	if r.db == nil {
		return errors.New("audit: db is nil")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO audit_events (id, type, contact_id, owner_id, engagement_id, recording_sid, message, metadata, created_at)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, NULLIF($8, ''), $9)`,
		e.ID, string(e.Type), e.ContactID, e.OwnerID, e.EngagementID, e.RecordingSID, e.Message, e.Metadata, e.CreatedAt,
	)
	return err
}
