package store

import (
	"context"
	"time"
)

// AuditStore records admin actions that change state without a ledger row:
// roster imports, direct upserts, card deletion, booth changes and settings.
type AuditStore struct {
	db DB
}

type AuditEntry struct {
	ID         int64     `db:"id" json:"id"`
	Actor      string    `db:"actor" json:"actor"`
	Action     string    `db:"action" json:"action"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	EntityID   string    `db:"entity_id" json:"entity_id"`
	Data       string    `db:"data" json:"data"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

func NewAuditStore(db DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Log(ctx context.Context, tx Execer, actor, action, entityType, entityID, data string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO admin_audit (actor, action, entity_type, entity_id, data)
		VALUES ($1, $2, $3, $4, $5)
	`, actor, action, entityType, entityID, data)
	return err
}

func (s *AuditStore) List(ctx context.Context, limit, offset int) ([]AuditEntry, error) {
	var rows []AuditEntry
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, actor, action, entity_type, entity_id, data, created_at
		FROM admin_audit
		ORDER BY id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
