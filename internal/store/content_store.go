package store

import (
	"context"
	"database/sql"
	"errors"
)

type ContentStore struct {
	db DB
}

func NewContentStore(db DB) *ContentStore {
	return &ContentStore{db: db}
}

// Get returns the stored value and whether the key exists.
func (s *ContentStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM site_content WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *ContentStore) Set(ctx context.Context, tx Execer, key, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO site_content (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	return err
}
