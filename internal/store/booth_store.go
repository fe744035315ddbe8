package store

import (
	"context"

	"talent/internal/models"
)

type BoothStore struct {
	db DB
}

func NewBoothStore(db DB) *BoothStore {
	return &BoothStore{db: db}
}

func (s *BoothStore) Create(ctx context.Context, tx Getter, username, password, label string) (int64, error) {
	var id int64
	err := tx.GetContext(ctx, &id, `
		INSERT INTO booths (username, password, label)
		VALUES ($1, $2, $3)
		RETURNING id
	`, username, password, label)
	return id, err
}

// Update changes the label and, when password is non-empty, the password.
func (s *BoothStore) Update(ctx context.Context, tx Execer, username, password, label string) (int64, error) {
	var (
		query string
		args  []any
	)
	if password == "" {
		query = `UPDATE booths SET label = $1 WHERE username = $2`
		args = []any{label, username}
	} else {
		query = `UPDATE booths SET label = $1, password = $2 WHERE username = $3`
		args = []any{label, password, username}
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *BoothStore) Delete(ctx context.Context, tx Execer, username string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM booths WHERE username = $1`, username)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *BoothStore) GetByUsername(ctx context.Context, username string) (models.Booth, error) {
	var booth models.Booth
	err := s.db.GetContext(ctx, &booth, `
		SELECT id, username, password, label, created_at
		FROM booths
		WHERE username = $1
	`, username)
	if err != nil {
		return models.Booth{}, err
	}
	return booth, nil
}

// LockByUsername holds a share lock on the booth row for the rest of tx, so a
// concurrent delete waits for it. A missing booth yields sql.ErrNoRows.
func (s *BoothStore) LockByUsername(ctx context.Context, tx Getter, username string) error {
	var id int64
	return tx.GetContext(ctx, &id, `
		SELECT id FROM booths
		WHERE username = $1
		FOR SHARE
	`, username)
}

func (s *BoothStore) List(ctx context.Context) ([]models.Booth, error) {
	var booths []models.Booth
	err := s.db.SelectContext(ctx, &booths, `
		SELECT id, username, label, created_at
		FROM booths
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	return booths, nil
}
