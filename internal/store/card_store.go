package store

import (
	"context"

	"talent/internal/models"
)

type CardStore struct {
	db DB
}

func NewCardStore(db DB) *CardStore {
	return &CardStore{db: db}
}

const cardColumns = `token, label, balance, created_at, updated_at`

// Ensure inserts a zero-balance card unless one already exists.
func (s *CardStore) Ensure(ctx context.Context, tx Execer, token string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO cards (token)
		VALUES ($1)
		ON CONFLICT (token) DO NOTHING
	`, token)
	return err
}

func (s *CardStore) Get(ctx context.Context, token string) (models.Card, error) {
	var card models.Card
	err := s.db.GetContext(ctx, &card, `SELECT `+cardColumns+` FROM cards WHERE token = $1`, token)
	if err != nil {
		return models.Card{}, err
	}
	return card, nil
}

func (s *CardStore) GetForUpdate(ctx context.Context, tx Getter, token string) (models.Card, error) {
	var card models.Card
	err := tx.GetContext(ctx, &card, `
		SELECT `+cardColumns+`
		FROM cards
		WHERE token = $1
		FOR UPDATE
	`, token)
	if err != nil {
		return models.Card{}, err
	}
	return card, nil
}

func (s *CardStore) List(ctx context.Context) ([]models.Card, error) {
	var cards []models.Card
	err := s.db.SelectContext(ctx, &cards, `SELECT `+cardColumns+` FROM cards ORDER BY token ASC`)
	if err != nil {
		return nil, err
	}
	return cards, nil
}

// AdjustBalance increments the cached balance in place and returns the value
// after the update. The row lock taken by UPDATE serializes concurrent deltas.
func (s *CardStore) AdjustBalance(ctx context.Context, tx Getter, token string, delta int64) (int64, error) {
	var balance int64
	err := tx.GetContext(ctx, &balance, `
		UPDATE cards
		SET balance = balance + $1, updated_at = NOW()
		WHERE token = $2
		RETURNING balance
	`, delta, token)
	return balance, err
}

func (s *CardStore) SetLabel(ctx context.Context, tx Execer, token, label string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE cards
		SET label = $1, updated_at = NOW()
		WHERE token = $2
	`, label, token)
	return err
}

// Upsert overwrites label and balance directly. It is the roster-loading path
// and deliberately writes no ledger row.
func (s *CardStore) Upsert(ctx context.Context, tx Execer, token, label string, balance int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO cards (token, label, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO UPDATE
		SET label = EXCLUDED.label, balance = EXCLUDED.balance, updated_at = NOW()
	`, token, label, balance)
	return err
}

func (s *CardStore) Delete(ctx context.Context, tx Execer, token string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE token = $1`, token)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *CardStore) LedgerDrift(ctx context.Context) ([]models.LedgerDrift, error) {
	var rows []models.LedgerDrift
	err := s.db.SelectContext(ctx, &rows, `
		SELECT c.token,
		       c.balance,
		       COALESCE(SUM(t.delta), 0) AS ledger_sum,
		       (c.balance - COALESCE(SUM(t.delta), 0)) AS difference
		FROM cards c
		LEFT JOIN transactions t ON t.card_token = c.token
		GROUP BY c.token, c.balance
		HAVING c.balance <> COALESCE(SUM(t.delta), 0)
		ORDER BY c.token
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
