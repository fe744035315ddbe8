package store

import (
	"context"

	"talent/internal/models"
)

type TransactionStore struct {
	db DB
}

func NewTransactionStore(db DB) *TransactionStore {
	return &TransactionStore{db: db}
}

type TransactionInput struct {
	CardToken string
	Delta     int64
	Source    models.Source
	Reason    string
	Booth     string
}

const transactionColumns = `id, card_token, delta, source, reason, booth, created_at`

// Insert appends one ledger row and returns its id.
func (s *TransactionStore) Insert(ctx context.Context, tx Getter, input TransactionInput) (int64, error) {
	var id int64
	err := tx.GetContext(ctx, &id, `
		INSERT INTO transactions (card_token, delta, source, reason, booth)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, input.CardToken, input.Delta, string(input.Source), input.Reason, input.Booth)
	return id, err
}

// ListByCard returns the newest rows first. A limit of 0 returns every row.
func (s *TransactionStore) ListByCard(ctx context.Context, token string, limit int) ([]models.Transaction, error) {
	var rows []models.Transaction
	var err error
	if limit > 0 {
		err = s.db.SelectContext(ctx, &rows, `
			SELECT `+transactionColumns+`
			FROM transactions
			WHERE card_token = $1
			ORDER BY id DESC
			LIMIT $2
		`, token, limit)
	} else {
		err = s.db.SelectContext(ctx, &rows, `
			SELECT `+transactionColumns+`
			FROM transactions
			WHERE card_token = $1
			ORDER BY id DESC
		`, token)
	}
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ExportRow is a ledger row with the card's current label joined in.
type ExportRow struct {
	models.Transaction
	Label string `db:"label"`
}

// ListAll returns every ledger row oldest first.
func (s *TransactionStore) ListAll(ctx context.Context) ([]ExportRow, error) {
	var rows []ExportRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT t.id, t.card_token, t.delta, t.source, t.reason, t.booth, t.created_at,
		       COALESCE(c.label, '') AS label
		FROM transactions t
		LEFT JOIN cards c ON c.token = t.card_token
		ORDER BY t.id ASC
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *TransactionStore) DeleteByCard(ctx context.Context, tx Execer, token string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE card_token = $1`, token)
	return err
}
