package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strings"

	"talent/internal/db"
	"talent/internal/models"
	"talent/internal/store"
	"talent/internal/websocket"

	"github.com/jmoiron/sqlx"
)

const setBalanceReason = "set-balance"

// LedgerService is the only writer of card balances. Every delta goes through
// appendEntry, which increments the cached balance and appends the ledger row
// in the same transaction.
type LedgerService struct {
	txRunner   db.TxRunner
	cardStore  CardStore
	txStore    TransactionStore
	auditStore AuditStore
	hub        BalanceHub
	logger     *slog.Logger
}

type CardStore interface {
	Ensure(ctx context.Context, tx store.Execer, token string) error
	Get(ctx context.Context, token string) (models.Card, error)
	GetForUpdate(ctx context.Context, tx store.Getter, token string) (models.Card, error)
	AdjustBalance(ctx context.Context, tx store.Getter, token string, delta int64) (int64, error)
	SetLabel(ctx context.Context, tx store.Execer, token, label string) error
	Upsert(ctx context.Context, tx store.Execer, token, label string, balance int64) error
	Delete(ctx context.Context, tx store.Execer, token string) (int64, error)
}

type TransactionStore interface {
	Insert(ctx context.Context, tx store.Getter, input store.TransactionInput) (int64, error)
	DeleteByCard(ctx context.Context, tx store.Execer, token string) error
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actor, action, entityType, entityID, data string) error
}

type BalanceHub interface {
	BroadcastBalance(token string, update websocket.BalanceUpdate)
}

func NewLedgerService(txRunner db.TxRunner, cardStore CardStore, txStore TransactionStore, auditStore AuditStore, hub BalanceHub, logger *slog.Logger) *LedgerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerService{
		txRunner:   txRunner,
		cardStore:  cardStore,
		txStore:    txStore,
		auditStore: auditStore,
		hub:        hub,
		logger:     logger,
	}
}

// Entry is one requested balance change.
type Entry struct {
	Token  string
	Delta  int64
	Source models.Source
	Reason string
	Booth  string
	// Guard, when set, runs first inside the transaction and aborts it on error.
	Guard func(ctx context.Context, tx *sqlx.Tx) error
}

type Result struct {
	Token         string `json:"token"`
	Balance       int64  `json:"balance"`
	Delta         int64  `json:"delta"`
	TransactionID int64  `json:"transaction_id"`
}

// EnsureCard provisions a zero-balance card if token is unseen.
func (s *LedgerService) EnsureCard(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return validationError("token is required")
	}
	return translateErr(s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.cardStore.Ensure(ctx, tx, token)
	}))
}

func (s *LedgerService) Card(ctx context.Context, token string) (models.Card, error) {
	if err := s.EnsureCard(ctx, token); err != nil {
		return models.Card{}, err
	}
	card, err := s.cardStore.Get(ctx, strings.TrimSpace(token))
	if err != nil {
		return models.Card{}, translateErr(err)
	}
	return card, nil
}

func (s *LedgerService) ApplyDelta(ctx context.Context, entry Entry) (Result, error) {
	entry.Token = strings.TrimSpace(entry.Token)
	if entry.Token == "" {
		return Result{}, validationError("token is required")
	}
	if !entry.Source.Valid() {
		return Result{}, validationError("unknown source %q", entry.Source)
	}
	var result Result
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if entry.Guard != nil {
			if err := entry.Guard(ctx, tx); err != nil {
				return err
			}
		}
		if err := s.cardStore.Ensure(ctx, tx, entry.Token); err != nil {
			return err
		}
		var err error
		result, err = s.appendEntry(ctx, tx, entry)
		return err
	})
	if err != nil {
		return Result{}, translateErr(err)
	}
	s.publish(entry, result)
	return result, nil
}

// SetBalance locks the card, derives the delta to value and records it
// through the same append path as ApplyDelta.
func (s *LedgerService) SetBalance(ctx context.Context, token string, value int64, source models.Source, reason string) (Result, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Result{}, validationError("token is required")
	}
	if !source.Valid() {
		return Result{}, validationError("unknown source %q", source)
	}
	if strings.TrimSpace(reason) == "" {
		reason = setBalanceReason
	}
	entry := Entry{Token: token, Source: source, Reason: reason}
	var result Result
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.cardStore.Ensure(ctx, tx, token); err != nil {
			return err
		}
		card, err := s.cardStore.GetForUpdate(ctx, tx, token)
		if err != nil {
			return err
		}
		if subOverflows(value, card.Balance) {
			return validationError("balance out of range")
		}
		entry.Delta = value - card.Balance
		result, err = s.appendEntry(ctx, tx, entry)
		return err
	})
	if err != nil {
		return Result{}, translateErr(err)
	}
	s.publish(entry, result)
	return result, nil
}

func subOverflows(a, b int64) bool {
	return (b > 0 && a < math.MinInt64+b) || (b < 0 && a > math.MaxInt64+b)
}

func (s *LedgerService) appendEntry(ctx context.Context, tx *sqlx.Tx, entry Entry) (Result, error) {
	balance, err := s.cardStore.AdjustBalance(ctx, tx, entry.Token, entry.Delta)
	if err != nil {
		return Result{}, err
	}
	id, err := s.txStore.Insert(ctx, tx, store.TransactionInput{
		CardToken: entry.Token,
		Delta:     entry.Delta,
		Source:    entry.Source,
		Reason:    entry.Reason,
		Booth:     entry.Booth,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Token: entry.Token, Balance: balance, Delta: entry.Delta, TransactionID: id}, nil
}

func (s *LedgerService) publish(entry Entry, result Result) {
	s.logger.Info("balance changed",
		"token", result.Token,
		"delta", result.Delta,
		"balance", result.Balance,
		"source", string(entry.Source),
		"booth", entry.Booth,
		"transaction_id", result.TransactionID,
	)
	s.hub.BroadcastBalance(result.Token, websocket.BalanceUpdate{
		Token:         result.Token,
		Balance:       result.Balance,
		Delta:         result.Delta,
		Source:        string(entry.Source),
		TransactionID: result.TransactionID,
	})
}

func (s *LedgerService) SetLabel(ctx context.Context, actor, token, label string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return validationError("token is required")
	}
	label = strings.TrimSpace(label)
	return translateErr(s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.cardStore.Ensure(ctx, tx, token); err != nil {
			return err
		}
		if err := s.cardStore.SetLabel(ctx, tx, token, label); err != nil {
			return err
		}
		return s.auditStore.Log(ctx, tx, actor, "card.label", "card", token, auditData(map[string]any{"label": label}))
	}))
}

// UpsertMany overwrites label and balance for every row in one transaction
// without writing ledger rows. It is the roster-loading path.
func (s *LedgerService) UpsertMany(ctx context.Context, actor string, rows []RosterRow) error {
	if len(rows) == 0 {
		return nil
	}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, row := range rows {
			if err := s.cardStore.Upsert(ctx, tx, row.Token, row.Label, row.Balance); err != nil {
				return err
			}
		}
		tokens := make([]string, 0, len(rows))
		for _, row := range rows {
			tokens = append(tokens, row.Token)
		}
		return s.auditStore.Log(ctx, tx, actor, "card.upsert", "card", "", auditData(map[string]any{
			"count":  len(rows),
			"tokens": tokens,
		}))
	})
	if err != nil {
		return translateErr(err)
	}
	s.logger.Info("cards upserted", "count", len(rows), "actor", actor)
	for _, row := range rows {
		s.hub.BroadcastBalance(row.Token, websocket.BalanceUpdate{Token: row.Token, Balance: row.Balance})
	}
	return nil
}

// DeleteCard removes the card and its ledger rows together. Deleting an
// unknown token is a no-op.
func (s *LedgerService) DeleteCard(ctx context.Context, actor, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return validationError("token is required")
	}
	var deleted int64
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.txStore.DeleteByCard(ctx, tx, token); err != nil {
			return err
		}
		var err error
		deleted, err = s.cardStore.Delete(ctx, tx, token)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return nil
		}
		return s.auditStore.Log(ctx, tx, actor, "card.delete", "card", token, "")
	})
	if err != nil {
		return translateErr(err)
	}
	if deleted > 0 {
		s.logger.Info("card deleted", "token", token, "actor", actor)
		s.hub.BroadcastBalance(token, websocket.BalanceUpdate{Token: token, Deleted: true})
	}
	return nil
}

func auditData(fields map[string]any) string {
	data, _ := json.Marshal(fields)
	return string(data)
}
