package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"strings"

	"talent/internal/auth"
	"talent/internal/db"
	"talent/internal/models"
	"talent/internal/store"
	"talent/internal/validator"

	"github.com/jmoiron/sqlx"
)

// Ledger is the mutation surface Policy gates.
type Ledger interface {
	Card(ctx context.Context, token string) (models.Card, error)
	ApplyDelta(ctx context.Context, entry Entry) (Result, error)
	SetBalance(ctx context.Context, token string, value int64, source models.Source, reason string) (Result, error)
	SetLabel(ctx context.Context, actor, token, label string) error
	UpsertMany(ctx context.Context, actor string, rows []RosterRow) error
	DeleteCard(ctx context.Context, actor, token string) error
}

type BoothStore interface {
	Create(ctx context.Context, tx store.Getter, username, password, label string) (int64, error)
	Update(ctx context.Context, tx store.Execer, username, password, label string) (int64, error)
	Delete(ctx context.Context, tx store.Execer, username string) (int64, error)
	GetByUsername(ctx context.Context, username string) (models.Booth, error)
	LockByUsername(ctx context.Context, tx store.Getter, username string) error
	List(ctx context.Context) ([]models.Booth, error)
}

type ContentWriter interface {
	Set(ctx context.Context, tx store.Execer, key, value string) error
}

type AuditReader interface {
	List(ctx context.Context, limit, offset int) ([]store.AuditEntry, error)
}

// Policy decides which identity may call which ledger operation. Handlers
// never reach the ledger directly.
type Policy struct {
	txRunner      db.TxRunner
	ledger        Ledger
	boothStore    BoothStore
	contentStore  ContentWriter
	auditStore    AuditStore
	auditReader   AuditReader
	adminPassword string
}

type AuditLogStore interface {
	AuditStore
	AuditReader
}

func NewPolicy(txRunner db.TxRunner, ledger Ledger, boothStore BoothStore, contentStore ContentWriter, auditStore AuditLogStore, adminPassword string) *Policy {
	return &Policy{
		txRunner:      txRunner,
		ledger:        ledger,
		boothStore:    boothStore,
		contentStore:  contentStore,
		auditStore:    auditStore,
		auditReader:   auditStore,
		adminPassword: adminPassword,
	}
}

func checkToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", validationError("token is required")
	}
	if err := validator.ValidateToken(token); err != nil {
		return "", validationError("token is malformed")
	}
	return token, nil
}

func requireAdmin(id auth.Identity) error {
	if !id.IsAdmin() {
		return ErrUnauthorized
	}
	return nil
}

// LookupCard is open to anyone and provisions unseen tokens.
func (p *Policy) LookupCard(ctx context.Context, token string) (models.Card, error) {
	token, err := checkToken(token)
	if err != nil {
		return models.Card{}, err
	}
	return p.ledger.Card(ctx, token)
}

// BoothDeduct applies a strictly negative delta tagged with the session's
// booth name. The booth account must still exist when the deduction commits.
func (p *Policy) BoothDeduct(ctx context.Context, id auth.Identity, token string, delta int64, reason string) (Result, error) {
	token, err := checkToken(token)
	if err != nil {
		return Result{}, err
	}
	if delta >= 0 {
		return Result{}, validationError("booths can only deduct")
	}
	if !id.IsBooth() {
		return Result{}, ErrUnauthorized
	}
	return p.ledger.ApplyDelta(ctx, Entry{
		Token:  token,
		Delta:  delta,
		Source: models.SourceBooth,
		Reason: strings.TrimSpace(reason),
		Booth:  id.Booth,
		Guard: func(ctx context.Context, tx *sqlx.Tx) error {
			if err := p.boothStore.LockByUsername(ctx, tx, id.Booth); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return ErrUnauthorized
				}
				return err
			}
			return nil
		},
	})
}

func (p *Policy) AdminAdjust(ctx context.Context, id auth.Identity, token string, delta int64, reason string) (Result, error) {
	if err := requireAdmin(id); err != nil {
		return Result{}, err
	}
	token, err := checkToken(token)
	if err != nil {
		return Result{}, err
	}
	if delta == 0 {
		return Result{}, validationError("delta must not be zero")
	}
	return p.ledger.ApplyDelta(ctx, Entry{
		Token:  token,
		Delta:  delta,
		Source: models.SourceAdmin,
		Reason: strings.TrimSpace(reason),
	})
}

func (p *Policy) AdminSetBalance(ctx context.Context, id auth.Identity, token string, value int64, reason string) (Result, error) {
	if err := requireAdmin(id); err != nil {
		return Result{}, err
	}
	token, err := checkToken(token)
	if err != nil {
		return Result{}, err
	}
	return p.ledger.SetBalance(ctx, token, value, models.SourceAdmin, reason)
}

func (p *Policy) AdminSetLabel(ctx context.Context, id auth.Identity, token, label string) error {
	if err := requireAdmin(id); err != nil {
		return err
	}
	token, err := checkToken(token)
	if err != nil {
		return err
	}
	return p.ledger.SetLabel(ctx, id.Actor(), token, label)
}

func (p *Policy) AdminDeleteCard(ctx context.Context, id auth.Identity, token string) error {
	if err := requireAdmin(id); err != nil {
		return err
	}
	token, err := checkToken(token)
	if err != nil {
		return err
	}
	return p.ledger.DeleteCard(ctx, id.Actor(), token)
}

// AdminUpsertCard writes one roster row directly, bypassing the ledger.
func (p *Policy) AdminUpsertCard(ctx context.Context, id auth.Identity, row RosterRow) error {
	if err := requireAdmin(id); err != nil {
		return err
	}
	token, err := checkToken(row.Token)
	if err != nil {
		return err
	}
	row.Token = token
	row.Label = strings.TrimSpace(row.Label)
	return p.ledger.UpsertMany(ctx, id.Actor(), []RosterRow{row})
}

type ImportResult struct {
	Applied int           `json:"applied"`
	Skipped []SkippedLine `json:"skipped"`
}

// AdminImport parses a roster and applies every valid row in one batch.
// Malformed lines are skipped and reported, never partially applied.
func (p *Policy) AdminImport(ctx context.Context, id auth.Identity, text string) (ImportResult, error) {
	if err := requireAdmin(id); err != nil {
		return ImportResult{}, err
	}
	rows, skipped := ParseRoster(text)
	if skipped == nil {
		skipped = []SkippedLine{}
	}
	if err := p.ledger.UpsertMany(ctx, id.Actor(), rows); err != nil {
		return ImportResult{}, err
	}
	return ImportResult{Applied: len(rows), Skipped: skipped}, nil
}

func (p *Policy) CreateBooth(ctx context.Context, id auth.Identity, username, password, label string) (models.Booth, error) {
	if err := requireAdmin(id); err != nil {
		return models.Booth{}, err
	}
	username = strings.TrimSpace(username)
	label = strings.TrimSpace(label)
	if err := validator.ValidateUsername(username); err != nil {
		return models.Booth{}, validationError("username is malformed")
	}
	if password == "" || label == "" {
		return models.Booth{}, validationError("username, password and label are required")
	}
	hash, err := hashPassword(password)
	if err != nil {
		return models.Booth{}, err
	}
	var boothID int64
	err = p.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		boothID, err = p.boothStore.Create(ctx, tx, username, hash, label)
		if err != nil {
			return err
		}
		return p.auditStore.Log(ctx, tx, id.Actor(), "booth.create", "booth", username, auditData(map[string]any{"label": label}))
	})
	if err != nil {
		return models.Booth{}, translateErr(err)
	}
	return models.Booth{ID: boothID, Username: username, Label: label}, nil
}

// UpdateBooth changes the label and, when password is non-empty, the stored
// password hash.
func (p *Policy) UpdateBooth(ctx context.Context, id auth.Identity, username, password, label string) error {
	if err := requireAdmin(id); err != nil {
		return err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return validationError("username is required")
	}
	label = strings.TrimSpace(label)
	password = strings.TrimSpace(password)
	hash := ""
	if password != "" {
		var err error
		if hash, err = hashPassword(password); err != nil {
			return err
		}
	}
	return translateErr(p.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		n, err := p.boothStore.Update(ctx, tx, username, hash, label)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return p.auditStore.Log(ctx, tx, id.Actor(), "booth.update", "booth", username, auditData(map[string]any{
			"label":            label,
			"password_changed": password != "",
		}))
	}))
}

// DeleteBooth removes the account. Ledger rows keep the booth's name.
func (p *Policy) DeleteBooth(ctx context.Context, id auth.Identity, username string) error {
	if err := requireAdmin(id); err != nil {
		return err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return validationError("username is required")
	}
	return translateErr(p.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		n, err := p.boothStore.Delete(ctx, tx, username)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return p.auditStore.Log(ctx, tx, id.Actor(), "booth.delete", "booth", username, "")
	}))
}

func (p *Policy) ListBooths(ctx context.Context, id auth.Identity) ([]models.Booth, error) {
	if err := requireAdmin(id); err != nil {
		return nil, err
	}
	booths, err := p.boothStore.List(ctx)
	if err != nil {
		return nil, translateErr(err)
	}
	return booths, nil
}

func (p *Policy) SetBoothsInfo(ctx context.Context, id auth.Identity, text string) error {
	if err := requireAdmin(id); err != nil {
		return err
	}
	return translateErr(p.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := p.contentStore.Set(ctx, tx, BoothsInfoKey, text); err != nil {
			return err
		}
		return p.auditStore.Log(ctx, tx, id.Actor(), "content.update", "content", BoothsInfoKey, "")
	}))
}

func (p *Policy) AuditLog(ctx context.Context, id auth.Identity, limit, offset int) ([]store.AuditEntry, error) {
	if err := requireAdmin(id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	entries, err := p.auditReader.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// LoginAdmin checks the configured admin secret. An empty secret disables
// admin login.
func (p *Policy) LoginAdmin(password string) (auth.Identity, error) {
	if p.adminPassword == "" || !secretsEqual(password, p.adminPassword) {
		return auth.Anonymous(), ErrUnauthorized
	}
	return auth.Identity{Role: auth.RoleAdmin}, nil
}

func (p *Policy) LoginBooth(ctx context.Context, username, password string) (auth.Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return auth.Anonymous(), ErrUnauthorized
	}
	booth, err := p.boothStore.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.Anonymous(), ErrUnauthorized
		}
		return auth.Anonymous(), err
	}
	if !passwordMatches(booth.Password, password) {
		return auth.Anonymous(), ErrUnauthorized
	}
	return auth.Identity{Role: auth.RoleBooth, Booth: booth.Username}, nil
}

func secretsEqual(given, stored string) bool {
	return subtle.ConstantTimeCompare([]byte(given), []byte(stored)) == 1
}
