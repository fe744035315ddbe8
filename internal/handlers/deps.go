package handlers

import (
	"context"
	"io"
	"time"

	"talent/internal/auth"
	"talent/internal/models"
	"talent/internal/services"
	"talent/internal/store"
)

type Policy interface {
	LookupCard(ctx context.Context, token string) (models.Card, error)
	BoothDeduct(ctx context.Context, id auth.Identity, token string, delta int64, reason string) (services.Result, error)
	AdminAdjust(ctx context.Context, id auth.Identity, token string, delta int64, reason string) (services.Result, error)
	AdminSetBalance(ctx context.Context, id auth.Identity, token string, value int64, reason string) (services.Result, error)
	AdminSetLabel(ctx context.Context, id auth.Identity, token, label string) error
	AdminDeleteCard(ctx context.Context, id auth.Identity, token string) error
	AdminUpsertCard(ctx context.Context, id auth.Identity, row services.RosterRow) error
	AdminImport(ctx context.Context, id auth.Identity, text string) (services.ImportResult, error)
	CreateBooth(ctx context.Context, id auth.Identity, username, password, label string) (models.Booth, error)
	UpdateBooth(ctx context.Context, id auth.Identity, username, password, label string) error
	DeleteBooth(ctx context.Context, id auth.Identity, username string) error
	ListBooths(ctx context.Context, id auth.Identity) ([]models.Booth, error)
	SetBoothsInfo(ctx context.Context, id auth.Identity, text string) error
	AuditLog(ctx context.Context, id auth.Identity, limit, offset int) ([]store.AuditEntry, error)
	LoginAdmin(password string) (auth.Identity, error)
	LoginBooth(ctx context.Context, username, password string) (auth.Identity, error)
}

type Reports interface {
	History(ctx context.Context, token string, limit int) ([]models.Transaction, error)
	Cards(ctx context.Context, filter string) (services.CardsReport, error)
	ExportCSV(ctx context.Context, w io.Writer) error
	Reconcile(ctx context.Context) ([]models.LedgerDrift, error)
}

type Content interface {
	BoothsInfo(ctx context.Context) (services.BoothsInfo, error)
}

type Sessions interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
