package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"talent/internal/auth"
	"talent/internal/config"
	"talent/internal/models"
	"talent/internal/services"
	"talent/internal/store"
	"talent/internal/websocket"
)

const testSecret = "test-secret"

type stubPolicy struct {
	lookupCardFn      func(ctx context.Context, token string) (models.Card, error)
	boothDeductFn     func(ctx context.Context, id auth.Identity, token string, delta int64, reason string) (services.Result, error)
	adminAdjustFn     func(ctx context.Context, id auth.Identity, token string, delta int64, reason string) (services.Result, error)
	adminSetBalanceFn func(ctx context.Context, id auth.Identity, token string, value int64, reason string) (services.Result, error)
	adminSetLabelFn   func(ctx context.Context, id auth.Identity, token, label string) error
	adminDeleteCardFn func(ctx context.Context, id auth.Identity, token string) error
	adminUpsertCardFn func(ctx context.Context, id auth.Identity, row services.RosterRow) error
	adminImportFn     func(ctx context.Context, id auth.Identity, text string) (services.ImportResult, error)
	createBoothFn     func(ctx context.Context, id auth.Identity, username, password, label string) (models.Booth, error)
	updateBoothFn     func(ctx context.Context, id auth.Identity, username, password, label string) error
	deleteBoothFn     func(ctx context.Context, id auth.Identity, username string) error
	listBoothsFn      func(ctx context.Context, id auth.Identity) ([]models.Booth, error)
	setBoothsInfoFn   func(ctx context.Context, id auth.Identity, text string) error
	auditLogFn        func(ctx context.Context, id auth.Identity, limit, offset int) ([]store.AuditEntry, error)
	loginAdminFn      func(password string) (auth.Identity, error)
	loginBoothFn      func(ctx context.Context, username, password string) (auth.Identity, error)
}

func (s stubPolicy) LookupCard(ctx context.Context, token string) (models.Card, error) {
	if s.lookupCardFn == nil {
		return models.Card{Token: token}, nil
	}
	return s.lookupCardFn(ctx, token)
}

func (s stubPolicy) BoothDeduct(ctx context.Context, id auth.Identity, token string, delta int64, reason string) (services.Result, error) {
	if s.boothDeductFn == nil {
		return services.Result{Token: token, Delta: delta}, nil
	}
	return s.boothDeductFn(ctx, id, token, delta, reason)
}

func (s stubPolicy) AdminAdjust(ctx context.Context, id auth.Identity, token string, delta int64, reason string) (services.Result, error) {
	if s.adminAdjustFn == nil {
		return services.Result{Token: token, Delta: delta}, nil
	}
	return s.adminAdjustFn(ctx, id, token, delta, reason)
}

func (s stubPolicy) AdminSetBalance(ctx context.Context, id auth.Identity, token string, value int64, reason string) (services.Result, error) {
	if s.adminSetBalanceFn == nil {
		return services.Result{Token: token, Balance: value}, nil
	}
	return s.adminSetBalanceFn(ctx, id, token, value, reason)
}

func (s stubPolicy) AdminSetLabel(ctx context.Context, id auth.Identity, token, label string) error {
	if s.adminSetLabelFn == nil {
		return nil
	}
	return s.adminSetLabelFn(ctx, id, token, label)
}

func (s stubPolicy) AdminDeleteCard(ctx context.Context, id auth.Identity, token string) error {
	if s.adminDeleteCardFn == nil {
		return nil
	}
	return s.adminDeleteCardFn(ctx, id, token)
}

func (s stubPolicy) AdminUpsertCard(ctx context.Context, id auth.Identity, row services.RosterRow) error {
	if s.adminUpsertCardFn == nil {
		return nil
	}
	return s.adminUpsertCardFn(ctx, id, row)
}

func (s stubPolicy) AdminImport(ctx context.Context, id auth.Identity, text string) (services.ImportResult, error) {
	if s.adminImportFn == nil {
		return services.ImportResult{}, nil
	}
	return s.adminImportFn(ctx, id, text)
}

func (s stubPolicy) CreateBooth(ctx context.Context, id auth.Identity, username, password, label string) (models.Booth, error) {
	if s.createBoothFn == nil {
		return models.Booth{Username: username, Password: password, Label: label}, nil
	}
	return s.createBoothFn(ctx, id, username, password, label)
}

func (s stubPolicy) UpdateBooth(ctx context.Context, id auth.Identity, username, password, label string) error {
	if s.updateBoothFn == nil {
		return nil
	}
	return s.updateBoothFn(ctx, id, username, password, label)
}

func (s stubPolicy) DeleteBooth(ctx context.Context, id auth.Identity, username string) error {
	if s.deleteBoothFn == nil {
		return nil
	}
	return s.deleteBoothFn(ctx, id, username)
}

func (s stubPolicy) ListBooths(ctx context.Context, id auth.Identity) ([]models.Booth, error) {
	if s.listBoothsFn == nil {
		return []models.Booth{}, nil
	}
	return s.listBoothsFn(ctx, id)
}

func (s stubPolicy) SetBoothsInfo(ctx context.Context, id auth.Identity, text string) error {
	if s.setBoothsInfoFn == nil {
		return nil
	}
	return s.setBoothsInfoFn(ctx, id, text)
}

func (s stubPolicy) AuditLog(ctx context.Context, id auth.Identity, limit, offset int) ([]store.AuditEntry, error) {
	if s.auditLogFn == nil {
		return []store.AuditEntry{}, nil
	}
	return s.auditLogFn(ctx, id, limit, offset)
}

func (s stubPolicy) LoginAdmin(password string) (auth.Identity, error) {
	if s.loginAdminFn == nil {
		return auth.Anonymous(), services.ErrUnauthorized
	}
	return s.loginAdminFn(password)
}

func (s stubPolicy) LoginBooth(ctx context.Context, username, password string) (auth.Identity, error) {
	if s.loginBoothFn == nil {
		return auth.Anonymous(), services.ErrUnauthorized
	}
	return s.loginBoothFn(ctx, username, password)
}

type stubReports struct {
	historyFn   func(ctx context.Context, token string, limit int) ([]models.Transaction, error)
	cardsFn     func(ctx context.Context, filter string) (services.CardsReport, error)
	exportFn    func(ctx context.Context, w io.Writer) error
	reconcileFn func(ctx context.Context) ([]models.LedgerDrift, error)
}

func (s stubReports) History(ctx context.Context, token string, limit int) ([]models.Transaction, error) {
	if s.historyFn == nil {
		return []models.Transaction{}, nil
	}
	return s.historyFn(ctx, token, limit)
}

func (s stubReports) Cards(ctx context.Context, filter string) (services.CardsReport, error) {
	if s.cardsFn == nil {
		return services.CardsReport{}, nil
	}
	return s.cardsFn(ctx, filter)
}

func (s stubReports) ExportCSV(ctx context.Context, w io.Writer) error {
	if s.exportFn == nil {
		return nil
	}
	return s.exportFn(ctx, w)
}

func (s stubReports) Reconcile(ctx context.Context) ([]models.LedgerDrift, error) {
	if s.reconcileFn == nil {
		return []models.LedgerDrift{}, nil
	}
	return s.reconcileFn(ctx)
}

type stubContent struct {
	info services.BoothsInfo
	err  error
}

func (s stubContent) BoothsInfo(context.Context) (services.BoothsInfo, error) {
	return s.info, s.err
}

type stubSessions struct {
	revoked   map[string]time.Time
	revokeErr error
}

func newStubSessions() *stubSessions {
	return &stubSessions{revoked: make(map[string]time.Time)}
}

func (s *stubSessions) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	if s.revokeErr != nil {
		return s.revokeErr
	}
	s.revoked[jti] = expiresAt
	return nil
}

func (s *stubSessions) IsRevoked(_ context.Context, jti string) (bool, error) {
	_, ok := s.revoked[jti]
	return ok, nil
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:      testSecret,
		TokenTTL:       time.Hour,
		AllowedOrigins: "*",
		HistoryLimit:   50,
		PublicBaseURL:  "http://talent.test/",
	}
}

func newTestHandler(policy Policy, reports Reports, content Content, sessions Sessions) http.Handler {
	return New(testConfig(), policy, reports, content, sessions, websocket.NewHub(), nil).Routes()
}

func sessionToken(t *testing.T, identity auth.Identity) string {
	t.Helper()
	token, _, err := auth.GenerateToken(testSecret, identity, time.Hour)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func newRequest(t *testing.T, method, path, body string, identity *auth.Identity) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if identity != nil {
		req.Header.Set("Authorization", "Bearer "+sessionToken(t, *identity))
	}
	return req
}

func serve(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func adminIdentity() *auth.Identity {
	return &auth.Identity{Role: auth.RoleAdmin}
}

func boothIdentity(name string) *auth.Identity {
	return &auth.Identity{Role: auth.RoleBooth, Booth: name}
}
