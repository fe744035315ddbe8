package services

import (
	"context"
	"database/sql"
	"math"
	"sort"
	"strings"
	"sync"

	"talent/internal/models"
	"talent/internal/store"
	"talent/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

// memoryLedger backs CardStore, TransactionStore and the report stores with
// maps. txRunner snapshots state so a failing unit of work rolls back.
type memoryLedger struct {
	mu     sync.Mutex
	cards  map[string]models.Card
	txs    []models.Transaction
	nextID int64
	failOn string
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{cards: map[string]models.Card{}}
}

type memoryTxRunner struct {
	ledger *memoryLedger
}

func (r memoryTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	m := r.ledger
	m.mu.Lock()
	cards := make(map[string]models.Card, len(m.cards))
	for k, v := range m.cards {
		cards[k] = v
	}
	txs := append([]models.Transaction(nil), m.txs...)
	nextID := m.nextID
	m.mu.Unlock()
	if err := fn(nil); err != nil {
		m.mu.Lock()
		m.cards, m.txs, m.nextID = cards, txs, nextID
		m.mu.Unlock()
		return err
	}
	return nil
}

var errInjected = sql.ErrConnDone

func (m *memoryLedger) fail(op string) error {
	if m.failOn == op {
		return errInjected
	}
	return nil
}

func (m *memoryLedger) Ensure(_ context.Context, _ store.Execer, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cards[token]; !ok {
		m.cards[token] = models.Card{Token: token}
	}
	return nil
}

func (m *memoryLedger) Get(_ context.Context, token string) (models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	card, ok := m.cards[token]
	if !ok {
		return models.Card{}, sql.ErrNoRows
	}
	return card, nil
}

func (m *memoryLedger) GetForUpdate(ctx context.Context, _ store.Getter, token string) (models.Card, error) {
	return m.Get(ctx, token)
}

func (m *memoryLedger) AdjustBalance(_ context.Context, _ store.Getter, token string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("adjust"); err != nil {
		return 0, err
	}
	card, ok := m.cards[token]
	if !ok {
		return 0, sql.ErrNoRows
	}
	if (delta > 0 && card.Balance > math.MaxInt64-delta) || (delta < 0 && card.Balance < math.MinInt64-delta) {
		return 0, &pq.Error{Code: "22003"}
	}
	card.Balance += delta
	m.cards[token] = card
	return card.Balance, nil
}

func (m *memoryLedger) SetLabel(_ context.Context, _ store.Execer, token, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	card := m.cards[token]
	card.Label = label
	m.cards[token] = card
	return nil
}

func (m *memoryLedger) Upsert(_ context.Context, _ store.Execer, token, label string, balance int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("upsert:" + token); err != nil {
		return err
	}
	m.cards[token] = models.Card{Token: token, Label: label, Balance: balance}
	return nil
}

func (m *memoryLedger) Delete(_ context.Context, _ store.Execer, token string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cards[token]; !ok {
		return 0, nil
	}
	delete(m.cards, token)
	return 1, nil
}

func (m *memoryLedger) Insert(_ context.Context, _ store.Getter, input store.TransactionInput) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("insert"); err != nil {
		return 0, err
	}
	m.nextID++
	m.txs = append(m.txs, models.Transaction{
		ID:        m.nextID,
		CardToken: input.CardToken,
		Delta:     input.Delta,
		Source:    input.Source,
		Reason:    input.Reason,
		Booth:     input.Booth,
	})
	return m.nextID, nil
}

func (m *memoryLedger) DeleteByCard(_ context.Context, _ store.Execer, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.txs[:0]
	for _, tx := range m.txs {
		if tx.CardToken != token {
			kept = append(kept, tx)
		}
	}
	m.txs = kept
	return nil
}

func (m *memoryLedger) ListByCard(_ context.Context, token string, limit int) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []models.Transaction
	for i := len(m.txs) - 1; i >= 0; i-- {
		if m.txs[i].CardToken == token {
			rows = append(rows, m.txs[i])
			if limit > 0 && len(rows) == limit {
				break
			}
		}
	}
	return rows, nil
}

func (m *memoryLedger) ListAll(_ context.Context) ([]store.ExportRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := make([]store.ExportRow, 0, len(m.txs))
	for _, tx := range m.txs {
		rows = append(rows, store.ExportRow{Transaction: tx, Label: m.cards[tx.CardToken].Label})
	}
	return rows, nil
}

func (m *memoryLedger) List(_ context.Context) ([]models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cards := make([]models.Card, 0, len(m.cards))
	for _, card := range m.cards {
		cards = append(cards, card)
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].Token < cards[j].Token })
	return cards, nil
}

func (m *memoryLedger) LedgerDrift(_ context.Context) ([]models.LedgerDrift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sums := map[string]int64{}
	for _, tx := range m.txs {
		sums[tx.CardToken] += tx.Delta
	}
	var rows []models.LedgerDrift
	for token, card := range m.cards {
		if card.Balance != sums[token] {
			rows = append(rows, models.LedgerDrift{Token: token, Balance: card.Balance, LedgerSum: sums[token], Difference: card.Balance - sums[token]})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Token < rows[j].Token })
	return rows, nil
}

func (m *memoryLedger) ledgerSum(token string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, tx := range m.txs {
		if tx.CardToken == token {
			sum += tx.Delta
		}
	}
	return sum
}

func (m *memoryLedger) txCount(token string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, tx := range m.txs {
		if tx.CardToken == token {
			n++
		}
	}
	return n
}

type stubAuditStore struct {
	mu      sync.Mutex
	actions []string
	logFn   func(ctx context.Context, tx store.Execer, actor, action, entityType, entityID, data string) error
	listFn  func(ctx context.Context, limit, offset int) ([]store.AuditEntry, error)
}

func (s *stubAuditStore) Log(ctx context.Context, tx store.Execer, actor, action, entityType, entityID, data string) error {
	s.mu.Lock()
	s.actions = append(s.actions, action)
	s.mu.Unlock()
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actor, action, entityType, entityID, data)
}

func (s *stubAuditStore) List(ctx context.Context, limit, offset int) ([]store.AuditEntry, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, limit, offset)
}

type stubHub struct {
	mu    sync.Mutex
	calls []websocket.BalanceUpdate
}

func (s *stubHub) BroadcastBalance(_ string, update websocket.BalanceUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, update)
}

type stubBoothStore struct {
	booths   map[string]models.Booth
	createFn func(ctx context.Context, tx store.Getter, username, password, label string) (int64, error)
	updateFn func(ctx context.Context, tx store.Execer, username, password, label string) (int64, error)
	deleteFn func(ctx context.Context, tx store.Execer, username string) (int64, error)
	lockFn   func(ctx context.Context, username string) error
}

func (s stubBoothStore) Create(ctx context.Context, tx store.Getter, username, password, label string) (int64, error) {
	if s.createFn == nil {
		return 1, nil
	}
	return s.createFn(ctx, tx, username, password, label)
}

func (s stubBoothStore) Update(ctx context.Context, tx store.Execer, username, password, label string) (int64, error) {
	if s.updateFn == nil {
		return 1, nil
	}
	return s.updateFn(ctx, tx, username, password, label)
}

func (s stubBoothStore) Delete(ctx context.Context, tx store.Execer, username string) (int64, error) {
	if s.deleteFn == nil {
		return 1, nil
	}
	return s.deleteFn(ctx, tx, username)
}

func (s stubBoothStore) GetByUsername(_ context.Context, username string) (models.Booth, error) {
	booth, ok := s.booths[username]
	if !ok {
		return models.Booth{}, sql.ErrNoRows
	}
	return booth, nil
}

func (s stubBoothStore) LockByUsername(ctx context.Context, _ store.Getter, username string) error {
	if s.lockFn != nil {
		return s.lockFn(ctx, username)
	}
	_, err := s.GetByUsername(ctx, username)
	return err
}

func (s stubBoothStore) List(context.Context) ([]models.Booth, error) {
	booths := make([]models.Booth, 0, len(s.booths))
	for _, booth := range s.booths {
		booths = append(booths, booth)
	}
	sort.Slice(booths, func(i, j int) bool { return booths[i].Username < booths[j].Username })
	return booths, nil
}

type stubContentStore struct {
	values map[string]string
	err    error
}

func (s *stubContentStore) Get(_ context.Context, key string) (string, bool, error) {
	if s.err != nil {
		return "", false, s.err
	}
	value, ok := s.values[key]
	return value, ok, nil
}

func (s *stubContentStore) Set(_ context.Context, _ store.Execer, key, value string) error {
	if s.values == nil {
		s.values = map[string]string{}
	}
	s.values[key] = value
	return nil
}

type fixture struct {
	ledger  *memoryLedger
	audit   *stubAuditStore
	hub     *stubHub
	service *LedgerService
	policy  *Policy
	reports *ReportService
}

func init() {
	bcryptCost = bcrypt.MinCost
}

func newFixture(booths ...string) *fixture {
	mem := newMemoryLedger()
	audit := &stubAuditStore{}
	hub := &stubHub{}
	runner := memoryTxRunner{ledger: mem}
	service := NewLedgerService(runner, mem, mem, audit, hub, nil)
	boothStore := stubBoothStore{booths: map[string]models.Booth{}}
	for _, name := range booths {
		hash, err := bcrypt.GenerateFromPassword([]byte("pw-"+name), bcrypt.MinCost)
		if err != nil {
			panic(err)
		}
		boothStore.booths[name] = models.Booth{Username: name, Password: string(hash), Label: strings.ToUpper(name)}
	}
	return &fixture{
		ledger:  mem,
		audit:   audit,
		hub:     hub,
		service: service,
		policy:  NewPolicy(runner, service, boothStore, &stubContentStore{}, audit, "admin-secret"),
		reports: NewReportService(mem, mem),
	}
}
