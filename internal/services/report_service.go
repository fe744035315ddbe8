package services

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"talent/internal/models"
	"talent/internal/store"
	"talent/internal/talent"

	"github.com/shopspring/decimal"
)

// utf8BOM keeps spreadsheet tools from misreading non-ASCII labels.
const utf8BOM = "\ufeff"

// exportHeader and exportTimeLayout keep the column names and timestamp shape
// that existing transaction spreadsheets were built against.
var exportHeader = []string{"ID", "카드토큰", "라벨", "변동량", "출처", "사유", "부스", "시간"}

const exportTimeLayout = "2006-01-02 15:04:05"

type ReportCardStore interface {
	List(ctx context.Context) ([]models.Card, error)
	LedgerDrift(ctx context.Context) ([]models.LedgerDrift, error)
}

type ReportTransactionStore interface {
	ListByCard(ctx context.Context, token string, limit int) ([]models.Transaction, error)
	ListAll(ctx context.Context) ([]store.ExportRow, error)
}

// ReportService serves read-only projections of cards and the ledger.
type ReportService struct {
	cardStore ReportCardStore
	txStore   ReportTransactionStore
}

func NewReportService(cardStore ReportCardStore, txStore ReportTransactionStore) *ReportService {
	return &ReportService{cardStore: cardStore, txStore: txStore}
}

// History returns the newest transactions for token first. A limit of 0
// returns the full history.
func (s *ReportService) History(ctx context.Context, token string, limit int) ([]models.Transaction, error) {
	token, err := checkToken(token)
	if err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, validationError("limit must not be negative")
	}
	rows, err := s.txStore.ListByCard(ctx, token, limit)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.Transaction{}
	}
	return rows, nil
}

type Summary struct {
	Count   int             `json:"count"`
	Total   int64           `json:"total"`
	Average decimal.Decimal `json:"average"`
}

type CardsReport struct {
	Cards   []models.Card `json:"cards"`
	Summary Summary       `json:"summary"`
}

// Cards lists cards whose token or label contains filter, case-insensitively,
// and summarises exactly that subset.
func (s *ReportService) Cards(ctx context.Context, filter string) (CardsReport, error) {
	cards, err := s.cardStore.List(ctx)
	if err != nil {
		return CardsReport{}, err
	}
	term := strings.ToLower(strings.TrimSpace(filter))
	matched := make([]models.Card, 0, len(cards))
	var total int64
	for _, card := range cards {
		if term != "" &&
			!strings.Contains(strings.ToLower(card.Token), term) &&
			!strings.Contains(strings.ToLower(card.Label), term) {
			continue
		}
		matched = append(matched, card)
		total += card.Balance
	}
	return CardsReport{
		Cards: matched,
		Summary: Summary{
			Count:   len(matched),
			Total:   total,
			Average: talent.Average(total, len(matched)),
		},
	}, nil
}

// ExportCSV writes the whole ledger oldest first, with each card's current
// label joined in.
func (s *ReportService) ExportCSV(ctx context.Context, w io.Writer) error {
	rows, err := s.txStore.ListAll(ctx)
	if err != nil {
		return err
	}
	buf := bufio.NewWriter(w)
	if _, err := buf.WriteString(utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(buf)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			strconv.FormatInt(row.ID, 10),
			row.CardToken,
			row.Label,
			strconv.FormatInt(row.Delta, 10),
			string(row.Source),
			row.Reason,
			row.Booth,
			row.CreatedAt.UTC().Format(exportTimeLayout),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return buf.Flush()
}

func ExportFilename(now time.Time) string {
	return "transactions-" + now.UTC().Format("2006-01-02") + ".csv"
}

// Reconcile lists cards whose cached balance differs from their ledger sum.
// Roster-loaded balances have no ledger rows and show up here.
func (s *ReportService) Reconcile(ctx context.Context) ([]models.LedgerDrift, error) {
	rows, err := s.cardStore.LedgerDrift(ctx)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.LedgerDrift{}
	}
	return rows, nil
}
