package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"talent/internal/models"
)

func TestReportCardsFilterAndSummary(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_ = f.service.UpsertMany(ctx, "admin", []RosterRow{
		{Token: "kim01", Label: "Kim A", Balance: 10},
		{Token: "kim02", Label: "Kim B", Balance: 25},
		{Token: "lee01", Label: "Lee", Balance: 100},
	})
	report, err := f.reports.Cards(ctx, " KIM ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Summary.Count != 2 || report.Summary.Total != 35 || report.Summary.Average.String() != "17.5" {
		t.Fatalf("unexpected summary: %#v", report.Summary)
	}
	all, _ := f.reports.Cards(ctx, "")
	if all.Summary.Count != 3 || all.Summary.Total != 135 {
		t.Fatalf("unexpected summary: %#v", all.Summary)
	}
	none, _ := f.reports.Cards(ctx, "zzz")
	if none.Summary.Count != 0 || !none.Summary.Average.IsZero() || none.Cards == nil {
		t.Fatalf("unexpected empty report: %#v", none)
	}
}

func TestReportHistoryLimit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _ = f.service.ApplyDelta(ctx, Entry{Token: "a", Delta: int64(i + 1), Source: models.SourceAdmin})
	}
	rows, err := f.reports.History(ctx, "a", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 || rows[0].Delta != 5 || rows[1].Delta != 4 {
		t.Fatalf("expected newest first, got %#v", rows)
	}
	if _, err := f.reports.History(ctx, "a", -1); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExportCSV(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, _ = f.service.ApplyDelta(ctx, Entry{Token: "a", Delta: 10, Source: models.SourceAdmin, Reason: `prize, "gold"`})
	_, _ = f.service.ApplyDelta(ctx, Entry{Token: "a", Delta: -3, Source: models.SourceBooth, Booth: "snacks"})
	_ = f.service.SetLabel(ctx, "admin", "a", "홍길동")

	var buf bytes.Buffer
	if err := f.reports.ExportCSV(ctx, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "\ufeff") {
		t.Fatalf("missing byte order mark")
	}
	records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(out, "\ufeff"))).ReadAll()
	if err != nil {
		t.Fatalf("invalid csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("unexpected records: %#v", records)
	}
	wantHeader := []string{"ID", "카드토큰", "라벨", "변동량", "출처", "사유", "부스", "시간"}
	if !reflect.DeepEqual(records[0], wantHeader) {
		t.Fatalf("unexpected header: %#v", records[0])
	}
	if _, err := time.Parse("2006-01-02 15:04:05", records[1][7]); err != nil {
		t.Fatalf("unexpected timestamp %q: %v", records[1][7], err)
	}
	if records[1][2] != "홍길동" || records[1][5] != `prize, "gold"` || records[1][3] != "10" {
		t.Fatalf("unexpected first row: %#v", records[1])
	}
	if records[2][3] != "-3" || records[2][6] != "snacks" || records[2][4] != "booth" {
		t.Fatalf("unexpected second row: %#v", records[2])
	}
}

func TestExportFilename(t *testing.T) {
	got := ExportFilename(time.Date(2026, 10, 19, 23, 0, 0, 0, time.UTC))
	if got != "transactions-2026-10-19.csv" {
		t.Fatalf("unexpected filename %q", got)
	}
}

func TestReconcileReportsRosterDrift(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, _ = f.service.ApplyDelta(ctx, Entry{Token: "ledgered", Delta: 5, Source: models.SourceAdmin})
	_ = f.service.UpsertMany(ctx, "admin", []RosterRow{{Token: "roster", Balance: 40}})
	rows, err := f.reports.Reconcile(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].Token != "roster" || rows[0].Difference != 40 {
		t.Fatalf("unexpected drift: %#v", rows)
	}
}
