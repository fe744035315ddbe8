package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"talent/internal/models"
)

func TestBoothStoreUpdateBlankPasswordKeepsOld(t *testing.T) {
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if strings.Contains(query, "password") {
				t.Fatalf("blank password must not be written: %s", query)
			}
			if !argsEqual(args, "Snacks", "snacks") {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	n, err := NewBoothStore(stubDB{}).Update(context.Background(), execer, "snacks", "", "Snacks")
	if err != nil || n != 1 {
		t.Fatalf("expected 1 row, got %d (%v)", n, err)
	}
}

func TestBoothStoreUpdateWithPassword(t *testing.T) {
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !queryHas(query, "password = $2") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 3 || args[1] != "pw2" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	if _, err := NewBoothStore(stubDB{}).Update(context.Background(), execer, "snacks", "pw2", "Snacks"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBoothStoreListOmitsPassword(t *testing.T) {
	store := NewBoothStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, _ ...any) error {
			if strings.Contains(query, "password") {
				t.Fatalf("listing must not read passwords: %s", query)
			}
			*dest.(*[]models.Booth) = []models.Booth{{Username: "snacks"}}
			return nil
		},
	})
	booths, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(booths) != 1 || booths[0].Password != "" {
		t.Fatalf("unexpected booths: %#v", booths)
	}
}

func TestBoothStoreCreate(t *testing.T) {
	getter := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !queryHas(query, "INSERT INTO booths") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 3 || args[0] != "snacks" {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*int64) = 9
			return nil
		},
	}
	id, err := NewBoothStore(stubDB{}).Create(context.Background(), getter, "snacks", "pw", "Snacks")
	if err != nil || id != 9 {
		t.Fatalf("expected id 9, got %d (%v)", id, err)
	}
}

func TestBoothStoreLockByUsername(t *testing.T) {
	getter := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !queryHas(query, "FROM booths", "WHERE username = $1", "FOR SHARE") {
				t.Fatalf("unexpected query: %s", query)
			}
			if !argsEqual(args, "snacks") {
				t.Fatalf("unexpected args: %#v", args)
			}
			return sql.ErrNoRows
		},
	}
	err := NewBoothStore(stubDB{}).LockByUsername(context.Background(), getter, "snacks")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected no rows, got %v", err)
	}
}
