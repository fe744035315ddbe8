package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// fakeDriver counts commits and rollbacks and can fail the first N commits
// with a Postgres error code.
type fakeDriver struct {
	state *fakeState
}

type fakeState struct {
	commits     int64
	rollbacks   int64
	failCommits int64
	failCode    string
}

func (d *fakeDriver) Open(string) (driver.Conn, error) {
	return &fakeConn{state: d.state}, nil
}

type fakeConn struct {
	state *fakeState
}

func (c *fakeConn) Prepare(string) (driver.Stmt, error) { return fakeStmt{}, nil }
func (c *fakeConn) Close() error                        { return nil }
func (c *fakeConn) Begin() (driver.Tx, error)           { return &fakeTx{state: c.state}, nil }

func (c *fakeConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	return &fakeTx{state: c.state}, nil
}

type fakeTx struct {
	state *fakeState
}

func (t *fakeTx) Commit() error {
	call := atomic.AddInt64(&t.state.commits, 1)
	if call <= t.state.failCommits {
		return &pq.Error{Code: pq.ErrorCode(t.state.failCode)}
	}
	return nil
}

func (t *fakeTx) Rollback() error {
	atomic.AddInt64(&t.state.rollbacks, 1)
	return nil
}

type fakeStmt struct{}

func (fakeStmt) Close() error                               { return nil }
func (fakeStmt) NumInput() int                              { return -1 }
func (fakeStmt) Exec([]driver.Value) (driver.Result, error) { return driver.RowsAffected(0), nil }
func (fakeStmt) Query([]driver.Value) (driver.Rows, error)  { return nil, errors.New("not supported") }

var driverSeq uint64

func openFake(t *testing.T, state *fakeState) *sqlx.DB {
	t.Helper()
	name := fmt.Sprintf("talent-fake-%d", atomic.AddUint64(&driverSeq, 1))
	sql.Register(name, &fakeDriver{state: state})
	sqlDB, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlx.NewDb(sqlDB, name)
}

func TestWithTxCommits(t *testing.T) {
	state := &fakeState{}
	xdb := openFake(t, state)
	if err := WithTx(context.Background(), xdb, func(*sqlx.Tx) error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.commits != 1 || state.rollbacks != 0 {
		t.Fatalf("expected commit=1 rollback=0, got %d/%d", state.commits, state.rollbacks)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	state := &fakeState{}
	xdb := openFake(t, state)
	boom := errors.New("boom")
	err := WithTx(context.Background(), xdb, func(*sqlx.Tx) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if state.rollbacks != 1 || state.commits != 0 {
		t.Fatalf("expected rollback=1 commit=0, got %d/%d", state.rollbacks, state.commits)
	}
}

func TestWithTxRetriesSerializationFailureOnCommit(t *testing.T) {
	state := &fakeState{failCommits: 1, failCode: "40001"}
	xdb := openFake(t, state)
	if err := WithTx(context.Background(), xdb, func(*sqlx.Tx) error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.commits != 2 {
		t.Fatalf("expected 2 commits, got %d", state.commits)
	}
}

func TestWithTxRetriesRetryableErrorFromFn(t *testing.T) {
	state := &fakeState{}
	xdb := openFake(t, state)
	calls := 0
	err := WithTx(context.Background(), xdb, func(*sqlx.Tx) error {
		calls++
		if calls == 1 {
			return &pq.Error{Code: "40P01"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected fn to run twice, got %d", calls)
	}
}

func TestWithTxRetryLimit(t *testing.T) {
	state := &fakeState{failCommits: 10, failCode: "40P01"}
	xdb := openFake(t, state)
	err := WithTx(context.Background(), xdb, func(*sqlx.Tx) error { return nil })
	if !errors.Is(err, ErrRetryLimit) {
		t.Fatalf("expected retry limit error, got %v", err)
	}
	if state.commits != maxAttempts {
		t.Fatalf("expected %d commits, got %d", maxAttempts, state.commits)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !IsUniqueViolation(fmt.Errorf("insert booth: %w", &pq.Error{Code: "23505"})) {
		t.Fatalf("expected wrapped 23505 to be a unique violation")
	}
	if IsUniqueViolation(&pq.Error{Code: "40001"}) {
		t.Fatalf("serialization failure is not a unique violation")
	}
	if IsUniqueViolation(errors.New("plain")) {
		t.Fatalf("plain errors are not unique violations")
	}
}

func TestIsOutOfRange(t *testing.T) {
	if !IsOutOfRange(fmt.Errorf("adjust balance: %w", &pq.Error{Code: "22003"})) {
		t.Fatalf("expected wrapped 22003 to be out of range")
	}
	if IsOutOfRange(&pq.Error{Code: "23505"}) || IsOutOfRange(errors.New("plain")) {
		t.Fatalf("unexpected out-of-range match")
	}
}
