package store

import (
	"context"
	"database/sql"
)

// Store methods that must join the caller's transaction take one of these
// narrow interfaces; *sqlx.Tx and *sqlx.DB both satisfy them. Reads that never
// run inside a unit of work go through the DB handed to the constructor.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Getter interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

type Selecter interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// DB is the pool-level handle every store is built from.
type DB interface {
	Execer
	Getter
	Selecter
}
