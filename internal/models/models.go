package models

import "time"

// Source tags which role produced a ledger row.
type Source string

const (
	SourceBooth Source = "booth"
	SourceAdmin Source = "admin"
)

func (s Source) Valid() bool {
	return s == SourceBooth || s == SourceAdmin
}

// Card is a participant account. Balance is a cache of the ledger sum.
type Card struct {
	Token     string    `db:"token" json:"token"`
	Label     string    `db:"label" json:"label"`
	Balance   int64     `db:"balance" json:"balance"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction is one append-only ledger row.
type Transaction struct {
	ID        int64     `db:"id" json:"id"`
	CardToken string    `db:"card_token" json:"card_token"`
	Delta     int64     `db:"delta" json:"delta"`
	Source    Source    `db:"source" json:"source"`
	Reason    string    `db:"reason" json:"reason"`
	Booth     string    `db:"booth" json:"booth"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Booth struct {
	ID        int64     `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Password  string    `db:"password" json:"-"`
	Label     string    `db:"label" json:"label"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type SiteContent struct {
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// LedgerDrift is a card whose cached balance differs from its ledger sum.
type LedgerDrift struct {
	Token      string `db:"token" json:"token"`
	Balance    int64  `db:"balance" json:"balance"`
	LedgerSum  int64  `db:"ledger_sum" json:"ledger_sum"`
	Difference int64  `db:"difference" json:"difference"`
}
