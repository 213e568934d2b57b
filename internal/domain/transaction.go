// Package domain defines the core business entities for the FinVista
// gateway. These models are independent of external services and represent
// the canonical data structures used throughout the application.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a single bank-statement or ledger line item.
// Transactions are immutable once imported; match status is tracked by the
// reconciliation session, never on the transaction itself.
type Transaction struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Reference   string          `json:"reference,omitempty"`
	Account     string          `json:"account,omitempty"` // recorded side only
}

// Day returns the transaction date truncated to a calendar day in UTC.
func (t Transaction) Day() time.Time {
	return time.Date(t.Date.Year(), t.Date.Month(), t.Date.Day(), 0, 0, 0, 0, time.UTC)
}

// TransactionBatch holds the two collections fetched for one statement
// period, keyed by the same currency and date range.
type TransactionBatch struct {
	ClientID   string        `json:"client_id"`
	Currency   string        `json:"currency"`
	PeriodFrom time.Time     `json:"period_from"`
	PeriodTo   time.Time     `json:"period_to"`
	Bank       []Transaction `json:"bank"`
	Recorded   []Transaction `json:"recorded"`
}
