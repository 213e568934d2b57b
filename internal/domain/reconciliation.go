package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Match candidates
// ============================================================

// MatchReason classifies why a candidate pair was suggested.
type MatchReason string

const (
	ReasonExactAmountDate          MatchReason = "exact-amount-date"
	ReasonAmountMatchFuzzyDesc     MatchReason = "amount-match-fuzzy-description"
	ReasonDescriptionMatchFuzzyAmt MatchReason = "description-match-fuzzy-amount"
)

// MatchCandidate is a scored pairing of one bank transaction with one
// recorded transaction. Candidates are ephemeral: recomputed on demand and
// never persisted independently of a decision.
type MatchCandidate struct {
	ID                    string      `json:"id"`
	BankTransactionID     string      `json:"bank_transaction_id"`
	RecordedTransactionID string      `json:"recorded_transaction_id"`
	Confidence            float64     `json:"confidence"`
	Reason                MatchReason `json:"reason"`
	DateDiffDays          int         `json:"date_diff_days"`
}

// ============================================================
// Match decisions
// ============================================================

// DecisionStatus is the lifecycle status of a match decision.
type DecisionStatus string

const (
	StatusSuggested DecisionStatus = "suggested"
	StatusAccepted  DecisionStatus = "accepted"
	StatusRejected  DecisionStatus = "rejected"
	StatusManual    DecisionStatus = "manual"
)

// Locks reports whether the decision consumes both transactions under the
// one-to-one pairing invariant.
func (s DecisionStatus) Locks() bool {
	return s == StatusAccepted || s == StatusManual
}

// MatchDecision records the outcome of accepting, rejecting or manually
// forming a pair. A transaction id appears in at most one accepted/manual
// decision at any time.
type MatchDecision struct {
	ID                    string         `json:"id"`
	BankTransactionID     string         `json:"bank_transaction_id"`
	RecordedTransactionID string         `json:"recorded_transaction_id"`
	Confidence            float64        `json:"confidence"`
	Status                DecisionStatus `json:"status"`
	DecidedAt             time.Time      `json:"decided_at"`
	DecidedBy             string         `json:"decided_by,omitempty"`
}

// MatchAuditEntry is an audit-log row written when a decision is created,
// superseded or removed.
type MatchAuditEntry struct {
	ID                    string    `json:"id"`
	SessionID             string    `json:"session_id"`
	Action                string    `json:"action"` // accept, reject, manual_match, unmatch, close
	BankTransactionID     string    `json:"bank_transaction_id,omitempty"`
	RecordedTransactionID string    `json:"recorded_transaction_id,omitempty"`
	Confidence            float64   `json:"confidence,omitempty"`
	PerformedBy           string    `json:"performed_by,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
}

// ============================================================
// Session views
// ============================================================

// SessionState is the lifecycle state of a reconciliation session.
type SessionState string

const (
	SessionOpen   SessionState = "open"
	SessionClosed SessionState = "closed"
)

// SessionInfo is the API view of a reconciliation session.
type SessionInfo struct {
	ID            string       `json:"id"`
	ClientID      string       `json:"client_id"`
	Currency      string       `json:"currency"`
	PeriodFrom    string       `json:"period_from"`
	PeriodTo      string       `json:"period_to"`
	State         SessionState `json:"state"`
	BankCount     int          `json:"bank_count"`
	RecordedCount int          `json:"recorded_count"`
	Progress      float64      `json:"progress"`
	CreatedAt     time.Time    `json:"created_at"`
	ClosedAt      *time.Time   `json:"closed_at,omitempty"`
}

// ReconciliationSummary aggregates the state of a session for reporting.
type ReconciliationSummary struct {
	BankTotal         int             `json:"bank_total"`
	RecordedTotal     int             `json:"recorded_total"`
	MatchedBank       int             `json:"matched_bank"`
	MatchedRecorded   int             `json:"matched_recorded"`
	UnmatchedBank     int             `json:"unmatched_bank"`
	UnmatchedRecorded int             `json:"unmatched_recorded"`
	RejectedPairs     int             `json:"rejected_pairs"`
	Progress          float64         `json:"progress"`
	MatchedAmount     decimal.Decimal `json:"matched_amount"`
	UnmatchedAmount   decimal.Decimal `json:"unmatched_amount"`
}

// ============================================================
// API request/response types
// ============================================================

// CreateSessionRequest is the body for POST /v1/reconciliation/sessions.
type CreateSessionRequest struct {
	ClientID   string `json:"clientId"`
	Currency   string `json:"currency,omitempty"`
	PeriodFrom string `json:"periodFrom"` // YYYY-MM-DD
	PeriodTo   string `json:"periodTo"`   // YYYY-MM-DD
}

// BulkAcceptRequest is the body for POST .../bulk-accept.
type BulkAcceptRequest struct {
	MinConfidence float64 `json:"minConfidence"`
}

// BulkAcceptResponse reports how many candidates were accepted and how many
// were skipped because of conflicts within the same pass.
type BulkAcceptResponse struct {
	Accepted int `json:"accepted"`
	Skipped  int `json:"skipped"`
}

// ManualMatchRequest is the body for POST .../manual-match.
type ManualMatchRequest struct {
	BankTransactionID     string `json:"bankTransactionId"`
	RecordedTransactionID string `json:"recordedTransactionId"`
}

// UnmatchRequest is the body for POST .../unmatch. Either side's id
// identifies the decision to delete.
type UnmatchRequest struct {
	TransactionID string `json:"transactionId"`
}

// ProgressResponse is returned by GET .../progress.
type ProgressResponse struct {
	Progress float64 `json:"progress"`
}

// ReconciliationReport is the reporting view of a session: its metadata plus
// the aggregated matching totals at generation time.
type ReconciliationReport struct {
	Session     SessionInfo           `json:"session"`
	Summary     ReconciliationSummary `json:"summary"`
	GeneratedAt time.Time             `json:"generated_at"`
}
