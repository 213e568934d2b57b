package recon

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finvista/finvista-gateway-go/internal/domain"
)

// Session tracks accepted/rejected/pending match decisions for one
// statement-import batch. It enforces at-most-one accepted/manual decision
// per transaction on either side.
//
// All operations are serialized by one mutex, so the one-to-one invariant
// is never observed violated by concurrent callers. Decisions are returned
// by value; the structs held in the session are never handed out.
type Session struct {
	mu sync.Mutex

	id            string
	batch         domain.TransactionBatch
	gen           *Generator
	minConfidence float64

	bankByID     map[string]domain.Transaction
	recordedByID map[string]domain.Transaction

	decisions map[string]*domain.MatchDecision // by decision id
	locked    map[string]*domain.MatchDecision // txn id -> accepted/manual decision
	rejected  map[string]bool                  // candidate id -> declined for session lifetime

	candidates map[string]domain.MatchCandidate // last generated pass, by candidate id
	stale      bool

	state     domain.SessionState
	createdAt time.Time
	closedAt  *time.Time
}

// NewSession creates an open session over the given batch.
func NewSession(id string, batch domain.TransactionBatch, gen *Generator, minConfidence float64) *Session {
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	s := &Session{
		id:            id,
		batch:         batch,
		gen:           gen,
		minConfidence: minConfidence,
		bankByID:      make(map[string]domain.Transaction, len(batch.Bank)),
		recordedByID:  make(map[string]domain.Transaction, len(batch.Recorded)),
		decisions:     make(map[string]*domain.MatchDecision),
		locked:        make(map[string]*domain.MatchDecision),
		rejected:      make(map[string]bool),
		stale:         true,
		state:         domain.SessionOpen,
		createdAt:     time.Now().UTC(),
	}
	for _, t := range batch.Bank {
		s.bankByID[t.ID] = t
	}
	for _, t := range batch.Recorded {
		s.recordedByID[t.ID] = t
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// ListCandidates regenerates and returns the ranked candidate set.
// A minConfidence of zero uses the session default.
func (s *Session) ListCandidates(minConfidence float64) []domain.MatchCandidate {
	s.mu.Lock()
	defer s.mu.Unlock()

	if minConfidence <= 0 {
		minConfidence = s.minConfidence
	}
	return s.regenerate(minConfidence)
}

// AcceptCandidate promotes a candidate from the current pass to an accepted
// decision. It fails with ErrNotFound when the candidate id is no longer in
// the current set (e.g. already decided) and with ErrConflict when either
// transaction is already locked by an accepted/manual decision.
func (s *Session) AcceptCandidate(candidateID, actor string) (*domain.MatchDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	if s.stale {
		s.regenerate(s.minConfidence)
	}
	cand, ok := s.candidates[candidateID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "candidate", ID: candidateID}
	}
	if err := s.checkUnlocked(cand.BankTransactionID, cand.RecordedTransactionID); err != nil {
		return nil, err
	}
	d := s.lockPair(cand.BankTransactionID, cand.RecordedTransactionID, cand.Confidence, domain.StatusAccepted, actor)
	cp := *d
	return &cp, nil
}

// BulkAccept accepts, in descending confidence order, every qualifying pair
// at or above minConfidence, skipping (not failing) any pair that conflicts
// with one accepted earlier in the same pass. The one-to-one invariant
// therefore holds after the operation regardless of input ordering.
func (s *Session) BulkAccept(minConfidence float64, actor string) (accepted, skipped int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureOpen(); err != nil {
		return 0, 0, err
	}
	if minConfidence <= 0 {
		minConfidence = s.minConfidence
	}

	pairs := s.gen.ScoreAll(s.batch.Bank, s.batch.Recorded, minConfidence, s.lockedIDs(), s.rejected)
	for _, cand := range pairs {
		if s.locked[cand.BankTransactionID] != nil || s.locked[cand.RecordedTransactionID] != nil {
			skipped++
			continue
		}
		s.lockPair(cand.BankTransactionID, cand.RecordedTransactionID, cand.Confidence, domain.StatusAccepted, actor)
		accepted++
	}
	return accepted, skipped, nil
}

// ManualMatch pairs two transactions with confidence 1.0, bypassing the
// scorer. Unknown ids fail with ErrValidation; already-matched sides fail
// with ErrConflict and leave existing decisions unchanged.
func (s *Session) ManualMatch(bankTxnID, recordedTxnID, actor string) (*domain.MatchDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	if _, ok := s.bankByID[bankTxnID]; !ok {
		return nil, &domain.ErrValidation{Field: "bankTransactionId", Message: "unknown transaction: " + bankTxnID}
	}
	if _, ok := s.recordedByID[recordedTxnID]; !ok {
		return nil, &domain.ErrValidation{Field: "recordedTransactionId", Message: "unknown transaction: " + recordedTxnID}
	}
	if err := s.checkUnlocked(bankTxnID, recordedTxnID); err != nil {
		return nil, err
	}
	d := s.lockPair(bankTxnID, recordedTxnID, 1.0, domain.StatusManual, actor)
	cp := *d
	return &cp, nil
}

// Reject records a rejected decision for a candidate from the current pass.
// The pair is excluded from future candidate generation for the lifetime of
// the session, but neither transaction is blocked from matching a different
// counterpart.
func (s *Session) Reject(candidateID, actor string) (*domain.MatchDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	if s.stale {
		s.regenerate(s.minConfidence)
	}
	cand, ok := s.candidates[candidateID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "candidate", ID: candidateID}
	}

	d := &domain.MatchDecision{
		ID:                    uuid.New().String(),
		BankTransactionID:     cand.BankTransactionID,
		RecordedTransactionID: cand.RecordedTransactionID,
		Confidence:            cand.Confidence,
		Status:                domain.StatusRejected,
		DecidedAt:             time.Now().UTC(),
		DecidedBy:             actor,
	}
	s.decisions[d.ID] = d
	s.rejected[candidateID] = true
	s.stale = true
	cp := *d
	return &cp, nil
}

// Unmatch deletes the accepted/manual decision that consumes the given
// transaction (either side), returning both sides to the unmatched state.
func (s *Session) Unmatch(txnID string) (*domain.MatchDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	d := s.locked[txnID]
	if d == nil {
		return nil, &domain.ErrNotFound{Resource: "decision", ID: txnID}
	}
	delete(s.decisions, d.ID)
	delete(s.locked, d.BankTransactionID)
	delete(s.locked, d.RecordedTransactionID)
	s.stale = true
	cp := *d
	return &cp, nil
}

// Progress returns the fraction of bank transactions with an accepted or
// manual decision, in [0,1].
func (s *Session) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressLocked()
}

// ExportDecisions returns a copy of every decision recorded in the session,
// ordered by decision time, for persistence by the storage collaborator.
func (s *Session) ExportDecisions() []domain.MatchDecision {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.MatchDecision, 0, len(s.decisions))
	for _, d := range s.decisions {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DecidedAt.Equal(out[j].DecidedAt) {
			return out[i].DecidedAt.Before(out[j].DecidedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Summary aggregates the session state for reporting.
func (s *Session) Summary() domain.ReconciliationSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := domain.ReconciliationSummary{
		BankTotal:       len(s.batch.Bank),
		RecordedTotal:   len(s.batch.Recorded),
		RejectedPairs:   len(s.rejected),
		Progress:        s.progressLocked(),
		MatchedAmount:   decimal.Zero,
		UnmatchedAmount: decimal.Zero,
	}
	for _, t := range s.batch.Bank {
		if s.locked[t.ID] != nil {
			sum.MatchedBank++
			sum.MatchedAmount = sum.MatchedAmount.Add(t.Amount.Abs())
		} else {
			sum.UnmatchedAmount = sum.UnmatchedAmount.Add(t.Amount.Abs())
		}
	}
	for _, t := range s.batch.Recorded {
		if s.locked[t.ID] != nil {
			sum.MatchedRecorded++
		}
	}
	sum.UnmatchedBank = sum.BankTotal - sum.MatchedBank
	sum.UnmatchedRecorded = sum.RecordedTotal - sum.MatchedRecorded
	return sum
}

// Close finalizes the session. Closing is terminal: further mutation fails
// with ErrSessionClosed until Reopen is called (when enabled).
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.SessionClosed {
		return &domain.ErrSessionClosed{SessionID: s.id}
	}
	now := time.Now().UTC()
	s.state = domain.SessionClosed
	s.closedAt = &now
	return nil
}

// Reopen returns a closed session to the open state. Callers gate this on
// configuration; a session that is already open fails with ErrConflict.
func (s *Session) Reopen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.SessionClosed {
		return &domain.ErrConflict{Resource: "session", ID: s.id, Message: "session is not closed"}
	}
	s.state = domain.SessionOpen
	s.closedAt = nil
	s.stale = true
	return nil
}

// Info returns the API view of the session.
func (s *Session) Info() domain.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	return domain.SessionInfo{
		ID:            s.id,
		ClientID:      s.batch.ClientID,
		Currency:      s.batch.Currency,
		PeriodFrom:    s.batch.PeriodFrom.Format("2006-01-02"),
		PeriodTo:      s.batch.PeriodTo.Format("2006-01-02"),
		State:         s.state,
		BankCount:     len(s.batch.Bank),
		RecordedCount: len(s.batch.Recorded),
		Progress:      s.progressLocked(),
		CreatedAt:     s.createdAt,
		ClosedAt:      s.closedAt,
	}
}

// --- internals (callers hold s.mu) ---

func (s *Session) ensureOpen() error {
	if s.state == domain.SessionClosed {
		return &domain.ErrSessionClosed{SessionID: s.id}
	}
	return nil
}

func (s *Session) regenerate(minConfidence float64) []domain.MatchCandidate {
	cands := s.gen.Generate(s.batch.Bank, s.batch.Recorded, minConfidence, s.lockedIDs(), s.rejected)
	s.candidates = make(map[string]domain.MatchCandidate, len(cands))
	for _, c := range cands {
		s.candidates[c.ID] = c
	}
	s.stale = false
	return cands
}

func (s *Session) lockedIDs() map[string]bool {
	ids := make(map[string]bool, len(s.locked))
	for id := range s.locked {
		ids[id] = true
	}
	return ids
}

func (s *Session) checkUnlocked(bankTxnID, recordedTxnID string) error {
	if s.locked[bankTxnID] != nil {
		return &domain.ErrConflict{Resource: "bank transaction", ID: bankTxnID, Message: "bank transaction already matched: " + bankTxnID}
	}
	if s.locked[recordedTxnID] != nil {
		return &domain.ErrConflict{Resource: "recorded transaction", ID: recordedTxnID, Message: "recorded transaction already matched: " + recordedTxnID}
	}
	return nil
}

func (s *Session) lockPair(bankTxnID, recordedTxnID string, confidence float64, status domain.DecisionStatus, decidedBy string) *domain.MatchDecision {
	d := &domain.MatchDecision{
		ID:                    uuid.New().String(),
		BankTransactionID:     bankTxnID,
		RecordedTransactionID: recordedTxnID,
		Confidence:            confidence,
		Status:                status,
		DecidedAt:             time.Now().UTC(),
		DecidedBy:             decidedBy,
	}
	s.decisions[d.ID] = d
	s.locked[bankTxnID] = d
	s.locked[recordedTxnID] = d
	s.stale = true
	return d
}

func (s *Session) progressLocked() float64 {
	total := len(s.batch.Bank)
	if total == 0 {
		return 0
	}
	matched := 0
	for _, t := range s.batch.Bank {
		if s.locked[t.ID] != nil {
			matched++
		}
	}
	return float64(matched) / float64(total)
}
