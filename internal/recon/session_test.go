package recon

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finvista/finvista-gateway-go/internal/domain"
)

func newTestSession(bank, recorded []domain.Transaction) *Session {
	batch := domain.TransactionBatch{
		ClientID:   "client-1",
		Currency:   "USD",
		PeriodFrom: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodTo:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		Bank:       bank,
		Recorded:   recorded,
	}
	return NewSession("sess-1", batch, newTestGenerator(), DefaultMinConfidence)
}

// assertOneToOne verifies that no transaction id appears in more than one
// accepted/manual decision.
func assertOneToOne(t *testing.T, s *Session) {
	t.Helper()
	seen := make(map[string]string)
	for _, d := range s.ExportDecisions() {
		if !d.Status.Locks() {
			continue
		}
		for _, id := range []string{d.BankTransactionID, d.RecordedTransactionID} {
			if prev, ok := seen[id]; ok {
				t.Fatalf("transaction %s locked by decisions %s and %s", id, prev, d.ID)
			}
			seen[id] = d.ID
		}
	}
}

func TestSession_AcceptCandidate(t *testing.T) {
	s := newTestSession(
		[]domain.Transaction{txn("b1", "2024-01-14", -125.50, "OFFICE SUPPLIES")},
		[]domain.Transaction{txn("r1", "2024-01-14", -125.50, "Office Supplies")},
	)

	cands := s.ListCandidates(0)
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}

	d, err := s.AcceptCandidate(cands[0].ID, "tester")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if d.Status != domain.StatusAccepted {
		t.Errorf("expected status accepted, got %s", d.Status)
	}
	if got := s.Progress(); got != 1.0 {
		t.Errorf("expected progress 1.0, got %f", got)
	}

	// The candidate was consumed: accepting it again is a stale-id error.
	_, err = s.AcceptCandidate(cands[0].ID, "tester")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Errorf("expected ErrNotFound for stale candidate, got %v", err)
	}
	assertOneToOne(t, s)
}

func TestSession_AcceptUnknownCandidate(t *testing.T) {
	s := newTestSession(
		[]domain.Transaction{txn("b1", "2024-01-14", -10.00, "FEE")},
		[]domain.Transaction{txn("r1", "2024-01-14", -10.00, "FEE")},
	)

	_, err := s.AcceptCandidate("nope::nope", "tester")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSession_BulkAcceptSkipsConflicts(t *testing.T) {
	// Three qualifying pairs where the second and third share a recorded
	// entry: exactly two may be accepted, the lower-confidence one skipped.
	bank := []domain.Transaction{
		txn("b1", "2024-01-10", -100.00, "RENT"),
		txn("b2", "2024-01-14", -200.00, "CONSULTING"),
		txn("b3", "2024-01-15", -200.00, "CONSULTING"),
	}
	recorded := []domain.Transaction{
		txn("r1", "2024-01-10", -100.00, "RENT"),
		txn("r2", "2024-01-13", -200.00, "CONSULTING"),
	}
	s := newTestSession(bank, recorded)

	accepted, skipped, err := s.BulkAccept(0.85, "tester")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if accepted != 2 {
		t.Errorf("expected 2 accepted, got %d", accepted)
	}
	if skipped != 1 {
		t.Errorf("expected 1 skipped, got %d", skipped)
	}
	assertOneToOne(t, s)
}

func TestSession_ManualMatch(t *testing.T) {
	s := newTestSession(
		[]domain.Transaction{txn("b1", "2024-01-14", -500.00, "WIRE OUT 9923")},
		[]domain.Transaction{txn("r1", "2024-01-20", -500.00, "Vendor settlement")},
	)

	d, err := s.ManualMatch("b1", "r1", "tester")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if d.Status != domain.StatusManual {
		t.Errorf("expected status manual, got %s", d.Status)
	}
	if d.Confidence != 1.0 {
		t.Errorf("expected confidence 1.0, got %f", d.Confidence)
	}
}

func TestSession_ManualMatchUnknownID(t *testing.T) {
	s := newTestSession(
		[]domain.Transaction{txn("b1", "2024-01-14", -10.00, "FEE")},
		[]domain.Transaction{txn("r1", "2024-01-14", -10.00, "FEE")},
	)

	_, err := s.ManualMatch("b1", "missing", "tester")
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Errorf("expected ErrValidation for unknown id, got %v", err)
	}
}

func TestSession_ManualMatchConflictLeavesDecisionsUnchanged(t *testing.T) {
	s := newTestSession(
		[]domain.Transaction{
			txn("b1", "2024-01-14", -10.00, "FEE"),
			txn("b2", "2024-01-14", -20.00, "FEE B"),
		},
		[]domain.Transaction{
			txn("r1", "2024-01-14", -10.00, "FEE"),
			txn("r2", "2024-01-14", -20.00, "FEE B"),
		},
	)

	if _, err := s.ManualMatch("b1", "r1", "tester"); err != nil {
		t.Fatalf("setup match failed: %v", err)
	}
	before := s.ExportDecisions()

	_, err := s.ManualMatch("b1", "r2", "tester")
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	after := s.ExportDecisions()
	if len(after) != len(before) {
		t.Errorf("decision set changed on conflict: %d -> %d", len(before), len(after))
	}
	assertOneToOne(t, s)
}

func TestSession_RejectExcludesPairNotTransactions(t *testing.T) {
	s := newTestSession(
		[]domain.Transaction{txn("b1", "2024-01-14", -125.50, "OFFICE SUPPLIES")},
		[]domain.Transaction{
			txn("r1", "2024-01-14", -125.50, "Office Supplies"),
			txn("r2", "2024-01-15", -125.50, "Office supplies restock"),
		},
	)

	cands := s.ListCandidates(0)
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}
	rejectedID := cands[0].ID

	if _, err := s.Reject(rejectedID, "tester"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// The declined pair never resurfaces, but b1 may still match r2.
	cands = s.ListCandidates(0)
	if len(cands) != 1 {
		t.Fatalf("expected a new candidate for the remaining pair, got %d", len(cands))
	}
	if cands[0].ID == rejectedID {
		t.Error("rejected pair surfaced again")
	}
	if cands[0].BankTransactionID != "b1" {
		t.Errorf("expected b1 to remain matchable, got %s", cands[0].BankTransactionID)
	}
}

func TestSession_Unmatch(t *testing.T) {
	s := newTestSession(
		[]domain.Transaction{txn("b1", "2024-01-14", -10.00, "FEE")},
		[]domain.Transaction{txn("r1", "2024-01-14", -10.00, "FEE")},
	)

	if _, err := s.ManualMatch("b1", "r1", "tester"); err != nil {
		t.Fatalf("setup match failed: %v", err)
	}
	if got := s.Progress(); got != 1.0 {
		t.Fatalf("expected progress 1.0, got %f", got)
	}

	if _, err := s.Unmatch("b1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := s.Progress(); got != 0 {
		t.Errorf("expected progress 0 after unmatch, got %f", got)
	}

	// Both sides are matchable again.
	if _, err := s.ManualMatch("b1", "r1", "tester"); err != nil {
		t.Errorf("expected re-match to succeed, got %v", err)
	}

	_, err := s.Unmatch("unknown")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Errorf("expected ErrNotFound for unmatched id, got %v", err)
	}
}

func TestSession_ProgressEmpty(t *testing.T) {
	s := newTestSession(nil, nil)
	if got := s.Progress(); got != 0 {
		t.Errorf("expected progress 0 for empty batch, got %f", got)
	}
}

func TestSession_CloseIsTerminal(t *testing.T) {
	s := newTestSession(
		[]domain.Transaction{txn("b1", "2024-01-14", -10.00, "FEE")},
		[]domain.Transaction{txn("r1", "2024-01-14", -10.00, "FEE")},
	)

	if err := s.Close(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := s.Close(); err == nil {
		t.Error("expected error closing a closed session")
	}

	_, err := s.ManualMatch("b1", "r1", "tester")
	var closed *domain.ErrSessionClosed
	if !errors.As(err, &closed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}

	if err := s.Reopen(); err != nil {
		t.Fatalf("expected reopen to succeed, got %v", err)
	}
	if _, err := s.ManualMatch("b1", "r1", "tester"); err != nil {
		t.Errorf("expected match after reopen, got %v", err)
	}
}

func TestSession_Summary(t *testing.T) {
	s := newTestSession(
		[]domain.Transaction{
			txn("b1", "2024-01-14", -125.50, "OFFICE SUPPLIES"),
			txn("b2", "2024-01-15", -80.00, "PARKING"),
		},
		[]domain.Transaction{
			txn("r1", "2024-01-14", -125.50, "Office Supplies"),
		},
	)

	if _, err := s.ManualMatch("b1", "r1", "tester"); err != nil {
		t.Fatalf("setup match failed: %v", err)
	}

	sum := s.Summary()
	if sum.MatchedBank != 1 || sum.UnmatchedBank != 1 {
		t.Errorf("expected 1 matched / 1 unmatched bank, got %d / %d", sum.MatchedBank, sum.UnmatchedBank)
	}
	if sum.MatchedRecorded != 1 || sum.UnmatchedRecorded != 0 {
		t.Errorf("expected 1 matched / 0 unmatched recorded, got %d / %d", sum.MatchedRecorded, sum.UnmatchedRecorded)
	}
	if !sum.MatchedAmount.Equal(decimal.NewFromFloat(125.50)) {
		t.Errorf("expected matched amount 125.50, got %s", sum.MatchedAmount)
	}
	if sum.Progress != 0.5 {
		t.Errorf("expected progress 0.5, got %f", sum.Progress)
	}
}

func TestSession_InvariantAfterMixedOperations(t *testing.T) {
	bank := []domain.Transaction{
		txn("b1", "2024-01-10", -100.00, "RENT"),
		txn("b2", "2024-01-14", -200.00, "CONSULTING"),
		txn("b3", "2024-01-15", -300.00, "HARDWARE"),
	}
	recorded := []domain.Transaction{
		txn("r1", "2024-01-10", -100.00, "RENT"),
		txn("r2", "2024-01-14", -200.00, "Consulting services"),
		txn("r3", "2024-01-16", -300.00, "Hardware purchase"),
	}
	s := newTestSession(bank, recorded)

	cands := s.ListCandidates(0)
	for _, c := range cands {
		if c.BankTransactionID == "b1" {
			if _, err := s.Reject(c.ID, "tester"); err != nil {
				t.Fatalf("reject failed: %v", err)
			}
			break
		}
	}
	if _, _, err := s.BulkAccept(0.6, "tester"); err != nil {
		t.Fatalf("bulk accept failed: %v", err)
	}
	if _, err := s.ManualMatch("b1", "r1", "tester"); err != nil {
		t.Fatalf("manual match failed: %v", err)
	}

	assertOneToOne(t, s)
	if got := s.Progress(); got != 1.0 {
		t.Errorf("expected progress 1.0, got %f", got)
	}
}

func TestSession_DecisionsRecordActor(t *testing.T) {
	s := newTestSession(
		[]domain.Transaction{txn("b1", "2024-01-14", -125.50, "OFFICE SUPPLIES")},
		[]domain.Transaction{txn("r1", "2024-01-14", -125.50, "Office Supplies")},
	)

	cands := s.ListCandidates(0)
	d, err := s.AcceptCandidate(cands[0].ID, "alice@finvista.io")
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if d.DecidedBy != "alice@finvista.io" {
		t.Errorf("expected actor on returned decision, got %q", d.DecidedBy)
	}

	exported := s.ExportDecisions()
	if len(exported) != 1 {
		t.Fatalf("expected 1 decision, got %d", len(exported))
	}
	if exported[0].DecidedBy != "alice@finvista.io" {
		t.Errorf("expected actor on exported decision, got %q", exported[0].DecidedBy)
	}
}

func TestSession_ConcurrentDecideAndExport(t *testing.T) {
	bank := make([]domain.Transaction, 0, 20)
	recorded := make([]domain.Transaction, 0, 20)
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("%02d", i)
		bank = append(bank, txn("b"+id, "2024-01-14", -100.00-float64(i), "PAYMENT "+id))
		recorded = append(recorded, txn("r"+id, "2024-01-14", -100.00-float64(i), "PAYMENT "+id))
	}
	s := newTestSession(bank, recorded)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(2)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("%02d", i)
			if _, err := s.ManualMatch("b"+id, "r"+id, "worker"); err != nil {
				t.Errorf("manual match %s failed: %v", id, err)
			}
		}()
		go func() {
			defer wg.Done()
			for _, d := range s.ExportDecisions() {
				if d.Status.Locks() && d.DecidedBy != "worker" {
					t.Errorf("decision %s exported without actor", d.ID)
				}
			}
			s.Summary()
		}()
	}
	wg.Wait()

	assertOneToOne(t, s)
	if got := s.Progress(); got != 1.0 {
		t.Errorf("expected progress 1.0, got %f", got)
	}
}
