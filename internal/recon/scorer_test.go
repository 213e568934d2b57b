package recon

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finvista/finvista-gateway-go/internal/domain"
)

func txn(id string, date string, amount float64, desc string) domain.Transaction {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return domain.Transaction{
		ID:          id,
		Date:        d,
		Amount:      decimal.NewFromFloat(amount),
		Description: desc,
	}
}

func TestScore_PerfectMatch(t *testing.T) {
	s := NewScorer(DefaultScorerConfig())

	bank := txn("b1", "2024-01-14", -125.50, "OFFICE SUPPLIES")
	recorded := txn("r1", "2024-01-14", -125.50, "OFFICE SUPPLIES")

	confidence, reason := s.Score(bank, recorded)
	if confidence != 1.0 {
		t.Errorf("expected confidence 1.0, got %f", confidence)
	}
	if reason != domain.ReasonExactAmountDate {
		t.Errorf("expected reason %s, got %s", domain.ReasonExactAmountDate, reason)
	}
}

func TestScore_SignMismatchIsHardGate(t *testing.T) {
	s := NewScorer(DefaultScorerConfig())

	bank := txn("b1", "2024-01-14", -125.50, "OFFICE SUPPLIES")
	recorded := txn("r1", "2024-01-14", 125.50, "OFFICE SUPPLIES")

	confidence, _ := s.Score(bank, recorded)
	if confidence != 0 {
		t.Errorf("expected confidence 0 for mismatched signs, got %f", confidence)
	}
}

func TestScore_FuzzyDescription(t *testing.T) {
	s := NewScorer(DefaultScorerConfig())

	bank := txn("b1", "2024-01-14", -125.50, "OFFICE SUPPLIES")
	recorded := txn("r1", "2024-01-14", -125.50, "Purchase of Office Supplies")

	confidence, reason := s.Score(bank, recorded)
	if confidence < 0.85 {
		t.Errorf("expected confidence >= 0.85, got %f", confidence)
	}
	if reason != domain.ReasonAmountMatchFuzzyDesc {
		t.Errorf("expected reason %s, got %s", domain.ReasonAmountMatchFuzzyDesc, reason)
	}
}

func TestScore_AmountToleranceDecay(t *testing.T) {
	cfg := DefaultScorerConfig()
	cfg.AmountTolerance = decimal.NewFromFloat(1.00)
	s := NewScorer(cfg)

	bank := txn("b1", "2024-01-14", -100.00, "RENT")
	near := txn("r1", "2024-01-14", -100.50, "RENT")
	far := txn("r2", "2024-01-14", -102.00, "RENT")

	nearConf, nearReason := s.Score(bank, near)
	farConf, _ := s.Score(bank, far)

	// 0.5 off within a 1.00 tolerance: amount contributes half its weight.
	want := 0.5*cfg.AmountWeight + cfg.DateWeight + cfg.DescriptionWeight
	if diff := nearConf - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected confidence %f, got %f", want, nearConf)
	}
	if nearReason != domain.ReasonDescriptionMatchFuzzyAmt {
		t.Errorf("expected reason %s, got %s", domain.ReasonDescriptionMatchFuzzyAmt, nearReason)
	}

	// Outside tolerance the amount contributes nothing.
	want = cfg.DateWeight + cfg.DescriptionWeight
	if diff := farConf - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected confidence %f, got %f", want, farConf)
	}
}

func TestScore_DateWindowDecay(t *testing.T) {
	cfg := DefaultScorerConfig()
	s := NewScorer(cfg)

	bank := txn("b1", "2024-01-10", -50.00, "SUBSCRIPTION")
	within := txn("r1", "2024-01-12", -50.00, "SUBSCRIPTION")
	beyond := txn("r2", "2024-01-20", -50.00, "SUBSCRIPTION")

	withinConf, _ := s.Score(bank, within)
	beyondConf, _ := s.Score(bank, beyond)

	// Two days into a five-day window: date contributes 3/5 of its weight.
	want := cfg.AmountWeight + 0.6*cfg.DateWeight + cfg.DescriptionWeight
	if diff := withinConf - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected confidence %f, got %f", want, withinConf)
	}

	want = cfg.AmountWeight + cfg.DescriptionWeight
	if diff := beyondConf - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected confidence %f, got %f", want, beyondConf)
	}
}

func TestScore_Deterministic(t *testing.T) {
	s := NewScorer(DefaultScorerConfig())

	bank := txn("b1", "2024-01-14", -125.50, "OFFICE SUPPLIES")
	recorded := txn("r1", "2024-01-16", -125.45, "Office supply run")

	first, firstReason := s.Score(bank, recorded)
	for i := 0; i < 10; i++ {
		conf, reason := s.Score(bank, recorded)
		if conf != first || reason != firstReason {
			t.Fatalf("scoring not deterministic: got (%f, %s) then (%f, %s)",
				first, firstReason, conf, reason)
		}
	}
}

func TestDescriptionSimilarity(t *testing.T) {
	if sim := descriptionSimilarity("OFFICE SUPPLIES", "office supplies"); sim != 1.0 {
		t.Errorf("expected 1.0 for identical normalized descriptions, got %f", sim)
	}
	if sim := descriptionSimilarity("OFFICE SUPPLIES", "WIRE TRANSFER"); sim != 0 {
		t.Errorf("expected 0 for disjoint descriptions, got %f", sim)
	}
	sim := descriptionSimilarity("OFFICE SUPPLIES", "Purchase of Office Supplies")
	if sim <= 0.5 || sim >= 1.0 {
		t.Errorf("expected partial overlap in (0.5, 1.0), got %f", sim)
	}
}
