package recon

import (
	"fmt"
	"sort"

	"github.com/finvista/finvista-gateway-go/internal/domain"
)

// DefaultMinConfidence is the generator threshold used when the caller does
// not supply one.
const DefaultMinConfidence = 0.5

// CandidateID derives the deterministic id of a bank/recorded pairing.
// Candidates are ephemeral, so the id must be recomputable across passes.
func CandidateID(bankID, recordedID string) string {
	return fmt.Sprintf("%s::%s", bankID, recordedID)
}

// Generator produces ranked match candidates above a minimum confidence.
type Generator struct {
	scorer *Scorer
}

// NewGenerator creates a generator backed by the given scorer.
func NewGenerator(scorer *Scorer) *Generator {
	return &Generator{scorer: scorer}
}

// Generate scores every unlocked bank/recorded pair, filters below
// minConfidence, and returns candidates in descending confidence order with
// global one-to-one feasibility: once a transaction is consumed by a
// higher-ranked candidate it is excluded from lower-ranked ones in the same
// pass. Ties break by closest date proximity, then ascending bank id.
//
// The locked set holds transaction ids consumed by accepted/manual
// decisions; rejected holds candidate ids the user declined. Inputs are
// never mutated and a fresh slice is returned on each call.
func (g *Generator) Generate(
	bank, recorded []domain.Transaction,
	minConfidence float64,
	locked map[string]bool,
	rejected map[string]bool,
) []domain.MatchCandidate {
	scored := g.scorePairs(bank, recorded, minConfidence, locked, rejected)

	usedBank := make(map[string]bool, len(bank))
	usedRecorded := make(map[string]bool, len(recorded))
	out := make([]domain.MatchCandidate, 0, len(scored))
	for _, c := range scored {
		if usedBank[c.BankTransactionID] || usedRecorded[c.RecordedTransactionID] {
			continue
		}
		usedBank[c.BankTransactionID] = true
		usedRecorded[c.RecordedTransactionID] = true
		out = append(out, c)
	}
	return out
}

// ScoreAll is Generate without the greedy one-to-one pass: every qualifying
// pair is returned in ranked order, overlaps included. Bulk acceptance uses
// this so its conflict-skip logic, not the presentation filter, enforces
// the one-to-one invariant.
func (g *Generator) ScoreAll(
	bank, recorded []domain.Transaction,
	minConfidence float64,
	locked map[string]bool,
	rejected map[string]bool,
) []domain.MatchCandidate {
	return g.scorePairs(bank, recorded, minConfidence, locked, rejected)
}

func (g *Generator) scorePairs(
	bank, recorded []domain.Transaction,
	minConfidence float64,
	locked map[string]bool,
	rejected map[string]bool,
) []domain.MatchCandidate {
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}

	var scored []domain.MatchCandidate
	for _, b := range bank {
		if locked[b.ID] {
			continue
		}
		for _, r := range recorded {
			if locked[r.ID] {
				continue
			}
			id := CandidateID(b.ID, r.ID)
			if rejected[id] {
				continue
			}
			confidence, reason := g.scorer.Score(b, r)
			if confidence < minConfidence {
				continue
			}
			scored = append(scored, domain.MatchCandidate{
				ID:                    id,
				BankTransactionID:     b.ID,
				RecordedTransactionID: r.ID,
				Confidence:            confidence,
				Reason:                reason,
				DateDiffDays:          DateDiffDays(b, r),
			})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.DateDiffDays != b.DateDiffDays {
			return a.DateDiffDays < b.DateDiffDays
		}
		if a.BankTransactionID != b.BankTransactionID {
			return a.BankTransactionID < b.BankTransactionID
		}
		return a.RecordedTransactionID < b.RecordedTransactionID
	})
	return scored
}
