// Package recon implements the transaction reconciliation core: a
// similarity scorer, a ranked candidate generator and a session that tracks
// match decisions for one statement-import batch.
//
// Scoring and candidate generation are pure, synchronous computations; the
// only mutable state is the session's decision set.
package recon

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/finvista/finvista-gateway-go/internal/domain"
)

// ScorerConfig holds the weights and tolerances for similarity scoring.
// The exact constants are configurable, not load-bearing: they can be tuned
// per deployment without affecting the scoring contract.
type ScorerConfig struct {
	// AmountWeight is the contribution of an exact absolute-amount match.
	AmountWeight float64
	// DateWeight is the contribution of an exact date match.
	DateWeight float64
	// DescriptionWeight scales the description similarity ratio.
	DescriptionWeight float64
	// AmountTolerance is the absolute amount difference inside which a
	// near-match still scores, with linear decay. Zero means exact only.
	AmountTolerance decimal.Decimal
	// DateWindowDays is the window inside which date proximity still
	// scores, with linear decay. Zero means exact only.
	DateWindowDays int
}

// DefaultScorerConfig returns the standard weighting: amount 0.6,
// date 0.25, description 0.15, tolerance 0.05, five-day window.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		AmountWeight:      0.60,
		DateWeight:        0.25,
		DescriptionWeight: 0.15,
		AmountTolerance:   decimal.NewFromFloat(0.05),
		DateWindowDays:    5,
	}
}

// Scorer computes a confidence score in [0,1] between one bank transaction
// and one recorded transaction. Scoring is a pure function of its two
// inputs and the configured weights: identical inputs always yield
// identical scores.
type Scorer struct {
	cfg ScorerConfig
}

// NewScorer creates a scorer with the given configuration.
func NewScorer(cfg ScorerConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score returns the confidence that bank and recorded represent the same
// economic event, plus the reason classification for the pairing.
// Mismatched credit/debit signs force a zero score regardless of the other
// factors.
func (s *Scorer) Score(bank, recorded domain.Transaction) (float64, domain.MatchReason) {
	if bank.Amount.Sign() != recorded.Amount.Sign() {
		return 0, domain.ReasonDescriptionMatchFuzzyAmt
	}

	amountScore := s.amountScore(bank.Amount, recorded.Amount)
	dateScore := s.dateScore(bank, recorded)
	descScore := descriptionSimilarity(bank.Description, recorded.Description)

	confidence := amountScore*s.cfg.AmountWeight +
		dateScore*s.cfg.DateWeight +
		descScore*s.cfg.DescriptionWeight
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}

	return confidence, classifyReason(amountScore, dateScore, descScore)
}

// amountScore is 1 for equal absolute amounts, linearly decayed inside the
// tolerance and 0 outside it.
func (s *Scorer) amountScore(a, b decimal.Decimal) float64 {
	absA, absB := a.Abs(), b.Abs()
	if absA.Equal(absB) {
		return 1
	}
	if s.cfg.AmountTolerance.Sign() <= 0 {
		return 0
	}
	diff := absA.Sub(absB).Abs()
	if diff.GreaterThan(s.cfg.AmountTolerance) {
		return 0
	}
	ratio, _ := diff.Div(s.cfg.AmountTolerance).Float64()
	return 1 - ratio
}

// dateScore is 1 for same-day transactions, linearly decayed inside the
// configured window and 0 beyond it.
func (s *Scorer) dateScore(bank, recorded domain.Transaction) float64 {
	days := DateDiffDays(bank, recorded)
	if days == 0 {
		return 1
	}
	if s.cfg.DateWindowDays <= 0 || days > s.cfg.DateWindowDays {
		return 0
	}
	return 1 - float64(days)/float64(s.cfg.DateWindowDays)
}

// DateDiffDays returns the absolute calendar-day distance between two
// transactions.
func DateDiffDays(a, b domain.Transaction) int {
	diff := a.Day().Sub(b.Day())
	if diff < 0 {
		diff = -diff
	}
	return int(diff.Hours() / 24)
}

func classifyReason(amountScore, dateScore, descScore float64) domain.MatchReason {
	switch {
	case amountScore == 1 && dateScore == 1 && descScore == 1:
		return domain.ReasonExactAmountDate
	case amountScore == 1:
		return domain.ReasonAmountMatchFuzzyDesc
	default:
		return domain.ReasonDescriptionMatchFuzzyAmt
	}
}

// descriptionSimilarity returns a ratio in [0,1]. Descriptions are
// normalized to lowercase tokens and compared with the Dice coefficient;
// token-free strings fall back to an edit-distance ratio.
func descriptionSimilarity(a, b string) float64 {
	tokensA := normalizeTokens(a)
	tokensB := normalizeTokens(b)

	if len(tokensA) == 0 || len(tokensB) == 0 {
		return editDistanceRatio(normalizeDescription(a), normalizeDescription(b))
	}

	setB := make(map[string]bool, len(tokensB))
	for _, t := range tokensB {
		setB[t] = true
	}
	common := 0
	seen := make(map[string]bool, len(tokensA))
	for _, t := range tokensA {
		if setB[t] && !seen[t] {
			common++
			seen[t] = true
		}
	}
	return 2 * float64(common) / float64(len(uniqueTokens(tokensA))+len(uniqueTokens(tokensB)))
}

func normalizeDescription(s string) string {
	return strings.Join(normalizeTokens(s), " ")
}

func normalizeTokens(s string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return ' '
		}
	}, s)
	return strings.Fields(cleaned)
}

func uniqueTokens(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := tokens[:0:0]
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// editDistanceRatio is 1 - levenshtein(a,b)/max(len(a),len(b)).
func editDistanceRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	dist := prev[len(rb)]
	max := len(ra)
	if len(rb) > max {
		max = len(rb)
	}
	return 1 - float64(dist)/float64(max)
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
