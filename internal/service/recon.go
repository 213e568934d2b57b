package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/finvista/finvista-gateway-go/internal/domain"
	"github.com/finvista/finvista-gateway-go/internal/infra/observability"
	"github.com/finvista/finvista-gateway-go/internal/port"
	"github.com/finvista/finvista-gateway-go/internal/recon"
)

var tracer = otel.Tracer("service/recon")

// ReconConfig carries the tunables for the reconciliation service.
type ReconConfig struct {
	MinConfidence float64
	Scorer        recon.ScorerConfig
	AllowReopen   bool
}

// Recon orchestrates reconciliation sessions: it fetches the two transaction
// collections, runs candidate generation, and tracks per-session decisions.
// Sessions live in memory for their whole life; decisions are persisted when
// a session closes.
type Recon struct {
	txnStore      port.TransactionStore
	decisionStore port.DecisionStore
	cache         port.Cache[domain.TransactionBatch]
	metrics       *observability.Metrics
	logger        *zap.Logger
	cfg           ReconConfig

	mu       sync.RWMutex
	sessions map[string]*recon.Session
}

// NewRecon creates the reconciliation service with all dependencies injected.
func NewRecon(
	txnStore port.TransactionStore,
	decisionStore port.DecisionStore,
	cache port.Cache[domain.TransactionBatch],
	metrics *observability.Metrics,
	logger *zap.Logger,
	cfg ReconConfig,
) *Recon {
	return &Recon{
		txnStore:      txnStore,
		decisionStore: decisionStore,
		cache:         cache,
		metrics:       metrics,
		logger:        logger,
		cfg:           cfg,
		sessions:      make(map[string]*recon.Session),
	}
}

// CreateSession loads the client's bank and recorded transactions for the
// period (concurrently) and opens a new in-memory session over them.
func (r *Recon) CreateSession(ctx context.Context, req *domain.CreateSessionRequest) (*domain.SessionInfo, error) {
	ctx, span := tracer.Start(ctx, "Recon.CreateSession")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", req.ClientID))

	start := time.Now()
	defer func() {
		r.metrics.RecordRequestDuration("create_session", time.Since(start))
	}()

	if req.ClientID == "" {
		return nil, &domain.ErrValidation{Field: "clientId", Message: "required"}
	}
	from, err := time.Parse("2006-01-02", req.PeriodFrom)
	if err != nil {
		return nil, &domain.ErrValidation{Field: "periodFrom", Message: "expected YYYY-MM-DD"}
	}
	to, err := time.Parse("2006-01-02", req.PeriodTo)
	if err != nil {
		return nil, &domain.ErrValidation{Field: "periodTo", Message: "expected YYYY-MM-DD"}
	}
	if to.Before(from) {
		return nil, &domain.ErrValidation{Field: "periodTo", Message: "period end before period start"}
	}

	batch, err := r.loadBatch(ctx, req.ClientID, req.Currency, from, to)
	if err != nil {
		return nil, err
	}

	gen := recon.NewGenerator(recon.NewScorer(r.cfg.Scorer))
	session := recon.NewSession(uuid.New().String(), *batch, gen, r.cfg.MinConfidence)

	r.mu.Lock()
	r.sessions[session.ID()] = session
	r.mu.Unlock()

	r.metrics.IncrSession("created")
	r.logger.Info("reconciliation session created",
		zap.String("session_id", session.ID()),
		zap.String("client_id", req.ClientID),
		zap.Int("bank_count", len(batch.Bank)),
		zap.Int("recorded_count", len(batch.Recorded)),
	)

	info := session.Info()
	return &info, nil
}

// loadBatch fetches both transaction collections, consulting the cache first.
func (r *Recon) loadBatch(ctx context.Context, clientID, currency string, from, to time.Time) (*domain.TransactionBatch, error) {
	cacheKey := fmt.Sprintf("batch:%s:%s:%s", clientID, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if cached, ok := r.cache.Get(cacheKey); ok {
		r.metrics.IncrCacheHit("transactions")
		cached.Currency = currency
		return &cached, nil
	}
	r.metrics.IncrCacheMiss("transactions")

	var bank, recorded []domain.Transaction
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		t, err := r.txnStore.FetchBankTransactions(gCtx, clientID, from, to)
		if err != nil {
			r.logger.Error("failed to fetch bank transactions",
				zap.String("client_id", clientID),
				zap.Error(err),
			)
			r.metrics.IncrExternalError("bank_transactions")
			return fmt.Errorf("bank transactions fetch: %w", err)
		}
		bank = t
		return nil
	})

	g.Go(func() error {
		t, err := r.txnStore.FetchRecordedTransactions(gCtx, clientID, from, to)
		if err != nil {
			r.logger.Error("failed to fetch recorded transactions",
				zap.String("client_id", clientID),
				zap.Error(err),
			)
			r.metrics.IncrExternalError("recorded_transactions")
			return fmt.Errorf("recorded transactions fetch: %w", err)
		}
		recorded = t
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	batch := domain.TransactionBatch{
		ClientID:   clientID,
		Currency:   currency,
		PeriodFrom: from,
		PeriodTo:   to,
		Bank:       bank,
		Recorded:   recorded,
	}
	r.cache.Set(cacheKey, batch)
	return &batch, nil
}

// GetSession returns the API view of a session.
func (r *Recon) GetSession(sessionID string) (*domain.SessionInfo, error) {
	s, err := r.session(sessionID)
	if err != nil {
		return nil, err
	}
	info := s.Info()
	return &info, nil
}

// ListCandidates regenerates and returns the ranked candidate set for a
// session. minConfidence <= 0 uses the session default.
func (r *Recon) ListCandidates(ctx context.Context, sessionID string, minConfidence float64) ([]domain.MatchCandidate, error) {
	_, span := tracer.Start(ctx, "Recon.ListCandidates")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	s, err := r.session(sessionID)
	if err != nil {
		return nil, err
	}

	cands := s.ListCandidates(minConfidence)
	r.metrics.AddCandidatesGenerated(len(cands))
	return cands, nil
}

// AcceptCandidate accepts one suggested pair.
func (r *Recon) AcceptCandidate(ctx context.Context, sessionID, candidateID, actor string) (*domain.MatchDecision, error) {
	ctx, span := tracer.Start(ctx, "Recon.AcceptCandidate")
	defer span.End()

	s, err := r.session(sessionID)
	if err != nil {
		return nil, err
	}

	d, err := s.AcceptCandidate(candidateID, actor)
	if err != nil {
		return nil, err
	}

	r.metrics.IncrDecision("accepted")
	r.audit(ctx, sessionID, "accept", d, actor)
	return d, nil
}

// BulkAccept accepts every qualifying pair at or above minConfidence,
// skipping pairs that conflict with ones accepted earlier in the same pass.
func (r *Recon) BulkAccept(ctx context.Context, sessionID string, minConfidence float64, actor string) (*domain.BulkAcceptResponse, error) {
	ctx, span := tracer.Start(ctx, "Recon.BulkAccept")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	s, err := r.session(sessionID)
	if err != nil {
		return nil, err
	}

	accepted, skipped, err := s.BulkAccept(minConfidence, actor)
	if err != nil {
		return nil, err
	}

	r.metrics.AddDecisions("accepted", accepted)
	r.metrics.AddConflictsSkipped(skipped)
	r.audit(ctx, sessionID, "bulk_accept", nil, actor)

	r.logger.Info("bulk accept finished",
		zap.String("session_id", sessionID),
		zap.Int("accepted", accepted),
		zap.Int("skipped", skipped),
	)
	return &domain.BulkAcceptResponse{Accepted: accepted, Skipped: skipped}, nil
}

// ManualMatch pairs two transactions directly, bypassing the scorer.
func (r *Recon) ManualMatch(ctx context.Context, sessionID string, req *domain.ManualMatchRequest, actor string) (*domain.MatchDecision, error) {
	ctx, span := tracer.Start(ctx, "Recon.ManualMatch")
	defer span.End()

	s, err := r.session(sessionID)
	if err != nil {
		return nil, err
	}

	d, err := s.ManualMatch(req.BankTransactionID, req.RecordedTransactionID, actor)
	if err != nil {
		return nil, err
	}

	r.metrics.IncrDecision("manual")
	r.audit(ctx, sessionID, "manual_match", d, actor)
	return d, nil
}

// RejectCandidate declines a suggested pair for the session's lifetime.
func (r *Recon) RejectCandidate(ctx context.Context, sessionID, candidateID, actor string) (*domain.MatchDecision, error) {
	ctx, span := tracer.Start(ctx, "Recon.RejectCandidate")
	defer span.End()

	s, err := r.session(sessionID)
	if err != nil {
		return nil, err
	}

	d, err := s.Reject(candidateID, actor)
	if err != nil {
		return nil, err
	}

	r.metrics.IncrDecision("rejected")
	r.audit(ctx, sessionID, "reject", d, actor)
	return d, nil
}

// Unmatch deletes the accepted/manual decision consuming the given
// transaction id, on either side.
func (r *Recon) Unmatch(ctx context.Context, sessionID, txnID, actor string) (*domain.MatchDecision, error) {
	ctx, span := tracer.Start(ctx, "Recon.Unmatch")
	defer span.End()

	s, err := r.session(sessionID)
	if err != nil {
		return nil, err
	}

	d, err := s.Unmatch(txnID)
	if err != nil {
		return nil, err
	}

	r.audit(ctx, sessionID, "unmatch", d, actor)
	return d, nil
}

// Progress reports the fraction of bank transactions matched so far.
func (r *Recon) Progress(sessionID string) (*domain.ProgressResponse, error) {
	s, err := r.session(sessionID)
	if err != nil {
		return nil, err
	}
	return &domain.ProgressResponse{Progress: s.Progress()}, nil
}

// Summary aggregates the session state for reporting.
func (r *Recon) Summary(sessionID string) (*domain.ReconciliationSummary, error) {
	s, err := r.session(sessionID)
	if err != nil {
		return nil, err
	}
	sum := s.Summary()
	return &sum, nil
}

// Decisions returns every decision recorded in the session, ordered by
// decision time.
func (r *Recon) Decisions(sessionID string) ([]domain.MatchDecision, error) {
	s, err := r.session(sessionID)
	if err != nil {
		return nil, err
	}
	return s.ExportDecisions(), nil
}

// CloseSession finalizes a session and persists its decisions.
func (r *Recon) CloseSession(ctx context.Context, sessionID, actor string) (*domain.SessionInfo, error) {
	ctx, span := tracer.Start(ctx, "Recon.CloseSession")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	s, err := r.session(sessionID)
	if err != nil {
		return nil, err
	}
	// Close first so no mutation can slip in between export and persist.
	// If persistence fails the close is rolled back and can be retried.
	if err := s.Close(); err != nil {
		return nil, err
	}

	if err := r.decisionStore.SaveDecisions(ctx, sessionID, s.ExportDecisions()); err != nil {
		if rerr := s.Reopen(); rerr != nil {
			r.logger.Error("failed to roll back session close",
				zap.String("session_id", sessionID),
				zap.Error(rerr),
			)
		}
		r.logger.Error("failed to persist session decisions",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		r.metrics.IncrExternalError("decisions")
		return nil, err
	}

	r.metrics.IncrSession("closed")
	r.audit(ctx, sessionID, "close", nil, actor)

	info := s.Info()
	return &info, nil
}

// ReopenSession returns a closed session to the open state. Disabled unless
// RECON_ALLOW_REOPEN is set.
func (r *Recon) ReopenSession(ctx context.Context, sessionID, actor string) (*domain.SessionInfo, error) {
	ctx, span := tracer.Start(ctx, "Recon.ReopenSession")
	defer span.End()

	if !r.cfg.AllowReopen {
		return nil, &domain.ErrConflict{Resource: "session", ID: sessionID, Message: "reopening closed sessions is disabled"}
	}

	s, err := r.session(sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.Reopen(); err != nil {
		return nil, err
	}

	r.audit(ctx, sessionID, "reopen", nil, actor)
	info := s.Info()
	return &info, nil
}

func (r *Recon) session(sessionID string) (*recon.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "session", ID: sessionID}
	}
	return s, nil
}

// audit writes an audit row. Failures are logged, not propagated: losing an
// audit entry must not fail the user's operation.
func (r *Recon) audit(ctx context.Context, sessionID, action string, d *domain.MatchDecision, actor string) {
	entry := domain.MatchAuditEntry{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		Action:      action,
		PerformedBy: actor,
		CreatedAt:   time.Now().UTC(),
	}
	if d != nil {
		entry.BankTransactionID = d.BankTransactionID
		entry.RecordedTransactionID = d.RecordedTransactionID
		entry.Confidence = d.Confidence
	}
	if err := r.decisionStore.AppendAuditEntries(ctx, []domain.MatchAuditEntry{entry}); err != nil {
		r.logger.Warn("failed to append audit entry",
			zap.String("session_id", sessionID),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}
