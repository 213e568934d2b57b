package supabase

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/finvista/finvista-gateway-go/internal/domain"
)

// SaveDecisions persists the finalized decisions of a closed session into the
// match_decisions table.
func (c *Client) SaveDecisions(ctx context.Context, sessionID string, decisions []domain.MatchDecision) error {
	ctx, span := tracer.Start(ctx, "Supabase.SaveDecisions")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", sessionID),
		attribute.Int("decisions.count", len(decisions)),
	)

	if len(decisions) == 0 {
		return nil
	}

	rows := make([]map[string]any, 0, len(decisions))
	for _, d := range decisions {
		rows = append(rows, map[string]any{
			"id":                      d.ID,
			"session_id":              sessionID,
			"bank_transaction_id":     d.BankTransactionID,
			"recorded_transaction_id": d.RecordedTransactionID,
			"confidence":              d.Confidence,
			"status":                  string(d.Status),
			"decided_at":              d.DecidedAt.UTC().Format(time.RFC3339),
			"decided_by":              d.DecidedBy,
		})
	}

	err := c.execute(ctx, func() error {
		_, err := c.doPost(ctx, "match_decisions", rows)
		return err
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/match_decisions", Err: err}
	}
	return nil
}

// AppendAuditEntries writes audit rows for session mutations.
func (c *Client) AppendAuditEntries(ctx context.Context, entries []domain.MatchAuditEntry) error {
	ctx, span := tracer.Start(ctx, "Supabase.AppendAuditEntries")
	defer span.End()
	span.SetAttributes(attribute.Int("entries.count", len(entries)))

	if len(entries) == 0 {
		return nil
	}

	rows := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, map[string]any{
			"id":                      e.ID,
			"session_id":              e.SessionID,
			"action":                  e.Action,
			"bank_transaction_id":     e.BankTransactionID,
			"recorded_transaction_id": e.RecordedTransactionID,
			"confidence":              e.Confidence,
			"performed_by":            e.PerformedBy,
			"created_at":              e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	err := c.execute(ctx, func() error {
		_, err := c.doPost(ctx, "match_audit_log", rows)
		return err
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/match_audit_log", Err: err}
	}
	return nil
}
