package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/finvista/finvista-gateway-go/internal/domain"
)

// Reports builds reporting views over reconciliation sessions.
type Reports struct {
	recon *Recon
}

// NewReports creates the reports service.
func NewReports(recon *Recon) *Reports {
	return &Reports{recon: recon}
}

// ReconciliationReport combines session metadata with the aggregated
// matching totals at the time of the call.
func (r *Reports) ReconciliationReport(ctx context.Context, sessionID string) (*domain.ReconciliationReport, error) {
	_, span := tracer.Start(ctx, "Reports.ReconciliationReport")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	info, err := r.recon.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	summary, err := r.recon.Summary(sessionID)
	if err != nil {
		return nil, err
	}

	return &domain.ReconciliationReport{
		Session:     *info,
		Summary:     *summary,
		GeneratedAt: time.Now().UTC(),
	}, nil
}
