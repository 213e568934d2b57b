package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/finvista/finvista-gateway-go/internal/domain"
	"github.com/finvista/finvista-gateway-go/internal/infra/observability"
	"github.com/finvista/finvista-gateway-go/internal/service"
)

// ============================================================
// Reconciliation sessions
// ============================================================

func createSessionHandler(svc *service.Recon, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/reconciliation/sessions")
		defer span.End()

		var req domain.CreateSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		span.SetAttributes(attribute.String("client.id", req.ClientID))

		info, err := svc.CreateSession(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, info)
	}
}

func getSessionHandler(svc *service.Recon, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := svc.GetSession(chi.URLParam(r, "sessionId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

func listCandidatesHandler(svc *service.Recon, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/reconciliation/sessions/{sessionId}/candidates")
		defer span.End()

		minConfidence, err := parseMinConfidence(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		cands, err := svc.ListCandidates(ctx, chi.URLParam(r, "sessionId"), minConfidence)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"candidates": cands,
			"count":      len(cands),
		})
	}
}

func acceptCandidateHandler(svc *service.Recon, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/reconciliation/sessions/{sessionId}/candidates/{candidateId}/accept")
		defer span.End()

		d, err := svc.AcceptCandidate(ctx,
			chi.URLParam(r, "sessionId"),
			chi.URLParam(r, "candidateId"),
			UserIDFromContext(ctx),
		)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func rejectCandidateHandler(svc *service.Recon, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/reconciliation/sessions/{sessionId}/candidates/{candidateId}/reject")
		defer span.End()

		d, err := svc.RejectCandidate(ctx,
			chi.URLParam(r, "sessionId"),
			chi.URLParam(r, "candidateId"),
			UserIDFromContext(ctx),
		)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func bulkAcceptHandler(svc *service.Recon, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/reconciliation/sessions/{sessionId}/bulk-accept")
		defer span.End()

		var req domain.BulkAcceptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.MinConfidence < 0 || req.MinConfidence > 1 {
			writeError(w, http.StatusBadRequest, "minConfidence must be in [0,1]")
			return
		}

		resp, err := svc.BulkAccept(ctx, chi.URLParam(r, "sessionId"), req.MinConfidence, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func manualMatchHandler(svc *service.Recon, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/reconciliation/sessions/{sessionId}/manual-match")
		defer span.End()

		var req domain.ManualMatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.BankTransactionID == "" || req.RecordedTransactionID == "" {
			writeError(w, http.StatusBadRequest, "bankTransactionId and recordedTransactionId are required")
			return
		}

		d, err := svc.ManualMatch(ctx, chi.URLParam(r, "sessionId"), &req, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func unmatchHandler(svc *service.Recon, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/reconciliation/sessions/{sessionId}/unmatch")
		defer span.End()

		var req domain.UnmatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.TransactionID == "" {
			writeError(w, http.StatusBadRequest, "transactionId is required")
			return
		}

		d, err := svc.Unmatch(ctx, chi.URLParam(r, "sessionId"), req.TransactionID, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func progressHandler(svc *service.Recon, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := svc.Progress(chi.URLParam(r, "sessionId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func summaryHandler(svc *service.Recon, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := svc.Summary(chi.URLParam(r, "sessionId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

func listDecisionsHandler(svc *service.Recon, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		decisions, err := svc.Decisions(chi.URLParam(r, "sessionId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"decisions": decisions,
			"count":     len(decisions),
		})
	}
}

func closeSessionHandler(svc *service.Recon, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/reconciliation/sessions/{sessionId}/close")
		defer span.End()

		info, err := svc.CloseSession(ctx, chi.URLParam(r, "sessionId"), UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

func reopenSessionHandler(svc *service.Recon, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/reconciliation/sessions/{sessionId}/reopen")
		defer span.End()

		info, err := svc.ReopenSession(ctx, chi.URLParam(r, "sessionId"), UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

// ============================================================
// Reconciliation metrics snapshot
// ============================================================

func reconMetricsHandler(metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetReconSnapshot())
	}
}
