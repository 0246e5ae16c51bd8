package httptransport

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"payguard/internal/consent"
	"payguard/internal/router"
	dErrors "payguard/pkg/domain-errors"
	"payguard/pkg/platform/httputil"
	"payguard/pkg/requestcontext"
)

// IntentService is the router surface the HTTP layer drives.
type IntentService interface {
	Submit(ctx context.Context, req router.SubmitRequest) (*router.Outcome, error)
	Get(ctx context.Context, intentID string) (*router.Record, error)
	ResolveEscalation(ctx context.Context, intentID string, approved bool, reviewer string) (*router.Outcome, error)
	CompleteReauth(ctx context.Context, intentID string, verified bool) (*router.Outcome, error)
	Execute(ctx context.Context, req router.ExecuteRequest) (*router.Outcome, error)
}

// handleSubmit handles POST /v1/intents. A fresh decision is 201, an
// identical resubmission answered from the record is 200.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[SubmitIntentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if req.Context.CapturedAt.IsZero() {
		req.Context.CapturedAt = requestcontext.Now(ctx)
	}

	userID := requestcontext.UserID(ctx)
	out, err := h.intents.Submit(ctx, router.SubmitRequest{
		UserID:    userID,
		SessionID: requestcontext.SessionID(ctx),
		Intent:    req.Intent,
		Snapshot:  req.Context,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "intent submission failed",
			"request_id", requestID,
			"user_id", userID,
			"intent_id", req.Intent.IntentID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "intent submitted",
		"request_id", requestID,
		"user_id", userID,
		"intent_id", out.IntentID,
		"decision", string(out.Decision),
		"state", string(out.State),
		"replayed", out.Replayed,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	status := http.StatusCreated
	if out.Replayed {
		status = http.StatusOK
	}
	if out.State == router.StatePaused {
		setRetryAfter(w, out.RetryAfter, requestcontext.Now(ctx))
	}
	httputil.WriteJSON(w, status, FromOutcome(out))
}

// handleGet handles GET /v1/intents/{intentID}.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rec, err := h.intents.Get(ctx, chi.URLParam(r, "intentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecord(rec))
}

// handleResolveEscalation handles POST /v1/intents/{intentID}/escalation.
func (h *Handler) handleResolveEscalation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	intentID := chi.URLParam(r, "intentID")

	req, ok := httputil.DecodeAndPrepare[ResolveEscalationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	out, err := h.intents.ResolveEscalation(ctx, intentID, *req.Approved, req.Reviewer)
	if err != nil {
		h.logger.WarnContext(ctx, "escalation not resolved",
			"request_id", requestID,
			"intent_id", intentID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "escalation resolved",
		"request_id", requestID,
		"intent_id", intentID,
		"approved", *req.Approved,
		"reviewer", req.Reviewer,
	)
	httputil.WriteJSON(w, http.StatusOK, FromOutcome(out))
}

// handleCompleteReauth handles POST /v1/intents/{intentID}/reauth.
func (h *Handler) handleCompleteReauth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	intentID := chi.URLParam(r, "intentID")

	req, ok := httputil.DecodeAndPrepare[CompleteReauthRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	out, err := h.intents.CompleteReauth(ctx, intentID, *req.Verified)
	if err != nil {
		h.logger.WarnContext(ctx, "step-up result not applied",
			"request_id", requestID,
			"intent_id", intentID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromOutcome(out))
}

// handleExecute handles POST /v1/execute. Refusals name the consent failure
// kind in failure_kind.
func (h *Handler) handleExecute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ExecuteRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	out, err := h.intents.Execute(ctx, router.ExecuteRequest{
		Token:   req.Token,
		Intent:  req.Intent,
		Payload: req.Payload,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "execution refused",
			"request_id", requestID,
			"client_ip", requestcontext.ClientIP(ctx),
			"error", err,
		)
		writeExecuteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "intent executed",
		"request_id", requestID,
		"intent_id", out.IntentID,
		"ledger_sequence", out.LedgerSequence,
	)
	httputil.WriteJSON(w, http.StatusOK, FromOutcome(out))
}

// ExecuteErrorResponse adds the consent failure kind to the error envelope.
type ExecuteErrorResponse struct {
	httputil.ErrorResponse
	FailureKind string `json:"failure_kind"`
}

func writeExecuteError(w http.ResponseWriter, err error) {
	kind, ok := consent.KindOf(err)
	if !ok {
		httputil.WriteError(w, err)
		return
	}
	code := dErrors.CodeOf(err)
	httputil.WriteJSON(w, httputil.StatusFor(code), ExecuteErrorResponse{
		ErrorResponse: httputil.ErrorResponse{
			Error:            string(code),
			ErrorDescription: "consent token rejected",
		},
		FailureKind: string(kind),
	})
}

func setRetryAfter(w http.ResponseWriter, until, now time.Time) {
	if until.IsZero() {
		return
	}
	secs := int(until.Sub(now).Round(time.Second).Seconds())
	w.Header().Set("Retry-After", strconv.Itoa(max(1, secs)))
}
