package httptransport

import (
	"context"
	"iter"
	"net/http"
	"strconv"

	"payguard/internal/ledger"
	"payguard/internal/policy"
	dErrors "payguard/pkg/domain-errors"
	"payguard/pkg/platform/httputil"
	"payguard/pkg/requestcontext"
)

const (
	defaultLedgerPage = 100
	maxLedgerPage     = 1000
)

// LedgerReader is the read side of the audit ledger.
type LedgerReader interface {
	Read(ctx context.Context, f ledger.Filter) iter.Seq2[ledger.Entry, error]
	VerifyChain(ctx context.Context) (ledger.ChainReport, error)
}

// handleLedgerRead handles GET /v1/ledger. Query parameters: intent_id,
// user_id, decision, event, from (sequence) and limit.
func (h *Handler) handleLedgerRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	page := LedgerPage{Entries: make([]ledger.Entry, 0, f.Limit)}
	for e, err := range h.ledger.Read(ctx, f) {
		if err != nil {
			h.logger.ErrorContext(ctx, "ledger read failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
		page.Entries = append(page.Entries, e)
	}
	if len(page.Entries) == f.Limit {
		page.NextSequence = page.Entries[len(page.Entries)-1].Sequence + 1
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

// handleLedgerVerify handles GET /v1/ledger/verify. A broken chain is still a
// 200; the body says where it broke.
func (h *Handler) handleLedgerVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	report, err := h.ledger.VerifyChain(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !report.Valid {
		h.logger.ErrorContext(ctx, "ledger verification reported a broken chain",
			"request_id", requestcontext.RequestID(ctx),
			"broken_at", report.BrokenAt,
			"reason", report.Reason,
		)
	}
	httputil.WriteJSON(w, http.StatusOK, FromReport(report))
}

func parseFilter(r *http.Request) (ledger.Filter, error) {
	q := r.URL.Query()
	f := ledger.Filter{
		IntentID: q.Get("intent_id"),
		UserID:   q.Get("user_id"),
		Decision: q.Get("decision"),
		Event:    ledger.Event(q.Get("event")),
		Limit:    defaultLedgerPage,
	}
	if f.Decision != "" {
		if _, ok := policy.ParseDecision(f.Decision); !ok {
			return f, dErrors.New(dErrors.CodeInvalidInput, "unknown decision "+strconv.Quote(f.Decision))
		}
	}
	if v := q.Get("from"); v != "" {
		from, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return f, dErrors.New(dErrors.CodeInvalidInput, "from must be a sequence number")
		}
		f.FromSequence = from
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > maxLedgerPage {
			return f, dErrors.New(dErrors.CodeInvalidInput, "limit must be between 1 and "+strconv.Itoa(maxLedgerPage))
		}
		f.Limit = limit
	}
	return f, nil
}
