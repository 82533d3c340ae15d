/*
handlers.go - HTTP API handlers for the commission engine

PURPOSE:
  Exposes the commission engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Resolution:
    POST   /api/commissions/resolve    Resolve commission for a bet context

  Reports:
    GET    /api/reports/windows        Aggregate by sales window
    GET    /api/reports/sellers        Aggregate by seller
    GET    /api/reports/lotteries      Aggregate by lottery
    GET    /api/reports/draws          Aggregate by draw
    GET    /api/reports/total          Grand total (always one object)

  Reconciliation:
    POST   /api/snapshots/validate     Check snapshot consistency

  Admin:
    POST   /api/admin/recompute        Explicitly-labeled recomputation

  Audit:
    GET    /api/audit                  Query the audit trail

ERROR HANDLING:
  Errors are returned as a uniform {code, message} JSON body:
  - 400: Malformed request payloads
  - 404: Unknown actor/ticket/jugada
  - 422: Business rule violations (COMMISSION_RULE_MISSING)
  - 500: Everything else

SECURITY NOTE:
  No authentication middleware here. Authn/authz belong to the
  surrounding service layer.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/banca/commission-engine/commission"
	"github.com/banca/commission-engine/report"
	"github.com/banca/commission-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Resolver   *commission.Resolver
	Reader     *report.Reader
	Validator  *report.Validator
	Engine     *report.Engine
	Recomputer *report.Recomputer
	Audit      commission.AuditLog
}

// NewHandler wires the engine components around a sqlite store. The store
// implements every collaborator interface, so it is injected everywhere.
func NewHandler(store *sqlite.Store, enforceReventadoRule bool) *Handler {
	resolver := commission.NewResolver(store, store, commission.OriginSeller, enforceReventadoRule)
	return &Handler{
		Store:      store,
		Resolver:   resolver,
		Reader:     report.NewReader(store),
		Validator:  report.NewValidator(store),
		Engine:     report.NewEngine(store, store),
		Recomputer: report.NewRecomputer(store, store, resolver, store),
		Audit:      store,
	}
}

// =============================================================================
// RESOLUTION
// =============================================================================

func (h *Handler) ResolveCommission(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}

	betType := commission.BetType(req.BetType)
	if !betType.Valid() {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "bet_type must be NUMERO or REVENTADO")
		return
	}

	res, err := h.Resolver.Resolve(r.Context(), commission.ResolutionInput{
		ActorID:         commission.ActorID(req.ActorID),
		LotteryID:       commission.LotteryID(req.LotteryID),
		BetType:         betType,
		FinalMultiplier: multiplierFromRequest(req.FinalMultiplier),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toResolutionDTO(res))
}

// =============================================================================
// REPORTS
// =============================================================================

func (h *Handler) ReportByWindow(w http.ResponseWriter, r *http.Request) {
	h.report(w, r, h.Engine.AggregateByWindow)
}

func (h *Handler) ReportBySeller(w http.ResponseWriter, r *http.Request) {
	h.report(w, r, h.Engine.AggregateBySeller)
}

func (h *Handler) ReportByLottery(w http.ResponseWriter, r *http.Request) {
	h.report(w, r, h.Engine.AggregateByLottery)
}

func (h *Handler) ReportByDraw(w http.ResponseWriter, r *http.Request) {
	h.report(w, r, h.Engine.AggregateByDraw)
}

type aggregateFn func(ctx context.Context, f report.Filter) (map[string]report.Aggregate, error)

func (h *Handler) report(w http.ResponseWriter, r *http.Request, aggregate aggregateFn) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	groups, err := aggregate(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]AggregateDTO, 0, len(groups))
	for _, agg := range groups {
		dtos = append(dtos, toAggregateDTO(agg))
	}
	sort.Slice(dtos, func(i, j int) bool { return dtos[i].GroupKey < dtos[j].GroupKey })

	writeJSON(w, http.StatusOK, map[string]any{"groups": dtos})
}

func (h *Handler) ReportTotal(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	total, err := h.Engine.GrandTotal(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAggregateDTO(total))
}

// =============================================================================
// SNAPSHOT VALIDATION
// =============================================================================

func (h *Handler) ValidateSnapshots(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}
	if len(req.TicketIDs) == 0 {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "ticket_ids must not be empty")
		return
	}

	reportResult, err := h.Validator.Validate(r.Context(), ticketIDs(req.TicketIDs))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toValidationDTO(reportResult))
}

// =============================================================================
// ADMIN
// =============================================================================

func (h *Handler) RecomputeCommissions(w http.ResponseWriter, r *http.Request) {
	var req RecomputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}
	if len(req.TicketIDs) == 0 {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "ticket_ids must not be empty")
		return
	}

	changes, err := h.Recomputer.Recompute(r.Context(), ticketIDs(req.TicketIDs), req.Apply)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]ChangeDTO, 0, len(changes))
	for _, c := range changes {
		dtos = append(dtos, toChangeDTO(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"changes": dtos, "applied": req.Apply})
}

// =============================================================================
// AUDIT
// =============================================================================

func (h *Handler) QueryAudit(w http.ResponseWriter, r *http.Request) {
	var filter commission.AuditFilter

	if v := r.URL.Query().Get("actor_id"); v != "" {
		id := commission.ActorID(v)
		filter.ActorID = &id
	}
	if v := r.URL.Query().Get("action"); v != "" {
		filter.Actions = []commission.AuditAction{commission.AuditAction(v)}
	}
	var err error
	if filter.From, err = timeParam(r, "from"); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if filter.To, err = timeParam(r, "to"); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	events, err := h.Audit.Query(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]AuditEventDTO, 0, len(events))
	for _, e := range events {
		dtos = append(dtos, toAuditDTO(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": dtos})
}

// =============================================================================
// REQUEST PARSING
// =============================================================================

func filterFromQuery(r *http.Request) (report.Filter, error) {
	q := r.URL.Query()
	var f report.Filter

	if v := q.Get("window_id"); v != "" {
		id := commission.ActorID(v)
		f.WindowID = &id
	}
	if v := q.Get("seller_id"); v != "" {
		id := commission.ActorID(v)
		f.SellerID = &id
	}
	if v := q.Get("bank_id"); v != "" {
		id := commission.ActorID(v)
		f.BankID = &id
	}
	if v := q.Get("draw_id"); v != "" {
		id := report.DrawID(v)
		f.DrawID = &id
	}
	if v := q.Get("lottery_id"); v != "" {
		id := commission.LotteryID(v)
		f.LotteryID = &id
	}

	var err error
	if f.DateFrom, err = dateParam(r, "date_from"); err != nil {
		return f, err
	}
	if f.DateTo, err = dateParam(r, "date_to"); err != nil {
		return f, err
	}

	if v := q.Get("ticket_ids"); v != "" {
		f.TicketIDs = ticketIDs(strings.Split(v, ","))
	}

	return f, nil
}

func dateParam(r *http.Request, key string) (*time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, fmt.Errorf("%s must be YYYY-MM-DD", key)
	}
	return &t, nil
}

func timeParam(r *http.Request, key string) (*time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("%s must be RFC3339", key)
	}
	return &t, nil
}

func ticketIDs(ids []string) []report.TicketID {
	out := make([]report.TicketID, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, report.TicketID(id))
		}
	}
	return out
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorDTO{Code: code, Message: message})
}

// writeDomainError maps engine errors onto the uniform external shape.
func writeDomainError(w http.ResponseWriter, err error) {
	var ruleMissing *commission.RuleMissingError
	switch {
	case errors.As(err, &ruleMissing):
		writeError(w, http.StatusUnprocessableEntity, ruleMissing.Code(), ruleMissing.Error())
	case commission.IsNotFound(err):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case commission.IsClientError(err):
		writeError(w, http.StatusUnprocessableEntity, commission.CodeCommissionRuleMissing, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}
