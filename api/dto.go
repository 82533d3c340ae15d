/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract. Money and
  percent fields serialize as decimal strings - clients must not receive
  binary-float money.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/banca/commission-engine/commission"
	"github.com/banca/commission-engine/report"
)

// =============================================================================
// RESOLUTION
// =============================================================================

// ResolveRequest is the bet context supplied by the bet-creation workflow.
type ResolveRequest struct {
	ActorID         string   `json:"actor_id"`
	LotteryID       string   `json:"lottery_id"`
	BetType         string   `json:"bet_type"`
	FinalMultiplier *float64 `json:"final_multiplier,omitempty"`
}

// ResolutionDTO is the resolver's outcome.
type ResolutionDTO struct {
	Percent string  `json:"percent"`
	Origin  string  `json:"origin"`
	RuleID  *string `json:"rule_id"`
}

func toResolutionDTO(res commission.Resolution) ResolutionDTO {
	return ResolutionDTO{
		Percent: res.Percent.String(),
		Origin:  string(res.Origin),
		RuleID:  res.RuleID,
	}
}

// =============================================================================
// AGGREGATION
// =============================================================================

// AggregateDTO is one group's totals.
type AggregateDTO struct {
	GroupKey    string `json:"group_key"`
	DisplayName string `json:"display_name"`

	TotalSales             string `json:"total_sales"`
	TotalCommission        string `json:"total_commission"`
	TotalVendorCommission  string `json:"total_vendor_commission"`
	TotalListeroCommission string `json:"total_listero_commission"`

	TicketCount int64 `json:"ticket_count"`
	JugadaCount int64 `json:"jugada_count"`
}

func toAggregateDTO(agg report.Aggregate) AggregateDTO {
	return AggregateDTO{
		GroupKey:               agg.GroupKey,
		DisplayName:            agg.DisplayName,
		TotalSales:             agg.TotalSales.StringFixed(2),
		TotalCommission:        agg.TotalCommission.StringFixed(2),
		TotalVendorCommission:  agg.TotalVendorCommission.StringFixed(2),
		TotalListeroCommission: agg.TotalListeroCommission.StringFixed(2),
		TicketCount:            agg.TicketCount,
		JugadaCount:            agg.JugadaCount,
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

type ValidateRequest struct {
	TicketIDs []string `json:"ticket_ids"`
}

type ValidationReportDTO struct {
	Valid            bool          `json:"valid"`
	MissingSnapshots []string      `json:"missing_snapshots"`
	InvalidSnapshots []MismatchDTO `json:"invalid_snapshots"`
}

type MismatchDTO struct {
	TicketID string `json:"ticket_id"`
	JugadaID string `json:"jugada_id"`
	Expected string `json:"expected"`
	Stored   string `json:"stored"`
}

func toValidationDTO(r report.ValidationReport) ValidationReportDTO {
	dto := ValidationReportDTO{
		Valid:            r.Valid,
		MissingSnapshots: []string{},
		InvalidSnapshots: []MismatchDTO{},
	}
	for _, id := range r.MissingSnapshots {
		dto.MissingSnapshots = append(dto.MissingSnapshots, string(id))
	}
	for _, m := range r.InvalidSnapshots {
		dto.InvalidSnapshots = append(dto.InvalidSnapshots, MismatchDTO{
			TicketID: string(m.TicketID),
			JugadaID: string(m.JugadaID),
			Expected: m.Expected.StringFixed(2),
			Stored:   m.Stored.StringFixed(2),
		})
	}
	return dto
}

// =============================================================================
// ADMIN RECOMPUTE
// =============================================================================

type RecomputeRequest struct {
	TicketIDs []string `json:"ticket_ids"`
	Apply     bool     `json:"apply"`
}

type ChangeDTO struct {
	TicketID   string  `json:"ticket_id"`
	JugadaID   string  `json:"jugada_id"`
	OldPercent string  `json:"old_percent"`
	NewPercent string  `json:"new_percent"`
	OldAmount  string  `json:"old_amount"`
	NewAmount  string  `json:"new_amount"`
	NewRuleID  *string `json:"new_rule_id"`
	Applied    bool    `json:"applied"`
}

func toChangeDTO(c report.Change) ChangeDTO {
	return ChangeDTO{
		TicketID:   string(c.TicketID),
		JugadaID:   string(c.JugadaID),
		OldPercent: c.OldPercent.String(),
		NewPercent: c.NewPercent.String(),
		OldAmount:  c.OldAmount.StringFixed(2),
		NewAmount:  c.NewAmount.StringFixed(2),
		NewRuleID:  c.NewRuleID,
		Applied:    c.Applied,
	}
}

// =============================================================================
// AUDIT
// =============================================================================

type AuditEventDTO struct {
	At              string  `json:"at"`
	Action          string  `json:"action"`
	ActorID         string  `json:"actor_id"`
	LotteryID       string  `json:"lottery_id"`
	BetType         string  `json:"bet_type"`
	FinalMultiplier *string `json:"final_multiplier,omitempty"`
	Percent         string  `json:"percent"`
	Origin          string  `json:"origin"`
	RuleID          *string `json:"rule_id"`
	ErrorCode       string  `json:"error_code,omitempty"`
	Reference       string  `json:"reference,omitempty"`
}

func toAuditDTO(e commission.AuditEvent) AuditEventDTO {
	dto := AuditEventDTO{
		At:        e.At.Format(time.RFC3339Nano),
		Action:    string(e.Action),
		ActorID:   string(e.ActorID),
		LotteryID: string(e.LotteryID),
		BetType:   string(e.BetType),
		Percent:   e.Percent.String(),
		Origin:    string(e.Origin),
		RuleID:    e.RuleID,
		ErrorCode: e.ErrorCode,
		Reference: e.Reference,
	}
	if e.FinalMultiplier != nil {
		s := e.FinalMultiplier.String()
		dto.FinalMultiplier = &s
	}
	return dto
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorDTO is the uniform external error shape.
type ErrorDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func multiplierFromRequest(f *float64) *decimal.Decimal {
	if f == nil {
		return nil
	}
	d := decimal.NewFromFloat(*f)
	return &d
}
