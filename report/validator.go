/*
validator.go - Stored-snapshot consistency checks

PURPOSE:
  Verifies that the commission amount frozen on each jugada still matches
  its percent: |storedAmount - sale*percent/100| must stay within an
  absolute tolerance of 0.01 base currency units. The tolerance absorbs
  céntimo rounding at write time, not policy drift.

READ-ONLY:
  The validator reports; it never corrects. Fixing a drifted snapshot is
  the administrative recompute's job (recompute.go), and only ever as an
  explicitly-labeled operation.
*/
package report

import (
	"context"

	"github.com/shopspring/decimal"
)

// Tolerance is the absolute mismatch allowed between the stored amount and
// the recomputed sale*percent/100, in base currency units.
var Tolerance = decimal.NewFromFloat(0.01)

// Mismatch describes one snapshot whose stored amount disagrees with its
// percent.
type Mismatch struct {
	TicketID TicketID
	JugadaID JugadaID
	Expected decimal.Decimal
	Stored   decimal.Decimal
}

// ValidationReport is the validator's result object. Inconsistencies are
// reported here, never raised as errors.
type ValidationReport struct {
	Valid            bool
	MissingSnapshots []TicketID
	InvalidSnapshots []Mismatch
}

// Validator checks stored snapshots against the percent/amount relationship.
type Validator struct {
	Lines LineStore
}

func NewValidator(lines LineStore) *Validator {
	return &Validator{Lines: lines}
}

// Validate checks every requested ticket. A ticket with zero eligible
// snapshot rows is missing; a jugada outside tolerance is invalid.
func (v *Validator) Validate(ctx context.Context, ids []TicketID) (ValidationReport, error) {
	lines, err := v.Lines.LinesForTickets(ctx, ids)
	if err != nil {
		return ValidationReport{}, err
	}

	byTicket := make(map[TicketID][]Line)
	for _, line := range lines {
		if !line.EligibleForTickets() {
			continue
		}
		byTicket[line.Ticket.ID] = append(byTicket[line.Ticket.ID], line)
	}

	report := ValidationReport{Valid: true}

	for _, id := range ids {
		ticketLines, ok := byTicket[id]
		if !ok {
			report.Valid = false
			report.MissingSnapshots = append(report.MissingSnapshots, id)
			continue
		}
		for _, line := range ticketLines {
			j := line.Jugada
			expected := j.Sale.Mul(j.CommissionPercent).Div(decimal.NewFromInt(100))
			if j.CommissionAmount.Sub(expected).Abs().GreaterThan(Tolerance) {
				report.Valid = false
				report.InvalidSnapshots = append(report.InvalidSnapshots, Mismatch{
					TicketID: id,
					JugadaID: j.ID,
					Expected: expected,
					Stored:   j.CommissionAmount,
				})
			}
		}
	}

	return report, nil
}
