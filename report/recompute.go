/*
recompute.go - Explicitly-labeled administrative recomputation

PURPOSE:
  Snapshots are written once and never mutated by normal operation. When
  a policy-authoring defect is discovered after the fact, an administrator
  may recompute the affected tickets' commission against current policy.
  This is a distinct operation with its own audit action; it is never
  invoked by the reporting path.

SAFETY:
  - Dry run by default: changes are proposed, nothing is written.
  - All-or-nothing: every line must resolve cleanly before any update is
    applied; a single COMMISSION_RULE_MISSING aborts the batch.
  - Every applied change appends a commission_recomputed audit event
    referencing the jugada.
*/
package report

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/banca/commission-engine/commission"
)

// CommissionUpdater rewrites a jugada's commission snapshot fields. Only
// the recomputer calls this; nothing else in the engine updates snapshots.
type CommissionUpdater interface {
	UpdateJugadaCommission(ctx context.Context, id JugadaID, percent, amount decimal.Decimal, origin *commission.Origin, ruleID *string) error
}

// Change is one proposed (or applied) snapshot rewrite.
type Change struct {
	TicketID TicketID
	JugadaID JugadaID

	OldPercent decimal.Decimal
	NewPercent decimal.Decimal
	OldAmount  decimal.Decimal
	NewAmount  decimal.Decimal
	NewRuleID  *string

	Applied bool
}

// Recomputer re-resolves commission for explicit ticket sets.
type Recomputer struct {
	Lines    LineStore
	Updater  CommissionUpdater
	Resolver *commission.Resolver
	Audit    commission.AuditLog
}

func NewRecomputer(lines LineStore, updater CommissionUpdater, resolver *commission.Resolver, audit commission.AuditLog) *Recomputer {
	return &Recomputer{Lines: lines, Updater: updater, Resolver: resolver, Audit: audit}
}

// Recompute re-runs resolution for every eligible line of the given
// tickets. With apply=false it only reports what would change.
func (r *Recomputer) Recompute(ctx context.Context, ids []TicketID, apply bool) ([]Change, error) {
	lines, err := r.Lines.LinesForTickets(ctx, ids)
	if err != nil {
		return nil, err
	}

	// Resolve everything first; abort before any write on failure.
	var changes []Change
	for _, line := range lines {
		if !line.EligibleForTickets() {
			continue
		}
		j := line.Jugada

		res, err := r.Resolver.Resolve(ctx, commission.ResolutionInput{
			ActorID:         line.Ticket.SellerID,
			LotteryID:       line.Ticket.LotteryID,
			BetType:         j.BetType,
			FinalMultiplier: j.FinalMultiplier,
		})
		if err != nil {
			return nil, err
		}

		changes = append(changes, Change{
			TicketID:   line.Ticket.ID,
			JugadaID:   j.ID,
			OldPercent: j.CommissionPercent,
			NewPercent: res.Percent,
			OldAmount:  j.CommissionAmount,
			NewAmount:  commission.CommissionAmount(j.Sale, res.Percent),
			NewRuleID:  res.RuleID,
		})
	}

	if !apply {
		return changes, nil
	}

	origin := r.Resolver.Origin
	for i := range changes {
		c := &changes[i]
		if err := r.Updater.UpdateJugadaCommission(ctx, c.JugadaID, c.NewPercent, c.NewAmount, &origin, c.NewRuleID); err != nil {
			return changes, err
		}
		c.Applied = true

		event := commission.AuditEvent{
			At:        r.Resolver.Now(),
			Action:    commission.AuditRecomputed,
			Percent:   c.NewPercent,
			Origin:    origin,
			RuleID:    c.NewRuleID,
			Reference: string(c.JugadaID),
		}
		if err := r.Audit.Append(ctx, event); err != nil {
			return changes, err
		}
	}

	return changes, nil
}
