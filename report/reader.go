/*
reader.go - Snapshot reconstruction from stored bet lines

PURPOSE:
  Loads persisted, immutable per-jugada commission snapshots by ticket
  set or by period filter. The vendor snapshot is read verbatim from the
  jugada's frozen fields; the listero snapshot is reconstructed, because
  only the absolute listero amount is stored.

LISTERO RECONSTRUCTION:
  percent = sale > 0 ? listeroAmount / sale * 100 : 0
  origin  = LISTERO only when the stored amount is positive, nil otherwise
  ruleId  = always nil (no rule identity exists for this tier today)

  The origin inference from the amount's sign is a heuristic. If listero
  rules ever gain identity, revisit it rather than patching around it.
*/
package report

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/banca/commission-engine/commission"
)

// Reader loads snapshots for reporting and reconciliation.
type Reader struct {
	Lines LineStore
}

func NewReader(lines LineStore) *Reader {
	return &Reader{Lines: lines}
}

// SnapshotsForTickets returns the snapshots of each requested ticket.
// Tickets with no eligible lines are absent from the map; the validator
// treats absence as "missing".
func (r *Reader) SnapshotsForTickets(ctx context.Context, ids []TicketID) (map[TicketID][]Snapshot, error) {
	lines, err := r.Lines.LinesForTickets(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make(map[TicketID][]Snapshot)
	for _, line := range lines {
		if !line.EligibleForTickets() {
			continue
		}
		out[line.Ticket.ID] = append(out[line.Ticket.ID], snapshotsFromLine(line)...)
	}
	return out, nil
}

// SnapshotsForPeriod returns every eligible snapshot matching the filter.
func (r *Reader) SnapshotsForPeriod(ctx context.Context, filter Filter) ([]Snapshot, error) {
	lines, err := r.Lines.LinesForPeriod(ctx, filter)
	if err != nil {
		return nil, err
	}

	var out []Snapshot
	for _, line := range lines {
		if !line.EligibleForPeriod() || !MatchesFilter(line.Ticket, filter) {
			continue
		}
		out = append(out, snapshotsFromLine(line)...)
	}
	return out, nil
}

// snapshotsFromLine expands one jugada into its vendor and listero
// snapshots.
func snapshotsFromLine(line Line) []Snapshot {
	j := line.Jugada

	vendor := Snapshot{
		TicketID: line.Ticket.ID,
		JugadaID: j.ID,
		Sale:     j.Sale,
		Percent:  j.CommissionPercent,
		Amount:   j.CommissionAmount,
		Origin:   j.CommissionOrigin,
		RuleID:   j.CommissionRuleID,
	}

	listero := Snapshot{
		TicketID: line.Ticket.ID,
		JugadaID: j.ID,
		Sale:     j.Sale,
		Percent:  listeroPercent(j),
		Amount:   j.ListeroAmount,
	}
	if j.ListeroAmount.IsPositive() {
		origin := commission.OriginListero
		listero.Origin = &origin
	}

	return []Snapshot{vendor, listero}
}

func listeroPercent(j Jugada) decimal.Decimal {
	if !j.Sale.IsPositive() {
		return decimal.Zero
	}
	return j.ListeroAmount.Div(j.Sale).Mul(commission.Hundred)
}
