/*
aggregate.go - Commission aggregation across five dimensions

PURPOSE:
  Groups eligible bet lines into exact sums and counts by sales window,
  seller, lottery, draw, or as one grand total. Consumed by the external
  reporting layer; presentation (formatting, pagination) is its problem.

TWO CODE PATHS, ON PURPOSE:
  - Bounded sets (an explicit ticket-id set) fold in memory over lines
    loaded through the LineStore.
  - Unbounded periods are answered by ONE grouped query pushed to the
    store through GroupedReader.
  The split is intentional and must not be collapsed: folding an
  unbounded period in memory is a silent performance regression waiting
  for data growth.

COUNTING:
  TicketCount counts distinct parent tickets; JugadaCount counts bet
  lines. One ticket contributes 1 to the former and >=1 to the latter.

COLUMNS:
  TotalCommission sums all recorded tier commission. TotalVendorCommission
  sums only commission whose recorded origin is the seller tier - other
  tiers are excluded from that column but still included in the total.
  TotalListeroCommission sums the stored listero amounts.
*/
package report

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/banca/commission-engine/commission"
)

// =============================================================================
// FILTER - All present fields are ANDed
// =============================================================================

// Filter narrows aggregation and period reads. An absent field imposes no
// constraint - never "match nothing" or "match null".
type Filter struct {
	WindowID  *commission.ActorID
	SellerID  *commission.ActorID
	BankID    *commission.ActorID
	DrawID    *DrawID
	LotteryID *commission.LotteryID

	// Business-date range, inclusive on both bounds.
	DateFrom *time.Time
	DateTo   *time.Time

	// TicketIDs switches the engine to the bounded in-memory path.
	TicketIDs []TicketID
}

// MatchesFilter applies the filter's equality and date predicates to a
// ticket. This is the in-memory twin of the SQL predicate builder in
// store/sqlite; both encode the same semantics.
func MatchesFilter(t Ticket, f Filter) bool {
	if f.WindowID != nil && t.WindowID != *f.WindowID {
		return false
	}
	if f.SellerID != nil && t.SellerID != *f.SellerID {
		return false
	}
	if f.BankID != nil && t.BankID != *f.BankID {
		return false
	}
	if f.DrawID != nil && t.DrawID != *f.DrawID {
		return false
	}
	if f.LotteryID != nil && t.LotteryID != *f.LotteryID {
		return false
	}
	day := truncateDay(t.BusinessDate)
	if f.DateFrom != nil && day.Before(truncateDay(*f.DateFrom)) {
		return false
	}
	if f.DateTo != nil && day.After(truncateDay(*f.DateTo)) {
		return false
	}
	return true
}

// truncateDay normalizes to UTC before dropping the time of day, so a
// business date carried in another location lands on the same accounting
// day as its stored (UTC) form.
func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// AGGREGATE - One group's sums and counts
// =============================================================================

// Aggregate holds one group's totals. Empty groups carry zero sums and
// counts, never nulls.
type Aggregate struct {
	GroupKey    string
	DisplayName string

	TotalSales             decimal.Decimal
	TotalCommission        decimal.Decimal
	TotalVendorCommission  decimal.Decimal
	TotalListeroCommission decimal.Decimal

	TicketCount int64
	JugadaCount int64
}

// ZeroAggregate returns an initialized (not null) aggregate for a group.
func ZeroAggregate(key, name string) Aggregate {
	return Aggregate{
		GroupKey:               key,
		DisplayName:            name,
		TotalSales:             decimal.Zero,
		TotalCommission:        decimal.Zero,
		TotalVendorCommission:  decimal.Zero,
		TotalListeroCommission: decimal.Zero,
	}
}

// =============================================================================
// DIMENSIONS
// =============================================================================

type Dimension string

const (
	DimWindow  Dimension = "window"
	DimSeller  Dimension = "seller"
	DimLottery Dimension = "lottery"
	DimDraw    Dimension = "draw"
	DimTotal   Dimension = "total"
)

// GroupKey extracts the grouping key of a ticket for a dimension. The
// grand total groups everything under the empty key.
func (d Dimension) GroupKey(t Ticket) string {
	switch d {
	case DimWindow:
		return string(t.WindowID)
	case DimSeller:
		return string(t.SellerID)
	case DimLottery:
		return string(t.LotteryID)
	case DimDraw:
		return string(t.DrawID)
	default:
		return ""
	}
}

// TotalDisplayName labels the grand-total group.
const TotalDisplayName = "TOTAL"

// =============================================================================
// ENGINE
// =============================================================================

// Engine aggregates commission snapshots. Lines serves the bounded path,
// Grouped the pushed-down path; both are mandatory collaborators.
type Engine struct {
	Lines   LineStore
	Grouped GroupedReader
}

func NewEngine(lines LineStore, grouped GroupedReader) *Engine {
	return &Engine{Lines: lines, Grouped: grouped}
}

func (e *Engine) AggregateByWindow(ctx context.Context, f Filter) (map[string]Aggregate, error) {
	return e.aggregate(ctx, DimWindow, f)
}

func (e *Engine) AggregateBySeller(ctx context.Context, f Filter) (map[string]Aggregate, error) {
	return e.aggregate(ctx, DimSeller, f)
}

func (e *Engine) AggregateByLottery(ctx context.Context, f Filter) (map[string]Aggregate, error) {
	return e.aggregate(ctx, DimLottery, f)
}

func (e *Engine) AggregateByDraw(ctx context.Context, f Filter) (map[string]Aggregate, error) {
	return e.aggregate(ctx, DimDraw, f)
}

// GrandTotal always returns one result object, even over an empty set.
func (e *Engine) GrandTotal(ctx context.Context, f Filter) (Aggregate, error) {
	groups, err := e.aggregate(ctx, DimTotal, f)
	if err != nil {
		return Aggregate{}, err
	}
	if agg, ok := groups[""]; ok {
		return agg, nil
	}
	return ZeroAggregate("", TotalDisplayName), nil
}

func (e *Engine) aggregate(ctx context.Context, dim Dimension, f Filter) (map[string]Aggregate, error) {
	// Bounded path: an explicit ticket-id set is small by construction.
	if len(f.TicketIDs) > 0 {
		lines, err := e.Lines.LinesForTickets(ctx, f.TicketIDs)
		if err != nil {
			return nil, err
		}
		var eligible []Line
		for _, line := range lines {
			if line.EligibleForPeriod() && MatchesFilter(line.Ticket, f) {
				eligible = append(eligible, line)
			}
		}
		return Fold(dim, eligible), nil
	}

	// Unbounded path: one grouped query pushed to the store.
	return e.Grouped.AggregateBy(ctx, dim, f)
}

// =============================================================================
// FOLD - In-memory accumulation, shared with the memory store
// =============================================================================

// Fold groups already-eligible lines by dimension. Exported so the memory
// store's GroupedReader and the engine's bounded path share one
// accumulation, keeping both paths arithmetically identical.
func Fold(dim Dimension, lines []Line) map[string]Aggregate {
	groups := make(map[string]Aggregate)
	seenTickets := make(map[string]map[TicketID]struct{})

	for _, line := range lines {
		key := dim.GroupKey(line.Ticket)
		agg, ok := groups[key]
		if !ok {
			agg = ZeroAggregate(key, displayName(dim, key))
			seenTickets[key] = make(map[TicketID]struct{})
		}

		j := line.Jugada
		agg.TotalSales = agg.TotalSales.Add(j.Sale)
		agg.TotalCommission = agg.TotalCommission.Add(j.CommissionAmount)
		if j.CommissionOrigin != nil && *j.CommissionOrigin == commission.OriginSeller {
			agg.TotalVendorCommission = agg.TotalVendorCommission.Add(j.CommissionAmount)
		}
		agg.TotalListeroCommission = agg.TotalListeroCommission.Add(j.ListeroAmount)
		agg.JugadaCount++

		if _, seen := seenTickets[key][line.Ticket.ID]; !seen {
			seenTickets[key][line.Ticket.ID] = struct{}{}
			agg.TicketCount++
		}

		groups[key] = agg
	}

	return groups
}

func displayName(dim Dimension, key string) string {
	if dim == DimTotal {
		return TotalDisplayName
	}
	// Stores that know entity names overwrite this; the fold itself only
	// has ids.
	return key
}
