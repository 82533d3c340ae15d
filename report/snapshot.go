/*
Package report reads and aggregates immutable commission snapshots.

PURPOSE:
  The reporting side of the commission engine. Snapshots are written once
  by the bet-creation workflow (using commission.Resolver's output) and
  are the sole source of truth for reporting - the resolver is never
  re-invoked to produce report data.

KEY CONCEPTS IN THIS FILE (snapshot.go):
  - Ticket: A purchase receipt grouping one or more jugadas (bet lines)
  - Jugada: One wagered combination; carries its own commission snapshot
  - Snapshot: The immutable percent/amount record derived from a jugada
  - Line: A jugada paired with its parent ticket, the reporting unit
  - LineStore: Persistence interface the stores implement

ELIGIBILITY:
  Reporting only sees jugadas that are not soft-deleted and whose parent
  ticket is not soft-deleted, active, and not cancelled. Period queries
  additionally require a reportable ticket status (ACTIVE, EVALUATED,
  PAID, SETTLED).

SEE ALSO:
  - reader.go: Snapshot reconstruction, including the listero tier
  - aggregate.go: Five-dimension aggregation over lines
  - validator.go: Stored-snapshot consistency checks
*/
package report

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/banca/commission-engine/commission"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TicketID string
type JugadaID string
type DrawID string

// =============================================================================
// TICKET - Purchase receipt (the "bet")
// =============================================================================

type TicketStatus string

const (
	StatusActive    TicketStatus = "ACTIVE"
	StatusEvaluated TicketStatus = "EVALUATED"
	StatusPaid      TicketStatus = "PAID"
	StatusSettled   TicketStatus = "SETTLED"
	StatusCancelled TicketStatus = "CANCELLED"
)

// Reportable reports whether period queries may include this status.
func (s TicketStatus) Reportable() bool {
	switch s {
	case StatusActive, StatusEvaluated, StatusPaid, StatusSettled:
		return true
	default:
		return false
	}
}

type Ticket struct {
	ID       TicketID
	WindowID commission.ActorID
	SellerID commission.ActorID
	BankID   commission.ActorID

	LotteryID commission.LotteryID
	DrawID    DrawID

	Status TicketStatus
	Active bool

	// BusinessDate is the accounting day the ticket belongs to; period
	// filters compare against it, inclusive on both bounds.
	BusinessDate time.Time

	DeletedAt *time.Time
}

// =============================================================================
// JUGADA - One bet line with its frozen commission fields
// =============================================================================

type Jugada struct {
	ID       JugadaID
	TicketID TicketID

	BetType         commission.BetType
	Sale            decimal.Decimal
	FinalMultiplier *decimal.Decimal

	// Commission snapshot, written once at creation. Never mutated; the
	// administrative recompute is a distinct, explicitly-labeled operation.
	CommissionPercent decimal.Decimal
	CommissionAmount  decimal.Decimal
	CommissionOrigin  *commission.Origin
	CommissionRuleID  *string

	// ListeroAmount is the window operator's commission, stored as an
	// absolute amount. No percent rule exists for this tier today.
	ListeroAmount decimal.Decimal

	DeletedAt *time.Time
}

// =============================================================================
// LINE - Jugada joined with its parent ticket
// =============================================================================

// Line is the unit the reporting layer works on.
type Line struct {
	Ticket Ticket
	Jugada Jugada
}

// EligibleForTickets applies the base eligibility rule used by the
// ticket-set read path.
func (l Line) EligibleForTickets() bool {
	return l.Jugada.DeletedAt == nil &&
		l.Ticket.DeletedAt == nil &&
		l.Ticket.Active &&
		l.Ticket.Status != StatusCancelled
}

// EligibleForPeriod additionally requires a reportable ticket status.
func (l Line) EligibleForPeriod() bool {
	return l.EligibleForTickets() && l.Ticket.Status.Reportable()
}

// =============================================================================
// SNAPSHOT - Immutable commission record, as exposed to consumers
// =============================================================================

// Snapshot is one commission record reconstructed from a jugada. Each
// eligible jugada yields two snapshots: the vendor-tier snapshot stored at
// placement time and a listero snapshot derived from the stored amount.
type Snapshot struct {
	TicketID TicketID
	JugadaID JugadaID

	// Sale is the wagered amount the percent applies to.
	Sale decimal.Decimal

	Percent decimal.Decimal
	Amount  decimal.Decimal

	// Origin is nil when no tier was recorded (vendor snapshots may store
	// null; listero origin is inferred only from a positive amount).
	Origin *commission.Origin
	RuleID *string
}

// =============================================================================
// STORE INTERFACES
// =============================================================================

// LineStore loads ticket/jugada pairs. Implementations apply the
// eligibility predicates themselves where they can (SQL), but the reader
// re-applies them in Go so both stores behave identically.
type LineStore interface {
	// LinesForTickets returns all lines of the given tickets, eligible or
	// not. Unknown ids simply yield no lines.
	LinesForTickets(ctx context.Context, ids []TicketID) ([]Line, error)

	// LinesForPeriod returns lines matching the filter's period and
	// equality constraints. Reserved for bounded result sets; unbounded
	// aggregation goes through GroupedReader instead.
	LinesForPeriod(ctx context.Context, filter Filter) ([]Line, error)
}

// GroupedReader answers aggregation queries with a single grouped query
// pushed to the store. This is the mandatory path for unbounded periods:
// loading every line into memory is reserved for explicit ticket-id sets.
type GroupedReader interface {
	AggregateBy(ctx context.Context, dim Dimension, filter Filter) (map[string]Aggregate, error)
}
