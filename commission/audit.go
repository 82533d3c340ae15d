package commission

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AUDIT LOG - Append-only trail of money-relevant decisions
// =============================================================================

// AuditAction identifies what kind of decision was recorded.
type AuditAction string

const (
	AuditResolved    AuditAction = "commission_resolved"
	AuditRuleMissing AuditAction = "commission_rule_missing"
	AuditRecomputed  AuditAction = "commission_recomputed"
)

// AuditEvent captures the inputs and outcome of one resolution. Every call
// to the resolver emits exactly one event, successful or not.
type AuditEvent struct {
	At        time.Time
	Action    AuditAction
	ActorID   ActorID
	LotteryID LotteryID
	BetType   BetType

	// FinalMultiplier echoes the input, nil when not supplied.
	FinalMultiplier *decimal.Decimal

	// Outcome. Percent is zero and RuleID nil on rule-missing failures.
	Percent   decimal.Decimal
	Origin    Origin
	RuleID    *string
	ErrorCode string

	// Reference ties administrative events to the record they touched
	// (e.g., a jugada id on recompute). Empty for placement-time events.
	Reference string
}

// AuditLog stores audit events. Append-only: no update, no delete.
type AuditLog interface {
	Append(ctx context.Context, event AuditEvent) error
	Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)
}

// AuditFilter narrows audit queries. Nil/empty fields impose no constraint.
type AuditFilter struct {
	ActorID *ActorID
	Actions []AuditAction
	From    *time.Time
	To      *time.Time
}
