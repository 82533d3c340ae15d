/*
Package commission provides the core commission resolution engine.

PURPOSE:
  This package contains the domain types and algorithms for computing
  commission percentages owed to sales agents in a multi-tier lottery
  distribution network (seller → sales window → bank). Resolution happens
  once, at bet-placement time; the result is persisted as an immutable
  snapshot on the bet line and is never recomputed by the reporting path.

KEY CONCEPTS IN THIS FILE (types.go):
  - BetType: NUMERO (straight number) or REVENTADO (busted-ball side bet)
  - Origin: The distribution tier whose policy produced a resolution
  - ResolutionInput/Resolution: The resolver's request/response pair
  - ActorID/LotteryID: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for percents and amounts - money
     arithmetic must not drift
  2. Type Safety: Strong typing for IDs prevents mixing actor/lottery IDs
  3. Purity: Matching is side-effect free; orchestration lives in resolver.go
  4. Auditability: Every resolution emits an audit event (audit.go)

SEE ALSO:
  - policy.go: Policy document parsing and validation
  - matcher.go: Rule matching algorithms (NUMERO vs REVENTADO)
  - resolver.go: Orchestration, enforcement, audit emission
*/
package commission

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// ActorID identifies a participant in the distribution network.
// Sellers, sales windows, banks and listeros are all actors.
type ActorID string

// LotteryID identifies a lottery product (e.g., "tiempos", "nacional").
type LotteryID string

// =============================================================================
// BET TYPE - What kind of wager a rule applies to
// =============================================================================

type BetType string

const (
	// BetNumero is a straight number bet. A zero commission is a legitimate
	// outcome for this type.
	BetNumero BetType = "NUMERO"

	// BetReventado is the busted-ball side bet. Business invariant: a
	// reventado bet must always carry a nonzero commission when enforcement
	// is active (see resolver.go).
	BetReventado BetType = "REVENTADO"
)

// Valid reports whether bt is a known bet type.
func (bt BetType) Valid() bool {
	return bt == BetNumero || bt == BetReventado
}

// =============================================================================
// ORIGIN - Distribution tier that produced a commission
// =============================================================================

// Origin tags a resolved commission with the tier whose policy matched.
// The reporting layer uses it to split commission columns per tier.
type Origin string

const (
	OriginSeller Origin = "SELLER"
	OriginWindow Origin = "WINDOW"
	OriginBank   Origin = "BANK"

	// OriginListero marks window-operator commission. Listero commission is
	// tracked as an absolute amount rather than a percent rule; its origin
	// is inferred from the sign of the stored amount (see report package).
	OriginListero Origin = "LISTERO"
)

// =============================================================================
// RESOLUTION - Input and output of the resolver
// =============================================================================

// ResolutionInput carries the bet context available at placement time.
type ResolutionInput struct {
	ActorID   ActorID
	LotteryID LotteryID
	BetType   BetType

	// FinalMultiplier is the reventado/numero payout multiplier, when the
	// draw variant carries one. Nil when not applicable.
	FinalMultiplier *decimal.Decimal
}

// Resolution is the outcome of resolving a single tier's policy.
type Resolution struct {
	// Percent in [0, 100].
	Percent decimal.Decimal

	// Origin identifies the resolving tier.
	Origin Origin

	// RuleID is the matched rule, nil when the default percent (or an
	// absent policy) produced the result.
	RuleID *string
}

// Hundred is the percent divisor used across the engine.
var Hundred = decimal.NewFromInt(100)

// CommissionAmount computes the commission owed on a sale at the given
// percent, rounded to céntimos (2 decimal places).
func CommissionAmount(sale, percent decimal.Decimal) decimal.Decimal {
	return sale.Mul(percent).Div(Hundred).Round(2)
}
