/*
resolver.go - Commission resolution orchestrator

PURPOSE:
  Ties policy lookup, validation, matching, business-invariant
  enforcement and audit emission together. This is the only component
  the bet-creation workflow calls at placement time; everything it
  depends on is injected, so it is safe to call from within a
  caller-managed, retried write transaction.

FLOW:
  1. Load the actor's raw policy blob (nullable)
  2. ParsePolicy - malformed/inactive degrades to absent
  3. ResolveFromPolicy - pure matching
  4. Enforce the reventado-nonzero invariant
  5. Append one audit event, success or failure

ENFORCEMENT:
  When EnforceReventadoRule is on and a REVENTADO bet resolves to exactly
  0%, resolution fails with COMMISSION_RULE_MISSING. A reventado bet with
  no commission is a policy-authoring defect, never a valid outcome.
  NUMERO may legitimately resolve to 0%.

STATE:
  The resolver holds no mutable state beyond audit emission. One resolver
  is instantiated per tier (Origin), which keeps the single-tier algorithm
  reusable across seller/window/bank without a cascade.
*/
package commission

import (
	"context"
	"time"
)

// PolicyStore loads the raw policy document attached to an actor record.
// A nil blob with a nil error means the actor exists but carries no policy.
// Unknown actors surface ErrActorNotFound, which propagates unmodified.
type PolicyStore interface {
	ActorPolicy(ctx context.Context, actorID ActorID) ([]byte, error)
}

// Resolver resolves commission percentages for one distribution tier.
type Resolver struct {
	Policies PolicyStore
	Audit    AuditLog

	// Origin tags every resolution with this resolver's tier.
	Origin Origin

	// EnforceReventadoRule activates the reventado-nonzero invariant.
	EnforceReventadoRule bool

	// Now is the clock used for policy activity checks. Injected for tests.
	Now func() time.Time
}

// NewResolver creates a resolver for the given tier.
func NewResolver(policies PolicyStore, audit AuditLog, origin Origin, enforce bool) *Resolver {
	return &Resolver{
		Policies:             policies,
		Audit:                audit,
		Origin:               origin,
		EnforceReventadoRule: enforce,
		Now:                  time.Now,
	}
}

// Resolve computes the commission for one bet line. Every completed
// resolution, successful or rule-missing, appends one audit event.
// Storage failures propagate without an event: nothing was decided.
func (r *Resolver) Resolve(ctx context.Context, input ResolutionInput) (Resolution, error) {
	raw, err := r.Policies.ActorPolicy(ctx, input.ActorID)
	if err != nil {
		return Resolution{}, err
	}

	policy := ParsePolicy(raw, r.Now())
	res := ResolveFromPolicy(policy, input, r.Origin)

	if input.BetType == BetReventado && r.EnforceReventadoRule && res.Percent.IsZero() {
		violation := &RuleMissingError{
			ActorID:   input.ActorID,
			LotteryID: input.LotteryID,
			BetType:   input.BetType,
		}
		if err := r.audit(ctx, AuditRuleMissing, input, res, violation.Code()); err != nil {
			return Resolution{}, err
		}
		return Resolution{}, violation
	}

	if err := r.audit(ctx, AuditResolved, input, res, ""); err != nil {
		return Resolution{}, err
	}
	return res, nil
}

func (r *Resolver) audit(ctx context.Context, action AuditAction, input ResolutionInput, res Resolution, code string) error {
	return r.Audit.Append(ctx, AuditEvent{
		At:              r.Now(),
		Action:          action,
		ActorID:         input.ActorID,
		LotteryID:       input.LotteryID,
		BetType:         input.BetType,
		FinalMultiplier: input.FinalMultiplier,
		Percent:         res.Percent,
		Origin:          r.Origin,
		RuleID:          res.RuleID,
		ErrorCode:       code,
	})
}
