/*
matcher.go - Rule matching algorithms

PURPOSE:
  Two independent, side-effect-free algorithms that select a rule (and
  its percent) from a policy document for a given bet context. Exposed
  as ResolveFromPolicy so callers can resolve against an in-hand policy
  without any storage access - the resolver and the administrative
  recompute path both go through this single entry point.

WHY TWO ALGORITHMS:
  NUMERO rules are authored as a priority-ordered list, so matching is
  cheap, predictable first-match: the boundary multiplier belongs to the
  first-declared rule. REVENTADO bands may be nested or overlapping by
  design, so among the bands containing the multiplier the most specific
  one (narrowest width) must win regardless of declaration order; ties
  break toward the smallest minimum.

FALLBACK LADDER (both types):
  ranged match → first rangeless rule → policy default percent (nil rule id)
  An absent policy resolves to 0% with a nil rule id.
*/
package commission

import "github.com/shopspring/decimal"

// ResolveFromPolicy selects the commission percent for the given input from
// a single tier's policy. Pure function: no storage, no logging, no clock.
// A nil policy (absent, malformed, or inactive) resolves to 0%.
func ResolveFromPolicy(policy *PolicyDocument, input ResolutionInput, origin Origin) Resolution {
	if policy == nil {
		return Resolution{Percent: decimal.Zero, Origin: origin}
	}

	switch input.BetType {
	case BetReventado:
		return matchReventado(policy, input, origin)
	default:
		return matchNumero(policy, input, origin)
	}
}

// =============================================================================
// NUMERO - Priority-ordered first-match
// =============================================================================

func matchNumero(policy *PolicyDocument, input ResolutionInput, origin Origin) Resolution {
	candidates := filterRules(policy.Rules, BetNumero, input.LotteryID)

	// A given multiplier scans the list in authored order; the first band
	// containing it wins. First-match, not best-match.
	if input.FinalMultiplier != nil {
		for _, rule := range candidates {
			if rule.MultiplierRange != nil && rule.MultiplierRange.Contains(*input.FinalMultiplier) {
				return resolution(rule, origin)
			}
		}
	}

	if rule, ok := firstRangeless(candidates); ok {
		return resolution(rule, origin)
	}

	return defaultResolution(policy, origin)
}

// =============================================================================
// REVENTADO - Narrowest band wins
// =============================================================================

func matchReventado(policy *PolicyDocument, input ResolutionInput, origin Origin) Resolution {
	candidates := filterRules(policy.Rules, BetReventado, input.LotteryID)

	// Only bands containing the multiplier compete; without a multiplier no
	// band can match, exactly as for NUMERO.
	if input.FinalMultiplier != nil {
		if best, ok := narrowestContaining(candidates, *input.FinalMultiplier); ok {
			return resolution(best, origin)
		}
	}

	if rule, ok := firstRangeless(candidates); ok {
		return resolution(rule, origin)
	}

	return defaultResolution(policy, origin)
}

// narrowestContaining picks, among the ranged rules containing m, the one
// with the smallest width (max-min); ties break by smallest min.
// Declaration order never decides.
func narrowestContaining(rules []Rule, m decimal.Decimal) (Rule, bool) {
	var (
		best  Rule
		found bool
	)
	for _, rule := range rules {
		if rule.MultiplierRange == nil || !rule.MultiplierRange.Contains(m) {
			continue
		}
		if !found || narrower(*rule.MultiplierRange, *best.MultiplierRange) {
			best = rule
			found = true
		}
	}
	return best, found
}

func narrower(a, b MultiplierRange) bool {
	wa, wb := a.Width(), b.Width()
	if !wa.Equal(wb) {
		return wa.LessThan(wb)
	}
	return a.Min.LessThan(b.Min)
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// filterRules keeps rules of the requested bet type that are either global
// (no lottery restriction) or pinned to the requested lottery.
func filterRules(rules []Rule, betType BetType, lottery LotteryID) []Rule {
	var out []Rule
	for _, rule := range rules {
		if rule.BetType != betType {
			continue
		}
		if rule.LotteryID != "" && rule.LotteryID != lottery {
			continue
		}
		out = append(out, rule)
	}
	return out
}

func firstRangeless(rules []Rule) (Rule, bool) {
	for _, rule := range rules {
		if rule.MultiplierRange == nil {
			return rule, true
		}
	}
	return Rule{}, false
}

func resolution(rule Rule, origin Origin) Resolution {
	id := rule.ID
	return Resolution{Percent: rule.Percent, Origin: origin, RuleID: &id}
}

func defaultResolution(policy *PolicyDocument, origin Origin) Resolution {
	return Resolution{Percent: policy.DefaultPercent, Origin: origin}
}
