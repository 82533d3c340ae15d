/*
policy.go - Policy document parsing and validation

PURPOSE:
  Converts the raw JSON policy blob stored on an actor record into a
  validated, versioned PolicyDocument - or rejects it. Actor policies are
  authored by an out-of-scope administrative feature, so this boundary
  must assume nothing about the input.

DEGRADATION CONTRACT:
  A malformed or currently-inactive policy is treated identically to
  "no policy": ParsePolicy returns nil and logs a warning with a reason
  code. No error ever crosses this boundary. Downstream code therefore
  has exactly two policy states (present, absent) and never a third
  "broken" state with different behavior.

VERSIONING:
  The document carries a version tag. ParsePolicy dispatches on it, so a
  future version 2 extends the switch instead of branching on ad hoc
  field presence. Only version 1 exists today.

JSON SCHEMA (version 1):
  {
    "version": 1,
    "effectiveFrom": "2026-01-01T00:00:00Z",   // optional
    "effectiveTo":   "2026-12-31T23:59:59Z",   // optional
    "defaultPercent": 5,
    "rules": [
      {
        "id": "r-numero-low",
        "betType": "NUMERO",
        "percent": 8,
        "lotteryId": "tiempos",                 // optional
        "multiplierRange": {"min": 0, "max": 10} // optional, inclusive
      }
    ]
  }

SEE ALSO:
  - matcher.go: Consumes the parsed document
  - presets.go: Ready-made documents for common splits
*/
package commission

import (
	"bytes"
	"encoding/json"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// POLICY DOCUMENT - Validated, versioned value type
// =============================================================================

// PolicyDocument is the structured form of an actor's commission policy.
type PolicyDocument struct {
	Version        int
	EffectiveFrom  *time.Time
	EffectiveTo    *time.Time
	DefaultPercent decimal.Decimal

	// Rules keep their authored order. NUMERO matching depends on it.
	Rules []Rule
}

// Rule is one commission rule. Immutable once referenced by a historical
// snapshot; administrators add rules, they do not edit matched ones.
type Rule struct {
	ID      string
	BetType BetType
	Percent decimal.Decimal

	// LotteryID restricts the rule to one lottery when set.
	LotteryID LotteryID

	// MultiplierRange restricts the rule to a band of final multipliers.
	MultiplierRange *MultiplierRange
}

// MultiplierRange is an inclusive [Min, Max] band.
type MultiplierRange struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Contains reports whether m falls inside the band, bounds included.
func (r MultiplierRange) Contains(m decimal.Decimal) bool {
	return m.GreaterThanOrEqual(r.Min) && m.LessThanOrEqual(r.Max)
}

// Width is Max-Min, the specificity measure for reventado tie-breaking.
func (r MultiplierRange) Width() decimal.Decimal {
	return r.Max.Sub(r.Min)
}

// =============================================================================
// REJECTION REASON CODES - Logged at warning level, never raised
// =============================================================================

const (
	ReasonNotObject            = "not_object"
	ReasonUnsupportedVersion   = "unsupported_version"
	ReasonDefaultNotNumeric    = "default_percent_not_numeric"
	ReasonRulesNotList         = "rules_not_list"
	ReasonRuleMissingID        = "rule_missing_id"
	ReasonRulePercentNotNumeric = "rule_percent_not_numeric"
	ReasonBadEffectiveBounds   = "bad_effective_bounds"
	ReasonNotYetEffective      = "not_yet_effective"
	ReasonExpired              = "expired"
)

// =============================================================================
// PARSING
// =============================================================================

// ParsePolicy validates raw policy JSON against the clock "now" and returns
// the structured document, or nil when the input is malformed or inactive.
// Nil/empty input means the actor simply has no policy; no warning is logged
// for that case.
func ParsePolicy(raw []byte, now time.Time) *PolicyDocument {
	if len(raw) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return rejectPolicy(ReasonNotObject)
	}

	// Version dispatch. New policy versions extend this switch.
	switch versionOf(doc) {
	case 1:
		return parseV1(doc, now)
	default:
		return rejectPolicy(ReasonUnsupportedVersion)
	}
}

func versionOf(doc map[string]any) int {
	n, ok := doc["version"].(json.Number)
	if !ok {
		return 0
	}
	v, err := n.Int64()
	if err != nil {
		return 0
	}
	return int(v)
}

func parseV1(doc map[string]any, now time.Time) *PolicyDocument {
	defaultPercent, ok := numericField(doc, "defaultPercent")
	if !ok {
		return rejectPolicy(ReasonDefaultNotNumeric)
	}

	from, ok := timeField(doc, "effectiveFrom")
	if !ok {
		return rejectPolicy(ReasonBadEffectiveBounds)
	}
	to, ok := timeField(doc, "effectiveTo")
	if !ok {
		return rejectPolicy(ReasonBadEffectiveBounds)
	}

	// Activity window: an inactive policy degrades to absent, exactly like
	// a malformed one. Never a zero-rule policy with different behavior.
	if from != nil && now.Before(*from) {
		return rejectPolicy(ReasonNotYetEffective)
	}
	if to != nil && now.After(*to) {
		return rejectPolicy(ReasonExpired)
	}

	rawRules, present := doc["rules"]
	if !present {
		return rejectPolicy(ReasonRulesNotList)
	}
	list, ok := rawRules.([]any)
	if !ok {
		return rejectPolicy(ReasonRulesNotList)
	}

	rules := make([]Rule, 0, len(list))
	for _, item := range list {
		rule, reason := parseRuleV1(item)
		if reason != "" {
			return rejectPolicy(reason)
		}
		rules = append(rules, rule)
	}

	return &PolicyDocument{
		Version:        1,
		EffectiveFrom:  from,
		EffectiveTo:    to,
		DefaultPercent: defaultPercent,
		Rules:          rules,
	}
}

func parseRuleV1(item any) (Rule, string) {
	obj, ok := item.(map[string]any)
	if !ok {
		return Rule{}, ReasonRuleMissingID
	}

	id, _ := obj["id"].(string)
	if id == "" {
		return Rule{}, ReasonRuleMissingID
	}

	percent, ok := numericField(obj, "percent")
	if !ok {
		return Rule{}, ReasonRulePercentNotNumeric
	}

	rule := Rule{
		ID:      id,
		Percent: percent,
	}

	if bt, ok := obj["betType"].(string); ok {
		rule.BetType = BetType(bt)
	}
	if lot, ok := obj["lotteryId"].(string); ok {
		rule.LotteryID = LotteryID(lot)
	}

	if rr, ok := obj["multiplierRange"].(map[string]any); ok {
		min, okMin := numericField(rr, "min")
		max, okMax := numericField(rr, "max")
		if okMin && okMax {
			rule.MultiplierRange = &MultiplierRange{Min: min, Max: max}
		}
	}

	return rule, ""
}

// numericField reads a required numeric field. Returns false when the field
// is absent or not a number.
func numericField(obj map[string]any, key string) (decimal.Decimal, bool) {
	n, ok := obj[key].(json.Number)
	if !ok {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// timeField reads an optional RFC3339 timestamp. Returns (nil, true) when
// the field is absent or JSON null, (nil, false) when present but unparsable.
func timeField(obj map[string]any, key string) (*time.Time, bool) {
	raw, present := obj[key]
	if !present || raw == nil {
		return nil, true
	}
	s, ok := raw.(string)
	if !ok {
		return nil, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, false
	}
	return &t, true
}

func rejectPolicy(reason string) *PolicyDocument {
	log.Printf("[PolicyValidator] policy rejected, treating as absent: reason=%s", reason)
	return nil
}
