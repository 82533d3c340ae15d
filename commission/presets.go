/*
presets.go - Pre-built commission policy documents

PURPOSE:
  Ready-to-use policy documents for common commission splits. These are
  convenience builders used by seed tooling and tests; real banks author
  their own documents through the (out-of-scope) administrative feature.

AVAILABLE PRESETS:
  FlatPolicy:          One default percent, no rules
  BandedNumeroPolicy:  Percent tiers keyed on the payout multiplier
  ReventadoPolicy:     Banded reventado percents plus a numero default

CUSTOMIZATION:
  Builders return PolicyDocument values; callers tweak fields and then
  MarshalPolicy the result into the actor record's policy blob.
*/
package commission

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PRESET BUILDERS
// =============================================================================

// FlatPolicy pays the same percent on every bet.
func FlatPolicy(percent float64) PolicyDocument {
	return PolicyDocument{
		Version:        1,
		DefaultPercent: decimal.NewFromFloat(percent),
	}
}

// BandedNumeroPolicy tiers numero commission on the payout multiplier.
// Bands are matched in the order given: first-match wins, so author them
// from most to least preferred.
func BandedNumeroPolicy(defaultPercent float64, bands []Band) PolicyDocument {
	doc := PolicyDocument{
		Version:        1,
		DefaultPercent: decimal.NewFromFloat(defaultPercent),
	}
	for i, b := range bands {
		doc.Rules = append(doc.Rules, Rule{
			ID:      bandID("numero", i),
			BetType: BetNumero,
			Percent: decimal.NewFromFloat(b.Percent),
			MultiplierRange: &MultiplierRange{
				Min: decimal.NewFromFloat(b.Min),
				Max: decimal.NewFromFloat(b.Max),
			},
		})
	}
	return doc
}

// ReventadoPolicy tiers reventado commission on the final multiplier and
// keeps a flat numero percent. Reventado bands may nest: the narrowest
// band wins at match time, so overlap is fine.
func ReventadoPolicy(numeroPercent float64, bands []Band) PolicyDocument {
	doc := PolicyDocument{
		Version:        1,
		DefaultPercent: decimal.Zero,
		Rules: []Rule{{
			ID:      "numero-flat",
			BetType: BetNumero,
			Percent: decimal.NewFromFloat(numeroPercent),
		}},
	}
	for i, b := range bands {
		doc.Rules = append(doc.Rules, Rule{
			ID:      bandID("reventado", i),
			BetType: BetReventado,
			Percent: decimal.NewFromFloat(b.Percent),
			MultiplierRange: &MultiplierRange{
				Min: decimal.NewFromFloat(b.Min),
				Max: decimal.NewFromFloat(b.Max),
			},
		})
	}
	return doc
}

// Band is a multiplier range with its percent, used by preset builders.
type Band struct {
	Min     float64
	Max     float64
	Percent float64
}

func bandID(prefix string, i int) string {
	return fmt.Sprintf("%s-band-%d", prefix, i+1)
}

// =============================================================================
// MARSHALLING - Document back to the storage blob format
// =============================================================================

// MarshalPolicy renders a document into the JSON blob format ParsePolicy
// accepts. Round-trips through ParsePolicy for any active document.
// Decimals are emitted as bare JSON numbers; the default quoted form
// would read back as non-numeric and reject the document.
func MarshalPolicy(doc PolicyDocument) []byte {
	out := map[string]any{
		"version":        doc.Version,
		"defaultPercent": jsonNumber(doc.DefaultPercent),
	}
	if doc.EffectiveFrom != nil {
		out["effectiveFrom"] = doc.EffectiveFrom
	}
	if doc.EffectiveTo != nil {
		out["effectiveTo"] = doc.EffectiveTo
	}
	rules := make([]map[string]any, 0, len(doc.Rules))
	for _, r := range doc.Rules {
		rule := map[string]any{
			"id":      r.ID,
			"betType": string(r.BetType),
			"percent": jsonNumber(r.Percent),
		}
		if r.LotteryID != "" {
			rule["lotteryId"] = string(r.LotteryID)
		}
		if r.MultiplierRange != nil {
			rule["multiplierRange"] = map[string]any{
				"min": jsonNumber(r.MultiplierRange.Min),
				"max": jsonNumber(r.MultiplierRange.Max),
			}
		}
		rules = append(rules, rule)
	}
	out["rules"] = rules

	raw, _ := json.Marshal(out)
	return raw
}

func jsonNumber(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
