/*
bonus.go - Bonus eligibility rules as a closed sum type

PURPOSE:
  Plans carry bonus rules evaluated on every calculation run. The source
  data stores these as free-form JSON; here they are a tagged variant of
  known rule kinds so the engine can handle every case exhaustively.

RULE KINDS:
  threshold: grant Amount when total period sales reach Threshold
  quota:     grant Amount when quota achievement reaches QuotaPct

  Tiered plans may additionally carry a per-tier BonusThreshold /
  BonusAmount pair (see plan.go); the engine evaluates those alongside
  these rules.

WIRE FORMAT:
  {"kind": "threshold", "threshold": "150000", "amount": "1000"}
  {"kind": "quota", "quota_pct": "100", "amount": "500"}

  Unknown kinds are rejected at decode time, not silently kept.
*/
package commission

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BONUS RULES
// =============================================================================

type BonusKind string

const (
	BonusThresholdKind BonusKind = "threshold"
	BonusQuotaKind     BonusKind = "quota"
	BonusTierKind      BonusKind = "tier" // produced by the engine from tier rows
)

// BonusRule is one eligibility rule. Exactly one of the variant
// accessors applies, selected by Kind().
type BonusRule interface {
	Kind() BonusKind
	// Evaluate returns the bonus amount and whether eligibility was met
	// for the given period totals.
	Evaluate(totalSales Money, quotaAchievementPct decimal.Decimal) (Money, bool)
	// Describe returns the criteria in wire form, recorded verbatim on
	// the bonus row for audit.
	Describe() string
}

// ThresholdBonus grants Amount once total period sales reach Threshold.
type ThresholdBonus struct {
	Threshold Money
	Amount    Money
}

func (b ThresholdBonus) Kind() BonusKind { return BonusThresholdKind }

func (b ThresholdBonus) Evaluate(totalSales Money, _ decimal.Decimal) (Money, bool) {
	return b.Amount, totalSales.GreaterThanOrEqual(b.Threshold)
}

func (b ThresholdBonus) Describe() string {
	return fmt.Sprintf(`{"kind":"threshold","threshold":"%s","amount":"%s"}`, b.Threshold, b.Amount)
}

// QuotaBonus grants Amount once quota achievement reaches QuotaPct.
type QuotaBonus struct {
	QuotaPct decimal.Decimal
	Amount   Money
}

func (b QuotaBonus) Kind() BonusKind { return BonusQuotaKind }

func (b QuotaBonus) Evaluate(_ Money, quotaAchievementPct decimal.Decimal) (Money, bool) {
	return b.Amount, quotaAchievementPct.GreaterThanOrEqual(b.QuotaPct)
}

func (b QuotaBonus) Describe() string {
	return fmt.Sprintf(`{"kind":"quota","quota_pct":"%s","amount":"%s"}`, b.QuotaPct, b.Amount)
}

// =============================================================================
// WIRE CODEC
// =============================================================================

type bonusRuleJSON struct {
	Kind      string `json:"kind"`
	Threshold string `json:"threshold,omitempty"`
	QuotaPct  string `json:"quota_pct,omitempty"`
	Amount    string `json:"amount"`
}

// DecodeBonusRules parses a JSON array of rules. Unknown kinds and
// malformed amounts are errors.
func DecodeBonusRules(data []byte) ([]BonusRule, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var raw []bonusRuleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("bonus rules: %w", err)
	}

	rules := make([]BonusRule, 0, len(raw))
	for _, r := range raw {
		amount, err := ParseMoney(r.Amount)
		if err != nil {
			return nil, fmt.Errorf("bonus rule %q: bad amount %q", r.Kind, r.Amount)
		}
		switch BonusKind(r.Kind) {
		case BonusThresholdKind:
			threshold, err := ParseMoney(r.Threshold)
			if err != nil {
				return nil, fmt.Errorf("threshold bonus: bad threshold %q", r.Threshold)
			}
			rules = append(rules, ThresholdBonus{Threshold: threshold, Amount: amount})
		case BonusQuotaKind:
			pct, err := decimal.NewFromString(r.QuotaPct)
			if err != nil {
				return nil, fmt.Errorf("quota bonus: bad quota_pct %q", r.QuotaPct)
			}
			rules = append(rules, QuotaBonus{QuotaPct: pct, Amount: amount})
		default:
			return nil, fmt.Errorf("unknown bonus rule kind %q", r.Kind)
		}
	}
	return rules, nil
}

// EncodeBonusRules serializes rules to the wire format.
func EncodeBonusRules(rules []BonusRule) ([]byte, error) {
	if len(rules) == 0 {
		return nil, nil
	}
	raw := make([]json.RawMessage, 0, len(rules))
	for _, r := range rules {
		raw = append(raw, json.RawMessage(r.Describe()))
	}
	return json.Marshal(raw)
}
