package commission

import "github.com/shopspring/decimal"

// =============================================================================
// MONEY - All currency amounts are decimal, rounded to cents
// =============================================================================

// Money is a currency amount. A type alias keeps call sites readable
// without hiding decimal's arithmetic surface.
type Money = decimal.Decimal

// Rate is a commission percentage: 5 means 5%.
type Rate = decimal.Decimal

var hundred = decimal.NewFromInt(100)

// Zero is the zero money amount.
func Zero() Money { return decimal.Zero }

// NewMoney builds a Money from a float. Intended for literals in tests
// and scenario seeds; wire values should come through ParseMoney.
func NewMoney(v float64) Money { return decimal.NewFromFloat(v) }

// ParseMoney parses a decimal string ("10000.00").
func ParseMoney(s string) (Money, error) { return decimal.NewFromString(s) }

// MustMoney parses a decimal string and panics on malformed input.
// Only for constants in tests and seed data.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic("commission: bad money literal " + s)
	}
	return d
}

// ApplyRate returns amount * rate / 100, rounded to cents.
// A $10,000 sale at a 5% rate yields $500.00.
func ApplyRate(amount Money, rate Rate) Money {
	return amount.Mul(rate).Div(hundred).Round(2)
}

// PercentOf returns part / whole * 100, or zero when whole is zero.
// Used for quota achievement.
func PercentOf(part, whole Money) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(2)
}
