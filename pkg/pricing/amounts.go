package pricing

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a major-unit price to cents, rounding half away from zero.
func ToMinorUnits(price decimal.Decimal) int64 {
	return price.Mul(hundred).Round(0).IntPart()
}

// PlatformFee returns percent of amountMinor, floored to a whole minor unit.
// Any fractional cent stays with the seller.
func PlatformFee(amountMinor, percent int64) int64 {
	if amountMinor <= 0 || percent <= 0 {
		return 0
	}
	return amountMinor * percent / 100
}
