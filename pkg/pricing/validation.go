package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/curatedly/curatedly-backend/pkg/enums"
	pkgerrors "github.com/curatedly/curatedly-backend/pkg/errors"
)

// TierRules holds the minimum major-unit price for each paid tier.
type TierRules struct {
	PaidMinimum    decimal.Decimal
	PremiumMinimum decimal.Decimal
}

// DefaultTierRules mirrors the storefront defaults: paid from 1, premium from 7.
func DefaultTierRules() TierRules {
	return TierRules{
		PaidMinimum:    decimal.NewFromInt(1),
		PremiumMinimum: decimal.NewFromInt(7),
	}
}

// TierViolationDetail is returned to callers when a tier/price pair is rejected.
type TierViolationDetail struct {
	Tier     enums.ListingTier `json:"tier"`
	Price    string            `json:"price"`
	Required string            `json:"required"`
}

// ValidateTierPrice enforces free => 0, paid => >= PaidMinimum and
// premium => >= PremiumMinimum. Prices carry at most two decimal places.
func (r TierRules) ValidateTierPrice(tier enums.ListingTier, price decimal.Decimal) error {
	if !tier.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown listing tier %q", tier))
	}
	if price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	if !price.Equal(price.Truncate(2)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "price supports at most two decimal places")
	}

	var ok bool
	var required string
	switch tier {
	case enums.ListingTierFree:
		ok = price.IsZero()
		required = "0"
	case enums.ListingTierPaid:
		ok = price.GreaterThanOrEqual(r.PaidMinimum)
		required = ">= " + r.PaidMinimum.StringFixed(2)
	case enums.ListingTierPremium:
		ok = price.GreaterThanOrEqual(r.PremiumMinimum)
		required = ">= " + r.PremiumMinimum.StringFixed(2)
	}
	if ok {
		return nil
	}

	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("price %s not allowed for %s tier", price.StringFixed(2), tier)).WithDetails(TierViolationDetail{
		Tier:     tier,
		Price:    price.StringFixed(2),
		Required: required,
	})
}
