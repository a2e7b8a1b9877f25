package enums

// ListingTier classifies how a listing is sold.
type ListingTier string

const (
	ListingTierFree    ListingTier = "free"
	ListingTierPaid    ListingTier = "paid"
	ListingTierPremium ListingTier = "premium"
)

var validListingTiers = []ListingTier{
	ListingTierFree,
	ListingTierPaid,
	ListingTierPremium,
}

func (t ListingTier) String() string {
	return string(t)
}

func (t ListingTier) IsValid() bool {
	_, err := ParseListingTier(string(t))
	return err == nil
}

// RequiresPayouts reports whether selling at this tier moves money to the seller.
func (t ListingTier) RequiresPayouts() bool {
	return t == ListingTierPaid || t == ListingTierPremium
}

func ParseListingTier(value string) (ListingTier, error) {
	return parse("listing tier", validListingTiers, value)
}
