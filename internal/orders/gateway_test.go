package orders

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutSessionParams(t *testing.T) {
	orderID := uuid.New()
	listingID := uuid.New()

	req := SessionRequest{
		OrderID:            orderID,
		ListingID:          listingID,
		Title:              "Guide",
		AmountMinor:        1250,
		FeeMinor:           250,
		Currency:           "usd",
		BuyerEmail:         "buyer@example.com",
		DestinationAccount: "acct_123",
		SuccessURL:         "https://x/orders/1/confirmation",
		CancelURL:          "https://x/orders/1/cancelation",
	}
	params := checkoutSessionParams(req)

	require.Len(t, params.LineItems, 1)
	item := params.LineItems[0]
	assert.Equal(t, int64(1), *item.Quantity)
	assert.Equal(t, int64(1250), *item.PriceData.UnitAmount)
	assert.Equal(t, "Guide", *item.PriceData.ProductData.Name)
	assert.Equal(t, int64(250), *params.PaymentIntentData.ApplicationFeeAmount)
	assert.Equal(t, "acct_123", *params.PaymentIntentData.TransferData.Destination)
	assert.Equal(t, "buyer@example.com", *params.CustomerEmail)
	assert.Equal(t, orderID.String(), params.Metadata[MetadataOrderID])
	assert.Equal(t, listingID.String(), params.Metadata[MetadataListingID])
	assert.Equal(t, IdempotencyKey(req), *params.IdempotencyKey)
	assert.True(t, strings.HasPrefix(*params.IdempotencyKey, "checkout-session:"+orderID.String()+":"))
}

func TestIdempotencyKeyFollowsCharge(t *testing.T) {
	base := SessionRequest{
		OrderID:            uuid.New(),
		AmountMinor:        1250,
		FeeMinor:           250,
		Currency:           "usd",
		DestinationAccount: "acct_123",
		BuyerEmail:         "buyer@example.com",
	}
	assert.Equal(t, IdempotencyKey(base), IdempotencyKey(base))

	reonboarded := base
	reonboarded.DestinationAccount = "acct_456"
	assert.NotEqual(t, IdempotencyKey(base), IdempotencyKey(reonboarded))

	repriced := base
	repriced.AmountMinor = 1500
	repriced.FeeMinor = 300
	assert.NotEqual(t, IdempotencyKey(base), IdempotencyKey(repriced))

	otherOrder := base
	otherOrder.OrderID = uuid.New()
	assert.NotEqual(t, IdempotencyKey(base), IdempotencyKey(otherOrder))
}
