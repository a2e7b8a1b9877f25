package notifications

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/shopspring/decimal"

	"github.com/curatedly/curatedly-backend/pkg/outbox/payloads"
)

const purchaseText = `Thanks for your order!

{{if .Free}}You grabbed "{{.ListingTitle}}" from {{.SellerName}} for free.{{else}}You paid {{.Amount}} for "{{.ListingTitle}}" from {{.SellerName}}.{{end}}

View your order: {{.ConfirmationURL}}
More from {{.SellerName}}: {{.StorefrontURL}}
`

const purchaseHTML = `<p>Thanks for your order!</p>
<p>{{if .Free}}You grabbed <strong>{{.ListingTitle}}</strong> from {{.SellerName}} for free.{{else}}You paid {{.Amount}} for <strong>{{.ListingTitle}}</strong> from {{.SellerName}}.{{end}}</p>
<p><a href="{{.ConfirmationURL}}">View your order</a></p>
<p><a href="{{.StorefrontURL}}">More from {{.SellerName}}</a></p>
`

var (
	purchaseTextTmpl = texttemplate.Must(texttemplate.New("purchase_text").Parse(purchaseText))
	purchaseHTMLTmpl = htmltemplate.Must(htmltemplate.New("purchase_html").Parse(purchaseHTML))
)

type purchaseView struct {
	ListingTitle    string
	SellerName      string
	Amount          string
	Free            bool
	ConfirmationURL string
	StorefrontURL   string
}

// PurchaseConfirmation renders the buyer email for a completed order.
func PurchaseConfirmation(baseURL string, event *payloads.OrderCompletedEvent) (Message, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	sellerName := event.SellerDisplayName
	if sellerName == "" {
		sellerName = event.SellerSlug
	}
	view := purchaseView{
		ListingTitle:    event.ListingTitle,
		SellerName:      sellerName,
		Amount:          formatAmount(event.AmountCents, event.Currency),
		Free:            event.Free || event.AmountCents == 0,
		ConfirmationURL: fmt.Sprintf("%s/orders/%s/confirmation", baseURL, event.OrderID),
		StorefrontURL:   fmt.Sprintf("%s/%s", baseURL, event.SellerSlug),
	}

	var text, html bytes.Buffer
	if err := purchaseTextTmpl.Execute(&text, view); err != nil {
		return Message{}, fmt.Errorf("render text body: %w", err)
	}
	if err := purchaseHTMLTmpl.Execute(&html, view); err != nil {
		return Message{}, fmt.Errorf("render html body: %w", err)
	}

	return Message{
		To:      event.BuyerEmail,
		Subject: fmt.Sprintf("Your order: %s", event.ListingTitle),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

func formatAmount(cents int64, currency string) string {
	amount := decimal.New(cents, -2).StringFixed(2)
	return strings.TrimSpace(amount + " " + strings.ToUpper(currency))
}
