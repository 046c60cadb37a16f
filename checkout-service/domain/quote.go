package domain

import "time"

type Pricing struct {
	Subtotal      float64 `json:"subtotal"`
	DiscountTotal float64 `json:"discount_total"`
	ShippingFee   float64 `json:"shipping_fee"`
	Tax           float64 `json:"tax"`
	Total         float64 `json:"total"`
}

type PromotionLine struct {
	Code   string  `json:"code,omitempty"`
	Label  string  `json:"label,omitempty"`
	Amount float64 `json:"amount"`
}

type LineItem struct {
	ProductID       string            `json:"product_id"`
	VariantID       string            `json:"variant_id,omitempty"`
	SKU             string            `json:"sku,omitempty"`
	Title           string            `json:"title,omitempty"`
	Quantity        int               `json:"quantity"`
	UnitPrice       float64           `json:"unit_price"`
	Subtotal        float64           `json:"subtotal"`
	SelectedOptions map[string]string `json:"selected_options,omitempty"`
}

type DeliveryOption struct {
	ID            string  `json:"id"`
	Label         string  `json:"label,omitempty"`
	Amount        float64 `json:"amount"`
	EstimatedDays int     `json:"estimated_days,omitempty"`
}

// Quote is a price-locked, time-bounded proposal for one cart. The server
// owns every monetary field.
type Quote struct {
	QuoteID             string           `json:"quote_id"`
	ExpiresAt           time.Time        `json:"expires_at"`
	Engine              string           `json:"engine,omitempty"`
	PresentmentCurrency string           `json:"presentment_currency"`
	ChargeCurrency      string           `json:"charge_currency"`
	SettlementCurrency  string           `json:"settlement_currency,omitempty"`
	Pricing             Pricing          `json:"pricing"`
	PromotionLines      []PromotionLine  `json:"promotion_lines,omitempty"`
	LineItems           []LineItem       `json:"line_items"`
	DeliveryOptions     []DeliveryOption `json:"delivery_options,omitempty"`
	Metadata            map[string]any   `json:"metadata,omitempty"`
}

// Expired reports whether the validity window has lapsed. A zero ExpiresAt
// never expires.
func (q *Quote) Expired(now time.Time) bool {
	return !q.ExpiresAt.IsZero() && now.After(q.ExpiresAt)
}

// Order is created by the gateway from a quote. Pricing may differ from the
// quote and is the number to display.
type Order struct {
	OrderID             string     `json:"order_id"`
	Status              string     `json:"status,omitempty"`
	PaymentStatus       string     `json:"payment_status,omitempty"`
	Pricing             Pricing    `json:"pricing"`
	LineItems           []LineItem `json:"line_items"`
	Currency            string     `json:"currency,omitempty"`
	PresentmentCurrency string     `json:"presentment_currency,omitempty"`
	ChargeCurrency      string     `json:"charge_currency,omitempty"`
	Quote               *Quote     `json:"quote,omitempty"`
	// AttemptID is set locally when the order came from a recorded attempt.
	AttemptID string `json:"attempt_id,omitempty"`
}

type PaymentAction struct {
	Type         string         `json:"type,omitempty"`
	URL          string         `json:"url,omitempty"`
	ClientSecret string         `json:"client_secret,omitempty"`
	Raw          map[string]any `json:"raw,omitempty"`
}

// PaymentResult is the outcome of submit_payment. A non-empty
// PaymentAction.ClientSecret means the PSP flow continues out of band.
type PaymentResult struct {
	OrderID       string         `json:"order_id"`
	PaymentStatus string         `json:"payment_status"`
	RedirectURL   string         `json:"redirect_url,omitempty"`
	PaymentAction *PaymentAction `json:"payment_action,omitempty"`
}

func (r *PaymentResult) RequiresClientAction() bool {
	return r.PaymentAction != nil && r.PaymentAction.ClientSecret != ""
}
