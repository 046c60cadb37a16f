package domain

import "time"

// UISource is reported to the gateway as the origin of orders and tokens.
const UISource = "creator-agent-ui"

type QuoteInput struct {
	Items         []CartItem      `json:"items"`
	Shipping      ShippingAddress `json:"shipping_address"`
	DiscountCodes []string        `json:"discount_codes,omitempty"`
	Email         string          `json:"email,omitempty"`
}

type OrderInput struct {
	QuoteInput
	QuoteID     string      `json:"quote_id,omitempty"`
	Notes       string      `json:"notes,omitempty"`
	Attribution Attribution `json:"attribution,omitempty"`
	// IdempotencyKey ties CreateOrderFromCart to a recorded attempt.
	IdempotencyKey string `json:"-"`
}

type PaymentInput struct {
	OrderID           string  `json:"order_id"`
	ExpectedAmount    float64 `json:"expected_amount"`
	Currency          string  `json:"currency"`
	PaymentMethodHint string  `json:"payment_method_hint,omitempty"`
	ReturnURL         string  `json:"return_url,omitempty"`
	// AttemptID, when set, moves the recorded attempt to PAID.
	AttemptID string `json:"attempt_id,omitempty"`
}

// CheckoutAttempt is the durable record of one CreateOrderFromCart run.
type CheckoutAttempt struct {
	ID             string         `json:"id"`
	IdempotencyKey string         `json:"idempotency_key"`
	Status         CheckoutStatus `json:"status"`
	MerchantID     string         `json:"merchant_id"`
	QuoteID        string         `json:"quote_id,omitempty"`
	QuoteExpiresAt *time.Time     `json:"quote_expires_at,omitempty"`
	QuoteSnapshot  []byte         `json:"-"`
	OrderID        string         `json:"order_id,omitempty"`
	PaymentStatus  string         `json:"payment_status,omitempty"`
	ErrorCode      string         `json:"error_code,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// TokenItem is the item scope a checkout token is minted for.
type TokenItem struct {
	ProductID  string `json:"product_id"`
	MerchantID string `json:"merchant_id"`
	VariantID  string `json:"variant_id,omitempty"`
	SKU        string `json:"sku,omitempty"`
	Quantity   int    `json:"quantity"`
}
