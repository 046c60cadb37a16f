package domain

// Operation names a gateway call. Only these three may use the direct channel.
type Operation string

const (
	OperationPreviewQuote  Operation = "preview_quote"
	OperationCreateOrder   Operation = "create_order"
	OperationSubmitPayment Operation = "submit_payment"
)

func (o Operation) DirectEligible() bool {
	switch o {
	case OperationPreviewQuote, OperationCreateOrder, OperationSubmitPayment:
		return true
	default:
		return false
	}
}

func (o Operation) String() string {
	return string(o)
}

// Envelope is the JSON body sent on both channels.
type Envelope struct {
	Operation Operation `json:"operation"`
	Payload   any       `json:"payload"`
}

type QuotePayload struct {
	Quote QuoteRequest `json:"quote"`
}

type OrderPayload struct {
	Order OrderRequest `json:"order"`
}

type PaymentPayload struct {
	Payment PaymentRequest `json:"payment"`
}

type QuoteRequestItem struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

type QuoteRequest struct {
	MerchantID      string             `json:"merchant_id"`
	OfferID         string             `json:"offer_id,omitempty"`
	Items           []QuoteRequestItem `json:"items"`
	DiscountCodes   []string           `json:"discount_codes,omitempty"`
	CustomerEmail   string             `json:"customer_email,omitempty"`
	ShippingAddress ShippingAddress    `json:"shipping_address"`
}

type OrderRequestItem struct {
	ProductID       string            `json:"product_id"`
	MerchantID      string            `json:"merchant_id"`
	VariantID       string            `json:"variant_id"`
	SKU             string            `json:"sku,omitempty"`
	Title           string            `json:"title"`
	Quantity        int               `json:"quantity"`
	UnitPrice       float64           `json:"unit_price"`
	Subtotal        float64           `json:"subtotal"`
	SelectedOptions map[string]string `json:"selected_options,omitempty"`
}

type OrderMetadata struct {
	Source      string `json:"source"`
	CreatorID   string `json:"creator_id,omitempty"`
	CreatorSlug string `json:"creator_slug,omitempty"`
	CreatorName string `json:"creator_name,omitempty"`
}

type OrderRequest struct {
	MerchantID      string             `json:"merchant_id"`
	OfferID         string             `json:"offer_id,omitempty"`
	QuoteID         string             `json:"quote_id"`
	Items           []OrderRequestItem `json:"items"`
	DiscountCodes   []string           `json:"discount_codes,omitempty"`
	ShippingAddress ShippingAddress    `json:"shipping_address"`
	CustomerEmail   string             `json:"customer_email,omitempty"`
	Notes           string             `json:"notes,omitempty"`
	Metadata        OrderMetadata      `json:"metadata"`
}

type PaymentRequest struct {
	OrderID           string  `json:"order_id"`
	ExpectedAmount    float64 `json:"expected_amount"`
	Currency          string  `json:"currency"`
	PaymentMethodHint string  `json:"payment_method_hint,omitempty"`
	ReturnURL         string  `json:"return_url,omitempty"`
}
