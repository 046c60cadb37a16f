package domain

// CartItem is one line of the buyer's cart as captured by the external cart
// store. The pipeline only reads it.
type CartItem struct {
	ProductID       string            `json:"product_id"`
	MerchantID      string            `json:"merchant_id"`
	OfferID         string            `json:"offer_id,omitempty"`
	VariantID       string            `json:"variant_id,omitempty"`
	SKU             string            `json:"sku,omitempty"`
	Title           string            `json:"title"`
	SelectedOptions map[string]string `json:"selected_options,omitempty"`
	UnitPrice       float64           `json:"unit_price"`
	Quantity        int               `json:"quantity"`
	Currency        string            `json:"currency"`

	CreatorID   string `json:"creator_id,omitempty"`
	CreatorSlug string `json:"creator_slug,omitempty"`
	CreatorName string `json:"creator_name,omitempty"`

	DealID string `json:"deal_id,omitempty"`
}

// DisplayTitle falls back to the product id when the cart has no title.
func (i CartItem) DisplayTitle() string {
	if i.Title != "" {
		return i.Title
	}
	return i.ProductID
}

type ShippingAddress struct {
	Name         string `json:"name,omitempty"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	Province     string `json:"province,omitempty"`
	Country      string `json:"country"`
	PostalCode   string `json:"postal_code"`
	Phone        string `json:"phone,omitempty"`
}

// Attribution identifies the creator a purchase is credited to.
type Attribution struct {
	CreatorID   string `json:"creator_id,omitempty"`
	CreatorSlug string `json:"creator_slug,omitempty"`
	CreatorName string `json:"creator_name,omitempty"`
}

func (a Attribution) IsZero() bool {
	return a.CreatorID == "" && a.CreatorSlug == "" && a.CreatorName == ""
}
