package token

import (
	"encoding/json"

	"github.com/fjod/go_checkout/checkout-service/domain"
)

type itemShape struct {
	ProductID  string `json:"product_id"`
	MerchantID string `json:"merchant_id"`
	VariantID  string `json:"variant_id"`
	SKU        string `json:"sku"`
	Quantity   int    `json:"quantity"`
}

type holderShape struct {
	MerchantID string      `json:"merchant_id"`
	Items      []itemShape `json:"items"`
}

type payloadShape struct {
	Quote *holderShape `json:"quote"`
	Order *holderShape `json:"order"`
}

// DeriveItems extracts the token item scope from an operation payload:
// quote.items for preview_quote and order.items for create_order.
// submit_payment and unrecognized payloads yield nil. Items without a
// product, a merchant or a positive quantity are dropped; an item without its
// own merchant inherits the holder's merchant_id.
func DeriveItems(op domain.Operation, payload any) []domain.TokenItem {
	if op != domain.OperationPreviewQuote && op != domain.OperationCreateOrder {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	var shape payloadShape
	if err := json.Unmarshal(raw, &shape); err != nil {
		return nil
	}

	holder := shape.Quote
	if op == domain.OperationCreateOrder {
		holder = shape.Order
	}
	if holder == nil {
		return nil
	}

	var items []domain.TokenItem
	for _, it := range holder.Items {
		merchant := it.MerchantID
		if merchant == "" {
			merchant = holder.MerchantID
		}
		if it.ProductID == "" || merchant == "" || it.Quantity <= 0 {
			continue
		}
		items = append(items, domain.TokenItem{
			ProductID:  it.ProductID,
			MerchantID: merchant,
			VariantID:  it.VariantID,
			SKU:        it.SKU,
			Quantity:   it.Quantity,
		})
	}
	return items
}
