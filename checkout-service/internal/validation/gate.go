// Package validation enforces the cart invariants that must hold before a
// checkout operation touches the network.
package validation

import (
	"fmt"
	"strings"

	"github.com/fjod/go_checkout/checkout-service/domain"
	"github.com/fjod/go_checkout/checkout-service/internal/gatewayerr"
)

// maxNamedItems caps how many offending titles a missing-variant message lists.
const maxNamedItems = 3

// Validate checks, in order: emptiness, a single merchant, at most one offer,
// and a variant on every item. The first violation is returned as a
// *gatewayerr.ValidationError.
func Validate(items []domain.CartItem) error {
	if len(items) == 0 {
		return gatewayerr.NewValidationError(gatewayerr.ReasonEmptyCart,
			"Your cart is empty. Add an item before checking out.")
	}
	if err := validateMerchant(items); err != nil {
		return err
	}
	if err := validateOffer(items); err != nil {
		return err
	}
	return ValidateVariants(items)
}

// ValidateVariants only checks variant presence. An empty cart passes.
func ValidateVariants(items []domain.CartItem) error {
	var missing []string
	count := 0
	for _, item := range items {
		if strings.TrimSpace(item.VariantID) != "" {
			continue
		}
		count++
		if len(missing) < maxNamedItems {
			missing = append(missing, item.DisplayTitle())
		}
	}
	if count == 0 {
		return nil
	}

	names := strings.Join(missing, ", ")
	if count > maxNamedItems {
		names += " or more"
	}
	return gatewayerr.NewValidationError(gatewayerr.ReasonMissingVariant,
		fmt.Sprintf("Choose options for %s before checking out.", names))
}

// MerchantID returns the merchant shared by all items. Call it only on a cart
// that passed Validate.
func MerchantID(items []domain.CartItem) string {
	if len(items) == 0 {
		return ""
	}
	return items[0].MerchantID
}

// OfferID returns the single offer id present in the cart, or "".
func OfferID(items []domain.CartItem) string {
	for _, item := range items {
		if item.OfferID != "" {
			return item.OfferID
		}
	}
	return ""
}

func validateMerchant(items []domain.CartItem) error {
	merchants := make(map[string]struct{}, 1)
	for _, item := range items {
		merchants[item.MerchantID] = struct{}{}
	}
	if len(merchants) > 1 {
		return gatewayerr.NewValidationError(gatewayerr.ReasonMultipleMerchants,
			"Your cart has items from more than one seller. Remove items from other sellers to continue.")
	}
	if _, ok := merchants[""]; ok {
		return gatewayerr.NewValidationError(gatewayerr.ReasonMissingMerchant,
			"An item in your cart has no seller. Remove it and add it again.")
	}
	return nil
}

func validateOffer(items []domain.CartItem) error {
	offers := make(map[string]struct{}, 1)
	for _, item := range items {
		if item.OfferID != "" {
			offers[item.OfferID] = struct{}{}
		}
	}
	if len(offers) > 1 {
		return gatewayerr.NewValidationError(gatewayerr.ReasonMultipleOffers,
			"Your cart has items from more than one offer. Remove items from other offers to continue.")
	}
	return nil
}
