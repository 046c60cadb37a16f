package domain

import "errors"

// CheckoutTokenKey is the storage key and query parameter name of the
// checkout token.
const CheckoutTokenKey = "checkout_token"

var ErrTokenNotFound = errors.New("checkout token not found")
