package domain

// CheckoutStatus is the state of one checkout attempt.
type CheckoutStatus string

const (
	CheckoutStatusPending CheckoutStatus = "PENDING"
	CheckoutStatusQuoted  CheckoutStatus = "QUOTED"
	CheckoutStatusOrdered CheckoutStatus = "ORDERED"
	CheckoutStatusPaid    CheckoutStatus = "PAID"
	CheckoutStatusFailed  CheckoutStatus = "FAILED"
)

var transitions = map[CheckoutStatus][]CheckoutStatus{
	CheckoutStatusPending: {CheckoutStatusQuoted, CheckoutStatusFailed},
	// QUOTED -> QUOTED is a re-preview after the quote lapsed.
	CheckoutStatusQuoted:  {CheckoutStatusQuoted, CheckoutStatusOrdered, CheckoutStatusFailed},
	CheckoutStatusOrdered: {CheckoutStatusPaid, CheckoutStatusFailed},
	CheckoutStatusFailed:  {CheckoutStatusPending},
}

func CanTransitionTo(from, to CheckoutStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the attempt admits no further transition.
func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusPaid
}

// String representation (for logging)
func (s CheckoutStatus) String() string {
	return string(s)
}

// QuoteState tracks whether a quote id may still be committed into an order.
type QuoteState string

const (
	QuoteStateIssued   QuoteState = "ISSUED"
	QuoteStateConsumed QuoteState = "CONSUMED"
	QuoteStateExpired  QuoteState = "EXPIRED"
)
