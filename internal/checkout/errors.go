package checkout

import "errors"

var (
	ErrEmptyCart         = errors.New("cart is empty, nothing to checkout")
	ErrInFlight          = errors.New("checkout request already in flight")
	ErrIllegalTransition = errors.New("illegal transition of checkout phase")
	ErrMalformedResult   = errors.New("checkout response missing order or payment payload")
)

// Alerts shown to the customer when a remote call fails.
const (
	AlertPayInitFailed = "Payment initialization failed. Please try again."
	AlertConfirmFailed = "Payment confirmation failed. Please try again."
)
