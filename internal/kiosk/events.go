package kiosk

import (
	"encoding/json"
	"time"

	"github.com/ariefcatur/go-kiosk/internal/cart"
)

const (
	EventSessionStarted    = "SessionStarted"
	EventSessionIdled      = "SessionIdled"
	EventCheckoutInitiated = "CheckoutInitiated"
	EventCheckoutFailed    = "CheckoutFailed"
	EventPaymentConfirmed  = "PaymentConfirmed"
)

const (
	TopicSession          = "kiosk.session"
	TopicPaymentConfirmed = "kiosk.payment.confirmed"
)

// PartitionKey keeps every event of one kiosk (session topic) or one order
// (payment topic) in order.
func PartitionKey(id string) []byte { return []byte(id) }

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	KioskID       string          `json:"kiosk_id"`
	CorrelationID string          `json:"correlation_id,omitempty"` // session id or order id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payloads ----

type SessionStartedPayload struct {
	SessionID string `json:"session_id"`
}

type SessionIdledPayload struct {
	SessionID string `json:"session_id"`
	CartItems int    `json:"cart_items"` // left behind in the cart
}

type CheckoutInitiatedPayload struct {
	SessionID   string `json:"session_id"`
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	TotalCents  int64  `json:"total_cents"`
}

const (
	StageInit    = "init"
	StageConfirm = "confirm"
)

type CheckoutFailedPayload struct {
	SessionID string `json:"session_id"`
	OrderID   int64  `json:"order_id,omitempty"`
	Stage     string `json:"stage"`
	Reason    string `json:"reason"`
}

type PaymentConfirmedPayload struct {
	OrderID     int64       `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	SessionID   string      `json:"session_id"`
	Items       []cart.Line `json:"items"`
	TotalCents  int64       `json:"total_cents"`
	PaidAt      time.Time   `json:"paid_at"`
}
