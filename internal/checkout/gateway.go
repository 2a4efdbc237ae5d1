package checkout

import (
	"context"
	"encoding/json"

	"github.com/ariefcatur/go-kiosk/internal/cart"
)

// Request is the body of POST /payments/checkout. TotalAmount is advisory;
// the payment backend recomputes it.
type Request struct {
	Items       []cart.Line `json:"items"`
	TotalAmount int64       `json:"total_amount"`
}

type Result struct {
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	QRData      json.RawMessage `json:"qr_data"`
	TotalAmount int64           `json:"total_amount,omitempty"`
}

type OrderStatus struct {
	OrderID       int64  `json:"order_id"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
}

func (s OrderStatus) Paid() bool {
	return s.Status == "PAID" || s.PaymentStatus == "COMPLETED"
}

// Gateway is the payment side of the commerce API.
type Gateway interface {
	Checkout(ctx context.Context, req Request) (*Result, error)
	MockPay(ctx context.Context, orderID int64) error
	OrderStatus(ctx context.Context, orderID int64) (*OrderStatus, error)
}

// Cart is what checkout needs from the cart store.
type Cart interface {
	Lines() []cart.Line
	Total() int64
	Len() int
	UpdateQuantity(productID int64, delta int)
}
