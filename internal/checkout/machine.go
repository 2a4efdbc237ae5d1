// Package checkout drives one checkout attempt from the order summary to a
// confirmed payment.
package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ariefcatur/go-kiosk/internal/clock"
)

const DefaultDwell = 10 * time.Second

type Snapshot struct {
	Phase       Phase           `json:"phase"`
	OrderID     int64           `json:"order_id,omitempty"`
	OrderNumber string          `json:"order_number,omitempty"`
	QRData      json.RawMessage `json:"qr_data,omitempty"`
	QRImage     string          `json:"qr_image,omitempty"`
	Alert       string          `json:"alert,omitempty"`
	InFlight    bool            `json:"in_flight"`
}

// Machine is the checkout page state. Remote calls happen outside the lock and
// at most one is in flight at a time; there are no retries.
type Machine struct {
	mu     sync.Mutex
	gw     Gateway
	cart   Cart
	clock  clock.Clock
	dwell  time.Duration
	limit  time.Duration
	onDone func()

	phase       Phase
	inFlight    bool
	orderID     int64
	orderNumber string
	qrData      json.RawMessage
	submitted   Request
	alert       string
	dwellTimer  clock.Timer
	waitTimer   clock.Timer
	abandoned   bool
	closed      bool
}

type Option func(*Machine)

func WithClock(c clock.Clock) Option { return func(m *Machine) { m.clock = c } }

func WithDwell(d time.Duration) Option { return func(m *Machine) { m.dwell = d } }

// WithAwaitLimit caps how long an unpaid QR code keeps the kiosk out of the
// attract screen. Zero means no cap.
func WithAwaitLimit(d time.Duration) Option { return func(m *Machine) { m.limit = d } }

// OnDone is called once the success screen has been shown for the dwell time.
func OnDone(f func()) Option { return func(m *Machine) { m.onDone = f } }

func NewMachine(gw Gateway, c Cart, opts ...Option) *Machine {
	m := &Machine{
		gw:    gw,
		cart:  c,
		clock: clock.Real(),
		dwell: DefaultDwell,
		phase: PhaseSummary,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Busy reports whether a checkout is underway and the kiosk must not fall
// back to the attract screen. An order left waiting for payment longer than
// the await limit no longer counts.
func (m *Machine) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight || m.phase == PhaseProcessing || (m.phase == PhaseAwaitingPayment && !m.abandoned)
}

// Pay submits the cart. On any failure the machine returns to SUMMARY with an
// alert and the cart untouched.
func (m *Machine) Pay(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	if m.inFlight || m.phase == PhaseProcessing {
		defer m.mu.Unlock()
		return m.snapshotLocked(), ErrInFlight
	}
	if !CanTransition(m.phase, PhaseProcessing) {
		defer m.mu.Unlock()
		return m.snapshotLocked(), fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, m.phase, PhaseProcessing)
	}
	if m.cart.Len() == 0 {
		defer m.mu.Unlock()
		return m.snapshotLocked(), ErrEmptyCart
	}
	req := Request{Items: m.cart.Lines(), TotalAmount: m.cart.Total()}
	m.phase = PhaseProcessing
	m.inFlight = true
	m.alert = ""
	m.mu.Unlock()

	res, err := m.gw.Checkout(ctx, req)
	if err == nil && !res.valid() {
		err = ErrMalformedResult
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight = false
	if err != nil {
		m.phase = PhaseSummary
		m.alert = AlertPayInitFailed
		return m.snapshotLocked(), fmt.Errorf("checkout: %w", err)
	}
	m.phase = PhaseAwaitingPayment
	m.orderID = res.OrderID
	m.orderNumber = res.OrderNumber
	m.qrData = res.QRData
	m.submitted = req
	if m.limit > 0 && !m.closed {
		m.waitTimer = m.clock.AfterFunc(m.limit, m.abandon)
	}
	return m.snapshotLocked(), nil
}

// Confirm asks the backend to mark the order paid. On success the cart is
// cleared and the dwell countdown starts. On failure the machine keeps
// waiting for payment and raises an alert.
func (m *Machine) Confirm(ctx context.Context) (Snapshot, error) {
	id, err := m.beginPaymentCall()
	if err != nil {
		return m.Snapshot(), err
	}

	err = m.gw.MockPay(ctx, id)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight = false
	if err != nil {
		m.alert = AlertConfirmFailed
		return m.snapshotLocked(), fmt.Errorf("confirm payment: %w", err)
	}
	m.succeedLocked()
	return m.snapshotLocked(), nil
}

// Sync polls the order status and completes the checkout when the backend
// reports it paid. Poll failures are returned but raise no alert.
func (m *Machine) Sync(ctx context.Context) (Snapshot, error) {
	id, err := m.beginPaymentCall()
	if err != nil {
		return m.Snapshot(), err
	}

	st, err := m.gw.OrderStatus(ctx, id)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight = false
	if err != nil {
		return m.snapshotLocked(), fmt.Errorf("order status: %w", err)
	}
	if st != nil && st.Paid() {
		m.succeedLocked()
	}
	return m.snapshotLocked(), nil
}

// Submitted is the request that created the current order. It survives the
// cart being cleared on success.
func (m *Machine) Submitted() Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submitted
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Close cancels a pending dwell countdown.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.stopWaitLocked()
	if m.dwellTimer != nil {
		m.dwellTimer.Stop()
		m.dwellTimer = nil
	}
}

func (m *Machine) beginPaymentCall() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight {
		return 0, ErrInFlight
	}
	if !CanTransition(m.phase, PhaseSuccess) {
		return 0, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, m.phase, PhaseSuccess)
	}
	m.inFlight = true
	m.alert = ""
	return m.orderID, nil
}

// succeedLocked takes the paid lines out of the cart. Anything added after
// the order was submitted stays.
func (m *Machine) succeedLocked() {
	m.phase = PhaseSuccess
	m.alert = ""
	m.stopWaitLocked()
	for _, l := range m.submitted.Items {
		m.cart.UpdateQuantity(l.ProductID, -l.Quantity)
	}
	if m.closed {
		return
	}
	if m.dwellTimer != nil {
		m.dwellTimer.Stop()
	}
	m.dwellTimer = m.clock.AfterFunc(m.dwell, m.finish)
}

func (m *Machine) abandon() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waitTimer = nil
	if m.phase == PhaseAwaitingPayment {
		m.abandoned = true
	}
}

func (m *Machine) stopWaitLocked() {
	if m.waitTimer != nil {
		m.waitTimer.Stop()
		m.waitTimer = nil
	}
}

func (m *Machine) finish() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.dwellTimer = nil
	done := m.onDone
	m.mu.Unlock()

	if done != nil {
		done()
	}
}

func (m *Machine) snapshotLocked() Snapshot {
	return Snapshot{
		Phase:       m.phase,
		OrderID:     m.orderID,
		OrderNumber: m.orderNumber,
		QRData:      m.qrData,
		QRImage:     qrImage(m.qrData),
		Alert:       m.alert,
		InFlight:    m.inFlight,
	}
}

func (r *Result) valid() bool {
	if r == nil || r.OrderID == 0 {
		return false
	}
	data := string(r.QRData)
	return data != "" && data != "null"
}

// qrImage pulls the scannable image reference out of the opaque payment
// payload, if the payment provider sent one.
func qrImage(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var p struct {
		QRImage string `json:"qrImage"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return ""
	}
	return p.QRImage
}
