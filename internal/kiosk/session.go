// Package kiosk owns the state of one kiosk: the cart, the idle detector and
// the checkout in progress. cmd/kiosk creates a single Session and hands it
// to the HTTP handlers.
package kiosk

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-kiosk/internal/cart"
	"github.com/ariefcatur/go-kiosk/internal/catalog"
	"github.com/ariefcatur/go-kiosk/internal/checkout"
	"github.com/ariefcatur/go-kiosk/internal/clock"
	"github.com/ariefcatur/go-kiosk/internal/idle"
	"github.com/ariefcatur/go-kiosk/internal/money"
)

var (
	ErrNoCheckout   = errors.New("no checkout in progress")
	ErrUnknownEvent = errors.New("unknown activity event")
	ErrNotOnSale    = errors.New("product not in catalog")
)

type Deps struct {
	Gateway     checkout.Gateway
	Catalog     *catalog.Service
	Events      *Emitter // optional
	Clock       clock.Clock
	IdleTimeout time.Duration
	Dwell       time.Duration
	AwaitLimit  time.Duration // defaults to AbandonAfterIdles idle timeouts
}

// AbandonAfterIdles is how many idle timeouts an unpaid QR code may stay on
// screen without any input before the kiosk gives up on it.
const AbandonAfterIdles = 4

type Session struct {
	mu        sync.Mutex
	sessionID string
	machine   *checkout.Machine // nil outside the checkout page

	cart     *cart.Store
	detector *idle.Detector
	gw       checkout.Gateway
	catalog  *catalog.Service
	events   *Emitter
	clock    clock.Clock
	dwell    time.Duration
	await    time.Duration
}

func NewSession(d Deps) *Session {
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Dwell <= 0 {
		d.Dwell = checkout.DefaultDwell
	}
	if d.AwaitLimit <= 0 {
		d.AwaitLimit = AbandonAfterIdles * d.IdleTimeout
	}
	s := &Session{
		cart:    cart.NewStore(),
		gw:      d.Gateway,
		catalog: d.Catalog,
		events:  d.Events,
		clock:   d.Clock,
		dwell:   d.Dwell,
		await:   d.AwaitLimit,
	}
	s.detector = idle.New(d.IdleTimeout,
		idle.WithClock(d.Clock),
		idle.WithBusy(s.busy),
		idle.WithOnChange(s.onIdleChange),
	)
	return s
}

func (s *Session) Catalog(ctx context.Context) (*catalog.Snapshot, error) {
	return s.catalog.Load(ctx)
}

// Start is the tap on the attract screen.
func (s *Session) Start() View {
	s.mu.Lock()
	fresh := s.detector.State() == idle.StateIdle
	if fresh {
		s.sessionID = uuid.NewString()
	}
	id := s.sessionID
	s.mu.Unlock()

	s.detector.Start()
	if fresh {
		s.events.SessionStarted(id)
	}
	return s.View()
}

func (s *Session) Activity(e idle.Event) error {
	switch e {
	case idle.PointerDown, idle.KeyPress, idle.TouchStart, idle.PointerMove, idle.Scroll:
	default:
		return ErrUnknownEvent
	}
	s.detector.Activity(e)
	return nil
}

// AddProduct looks the product up in the catalog so the cart only ever holds
// real prices.
func (s *Session) AddProduct(ctx context.Context, productID int64) error {
	snap, err := s.catalog.Load(ctx)
	if err != nil {
		return err
	}
	p, ok := snap.Product(productID)
	if !ok {
		return ErrNotOnSale
	}
	return s.editCart(func(c *cart.Store) { c.AddToCart(p) })
}

func (s *Session) UpdateQuantity(productID int64, delta int) error {
	return s.editCart(func(c *cart.Store) { c.UpdateQuantity(productID, delta) })
}

func (s *Session) RemoveProduct(productID int64) error {
	return s.editCart(func(c *cart.Store) { c.RemoveFromCart(productID) })
}

func (s *Session) ClearCart() error {
	return s.editCart(func(c *cart.Store) { c.ClearCart() })
}

// ToggleCart only shows or hides the drawer, so it is allowed at any time.
func (s *Session) ToggleCart() {
	s.cart.ToggleCart()
}

// editCart applies a cart change unless an order is being paid for, in which
// case it fails with checkout.ErrInFlight.
func (s *Session) editCart(f func(c *cart.Store)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine != nil && s.machine.Busy() {
		return checkout.ErrInFlight
	}
	f(s.cart)
	return nil
}

// BeginCheckout opens the checkout page. An empty cart sends the customer
// back to the ordering screen with checkout.ErrEmptyCart.
func (s *Session) BeginCheckout() (checkout.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine != nil && s.machine.Phase() != checkout.PhaseSuccess {
		return s.machine.Snapshot(), nil
	}
	if s.cart.Len() == 0 {
		return checkout.Snapshot{Phase: checkout.PhaseSummary}, checkout.ErrEmptyCart
	}
	if s.machine != nil {
		s.machine.Close()
	}
	var m *checkout.Machine
	m = checkout.NewMachine(s.gw, s.cart,
		checkout.WithClock(s.clock),
		checkout.WithDwell(s.dwell),
		checkout.WithAwaitLimit(s.await),
		checkout.OnDone(func() { s.finishCheckout(m) }),
	)
	s.machine = m
	return m.Snapshot(), nil
}

// LeaveCheckout goes back to ordering. It is refused while a request is in
// flight; an unpaid order is simply abandoned.
func (s *Session) LeaveCheckout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine == nil {
		return nil
	}
	if s.machine.Snapshot().InFlight {
		return checkout.ErrInFlight
	}
	s.machine.Close()
	s.machine = nil
	return nil
}

func (s *Session) Pay(ctx context.Context) (checkout.Snapshot, error) {
	m, id, err := s.current()
	if err != nil {
		return checkout.Snapshot{}, err
	}
	snap, err := m.Pay(ctx)
	switch {
	case err == nil:
		s.events.CheckoutInitiated(CheckoutInitiatedPayload{
			SessionID:   id,
			OrderID:     snap.OrderID,
			OrderNumber: snap.OrderNumber,
			TotalCents:  m.Submitted().TotalAmount,
		})
	case errors.Is(err, checkout.ErrInFlight), errors.Is(err, checkout.ErrIllegalTransition):
	case errors.Is(err, checkout.ErrEmptyCart):
		s.dropIfEmpty()
	default:
		log.Printf("checkout init failed: %v", err)
		s.events.CheckoutFailed(CheckoutFailedPayload{SessionID: id, Stage: StageInit, Reason: err.Error()})
	}
	return snap, err
}

func (s *Session) Confirm(ctx context.Context) (checkout.Snapshot, error) {
	m, id, err := s.current()
	if err != nil {
		return checkout.Snapshot{}, err
	}
	snap, err := m.Confirm(ctx)
	switch {
	case err == nil:
		s.confirmed(m, id, snap)
	case errors.Is(err, checkout.ErrInFlight), errors.Is(err, checkout.ErrIllegalTransition):
	default:
		log.Printf("payment confirmation failed for order %d: %v", snap.OrderID, err)
		s.events.CheckoutFailed(CheckoutFailedPayload{SessionID: id, OrderID: snap.OrderID, Stage: StageConfirm, Reason: err.Error()})
	}
	return snap, err
}

// Sync polls the payment status; the renderer calls it while the QR code is
// on screen.
func (s *Session) Sync(ctx context.Context) (checkout.Snapshot, error) {
	m, id, err := s.current()
	if err != nil {
		return checkout.Snapshot{}, err
	}
	before := m.Phase()
	snap, err := m.Sync(ctx)
	if err == nil && before != checkout.PhaseSuccess && snap.Phase == checkout.PhaseSuccess {
		s.confirmed(m, id, snap)
	}
	return snap, err
}

// Close stops every timer.
func (s *Session) Close() {
	s.detector.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine != nil {
		s.machine.Close()
	}
}

type CartView struct {
	Items []cart.Item `json:"items"`
	Count int         `json:"count"`
	Total int64       `json:"total"`
	Label string      `json:"total_label"`
	Open  bool        `json:"open"`
}

type View struct {
	SessionID string             `json:"session_id,omitempty"`
	State     idle.State         `json:"state"`
	Cart      CartView           `json:"cart"`
	Checkout  *checkout.Snapshot `json:"checkout,omitempty"`
}

func (s *Session) View() View {
	s.dropIfEmpty()

	s.mu.Lock()
	v := View{SessionID: s.sessionID, State: s.detector.State()}
	if s.machine != nil {
		snap := s.machine.Snapshot()
		v.Checkout = &snap
	}
	s.mu.Unlock()

	total := s.cart.Total()
	v.Cart = CartView{
		Items: s.cart.Items(),
		Count: s.cart.Count(),
		Total: total,
		Label: money.Format(total),
		Open:  s.cart.IsOpen(),
	}
	return v
}

func (s *Session) current() (*checkout.Machine, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine == nil {
		return nil, "", ErrNoCheckout
	}
	return s.machine, s.sessionID, nil
}

// dropIfEmpty leaves a checkout whose summary has nothing left to pay for.
func (s *Session) dropIfEmpty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine == nil || s.cart.Len() > 0 {
		return
	}
	snap := s.machine.Snapshot()
	if snap.Phase == checkout.PhaseSummary && !snap.InFlight {
		s.machine.Close()
		s.machine = nil
	}
}

func (s *Session) confirmed(m *checkout.Machine, sessionID string, snap checkout.Snapshot) {
	req := m.Submitted()
	s.events.PaymentConfirmed(PaymentConfirmedPayload{
		OrderID:     snap.OrderID,
		OrderNumber: snap.OrderNumber,
		SessionID:   sessionID,
		Items:       req.Items,
		TotalCents:  req.TotalAmount,
	})
}

// finishCheckout runs when the success screen has been shown long enough:
// the checkout is discarded and the kiosk returns to the attract screen.
func (s *Session) finishCheckout(m *checkout.Machine) {
	s.mu.Lock()
	if s.machine != m {
		s.mu.Unlock()
		return
	}
	s.machine = nil
	s.mu.Unlock()

	s.detector.ForceIdle()
}

func (s *Session) busy() bool {
	s.mu.Lock()
	m := s.machine
	s.mu.Unlock()
	return m != nil && m.Busy()
}

func (s *Session) onIdleChange(st idle.State) {
	if st != idle.StateIdle {
		return
	}
	s.mu.Lock()
	id := s.sessionID
	if s.machine != nil && !s.machine.Busy() {
		s.machine.Close()
		s.machine = nil
	}
	s.mu.Unlock()

	s.events.SessionIdled(id, s.cart.Len())
}
