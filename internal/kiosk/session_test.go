package kiosk

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-kiosk/internal/catalog"
	"github.com/ariefcatur/go-kiosk/internal/checkout"
	"github.com/ariefcatur/go-kiosk/internal/clock"
	"github.com/ariefcatur/go-kiosk/internal/idle"
	kafkax "github.com/ariefcatur/go-kiosk/internal/kafka"
)

type stubSource struct{}

func (stubSource) StoreCategories(context.Context) ([]catalog.Category, error) {
	return []catalog.Category{{ID: 1, Name: "Coffee"}}, nil
}

func (stubSource) StoreProducts(context.Context) ([]catalog.Product, error) {
	return []catalog.Product{
		{ID: 10, CategoryID: 1, Name: "Latte", Price: 350},
		{ID: 11, CategoryID: 1, Name: "Espresso", Price: 200},
	}, nil
}

type stubGateway struct {
	mu      sync.Mutex
	initErr error
	payErr  error
	paid    bool
}

func (g *stubGateway) Checkout(_ context.Context, req checkout.Request) (*checkout.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.initErr != nil {
		return nil, g.initErr
	}
	return &checkout.Result{OrderID: 501, OrderNumber: "ORD-501", QRData: json.RawMessage(`{"qrImage":"img"}`), TotalAmount: req.TotalAmount}, nil
}

func (g *stubGateway) MockPay(context.Context, int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.payErr
}

func (g *stubGateway) OrderStatus(_ context.Context, id int64) (*checkout.OrderStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := &checkout.OrderStatus{OrderID: id, Status: "PENDING", PaymentStatus: "PENDING"}
	if g.paid {
		st.Status, st.PaymentStatus = "PAID", "COMPLETED"
	}
	return st, nil
}

type recorder struct {
	mu   sync.Mutex
	msgs []kafkago.Message
}

func (r *recorder) Publish(key, value []byte, headers ...kafkago.Header) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, kafkago.Message{Key: key, Value: value, Headers: headers})
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.msgs {
		out = append(out, kafkax.Header(m, kafkax.HeaderEventType))
	}
	return out
}

func (r *recorder) envelope(t *testing.T, i int) Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	var env Envelope
	require.NoError(t, json.Unmarshal(r.msgs[i].Value, &env))
	return env
}

type fixture struct {
	s        *Session
	clock    *clock.Fake
	gw       *stubGateway
	sessions *recorder
	payments *recorder
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{clock: clock.NewFake(), gw: &stubGateway{}, sessions: &recorder{}, payments: &recorder{}}
	f.s = NewSession(Deps{
		Gateway:     f.gw,
		Catalog:     catalog.NewService(stubSource{}, nil),
		Events:      NewEmitter(f.sessions, f.payments, "kiosk", "kiosk-01"),
		Clock:       f.clock,
		IdleTimeout: 45 * time.Second,
		Dwell:       10 * time.Second,
	})
	t.Cleanup(f.s.Close)
	return f
}

func (f *fixture) fillCart(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, f.s.AddProduct(ctx, 10))
	require.NoError(t, f.s.AddProduct(ctx, 10))
	require.NoError(t, f.s.AddProduct(ctx, 11))
}

func TestSession_StartsIdleAndWakesOnTap(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, idle.StateIdle, f.s.View().State)

	v := f.s.Start()
	assert.Equal(t, idle.StateActive, v.State)
	assert.NotEmpty(t, v.SessionID)
	assert.Equal(t, []string{EventSessionStarted}, f.sessions.types())

	env := f.sessions.envelope(t, 0)
	assert.Equal(t, "kiosk-01", env.KioskID)
	assert.Equal(t, v.SessionID, env.CorrelationID)
}

func TestSession_IdlesAfterTimeoutKeepingCart(t *testing.T) {
	f := newFixture(t)
	f.s.Start()
	f.fillCart(t)

	f.clock.Advance(30 * time.Second)
	require.NoError(t, f.s.Activity(idle.TouchStart))
	f.clock.Advance(30 * time.Second)
	assert.Equal(t, idle.StateActive, f.s.View().State)

	require.NoError(t, f.s.Activity(idle.PointerMove))
	f.clock.Advance(15 * time.Second)

	v := f.s.View()
	assert.Equal(t, idle.StateIdle, v.State)
	assert.Equal(t, 3, v.Cart.Count)
	assert.Equal(t, []string{EventSessionStarted, EventSessionIdled}, f.sessions.types())

	assert.ErrorIs(t, f.s.Activity("wheel"), ErrUnknownEvent)
}

func TestSession_AddProductUsesCatalog(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)

	v := f.s.View()
	assert.Equal(t, int64(900), v.Cart.Total)
	assert.Equal(t, "$9.00", v.Cart.Label)
	assert.True(t, v.Cart.Open)

	assert.ErrorIs(t, f.s.AddProduct(context.Background(), 99), ErrNotOnSale)
}

func TestSession_EmptyCartCannotCheckout(t *testing.T) {
	f := newFixture(t)

	_, err := f.s.BeginCheckout()
	assert.ErrorIs(t, err, checkout.ErrEmptyCart)
	assert.Nil(t, f.s.View().Checkout)

	_, err = f.s.Pay(context.Background())
	assert.ErrorIs(t, err, ErrNoCheckout)
}

func TestSession_SummaryWithEmptiedCartRedirects(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)
	_, err := f.s.BeginCheckout()
	require.NoError(t, err)
	require.NotNil(t, f.s.View().Checkout)

	require.NoError(t, f.s.ClearCart())
	assert.Nil(t, f.s.View().Checkout)
}

func TestSession_FullCheckout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.s.Start()
	f.fillCart(t)

	snap, err := f.s.BeginCheckout()
	require.NoError(t, err)
	assert.Equal(t, checkout.PhaseSummary, snap.Phase)

	snap, err = f.s.Pay(ctx)
	require.NoError(t, err)
	assert.Equal(t, checkout.PhaseAwaitingPayment, snap.Phase)
	assert.Equal(t, "img", snap.QRImage)

	// waiting on the QR code does not time out
	f.clock.Advance(2 * time.Minute)
	assert.Equal(t, idle.StateActive, f.s.View().State)

	snap, err = f.s.Confirm(ctx)
	require.NoError(t, err)
	assert.Equal(t, checkout.PhaseSuccess, snap.Phase)
	assert.Zero(t, f.s.View().Cart.Count)

	require.Len(t, f.payments.msgs, 1)
	env := f.payments.envelope(t, 0)
	assert.Equal(t, EventPaymentConfirmed, env.EventType)
	p, err := kafkax.UnwrapPayload[PaymentConfirmedPayload](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, int64(501), p.OrderID)
	assert.Equal(t, int64(900), p.TotalCents)
	assert.Len(t, p.Items, 2)
	assert.False(t, p.PaidAt.IsZero())

	f.clock.Advance(10 * time.Second)
	v := f.s.View()
	assert.Nil(t, v.Checkout)
	assert.Equal(t, idle.StateIdle, v.State)
}

func TestSession_SyncCompletesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.s.Start()
	f.fillCart(t)
	_, err := f.s.BeginCheckout()
	require.NoError(t, err)
	_, err = f.s.Pay(ctx)
	require.NoError(t, err)

	snap, err := f.s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, checkout.PhaseAwaitingPayment, snap.Phase)

	f.gw.mu.Lock()
	f.gw.paid = true
	f.gw.mu.Unlock()

	snap, err = f.s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, checkout.PhaseSuccess, snap.Phase)

	_, err = f.s.Sync(ctx)
	assert.ErrorIs(t, err, checkout.ErrIllegalTransition)
	assert.Len(t, f.payments.msgs, 1)
}

func TestSession_PayFailureEmitsAndKeepsCart(t *testing.T) {
	f := newFixture(t)
	f.gw.initErr = errors.New("bad gateway")
	f.s.Start()
	f.fillCart(t)
	_, err := f.s.BeginCheckout()
	require.NoError(t, err)

	snap, err := f.s.Pay(context.Background())
	require.Error(t, err)
	assert.Equal(t, checkout.PhaseSummary, snap.Phase)
	assert.Equal(t, checkout.AlertPayInitFailed, snap.Alert)
	assert.Equal(t, 3, f.s.View().Cart.Count)
	assert.Contains(t, f.sessions.types(), EventCheckoutFailed)
	assert.Empty(t, f.payments.msgs)
}

func TestSession_LeaveCheckout(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)
	_, err := f.s.BeginCheckout()
	require.NoError(t, err)

	require.NoError(t, f.s.LeaveCheckout())
	assert.Nil(t, f.s.View().Checkout)
	assert.Equal(t, 3, f.s.View().Cart.Count)
	require.NoError(t, f.s.LeaveCheckout())
}

func TestSession_WithoutEvents(t *testing.T) {
	s := NewSession(Deps{
		Gateway:     &stubGateway{},
		Catalog:     catalog.NewService(stubSource{}, nil),
		Clock:       clock.NewFake(),
		IdleTimeout: time.Second,
	})
	defer s.Close()

	assert.NotPanics(t, func() {
		s.Start()
		require.NoError(t, s.AddProduct(context.Background(), 10))
		_, err := s.BeginCheckout()
		require.NoError(t, err)
		_, err = s.Pay(context.Background())
		require.NoError(t, err)
		_, err = s.Confirm(context.Background())
		require.NoError(t, err)
	})
}

func TestSession_CartLockedWhileOrderIsPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.s.Start()
	require.NoError(t, f.s.AddProduct(ctx, 10))
	_, err := f.s.BeginCheckout()
	require.NoError(t, err)
	_, err = f.s.Pay(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, f.s.AddProduct(ctx, 11), checkout.ErrInFlight)
	assert.ErrorIs(t, f.s.UpdateQuantity(10, 1), checkout.ErrInFlight)
	assert.ErrorIs(t, f.s.RemoveProduct(10), checkout.ErrInFlight)
	assert.ErrorIs(t, f.s.ClearCart(), checkout.ErrInFlight)
	f.s.ToggleCart()

	_, err = f.s.Confirm(ctx)
	require.NoError(t, err)
	p, err := kafkax.UnwrapPayload[PaymentConfirmedPayload](f.payments.envelope(t, 0).Payload)
	require.NoError(t, err)
	assert.Equal(t, int64(350), p.TotalCents)
	assert.Zero(t, f.s.View().Cart.Count)

	// a new order can be started on the success screen
	require.NoError(t, f.s.AddProduct(ctx, 11))
	assert.Equal(t, 1, f.s.View().Cart.Count)
}

func TestSession_UnpaidQRCodeIsAbandoned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.s.Start()
	f.fillCart(t)
	_, err := f.s.BeginCheckout()
	require.NoError(t, err)
	_, err = f.s.Pay(ctx)
	require.NoError(t, err)

	f.clock.Advance(AbandonAfterIdles*45*time.Second - time.Second)
	assert.Equal(t, idle.StateActive, f.s.View().State)

	f.clock.Advance(time.Second)
	v := f.s.View()
	assert.Equal(t, idle.StateIdle, v.State)
	assert.Nil(t, v.Checkout)
	assert.Equal(t, 3, v.Cart.Count)
	assert.Empty(t, f.payments.msgs)
}
