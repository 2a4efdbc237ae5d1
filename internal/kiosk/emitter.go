package kiosk

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-kiosk/internal/kafka"
)

// Publisher is satisfied by kafkax.Producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Emitter wraps kiosk events in an Envelope and hands them to the producers.
// A nil Emitter or nil publisher drops events, which is how the kiosk runs
// without Kafka.
type Emitter struct {
	session  Publisher
	payments Publisher
	producer string
	kioskID  string
	now      func() time.Time
}

func NewEmitter(session, payments Publisher, producer, kioskID string) *Emitter {
	return &Emitter{
		session:  session,
		payments: payments,
		producer: producer,
		kioskID:  kioskID,
		now:      time.Now,
	}
}

func (e *Emitter) SessionStarted(sessionID string) {
	if e == nil {
		return
	}
	e.emit(e.session, EventSessionStarted, e.kioskID, sessionID, SessionStartedPayload{SessionID: sessionID})
}

func (e *Emitter) SessionIdled(sessionID string, cartItems int) {
	if e == nil {
		return
	}
	e.emit(e.session, EventSessionIdled, e.kioskID, sessionID, SessionIdledPayload{SessionID: sessionID, CartItems: cartItems})
}

func (e *Emitter) CheckoutInitiated(p CheckoutInitiatedPayload) {
	if e == nil {
		return
	}
	e.emit(e.session, EventCheckoutInitiated, e.kioskID, p.SessionID, p)
}

func (e *Emitter) CheckoutFailed(p CheckoutFailedPayload) {
	if e == nil {
		return
	}
	e.emit(e.session, EventCheckoutFailed, e.kioskID, p.SessionID, p)
}

func (e *Emitter) PaymentConfirmed(p PaymentConfirmedPayload) {
	if e == nil {
		return
	}
	if p.PaidAt.IsZero() {
		p.PaidAt = e.now().UTC()
	}
	id := strconv.FormatInt(p.OrderID, 10)
	e.emit(e.payments, EventPaymentConfirmed, id, id, p)
}

func (e *Emitter) emit(pub Publisher, eventType, key, correlationID string, payload any) {
	if pub == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    e.now().UTC(),
		Producer:      e.producer,
		KioskID:       e.kioskID,
		CorrelationID: correlationID,
		Payload:       kafkax.MustMarshal(payload),
	}
	pub.Publish(PartitionKey(key), kafkax.MustMarshal(ev),
		kafkago.Header{Key: kafkax.HeaderEventType, Value: []byte(eventType)},
		kafkago.Header{Key: kafkax.HeaderEventVersion, Value: []byte("1")},
	)
}
