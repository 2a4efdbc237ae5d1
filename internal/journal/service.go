// Package journal records paid kiosk orders from the payment event stream.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-kiosk/internal/kafka"
	"github.com/ariefcatur/go-kiosk/internal/kiosk"
	"github.com/ariefcatur/go-kiosk/internal/redisx"
)

type Store interface {
	Insert(ctx context.Context, e Entry) (bool, error)
}

type Service struct {
	Repo        Store
	Redis       *redis.Client // optional; the table's primary key is the last line of defence
	ServiceName string
}

// HandlePaymentConfirmed is installed as the consumer handler.
func (s *Service) HandlePaymentConfirmed(ctx context.Context, m kafkago.Message) error {
	var env kiosk.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		log.Printf("journal: skipping undecodable message at offset %d: %v", m.Offset, err)
		return nil
	}
	if env.EventType != kiosk.EventPaymentConfirmed {
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if s.Redis != nil {
		seen, err := redisx.Seen(ctx, s.Redis, dkey)
		if err != nil {
			log.Printf("journal: dedup check failed, falling back to db: %v", err)
		} else if seen {
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[kiosk.PaymentConfirmedPayload](env.Payload)
	if err != nil {
		log.Printf("journal: event %s: %v", env.EventID, err)
		return nil
	}

	// the insert is idempotent on order_id; the dedup key is only written
	// once it has committed, so a crash in between just repeats the insert
	inserted, err := s.Repo.Insert(ctx, Entry{
		OrderID:     p.OrderID,
		OrderNumber: p.OrderNumber,
		KioskID:     env.KioskID,
		TotalCents:  p.TotalCents,
		Items:       p.Items,
		PaidAt:      p.PaidAt,
	})
	if err != nil {
		return fmt.Errorf("journal order %d: %w", p.OrderID, err)
	}
	if s.Redis != nil {
		if err := redisx.Mark(ctx, s.Redis, dkey, redisx.TTLDedup); err != nil {
			log.Printf("journal: mark %s: %v", dkey, err)
		}
	}
	if inserted {
		log.Printf("journal: order %s (%d) from %s recorded", p.OrderNumber, p.OrderID, env.KioskID)
	}
	return nil
}
