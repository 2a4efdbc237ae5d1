package journal

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-kiosk/internal/cart"
)

//go:embed schema.sql
var schema string

// Entry is one paid kiosk order.
type Entry struct {
	OrderID     int64       `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	KioskID     string      `json:"kiosk_id"`
	TotalCents  int64       `json:"total_cents"`
	Items       []cart.Line `json:"items"`
	PaidAt      time.Time   `json:"paid_at"`
}

func (e Entry) ItemCount() int {
	n := 0
	for _, it := range e.Items {
		n += it.Quantity
	}
	return n
}

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.Exec(ctx, schema)
	return err
}

// Insert records the order and its lines in one transaction. It reports
// false when the order was already journaled.
func (r *Repo) Insert(ctx context.Context, e Entry) (bool, error) {
	items, err := json.Marshal(e.Items)
	if err != nil {
		return false, fmt.Errorf("encode items: %w", err)
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		INSERT INTO kiosk_orders(order_id, order_number, kiosk_id, total_cents, item_count, items, paid_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (order_id) DO NOTHING`,
		e.OrderID, e.OrderNumber, e.KioskID, e.TotalCents, e.ItemCount(), items, e.PaidAt)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() == 0 {
		return false, nil
	}

	for _, it := range e.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO kiosk_order_items(order_id, product_id, quantity)
			VALUES ($1,$2,$3)
			ON CONFLICT (order_id, product_id) DO NOTHING`,
			e.OrderID, it.ProductID, it.Quantity); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Recent lists the latest journaled orders of one kiosk, newest first. An
// empty kioskID lists every kiosk.
func (r *Repo) Recent(ctx context.Context, kioskID string, limit int) ([]Entry, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT order_id, order_number, kiosk_id, total_cents, items, paid_at
		FROM kiosk_orders
		WHERE $1 = '' OR kiosk_id = $1
		ORDER BY paid_at DESC
		LIMIT $2`, kioskID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var items []byte
		if err := rows.Scan(&e.OrderID, &e.OrderNumber, &e.KioskID, &e.TotalCents, &items, &e.PaidAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(items, &e.Items); err != nil {
			return nil, fmt.Errorf("decode items of order %d: %w", e.OrderID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
