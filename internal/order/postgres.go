package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore persists orders in Postgres.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

const selectOrder = `SELECT id, status, total::text, currency, COALESCE(customer_id, 0), COALESCE(session_id, ''),
	billing, COALESCE(transaction_id, ''), COALESCE(status_reason, ''), paid_at, created_at, updated_at
FROM orders WHERE id = $1`

// Get implements Store.
func (s PostgresStore) Get(ctx context.Context, id int64) (Order, error) {
	var (
		o       Order
		status  string
		total   string
		billing []byte
	)
	err := s.Pool.QueryRow(ctx, selectOrder, id).Scan(
		&o.ID, &status, &total, &o.Currency, &o.CustomerID, &o.SessionID,
		&billing, &o.TransactionID, &o.StatusReason, &o.PaidAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("order: get %d: %w", id, err)
	}
	o.Status = Status(status)
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return Order{}, fmt.Errorf("order: parse total %q: %w", total, err)
	}
	if len(billing) > 0 {
		if err := json.Unmarshal(billing, &o.Billing); err != nil {
			return Order{}, fmt.Errorf("order: decode billing: %w", err)
		}
	}
	return o, nil
}

const insertOrder = `INSERT INTO orders (status, total, currency, customer_id, session_id, billing)
VALUES ($1, $2::numeric, $3, NULLIF($4::bigint, 0), NULLIF($5::text, ''), $6::jsonb)
RETURNING id, created_at, updated_at`

// Create inserts o as a new order and returns it with its assigned id.
func (s PostgresStore) Create(ctx context.Context, o Order) (Order, error) {
	if o.Status == "" {
		o.Status = StatusPending
	}
	billing, err := json.Marshal(o.Billing)
	if err != nil {
		return Order{}, fmt.Errorf("order: encode billing: %w", err)
	}
	err = s.Pool.QueryRow(ctx, insertOrder,
		string(o.Status), o.Total.StringFixed(2), o.Currency, o.CustomerID, o.SessionID, billing,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, fmt.Errorf("order: create: %w", err)
	}
	return o, nil
}

const transitionOrder = `UPDATE orders SET
	status = $2,
	transaction_id = CASE WHEN $3::text = '' THEN transaction_id ELSE $3::text END,
	status_reason = $4,
	paid_at = CASE WHEN $2::text = 'paid' THEN $6 ELSE paid_at END,
	updated_at = $6
WHERE id = $1 AND status = ANY($5::text[])`

// Transition implements Store. The status guard lives in the UPDATE itself so
// concurrent callbacks for the same order cannot both apply.
func (s PostgresStore) Transition(ctx context.Context, id int64, t Transition) (bool, error) {
	from := make([]string, 0, len(t.From))
	for _, st := range t.From {
		from = append(from, string(st))
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("order: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	tag, err := tx.Exec(ctx, transitionOrder, id, string(t.To), t.TransactionID, t.Reason, from, now)
	if err != nil {
		return false, fmt.Errorf("order: transition %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
			return false, fmt.Errorf("order: lookup %d: %w", id, err)
		}
		if !exists {
			return false, ErrNotFound
		}
		return false, nil
	}
	if t.Note != "" {
		if _, err := tx.Exec(ctx, `INSERT INTO order_notes (order_id, body, created_at) VALUES ($1, $2, $3)`, id, t.Note, now); err != nil {
			return false, fmt.Errorf("order: add note %d: %w", id, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("order: commit: %w", err)
	}
	return true, nil
}

// Notes implements Store.
func (s PostgresStore) Notes(ctx context.Context, id int64) ([]Note, error) {
	rows, err := s.Pool.Query(ctx, `SELECT order_id, body, created_at FROM order_notes WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("order: notes %d: %w", id, err)
	}
	notes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Note, error) {
		var n Note
		err := row.Scan(&n.OrderID, &n.Body, &n.CreatedAt)
		return n, err
	})
	if err != nil {
		return nil, fmt.Errorf("order: notes %d: %w", id, err)
	}
	return notes, nil
}
