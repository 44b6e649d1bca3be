package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type repository struct {
	db *sql.DB
}

// NewRepository returns the postgres-backed Store.
func NewRepository(db *sql.DB) Store {
	return &repository{db: db}
}

func (r *repository) GetOrder(ctx context.Context, id uint) (*Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, number, total_amount, currency, payment_status, COALESCE(payment_reference, ''), created_at, updated_at
		FROM orders WHERE id = $1
	`, id)

	var o Order
	err := row.Scan(
		&o.ID, &o.Number, &o.TotalAmount, &o.Currency,
		&o.PaymentStatus, &o.PaymentReference, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if o.Metadata, err = r.loadMetadata(ctx, id); err != nil {
		return nil, err
	}
	if o.Items, err = r.loadItems(ctx, id); err != nil {
		return nil, err
	}

	return &o, nil
}

func (r *repository) loadMetadata(ctx context.Context, orderID uint) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT meta_key, meta_value FROM order_metadata WHERE order_id = $1
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

func (r *repository) loadItems(ctx context.Context, orderID uint) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, quantity, COALESCE(image_url, '') FROM order_items WHERE order_id = $1 ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.Name, &it.Quantity, &it.ImageURL); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *repository) FindByMetadata(ctx context.Context, key, value string) (*Order, error) {
	var id uint
	err := r.db.QueryRowContext(ctx, `
		SELECT order_id FROM order_metadata WHERE meta_key = $1 AND meta_value = $2 LIMIT 1
	`, key, value).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	return r.GetOrder(ctx, id)
}

func (r *repository) MergeMetadata(ctx context.Context, orderID uint, meta map[string]string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("merge metadata: begin tx: %w", err)
	}
	defer tx.Rollback()

	for k, v := range meta {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_metadata (order_id, meta_key, meta_value)
			VALUES ($1, $2, $3)
			ON CONFLICT (order_id, meta_key)
			DO UPDATE SET meta_value = EXCLUDED.meta_value
		`, orderID, k, v)
		if err != nil {
			return fmt.Errorf("merge metadata %q: %w", k, err)
		}
	}

	return tx.Commit()
}

func (r *repository) SetStatus(ctx context.Context, orderID uint, status PaymentStatus, note string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE orders SET payment_status = $1, updated_at = now() WHERE id = $2
	`, status, orderID)
	if err != nil {
		return err
	}

	if note != "" {
		return r.AddNote(ctx, orderID, note)
	}
	return nil
}

func (r *repository) MarkPaid(ctx context.Context, orderID uint, transactionRef string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = 'processing', payment_reference = $1, updated_at = now()
		WHERE id = $2 AND payment_status = 'pending'
	`, transactionRef, orderID)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *repository) MarkFailed(ctx context.Context, orderID uint, note string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = 'failed', updated_at = now()
		WHERE id = $1 AND payment_status = 'pending'
	`, orderID)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	if note != "" {
		if err := r.AddNote(ctx, orderID, note); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (r *repository) AddNote(ctx context.Context, orderID uint, note string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO order_notes (order_id, note) VALUES ($1, $2)
	`, orderID, note)
	return err
}
