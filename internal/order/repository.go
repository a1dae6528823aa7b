package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"baklava-be/internal/apperror"
	"baklava-be/internal/db"
	"baklava-be/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Repository interface {
	// Create stores the order and its items in one transaction.
	Create(ctx context.Context, o *Order) (*Order, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetBySessionID(ctx context.Context, sessionID string) (*Order, error)
	List(ctx context.Context, filter ListFilter) ([]*Order, error)

	// CancelUnpaid and DeleteUnpaid only touch rows that are still unpaid.
	// They report false when a concurrent payment got there first.
	CancelUnpaid(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteUnpaid(ctx context.Context, id uuid.UUID) (bool, error)

	UpdateStatus(ctx context.Context, change StatusChange) (int, error)
	ListEvents(ctx context.Context, orderID uuid.UUID) ([]StatusEvent, error)

	AttachSession(ctx context.Context, id uuid.UUID, sessionID string) (bool, error)
	MarkPaid(ctx context.Context, id uuid.UUID, sessionID, paymentIntentID string) (MarkPaidResult, error)
	UpsertPaidBySession(ctx context.Context, o *Order) (ApplyResult, uuid.UUID, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const orderColumns = `
	id, reference_number, user_id, subtotal, tax_amount, tax_rate, total_amount,
	status, payment_status, payment_method,
	ship_full_name, ship_phone, ship_street, ship_city, ship_postal_code, ship_country,
	notes, session_id, payment_intent_id, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(s rowScanner) (*Order, error) {
	var o Order
	err := s.Scan(
		&o.ID, &o.ReferenceNumber, &o.UserID, &o.Subtotal, &o.TaxAmount, &o.TaxRate, &o.TotalAmount,
		&o.Status, &o.PaymentStatus, &o.PaymentMethod,
		&o.Shipping.FullName, &o.Shipping.Phone, &o.Shipping.Street, &o.Shipping.City,
		&o.Shipping.PostalCode, &o.Shipping.Country,
		&o.Notes, &o.SessionID, &o.PaymentIntentID, &o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repository) Create(ctx context.Context, o *Order) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("repo", "Order"),
		zap.String("method", "Create"),
		zap.String("reference_number", o.ReferenceNumber),
	)

	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}

	var created *Order
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO orders (
				id, reference_number, user_id, subtotal, tax_amount, tax_rate, total_amount,
				status, payment_status, payment_method,
				ship_full_name, ship_phone, ship_street, ship_city, ship_postal_code, ship_country,
				notes
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			RETURNING `+orderColumns,
			o.ID, o.ReferenceNumber, o.UserID, o.Subtotal, o.TaxAmount, o.TaxRate, o.TotalAmount,
			o.Status, o.PaymentStatus, o.PaymentMethod,
			o.Shipping.FullName, o.Shipping.Phone, o.Shipping.Street, o.Shipping.City,
			o.Shipping.PostalCode, o.Shipping.Country,
			o.Notes,
		)

		var err error
		created, err = scanOrder(row)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		created.Items = make([]Item, 0, len(o.Items))
		for i, it := range o.Items {
			it.ID = uuid.New()
			it.OrderID = created.ID
			_, err := tx.ExecContext(ctx, `
				INSERT INTO order_items (
					id, order_id, line_no, product_id, product_name, quantity, unit_price, subtotal
				)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, it.ID, it.OrderID, i+1, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice, it.Subtotal)
			if err != nil {
				return fmt.Errorf("insert order item %d: %w", i, err)
			}
			created.Items = append(created.Items, it)
		}
		return nil
	})
	if err != nil {
		log.Error("failed to create order", zap.Error(err))
		return nil, apperror.Storage("failed to create order", err)
	}

	log.Info("order created",
		zap.String("order_id", created.ID.String()),
		zap.Int("items", len(created.Items)),
	)
	return created, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("repo", "Order"),
		zap.String("method", "GetByID"),
		zap.String("order_id", id.String()),
	)

	o, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("order not found")
			return nil, ErrOrderNotFound
		}
		log.Error("failed to query order", zap.Error(err))
		return nil, apperror.Storage("failed to load order", err)
	}

	items, err := r.items(ctx, id)
	if err != nil {
		log.Error("failed to query order items", zap.Error(err))
		return nil, apperror.Storage("failed to load order items", err)
	}
	o.Items = items
	return o, nil
}

func (r *repository) items(ctx context.Context, orderID uuid.UUID) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, unit_price, subtotal
		FROM order_items
		WHERE order_id = $1
		ORDER BY line_no ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(
			&it.ID, &it.OrderID, &it.ProductID, &it.ProductName,
			&it.Quantity, &it.UnitPrice, &it.Subtotal,
		); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *repository) GetBySessionID(ctx context.Context, sessionID string) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("repo", "Order"),
		zap.String("method", "GetBySessionID"),
		zap.String("session_id", sessionID),
	)

	o, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE session_id = $1`, sessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		log.Error("failed to query order by session", zap.Error(err))
		return nil, apperror.Storage("failed to load order", err)
	}
	return o, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]*Order, error) {
	filter.normalize()
	log := logger.FromCtx(ctx).With(
		zap.String("repo", "Order"),
		zap.String("method", "List"),
	)

	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.UserID != nil {
		add("user_id = $%d", *filter.UserID)
	}
	if filter.Status != nil {
		add("status = $%d", *filter.Status)
	}
	if filter.PaymentStatus != nil {
		add("payment_status = $%d", *filter.PaymentStatus)
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list orders", zap.Error(err))
		return nil, apperror.Storage("failed to list orders", err)
	}
	defer rows.Close()

	orders := []*Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			log.Error("failed to scan order", zap.Error(err))
			return nil, apperror.Storage("failed to list orders", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		log.Error("rows iteration failed", zap.Error(err))
		return nil, apperror.Storage("failed to list orders", err)
	}

	log.Debug("orders listed", zap.Int("count", len(orders)))
	return orders, nil
}

func (r *repository) CancelUnpaid(ctx context.Context, id uuid.UUID) (bool, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("repo", "Order"),
		zap.String("method", "CancelUnpaid"),
		zap.String("order_id", id.String()),
	)

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = 'cancelled', version = version + 1, updated_at = NOW()
		WHERE id = $1
		  AND payment_status = 'unpaid'
		  AND status IN ('pending', 'pending_payment')
	`, id)
	if err != nil {
		log.Error("failed to cancel order", zap.Error(err))
		return false, apperror.Storage("failed to cancel order", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, apperror.Storage("failed to cancel order", err)
	}
	log.Info("cancel executed", zap.Int64("rows", n))
	return n == 1, nil
}

func (r *repository) DeleteUnpaid(ctx context.Context, id uuid.UUID) (bool, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("repo", "Order"),
		zap.String("method", "DeleteUnpaid"),
		zap.String("order_id", id.String()),
	)

	deleted := false
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var payment PaymentStatus
		err := tx.QueryRowContext(ctx,
			`SELECT payment_status FROM orders WHERE id = $1 FOR UPDATE`, id,
		).Scan(&payment)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("lock order: %w", err)
		}
		if payment != PaymentUnpaid {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, id); err != nil {
			return fmt.Errorf("delete order items: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1 AND payment_status = 'unpaid'`, id); err != nil {
			return fmt.Errorf("delete order: %w", err)
		}
		deleted = true
		return nil
	})
	if err != nil {
		log.Error("failed to delete order", zap.Error(err))
		return false, apperror.Storage("failed to delete order", err)
	}

	log.Info("delete executed", zap.Bool("deleted", deleted))
	return deleted, nil
}

func (r *repository) UpdateStatus(ctx context.Context, c StatusChange) (int, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("repo", "Order"),
		zap.String("method", "UpdateStatus"),
		zap.String("order_id", c.OrderID.String()),
		zap.Int("expected_version", c.ExpectedVersion),
	)

	var version int
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			UPDATE orders
			SET status = $1, payment_status = $2, version = version + 1, updated_at = NOW()
			WHERE id = $3 AND version = $4
			RETURNING version
		`, c.ToStatus, c.ToPayment, c.OrderID, c.ExpectedVersion).Scan(&version)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrStaleVersion
			}
			return fmt.Errorf("update order status: %w", err)
		}

		var actorID *uint
		if c.ActorID != 0 {
			actorID = &c.ActorID
		}
		var reason *string
		if c.Reason != "" {
			reason = &c.Reason
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_status_events (
				order_id, actor_id, actor, from_status, to_status,
				from_payment_status, to_payment_status, forced, reason
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, c.OrderID, actorID, c.Actor, c.FromStatus, c.ToStatus,
			c.FromPayment, c.ToPayment, c.Forced, reason)
		if err != nil {
			return fmt.Errorf("insert status event: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStaleVersion) {
			log.Warn("stale order version")
			return 0, ErrStaleVersion
		}
		log.Error("failed to update order status", zap.Error(err))
		return 0, apperror.Storage("failed to update order status", err)
	}

	log.Info("order status updated",
		zap.String("from", string(c.FromStatus)),
		zap.String("to", string(c.ToStatus)),
		zap.String("payment_to", string(c.ToPayment)),
		zap.Bool("forced", c.Forced),
	)
	return version, nil
}

func (r *repository) ListEvents(ctx context.Context, orderID uuid.UUID) ([]StatusEvent, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("repo", "Order"),
		zap.String("method", "ListEvents"),
		zap.String("order_id", orderID.String()),
	)

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, actor_id, actor, from_status, to_status,
		       from_payment_status, to_payment_status, forced, reason, created_at
		FROM order_status_events
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		log.Error("failed to list status events", zap.Error(err))
		return nil, apperror.Storage("failed to list status events", err)
	}
	defer rows.Close()

	events := []StatusEvent{}
	for rows.Next() {
		var e StatusEvent
		var actorID sql.NullInt64
		if err := rows.Scan(
			&e.ID, &e.OrderID, &actorID, &e.Actor, &e.FromStatus, &e.ToStatus,
			&e.FromPayment, &e.ToPayment, &e.Forced, &e.Reason, &e.CreatedAt,
		); err != nil {
			log.Error("failed to scan status event", zap.Error(err))
			return nil, apperror.Storage("failed to list status events", err)
		}
		if actorID.Valid {
			id := uint(actorID.Int64)
			e.ActorID = &id
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Storage("failed to list status events", err)
	}
	return events, nil
}

func (r *repository) AttachSession(ctx context.Context, id uuid.UUID, sessionID string) (bool, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("repo", "Order"),
		zap.String("method", "AttachSession"),
		zap.String("order_id", id.String()),
		zap.String("session_id", sessionID),
	)

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET session_id = $2, status = 'pending_payment', version = version + 1, updated_at = NOW()
		WHERE id = $1
		  AND payment_status = 'unpaid'
		  AND status IN ('pending', 'pending_payment')
	`, id, sessionID)
	if err != nil {
		log.Error("failed to attach session", zap.Error(err))
		return false, apperror.Storage("failed to attach payment session", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, apperror.Storage("failed to attach payment session", err)
	}
	return n == 1, nil
}

func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, sessionID, paymentIntentID string) (MarkPaidResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("repo", "Order"),
		zap.String("method", "MarkPaid"),
		zap.String("order_id", id.String()),
		zap.String("session_id", sessionID),
	)

	var res MarkPaidResult
	err := r.db.QueryRowContext(ctx, `
		UPDATE orders
		SET payment_status = 'paid',
		    status = CASE WHEN status IN ('pending', 'pending_payment') THEN 'processing' ELSE status END,
		    session_id = COALESCE(NULLIF($2, ''), session_id),
		    payment_intent_id = COALESCE(NULLIF($3, ''), payment_intent_id),
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1 AND payment_status = 'unpaid'
		RETURNING status, session_id
	`, id, sessionID, paymentIntentID).Scan(&res.StatusNow, &res.SessionNow)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Info("order already paid, nothing to update")
			return MarkPaidResult{}, nil
		}
		log.Error("failed to mark order paid", zap.Error(err))
		return MarkPaidResult{}, apperror.Storage("failed to mark order paid", err)
	}

	res.Updated = true
	log.Info("order marked paid", zap.String("status", string(res.StatusNow)))
	return res, nil
}

// UpsertPaidBySession records a payment for a session that has no matching
// order id. An existing unpaid row with the same session is marked paid; a
// paid one is left alone.
func (r *repository) UpsertPaidBySession(ctx context.Context, o *Order) (ApplyResult, uuid.UUID, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("repo", "Order"),
		zap.String("method", "UpsertPaidBySession"),
		zap.Stringp("session_id", o.SessionID),
	)

	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}

	var (
		id       uuid.UUID
		inserted bool
	)
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO orders (
			id, reference_number, user_id, subtotal, tax_amount, tax_rate, total_amount,
			status, payment_status, payment_method,
			ship_full_name, ship_phone, ship_street, ship_city, ship_postal_code, ship_country,
			notes, session_id, payment_intent_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (session_id) DO UPDATE
		SET payment_status = 'paid',
		    status = CASE WHEN orders.status IN ('pending', 'pending_payment') THEN 'processing' ELSE orders.status END,
		    payment_intent_id = COALESCE(EXCLUDED.payment_intent_id, orders.payment_intent_id),
		    version = orders.version + 1,
		    updated_at = NOW()
		WHERE orders.payment_status = 'unpaid'
		RETURNING id, (xmax = 0) AS inserted
	`,
		o.ID, o.ReferenceNumber, o.UserID, o.Subtotal, o.TaxAmount, o.TaxRate, o.TotalAmount,
		o.Status, o.PaymentStatus, o.PaymentMethod,
		o.Shipping.FullName, o.Shipping.Phone, o.Shipping.Street, o.Shipping.City,
		o.Shipping.PostalCode, o.Shipping.Country,
		o.Notes, o.SessionID, o.PaymentIntentID,
	).Scan(&id, &inserted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Info("session already paid")
			return ApplyAlreadyApplied, uuid.Nil, nil
		}
		log.Error("failed to upsert paid order", zap.Error(err))
		return "", uuid.Nil, apperror.Storage("failed to record payment", err)
	}

	if inserted {
		log.Warn("order row created from payment confirmation", zap.String("order_id", id.String()))
		return ApplyCreated, id, nil
	}
	log.Info("order marked paid by session", zap.String("order_id", id.String()))
	return ApplyApplied, id, nil
}
