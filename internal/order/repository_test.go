package order

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"baklava-be/internal/address"
	"baklava-be/internal/apperror"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderColumnNames = []string{
	"id", "reference_number", "user_id", "subtotal", "tax_amount", "tax_rate", "total_amount",
	"status", "payment_status", "payment_method",
	"ship_full_name", "ship_phone", "ship_street", "ship_city", "ship_postal_code", "ship_country",
	"notes", "session_id", "payment_intent_id", "version", "created_at", "updated_at",
}

var itemColumnNames = []string{
	"id", "order_id", "product_id", "product_name", "quantity", "unit_price", "subtotal",
}

func orderRow(id uuid.UUID, userID uint, status Status, payment PaymentStatus, sessionID any) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(orderColumnNames).AddRow(
		id.String(), "ORD-20250101-101500-123-4567", userID, "144.95", "14.50", "0.1", "159.45",
		string(status), string(payment), "card",
		"Ana Garcia", "+34 600 000 000", "Calle Mayor 1", "Madrid", "28013", "ES",
		nil, sessionID, nil, 1, now, now,
	)
}

func testOrder() *Order {
	return &Order{
		ReferenceNumber: "ORD-20250101-101500-123-4567",
		UserID:          7,
		Subtotal:        decimal.RequireFromString("144.95"),
		TaxAmount:       decimal.RequireFromString("14.50"),
		TaxRate:         decimal.RequireFromString("0.1"),
		TotalAmount:     decimal.RequireFromString("159.45"),
		Status:          StatusPending,
		PaymentStatus:   PaymentUnpaid,
		PaymentMethod:   MethodCard,
		Shipping: address.ShippingAddress{
			FullName: "Ana Garcia", Phone: "+34 600 000 000", Street: "Calle Mayor 1",
			City: "Madrid", PostalCode: "28013", Country: "ES",
		},
		Items: []Item{{
			ProductID:   uuid.New(),
			ProductName: "Pistachio baklava",
			Quantity:    5,
			UnitPrice:   decimal.RequireFromString("28.99"),
			Subtotal:    decimal.RequireFromString("144.95"),
		}},
	}
}

func TestRepository_Create(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewRepository(db)
		o := testOrder()
		id := uuid.New()
		o.ID = id

		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO orders").
			WillReturnRows(orderRow(id, 7, StatusPending, PaymentUnpaid, nil))
		mock.ExpectExec("INSERT INTO order_items").
			WithArgs(sqlmock.AnyArg(), id, 1, o.Items[0].ProductID, "Pistachio baklava", 5, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		created, err := repo.Create(context.Background(), o)
		require.NoError(t, err)
		assert.Equal(t, id, created.ID)
		assert.Equal(t, "28013", created.Shipping.PostalCode)
		require.Len(t, created.Items, 1)
		assert.Equal(t, id, created.Items[0].OrderID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ItemFailureRollsBack", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewRepository(db)
		o := testOrder()
		o.ID = uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO orders").
			WillReturnRows(orderRow(o.ID, 7, StatusPending, PaymentUnpaid, nil))
		mock.ExpectExec("INSERT INTO order_items").WillReturnError(errors.New("fk violation"))
		mock.ExpectRollback()

		_, err = repo.Create(context.Background(), o)
		assert.True(t, apperror.Is(err, apperror.KindStorage))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	id := uuid.New()

	t.Run("WithItems", func(t *testing.T) {
		productID := uuid.New()
		mock.ExpectQuery("SELECT .* FROM orders WHERE id = \\$1").
			WithArgs(id).
			WillReturnRows(orderRow(id, 7, StatusPendingPayment, PaymentUnpaid, "cs_test_1"))
		mock.ExpectQuery("SELECT .* FROM order_items WHERE order_id = \\$1 ORDER BY line_no").
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(itemColumnNames).
				AddRow(uuid.New().String(), id.String(), productID.String(), "Pistachio baklava", 5, "28.99", "144.95"))

		o, err := repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, uint(7), o.UserID)
		assert.Equal(t, StatusPendingPayment, o.Status)
		require.NotNil(t, o.SessionID)
		assert.Equal(t, "cs_test_1", *o.SessionID)
		assert.Equal(t, int64(15945), o.TotalCents())
		require.Len(t, o.Items, 1)
		assert.Equal(t, productID, o.Items[0].ProductID)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT .* FROM orders WHERE id").WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByID(context.Background(), id)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	uid := uint(7)
	status := StatusPending

	mock.ExpectQuery("SELECT .* FROM orders WHERE user_id = \\$1 AND status = \\$2 ORDER BY created_at DESC, id DESC LIMIT \\$3 OFFSET \\$4").
		WithArgs(uid, "pending", 20, 20).
		WillReturnRows(orderRow(uuid.New(), 7, StatusPending, PaymentUnpaid, nil))

	orders, err := repo.List(context.Background(), ListFilter{UserID: &uid, Status: &status, Page: 2})
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_CancelUnpaid(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	id := uuid.New()

	t.Run("Cancelled", func(t *testing.T) {
		mock.ExpectExec("UPDATE orders SET status = 'cancelled'.* WHERE id = \\$1 AND payment_status = 'unpaid'").
			WithArgs(id).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.CancelUnpaid(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("PaidMeanwhile", func(t *testing.T) {
		mock.ExpectExec("UPDATE orders SET status = 'cancelled'").
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.CancelUnpaid(context.Background(), id)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestRepository_DeleteUnpaid(t *testing.T) {
	id := uuid.New()

	t.Run("Deleted", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT payment_status FROM orders WHERE id = \\$1 FOR UPDATE").
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"payment_status"}).AddRow("unpaid"))
		mock.ExpectExec("DELETE FROM order_items WHERE order_id = \\$1").WithArgs(id).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("DELETE FROM orders WHERE id = \\$1 AND payment_status = 'unpaid'").WithArgs(id).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		deleted, err := NewRepository(db).DeleteUnpaid(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, deleted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("PaidIsKept", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT payment_status FROM orders").
			WillReturnRows(sqlmock.NewRows([]string{"payment_status"}).AddRow("paid"))
		mock.ExpectCommit()

		deleted, err := NewRepository(db).DeleteUnpaid(context.Background(), id)
		require.NoError(t, err)
		assert.False(t, deleted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_UpdateStatus(t *testing.T) {
	change := StatusChange{
		OrderID:         uuid.New(),
		ActorID:         1,
		Actor:           ActorAdmin,
		FromStatus:      StatusProcessing,
		ToStatus:        StatusShipped,
		FromPayment:     PaymentPaid,
		ToPayment:       PaymentPaid,
		ExpectedVersion: 3,
	}

	t.Run("WritesEvent", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE orders SET status = \\$1, payment_status = \\$2.* WHERE id = \\$3 AND version = \\$4 RETURNING version").
			WithArgs("shipped", "paid", change.OrderID, 3).
			WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(4))
		mock.ExpectExec("INSERT INTO order_status_events").
			WithArgs(change.OrderID, 1, "admin", "processing", "shipped", "paid", "paid", false, nil).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		version, err := NewRepository(db).UpdateStatus(context.Background(), change)
		require.NoError(t, err)
		assert.Equal(t, 4, version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("StaleVersion", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE orders SET status").WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err = NewRepository(db).UpdateStatus(context.Background(), change)
		assert.ErrorIs(t, err, ErrStaleVersion)
		assert.True(t, apperror.Is(err, apperror.KindConflict))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_ListEvents(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	mock.ExpectQuery("SELECT .* FROM order_status_events WHERE order_id = \\$1").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "order_id", "actor_id", "actor", "from_status", "to_status",
			"from_payment_status", "to_payment_status", "forced", "reason", "created_at",
		}).AddRow(1, id.String(), 1, "admin", "delivered", "processing", "paid", "paid", true, "courier lost parcel", time.Now()))

	events, err := NewRepository(db).ListEvents(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Forced)
	require.NotNil(t, events[0].ActorID)
	assert.Equal(t, uint(1), *events[0].ActorID)
	require.NotNil(t, events[0].Reason)
	assert.Equal(t, "courier lost parcel", *events[0].Reason)
}

func TestRepository_AttachSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	id := uuid.New()

	mock.ExpectExec("UPDATE orders SET session_id = \\$2, status = 'pending_payment'.* WHERE id = \\$1 AND payment_status = 'unpaid'").
		WithArgs(id, "cs_test_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.AttachSession(context.Background(), id, "cs_test_1")
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec("UPDATE orders SET session_id").WillReturnError(errors.New("conn reset"))
	_, err = repo.AttachSession(context.Background(), id, "cs_test_2")
	assert.True(t, apperror.Is(err, apperror.KindStorage))
}

func TestRepository_MarkPaid(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	id := uuid.New()

	t.Run("Applied", func(t *testing.T) {
		mock.ExpectQuery("UPDATE orders SET payment_status = 'paid'.* WHERE id = \\$1 AND payment_status = 'unpaid' RETURNING status, session_id").
			WithArgs(id, "cs_test_1", "pi_1").
			WillReturnRows(sqlmock.NewRows([]string{"status", "session_id"}).AddRow("processing", "cs_test_1"))

		res, err := repo.MarkPaid(context.Background(), id, "cs_test_1", "pi_1")
		require.NoError(t, err)
		assert.True(t, res.Updated)
		assert.Equal(t, StatusProcessing, res.StatusNow)
	})

	t.Run("AlreadyPaid", func(t *testing.T) {
		mock.ExpectQuery("UPDATE orders SET payment_status = 'paid'").
			WillReturnRows(sqlmock.NewRows([]string{"status", "session_id"}))

		res, err := repo.MarkPaid(context.Background(), id, "cs_test_1", "pi_1")
		require.NoError(t, err)
		assert.False(t, res.Updated)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_UpsertPaidBySession(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	session := "cs_test_9"

	newOrder := func() *Order {
		o := testOrder()
		o.Items = nil
		o.Status = StatusProcessing
		o.PaymentStatus = PaymentPaid
		o.SessionID = &session
		return o
	}

	t.Run("Created", func(t *testing.T) {
		id := uuid.New()
		mock.ExpectQuery("INSERT INTO orders .* ON CONFLICT \\(session_id\\) DO UPDATE .* WHERE orders.payment_status = 'unpaid' RETURNING id, \\(xmax = 0\\)").
			WillReturnRows(sqlmock.NewRows([]string{"id", "inserted"}).AddRow(id.String(), true))

		res, got, err := repo.UpsertPaidBySession(context.Background(), newOrder())
		require.NoError(t, err)
		assert.Equal(t, ApplyCreated, res)
		assert.Equal(t, id, got)
	})

	t.Run("UpdatedExisting", func(t *testing.T) {
		id := uuid.New()
		mock.ExpectQuery("INSERT INTO orders").
			WillReturnRows(sqlmock.NewRows([]string{"id", "inserted"}).AddRow(id.String(), false))

		res, _, err := repo.UpsertPaidBySession(context.Background(), newOrder())
		require.NoError(t, err)
		assert.Equal(t, ApplyApplied, res)
	})

	t.Run("AlreadyPaid", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO orders").
			WillReturnRows(sqlmock.NewRows([]string{"id", "inserted"}))

		res, id, err := repo.UpsertPaidBySession(context.Background(), newOrder())
		require.NoError(t, err)
		assert.Equal(t, ApplyAlreadyApplied, res)
		assert.Equal(t, uuid.Nil, id)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
