package product

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"baklava-be/internal/apperror"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var productColumnNames = []string{
	"id", "name", "description", "packaging", "shelf_life", "price", "unit",
	"min_order_qty", "display_order", "image_key", "active", "created_at", "updated_at",
}

func addProductRow(rows *sqlmock.Rows, id uuid.UUID, price string) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(
		id.String(), []byte(`{"en":"Pistachio baklava","es":"Baklava de pistacho"}`), []byte(`{}`),
		[]byte(`{"en":"Tray of 2kg"}`), []byte(`{"en":"30 days"}`), price, "tray",
		5, 1, nil, true, now, now,
	)
}

func TestRepository_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	id := uuid.New()

	t.Run("OnlyActive", func(t *testing.T) {
		mock.ExpectQuery("SELECT .* FROM products WHERE active = TRUE ORDER BY display_order ASC").
			WillReturnRows(addProductRow(sqlmock.NewRows(productColumnNames), id, "28.99"))

		products, err := repo.List(context.Background(), true)
		require.NoError(t, err)
		require.Len(t, products, 1)
		assert.Equal(t, id, products[0].ID)
		assert.True(t, products[0].Price.Equal(decimal.RequireFromString("28.99")))
		assert.Equal(t, "Baklava de pistacho", products[0].Name.Resolve("es"))
		assert.Equal(t, 5, products[0].MinOrderQty)
	})

	t.Run("QueryError", func(t *testing.T) {
		mock.ExpectQuery("SELECT .* FROM products ORDER BY").WillReturnError(errors.New("db down"))

		_, err := repo.List(context.Background(), false)
		assert.True(t, apperror.Is(err, apperror.KindStorage))
	})
}

func TestRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	id := uuid.New()

	mock.ExpectQuery("SELECT .* FROM products WHERE id = \\$1").
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err = repo.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestRepository_GetActiveByIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	a, b := uuid.New(), uuid.New()

	rows := sqlmock.NewRows(productColumnNames)
	addProductRow(rows, a, "10.00")
	mock.ExpectQuery("SELECT .* FROM products WHERE id = ANY\\(\\$1::uuid\\[\\]\\) AND active = TRUE").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	out, err := repo.GetActiveByIDs(context.Background(), []uuid.UUID{a, b})
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Contains(t, out, a)

	empty, err := repo.GetActiveByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_CreateUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	id := uuid.New()
	p := &Product{
		ID:          id,
		Name:        Localized{"en": "Pistachio baklava"},
		Price:       decimal.RequireFromString("28.99"),
		Unit:        "tray",
		MinOrderQty: 5,
	}

	mock.ExpectQuery("INSERT INTO products").
		WithArgs(id, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "tray", 5, 0).
		WillReturnRows(addProductRow(sqlmock.NewRows(productColumnNames), id, "28.99"))

	created, err := repo.Create(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, id, created.ID)

	mock.ExpectQuery("UPDATE products").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.Update(context.Background(), p)
	assert.ErrorIs(t, err, ErrProductNotFound)

	mock.ExpectExec("UPDATE products SET image_key = \\$1").
		WithArgs("products/x.png", id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.SetImageKey(context.Background(), id, "products/x.png"))

	mock.ExpectExec("UPDATE products SET image_key = \\$1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.SetImageKey(context.Background(), id, "k"), ErrProductNotFound)
}
