package product

import (
	"context"
	"database/sql"
	"errors"

	"baklava-be/internal/apperror"
	"baklava-be/internal/logger"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	List(ctx context.Context, onlyActive bool) ([]*Product, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)
	// GetActiveByIDs returns the active products among ids, keyed by id.
	GetActiveByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Product, error)
	Create(ctx context.Context, p *Product) (*Product, error)
	Update(ctx context.Context, p *Product) (*Product, error)
	SetImageKey(ctx context.Context, id uuid.UUID, key string) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const productColumns = `
	id, name, description, packaging, shelf_life, price, unit,
	min_order_qty, display_order, image_key, active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(s rowScanner) (*Product, error) {
	var p Product
	err := s.Scan(
		&p.ID, &p.Name, &p.Description, &p.Packaging, &p.ShelfLife, &p.Price, &p.Unit,
		&p.MinOrderQty, &p.DisplayOrder, &p.ImageKey, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) List(ctx context.Context, onlyActive bool) ([]*Product, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("repo", "Product"),
		zap.String("method", "List"),
	)

	query := `SELECT ` + productColumns + ` FROM products`
	if onlyActive {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY display_order ASC, created_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		log.Error("db: failed to list products", zap.Error(err))
		return nil, apperror.Storage("failed to list products", err)
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			log.Error("db: failed to scan product", zap.Error(err))
			return nil, apperror.Storage("failed to list products", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Storage("failed to list products", err)
	}

	return products, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`,
		id,
	)

	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("db: failed to load product",
			zap.String("repo", "Product"),
			zap.String("product_id", id.String()),
			zap.Error(err),
		)
		return nil, apperror.Storage("failed to load product", err)
	}
	return p, nil
}

func (r *repository) GetActiveByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Product, error) {
	out := make(map[uuid.UUID]*Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ANY($1::uuid[]) AND active = TRUE`,
		pq.Array(strIDs),
	)
	if err != nil {
		logger.FromCtx(ctx).Error("db: failed to load prices",
			zap.String("repo", "Product"),
			zap.String("method", "GetActiveByIDs"),
			zap.Error(err),
		)
		return nil, apperror.Storage("failed to load products", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, apperror.Storage("failed to load products", err)
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Storage("failed to load products", err)
	}
	return out, nil
}

func (r *repository) Create(ctx context.Context, p *Product) (*Product, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("repo", "Product"),
		zap.String("method", "Create"),
	)

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO products (
			id, name, description, packaging, shelf_life, price, unit,
			min_order_qty, display_order, active
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE)
		RETURNING `+productColumns,
		p.ID, p.Name, p.Description, p.Packaging, p.ShelfLife, p.Price, p.Unit,
		p.MinOrderQty, p.DisplayOrder,
	)

	created, err := scanProduct(row)
	if err != nil {
		log.Error("db: failed to insert product", zap.Error(err))
		return nil, apperror.Storage("failed to create product", err)
	}

	log.Info("product created", zap.String("product_id", created.ID.String()))
	return created, nil
}

func (r *repository) Update(ctx context.Context, p *Product) (*Product, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("repo", "Product"),
		zap.String("method", "Update"),
		zap.String("product_id", p.ID.String()),
	)

	row := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $1,
		    description = $2,
		    packaging = $3,
		    shelf_life = $4,
		    price = $5,
		    unit = $6,
		    min_order_qty = $7,
		    display_order = $8,
		    active = $9,
		    updated_at = NOW()
		WHERE id = $10
		RETURNING `+productColumns,
		p.Name, p.Description, p.Packaging, p.ShelfLife, p.Price, p.Unit,
		p.MinOrderQty, p.DisplayOrder, p.Active, p.ID,
	)

	updated, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		log.Error("db: failed to update product", zap.Error(err))
		return nil, apperror.Storage("failed to update product", err)
	}
	return updated, nil
}

func (r *repository) SetImageKey(ctx context.Context, id uuid.UUID, key string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE products SET image_key = $1, updated_at = NOW() WHERE id = $2`,
		key, id,
	)
	if err != nil {
		logger.FromCtx(ctx).Error("db: failed to set image key",
			zap.String("repo", "Product"),
			zap.String("product_id", id.String()),
			zap.Error(err),
		)
		return apperror.Storage("failed to save product image", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProductNotFound
	}
	return nil
}
