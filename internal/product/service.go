package product

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"baklava-be/internal/apperror"
	"baklava-be/internal/auth"
	"baklava-be/internal/logger"
	"baklava-be/internal/storage"
	"baklava-be/internal/validation"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service interface {
	List(ctx context.Context, ac auth.Context, lang string) ([]View, error)
	Get(ctx context.Context, ac auth.Context, id, lang string) (View, error)

	AdminList(ctx context.Context, ac auth.Context) ([]*Product, error)
	Create(ctx context.Context, ac auth.Context, in CreateInput) (*Product, error)
	Update(ctx context.Context, ac auth.Context, id string, in UpdateInput) (*Product, error)
	Delete(ctx context.Context, ac auth.Context, id string) error
	UploadImage(ctx context.Context, ac auth.Context, id, filename, contentType string, body io.Reader) (*Product, error)

	// PricesFor returns the server-side catalog entries for the given ids.
	// Any unknown or inactive id is a validation error.
	PricesFor(ctx context.Context, ids []string) (map[uuid.UUID]*Product, error)
}

type service struct {
	repo   Repository
	images storage.ImageStore
	now    func() time.Time
}

func NewService(repo Repository, images storage.ImageStore) Service {
	return &service{repo: repo, images: images, now: time.Now}
}

func (s *service) List(ctx context.Context, ac auth.Context, lang string) ([]View, error) {
	products, err := s.repo.List(ctx, true)
	if err != nil {
		return nil, err
	}

	showPrice := ac.IsApproved()
	views := make([]View, 0, len(products))
	for _, p := range products {
		views = append(views, s.view(ctx, p, lang, showPrice))
	}

	logger.FromCtx(ctx).Debug("products listed",
		zap.Int("count", len(views)),
		zap.Bool("prices_visible", showPrice),
	)
	return views, nil
}

func (s *service) Get(ctx context.Context, ac auth.Context, id, lang string) (View, error) {
	pid, err := parseID(id)
	if err != nil {
		return View{}, err
	}

	p, err := s.repo.GetByID(ctx, pid)
	if err != nil {
		return View{}, err
	}
	if !p.Active && !ac.IsAdmin() {
		return View{}, ErrProductNotFound
	}
	return s.view(ctx, p, lang, ac.IsApproved()), nil
}

func (s *service) view(ctx context.Context, p *Product, lang string, showPrice bool) View {
	v := View{
		ID:           p.ID.String(),
		Name:         p.Name.Resolve(lang),
		Description:  p.Description.Resolve(lang),
		Packaging:    p.Packaging.Resolve(lang),
		ShelfLife:    p.ShelfLife.Resolve(lang),
		Unit:         p.Unit,
		MinOrderQty:  p.MinOrderQty,
		DisplayOrder: p.DisplayOrder,
	}
	if showPrice {
		price := p.Price
		v.Price = &price
	}
	if p.ImageKey != nil && s.images != nil {
		u, err := s.images.URL(ctx, *p.ImageKey)
		if err != nil {
			logger.FromCtx(ctx).Warn("failed to sign product image url",
				zap.String("product_id", v.ID),
				zap.Error(err),
			)
		}
		v.ImageURL = u
	}
	return v
}

func (s *service) AdminList(ctx context.Context, ac auth.Context) ([]*Product, error) {
	if err := auth.RequireAdmin(ac); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, false)
}

func (s *service) Create(ctx context.Context, ac auth.Context, in CreateInput) (*Product, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "Product"),
		zap.String("method", "Create"),
	)

	if err := auth.RequireAdmin(ac); err != nil {
		return nil, err
	}

	in.Name = merge(nil, in.Name)
	in.Unit = strings.TrimSpace(in.Unit)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.Name[DefaultLanguage] == "" {
		return nil, ErrNameRequired
	}
	if !in.Price.IsPositive() {
		return nil, ErrInvalidPrice
	}

	p, err := s.repo.Create(ctx, &Product{
		ID:           uuid.New(),
		Name:         in.Name,
		Description:  merge(nil, in.Description),
		Packaging:    merge(nil, in.Packaging),
		ShelfLife:    merge(nil, in.ShelfLife),
		Price:        in.Price.Round(2),
		Unit:         in.Unit,
		MinOrderQty:  in.MinOrderQty,
		DisplayOrder: in.DisplayOrder,
		Active:       true,
	})
	if err != nil {
		return nil, err
	}

	log.Info("product created", zap.String("product_id", p.ID.String()))
	return p, nil
}

func (s *service) Update(ctx context.Context, ac auth.Context, id string, in UpdateInput) (*Product, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "Product"),
		zap.String("method", "Update"),
		zap.String("product_id", id),
	)

	if err := auth.RequireAdmin(ac); err != nil {
		return nil, err
	}
	pid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	p, err := s.repo.GetByID(ctx, pid)
	if err != nil {
		return nil, err
	}

	p.Name = merge(p.Name, in.Name)
	if p.Name[DefaultLanguage] == "" {
		return nil, ErrNameRequired
	}
	p.Description = merge(p.Description, in.Description)
	p.Packaging = merge(p.Packaging, in.Packaging)
	p.ShelfLife = merge(p.ShelfLife, in.ShelfLife)
	if in.Price != nil {
		if !in.Price.IsPositive() {
			return nil, ErrInvalidPrice
		}
		p.Price = in.Price.Round(2)
	}
	if in.Unit != nil {
		p.Unit = strings.TrimSpace(*in.Unit)
	}
	if in.MinOrderQty != nil {
		p.MinOrderQty = *in.MinOrderQty
	}
	if in.DisplayOrder != nil {
		p.DisplayOrder = *in.DisplayOrder
	}
	if in.Active != nil {
		p.Active = *in.Active
	}

	updated, err := s.repo.Update(ctx, p)
	if err != nil {
		return nil, err
	}

	log.Info("product updated")
	return updated, nil
}

// Delete deactivates the product. Past orders keep their own name and price
// snapshot, so the row is never removed.
func (s *service) Delete(ctx context.Context, ac auth.Context, id string) error {
	inactive := false
	_, err := s.Update(ctx, ac, id, UpdateInput{Active: &inactive})
	return err
}

func (s *service) UploadImage(
	ctx context.Context,
	ac auth.Context,
	id, filename, contentType string,
	body io.Reader,
) (*Product, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "Product"),
		zap.String("method", "UploadImage"),
		zap.String("product_id", id),
	)

	if err := auth.RequireAdmin(ac); err != nil {
		return nil, err
	}
	if s.images == nil {
		return nil, apperror.New(apperror.KindInternal, "image storage is not configured")
	}
	if err := storage.ValidateContentType(contentType); err != nil {
		return nil, err
	}
	pid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	p, err := s.repo.GetByID(ctx, pid)
	if err != nil {
		return nil, err
	}

	key := storage.ProductImageKey(p.ID.String(), filename, contentType, s.now())
	if err := s.images.Upload(ctx, key, contentType, body); err != nil {
		return nil, err
	}
	if err := s.repo.SetImageKey(ctx, p.ID, key); err != nil {
		if delErr := s.images.Delete(ctx, key); delErr != nil {
			log.Warn("failed to remove orphaned image", zap.String("key", key), zap.Error(delErr))
		}
		return nil, err
	}

	if p.ImageKey != nil && *p.ImageKey != key {
		if err := s.images.Delete(ctx, *p.ImageKey); err != nil {
			log.Warn("failed to delete previous image", zap.String("key", *p.ImageKey), zap.Error(err))
		}
	}

	p.ImageKey = &key
	log.Info("product image uploaded", zap.String("key", key))
	return p, nil
}

func (s *service) PricesFor(ctx context.Context, ids []string) (map[uuid.UUID]*Product, error) {
	unique := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperror.Validation("product_id", fmt.Sprintf("invalid product id %q", raw))
		}
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	products, err := s.repo.GetActiveByIDs(ctx, unique)
	if err != nil {
		return nil, err
	}

	for _, id := range unique {
		if _, ok := products[id]; !ok {
			logger.FromCtx(ctx).Warn("product not available for pricing", zap.String("product_id", id.String()))
			return nil, apperror.Validation("product_id", fmt.Sprintf("product %s is not available", id))
		}
	}
	return products, nil
}

func parseID(id string) (uuid.UUID, error) {
	pid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return uuid.Nil, ErrInvalidID
	}
	return pid, nil
}
