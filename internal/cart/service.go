package cart

import (
	"context"
	"fmt"
	"strings"

	"baklava-be/internal/apperror"
	"baklava-be/internal/auth"
	"baklava-be/internal/logger"
	"baklava-be/internal/money"
	"baklava-be/internal/product"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Catalog is the server-side price source.
type Catalog interface {
	PricesFor(ctx context.Context, ids []string) (map[uuid.UUID]*product.Product, error)
}

// Pricer turns client items into a server-priced quote.
type Pricer interface {
	Price(ctx context.Context, items []Item, lang string) (*Quote, error)
}

type Service interface {
	Pricer
	// Quote prices a cart for an approved buyer.
	Quote(ctx context.Context, ac auth.Context, items []Item, lang string) (*Quote, error)
}

type service struct {
	catalog Catalog
	rateBP  int64
}

func NewService(catalog Catalog, rateBP int64) Service {
	return &service{catalog: catalog, rateBP: rateBP}
}

func (s *service) Quote(ctx context.Context, ac auth.Context, items []Item, lang string) (*Quote, error) {
	if err := auth.RequireApproved(ac); err != nil {
		return nil, err
	}
	return s.Price(ctx, items, lang)
}

// Price merges repeated products, re-reads every unit price from the catalog
// and enforces each product's minimum order quantity.
func (s *service) Price(ctx context.Context, items []Item, lang string) (*Quote, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "Cart"),
		zap.String("method", "Price"),
	)

	merged, err := mergeItems(items)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(merged))
	for i, it := range merged {
		ids[i] = it.ProductID
	}
	catalog, err := s.catalog.PricesFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	lines := make([]Line, 0, len(merged))
	moneyLines := make([]money.Line, 0, len(merged))
	for i, it := range merged {
		p := catalog[uuid.MustParse(it.ProductID)]
		name := p.Name.Resolve(lang)
		if it.Quantity < p.MinOrderQty {
			return nil, apperror.Validation(
				fmt.Sprintf("items[%d].quantity", i),
				fmt.Sprintf("minimum order for %s is %d %s", name, p.MinOrderQty, p.Unit),
			)
		}

		ml := money.Line{UnitPrice: p.Price, Quantity: it.Quantity}
		lineCents, err := money.LineCents(ml)
		if err != nil {
			return nil, err
		}
		unitCents, err := money.ToCents(p.Price)
		if err != nil {
			return nil, err
		}

		moneyLines = append(moneyLines, ml)
		lines = append(lines, Line{
			ProductID:   p.ID,
			ProductName: name,
			Unit:        p.Unit,
			Quantity:    it.Quantity,
			UnitPrice:   money.FromCents(unitCents),
			Subtotal:    money.FromCents(lineCents),
		})
	}

	totals, err := money.Calculate(moneyLines, s.rateBP)
	if err != nil {
		return nil, err
	}

	log.Debug("cart priced",
		zap.Int("lines", len(lines)),
		zap.Int64("total_cents", totals.TotalCents),
	)

	return &Quote{
		Lines:    lines,
		Subtotal: totals.Subtotal(),
		Tax:      totals.Tax(),
		TaxRate:  totals.Rate(),
		Total:    totals.Total(),
		Totals:   totals,
	}, nil
}

// mergeItems validates items and sums quantities of repeated products,
// keeping first-seen order. Product ids are normalized to canonical form.
func mergeItems(items []Item) ([]Item, error) {
	if len(items) == 0 {
		return nil, ErrCartEmpty
	}

	index := make(map[string]int, len(items))
	out := make([]Item, 0, len(items))
	for i, it := range items {
		raw := strings.TrimSpace(it.ProductID)
		if raw == "" {
			return nil, apperror.Validation(fmt.Sprintf("items[%d].product_id", i), "product_id is required")
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperror.Validation(fmt.Sprintf("items[%d].product_id", i), "invalid product id")
		}
		if it.Quantity <= 0 {
			return nil, apperror.Validation(fmt.Sprintf("items[%d].quantity", i), "quantity must be greater than zero")
		}

		key := id.String()
		if j, ok := index[key]; ok {
			out[j].Quantity += it.Quantity
			continue
		}
		index[key] = len(out)
		out = append(out, Item{ProductID: key, Quantity: it.Quantity})
	}
	return out, nil
}
