package product

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const DefaultLanguage = "en"

// Localized maps a language tag ("en", "es") to text. Stored as JSONB.
type Localized map[string]string

// Resolve returns the text for lang, falling back to English and then to
// the first available language in tag order.
func (l Localized) Resolve(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if v := l[lang]; v != "" {
		return v
	}
	if v := l[DefaultLanguage]; v != "" {
		return v
	}
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if l[k] != "" {
			return l[k]
		}
	}
	return ""
}

func (l Localized) Value() (driver.Value, error) {
	if l == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]string(l))
}

func (l *Localized) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = Localized{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("product: unsupported localized text type")
	}
	m := map[string]string{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	*l = m
	return nil
}

type Product struct {
	ID           uuid.UUID       `json:"id"`
	Name         Localized       `json:"name"`
	Description  Localized       `json:"description"`
	Packaging    Localized       `json:"packaging"`
	ShelfLife    Localized       `json:"shelf_life"`
	Price        decimal.Decimal `json:"price"`
	Unit         string          `json:"unit"`
	MinOrderQty  int             `json:"min_order_qty"`
	DisplayOrder int             `json:"display_order"`
	ImageKey     *string         `json:"image_key"`
	Active       bool            `json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// View is a product as shown to a storefront caller in one language. Price is
// nil, and therefore absent from the JSON, unless the caller is approved.
type View struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Packaging    string           `json:"packaging"`
	ShelfLife    string           `json:"shelf_life"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	Unit         string           `json:"unit"`
	MinOrderQty  int              `json:"min_order_qty"`
	DisplayOrder int              `json:"display_order"`
	ImageURL     string           `json:"image_url,omitempty"`
}

type CreateInput struct {
	Name         Localized       `json:"name"`
	Description  Localized       `json:"description"`
	Packaging    Localized       `json:"packaging"`
	ShelfLife    Localized       `json:"shelf_life"`
	Price        decimal.Decimal `json:"price"`
	Unit         string          `json:"unit" validate:"required,max=32"`
	MinOrderQty  int             `json:"min_order_qty" validate:"gte=1"`
	DisplayOrder int             `json:"display_order" validate:"gte=0"`
}

// UpdateInput is a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Name         Localized        `json:"name"`
	Description  Localized        `json:"description"`
	Packaging    Localized        `json:"packaging"`
	ShelfLife    Localized        `json:"shelf_life"`
	Price        *decimal.Decimal `json:"price"`
	Unit         *string          `json:"unit" validate:"omitempty,min=1,max=32"`
	MinOrderQty  *int             `json:"min_order_qty" validate:"omitempty,gte=1"`
	DisplayOrder *int             `json:"display_order" validate:"omitempty,gte=0"`
	Active       *bool            `json:"active"`
}

// merge overlays non-empty localized entries onto base.
func merge(base, patch Localized) Localized {
	if patch == nil {
		return base
	}
	out := Localized{}
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		k = strings.ToLower(strings.TrimSpace(k))
		if strings.TrimSpace(v) == "" {
			delete(out, k)
			continue
		}
		out[k] = strings.TrimSpace(v)
	}
	return out
}
