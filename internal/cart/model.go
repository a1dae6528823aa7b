package cart

import (
	"baklava-be/internal/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item is what the client sends: a product and a quantity, never a price.
type Item struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type Line struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Unit        string          `json:"unit"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// Quote is a priced cart. The same quote backs the checkout page, the stored
// order and the gateway charge.
type Quote struct {
	Lines    []Line          `json:"lines"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	TaxRate  decimal.Decimal `json:"tax_rate"`
	Total    decimal.Decimal `json:"total"`

	Totals money.Totals `json:"-"`
}
