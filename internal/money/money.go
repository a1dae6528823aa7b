// Package money computes order totals in integer cents.
//
// All arithmetic happens on int64 minor units. Decimal values only appear at
// the edges (catalog prices in, display/storage amounts out), so the same
// lines always produce the same cents no matter where the totals are
// computed: order creation, checkout session, or a later redisplay.
package money

import (
	"math"

	"baklava-be/internal/apperror"

	"github.com/shopspring/decimal"
)

// DefaultRateBP is the wholesale tax rate in basis points (10%).
const DefaultRateBP int64 = 1000

const bpDenominator int64 = 10000

var hundred = decimal.NewFromInt(100)

type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

type Totals struct {
	SubtotalCents int64
	TaxCents      int64
	TotalCents    int64
	RateBP        int64
}

func (t Totals) Subtotal() decimal.Decimal { return FromCents(t.SubtotalCents) }
func (t Totals) Tax() decimal.Decimal      { return FromCents(t.TaxCents) }
func (t Totals) Total() decimal.Decimal    { return FromCents(t.TotalCents) }

// Rate returns the tax rate as a fraction, e.g. 0.1.
func (t Totals) Rate() decimal.Decimal {
	return decimal.New(t.RateBP, -4)
}

// Calculate sums the lines and applies the tax rate. Tax is rounded half-up
// to the cent: 15 cents at 10% gives 2 cents.
func Calculate(lines []Line, rateBP int64) (Totals, error) {
	if rateBP < 0 || rateBP > bpDenominator {
		return Totals{}, apperror.Validation("tax_rate", "tax rate must be between 0 and 100%")
	}

	var subtotal int64
	for _, l := range lines {
		lineCents, err := LineCents(l)
		if err != nil {
			return Totals{}, err
		}
		if subtotal > math.MaxInt64-lineCents {
			return Totals{}, apperror.Validation("items", "order amount is too large")
		}
		subtotal += lineCents
	}

	tax, err := TaxCents(subtotal, rateBP)
	if err != nil {
		return Totals{}, err
	}

	return Totals{
		SubtotalCents: subtotal,
		TaxCents:      tax,
		TotalCents:    subtotal + tax,
		RateBP:        rateBP,
	}, nil
}

// LineCents returns unit price * quantity in cents.
func LineCents(l Line) (int64, error) {
	if l.Quantity <= 0 {
		return 0, apperror.Validation("quantity", "quantity must be greater than zero")
	}
	unit, err := ToCents(l.UnitPrice)
	if err != nil {
		return 0, err
	}
	qty := int64(l.Quantity)
	if unit > 0 && qty > math.MaxInt64/unit {
		return 0, apperror.Validation("items", "order amount is too large")
	}
	return unit * qty, nil
}

// TaxCents applies rateBP to subtotalCents with half-up rounding.
func TaxCents(subtotalCents, rateBP int64) (int64, error) {
	if subtotalCents < 0 {
		return 0, apperror.Validation("subtotal", "subtotal cannot be negative")
	}
	if subtotalCents > (math.MaxInt64-bpDenominator/2)/bpDenominator {
		return 0, apperror.Validation("items", "order amount is too large")
	}
	return (subtotalCents*rateBP + bpDenominator/2) / bpDenominator, nil
}

// ToCents converts a decimal amount to cents, rounding half-up. Negative
// amounts are rejected.
func ToCents(d decimal.Decimal) (int64, error) {
	if d.IsNegative() {
		return 0, apperror.Validation("price", "price cannot be negative")
	}
	cents := d.Mul(hundred).Round(0)
	if !cents.BigInt().IsInt64() {
		return 0, apperror.Validation("price", "price is too large")
	}
	return cents.IntPart(), nil
}

func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
