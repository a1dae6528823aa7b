package address

import (
	"strings"

	"baklava-be/internal/validation"
)

// ShippingAddress is copied onto each order at creation time so later profile
// edits never change where a past order went.
type ShippingAddress struct {
	FullName   string `json:"full_name" validate:"required,max=200"`
	Phone      string `json:"phone" validate:"required,max=50"`
	Street     string `json:"street" validate:"required,max=300"`
	City       string `json:"city" validate:"required,max=120"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,max=80"`
}

// Normalize trims surrounding whitespace from every field.
func (a *ShippingAddress) Normalize() {
	a.FullName = strings.TrimSpace(a.FullName)
	a.Phone = strings.TrimSpace(a.Phone)
	a.Street = strings.TrimSpace(a.Street)
	a.City = strings.TrimSpace(a.City)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.TrimSpace(a.Country)
}

// Validate normalizes the address and reports the first missing field.
func (a *ShippingAddress) Validate() error {
	a.Normalize()
	return validation.Struct(a)
}
