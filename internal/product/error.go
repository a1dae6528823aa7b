package product

import "baklava-be/internal/apperror"

var (
	ErrProductNotFound = apperror.NotFound("product not found")
	ErrInvalidID       = apperror.Validation("id", "invalid product id")
	ErrNameRequired    = apperror.Validation("name.en", "name.en is required")
	ErrInvalidPrice    = apperror.Validation("price", "price must be greater than zero")
)
