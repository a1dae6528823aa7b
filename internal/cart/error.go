package cart

import "baklava-be/internal/apperror"

var ErrCartEmpty = apperror.Validation("items", "cart is empty")
