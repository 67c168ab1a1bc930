package services

import "errors"

var (
	ErrSlugTaken          = errors.New("slug already in use")
	ErrCategoryInUse      = errors.New("category still has products")
	ErrCategoryCycle      = errors.New("category cannot be its own parent")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrCartClosed         = errors.New("cart is no longer active")
	ErrCartExpired        = errors.New("cart has expired")
	ErrProductUnavailable = errors.New("product is not available")
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
	ErrInvalidOrderState  = errors.New("order status change not allowed")
	ErrPaymentDisabled    = errors.New("card payments are not configured")
	ErrStorageDisabled    = errors.New("image storage is not configured")
	ErrInvalidInput       = errors.New("invalid input")

	ErrSuggestionsDisabled = errors.New("translation suggestions are not configured")
)
