package services

import "errors"

var (
	// ErrMinimumQuantity is returned when a decrease would take a line
	// below quantity 1. The cart is left unchanged.
	ErrMinimumQuantity = errors.New("quantity cannot be less than 1")
	ErrUnknownAction   = errors.New("unknown quantity action")
	ErrInvalidProduct  = errors.New("product has no id")
	ErrEmptyCart       = errors.New("cart is empty")
	ErrNotLoggedIn     = errors.New("not logged in")
	ErrInvalidInput    = errors.New("invalid input")
)
