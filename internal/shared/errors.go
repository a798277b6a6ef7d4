package shared

import "errors"

var (
	// ErrValidation indicates missing or malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates a referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates cross-gym access on a targeted record or a missing role.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized indicates a missing or expired session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrDuplicate indicates a uniqueness violation.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrInsufficientStock indicates a sale line exceeds the stock at its gym.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrNegativeStock indicates an adjustment would leave stock below zero.
	ErrNegativeStock = errors.New("negative stock not allowed")
	// ErrInstallmentMismatch indicates installment amounts do not add up to the sale total.
	ErrInstallmentMismatch = errors.New("installments do not match sale total")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// IsStockRejection reports whether err is a rejected stock change.
func IsStockRejection(err error) bool {
	return errors.Is(err, ErrInsufficientStock) || errors.Is(err, ErrNegativeStock)
}
