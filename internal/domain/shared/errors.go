package shared

import "errors"

// Kind is a stable error classification returned by wallet operations.
// Domain errors unwrap to a Kind so callers can branch with errors.Is.
type Kind string

func (k Kind) Error() string {
	return string(k)
}

const (
	ErrNotFound                Kind = "NOT_FOUND"
	ErrAlreadyExists           Kind = "ALREADY_EXISTS"
	ErrWalletInactive          Kind = "WALLET_INACTIVE"
	ErrInvalidAmount           Kind = "INVALID_AMOUNT"
	ErrInsufficientFunds       Kind = "INSUFFICIENT_FUNDS"
	ErrInsufficientPending     Kind = "INSUFFICIENT_PENDING"
	ErrPriceUnavailable        Kind = "PRICE_UNAVAILABLE"
	ErrInvalidPrice            Kind = "INVALID_PRICE"
	ErrDuplicateIdempotencyKey Kind = "DUPLICATE_IDEMPOTENCY_KEY"
	ErrInvalidRequest          Kind = "INVALID_REQUEST"
	ErrInvalidStatusTransition Kind = "INVALID_STATUS_TRANSITION"
	ErrConcurrentModification  Kind = "CONCURRENT_MODIFICATION"
)

// CodeInternal is reported for errors that carry no Kind.
const CodeInternal = "INTERNAL"

// ErrorCode returns the Kind code carried by err, or CodeInternal.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var kind Kind
	if errors.As(err, &kind) {
		return string(kind)
	}
	return CodeInternal
}

// IsBusinessError reports whether err was raised by a wallet rule rather than
// by infrastructure. Business errors are final and must not be retried.
func IsBusinessError(err error) bool {
	var kind Kind
	if !errors.As(err, &kind) {
		return false
	}
	return kind != ErrConcurrentModification
}
