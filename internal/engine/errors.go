package engine

import "errors"

var (
	// ErrAdminRequired is returned when a gated operation is invoked by
	// a caller other than the administrator.
	ErrAdminRequired = errors.New("admin required")

	// ErrUnauthorized is returned when a signature recovers to an address
	// with no authority over the operation.
	ErrUnauthorized = errors.New("unauthorized signer")

	// ErrAlreadyClaimed is returned when a holder redeems a certificate
	// type they have already redeemed.
	ErrAlreadyClaimed = errors.New("certificate already claimed")

	// ErrAmountMismatch is returned when a condensed amount disagrees
	// with the sum of the registered amounts.
	ErrAmountMismatch = errors.New("combined amount mismatch")
)
