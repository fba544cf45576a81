package authcore

import "errors"

// Sentinel errors returned by the service. HTTP and RPC surfaces map
// these to status codes; anything not listed here is an internal error.
var (
	// ErrInvalidCredentials covers unknown email, wrong password, and
	// non-loginable accounts alike, so a caller cannot probe which
	// accounts exist or what state they are in.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountNotLoginable is only returned on flows where the caller
	// has already proven the password, e.g. completing a 2FA challenge
	// for an account suspended in the meantime.
	ErrAccountNotLoginable = errors.New("account not loginable")

	ErrSecondFactorRequired    = errors.New("second factor required")
	ErrInvalidSecondFactorCode = errors.New("invalid second factor code")
	ErrBackupCodeExhausted     = errors.New("backup codes exhausted")

	ErrSessionNotFound = errors.New("session not found")
	ErrSessionMismatch = errors.New("session token mismatch")

	// ErrAccountNotFound is returned by AccountProvider implementations.
	// The login flow converts it to ErrInvalidCredentials before it can
	// reach a caller.
	ErrAccountNotFound = errors.New("account not found")

	// ErrNotReady is returned when an operation needs a collaborator
	// that was not wired at build time.
	ErrNotReady = errors.New("service dependency not configured")
)
