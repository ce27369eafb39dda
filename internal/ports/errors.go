package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Ledger Faults (data-consistency: the offending fill must not mutate the
	// ledger and must not be re-attempted)
	ErrOrphanExit        = errors.New("exit fill with no open position")
	ErrPositionNotFilled = errors.New("averaging entry into a position whose fills do not match its quantity")

	// Formatting Faults
	ErrOptionSymbolParse = errors.New("option symbol does not match the expected pattern")

	// Brokerage Specific Errors
	ErrBrokerageUnavailable = errors.New("brokerage API is unavailable")
	ErrAuthenticationFailed = errors.New("brokerage authentication failed (check credentials)")
	ErrRetryExhausted       = errors.New("retry attempts exhausted")

	// Store Specific Errors (corrupt persisted state is fatal at startup)
	ErrStoreCorrupt = errors.New("persisted store is malformed")
	ErrQueryFailed  = errors.New("journal query failed")
)
