package ledger

import "errors"

// Ledger errors. Every error aborts the enclosing operation with no partial
// state mutation.
var (
	// ErrNotFound means the playerId or zone does not exist.
	ErrNotFound = errors.New("ledger: record not found")

	// ErrUnknownPlayer means an action was submitted for an unregistered id.
	ErrUnknownPlayer = errors.New("ledger: unknown player")

	// ErrUnknownRequest means a stale, forged, replayed, or already consumed
	// requestId. This is the idempotence backstop.
	ErrUnknownRequest = errors.New("ledger: unknown decryption request")

	// ErrInvalidProof means the oracle authenticity check failed. The
	// request binding is left intact so a corrected retry can succeed.
	ErrInvalidProof = errors.New("ledger: oracle proof verification failed")

	// ErrMalformedCleartext means the decoded payload did not match the
	// shape expected for the request's kind.
	ErrMalformedCleartext = errors.New("ledger: malformed cleartext payload")

	// ErrAlreadyResolved means a callback targeted an outcome that was
	// already revealed.
	ErrAlreadyResolved = errors.New("ledger: outcome already revealed")

	// ErrUnauthorizedCaller means the caller's token does not match the
	// owner of the player being acted upon.
	ErrUnauthorizedCaller = errors.New("ledger: caller not authorized")
)
