package chain

import "errors"

var (
	// ErrTxNotFound means the node does not know the transaction yet. It is
	// distinct from ErrChainUnavailable so callers can treat it as "not
	// mined yet, try later" rather than an RPC outage.
	ErrTxNotFound          = errors.New("transaction not found")
	ErrChainUnavailable    = errors.New("chain RPC unavailable")
	ErrConfirmationTimeout = errors.New("timed out waiting for confirmations")

	ErrUnsupportedChain = errors.New("unsupported chain")
	ErrUnsupportedToken = errors.New("unsupported token")
)
