package domain

import "errors"

// Operation errors, in check order: validation first, then authorization,
// then state, then custody. Every failure is synchronous and aborts the
// whole operation before any state change becomes observable.
var (
	// Validation errors (bad arguments).
	ErrInvalidDuration = errors.New("duration must be positive")
	ErrInvalidPrice    = errors.New("ask price must be positive")
	ErrInvalidAsset    = errors.New("asset does not exist")
	ErrInvalidListing  = errors.New("listing does not exist")
	ErrZeroValue       = errors.New("bid value must be positive")

	// Authorization errors (wrong caller).
	ErrNotOwner             = errors.New("caller does not own the asset")
	ErrSelfBid              = errors.New("seller cannot bid on own listing")
	ErrNotAuthorized        = errors.New("caller is neither seller nor winner")
	ErrWinnerCannotWithdraw = errors.New("highest bidder cannot withdraw")

	// State errors (listing status / deadline).
	ErrAuctionClosed     = errors.New("auction is not open")
	ErrAuctionStillOpen  = errors.New("auction has not reached its deadline")
	ErrAuctionNotExpired = errors.New("auction has not expired")
	ErrBidTooLow         = errors.New("cumulative bid below current floor")
	ErrNothingToWithdraw = errors.New("no locked value to withdraw")
	ErrZeroPayout        = errors.New("winner has no recorded bid")

	// Reentrancy guard violation: an operation was invoked while a transfer
	// was in flight.
	ErrReentrantCall = errors.New("reentrant call rejected")
)

// TransferError represents a failed custody interaction (value send or asset
// move). It is fatal for the transaction: the engine rolls back every state
// change before returning it.
type TransferError struct {
	Op  string  // Operation that failed (e.g. "send", "transfer_asset")
	To  Account // Intended recipient
	Err error   // Underlying error
}

func (e *TransferError) Error() string {
	return "transfer failed [" + e.Op + " -> " + string(e.To) + "]: " + e.Err.Error()
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// NewTransferError wraps a custody failure.
func NewTransferError(op string, to Account, err error) *TransferError {
	return &TransferError{Op: op, To: to, Err: err}
}

// IsTransferError reports whether err is (or wraps) a custody failure.
func IsTransferError(err error) bool {
	var te *TransferError
	return errors.As(err, &te)
}
