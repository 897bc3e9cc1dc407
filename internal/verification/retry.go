package verification

import (
	"context"

	"github.com/OVERFORGE/DeDen/internal/models"
)

// RetryFailedVerification resets a failed booking to pending and re-runs
// verification synchronously against the previously submitted transaction.
// Meant for failures caused by chain hiccups (RPC outage, confirmation
// timeout, transaction mined late): the same hash may verify cleanly once
// the chain recovers. Propagates whatever the verification raises.
//
// The reset and the verify are two separate steps; a crash in between
// leaves the booking pending until the expiry sweep reaps it.
func (v *Verifier) RetryFailedVerification(ctx context.Context, bookingID string) error {
	booking, err := v.store.GetByBookingID(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking.Status != models.BookingStatusFailed {
		return models.ErrBookingNotFailed
	}
	if booking.TxHash == "" || booking.ChainID == nil {
		return models.ErrMissingTxInfo
	}

	if err := v.store.ResetForRetry(ctx, bookingID); err != nil {
		return err
	}

	return v.VerifyPayment(ctx, bookingID, booking.TxHash, *booking.ChainID)
}
