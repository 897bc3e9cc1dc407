package verification

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/OVERFORGE/DeDen/internal/models"
)

// CheckExpiredBookings transitions every pending booking whose payment
// window has closed to EXPIRED. Failures are isolated per booking: one
// bad record is logged and skipped, never aborting the sweep. Returns the
// number of bookings expired.
func (v *Verifier) CheckExpiredBookings(ctx context.Context) (int, error) {
	expired, err := v.store.ListExpiredPending(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	count := 0
	for i := range expired {
		booking := &expired[i]
		if err := v.store.ExpireBooking(ctx, booking.BookingID); err != nil {
			if errors.Is(err, models.ErrStatusConflict) {
				// Resolved (paid or failed) between the listing and this update.
				continue
			}
			log.Printf("failed to expire booking %s: %v", booking.BookingID, err)
			continue
		}
		count++

		booking.Status = models.BookingStatusExpired
		go v.notifier.NotifyBookingExpired(context.WithoutCancel(ctx), booking)
	}

	if count > 0 {
		log.Printf("expired %d pending bookings", count)
	}
	return count, nil
}
