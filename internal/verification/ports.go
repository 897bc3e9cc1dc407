package verification

import (
	"context"
	"time"

	"github.com/OVERFORGE/DeDen/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// BookingStore is the transactional persistence the verifier commits
// outcomes through. Status transitions are conditional: implementations
// return models.ErrStatusConflict when the booking left the expected
// status before commit.
type BookingStore interface {
	GetByBookingID(ctx context.Context, bookingID string) (*models.Booking, error)
	ConfirmPayment(ctx context.Context, bookingID string, evidence models.PaymentEvidence) error
	MarkPaymentFailed(ctx context.Context, bookingID, txHash string, chainID int64, reason string) error
	ListExpiredPending(ctx context.Context, now time.Time) ([]models.Booking, error)
	ExpireBooking(ctx context.Context, bookingID string) error
	ResetForRetry(ctx context.Context, bookingID string) error
}

// LedgerReader is the read-only blockchain access the verifier drives.
type LedgerReader interface {
	GetTransaction(ctx context.Context, chainID int64, txHash common.Hash) (*types.Transaction, bool, error)
	WaitForConfirmations(ctx context.Context, chainID int64, txHash common.Hash, depth uint64) (*types.Receipt, error)
}

// Notifier receives booking outcomes. All calls are best-effort: a
// notification failure never alters the committed booking state.
type Notifier interface {
	NotifyPaymentConfirmed(ctx context.Context, booking *models.Booking)
	NotifyPaymentFailed(ctx context.Context, booking *models.Booking, reason string)
	NotifyBookingExpired(ctx context.Context, booking *models.Booking)
}

// Locker is an advisory single-flight guard around a verification run.
// The conditional store updates remain the authoritative race guard; the
// lock just avoids burning RPC calls on duplicate triggers.
type Locker interface {
	AcquireVerification(ctx context.Context, bookingID string) (bool, error)
	ReleaseVerification(ctx context.Context, bookingID string)
}
