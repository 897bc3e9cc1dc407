package verification

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/OVERFORGE/DeDen/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failedBooking() *models.Booking {
	booking := pendingBooking()
	booking.Status = models.BookingStatusFailed
	booking.TxHash = validTxHash
	return booking
}

func TestRetryFailedVerificationSucceedsAfterChainRecovers(t *testing.T) {
	store := &fakeStore{booking: failedBooking()}
	// The chain answers this time around.
	reader := &fakeReader{receipt: successReceipt(big.NewInt(300_000_000))}
	v := NewVerifier(store, testRegistry(t), reader, &fakeNotifier{}, nil)

	err := v.RetryFailedVerification(context.Background(), "bk-123")
	require.NoError(t, err)
	assert.Equal(t, 1, store.resetCalls)
	require.Len(t, store.confirmed, 1)
	assert.Equal(t, "300000000", store.confirmed[0].AmountBaseUnits)
}

func TestRetryFailedVerificationPropagatesFailure(t *testing.T) {
	store := &fakeStore{booking: failedBooking()}
	reader := &fakeReader{getTxErr: errors.New("rpc still down")}
	v := NewVerifier(store, testRegistry(t), reader, &fakeNotifier{}, nil)

	err := v.RetryFailedVerification(context.Background(), "bk-123")
	require.Error(t, err)
	assert.Equal(t, 1, store.resetCalls)
	require.Len(t, store.failedWith(), 1)
}

func TestRetryFailedVerificationRejectsNonFailed(t *testing.T) {
	store := &fakeStore{booking: pendingBooking()}
	v := NewVerifier(store, testRegistry(t), &fakeReader{}, &fakeNotifier{}, nil)

	err := v.RetryFailedVerification(context.Background(), "bk-123")
	require.ErrorIs(t, err, models.ErrBookingNotFailed)
	assert.Zero(t, store.resetCalls)
}

func TestRetryFailedVerificationRequiresTxInfo(t *testing.T) {
	booking := failedBooking()
	booking.TxHash = ""
	store := &fakeStore{booking: booking}
	v := NewVerifier(store, testRegistry(t), &fakeReader{}, &fakeNotifier{}, nil)

	err := v.RetryFailedVerification(context.Background(), "bk-123")
	require.ErrorIs(t, err, models.ErrMissingTxInfo)
}

func TestRetryFailedVerificationUnknownBooking(t *testing.T) {
	store := &fakeStore{}
	v := NewVerifier(store, testRegistry(t), &fakeReader{}, &fakeNotifier{}, nil)

	err := v.RetryFailedVerification(context.Background(), "bk-404")
	require.ErrorIs(t, err, models.ErrBookingNotFound)
}
