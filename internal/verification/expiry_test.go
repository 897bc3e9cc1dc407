package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/OVERFORGE/DeDen/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expiredBooking(id string) models.Booking {
	past := time.Now().Add(-time.Hour)
	return models.Booking{
		BookingID: id,
		Status:    models.BookingStatusPending,
		ExpiresAt: &past,
	}
}

func TestCheckExpiredBookings(t *testing.T) {
	store := &fakeStore{
		expiredList: []models.Booking{expiredBooking("bk-1"), expiredBooking("bk-2")},
	}
	notifier := &fakeNotifier{}
	v := NewVerifier(store, testRegistry(t), &fakeReader{}, notifier, nil)

	count, err := v.CheckExpiredBookings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, []string{"bk-1", "bk-2"}, store.expireCalls)

	require.Eventually(t, func() bool {
		_, _, expired := notifier.counts()
		return expired == 2
	}, time.Second, 10*time.Millisecond)
}

func TestCheckExpiredBookingsNothingToDo(t *testing.T) {
	store := &fakeStore{}
	v := NewVerifier(store, testRegistry(t), &fakeReader{}, &fakeNotifier{}, nil)

	count, err := v.CheckExpiredBookings(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCheckExpiredBookingsSkipsConcurrentlyResolved(t *testing.T) {
	store := &fakeStore{
		expiredList: []models.Booking{expiredBooking("bk-1"), expiredBooking("bk-2")},
		expireErr:   map[string]error{"bk-1": models.ErrStatusConflict},
	}
	v := NewVerifier(store, testRegistry(t), &fakeReader{}, &fakeNotifier{}, nil)

	count, err := v.CheckExpiredBookings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCheckExpiredBookingsIsolatesFailures(t *testing.T) {
	store := &fakeStore{
		expiredList: []models.Booking{expiredBooking("bk-1"), expiredBooking("bk-2")},
		expireErr:   map[string]error{"bk-1": errors.New("db down")},
	}
	v := NewVerifier(store, testRegistry(t), &fakeReader{}, &fakeNotifier{}, nil)

	count, err := v.CheckExpiredBookings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"bk-1", "bk-2"}, store.expireCalls)
}

func TestCheckExpiredBookingsListFailure(t *testing.T) {
	store := &fakeStore{listErr: errors.New("db down")}
	v := NewVerifier(store, testRegistry(t), &fakeReader{}, &fakeNotifier{}, nil)

	_, err := v.CheckExpiredBookings(context.Background())
	require.Error(t, err)
}
