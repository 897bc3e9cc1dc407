package models

import "errors"

var (
	ErrBookingNotFound = errors.New("booking not found")

	// ErrStatusConflict is returned by conditional status transitions when
	// the booking was no longer in the expected status at commit time, i.e.
	// a concurrent run already resolved it.
	ErrStatusConflict = errors.New("booking status changed concurrently")

	ErrMissingPaymentIntent = errors.New("booking has no payment token or amount set")
	ErrBookingNotFailed     = errors.New("booking is not in failed status")
	ErrMissingTxInfo        = errors.New("booking has no transaction hash or chain id")
)
