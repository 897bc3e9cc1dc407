package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/OVERFORGE/DeDen/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BookingRepository is the persistence layer for bookings and their audit
// trail. Every status transition is committed together with its activity
// log entry in one database transaction, and is conditioned on the status
// the caller observed so concurrent runs cannot both win.
type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// GetByBookingID loads a booking with its user and stay by the public
// booking identifier.
func (r *BookingRepository) GetByBookingID(ctx context.Context, bookingID string) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Stay").
		Where("booking_id = ?", bookingID).
		First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func logDetails(fields map[string]interface{}) datatypes.JSON {
	data, err := json.Marshal(fields)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}

func appendLog(tx *gorm.DB, bookingID string, userID *uint, action string, details map[string]interface{}) error {
	entry := models.ActivityLog{
		BookingID: bookingID,
		UserID:    userID,
		Action:    action,
		Entity:    "booking",
		EntityID:  bookingID,
		Details:   logDetails(details),
	}
	return tx.Create(&entry).Error
}

// RecordSubmission persists the submitted transaction hash and chain onto
// a pending booking and appends the payment_submitted audit entry.
func (r *BookingRepository) RecordSubmission(ctx context.Context, bookingID string, userID uint, txHash string, chainID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Booking{}).
			Where("booking_id = ? AND status = ?", bookingID, models.BookingStatusPending).
			Updates(map[string]interface{}{
				"tx_hash":  txHash,
				"chain_id": chainID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.ErrStatusConflict
		}
		return appendLog(tx, bookingID, &userID, models.ActionPaymentSubmitted, map[string]interface{}{
			"txHash":  txHash,
			"chainId": chainID,
		})
	})
}

// ConfirmPayment moves a pending booking to confirmed, records the
// on-chain evidence and appends the payment_confirmed audit entry, all in
// one transaction. Returns ErrStatusConflict when the booking was no
// longer pending at commit time.
func (r *BookingRepository) ConfirmPayment(ctx context.Context, bookingID string, evidence models.PaymentEvidence) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&models.Booking{}).
			Where("booking_id = ? AND status = ?", bookingID, models.BookingStatusPending).
			Updates(map[string]interface{}{
				"status":            models.BookingStatusConfirmed,
				"tx_hash":           evidence.TxHash,
				"chain":             evidence.Chain,
				"chain_id":          evidence.ChainID,
				"block_number":      evidence.BlockNumber,
				"sender_address":    evidence.SenderAddress,
				"receiver_address":  evidence.ReceiverAddress,
				"amount_base_units": evidence.AmountBaseUnits,
				"confirmed_at":      now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.ErrStatusConflict
		}
		return appendLog(tx, bookingID, nil, models.ActionPaymentConfirmed, map[string]interface{}{
			"txHash":          evidence.TxHash,
			"chain":           evidence.Chain,
			"chainId":         evidence.ChainID,
			"blockNumber":     evidence.BlockNumber,
			"sender":          evidence.SenderAddress,
			"receiver":        evidence.ReceiverAddress,
			"amountBaseUnits": evidence.AmountBaseUnits,
		})
	})
}

// MarkPaymentFailed moves a pending booking to failed, preserving whatever
// txHash/chainID were supplied, and appends the payment_failed audit entry
// with the failure reason.
func (r *BookingRepository) MarkPaymentFailed(ctx context.Context, bookingID, txHash string, chainID int64, reason string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status": models.BookingStatusFailed,
		}
		if txHash != "" {
			updates["tx_hash"] = txHash
		}
		if chainID != 0 {
			updates["chain_id"] = chainID
		}
		res := tx.Model(&models.Booking{}).
			Where("booking_id = ? AND status = ?", bookingID, models.BookingStatusPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.ErrStatusConflict
		}
		return appendLog(tx, bookingID, nil, models.ActionPaymentFailed, map[string]interface{}{
			"txHash":  txHash,
			"chainId": chainID,
			"reason":  reason,
		})
	})
}

// ListExpiredPending returns pending bookings whose payment window closed
// before now.
func (r *BookingRepository) ListExpiredPending(ctx context.Context, now time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", models.BookingStatusPending, now).
		Find(&bookings).Error
	return bookings, err
}

// ExpireBooking moves a pending booking to expired and appends the
// booking_expired audit entry.
func (r *BookingRepository) ExpireBooking(ctx context.Context, bookingID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Booking{}).
			Where("booking_id = ? AND status = ?", bookingID, models.BookingStatusPending).
			Update("status", models.BookingStatusExpired)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.ErrStatusConflict
		}
		return appendLog(tx, bookingID, nil, models.ActionBookingExpired, map[string]interface{}{
			"expiredAt": time.Now(),
		})
	})
}

// ResetForRetry moves a failed booking back to pending so verification can
// be re-driven. A single update, not paired with the subsequent verify.
func (r *BookingRepository) ResetForRetry(ctx context.Context, bookingID string) error {
	res := r.db.WithContext(ctx).Model(&models.Booking{}).
		Where("booking_id = ? AND status = ?", bookingID, models.BookingStatusFailed).
		Update("status", models.BookingStatusPending)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrStatusConflict
	}
	return nil
}
