package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog actions written by the booking flow.
const (
	ActionBookingCreated   = "booking_created"
	ActionBookingApproved  = "booking_approved"
	ActionBookingExpired   = "booking_expired"
	ActionBookingCancelled = "booking_cancelled"
	ActionPaymentSubmitted = "payment_submitted"
	ActionPaymentConfirmed = "payment_confirmed"
	ActionPaymentFailed    = "payment_failed"
)

// ActivityLog is an append-only audit record. Rows are never updated or
// deleted; every booking state transition writes exactly one entry in the
// same database transaction as the booking update itself.
type ActivityLog struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	BookingID string         `json:"bookingId" gorm:"index;not null"`
	UserID    *uint          `json:"userId"`
	Action    string         `json:"action" gorm:"not null"`
	Entity    string         `json:"entity" gorm:"not null"`
	EntityID  string         `json:"entityId"`
	Details   datatypes.JSON `json:"details"`
	CreatedAt time.Time      `json:"createdAt"`
}

// TableName specifies the table name
func (ActivityLog) TableName() string {
	return "activity_logs"
}
