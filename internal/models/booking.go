package models

import (
	"time"

	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingStatusWaitlisted BookingStatus = "waitlisted"
	BookingStatusPending    BookingStatus = "pending"
	BookingStatusConfirmed  BookingStatus = "confirmed"
	BookingStatusFailed     BookingStatus = "failed"
	BookingStatusExpired    BookingStatus = "expired"
	BookingStatusCancelled  BookingStatus = "cancelled"
)

type PaymentToken string

const (
	PaymentTokenUSDC PaymentToken = "USDC"
	PaymentTokenUSDT PaymentToken = "USDT"
)

type Booking struct {
	gorm.Model
	// BookingID is the stable identifier shown to guests, distinct from the row id.
	BookingID string        `json:"bookingId" gorm:"unique;not null"`
	UserID    uint          `json:"userId" gorm:"not null"`
	User      User          `json:"user"`
	StayID    uint          `json:"stayId" gorm:"not null"`
	Stay      Stay          `json:"stay"`
	Status    BookingStatus `json:"status" gorm:"not null;default:'waitlisted'"`

	// Payment intent, armed on admin approval. Immutable once a tx is
	// submitted. The amount is a decimal string in human units; it is never
	// held as a float so scaling to base units stays exact.
	PaymentAmount string     `json:"paymentAmount"`
	PaymentToken  string     `json:"paymentToken"`
	ChainID       *int64     `json:"chainId"`
	ExpiresAt     *time.Time `json:"expiresAt"`

	// Payment evidence, written only when verification confirms the transfer.
	TxHash          string     `json:"txHash"`
	Chain           string     `json:"chain"`
	BlockNumber     *int64     `json:"blockNumber"`
	SenderAddress   string     `json:"senderAddress"`
	ReceiverAddress string     `json:"receiverAddress"`
	AmountBaseUnits string     `json:"amountBaseUnits"`
	ConfirmedAt     *time.Time `json:"confirmedAt"`
}

// PaymentEvidence holds the on-chain facts recorded when a payment is
// verified. Written only on the CONFIRMED commit path.
type PaymentEvidence struct {
	TxHash          string
	Chain           string
	ChainID         int64
	BlockNumber     int64
	SenderAddress   string
	ReceiverAddress string
	AmountBaseUnits string
}

// HasPaymentIntent reports whether approval armed the token and amount
// needed to verify a payment.
func (b *Booking) HasPaymentIntent() bool {
	return b.PaymentToken != "" && b.PaymentAmount != ""
}

// IsExpired reports whether the payment window has closed.
func (b *Booking) IsExpired() bool {
	return b.ExpiresAt != nil && time.Now().After(*b.ExpiresAt)
}
