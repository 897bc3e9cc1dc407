package handlers

import (
	"context"
	"errors"
	"log"
	"regexp"
	"time"

	"github.com/OVERFORGE/DeDen/internal/models"
	"github.com/OVERFORGE/DeDen/internal/repository"
	"github.com/OVERFORGE/DeDen/internal/services"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// PaymentVerifier is the slice of the verification engine the payment
// handlers need.
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, bookingID, txHash string, chainID int64) error
	RetryFailedVerification(ctx context.Context, bookingID string) error
}

var txHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// backgroundVerifyTimeout bounds a single background verification run,
// covering the confirmation wait plus RPC round trips.
const backgroundVerifyTimeout = 10 * time.Minute

type SubmitPaymentInput struct {
	TxHash  string `json:"txHash" binding:"required"`
	ChainID int64  `json:"chainId" binding:"required"`
}

// SubmitPayment records a guest's transaction hash against their pending
// booking and kicks off verification in the background. The response only
// acknowledges the submission; the outcome arrives via the status endpoint,
// WebSocket and email.
func SubmitPayment(db *gorm.DB, verifier PaymentVerifier) gin.HandlerFunc {
	repo := repository.NewBookingRepository(db)

	return func(c *gin.Context) {
		bookingId := c.Param("id")
		userId := c.GetUint("userId")

		var input SubmitPaymentInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		if !txHashPattern.MatchString(input.TxHash) {
			c.JSON(400, gin.H{"error": "Invalid transaction hash format"})
			return
		}

		booking, err := repo.GetByBookingID(c.Request.Context(), bookingId)
		if err != nil {
			if errors.Is(err, models.ErrBookingNotFound) {
				c.JSON(404, gin.H{"error": "Booking not found"})
				return
			}
			c.JSON(500, gin.H{"error": "Failed to load booking"})
			return
		}
		if booking.UserID != userId {
			c.JSON(403, gin.H{"error": "Unauthorized"})
			return
		}
		if booking.Status != models.BookingStatusPending {
			c.JSON(409, gin.H{"error": "Booking is not awaiting payment", "status": booking.Status})
			return
		}
		if booking.IsExpired() {
			c.JSON(409, gin.H{"error": "Payment window has expired"})
			return
		}
		if !booking.HasPaymentIntent() {
			c.JSON(409, gin.H{"error": "Booking has no payment details yet"})
			return
		}
		if booking.ChainID != nil && *booking.ChainID != input.ChainID {
			c.JSON(400, gin.H{"error": "Payment must be made on the approved chain"})
			return
		}

		if err := repo.RecordSubmission(c.Request.Context(), bookingId, userId, input.TxHash, input.ChainID); err != nil {
			if errors.Is(err, models.ErrStatusConflict) {
				c.JSON(409, gin.H{"error": "Booking is not awaiting payment"})
				return
			}
			c.JSON(500, gin.H{"error": "Failed to record submission"})
			return
		}

		spawnBackgroundVerification(verifier, bookingId, input.TxHash, input.ChainID)

		c.JSON(202, gin.H{
			"bookingId": bookingId,
			"status":    "verifying",
			"message":   "Payment submitted. Verification is in progress.",
		})
	}
}

// spawnBackgroundVerification runs verification detached from the request
// so the guest gets an immediate acknowledgement.
func spawnBackgroundVerification(verifier PaymentVerifier, bookingID, txHash string, chainID int64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundVerifyTimeout)
		defer cancel()

		if err := verifier.VerifyPayment(ctx, bookingID, txHash, chainID); err != nil {
			log.Printf("Background verification for booking %s finished with error: %v", bookingID, err)
		}
	}()
}

// GetBookingStatus is the polling endpoint guests hit while verification
// runs. It serves from the Redis cache when warm and falls back to the
// database.
func GetBookingStatus(db *gorm.DB) gin.HandlerFunc {
	repo := repository.NewBookingRepository(db)

	return func(c *gin.Context) {
		bookingId := c.Param("id")
		userId := c.GetUint("userId")
		isAdmin := c.GetString("userType") == string(models.UserTypeAdmin)

		if services.RedisClient != nil && !isAdmin {
			if ownerID, status, err := services.GetCachedBookingStatus(c.Request.Context(), bookingId); err == nil && status != "" {
				// Cache hits enforce ownership just like the database path.
				if ownerID != userId {
					c.JSON(403, gin.H{"error": "Unauthorized"})
					return
				}
				c.JSON(200, gin.H{"bookingId": bookingId, "status": status, "cached": true})
				return
			}
		}

		booking, err := repo.GetByBookingID(c.Request.Context(), bookingId)
		if err != nil {
			if errors.Is(err, models.ErrBookingNotFound) {
				c.JSON(404, gin.H{"error": "Booking not found"})
				return
			}
			c.JSON(500, gin.H{"error": "Failed to load booking"})
			return
		}
		if booking.UserID != userId && !isAdmin {
			c.JSON(403, gin.H{"error": "Unauthorized"})
			return
		}

		resp := gin.H{
			"bookingId": booking.BookingID,
			"status":    booking.Status,
		}
		if booking.TxHash != "" {
			resp["txHash"] = booking.TxHash
		}
		if booking.ExpiresAt != nil {
			resp["expiresAt"] = booking.ExpiresAt
		}
		if booking.ConfirmedAt != nil {
			resp["confirmedAt"] = booking.ConfirmedAt
		}

		c.JSON(200, resp)
	}
}

// RetryVerification re-runs verification for a failed booking (admin only).
// The retry is synchronous so the admin sees the outcome directly.
func RetryVerification(verifier PaymentVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingId := c.Param("id")

		err := verifier.RetryFailedVerification(c.Request.Context(), bookingId)
		if err != nil {
			switch {
			case errors.Is(err, models.ErrBookingNotFound):
				c.JSON(404, gin.H{"error": "Booking not found"})
			case errors.Is(err, models.ErrBookingNotFailed):
				c.JSON(409, gin.H{"error": "Only failed bookings can be retried"})
			case errors.Is(err, models.ErrMissingTxInfo):
				c.JSON(409, gin.H{"error": "Booking has no transaction to re-verify"})
			default:
				c.JSON(200, gin.H{
					"bookingId": bookingId,
					"status":    models.BookingStatusFailed,
					"error":     err.Error(),
				})
			}
			return
		}

		c.JSON(200, gin.H{"bookingId": bookingId, "status": models.BookingStatusConfirmed})
	}
}
