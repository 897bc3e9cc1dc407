package handlers

import (
	"encoding/json"
	"log"
	"time"

	"github.com/OVERFORGE/DeDen/internal/chain"
	"github.com/OVERFORGE/DeDen/internal/models"
	"github.com/OVERFORGE/DeDen/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func writeActivityLog(tx *gorm.DB, bookingID string, userID *uint, action string, details map[string]interface{}) error {
	data, err := json.Marshal(details)
	if err != nil {
		data = []byte("{}")
	}
	entry := models.ActivityLog{
		BookingID: bookingID,
		UserID:    userID,
		Action:    action,
		Entity:    "booking",
		EntityID:  bookingID,
		Details:   datatypes.JSON(data),
	}
	return tx.Create(&entry).Error
}

// CreateBooking handles a guest's application for a stay. New applications
// start waitlisted until an admin approves them.
func CreateBooking(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")
		var input struct {
			StayID uint `json:"stayId" binding:"required"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		var stay models.Stay
		if err := db.First(&stay, input.StayID).Error; err != nil {
			c.JSON(404, gin.H{"error": "Stay not found"})
			return
		}
		if !stay.Active {
			c.JSON(400, gin.H{"error": "Stay is not open for applications"})
			return
		}

		booking := models.Booking{
			BookingID: uuid.New().String(),
			UserID:    userId,
			StayID:    input.StayID,
			Status:    models.BookingStatusWaitlisted,
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&booking).Error; err != nil {
				return err
			}
			return writeActivityLog(tx, booking.BookingID, &userId, models.ActionBookingCreated, map[string]interface{}{
				"stayId": input.StayID,
			})
		})
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to create booking"})
			return
		}

		c.JSON(201, booking)
	}
}

// GetMyBookings retrieves all bookings for the authenticated guest
func GetMyBookings(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var bookings []models.Booking
		if err := db.Where("user_id = ?", userId).
			Preload("Stay").
			Order("created_at DESC").
			Find(&bookings).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch bookings"})
			return
		}

		c.JSON(200, bookings)
	}
}

// GetAllBookings retrieves all bookings, optionally filtered by status (admin only)
func GetAllBookings(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := db.Preload("User").Preload("Stay").Order("created_at DESC")
		if status := c.Query("status"); status != "" {
			query = query.Where("status = ?", status)
		}

		var bookings []models.Booking
		if err := query.Find(&bookings).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch bookings"})
			return
		}

		c.JSON(200, bookings)
	}
}

type ApproveBookingInput struct {
	PaymentToken  string `json:"paymentToken" binding:"required,oneof=USDC USDT"`
	PaymentAmount string `json:"paymentAmount" binding:"required"`
	ChainID       int64  `json:"chainId" binding:"required"`
	WindowHours   int    `json:"windowHours"`
}

// ApproveBooking arms the payment intent on a waitlisted booking and opens
// its payment window (admin only).
func ApproveBooking(db *gorm.DB, registry *chain.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingId := c.Param("id")
		adminId := c.GetUint("userId")

		var input ApproveBookingInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		amount, err := decimal.NewFromString(input.PaymentAmount)
		if err != nil || amount.Sign() <= 0 {
			c.JSON(400, gin.H{"error": "paymentAmount must be a positive decimal"})
			return
		}
		// Rejects unsupported chain/token pairs and amounts with more
		// precision than the token carries, before the intent is armed.
		if _, err := registry.BaseUnits(input.ChainID, input.PaymentToken, amount); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		var booking models.Booking
		if err := db.Preload("User").Preload("Stay").
			Where("booking_id = ?", bookingId).First(&booking).Error; err != nil {
			c.JSON(404, gin.H{"error": "Booking not found"})
			return
		}
		if booking.Status != models.BookingStatusWaitlisted {
			c.JSON(400, gin.H{"error": "Only waitlisted bookings can be approved"})
			return
		}

		window := input.WindowHours
		if window <= 0 {
			window = 48
		}
		expiresAt := time.Now().Add(time.Duration(window) * time.Hour)

		err = db.Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.Booking{}).
				Where("booking_id = ? AND status = ?", bookingId, models.BookingStatusWaitlisted).
				Updates(map[string]interface{}{
					"status":         models.BookingStatusPending,
					"payment_token":  input.PaymentToken,
					"payment_amount": amount.String(),
					"chain_id":       input.ChainID,
					"expires_at":     expiresAt,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return models.ErrStatusConflict
			}
			return writeActivityLog(tx, bookingId, &adminId, models.ActionBookingApproved, map[string]interface{}{
				"paymentToken":  input.PaymentToken,
				"paymentAmount": amount.String(),
				"chainId":       input.ChainID,
				"expiresAt":     expiresAt,
			})
		})
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to approve booking"})
			return
		}

		chainCfg, _ := registry.Chain(input.ChainID)
		go func() {
			if err := utils.SendBookingApprovedEmail(
				booking.User.Email,
				booking.Stay.Name,
				amount.String(),
				input.PaymentToken,
				chainCfg.Name,
				expiresAt,
			); err != nil {
				log.Printf("Failed to send approval email for booking %s: %v", bookingId, err)
			}
		}()

		c.JSON(200, gin.H{
			"bookingId": bookingId,
			"status":    models.BookingStatusPending,
			"expiresAt": expiresAt,
		})
	}
}

// CancelBooking cancels a booking that has not been paid yet. Guests may
// cancel their own; admins may cancel any.
func CancelBooking(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingId := c.Param("id")
		userId := c.GetUint("userId")
		isAdmin := c.GetString("userType") == string(models.UserTypeAdmin)

		var booking models.Booking
		if err := db.Where("booking_id = ?", bookingId).First(&booking).Error; err != nil {
			c.JSON(404, gin.H{"error": "Booking not found"})
			return
		}
		if booking.UserID != userId && !isAdmin {
			c.JSON(403, gin.H{"error": "Unauthorized"})
			return
		}
		if booking.Status == models.BookingStatusConfirmed {
			c.JSON(400, gin.H{"error": "Confirmed bookings cannot be cancelled here"})
			return
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.Booking{}).
				Where("booking_id = ? AND status IN ?", bookingId,
					[]models.BookingStatus{models.BookingStatusWaitlisted, models.BookingStatusPending, models.BookingStatusFailed}).
				Update("status", models.BookingStatusCancelled)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return models.ErrStatusConflict
			}
			return writeActivityLog(tx, bookingId, &userId, models.ActionBookingCancelled, map[string]interface{}{
				"previousStatus": booking.Status,
			})
		})
		if err != nil {
			c.JSON(409, gin.H{"error": "Booking cannot be cancelled in its current status"})
			return
		}

		c.JSON(200, gin.H{"bookingId": bookingId, "status": models.BookingStatusCancelled})
	}
}
