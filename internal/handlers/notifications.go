package handlers

import (
	"github.com/OVERFORGE/DeDen/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterFCMToken stores the device token used for push notifications
func RegisterFCMToken(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var input struct {
			Token string `json:"token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		if err := db.Model(&models.User{}).Where("id = ?", userId).
			Update("fcm_token", input.Token).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to register token"})
			return
		}

		c.JSON(200, gin.H{"message": "Token registered"})
	}
}

// RemoveFCMToken clears the device token, typically on logout
func RemoveFCMToken(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		if err := db.Model(&models.User{}).Where("id = ?", userId).
			Update("fcm_token", "").Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to remove token"})
			return
		}

		c.JSON(200, gin.H{"message": "Token removed"})
	}
}
