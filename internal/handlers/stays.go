package handlers

import (
	"time"

	"github.com/OVERFORGE/DeDen/internal/models"
	"github.com/OVERFORGE/DeDen/internal/services"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type StayInput struct {
	Name          string  `json:"name" binding:"required"`
	Slug          string  `json:"slug" binding:"required"`
	Location      string  `json:"location" binding:"required"`
	Description   string  `json:"description"`
	PricePerNight float64 `json:"pricePerNight" binding:"required,gt=0"`
	Capacity      int     `json:"capacity" binding:"required,gt=0"`
	StartDate     string  `json:"startDate"`
	EndDate       string  `json:"endDate"`
}

// CreateStay creates a new stay (admin only)
func CreateStay(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input StayInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		stay := models.Stay{
			Name:          input.Name,
			Slug:          input.Slug,
			Location:      input.Location,
			Description:   input.Description,
			PricePerNight: input.PricePerNight,
			Capacity:      input.Capacity,
			Active:        true,
		}
		if input.StartDate != "" {
			if t, err := time.Parse(time.RFC3339, input.StartDate); err == nil {
				stay.StartDate = t
			}
		}
		if input.EndDate != "" {
			if t, err := time.Parse(time.RFC3339, input.EndDate); err == nil {
				stay.EndDate = t
			}
		}

		if err := db.Create(&stay).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to create stay"})
			return
		}

		c.JSON(201, stay)
	}
}

// GetStays lists all active stays
func GetStays(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var stays []models.Stay
		query := db.Where("active = ?", true)
		if c.Query("all") == "true" && c.GetString("userType") == string(models.UserTypeAdmin) {
			query = db
		}
		if err := query.Find(&stays).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch stays"})
			return
		}

		c.JSON(200, stays)
	}
}

// GetStay returns one stay by id or slug
func GetStay(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		idOrSlug := c.Param("id")

		var stay models.Stay
		if err := db.Where("id::text = ? OR slug = ?", idOrSlug, idOrSlug).First(&stay).Error; err != nil {
			c.JSON(404, gin.H{"error": "Stay not found"})
			return
		}

		c.JSON(200, stay)
	}
}

// UpdateStay updates a stay (admin only)
func UpdateStay(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		stayId := c.Param("id")

		var stay models.Stay
		if err := db.First(&stay, stayId).Error; err != nil {
			c.JSON(404, gin.H{"error": "Stay not found"})
			return
		}

		var input struct {
			Name          string   `json:"name"`
			Location      string   `json:"location"`
			Description   string   `json:"description"`
			PricePerNight *float64 `json:"pricePerNight"`
			Capacity      *int     `json:"capacity"`
			Active        *bool    `json:"active"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		updates := map[string]interface{}{}
		if input.Name != "" {
			updates["name"] = input.Name
		}
		if input.Location != "" {
			updates["location"] = input.Location
		}
		if input.Description != "" {
			updates["description"] = input.Description
		}
		if input.PricePerNight != nil {
			updates["price_per_night"] = *input.PricePerNight
		}
		if input.Capacity != nil {
			updates["capacity"] = *input.Capacity
		}
		if input.Active != nil {
			updates["active"] = *input.Active
		}

		if err := db.Model(&stay).Updates(updates).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to update stay"})
			return
		}

		c.JSON(200, stay)
	}
}

// UploadStayImage uploads a stay's cover image (admin only)
func UploadStayImage(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		stayId := c.Param("id")

		var stay models.Stay
		if err := db.First(&stay, stayId).Error; err != nil {
			c.JSON(404, gin.H{"error": "Stay not found"})
			return
		}

		file, err := c.FormFile("image")
		if err != nil {
			c.JSON(400, gin.H{"error": "Image file required"})
			return
		}

		path, err := services.UploadImage(file, "stays")
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to upload image"})
			return
		}

		imageURL := services.GetImageURL(path)
		if err := db.Model(&stay).Update("image_url", imageURL).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to save image URL"})
			return
		}

		c.JSON(200, gin.H{"imageUrl": imageURL})
	}
}
