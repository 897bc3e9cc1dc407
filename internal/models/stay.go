package models

import (
	"time"

	"gorm.io/gorm"
)

type Stay struct {
	gorm.Model
	Name          string    `json:"name" gorm:"not null"`
	Slug          string    `json:"slug" gorm:"unique;not null"`
	Location      string    `json:"location" gorm:"not null"`
	Description   string    `json:"description" gorm:"type:text"`
	ImageURL      string    `json:"imageUrl"`
	PricePerNight float64   `json:"pricePerNight" gorm:"not null"`
	Capacity      int       `json:"capacity" gorm:"not null;default:1"`
	StartDate     time.Time `json:"startDate"`
	EndDate       time.Time `json:"endDate"`
	Active        bool      `json:"active" gorm:"default:true"`
}
