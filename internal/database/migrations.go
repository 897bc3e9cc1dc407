package database

import (
	"github.com/OVERFORGE/DeDen/internal/models"
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	// Create tables if they don't exist
	err := db.AutoMigrate(
		&models.User{},
		&models.Stay{},
		&models.Booking{},
		&models.ActivityLog{},
	)
	if err != nil {
		return err
	}

	// Update users table
	if db.Migrator().HasTable(&models.User{}) {
		db.Exec(`ALTER TABLE users DROP CONSTRAINT IF EXISTS users_user_type_check`)
		db.Exec(`ALTER TABLE users ADD CONSTRAINT users_user_type_check CHECK (user_type IN ('guest', 'admin'))`)
	}

	if db.Migrator().HasTable(&models.Booking{}) {
		db.Exec(`ALTER TABLE bookings DROP CONSTRAINT IF EXISTS bookings_status_check`)
		db.Exec(`ALTER TABLE bookings ADD CONSTRAINT bookings_status_check CHECK (status IN ('waitlisted', 'pending', 'confirmed', 'failed', 'expired', 'cancelled'))`)

		// The expiry sweeper scans pending bookings by deadline
		if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_bookings_status_expires_at ON bookings (status, expires_at)`).Error; err != nil {
			return err
		}
	}

	if db.Migrator().HasTable(&models.ActivityLog{}) {
		if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_activity_logs_booking_id ON activity_logs (booking_id)`).Error; err != nil {
			return err
		}
	}

	return nil
}
