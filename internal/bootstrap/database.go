package bootstrap

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/models"
)

// Migrate ensures required tables exist.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.PaymentAttempt{}); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}
