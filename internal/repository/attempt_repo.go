package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/19NgoXuanToan11/mobile-sep490-sub000/internal/models"
)

// AttemptRepository handles payment attempt database operations.
type AttemptRepository struct {
	db *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// Create inserts a new payment attempt.
func (r *AttemptRepository) Create(attempt *models.PaymentAttempt) error {
	now := time.Now().Unix()
	if attempt.CreatedAt == 0 {
		attempt.CreatedAt = now
	}
	attempt.UpdatedAt = now
	return r.db.Create(attempt).Error
}

// FindByOrderID returns the most recent attempt for an order.
func (r *AttemptRepository) FindByOrderID(orderID string) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	if err := r.db.Where("order_id = ?", orderID).
		Order("created_at DESC").First(&attempt).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

// FindPendingOlderThan returns pending attempts created before the cutoff,
// oldest first, limited to batchSize rows. The reconciliation sweep works
// through these.
func (r *AttemptRepository) FindPendingOlderThan(cutoff time.Time, batchSize int) ([]models.PaymentAttempt, error) {
	if batchSize <= 0 {
		batchSize = 50
	}
	var attempts []models.PaymentAttempt
	err := r.db.Where("status = ? AND created_at < ?", models.AttemptStatusPending, cutoff.Unix()).
		Order("created_at ASC").Limit(batchSize).Find(&attempts).Error
	return attempts, err
}

// UpdateStatus updates an attempt's status and message.
func (r *AttemptRepository) UpdateStatus(attemptID, status, message string) error {
	return r.db.Model(&models.PaymentAttempt{}).
		Where("attempt_id = ?", attemptID).
		Updates(map[string]interface{}{
			"status":     status,
			"message":    message,
			"updated_at": time.Now().Unix(),
		}).Error
}

// ExpirePendingOlderThan marks pending attempts older than the TTL as
// expired. Returns the number of rows touched.
func (r *AttemptRepository) ExpirePendingOlderThan(ttl time.Duration) (int64, error) {
	cutoff := time.Now().Add(-ttl).Unix()
	res := r.db.Model(&models.PaymentAttempt{}).
		Where("status = ? AND created_at < ?", models.AttemptStatusPending, cutoff).
		Updates(map[string]interface{}{
			"status":     models.AttemptStatusExpired,
			"updated_at": time.Now().Unix(),
		})
	return res.RowsAffected, res.Error
}
