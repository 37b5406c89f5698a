package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"BeatFlow/model"
)

// PurchaseRepository 购买记录的持久化操作
type PurchaseRepository struct {
	db *gorm.DB
}

// NewPurchaseRepository creates a new PurchaseRepository.
func NewPurchaseRepository(db *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// Create stores a purchase record.
func (r *PurchaseRepository) Create(purchase *model.Purchase) error {
	if err := r.db.Create(purchase).Error; err != nil {
		return fmt.Errorf("failed to create purchase: %w", err)
	}
	return nil
}

// ListByUser retrieves a user's purchases, newest first.
func (r *PurchaseRepository) ListByUser(userID string) ([]model.Purchase, error) {
	var purchases []model.Purchase
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&purchases).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases for user %s: %w", userID, err)
	}
	return purchases, nil
}

// HasPurchased reports whether the user already owns the beat.
func (r *PurchaseRepository) HasPurchased(userID, beatID string) (bool, error) {
	var purchase model.Purchase
	err := r.db.Where("user_id = ? AND beat_id = ?", userID, beatID).First(&purchase).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check purchase for user %s beat %s: %w", userID, beatID, err)
	}
	return true, nil
}
