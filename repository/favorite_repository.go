package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"BeatFlow/model"
)

// FavoriteRepository 收藏关系的持久化操作
type FavoriteRepository struct {
	db *gorm.DB
}

// NewFavoriteRepository creates a new FavoriteRepository.
func NewFavoriteRepository(db *gorm.DB) *FavoriteRepository {
	return &FavoriteRepository{db: db}
}

// Add records a favorite. Adding twice is a no-op thanks to the unique
// (user, beat) index.
func (r *FavoriteRepository) Add(userID, beatID string) error {
	fav := &model.Favorite{UserID: userID, BeatID: beatID}
	err := r.db.Create(fav).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return fmt.Errorf("failed to add favorite for user %s beat %s: %w", userID, beatID, err)
	}
	return nil
}

// Remove deletes a favorite. Removing a missing favorite is a no-op.
func (r *FavoriteRepository) Remove(userID, beatID string) error {
	err := r.db.Where("user_id = ? AND beat_id = ?", userID, beatID).Delete(&model.Favorite{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove favorite for user %s beat %s: %w", userID, beatID, err)
	}
	return nil
}

// ListBeatIDs retrieves the IDs of every beat the user has favorited.
func (r *FavoriteRepository) ListBeatIDs(userID string) ([]string, error) {
	var ids []string
	err := r.db.Model(&model.Favorite{}).Where("user_id = ?", userID).
		Order("created_at DESC").Pluck("beat_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites for user %s: %w", userID, err)
	}
	return ids, nil
}

// IsFavorite reports whether the user has favorited the beat.
func (r *FavoriteRepository) IsFavorite(userID, beatID string) (bool, error) {
	var count int64
	err := r.db.Model(&model.Favorite{}).
		Where("user_id = ? AND beat_id = ?", userID, beatID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check favorite for user %s beat %s: %w", userID, beatID, err)
	}
	return count > 0, nil
}
