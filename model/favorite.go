package model

import "time"

// Favorite 用户收藏的 beat
type Favorite struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID    string    `json:"userId" gorm:"size:36;uniqueIndex:idx_user_beat;not null"`
	BeatID    string    `json:"beatId" gorm:"size:36;uniqueIndex:idx_user_beat;not null"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName 指定表名
func (Favorite) TableName() string {
	return "favorites"
}
