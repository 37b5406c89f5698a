package model

import "time"

// Purchase 购买记录，价格为下单时的快照
type Purchase struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	UserID     string    `json:"userId" gorm:"size:36;index;not null"`
	BeatID     string    `json:"beatId" gorm:"size:36;index;not null"`
	ProducerID string    `json:"producerId" gorm:"size:36;index;not null"`
	Price      float64   `json:"price" gorm:"not null"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TableName 指定表名
func (Purchase) TableName() string {
	return "purchases"
}
