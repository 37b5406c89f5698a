package model

import "time"

// Project 用户基于已购买 beat 创建的工作区项目
type Project struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	UserID    string    `json:"userId" gorm:"size:36;index;not null"`
	BeatID    string    `json:"beatId" gorm:"size:36;index;not null"`
	Title     string    `json:"title" gorm:"size:200;not null"`
	Notes     string    `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Project) TableName() string {
	return "projects"
}
