package model

import "time"

// User represents a marketplace account. Producers upload beats,
// regular users buy them; user_type distinguishes the two.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Not exposed in API responses
	UserType     string    `json:"userType"` // user, producer
	Bio          string    `json:"bio,omitempty"`
	AvatarPath   string    `json:"avatarPath,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
