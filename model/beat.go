package model

import "time"

// Beat represents a beat listed on the marketplace.
type Beat struct {
	ID           string    `json:"id"`
	ProducerID   string    `json:"producerId"`
	ProducerName string    `json:"producerName"`
	Title        string    `json:"title"`
	Genre        string    `json:"genre"`
	BPM          int       `json:"bpm"`
	Price        float64   `json:"price"`
	Description  string    `json:"description,omitempty"`
	AudioPath    string    `json:"audioPath"` // Relative object path, resolved via storage URL helpers
	CoverPath    string    `json:"coverPath,omitempty"`
	Duration     float32   `json:"duration"` // Duration in seconds, probed at upload time
	Plays        int64     `json:"plays"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// BeatFilter narrows beat listing queries. Zero values mean "no constraint".
type BeatFilter struct {
	Genre    string
	MinBPM   int
	MaxBPM   int
	MaxPrice float64
	Search   string // matches title or producer name
	Limit    int
}
