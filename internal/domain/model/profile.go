package model

import "time"

type Profile struct {
	UserID      int64     `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Age         int       `json:"age"`
	Course      string    `json:"course"`
	Year        int       `json:"year"`
	Interests   []string  `json:"interests"`
	Gender      string    `json:"gender"`
	LookingFor  string    `json:"looking_for"`
	Visible     bool      `json:"visible"`
	Completed   bool      `json:"completed"`
	Photos      []string  `json:"photos"`
	CreatedAt   time.Time `json:"created_at"`
}

// Candidate is a profile card prepared for a specific viewer.
type Candidate struct {
	UserID      int64    `json:"user_id"`
	DisplayName string   `json:"display_name"`
	Age         int      `json:"age"`
	Course      string   `json:"course"`
	Year        int      `json:"year"`
	Interests   []string `json:"interests"`
	Gender      string   `json:"gender"`
	PhotoURLs   []string `json:"photo_urls"`
	Score       float64  `json:"score"`
}
