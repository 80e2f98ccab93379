package models

import "time"

// Podcast is the durable artifact produced by a generation run: the paper
// metadata plus the stored cover image, audio track, and narration script.
// It is inserted exactly once, after every pipeline stage has succeeded.
type Podcast struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	Title           string    `json:"title"`
	Abstract        string    `json:"abstract"`
	Authors         []string  `json:"authors"`
	PublishingYear  int       `json:"publishing_year"`
	FieldOfResearch string    `json:"field_of_research"`
	DOI             string    `json:"doi,omitempty"`
	Keywords        []string  `json:"keywords"`
	CoverImageURL   string    `json:"cover_image_url"`
	AudioURL        string    `json:"audio_url"`
	Script          string    `json:"script"`
	IsPublic        bool      `json:"is_public"`
	CreatedAt       time.Time `json:"created_at"`
}
