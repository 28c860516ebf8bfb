package model

import "time"

// Review is a patron's rating of a title. Only approved reviews are shown
// with the title.
type Review struct {
	ID          int64      `json:"id"`
	TitleID     int64      `json:"title_id"`
	PatronID    int64      `json:"patron_id"`
	Rating      int        `json:"rating"`
	Text        string     `json:"review_text,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy  *int64     `json:"reviewed_by,omitempty"`
	ReviewNotes string     `json:"review_notes,omitempty"`
}

// Review statuses.
const (
	ReviewStatusPending  = "pending"
	ReviewStatusApproved = "approved"
	ReviewStatusRejected = "rejected"
)

// Rating bounds.
const (
	MinRating = 1
	MaxRating = 5
)
