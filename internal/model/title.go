package model

import "time"

// Title is a catalog entry. Copies are fungible counts, not tracked units.
type Title struct {
	ID              int64      `json:"id"`
	ISBN            string     `json:"isbn,omitempty"`
	Title           string     `json:"title"`
	Author          string     `json:"author,omitempty"`
	Publisher       string     `json:"publisher,omitempty"`
	Year            int        `json:"year,omitempty"`
	Genre           string     `json:"genre,omitempty"`
	TotalCopies     int        `json:"total_copies"`
	AvailableCopies int        `json:"available_copies"`
	Version         int64      `json:"version"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}
