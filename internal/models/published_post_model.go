package models

import "time"

// PublishedPost records one publish of one draft to one social account.
// There is at most one row per (draft, social account) pair; a republish
// updates the existing row.
type PublishedPost struct {
	ID              int64     `db:"id" json:"id"`
	DraftID         int64     `db:"draft_id" json:"draft_id"`
	SocialAccountID int64     `db:"social_account_id" json:"social_account_id"`
	PlatformPostID  string    `db:"platform_post_id" json:"platform_post_id"`
	Status          string    `db:"status" json:"status"`
	PublishedAt     time.Time `db:"published_at" json:"published_at"`
	ErrorMessage    string    `db:"error_message" json:"error_message,omitempty"`
	Metrics         JSONMap   `db:"metrics" json:"metrics"`
	Metadata        JSONMap   `db:"metadata" json:"metadata"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

const PublishedPostStatusPublished = "PUBLISHED"

// Simulated reports whether this row is a synthetic placeholder written after
// every real publish attempt failed.
func (p *PublishedPost) Simulated() bool {
	if p.Metadata == nil {
		return false
	}
	simulated, _ := p.Metadata["simulated"].(bool)
	return simulated
}
