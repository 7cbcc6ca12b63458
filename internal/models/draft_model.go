package models

import (
	"database/sql"
	"time"
)

type Draft struct {
	ID              int64        `db:"id" json:"id"`
	UserID          int64        `db:"user_id" json:"user_id"`
	MasterContent   string       `db:"master_content" json:"master_content"`
	Platforms       StringList   `db:"platforms" json:"platforms"`
	PlatformData    JSONMap      `db:"platform_data" json:"platform_data"`
	MediaURLs       StringList   `db:"media_urls" json:"media_urls"`
	Status          string       `db:"status" json:"status"`
	ScheduledAt     sql.NullTime `db:"scheduled_at" json:"scheduled_at"`
	RejectionReason string       `db:"rejection_reason" json:"rejection_reason,omitempty"`
	PublishedID     string       `db:"published_id" json:"published_id,omitempty"`
	PublishAttempts int          `db:"publish_attempts" json:"publish_attempts"`
	Analytics       JSONMap      `db:"analytics" json:"analytics"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}

const (
	DraftStatusPending   = "PENDING"
	DraftStatusApproved  = "APPROVED"
	DraftStatusRejected  = "REJECTED"
	DraftStatusScheduled = "SCHEDULED"
	DraftStatusPublished = "PUBLISHED"
)

const (
	PlatformTwitter   = "twitter"
	PlatformFacebook  = "facebook"
	PlatformInstagram = "instagram"
	PlatformLinkedin  = "linkedin"
)

const analyticsAccountsKey = "social_account_ids"

// TargetAccountIDs returns the account ids fixed in the analytics blob at
// submission time. The fan-out set never changes after creation.
func (d *Draft) TargetAccountIDs() []int64 {
	raw, ok := d.Analytics[analyticsAccountsKey]
	if !ok {
		return nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case float64:
			ids = append(ids, int64(v))
		case int64:
			ids = append(ids, v)
		case int:
			ids = append(ids, int64(v))
		}
	}
	return ids
}

// SetTargetAccountIDs records the fan-out set in the analytics blob.
func (d *Draft) SetTargetAccountIDs(ids []int64) {
	if d.Analytics == nil {
		d.Analytics = JSONMap{}
	}
	items := make([]interface{}, len(ids))
	for i, id := range ids {
		items[i] = id
	}
	d.Analytics[analyticsAccountsKey] = items
	d.Analytics["selected_at"] = time.Now().UTC().Format(time.RFC3339)
}

// ContentFor returns the platform override if one exists, else the master
// content.
func (d *Draft) ContentFor(platform string) string {
	if d.PlatformData == nil {
		return d.MasterContent
	}
	raw, ok := d.PlatformData[platform]
	if !ok {
		return d.MasterContent
	}
	switch v := raw.(type) {
	case string:
		if v != "" {
			return v
		}
	case map[string]interface{}:
		if content, ok := v["content"].(string); ok && content != "" {
			return content
		}
	}
	return d.MasterContent
}
