package models

import (
	"time"
)

type SocialAccount struct {
	ID             int64     `db:"id" json:"id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	Platform       string    `db:"platform" json:"platform"`
	PlatformUserID string    `db:"platform_user_id" json:"platform_user_id"`
	AccountName    string    `db:"account_name" json:"account_name"`
	ProfilePicture string    `db:"profile_picture_url" json:"profile_picture"`
	AccessToken    string    `db:"access_token" json:"-"`
	RefreshToken   string    `db:"refresh_token" json:"-"`
	TokenExpiresAt time.Time `db:"token_expires_at" json:"token_expires_at"`
	IsConnected    bool      `db:"is_connected" json:"is_connected"`
	Metadata       JSONMap   `db:"metadata" json:"metadata"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// OAuth1Token returns auxiliary OAuth 1.0a user credentials stored during the
// connect flow, when the platform granted them.
func (sa *SocialAccount) OAuth1Token() (token, secret string) {
	if sa.Metadata == nil {
		return "", ""
	}
	token, _ = sa.Metadata["oauth1_token"].(string)
	secret, _ = sa.Metadata["oauth1_secret"].(string)
	return token, secret
}
