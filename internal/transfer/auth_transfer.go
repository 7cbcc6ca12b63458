package transfer

import "github.com/golang-jwt/jwt/v5"

type CustomClaims struct {
	UserID  string `json:"user_id"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// OAuthState is the short-lived payload correlating an OAuth redirect with
// the user who initiated it.
type OAuthState struct {
	UserID   int64  `json:"user_id"`
	Platform string `json:"platform"`
}

// PlatformProfile is the subset of a provider userinfo response the connect
// flow stores.
type PlatformProfile struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ProfilePicture string `json:"profile_picture"`
}
