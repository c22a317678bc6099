package models

import "time"

// OAuthClientCredential holds the client_id/client_secret pair handed to an
// external consumer. One row per consumer identifier.
type OAuthClientCredential struct {
	Identifier   string `gorm:"primaryKey"` // e.g. "GOOGLE"
	ClientID     string `gorm:"not null"`
	ClientSecret string `gorm:"not null"`
	CreatedAt    time.Time
}

func (OAuthClientCredential) TableName() string {
	return "oauth_credentials"
}

// OAuthState correlates our internal state with the consumer's state and
// redirect URI while the user logs in. Single use.
type OAuthState struct {
	InternalState    string `gorm:"primaryKey;size:64"`
	OAuthState       string `gorm:"column:oauth_state;not null"`
	OAuthRedirectURI string `gorm:"column:oauth_redirect_uri;not null"`
	ExpiresAt        int64  `gorm:"index;not null"` // unix seconds
	CreatedAt        time.Time
}

func (OAuthState) TableName() string {
	return "oauth_states"
}

// AuthorizationCode is issued at consent and consumed at token exchange.
// The unique index on AccountID allows one outstanding code per account.
type AuthorizationCode struct {
	AuthorizationCode string `gorm:"primaryKey;size:64"`
	AccountID         string `gorm:"uniqueIndex;size:64;not null"`
	ExpiresAt         int64  `gorm:"index;not null"` // unix seconds
	CreatedAt         time.Time
}

func (AuthorizationCode) TableName() string {
	return "oauth_authorization_codes"
}

// Grant is an access/refresh token pair. Refresh rotates AccessToken and
// Expiry; RefreshToken is stable for the life of the grant.
type Grant struct {
	RefreshToken string `gorm:"primaryKey;size:64"`
	AccessToken  string `gorm:"uniqueIndex;size:32;not null"`
	AccountID    string `gorm:"index;size:64;not null"`
	Expiry       int64  `gorm:"not null"` // unix seconds
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Grant) TableName() string {
	return "oauth_grants"
}
