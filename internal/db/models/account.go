package models

import "time"

// Account is a user who logs in with e-mail and password.
type Account struct {
	AccountID    string  `gorm:"primaryKey;size:64"`
	Email        string  `gorm:"uniqueIndex;not null"`
	PasswordHash string  `gorm:"not null"` // bcrypt, never plaintext
	Salt         string  `gorm:"size:16;not null"`
	SessionID    *string `gorm:"uniqueIndex;size:64"` // current session, overwritten on login
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
