package models

import "time"

// Service links an account to one instance of a third-party service.
// An account may link the same service type more than once.
type Service struct {
	ServiceID   string `gorm:"primaryKey;size:64"`
	AccountID   string `gorm:"index;size:64;not null"`
	ServiceType string `gorm:"not null"`
	CreatedAt   time.Time
}

// ServiceCredential stores the encrypted login for a linked service.
// Both columns hold base64 ciphertext.
type ServiceCredential struct {
	ServiceID string `gorm:"primaryKey;size:64"`
	Username  string `gorm:"type:text;not null"`
	Password  string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

// LegacyAPIPassword is the older account+service keyed credential shape.
// Rows are moved into Service/ServiceCredential at start-up.
type LegacyAPIPassword struct {
	AccountID string `gorm:"primaryKey;size:64"`
	Service   string `gorm:"primaryKey"`
	Username  string `gorm:"type:text;not null"`
	Password  string `gorm:"type:text;not null"`
}

func (LegacyAPIPassword) TableName() string {
	return "api_passwords"
}
