package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/connectedhome/connectedhome/internal/db/models"
	"gorm.io/gorm"
)

// Accounts stores user accounts and their current session.
type Accounts struct {
	db *gorm.DB
}

// Create inserts acc. An e-mail address that is already registered yields
// ErrAlreadyExists.
func (a *Accounts) Create(ctx context.Context, acc *models.Account) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Account{}).Where("email = ?", acc.Email).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if count > 0 {
			return ErrAlreadyExists
		}
		if err := tx.Create(acc).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyExists
			}
			return fmt.Errorf("failed to create account: %w", err)
		}
		return nil
	})
}

// FindByEmail looks an account up by its login address.
func (a *Accounts) FindByEmail(ctx context.Context, email string) (models.Account, error) {
	var acc models.Account
	err := a.db.WithContext(ctx).Where("email = ?", email).First(&acc).Error
	return acc, notFound(err)
}

// FindBySession resolves a session id to its account.
func (a *Accounts) FindBySession(ctx context.Context, sessionID string) (models.Account, error) {
	var acc models.Account
	if sessionID == "" {
		return acc, ErrNotFound
	}
	err := a.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&acc).Error
	return acc, notFound(err)
}

// SetSession replaces the session of exactly one account.
func (a *Accounts) SetSession(ctx context.Context, accountID, sessionID string) error {
	res := a.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("account_id = ?", accountID).
		Update("session_id", sessionID)
	if res.Error != nil {
		return fmt.Errorf("failed to update session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
