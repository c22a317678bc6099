package store

import (
	"context"
	"fmt"
	"time"

	"github.com/connectedhome/connectedhome/internal/db/models"
	"gorm.io/gorm"
)

// OAuthStates holds in-flight authorization requests.
type OAuthStates struct {
	db *gorm.DB
}

// Create persists a new state.
func (s *OAuthStates) Create(ctx context.Context, state *models.OAuthState) error {
	if err := s.db.WithContext(ctx).Create(state).Error; err != nil {
		return fmt.Errorf("failed to create oauth state: %w", err)
	}
	return nil
}

// Peek returns a live state without consuming it.
func (s *OAuthStates) Peek(ctx context.Context, internalState string, now time.Time) (models.OAuthState, error) {
	var state models.OAuthState
	err := s.db.WithContext(ctx).
		Where("internal_state = ? AND expires_at > ?", internalState, now.Unix()).
		First(&state).Error
	return state, notFound(err)
}

// Consume deletes a live state and returns it. Only one caller can consume
// a given state; the others get ErrNotFound.
func (s *OAuthStates) Consume(ctx context.Context, internalState string, now time.Time) (models.OAuthState, error) {
	var state models.OAuthState
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("internal_state = ? AND expires_at > ?", internalState, now.Unix()).First(&state).Error; err != nil {
			return notFound(err)
		}
		res := tx.Where("internal_state = ?", internalState).Delete(&models.OAuthState{})
		if res.Error != nil {
			return fmt.Errorf("failed to consume oauth state: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return ErrNotFound
		}
		return nil
	})
	return state, err
}

// DeleteExpired removes states whose expiry has passed.
func (s *OAuthStates) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", now.Unix()).Delete(&models.OAuthState{})
	return res.RowsAffected, res.Error
}

// AuthorizationCodes holds codes waiting for token exchange.
type AuthorizationCodes struct {
	db *gorm.DB
}

// Replace removes any outstanding code for the account and stores code.
func (c *AuthorizationCodes) Replace(ctx context.Context, code *models.AuthorizationCode) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", code.AccountID).Delete(&models.AuthorizationCode{}).Error; err != nil {
			return fmt.Errorf("failed to clear authorization code: %w", err)
		}
		if err := tx.Create(code).Error; err != nil {
			return fmt.Errorf("failed to create authorization code: %w", err)
		}
		return nil
	})
}

// Consume deletes a live code and returns it. A code can be consumed once.
func (c *AuthorizationCodes) Consume(ctx context.Context, code string, now time.Time) (models.AuthorizationCode, error) {
	var row models.AuthorizationCode
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("authorization_code = ? AND expires_at > ?", code, now.Unix()).First(&row).Error; err != nil {
			return notFound(err)
		}
		res := tx.Where("authorization_code = ?", code).Delete(&models.AuthorizationCode{})
		if res.Error != nil {
			return fmt.Errorf("failed to consume authorization code: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return ErrNotFound
		}
		return nil
	})
	return row, err
}

// DeleteExpired removes codes whose expiry has passed.
func (c *AuthorizationCodes) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := c.db.WithContext(ctx).Where("expires_at <= ?", now.Unix()).Delete(&models.AuthorizationCode{})
	return res.RowsAffected, res.Error
}

// Grants holds issued access/refresh token pairs.
type Grants struct {
	db *gorm.DB
}

// Create stores a new grant.
func (g *Grants) Create(ctx context.Context, grant *models.Grant) error {
	if err := g.db.WithContext(ctx).Create(grant).Error; err != nil {
		return fmt.Errorf("failed to create grant: %w", err)
	}
	return nil
}

// FindByAccessToken returns the grant that issued accessToken.
func (g *Grants) FindByAccessToken(ctx context.Context, accessToken string) (models.Grant, error) {
	var grant models.Grant
	if accessToken == "" {
		return grant, ErrNotFound
	}
	err := g.db.WithContext(ctx).Where("access_token = ?", accessToken).First(&grant).Error
	return grant, notFound(err)
}

// FindByRefreshToken returns the grant owning refreshToken.
func (g *Grants) FindByRefreshToken(ctx context.Context, refreshToken string) (models.Grant, error) {
	var grant models.Grant
	if refreshToken == "" {
		return grant, ErrNotFound
	}
	err := g.db.WithContext(ctx).Where("refresh_token = ?", refreshToken).First(&grant).Error
	return grant, notFound(err)
}

// Rotate writes a new access token and expiry for the grant keyed by
// refreshToken.
func (g *Grants) Rotate(ctx context.Context, refreshToken, accessToken string, expiry int64) error {
	res := g.db.WithContext(ctx).
		Model(&models.Grant{}).
		Where("refresh_token = ?", refreshToken).
		Updates(map[string]interface{}{
			"access_token": accessToken,
			"expiry":       expiry,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to rotate grant: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
