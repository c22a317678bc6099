package store

import (
	"context"
	"fmt"

	"github.com/connectedhome/connectedhome/internal/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Services stores linked third-party services and their encrypted
// credentials.
type Services struct {
	db *gorm.DB
}

// Link creates the service and its credential together.
func (s *Services) Link(ctx context.Context, svc *models.Service, cred *models.ServiceCredential) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(svc).Error; err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}
		cred.ServiceID = svc.ServiceID
		if err := tx.Create(cred).Error; err != nil {
			return fmt.Errorf("failed to store service credential: %w", err)
		}
		return nil
	})
}

// Find returns a single linked service.
func (s *Services) Find(ctx context.Context, serviceID string) (models.Service, error) {
	var svc models.Service
	err := s.db.WithContext(ctx).Where("service_id = ?", serviceID).First(&svc).Error
	return svc, notFound(err)
}

// ListByAccount returns every service the account has linked, oldest first.
func (s *Services) ListByAccount(ctx context.Context, accountID string) ([]models.Service, error) {
	var services []models.Service
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at ASC").
		Find(&services).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return services, nil
}

// UpsertCredential inserts or replaces the credential for cred.ServiceID.
func (s *Services) UpsertCredential(ctx context.Context, cred *models.ServiceCredential) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "service_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "password", "updated_at"}),
	}).Create(cred).Error
	if err != nil {
		return fmt.Errorf("failed to upsert service credential: %w", err)
	}
	return nil
}

// FindCredential returns the stored (still encrypted) credential.
func (s *Services) FindCredential(ctx context.Context, serviceID string) (models.ServiceCredential, error) {
	var cred models.ServiceCredential
	err := s.db.WithContext(ctx).Where("service_id = ?", serviceID).First(&cred).Error
	return cred, notFound(err)
}

// LegacyCredentials lists rows still held in the account+service keyed
// table.
func (s *Services) LegacyCredentials(ctx context.Context) ([]models.LegacyAPIPassword, error) {
	var rows []models.LegacyAPIPassword
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list legacy credentials: %w", err)
	}
	return rows, nil
}

// ImportLegacy replaces one legacy row with a new service serviceID holding
// cred, which the caller has already re-encrypted.
func (s *Services) ImportLegacy(ctx context.Context, legacy models.LegacyAPIPassword, serviceID string, cred models.ServiceCredential) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		svc := models.Service{
			ServiceID:   serviceID,
			AccountID:   legacy.AccountID,
			ServiceType: legacy.Service,
		}
		if err := tx.Create(&svc).Error; err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}
		cred.ServiceID = serviceID
		if err := tx.Create(&cred).Error; err != nil {
			return fmt.Errorf("failed to store service credential: %w", err)
		}
		res := tx.Where("account_id = ? AND service = ?", legacy.AccountID, legacy.Service).
			Delete(&models.LegacyAPIPassword{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete legacy credential: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return ErrNotFound
		}
		return nil
	})
}
