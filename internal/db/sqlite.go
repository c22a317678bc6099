package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/connectedhome/connectedhome/internal/db/models"
	"github.com/connectedhome/connectedhome/internal/security"
	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GoogleIdentifier names the OAuth client credentials used by the Google
// Smart Home integration.
const GoogleIdentifier = "GOOGLE"

// Options tunes the connection pool.
type Options struct {
	MaxOpenConns int
	LogLevel     logger.LogLevel
}

// InitDB opens the SQLite database and runs migrations.
func InitDB(dbPath string, opts Options) (*gorm.DB, error) {
	if opts.LogLevel == 0 {
		opts.LogLevel = logger.Warn
	}

	database, err := gorm.Open(sqlite.Open(withPragmas(dbPath)), &gorm.Config{
		Logger:         logger.Default.LogMode(opts.LogLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, err
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
		sqlDB.SetMaxIdleConns(opts.MaxOpenConns)
	}

	if err := Migrate(database); err != nil {
		return nil, err
	}

	return database, nil
}

// Migrate creates or updates every table.
func Migrate(database *gorm.DB) error {
	return database.AutoMigrate(
		&models.Account{},
		&models.OAuthClientCredential{},
		&models.OAuthState{},
		&models.AuthorizationCode{},
		&models.Grant{},
		&models.Service{},
		&models.ServiceCredential{},
		&models.LegacyAPIPassword{},
	)
}

// withPragmas adds a busy timeout so concurrent writers wait instead of
// failing with SQLITE_BUSY.
func withPragmas(dsn string) string {
	if strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)"
}

// EnsureClientCredentials returns the stored client credentials for
// identifier, generating and persisting a new pair on first run.
func EnsureClientCredentials(ctx context.Context, database *gorm.DB, identifier string, log zerolog.Logger) (models.OAuthClientCredential, error) {
	var cred models.OAuthClientCredential
	err := database.WithContext(ctx).Where("identifier = ?", identifier).First(&cred).Error
	if err == nil {
		return cred, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return cred, fmt.Errorf("failed to query oauth credentials: %w", err)
	}

	clientID, err := security.RandomString(security.ClientIDLength)
	if err != nil {
		return cred, err
	}
	clientSecret, err := security.RandomString(security.ClientSecretLength)
	if err != nil {
		return cred, err
	}

	cred = models.OAuthClientCredential{
		Identifier:   identifier,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}
	if err := database.WithContext(ctx).Create(&cred).Error; err != nil {
		return cred, fmt.Errorf("failed to store oauth credentials: %w", err)
	}

	// Printed once so the operator can configure the consumer.
	log.Warn().
		Str("identifier", identifier).
		Str("client_id", clientID).
		Str("client_secret", clientSecret).
		Msg("generated new OAuth client credentials, note these down")

	return cred, nil
}
