// Package services links third-party home-automation accounts to user
// accounts and keeps their credentials encrypted at rest.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/connectedhome/connectedhome/internal/db/models"
	"github.com/connectedhome/connectedhome/internal/security"
	"github.com/connectedhome/connectedhome/internal/services/catalog"
	"github.com/connectedhome/connectedhome/internal/store"
	"github.com/rs/zerolog"
)

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidRequest      = errors.New("invalid service request")
	ErrUnknownServiceType  = fmt.Errorf("%w: unknown service type", ErrInvalidRequest)
	ErrValidatorFailed     = errors.New("credential validation failed")
	ErrCredentialsRejected = errors.New("credentials rejected by service")
	ErrServiceNotFound     = errors.New("service not found")
)

// Validator checks a username/password pair against the remote service.
// It returns an error only when the check itself could not be made.
type Validator interface {
	Validate(ctx context.Context, username, password string) (bool, error)
}

// Linker links one service type for an account from its raw request
// object and returns the new service id.
type Linker interface {
	Link(ctx context.Context, accountID string, raw json.RawMessage) (string, error)
}

// Credentials is a decrypted username/password pair.
type Credentials struct {
	Username string
	Password string
}

// Listing is a catalog entry, optionally tied to a linked service.
type Listing struct {
	ServiceID string `json:"service_id,omitempty"`
	catalog.Entry
}

// Manager adds, lists and reads linked services.
type Manager struct {
	store   *store.Store
	cipher  *security.Cipher
	catalog *catalog.Catalog
	linkers map[catalog.ServiceType]Linker
	log     zerolog.Logger
}

// NewManager creates a manager with an empty dispatch table.
func NewManager(st *store.Store, cipher *security.Cipher, cat *catalog.Catalog, log zerolog.Logger) *Manager {
	return &Manager{
		store:   st,
		cipher:  cipher,
		catalog: cat,
		linkers: make(map[catalog.ServiceType]Linker),
		log:     log.With().Str("component", "services").Logger(),
	}
}

// Register installs the linker for t, replacing any previous one.
func (m *Manager) Register(t catalog.ServiceType, l Linker) {
	m.linkers[t] = l
}

// RegisterPasswordService installs a username/password linker for t that
// checks credentials with v before storing them.
func (m *Manager) RegisterPasswordService(t catalog.ServiceType, v Validator) {
	m.Register(t, &passwordLinker{manager: m, serviceType: t, validator: v})
}

func (m *Manager) account(ctx context.Context, sessionID string) (models.Account, error) {
	acc, err := m.store.Accounts.FindBySession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return acc, ErrUnauthorized
	}
	return acc, err
}

// Add links the service described by raw to the session's account.
func (m *Manager) Add(ctx context.Context, sessionID string, raw json.RawMessage) (string, error) {
	acc, err := m.account(ctx, sessionID)
	if err != nil {
		return "", err
	}

	var head struct {
		ServiceType catalog.ServiceType `json:"service_type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	linker, ok := m.linkers[head.ServiceType]
	if !ok {
		return "", ErrUnknownServiceType
	}

	serviceID, err := linker.Link(ctx, acc.AccountID, raw)
	if err != nil {
		return "", err
	}
	m.log.Info().
		Str("account_id", acc.AccountID).
		Str("service_type", string(head.ServiceType)).
		Str("service_id", serviceID).
		Msg("service linked")
	return serviceID, nil
}

// Get lists the full catalog, or with onlyOwned the account's linked
// services joined with their catalog entries.
func (m *Manager) Get(ctx context.Context, sessionID string, onlyOwned bool) ([]Listing, error) {
	acc, err := m.account(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !onlyOwned {
		entries := m.catalog.Entries()
		out := make([]Listing, 0, len(entries))
		for _, e := range entries {
			out = append(out, Listing{Entry: e})
		}
		return out, nil
	}

	owned, err := m.store.Services.ListByAccount(ctx, acc.AccountID)
	if err != nil {
		return nil, err
	}
	out := make([]Listing, 0, len(owned))
	for _, svc := range owned {
		t := catalog.ServiceType(svc.ServiceType)
		entry, ok := m.catalog.Lookup(t)
		if !ok {
			entry = catalog.Entry{Identifier: t}
		}
		out = append(out, Listing{ServiceID: svc.ServiceID, Entry: entry})
	}
	return out, nil
}

func (m *Manager) encrypt(creds Credentials) (models.ServiceCredential, error) {
	username, err := m.cipher.Encrypt(creds.Username)
	if err != nil {
		return models.ServiceCredential{}, err
	}
	password, err := m.cipher.Encrypt(creds.Password)
	if err != nil {
		return models.ServiceCredential{}, err
	}
	return models.ServiceCredential{Username: username, Password: password}, nil
}

// SetPasswordCredentials stores creds for an existing service, replacing
// any previous pair.
func (m *Manager) SetPasswordCredentials(ctx context.Context, serviceID string, creds Credentials) error {
	if _, err := m.store.Services.Find(ctx, serviceID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrServiceNotFound
		}
		return err
	}
	row, err := m.encrypt(creds)
	if err != nil {
		return err
	}
	row.ServiceID = serviceID
	return m.store.Services.UpsertCredential(ctx, &row)
}

// GetPasswordCredentials returns the decrypted credentials of a service.
// found is false when none are stored.
func (m *Manager) GetPasswordCredentials(ctx context.Context, serviceID string) (Credentials, bool, error) {
	row, err := m.store.Services.FindCredential(ctx, serviceID)
	if errors.Is(err, store.ErrNotFound) {
		return Credentials{}, false, nil
	}
	if err != nil {
		return Credentials{}, false, err
	}

	username, err := m.cipher.Decrypt(row.Username)
	if err != nil {
		return Credentials{}, false, fmt.Errorf("service %s username: %w", serviceID, err)
	}
	password, err := m.cipher.Decrypt(row.Password)
	if err != nil {
		return Credentials{}, false, fmt.Errorf("service %s password: %w", serviceID, err)
	}
	return Credentials{Username: username, Password: password}, true, nil
}

// ImportLegacyCredentials moves rows from the account+service keyed table
// into linked services, re-encrypting them from the legacy format, and
// returns how many were moved. Rows that legacy cannot decrypt are logged
// and left in place.
func (m *Manager) ImportLegacyCredentials(ctx context.Context, legacy *security.LegacyCipher) (int, error) {
	rows, err := m.store.Services.LegacyCredentials(ctx)
	if err != nil {
		return 0, err
	}

	imported := 0
	for _, row := range rows {
		creds, err := decryptLegacy(legacy, row)
		if err != nil {
			m.log.Warn().Err(err).
				Str("account_id", row.AccountID).
				Str("service_type", row.Service).
				Msg("legacy credential kept: cannot decrypt")
			continue
		}
		cred, err := m.encrypt(creds)
		if err != nil {
			return imported, err
		}
		serviceID, err := security.RandomString(security.ServiceIDLength)
		if err != nil {
			return imported, err
		}
		if err := m.store.Services.ImportLegacy(ctx, row, serviceID, cred); err != nil {
			return imported, fmt.Errorf("failed to import legacy credential for account %s: %w", row.AccountID, err)
		}
		imported++
	}
	if len(rows) > 0 {
		m.log.Info().Int("imported", imported).Int("kept", len(rows)-imported).Msg("legacy service credentials processed")
	}
	return imported, nil
}

func decryptLegacy(legacy *security.LegacyCipher, row models.LegacyAPIPassword) (Credentials, error) {
	username, err := legacy.Decrypt(row.Username)
	if err != nil {
		return Credentials{}, fmt.Errorf("username: %w", err)
	}
	password, err := legacy.Decrypt(row.Password)
	if err != nil {
		return Credentials{}, fmt.Errorf("password: %w", err)
	}
	return Credentials{Username: username, Password: password}, nil
}

type passwordLinker struct {
	manager     *Manager
	serviceType catalog.ServiceType
	validator   Validator
}

func (l *passwordLinker) Link(ctx context.Context, accountID string, raw json.RawMessage) (string, error) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.Username == "" || req.Password == "" {
		return "", fmt.Errorf("%w: username and password are required", ErrInvalidRequest)
	}

	ok, err := l.validator.Validate(ctx, req.Username, req.Password)
	if err != nil {
		l.manager.log.Warn().Err(err).Str("service_type", string(l.serviceType)).Msg("credential validation failed")
		return "", fmt.Errorf("%w: %v", ErrValidatorFailed, err)
	}
	if !ok {
		return "", ErrCredentialsRejected
	}

	cred, err := l.manager.encrypt(Credentials{Username: req.Username, Password: req.Password})
	if err != nil {
		return "", err
	}
	serviceID, err := security.RandomString(security.ServiceIDLength)
	if err != nil {
		return "", err
	}
	svc := &models.Service{
		ServiceID:   serviceID,
		AccountID:   accountID,
		ServiceType: string(l.serviceType),
	}
	if err := l.manager.store.Services.Link(ctx, svc, &cred); err != nil {
		return "", err
	}
	return serviceID, nil
}
