// Package oauth implements the authorization-server side of account
// linking: initiate, consent, code exchange, refresh and bearer checks.
package oauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/connectedhome/connectedhome/internal/db/models"
	"github.com/connectedhome/connectedhome/internal/security"
	"github.com/connectedhome/connectedhome/internal/store"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/rs/zerolog"
)

// AccessTokenTTL is the lifetime of an issued access token.
const AccessTokenTTL = time.Hour

// DefaultRedirectPrefixes are the redirect URI prefixes the assistant
// platform uses.
var DefaultRedirectPrefixes = []string{
	"https://oauth-redirect.googleusercontent.com/r/",
	"https://oauth-redirect-sandbox.googleusercontent.com/r/",
}

// Token endpoint errors carry their wire name as the message.
var (
	ErrInvalidRequest       = errors.New("invalid_request")
	ErrInvalidGrant         = errors.New("invalid_grant")
	ErrUnsupportedGrantType = errors.New("unsupported_grant_type")
)

var (
	// ErrStateNotFound means the internal state is unknown, used or expired.
	ErrStateNotFound = errors.New("oauth state not found")
	// ErrUnauthorized means a session or bearer token resolved to nobody.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTokenExpired means the bearer token exists but has expired.
	ErrTokenExpired = fmt.Errorf("%w: access token expired", ErrUnauthorized)
)

// Grant types accepted by Exchange.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
)

// Config carries the controller settings.
type Config struct {
	// Host is the public base URL, without a trailing slash.
	Host             string
	RedirectPrefixes []string
	StateTTL         time.Duration
	CodeTTL          time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Controller drives the authorization flow.
type Controller struct {
	store  *store.Store
	client models.OAuthClientCredential
	cfg    Config
	log    zerolog.Logger
}

// NewController creates a controller that accepts client as the only
// OAuth client.
func NewController(st *store.Store, client models.OAuthClientCredential, cfg Config, log zerolog.Logger) *Controller {
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if len(cfg.RedirectPrefixes) == 0 {
		cfg.RedirectPrefixes = DefaultRedirectPrefixes
	}
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = 10 * time.Minute
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 10 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Controller{
		store:  st,
		client: client,
		cfg:    cfg,
		log:    log.With().Str("component", "oauth").Logger(),
	}
}

// LoginRedirectURI is the redirect_uri the consumer must present at token
// exchange.
func (c *Controller) LoginRedirectURI() string {
	return c.cfg.Host + "/oauth/login"
}

// InitiateParams are the query parameters of the authorization request.
type InitiateParams struct {
	ClientID     string `json:"client_id"`
	RedirectURI  string `json:"redirect_uri"`
	State        string `json:"state"`
	Scope        string `json:"scope"`
	ResponseType string `json:"response_type"`
	UserLocale   string `json:"user_locale"`
}

func (c *Controller) validateInitiate(p InitiateParams) error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ClientID, validation.Required, validation.In(c.client.ClientID).Error("unknown client")),
		validation.Field(&p.RedirectURI, validation.Required, validation.By(c.allowedRedirect)),
		validation.Field(&p.State, validation.Required),
		validation.Field(&p.Scope, validation.Required),
		validation.Field(&p.ResponseType, validation.Required, validation.In("code").Error("must be code")),
		validation.Field(&p.UserLocale, validation.Required),
	)
}

func (c *Controller) allowedRedirect(value interface{}) error {
	uri, _ := value.(string)
	for _, prefix := range c.cfg.RedirectPrefixes {
		if strings.HasPrefix(uri, prefix) {
			return nil
		}
	}
	return errors.New("not an allowed redirect")
}

// Initiate validates an authorization request, stores a fresh internal
// state and returns the login page URL to send the user to.
func (c *Controller) Initiate(ctx context.Context, p InitiateParams) (string, error) {
	if err := c.validateInitiate(p); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	internalState, err := security.RandomString(security.InternalStateLength)
	if err != nil {
		return "", err
	}
	state := &models.OAuthState{
		InternalState:    internalState,
		OAuthState:       p.State,
		OAuthRedirectURI: p.RedirectURI,
		ExpiresAt:        c.cfg.Now().Add(c.cfg.StateTTL).Unix(),
	}
	if err := c.store.OAuthStates.Create(ctx, state); err != nil {
		return "", err
	}

	return c.cfg.Host + "/static/login/login.html?is_oauth=true&state=" + internalState, nil
}

// Finish completes consent for the logged-in session. It consumes the
// internal state, replaces the account's outstanding code and returns the
// consumer redirect carrying code and the consumer's state.
//
// An unknown session leaves the state in place so the user can log in and
// retry.
func (c *Controller) Finish(ctx context.Context, sessionID, internalState string) (string, error) {
	now := c.cfg.Now()

	if _, err := c.store.OAuthStates.Peek(ctx, internalState, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrStateNotFound
		}
		return "", err
	}

	acc, err := c.store.Accounts.FindBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrUnauthorized
		}
		return "", err
	}

	code, err := security.RandomString(security.AuthorizationCodeLength)
	if err != nil {
		return "", err
	}

	var state models.OAuthState
	err = c.store.Transaction(ctx, func(tx *store.Store) error {
		var err error
		state, err = tx.OAuthStates.Consume(ctx, internalState, now)
		if err != nil {
			return err
		}
		return tx.AuthorizationCodes.Replace(ctx, &models.AuthorizationCode{
			AuthorizationCode: code,
			AccountID:         acc.AccountID,
			ExpiresAt:         now.Add(c.cfg.CodeTTL).Unix(),
		})
	})
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrStateNotFound
	}
	if err != nil {
		return "", err
	}

	redirect, err := url.Parse(state.OAuthRedirectURI)
	if err != nil {
		return "", fmt.Errorf("stored redirect uri is invalid: %w", err)
	}
	q := redirect.Query()
	q.Set("code", code)
	q.Set("state", state.OAuthState)
	redirect.RawQuery = q.Encode()
	return redirect.String(), nil
}

// TokenRequest holds the token endpoint parameters.
type TokenRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	Code         string
	RedirectURI  string
	RefreshToken string
}

// TokenResponse is the token endpoint reply. RefreshToken is only set when
// a new grant is created.
type TokenResponse struct {
	TokenType    string `json:"token_type"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Exchange runs the token endpoint for both supported grant types.
func (c *Controller) Exchange(ctx context.Context, req TokenRequest) (TokenResponse, error) {
	switch req.GrantType {
	case GrantTypeAuthorizationCode:
		return c.exchangeCode(ctx, req)
	case GrantTypeRefreshToken:
		return c.refresh(ctx, req)
	default:
		return TokenResponse{}, ErrUnsupportedGrantType
	}
}

func (c *Controller) authenticateClient(req TokenRequest) bool {
	idOK := subtle.ConstantTimeCompare([]byte(req.ClientID), []byte(c.client.ClientID)) == 1
	secretOK := subtle.ConstantTimeCompare([]byte(req.ClientSecret), []byte(c.client.ClientSecret)) == 1
	return idOK && secretOK
}

func (c *Controller) exchangeCode(ctx context.Context, req TokenRequest) (TokenResponse, error) {
	if req.Code == "" {
		return TokenResponse{}, ErrInvalidRequest
	}
	if !c.authenticateClient(req) {
		return TokenResponse{}, ErrInvalidGrant
	}
	if req.RedirectURI != c.LoginRedirectURI() {
		return TokenResponse{}, ErrInvalidGrant
	}

	accessToken, err := security.RandomString(security.AccessTokenLength)
	if err != nil {
		return TokenResponse{}, err
	}
	refreshToken, err := security.RandomString(security.RefreshTokenLength)
	if err != nil {
		return TokenResponse{}, err
	}

	now := c.cfg.Now()
	err = c.store.Transaction(ctx, func(tx *store.Store) error {
		code, err := tx.AuthorizationCodes.Consume(ctx, req.Code, now)
		if err != nil {
			return err
		}
		return tx.Grants.Create(ctx, &models.Grant{
			RefreshToken: refreshToken,
			AccessToken:  accessToken,
			AccountID:    code.AccountID,
			Expiry:       now.Add(AccessTokenTTL).Unix(),
		})
	})
	if errors.Is(err, store.ErrNotFound) {
		return TokenResponse{}, ErrInvalidGrant
	}
	if err != nil {
		return TokenResponse{}, err
	}

	return TokenResponse{
		TokenType:    "Bearer",
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(AccessTokenTTL / time.Second),
	}, nil
}

func (c *Controller) refresh(ctx context.Context, req TokenRequest) (TokenResponse, error) {
	if req.RefreshToken == "" {
		return TokenResponse{}, ErrInvalidRequest
	}
	if !c.authenticateClient(req) {
		return TokenResponse{}, ErrInvalidGrant
	}

	if _, err := c.store.Grants.FindByRefreshToken(ctx, req.RefreshToken); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return TokenResponse{}, ErrInvalidGrant
		}
		return TokenResponse{}, err
	}

	accessToken, err := security.RandomString(security.AccessTokenLength)
	if err != nil {
		return TokenResponse{}, err
	}
	expiry := c.cfg.Now().Add(AccessTokenTTL).Unix()
	if err := c.store.Grants.Rotate(ctx, req.RefreshToken, accessToken, expiry); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return TokenResponse{}, ErrInvalidGrant
		}
		return TokenResponse{}, err
	}

	return TokenResponse{
		TokenType:   "Bearer",
		AccessToken: accessToken,
		ExpiresIn:   int64(AccessTokenTTL / time.Second),
	}, nil
}

// Authenticate resolves a bearer access token to its account id.
func (c *Controller) Authenticate(ctx context.Context, accessToken string) (string, error) {
	grant, err := c.store.Grants.FindByAccessToken(ctx, accessToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrUnauthorized
		}
		return "", err
	}
	if c.cfg.Now().Unix() >= grant.Expiry {
		return "", ErrTokenExpired
	}
	return grant.AccountID, nil
}

// Cleanup deletes expired states and authorization codes.
func (c *Controller) Cleanup(ctx context.Context) error {
	now := c.cfg.Now()
	states, err := c.store.OAuthStates.DeleteExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to delete expired states: %w", err)
	}
	codes, err := c.store.AuthorizationCodes.DeleteExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to delete expired codes: %w", err)
	}
	if states > 0 || codes > 0 {
		c.log.Debug().Int64("states", states).Int64("codes", codes).Msg("expired oauth rows removed")
	}
	return nil
}

// StartCleanupLoop runs Cleanup every interval until ctx is done.
func (c *Controller) StartCleanupLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.Cleanup(ctx); err != nil {
					c.log.Error().Err(err).Msg("oauth cleanup failed")
				}
			}
		}
	}()
}
