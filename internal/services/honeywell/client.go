// Package honeywell talks to the Honeywell Total Connect Comfort account API.
package honeywell

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/connectedhome/connectedhome/internal/util"
	"github.com/rs/zerolog"
)

// DefaultLoginURL is the Total Connect Comfort login endpoint.
const DefaultLoginURL = "https://international.mytotalconnectcomfort.com/api/accountApi/login"

const sessionCookieName = "SessionCookie"

// User is a successfully logged-in Honeywell account.
type User struct {
	// SessionToken is the value of the session cookie.
	SessionToken string
	Email        string
	DisplayName  string
}

type loginRequest struct {
	EmailAddress            string   `json:"EmailAddress"`
	Password                string   `json:"Password"`
	IsServiceStatusReturned bool     `json:"IsServiceStatusReturned"`
	ApiActive               bool     `json:"ApiActive"`
	ApiDown                 bool     `json:"ApiDown"`
	RedirectUrl             string   `json:"RedirectUrl"`
	Events                  []string `json:"Events"`
	FormErrors              []string `json:"FormErrors"`
}

type loginResponse struct {
	Content *struct {
		Username    string `json:"Username"`
		DisplayName string `json:"DisplayName"`
	} `json:"Content"`
	Errors []string `json:"Errors"`
}

// Client logs in to Honeywell.
type Client struct {
	httpClient *http.Client
	loginURL   string
	log        zerolog.Logger
}

// NewClient creates a client. An empty loginURL uses DefaultLoginURL.
func NewClient(loginURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if loginURL == "" {
		loginURL = DefaultLoginURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		loginURL:   loginURL,
		log:        log.With().Str("component", "honeywell").Logger(),
	}
}

// Login attempts a login. It returns (nil, nil) when Honeywell rejects the
// credentials and an error only when the exchange itself failed.
func (c *Client) Login(ctx context.Context, username, password string) (*User, error) {
	payload, err := json.Marshal(loginRequest{
		EmailAddress:            username,
		Password:                password,
		IsServiceStatusReturned: true,
		ApiActive:               true,
		ApiDown:                 false,
		RedirectUrl:             "",
		Events:                  []string{},
		FormErrors:              []string{},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.loginURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("honeywell login request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read honeywell response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		c.log.Warn().Int("status", resp.StatusCode).Str("body", util.LogBody(body)).Msg("honeywell login unavailable")
		return nil, fmt.Errorf("honeywell login returned status %d", resp.StatusCode)
	}

	var session string
	for _, cookie := range resp.Cookies() {
		if cookie.Name == sessionCookieName {
			session = cookie.Value
		}
	}
	if session == "" {
		c.log.Debug().Int("status", resp.StatusCode).Msg("honeywell login rejected")
		return nil, nil
	}

	var decoded loginResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		c.log.Warn().Str("body", util.LogBody(body)).Msg("honeywell login returned malformed body")
		return nil, fmt.Errorf("failed to decode honeywell response: %w", err)
	}
	if decoded.Content == nil {
		return nil, nil
	}

	return &User{
		SessionToken: session,
		Email:        decoded.Content.Username,
		DisplayName:  decoded.Content.DisplayName,
	}, nil
}

// Validate reports whether Honeywell accepts the credentials.
func (c *Client) Validate(ctx context.Context, username, password string) (bool, error) {
	user, err := c.Login(ctx, username, password)
	if err != nil {
		return false, err
	}
	return user != nil, nil
}
