package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/connectedhome/connectedhome/internal/auth/account"
	"github.com/rs/zerolog"
)

type loginResponse struct {
	Status        int    `json:"status"`
	StatusMessage string `json:"status_message,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
}

type sessionUser struct {
	UserID string `json:"user_id"`
}

type sessionResponse struct {
	Status int          `json:"status"`
	User   *sessionUser `json:"user,omitempty"`
}

// decodedParam reads a base64 encoded parameter from the query string or
// form body under name or its alias.
func decodedParam(r *http.Request, name, alias string) (string, error) {
	raw := r.FormValue(name)
	if raw == "" {
		raw = r.FormValue(alias)
	}
	if raw == "" {
		return "", fmt.Errorf("missing required parameter '%s'", name)
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("parameter '%s' is not valid base64", name)
	}
	if !utf8.Valid(decoded) {
		return "", fmt.Errorf("parameter '%s' is not valid UTF-8", name)
	}
	return string(decoded), nil
}

func emailAndPassword(r *http.Request) (string, string, error) {
	email, err := decodedParam(r, "email", "email_b64")
	if err != nil {
		return "", "", err
	}
	password, err := decodedParam(r, "password", "password_b64")
	if err != nil {
		return "", "", err
	}
	return email, password, nil
}

// LoginHandler handles POST /auth/login.
func LoginHandler(accounts *account.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, password, err := emailAndPassword(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		sessionID, err := accounts.Login(r.Context(), email, password)
		if errors.Is(err, account.ErrInvalidCredentials) {
			writeJSON(w, http.StatusOK, loginResponse{Status: StatusUnauthorized, StatusMessage: err.Error()})
			return
		}
		if err != nil {
			serverError(w, r, log, err, "login failed")
			return
		}
		writeJSON(w, http.StatusOK, loginResponse{Status: StatusOK, SessionID: sessionID})
	}
}

// RegisterHandler handles POST /auth/register.
func RegisterHandler(accounts *account.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, password, err := emailAndPassword(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		sessionID, err := accounts.Register(r.Context(), email, password)
		if errors.Is(err, account.ErrEmailTaken) {
			writeJSON(w, http.StatusOK, loginResponse{Status: StatusConflict, StatusMessage: "Account already exists"})
			return
		}
		if err != nil {
			serverError(w, r, log, err, "registration failed")
			return
		}
		writeJSON(w, http.StatusOK, loginResponse{Status: StatusOK, SessionID: sessionID})
	}
}

// SessionHandler handles POST /auth/session.
func SessionHandler(accounts *account.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.FormValue("session_id")
		if sessionID == "" {
			http.Error(w, "Missing required parameter 'session_id'", http.StatusBadRequest)
			return
		}

		acc, err := accounts.Session(r.Context(), sessionID)
		if errors.Is(err, account.ErrInvalidSession) {
			writeJSON(w, http.StatusOK, sessionResponse{Status: StatusUnauthorized})
			return
		}
		if err != nil {
			serverError(w, r, log, err, "session lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{Status: StatusOK, User: &sessionUser{UserID: acc.AccountID}})
	}
}
