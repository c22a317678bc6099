package handlers

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/connectedhome/connectedhome/internal/auth/oauth"
	"github.com/rs/zerolog"
)

var redirectPage = template.Must(template.New("redirect").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="0; url={{.}}">
<title>Redirecting</title>
</head>
<body>
<p>Redirecting to <a href="{{.}}">the login page</a>.</p>
<script>window.location.replace({{.}});</script>
</body>
</html>
`))

type finishResponse struct {
	Status      int    `json:"status"`
	RedirectURI string `json:"redirect_uri,omitempty"`
}

// OAuthLoginHandler handles GET /oauth/login, the authorization request.
func OAuthLoginHandler(ctrl *oauth.Controller, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		locale := q.Get("user_locale")
		if locale == "" {
			locale = q.Get("locale")
		}

		loginURL, err := ctrl.Initiate(r.Context(), oauth.InitiateParams{
			ClientID:     q.Get("client_id"),
			RedirectURI:  q.Get("redirect_uri"),
			State:        q.Get("state"),
			Scope:        q.Get("scope"),
			ResponseType: q.Get("response_type"),
			UserLocale:   locale,
		})
		if errors.Is(err, oauth.ErrInvalidRequest) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err != nil {
			serverError(w, r, log, err, "failed to initiate oauth")
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := redirectPage.Execute(w, loginURL); err != nil {
			log.Error().Err(err).Msg("failed to render redirect page")
		}
	}
}

// OAuthFinishHandler handles POST /oauth/finish, called by the login page
// once the user is logged in.
func OAuthFinishHandler(ctrl *oauth.Controller, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.FormValue("session_id")
		state := r.FormValue("state")
		if sessionID == "" || state == "" {
			http.Error(w, "Missing required parameter 'session_id' or 'state'", http.StatusBadRequest)
			return
		}

		redirect, err := ctrl.Finish(r.Context(), sessionID, state)
		switch {
		case errors.Is(err, oauth.ErrStateNotFound):
			writeJSON(w, http.StatusOK, finishResponse{Status: StatusNotFound})
		case errors.Is(err, oauth.ErrUnauthorized):
			writeJSON(w, http.StatusOK, finishResponse{Status: StatusUnauthorized})
		case err != nil:
			serverError(w, r, log, err, "failed to finish oauth")
		default:
			writeJSON(w, http.StatusOK, finishResponse{Status: StatusOK, RedirectURI: redirect})
		}
	}
}

// OAuthTokenHandler handles POST /oauth/token. Parameters may arrive in the
// query string or the form body.
func OAuthTokenHandler(ctrl *oauth.Controller, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": oauth.ErrInvalidRequest.Error()})
			return
		}
		clientID, clientSecret := r.Form.Get("client_id"), r.Form.Get("client_secret")
		if user, pass, ok := r.BasicAuth(); ok && clientID == "" {
			clientID, clientSecret = user, pass
		}

		resp, err := ctrl.Exchange(r.Context(), oauth.TokenRequest{
			GrantType:    r.Form.Get("grant_type"),
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Code:         r.Form.Get("code"),
			RedirectURI:  r.Form.Get("redirect_uri"),
			RefreshToken: r.Form.Get("refresh_token"),
		})
		if err != nil {
			for _, known := range []error{oauth.ErrInvalidGrant, oauth.ErrInvalidRequest, oauth.ErrUnsupportedGrantType} {
				if errors.Is(err, known) {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": known.Error()})
					return
				}
			}
			serverError(w, r, log, err, "token exchange failed")
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		writeJSON(w, http.StatusOK, resp)
	}
}
