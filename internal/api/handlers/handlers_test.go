package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/connectedhome/connectedhome/internal/assistant"
	"github.com/connectedhome/connectedhome/internal/auth/account"
	"github.com/connectedhome/connectedhome/internal/auth/oauth"
	"github.com/connectedhome/connectedhome/internal/db"
	"github.com/connectedhome/connectedhome/internal/db/models"
	"github.com/connectedhome/connectedhome/internal/security"
	"github.com/connectedhome/connectedhome/internal/services"
	"github.com/connectedhome/connectedhome/internal/services/catalog"
	"github.com/connectedhome/connectedhome/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHost = "https://home.example.com"

type stubValidator struct {
	ok  bool
	err error
}

func (v *stubValidator) Validate(ctx context.Context, username, password string) (bool, error) {
	return v.ok, v.err
}

type env struct {
	accounts  *account.Service
	ctrl      *oauth.Controller
	manager   *services.Manager
	validator *stubValidator
	client    models.OAuthClientCredential
	fulfiller *assistant.Fulfiller
}

func newEnv(t *testing.T) *env {
	t.Helper()
	database, err := db.InitDB("file:"+uuid.NewString()+"?mode=memory&cache=shared", db.Options{MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	client, err := db.EnsureClientCredentials(context.Background(), database, db.GoogleIdentifier, zerolog.Nop())
	require.NoError(t, err)
	hasher, err := security.NewPasswordHasher("pepper")
	require.NoError(t, err)
	cipher, err := security.NewCipher("pepper")
	require.NoError(t, err)
	cat, err := catalog.Load("")
	require.NoError(t, err)

	st := store.New(database)
	v := &stubValidator{ok: true}
	manager := services.NewManager(st, cipher, cat, zerolog.Nop())
	manager.RegisterPasswordService(catalog.ServiceTypeHoneywell, v)

	return &env{
		accounts:  account.NewService(st, hasher, zerolog.Nop()),
		ctrl:      oauth.NewController(st, client, oauth.Config{Host: testHost}, zerolog.Nop()),
		manager:   manager,
		validator: v,
		client:    client,
		fulfiller: assistant.NewFulfiller(zerolog.Nop()),
	}
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func postForm(h http.HandlerFunc, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func postJSON(h http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (e *env) register(t *testing.T, email, password string) string {
	t.Helper()
	rec := postForm(RegisterHandler(e.accounts, zerolog.Nop()), url.Values{"email": {b64(email)}, "password": {b64(password)}})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Equal(t, float64(StatusOK), body["status"])
	return body["session_id"].(string)
}

func TestAuthHandlers(t *testing.T) {
	e := newEnv(t)
	login := LoginHandler(e.accounts, zerolog.Nop())
	register := RegisterHandler(e.accounts, zerolog.Nop())
	session := SessionHandler(e.accounts, zerolog.Nop())

	first := e.register(t, "user@example.com", "pw")

	rec := postForm(register, url.Values{"email": {b64("user@example.com")}, "password": {b64("other")}})
	assert.Equal(t, float64(StatusConflict), decode(t, rec)["status"])

	rec = postForm(login, url.Values{"email_b64": {b64("user@example.com")}, "password_b64": {b64("pw")}})
	body := decode(t, rec)
	assert.Equal(t, float64(StatusOK), body["status"])
	second := body["session_id"].(string)
	assert.Len(t, second, security.SessionIDLength)
	assert.NotEqual(t, first, second)

	rec = postForm(login, url.Values{"email": {b64("user@example.com")}, "password": {b64("wrong")}})
	body = decode(t, rec)
	assert.Equal(t, float64(StatusUnauthorized), body["status"])
	assert.Equal(t, "E-mail address and password combination is invalid", body["status_message"])
	assert.NotContains(t, body, "session_id")

	rec = postForm(login, url.Values{"email": {b64("nobody@example.com")}, "password": {b64("pw")}})
	assert.Equal(t, body, decode(t, rec))

	rec = postForm(session, url.Values{"session_id": {second}})
	body = decode(t, rec)
	assert.Equal(t, float64(StatusOK), body["status"])
	assert.NotEmpty(t, body["user"].(map[string]interface{})["user_id"])

	rec = postForm(session, url.Values{"session_id": {first}})
	assert.Equal(t, float64(StatusUnauthorized), decode(t, rec)["status"])
}

func TestAuthHandlers_BadInput(t *testing.T) {
	e := newEnv(t)
	login := LoginHandler(e.accounts, zerolog.Nop())

	for name, form := range map[string]url.Values{
		"missing email":    {"password": {b64("pw")}},
		"missing password": {"email": {b64("a@b.c")}},
		"not base64":       {"email": {"%%%"}, "password": {b64("pw")}},
	} {
		t.Run(name, func(t *testing.T) {
			rec := postForm(login, form)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	rec := postForm(SessionHandler(e.accounts, zerolog.Nop()), url.Values{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOAuthLoginHandler(t *testing.T) {
	e := newEnv(t)
	h := OAuthLoginHandler(e.ctrl, zerolog.Nop())

	q := url.Values{
		"client_id":     {e.client.ClientID},
		"redirect_uri":  {"https://oauth-redirect.googleusercontent.com/r/project"},
		"state":         {"abc"},
		"scope":         {"home"},
		"response_type": {"code"},
		"user_locale":   {"en-US"},
	}
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/oauth/login?"+q.Encode(), nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), testHost+"/static/login/login.html?is_oauth=true&amp;state=")

	q.Set("response_type", "token")
	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/oauth/login?"+q.Encode(), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "response_type")
}

func TestOAuthFinishHandler(t *testing.T) {
	e := newEnv(t)
	h := OAuthFinishHandler(e.ctrl, zerolog.Nop())
	sessionID := e.register(t, "user@example.com", "pw")

	loginURL, err := e.ctrl.Initiate(context.Background(), oauth.InitiateParams{
		ClientID: e.client.ClientID, RedirectURI: "https://oauth-redirect.googleusercontent.com/r/p",
		State: "s t", Scope: "x", ResponseType: "code", UserLocale: "en",
	})
	require.NoError(t, err)
	u, _ := url.Parse(loginURL)
	state := u.Query().Get("state")

	rec := postForm(h, url.Values{"session_id": {"unknown"}, "state": {state}})
	assert.Equal(t, float64(StatusUnauthorized), decode(t, rec)["status"])

	rec = postForm(h, url.Values{"session_id": {sessionID}, "state": {state}})
	body := decode(t, rec)
	assert.Equal(t, float64(StatusOK), body["status"])
	assert.Contains(t, body["redirect_uri"], "state=s+t")

	rec = postForm(h, url.Values{"session_id": {sessionID}, "state": {state}})
	assert.Equal(t, float64(StatusNotFound), decode(t, rec)["status"])

	rec = postForm(h, url.Values{"session_id": {sessionID}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOAuthTokenHandler_Errors(t *testing.T) {
	e := newEnv(t)
	h := OAuthTokenHandler(e.ctrl, zerolog.Nop())

	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{"unsupported grant", url.Values{"grant_type": {"password"}}, "unsupported_grant_type"},
		{"bad client", url.Values{"grant_type": {"authorization_code"}, "code": {"x"}, "client_id": {"x"}, "client_secret": {"y"}}, "invalid_grant"},
		{"unknown code", url.Values{
			"grant_type": {"authorization_code"}, "code": {"x"},
			"client_id": {e.client.ClientID}, "client_secret": {e.client.ClientSecret},
			"redirect_uri": {testHost + "/oauth/login"},
		}, "invalid_grant"},
		{"missing refresh token", url.Values{"grant_type": {"refresh_token"}}, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postForm(h, tt.form)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"`+tt.want+`"}`, rec.Body.String())
		})
	}

	// Query-string parameters are accepted too.
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/oauth/token?grant_type=implicit", nil))
	assert.JSONEq(t, `{"error":"unsupported_grant_type"}`, rec.Body.String())
}

func TestServicesHandlers(t *testing.T) {
	e := newEnv(t)
	add := ServicesAddHandler(e.manager, zerolog.Nop())
	get := ServicesGetHandler(e.manager, zerolog.Nop())
	sessionID := e.register(t, "user@example.com", "pw")

	service := map[string]string{"service_type": "HONEYWELL", "username": "u", "password": "p"}

	rec := postJSON(add, map[string]interface{}{"session_id": "unknown", "service": service})
	assert.Equal(t, float64(StatusUnauthorized), decode(t, rec)["status"])

	e.validator.err = assert.AnError
	rec = postJSON(add, map[string]interface{}{"session_id": sessionID, "service": service})
	assert.Equal(t, float64(StatusValidatorError), decode(t, rec)["status"])

	e.validator.err, e.validator.ok = nil, false
	rec = postJSON(add, map[string]interface{}{"session_id": sessionID, "service": service})
	assert.Equal(t, float64(StatusCredentialRejected), decode(t, rec)["status"])

	rec = postJSON(add, map[string]interface{}{"session_id": sessionID, "service": map[string]string{"service_type": "NEST"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	e.validator.ok = true
	rec = postJSON(add, map[string]interface{}{"session_id": sessionID, "service": service})
	body := decode(t, rec)
	assert.Equal(t, float64(StatusOK), body["status"])
	serviceID := body["service_id"].(string)

	rec = postJSON(get, map[string]interface{}{"session_id": sessionID, "only_owned": true})
	body = decode(t, rec)
	assert.Equal(t, float64(StatusOK), body["status"])
	owned := body["services"].([]interface{})
	require.Len(t, owned, 1)
	assert.Equal(t, serviceID, owned[0].(map[string]interface{})["service_id"])

	rec = postJSON(get, map[string]interface{}{"session_id": "unknown"})
	assert.Equal(t, float64(StatusUnauthorized), decode(t, rec)["status"])

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	rec = httptest.NewRecorder()
	get(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAssistantWebhookHandler(t *testing.T) {
	e := newEnv(t)
	h := AssistantWebhookHandler(e.fulfiller)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"requestId":"r","inputs":[{"intent":"action.devices.SYNC"}]}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "r", decode(t, rec)["requestId"])

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`nope`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVersionHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	VersionHandler()(rec, httptest.NewRequest(http.MethodGet, "/api/version", nil))
	body := decode(t, rec)
	assert.Equal(t, "dev", body["version"])
}
