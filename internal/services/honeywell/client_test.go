package honeywell

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, time.Second, zerolog.Nop())
}

func TestLogin_Accepted(t *testing.T) {
	var got map[string]interface{}
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		http.SetCookie(w, &http.Cookie{Name: "SessionCookie", Value: "abc"})
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Content":{"Username":"me@example.com","DisplayName":"Me"},"Errors":null}`))
	})

	user, err := client.Login(context.Background(), "me@example.com", "secret")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "abc", user.SessionToken)
	assert.Equal(t, "Me", user.DisplayName)

	assert.Equal(t, "me@example.com", got["EmailAddress"])
	assert.Equal(t, "secret", got["Password"])
	assert.Equal(t, true, got["IsServiceStatusReturned"])
	assert.Equal(t, true, got["ApiActive"])
	assert.Equal(t, false, got["ApiDown"])
	assert.Equal(t, "", got["RedirectUrl"])
	assert.Equal(t, []interface{}{}, got["Events"])
	assert.Equal(t, []interface{}{}, got["FormErrors"])
}

func TestValidate_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		ok      bool
		wantErr bool
	}{
		{
			name: "no session cookie",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"Content":null,"Errors":["bad"]}`))
			},
		},
		{
			name: "cookie without content",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.SetCookie(w, &http.Cookie{Name: "SessionCookie", Value: "abc"})
				w.Write([]byte(`{"Content":null}`))
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantErr: true,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.SetCookie(w, &http.Cookie{Name: "SessionCookie", Value: "abc"})
				w.Write([]byte(`<html>`))
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newServer(t, tt.handler)
			ok, err := client.Validate(context.Background(), "u", "p")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestValidate_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, 50*time.Millisecond, zerolog.Nop())
	_, err := client.Validate(context.Background(), "u", "p")
	assert.Error(t, err)
}
