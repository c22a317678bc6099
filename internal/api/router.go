// Package api assembles the HTTP surface.
package api

import (
	"net/http"
	"os"

	"github.com/connectedhome/connectedhome/internal/api/handlers"
	"github.com/connectedhome/connectedhome/internal/api/middleware"
	"github.com/connectedhome/connectedhome/internal/assistant"
	"github.com/connectedhome/connectedhome/internal/auth/account"
	"github.com/connectedhome/connectedhome/internal/auth/oauth"
	"github.com/connectedhome/connectedhome/internal/logging"
	"github.com/connectedhome/connectedhome/internal/services"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Deps are the components the routes are served by.
type Deps struct {
	DB        *gorm.DB
	Accounts  *account.Service
	OAuth     *oauth.Controller
	Services  *services.Manager
	Fulfiller *assistant.Fulfiller
	Log       zerolog.Logger
	// StaticDir is served under /static when it exists.
	StaticDir string
}

// NewRouter builds the chi router with every route.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(logging.RequestLogger(d.Log))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", handlers.HealthHandler(d.DB))
	r.Get("/api/version", handlers.VersionHandler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", handlers.LoginHandler(d.Accounts, d.Log))
		r.Post("/register", handlers.RegisterHandler(d.Accounts, d.Log))
		r.Post("/session", handlers.SessionHandler(d.Accounts, d.Log))
	})

	r.Route("/oauth", func(r chi.Router) {
		r.Get("/login", handlers.OAuthLoginHandler(d.OAuth, d.Log))
		r.Post("/finish", handlers.OAuthFinishHandler(d.OAuth, d.Log))
		r.Post("/token", handlers.OAuthTokenHandler(d.OAuth, d.Log))
	})

	r.Route("/services", func(r chi.Router) {
		r.Post("/add", handlers.ServicesAddHandler(d.Services, d.Log))
		r.Post("/get", handlers.ServicesGetHandler(d.Services, d.Log))
	})

	r.With(middleware.BearerAuth(d.OAuth, d.Log)).
		Post("/assistant/webhook", handlers.AssistantWebhookHandler(d.Fulfiller))

	if d.StaticDir != "" {
		if info, err := os.Stat(d.StaticDir); err == nil && info.IsDir() {
			r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(d.StaticDir))))
		}
	}

	return r
}
