package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/connectedhome/connectedhome/internal/api"
	"github.com/connectedhome/connectedhome/internal/assistant"
	"github.com/connectedhome/connectedhome/internal/auth/account"
	"github.com/connectedhome/connectedhome/internal/auth/oauth"
	"github.com/connectedhome/connectedhome/internal/config"
	"github.com/connectedhome/connectedhome/internal/db"
	"github.com/connectedhome/connectedhome/internal/logging"
	"github.com/connectedhome/connectedhome/internal/security"
	"github.com/connectedhome/connectedhome/internal/services"
	"github.com/connectedhome/connectedhome/internal/services/catalog"
	"github.com/connectedhome/connectedhome/internal/services/honeywell"
	"github.com/connectedhome/connectedhome/internal/store"
	"github.com/connectedhome/connectedhome/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("production", "info")
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}
	logger := logging.New(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.InitDB(cfg.DatabasePath, db.Options{MaxOpenConns: cfg.DBMaxOpenConns})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database")
	}

	client, err := db.EnsureClientCredentials(ctx, database, db.GoogleIdentifier, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load oauth client credentials")
	}

	hasher, err := security.NewPasswordHasher(cfg.PasswordPepper)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create password hasher")
	}
	cipher, err := security.NewCipher(cfg.PasswordPepper)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create credential cipher")
	}

	cat, err := catalog.Load(cfg.ServicesConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load services catalog")
	}

	st := store.New(database)

	manager := services.NewManager(st, cipher, cat, logger)
	manager.RegisterPasswordService(catalog.ServiceTypeHoneywell,
		honeywell.NewClient(cfg.HoneywellLoginURL, cfg.ValidatorTimeout, logger))
	legacy, err := security.NewLegacyCipher(cfg.PasswordPepper)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create legacy credential cipher")
	}
	if _, err := manager.ImportLegacyCredentials(ctx, legacy); err != nil {
		logger.Fatal().Err(err).Msg("failed to import legacy service credentials")
	}

	ctrl := oauth.NewController(st, client, oauth.Config{
		Host:             cfg.Host,
		RedirectPrefixes: cfg.OAuthRedirectPrefixes,
		StateTTL:         cfg.OAuthStateTTL,
		CodeTTL:          cfg.AuthCodeTTL,
	}, logger)
	ctrl.StartCleanupLoop(ctx, cfg.CleanupInterval)

	router := api.NewRouter(api.Deps{
		DB:        database,
		Accounts:  account.NewService(st, hasher, logger),
		OAuth:     ctrl,
		Services:  manager,
		Fulfiller: assistant.NewFulfiller(logger),
		Log:       logger,
		StaticDir: cfg.StaticDir,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
	}()

	logger.Info().
		Str("addr", cfg.ListenAddr).
		Str("host", cfg.Host).
		Str("version", version.Version).
		Str("commit", version.Commit).
		Msg("connectedhome starting")
	logger.Info().Str("url", cfg.Host+"/oauth/login").Msg("authorization endpoint")
	logger.Info().Str("url", cfg.Host+"/oauth/token").Msg("token endpoint")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server failed")
	}
}
