// Package config reads process settings from the environment.
package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config is the immutable process configuration. HOST and PASSWORD_PEPPER
// are required; PASSWORD_PEPPER is removed from the environment once read.
type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"production"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	Host       string `env:"HOST,required,notEmpty"`
	StaticDir  string `env:"STATIC_DIR" envDefault:"static"`

	PasswordPepper string `env:"PASSWORD_PEPPER,required,notEmpty,unset"`

	DatabasePath   string `env:"DATABASE_PATH" envDefault:"connectedhome.db"`
	DBMaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" envDefault:"1"`

	ServicesConfig    string        `env:"SERVICES_CONFIG"`
	ValidatorTimeout  time.Duration `env:"VALIDATOR_TIMEOUT" envDefault:"10s"`
	HoneywellLoginURL string        `env:"HONEYWELL_LOGIN_URL" envDefault:"https://international.mytotalconnectcomfort.com/api/accountApi/login"`

	OAuthStateTTL         time.Duration `env:"OAUTH_STATE_TTL" envDefault:"10m"`
	AuthCodeTTL           time.Duration `env:"AUTH_CODE_TTL" envDefault:"10m"`
	CleanupInterval       time.Duration `env:"CLEANUP_INTERVAL" envDefault:"5m"`
	OAuthRedirectPrefixes []string      `env:"OAUTH_REDIRECT_PREFIXES" envSeparator:"," envDefault:"https://oauth-redirect.googleusercontent.com/r/,https://oauth-redirect-sandbox.googleusercontent.com/r/"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	return cfg, nil
}
