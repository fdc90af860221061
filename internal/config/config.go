// Package config loads both binaries' settings from the environment. A .env
// file in the working directory is read first when present.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Database struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"postgres"`
	Password string `env:"PASSWORD"`
	Name     string `env:"NAME" envDefault:"forum"`
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`
}

// DSN is the connection string for the postgres driver.
func (d Database) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

// Web configures the web tier.
type Web struct {
	Port         string        `env:"PORT" envDefault:"8080"`
	ForumAPIURL  string        `env:"FORUM_API_URL" envDefault:"http://localhost:8081"`
	JWTSecret    string        `env:"JWT_SECRET,required,notEmpty"`
	RedisURL     string        `env:"REDIS_URL"`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info"`
	CORSOrigins  []string      `env:"CORS_ORIGINS,notEmpty" envSeparator:"," envDefault:"http://localhost:5173"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"72h"`
	APITimeout   time.Duration `env:"API_TIMEOUT" envDefault:"10s"`
	APIRateLimit float64       `env:"API_RPS" envDefault:"50"`
	APIBurst     int           `env:"API_BURST" envDefault:"20"`
	RoleWait     time.Duration `env:"ROLE_WAIT" envDefault:"2s"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"false"`
	Database     Database      `envPrefix:"DB_"`
}

// DevAPI configures the local stand-in forum API.
type DevAPI struct {
	Port      string        `env:"PORT" envDefault:"8081"`
	JWTSecret string        `env:"JWT_SECRET,required,notEmpty"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"72h"`
	LogLevel  string        `env:"LOG_LEVEL" envDefault:"info"`
	Database  Database      `envPrefix:"DB_"`

	// AdminEmails are given the admin role when they register.
	AdminEmails        []string `env:"ADMIN_EMAILS" envSeparator:","`
	GoogleTokenInfoURL string   `env:"GOOGLE_TOKENINFO_URL" envDefault:"https://oauth2.googleapis.com/tokeninfo"`
}

func LoadWeb() (*Web, error) {
	var cfg Web
	if err := load(&cfg); err != nil {
		return nil, err
	}
	cfg.CORSOrigins = compact(cfg.CORSOrigins)
	if len(cfg.CORSOrigins) == 0 {
		return nil, errors.New("parse env: CORS_ORIGINS lists no origins")
	}
	return &cfg, nil
}

func LoadDevAPI() (*DevAPI, error) {
	var cfg DevAPI
	if err := load(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// compact trims list entries and drops the empty ones.
func compact(list []string) []string {
	out := list[:0]
	for _, v := range list {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func load(target any) error {
	// a missing .env is fine, the environment may already be set
	_ = godotenv.Load()
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
