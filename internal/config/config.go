// Package config reads the runtime configuration from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/gofrs/uuid/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Environment variables.
const (
	EnvDirectusURL    = "DIRECTUS_URL"
	EnvAdminRoleID    = "DIRECTUS_ADMIN_ROLE_ID"
	EnvStoreDir       = "ARCHIV_STORE_DIR"
	EnvDSN            = "ARCHIV_DSN"
	EnvAddr           = "ARCHIV_ADDR"
	EnvAllowedOrigins = "ARCHIV_ALLOWED_ORIGINS"
	EnvAppEnv         = "APP_ENV"
)

// DefaultAddr is the gateway listen address.
const DefaultAddr = "127.0.0.1:8080"

// ErrNoBackend is returned by Validate when no backend URL is configured.
var ErrNoBackend = errors.New(EnvDirectusURL + " is required")

// Config is the resolved configuration shared by both commands.
type Config struct {
	DirectusURL    string
	AdminRoleID    string
	StoreDir       string
	DSN            string
	Addr           string
	AllowedOrigins []string
	Production     bool
}

// Load reads .env files (default ".env", skipped in production; missing files are ignored)
// and then the environment. Variables already set in the environment win over the files.
func Load(envFiles ...string) Config {
	production := os.Getenv(EnvAppEnv) == "production"
	if !production {
		if len(envFiles) == 0 {
			envFiles = []string{".env"}
		}
		for _, f := range envFiles {
			_ = godotenv.Load(f)
		}
	}

	c := Config{
		DirectusURL: strings.TrimSpace(os.Getenv(EnvDirectusURL)),
		AdminRoleID: strings.TrimSpace(os.Getenv(EnvAdminRoleID)),
		StoreDir:    os.Getenv(EnvStoreDir),
		DSN:         os.Getenv(EnvDSN),
		Addr:        os.Getenv(EnvAddr),
		Production:  production,
	}
	if c.StoreDir == "" {
		c.StoreDir = DefaultStoreDir()
	}
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	for _, o := range strings.Split(os.Getenv(EnvAllowedOrigins), ",") {
		if o = strings.TrimSpace(o); o != "" {
			c.AllowedOrigins = append(c.AllowedOrigins, o)
		}
	}
	return c
}

// DefaultStoreDir is the per-user directory of the file credential store.
func DefaultStoreDir() string {
	return filepath.Join(xdg.ConfigHome, "archiv-admin")
}

// Validate checks the backend URL. An admin role id that is not a UUID only logs a warning,
// since nobody will be recognized as administrator with it.
func (c Config) Validate(log *zap.Logger) error {
	if c.DirectusURL == "" {
		return ErrNoBackend
	}
	u, err := url.Parse(c.DirectusURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s: invalid url %q", EnvDirectusURL, c.DirectusURL)
	}
	switch {
	case c.AdminRoleID == "":
		log.Warn("no administrator role configured", zap.String("env", EnvAdminRoleID))
	default:
		if _, err := uuid.FromString(c.AdminRoleID); err != nil {
			log.Warn("administrator role is not a uuid", zap.String("env", EnvAdminRoleID), zap.Error(err))
		}
	}
	return nil
}
