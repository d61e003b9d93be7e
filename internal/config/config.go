// Package config loads runtime settings from the environment.
//
// SOURCES, IN ORDER OF PRECEDENCE:
//  1. real environment variables (what a container or systemd unit sets)
//  2. a .env file in the working directory, if one exists (local development)
//  3. the defaults below
//
// A missing .env file is normal in production and is not an error.
//
// VARIABLES:
//
//	PORT            HTTP port                         (8080)
//	DB_PATH         SQLite file, or ":memory:"        (data/taskflow.db)
//	SESSION_SECRET  HMAC key for session tokens       (required, ≥16 chars)
//	SESSION_TTL     plain login lifetime              (24h)
//	REMEMBER_TTL    "remember me" lifetime            (720h)
//	COOKIE_SECURE   mark cookies Secure (HTTPS only)  (false)
//	BCRYPT_COST     bcrypt work factor, 4–31          (12)
//	LOG_LEVEL       debug | info | warn | error       (info)
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the server needs.
type Config struct {
	Port          int
	DBPath        string
	SessionSecret string
	SessionTTL    time.Duration
	RememberTTL   time.Duration
	CookieSecure  bool
	BcryptCost    int
	LogLevel      slog.Level
}

// Defaults.
const (
	DefaultPort        = 8080
	DefaultDBPath      = "data/taskflow.db"
	DefaultSessionTTL  = 24 * time.Hour
	DefaultRememberTTL = 30 * 24 * time.Hour
	DefaultBcryptCost  = 12
	minSecretLength    = 16
)

// Load reads the given env files (".env" when none are named) and then the
// process environment. Every invalid variable is reported, not just the first.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}

	// godotenv.Read parses without touching the process environment, so the
	// real environment always wins and tests don't leak variables.
	fileVals := map[string]string{}
	for _, f := range files {
		vals, err := godotenv.Read(f)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("config: reading %s: %w", f, err)
		}
		for k, v := range vals {
			if _, seen := fileVals[k]; !seen {
				fileVals[k] = v
			}
		}
	}

	l := loader{file: fileVals}
	cfg := Config{
		Port:          l.int("PORT", DefaultPort),
		DBPath:        l.string("DB_PATH", DefaultDBPath),
		SessionSecret: l.string("SESSION_SECRET", ""),
		SessionTTL:    l.duration("SESSION_TTL", DefaultSessionTTL),
		RememberTTL:   l.duration("REMEMBER_TTL", DefaultRememberTTL),
		CookieSecure:  l.bool("COOKIE_SECURE", false),
		BcryptCost:    l.int("BCRYPT_COST", DefaultBcryptCost),
		LogLevel:      l.level("LOG_LEVEL", slog.LevelInfo),
	}

	if len(cfg.SessionSecret) < minSecretLength {
		l.fail("SESSION_SECRET", fmt.Sprintf("must be at least %d characters", minSecretLength))
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		l.fail("PORT", "must be between 1 and 65535")
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		l.fail("BCRYPT_COST", "must be between 4 and 31")
	}
	if cfg.SessionTTL <= 0 {
		l.fail("SESSION_TTL", "must be positive")
	}
	if cfg.RememberTTL <= 0 {
		l.fail("REMEMBER_TTL", "must be positive")
	}

	if err := errors.Join(l.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loader looks variables up and collects parse errors.
type loader struct {
	file map[string]string
	errs []error
}

func (l *loader) lookup(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v), true
	}
	v, ok := l.file[key]
	return strings.TrimSpace(v), ok
}

func (l *loader) fail(key, msg string) {
	l.errs = append(l.errs, fmt.Errorf("config: %s %s", key, msg))
}

func (l *loader) string(key, def string) string {
	if v, ok := l.lookup(key); ok && v != "" {
		return v
	}
	return def
}

func (l *loader) int(key string, def int) int {
	v, ok := l.lookup(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v) // Atoi = ASCII to Integer
	if err != nil {
		l.fail(key, fmt.Sprintf("is not an integer: %q", v))
		return def
	}
	return n
}

func (l *loader) bool(key string, def bool) bool {
	v, ok := l.lookup(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		l.fail(key, fmt.Sprintf("is not a boolean: %q", v))
		return def
	}
	return b
}

func (l *loader) duration(key string, def time.Duration) time.Duration {
	v, ok := l.lookup(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		l.fail(key, fmt.Sprintf("is not a duration like 24h: %q", v))
		return def
	}
	return d
}

func (l *loader) level(key string, def slog.Level) slog.Level {
	v, ok := l.lookup(key)
	if !ok || v == "" {
		return def
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		l.fail(key, fmt.Sprintf("is not one of debug, info, warn, error: %q", v))
		return def
	}
	return lvl
}
