// Package config loads the server configuration from the environment.
//
// A .env file in the working directory is read first (godotenv) so local
// development does not need exported variables. Values already present in
// the environment win over the file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is everything main needs to build the server.
type Config struct {
	Port           int
	DBPath         string
	AllowedOrigins []string
	LogLevel       slog.Level

	SessionSecret string
	SessionTTL    time.Duration
	CookieSecure  bool

	// AuthURL is the public base URL of this API; the GitHub callback URL
	// is derived from it.
	AuthURL     string
	FrontendURL string

	GitHubClientID     string
	GitHubClientSecret string
	GitHubAPIURL       string

	SyncSchedule    string
	CleanupSchedule string
	SyncDelay       time.Duration
	SyncCacheWindow time.Duration

	// SyncRatePerMinute and SyncRateBurst bound the manual sync endpoints
	// per user.
	SyncRatePerMinute int
	SyncRateBurst     int

	MetricsUser string
	MetricsPass string
}

// defaultOrigins are always allowed so the Vite dev server and the preview
// build work out of the box.
var defaultOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// Load reads .env (if any) and then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: reading .env: %w", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary key lookup. Tests pass a map
// instead of touching the process environment.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	r := reader{lookup: lookup}

	cfg := Config{
		Port:               r.int("PORT", 3000),
		DBPath:             r.string("DB_PATH", "data/evergreeners.db"),
		AllowedOrigins:     r.origins("ALLOWED_ORIGINS"),
		LogLevel:           r.level("LOG_LEVEL", slog.LevelInfo),
		SessionSecret:      r.string("SESSION_SECRET", ""),
		SessionTTL:         r.duration("SESSION_TTL", 7*24*time.Hour),
		CookieSecure:       r.bool("COOKIE_SECURE", false),
		FrontendURL:        strings.TrimRight(r.string("FRONTEND_URL", "http://localhost:5173"), "/"),
		GitHubClientID:     r.string("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret: r.string("GITHUB_CLIENT_SECRET", ""),
		GitHubAPIURL:       r.string("GITHUB_API_URL", "https://api.github.com"),
		SyncSchedule:       r.string("GITHUB_SYNC_SCHEDULE", "0 */6 * * *"),
		CleanupSchedule:    r.string("CLEANUP_SCHEDULE", "0 2 * * *"),
		SyncDelay:          r.duration("GITHUB_SYNC_DELAY", 500*time.Millisecond),
		SyncCacheWindow:    r.duration("SYNC_CACHE_WINDOW", 60*time.Minute),
		SyncRatePerMinute:  r.int("SYNC_RATE_LIMIT", 6),
		SyncRateBurst:      r.int("SYNC_RATE_BURST", 3),
		MetricsUser:        r.string("METRICS_USER", ""),
		MetricsPass:        r.string("METRICS_PASS", ""),
	}

	// BETTER_AUTH_URL is the name the frontend deployment already uses.
	authURL := r.string("BETTER_AUTH_URL", "")
	if authURL == "" {
		authURL = r.string("AUTH_URL", fmt.Sprintf("http://localhost:%d", cfg.Port))
	}
	cfg.AuthURL = strings.TrimRight(authURL, "/")

	if len(r.errs) > 0 {
		return Config{}, errors.Join(r.errs...)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("config: PORT %d out of range", c.Port))
	}
	if len(c.SessionSecret) < 16 {
		errs = append(errs, errors.New("config: SESSION_SECRET must be set and at least 16 characters"))
	}
	if c.SyncRatePerMinute < 1 || c.SyncRateBurst < 1 {
		errs = append(errs, errors.New("config: SYNC_RATE_LIMIT and SYNC_RATE_BURST must be positive"))
	}
	if c.SyncDelay < 0 || c.SyncCacheWindow < 0 {
		errs = append(errs, errors.New("config: durations must not be negative"))
	}
	return errors.Join(errs...)
}

// GitHubEnabled reports whether OAuth credentials are configured.
func (c Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// GitHubCallbackURL is the redirect URI registered with the OAuth App.
func (c Config) GitHubCallbackURL() string {
	return c.AuthURL + "/api/auth/github/callback"
}

// reader collects parse errors so every bad key is reported at once.
type reader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *reader) raw(key string) (string, bool) {
	v, ok := r.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *reader) string(key, def string) string {
	if v, ok := r.raw(key); ok {
		return v
	}
	return def
}

func (r *reader) int(key string, def int) int {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("config: %s=%q is not an integer", key, v))
		return def
	}
	return n
}

func (r *reader) bool(key string, def bool) bool {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("config: %s=%q is not a boolean", key, v))
		return def
	}
	return b
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("config: %s=%q is not a duration", key, v))
		return def
	}
	return d
}

func (r *reader) level(key string, def slog.Level) slog.Level {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		r.errs = append(r.errs, fmt.Errorf("config: %s=%q is not a log level", key, v))
		return def
	}
	return l
}

func (r *reader) origins(key string) []string {
	out := append([]string(nil), defaultOrigins...)
	v, ok := r.raw(key)
	if !ok {
		return out
	}
	for _, o := range strings.Split(v, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}
