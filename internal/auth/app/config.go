package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/authflow/pkg/httpx"
)

type Config struct {
	Issuer string // Issuer claim for tokens and the TOTP issuer label (default: authflow)

	DatabaseDriver string // sqlite or postgres (default: sqlite)
	DatabaseFile   string // Path to the SQLite database file (default: ./auth.db)
	DatabaseDSN    string // Postgres connection string, required for the postgres driver

	MFABackend string // Where MFA challenges live: sql or redis (default: sql)
	RedisURL   string // redis:// URL, required for the redis backend

	SigningSecret     string // HS256 secret, at least 32 bytes
	SigningKeyFile    string // PKCS8 PEM file for EdDSA or ES256
	SigningKeyID      string // kid stamped on tokens (default: derived from the key)
	SigningAlgorithm  string // Optional override, inferred from the key when empty
	PreviousKeyFile   string // Retired PEM key that is still trusted for verification
	PreviousKeyID     string
	PreviousAlgorithm string

	PepperFile string // Path to the password pepper, created if missing (default: ./pepper)

	TokenTTL             time.Duration // Session token lifetime (default: 24h)
	OperationTimeout     time.Duration // Deadline for each service call (default: 5s)
	MFAChallengeTTL      time.Duration // Lifetime of a pending MFA challenge (default: 10m)
	HousekeepingInterval time.Duration // Expired challenge purge interval (default: 1h)

	DefaultRole   string // Role assigned on registration (default: user)
	DefaultTenant string // Tenant assigned on registration (default: empty)

	OAuthClientIDs         map[string]string // provider name -> client id, unset providers are disabled
	OAuthAllowedRedirects  []string          // redirect_uri prefixes, empty allows any http(s) URL
	RevealNotificationBody bool              // Log one-time codes instead of hiding them (dev only)

	ResendAPIKey     string // Enables email codes through Resend
	EmailFrom        string // Sender address for email codes (default: noreply@authflow.com)
	TwilioAccountSID string // Twilio credentials and number, all three enable SMS codes
	TwilioAuthToken  string
	TwilioFrom       string

	Env                 string // Environment (dev, staging, prod) (default: dev)
	LogLevel            string // Log level (debug, info, warn, error) (default: info)
	LogFormat           string // Log format (json, text) (default: json)
	Port                int    // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration

	RateLimits httpx.Profiles
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:         getEnvOrDefault("AUTH_ISSUER", "authflow"),
		DatabaseDriver: strings.ToLower(getEnvOrDefault("AUTH_DATABASE_DRIVER", "sqlite")),
		DatabaseFile:   getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		DatabaseDSN:    os.Getenv("AUTH_DATABASE_DSN"),
		MFABackend:     strings.ToLower(getEnvOrDefault("AUTH_MFA_BACKEND", "sql")),
		RedisURL:       os.Getenv("AUTH_REDIS_URL"),

		SigningSecret:     os.Getenv("AUTH_SIGNING_SECRET"),
		SigningKeyFile:    os.Getenv("AUTH_SIGNING_KEY_FILE"),
		SigningKeyID:      os.Getenv("AUTH_SIGNING_KEY_ID"),
		SigningAlgorithm:  os.Getenv("AUTH_SIGNING_ALGORITHM"),
		PreviousKeyFile:   os.Getenv("AUTH_PREVIOUS_KEY_FILE"),
		PreviousKeyID:     os.Getenv("AUTH_PREVIOUS_KEY_ID"),
		PreviousAlgorithm: os.Getenv("AUTH_PREVIOUS_KEY_ALGORITHM"),

		PepperFile: getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),

		TokenTTL:             getEnvDurationOrDefault("AUTH_TOKEN_TTL", 24*time.Hour),
		OperationTimeout:     getEnvDurationOrDefault("AUTH_OPERATION_TIMEOUT", 5*time.Second),
		MFAChallengeTTL:      getEnvDurationOrDefault("AUTH_MFA_CHALLENGE_TTL", 10*time.Minute),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),

		DefaultRole:   getEnvOrDefault("AUTH_DEFAULT_ROLE", "user"),
		DefaultTenant: os.Getenv("AUTH_DEFAULT_TENANT"),

		OAuthClientIDs: map[string]string{
			"github":    os.Getenv("AUTH_OAUTH_GITHUB_CLIENT_ID"),
			"google":    os.Getenv("AUTH_OAUTH_GOOGLE_CLIENT_ID"),
			"microsoft": os.Getenv("AUTH_OAUTH_MICROSOFT_CLIENT_ID"),
		},
		OAuthAllowedRedirects: splitList(os.Getenv("AUTH_OAUTH_ALLOWED_REDIRECTS")),

		ResendAPIKey:     os.Getenv("AUTH_RESEND_API_KEY"),
		EmailFrom:        os.Getenv("AUTH_EMAIL_FROM"),
		TwilioAccountSID: os.Getenv("AUTH_TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("AUTH_TWILIO_AUTH_TOKEN"),
		TwilioFrom:       os.Getenv("AUTH_TWILIO_PHONE_NUMBER"),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),

		RateLimits: httpx.ProfilesFromEnv(),
	}

	// Codes are only ever printed in dev, whatever the flag says.
	cfg.RevealNotificationBody = cfg.Env == "dev" && getEnvBoolOrDefault("AUTH_NOTIFY_REVEAL_BODY", true)

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

// splitList parses a comma separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
