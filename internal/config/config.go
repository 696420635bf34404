// Package config defines the global configuration structure for the dodolink
// service. Configuration is loaded once at process initialization and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup. There are no process-global clients: main constructs
// every client from this struct and injects it where needed.
package config

import (
	"time"

	"dodolink/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the dodolink service.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server   ServerConfig
	Database DatabaseConfig
	Identity IdentityConfig
	Payments PaymentsConfig
	Security SecurityConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"29s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	// Tuning Parameters
	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
}

// IdentityConfig holds the identity provider (Supabase GoTrue) endpoints and keys.
// The service role key authorizes admin operations (create user, fetch user);
// the anon key authorizes the password-grant sign-in call.
type IdentityConfig struct {
	BaseURL        string       `envconfig:"SUPABASE_URL" validate:"required,url"`
	ServiceRoleKey SecretString `envconfig:"SUPABASE_SERVICE_ROLE_KEY" validate:"required"`
	AnonKey        SecretString `envconfig:"SUPABASE_ANON_KEY" validate:"required"`
	Timeout        time.Duration `envconfig:"SUPABASE_TIMEOUT" default:"15s"`
}

// PaymentsConfig holds the Dodo Payments API credentials and the webhook
// shared secret used to verify inbound event signatures.
type PaymentsConfig struct {
	BaseURL       string        `envconfig:"DODO_BASE_URL" validate:"required,url"`
	APIKey        SecretString  `envconfig:"DODO_API_KEY" validate:"required"`
	WebhookSecret SecretString  `envconfig:"DODO_WEBHOOK_SECRET" validate:"required"`
	Timeout       time.Duration `envconfig:"DODO_TIMEOUT" default:"20s"`
}

// SecurityConfig holds CORS settings.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}
