package auth

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Profile represents a standardized identity obtained after successful OAuth
// authentication. It is transient: fields flow from the provider's userinfo
// response straight into session token claims within a single request.
type Profile struct {
	Subject   string `json:"sub"`   // Provider-assigned subject identifier
	Email     string `json:"email"` // User's email address
	Name      string `json:"name"`  // User's display name
	AvatarURL string `json:"image"` // URL to the user's profile picture
}

// LogEnricher annotates a logger with per-request fields (e.g. a request id)
// carried in the context. Implementations must tolerate a context without
// those fields and return the logger unchanged.
type LogEnricher func(ctx context.Context, logger *zap.Logger) *zap.Logger

// Config holds the configuration for the upstream identity provider.
// Client ID, Client Secret, and Redirect URL must be provided; the redirect
// URL is the single shared value used both when building the authorization
// URL and during code exchange, since any mismatch causes provider-side
// rejection.
type Config struct {
	GoogleOAuthClientID     string
	GoogleOAuthClientSecret string
	GoogleOAuthRedirectURL  string

	// Endpoint overrides. Empty values fall back to Google's public
	// endpoints; tests point them at a local server.
	AuthURL     string
	TokenURL    string
	UserInfoURL string

	// Timeout bounds each remote call to the provider. Defaults to
	// DefaultTimeout when zero.
	Timeout time.Duration
}

// DefaultTimeout is the per-call bound on remote provider calls.
const DefaultTimeout = 30 * time.Second

// Configured reports whether provider credentials are present.
func (c *Config) Configured() bool {
	return c.GoogleOAuthClientID != "" && c.GoogleOAuthClientSecret != ""
}

// Operation names used in ProviderError messages.
const (
	OpExchangeCode = "token exchange"
	OpFetchProfile = "user info fetch"
)

// ProviderError reports a failed remote call to the identity provider.
// It carries the upstream status and body text so callers can surface the
// provider's own words, never mask them. Timeouts and transport failures are
// the same category with Timeout set and StatusCode zero.
type ProviderError struct {
	Op         string // OpExchangeCode or OpFetchProfile
	StatusCode int    // upstream status; zero when the call never completed
	Body       string // upstream response body, if any
	Timeout    bool
	Err        error // underlying transport or library error, if any
}

func (e *ProviderError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s failed: status %d: %s", e.Op, e.StatusCode, e.Body)
	case e.Timeout:
		return fmt.Sprintf("%s timed out: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
}

func (e *ProviderError) Unwrap() error { return e.Err }
