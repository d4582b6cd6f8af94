package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ===== Google OAuth =====

const defaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleUserInfo represents the user information returned by Google's userinfo endpoint
// (https://www.googleapis.com/oauth2/v2/userinfo).
type GoogleUserInfo struct {
	ID            string `json:"id"`             // The user's unique Google ID.
	Email         string `json:"email"`          // The user's email address.
	VerifiedEmail bool   `json:"verified_email"` // Whether Google has verified the email address.
	Name          string `json:"name"`           // The user's full name.
	GivenName     string `json:"given_name"`     // The user's first name.
	FamilyName    string `json:"family_name"`    // The user's last name.
	Picture       string `json:"picture"`        // URL of the user's profile picture.
	Locale        string `json:"locale"`         // The user's locale (e.g., "en").
}

// GoogleProvider implements Provider against Google's OAuth 2.0 endpoints
// using golang.org/x/oauth2.
type GoogleProvider struct {
	oauthConfig *oauth2.Config
	userInfoURL string
	timeout     time.Duration
	logger      *zap.Logger
	logEnricher LogEnricher
}

// NewGoogleProvider creates a GoogleProvider from the given configuration.
// It requires a zap logger and provider credentials; the logEnricher may be
// nil, in which case logs carry no per-request fields.
func NewGoogleProvider(logger *zap.Logger, logEnricher LogEnricher, cfg *Config) (*GoogleProvider, error) {
	if cfg == nil {
		return nil, errors.New("oauth config is nil")
	}
	if !cfg.Configured() {
		return nil, errors.New("google OAuth client ID and secret are required")
	}
	if logEnricher == nil {
		logEnricher = func(ctx context.Context, logger *zap.Logger) *zap.Logger { return logger }
	}

	endpoint := google.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = defaultUserInfoURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	p := &GoogleProvider{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.GoogleOAuthClientID,
			ClientSecret: cfg.GoogleOAuthClientSecret,
			RedirectURL:  cfg.GoogleOAuthRedirectURL,
			Scopes:       []string{"openid", "email", "profile"}, // Standard scopes
			Endpoint:     endpoint,
		},
		userInfoURL: userInfoURL,
		timeout:     timeout,
		logger:      logger.Named("google"),
		logEnricher: logEnricher,
	}
	p.logger.Info("Google OAuth provider registered using golang.org/x/oauth2")
	return p, nil
}

// AuthURL generates the URL to redirect the user to for Google authentication.
// It includes the client ID, the fixed redirect URI, scopes, and the state
// parameter. Requests offline access to potentially receive a refresh token.
func (p *GoogleProvider) AuthURL(ctx context.Context, state string) string {
	return p.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ExchangeCode exchanges the authorization code received on callback for an
// OAuth token. A non-success response from the token endpoint is surfaced as
// a *ProviderError carrying the upstream status and body text.
func (p *GoogleProvider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	logger := p.logEnricher(ctx, p.logger).Named("exchange_code")

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	token, err := p.oauthConfig.Exchange(ctx, code)
	if err != nil {
		perr := &ProviderError{Op: OpExchangeCode, Timeout: isTimeout(err), Err: err}
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			perr.StatusCode = retrieveErr.Response.StatusCode
			perr.Body = string(retrieveErr.Body)
		}
		logger.Error("Failed to exchange code for token", zap.Error(err))
		return nil, perr
	}

	if !token.Valid() {
		logger.Error("Received invalid token")
		return nil, &ProviderError{Op: OpExchangeCode, Err: errors.New("received invalid token from provider")}
	}

	logger.Info("Exchanged authorization code for token")
	return token, nil
}

// FetchProfile retrieves the user's profile information from Google's
// userinfo endpoint using the bearer access token and maps it to the
// standardized Profile struct.
func (p *GoogleProvider) FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	logger := p.logEnricher(ctx, p.logger).Named("fetch_profile")

	// Use the token to get an HTTP client
	client := p.oauthConfig.Client(ctx, token)
	client.Timeout = p.timeout

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, &ProviderError{Op: OpFetchProfile, Err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		logger.Error("Failed to request user info", zap.Error(err))
		return nil, &ProviderError{Op: OpFetchProfile, Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		logger.Error("Failed to get user info, non-OK status",
			zap.Int("status_code", resp.StatusCode),
			zap.String("response_body", string(bodyBytes)))
		return nil, &ProviderError{Op: OpFetchProfile, StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var googleUser GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&googleUser); err != nil {
		logger.Error("Failed to decode user info response", zap.Error(err))
		return nil, &ProviderError{Op: OpFetchProfile, Err: err}
	}

	profile := &Profile{
		Subject:   googleUser.ID,
		Email:     googleUser.Email,
		Name:      googleUser.Name,
		AvatarURL: googleUser.Picture,
	}

	logger.Info("Fetched user info", zap.String("email", profile.Email))
	return profile, nil
}

// isTimeout reports whether err is a network timeout or a deadline expiry.
func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
