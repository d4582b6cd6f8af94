// Package relay orchestrates the login flow: initiation, provider callback
// handling, session issuance, and the error-redirect policy.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	ternary "github.com/julien040/go-ternary"
	"go.uber.org/zap"

	"github.com/Suhaibinator/GOAuthRelay/pkg/auth"
	"github.com/Suhaibinator/GOAuthRelay/pkg/session"
	"github.com/Suhaibinator/GOAuthRelay/pkg/state"
)

// ErrNotConfigured indicates the upstream provider credentials are unset.
// It is checked at initiation before any state is registered.
var ErrNotConfigured = errors.New("google OAuth not configured")

// Login attempt phases, used to tag callback logs.
const (
	phaseCodeReceived   = "code_received"
	phaseTokenExchanged = "token_exchanged"
	phaseProfileFetched = "profile_fetched"
	phaseSessionIssued  = "session_issued"
	phaseFailed         = "failed"
)

// Redirect is the terminal outcome of a callback: the browser is sent to
// Target no matter how the attempt ended.
type Redirect struct {
	Target string
}

// Controller drives one login attempt from initiation through callback to a
// redirect outcome, owning the error-redirect policy along the way.
type Controller struct {
	provider         auth.Provider // nil when the provider is unconfigured
	states           state.Store
	sessions         *session.Issuer
	defaultReturnURL string
	logger           *zap.Logger
	logEnricher      auth.LogEnricher
}

// NewController wires the controller to its collaborators. provider may be
// nil when the upstream is unconfigured; initiation then fails with
// ErrNotConfigured and callbacks end in error redirects.
func NewController(
	logger *zap.Logger,
	logEnricher auth.LogEnricher,
	provider auth.Provider,
	states state.Store,
	sessions *session.Issuer,
	defaultReturnURL string,
) *Controller {
	if logEnricher == nil {
		logEnricher = func(ctx context.Context, logger *zap.Logger) *zap.Logger { return logger }
	}
	return &Controller{
		provider:         provider,
		states:           states,
		sessions:         sessions,
		defaultReturnURL: defaultReturnURL,
		logger:           logger,
		logEnricher:      logEnricher,
	}
}

// Initiate starts a login attempt: it registers the caller's return address
// and returns the provider authorization URL for the browser to follow.
// The configuration check runs before any correlation entry is created.
func (c *Controller) Initiate(ctx context.Context, returnAddress string) (string, error) {
	logger := c.logEnricher(ctx, c.logger).Named("initiate")

	if c.provider == nil {
		logger.Error("Login attempted with unconfigured provider")
		return "", ErrNotConfigured
	}

	stateToken, err := c.states.Register(returnAddress)
	if err != nil {
		logger.Error("Failed to register login attempt", zap.Error(err))
		return "", fmt.Errorf("register login attempt: %w", err)
	}

	logger.Info("Redirecting to provider for login", zap.String("return_address", returnAddress))
	return c.provider.AuthURL(ctx, stateToken), nil
}

// Complete processes the provider callback. Every exit path produces a
// redirect: the browser is mid-navigation and has nowhere else to go, so no
// failure in the flow may escape as an error response.
func (c *Controller) Complete(ctx context.Context, code, stateToken string) (result Redirect) {
	logger := c.logEnricher(ctx, c.logger).Named("callback")

	target := c.defaultReturnURL
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Callback flow panicked", zap.Any("panic", r), zap.String("phase", phaseFailed))
			result = errorRedirect(target, fmt.Sprintf("login failed: %v", r))
		}
	}()

	// Providers may drop the state parameter in relayed redirects, so an
	// unresolved token falls back to the default return address rather
	// than aborting the flow.
	addr, err := c.states.Resolve(stateToken)
	target = ternary.If(err == nil, addr, c.defaultReturnURL)
	if err != nil {
		logger.Warn("State token not resolved, using default return address",
			zap.Error(err), zap.String("return_address", target))
	} else {
		logger.Info("Resolved return address from state", zap.String("return_address", target))
	}

	if c.provider == nil {
		logger.Error("Callback received with unconfigured provider", zap.String("phase", phaseFailed))
		return errorRedirect(target, ErrNotConfigured.Error())
	}
	if code == "" {
		logger.Error("Callback missing authorization code", zap.String("phase", phaseFailed))
		return errorRedirect(target, "missing authorization code")
	}
	logger.Info("Processing provider callback", zap.String("phase", phaseCodeReceived))

	token, err := c.provider.ExchangeCode(ctx, code)
	if err != nil {
		logger.Error("Token exchange failed", zap.Error(err), zap.String("phase", phaseFailed))
		return errorRedirect(target, err.Error())
	}
	logger.Info("Exchanged code for token", zap.String("phase", phaseTokenExchanged))

	profile, err := c.provider.FetchProfile(ctx, token)
	if err != nil {
		logger.Error("User info fetch failed", zap.Error(err), zap.String("phase", phaseFailed))
		return errorRedirect(target, err.Error())
	}
	logger.Info("Fetched user profile", zap.String("phase", phaseProfileFetched), zap.String("email", profile.Email))

	sessionToken, err := c.sessions.Issue(*profile)
	if err != nil {
		logger.Error("Failed to issue session token", zap.Error(err), zap.String("phase", phaseFailed))
		return errorRedirect(target, "failed to issue session token")
	}

	logger.Info("Login complete", zap.String("phase", phaseSessionIssued), zap.String("email", profile.Email))
	return successRedirect(target, sessionToken, *profile)
}

// Profile verifies a session token presented with bearer framing and returns
// the embedded claims as a profile view.
func (c *Controller) Profile(authorization string) (auth.Profile, error) {
	tokenString, err := session.FromAuthorization(authorization)
	if err != nil {
		return auth.Profile{}, err
	}
	return c.sessions.Verify(tokenString)
}

func successRedirect(target, token string, profile auth.Profile) Redirect {
	q := url.Values{}
	q.Set("token", token)
	q.Set("email", profile.Email)
	q.Set("name", profile.Name)
	q.Set("image", profile.AvatarURL)
	return Redirect{Target: appendQuery(target, q)}
}

func errorRedirect(target, message string) Redirect {
	q := url.Values{}
	q.Set("error", message)
	return Redirect{Target: appendQuery(target, q)}
}

// appendQuery attaches query parameters to a caller-supplied URL, which may
// already carry a query string of its own.
func appendQuery(target string, q url.Values) string {
	sep := ternary.If(strings.Contains(target, "?"), "&", "?")
	return target + sep + q.Encode()
}
