package auth

import (
	"context"

	"golang.org/x/oauth2"
)

// Provider defines the interface implemented by the upstream identity
// provider. The two remote operations are independent calls with no implicit
// retry; each reports failure as a *ProviderError.
type Provider interface {
	// AuthURL generates the provider authorization URL embedding the given
	// state token and the fixed redirect URI.
	AuthURL(ctx context.Context, state string) string
	// ExchangeCode performs the authorization-code grant against the
	// provider's token endpoint.
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)
	// FetchProfile calls the provider's userinfo endpoint with the bearer
	// access token from a prior exchange.
	FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error)
}
