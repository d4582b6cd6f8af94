package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Suhaibinator/GOAuthRelay/pkg/auth"
	"github.com/Suhaibinator/GOAuthRelay/pkg/config"
	"github.com/Suhaibinator/GOAuthRelay/pkg/relay"
	"github.com/Suhaibinator/GOAuthRelay/pkg/session"
	"github.com/Suhaibinator/GOAuthRelay/pkg/state"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.JWTSecret == config.InsecureDefaultJWTSecret {
		logger.Warn("AUTH_RELAY_JWT_SECRET is unset, session tokens are signed with the insecure development default")
	}

	enricher := relay.LogEnricher()

	var provider auth.Provider
	if cfg.ProviderConfigured() {
		googleProvider, err := auth.NewGoogleProvider(logger.Named("oauth"), enricher, &auth.Config{
			GoogleOAuthClientID:     cfg.GoogleClientID,
			GoogleOAuthClientSecret: cfg.GoogleClientSecret,
			GoogleOAuthRedirectURL:  cfg.RedirectURI,
			Timeout:                 cfg.ProviderTimeout,
		})
		if err != nil {
			logger.Fatal("Failed to create OAuth provider", zap.Error(err))
		}
		provider = googleProvider
	} else {
		logger.Warn("Google OAuth credentials are not set; login initiation will fail until configured")
	}

	states := state.NewMemoryStore(logger.Named("state"), cfg.StateTTL, cfg.StateCleanupInterval)
	sessions := session.NewIssuer(cfg.JWTSecret, cfg.SessionLifetime)
	controller := relay.NewController(logger.Named("relay"), enricher, provider, states, sessions, cfg.DefaultReturnURL)
	handler := relay.NewServer(logger.Named("http"), controller, cfg.AllowedOrigins, cfg.ProviderConfigured())

	// The callback route waits on two sequential provider round-trips, so
	// the write timeout must outlast both.
	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 2*cfg.ProviderTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("Starting auth relay server", zap.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
