// Package state tracks in-flight login attempts. Each attempt is keyed by an
// unguessable state token bound to the return address supplied at initiation;
// the token doubles as the CSRF defense on the provider callback.
package state

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// ErrNotFound indicates a state token that was never issued, already
// consumed, or expired.
var ErrNotFound = errors.New("state token not found")

// tokenLength is the number of random bytes in a state token. 32 bytes gives
// 256 bits of entropy, enough that tokens cannot be guessed or collided even
// across a large number of concurrent flows.
const tokenLength = 32

// Store maps an in-flight login attempt to its return address.
// Implementations must make Resolve an atomic one-shot take: of two
// concurrent resolves of the same token, exactly one observes the entry.
type Store interface {
	// Register generates a fresh state token, associates it with
	// returnAddress, and returns it.
	Register(returnAddress string) (string, error)
	// Resolve removes and returns the address associated with stateToken,
	// or ErrNotFound.
	Resolve(stateToken string) (string, error)
}

// MemoryStore is an in-process Store backed by a TTL-expiring cache.
// Unconsumed entries (callbacks that never arrive) are evicted after the
// configured TTL instead of accumulating for the life of the process.
type MemoryStore struct {
	// entries synchronizes individual cache operations, but not a
	// get+delete pair; mu makes the take in Resolve a single step.
	mu      sync.Mutex
	entries *gocache.Cache
	logger  *zap.Logger
}

// NewMemoryStore creates a MemoryStore whose entries expire after ttl, with
// a background janitor sweeping expired entries every cleanupInterval.
// A non-positive ttl disables expiry.
func NewMemoryStore(logger *zap.Logger, ttl, cleanupInterval time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &MemoryStore{
		entries: gocache.New(ttl, cleanupInterval),
		logger:  logger,
	}
}

// Register generates a fresh unguessable token and stores the association.
// The only failure mode is an entropy-source error.
func (s *MemoryStore) Register(returnAddress string) (string, error) {
	token, err := newStateToken()
	if err != nil {
		return "", fmt.Errorf("generate state token: %w", err)
	}

	s.mu.Lock()
	s.entries.SetDefault(token, returnAddress)
	s.mu.Unlock()

	s.logger.Debug("Registered login attempt", zap.String("return_address", returnAddress))
	return token, nil
}

// Resolve consumes the entry for stateToken. Consumption is destructive so a
// stale token cannot be replayed to hijack a later callback.
func (s *MemoryStore) Resolve(stateToken string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.entries.Get(stateToken)
	if !ok {
		return "", ErrNotFound
	}
	s.entries.Delete(stateToken)
	return value.(string), nil
}

// newStateToken creates a random, URL-safe state string.
func newStateToken() (string, error) {
	b := make([]byte, tokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
