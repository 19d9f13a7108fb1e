package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/privileges-api/privileges/internal/model"
	"github.com/privileges-api/privileges/internal/store"
	"github.com/privileges-api/privileges/internal/token"
)

// TokenManagementPrefix is the route prefix service tokens may not enter.
const TokenManagementPrefix = "/api/v1/tokens"

// touchTimeout bounds a single last_used_at update.
const touchTimeout = 5 * time.Second

// CredentialStore is the subset of the store the gate needs.
type CredentialStore interface {
	GetTokenByKey(ctx context.Context, raw string) (*model.Token, error)
	TouchToken(ctx context.Context, id string, at time.Time) error
}

// AuthService resolves bearer keys to principals.
type AuthService struct {
	store  CredentialStore
	codec  *token.Codec
	secret []byte
	logger *slog.Logger

	wg sync.WaitGroup
}

// NewAuthService returns an AuthService. An empty secret disables the
// environment-secret path.
func NewAuthService(store CredentialStore, codec *token.Codec, secret string, logger *slog.Logger) *AuthService {
	if codec == nil {
		codec = token.NewCodec(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		store:  store,
		codec:  codec,
		secret: []byte(secret),
		logger: logger,
	}
}

// IsTokenManagementPath reports whether path is a token management route.
func IsTokenManagementPath(path string) bool {
	return strings.HasPrefix(path, TokenManagementPrefix)
}

// Authenticate resolves key, presented on a request for path. Checks run in
// a fixed order: unknown, inactive, expired, then service token on a token
// management route. Errors other than the sentinels mean the store could
// not answer and the request must be refused.
func (s *AuthService) Authenticate(ctx context.Context, key, path string) (*model.Principal, error) {
	if key == "" {
		return nil, ErrInvalidToken
	}
	if len(s.secret) > 0 && subtle.ConstantTimeCompare([]byte(key), s.secret) == 1 {
		return model.EnvironmentPrincipal(), nil
	}

	tok, err := s.store.GetTokenByKey(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("resolve token: %w", err)
	}
	if !tok.IsActive {
		return nil, ErrTokenInactive
	}
	if s.codec.IsExpired(tok.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	if tok.IsServiceToken && IsTokenManagementPath(path) {
		return nil, ErrServiceTokenDenied
	}

	s.touch(tok.ID)
	return model.PrincipalFromToken(tok), nil
}

// touch records the use in the background. The timestamp is taken now, not
// when the update runs.
func (s *AuthService) touch(id string) {
	at := s.codec.Now()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), touchTimeout)
		defer cancel()
		if err := s.store.TouchToken(ctx, id, at); err != nil {
			s.logger.Warn("failed to record token use", "token_id", id, "error", err)
		}
	}()
}

// Drain waits for pending last_used_at updates or for ctx to end.
func (s *AuthService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
