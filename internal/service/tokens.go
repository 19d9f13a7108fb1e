package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/privileges-api/privileges/internal/model"
	"github.com/privileges-api/privileges/internal/store"
	"github.com/privileges-api/privileges/internal/token"
)

// TokenStore is the subset of the store token management needs.
type TokenStore interface {
	CreateToken(ctx context.Context, t *model.Token) error
	GetToken(ctx context.Context, id string) (*model.Token, error)
	ListTokens(ctx context.Context) ([]model.Token, error)
	RevokeToken(ctx context.Context, id string) error
	DeleteToken(ctx context.Context, id string) error
}

// TokenAction is what DELETE /api/v1/tokens/{id} does to the target.
type TokenAction string

const (
	ActionRevoke TokenAction = "revoke"
	ActionDelete TokenAction = "delete"
)

// ParseAction maps the action query parameter. Anything but "delete"
// revokes.
func ParseAction(s string) TokenAction {
	if s == string(ActionDelete) {
		return ActionDelete
	}
	return ActionRevoke
}

// TokenService issues, lists, revokes and deletes database tokens.
type TokenService struct {
	store  TokenStore
	codec  *token.Codec
	logger *slog.Logger
}

func NewTokenService(store TokenStore, codec *token.Codec, logger *slog.Logger) *TokenService {
	if codec == nil {
		codec = token.NewCodec(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenService{store: store, codec: codec, logger: logger}
}

// Create issues a new token. caller is nil for operator tooling, which may
// grant any permission. The raw key appears only in the result.
func (s *TokenService) Create(ctx context.Context, caller *model.Principal, req model.TokenCreateRequest) (*model.CreatedToken, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalidf("name is required")
	}

	perms := model.ReadOnlyPermissions()
	if req.Permissions != nil {
		perms = *req.Permissions
	}
	if caller != nil && !caller.Permissions.Covers(perms) {
		return nil, ErrPermissionEscalation
	}

	expiresIn := req.ExpiresIn
	if expiresIn == "" {
		expiresIn = token.Never
	}
	now := s.codec.Now()
	expiresAt := s.codec.ComputeExpiration(expiresIn)
	if expiresAt == nil && expiresIn != token.Never {
		return nil, invalidf("unknown expires_in %q", expiresIn)
	}
	if expiresAt != nil && *expiresAt <= now.Unix() {
		return nil, ErrInvalidExpiration
	}

	raw, err := token.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	t := &model.Token{
		ID:             uuid.NewString(),
		Name:           name,
		Description:    req.Description,
		KeyHash:        store.HashKey(raw),
		KeyPrefix:      token.DisplayPrefix(raw),
		CreatedAt:      now.Unix(),
		ExpiresAt:      expiresAt,
		IsActive:       true,
		IsServiceToken: req.IsServiceToken,
		Permissions:    perms,
	}
	if err := s.store.CreateToken(ctx, t); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}

	s.logger.Info("token created",
		"token_id", t.ID,
		"name", t.Name,
		"service", t.IsServiceToken,
		"created_by", callerID(caller),
	)

	return &model.CreatedToken{
		Token:          raw,
		ID:             t.ID,
		Name:           t.Name,
		Description:    t.Description,
		CreatedAt:      t.CreatedAt,
		ExpiresAt:      t.ExpiresAt,
		ExpiresIn:      expiresIn,
		IsServiceToken: t.IsServiceToken,
		Permissions:    t.Permissions,
	}, nil
}

// List returns every token, newest first.
func (s *TokenService) List(ctx context.Context) ([]model.Token, error) {
	return s.store.ListTokens(ctx)
}

// Get returns one token. A missing id yields store.ErrNotFound.
func (s *TokenService) Get(ctx context.Context, id string) (*model.Token, error) {
	return s.store.GetToken(ctx, id)
}

// Apply revokes or deletes the token id. Existence is checked before the
// self-operation rule so a missing id always reports not found.
func (s *TokenService) Apply(ctx context.Context, caller *model.Principal, id string, action TokenAction) (*model.ActionResult, error) {
	if _, err := s.store.GetToken(ctx, id); err != nil {
		return nil, err
	}
	if caller != nil && caller.ID == id {
		return nil, ErrSelfOperation
	}

	switch action {
	case ActionDelete:
		if err := s.store.DeleteToken(ctx, id); err != nil {
			return nil, err
		}
		s.logger.Info("token deleted", "token_id", id, "by", callerID(caller))
		return &model.ActionResult{Success: true, Message: "Token permanently deleted"}, nil
	default:
		if err := s.store.RevokeToken(ctx, id); err != nil {
			return nil, err
		}
		s.logger.Info("token revoked", "token_id", id, "by", callerID(caller))
		return &model.ActionResult{Success: true, Message: "Token revoked successfully"}, nil
	}
}

func callerID(p *model.Principal) string {
	if p == nil {
		return "cli"
	}
	return p.ID
}
