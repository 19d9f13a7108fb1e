package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/privileges-api/privileges/internal/model"
)

// ---------------------------------------------------------------------------
// Credential Store
// ---------------------------------------------------------------------------

// tokenRow maps 1:1 to the api_tokens table. Booleans are stored as 0/1
// integers so the same row works on every supported dialect.
type tokenRow struct {
	ID                  string         `db:"id"`
	Name                string         `db:"name"`
	Description         sql.NullString `db:"description"`
	KeyHash             string         `db:"key_hash"`
	KeyPrefix           string         `db:"key_prefix"`
	CreatedAt           int64          `db:"created_at"`
	LastUsedAt          sql.NullInt64  `db:"last_used_at"`
	ExpiresAt           sql.NullInt64  `db:"expires_at"`
	IsActive            int            `db:"is_active"`
	IsServiceToken      int            `db:"is_service_token"`
	PermRead            int            `db:"perm_read"`
	PermWrite           int            `db:"perm_write"`
	PermDelete          int            `db:"perm_delete"`
	PermTokenManagement int            `db:"perm_token_management"`
}

const tokenColumns = `id, name, description, key_hash, key_prefix, created_at,
	last_used_at, expires_at, is_active, is_service_token,
	perm_read, perm_write, perm_delete, perm_token_management`

func tokenRowFromModel(t *model.Token) tokenRow {
	r := tokenRow{
		ID:                  t.ID,
		Name:                t.Name,
		KeyHash:             t.KeyHash,
		KeyPrefix:           t.KeyPrefix,
		CreatedAt:           t.CreatedAt,
		IsActive:            boolToInt(t.IsActive),
		IsServiceToken:      boolToInt(t.IsServiceToken),
		PermRead:            boolToInt(t.Permissions.Read),
		PermWrite:           boolToInt(t.Permissions.Write),
		PermDelete:          boolToInt(t.Permissions.Delete),
		PermTokenManagement: boolToInt(t.Permissions.TokenManagement),
	}
	if t.Description != nil {
		r.Description = sql.NullString{String: *t.Description, Valid: true}
	}
	if t.LastUsedAt != nil {
		r.LastUsedAt = sql.NullInt64{Int64: *t.LastUsedAt, Valid: true}
	}
	if t.ExpiresAt != nil {
		r.ExpiresAt = sql.NullInt64{Int64: *t.ExpiresAt, Valid: true}
	}
	return r
}

func (r tokenRow) toModel() model.Token {
	t := model.Token{
		ID:             r.ID,
		Name:           r.Name,
		KeyHash:        r.KeyHash,
		KeyPrefix:      r.KeyPrefix,
		CreatedAt:      r.CreatedAt,
		IsActive:       r.IsActive != 0,
		IsServiceToken: r.IsServiceToken != 0,
		Permissions: model.Permissions{
			Read:            r.PermRead != 0,
			Write:           r.PermWrite != 0,
			Delete:          r.PermDelete != 0,
			TokenManagement: r.PermTokenManagement != 0,
		},
	}
	if r.Description.Valid {
		d := r.Description.String
		t.Description = &d
	}
	if r.LastUsedAt.Valid {
		v := r.LastUsedAt.Int64
		t.LastUsedAt = &v
	}
	if r.ExpiresAt.Valid {
		v := r.ExpiresAt.Int64
		t.ExpiresAt = &v
	}
	return t
}

// CreateToken inserts a new token. KeyHash must already be set (see HashKey).
// A duplicate id or key hash yields a KindConflict error.
func (s *Store) CreateToken(ctx context.Context, t *model.Token) error {
	const q = `INSERT INTO api_tokens
		(id, name, description, key_hash, key_prefix, created_at, last_used_at,
		 expires_at, is_active, is_service_token,
		 perm_read, perm_write, perm_delete, perm_token_management)
		VALUES
		(:id, :name, :description, :key_hash, :key_prefix, :created_at, :last_used_at,
		 :expires_at, :is_active, :is_service_token,
		 :perm_read, :perm_write, :perm_delete, :perm_token_management)`

	if _, err := s.db.NamedExecContext(ctx, q, tokenRowFromModel(t)); err != nil {
		return wrap("insert token", err)
	}
	return nil
}

// GetToken looks up a token by id.
func (s *Store) GetToken(ctx context.Context, id string) (*model.Token, error) {
	return s.getToken(ctx, "get token", "id", id)
}

// GetTokenByKey looks up a token by its raw bearer key. Only the hash of the
// key reaches the database.
func (s *Store) GetTokenByKey(ctx context.Context, raw string) (*model.Token, error) {
	return s.getToken(ctx, "get token by key", "key_hash", HashKey(raw))
}

func (s *Store) getToken(ctx context.Context, op, column, value string) (*model.Token, error) {
	var row tokenRow
	q := s.db.Rebind("SELECT " + tokenColumns + " FROM api_tokens WHERE " + column + " = ?")
	if err := s.db.GetContext(ctx, &row, q, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(op)
		}
		return nil, wrap(op, err)
	}
	t := row.toModel()
	return &t, nil
}

// ListTokens returns every token, newest first.
func (s *Store) ListTokens(ctx context.Context) ([]model.Token, error) {
	var rows []tokenRow
	q := "SELECT " + tokenColumns + " FROM api_tokens ORDER BY created_at DESC, id"
	if err := s.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, wrap("list tokens", err)
	}
	out := make([]model.Token, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

// RevokeToken marks a token inactive. Revocation is permanent.
func (s *Store) RevokeToken(ctx context.Context, id string) error {
	return s.execOne(ctx, "revoke token", "UPDATE api_tokens SET is_active = 0 WHERE id = ?", id)
}

// DeleteToken removes a token row.
func (s *Store) DeleteToken(ctx context.Context, id string) error {
	return s.execOne(ctx, "delete token", "DELETE FROM api_tokens WHERE id = ?", id)
}

// TouchToken records the time a token last authenticated a request.
func (s *Store) TouchToken(ctx context.Context, id string, at time.Time) error {
	return s.execOne(ctx, "touch token",
		"UPDATE api_tokens SET last_used_at = ? WHERE id = ?", at.Unix(), id)
}

// execOne runs a single-row statement and reports KindNotFound when no row
// matched.
func (s *Store) execOne(ctx context.Context, op, q string, args ...any) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(q), args...)
	if err != nil {
		return wrap(op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return wrap(op+" rows affected", err)
	}
	if n == 0 {
		return notFound(op)
	}
	return nil
}
