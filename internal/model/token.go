package model

// Permission names one of the four flags a token can carry.
type Permission string

const (
	PermRead            Permission = "read"
	PermWrite           Permission = "write"
	PermDelete          Permission = "delete"
	PermTokenManagement Permission = "token_management"
)

// EnvironmentPrincipalID is the fixed identity assigned to callers that
// present the configured environment secret.
const EnvironmentPrincipalID = "env-default"

// Permissions is the fixed set of capability flags attached to a token.
type Permissions struct {
	Read            bool `json:"read"`
	Write           bool `json:"write"`
	Delete          bool `json:"delete"`
	TokenManagement bool `json:"token_management"`
}

// ReadOnlyPermissions is the default grant for newly created tokens.
func ReadOnlyPermissions() Permissions {
	return Permissions{Read: true}
}

// FullPermissions grants every flag. Only the environment principal holds it
// implicitly.
func FullPermissions() Permissions {
	return Permissions{Read: true, Write: true, Delete: true, TokenManagement: true}
}

// Has reports whether the named permission is granted. Unknown names are
// never granted.
func (p Permissions) Has(perm Permission) bool {
	switch perm {
	case PermRead:
		return p.Read
	case PermWrite:
		return p.Write
	case PermDelete:
		return p.Delete
	case PermTokenManagement:
		return p.TokenManagement
	default:
		return false
	}
}

// Covers reports whether p grants at least every flag set in other.
func (p Permissions) Covers(other Permissions) bool {
	return (!other.Read || p.Read) &&
		(!other.Write || p.Write) &&
		(!other.Delete || p.Delete) &&
		(!other.TokenManagement || p.TokenManagement)
}

// Token is a database-issued API credential. The raw key is never stored;
// only its SHA-256 hash and a short prefix for identification are persisted.
// Timestamps are unix seconds.
type Token struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Description    *string     `json:"description"`
	KeyHash        string      `json:"-"`
	KeyPrefix      string      `json:"key_prefix"`
	CreatedAt      int64       `json:"created_at"`
	LastUsedAt     *int64      `json:"last_used_at"`
	ExpiresAt      *int64      `json:"expires_at"`
	IsActive       bool        `json:"is_active"`
	IsServiceToken bool        `json:"is_service_token"`
	Permissions    Permissions `json:"permissions"`
}

// Principal is the caller identity resolved for a single request. It is
// never persisted.
type Principal struct {
	ID             string      `json:"id"`
	Permissions    Permissions `json:"permissions"`
	IsServiceToken bool        `json:"is_service_token"`
}

// EnvironmentPrincipal returns the full-access identity used for the
// environment secret.
func EnvironmentPrincipal() *Principal {
	return &Principal{
		ID:          EnvironmentPrincipalID,
		Permissions: FullPermissions(),
	}
}

// PrincipalFromToken builds a principal carrying the token's permissions
// verbatim.
func PrincipalFromToken(t *Token) *Principal {
	return &Principal{
		ID:             t.ID,
		Permissions:    t.Permissions,
		IsServiceToken: t.IsServiceToken,
	}
}

// TokenCreateRequest is the body accepted when issuing a new token.
type TokenCreateRequest struct {
	Name           string       `json:"name"`
	Description    *string      `json:"description,omitempty"`
	ExpiresIn      string       `json:"expires_in"`
	Permissions    *Permissions `json:"permissions,omitempty"`
	IsServiceToken bool         `json:"is_service_token"`
}

// CreatedToken is returned exactly once, at creation, and is the only
// response that carries the raw key.
type CreatedToken struct {
	Token          string      `json:"token"`
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Description    *string     `json:"description"`
	CreatedAt      int64       `json:"created_at"`
	ExpiresAt      *int64      `json:"expires_at"`
	ExpiresIn      string      `json:"expires_in"`
	IsServiceToken bool        `json:"is_service_token"`
	Permissions    Permissions `json:"permissions"`
}
