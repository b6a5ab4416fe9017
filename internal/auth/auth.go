// Package auth identifies the caller of an API request.
//
// Two credentials are accepted, both as "Authorization: Bearer <token>":
//
//   - the shared ingestion key (INGEST_API_KEY), used by the scraper; the
//     caller becomes the "service" principal.
//   - an HS256 JWT issued by Login; the caller becomes a user principal
//     carrying the role claim.
//
// Identification never fails loudly. Authenticate returns the anonymous
// principal for anything it does not recognize and the HTTP layer decides
// what to do with it.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tbourn/leadops-backend/internal/domain"
)

// Principal kinds.
const (
	KindAnonymous = ""
	KindService   = "service"
	KindUser      = "user"
)

// Principal is the authenticated caller.
type Principal struct {
	Kind   string
	UserID string
	Email  string
	Role   string
}

// IsService reports whether the caller presented the ingestion key.
func (p Principal) IsService() bool { return p.Kind == KindService }

// IsAdmin reports whether the caller is a user with the admin role.
func (p Principal) IsAdmin() bool { return p.Kind == KindUser && p.Role == domain.RoleAdmin }

// Key is a stable identity used for rate limiting and idempotency scoping.
func (p Principal) Key() string {
	switch p.Kind {
	case KindService:
		return "service"
	case KindUser:
		return "user:" + p.UserID
	default:
		return ""
	}
}

// Claims is the JWT payload issued by Login.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Manager verifies bearer credentials and issues tokens.
type Manager struct {
	APIKey string
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

// NewManager returns a Manager using wall-clock time.
func NewManager(apiKey, secret string, ttl time.Duration) *Manager {
	return &Manager{
		APIKey: apiKey,
		Secret: []byte(secret),
		TTL:    ttl,
		Now:    time.Now,
	}
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(prefix):])
	return tok, tok != ""
}

// Authenticate resolves an Authorization header to a principal. ok is false
// when the header carries no recognized credential.
func (m *Manager) Authenticate(header string) (Principal, bool) {
	tok, ok := BearerToken(header)
	if !ok {
		return Principal{}, false
	}
	if m.APIKey != "" && subtle.ConstantTimeCompare([]byte(tok), []byte(m.APIKey)) == 1 {
		return Principal{Kind: KindService}, true
	}
	claims, err := m.Parse(tok)
	if err != nil {
		return Principal{}, false
	}
	return Principal{
		Kind:   KindUser,
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   claims.Role,
	}, true
}

// IssueToken signs a token for u and returns it with its expiry.
func (m *Manager) IssueToken(u *domain.User) (string, time.Time, error) {
	if len(m.Secret) == 0 {
		return "", time.Time{}, errors.New("jwt secret is not configured")
	}
	now := m.now().UTC()
	exp := now.Add(m.TTL)
	claims := Claims{
		Email: u.Email,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies an HS256 token and returns its claims.
func (m *Manager) Parse(tok string) (*Claims, error) {
	if len(m.Secret) == 0 {
		return nil, errors.New("jwt secret is not configured")
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tok, claims,
		func(*jwt.Token) (any, error) { return m.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}
