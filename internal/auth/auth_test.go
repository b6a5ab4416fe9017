package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/leadops-backend/internal/domain"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestManager() *Manager {
	m := NewManager("ingest-key", "jwt-secret", time.Hour)
	m.Now = func() time.Time { return fixedNow }
	return m
}

func adminUser() *domain.User {
	return &domain.User{ID: "u-1", Email: "admin@example.com", Role: domain.RoleAdmin}
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		in   string
		tok  string
		okay bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"BEARER  abc ", "abc", true},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"abc", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		tok, ok := BearerToken(c.in)
		assert.Equal(t, c.okay, ok, c.in)
		assert.Equal(t, c.tok, tok, c.in)
	}
}

func TestAuthenticate_ServiceKey(t *testing.T) {
	m := newTestManager()
	p, ok := m.Authenticate("Bearer ingest-key")
	require.True(t, ok)
	assert.True(t, p.IsService())
	assert.False(t, p.IsAdmin())
	assert.Equal(t, "service", p.Key())
}

func TestAuthenticate_WrongKeyRejected(t *testing.T) {
	m := newTestManager()
	for _, h := range []string{"Bearer ingest-ke", "Bearer ingest-key2", "Bearer nope", "ingest-key", ""} {
		p, ok := m.Authenticate(h)
		assert.False(t, ok, h)
		assert.Equal(t, KindAnonymous, p.Kind, h)
		assert.Equal(t, "", p.Key(), h)
	}
}

func TestAuthenticate_EmptyAPIKeyNeverMatches(t *testing.T) {
	m := newTestManager()
	m.APIKey = ""
	_, ok := m.Authenticate("Bearer ")
	assert.False(t, ok)
}

func TestIssueAndAuthenticate_Admin(t *testing.T) {
	m := newTestManager()
	tok, exp, err := m.IssueToken(adminUser())
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(time.Hour), exp)

	p, ok := m.Authenticate("Bearer " + tok)
	require.True(t, ok)
	assert.True(t, p.IsAdmin())
	assert.False(t, p.IsService())
	assert.Equal(t, "u-1", p.UserID)
	assert.Equal(t, "admin@example.com", p.Email)
	assert.Equal(t, "user:u-1", p.Key())
}

func TestAuthenticate_NonAdminRole(t *testing.T) {
	m := newTestManager()
	tok, _, err := m.IssueToken(&domain.User{ID: "u-2", Email: "op@example.com", Role: domain.RoleUser})
	require.NoError(t, err)

	p, ok := m.Authenticate("Bearer " + tok)
	require.True(t, ok)
	assert.False(t, p.IsAdmin())
	assert.Equal(t, KindUser, p.Kind)
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	m := newTestManager()
	tok, _, err := m.IssueToken(adminUser())
	require.NoError(t, err)

	m.Now = func() time.Time { return fixedNow.Add(2 * time.Hour) }
	_, ok := m.Authenticate("Bearer " + tok)
	assert.False(t, ok)
}

func TestAuthenticate_WrongSecret(t *testing.T) {
	m := newTestManager()
	tok, _, err := m.IssueToken(adminUser())
	require.NoError(t, err)

	other := newTestManager()
	other.Secret = []byte("different")
	_, ok := other.Authenticate("Bearer " + tok)
	assert.False(t, ok)
}

func TestParse_RejectsOtherAlgorithms(t *testing.T) {
	m := newTestManager()
	claims := Claims{
		Role: domain.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-1",
			ExpiresAt: jwt.NewNumericDate(fixedNow.Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(m.Secret)
	require.NoError(t, err)

	_, err = m.Parse(tok)
	assert.Error(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Parse(none)
	assert.Error(t, err)
}

func TestParse_RequiresExpiryAndSubject(t *testing.T) {
	m := newTestManager()

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             domain.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1"},
	}).SignedString(m.Secret)
	require.NoError(t, err)
	_, err = m.Parse(noExp)
	assert.Error(t, err)

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             domain.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(fixedNow.Add(time.Hour))},
	}).SignedString(m.Secret)
	require.NoError(t, err)
	_, err = m.Parse(noSub)
	assert.Error(t, err)
}

func TestIssueToken_RequiresSecret(t *testing.T) {
	m := newTestManager()
	m.Secret = nil
	_, _, err := m.IssueToken(adminUser())
	assert.Error(t, err)
	_, err = m.Parse("x.y.z")
	assert.Error(t, err)
}
