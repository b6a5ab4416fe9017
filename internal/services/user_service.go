// Package services – UserService
//
// Dashboard operators log in with email and password and receive a signed
// token. Passwords are stored as bcrypt hashes only.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/leadops-backend/internal/domain"
	"github.com/tbourn/leadops-backend/internal/repo"
)

const minPasswordLen = 8

// UserRepo defines the repository contract required by UserService.
type UserRepo interface {
	CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error
	GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error)
	GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error)
	ListUsers(ctx context.Context, db *gorm.DB) ([]domain.User, error)
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	IssueToken(u *domain.User) (string, time.Time, error)
}

// UserService manages dashboard users and logins.
type UserService struct {
	DB     *gorm.DB
	Repo   UserRepo
	Tokens TokenIssuer

	// HashCost is the bcrypt cost; tests lower it.
	HashCost int
}

// NewUserService constructs a UserService with bcrypt.DefaultCost.
func NewUserService(db *gorm.DB, r UserRepo, t TokenIssuer) *UserService {
	return &UserService{DB: db, Repo: r, Tokens: t, HashCost: bcrypt.DefaultCost}
}

// LoginResult is a successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

var emailFolder = cases.Lower(language.Und)

// maxEmailLen matches the users.email column width.
const maxEmailLen = 320

// normalizeEmail lower-cases and validates an address.
func normalizeEmail(email string) (string, error) {
	email = emailFolder.String(strings.TrimSpace(email))
	if email == "" {
		return "", invalid("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || len(email) > maxEmailLen {
		return "", invalid("email", "email is invalid")
	}
	return email, nil
}

// Login verifies credentials and issues a token. Unknown email and wrong
// password both yield ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = emailFolder.String(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := s.Repo.GetUserByEmail(ctx, s.DB, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	tok, exp, err := s.Tokens.IssueToken(u)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &LoginResult{Token: tok, ExpiresAt: exp, User: u}, nil
}

// Create adds a user. role defaults to "user".
func (s *UserService) Create(ctx context.Context, email, password, role string) (*domain.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLen {
		return nil, invalid("password", fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}
	role = strings.TrimSpace(role)
	if role == "" {
		role = domain.RoleUser
	}
	if !domain.ValidRole(role) {
		return nil, invalid("role", "must be one of: admin, user")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost())
	if err != nil {
		// bcrypt rejects passwords longer than 72 bytes.
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, invalid("password", "password is too long")
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.Repo.CreateUser(ctx, s.DB, u); err != nil {
		if repo.IsUniqueViolation(err) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Get returns user id or ErrUserNotFound.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.Repo.GetUser(ctx, s.DB, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// List returns all users ordered by email.
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	out, err := s.Repo.ListUsers(ctx, s.DB)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if out == nil {
		out = []domain.User{}
	}
	return out, nil
}

// EnsureAdmin creates an admin with the given credentials unless a user with
// that email already exists. It reports whether a user was created. Empty
// credentials are a no-op.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return false, nil
	}
	norm, err := normalizeEmail(email)
	if err != nil {
		return false, err
	}
	_, err = s.Repo.GetUserByEmail(ctx, s.DB, norm)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("lookup admin: %w", err)
	}
	if _, err := s.Create(ctx, norm, password, domain.RoleAdmin); err != nil {
		if errors.Is(err, ErrEmailExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *UserService) cost() int {
	if s.HashCost == 0 {
		return bcrypt.DefaultCost
	}
	return s.HashCost
}
