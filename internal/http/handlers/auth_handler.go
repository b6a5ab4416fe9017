// Auth and user HTTP handlers.
//
//   - POST /auth/login  (public; issues a JWT)
//   - GET  /auth/me     (current principal)
//   - POST /users       (admin)
//   - GET  /users       (admin)
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/leadops-backend/internal/domain"
	"github.com/tbourn/leadops-backend/internal/http/middleware"
)

// LoginRequest carries dashboard credentials.
type LoginRequest struct {
	Email    string `json:"email"    example:"admin@example.com"`
	Password string `json:"password" example:"correct horse battery staple"`
}

// LoginResponse carries a bearer token for subsequent requests.
type LoginResponse struct {
	Success   bool         `json:"success"   example:"true"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *domain.User `json:"user"`
}

// MeResponse describes the authenticated caller.
type MeResponse struct {
	Success bool      `json:"success" example:"true"`
	Data    Principal `json:"data"`
}

// Principal is the public view of the authenticated caller.
type Principal struct {
	Kind   string `json:"kind"             example:"user"`
	UserID string `json:"userId,omitempty" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	Email  string `json:"email,omitempty"  example:"admin@example.com"`
	Role   string `json:"role,omitempty"   example:"admin"`
}

// CreateUserRequest creates a dashboard account.
type CreateUserRequest struct {
	Email    string `json:"email"    example:"ops@example.com"`
	Password string `json:"password" example:"at-least-8-chars"`
	Role     string `json:"role"     example:"user"`
}

// UserResponse wraps one user.
type UserResponse struct {
	Success bool         `json:"success" example:"true"`
	Data    *domain.User `json:"data"`
}

// ListUsersResponse wraps all users.
type ListUsersResponse struct {
	Success bool          `json:"success" example:"true"`
	Data    []domain.User `json:"data"`
}

// Login godoc
// @ID          login
// @Summary     Log in
// @Description Exchanges email and password for a signed bearer token.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.LoginRequest  true  "Credentials"
// @Success     200  {object}  handlers.LoginResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid credentials"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	res, err := h.Users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, http.StatusOK, LoginResponse{Success: true, Token: res.Token, ExpiresAt: res.ExpiresAt, User: res.User})
}

// Me godoc
// @ID          me
// @Summary     Current principal
// @Tags        Auth
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.MeResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /auth/me [get]
func (h *Handlers) Me(c *gin.Context) {
	p := middleware.PrincipalFrom(c)
	ok(c, http.StatusOK, MeResponse{Success: true, Data: Principal{
		Kind:   p.Kind,
		UserID: p.UserID,
		Email:  p.Email,
		Role:   p.Role,
	}})
}

// CreateUser godoc
// @ID          createUser
// @Summary     Create a user
// @Tags        Users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.CreateUserRequest  true  "User"
// @Success     201  {object}  handlers.UserResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     409  {object}  handlers.ErrorResponse  "Email already exists"
// @Router      /users [post]
func (h *Handlers) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	u, err := h.Users.Create(c.Request.Context(), req.Email, req.Password, req.Role)
	if err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, UserResponse{Success: true, Data: u})
}

// ListUsers godoc
// @ID          listUsers
// @Summary     List users
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.ListUsersResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /users [get]
func (h *Handlers) ListUsers(c *gin.Context) {
	users, err := h.Users.List(c.Request.Context())
	if err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListUsersResponse{Success: true, Data: users})
}
