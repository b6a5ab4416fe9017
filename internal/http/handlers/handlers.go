// Package handlers contains the HTTP endpoints of the leadops API.
//
// Handlers are transport-thin: they bind and validate input, call the
// application services, and translate results and errors into the JSON
// envelopes defined in response.go. Authorization is enforced by middleware
// before a handler runs.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/leadops-backend/internal/domain"
	"github.com/tbourn/leadops-backend/internal/services"
	"github.com/tbourn/leadops-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// LeadService is the lead lifecycle consumed by the lead endpoints.
type LeadService interface {
	Ingest(ctx context.Context, raw map[string]any) (*domain.Lead, bool, error)
	List(ctx context.Context, status string, page, limit int) (services.PageResult[domain.Lead], error)
	CreateManual(ctx context.Context, in services.ManualLeadInput) (*domain.Lead, error)
	Get(ctx context.Context, id string) (*domain.Lead, error)
	UpdateWorkflow(ctx context.Context, id string, patch services.WorkflowPatch) (*domain.Lead, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (services.LeadStats, error)
}

// CategoryService is consumed by the category endpoints.
type CategoryService interface {
	Create(ctx context.Context, name, status string) (*domain.Category, error)
	List(ctx context.Context, status string) ([]domain.Category, error)
	Reconcile(ctx context.Context) (int, error)
}

// ZipRequestService is consumed by the zip-request endpoints.
type ZipRequestService interface {
	Create(ctx context.Context, in services.ZipRequestInput) (*domain.ZipRequest, error)
	Get(ctx context.Context, id string) (*domain.ZipRequest, error)
	UpdateStatus(ctx context.Context, id, status string) (*domain.ZipRequest, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, status string, page, limit int) (services.PageResult[domain.ZipRequest], error)
}

// UserService is consumed by the auth and user endpoints.
type UserService interface {
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	Create(ctx context.Context, email, password, role string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}

// LeadNotifier is told about leads created by ingestion.
type LeadNotifier interface {
	LeadCreated(ctx context.Context, l *domain.Lead) error
}

//
// Handler wiring
//

// Deps are the collaborators of Handlers. Notifier and DB are optional: a nil
// Notifier disables new-lead emails, a nil DB disables list ETags and
// Idempotency-Key records.
type Deps struct {
	Leads      LeadService
	Categories CategoryService
	Zips       ZipRequestService
	Users      UserService
	Notifier   LeadNotifier
	DB         *gorm.DB

	// Production hides internal error details from clients.
	Production bool
	// IdempotencyTTL is how long a completed Idempotency-Key replays.
	IdempotencyTTL time.Duration
	// NotifyTimeout bounds each asynchronous notification.
	NotifyTimeout time.Duration
}

// Handlers groups every API endpoint.
type Handlers struct {
	Deps

	// async runs fire-and-forget work; tests replace it to run inline.
	async func(func())
}

// New constructs Handlers bound to d.
func New(d Deps) *Handlers {
	if d.IdempotencyTTL <= 0 {
		d.IdempotencyTTL = 24 * time.Hour
	}
	if d.NotifyTimeout <= 0 {
		d.NotifyTimeout = 30 * time.Second
	}
	return &Handlers{Deps: d, async: func(f func()) { go f() }}
}

//
// DTOs
//

// ListMeta carries pagination metadata, flattened into list envelopes.
type ListMeta struct {
	Total      int64 `json:"total"      example:"42"`
	Page       int   `json:"page"       example:"1"`
	Limit      int   `json:"limit"      example:"20"`
	TotalPages int   `json:"totalPages" example:"3"`
}

func listMeta[T any](p services.PageResult[T]) ListMeta {
	return ListMeta{Total: p.Total, Page: p.Page, Limit: p.Limit, TotalPages: p.TotalPages}
}

//
// Helpers
//

// pageParams reads page and limit; missing or malformed values become 0 and
// the service applies its defaults and caps.
func pageParams(c *gin.Context) (page, limit int) {
	return utils.AtoiDefault(c.Query("page"), 0), utils.AtoiDefault(c.Query("limit"), 0)
}

// uuidParam returns path parameter name in canonical lower-case hyphenated
// form, failing with 400 unless it is a UUID.
func uuidParam(c *gin.Context, name string) (string, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, name+" must be a UUID")
		return "", false
	}
	return id.String(), true
}

func (h *Handlers) failErr(c *gin.Context, err error) { failErr(c, err, h.Production) }
