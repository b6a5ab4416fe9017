// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, authentication, logging/redaction, panic
// recovery, metrics, CORS, compression, security headers, idempotency, and
// rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → auth → logging → recovery)
//   - Deterministic router setup; all dependencies injected
//   - Every business route carries an explicit authorization guard
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/leadops-backend/docs"
	"github.com/tbourn/leadops-backend/internal/config"
	"github.com/tbourn/leadops-backend/internal/domain"
	"github.com/tbourn/leadops-backend/internal/http/handlers"
	"github.com/tbourn/leadops-backend/internal/http/middleware"
	"github.com/tbourn/leadops-backend/internal/repo"
	"github.com/tbourn/leadops-backend/internal/services"
	"github.com/tbourn/leadops-backend/internal/workflow"
)

// leadRepoShim adapts the repository free functions to services.LeadRepo.
type leadRepoShim struct{}

// UpsertLead proxies repo.UpsertLead.
func (leadRepoShim) UpsertLead(ctx context.Context, db *gorm.DB, l *domain.Lead) (*domain.Lead, bool, error) {
	return repo.UpsertLead(ctx, db, l)
}

// CreateLead proxies repo.CreateLead.
func (leadRepoShim) CreateLead(ctx context.Context, db *gorm.DB, l *domain.Lead) error {
	return repo.CreateLead(ctx, db, l)
}

// CountLeads proxies repo.CountLeads.
func (leadRepoShim) CountLeads(ctx context.Context, db *gorm.DB, status string) (int64, error) {
	return repo.CountLeads(ctx, db, status)
}

// ListLeadsPage proxies repo.ListLeadsPage.
func (leadRepoShim) ListLeadsPage(ctx context.Context, db *gorm.DB, status string, offset, limit int) ([]domain.Lead, error) {
	return repo.ListLeadsPage(ctx, db, status, offset, limit)
}

// GetLead proxies repo.GetLead.
func (leadRepoShim) GetLead(ctx context.Context, db *gorm.DB, id string) (*domain.Lead, error) {
	return repo.GetLead(ctx, db, id)
}

// UpdateLeadWorkflow proxies repo.UpdateLeadWorkflow.
func (leadRepoShim) UpdateLeadWorkflow(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	return repo.UpdateLeadWorkflow(ctx, db, id, fields)
}

// DeleteLead proxies repo.DeleteLead.
func (leadRepoShim) DeleteLead(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteLead(ctx, db, id)
}

// LeadStatusCounts proxies repo.LeadStatusCounts.
func (leadRepoShim) LeadStatusCounts(ctx context.Context, db *gorm.DB) (map[string]int64, error) {
	return repo.LeadStatusCounts(ctx, db)
}

// categoryRepoShim adapts the repository free functions to
// services.CategoryRepo and services.CategoryLookup.
type categoryRepoShim struct{}

// CreateCategory proxies repo.CreateCategory.
func (categoryRepoShim) CreateCategory(ctx context.Context, db *gorm.DB, c *domain.Category) error {
	return repo.CreateCategory(ctx, db, c)
}

// GetCategory proxies repo.GetCategory.
func (categoryRepoShim) GetCategory(ctx context.Context, db *gorm.DB, id string) (*domain.Category, error) {
	return repo.GetCategory(ctx, db, id)
}

// GetCategoryByName proxies repo.GetCategoryByName.
func (categoryRepoShim) GetCategoryByName(ctx context.Context, db *gorm.DB, name string) (*domain.Category, error) {
	return repo.GetCategoryByName(ctx, db, name)
}

// ListCategories proxies repo.ListCategories.
func (categoryRepoShim) ListCategories(ctx context.Context, db *gorm.DB, status string) ([]domain.Category, error) {
	return repo.ListCategories(ctx, db, status)
}

// CategoryZipStatuses proxies repo.CategoryZipStatuses.
func (categoryRepoShim) CategoryZipStatuses(ctx context.Context, db *gorm.DB) ([]repo.CategoryZipStatus, error) {
	return repo.CategoryZipStatuses(ctx, db)
}

// SetCategoryStatusIf proxies repo.SetCategoryStatusIf.
func (categoryRepoShim) SetCategoryStatusIf(ctx context.Context, db *gorm.DB, id, from, to string) (bool, error) {
	return repo.SetCategoryStatusIf(ctx, db, id, from, to)
}

// zipRepoShim adapts the repository free functions to services.ZipRepo.
type zipRepoShim struct{}

// CreateZipRequest proxies repo.CreateZipRequest.
func (zipRepoShim) CreateZipRequest(ctx context.Context, db *gorm.DB, z *domain.ZipRequest) error {
	return repo.CreateZipRequest(ctx, db, z)
}

// GetZipRequest proxies repo.GetZipRequest.
func (zipRepoShim) GetZipRequest(ctx context.Context, db *gorm.DB, id string) (*domain.ZipRequest, error) {
	return repo.GetZipRequest(ctx, db, id)
}

// CountZipRequests proxies repo.CountZipRequests.
func (zipRepoShim) CountZipRequests(ctx context.Context, db *gorm.DB, status string) (int64, error) {
	return repo.CountZipRequests(ctx, db, status)
}

// ListZipRequestsPage proxies repo.ListZipRequestsPage.
func (zipRepoShim) ListZipRequestsPage(ctx context.Context, db *gorm.DB, status string, offset, limit int) ([]domain.ZipRequest, error) {
	return repo.ListZipRequestsPage(ctx, db, status, offset, limit)
}

// UpdateZipRequestStatus proxies repo.UpdateZipRequestStatus.
func (zipRepoShim) UpdateZipRequestStatus(ctx context.Context, db *gorm.DB, id, status string) error {
	return repo.UpdateZipRequestStatus(ctx, db, id, status)
}

// DeleteZipRequest proxies repo.DeleteZipRequest.
func (zipRepoShim) DeleteZipRequest(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteZipRequest(ctx, db, id)
}

// userRepoShim adapts the repository free functions to services.UserRepo.
type userRepoShim struct{}

// CreateUser proxies repo.CreateUser.
func (userRepoShim) CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	return repo.CreateUser(ctx, db, u)
}

// GetUserByEmail proxies repo.GetUserByEmail.
func (userRepoShim) GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	return repo.GetUserByEmail(ctx, db, email)
}

// GetUser proxies repo.GetUser.
func (userRepoShim) GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	return repo.GetUser(ctx, db, id)
}

// ListUsers proxies repo.ListUsers.
func (userRepoShim) ListUsers(ctx context.Context, db *gorm.DB) ([]domain.User, error) {
	return repo.ListUsers(ctx, db)
}

// Services bundles the application services shared by the router and the
// background jobs.
type Services struct {
	Leads      *services.LeadService
	Categories *services.CategoryService
	Zips       *services.ZipRequestService
	Users      *services.UserService
}

// NewServices builds the application services over db. A nil trigger
// disables workflow dispatch.
func NewServices(db *gorm.DB, cfg config.Config, tokens services.TokenIssuer, trigger workflow.Trigger) Services {
	if trigger == nil {
		trigger = workflow.Noop{}
	}
	cats := services.NewCategoryService(db, categoryRepoShim{})

	leads := services.NewLeadService(db, leadRepoShim{}, categoryRepoShim{})
	zips := services.NewZipRequestService(db, zipRepoShim{}, cats, trigger)
	if cfg.DefaultPageSize > 0 {
		leads.DefaultPageSize, zips.DefaultPageSize = cfg.DefaultPageSize, cfg.DefaultPageSize
	}
	if cfg.MaxPageSize > 0 {
		leads.MaxPageSize, zips.MaxPageSize = cfg.MaxPageSize, cfg.MaxPageSize
	}

	return Services{
		Leads:      leads,
		Categories: cats,
		Zips:       zips,
		Users:      services.NewUserService(db, userRepoShim{}, tokens),
	}
}

// Options carries the collaborators RegisterRoutes injects into handlers.
type Options struct {
	// Auth resolves the Authorization header into a principal.
	Auth middleware.Authenticator
	// Services are the application services behind the handlers.
	Services Services
	// Notifier is told about newly ingested leads. Nil disables notifications.
	Notifier handlers.LeadNotifier
}

// idempotencyLookup serves replays from the idempotency table.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, principal, scope, key string, now time.Time) (middleware.ReplayRecord, bool, error) {
		rec, err := repo.GetIdempotency(ctx, db, principal, scope, key, now)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return middleware.ReplayRecord{}, false, nil
			}
			return middleware.ReplayRecord{}, false, err
		}
		return middleware.ReplayRecord{ResourceID: rec.ResourceID, Status: rec.Status}, true, nil
	}
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), authentication,
// idempotency and rate limiting, CORS, compression and security headers,
// health, metrics and swagger endpoints, and then mounts the versioned API
// under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Authenticate: resolve the principal (never rejects)
//  4. RedactingLogger: structured logs with PII scrubbing
//  5. Recovery: capture panics after logger
//  6. Body size limiter
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per principal/IP, admin tier, bypass on replay)
//  10. CORS, gzip and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config, opts Options) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Identify the caller so logs and limits can key on it
	r.Use(middleware.Authenticate(opts.Auth))

	// 4) Structured logging, redacted unless disabled
	if cfg.LogRedact {
		r.Use(middleware.RedactingLogger(middleware.RedactOptions{
			MaskHeaders: []string{"X-API-Key"},
		}))
	} else {
		r.Use(middleware.Logger())
	}

	// 5) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 6) Global body size limit (1 MiB)
	r.Use(middleware.BodyLimit(middleware.DefaultMaxBodyBytes))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, idempotencyLookup(db)))

	// 9) Token-bucket rate limiter per principal/IP, admins on their own tier
	r.Use(middleware.Tiered(
		middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByPrincipalOrIP()),
		middleware.NewRateLimiter(cfg.AdminRateRPS, cfg.AdminRateBurst, middleware.KeyByPrincipalOrIP()),
	))

	// 10) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey, "If-None-Match"}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", "Retry-After", "Idempotency-Replayed"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist.
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	d := handlers.Deps{
		DB:             db,
		Production:     cfg.IsProduction(),
		IdempotencyTTL: cfg.IdempotencyTTL,
		Notifier:       opts.Notifier,
	}
	// Typed nils must not leak into the handler interfaces.
	if s := opts.Services; s.Leads != nil {
		d.Leads = s.Leads
	}
	if s := opts.Services; s.Categories != nil {
		d.Categories = s.Categories
	}
	if s := opts.Services; s.Zips != nil {
		d.Zips = s.Zips
	}
	if s := opts.Services; s.Users != nil {
		d.Users = s.Users
	}
	h := handlers.New(d)

	serviceOrAdmin := middleware.RequireServiceOrAdmin()
	admin := middleware.RequireAdmin()

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Leads
		api.POST("/leads", serviceOrAdmin, h.IngestLead)
		api.GET("/leads", serviceOrAdmin, h.ListLeads)
		api.GET("/leads/stats", admin, h.LeadStats)
		api.POST("/leads/manual", admin, h.CreateManualLead)
		api.GET("/leads/:id", admin, h.GetLead)
		api.PATCH("/leads/:id", admin, h.UpdateLead)
		api.DELETE("/leads/:id", admin, h.DeleteLead)

		// Categories
		api.POST("/categories", serviceOrAdmin, h.CreateCategory)
		api.GET("/categories", serviceOrAdmin, h.ListCategories)
		api.POST("/categories/reconcile", admin, h.ReconcileCategories)

		// Zip requests
		api.POST("/zip-requests", admin, h.CreateZipRequest)
		api.GET("/zip-requests", serviceOrAdmin, h.ListZipRequests)
		api.PATCH("/zip-requests/:id/status", serviceOrAdmin, h.UpdateZipRequestStatus)
		api.DELETE("/zip-requests/:id", admin, h.DeleteZipRequest)

		// Auth and users
		api.POST("/auth/login", h.Login)
		api.GET("/auth/me", admin, h.Me)
		api.POST("/users", admin, h.CreateUser)
		api.GET("/users", admin, h.ListUsers)
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
