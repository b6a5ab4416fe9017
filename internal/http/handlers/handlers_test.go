package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/leadops-backend/internal/domain"
	"github.com/tbourn/leadops-backend/internal/services"
)

// ---------- test DB ----------

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := db.AutoMigrate(&domain.Category{}, &domain.ZipRequest{}, &domain.Idempotency{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// ---------- service stubs ----------

type stubLeads struct {
	ingest       func(context.Context, map[string]any) (*domain.Lead, bool, error)
	list         func(context.Context, string, int, int) (services.PageResult[domain.Lead], error)
	createManual func(context.Context, services.ManualLeadInput) (*domain.Lead, error)
	get          func(context.Context, string) (*domain.Lead, error)
	update       func(context.Context, string, services.WorkflowPatch) (*domain.Lead, error)
	del          func(context.Context, string) error
	stats        func(context.Context) (services.LeadStats, error)
}

func (s stubLeads) Ingest(ctx context.Context, raw map[string]any) (*domain.Lead, bool, error) {
	return s.ingest(ctx, raw)
}

func (s stubLeads) List(ctx context.Context, st string, p, l int) (services.PageResult[domain.Lead], error) {
	return s.list(ctx, st, p, l)
}

func (s stubLeads) CreateManual(ctx context.Context, in services.ManualLeadInput) (*domain.Lead, error) {
	return s.createManual(ctx, in)
}

func (s stubLeads) Get(ctx context.Context, id string) (*domain.Lead, error) { return s.get(ctx, id) }

func (s stubLeads) UpdateWorkflow(ctx context.Context, id string, p services.WorkflowPatch) (*domain.Lead, error) {
	return s.update(ctx, id, p)
}

func (s stubLeads) Delete(ctx context.Context, id string) error { return s.del(ctx, id) }

func (s stubLeads) Stats(ctx context.Context) (services.LeadStats, error) { return s.stats(ctx) }

type stubCategories struct {
	create    func(context.Context, string, string) (*domain.Category, error)
	list      func(context.Context, string) ([]domain.Category, error)
	reconcile func(context.Context) (int, error)
}

func (s stubCategories) Create(ctx context.Context, name, status string) (*domain.Category, error) {
	return s.create(ctx, name, status)
}

func (s stubCategories) List(ctx context.Context, status string) ([]domain.Category, error) {
	return s.list(ctx, status)
}

func (s stubCategories) Reconcile(ctx context.Context) (int, error) { return s.reconcile(ctx) }

type stubZips struct {
	create       func(context.Context, services.ZipRequestInput) (*domain.ZipRequest, error)
	get          func(context.Context, string) (*domain.ZipRequest, error)
	updateStatus func(context.Context, string, string) (*domain.ZipRequest, error)
	del          func(context.Context, string) error
	list         func(context.Context, string, int, int) (services.PageResult[domain.ZipRequest], error)
}

func (s stubZips) Create(ctx context.Context, in services.ZipRequestInput) (*domain.ZipRequest, error) {
	return s.create(ctx, in)
}

func (s stubZips) Get(ctx context.Context, id string) (*domain.ZipRequest, error) {
	return s.get(ctx, id)
}

func (s stubZips) UpdateStatus(ctx context.Context, id, st string) (*domain.ZipRequest, error) {
	return s.updateStatus(ctx, id, st)
}

func (s stubZips) Delete(ctx context.Context, id string) error { return s.del(ctx, id) }

func (s stubZips) List(ctx context.Context, st string, p, l int) (services.PageResult[domain.ZipRequest], error) {
	return s.list(ctx, st, p, l)
}

type stubUsers struct {
	login  func(context.Context, string, string) (*services.LoginResult, error)
	create func(context.Context, string, string, string) (*domain.User, error)
	list   func(context.Context) ([]domain.User, error)
}

func (s stubUsers) Login(ctx context.Context, e, p string) (*services.LoginResult, error) {
	return s.login(ctx, e, p)
}

func (s stubUsers) Create(ctx context.Context, e, p, r string) (*domain.User, error) {
	return s.create(ctx, e, p, r)
}

func (s stubUsers) List(ctx context.Context) ([]domain.User, error) { return s.list(ctx) }

// ---------- request helpers ----------

// newTestHandlers runs async work inline so assertions can follow the request.
func newTestHandlers(d Deps) *Handlers {
	h := New(d)
	h.async = func(f func()) { f() }
	return h
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-test")
		c.Next()
	})
	return r
}

func doJSON(r http.Handler, method, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v (body=%s)", v, err, w.Body.String())
	}
	return v
}
