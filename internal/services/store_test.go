package services

import (
	"context"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/leadops-backend/internal/domain"
	"github.com/tbourn/leadops-backend/internal/repo"
)

// ----- SQLite-backed fixtures -----

// newServiceDB opens a private, fully migrated in-memory database.
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type leadStore struct{}

func (leadStore) UpsertLead(ctx context.Context, db *gorm.DB, l *domain.Lead) (*domain.Lead, bool, error) {
	return repo.UpsertLead(ctx, db, l)
}
func (leadStore) CreateLead(ctx context.Context, db *gorm.DB, l *domain.Lead) error {
	return repo.CreateLead(ctx, db, l)
}
func (leadStore) CountLeads(ctx context.Context, db *gorm.DB, status string) (int64, error) {
	return repo.CountLeads(ctx, db, status)
}
func (leadStore) ListLeadsPage(ctx context.Context, db *gorm.DB, status string, offset, limit int) ([]domain.Lead, error) {
	return repo.ListLeadsPage(ctx, db, status, offset, limit)
}
func (leadStore) GetLead(ctx context.Context, db *gorm.DB, id string) (*domain.Lead, error) {
	return repo.GetLead(ctx, db, id)
}
func (leadStore) UpdateLeadWorkflow(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	return repo.UpdateLeadWorkflow(ctx, db, id, fields)
}
func (leadStore) DeleteLead(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteLead(ctx, db, id)
}
func (leadStore) LeadStatusCounts(ctx context.Context, db *gorm.DB) (map[string]int64, error) {
	return repo.LeadStatusCounts(ctx, db)
}

type categoryStore struct{}

func (categoryStore) CreateCategory(ctx context.Context, db *gorm.DB, c *domain.Category) error {
	return repo.CreateCategory(ctx, db, c)
}
func (categoryStore) GetCategory(ctx context.Context, db *gorm.DB, id string) (*domain.Category, error) {
	return repo.GetCategory(ctx, db, id)
}
func (categoryStore) GetCategoryByName(ctx context.Context, db *gorm.DB, name string) (*domain.Category, error) {
	return repo.GetCategoryByName(ctx, db, name)
}
func (categoryStore) ListCategories(ctx context.Context, db *gorm.DB, status string) ([]domain.Category, error) {
	return repo.ListCategories(ctx, db, status)
}
func (categoryStore) CategoryZipStatuses(ctx context.Context, db *gorm.DB) ([]repo.CategoryZipStatus, error) {
	return repo.CategoryZipStatuses(ctx, db)
}
func (categoryStore) SetCategoryStatusIf(ctx context.Context, db *gorm.DB, id, from, to string) (bool, error) {
	return repo.SetCategoryStatusIf(ctx, db, id, from, to)
}

type zipStore struct{}

func (zipStore) CreateZipRequest(ctx context.Context, db *gorm.DB, z *domain.ZipRequest) error {
	return repo.CreateZipRequest(ctx, db, z)
}
func (zipStore) GetZipRequest(ctx context.Context, db *gorm.DB, id string) (*domain.ZipRequest, error) {
	return repo.GetZipRequest(ctx, db, id)
}
func (zipStore) CountZipRequests(ctx context.Context, db *gorm.DB, status string) (int64, error) {
	return repo.CountZipRequests(ctx, db, status)
}
func (zipStore) ListZipRequestsPage(ctx context.Context, db *gorm.DB, status string, offset, limit int) ([]domain.ZipRequest, error) {
	return repo.ListZipRequestsPage(ctx, db, status, offset, limit)
}
func (zipStore) UpdateZipRequestStatus(ctx context.Context, db *gorm.DB, id, status string) error {
	return repo.UpdateZipRequestStatus(ctx, db, id, status)
}
func (zipStore) DeleteZipRequest(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteZipRequest(ctx, db, id)
}

type userStore struct{}

func (userStore) CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	return repo.CreateUser(ctx, db, u)
}
func (userStore) GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	return repo.GetUserByEmail(ctx, db, email)
}
func (userStore) GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	return repo.GetUser(ctx, db, id)
}
func (userStore) ListUsers(ctx context.Context, db *gorm.DB) ([]domain.User, error) {
	return repo.ListUsers(ctx, db)
}

// testServices wires every service over one database.
type testServices struct {
	db    *gorm.DB
	leads *LeadService
	cats  *CategoryService
	zips  *ZipRequestService
	users *UserService
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()
	db := newServiceDB(t)
	cats := NewCategoryService(db, categoryStore{})
	users := NewUserService(db, userStore{}, fakeTokens{})
	users.HashCost = bcrypt.MinCost
	return &testServices{
		db:    db,
		leads: NewLeadService(db, leadStore{}, categoryStore{}),
		cats:  cats,
		zips:  NewZipRequestService(db, zipStore{}, cats, nil),
		users: users,
	}
}

func sp(s string) *string { return &s }
