// Package services – CategoryService
//
// This file implements CategoryService and the category status reconciler.
// A category's status is a materialized view over its zip requests: it is
// active while at least one of them is not done. Reconcile recomputes the
// view and writes only the differences, each as an independent
// compare-and-set, so concurrent runs converge instead of fighting.
//
// ReconcileBestEffort is the single entry point for callers that must not
// fail because reconciliation failed (zip-request mutations and category
// listings). It logs and counts the error instead of returning it.
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/leadops-backend/internal/domain"
	"github.com/tbourn/leadops-backend/internal/observability"
	"github.com/tbourn/leadops-backend/internal/repo"
)

// maxCategoryNameRunes bounds category names.
const maxCategoryNameRunes = 255

var spaceRunRE = regexp.MustCompile(`\s+`)

// CategoryRepo defines the repository contract required by CategoryService.
type CategoryRepo interface {
	CreateCategory(ctx context.Context, db *gorm.DB, c *domain.Category) error
	GetCategory(ctx context.Context, db *gorm.DB, id string) (*domain.Category, error)
	GetCategoryByName(ctx context.Context, db *gorm.DB, name string) (*domain.Category, error)
	ListCategories(ctx context.Context, db *gorm.DB, status string) ([]domain.Category, error)
	CategoryZipStatuses(ctx context.Context, db *gorm.DB) ([]repo.CategoryZipStatus, error)
	SetCategoryStatusIf(ctx context.Context, db *gorm.DB, id, from, to string) (bool, error)
}

// CategoryService manages categories and keeps their status reconciled.
type CategoryService struct {
	DB   *gorm.DB
	Repo CategoryRepo
}

// NewCategoryService constructs a CategoryService.
func NewCategoryService(db *gorm.DB, r CategoryRepo) *CategoryService {
	return &CategoryService{DB: db, Repo: r}
}

// ComputeCategoryStatus derives a category's status from its zip requests:
// active if any request is not done, inactive otherwise (including none).
func ComputeCategoryStatus(zipRequests []domain.ZipRequest) string {
	for _, z := range zipRequests {
		if z.Status != domain.ZipStatusDone {
			return domain.CategoryActive
		}
	}
	return domain.CategoryInactive
}

// Reconcile recomputes every category's status and persists the ones that
// differ from what is stored. It returns how many rows changed. A second run
// with no intervening mutation changes nothing.
func (s *CategoryService) Reconcile(ctx context.Context) (int, error) {
	ctx, span := observability.Tracer("services/CategoryService").Start(ctx, "Reconcile")
	defer span.End()

	cats, err := s.Repo.ListCategories(ctx, s.DB, "")
	if err != nil {
		recordSpanError(span, err)
		return 0, fmt.Errorf("load categories: %w", err)
	}
	rows, err := s.Repo.CategoryZipStatuses(ctx, s.DB)
	if err != nil {
		recordSpanError(span, err)
		return 0, fmt.Errorf("load zip statuses: %w", err)
	}

	byCategory := make(map[string][]domain.ZipRequest, len(cats))
	for _, r := range rows {
		byCategory[r.CategoryID] = append(byCategory[r.CategoryID], domain.ZipRequest{Status: r.Status})
	}

	changed := 0
	for _, c := range cats {
		want := ComputeCategoryStatus(byCategory[c.ID])
		if want == c.Status {
			continue
		}
		ok, err := s.Repo.SetCategoryStatusIf(ctx, s.DB, c.ID, c.Status, want)
		if err != nil {
			recordSpanError(span, err)
			observability.ReconcileChanges.Add(float64(changed))
			return changed, fmt.Errorf("update category %s: %w", c.ID, err)
		}
		if ok {
			changed++
		}
	}

	observability.ReconcileChanges.Add(float64(changed))
	span.SetAttributes(
		attribute.Int("categories.total", len(cats)),
		attribute.Int("categories.changed", changed),
	)
	return changed, nil
}

// ReconcileBestEffort runs Reconcile and swallows any error after logging it
// and incrementing category_reconcile_failures_total. A missed run is healed
// by the next mutation, listing, or scheduled sweep.
func (s *CategoryService) ReconcileBestEffort(ctx context.Context) {
	changed, err := s.Reconcile(ctx)
	lg := loggerFrom(ctx)
	if err != nil {
		observability.ReconcileFailures.Inc()
		lg.Warn().Err(err).Int("changed", changed).Msg("category reconcile failed")
		return
	}
	if changed > 0 {
		lg.Debug().Int("changed", changed).Msg("category statuses reconciled")
	}
}

// Create inserts a category. name is normalized (NFC, collapsed whitespace);
// status defaults to inactive.
func (s *CategoryService) Create(ctx context.Context, name, status string) (*domain.Category, error) {
	name, err := normalizeCategoryName(name)
	if err != nil {
		return nil, err
	}
	status = strings.TrimSpace(status)
	if status == "" {
		status = domain.CategoryInactive
	}
	if !domain.ValidCategoryStatus(status) {
		return nil, invalid("status", "must be one of: active, inactive")
	}

	c := &domain.Category{ID: uuid.NewString(), Name: name, Status: status}
	if err := s.Repo.CreateCategory(ctx, s.DB, c); err != nil {
		if repo.IsUniqueViolation(err) {
			return nil, ErrCategoryExists
		}
		return nil, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

// List reconciles (best effort) and returns categories ordered by name,
// optionally filtered by status.
func (s *CategoryService) List(ctx context.Context, status string) ([]domain.Category, error) {
	status = strings.TrimSpace(status)
	if status != "" && !domain.ValidCategoryStatus(status) {
		return nil, invalid("status", "must be one of: active, inactive")
	}
	s.ReconcileBestEffort(ctx)

	out, err := s.Repo.ListCategories(ctx, s.DB, status)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if out == nil {
		out = []domain.Category{}
	}
	return out, nil
}

// Get returns category id or ErrCategoryNotFound.
func (s *CategoryService) Get(ctx context.Context, id string) (*domain.Category, error) {
	c, err := s.Repo.GetCategory(ctx, s.DB, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// ResolveOrCreate returns the category called name, creating it (inactive)
// when missing. A concurrent creator winning the race is not an error.
func (s *CategoryService) ResolveOrCreate(ctx context.Context, name string) (*domain.Category, error) {
	name, err := normalizeCategoryName(name)
	if err != nil {
		return nil, err
	}
	c, err := s.Repo.GetCategoryByName(ctx, s.DB, name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup category: %w", err)
	}

	c, err = s.Create(ctx, name, domain.CategoryInactive)
	if errors.Is(err, ErrCategoryExists) {
		if c, err = s.Repo.GetCategoryByName(ctx, s.DB, name); err != nil {
			return nil, fmt.Errorf("lookup category: %w", err)
		}
		return c, nil
	}
	return c, err
}

// normalizeCategoryName applies NFC and collapses whitespace so visually
// identical names collide on the unique index.
func normalizeCategoryName(name string) (string, error) {
	name = spaceRunRE.ReplaceAllString(strings.TrimSpace(norm.NFC.String(name)), " ")
	if name == "" {
		return "", invalid("name", "name is required")
	}
	if utf8.RuneCountInString(name) > maxCategoryNameRunes {
		return "", invalid("name", fmt.Sprintf("name must be at most %d characters", maxCategoryNameRunes))
	}
	return name, nil
}

// loggerFrom returns the request-scoped logger attached by the HTTP layer,
// or the global logger for background callers.
func loggerFrom(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}
