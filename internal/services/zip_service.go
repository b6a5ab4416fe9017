// Package services – ZipRequestService
//
// A zip request asks the external workflow to scrape one zip code for one
// category. Every mutation is followed by a best-effort category reconcile,
// and creation additionally fires the workflow trigger. Neither of those
// side effects can fail the request: the row is already committed.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/leadops-backend/internal/domain"
	"github.com/tbourn/leadops-backend/internal/observability"
	"github.com/tbourn/leadops-backend/internal/utils"
	"github.com/tbourn/leadops-backend/internal/workflow"
)

// maxZipCodeLen matches the zip_code column width.
const maxZipCodeLen = 16

// ZipRepo defines the repository contract required by ZipRequestService.
type ZipRepo interface {
	CreateZipRequest(ctx context.Context, db *gorm.DB, z *domain.ZipRequest) error
	GetZipRequest(ctx context.Context, db *gorm.DB, id string) (*domain.ZipRequest, error)
	CountZipRequests(ctx context.Context, db *gorm.DB, status string) (int64, error)
	ListZipRequestsPage(ctx context.Context, db *gorm.DB, status string, offset, limit int) ([]domain.ZipRequest, error)
	UpdateZipRequestStatus(ctx context.Context, db *gorm.DB, id, status string) error
	DeleteZipRequest(ctx context.Context, db *gorm.DB, id string) error
}

// ZipRequestService manages zip requests.
type ZipRequestService struct {
	DB         *gorm.DB
	Repo       ZipRepo
	Categories *CategoryService
	Trigger    workflow.Trigger

	DefaultPageSize int
	MaxPageSize     int
}

// NewZipRequestService constructs a ZipRequestService. A nil trigger is
// replaced with workflow.Noop.
func NewZipRequestService(db *gorm.DB, r ZipRepo, cats *CategoryService, t workflow.Trigger) *ZipRequestService {
	if t == nil {
		t = workflow.Noop{}
	}
	return &ZipRequestService{
		DB:              db,
		Repo:            r,
		Categories:      cats,
		Trigger:         t,
		DefaultPageSize: 20,
		MaxPageSize:     100,
	}
}

// ZipRequestInput is a zip request submission. NewCategoryName, when set,
// takes precedence over CategoryID and is resolved or created inline.
type ZipRequestInput struct {
	ZipCode         string
	CategoryID      *string
	NewCategoryName *string
}

// Create validates in, stores a pending zip request, reconciles categories
// and fires the workflow trigger.
func (s *ZipRequestService) Create(ctx context.Context, in ZipRequestInput) (*domain.ZipRequest, error) {
	zip := strings.TrimSpace(in.ZipCode)
	if zip == "" {
		return nil, invalid("zip_code", "zip_code is required")
	}
	if utf8.RuneCountInString(zip) > maxZipCodeLen {
		return nil, invalid("zip_code", fmt.Sprintf("zip_code must be at most %d characters", maxZipCodeLen))
	}

	var cat *domain.Category
	switch {
	case trimmedOrNil(in.NewCategoryName) != nil:
		c, err := s.Categories.ResolveOrCreate(ctx, *in.NewCategoryName)
		if err != nil {
			return nil, err
		}
		cat = c
	case trimmedOrNil(in.CategoryID) != nil:
		c, err := s.Categories.Get(ctx, strings.TrimSpace(*in.CategoryID))
		if err != nil {
			return nil, err
		}
		cat = c
	}

	z := &domain.ZipRequest{
		ID:      uuid.NewString(),
		ZipCode: zip,
		Status:  domain.ZipStatusPending,
	}
	if cat != nil {
		z.CategoryID = &cat.ID
	}
	if err := s.Repo.CreateZipRequest(ctx, s.DB, z); err != nil {
		return nil, fmt.Errorf("create zip request: %w", err)
	}

	s.Categories.ReconcileBestEffort(ctx)
	s.fireTrigger(ctx, z, cat)
	return z, nil
}

func (s *ZipRequestService) fireTrigger(ctx context.Context, z *domain.ZipRequest, cat *domain.Category) {
	ev := workflow.ZipRequestedEvent{
		ZipRequestID: z.ID,
		ZipCode:      z.ZipCode,
		CategoryID:   z.CategoryID,
		RequestedAt:  z.CreatedAt,
	}
	if ev.RequestedAt.IsZero() {
		ev.RequestedAt = time.Now().UTC()
	}
	if cat != nil {
		name := cat.Name
		ev.CategoryName = &name
	}
	if err := s.Trigger.ZipRequested(ctx, ev); err != nil {
		observability.WorkflowTriggerErrors.WithLabelValues(s.Trigger.Name()).Inc()
		loggerFrom(ctx).Error().
			Err(err).
			Str("driver", s.Trigger.Name()).
			Str("zip_request_id", z.ID).
			Msg("workflow trigger failed")
	}
}

// Get returns zip request id or ErrZipRequestNotFound.
func (s *ZipRequestService) Get(ctx context.Context, id string) (*domain.ZipRequest, error) {
	z, err := s.Repo.GetZipRequest(ctx, s.DB, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrZipRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get zip request: %w", err)
	}
	return z, nil
}

// UpdateStatus moves zip request id to status and reconciles categories.
func (s *ZipRequestService) UpdateStatus(ctx context.Context, id, status string) (*domain.ZipRequest, error) {
	status = strings.TrimSpace(status)
	if !domain.ValidZipStatus(status) {
		return nil, invalid("status", "must be one of: "+strings.Join(domain.ZipStatuses, ", "))
	}
	err := s.Repo.UpdateZipRequestStatus(ctx, s.DB, id, status)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrZipRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update zip request: %w", err)
	}
	s.Categories.ReconcileBestEffort(ctx)
	return s.Get(ctx, id)
}

// Delete removes zip request id and reconciles categories.
func (s *ZipRequestService) Delete(ctx context.Context, id string) error {
	err := s.Repo.DeleteZipRequest(ctx, s.DB, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrZipRequestNotFound
	}
	if err != nil {
		return fmt.Errorf("delete zip request: %w", err)
	}
	s.Categories.ReconcileBestEffort(ctx)
	return nil
}

// List returns one page of zip requests, newest first.
func (s *ZipRequestService) List(ctx context.Context, status string, page, limit int) (PageResult[domain.ZipRequest], error) {
	status = strings.TrimSpace(status)
	if status != "" && !domain.ValidZipStatus(status) {
		return PageResult[domain.ZipRequest]{}, invalid("status", "must be one of: "+strings.Join(domain.ZipStatuses, ", "))
	}
	p := utils.Paginate(page, limit, s.DefaultPageSize, s.MaxPageSize)

	total, err := s.Repo.CountZipRequests(ctx, s.DB, status)
	if err != nil {
		return PageResult[domain.ZipRequest]{}, fmt.Errorf("count zip requests: %w", err)
	}
	items := []domain.ZipRequest{}
	if total > 0 {
		if items, err = s.Repo.ListZipRequestsPage(ctx, s.DB, status, p.Offset, p.Limit); err != nil {
			return PageResult[domain.ZipRequest]{}, fmt.Errorf("list zip requests: %w", err)
		}
	}
	return newPageResult(items, total, p), nil
}
