// Package services – LeadService
//
// This file implements LeadService, which owns the lead lifecycle: idempotent
// ingestion from the external scraper (Ingest), paginated listing, and the
// operator-only operations (manual creation, workflow edits, deletion,
// dashboard counts).
//
// Ingest performs exactly one write and no outbound calls. Notification of
// newly created leads is the caller's concern.
//
// Observability: Ingest is traced and counted by outcome in
// leads_ingested_total.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/leadops-backend/internal/domain"
	"github.com/tbourn/leadops-backend/internal/observability"
	"github.com/tbourn/leadops-backend/internal/repo"
	"github.com/tbourn/leadops-backend/internal/utils"
)

// LeadRepo defines the repository contract required by LeadService.
type LeadRepo interface {
	// UpsertLead inserts or overwrites by place_id and reports whether it inserted.
	UpsertLead(ctx context.Context, db *gorm.DB, l *domain.Lead) (*domain.Lead, bool, error)
	// CreateLead inserts a lead as-is.
	CreateLead(ctx context.Context, db *gorm.DB, l *domain.Lead) error
	// CountLeads counts leads, optionally restricted to a status.
	CountLeads(ctx context.Context, db *gorm.DB, status string) (int64, error)
	// ListLeadsPage returns a page of leads, newest first.
	ListLeadsPage(ctx context.Context, db *gorm.DB, status string, offset, limit int) ([]domain.Lead, error)
	// GetLead fetches a lead by id.
	GetLead(ctx context.Context, db *gorm.DB, id string) (*domain.Lead, error)
	// UpdateLeadWorkflow applies a partial update of workflow columns.
	UpdateLeadWorkflow(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error
	// DeleteLead hard-deletes a lead.
	DeleteLead(ctx context.Context, db *gorm.DB, id string) error
	// LeadStatusCounts returns the number of leads per status.
	LeadStatusCounts(ctx context.Context, db *gorm.DB) (map[string]int64, error)
}

// CategoryLookup resolves a category id. LeadService uses it to turn an
// unknown categoryId into a validation error instead of a foreign key failure.
type CategoryLookup interface {
	GetCategory(ctx context.Context, db *gorm.DB, id string) (*domain.Category, error)
}

// LeadService implements lead ingestion and management.
type LeadService struct {
	DB         *gorm.DB
	Repo       LeadRepo
	Categories CategoryLookup

	// DefaultPageSize applies when the caller sends no limit.
	DefaultPageSize int
	// MaxPageSize is the hard cap on any page, whatever the caller asks for.
	MaxPageSize int
}

// NewLeadService constructs a LeadService with default page sizes (20, max 100).
func NewLeadService(db *gorm.DB, r LeadRepo, c CategoryLookup) *LeadService {
	return &LeadService{
		DB:              db,
		Repo:            r,
		Categories:      c,
		DefaultPageSize: 20,
		MaxPageSize:     100,
	}
}

// ManualLeadInput is an operator-entered lead. Title is required; PlaceID is
// generated when empty.
type ManualLeadInput struct {
	PlaceID      string
	Title        string
	Status       string
	Name         *string
	Email        *string
	Phone        *string
	Website      *string
	Address      *string
	PostalCode   *string
	BusinessType *string
	CategoryID   *string
	Action       *string
	Notes        *string
}

// WorkflowPatch carries the operator-owned fields of a lead. Nil fields are
// left untouched.
type WorkflowPatch struct {
	Status *string
	Action *string
	Notes  *string
}

// LeadStats is the per-status breakdown shown on the dashboard. Every known
// status is present, zero when no lead holds it.
type LeadStats struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"byStatus"`
}

// Ingest normalizes raw and upserts it by placeId. isNew is true only when
// this call created the row. Calling Ingest twice with the same payload
// leaves the store as a single call would.
func (s *LeadService) Ingest(ctx context.Context, raw map[string]any) (*domain.Lead, bool, error) {
	ctx, span := observability.Tracer("services/LeadService").Start(ctx, "Ingest")
	defer span.End()

	in, err := NormalizeIncomingLead(raw)
	if err != nil {
		observability.LeadsIngested.WithLabelValues(observability.IngestInvalid).Inc()
		return nil, false, err
	}
	span.SetAttributes(attribute.String("lead.place_id", in.PlaceID))

	if in.CategoryID != nil {
		if err := s.checkCategory(ctx, *in.CategoryID); err != nil {
			if IsValidation(err) {
				observability.LeadsIngested.WithLabelValues(observability.IngestInvalid).Inc()
			} else {
				observability.LeadsIngested.WithLabelValues(observability.IngestError).Inc()
			}
			return nil, false, err
		}
	}

	lead, isNew, err := s.Repo.UpsertLead(ctx, s.DB, in.Lead())
	if err != nil {
		observability.LeadsIngested.WithLabelValues(observability.IngestError).Inc()
		recordSpanError(span, err)
		return nil, false, fmt.Errorf("upsert lead: %w", err)
	}

	if isNew {
		observability.LeadsIngested.WithLabelValues(observability.IngestCreated).Inc()
	} else {
		observability.LeadsIngested.WithLabelValues(observability.IngestUpdated).Inc()
	}
	span.SetAttributes(attribute.Bool("lead.is_new", isNew))
	return lead, isNew, nil
}

// List returns one page of leads, newest first. An empty status lists all;
// an unknown status is a validation error. limit is clamped to MaxPageSize.
func (s *LeadService) List(ctx context.Context, status string, page, limit int) (PageResult[domain.Lead], error) {
	status = strings.TrimSpace(status)
	if status != "" && !domain.ValidLeadStatus(status) {
		return PageResult[domain.Lead]{}, invalid("status", "must be one of: "+strings.Join(domain.LeadStatuses, ", "))
	}
	p := utils.Paginate(page, limit, s.DefaultPageSize, s.MaxPageSize)

	total, err := s.Repo.CountLeads(ctx, s.DB, status)
	if err != nil {
		return PageResult[domain.Lead]{}, fmt.Errorf("count leads: %w", err)
	}
	items := []domain.Lead{}
	if total > 0 {
		if items, err = s.Repo.ListLeadsPage(ctx, s.DB, status, p.Offset, p.Limit); err != nil {
			return PageResult[domain.Lead]{}, fmt.Errorf("list leads: %w", err)
		}
	}
	return newPageResult(items, total, p), nil
}

// CreateManual inserts an operator-entered lead with isManual=true.
func (s *LeadService) CreateManual(ctx context.Context, in ManualLeadInput) (*domain.Lead, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalid("title", "title is required")
	}
	status := strings.TrimSpace(in.Status)
	if status == "" {
		status = domain.LeadStatusNew
	}
	if !domain.ValidLeadStatus(status) {
		return nil, invalid("status", "must be one of: "+strings.Join(domain.LeadStatuses, ", "))
	}
	placeID := strings.TrimSpace(in.PlaceID)
	if placeID == "" {
		placeID = "manual-" + uuid.NewString()
	}
	categoryID := trimmedOrNil(in.CategoryID)
	if categoryID != nil {
		if err := s.checkCategory(ctx, *categoryID); err != nil {
			return nil, err
		}
	}

	l := &domain.Lead{
		ID:           uuid.NewString(),
		PlaceID:      placeID,
		Title:        title,
		Name:         trimmedOrNil(in.Name),
		Email:        trimmedOrNil(in.Email),
		Phone:        trimmedOrNil(in.Phone),
		Website:      trimmedOrNil(in.Website),
		Address:      trimmedOrNil(in.Address),
		PostalCode:   trimmedOrNil(in.PostalCode),
		BusinessType: trimmedOrNil(in.BusinessType),
		CategoryID:   categoryID,
		Status:       status,
		Action:       trimmedOrNil(in.Action),
		Notes:        trimmedOrNil(in.Notes),
		IsManual:     true,
	}
	if err := s.Repo.CreateLead(ctx, s.DB, l); err != nil {
		if repo.IsUniqueViolation(err) {
			return nil, ErrPlaceIDExists
		}
		return nil, fmt.Errorf("create lead: %w", err)
	}
	return l, nil
}

// Get returns a lead by id or ErrLeadNotFound.
func (s *LeadService) Get(ctx context.Context, id string) (*domain.Lead, error) {
	l, err := s.Repo.GetLead(ctx, s.DB, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLeadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lead: %w", err)
	}
	return l, nil
}

// UpdateWorkflow applies patch to lead id and returns the updated lead. An
// empty patch is a read.
func (s *LeadService) UpdateWorkflow(ctx context.Context, id string, patch WorkflowPatch) (*domain.Lead, error) {
	fields := map[string]any{}
	if patch.Status != nil {
		st := strings.TrimSpace(*patch.Status)
		if !domain.ValidLeadStatus(st) {
			return nil, invalid("status", "must be one of: "+strings.Join(domain.LeadStatuses, ", "))
		}
		fields["status"] = st
	}
	if patch.Action != nil {
		fields["action"] = nullable(patch.Action)
	}
	if patch.Notes != nil {
		fields["notes"] = nullable(patch.Notes)
	}
	if len(fields) == 0 {
		return s.Get(ctx, id)
	}

	err := s.Repo.UpdateLeadWorkflow(ctx, s.DB, id, fields)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLeadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update lead: %w", err)
	}
	return s.Get(ctx, id)
}

// Delete removes lead id or returns ErrLeadNotFound.
func (s *LeadService) Delete(ctx context.Context, id string) error {
	err := s.Repo.DeleteLead(ctx, s.DB, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrLeadNotFound
	}
	if err != nil {
		return fmt.Errorf("delete lead: %w", err)
	}
	return nil
}

// Stats returns lead counts per status plus the total.
func (s *LeadService) Stats(ctx context.Context) (LeadStats, error) {
	counts, err := s.Repo.LeadStatusCounts(ctx, s.DB)
	if err != nil {
		return LeadStats{}, fmt.Errorf("lead stats: %w", err)
	}
	out := LeadStats{ByStatus: make(map[string]int64, len(domain.LeadStatuses))}
	for _, st := range domain.LeadStatuses {
		out.ByStatus[st] = counts[st]
		out.Total += counts[st]
	}
	return out, nil
}

func (s *LeadService) checkCategory(ctx context.Context, id string) error {
	if s.Categories == nil {
		return nil
	}
	_, err := s.Categories.GetCategory(ctx, s.DB, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return invalid("category_id", "unknown category")
	}
	if err != nil {
		return fmt.Errorf("lookup category: %w", err)
	}
	return nil
}

func trimmedOrNil(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return nil
	}
	return &s
}

// nullable is trimmedOrNil for map updates, where a typed nil pointer must
// become an untyped nil to be written as NULL.
func nullable(p *string) any {
	if v := trimmedOrNil(p); v != nil {
		return *v
	}
	return nil
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
