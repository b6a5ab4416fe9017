// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Lead model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a lead is not found, functions return ErrNotFound
//     (an alias of gorm.ErrRecordNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Functions:
//
//   - UpsertLead(ctx, db, lead) -> *domain.Lead, isNew, error
//     Inserts the lead or overwrites the business columns of the row with
//     the same place_id, in one statement.
//
//   - CreateLead(ctx, db, lead) -> error
//     Plain insert; duplicate place_id surfaces as a unique violation.
//
//   - CountLeads / ListLeadsPage
//     Paginated listing ordered by created_at desc, optionally filtered
//     by workflow status.
//
//   - GetLead, UpdateLeadWorkflow, DeleteLead
//     Single-row operations that return ErrNotFound when id is unknown.
package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/leadops-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for consistency across the service
// layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// leadUpsertColumns are overwritten when an ingested lead collides on
// place_id. id, created_at and the operator workflow columns (status,
// action, notes, is_manual) are deliberately absent.
var leadUpsertColumns = []string{
	"title",
	"name", "first_name", "last_name", "email", "phone",
	"website", "clean_url",
	"facebook", "instagram", "linkedin", "twitter", "youtube", "tiktok",
	"address", "postal_code", "latitude", "longitude",
	"business_type", "category_id",
	"rating", "review_count",
	"raw",
}

// UpsertLead inserts l, or when a row with the same place_id exists,
// overwrites that row's business columns with l's values. The write is a
// single INSERT ... ON CONFLICT statement, so concurrent callers cannot
// create duplicates.
//
// l.ID is replaced with a freshly generated UUID. After the write the row is
// re-read inside the same transaction; isNew reports whether the persisted
// id is the one generated here, which is true only when this call inserted.
func UpsertLead(ctx context.Context, db *gorm.DB, l *domain.Lead) (*domain.Lead, bool, error) {
	generated := uuid.NewString()
	l.ID = generated

	var out domain.Lead
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "place_id"}},
			DoUpdates: clause.AssignmentColumns(leadUpsertColumns),
		}).Create(l).Error
		if err != nil {
			return err
		}
		return tx.Where("place_id = ?", l.PlaceID).First(&out).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &out, out.ID == generated, nil
}

// CreateLead inserts a lead as-is. The caller sets ID.
func CreateLead(ctx context.Context, db *gorm.DB, l *domain.Lead) error {
	return db.WithContext(ctx).Create(l).Error
}

func leadsQuery(ctx context.Context, db *gorm.DB, status string) *gorm.DB {
	q := db.WithContext(ctx).Model(&domain.Lead{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	return q
}

// CountLeads returns the number of leads, optionally restricted to status.
func CountLeads(ctx context.Context, db *gorm.DB, status string) (int64, error) {
	var total int64
	err := leadsQuery(ctx, db, status).Count(&total).Error
	return total, err
}

// ListLeadsPage returns a page of leads ordered by creation time descending
// (id breaks ties so pages are stable). An empty status lists everything.
func ListLeadsPage(ctx context.Context, db *gorm.DB, status string, offset, limit int) ([]domain.Lead, error) {
	var out []domain.Lead
	err := leadsQuery(ctx, db, status).
		Order("created_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetLead fetches a single lead by id.
func GetLead(ctx context.Context, db *gorm.DB, id string) (*domain.Lead, error) {
	var l domain.Lead
	if err := db.WithContext(ctx).Where("id = ?", id).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// GetLeadByPlaceID fetches a single lead by its external identifier.
func GetLeadByPlaceID(ctx context.Context, db *gorm.DB, placeID string) (*domain.Lead, error) {
	var l domain.Lead
	if err := db.WithContext(ctx).Where("place_id = ?", placeID).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// UpdateLeadWorkflow applies a partial update of operator-owned columns.
// Keys of fields must be column names (status, action, notes). It returns
// ErrNotFound when no row has the given id.
func UpdateLeadWorkflow(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.Lead{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteLead hard-deletes a lead so its place_id can be ingested again.
func DeleteLead(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Lead{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
