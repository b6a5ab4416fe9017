// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for categories and
// the zip-request projection the status reconciler reads.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/leadops-backend/internal/domain"
)

// CategoryZipStatus is one (category_id, status) pair from zip_requests.
type CategoryZipStatus struct {
	CategoryID string
	Status     string
}

// CreateCategory inserts c. A duplicate name surfaces as a unique violation
// (see IsUniqueViolation).
func CreateCategory(ctx context.Context, db *gorm.DB, c *domain.Category) error {
	return db.WithContext(ctx).Create(c).Error
}

// GetCategory fetches a category by id.
func GetCategory(ctx context.Context, db *gorm.DB, id string) (*domain.Category, error) {
	var c domain.Category
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCategoryByName fetches a category by its exact (normalized) name.
func GetCategoryByName(ctx context.Context, db *gorm.DB, name string) (*domain.Category, error) {
	var c domain.Category
	if err := db.WithContext(ctx).Where("name = ?", name).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCategories returns categories ordered by name, optionally restricted
// to status.
func ListCategories(ctx context.Context, db *gorm.DB, status string) ([]domain.Category, error) {
	var out []domain.Category
	q := db.WithContext(ctx).Order("name asc")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Find(&out).Error
	return out, err
}

// CategoryZipStatuses returns the status of every zip request that references
// a category. Unassigned zip requests are skipped.
func CategoryZipStatuses(ctx context.Context, db *gorm.DB) ([]CategoryZipStatus, error) {
	var out []CategoryZipStatus
	err := db.WithContext(ctx).
		Model(&domain.ZipRequest{}).
		Select("category_id, status").
		Where("category_id IS NOT NULL").
		Scan(&out).Error
	return out, err
}

// SetCategoryStatusIf moves category id from status from to status to, only
// if it still holds from. It reports whether a row changed. Each call is an
// independent compare-and-set, so overlapping reconcilers cannot undo each
// other's newer writes with a stale read.
func SetCategoryStatusIf(ctx context.Context, db *gorm.DB, id, from, to string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Category{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
