// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for zip-code
// scrape requests.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/leadops-backend/internal/domain"
)

// CreateZipRequest inserts z. The caller sets ID and Status.
func CreateZipRequest(ctx context.Context, db *gorm.DB, z *domain.ZipRequest) error {
	return db.WithContext(ctx).Create(z).Error
}

// GetZipRequest fetches a zip request by id.
func GetZipRequest(ctx context.Context, db *gorm.DB, id string) (*domain.ZipRequest, error) {
	var z domain.ZipRequest
	if err := db.WithContext(ctx).Where("id = ?", id).First(&z).Error; err != nil {
		return nil, err
	}
	return &z, nil
}

func zipQuery(ctx context.Context, db *gorm.DB, status string) *gorm.DB {
	q := db.WithContext(ctx).Model(&domain.ZipRequest{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	return q
}

// CountZipRequests returns the number of zip requests, optionally restricted
// to status.
func CountZipRequests(ctx context.Context, db *gorm.DB, status string) (int64, error) {
	var total int64
	err := zipQuery(ctx, db, status).Count(&total).Error
	return total, err
}

// ListZipRequestsPage returns a page of zip requests, newest first.
func ListZipRequestsPage(ctx context.Context, db *gorm.DB, status string, offset, limit int) ([]domain.ZipRequest, error) {
	var out []domain.ZipRequest
	err := zipQuery(ctx, db, status).
		Order("created_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateZipRequestStatus sets the status of zip request id. It returns
// ErrNotFound if no row matched.
func UpdateZipRequestStatus(ctx context.Context, db *gorm.DB, id, status string) error {
	res := db.WithContext(ctx).
		Model(&domain.ZipRequest{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteZipRequest removes zip request id, or returns ErrNotFound.
func DeleteZipRequest(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.ZipRequest{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
