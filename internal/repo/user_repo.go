// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for dashboard users.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/leadops-backend/internal/domain"
)

// CreateUser inserts u. A duplicate email surfaces as a unique violation.
func CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	return db.WithContext(ctx).Create(u).Error
}

// GetUserByEmail fetches a user by lower-cased email.
func GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser fetches a user by id.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns all users ordered by email.
func ListUsers(ctx context.Context, db *gorm.DB) ([]domain.User, error) {
	var out []domain.User
	err := db.WithContext(ctx).Order("email asc").Find(&out).Error
	return out, err
}
