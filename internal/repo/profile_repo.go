// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// GroupProfile model, including the case-insensitive group-name uniqueness
// constraint.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/a1baseai/mandy-group-matcher/internal/domain"
)

// ErrDuplicate indicates a uniqueness violation (group name or match pair).
var ErrDuplicate = errors.New("duplicate")

// CreateProfile inserts a completed profile. The name key is derived here so
// callers cannot bypass the case-insensitive uniqueness constraint; a racing
// insert with the same name loses on the unique index and maps to
// ErrDuplicate.
func CreateProfile(ctx context.Context, db *gorm.DB, p *domain.GroupProfile) (*domain.GroupProfile, error) {
	now := time.Now().UTC()
	p.ID = uuid.NewString()
	p.NameKey = domain.NormalizeName(p.GroupName)
	p.CreatedAt = now
	if p.CompletedAt.IsZero() {
		p.CompletedAt = now
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return p, nil
}

// GetProfileByName fetches a profile by group name, case-insensitively.
// Returns ErrNotFound when absent.
func GetProfileByName(ctx context.Context, db *gorm.DB, name string) (*domain.GroupProfile, error) {
	var p domain.GroupProfile
	err := db.WithContext(ctx).
		Where("name_key = ?", domain.NormalizeName(name)).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProfileByChat fetches the most recent profile produced by chatID.
// Returns ErrNotFound when the chat has never completed an interview.
func GetProfileByChat(ctx context.Context, db *gorm.DB, chatID string) (*domain.GroupProfile, error) {
	var p domain.GroupProfile
	err := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at desc").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ProfileNameExists reports whether a profile with the given name exists,
// comparing case-insensitively.
func ProfileNameExists(ctx context.Context, db *gorm.DB, name string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.GroupProfile{}).
		Where("name_key = ?", domain.NormalizeName(name)).
		Count(&n).Error
	return n > 0, err
}

// ListProfiles returns all profiles ordered by creation time ascending.
// Iteration order is the tie-break for equal compatibility scores, so it
// must be deterministic.
func ListProfiles(ctx context.Context, db *gorm.DB) ([]domain.GroupProfile, error) {
	var out []domain.GroupProfile
	err := db.WithContext(ctx).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, err
}

// CountProfiles returns the total number of stored profiles.
func CountProfiles(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.GroupProfile{}).
		Count(&total).Error
	return total, err
}

// ListProfilesPage returns a page of profiles ordered by creation time.
func ListProfilesPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.GroupProfile, error) {
	var out []domain.GroupProfile
	err := db.WithContext(ctx).
		Order("created_at asc, id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// DeleteProfileByName removes a profile by group name (case-insensitive).
// Returns ErrNotFound when no row was affected.
func DeleteProfileByName(ctx context.Context, db *gorm.DB, name string) error {
	res := db.WithContext(ctx).
		Where("name_key = ?", domain.NormalizeName(name)).
		Delete(&domain.GroupProfile{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// isUniqueViolation recognizes unique-constraint failures across the error
// shapes the pure-Go sqlite driver produces.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}
