// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// MatchRecord model, including the idempotent unordered-pair upsert.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/a1baseai/mandy-group-matcher/internal/domain"
)

// UpsertMatch inserts a match record or, when a record for the same
// unordered pair already exists, replaces its scores in place. The pair key
// and group orientation are derived here so callers cannot create two rows
// for {A,B} and {B,A}.
func UpsertMatch(ctx context.Context, db *gorm.DB, m *domain.MatchRecord) (*domain.MatchRecord, error) {
	m.Group1Name, m.Group2Name = domain.SortedPair(m.Group1Name, m.Group2Name)
	m.PairKey = domain.PairKey(m.Group1Name, m.Group2Name)
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.MatchedAt.IsZero() {
		m.MatchedAt = time.Now().UTC()
	}

	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "pair_key"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"score", "percentage",
				"quantitative", "qualitative", "size_match",
				"matched_at", "is_best_match",
			}),
		}).
		Create(m).Error
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetMatchByPair fetches the record for an unordered pair, or ErrNotFound.
func GetMatchByPair(ctx context.Context, db *gorm.DB, a, b string) (*domain.MatchRecord, error) {
	var m domain.MatchRecord
	err := db.WithContext(ctx).
		Where("pair_key = ?", domain.PairKey(a, b)).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMatches returns all match records, best match first, then descending
// by score.
func ListMatches(ctx context.Context, db *gorm.DB) ([]domain.MatchRecord, error) {
	var out []domain.MatchRecord
	err := db.WithContext(ctx).
		Order("is_best_match desc, score desc, pair_key asc").
		Find(&out).Error
	return out, err
}

// GetBestMatch fetches the record flagged as the global best pair, or
// ErrNotFound when no matching run has completed.
func GetBestMatch(ctx context.Context, db *gorm.DB) (*domain.MatchRecord, error) {
	var m domain.MatchRecord
	err := db.WithContext(ctx).
		Where("is_best_match = ?", true).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ClearMatches deletes all match records. Matching runs call this before
// recomputing so reruns never accumulate stale pairs.
func ClearMatches(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).
		Where("1 = 1").
		Delete(&domain.MatchRecord{}).Error
}

// CountMatches returns the number of stored match records.
func CountMatches(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.MatchRecord{}).
		Count(&total).Error
	return total, err
}
