// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// InterviewState model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a state is not found, functions return ErrNotFound
//     (aliasing gorm.ErrRecordNotFound).
//   - On other DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/a1baseai/mandy-group-matcher/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// GetInterviewState fetches the interview state for chatID, or ErrNotFound.
func GetInterviewState(ctx context.Context, db *gorm.DB, chatID string) (*domain.InterviewState, error) {
	var s domain.InterviewState
	err := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	if s.Answers == nil {
		s.Answers = make(map[string]string)
	}
	return &s, nil
}

// CreateInterviewState inserts a fresh state for chatID positioned at the
// first question, stamped with UTC timestamps.
func CreateInterviewState(ctx context.Context, db *gorm.DB, chatID, agentID string) (*domain.InterviewState, error) {
	now := time.Now().UTC()
	s := &domain.InterviewState{
		ChatID:         chatID,
		QuestionNumber: domain.QuestionFirst,
		Answers:        make(map[string]string),
		AgentID:        agentID,
		StartedAt:      now,
		UpdatedAt:      now,
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// SaveInterviewState persists the full current state (question counter,
// answer map, clarification sub-state) for its chat.
func SaveInterviewState(ctx context.Context, db *gorm.DB, s *domain.InterviewState) error {
	s.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Save(s).Error
}

// DeleteInterviewState removes the state for chatID. Deleting a missing
// state is not an error; completion and deletion can race benignly.
func DeleteInterviewState(ctx context.Context, db *gorm.DB, chatID string) error {
	err := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Delete(&domain.InterviewState{}).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
