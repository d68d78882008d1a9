// Package domain defines the core persistence models for the application.
// This file holds the per-conversation interview state that backs the
// ten-question state machine.
package domain

import "time"

// Interview question numbers. QuestionComplete is the terminal value reached
// after the tenth answer is accepted and the profile is persisted.
const (
	QuestionFirst    = 1
	QuestionLast     = 10
	QuestionComplete = 11
)

// InterviewState is the durable working record of one chat's interview:
// which question is pending, the raw answers collected so far, and the
// clarification sub-state. It is keyed by chat and deleted (not archived)
// once a profile has been persisted for the chat.
//
// Invariant: Answers never contains a key for a question at or beyond
// QuestionNumber unless the interview has completed.
type InterviewState struct {
	ChatID         string            `json:"chat_id"         gorm:"type:varchar(64);primaryKey"`
	QuestionNumber int               `json:"question_number" gorm:"not null"`
	Answers        map[string]string `json:"answers"         gorm:"serializer:json;type:text"`

	WaitingForClarification bool   `json:"waiting_for_clarification" gorm:"not null;default:false"`
	ClarificationQuestion   string `json:"clarification_question"    gorm:"type:text"`
	ClarificationCount      int    `json:"clarification_count"       gorm:"not null;default:0"`

	GroupName string    `json:"group_name" gorm:"type:varchar(255)"`
	AgentID   string    `json:"agent_id"   gorm:"type:varchar(64)"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for InterviewState.
func (InterviewState) TableName() string { return "interview_states" }

// Complete reports whether the interview has reached its terminal state.
func (s *InterviewState) Complete() bool { return s.QuestionNumber > QuestionLast }

// Corrupt reports whether the question counter is outside the valid range.
// Corrupt states are recovered by resetting to the first question.
func (s *InterviewState) Corrupt() bool {
	return s.QuestionNumber < QuestionFirst || s.QuestionNumber > QuestionComplete
}

// MissingAnswer returns the number of the first question whose answer key is
// absent, or 0 when all ten answers are present.
func (s *InterviewState) MissingAnswer() int {
	for i, key := range AnswerKeys {
		if v, ok := s.Answers[key]; !ok || v == "" {
			return i + 1
		}
	}
	return 0
}
