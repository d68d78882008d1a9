// Package domain defines the persistence models for interview states, group
// profiles, and match records. These types are mapped with GORM and form the
// core data layer of the group-matchmaker application.
package domain

import (
	"sort"
	"strings"
	"time"
)

// Answer keys for the ten interview questions. Profiles store one named
// column per key; the interview state keeps a working map keyed by these.
const (
	KeyGroupName       = "group_name"
	KeyGroupSize       = "group_size"
	KeyFictionalCrew   = "fictional_crew"
	KeyMusicTaste      = "music_taste"
	KeyIdealActivity   = "ideal_activity"
	KeyGroupEmoji      = "group_emoji"
	KeyRandomObsession = "random_obsession"
	KeySideQuestStory  = "side_quest_story"
	KeyDreamMatch      = "dream_match"
	KeyAvailability    = "availability"
)

// AnswerKeys lists all interview answer keys in question order (1..10).
var AnswerKeys = []string{
	KeyGroupName,
	KeyGroupSize,
	KeyFictionalCrew,
	KeyMusicTaste,
	KeyIdealActivity,
	KeyGroupEmoji,
	KeyRandomObsession,
	KeySideQuestStory,
	KeyDreamMatch,
	KeyAvailability,
}

// GroupProfile is a completed interview: ten validated answers plus the chat
// that produced them. Profiles are immutable once created and live until
// explicitly deleted.
//
// NameKey is the case-folded group name backing the global case-insensitive
// uniqueness constraint; it is derived, never set by callers directly.
type GroupProfile struct {
	ID        string `json:"id"         gorm:"type:char(36);primaryKey"`
	GroupName string `json:"group_name" gorm:"type:varchar(255);not null"`
	NameKey   string `json:"-"          gorm:"type:varchar(255);not null;uniqueIndex:ux_profile_name"`
	ChatID    string `json:"chat_id"    gorm:"type:varchar(64);not null;index:idx_profile_chat"`

	GroupSize       string `json:"group_size"       gorm:"type:text;not null"`
	FictionalCrew   string `json:"fictional_crew"   gorm:"type:text;not null"`
	MusicTaste      string `json:"music_taste"      gorm:"type:text;not null"`
	IdealActivity   string `json:"ideal_activity"   gorm:"type:text;not null"`
	GroupEmoji      string `json:"group_emoji"      gorm:"type:text;not null"`
	RandomObsession string `json:"random_obsession" gorm:"type:text;not null"`
	SideQuestStory  string `json:"side_quest_story" gorm:"type:text;not null"`
	DreamMatch      string `json:"dream_match"      gorm:"type:text;not null"`
	Availability    string `json:"availability"     gorm:"type:text;not null"`

	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// TableName returns the database table name for GroupProfile.
func (GroupProfile) TableName() string { return "group_profiles" }

// Answers returns the profile's answer fields as a map keyed by answer key.
func (p *GroupProfile) Answers() map[string]string {
	return map[string]string{
		KeyGroupName:       p.GroupName,
		KeyGroupSize:       p.GroupSize,
		KeyFictionalCrew:   p.FictionalCrew,
		KeyMusicTaste:      p.MusicTaste,
		KeyIdealActivity:   p.IdealActivity,
		KeyGroupEmoji:      p.GroupEmoji,
		KeyRandomObsession: p.RandomObsession,
		KeySideQuestStory:  p.SideQuestStory,
		KeyDreamMatch:      p.DreamMatch,
		KeyAvailability:    p.Availability,
	}
}

// NormalizeName folds a group name for case-insensitive comparison.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// CompatibilityBreakdown decomposes a final score into its components.
type CompatibilityBreakdown struct {
	Quantitative float64 `json:"quantitative"` // weighted rule-based score, 0..1
	Qualitative  float64 `json:"qualitative"`  // raw LLM score, 0..100
	SizeMatch    float64 `json:"size_match"`   // size-similarity factor, 0..1
}

// MatchRecord stores the outcome of one pairwise compatibility computation.
// At most one record exists per unordered group-name pair: PairKey is the
// sorted, case-folded pair identity backing that constraint, and recomputing
// a pair replaces the prior record.
type MatchRecord struct {
	ID         string `json:"id"          gorm:"type:char(36);primaryKey"`
	Group1Name string `json:"group1_name" gorm:"type:varchar(255);not null"`
	Group2Name string `json:"group2_name" gorm:"type:varchar(255);not null"`
	PairKey    string `json:"-"           gorm:"type:varchar(512);not null;uniqueIndex:ux_match_pair"`

	Score      float64 `json:"score"      gorm:"not null"` // 0..1
	Percentage float64 `json:"percentage" gorm:"not null"` // 0..100

	Quantitative float64 `json:"quantitative" gorm:"not null"`
	Qualitative  float64 `json:"qualitative"  gorm:"not null"`
	SizeMatch    float64 `json:"size_match"   gorm:"not null"`

	MatchedAt   time.Time `json:"matched_at"`
	IsBestMatch bool      `json:"is_best_match" gorm:"not null;default:false;index"`
}

// TableName returns the database table name for MatchRecord.
func (MatchRecord) TableName() string { return "match_records" }

// Breakdown returns the record's score components.
func (m *MatchRecord) Breakdown() CompatibilityBreakdown {
	return CompatibilityBreakdown{
		Quantitative: m.Quantitative,
		Qualitative:  m.Qualitative,
		SizeMatch:    m.SizeMatch,
	}
}

// PairKey derives the canonical unordered-pair identity for two group names.
// It is symmetric: PairKey(a, b) == PairKey(b, a).
func PairKey(a, b string) string {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na > nb {
		na, nb = nb, na
	}
	return na + "|" + nb
}

// SortedPair returns the two names ordered by their normalized form, so that
// records persist a deterministic group1/group2 orientation.
func SortedPair(a, b string) (string, string) {
	pair := []string{a, b}
	sort.Slice(pair, func(i, j int) bool {
		return NormalizeName(pair[i]) < NormalizeName(pair[j])
	})
	return pair[0], pair[1]
}
