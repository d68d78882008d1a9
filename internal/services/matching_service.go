package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/a1baseai/mandy-group-matcher/internal/config"
	"github.com/a1baseai/mandy-group-matcher/internal/domain"
	"github.com/a1baseai/mandy-group-matcher/internal/llm"
	"github.com/a1baseai/mandy-group-matcher/internal/repo"
)

// neutralQualitative is the fallback LLM score when the qualitative call
// fails, returns garbage, or goes out of range.
const neutralQualitative = 50.0

// extraMatchesPerGroup caps the ranked matches persisted per group beyond
// the global best pair.
const extraMatchesPerGroup = 3

// MatchRunSummary reports the outcome of one full matching run.
type MatchRunSummary struct {
	Profiles int                 `json:"profiles"`
	Pairs    int                 `json:"pairs_scored"`
	Records  int                 `json:"records_persisted"`
	Best     *domain.MatchRecord `json:"best_match"`
	Elapsed  string              `json:"elapsed"`
}

// MatchingService computes pairwise compatibility between group profiles and
// orchestrates explicit full matching runs. Profile creation never triggers
// matching; runs happen only through RunMatching.
//
// The qualitative half of every pair score is one LLM call, so runs are
// bounded two ways: a token-bucket limiter on call rate and a semaphore on
// in-flight calls. At most one run executes at a time.
type MatchingService struct {
	DB  *gorm.DB
	LLM llm.TextGenerator

	limiter       *rate.Limiter
	maxConcurrent int
	topKDefault   int
	running       atomic.Bool
}

func NewMatchingService(db *gorm.DB, gen llm.TextGenerator, cfg config.MatchingConfig) *MatchingService {
	return &MatchingService{
		DB:            db,
		LLM:           gen,
		limiter:       rate.NewLimiter(rate.Limit(cfg.LLMRPS), cfg.LLMBurst),
		maxConcurrent: cfg.MaxConcurrent,
		topKDefault:   cfg.TopKDefault,
	}
}

// TopKDefault returns the configured default K for per-group rankings.
func (s *MatchingService) TopKDefault() int { return s.topKDefault }

// Compatibility scores one pair: the deterministic quantitative half anchors
// the LLM qualitative half, combined as 0.4×quant + 0.6×qual. The result is
// not persisted.
func (s *MatchingService) Compatibility(ctx context.Context, a, b *domain.GroupProfile) domain.MatchRecord {
	quant, sizeMatch := Quantitative(a, b)
	qual := s.qualitative(ctx, a, b)

	final := 0.4*quant + 0.6*(qual/100)
	return domain.MatchRecord{
		Group1Name:   a.GroupName,
		Group2Name:   b.GroupName,
		Score:        final,
		Percentage:   math.Round(final*1000) / 10,
		Quantitative: quant,
		Qualitative:  qual,
		SizeMatch:    sizeMatch,
		MatchedAt:    time.Now().UTC(),
	}
}

const qualitativePrompt = `You rate the compatibility of two friend groups for a group-to-group match.
Weigh, in this order of importance: similarity of group size; shared interests
(music, activities, obsessions); alignment of what each group says it wants in
a match; general cultural fit from the remaining answers.

Reply with a single integer from 0 to 100 and nothing else.`

// qualitative asks the LLM for a 0..100 fit score for the pair, degrading to
// a neutral 50 on any fault so one flaky call never corrupts a run.
func (s *MatchingService) qualitative(ctx context.Context, a, b *domain.GroupProfile) float64 {
	if err := s.limiter.Wait(ctx); err != nil {
		qualitativeFallbacks.Inc()
		return neutralQualitative
	}

	var p strings.Builder
	writeAnswerSet(&p, "Group A", a)
	writeAnswerSet(&p, "Group B", b)

	raw, err := s.LLM.GenerateText(ctx, p.String(), llm.Options{
		SystemPrompt: qualitativePrompt,
		Temperature:  0.2,
	})
	if err != nil {
		log.Warn().Err(err).Str("group1", a.GroupName).Str("group2", b.GroupName).
			Msg("qualitative score fell back to neutral")
		qualitativeFallbacks.Inc()
		return neutralQualitative
	}

	score, ok := parseQualitative(raw)
	if !ok {
		log.Warn().Str("raw", raw).Msg("unparseable qualitative score, using neutral")
		qualitativeFallbacks.Inc()
		return neutralQualitative
	}
	return score
}

func writeAnswerSet(b *strings.Builder, label string, p *domain.GroupProfile) {
	fmt.Fprintf(b, "%s:\n", label)
	answers := p.Answers()
	for _, key := range domain.AnswerKeys {
		fmt.Fprintf(b, "  %s: %s\n", key, answers[key])
	}
	b.WriteString("\n")
}

// parseQualitative extracts the integer verdict from the model's reply.
// Values outside 0..100 are rejected, not clamped.
func parseQualitative(raw string) (float64, bool) {
	trimmed := strings.TrimSpace(raw)
	if n, err := strconv.Atoi(trimmed); err == nil {
		if n >= 0 && n <= 100 {
			return float64(n), true
		}
		return 0, false
	}
	m := intRE.FindString(trimmed)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil || n < 0 || n > 100 {
		return 0, false
	}
	return float64(n), true
}

// RunMatching recomputes compatibility for every unordered profile pair and
// replaces all stored match records: the single global best pair (flagged),
// plus up to three additional ranked matches per group. At most one run may
// be in flight; concurrent calls get ErrMatchRunInProgress.
func (s *MatchingService) RunMatching(ctx context.Context) (*MatchRunSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		matchingRuns.WithLabelValues("rejected").Inc()
		return nil, ErrMatchRunInProgress
	}
	defer s.running.Store(false)

	started := time.Now()

	profiles, err := repo.ListProfiles(ctx, s.DB)
	if err != nil {
		matchingRuns.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	if len(profiles) < 2 {
		matchingRuns.WithLabelValues("rejected").Inc()
		return nil, ErrNotEnoughProfiles
	}

	type pair struct{ i, j int }
	var pairs []pair
	for i := range profiles {
		for j := i + 1; j < len(profiles); j++ {
			pairs = append(pairs, pair{i, j})
		}
	}

	records := make([]domain.MatchRecord, len(pairs))
	sem := make(chan struct{}, s.maxConcurrent)
	var wg sync.WaitGroup
	for idx, pr := range pairs {
		wg.Add(1)
		go func(idx int, pr pair) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			records[idx] = s.Compatibility(ctx, &profiles[pr.i], &profiles[pr.j])
		}(idx, pr)
	}
	wg.Wait()

	// Global best: highest score, first pair in deterministic profile order
	// on ties (profiles are listed oldest first).
	best := 0
	for i := 1; i < len(records); i++ {
		if records[i].Score > records[best].Score {
			best = i
		}
	}
	records[best].IsBestMatch = true
	bestKey := domain.PairKey(records[best].Group1Name, records[best].Group2Name)

	// Per-group rankings: each group keeps its top extra matches, skipping
	// the best pair so it is never recorded twice.
	persist := []int{best}
	persisted := map[string]struct{}{bestKey: {}}
	for i := range profiles {
		var mine []int
		for idx, pr := range pairs {
			if pr.i == i || pr.j == i {
				mine = append(mine, idx)
			}
		}
		sort.SliceStable(mine, func(x, y int) bool {
			return records[mine[x]].Score > records[mine[y]].Score
		})
		kept := 0
		for _, idx := range mine {
			if kept == extraMatchesPerGroup {
				break
			}
			key := domain.PairKey(records[idx].Group1Name, records[idx].Group2Name)
			if key == bestKey {
				continue
			}
			if _, dup := persisted[key]; !dup {
				persist = append(persist, idx)
				persisted[key] = struct{}{}
			}
			kept++
		}
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.ClearMatches(ctx, tx); err != nil {
			return err
		}
		for _, idx := range persist {
			rec := records[idx]
			if _, err := repo.UpsertMatch(ctx, tx, &rec); err != nil {
				return err
			}
			records[idx] = rec
		}
		return nil
	})
	if err != nil {
		matchingRuns.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("persist match records: %w", err)
	}

	matchingRuns.WithLabelValues("completed").Inc()
	log.Info().
		Int("profiles", len(profiles)).
		Int("pairs", len(pairs)).
		Int("records", len(persist)).
		Str("best", bestKey).
		Dur("elapsed", time.Since(started)).
		Msg("matching run completed")

	bestRec := records[best]
	return &MatchRunSummary{
		Profiles: len(profiles),
		Pairs:    len(pairs),
		Records:  len(persist),
		Best:     &bestRec,
		Elapsed:  time.Since(started).Round(time.Millisecond).String(),
	}, nil
}

// TopMatches computes, live, the k most compatible counterparts for one
// group. Nothing is persisted; stored match records are untouched.
func (s *MatchingService) TopMatches(ctx context.Context, name string, k int) ([]domain.MatchRecord, error) {
	if k <= 0 {
		k = s.topKDefault
	}

	target, err := repo.GetProfileByName(ctx, s.DB, name)
	if err != nil {
		return nil, err
	}
	profiles, err := repo.ListProfiles(ctx, s.DB)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	var others []domain.GroupProfile
	for _, p := range profiles {
		if p.ID != target.ID {
			others = append(others, p)
		}
	}
	if len(others) == 0 {
		return nil, ErrNotEnoughProfiles
	}

	records := make([]domain.MatchRecord, len(others))
	sem := make(chan struct{}, s.maxConcurrent)
	var wg sync.WaitGroup
	for i := range others {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			records[i] = s.Compatibility(ctx, target, &others[i])
		}(i)
	}
	wg.Wait()

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Score > records[j].Score
	})
	if len(records) > k {
		records = records[:k]
	}
	return records, nil
}

// ListMatches returns all stored match records, best match first.
func (s *MatchingService) ListMatches(ctx context.Context) ([]domain.MatchRecord, error) {
	return repo.ListMatches(ctx, s.DB)
}

// BestMatch returns the stored global best pair from the last run.
func (s *MatchingService) BestMatch(ctx context.Context) (*domain.MatchRecord, error) {
	return repo.GetBestMatch(ctx, s.DB)
}
