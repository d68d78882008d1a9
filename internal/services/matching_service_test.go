package services

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/a1baseai/mandy-group-matcher/internal/config"
	"github.com/a1baseai/mandy-group-matcher/internal/domain"
	"github.com/a1baseai/mandy-group-matcher/internal/llm"
	"github.com/a1baseai/mandy-group-matcher/internal/repo"
)

func testMatchingConfig() config.MatchingConfig {
	return config.MatchingConfig{LLMRPS: 1000, LLMBurst: 100, MaxConcurrent: 4, TopKDefault: 3}
}

func seedSized(t *testing.T, db *gorm.DB, name, chatID, size string) {
	t.Helper()
	_, err := repo.CreateProfile(context.Background(), db, &domain.GroupProfile{
		GroupName:       name,
		ChatID:          chatID,
		GroupSize:       size,
		FictionalCrew:   "the Fellowship",
		MusicTaste:      "indie rock",
		IdealActivity:   "hiking and a picnic",
		GroupEmoji:      "🏔️",
		RandomObsession: "sourdough starters",
		SideQuestStory:  "we once drove two hours for a food truck",
		DreamMatch:      "another outdoorsy crew",
		Availability:    "weekends",
	})
	if err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
}

func TestCompatibilityCombinesHalves(t *testing.T) {
	db := newTestDB(t)
	svc := NewMatchingService(db, &fakeLLM{reply: "80"}, testMatchingConfig())

	a := &domain.GroupProfile{GroupName: "A", GroupSize: "4", MusicTaste: "indie rock", IdealActivity: "hiking", GroupEmoji: "🔥"}
	b := &domain.GroupProfile{GroupName: "B", GroupSize: "4", MusicTaste: "indie rock", IdealActivity: "hiking", GroupEmoji: "🔥"}

	rec := svc.Compatibility(context.Background(), a, b)

	// Identical answers: size 1.0×0.4, music 1.0×0.25, activity 1.0×0.25,
	// emoji 0.8×0.1 → quant 0.98; final = 0.4×0.98 + 0.6×0.80.
	wantQuant := 0.98
	wantFinal := 0.4*wantQuant + 0.6*0.80
	if math.Abs(rec.Quantitative-wantQuant) > 1e-9 {
		t.Fatalf("quant = %v, want %v", rec.Quantitative, wantQuant)
	}
	if math.Abs(rec.Score-wantFinal) > 1e-9 {
		t.Fatalf("score = %v, want %v", rec.Score, wantFinal)
	}
	if rec.Qualitative != 80 {
		t.Fatalf("qualitative = %v, want 80", rec.Qualitative)
	}
	if math.Abs(rec.Percentage-math.Round(wantFinal*1000)/10) > 1e-9 {
		t.Fatalf("percentage = %v", rec.Percentage)
	}
}

func TestQualitativeFaultsDefaultToNeutral(t *testing.T) {
	db := newTestDB(t)
	a := &domain.GroupProfile{GroupName: "A", GroupSize: "4"}
	b := &domain.GroupProfile{GroupName: "B", GroupSize: "4"}

	cases := []struct {
		name string
		gen  *fakeLLM
	}{
		{"llm error", &fakeLLM{err: errors.New("down")}},
		{"no number", &fakeLLM{reply: "they seem great together"}},
		{"out of range", &fakeLLM{reply: "150"}},
	}
	for _, tc := range cases {
		svc := NewMatchingService(db, tc.gen, testMatchingConfig())
		if got := svc.qualitative(context.Background(), a, b); got != neutralQualitative {
			t.Errorf("%s: qualitative = %v, want %v", tc.name, got, neutralQualitative)
		}
	}

	// Prose around the number is fine.
	svc := NewMatchingService(db, &fakeLLM{reply: "I'd say 85 out of 100."}, testMatchingConfig())
	if got := svc.qualitative(context.Background(), a, b); got != 85 {
		t.Fatalf("embedded number: qualitative = %v, want 85", got)
	}
}

func TestRunMatchingPersistsBestAndRankings(t *testing.T) {
	db := newTestDB(t)
	seedSized(t, db, "Alphas", "chat-a", "4")
	seedSized(t, db, "Bravos", "chat-b", "4")
	seedSized(t, db, "Charlies", "chat-c", "10")

	svc := NewMatchingService(db, &fakeLLM{reply: "70"}, testMatchingConfig())
	ctx := context.Background()

	sum, err := svc.RunMatching(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Profiles != 3 || sum.Pairs != 3 {
		t.Fatalf("summary = %+v", sum)
	}

	best, err := repo.GetBestMatch(ctx, db)
	if err != nil {
		t.Fatalf("best: %v", err)
	}
	// Same-size pair wins on the quantitative anchor.
	if best.PairKey != domain.PairKey("Alphas", "Bravos") {
		t.Fatalf("best pair = %s", best.PairKey)
	}

	n, _ := repo.CountMatches(ctx, db)
	if n != 3 {
		t.Fatalf("expected 3 records (best + per-group extras, deduped), got %d", n)
	}

	// Rerun is idempotent: same best pair, same record count.
	if _, err := svc.RunMatching(ctx); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	again, _ := repo.GetBestMatch(ctx, db)
	if again.PairKey != best.PairKey {
		t.Fatalf("best pair changed across reruns: %s vs %s", again.PairKey, best.PairKey)
	}
	if n2, _ := repo.CountMatches(ctx, db); n2 != n {
		t.Fatalf("record count changed across reruns: %d vs %d", n2, n)
	}
}

func TestRunMatchingNotEnoughProfiles(t *testing.T) {
	db := newTestDB(t)
	seedSized(t, db, "Alphas", "chat-a", "4")

	svc := NewMatchingService(db, &fakeLLM{reply: "70"}, testMatchingConfig())
	if _, err := svc.RunMatching(context.Background()); !errors.Is(err, ErrNotEnoughProfiles) {
		t.Fatalf("expected ErrNotEnoughProfiles, got %v", err)
	}
}

// blockingLLM parks GenerateText until released, to hold a run in flight.
type blockingLLM struct {
	startedOnce sync.Once
	started     chan struct{}
	release     chan struct{}
}

func (b *blockingLLM) GenerateText(context.Context, string, llm.Options) (string, error) {
	b.startedOnce.Do(func() { close(b.started) })
	<-b.release
	return "70", nil
}

func (b *blockingLLM) Chat(context.Context, []llm.Message, llm.Options) (string, error) {
	return "70", nil
}

func TestRunMatchingSingleFlight(t *testing.T) {
	db := newTestDB(t)
	seedSized(t, db, "Alphas", "chat-a", "4")
	seedSized(t, db, "Bravos", "chat-b", "4")

	gen := &blockingLLM{started: make(chan struct{}), release: make(chan struct{})}
	svc := NewMatchingService(db, gen, testMatchingConfig())

	done := make(chan error, 1)
	go func() {
		_, err := svc.RunMatching(context.Background())
		done <- err
	}()

	<-gen.started
	if _, err := svc.RunMatching(context.Background()); !errors.Is(err, ErrMatchRunInProgress) {
		t.Fatalf("expected ErrMatchRunInProgress, got %v", err)
	}

	close(gen.release)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
}

func TestTopMatchesLive(t *testing.T) {
	db := newTestDB(t)
	seedSized(t, db, "Alphas", "chat-a", "4")
	seedSized(t, db, "Bravos", "chat-b", "4")
	seedSized(t, db, "Charlies", "chat-c", "10")

	svc := NewMatchingService(db, &fakeLLM{reply: "70"}, testMatchingConfig())
	ctx := context.Background()

	top, err := svc.TopMatches(ctx, "alphas", 1)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 1 {
		t.Fatalf("expected 1 match, got %d", len(top))
	}
	if other := top[0].Group2Name; other != "Bravos" && top[0].Group1Name != "Bravos" {
		t.Fatalf("expected the size-matched crew first, got %s/%s", top[0].Group1Name, other)
	}

	// Live computation must not touch stored records.
	if n, _ := repo.CountMatches(ctx, db); n != 0 {
		t.Fatalf("TopMatches persisted %d records", n)
	}

	if _, err := svc.TopMatches(ctx, "nobody", 1); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("unknown group: expected ErrNotFound, got %v", err)
	}
}
