package services

import (
	"math"
	"testing"

	"github.com/a1baseai/mandy-group-matcher/internal/domain"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSizeScore_SymmetricAndIdentity(t *testing.T) {
	for a := 1; a <= 20; a++ {
		if !almostEqual(sizeScore(a, a), 1.0) {
			t.Fatalf("sizeScore(%d,%d) != 1.0", a, a)
		}
		for b := 1; b <= 20; b++ {
			if !almostEqual(sizeScore(a, b), sizeScore(b, a)) {
				t.Fatalf("sizeScore not symmetric for (%d,%d)", a, b)
			}
		}
	}
}

func TestSizeScore_DifferenceTable(t *testing.T) {
	cases := []struct {
		a, b int
		want float64
	}{
		{4, 4, 1.0},
		{4, 5, 0.9},
		{4, 6, 0.7},
		{4, 7, 0.5},
		{4, 8, 0.4},  // diff 4 → 0.5 - 0.1
		{4, 10, 0.2}, // diff 6 → 0.5 - 0.3
		{1, 50, 0.1}, // floored
	}
	for _, tc := range cases {
		if got := sizeScore(tc.a, tc.b); !almostEqual(got, tc.want) {
			t.Errorf("sizeScore(%d,%d) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestParseGroupSize(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"4", 4, true},
		{"we are about 6 people", 6, true},
		{"somewhere between 3 and 5", 3, true},
		{"banana", 0, false},
		{"0", 0, false},
		{"300 of us", 0, false},
		{"300 of us, well really 12", 12, true},
	}
	for _, tc := range cases {
		got, ok := parseGroupSize(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("parseGroupSize(%q) = (%d,%v), want (%d,%v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestMusicScore(t *testing.T) {
	if v, ok := musicScore("indie rock", "Indie Rock"); !ok || !almostEqual(v, 1.0) {
		t.Errorf("exact match = %v,%v", v, ok)
	}
	if v, ok := musicScore("indie rock", "heavy metal"); !ok || !almostEqual(v, 0.8) {
		t.Errorf("same bucket = %v,%v", v, ok)
	}
	if v, ok := musicScore("indie rock", "reggaeton all night"); !ok || !almostEqual(v, 0.3) {
		t.Errorf("cross bucket = %v,%v", v, ok)
	}
	// Unbucketed, no overlap: floored at 0.2.
	if v, ok := musicScore("whale sounds", "gregorian chants"); !ok || !almostEqual(v, 0.2) {
		t.Errorf("floor = %v,%v", v, ok)
	}
	if _, ok := musicScore("", "rock"); ok {
		t.Error("missing side should exclude the factor")
	}
}

func TestActivityScore(t *testing.T) {
	if v, ok := activityScore("beach day", "Beach Day"); !ok || !almostEqual(v, 1.0) {
		t.Errorf("exact = %v,%v", v, ok)
	}
	// One shared category (outdoor).
	if v, ok := activityScore("hiking a trail", "camping by the lake"); !ok || !almostEqual(v, 0.8) {
		t.Errorf("one shared category = %v,%v", v, ok)
	}
	// Two shared categories (outdoor + food).
	if v, ok := activityScore("a hike then tacos", "beach picnic with pizza"); !ok || !almostEqual(v, 0.9) {
		t.Errorf("two shared categories = %v,%v", v, ok)
	}
	// No categories, one shared content word → 0.2.
	if v, ok := activityScore("collecting stamps together", "trading rare stamps"); !ok || !almostEqual(v, 0.2) {
		t.Errorf("shared word = %v,%v", v, ok)
	}
}

func TestEmojiScore(t *testing.T) {
	if v, ok := emojiScore("🔥", "🔥"); !ok || !almostEqual(v, 0.8) {
		t.Errorf("exact emoji = %v,%v", v, ok)
	}
	if v, ok := emojiScore("🔥", "🌊"); !ok || !almostEqual(v, 0.3) {
		t.Errorf("different emoji = %v,%v", v, ok)
	}
}

func TestQuantitative_IdenticalSizeAndTaste(t *testing.T) {
	a := &domain.GroupProfile{GroupSize: "3", MusicTaste: "synthpop", IdealActivity: "hiking", GroupEmoji: "🔥"}
	b := &domain.GroupProfile{GroupSize: "3", MusicTaste: "synthpop", IdealActivity: "camping trip", GroupEmoji: "🌊"}

	got, sizeMatch := Quantitative(a, b)
	// size 1.0×0.4 + music 1.0×0.25 + activity 0.8×0.25 + emoji 0.3×0.1
	want := 1.0*0.4 + 1.0*0.25 + 0.8*0.25 + 0.3*0.1
	if !almostEqual(got, want) {
		t.Fatalf("Quantitative = %v, want %v", got, want)
	}
	if !almostEqual(sizeMatch, 1.0) {
		t.Fatalf("sizeMatch = %v, want 1.0", sizeMatch)
	}
}

func TestQuantitative_RenormalizesMissingFactors(t *testing.T) {
	a := &domain.GroupProfile{GroupSize: "4", MusicTaste: "jazz"}
	b := &domain.GroupProfile{GroupSize: "5", MusicTaste: "blues"}

	got, _ := Quantitative(a, b)
	// Only size (0.9) and music (same bucket, 0.8) present.
	want := (0.9*0.4 + 0.8*0.25) / (0.4 + 0.25)
	if !almostEqual(got, want) {
		t.Fatalf("Quantitative = %v, want %v", got, want)
	}
}

func TestQuantitative_AllMissingDefaultsNeutral(t *testing.T) {
	got, sizeMatch := Quantitative(&domain.GroupProfile{}, &domain.GroupProfile{})
	if !almostEqual(got, 0.5) || !almostEqual(sizeMatch, 0.5) {
		t.Fatalf("empty profiles = (%v, %v), want (0.5, 0.5)", got, sizeMatch)
	}
}

func TestQuantitative_Symmetric(t *testing.T) {
	a := &domain.GroupProfile{GroupSize: "3", MusicTaste: "indie", IdealActivity: "movie night", GroupEmoji: "🎬"}
	b := &domain.GroupProfile{GroupSize: "6", MusicTaste: "techno", IdealActivity: "club night out", GroupEmoji: "🪩"}

	ab, _ := Quantitative(a, b)
	ba, _ := Quantitative(b, a)
	if !almostEqual(ab, ba) {
		t.Fatalf("Quantitative not symmetric: %v vs %v", ab, ba)
	}
}
