package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/a1baseai/mandy-group-matcher/internal/domain"
	"github.com/a1baseai/mandy-group-matcher/internal/services"
)

// Flexible matcher stub.
type stubMatcher struct {
	run  func(context.Context) (*services.MatchRunSummary, error)
	top  func(context.Context, string, int) ([]domain.MatchRecord, error)
	list func(context.Context) ([]domain.MatchRecord, error)
	best func(context.Context) (*domain.MatchRecord, error)
	topK int
}

func (s stubMatcher) RunMatching(ctx context.Context) (*services.MatchRunSummary, error) {
	if s.run != nil {
		return s.run(ctx)
	}
	return &services.MatchRunSummary{}, nil
}

func (s stubMatcher) TopMatches(ctx context.Context, name string, k int) ([]domain.MatchRecord, error) {
	if s.top != nil {
		return s.top(ctx, name, k)
	}
	return nil, nil
}

func (s stubMatcher) ListMatches(ctx context.Context) ([]domain.MatchRecord, error) {
	if s.list != nil {
		return s.list(ctx)
	}
	return nil, nil
}

func (s stubMatcher) BestMatch(ctx context.Context) (*domain.MatchRecord, error) {
	if s.best != nil {
		return s.best(ctx)
	}
	return nil, gorm.ErrRecordNotFound
}

func (s stubMatcher) TopKDefault() int {
	if s.topK > 0 {
		return s.topK
	}
	return 5
}

func matchRouter(m Matcher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(nil, nil, m)
	r := gin.New()
	r.POST("/api/v1/matches/run", h.RunMatching)
	r.GET("/api/v1/matches", h.ListMatches)
	r.GET("/api/v1/matches/best", h.BestMatch)
	r.GET("/api/v1/groups/:name/matches", h.TopMatches)
	return r
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	return resp.Code
}

func TestRunMatching_Outcomes(t *testing.T) {
	// Success -> summary passthrough.
	{
		sum := &services.MatchRunSummary{Profiles: 3, Pairs: 3, Records: 3}
		r := matchRouter(stubMatcher{
			run: func(context.Context) (*services.MatchRunSummary, error) { return sum, nil },
		})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/matches/run", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
		}
		var got services.MatchRunSummary
		if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
			t.Fatalf("json: %v", err)
		}
		if got.Profiles != 3 || got.Pairs != 3 {
			t.Fatalf("summary = %+v", got)
		}
	}

	// Concurrent run -> 409 busy.
	{
		r := matchRouter(stubMatcher{
			run: func(context.Context) (*services.MatchRunSummary, error) {
				return nil, services.ErrMatchRunInProgress
			},
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/matches/run", nil))
		if w.Code != http.StatusConflict {
			t.Fatalf("busy -> %d", w.Code)
		}
		if code := errCode(t, w); code != ErrCodeMatchRunBusy {
			t.Fatalf("code = %q", code)
		}
	}

	// One profile -> 422.
	{
		r := matchRouter(stubMatcher{
			run: func(context.Context) (*services.MatchRunSummary, error) {
				return nil, services.ErrNotEnoughProfiles
			},
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/matches/run", nil))
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("not enough -> %d", w.Code)
		}
		if code := errCode(t, w); code != ErrCodeNotEnoughProfiles {
			t.Fatalf("code = %q", code)
		}
	}

	// Anything else -> 500.
	{
		r := matchRouter(stubMatcher{
			run: func(context.Context) (*services.MatchRunSummary, error) {
				return nil, errors.New("llm down")
			},
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/matches/run", nil))
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("failure -> %d", w.Code)
		}
		if code := errCode(t, w); code != ErrCodeMatchRunFailed {
			t.Fatalf("code = %q", code)
		}
	}
}

func TestListMatches(t *testing.T) {
	r := matchRouter(stubMatcher{
		list: func(context.Context) ([]domain.MatchRecord, error) {
			return []domain.MatchRecord{
				{Group1Name: "Alphas", Group2Name: "Bravos", IsBestMatch: true},
				{Group1Name: "Alphas", Group2Name: "Charlies"},
			}, nil
		},
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/matches", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var out ListMatchesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.Total != 2 || len(out.Matches) != 2 || !out.Matches[0].IsBestMatch {
		t.Fatalf("response = %+v", out)
	}
}

func TestBestMatch(t *testing.T) {
	// No completed run yet -> 404.
	{
		r := matchRouter(stubMatcher{})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/matches/best", nil))
		if w.Code != http.StatusNotFound {
			t.Fatalf("no best -> %d", w.Code)
		}
	}

	// Stored best -> 200.
	{
		r := matchRouter(stubMatcher{
			best: func(context.Context) (*domain.MatchRecord, error) {
				return &domain.MatchRecord{Group1Name: "Alphas", Group2Name: "Bravos", Percentage: 87.5, IsBestMatch: true}, nil
			},
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/matches/best", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var m domain.MatchRecord
		if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
			t.Fatalf("json: %v", err)
		}
		if !m.IsBestMatch || m.Percentage != 87.5 {
			t.Fatalf("best = %+v", m)
		}
	}
}

func TestTopMatches(t *testing.T) {
	// Live ranking, k from query.
	{
		var gotName string
		var gotK int
		r := matchRouter(stubMatcher{
			top: func(_ context.Context, name string, k int) ([]domain.MatchRecord, error) {
				gotName, gotK = name, k
				return []domain.MatchRecord{{Group1Name: "Alphas", Group2Name: "Bravos"}}, nil
			},
		})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/groups/Alphas/matches?k=2", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
		}
		if gotName != "Alphas" || gotK != 2 {
			t.Fatalf("called with name=%q k=%d", gotName, gotK)
		}
		var out TopMatchesResponse
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("json: %v", err)
		}
		if out.Group != "Alphas" || len(out.Matches) != 1 {
			t.Fatalf("response = %+v", out)
		}
	}

	// Missing / absurd k falls back to the configured default, huge k is capped.
	{
		var ks []int
		r := matchRouter(stubMatcher{
			topK: 5,
			top: func(_ context.Context, _ string, k int) ([]domain.MatchRecord, error) {
				ks = append(ks, k)
				return nil, nil
			},
		})
		for _, q := range []string{"", "?k=0", "?k=banana", "?k=999"} {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/groups/Alphas/matches"+q, nil))
			if w.Code != http.StatusOK {
				t.Fatalf("status for %q = %d", q, w.Code)
			}
		}
		want := []int{5, 5, 5, 20}
		for i, k := range ks {
			if k != want[i] {
				t.Fatalf("k[%d] = %d, want %d", i, k, want[i])
			}
		}
	}

	// Unknown group -> 404.
	{
		r := matchRouter(stubMatcher{
			top: func(context.Context, string, int) ([]domain.MatchRecord, error) {
				return nil, gorm.ErrRecordNotFound
			},
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/groups/Nobody/matches", nil))
		if w.Code != http.StatusNotFound {
			t.Fatalf("unknown group -> %d", w.Code)
		}
	}

	// Sole profile -> 422.
	{
		r := matchRouter(stubMatcher{
			top: func(context.Context, string, int) ([]domain.MatchRecord, error) {
				return nil, services.ErrNotEnoughProfiles
			},
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/groups/Alphas/matches", nil))
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("sole profile -> %d", w.Code)
		}
	}
}
