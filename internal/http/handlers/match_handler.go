package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/a1baseai/mandy-group-matcher/internal/domain"
	"github.com/a1baseai/mandy-group-matcher/internal/services"
	"github.com/a1baseai/mandy-group-matcher/internal/utils"
)

// Matcher is the compatibility-engine boundary the handlers delegate to.
type Matcher interface {
	RunMatching(ctx context.Context) (*services.MatchRunSummary, error)
	TopMatches(ctx context.Context, name string, k int) ([]domain.MatchRecord, error)
	ListMatches(ctx context.Context) ([]domain.MatchRecord, error)
	BestMatch(ctx context.Context) (*domain.MatchRecord, error)
	TopKDefault() int
}

// ListMatchesResponse wraps the stored match records.
type ListMatchesResponse struct {
	Matches []domain.MatchRecord `json:"matches"`
	Total   int                  `json:"total"`
}

// TopMatchesResponse wraps a live per-group ranking.
type TopMatchesResponse struct {
	Group   string               `json:"group"`
	Matches []domain.MatchRecord `json:"matches"`
}

// RunMatching godoc
// @ID          runMatching
// @Summary     Run a full matching pass
// @Description Clears stored match records and recomputes every pair. At most
// @Description one run may be in flight.
// @Tags        Matches
// @Produce     json
//
// @Success     200 {object} services.MatchRunSummary
// @Failure     409 {object} handlers.ErrorResponse "Run already in progress"
// @Failure     422 {object} handlers.ErrorResponse "Fewer than two profiles"
// @Failure     500 {object} handlers.ErrorResponse "Internal error"
// @Router      /api/v1/matches/run [post]
func (h *Handlers) RunMatching(c *gin.Context) {
	sum, err := h.matcher.RunMatching(c.Request.Context())
	switch {
	case errors.Is(err, services.ErrMatchRunInProgress):
		fail(c, http.StatusConflict, ErrCodeMatchRunBusy, "a matching run is already in progress")
	case errors.Is(err, services.ErrNotEnoughProfiles):
		fail(c, http.StatusUnprocessableEntity, ErrCodeNotEnoughProfiles, "need at least two profiles to match")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeMatchRunFailed, "matching run failed")
	default:
		ok(c, http.StatusOK, sum)
	}
}

// ListMatches godoc
// @ID          listMatches
// @Summary     List stored match records
// @Description Records from the last completed run, best match first.
// @Tags        Matches
// @Produce     json
//
// @Success     200 {object} handlers.ListMatchesResponse
// @Failure     500 {object} handlers.ErrorResponse "Internal error"
// @Router      /api/v1/matches [get]
func (h *Handlers) ListMatches(c *gin.Context) {
	items, err := h.matcher.ListMatches(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list matches")
		return
	}
	ok(c, http.StatusOK, ListMatchesResponse{Matches: items, Total: len(items)})
}

// BestMatch godoc
// @ID          bestMatch
// @Summary     Fetch the global best pair
// @Tags        Matches
// @Produce     json
//
// @Success     200 {object} domain.MatchRecord
// @Failure     404 {object} handlers.ErrorResponse "No completed run yet"
// @Failure     500 {object} handlers.ErrorResponse "Internal error"
// @Router      /api/v1/matches/best [get]
func (h *Handlers) BestMatch(c *gin.Context) {
	m, err := h.matcher.BestMatch(c.Request.Context())
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "no matching run has completed yet")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not fetch best match")
	default:
		ok(c, http.StatusOK, m)
	}
}

// TopMatches godoc
// @ID          topMatches
// @Summary     Compute the top-K matches for one group, live
// @Description Scores the group against every other profile on demand.
// @Description Stored match records are not consulted or modified.
// @Tags        Matches
// @Produce     json
//
// @Param       name path  string true  "Group name"
// @Param       k    query int    false "Number of matches to return" minimum(1) maximum(20)
//
// @Success     200 {object} handlers.TopMatchesResponse
// @Failure     404 {object} handlers.ErrorResponse "Group not found"
// @Failure     422 {object} handlers.ErrorResponse "No other profiles to match against"
// @Failure     500 {object} handlers.ErrorResponse "Internal error"
// @Router      /api/v1/groups/{name}/matches [get]
func (h *Handlers) TopMatches(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "group name required")
		return
	}

	const maxK = 20
	k := utils.AtoiDefault(c.Query("k"), h.matcher.TopKDefault())
	if k < 1 {
		k = h.matcher.TopKDefault()
	}
	if k > maxK {
		k = maxK
	}

	items, err := h.matcher.TopMatches(c.Request.Context(), name, k)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "group not found")
	case errors.Is(err, services.ErrNotEnoughProfiles):
		fail(c, http.StatusUnprocessableEntity, ErrCodeNotEnoughProfiles, "no other profiles to match against")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not compute matches")
	default:
		ok(c, http.StatusOK, TopMatchesResponse{Group: name, Matches: items})
	}
}
