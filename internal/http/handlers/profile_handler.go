// Profile and interview HTTP handlers.
//
// REST surface over the two durable stores the interview pipeline feeds:
//   - GET    /api/v1/profiles            (paginated list)
//   - GET    /api/v1/profiles/{name}     (case-insensitive lookup)
//   - DELETE /api/v1/profiles/{name}
//   - GET    /api/v1/interviews/{chatId} (in-progress interview state)
//
// Handlers are transport-thin: validate and normalize inputs, delegate to
// the repo layer, map store errors to the envelope.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/a1baseai/mandy-group-matcher/internal/domain"
	"github.com/a1baseai/mandy-group-matcher/internal/repo"
	"github.com/a1baseai/mandy-group-matcher/internal/utils"
)

// Pagination is the standard page metadata block for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListProfilesResponse wraps a page of group profiles.
type ListProfilesResponse struct {
	Profiles   []domain.GroupProfile `json:"profiles"`
	Pagination Pagination            `json:"pagination"`
}

// clampPagination parses page/page_size with sane defaults and caps.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// ListProfiles godoc
// @ID          listProfiles
// @Summary     List group profiles
// @Description Returns completed group profiles, oldest first, paginated.
// @Tags        Profiles
// @Produce     json
//
// @Param       page       query int false "Page number"    minimum(1) default(1)
// @Param       page_size  query int false "Items per page" minimum(1) maximum(100) default(20)
//
// @Success     200 {object} handlers.ListProfilesResponse
// @Failure     500 {object} handlers.ErrorResponse "Internal error"
// @Router      /api/v1/profiles [get]
func (h *Handlers) ListProfiles(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	total, err := repo.CountProfiles(ctx, h.db)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list profiles")
		return
	}
	items, err := repo.ListProfilesPage(ctx, h.db, (page-1)*pageSize, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list profiles")
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListProfilesResponse{
		Profiles: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetProfile godoc
// @ID          getProfile
// @Summary     Fetch one group profile by name
// @Description Group name matching is case-insensitive.
// @Tags        Profiles
// @Produce     json
//
// @Param       name path string true "Group name"
//
// @Success     200 {object} domain.GroupProfile
// @Failure     404 {object} handlers.ErrorResponse "Group not found"
// @Failure     500 {object} handlers.ErrorResponse "Internal error"
// @Router      /api/v1/profiles/{name} [get]
func (h *Handlers) GetProfile(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "group name required")
		return
	}

	p, err := repo.GetProfileByName(c.Request.Context(), h.db, name)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "group not found")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not fetch profile")
	default:
		ok(c, http.StatusOK, p)
	}
}

// DeleteProfile godoc
// @ID          deleteProfile
// @Summary     Delete a group profile
// @Description Removes the profile; stored match records referencing the
// @Description group remain until the next matching run.
// @Tags        Profiles
// @Produce     json
//
// @Param       name path string true "Group name"
//
// @Success     204 "Deleted"
// @Failure     404 {object} handlers.ErrorResponse "Group not found"
// @Failure     500 {object} handlers.ErrorResponse "Internal error"
// @Router      /api/v1/profiles/{name} [delete]
func (h *Handlers) DeleteProfile(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "group name required")
		return
	}

	err := repo.DeleteProfileByName(c.Request.Context(), h.db, name)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "group not found")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeDeleteFailed, "could not delete profile")
	default:
		noContent(c)
	}
}

// GetInterview godoc
// @ID          getInterview
// @Summary     Fetch the in-progress interview for a chat
// @Tags        Interviews
// @Produce     json
//
// @Param       chatId path string true "Chat ID"
//
// @Success     200 {object} domain.InterviewState
// @Failure     404 {object} handlers.ErrorResponse "No interview in progress"
// @Failure     500 {object} handlers.ErrorResponse "Internal error"
// @Router      /api/v1/interviews/{chatId} [get]
func (h *Handlers) GetInterview(c *gin.Context) {
	chatID := strings.TrimSpace(c.Param("chatId"))
	if chatID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat id required")
		return
	}

	s, err := repo.GetInterviewState(c.Request.Context(), h.db, chatID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "no interview in progress for chat")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not fetch interview state")
	default:
		ok(c, http.StatusOK, s)
	}
}
