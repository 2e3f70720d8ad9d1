package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smartlearn/smartlearn-backend/internal/middleware"
	"github.com/smartlearn/smartlearn-backend/internal/model"
	"github.com/smartlearn/smartlearn-backend/internal/repository"
	"github.com/smartlearn/smartlearn-backend/internal/response"
	"github.com/smartlearn/smartlearn-backend/internal/service"
	"github.com/smartlearn/smartlearn-backend/internal/validator"
)

// ProgressHandler handles learner course progress endpoints.
type ProgressHandler struct {
	progressService *service.ProgressService
}

// NewProgressHandler creates a new ProgressHandler.
func NewProgressHandler(progressService *service.ProgressService) *ProgressHandler {
	return &ProgressHandler{progressService: progressService}
}

// Toggle godoc
// POST /api/v1/courses/:course_id/progress
// Flips the completion state of one item and returns the new state.
func (h *ProgressHandler) Toggle(c *gin.Context) {
	learner, ok := middleware.GetIdentity(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.ToggleProgressRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	completed, err := h.progressService.Toggle(c.Request.Context(), learner.UserID, c.Param("course_id"), req.ItemType, req.ItemID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCourseNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrInvalidProgressItem):
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"completed": completed})
}

// GetProgress godoc
// GET /api/v1/courses/:course_id/progress
func (h *ProgressHandler) GetProgress(c *gin.Context) {
	learner, ok := middleware.GetIdentity(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	view, err := h.progressService.GetProgress(c.Request.Context(), learner.UserID, c.Param("course_id"))
	if err != nil {
		if errors.Is(err, repository.ErrCourseNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"progress": view})
}

// ListStartedCourses godoc
// GET /api/v1/learner/courses
// Courses the learner has completed at least one item in.
func (h *ProgressHandler) ListStartedCourses(c *gin.Context) {
	learner, ok := middleware.GetIdentity(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	courses, err := h.progressService.ListStartedCourses(c.Request.Context(), learner.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if courses == nil {
		courses = []model.CourseSummary{}
	}

	response.Success(c, http.StatusOK, gin.H{"courses": courses})
}
