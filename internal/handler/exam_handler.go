package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smartlearn/smartlearn-backend/internal/middleware"
	"github.com/smartlearn/smartlearn-backend/internal/repository"
	"github.com/smartlearn/smartlearn-backend/internal/response"
	"github.com/smartlearn/smartlearn-backend/internal/service"
	"github.com/smartlearn/smartlearn-backend/internal/session"
	"github.com/smartlearn/smartlearn-backend/internal/validator"
)

// ExamHandler handles learner-facing exam session endpoints.
type ExamHandler struct {
	sessionService *service.SessionService
	catalogService *service.CatalogService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(sessionService *service.SessionService, catalogService *service.CatalogService) *ExamHandler {
	return &ExamHandler{
		sessionService: sessionService,
		catalogService: catalogService,
	}
}

// RecordAnswerRequest is the REST autosave payload. The WebSocket channel is
// preferred; this exists for clients that cannot hold a socket open.
type RecordAnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required"`
	Answer     string `json:"answer"`
}

// Begin godoc
// POST /api/v1/exams/:exam_id/session
// Starts (or resumes) the learner's session for this exam.
func (h *ExamHandler) Begin(c *gin.Context) {
	learner, ok := middleware.GetIdentity(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	state, err := h.sessionService.Begin(c.Request.Context(), c.Param("exam_id"), learner)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": state})
}

// GetPaper godoc
// GET /api/v1/exams/:exam_id/paper
// Returns the exam payload from Redis. Requires a running session so papers
// for timed exams cannot be pulled before starting.
func (h *ExamHandler) GetPaper(c *gin.Context) {
	learner, ok := middleware.GetIdentity(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID := c.Param("exam_id")
	if _, err := h.sessionService.State(c.Request.Context(), examID, learner); err != nil {
		failSessionError(c, err)
		return
	}

	paper, err := h.catalogService.GetExamPaper(c.Request.Context(), examID)
	if err != nil {
		if errors.Is(err, repository.ErrExamNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, paper)
}

// GetState godoc
// GET /api/v1/exams/:exam_id/session
// Returns the session snapshot so a reloaded client can restore its answers
// and the remaining time.
func (h *ExamHandler) GetState(c *gin.Context) {
	learner, ok := middleware.GetIdentity(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	state, err := h.sessionService.State(c.Request.Context(), c.Param("exam_id"), learner)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": state})
}

// RecordAnswer godoc
// PUT /api/v1/exams/:exam_id/answers
func (h *ExamHandler) RecordAnswer(c *gin.Context) {
	learner, ok := middleware.GetIdentity(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req RecordAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	err := h.sessionService.RecordAnswer(c.Request.Context(), c.Param("exam_id"), learner, req.QuestionID, req.Answer)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "saved"})
}

// Submit godoc
// POST /api/v1/exams/:exam_id/submit
// Scores the session and persists the submission. Safe to retry.
func (h *ExamHandler) Submit(c *gin.Context) {
	learner, ok := middleware.GetIdentity(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sub, err := h.sessionService.Submit(c.Request.Context(), c.Param("exam_id"), learner)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
			return
		}
		// Persist failures leave the session running so the client can retry.
		response.Fail(c, http.StatusInternalServerError, response.ErrSubmitFailed)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"submission": sub})
}

// Teardown godoc
// DELETE /api/v1/exams/:exam_id/session
// Discards the in-memory session and its Redis mirror.
func (h *ExamHandler) Teardown(c *gin.Context) {
	learner, ok := middleware.GetIdentity(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	h.sessionService.Teardown(c.Request.Context(), c.Param("exam_id"), learner)
	response.Success(c, http.StatusOK, gin.H{"status": "closed"})
}

// failSessionError maps session and catalog errors onto API error codes.
func failSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrIdentityRequired):
		response.Fail(c, http.StatusBadRequest, response.ErrIdentityRequired)
	case errors.Is(err, session.ErrNotLive):
		response.Fail(c, http.StatusConflict, response.ErrExamNotLive)
	case errors.Is(err, session.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
	case errors.Is(err, session.ErrNotRunning), errors.Is(err, session.ErrAlreadySubmitted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
	case errors.Is(err, repository.ErrExamNotFound), errors.Is(err, repository.ErrCourseNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, repository.ErrSubmissionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
