package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smartlearn/smartlearn-backend/internal/model"
	"github.com/smartlearn/smartlearn-backend/internal/repository"
	"github.com/smartlearn/smartlearn-backend/internal/response"
	"github.com/smartlearn/smartlearn-backend/internal/service"
)

// LeaderboardHandler serves the public per-exam leaderboard.
type LeaderboardHandler struct {
	leaderboardService *service.LeaderboardService
	catalogService     *service.CatalogService
}

// NewLeaderboardHandler creates a new LeaderboardHandler.
func NewLeaderboardHandler(leaderboardService *service.LeaderboardService, catalogService *service.CatalogService) *LeaderboardHandler {
	return &LeaderboardHandler{
		leaderboardService: leaderboardService,
		catalogService:     catalogService,
	}
}

// GetLeaderboard godoc
// GET /api/v1/exams/:exam_id/leaderboard
func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	examID := c.Param("exam_id")

	if _, err := h.catalogService.GetExam(c.Request.Context(), examID); err != nil {
		if errors.Is(err, repository.ErrExamNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	entries, err := h.leaderboardService.Rank(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}

	response.Success(c, http.StatusOK, gin.H{"leaderboard": entries})
}
