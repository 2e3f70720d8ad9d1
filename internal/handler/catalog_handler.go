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

// CatalogHandler serves the public course catalog.
type CatalogHandler struct {
	catalogService *service.CatalogService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(catalogService *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// ListCourses godoc
// GET /api/v1/courses
func (h *CatalogHandler) ListCourses(c *gin.Context) {
	courses, err := h.catalogService.ListCourses(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if courses == nil {
		courses = []model.CourseSummary{}
	}

	response.Success(c, http.StatusOK, gin.H{"courses": courses})
}

// GetCourse godoc
// GET /api/v1/courses/:course_id
// Exams inside the course are stripped down to their learner-facing form.
func (h *CatalogHandler) GetCourse(c *gin.Context) {
	course, err := h.catalogService.GetCourse(c.Request.Context(), c.Param("course_id"))
	if err != nil {
		if errors.Is(err, repository.ErrCourseNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	// Answer keys never leave the service. Exams are served in their
	// learner-facing paper form alongside the rest of the course.
	papers := make([]*model.ExamPaper, len(course.Exams))
	for i := range course.Exams {
		papers[i] = model.PaperFor(&course.Exams[i])
	}
	course.Exams = nil

	response.Success(c, http.StatusOK, gin.H{"course": course, "exams": papers})
}
