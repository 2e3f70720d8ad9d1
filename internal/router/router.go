package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/smartlearn/smartlearn-backend/internal/config"
	"github.com/smartlearn/smartlearn-backend/internal/handler"
	"github.com/smartlearn/smartlearn-backend/internal/middleware"
	"github.com/smartlearn/smartlearn-backend/internal/response"
	"github.com/smartlearn/smartlearn-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Catalog     *handler.CatalogHandler
	Exam        *handler.ExamHandler
	Leaderboard *handler.LeaderboardHandler
	Progress    *handler.ProgressHandler
	WS          *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	identityService *service.IdentityService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Public Group (No Auth) ─────────────────────────────────────
	// Catalog content changes rarely; let clients cache it briefly.
	publicAPI := router.Group("/api/v1")
	{
		catalog := publicAPI.Group("")
		catalog.Use(middleware.CacheControl(60))
		{
			catalog.GET("/courses", handlers.Catalog.ListCourses)
			catalog.GET("/courses/:course_id", handlers.Catalog.GetCourse)
		}

		publicAPI.GET("/exams/:exam_id/leaderboard", handlers.Leaderboard.GetLeaderboard)
	}

	// Rate limiter for session mutation routes (60 requests per minute per IP).
	sessionLimiter := middleware.NewRateLimiter(60, time.Minute)

	// ─── 2. Learner Group (JWT) ────────────────────────────────────────
	learnerAPI := router.Group("/api/v1")
	learnerAPI.Use(middleware.RequireLearnerJWT(identityService))
	{
		learnerAPI.GET("/learner/courses", handlers.Progress.ListStartedCourses)
		learnerAPI.GET("/courses/:course_id/progress", handlers.Progress.GetProgress)
		learnerAPI.POST("/courses/:course_id/progress", handlers.Progress.Toggle)

		learnerAPI.GET("/exams/:exam_id/paper", handlers.Exam.GetPaper)
		learnerAPI.GET("/exams/:exam_id/session", handlers.Exam.GetState)
		learnerAPI.PUT("/exams/:exam_id/answers", handlers.Exam.RecordAnswer)

		mutating := learnerAPI.Group("")
		mutating.Use(sessionLimiter.Middleware())
		{
			mutating.POST("/exams/:exam_id/session", handlers.Exam.Begin)
			mutating.POST("/exams/:exam_id/submit", handlers.Exam.Submit)
			mutating.DELETE("/exams/:exam_id/session", handlers.Exam.Teardown)
		}
	}

	// ─── 3. WebSocket Group (Learner WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireLearnerWSAuth(identityService))
	{
		ws.GET("/exams/:exam_id/stream", handlers.WS.ExamStream)
	}

	return router
}
