package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/smartlearn/smartlearn-backend/internal/config"
	"github.com/smartlearn/smartlearn-backend/internal/model"
	"github.com/smartlearn/smartlearn-backend/internal/repository"
)

// CatalogService serves the read-only course catalog and keeps the
// learner-facing exam papers (questions without answer keys) cached in Redis.
type CatalogService struct {
	courseRepo *repository.CourseRepository
	rdb        *redis.Client
	log        zerolog.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(courseRepo *repository.CourseRepository, rdb *redis.Client, log zerolog.Logger) *CatalogService {
	return &CatalogService{
		courseRepo: courseRepo,
		rdb:        rdb,
		log:        log.With().Str("component", "catalog_service").Logger(),
	}
}

// ListCourses returns all course summaries.
func (s *CatalogService) ListCourses(ctx context.Context) ([]model.CourseSummary, error) {
	return s.courseRepo.ListCourses(ctx)
}

// GetCourse returns one course with nested content. Exams come back with
// answer keys attached — handlers must never serialize them directly; use
// GetExamPaper for anything learner-facing.
func (s *CatalogService) GetCourse(ctx context.Context, courseID string) (*model.Course, error) {
	return s.courseRepo.GetCourse(ctx, courseID)
}

// GetExam returns the full exam definition including answer keys.
func (s *CatalogService) GetExam(ctx context.Context, examID string) (*model.Exam, error) {
	return s.courseRepo.GetExam(ctx, examID)
}

// GetExamPaper returns the cached learner-facing payload for an exam,
// falling back to the database (and re-warming the cache) on a miss.
func (s *CatalogService) GetExamPaper(ctx context.Context, examID string) (*model.ExamPaper, error) {
	key := config.CacheKey.ExamPaperKey(examID)

	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var paper model.ExamPaper
		if err := json.Unmarshal(data, &paper); err != nil {
			return nil, fmt.Errorf("unmarshal paper: %w", err)
		}
		return &paper, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get paper: %w", err)
	}

	// Cache miss: load from the catalog and self-heal the cache.
	exam, err := s.courseRepo.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if err := s.WarmPaperCache(ctx, exam); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID).Msg("Paper cache warm failed")
	}
	return model.PaperFor(exam), nil
}

// WarmPaperCache stores the learner-facing payload for one exam in Redis.
func (s *CatalogService) WarmPaperCache(ctx context.Context, exam *model.Exam) error {
	paper := model.PaperFor(exam)

	data, err := json.Marshal(paper)
	if err != nil {
		return fmt.Errorf("marshal paper: %w", err)
	}
	if err := s.rdb.Set(ctx, config.CacheKey.ExamPaperKey(exam.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("set paper: %w", err)
	}
	return nil
}

// PrewarmPaperCaches loads every exam paper into Redis on startup, so the
// first learner hitting an exam never races a lazy load.
func (s *CatalogService) PrewarmPaperCaches(ctx context.Context) error {
	exams, err := s.courseRepo.ListAllExams(ctx)
	if err != nil {
		return fmt.Errorf("list exams: %w", err)
	}

	if len(exams) == 0 {
		s.log.Info().Msg("No exams to prewarm")
		return nil
	}

	warmed := 0
	for i := range exams {
		if err := s.WarmPaperCache(ctx, &exams[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("exam_id", exams[i].ID).
				Msg("Failed to warm exam paper, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(exams)).
		Msg("Exam paper prewarm complete")
	return nil
}
