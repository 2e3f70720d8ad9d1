package service

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/smartlearn/smartlearn-backend/internal/model"
	"github.com/smartlearn/smartlearn-backend/internal/repository"
)

// ErrInvalidProgressItem rejects toggles for unknown item types.
var ErrInvalidProgressItem = fmt.Errorf("invalid progress item type")

// ProgressView is a learner's completion state for one course plus the
// derived completion percentage over the course's trackable items.
type ProgressView struct {
	CourseID   string               `json:"courseId"`
	Completed  model.CourseProgress `json:"completed"`
	Percentage int                  `json:"percentage"`
}

// ProgressService tracks which course items a learner has completed.
type ProgressService struct {
	progressRepo *repository.ProgressRepository
	courseRepo   *repository.CourseRepository
	log          zerolog.Logger
}

// NewProgressService creates a new ProgressService.
func NewProgressService(progressRepo *repository.ProgressRepository, courseRepo *repository.CourseRepository, log zerolog.Logger) *ProgressService {
	return &ProgressService{
		progressRepo: progressRepo,
		courseRepo:   courseRepo,
		log:          log.With().Str("component", "progress_service").Logger(),
	}
}

// Toggle flips the completion state of one item and reports the new state.
// The course must exist; item IDs inside it are not validated so removed
// content does not break previously stored progress.
func (s *ProgressService) Toggle(ctx context.Context, userID, courseID string, itemType model.ProgressItemType, itemID string) (bool, error) {
	if !model.ValidProgressItemType(itemType) {
		return false, ErrInvalidProgressItem
	}
	if _, err := s.courseRepo.GetCourse(ctx, courseID); err != nil {
		return false, err
	}
	return s.progressRepo.Toggle(ctx, userID, courseID, itemType, itemID)
}

// GetProgress returns the learner's progress for one course along with the
// completion percentage. A course with no trackable items reports 0.
func (s *ProgressService) GetProgress(ctx context.Context, userID, courseID string) (*ProgressView, error) {
	course, err := s.courseRepo.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	progress, err := s.progressRepo.GetCourseProgress(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	return &ProgressView{
		CourseID:   courseID,
		Completed:  *progress,
		Percentage: completionPercentage(course, progress),
	}, nil
}

// ListStartedCourses returns summaries of the courses the learner has
// completed at least one item in, most recently touched first.
func (s *ProgressService) ListStartedCourses(ctx context.Context, userID string) ([]model.CourseSummary, error) {
	ids, err := s.progressRepo.ListStartedCourseIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]model.CourseSummary, 0, len(ids))
	for _, id := range ids {
		course, err := s.courseRepo.GetCourse(ctx, id)
		if err != nil {
			if err == repository.ErrCourseNotFound {
				// Progress can outlive a retired course.
				continue
			}
			return nil, err
		}
		summaries = append(summaries, model.CourseSummary{
			ID:          course.ID,
			Title:       course.Title,
			Description: course.Description,
			Instructor:  course.Instructor,
			Price:       course.Price,
			Thumbnail:   course.Thumbnail,
		})
	}
	return summaries, nil
}

func completionPercentage(course *model.Course, progress *model.CourseProgress) int {
	total := len(course.Videos) + len(course.Materials) + len(course.Exams)
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(progress.CompletedCount()) / float64(total) * 100))
}
