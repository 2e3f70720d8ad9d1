package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smartlearn/smartlearn-backend/internal/model"
)

// ProgressRepository tracks per-learner completion of course items.
type ProgressRepository struct {
	pool *pgxpool.Pool
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(pool *pgxpool.Pool) *ProgressRepository {
	return &ProgressRepository{pool: pool}
}

// Toggle flips completion of one item: marks it complete if currently
// incomplete and vice versa. Returns the new completion state.
func (r *ProgressRepository) Toggle(ctx context.Context, userID, courseID string, itemType model.ProgressItemType, itemID string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM course_progress
		 WHERE user_id = $1 AND course_id = $2 AND item_type = $3 AND item_id = $4`,
		userID, courseID, itemType, itemID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() > 0 {
		return false, nil // Was complete, now incomplete.
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO course_progress (user_id, course_id, item_type, item_id)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, course_id, item_type, item_id) DO NOTHING`,
		userID, courseID, itemType, itemID)
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetCourseProgress returns the learner's completed item IDs for a course,
// grouped by item type. Missing progress is an empty value, not an error.
func (r *ProgressRepository) GetCourseProgress(ctx context.Context, userID, courseID string) (*model.CourseProgress, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT item_type, item_id FROM course_progress
		 WHERE user_id = $1 AND course_id = $2
		 ORDER BY completed_at ASC`, userID, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	progress := &model.CourseProgress{
		Videos:    []string{},
		Materials: []string{},
		Exams:     []string{},
	}
	for rows.Next() {
		var itemType model.ProgressItemType
		var itemID string
		if err := rows.Scan(&itemType, &itemID); err != nil {
			return nil, err
		}
		switch itemType {
		case model.ProgressItemVideo:
			progress.Videos = append(progress.Videos, itemID)
		case model.ProgressItemMaterial:
			progress.Materials = append(progress.Materials, itemID)
		case model.ProgressItemExam:
			progress.Exams = append(progress.Exams, itemID)
		}
	}
	return progress, rows.Err()
}

// ListStartedCourseIDs returns the IDs of courses where the learner has
// completed at least one item, newest activity first.
func (r *ProgressRepository) ListStartedCourseIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT course_id FROM course_progress
		 WHERE user_id = $1
		 GROUP BY course_id
		 ORDER BY MAX(completed_at) DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
