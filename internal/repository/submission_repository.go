package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smartlearn/smartlearn-backend/internal/model"
)

// ErrSubmissionNotFound is returned when no submission exists for the key.
var ErrSubmissionNotFound = errors.New("submission not found")

// SubmissionRepository handles exam submission data access. The table is
// keyed (exam_id, user_id): one row per learner per exam, resubmission
// overwrites.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// Upsert writes a submission, overwriting any prior record with the same
// (exam, learner) key.
func (r *SubmissionRepository) Upsert(ctx context.Context, s *model.ExamSubmission) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO exam_submissions
		     (exam_id, user_id, user_name, answers, start_time, end_time, score, on_leaderboard, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		 ON CONFLICT (exam_id, user_id) DO UPDATE
		 SET user_name      = EXCLUDED.user_name,
		     answers        = EXCLUDED.answers,
		     start_time     = EXCLUDED.start_time,
		     end_time       = EXCLUDED.end_time,
		     score          = EXCLUDED.score,
		     on_leaderboard = EXCLUDED.on_leaderboard,
		     submitted_at   = NOW()`,
		s.ExamID, s.UserID, s.UserName, s.Answers, s.StartTime, s.EndTime, s.Score, s.OnLeaderboard,
	)
	return err
}

// GetByExamAndUser retrieves one learner's submission for an exam.
func (r *SubmissionRepository) GetByExamAndUser(ctx context.Context, examID, userID string) (*model.ExamSubmission, error) {
	s := &model.ExamSubmission{}
	err := r.pool.QueryRow(ctx,
		`SELECT exam_id, user_id, user_name, answers, start_time, end_time, score, on_leaderboard
		 FROM exam_submissions
		 WHERE exam_id = $1 AND user_id = $2`, examID, userID,
	).Scan(&s.ExamID, &s.UserID, &s.UserName, &s.Answers, &s.StartTime, &s.EndTime, &s.Score, &s.OnLeaderboard)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	s.ID = model.SubmissionID(s.ExamID, s.UserID)
	return s, nil
}

// ListByExam retrieves all submissions for an exam. Order is deterministic
// (submitted_at, then user_id) so the ranking engine's stable sort sees a
// fixed input order.
func (r *SubmissionRepository) ListByExam(ctx context.Context, examID string) ([]model.ExamSubmission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT exam_id, user_id, user_name, answers, start_time, end_time, score, on_leaderboard
		 FROM exam_submissions
		 WHERE exam_id = $1
		 ORDER BY submitted_at ASC, user_id ASC`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []model.ExamSubmission
	for rows.Next() {
		var s model.ExamSubmission
		if err := rows.Scan(&s.ExamID, &s.UserID, &s.UserName, &s.Answers, &s.StartTime, &s.EndTime, &s.Score, &s.OnLeaderboard); err != nil {
			return nil, err
		}
		s.ID = model.SubmissionID(s.ExamID, s.UserID)
		subs = append(subs, s)
	}
	return subs, rows.Err()
}
