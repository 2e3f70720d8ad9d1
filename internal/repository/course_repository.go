package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smartlearn/smartlearn-backend/internal/model"
)

// Catalog lookup errors.
var (
	ErrCourseNotFound = errors.New("course not found")
	ErrExamNotFound   = errors.New("exam not found")
)

// CourseRepository reads the course catalog. The catalog is authored
// elsewhere; this service only ever selects from it.
type CourseRepository struct {
	pool *pgxpool.Pool
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(pool *pgxpool.Pool) *CourseRepository {
	return &CourseRepository{pool: pool}
}

// ListCourses returns all catalog entries as summaries.
func (r *CourseRepository) ListCourses(ctx context.Context) ([]model.CourseSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, description, instructor, price, thumbnail
		 FROM courses
		 ORDER BY title ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []model.CourseSummary
	for rows.Next() {
		var c model.CourseSummary
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.Instructor, &c.Price, &c.Thumbnail); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// GetCourse loads one course with all nested content.
func (r *CourseRepository) GetCourse(ctx context.Context, courseID string) (*model.Course, error) {
	c := &model.Course{
		Videos:    []model.Video{},
		Materials: []model.Material{},
		Feed:      []model.FeedPost{},
		Exams:     []model.Exam{},
	}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, description, long_description, instructor, price, thumbnail
		 FROM courses WHERE id = $1`, courseID,
	).Scan(&c.ID, &c.Title, &c.Description, &c.LongDescription, &c.Instructor, &c.Price, &c.Thumbnail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}

	if c.Videos, err = r.listVideos(ctx, courseID); err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	if c.Materials, err = r.listMaterials(ctx, courseID); err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	if c.Feed, err = r.listFeed(ctx, courseID); err != nil {
		return nil, fmt.Errorf("list feed: %w", err)
	}
	if c.Exams, err = r.listExams(ctx, courseID); err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	return c, nil
}

// GetExam loads one exam with its questions, including answer keys.
// Callers serving learners must strip keys via model.PaperFor.
func (r *CourseRepository) GetExam(ctx context.Context, examID string) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, course_id, title, description, instructions, kind,
		        duration_minutes, live_window_start, live_window_end
		 FROM exams WHERE id = $1`, examID,
	).Scan(&e.ID, &e.CourseID, &e.Title, &e.Description, &e.Instructions, &e.Kind,
		&e.DurationMinutes, &e.LiveWindowStart, &e.LiveWindowEnd)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}

	if e.Questions, err = r.listQuestions(ctx, examID); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return e, nil
}

// ListAllExams returns every exam in the catalog with questions attached.
// Used to prewarm the paper cache at startup.
func (r *CourseRepository) ListAllExams(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, course_id, title, description, instructions, kind,
		        duration_minutes, live_window_start, live_window_end
		 FROM exams
		 ORDER BY course_id ASC, position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.CourseID, &e.Title, &e.Description, &e.Instructions, &e.Kind,
			&e.DurationMinutes, &e.LiveWindowStart, &e.LiveWindowEnd); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range exams {
		if exams[i].Questions, err = r.listQuestions(ctx, exams[i].ID); err != nil {
			return nil, fmt.Errorf("list questions for %s: %w", exams[i].ID, err)
		}
	}
	return exams, nil
}

func (r *CourseRepository) listVideos(ctx context.Context, courseID string) ([]model.Video, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, youtube_id FROM videos
		 WHERE course_id = $1 ORDER BY position ASC`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	videos := []model.Video{}
	for rows.Next() {
		var v model.Video
		if err := rows.Scan(&v.ID, &v.Title, &v.YoutubeID); err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func (r *CourseRepository) listMaterials(ctx context.Context, courseID string) ([]model.Material, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, url FROM materials
		 WHERE course_id = $1 ORDER BY position ASC`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	materials := []model.Material{}
	for rows.Next() {
		var m model.Material
		if err := rows.Scan(&m.ID, &m.Title, &m.URL); err != nil {
			return nil, err
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}

func (r *CourseRepository) listFeed(ctx context.Context, courseID string) ([]model.FeedPost, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, author, content, posted_at FROM feed_posts
		 WHERE course_id = $1 ORDER BY posted_at DESC`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	feed := []model.FeedPost{}
	for rows.Next() {
		var p model.FeedPost
		if err := rows.Scan(&p.ID, &p.Author, &p.Content, &p.PostedAt); err != nil {
			return nil, err
		}
		feed = append(feed, p)
	}
	return feed, rows.Err()
}

func (r *CourseRepository) listExams(ctx context.Context, courseID string) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, course_id, title, description, instructions, kind,
		        duration_minutes, live_window_start, live_window_end
		 FROM exams
		 WHERE course_id = $1 ORDER BY position ASC`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exams := []model.Exam{}
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.CourseID, &e.Title, &e.Description, &e.Instructions, &e.Kind,
			&e.DurationMinutes, &e.LiveWindowStart, &e.LiveWindowEnd); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range exams {
		if exams[i].Questions, err = r.listQuestions(ctx, exams[i].ID); err != nil {
			return nil, err
		}
	}
	return exams, nil
}

func (r *CourseRepository) listQuestions(ctx context.Context, examID string) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, text, options, answer FROM questions
		 WHERE exam_id = $1 ORDER BY position ASC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []model.Question{}
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.Text, &q.Options, &q.Answer); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
