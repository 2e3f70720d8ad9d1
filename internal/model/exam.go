package model

import "time"

// ExamKind distinguishes auto-scored choice exams from free-text ones.
type ExamKind string

const (
	ExamKindChoice      ExamKind = "mcq"
	ExamKindDescriptive ExamKind = "descriptive"
)

// Exam is an immutable assessment definition within a course.
type Exam struct {
	ID          string   `json:"id"`
	CourseID    string   `json:"courseId"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	// Instructions is pre-attempt HTML shown before a timed exam starts.
	Instructions string     `json:"instructions,omitempty"`
	Kind         ExamKind   `json:"type"`
	Questions    []Question `json:"questions"`
	// DurationMinutes is nil for untimed exams.
	DurationMinutes *int       `json:"duration,omitempty"`
	LiveWindowStart *time.Time `json:"liveWindowStart,omitempty"`
	LiveWindowEnd   *time.Time `json:"liveWindowEnd,omitempty"`
}

// Question is a single exam question. Options and Answer are only set for
// choice exams; a question without an Answer never contributes to the score.
type Question struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
	Answer  string   `json:"answer,omitempty"`
}

// Timed reports whether the exam runs against a countdown.
func (e *Exam) Timed() bool {
	return e.DurationMinutes != nil && *e.DurationMinutes > 0
}

// HasLiveWindow reports whether starting the exam is gated by a time window.
func (e *Exam) HasLiveWindow() bool {
	return e.LiveWindowStart != nil && e.LiveWindowEnd != nil
}

// LiveAt reports whether the exam may be started at the given instant.
// The window is half-open: [start, end).
func (e *Exam) LiveAt(now time.Time) bool {
	if !e.HasLiveWindow() {
		return true
	}
	return !now.Before(*e.LiveWindowStart) && now.Before(*e.LiveWindowEnd)
}

// ExamPaper is the learner-facing exam payload, stripped of answer keys.
// This is what gets cached in Redis and served to clients.
type ExamPaper struct {
	ExamID          string               `json:"examId"`
	CourseID        string               `json:"courseId"`
	Title           string               `json:"title"`
	Description     string               `json:"description,omitempty"`
	Instructions    string               `json:"instructions,omitempty"`
	Kind            ExamKind             `json:"type"`
	DurationMinutes *int                 `json:"duration,omitempty"`
	LiveWindowStart *time.Time           `json:"liveWindowStart,omitempty"`
	LiveWindowEnd   *time.Time           `json:"liveWindowEnd,omitempty"`
	Questions       []QuestionForLearner `json:"questions"`
}

// QuestionForLearner is a question without its correct answer.
type QuestionForLearner struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
}

// PaperFor builds the learner-facing payload for an exam.
func PaperFor(exam *Exam) *ExamPaper {
	questions := make([]QuestionForLearner, len(exam.Questions))
	for i, q := range exam.Questions {
		questions[i] = QuestionForLearner{
			ID:      q.ID,
			Text:    q.Text,
			Options: q.Options,
		}
	}
	return &ExamPaper{
		ExamID:          exam.ID,
		CourseID:        exam.CourseID,
		Title:           exam.Title,
		Description:     exam.Description,
		Instructions:    exam.Instructions,
		Kind:            exam.Kind,
		DurationMinutes: exam.DurationMinutes,
		LiveWindowStart: exam.LiveWindowStart,
		LiveWindowEnd:   exam.LiveWindowEnd,
		Questions:       questions,
	}
}
