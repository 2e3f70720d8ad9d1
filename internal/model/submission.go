package model

import (
	"math"
	"time"
)

// ExamSubmission is the persisted record of one learner's completed attempt.
// Exactly one row exists per (exam, learner); a resubmission overwrites it.
type ExamSubmission struct {
	ID       string            `json:"id"` // "<examId>-<userId>"
	ExamID   string            `json:"examId"`
	UserID   string            `json:"userId"`
	UserName string            `json:"userName"`
	Answers  map[string]string `json:"answers"`
	// StartTime/EndTime serialize as ISO-8601 (RFC 3339).
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	Score         int       `json:"score"` // 0..100
	OnLeaderboard bool      `json:"onLeaderboard"`
}

// SubmissionID builds the composite submission identifier.
func SubmissionID(examID, userID string) string {
	return examID + "-" + userID
}

// Elapsed returns the attempt duration.
func (s *ExamSubmission) Elapsed() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// LeaderboardEntry is a derived, never-persisted ranking row.
type LeaderboardEntry struct {
	Rank      int    `json:"rank"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
	TimeTaken int    `json:"timeTaken"` // seconds
}

// TimeTakenSeconds rounds the attempt duration to whole seconds for display.
func (s *ExamSubmission) TimeTakenSeconds() int {
	return int(math.Round(s.Elapsed().Seconds()))
}
