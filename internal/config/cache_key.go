package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamPaperKey returns the cache key for a learner-facing exam paper
// (questions without answer keys).
func (r *CacheKeyStruct) ExamPaperKey(examID string) string {
	return fmt.Sprintf("exam:%s:paper", examID)
}

// LearnerAnswersKey returns the cache key for the live answer mirror of a
// learner's running exam session.
func (r *CacheKeyStruct) LearnerAnswersKey(examID, userID string) string {
	return fmt.Sprintf("learner:%s:exam:%s:answers", userID, examID)
}

// LearnerSessionStartKey returns the cache key for a learner's session start
// timestamp, used by reconnecting clients.
func (r *CacheKeyStruct) LearnerSessionStartKey(examID, userID string) string {
	return fmt.Sprintf("learner:%s:exam:%s:session_start", userID, examID)
}

// LeaderboardKey returns the cache key for the ranked leaderboard of an exam.
func (r *CacheKeyStruct) LeaderboardKey(examID string) string {
	return fmt.Sprintf("exam:%s:leaderboard", examID)
}

var CacheKey = NewCacheKeyStruct()
