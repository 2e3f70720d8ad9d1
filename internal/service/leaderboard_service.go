package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/smartlearn/smartlearn-backend/internal/config"
	"github.com/smartlearn/smartlearn-backend/internal/model"
)

// LeaderboardLimit caps how many entries a leaderboard exposes.
const LeaderboardLimit = 100

// SubmissionLister is the slice of the submission repository the leaderboard
// needs.
type SubmissionLister interface {
	ListByExam(ctx context.Context, examID string) ([]model.ExamSubmission, error)
}

// LeaderboardService ranks live-window submissions and keeps the result
// cached in Redis so reads never hit Postgres on the hot path.
type LeaderboardService struct {
	subs SubmissionLister
	rdb  *redis.Client
	ttl  time.Duration
	log  zerolog.Logger
}

// NewLeaderboardService creates a new LeaderboardService.
func NewLeaderboardService(subs SubmissionLister, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *LeaderboardService {
	return &LeaderboardService{
		subs: subs,
		rdb:  rdb,
		ttl:  ttl,
		log:  log.With().Str("component", "leaderboard_service").Logger(),
	}
}

// BuildLeaderboard ranks submissions: higher score first, faster completion
// breaking ties, original order breaking exact ties. Only submissions flagged
// for the leaderboard participate, and the result is capped at
// LeaderboardLimit entries with dense 1-based ranks.
func BuildLeaderboard(subs []model.ExamSubmission) []model.LeaderboardEntry {
	eligible := make([]model.ExamSubmission, 0, len(subs))
	for _, sub := range subs {
		if sub.OnLeaderboard {
			eligible = append(eligible, sub)
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].Score != eligible[j].Score {
			return eligible[i].Score > eligible[j].Score
		}
		return eligible[i].Elapsed() < eligible[j].Elapsed()
	})

	if len(eligible) > LeaderboardLimit {
		eligible = eligible[:LeaderboardLimit]
	}

	entries := make([]model.LeaderboardEntry, 0, len(eligible))
	for i, sub := range eligible {
		entries = append(entries, model.LeaderboardEntry{
			Rank:      i + 1,
			Name:      sub.UserName,
			Score:     sub.Score,
			TimeTaken: sub.TimeTakenSeconds(),
		})
	}
	return entries
}

// Rank returns the cached leaderboard for an exam, rebuilding it from
// Postgres on a miss.
func (s *LeaderboardService) Rank(ctx context.Context, examID string) ([]model.LeaderboardEntry, error) {
	key := config.CacheKey.LeaderboardKey(examID)

	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var entries []model.LeaderboardEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("unmarshal leaderboard: %w", err)
		}
		return entries, nil
	}
	if err != redis.Nil {
		s.log.Warn().Err(err).Str("exam_id", examID).Msg("leaderboard cache read failed, rebuilding")
	}

	return s.RefreshCache(ctx, examID)
}

// RefreshCache rebuilds the leaderboard for an exam from the submission
// store and writes it back to Redis.
func (s *LeaderboardService) RefreshCache(ctx context.Context, examID string) ([]model.LeaderboardEntry, error) {
	subs, err := s.subs.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	entries := BuildLeaderboard(subs)

	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("marshal leaderboard: %w", err)
	}
	if err := s.rdb.Set(ctx, config.CacheKey.LeaderboardKey(examID), data, s.ttl).Err(); err != nil {
		// The rebuilt ranking is still valid for this caller.
		s.log.Warn().Err(err).Str("exam_id", examID).Msg("leaderboard cache write failed")
	}
	return entries, nil
}
