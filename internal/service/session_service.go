package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/smartlearn/smartlearn-backend/internal/config"
	"github.com/smartlearn/smartlearn-backend/internal/model"
	"github.com/smartlearn/smartlearn-backend/internal/repository"
	"github.com/smartlearn/smartlearn-backend/internal/session"
)

// RefreshEvent is the queue payload produced after every persisted
// submission and consumed by the leaderboard worker.
type RefreshEvent struct {
	ExamID string `json:"exam_id"`
	UserID string `json:"user_id"`
}

// SubmissionStore is the durable submission sink plus the read-back used
// once a submitted session has been evicted from memory. The Postgres
// repository satisfies it in production.
type SubmissionStore interface {
	session.SubmissionStore
	GetByExamAndUser(ctx context.Context, examID, userID string) (*model.ExamSubmission, error)
}

// SessionService orchestrates exam sessions: it resolves exams from the
// catalog, drives the in-memory state machine, and mirrors live answers to
// Redis so reconnecting clients can restore their state.
type SessionService struct {
	manager *session.Manager
	store   SubmissionStore
	catalog *CatalogService
	rdb     *redis.Client
	log     zerolog.Logger
}

// NewSessionService creates a SessionService owning its session manager.
// opts tune the state machine; tests shrink the tick.
func NewSessionService(catalog *CatalogService, store SubmissionStore, rdb *redis.Client, log zerolog.Logger, opts session.Options) *SessionService {
	s := &SessionService{
		store:   store,
		catalog: catalog,
		rdb:     rdb,
		log:     log.With().Str("component", "session_service").Logger(),
	}
	if opts.AfterSubmit == nil {
		opts.AfterSubmit = s.enqueueRefresh
	}
	s.manager = session.NewManager(store, log, opts)
	return s
}

// Manager exposes the session manager for shutdown wiring.
func (s *SessionService) Manager() *session.Manager { return s.manager }

// Begin opens the learner's session for an exam. Re-opening returns the
// current state unchanged (a second tab never spawns a second countdown).
func (s *SessionService) Begin(ctx context.Context, examID string, learner session.Identity) (session.State, error) {
	exam, err := s.catalog.GetExam(ctx, examID)
	if err != nil {
		return session.State{}, err
	}

	sess, err := s.manager.Begin(exam, learner)
	if err != nil {
		return session.State{}, err
	}

	st := sess.State()
	if st.StartedAt != nil {
		// Best-effort mirror for reconnecting clients on other devices.
		startKey := config.CacheKey.LearnerSessionStartKey(examID, learner.UserID)
		if err := s.rdb.Set(ctx, startKey, st.StartedAt.Unix(), 0).Err(); err != nil {
			s.log.Warn().Err(err).Str("exam_id", examID).Msg("Failed to mirror session start")
		}
	}
	return st, nil
}

// RecordAnswer stores an answer on the running session and mirrors it to the
// Redis answer hash. A mirror failure is logged, not surfaced — the in-memory
// session remains authoritative.
func (s *SessionService) RecordAnswer(ctx context.Context, examID string, learner session.Identity, questionID, value string) error {
	sess, err := s.manager.Get(examID, learner.UserID)
	if err != nil {
		return err
	}
	if err := sess.RecordAnswer(questionID, value); err != nil {
		return err
	}

	answersKey := config.CacheKey.LearnerAnswersKey(examID, learner.UserID)
	if err := s.rdb.HSet(ctx, answersKey, questionID, value).Err(); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID).Msg("Answer mirror write failed")
	}
	return nil
}

// Submit finishes the learner's attempt. Errors leave the session running;
// the caller may retry. A repeat submit after the session has been evicted
// returns the persisted record, keeping the operation idempotent.
func (s *SessionService) Submit(ctx context.Context, examID string, learner session.Identity) (*model.ExamSubmission, error) {
	sess, err := s.manager.Get(examID, learner.UserID)
	if err == nil {
		return sess.Submit(ctx)
	}
	if err != session.ErrSessionNotFound {
		return nil, err
	}

	sub, getErr := s.store.GetByExamAndUser(ctx, examID, learner.UserID)
	if getErr == nil {
		return sub, nil
	}
	if errors.Is(getErr, repository.ErrSubmissionNotFound) {
		return nil, session.ErrSessionNotFound
	}
	return nil, getErr
}

// State returns the current session snapshot for reconnecting clients. When
// this process no longer holds the session (submitted and evicted, restart,
// other node), a persisted submission wins over the Redis running-state
// mirror; the mirror is the fallback for attempts still in flight.
func (s *SessionService) State(ctx context.Context, examID string, learner session.Identity) (session.State, error) {
	sess, err := s.manager.Get(examID, learner.UserID)
	if err == nil {
		return sess.State(), nil
	}
	if err != session.ErrSessionNotFound {
		return session.State{}, err
	}

	sub, getErr := s.store.GetByExamAndUser(ctx, examID, learner.UserID)
	if getErr == nil {
		return s.submittedState(ctx, sub)
	}
	if !errors.Is(getErr, repository.ErrSubmissionNotFound) {
		return session.State{}, getErr
	}
	return s.stateFromMirror(ctx, examID, learner.UserID)
}

// submittedState rebuilds a Submitted snapshot from the persisted record.
func (s *SessionService) submittedState(ctx context.Context, sub *model.ExamSubmission) (session.State, error) {
	answers := sub.Answers
	if answers == nil {
		answers = map[string]string{}
	}
	started := sub.StartTime
	st := session.State{
		Phase:     session.PhaseSubmitted,
		StartedAt: &started,
		Answers:   answers,
	}

	exam, err := s.catalog.GetExam(ctx, sub.ExamID)
	if err != nil {
		return session.State{}, err
	}
	if exam.Kind == model.ExamKindChoice {
		score := sub.Score
		st.Score = &score
	}
	return st, nil
}

// stateFromMirror reconstructs a snapshot from the Redis answer hash and the
// mirrored start time. Missing mirror data means there is no session.
func (s *SessionService) stateFromMirror(ctx context.Context, examID, userID string) (session.State, error) {
	startVal, err := s.rdb.Get(ctx, config.CacheKey.LearnerSessionStartKey(examID, userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return session.State{}, session.ErrSessionNotFound
		}
		return session.State{}, fmt.Errorf("get mirrored start: %w", err)
	}

	answers, err := s.MirroredAnswers(ctx, examID, userID)
	if err != nil {
		return session.State{}, fmt.Errorf("get mirrored answers: %w", err)
	}
	if answers == nil {
		answers = map[string]string{}
	}

	st := session.State{Phase: session.PhaseRunning, Answers: answers}
	if startUnix, parseErr := strconv.ParseInt(startVal, 10, 64); parseErr == nil {
		started := time.Unix(startUnix, 0)
		st.StartedAt = &started
	}

	exam, err := s.catalog.GetExam(ctx, examID)
	if err != nil {
		return session.State{}, err
	}
	if exam.Timed() {
		if remaining, ok := remainingFromMirror(startVal, *exam.DurationMinutes, time.Now().Unix()); ok {
			st.RemainingSeconds = &remaining
		}
	}
	return st, nil
}

// Teardown discards the learner's session (navigation away / logout). The
// countdown is cancelled; nothing is persisted.
func (s *SessionService) Teardown(ctx context.Context, examID string, learner session.Identity) {
	s.manager.Teardown(examID, learner.UserID)

	keys := []string{
		config.CacheKey.LearnerAnswersKey(examID, learner.UserID),
		config.CacheKey.LearnerSessionStartKey(examID, learner.UserID),
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID).Msg("Session mirror cleanup failed")
	}
}

// MirroredAnswers returns the Redis answer hash for a session, used when the
// in-memory session is gone (e.g. a different node) and a client reconnects.
func (s *SessionService) MirroredAnswers(ctx context.Context, examID, userID string) (map[string]string, error) {
	return s.rdb.HGetAll(ctx, config.CacheKey.LearnerAnswersKey(examID, userID)).Result()
}

// enqueueRefresh pushes a leaderboard refresh event after a submission has
// been persisted. Runs outside the session lock; failures are logged and the
// cache TTL covers the gap.
func (s *SessionService) enqueueRefresh(sub *model.ExamSubmission) {
	payload, err := json.Marshal(RefreshEvent{ExamID: sub.ExamID, UserID: sub.UserID})
	if err != nil {
		return
	}
	ctx := context.Background()
	if err := s.rdb.RPush(ctx, config.WorkerKey.LeaderboardRefreshQueue, payload).Err(); err != nil {
		s.log.Error().Err(err).
			Str("exam_id", sub.ExamID).
			Msg("Failed to enqueue leaderboard refresh")
	}
}

// remainingFromMirror recovers remaining seconds from the mirrored start
// time, for clients asking about a session this process no longer holds.
func remainingFromMirror(startUnix string, durationMinutes int, nowUnix int64) (int, bool) {
	started, err := strconv.ParseInt(startUnix, 10, 64)
	if err != nil {
		return 0, false
	}
	remaining := int64(durationMinutes)*60 - (nowUnix - started)
	if remaining < 0 {
		remaining = 0
	}
	return int(remaining), true
}
