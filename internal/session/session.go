// Package session implements the exam attempt state machine: one Session per
// (exam, learner), owning its countdown timer and driving scoring and
// persistence on submit.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/smartlearn/smartlearn-backend/internal/model"
	"github.com/smartlearn/smartlearn-backend/internal/scoring"
)

// Session lifecycle errors.
var (
	ErrIdentityRequired = errors.New("learner identity is required")
	ErrNotLive          = errors.New("exam is not currently available")
	ErrAlreadyStarted   = errors.New("exam session already started")
	ErrAlreadySubmitted = errors.New("exam session already submitted")
	ErrNotRunning       = errors.New("exam session is not running")
	ErrSessionNotFound  = errors.New("no active session for this exam")
)

// Phase is the single tagged state of a session. A session is exactly one of
// these at any time; submitted is terminal.
type Phase string

const (
	PhaseNotStarted Phase = "NOT_STARTED"
	PhaseRunning    Phase = "RUNNING"
	PhaseSubmitted  Phase = "SUBMITTED"
)

// Identity is the learner owning a session, supplied by the external
// identity service.
type Identity struct {
	UserID string
	Name   string
}

// SubmissionStore persists completed attempts, keyed (exam, learner) with
// overwrite-on-resubmit semantics.
type SubmissionStore interface {
	Upsert(ctx context.Context, sub *model.ExamSubmission) error
}

// Options tune session behavior. Zero values select production defaults.
type Options struct {
	// TickInterval is the countdown step, 1s in production. Tests shrink it.
	TickInterval time.Duration
	// Now overrides the clock.
	Now func() time.Time
	// AfterSubmit runs once after a submission has been persisted, outside
	// the session lock. Used to fan out leaderboard refresh events.
	AfterSubmit func(sub *model.ExamSubmission)
}

func (o Options) withDefaults() Options {
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Session tracks one learner's in-progress attempt at one exam. All methods
// are safe for concurrent use; the countdown tick and caller operations
// serialize on the session mutex.
type Session struct {
	exam        *model.Exam
	learner     Identity
	store       SubmissionStore
	log         zerolog.Logger
	tick        time.Duration
	now         func() time.Time
	afterSubmit func(*model.ExamSubmission)

	mu         sync.Mutex
	phase      Phase
	startedAt  time.Time
	remaining  int // seconds, meaningful only for timed exams while running
	answers    map[string]string
	submission *model.ExamSubmission
	closed     bool
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewSession builds a session in the NotStarted phase.
func NewSession(exam *model.Exam, learner Identity, store SubmissionStore, log zerolog.Logger, opts Options) *Session {
	opts = opts.withDefaults()
	return &Session{
		exam:    exam,
		learner: learner,
		store:   store,
		log: log.With().
			Str("exam_id", exam.ID).
			Str("user_id", learner.UserID).
			Logger(),
		tick:        opts.TickInterval,
		now:         opts.Now,
		afterSubmit: opts.AfterSubmit,
		phase:       PhaseNotStarted,
		answers:     make(map[string]string),
	}
}

// Exam returns the immutable exam definition this session runs against.
func (s *Session) Exam() *model.Exam { return s.exam }

// Learner returns the owning identity.
func (s *Session) Learner() Identity { return s.learner }

// Begin transitions NotStarted → Running. If the exam declares a live window
// and now falls outside [start, end), the session stays NotStarted and
// ErrNotLive is returned. Timed exams arm a per-session countdown.
func (s *Session) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrNotRunning
	}
	switch s.phase {
	case PhaseSubmitted:
		return ErrAlreadySubmitted
	case PhaseRunning:
		return ErrAlreadyStarted
	}

	now := s.now()
	if !s.exam.LiveAt(now) {
		return ErrNotLive
	}

	s.phase = PhaseRunning
	s.startedAt = now

	if s.exam.Timed() {
		s.remaining = *s.exam.DurationMinutes * 60
		s.stop = make(chan struct{})
		go s.runCountdown(s.stop)
	}

	s.log.Info().Bool("timed", s.exam.Timed()).Msg("Exam session started")
	return nil
}

// RecordAnswer stores the learner's answer for a question. Only valid while
// Running; the last write for a question wins. Option values are not
// validated against the question's option list.
func (s *Session) RecordAnswer(questionID, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseSubmitted {
		return ErrAlreadySubmitted
	}
	if s.closed || s.phase != PhaseRunning {
		return ErrNotRunning
	}
	s.answers[questionID] = value
	return nil
}

// Submit finishes the attempt: scores choice exams, fixes leaderboard
// eligibility from the submit instant, persists the submission, and only then
// transitions to Submitted. A persistence failure leaves the session Running
// so the learner can retry. Calling Submit after Submitted returns the stored
// record without side effects.
func (s *Session) Submit(ctx context.Context) (*model.ExamSubmission, error) {
	s.mu.Lock()

	if s.phase == PhaseSubmitted {
		sub := s.submission
		s.mu.Unlock()
		return sub, nil
	}
	if s.closed || s.phase != PhaseRunning {
		s.mu.Unlock()
		return nil, ErrNotRunning
	}

	now := s.now()
	answers := make(map[string]string, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}

	score := 0
	if s.exam.Kind == model.ExamKindChoice {
		score = scoring.Score(s.exam.Questions, answers)
	}

	// Eligibility is fixed at submit time: a choice exam with a live window,
	// submitted at or before the window's end, makes the board. Descriptive
	// exams never do, windowed or not.
	onLeaderboard := s.exam.Kind == model.ExamKindChoice &&
		s.exam.LiveWindowEnd != nil && !now.After(*s.exam.LiveWindowEnd)

	sub := &model.ExamSubmission{
		ID:            model.SubmissionID(s.exam.ID, s.learner.UserID),
		ExamID:        s.exam.ID,
		UserID:        s.learner.UserID,
		UserName:      s.learner.Name,
		Answers:       answers,
		StartTime:     s.startedAt,
		EndTime:       now,
		Score:         score,
		OnLeaderboard: onLeaderboard,
	}

	// The lock is held across the write on purpose: a timer tick racing a
	// manual submit blocks here and then observes PhaseSubmitted.
	if err := s.store.Upsert(ctx, sub); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("persist submission: %w", err)
	}

	s.phase = PhaseSubmitted
	s.submission = sub
	s.stopCountdown()
	s.mu.Unlock()

	s.log.Info().
		Int("score", sub.Score).
		Bool("on_leaderboard", sub.OnLeaderboard).
		Msg("Exam submitted")

	if s.afterSubmit != nil {
		s.afterSubmit(sub)
	}
	return sub, nil
}

// Teardown discards the session: the countdown is cancelled deterministically
// and will never tick, auto-submit, or persist afterwards.
func (s *Session) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stopCountdown()
}

// stopCountdown must be called with the mutex held.
func (s *Session) stopCountdown() {
	if s.stop != nil {
		s.stopOnce.Do(func() { close(s.stop) })
	}
}

// runCountdown decrements the remaining time once per tick and forces a
// single submit when it reaches zero. The goroutine exits on cancellation,
// on terminal transition, and after the expiry submit attempt — a failed
// expiry submit is reported once, the clock is not re-armed.
func (s *Session) runCountdown(stop <-chan struct{}) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.closed || s.phase != PhaseRunning {
				s.mu.Unlock()
				return
			}
			if s.remaining > 0 {
				s.remaining--
			}
			expired := s.remaining <= 0
			s.mu.Unlock()

			if !expired {
				continue
			}
			if _, err := s.Submit(context.Background()); err != nil && !errors.Is(err, ErrNotRunning) {
				s.log.Error().Err(err).Msg("Auto-submit on timer expiry failed")
			}
			return
		}
	}
}

// State is a point-in-time snapshot of a session.
type State struct {
	Phase     Phase      `json:"phase"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	// RemainingSeconds is set only for timed exams that have started.
	RemainingSeconds *int              `json:"remaining_seconds,omitempty"`
	Answers          map[string]string `json:"answers"`
	Score            *int              `json:"score,omitempty"`
}

// State returns a consistent snapshot; the answers map is a copy.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Phase:   s.phase,
		Answers: make(map[string]string, len(s.answers)),
	}
	for k, v := range s.answers {
		st.Answers[k] = v
	}
	if s.phase != PhaseNotStarted {
		started := s.startedAt
		st.StartedAt = &started
	}
	if s.exam.Timed() && s.phase == PhaseRunning {
		remaining := s.remaining
		st.RemainingSeconds = &remaining
	}
	if s.submission != nil && s.exam.Kind == model.ExamKindChoice {
		score := s.submission.Score
		st.Score = &score
	}
	return st
}
