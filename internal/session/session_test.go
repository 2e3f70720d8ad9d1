package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/smartlearn/smartlearn-backend/internal/model"
)

// memStore is an in-memory SubmissionStore with the same upsert semantics as
// the Postgres repository.
type memStore struct {
	mu      sync.Mutex
	subs    map[string]*model.ExamSubmission
	upserts int
	failErr error
}

func newMemStore() *memStore {
	return &memStore{subs: make(map[string]*model.ExamSubmission)}
}

func (s *memStore) Upsert(_ context.Context, sub *model.ExamSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.upserts++
	s.subs[sub.ID] = sub
	return nil
}

func (s *memStore) get(id string) (*model.ExamSubmission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	return sub, ok
}

func (s *memStore) setFail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upserts
}

func intPtr(n int) *int { return &n }

func choiceExam() *model.Exam {
	return &model.Exam{
		ID:       "e1",
		CourseID: "react-mastery",
		Title:    "Mid-term",
		Kind:     model.ExamKindChoice,
		Questions: []model.Question{
			{ID: "q1", Text: "What is JSX?", Options: []string{"A", "B"}, Answer: "A"},
			{ID: "q2", Text: "Which hook?", Options: []string{"B", "C"}, Answer: "B"},
		},
	}
}

func alice() Identity { return Identity{UserID: "user1", Name: "Alice"} }

func newTestSession(exam *model.Exam, store SubmissionStore, opts Options) *Session {
	if opts.TickInterval == 0 {
		opts.TickInterval = 2 * time.Millisecond
	}
	return NewSession(exam, alice(), store, zerolog.Nop(), opts)
}

func TestBeginOutsideLiveWindow(t *testing.T) {
	start := time.Date(2099, 1, 1, 10, 0, 0, 0, time.UTC)
	end := time.Date(2099, 1, 1, 22, 0, 0, 0, time.UTC)
	exam := choiceExam()
	exam.LiveWindowStart = &start
	exam.LiveWindowEnd = &end

	cases := []struct {
		name string
		now  time.Time
		want error
	}{
		{"before window", start.Add(-time.Minute), ErrNotLive},
		{"at start", start, nil},
		{"inside", start.Add(time.Hour), nil},
		{"at end (exclusive)", end, ErrNotLive},
		{"after window", end.Add(time.Minute), ErrNotLive},
	}
	for _, tc := range cases {
		sess := newTestSession(exam, newMemStore(), Options{Now: func() time.Time { return tc.now }})
		err := sess.Begin()
		if !errors.Is(err, tc.want) && !(err == nil && tc.want == nil) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
		if tc.want != nil && sess.State().Phase != PhaseNotStarted {
			t.Fatalf("%s: refused begin must stay NOT_STARTED", tc.name)
		}
	}
}

func TestAnswersLastWriteWins(t *testing.T) {
	sess := newTestSession(choiceExam(), newMemStore(), Options{})

	if err := sess.RecordAnswer("q1", "A"); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("answer before begin: got %v, want ErrNotRunning", err)
	}

	if err := sess.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	_ = sess.RecordAnswer("q1", "B")
	_ = sess.RecordAnswer("q1", "A")

	st := sess.State()
	if st.Answers["q1"] != "A" {
		t.Fatalf("expected last write to win, got %q", st.Answers["q1"])
	}
}

func TestSubmitScoresAndPersistsOnce(t *testing.T) {
	store := newMemStore()
	sess := newTestSession(choiceExam(), store, Options{})

	if err := sess.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	_ = sess.RecordAnswer("q1", "A")
	_ = sess.RecordAnswer("q2", "C") // wrong

	first, err := sess.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if first.Score != 50 {
		t.Fatalf("expected score 50, got %d", first.Score)
	}
	if first.ID != "e1-user1" {
		t.Fatalf("unexpected submission id %q", first.ID)
	}

	if err := sess.RecordAnswer("q2", "B"); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("answer after submit: got %v, want ErrAlreadySubmitted", err)
	}

	// Submit after Submitted is a no-op returning the stored record.
	second, err := sess.Submit(context.Background())
	if err != nil {
		t.Fatalf("repeat submit: %v", err)
	}
	if second != first {
		t.Fatalf("repeat submit must return the original record")
	}
	if store.count() != 1 {
		t.Fatalf("expected exactly one persisted write, got %d", store.count())
	}
}

func TestFailedSubmitLeavesSessionRunning(t *testing.T) {
	store := newMemStore()
	store.setFail(errors.New("connection refused"))
	sess := newTestSession(choiceExam(), store, Options{})

	if err := sess.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	_ = sess.RecordAnswer("q1", "A")

	if _, err := sess.Submit(context.Background()); err == nil {
		t.Fatal("expected submit to fail")
	}
	if st := sess.State(); st.Phase != PhaseRunning {
		t.Fatalf("failed submit must leave session RUNNING, got %s", st.Phase)
	}

	// The learner retries once the store recovers.
	store.setFail(nil)
	sub, err := sess.Submit(context.Background())
	if err != nil {
		t.Fatalf("retry submit: %v", err)
	}
	if sub.Score != 50 {
		t.Fatalf("expected score 50, got %d", sub.Score)
	}
}

func descriptiveExam() *model.Exam {
	return &model.Exam{
		ID:       "e2",
		CourseID: "react-mastery",
		Title:    "Final Project",
		Kind:     model.ExamKindDescriptive,
		Questions: []model.Question{
			{ID: "q3", Text: "Describe the virtual DOM."},
		},
	}
}

func TestDescriptiveExamNeverScoredNorRanked(t *testing.T) {
	store := newMemStore()
	sess := newTestSession(descriptiveExam(), store, Options{})

	if err := sess.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	_ = sess.RecordAnswer("q3", "It is an in-memory tree.")

	sub, err := sess.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.Score != 0 || sub.OnLeaderboard {
		t.Fatalf("descriptive submission must not be scored or ranked: %+v", sub)
	}
	if sub.Answers["q3"] != "It is an in-memory tree." {
		t.Fatal("raw answer text must be preserved")
	}
}

func TestDescriptiveExamWithLiveWindowStaysOffLeaderboard(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	exam := descriptiveExam()
	exam.LiveWindowStart = &start
	exam.LiveWindowEnd = &end

	now := start.Add(time.Minute)
	store := newMemStore()
	sess := newTestSession(exam, store, Options{Now: func() time.Time { return now }})
	if err := sess.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	now = start.Add(5 * time.Minute) // well inside the window

	sub, err := sess.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.OnLeaderboard {
		t.Fatalf("descriptive exam submitted inside its window must not be ranked: %+v", sub)
	}
	if sub.Score != 0 {
		t.Fatalf("descriptive exam must not be scored, got %d", sub.Score)
	}
}

func TestOnLeaderboardFixedAtSubmitTime(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		beginAt  time.Time
		submitAt time.Time
		want     bool
	}{
		{"inside window", start.Add(time.Minute), start.Add(2 * time.Minute), true},
		{"at window end", start.Add(time.Minute), end, true},
		{"window passed", start.Add(time.Minute), end.Add(time.Second), false},
	}
	for _, tc := range cases {
		exam := choiceExam()
		exam.LiveWindowStart = &start
		exam.LiveWindowEnd = &end

		now := tc.beginAt
		store := newMemStore()
		sess := newTestSession(exam, store, Options{Now: func() time.Time { return now }})
		if err := sess.Begin(); err != nil {
			t.Fatalf("%s: begin: %v", tc.name, err)
		}
		now = tc.submitAt

		sub, err := sess.Submit(context.Background())
		if err != nil {
			t.Fatalf("%s: submit: %v", tc.name, err)
		}
		if sub.OnLeaderboard != tc.want {
			t.Fatalf("%s: onLeaderboard = %v, want %v", tc.name, sub.OnLeaderboard, tc.want)
		}
		if !sub.StartTime.Equal(tc.beginAt) || !sub.EndTime.Equal(tc.submitAt) {
			t.Fatalf("%s: submission times not taken from session: %+v", tc.name, sub)
		}
	}
}

func TestExamWithoutWindowNeverOnLeaderboard(t *testing.T) {
	store := newMemStore()
	sess := newTestSession(choiceExam(), store, Options{})
	if err := sess.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	sub, err := sess.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.OnLeaderboard {
		t.Fatal("exam without live window must not be leaderboard-eligible")
	}
}

func TestCountdownExpiryAutoSubmitsExactlyOnce(t *testing.T) {
	exam := choiceExam()
	exam.DurationMinutes = intPtr(1) // 60 ticks at 2ms

	store := newMemStore()
	sess := newTestSession(exam, store, Options{TickInterval: 2 * time.Millisecond})

	if err := sess.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	_ = sess.RecordAnswer("q1", "A")

	waitFor(t, time.Second, func() bool {
		return sess.State().Phase == PhaseSubmitted
	})

	sub, ok := store.get("e1-user1")
	if !ok {
		t.Fatal("expected auto-submitted record in store")
	}
	if sub.Score != 50 {
		t.Fatalf("expected score 50, got %d", sub.Score)
	}

	// No further ticks after expiry: the write count must stay at one.
	time.Sleep(20 * time.Millisecond)
	if store.count() != 1 {
		t.Fatalf("expected one write after expiry, got %d", store.count())
	}
}

func TestManualSubmitCancelsCountdown(t *testing.T) {
	exam := choiceExam()
	exam.DurationMinutes = intPtr(1)

	store := newMemStore()
	sess := newTestSession(exam, store, Options{TickInterval: 2 * time.Millisecond})

	if err := sess.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := sess.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Drain well past the would-be expiry; the cancelled timer must not write.
	time.Sleep(200 * time.Millisecond)
	if store.count() != 1 {
		t.Fatalf("expected one write, got %d", store.count())
	}
}

func TestTeardownCancelsCountdown(t *testing.T) {
	exam := choiceExam()
	exam.DurationMinutes = intPtr(1)

	store := newMemStore()
	sess := newTestSession(exam, store, Options{TickInterval: 2 * time.Millisecond})

	if err := sess.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	sess.Teardown()

	// Past the expiry point: a torn-down session must never persist.
	time.Sleep(200 * time.Millisecond)
	if store.count() != 0 {
		t.Fatalf("torn-down session persisted %d writes", store.count())
	}
}

func TestRemainingSecondsNonIncreasing(t *testing.T) {
	exam := choiceExam()
	exam.DurationMinutes = intPtr(1)

	sess := newTestSession(exam, newMemStore(), Options{TickInterval: 2 * time.Millisecond})
	if err := sess.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer sess.Teardown()

	prev := 61
	for i := 0; i < 10; i++ {
		st := sess.State()
		if st.Phase != PhaseRunning {
			break
		}
		if st.RemainingSeconds == nil {
			t.Fatal("timed running session must expose remaining seconds")
		}
		if *st.RemainingSeconds > prev || *st.RemainingSeconds < 0 {
			t.Fatalf("remaining went from %d to %d", prev, *st.RemainingSeconds)
		}
		prev = *st.RemainingSeconds
		time.Sleep(5 * time.Millisecond)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
