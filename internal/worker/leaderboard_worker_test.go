package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/smartlearn/smartlearn-backend/internal/config"
	"github.com/smartlearn/smartlearn-backend/internal/model"
	"github.com/smartlearn/smartlearn-backend/internal/service"
)

type fakeRefresher struct {
	mu    sync.Mutex
	exams []string
}

func (f *fakeRefresher) RefreshCache(ctx context.Context, examID string) ([]model.LeaderboardEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exams = append(f.exams, examID)
	return nil, nil
}

func (f *fakeRefresher) refreshed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.exams...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within deadline")
}

func TestWorkerRefreshesAndCleansMirror(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	ctx := context.Background()
	answersKey := config.CacheKey.LearnerAnswersKey("exam-1", "user-1")
	startKey := config.CacheKey.LearnerSessionStartKey("exam-1", "user-1")
	if err := rdb.HSet(ctx, answersKey, "q1", "B").Err(); err != nil {
		t.Fatalf("seed answer mirror: %v", err)
	}
	if err := rdb.Set(ctx, startKey, time.Now().Unix(), 0).Err(); err != nil {
		t.Fatalf("seed start mirror: %v", err)
	}

	payload, _ := json.Marshal(service.RefreshEvent{ExamID: "exam-1", UserID: "user-1"})
	if err := rdb.RPush(ctx, config.WorkerKey.LeaderboardRefreshQueue, payload).Err(); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	refresher := &fakeRefresher{}
	w := NewLeaderboardWorker(refresher, rdb, zerolog.Nop())

	workerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Start(workerCtx)
	}()

	waitFor(t, func() bool {
		exams := refresher.refreshed()
		return len(exams) == 1 && exams[0] == "exam-1"
	})
	// A leftover start key would make a reconnect after the submit look
	// like a running session, so both mirror keys must be gone.
	waitFor(t, func() bool {
		return rdb.Exists(ctx, answersKey, startKey).Val() == 0
	})

	cancel()
	<-done
}

func TestWorkerDrainsQueueOnShutdown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	ctx := context.Background()
	for _, examID := range []string{"exam-1", "exam-2"} {
		payload, _ := json.Marshal(service.RefreshEvent{ExamID: examID, UserID: "user-1"})
		if err := rdb.RPush(ctx, config.WorkerKey.LeaderboardRefreshQueue, payload).Err(); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	refresher := &fakeRefresher{}
	w := NewLeaderboardWorker(refresher, rdb, zerolog.Nop())

	// Cancelled before Start: the loop must still drain pending events.
	workerCtx, cancel := context.WithCancel(ctx)
	cancel()
	w.Start(workerCtx)

	exams := refresher.refreshed()
	if len(exams) != 2 {
		t.Fatalf("expected 2 refreshes during drain, got %d", len(exams))
	}
	if n := rdb.LLen(ctx, config.WorkerKey.LeaderboardRefreshQueue).Val(); n != 0 {
		t.Fatalf("queue not empty after drain: %d items", n)
	}
}
