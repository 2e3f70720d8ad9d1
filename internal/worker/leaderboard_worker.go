package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/smartlearn/smartlearn-backend/internal/config"
	"github.com/smartlearn/smartlearn-backend/internal/model"
	"github.com/smartlearn/smartlearn-backend/internal/service"
)

// LeaderboardRefresher rebuilds one exam's cached leaderboard.
type LeaderboardRefresher interface {
	RefreshCache(ctx context.Context, examID string) ([]model.LeaderboardEntry, error)
}

// LeaderboardWorker consumes leaderboard_refresh_queue and rebuilds the
// cached ranking after each submission. It also clears the submitting
// learner's autosave mirror, which is dead weight once the attempt is scored.
type LeaderboardWorker struct {
	refresher LeaderboardRefresher
	rdb       *redis.Client
	log       zerolog.Logger
}

// NewLeaderboardWorker creates a new LeaderboardWorker.
func NewLeaderboardWorker(refresher LeaderboardRefresher, rdb *redis.Client, log zerolog.Logger) *LeaderboardWorker {
	return &LeaderboardWorker{
		refresher: refresher,
		rdb:       rdb,
		log:       log.With().Str("component", "leaderboard_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *LeaderboardWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *LeaderboardWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.LeaderboardRefreshQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var event service.RefreshEvent
	if err := json.Unmarshal([]byte(result[1]), &event); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return
	}

	if err := w.handle(ctx, &event); err != nil {
		w.log.Error().Err(err).
			Str("exam_id", event.ExamID).
			Str("user_id", event.UserID).
			Msg("Refresh error, retrying in 5s")
		// Push back to queue for retry.
		w.rdb.RPush(ctx, config.WorkerKey.LeaderboardRefreshQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

func (w *LeaderboardWorker) handle(ctx context.Context, event *service.RefreshEvent) error {
	if _, err := w.refresher.RefreshCache(ctx, event.ExamID); err != nil {
		return err
	}

	// The session mirrors only exist to survive reconnects mid-attempt.
	// Both must go once the attempt is scored, otherwise a stale start key
	// makes a later reconnect look like a still-running session.
	if event.UserID != "" {
		keys := []string{
			config.CacheKey.LearnerAnswersKey(event.ExamID, event.UserID),
			config.CacheKey.LearnerSessionStartKey(event.ExamID, event.UserID),
		}
		if err := w.rdb.Del(ctx, keys...).Err(); err != nil {
			w.log.Warn().Err(err).
				Str("exam_id", event.ExamID).
				Str("user_id", event.UserID).
				Msg("Mirror cleanup failed")
		}
	}

	w.log.Debug().Str("exam_id", event.ExamID).Msg("Leaderboard refreshed")
	return nil
}

// drain processes all remaining items in the queue before shutdown.
func (w *LeaderboardWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.LeaderboardRefreshQueue).Result()
		if err != nil {
			break
		}

		var event service.RefreshEvent
		if err := json.Unmarshal([]byte(result), &event); err != nil {
			continue
		}
		if err := w.handle(ctx, &event); err != nil {
			w.log.Error().Err(err).Str("exam_id", event.ExamID).Msg("Drain refresh error")
			continue
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained refresh queue")
	}
}
