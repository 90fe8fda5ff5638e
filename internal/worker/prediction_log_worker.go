package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/scorecast/internal/config"
	"github.com/stemsi/scorecast/internal/model"
)

const (
	LogBatchSize    = 50
	LogBatchTimeout = 2 * time.Second
	LogPollTimeout  = 1 * time.Second
	// LogShutdownTimeout bounds the final flush after the worker context is cancelled.
	LogShutdownTimeout = 5 * time.Second
)

// Queue is the subset of the Redis client the worker needs.
type Queue interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// PredictionLogStore persists prediction logs.
type PredictionLogStore interface {
	InsertBatch(ctx context.Context, batch []*model.PredictionLog) error
	Insert(ctx context.Context, p *model.PredictionLog) error
}

// PredictionLogWorker drains the prediction log queue into PostgreSQL in batches.
type PredictionLogWorker struct {
	queue        Queue
	store        PredictionLogStore
	log          zerolog.Logger
	batchSize    int
	batchTimeout time.Duration
	pollTimeout  time.Duration
}

func NewPredictionLogWorker(queue Queue, store PredictionLogStore, log zerolog.Logger) *PredictionLogWorker {
	return &PredictionLogWorker{
		queue:        queue,
		store:        store,
		log:          log.With().Str("component", "prediction_log_worker").Logger(),
		batchSize:    LogBatchSize,
		batchTimeout: LogBatchTimeout,
		pollTimeout:  LogPollTimeout,
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

// Start runs until ctx is cancelled, then flushes what it holds. Call in a goroutine.
func (w *PredictionLogWorker) Start(ctx context.Context) {
	w.log.Info().Msg("PredictionLogWorker started")

	batch := make([]*model.PredictionLog, 0, w.batchSize)
	lastFlush := time.Now()

	for {
		// Once cancelled, the pending batch belongs to the shutdown flush.
		if ctx.Err() == nil && len(batch) > 0 &&
			(len(batch) >= w.batchSize || time.Since(lastFlush) >= w.batchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), LogShutdownTimeout)
			w.flushSafe(flushCtx, batch)
			cancel()
			return

		default:
			item, err := w.queue.BLPop(ctx, w.pollTimeout, config.WorkerKey.PredictionLogQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p model.PredictionLog
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

// ----------------------------------------------------------------
// Batch insert with per-row fallback
// ----------------------------------------------------------------

func (w *PredictionLogWorker) flushSafe(ctx context.Context, batch []*model.PredictionLog) {
	if len(batch) == 0 {
		return
	}

	err := w.store.InsertBatch(ctx, batch)
	if err == nil {
		w.log.Debug().Int("count", len(batch)).Msg("Prediction logs persisted")
		return
	}
	w.log.Warn().Err(err).Msg("bulk insert failed, using fallback")

	for _, p := range batch {
		if err := w.store.Insert(ctx, p); err != nil {
			w.log.Error().Err(err).Str("id", p.ID.String()).Msg("Insert failed, requeueing")
			raw, err := json.Marshal(p)
			if err != nil {
				w.log.Error().Err(err).Str("id", p.ID.String()).Msg("Prediction log dropped: marshal failed")
				continue
			}
			if err := w.queue.RPush(ctx, config.WorkerKey.PredictionLogQueue, raw).Err(); err != nil {
				w.log.Error().Err(err).Str("id", p.ID.String()).Msg("Prediction log dropped: requeue failed")
			}
		}
	}
}
