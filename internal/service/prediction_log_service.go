package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/scorecast/internal/config"
	"github.com/stemsi/scorecast/internal/model"
	"github.com/stemsi/scorecast/internal/repository"
)

// ErrPredictionLogDisabled is returned when the prediction log is not configured.
var ErrPredictionLogDisabled = errors.New("prediction log is disabled")

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// PredictionLogService queues served predictions in Redis for the
// PredictionLogWorker and reads the persisted history back from PostgreSQL.
type PredictionLogService struct {
	rdb  *redis.Client
	repo *repository.PredictionLogRepository
	log  zerolog.Logger
}

// NewPredictionLogService returns nil when either store is missing, which
// callers treat as "disabled".
func NewPredictionLogService(rdb *redis.Client, repo *repository.PredictionLogRepository, log zerolog.Logger) *PredictionLogService {
	if rdb == nil || repo == nil {
		return nil
	}
	return &PredictionLogService{
		rdb:  rdb,
		repo: repo,
		log:  log.With().Str("component", "prediction_log_service").Logger(),
	}
}

// Enabled is nil-safe.
func (s *PredictionLogService) Enabled() bool {
	return s != nil
}

// Record implements PredictionRecorder by pushing onto the persist queue.
func (s *PredictionLogService) Record(ctx context.Context, entry *model.PredictionLog) error {
	if !s.Enabled() {
		return nil
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal prediction log: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PredictionLogQueue, raw).Err(); err != nil {
		return fmt.Errorf("enqueue prediction log: %w", err)
	}
	return nil
}

// Recent returns the latest persisted predictions, newest first.
func (s *PredictionLogService) Recent(ctx context.Context, limit int) ([]model.PredictionLog, error) {
	if !s.Enabled() {
		return nil, ErrPredictionLogDisabled
	}
	return s.repo.ListRecent(ctx, ClampHistoryLimit(limit))
}

// ClampHistoryLimit keeps limit within [1, MaxHistoryLimit], defaulting when unset.
func ClampHistoryLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}
