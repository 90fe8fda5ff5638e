package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/scorecast/internal/model"
)

// PredictionRecorder receives every served prediction.
type PredictionRecorder interface {
	Record(ctx context.Context, entry *model.PredictionLog) error
}

// PredictionService serves predictions from the artifacts trained at startup.
// Readiness is fixed at construction: a nil *Artifacts means NOT_READY for the
// life of the process.
type PredictionService struct {
	artifacts *Artifacts
	recorder  PredictionRecorder
	log       zerolog.Logger
}

// NewPredictionService creates a PredictionService. recorder may be nil.
func NewPredictionService(artifacts *Artifacts, recorder PredictionRecorder, log zerolog.Logger) *PredictionService {
	return &PredictionService{
		artifacts: artifacts,
		recorder:  recorder,
		log:       log.With().Str("component", "prediction_service").Logger(),
	}
}

// Ready reports whether models are available.
func (s *PredictionService) Ready() bool {
	return s.artifacts != nil
}

// Summary returns the training summary, or ErrNotReady.
func (s *PredictionService) Summary() (model.TrainingSummary, error) {
	if !s.Ready() {
		return model.TrainingSummary{}, ErrNotReady
	}
	return s.artifacts.Summary, nil
}

// Vocabulary returns the known categories for a column, or nil when not ready.
func (s *PredictionService) Vocabulary(column string) []string {
	if !s.Ready() {
		return nil
	}
	enc, ok := s.artifacts.Encoders[column]
	if !ok {
		return nil
	}
	return enc.Classes()
}

// Predict encodes the request, runs both models and decodes the label.
// Errors are ErrNotReady, *ValidationError, or internal failures.
func (s *PredictionService) Predict(ctx context.Context, req *model.PredictRequest, requestID string) (*model.PredictResponse, error) {
	if !s.Ready() {
		return nil, ErrNotReady
	}
	a := s.artifacts

	numbers := make(map[string]float64, 3)
	for _, f := range []struct {
		col string
		raw model.NumericString
	}{
		{model.ColumnStudyHoursPerWeek, req.StudyHoursPerWeek},
		{model.ColumnAttendanceRate, req.AttendanceRate},
		{model.ColumnPastExamScores, req.PastExamScores},
	} {
		v, err := f.raw.Float64()
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &ValidationError{Kind: InvalidNumber, Field: f.col, Value: string(f.raw)}
		}
		numbers[f.col] = v
	}

	categories := map[string]string{
		model.ColumnGender:                    strings.TrimSpace(req.Gender),
		model.ColumnParentalEducationLevel:    strings.TrimSpace(req.ParentalEducationLevel),
		model.ColumnInternetAccessAtHome:      strings.TrimSpace(req.InternetAccessAtHome),
		model.ColumnExtracurricularActivities: strings.TrimSpace(req.ExtracurricularActivities),
	}

	x, err := AssembleFeatures(func(col string) (float64, error) {
		if v, ok := numbers[col]; ok {
			return v, nil
		}
		raw, ok := categories[col]
		if !ok {
			return 0, fmt.Errorf("unsupported feature column %s", col)
		}
		return a.Encoders.Encode(col, raw)
	})
	if err != nil {
		return nil, err
	}

	score, err := a.Score.Predict(x)
	if err != nil {
		return nil, fmt.Errorf("predict score: %w", err)
	}
	class, err := a.PassFail.Predict(x)
	if err != nil {
		return nil, fmt.Errorf("predict pass/fail: %w", err)
	}
	label, err := a.Encoders[model.ColumnPassFail].Decode(int(class))
	if err != nil {
		return nil, fmt.Errorf("decode pass/fail: %w", err)
	}

	resp := &model.PredictResponse{
		FinalExamScore: round(score, 2),
		PassFail:       label,
	}
	s.record(ctx, requestID, categories, numbers, resp)
	return resp, nil
}

func (s *PredictionService) record(ctx context.Context, requestID string, categories map[string]string, numbers map[string]float64, resp *model.PredictResponse) {
	if s.recorder == nil {
		return
	}
	entry := &model.PredictionLog{
		ID:                        uuid.New(),
		RequestID:                 requestID,
		Gender:                    categories[model.ColumnGender],
		StudyHoursPerWeek:         numbers[model.ColumnStudyHoursPerWeek],
		AttendanceRate:            numbers[model.ColumnAttendanceRate],
		PastExamScores:            numbers[model.ColumnPastExamScores],
		ParentalEducationLevel:    categories[model.ColumnParentalEducationLevel],
		InternetAccessAtHome:      categories[model.ColumnInternetAccessAtHome],
		ExtracurricularActivities: categories[model.ColumnExtracurricularActivities],
		FinalExamScore:            resp.FinalExamScore,
		PassFail:                  resp.PassFail,
		CreatedAt:                 time.Now().UTC(),
	}
	if err := s.recorder.Record(ctx, entry); err != nil {
		s.log.Warn().Err(err).Str("request_id", requestID).Msg("Failed to record prediction")
	}
}
