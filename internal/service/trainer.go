package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/scorecast/internal/ml"
	"github.com/stemsi/scorecast/internal/model"
)

// Predictor is a fitted model mapping a feature vector to an output.
type Predictor interface {
	Predict(x []float64) (float64, error)
}

// EncoderSet holds one fitted label encoder per categorical column.
type EncoderSet map[string]*ml.LabelEncoder

// FitEncoderSet fits an encoder for every categorical column of the dataset.
func FitEncoderSet(records []model.StudentRecord) (EncoderSet, error) {
	set := make(EncoderSet, len(model.CategoricalColumns))
	for _, col := range model.CategoricalColumns {
		values := make([]string, len(records))
		for i, r := range records {
			values[i], _ = r.Category(col)
		}
		enc, err := ml.FitLabelEncoder(values)
		if err != nil {
			return nil, fmt.Errorf("fit %s encoder: %w", col, err)
		}
		set[col] = enc
	}
	return set, nil
}

// Encode maps a category through the column's encoder. Unknown values yield a
// *ValidationError.
func (s EncoderSet) Encode(column, value string) (float64, error) {
	enc, ok := s[column]
	if !ok {
		return 0, fmt.Errorf("no encoder for column %s", column)
	}
	code, err := enc.Encode(value)
	if err != nil {
		return 0, &ValidationError{Kind: UnknownCategory, Field: column, Value: value, Allowed: enc.Classes()}
	}
	return float64(code), nil
}

// Vocabularies returns every encoder's classes keyed by column.
func (s EncoderSet) Vocabularies() map[string][]string {
	out := make(map[string][]string, len(s))
	for col, enc := range s {
		out[col] = enc.Classes()
	}
	return out
}

// Artifacts is everything training produces. It is built once and never mutated.
type Artifacts struct {
	Encoders EncoderSet
	Score    Predictor
	PassFail Predictor
	Summary  model.TrainingSummary
}

// TrainOptions configures Train.
type TrainOptions struct {
	DatasetPath string
	Trees       int
	Seed        int64
}

// AssembleFeatures builds the feature vector in model.FeatureColumns order.
// value resolves a single column to its numeric (already encoded) form.
func AssembleFeatures(value func(column string) (float64, error)) ([]float64, error) {
	x := make([]float64, len(model.FeatureColumns))
	for i, col := range model.FeatureColumns {
		v, err := value(col)
		if err != nil {
			return nil, err
		}
		x[i] = v
	}
	return x, nil
}

func recordValue(enc EncoderSet, r model.StudentRecord) func(string) (float64, error) {
	return func(col string) (float64, error) {
		switch col {
		case model.ColumnStudyHoursPerWeek:
			return r.StudyHoursPerWeek, nil
		case model.ColumnAttendanceRate:
			return r.AttendanceRate, nil
		case model.ColumnPastExamScores:
			return r.PastExamScores, nil
		}
		raw, ok := r.Category(col)
		if !ok {
			return 0, fmt.Errorf("unsupported feature column %s", col)
		}
		return enc.Encode(col, raw)
	}
}

// Train fits the encoders and both forests. It runs once at startup before the
// server accepts traffic.
func Train(ctx context.Context, records []model.StudentRecord, opts TrainOptions, log zerolog.Logger) (*Artifacts, error) {
	if len(records) == 0 {
		return nil, ml.ErrEmptyDataset
	}
	start := time.Now()

	encoders, err := FitEncoderSet(records)
	if err != nil {
		return nil, err
	}

	x := make([][]float64, len(records))
	yScore := make([]float64, len(records))
	yPass := make([]float64, len(records))
	for i, r := range records {
		row, err := AssembleFeatures(recordValue(encoders, r))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		x[i] = row
		yScore[i] = r.FinalExamScore
		if yPass[i], err = encoders.Encode(model.ColumnPassFail, r.PassFail); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}

	score := ml.NewRandomForest(ml.ForestConfig{Task: ml.Regression, NEstimators: opts.Trees, Seed: opts.Seed})
	if err := score.Fit(ctx, x, yScore); err != nil {
		return nil, fmt.Errorf("train score model: %w", err)
	}
	passFail := ml.NewRandomForest(ml.ForestConfig{Task: ml.Classification, NEstimators: opts.Trees, Seed: opts.Seed})
	if err := passFail.Fit(ctx, x, yPass); err != nil {
		return nil, fmt.Errorf("train pass/fail model: %w", err)
	}

	scorePred := make([]float64, len(x))
	passPred := make([]float64, len(x))
	for i, row := range x {
		scorePred[i], _ = score.Predict(row)
		passPred[i], _ = passFail.Predict(row)
	}

	trees := opts.Trees
	if trees <= 0 {
		trees = ml.DefaultEstimators
	}
	summary := model.TrainingSummary{
		DatasetPath:      opts.DatasetPath,
		Rows:             len(records),
		Features:         append([]string(nil), model.FeatureColumns[:]...),
		Estimators:       trees,
		Seed:             opts.Seed,
		ScoreR2:          round(ml.R2(yScore, scorePred), 4),
		PassFailAccuracy: round(ml.Accuracy(yPass, passPred), 4),
		Vocabularies:     encoders.Vocabularies(),
		TrainedAt:        time.Now().UTC(),
		Duration:         time.Since(start).Round(time.Millisecond).String(),
	}

	log.Info().
		Int("rows", summary.Rows).
		Int("trees", summary.Estimators).
		Float64("score_r2", summary.ScoreR2).
		Float64("pass_fail_accuracy", summary.PassFailAccuracy).
		Str("duration", summary.Duration).
		Msg("Models trained")

	return &Artifacts{
		Encoders: encoders,
		Score:    score,
		PassFail: passFail,
		Summary:  summary,
	}, nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
