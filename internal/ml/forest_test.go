package ml

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linearData builds y = 3*x0 - 2*x1 + small noise, with a label of 1 when y > 0.
func linearData(n int, seed int64) (x [][]float64, y []float64, labels []float64) {
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < n; i++ {
		a := rng.Float64()*10 - 5
		b := rng.Float64()*10 - 5
		v := 3*a - 2*b + rng.NormFloat64()*0.1
		x = append(x, []float64{a, b})
		y = append(y, v)
		if v > 0 {
			labels = append(labels, 1)
		} else {
			labels = append(labels, 0)
		}
	}
	return x, y, labels
}

func TestRandomForestRegression(t *testing.T) {
	x, y, _ := linearData(300, 1)

	f := NewRandomForest(ForestConfig{Task: Regression, NEstimators: 20, Seed: 42})
	require.NoError(t, f.Fit(context.Background(), x, y))
	require.True(t, f.Fitted())
	assert.Equal(t, 2, f.NFeatures())

	pred := make([]float64, len(x))
	for i, row := range x {
		p, err := f.Predict(row)
		require.NoError(t, err)
		pred[i] = p
	}
	assert.Greater(t, R2(y, pred), 0.9)

	p, err := f.Predict([]float64{4, -4})
	require.NoError(t, err)
	assert.InDelta(t, 20, p, 5)
}

func TestRandomForestClassification(t *testing.T) {
	x, _, labels := linearData(300, 2)

	f := NewRandomForest(ForestConfig{Task: Classification, NEstimators: 25, Seed: 42})
	require.NoError(t, f.Fit(context.Background(), x, labels))

	pred := make([]float64, len(x))
	for i, row := range x {
		p, err := f.Predict(row)
		require.NoError(t, err)
		assert.Contains(t, []float64{0, 1}, p)
		pred[i] = p
	}
	assert.Greater(t, Accuracy(labels, pred), 0.9)

	probs, err := f.PredictProba([]float64{4, -4})
	require.NoError(t, err)
	require.Len(t, probs, 2)
	assert.InDelta(t, 1.0, probs[0]+probs[1], 1e-9)
	assert.Greater(t, probs[1], probs[0])
}

func TestRandomForestIsReproducible(t *testing.T) {
	x, y, _ := linearData(120, 3)
	samples := [][]float64{{0, 0}, {1.5, -2}, {-3, 4}}

	run := func(workers int) []float64 {
		f := NewRandomForest(ForestConfig{Task: Regression, NEstimators: 15, Seed: 7, Workers: workers})
		require.NoError(t, f.Fit(context.Background(), x, y))
		out := make([]float64, len(samples))
		for i, row := range samples {
			p, err := f.Predict(row)
			require.NoError(t, err)
			out[i] = p
		}
		return out
	}

	assert.Equal(t, run(1), run(8))
	assert.Equal(t, run(4), run(4))
}

func TestRandomForestFitErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		task Task
		x    [][]float64
		y    []float64
		want error
	}{
		{"empty", Regression, nil, nil, ErrEmptyDataset},
		{"row count mismatch", Regression, [][]float64{{1}, {2}}, []float64{1}, ErrShapeMismatch},
		{"ragged rows", Regression, [][]float64{{1, 2}, {3}}, []float64{1, 2}, ErrShapeMismatch},
		{"nan feature", Regression, [][]float64{{math.NaN()}}, []float64{1}, ErrInvalidFeature},
		{"fractional label", Classification, [][]float64{{1}, {2}}, []float64{0, 0.5}, ErrInvalidLabel},
		{"negative label", Classification, [][]float64{{1}, {2}}, []float64{0, -1}, ErrInvalidLabel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewRandomForest(ForestConfig{Task: tt.task, NEstimators: 3})
			assert.ErrorIs(t, f.Fit(ctx, tt.x, tt.y), tt.want)
			assert.False(t, f.Fitted())
		})
	}
}

func TestRandomForestFitCancelled(t *testing.T) {
	x, y, _ := linearData(50, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewRandomForest(ForestConfig{Task: Regression, NEstimators: 5})
	assert.ErrorIs(t, f.Fit(ctx, x, y), context.Canceled)
	assert.False(t, f.Fitted())
}

func TestRandomForestPredictErrors(t *testing.T) {
	f := NewRandomForest(ForestConfig{Task: Regression})
	_, err := f.Predict([]float64{1})
	assert.ErrorIs(t, err, ErrNotFitted)

	x, y, _ := linearData(30, 5)
	require.NoError(t, f.Fit(context.Background(), x, y))
	_, err = f.Predict([]float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = f.PredictProba([]float64{1, 2})
	assert.Error(t, err)
}

func TestRandomForestConstantTarget(t *testing.T) {
	x := [][]float64{{1}, {2}, {3}, {4}}
	y := []float64{5, 5, 5, 5}

	f := NewRandomForest(ForestConfig{Task: Regression, NEstimators: 4})
	require.NoError(t, f.Fit(context.Background(), x, y))
	p, err := f.Predict([]float64{10})
	require.NoError(t, err)
	assert.Equal(t, 5.0, p)
}

func TestRandomForestConcurrentPredict(t *testing.T) {
	x, y, _ := linearData(100, 6)
	f := NewRandomForest(ForestConfig{Task: Regression, NEstimators: 10})
	require.NoError(t, f.Fit(context.Background(), x, y))

	want, err := f.Predict([]float64{1, 1})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := f.Predict([]float64{1, 1})
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
}

func TestMetrics(t *testing.T) {
	assert.Equal(t, 1.0, R2([]float64{1, 2, 3}, []float64{1, 2, 3}))
	assert.Equal(t, 0.0, R2([]float64{2, 2}, []float64{1, 3}))
	assert.Equal(t, 0.0, R2(nil, nil))
	assert.Equal(t, 0.5, Accuracy([]float64{0, 1}, []float64{0, 0}))
	assert.Equal(t, 0.0, Accuracy([]float64{0}, nil))
}
