package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Task selects what a forest learns.
type Task int

const (
	Regression Task = iota
	Classification
)

func (t Task) String() string {
	switch t {
	case Regression:
		return "regression"
	case Classification:
		return "classification"
	default:
		return fmt.Sprintf("task(%d)", int(t))
	}
}

// Forest errors.
var (
	ErrEmptyDataset   = errors.New("empty training set")
	ErrShapeMismatch  = errors.New("feature matrix shape mismatch")
	ErrNotFitted      = errors.New("model is not fitted")
	ErrInvalidLabel   = errors.New("classification labels must be non-negative integers")
	ErrInvalidFeature = errors.New("feature values must be finite")
)

// Defaults match the training setup the service has always used.
const (
	DefaultEstimators = 50
	DefaultSeed       = 42
)

// ForestConfig controls the ensemble. Zero values pick the defaults.
type ForestConfig struct {
	Task        Task
	NEstimators int
	Seed        int64
	// MaxFeatures is the number of candidate features per split.
	// 0 means all features for regression and sqrt(n) for classification.
	MaxFeatures    int
	MaxDepth       int // 0 = unlimited
	MinSamplesLeaf int // 0 = 1
	// Workers bounds concurrent tree fitting. 0 = GOMAXPROCS.
	Workers int
}

// RandomForest is a bagged ensemble of CART trees. A fitted forest is
// read-only and safe for concurrent Predict calls.
type RandomForest struct {
	cfg       ForestConfig
	trees     []*decisionTree
	nFeatures int
	nClasses  int
}

// NewRandomForest returns an unfitted forest.
func NewRandomForest(cfg ForestConfig) *RandomForest {
	if cfg.NEstimators <= 0 {
		cfg.NEstimators = DefaultEstimators
	}
	if cfg.MinSamplesLeaf <= 0 {
		cfg.MinSamplesLeaf = 1
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &RandomForest{cfg: cfg}
}

// Fit trains the ensemble on X (rows x features) and targets y. Per-tree seeds
// are drawn from cfg.Seed before any tree is fitted, so the result does not
// depend on goroutine scheduling.
func (f *RandomForest) Fit(ctx context.Context, x [][]float64, y []float64) error {
	if len(x) == 0 {
		return ErrEmptyDataset
	}
	if len(x) != len(y) {
		return fmt.Errorf("%w: %d rows, %d targets", ErrShapeMismatch, len(x), len(y))
	}
	nFeatures := len(x[0])
	if nFeatures == 0 {
		return fmt.Errorf("%w: no feature columns", ErrShapeMismatch)
	}
	for i, row := range x {
		if len(row) != nFeatures {
			return fmt.Errorf("%w: row %d has %d columns, want %d", ErrShapeMismatch, i, len(row), nFeatures)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: row %d", ErrInvalidFeature, i)
			}
		}
	}

	nClasses := 0
	if f.cfg.Task == Classification {
		for i, v := range y {
			if v < 0 || v != math.Trunc(v) {
				return fmt.Errorf("%w: row %d has %v", ErrInvalidLabel, i, v)
			}
			if int(v)+1 > nClasses {
				nClasses = int(v) + 1
			}
		}
	}

	maxFeatures := f.maxFeatures(nFeatures)

	master := rand.New(rand.NewSource(f.cfg.Seed))
	seeds := make([]int64, f.cfg.NEstimators)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	trees := make([]*decisionTree, f.cfg.NEstimators)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Workers)
	for i := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(seeds[i]))
			b := &treeBuilder{
				task:           f.cfg.Task,
				x:              x,
				y:              y,
				nClasses:       nClasses,
				maxFeatures:    maxFeatures,
				maxDepth:       f.cfg.MaxDepth,
				minSamplesLeaf: f.cfg.MinSamplesLeaf,
				rng:            rng,
			}
			trees[i] = b.fit(bootstrap(rng, len(x)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("fit %s forest: %w", f.cfg.Task, err)
	}

	f.trees = trees
	f.nFeatures = nFeatures
	f.nClasses = nClasses
	return nil
}

func (f *RandomForest) maxFeatures(nFeatures int) int {
	m := f.cfg.MaxFeatures
	if m <= 0 {
		if f.cfg.Task == Classification {
			m = int(math.Sqrt(float64(nFeatures)))
		} else {
			m = nFeatures
		}
	}
	if m < 1 {
		m = 1
	}
	if m > nFeatures {
		m = nFeatures
	}
	return m
}

func bootstrap(rng *rand.Rand, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = rng.Intn(n)
	}
	return out
}

// Fitted reports whether Fit has completed successfully.
func (f *RandomForest) Fitted() bool {
	return len(f.trees) > 0
}

// Task reports what the forest was configured to learn.
func (f *RandomForest) Task() Task {
	return f.cfg.Task
}

// NFeatures is the width of the feature vector the forest was fitted on.
func (f *RandomForest) NFeatures() int {
	return f.nFeatures
}

// Predict returns the mean tree output for regression, or the class index with
// the highest averaged probability for classification (ties go to the lower index).
func (f *RandomForest) Predict(x []float64) (float64, error) {
	if err := f.check(x); err != nil {
		return 0, err
	}

	if f.cfg.Task == Regression {
		var sum float64
		for _, t := range f.trees {
			sum += t.leaf(x).value
		}
		return sum / float64(len(f.trees)), nil
	}

	probs := f.proba(x)
	best := 0
	for c := 1; c < len(probs); c++ {
		if probs[c] > probs[best] {
			best = c
		}
	}
	return float64(best), nil
}

// PredictProba returns averaged class probabilities. Classification only.
func (f *RandomForest) PredictProba(x []float64) ([]float64, error) {
	if f.cfg.Task != Classification {
		return nil, fmt.Errorf("predict proba on %s forest", f.cfg.Task)
	}
	if err := f.check(x); err != nil {
		return nil, err
	}
	return f.proba(x), nil
}

func (f *RandomForest) proba(x []float64) []float64 {
	probs := make([]float64, f.nClasses)
	for _, t := range f.trees {
		for c, p := range t.leaf(x).probs {
			probs[c] += p
		}
	}
	for c := range probs {
		probs[c] /= float64(len(f.trees))
	}
	return probs
}

func (f *RandomForest) check(x []float64) error {
	if !f.Fitted() {
		return ErrNotFitted
	}
	if len(x) != f.nFeatures {
		return fmt.Errorf("%w: got %d features, want %d", ErrShapeMismatch, len(x), f.nFeatures)
	}
	return nil
}
