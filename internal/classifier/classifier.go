// Package classifier loads the garbage/clean image model and turns its
// probability output into a labelled result.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	apperrors "github.com/anime-shed/street-inspector-go/internal/errors"
	"github.com/anime-shed/street-inspector-go/internal/imaging"
	"github.com/anime-shed/street-inspector-go/internal/logger"
)

// Label is the outcome class.
type Label string

const (
	Clean   Label = "Clean"
	Garbage Label = "Garbage"
)

// classLabels maps output index to label; index 1 is the garbage class.
var classLabels = [...]Label{Clean, Garbage}

// ErrNoModel is the cause attached when no candidate path exists.
var ErrNoModel = errors.New("no model file found at any candidate path")

// Result is a classification: the argmax label and its probability.
type Result struct {
	Label      Label
	Confidence float64
}

// IsGarbage reports whether the argmax class is Garbage.
func (r Result) IsGarbage() bool {
	return r.Label == Garbage
}

// Options controls how the model is located and replicated.
type Options struct {
	CandidatePaths []string
	Workers        int
}

// Classifier owns the loaded model. It is either loaded or permanently unavailable;
// Initialize runs once and later calls return the first outcome.
type Classifier struct {
	once    sync.Once
	initErr error

	path    string
	backend string
	pool    *InferencePool
}

// New returns a classifier that is unavailable until Initialize succeeds.
func New() *Classifier {
	return &Classifier{initErr: errors.New("classifier not initialized")}
}

// Initialize resolves the first existing candidate and loads one replica per worker.
func (c *Classifier) Initialize(opts Options) error {
	c.once.Do(func() {
		c.initErr = c.load(opts)
	})
	return c.initErr
}

func (c *Classifier) load(opts Options) error {
	start := time.Now()
	path, err := ResolveModelPath(opts.CandidatePaths)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"candidates": strings.Join(opts.CandidatePaths, ","),
		}).Error("Model not found; classifier unavailable")
		return err
	}

	open, ext, err := openerFor(path)
	if err != nil {
		logger.WithError(err).WithField("model_path", path).Error("Unsupported model format; classifier unavailable")
		return err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	replicas := make([]Model, 0, workers)
	for i := 0; i < workers; i++ {
		m, err := open(path)
		if err != nil {
			for _, r := range replicas {
				_ = r.Close()
			}
			logger.WithError(err).WithField("model_path", path).Error("Failed to load model; classifier unavailable")
			return fmt.Errorf("load %s: %w", path, err)
		}
		replicas = append(replicas, m)
	}

	c.path = path
	c.backend = strings.TrimPrefix(ext, ".")
	c.pool = NewInferencePool(replicas)
	c.pool.Start()

	logger.WithFields(logrus.Fields{
		"model_path":  path,
		"backend":     c.backend,
		"replicas":    workers,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Model loaded")
	return nil
}

// ResolveModelPath returns the first candidate that names an existing regular file.
func ResolveModelPath(candidates []string) (string, error) {
	for _, p := range candidates {
		info, err := os.Stat(p)
		if err != nil {
			logger.WithField("model_path", p).Debug("Model candidate missing")
			continue
		}
		if info.Mode().IsRegular() {
			return p, nil
		}
	}
	return "", ErrNoModel
}

// Available reports whether a model is loaded.
func (c *Classifier) Available() bool {
	return c.pool != nil
}

// Err returns why the classifier is unavailable, or nil.
func (c *Classifier) Err() error {
	if c.Available() {
		return nil
	}
	return c.initErr
}

// ModelPath is the resolved artifact, empty when unavailable.
func (c *Classifier) ModelPath() string { return c.path }

// Backend is the artifact extension that selected the runtime ("json", "onnx", "pb").
func (c *Classifier) Backend() string { return c.backend }

// Stats exposes the inference pool counters.
func (c *Classifier) Stats() PoolStats {
	if c.pool == nil {
		return PoolStats{}
	}
	return c.pool.GetStats()
}

// Infer classifies a normalized tensor. The same tensor always yields the same result.
func (c *Classifier) Infer(ctx context.Context, t imaging.Tensor) (Result, error) {
	if !c.Available() {
		return Result{}, apperrors.NewModelUnavailableError("model not loaded", c.initErr)
	}
	if err := t.Validate(imaging.InputSize, imaging.InputSize, imaging.InputChannels); err != nil {
		return Result{}, apperrors.NewInferenceError("malformed input tensor", err)
	}

	probs, err := c.pool.Predict(ctx, t)
	if err != nil {
		return Result{}, apperrors.NewInferenceError("forward pass failed", err)
	}
	return Interpret(probs)
}

// probabilityTolerance absorbs float32 rounding in exported softmax layers.
const probabilityTolerance = 1e-3

// Interpret maps a two-class probability vector to a Result. Logits and other
// vectors that are not a probability distribution are rejected.
func Interpret(probs []float64) (Result, error) {
	if len(probs) != len(classLabels) {
		return Result{}, apperrors.NewInferenceError(
			fmt.Sprintf("model returned %d outputs, want %d", len(probs), len(classLabels)), nil)
	}
	for _, p := range probs {
		if math.IsNaN(p) {
			return Result{}, apperrors.NewInferenceError("model returned NaN", nil)
		}
		if p < -probabilityTolerance || p > 1+probabilityTolerance {
			return Result{}, apperrors.NewInferenceError(
				fmt.Sprintf("model output %g is not a probability; is the softmax layer missing?", p), nil)
		}
	}
	if sum := floats.Sum(probs); math.Abs(sum-1) > probabilityTolerance {
		return Result{}, apperrors.NewInferenceError(
			fmt.Sprintf("model outputs sum to %g, want 1", sum), nil)
	}
	idx := floats.MaxIdx(probs)
	return Result{Label: classLabels[idx], Confidence: probs[idx]}, nil
}

// Close releases the model replicas.
func (c *Classifier) Close() error {
	if c.pool == nil {
		return nil
	}
	return c.pool.Close()
}
