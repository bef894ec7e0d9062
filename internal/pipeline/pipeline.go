// Package pipeline runs one image through decode, inference, annotation and
// the notification gate.
package pipeline

import (
	"context"
	"image"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/street-inspector-go/internal/classifier"
	apperrors "github.com/anime-shed/street-inspector-go/internal/errors"
	"github.com/anime-shed/street-inspector-go/internal/imaging"
	"github.com/anime-shed/street-inspector-go/internal/logger"
	"github.com/anime-shed/street-inspector-go/internal/notify"
)

// Codec decodes uploads, builds model input and encodes annotated output.
type Codec interface {
	Decode(raw imaging.RawImage) (*image.RGBA, error)
	Normalize(img image.Image) imaging.Tensor
	Encode(img image.Image) ([]byte, error)
}

// Classifier is the loaded model.
type Classifier interface {
	Available() bool
	Err() error
	Infer(ctx context.Context, t imaging.Tensor) (classifier.Result, error)
}

// Annotator renders the result onto a copy of the image.
type Annotator interface {
	Draw(original image.Image, res classifier.Result) (*image.RGBA, error)
}

// Gate decides on and performs the notification.
type Gate interface {
	MaybeNotify(ctx context.Context, res classifier.Result) notify.Outcome
}

// AnalysisResult is everything one analysis produced.
type AnalysisResult struct {
	Classification classifier.Result
	// AnnotatedImage is JPEG bytes; empty when AnnotationError is set.
	AnnotatedImage  []byte
	AnnotationError string
	Notification    notify.Outcome
	ProcessingTime  time.Duration
}

// Pipeline is safe for concurrent use when its parts are.
type Pipeline struct {
	codec      Codec
	classifier Classifier
	annotator  Annotator
	gate       Gate
}

// New wires a pipeline.
func New(codec Codec, c Classifier, a Annotator, g Gate) *Pipeline {
	return &Pipeline{codec: codec, classifier: c, annotator: a, gate: g}
}

// Analyze classifies raw and returns the full result. It fails only when the model is
// unavailable, the bytes do not decode, or inference fails. An annotation failure is
// reported in the result and a notification failure is an Outcome.
func (p *Pipeline) Analyze(ctx context.Context, raw imaging.RawImage) (*AnalysisResult, error) {
	start := time.Now()
	if !p.classifier.Available() {
		return nil, apperrors.NewModelUnavailableError("model not loaded", p.classifier.Err())
	}

	img, err := p.codec.Decode(raw)
	if err != nil {
		return nil, err
	}

	res, err := p.classifier.Infer(ctx, p.codec.Normalize(img))
	if err != nil {
		return nil, err
	}

	log := logger.WithFields(logrus.Fields{
		"class_label": res.Label,
		"confidence":  res.Confidence,
	})

	result := &AnalysisResult{Classification: res}
	if encoded, err := p.annotate(img, res); err != nil {
		result.AnnotationError = err.Error()
		log.WithError(err).Error("Annotation failed; returning result without image")
	} else {
		result.AnnotatedImage = encoded
	}

	result.Notification = p.gate.MaybeNotify(ctx, res)
	result.ProcessingTime = time.Since(start)

	log.WithFields(logrus.Fields{
		"notification": result.Notification.Status.String(),
		"duration_ms":  result.ProcessingTime.Milliseconds(),
	}).Info("Analysis complete")
	return result, nil
}

func (p *Pipeline) annotate(img image.Image, res classifier.Result) ([]byte, error) {
	drawn, err := p.annotator.Draw(img, res)
	if err != nil {
		return nil, apperrors.NewEncodeError("failed to draw annotation", err)
	}
	return p.codec.Encode(drawn)
}
