package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	apperrors "github.com/anime-shed/street-inspector-go/internal/errors"
	"github.com/anime-shed/street-inspector-go/internal/imaging"
	"github.com/anime-shed/street-inspector-go/internal/logger"
	"github.com/anime-shed/street-inspector-go/internal/notify"
	"github.com/anime-shed/street-inspector-go/internal/observer"
	"github.com/anime-shed/street-inspector-go/internal/pipeline"
	"github.com/anime-shed/street-inspector-go/internal/repository"
	"github.com/anime-shed/street-inspector-go/internal/storage"
	"github.com/anime-shed/street-inspector-go/pkg/models"
)

const (
	SourceUpload = "upload"
	SourceURL    = "url"
)

// AnalysisService runs analyses for the transport layer and keeps their history
type AnalysisService interface {
	AnalyzeUpload(ctx context.Context, upload Upload) (*models.AnalysisResponse, error)
	AnalyzeURL(ctx context.Context, imageURL string) (*models.AnalysisResponse, error)
	GetResult(ctx context.Context, id string) (*repository.AnalysisRecord, error)
	ListResults(ctx context.Context, limit int) ([]repository.AnalysisRecord, error)
	ModelStatus() ModelStatus
}

// Upload is a file received from a client
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Analyzer is the inference pipeline
type Analyzer interface {
	Analyze(ctx context.Context, raw imaging.RawImage) (*pipeline.AnalysisResult, error)
}

// ModelInfo reports the classifier state
type ModelInfo interface {
	Available() bool
	Err() error
	ModelPath() string
	Backend() string
}

// ModelStatus is the classifier state exposed on /health
type ModelStatus struct {
	Loaded  bool
	Path    string
	Backend string
}

// Dependencies groups everything the service needs; Store and Events may be nil.
type Dependencies struct {
	Analyzer     Analyzer
	Model        ModelInfo
	Store        storage.ObjectStore
	ImageRepo    repository.ImageRepository
	AnalysisRepo repository.AnalysisRepository
	Events       observer.Subject
	FetchTimeout time.Duration
}

type analysisService struct {
	deps Dependencies
	now  func() time.Time
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(deps Dependencies) AnalysisService {
	if deps.AnalysisRepo == nil {
		deps.AnalysisRepo = repository.DisabledAnalysisRepository{}
	}
	if deps.FetchTimeout <= 0 {
		deps.FetchTimeout = 15 * time.Second
	}
	return &analysisService{deps: deps, now: time.Now}
}

// AnalyzeUpload checks the model before looking at the file, then stores the upload and
// classifies it concurrently. A storage failure leaves image_url empty.
func (s *analysisService) AnalyzeUpload(ctx context.Context, upload Upload) (*models.AnalysisResponse, error) {
	if err := s.requireModel(); err != nil {
		return nil, err
	}
	if !imaging.IsSupportedType(upload.ContentType) {
		return nil, apperrors.NewValidationError("Invalid file type", nil)
	}

	id := uuid.NewString()
	log := logger.WithAnalysis(id).WithFields(logrus.Fields{
		"source":       SourceUpload,
		"filename":     upload.Filename,
		"content_type": upload.ContentType,
		"size_bytes":   len(upload.Data),
	})

	var (
		imageURL string
		wg       sync.WaitGroup
	)
	if s.deps.Store != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := storage.ObjectName(upload.Filename, upload.ContentType, s.now())
			url, err := s.deps.Store.Upload(ctx, name, upload.Data, upload.ContentType)
			if err != nil {
				log.WithError(err).Warn("Failed to store upload; continuing without image_url")
				return
			}
			imageURL = url
		}()
	}

	result, err := s.run(ctx, id, SourceUpload, imaging.RawImage{Data: upload.Data, MIMEType: upload.ContentType})
	wg.Wait()
	if err != nil {
		return nil, err
	}

	return s.finish(ctx, id, SourceUpload, imageURL, result), nil
}

// AnalyzeURL downloads a remote image and analyzes it; image_url is the source URL.
func (s *analysisService) AnalyzeURL(ctx context.Context, imageURL string) (*models.AnalysisResponse, error) {
	if err := s.requireModel(); err != nil {
		return nil, err
	}
	if s.deps.ImageRepo == nil {
		return nil, apperrors.NewInternalError("remote images are not configured", nil)
	}
	if err := s.deps.ImageRepo.ValidateImageURL(imageURL); err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperrors.NewValidationError("invalid image URL", err)
	}

	id := uuid.NewString()
	fetchCtx, cancel := context.WithTimeout(ctx, s.deps.FetchTimeout)
	defer cancel()

	start := s.now()
	fetched, err := s.deps.ImageRepo.FetchImage(fetchCtx, imageURL)
	if err != nil {
		s.publish(ctx, observer.AnalysisEvent{
			EventType:    observer.ImageFetchFailed,
			AnalysisID:   id,
			Source:       SourceURL,
			ErrorMessage: err.Error(),
			Metadata:     map[string]interface{}{"url": imageURL},
		})
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewTimeoutError("Image fetch timeout", err)
		}
		return nil, apperrors.NewNetworkError("Failed to fetch image", err)
	}
	s.publish(ctx, observer.AnalysisEvent{
		EventType:      observer.ImageFetched,
		AnalysisID:     id,
		Source:         SourceURL,
		ProcessingTime: time.Since(start),
		Success:        true,
		Metadata:       map[string]interface{}{"url": imageURL, "size_bytes": len(fetched.Data)},
	})

	if !imaging.IsSupportedType(fetched.ContentType) {
		return nil, apperrors.NewValidationError("Invalid file type", nil)
	}

	result, err := s.run(ctx, id, SourceURL, imaging.RawImage{Data: fetched.Data, MIMEType: fetched.ContentType})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, id, SourceURL, imageURL, result), nil
}

func (s *analysisService) GetResult(ctx context.Context, id string) (*repository.AnalysisRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewNotFoundError("analysis not found", err)
	}
	record, err := s.deps.AnalysisRepo.GetAnalysis(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAnalysisNotFound) {
			return nil, apperrors.NewNotFoundError("analysis not found", err)
		}
		return nil, apperrors.NewInternalError("failed to load analysis", err)
	}
	return record, nil
}

func (s *analysisService) ListResults(ctx context.Context, limit int) ([]repository.AnalysisRecord, error) {
	records, err := s.deps.AnalysisRepo.ListRecent(ctx, limit)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list analyses", err)
	}
	if records == nil {
		records = []repository.AnalysisRecord{}
	}
	return records, nil
}

func (s *analysisService) ModelStatus() ModelStatus {
	return ModelStatus{
		Loaded:  s.deps.Model.Available(),
		Path:    s.deps.Model.ModelPath(),
		Backend: s.deps.Model.Backend(),
	}
}

func (s *analysisService) requireModel() error {
	if !s.deps.Model.Available() {
		return apperrors.NewModelUnavailableError("Model not loaded", s.deps.Model.Err())
	}
	return nil
}

func (s *analysisService) run(ctx context.Context, id, source string, raw imaging.RawImage) (*pipeline.AnalysisResult, error) {
	s.publish(ctx, observer.AnalysisEvent{EventType: observer.AnalysisStarted, AnalysisID: id, Source: source})

	start := s.now()
	result, err := s.deps.Analyzer.Analyze(ctx, raw)
	if err != nil {
		s.publish(ctx, observer.AnalysisEvent{
			EventType:      observer.AnalysisFailed,
			AnalysisID:     id,
			Source:         source,
			ProcessingTime: time.Since(start),
			ErrorMessage:   err.Error(),
		})
		return nil, err
	}
	return result, nil
}

// finish publishes the outcome, persists the record and builds the response.
func (s *analysisService) finish(ctx context.Context, id, source, imageURL string, result *pipeline.AnalysisResult) *models.AnalysisResponse {
	label := string(result.Classification.Label)
	confidence := models.RoundConfidence(result.Classification.Confidence)

	s.publish(ctx, observer.AnalysisEvent{
		EventType:      observer.AnalysisCompleted,
		AnalysisID:     id,
		Source:         source,
		ClassLabel:     label,
		Confidence:     confidence,
		ProcessingTime: result.ProcessingTime,
		Success:        true,
	})
	switch result.Notification.Status {
	case notify.Sent:
		s.publish(ctx, observer.AnalysisEvent{EventType: observer.NotificationSent, AnalysisID: id, Source: source, Success: true})
	case notify.Failed:
		s.publish(ctx, observer.AnalysisEvent{
			EventType:    observer.NotificationFailed,
			AnalysisID:   id,
			Source:       source,
			ErrorMessage: result.Notification.Reason,
		})
	}

	record := &repository.AnalysisRecord{
		ID:                id,
		Source:            source,
		ImageURL:          imageURL,
		ClassLabel:        label,
		Confidence:        confidence,
		Notification:      result.Notification.Status.String(),
		NotificationError: result.Notification.Reason,
		AnnotationError:   result.AnnotationError,
		ProcessingTimeMS:  result.ProcessingTime.Milliseconds(),
		CreatedAt:         s.now().UTC(),
	}
	if err := s.deps.AnalysisRepo.SaveAnalysis(context.WithoutCancel(ctx), record); err != nil {
		logger.WithAnalysis(id).WithError(err).Warn("Failed to persist analysis")
	}

	resp := &models.AnalysisResponse{
		ID:                id,
		ImageURL:          imageURL,
		ClassLabel:        label,
		Confidence:        confidence,
		EmailSent:         result.Notification.Delivered(),
		NotificationError: result.Notification.Reason,
		AnnotationError:   result.AnnotationError,
		ProcessingTimeSec: result.ProcessingTime.Seconds(),
	}
	if len(result.AnnotatedImage) > 0 {
		resp.AnalyzedImage = imaging.ToBase64(result.AnnotatedImage)
	}
	return resp
}

func (s *analysisService) publish(ctx context.Context, event observer.AnalysisEvent) {
	if s.deps.Events == nil {
		return
	}
	s.deps.Events.NotifyObservers(ctx, event)
}
