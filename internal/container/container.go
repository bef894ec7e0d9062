package container

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/street-inspector-go/internal/annotate"
	"github.com/anime-shed/street-inspector-go/internal/classifier"
	"github.com/anime-shed/street-inspector-go/internal/config"
	"github.com/anime-shed/street-inspector-go/internal/factory"
	"github.com/anime-shed/street-inspector-go/internal/imaging"
	"github.com/anime-shed/street-inspector-go/internal/logger"
	"github.com/anime-shed/street-inspector-go/internal/notify"
	"github.com/anime-shed/street-inspector-go/internal/observer"
	"github.com/anime-shed/street-inspector-go/internal/pipeline"
	"github.com/anime-shed/street-inspector-go/internal/repository"
	"github.com/anime-shed/street-inspector-go/internal/service"
	"github.com/anime-shed/street-inspector-go/internal/storage"
	"github.com/anime-shed/street-inspector-go/internal/transport"
	"github.com/anime-shed/street-inspector-go/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config          *config.Config
	classifier      *classifier.Classifier
	notifier        notify.Notifier
	gate            *notify.Gate
	pipeline        *pipeline.Pipeline
	store           storage.ObjectStore
	imageRepository repository.ImageRepository
	analysisRepo    repository.AnalysisRepository
	publisher       *observer.EventPublisher
	metrics         *observer.MetricsObserver
	analysisService service.AnalysisService
	handler         http.Handler
	closers         []func() error
}

// NewContainer creates a new dependency injection container.
// A missing model does not fail construction; the classifier stays unavailable
// and every analysis reports it.
func NewContainer(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	logger.SetLevel(cfg.LogLevel)

	c := &Container{config: cfg}

	// Inference core
	c.classifier = classifier.New()
	if err := c.classifier.Initialize(classifier.Options{
		CandidatePaths: cfg.Model.CandidatePaths,
		Workers:        cfg.Model.InferenceWorkers,
	}); err != nil {
		logger.WithError(err).Warn("Starting without a model; analyses will be rejected until restart")
	}
	c.closers = append(c.closers, c.classifier.Close)

	annotator, err := annotate.New()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create annotator: %w", err)
	}

	components := factory.NewComponentFactory(cfg)
	c.notifier, err = components.Notifier(cfg)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create notifier: %w", err)
	}
	c.gate = notify.NewGate(c.notifier, cfg.Notifier.StreetName, cfg.Notifier.Timeout)
	c.pipeline = pipeline.New(imaging.NewCodecWithLimit(cfg.MaxImagePixels), c.classifier, annotator, c.gate)

	// Storage and history
	c.store, err = components.Store(cfg)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create object store: %w", err)
	}

	fetcher := storage.NewHTTPImageFetcher(cfg.ImageFetchTimeout, cfg.MaxRequestBodySize)
	validator := validation.NewURLValidator().AllowPrivateAddresses(cfg.AllowPrivateURLs)
	c.imageRepository = repository.NewHTTPImageRepository(fetcher, validator)

	if cfg.DatabasePath != "" {
		repo, err := repository.OpenSQLite(context.Background(), cfg.DatabasePath)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to open analysis history: %w", err)
		}
		c.analysisRepo = repo
		c.closers = append(c.closers, repo.Close)
	} else {
		c.analysisRepo = repository.DisabledAnalysisRepository{}
	}

	// Events
	c.publisher = observer.NewEventPublisher()
	c.metrics = observer.NewMetricsObserver()
	c.publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	c.publisher.Subscribe(c.metrics)

	c.analysisService = service.NewAnalysisService(service.Dependencies{
		Analyzer:     c.pipeline,
		Model:        c.classifier,
		Store:        c.store,
		ImageRepo:    c.imageRepository,
		AnalysisRepo: c.analysisRepo,
		Events:       c.publisher,
		FetchTimeout: cfg.ImageFetchTimeout,
	})
	c.handler = transport.NewHandler(c.analysisService, c.metrics, cfg)

	logger.WithFields(logrus.Fields{
		"model_loaded": c.classifier.Available(),
		"notifier":     cfg.Notifier.Transport,
		"storage":      cfg.Storage.Backend,
		"history":      cfg.DatabasePath != "",
	}).Info("Container initialized")

	return c, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Pipeline returns the analysis pipeline shared by the server and the CLI
func (c *Container) Pipeline() *pipeline.Pipeline {
	return c.pipeline
}

func (c *Container) Classifier() *classifier.Classifier {
	return c.classifier
}

func (c *Container) Notifier() notify.Notifier {
	return c.notifier
}

func (c *Container) Metrics() *observer.MetricsObserver {
	return c.metrics
}

// Close waits for pending events, then releases the model and the database.
func (c *Container) Close() error {
	if c.publisher != nil {
		c.publisher.Wait()
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
