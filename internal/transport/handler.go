package transport

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/street-inspector-go/internal/config"
	apperrors "github.com/anime-shed/street-inspector-go/internal/errors"
	"github.com/anime-shed/street-inspector-go/internal/logger"
	"github.com/anime-shed/street-inspector-go/internal/observer"
	"github.com/anime-shed/street-inspector-go/internal/service"
	"github.com/anime-shed/street-inspector-go/pkg/models"
)

const (
	version = "1.0.0"

	uploadField       = "image"
	defaultListLimit  = 20
	maxListLimit      = 100
	sniffContentBytes = 512
)

//go:embed web/upload.html
var uploadPage []byte

// MetricsSource exposes the analysis counters served on /metrics
type MetricsSource interface {
	GetMetrics() observer.Metrics
}

func NewHandler(svc service.AnalysisService, metrics MetricsSource, cfg *config.Config) http.Handler {
	r := gin.Default()

	// Add middleware
	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/", uploadForm)
	r.POST("/upload", uploadImage(svc, cfg))
	r.POST("/upload/", uploadImage(svc, cfg))
	r.POST("/analyze/url", analyzeURL(svc, cfg))
	r.GET("/results", listResults(svc))
	r.GET("/results/:id", getResult(svc))
	r.GET("/metrics", metricsHandler(metrics))
	r.GET("/health", healthCheck(svc))

	return r
}

func uploadForm(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", uploadPage)
}

func uploadImage(svc service.AnalysisService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		// Log request start
		logger.WithFields(requestFields(c)).Info("Processing image upload")

		fileHeader, err := c.FormFile(uploadField)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondError(c, http.StatusRequestEntityTooLarge, "image too large",
					apperrors.NewValidationError("request body exceeds limit", err))
				return
			}
			respondError(c, http.StatusBadRequest, "No image file found",
				apperrors.NewValidationError("missing multipart field \""+uploadField+"\"", err))
			return
		}

		upload, err := readUpload(fileHeader)
		if err != nil {
			respondError(c, http.StatusBadRequest, "failed to read upload",
				apperrors.NewValidationError("unreadable upload", err))
			return
		}

		resp, err := svc.AnalyzeUpload(ctx, upload)
		if err != nil {
			respondError(c, determineStatusCode(err), "image analysis failed", err)
			return
		}

		logger.WithAnalysis(resp.ID).WithFields(logrus.Fields{
			"class_label":         resp.ClassLabel,
			"confidence":          resp.Confidence,
			"processing_time_sec": resp.ProcessingTimeSec,
		}).Info("Upload analyzed")

		c.JSON(http.StatusOK, resp)
	}
}

func analyzeURL(svc service.AnalysisService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		logger.WithFields(requestFields(c)).Info("Processing image URL analysis")

		var req models.AnalyzeURLRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}

		resp, err := svc.AnalyzeURL(ctx, req.URL)
		if err != nil {
			respondError(c, determineStatusCode(err), "image analysis failed", err)
			return
		}

		logger.WithAnalysis(resp.ID).WithFields(logrus.Fields{
			"url":         req.URL,
			"class_label": resp.ClassLabel,
			"confidence":  resp.Confidence,
		}).Info("Remote image analyzed")

		c.JSON(http.StatusOK, resp)
	}
}

func listResults(svc service.AnalysisService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := defaultListLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 || n > maxListLimit {
				respondError(c, http.StatusBadRequest, "invalid limit",
					apperrors.NewValidationError(fmt.Sprintf("limit must be between 1 and %d", maxListLimit), err))
				return
			}
			limit = n
		}

		records, err := svc.ListResults(c.Request.Context(), limit)
		if err != nil {
			respondError(c, determineStatusCode(err), "failed to list results", err)
			return
		}
		c.JSON(http.StatusOK, records)
	}
}

func getResult(svc service.AnalysisService) gin.HandlerFunc {
	return func(c *gin.Context) {
		record, err := svc.GetResult(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, determineStatusCode(err), "failed to load result", err)
			return
		}
		c.JSON(http.StatusOK, record)
	}
}

func metricsHandler(m MetricsSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, m.GetMetrics())
	}
}

func healthCheck(svc service.AnalysisService) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := svc.ModelStatus()
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:      "available",
			Version:     version,
			Time:        time.Now().UTC().Format(time.RFC3339),
			ModelLoaded: status.Loaded,
			ModelPath:   status.Path,
			Backend:     status.Backend,
		})
	}
}

// readUpload loads a multipart file. The part header's content type wins; a missing or
// generic one is replaced by sniffing the bytes.
func readUpload(fh *multipart.FileHeader) (service.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return service.Upload{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return service.Upload{}, err
	}

	contentType := strings.TrimSpace(fh.Header.Get("Content-Type"))
	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
		sniff := data
		if len(sniff) > sniffContentBytes {
			sniff = sniff[:sniffContentBytes]
		}
		contentType = http.DetectContentType(sniff)
	}

	return service.Upload{
		Filename:    fh.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}

func requestFields(c *gin.Context) logrus.Fields {
	return logrus.Fields{
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"user_agent": c.Request.UserAgent(),
		"ip":         c.ClientIP(),
	}
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err), "request processing failed", err)
		}
	}
}

func determineStatusCode(err error) int {
	// Check if it's a custom app error first
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	// Fallback to context-based errors
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	// Log the error with context
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   message,
		Message: errorDetail(err),
	})
}

// errorDetail prefers the AppError message so clients see "Model not loaded" rather
// than the full cause chain.
func errorDetail(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
