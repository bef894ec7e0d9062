package repository

import "errors"

var (
	// ErrInvalidImageURL is returned when a remote image URL fails validation
	ErrInvalidImageURL = errors.New("invalid image URL")

	// ErrAnalysisNotFound means no stored analysis has the requested id
	ErrAnalysisNotFound = errors.New("analysis not found")

	// ErrRepositoryUnavailable means analysis history is not kept (DATABASE_PATH is empty)
	ErrRepositoryUnavailable = errors.New("analysis history unavailable")
)
