package models

import "math"

// AnalysisResponse is the payload returned for every successful analysis.
// EmailSent is null when no notification was attempted.
type AnalysisResponse struct {
	ID                string  `json:"id"`
	ImageURL          string  `json:"image_url"`
	ClassLabel        string  `json:"class_label"`
	Confidence        float64 `json:"confidence"`
	AnalyzedImage     string  `json:"analyzed_image"`
	EmailSent         *bool   `json:"email_sent"`
	NotificationError string  `json:"notification_error,omitempty"`
	AnnotationError   string  `json:"annotation_error,omitempty"`
	ProcessingTimeSec float64 `json:"processing_time_sec"`
}

// RoundConfidence rounds to the 4 decimals exposed in responses.
func RoundConfidence(c float64) float64 {
	return math.Round(c*10000) / 10000
}
