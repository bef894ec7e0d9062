package models

// AnalyzeURLRequest asks for an analysis of a remote image
type AnalyzeURLRequest struct {
	URL string `json:"url" binding:"required,url"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse reports liveness and whether the model loaded
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Time        string `json:"time"`
	ModelLoaded bool   `json:"model_loaded"`
	ModelPath   string `json:"model_path,omitempty"`
	Backend     string `json:"backend,omitempty"`
}
