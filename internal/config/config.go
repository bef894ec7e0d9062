package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultStreetName = "Unknown Location"
	DefaultModelFile  = "model_deep.onnx"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	MaxRequestBodySize int64
	// MaxImagePixels caps width*height of a decoded image, checked from its header.
	MaxImagePixels int64
	LogLevel       string
	// AllowPrivateURLs lets /analyze/url fetch from loopback and private addresses.
	AllowPrivateURLs bool

	Model    ModelConfig
	Notifier NotifierConfig
	Storage  StorageConfig

	// DatabasePath is the SQLite file for analysis history; empty disables history.
	DatabasePath string
}

// ModelConfig lists the candidate artifact locations in priority order.
type ModelConfig struct {
	BaseDir          string
	CandidatePaths   []string
	InferenceWorkers int
}

type NotifierConfig struct {
	Transport  string // smtp, telegram, none
	StreetName string
	Timeout    time.Duration

	FromEmail     string
	EmailPassword string
	ToEmail       string
	SMTPHost      string
	SMTPPort      int

	TelegramToken  string
	TelegramChatID int64
}

type StorageConfig struct {
	Backend        string // azure, cloudinary, none
	AzureAccount   string
	AzureKey       string
	AzureContainer string
	CloudinaryURL  string
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// HasSMTPCredentials reports whether all three mail settings are present.
func (n NotifierConfig) HasSMTPCredentials() bool {
	return n.FromEmail != "" && n.EmailPassword != "" && n.ToEmail != ""
}

func LoadFromEnv() (*Config, error) {
	// A missing .env file is fine; real deployments use the environment.
	_ = godotenv.Load()

	baseDir := getEnvOrDefault("BASE_DIR", ".")
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		ImageFetchTimeout:  parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", 15*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 10*1024*1024), // 10MB
		MaxImagePixels:     parseIntOrDefault("MAX_IMAGE_PIXELS", 25_000_000),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		AllowPrivateURLs:   parseBoolOrDefault("ALLOW_PRIVATE_URLS", false),
		Model: ModelConfig{
			BaseDir:          baseDir,
			CandidatePaths:   parseListOrDefault("MODEL_PATHS", DefaultModelCandidates(baseDir)),
			InferenceWorkers: int(parseIntOrDefault("INFERENCE_WORKERS", int64(runtime.NumCPU()))),
		},
		Notifier: NotifierConfig{
			Transport:      strings.ToLower(getEnvOrDefault("NOTIFIER", "smtp")),
			StreetName:     getEnvOrDefault("STREET_NAME", DefaultStreetName),
			Timeout:        parseDurationOrDefault("NOTIFY_TIMEOUT", 5*time.Second),
			FromEmail:      os.Getenv("FROM_EMAIL"),
			EmailPassword:  os.Getenv("EMAIL_PASSWORD"),
			ToEmail:        os.Getenv("TO_EMAIL"),
			SMTPHost:       getEnvOrDefault("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:       int(parseIntOrDefault("SMTP_PORT", 587)),
			TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
			TelegramChatID: parseIntOrDefault("TELEGRAM_CHAT_ID", 0),
		},
		Storage: StorageConfig{
			Backend:        strings.ToLower(getEnvOrDefault("STORAGE_BACKEND", "none")),
			AzureAccount:   os.Getenv("AZURE_STORAGE_ACCOUNT"),
			AzureKey:       os.Getenv("AZURE_STORAGE_KEY"),
			AzureContainer: getEnvOrDefault("AZURE_STORAGE_CONTAINER", "uploads"),
			CloudinaryURL:  os.Getenv("CLOUDINARY_URL"),
		},
		DatabasePath: getEnvOrDefault("DATABASE_PATH", "inspector.db"),
	}
	if v, ok := os.LookupEnv("DATABASE_PATH"); ok && strings.TrimSpace(v) == "" {
		cfg.DatabasePath = ""
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enum values.
func (c *Config) Validate() error {
	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.MaxImagePixels <= 0 {
		return fmt.Errorf("MAX_IMAGE_PIXELS must be > 0 (got %d)", c.MaxImagePixels)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 || c.Notifier.Timeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, notify=%s)",
			c.RequestTimeout, c.ImageFetchTimeout, c.Notifier.Timeout)
	}
	if len(c.Model.CandidatePaths) == 0 {
		return fmt.Errorf("MODEL_PATHS must list at least one candidate")
	}
	if c.Model.InferenceWorkers <= 0 {
		return fmt.Errorf("INFERENCE_WORKERS must be > 0 (got %d)", c.Model.InferenceWorkers)
	}
	switch c.Notifier.Transport {
	case "smtp", "telegram", "none":
	default:
		return fmt.Errorf("unsupported NOTIFIER: %q", c.Notifier.Transport)
	}
	if c.Notifier.SMTPPort < 1 || c.Notifier.SMTPPort > 65535 {
		return fmt.Errorf("invalid SMTP_PORT: %d", c.Notifier.SMTPPort)
	}
	switch c.Storage.Backend {
	case "azure", "cloudinary", "none":
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND: %q", c.Storage.Backend)
	}
	return nil
}

// DefaultModelCandidates mirrors the layouts the model has historically shipped in.
func DefaultModelCandidates(baseDir string) []string {
	return []string{
		filepath.Join(baseDir, DefaultModelFile),
		filepath.Join(baseDir, "mysite", "roadPage", DefaultModelFile),
		filepath.Join(baseDir, "roadPage", DefaultModelFile),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var items []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
