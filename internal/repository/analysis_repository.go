package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const maxListLimit = 100

// GormAnalysisRepository persists analyses with gorm.
type GormAnalysisRepository struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if needed) the history database and migrates its schema.
func OpenSQLite(ctx context.Context, path string) (*GormAnalysisRepository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	repo := NewGormAnalysisRepository(db)
	if err := repo.AutoMigrate(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to migrate database: %w", err), repo.Close())
	}
	return repo, nil
}

// NewGormAnalysisRepository wraps an open connection.
func NewGormAnalysisRepository(db *gorm.DB) *GormAnalysisRepository {
	return &GormAnalysisRepository{db: db}
}

// AutoMigrate ensures the schema is available.
func (r *GormAnalysisRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&AnalysisRecord{})
}

func (r *GormAnalysisRepository) SaveAnalysis(ctx context.Context, record *AnalysisRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *GormAnalysisRepository) GetAnalysis(ctx context.Context, id string) (*AnalysisRecord, error) {
	var record AnalysisRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnalysisNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *GormAnalysisRepository) ListRecent(ctx context.Context, limit int) ([]AnalysisRecord, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	var records []AnalysisRecord
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&records).Error
	return records, err
}

// Close releases the underlying connection pool.
func (r *GormAnalysisRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DisabledAnalysisRepository is used when DATABASE_PATH is empty.
type DisabledAnalysisRepository struct{}

func (DisabledAnalysisRepository) SaveAnalysis(context.Context, *AnalysisRecord) error {
	return nil
}

// GetAnalysis never finds anything; the error matches both ErrRepositoryUnavailable
// and ErrAnalysisNotFound so callers can answer 404.
func (DisabledAnalysisRepository) GetAnalysis(context.Context, string) (*AnalysisRecord, error) {
	return nil, fmt.Errorf("%w: %w", ErrRepositoryUnavailable, ErrAnalysisNotFound)
}

func (DisabledAnalysisRepository) ListRecent(context.Context, int) ([]AnalysisRecord, error) {
	return nil, nil
}
