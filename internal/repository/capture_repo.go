// Package repository provides data access for capture history.
package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/snapbooth/snapbooth/internal/models"
)

// CaptureRepository stores and queries capture history records.
type CaptureRepository interface {
	Create(ctx context.Context, record *models.CaptureRecord) error
	GetByID(ctx context.Context, id models.ULID) (*models.CaptureRecord, error)
	List(ctx context.Context, limit int) ([]*models.CaptureRecord, error)
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]*models.CaptureRecord, error)
	DeleteByIDs(ctx context.Context, ids []models.ULID) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// captureRepo implements CaptureRepository using GORM.
type captureRepo struct {
	db *gorm.DB
}

// NewCaptureRepository creates a new CaptureRepository.
func NewCaptureRepository(db *gorm.DB) CaptureRepository {
	return &captureRepo{db: db}
}

// Create persists a new capture record.
func (r *captureRepo) Create(ctx context.Context, record *models.CaptureRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("creating capture record: %w", err)
	}
	return nil
}

// GetByID retrieves a record by ID, or nil if not found.
func (r *captureRepo) GetByID(ctx context.Context, id models.ULID) (*models.CaptureRecord, error) {
	var record models.CaptureRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting capture record: %w", err)
	}
	return &record, nil
}

// List retrieves the most recent records, newest first. A limit of 0 or
// less returns all records.
func (r *captureRepo) List(ctx context.Context, limit int) ([]*models.CaptureRecord, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var records []*models.CaptureRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("listing capture records: %w", err)
	}
	return records, nil
}

// ListOlderThan retrieves all records created before cutoff, oldest first.
func (r *captureRepo) ListOlderThan(ctx context.Context, cutoff time.Time) ([]*models.CaptureRecord, error) {
	var records []*models.CaptureRecord
	if err := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("listing old capture records: %w", err)
	}
	return records, nil
}

// DeleteByIDs removes the given records and returns the number deleted.
func (r *captureRepo) DeleteByIDs(ctx context.Context, ids []models.ULID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.CaptureRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("deleting capture records: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Count returns the total number of records.
func (r *captureRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.CaptureRecord{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting capture records: %w", err)
	}
	return count, nil
}
