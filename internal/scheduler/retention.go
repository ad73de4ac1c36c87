// Package scheduler runs periodic maintenance jobs for the booth daemon.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/snapbooth/snapbooth/internal/config"
	"github.com/snapbooth/snapbooth/internal/events"
	"github.com/snapbooth/snapbooth/internal/models"
	"github.com/snapbooth/snapbooth/internal/observability"
	"github.com/snapbooth/snapbooth/internal/repository"
	"github.com/snapbooth/snapbooth/internal/storage"
)

// Retention prunes photos and history records past the configured age on a
// cron schedule. Files are removed before their records so an interrupted
// sweep leaves records pointing at missing files rather than orphan files
// with no record.
type Retention struct {
	cfg     config.RetentionConfig
	records repository.CaptureRepository
	photos  *storage.Sandbox
	bus     *events.Bus
	logger  *slog.Logger
	cron    *cron.Cron
}

// NewRetention creates a retention job over the photo output sandbox.
func NewRetention(cfg config.RetentionConfig, records repository.CaptureRepository, photos *storage.Sandbox, bus *events.Bus, logger *slog.Logger) *Retention {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retention{
		cfg:     cfg,
		records: records,
		photos:  photos,
		bus:     bus,
		logger:  observability.WithComponent(logger, "retention"),
	}
}

// Start registers the cron entry. The schedule uses 6-field expressions
// with a seconds column.
func (r *Retention) Start() error {
	if !r.cfg.Enabled {
		r.logger.Info("retention disabled")
		return nil
	}

	r.cron = cron.New(cron.WithSeconds())
	if _, err := r.cron.AddFunc(r.cfg.Cron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := r.Run(ctx); err != nil {
			r.logger.Error("retention sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("registering retention schedule %q: %w", r.cfg.Cron, err)
	}

	r.cron.Start()
	r.logger.Info("retention scheduled", "cron", r.cfg.Cron, "max_age", r.cfg.MaxAge)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (r *Retention) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

// Run executes one sweep immediately.
func (r *Retention) Run(ctx context.Context) error {
	cutoff := time.Now().Add(-r.cfg.MaxAge)
	old, err := r.records.ListOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("listing expired captures: %w", err)
	}
	if len(old) == 0 {
		r.logger.Debug("retention sweep found nothing to prune", "cutoff", cutoff)
		return nil
	}

	ids := make([]models.ULID, 0, len(old))
	removedFiles := 0
	for _, rec := range old {
		if err := r.photos.Remove(rec.Filename); err != nil {
			// A record whose file is already gone is still pruned.
			if !errors.Is(err, fs.ErrNotExist) {
				r.logger.Warn("removing expired photo failed", "filename", rec.Filename, "error", err)
				continue
			}
		} else {
			removedFiles++
		}
		ids = append(ids, rec.ID)
	}

	removedRecords, err := r.records.DeleteByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("deleting expired records: %w", err)
	}

	r.logger.Info("retention sweep completed",
		"cutoff", cutoff,
		"files_removed", removedFiles,
		"records_removed", removedRecords)
	if r.bus != nil {
		r.bus.Publish(events.TypeRetentionPruned, map[string]any{
			"files_removed":   removedFiles,
			"records_removed": removedRecords,
		})
	}
	return nil
}
