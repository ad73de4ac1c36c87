package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapbooth/snapbooth/internal/config"
	"github.com/snapbooth/snapbooth/internal/database"
	"github.com/snapbooth/snapbooth/internal/models"
)

func newTestRepo(t *testing.T) CaptureRepository {
	t.Helper()
	db, err := database.New(config.DatabaseConfig{Path: ""}, nil)
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return NewCaptureRepository(db.DB)
}

func testRecord(n int) *models.CaptureRecord {
	return &models.CaptureRecord{
		AttemptID:    fmt.Sprintf("attempt-%d", n),
		Filename:     fmt.Sprintf("Mugshot_20260829_1200%02d_%03d.jpg", n, n),
		TemplateName: "default",
		DeviceID:     "camera-0",
		Width:        1200,
		Height:       1800,
		SizeBytes:    1024,
		Sequence:     uint64(n),
		DurationMs:   250,
	}
}

func TestCaptureRepositoryCreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rec := testRecord(1)
	require.NoError(t, repo.Create(ctx, rec))
	assert.False(t, rec.ID.IsZero())

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.Filename, got.Filename)
	assert.Equal(t, "default", got.TemplateName)
	assert.Equal(t, uint64(1), got.Sequence)
}

func TestCaptureRepositoryCreateRejectsIncomplete(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.Create(context.Background(), &models.CaptureRecord{TemplateName: "default"})
	assert.Error(t, err)

	err = repo.Create(context.Background(), &models.CaptureRecord{Filename: "a.jpg"})
	assert.Error(t, err)
}

func TestCaptureRepositoryGetByIDNotFound(t *testing.T) {
	repo := newTestRepo(t)

	got, err := repo.GetByID(context.Background(), models.NewULID())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCaptureRepositoryListNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 1; i <= 5; i++ {
		rec := testRecord(i)
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, rec))
	}

	records, err := repo.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "attempt-5", records[0].AttemptID)
	assert.Equal(t, "attempt-4", records[1].AttemptID)
	assert.Equal(t, "attempt-3", records[2].AttemptID)

	all, err := repo.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestCaptureRepositoryListOlderThan(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	now := time.Now()
	old1 := testRecord(1)
	old1.CreatedAt = now.Add(-48 * time.Hour)
	old2 := testRecord(2)
	old2.CreatedAt = now.Add(-36 * time.Hour)
	fresh := testRecord(3)
	fresh.CreatedAt = now.Add(-time.Hour)

	require.NoError(t, repo.Create(ctx, old1))
	require.NoError(t, repo.Create(ctx, old2))
	require.NoError(t, repo.Create(ctx, fresh))

	stale, err := repo.ListOlderThan(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 2)
	// Oldest first so retention removes in chronological order.
	assert.Equal(t, "attempt-1", stale[0].AttemptID)
	assert.Equal(t, "attempt-2", stale[1].AttemptID)
}

func TestCaptureRepositoryDeleteByIDs(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	var ids []models.ULID
	for i := 1; i <= 3; i++ {
		rec := testRecord(i)
		require.NoError(t, repo.Create(ctx, rec))
		if i < 3 {
			ids = append(ids, rec.ID)
		}
	}

	deleted, err := repo.DeleteByIDs(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	deleted, err = repo.DeleteByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}

func TestCaptureRepositoryDuplicateFilenameRejected(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := testRecord(1)
	require.NoError(t, repo.Create(ctx, first))

	dup := testRecord(2)
	dup.Filename = first.Filename
	assert.Error(t, repo.Create(ctx, dup))
}
