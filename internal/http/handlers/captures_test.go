package handlers

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapbooth/snapbooth/internal/config"
	"github.com/snapbooth/snapbooth/internal/database"
	"github.com/snapbooth/snapbooth/internal/models"
	"github.com/snapbooth/snapbooth/internal/repository"
)

func TestCapturesHandlerList(t *testing.T) {
	db, err := database.New(config.DatabaseConfig{Path: ""}, nil)
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	repo := repository.NewCaptureRepository(db.DB)
	for i := 1; i <= 4; i++ {
		require.NoError(t, repo.Create(context.Background(), &models.CaptureRecord{
			AttemptID:    fmt.Sprintf("attempt-%d", i),
			Filename:     fmt.Sprintf("Mugshot_20260829_1200%02d_%03d.jpg", i, i),
			TemplateName: "default",
		}))
	}

	h := NewCapturesHandler(repo)

	out, err := h.List(context.Background(), &ListCapturesInput{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, out.Body.Captures, 2)
	assert.Equal(t, int64(4), out.Body.Total)
}
