// internal/repository/memory/applications_test.go
package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Synergyfy/Help2Home-sub002/internal/common/errors"
	"github.com/Synergyfy/Help2Home-sub002/internal/models"
)

func newApp(id, tenantID string, status models.Status) *models.Application {
	return &models.Application{
		ID:       id,
		TenantID: tenantID,
		Status:   status,
	}
}

func TestApplicationRepository_CreateAndGet(t *testing.T) {
	repo := NewApplicationRepository()
	ctx := context.Background()
	app := newApp("app-1", "tenant-1", models.StatusDraft)

	require.NoError(t, repo.Create(ctx, app))

	got, err := repo.GetByID(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, app.ID, got.ID)

	// Stored state must be isolated from the caller's copy.
	got.Status = models.StatusSubmitted
	again, err := repo.GetByID(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, again.Status)
}

func TestApplicationRepository_GetMissing(t *testing.T) {
	repo := NewApplicationRepository()

	got, err := repo.GetByID(context.Background(), "nope")

	assert.Nil(t, got)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeApplicationNotFound, errors.CodeOf(err))
}

func TestApplicationRepository_UpdateMissing(t *testing.T) {
	repo := NewApplicationRepository()

	err := repo.Update(context.Background(), newApp("nope", "t", models.StatusDraft))

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeApplicationNotFound, errors.CodeOf(err))
}

func TestApplicationRepository_ListFilters(t *testing.T) {
	repo := NewApplicationRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newApp("a", "tenant-1", models.StatusDraft)))
	require.NoError(t, repo.Create(ctx, newApp("b", "tenant-1", models.StatusSubmitted)))
	require.NoError(t, repo.Create(ctx, newApp("c", "tenant-2", models.StatusDraft)))

	byTenant, err := repo.List(ctx, models.ApplicationFilter{TenantID: "tenant-1"})
	require.NoError(t, err)
	assert.Len(t, byTenant, 2)

	byStatus, err := repo.List(ctx, models.ApplicationFilter{Status: models.StatusSubmitted})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "b", byStatus[0].ID)

	limited, err := repo.List(ctx, models.ApplicationFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
