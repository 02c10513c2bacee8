// internal/repository/memory/applications.go

// Package memory provides an in-process application store used for local
// runs and tests.
package memory

import (
	"context"
	"sync"

	"github.com/Synergyfy/Help2Home-sub002/internal/common/errors"
	"github.com/Synergyfy/Help2Home-sub002/internal/models"
)

// ApplicationRepository stores applications in a mutex-guarded map. It
// hands out clones, so callers only change stored state through Update.
type ApplicationRepository struct {
	mu   sync.RWMutex
	apps map[string]*models.Application
}

func NewApplicationRepository() *ApplicationRepository {
	return &ApplicationRepository{
		apps: make(map[string]*models.Application),
	}
}

func (r *ApplicationRepository) Create(ctx context.Context, app *models.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.apps[app.ID] = app.Clone()
	return nil
}

func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*models.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	app, ok := r.apps[id]
	if !ok {
		return nil, errors.NewApplicationNotFoundError(id)
	}
	return app.Clone(), nil
}

func (r *ApplicationRepository) Update(ctx context.Context, app *models.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.apps[app.ID]; !ok {
		return errors.NewApplicationNotFoundError(app.ID)
	}
	r.apps[app.ID] = app.Clone()
	return nil
}

func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]*models.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Application
	for _, app := range r.apps {
		if filter.TenantID != "" && app.TenantID != filter.TenantID {
			continue
		}
		if filter.PropertyID != "" && app.PropertyID != filter.PropertyID {
			continue
		}
		if filter.Status != "" && app.Status != filter.Status {
			continue
		}
		out = append(out, app.Clone())
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}
