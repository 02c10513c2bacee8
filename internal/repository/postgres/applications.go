// internal/repository/postgres/applications.go

// Package postgres persists applications in PostgreSQL. The aggregate's
// nested collections are stored as JSONB so a row always carries the full
// application state.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/Synergyfy/Help2Home-sub002/internal/common/errors"
	"github.com/Synergyfy/Help2Home-sub002/internal/finance"
	"github.com/Synergyfy/Help2Home-sub002/internal/models"
)

const applicationColumns = `id, property_id, tenant_id, status, base_price_minor,
		terms, installments, timeline, documents, activity_log,
		rejected_from, blocked, created_at, updated_at`

// ApplicationRepository is the database-backed application store.
type ApplicationRepository struct {
	db *sql.DB
}

func NewApplicationRepository(db *sql.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

func (r *ApplicationRepository) Create(ctx context.Context, app *models.Application) error {
	docs, err := marshalAggregate(app)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO financing_applications (` + applicationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = r.db.ExecContext(ctx, query,
		app.ID, app.PropertyID, app.TenantID, string(app.Status), app.BasePriceMinor,
		docs.terms, docs.installments, docs.timeline, docs.documents, docs.activityLog,
		string(app.RejectedFrom), app.Blocked, app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		return errors.NewDatabaseQueryFailedError("create application", err)
	}
	return nil
}

func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*models.Application, error) {
	query := `
		SELECT ` + applicationColumns + `
		FROM financing_applications
		WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)
	app, err := scanApplication(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewApplicationNotFoundError(id)
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError("get application", err)
	}
	return app, nil
}

func (r *ApplicationRepository) Update(ctx context.Context, app *models.Application) error {
	docs, err := marshalAggregate(app)
	if err != nil {
		return err
	}

	query := `
		UPDATE financing_applications
		SET status = $2, base_price_minor = $3, terms = $4, installments = $5,
			timeline = $6, documents = $7, activity_log = $8,
			rejected_from = $9, blocked = $10, updated_at = $11
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		app.ID, string(app.Status), app.BasePriceMinor,
		docs.terms, docs.installments, docs.timeline, docs.documents, docs.activityLog,
		string(app.RejectedFrom), app.Blocked, app.UpdatedAt,
	)
	if err != nil {
		return errors.NewDatabaseQueryFailedError("update application", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return errors.NewApplicationNotFoundError(app.ID)
	}
	return nil
}

func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]*models.Application, error) {
	query := `
		SELECT ` + applicationColumns + `
		FROM financing_applications
		WHERE ($1 = '' OR tenant_id = $1)
		  AND ($2 = '' OR property_id = $2)
		  AND ($3 = '' OR status = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, query,
		filter.TenantID, filter.PropertyID, string(filter.Status), limit, filter.Offset)
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError("list applications", err)
	}
	defer rows.Close()

	var out []*models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, errors.NewDatabaseQueryFailedError("scan application", err)
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseQueryFailedError("list applications", err)
	}
	return out, nil
}

type aggregateJSON struct {
	terms        []byte
	installments []byte
	timeline     []byte
	documents    []byte
	activityLog  []byte
}

func marshalAggregate(app *models.Application) (*aggregateJSON, error) {
	var (
		docs aggregateJSON
		err  error
	)
	if docs.terms, err = json.Marshal(app.Terms); err != nil {
		return nil, errors.NewDatabaseQueryFailedError("marshal terms", err)
	}
	if docs.installments, err = json.Marshal(app.Installments); err != nil {
		return nil, errors.NewDatabaseQueryFailedError("marshal installments", err)
	}
	if docs.timeline, err = json.Marshal(app.Timeline); err != nil {
		return nil, errors.NewDatabaseQueryFailedError("marshal timeline", err)
	}
	if docs.documents, err = json.Marshal(app.Documents); err != nil {
		return nil, errors.NewDatabaseQueryFailedError("marshal documents", err)
	}
	if docs.activityLog, err = json.Marshal(app.ActivityLog); err != nil {
		return nil, errors.NewDatabaseQueryFailedError("marshal activity log", err)
	}
	return &docs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row rowScanner) (*models.Application, error) {
	var (
		app          models.Application
		status       string
		rejectedFrom string
		terms        []byte
		installments []byte
		timeline     []byte
		documents    []byte
		activityLog  []byte
	)

	err := row.Scan(
		&app.ID, &app.PropertyID, &app.TenantID, &status, &app.BasePriceMinor,
		&terms, &installments, &timeline, &documents, &activityLog,
		&rejectedFrom, &app.Blocked, &app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	app.Status = models.Status(status)
	app.RejectedFrom = models.Status(rejectedFrom)

	var insts []finance.Installment
	for _, col := range []struct {
		raw  []byte
		dest interface{}
	}{
		{terms, &app.Terms},
		{installments, &insts},
		{timeline, &app.Timeline},
		{documents, &app.Documents},
		{activityLog, &app.ActivityLog},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dest); err != nil {
			return nil, err
		}
	}
	app.Installments = insts
	return &app, nil
}
