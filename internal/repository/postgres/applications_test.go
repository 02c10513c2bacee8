// internal/repository/postgres/applications_test.go
package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Synergyfy/Help2Home-sub002/internal/common/errors"
	"github.com/Synergyfy/Help2Home-sub002/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func newMockRepo(t *testing.T) (*ApplicationRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewApplicationRepository(db), mock
}

func sampleApplication() *models.Application {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	return &models.Application{
		ID:             "app-42",
		PropertyID:     "prop-7",
		TenantID:       "tenant-9",
		Status:         models.StatusSubmitted,
		BasePriceMinor: 3500000,
		Terms: models.FinancingTerms{
			DownPaymentPercent:  25,
			DurationMonths:      12,
			InterestRatePercent: 15,
		},
		Timeline: []models.TimelineStep{
			{Title: "Submitted", Status: models.StepCompleted, ResponsibleParty: models.PartyTenant},
		},
		Documents: []models.ApplicationDocument{
			{ID: "doc-1", Type: "identity", Status: models.DocumentVerified},
		},
		ActivityLog: []models.ActivityEntry{
			{Actor: "tenant-9", Action: "submit", Timestamp: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func applicationRow(t *testing.T, app *models.Application) *sqlmock.Rows {
	t.Helper()
	mustJSON := func(v interface{}) []byte {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		return raw
	}
	return sqlmock.NewRows([]string{
		"id", "property_id", "tenant_id", "status", "base_price_minor",
		"terms", "installments", "timeline", "documents", "activity_log",
		"rejected_from", "blocked", "created_at", "updated_at",
	}).AddRow(
		app.ID, app.PropertyID, app.TenantID, string(app.Status), app.BasePriceMinor,
		mustJSON(app.Terms), mustJSON(app.Installments), mustJSON(app.Timeline),
		mustJSON(app.Documents), mustJSON(app.ActivityLog),
		string(app.RejectedFrom), app.Blocked, app.CreatedAt, app.UpdatedAt,
	)
}

// ==========================
// Core Functionality Tests
// ==========================

func TestApplicationRepository_Create(t *testing.T) {
	repo, mock := newMockRepo(t)
	app := sampleApplication()

	mock.ExpectExec("INSERT INTO financing_applications").
		WithArgs(
			app.ID, app.PropertyID, app.TenantID, string(app.Status), app.BasePriceMinor,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			"", false, app.CreatedAt, app.UpdatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), app)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepository_GetByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	app := sampleApplication()

	mock.ExpectQuery("SELECT (.+) FROM financing_applications").
		WithArgs(app.ID).
		WillReturnRows(applicationRow(t, app))

	got, err := repo.GetByID(context.Background(), app.ID)

	require.NoError(t, err)
	assert.Equal(t, app.ID, got.ID)
	assert.Equal(t, app.Status, got.Status)
	assert.Equal(t, app.Terms, got.Terms)
	assert.Equal(t, app.Documents, got.Documents)
	assert.Len(t, got.ActivityLog, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM financing_applications").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	got, err := repo.GetByID(context.Background(), "missing")

	assert.Nil(t, got)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeApplicationNotFound, errors.CodeOf(err))
}

func TestApplicationRepository_Update_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	app := sampleApplication()

	mock.ExpectExec("UPDATE financing_applications").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), app)

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeApplicationNotFound, errors.CodeOf(err))
}

func TestApplicationRepository_List(t *testing.T) {
	repo, mock := newMockRepo(t)
	app := sampleApplication()

	mock.ExpectQuery("SELECT (.+) FROM financing_applications").
		WithArgs(app.TenantID, "", "", 100, 0).
		WillReturnRows(applicationRow(t, app))

	got, err := repo.List(context.Background(), models.ApplicationFilter{TenantID: app.TenantID})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, app.ID, got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
