// internal/application/service.go

// Package application orchestrates the financing aggregate: intake,
// document verification, lifecycle transitions and installment tracking.
package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Synergyfy/Help2Home-sub002/internal/common/errors"
	"github.com/Synergyfy/Help2Home-sub002/internal/common/logger"
	"github.com/Synergyfy/Help2Home-sub002/internal/finance"
	"github.com/Synergyfy/Help2Home-sub002/internal/lifecycle"
	"github.com/Synergyfy/Help2Home-sub002/internal/models"
)

// Repository is the persistence contract the service depends on.
type Repository interface {
	Create(ctx context.Context, app *models.Application) error
	GetByID(ctx context.Context, id string) (*models.Application, error)
	Update(ctx context.Context, app *models.Application) error
	List(ctx context.Context, filter models.ApplicationFilter) ([]*models.Application, error)
}

// TenantContext identifies the tenant an operation acts for. It is passed
// explicitly instead of being read from ambient request state.
type TenantContext struct {
	TenantID    string
	DisplayName string
}

func (tc TenantContext) actor() string {
	if tc.DisplayName != "" {
		return tc.DisplayName
	}
	return tc.TenantID
}

// CreateInput is a parsed financing request.
type CreateInput struct {
	PropertyID     string
	BasePriceMinor int64
	Terms          models.FinancingTerms
	Documents      []DocumentInput
	SubmitNow      bool
}

type DocumentInput struct {
	ID   string
	Type string
}

// Service wires the repository and the state machine together.
type Service struct {
	repo    Repository
	machine *lifecycle.Machine
	logger  logger.Logger
	errs    *errors.ErrorHandler
	now     func() time.Time
}

func NewService(repo Repository, machine *lifecycle.Machine, log logger.Logger) *Service {
	return &Service{
		repo:    repo,
		machine: machine,
		logger:  log,
		errs:    errors.NewErrorHandler(log),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// NewServiceWithClock is used by tests that need deterministic timestamps.
func NewServiceWithClock(repo Repository, machine *lifecycle.Machine, log logger.Logger, now func() time.Time) *Service {
	s := NewService(repo, machine, log)
	s.now = now
	return s
}

// Quote computes a repayment schedule without touching any application.
func (s *Service) Quote(plan finance.Plan) (*finance.Schedule, error) {
	return finance.Compute(plan)
}

// CreateDraft creates a new application for the tenant. When the input
// asks for immediate submission the submit guard runs as part of creation,
// so a rejected guard means no application is stored at all.
func (s *Service) CreateDraft(ctx context.Context, tc TenantContext, input *CreateInput) (*models.Application, error) {
	if strings.TrimSpace(tc.TenantID) == "" {
		return nil, errors.NewValidationFailedError("tenant context is required")
	}
	if strings.TrimSpace(input.PropertyID) == "" {
		return nil, errors.NewValidationFailedError("propertyId is required")
	}
	if err := finance.Validate(s.planFor(input.BasePriceMinor, input.Terms)); err != nil {
		return nil, err
	}

	ts := s.now()
	app := &models.Application{
		ID:             uuid.New().String(),
		PropertyID:     input.PropertyID,
		TenantID:       tc.TenantID,
		Status:         models.StatusDraft,
		BasePriceMinor: input.BasePriceMinor,
		Terms:          input.Terms,
		Timeline:       lifecycle.NewTimeline(),
		ActivityLog: []models.ActivityEntry{
			{Actor: tc.actor(), Action: "create", Timestamp: ts},
		},
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	for _, doc := range input.Documents {
		app.Documents = append(app.Documents, models.ApplicationDocument{
			ID:     doc.ID,
			Type:   doc.Type,
			Status: models.DocumentPending,
		})
	}

	if input.SubmitNow {
		if err := s.submit(app, tc.actor()); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, app); err != nil {
		return nil, err
	}

	s.logger.Info("Application created", map[string]interface{}{
		"applicationId": app.ID,
		"tenantId":      app.TenantID,
		"propertyId":    app.PropertyID,
		"status":        string(app.Status),
	})
	return app, nil
}

// Get loads a single application.
func (s *Service) Get(ctx context.Context, id string) (*models.Application, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns applications matching the filter.
func (s *Service) List(ctx context.Context, filter models.ApplicationFilter) ([]*models.Application, error) {
	return s.repo.List(ctx, filter)
}

// Progress derives the rendered progress percentage for an application.
func (s *Service) Progress(app *models.Application) int {
	return lifecycle.Progress(app)
}

// UpdateTerms replaces the financing terms. Terms are locked once the
// application leaves draft.
func (s *Service) UpdateTerms(ctx context.Context, tc TenantContext, appID string, basePriceMinor int64, terms models.FinancingTerms) (*models.Application, error) {
	return s.mutate(ctx, appID, func(app *models.Application) error {
		if app.Status != models.StatusDraft {
			return errors.NewTermsLockedError(string(app.Status))
		}
		if err := finance.Validate(s.planFor(basePriceMinor, terms)); err != nil {
			return err
		}
		app.BasePriceMinor = basePriceMinor
		app.Terms = terms
		s.appendActivity(app, tc.actor(), "updateTerms", "")
		return nil
	})
}

// ==========================
// Document Operations
// ==========================

func (s *Service) AttachDocument(ctx context.Context, tc TenantContext, appID string, doc DocumentInput) (*models.Application, error) {
	return s.mutate(ctx, appID, func(app *models.Application) error {
		if existing := app.Document(doc.ID); existing != nil {
			return errors.NewValidationFailedError(fmt.Sprintf("document %s already attached", doc.ID))
		}
		app.Documents = append(app.Documents, models.ApplicationDocument{
			ID:     doc.ID,
			Type:   doc.Type,
			Status: models.DocumentPending,
		})
		s.appendActivity(app, tc.actor(), "attachDocument", doc.Type)
		return nil
	})
}

func (s *Service) VerifyDocument(ctx context.Context, actor, appID, docID string) (*models.Application, error) {
	return s.mutate(ctx, appID, func(app *models.Application) error {
		doc := app.Document(docID)
		if doc == nil {
			return errors.NewDocumentNotFoundError(docID)
		}
		doc.Status = models.DocumentVerified
		doc.RejectionReason = ""
		s.appendActivity(app, actor, "verifyDocument", doc.Type)
		return nil
	})
}

// RejectDocument marks a document rejected. A reason is mandatory; a
// rejected document never exists without one.
func (s *Service) RejectDocument(ctx context.Context, actor, appID, docID, reason string) (*models.Application, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, errors.NewReasonRequiredError("rejectDocument")
	}
	return s.mutate(ctx, appID, func(app *models.Application) error {
		doc := app.Document(docID)
		if doc == nil {
			return errors.NewDocumentNotFoundError(docID)
		}
		doc.Status = models.DocumentRejected
		doc.RejectionReason = reason
		s.appendActivity(app, actor, "rejectDocument", fmt.Sprintf("%s: %s", doc.Type, reason))
		return nil
	})
}

// ReuploadDocument resets a document to in_review and clears the previous
// rejection reason.
func (s *Service) ReuploadDocument(ctx context.Context, tc TenantContext, appID, docID string) (*models.Application, error) {
	return s.mutate(ctx, appID, func(app *models.Application) error {
		doc := app.Document(docID)
		if doc == nil {
			return errors.NewDocumentNotFoundError(docID)
		}
		doc.Status = models.DocumentInReview
		doc.RejectionReason = ""
		s.appendActivity(app, tc.actor(), "reuploadDocument", doc.Type)
		return nil
	})
}

// Block freezes the application's visible progress without changing its
// status, marking the step currently in progress as blocked.
func (s *Service) Block(ctx context.Context, actor, appID, reason string) (*models.Application, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, errors.NewReasonRequiredError("block")
	}
	return s.mutate(ctx, appID, func(app *models.Application) error {
		app.Blocked = true
		for i := range app.Timeline {
			if app.Timeline[i].Status == models.StepInProgress {
				app.Timeline[i].Status = models.StepBlocked
				break
			}
		}
		s.appendActivity(app, actor, "block", reason)
		return nil
	})
}

func (s *Service) Unblock(ctx context.Context, actor, appID string) (*models.Application, error) {
	return s.mutate(ctx, appID, func(app *models.Application) error {
		app.Blocked = false
		for i := range app.Timeline {
			if app.Timeline[i].Status == models.StepBlocked {
				app.Timeline[i].Status = models.StepInProgress
				break
			}
		}
		s.appendActivity(app, actor, "unblock", "")
		return nil
	})
}

// ==========================
// Lifecycle Operations
// ==========================

func (s *Service) Submit(ctx context.Context, tc TenantContext, appID string) (*models.Application, error) {
	return s.mutate(ctx, appID, func(app *models.Application) error {
		return s.submit(app, tc.actor())
	})
}

func (s *Service) BeginReview(ctx context.Context, actor, appID string) (*models.Application, error) {
	return s.mutate(ctx, appID, func(app *models.Application) error {
		return s.machine.BeginReview(app, actor)
	})
}

func (s *Service) Approve(ctx context.Context, actor, appID string) (*models.Application, error) {
	return s.mutate(ctx, appID, func(app *models.Application) error {
		return s.machine.Approve(app, actor)
	})
}

func (s *Service) Reject(ctx context.Context, actor, appID, reason string) (*models.Application, error) {
	return s.mutate(ctx, appID, func(app *models.Application) error {
		return s.machine.Reject(app, actor, reason)
	})
}

func (s *Service) HandoverConfirmed(ctx context.Context, actor, appID string) (*models.Application, error) {
	return s.mutate(ctx, appID, func(app *models.Application) error {
		return s.machine.HandoverConfirmed(app, actor)
	})
}

func (s *Service) ScheduleComplete(ctx context.Context, actor, appID string) (*models.Application, error) {
	return s.mutate(ctx, appID, func(app *models.Application) error {
		return s.machine.ScheduleComplete(app, actor)
	})
}

// RecordInstallmentPaid marks one installment paid. Index is 1-based, as
// rendered on the schedule.
func (s *Service) RecordInstallmentPaid(ctx context.Context, actor, appID string, index int) (*models.Application, error) {
	return s.mutate(ctx, appID, func(app *models.Application) error {
		if index < 1 || index > len(app.Installments) {
			return errors.NewValidationFailedError(fmt.Sprintf("installment index %d out of range", index))
		}
		app.Installments[index-1].Status = finance.InstallmentPaid
		s.appendActivity(app, actor, "installmentPaid", fmt.Sprintf("installment %d", index))
		return nil
	})
}

// ConfirmBankActivation is the reconciliation entry point used by the bank
// handshake. A duplicate confirmation surfaces RECONCILIATION_CONFLICT
// without persisting anything.
func (s *Service) ConfirmBankActivation(ctx context.Context, appID, actor string) error {
	_, err := s.mutate(ctx, appID, func(app *models.Application) error {
		return s.machine.BankConfirms(app, actor)
	})
	return err
}

// DeclineBankActivation records an explicit human decision to reject after
// a failed handshake.
func (s *Service) DeclineBankActivation(ctx context.Context, actor, appID, reason string) (*models.Application, error) {
	return s.mutate(ctx, appID, func(app *models.Application) error {
		return s.machine.BankDeclines(app, actor, reason)
	})
}

// ==========================
// Internals
// ==========================

// submit computes the installment schedule before the transition so a
// submitted application always carries its repayment plan.
func (s *Service) submit(app *models.Application, actor string) error {
	if len(app.Installments) == 0 {
		plan := s.planFor(app.BasePriceMinor, app.Terms)
		plan.FirstDueDate = s.now().AddDate(0, 1, 0)
		schedule, err := finance.Compute(plan)
		if err != nil {
			return err
		}
		app.Installments = schedule.Installments
	}
	return s.machine.Submit(app, actor)
}

func (s *Service) planFor(basePriceMinor int64, terms models.FinancingTerms) finance.Plan {
	return finance.Plan{
		BasePriceMinor:      basePriceMinor,
		DownPaymentPercent:  terms.DownPaymentPercent,
		DurationMonths:      terms.DurationMonths,
		InterestRatePercent: terms.InterestRatePercent,
		ServiceFeeMinor:     terms.ServiceFeeMinor,
	}
}

func (s *Service) appendActivity(app *models.Application, actor, action, details string) {
	ts := s.now()
	app.ActivityLog = append(app.ActivityLog, models.ActivityEntry{
		Actor:     actor,
		Action:    action,
		Details:   details,
		Timestamp: ts,
	})
	app.UpdatedAt = ts
}

// mutate loads the application, applies fn, and persists the result only
// when fn succeeds. Failures pass through the error handler so every
// refused operation is logged with its code and category.
func (s *Service) mutate(ctx context.Context, appID string, fn func(*models.Application) error) (*models.Application, error) {
	app, err := s.repo.GetByID(ctx, appID)
	if err != nil {
		return nil, s.errs.Handle("loadApplication", appID, err)
	}
	if err := fn(app); err != nil {
		return nil, s.errs.Handle("updateApplication", appID, err)
	}
	if err := s.repo.Update(ctx, app); err != nil {
		return nil, s.errs.Handle("persistApplication", appID, err)
	}
	return app, nil
}
