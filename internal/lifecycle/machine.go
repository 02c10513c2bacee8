// internal/lifecycle/machine.go
package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/Synergyfy/Help2Home-sub002/internal/common/errors"
	"github.com/Synergyfy/Help2Home-sub002/internal/common/logger"
	"github.com/Synergyfy/Help2Home-sub002/internal/common/metrics"
	"github.com/Synergyfy/Help2Home-sub002/internal/finance"
	"github.com/Synergyfy/Help2Home-sub002/internal/models"
)

// Machine applies lifecycle transitions to an application. Guards run
// before any mutation; mutations happen on a scratch copy committed only
// when the whole transition succeeds, so status, timeline and activity log
// always change together.
type Machine struct {
	logger logger.Logger
	now    func() time.Time
}

func NewMachine(log logger.Logger) *Machine {
	return &Machine{
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NewMachineWithClock is used by tests that need deterministic timestamps.
func NewMachineWithClock(log logger.Logger, now func() time.Time) *Machine {
	return &Machine{logger: log, now: now}
}

// Submit moves Draft -> Submitted. Guard: every required document type is
// attached. Calling it again once submitted is a no-op.
func (m *Machine) Submit(app *models.Application, actor string) error {
	if done, err := m.precheck(app, "submit", models.StatusDraft, models.StatusSubmitted); done || err != nil {
		return err
	}

	if missing := missingDocumentTypes(app); len(missing) > 0 {
		return m.guardViolation("submit",
			fmt.Sprintf("missing required documents: %s", strings.Join(missing, ", ")))
	}

	return m.commit(app, actor, "submit", models.StatusSubmitted, func(scratch *models.Application, ts time.Time) {
		completeStep(scratch, StepSubmitted, ts)
		startStep(scratch, StepUnderReview)
	})
}

// BeginReview moves Submitted -> UnderReview.
func (m *Machine) BeginReview(app *models.Application, actor string) error {
	if done, err := m.precheck(app, "beginReview", models.StatusSubmitted, models.StatusUnderReview); done || err != nil {
		return err
	}

	return m.commit(app, actor, "beginReview", models.StatusUnderReview, func(scratch *models.Application, ts time.Time) {
		startStep(scratch, StepUnderReview)
	})
}

// Approve moves UnderReview -> BankApproval. Guard: every document is
// verified and none is rejected.
func (m *Machine) Approve(app *models.Application, actor string) error {
	if done, err := m.precheck(app, "approve", models.StatusUnderReview, models.StatusBankApproval); done || err != nil {
		return err
	}

	for _, doc := range app.Documents {
		if doc.Status != models.DocumentVerified {
			metrics.GuardViolations.WithLabelValues("approve", string(errors.ErrCodeDocumentNotVerified)).Inc()
			return errors.NewDocumentNotVerifiedError(doc.Type)
		}
	}

	return m.commit(app, actor, "approve", models.StatusBankApproval, func(scratch *models.Application, ts time.Time) {
		completeStep(scratch, StepUnderReview, ts)
		startStep(scratch, StepBankApproval)
	})
}

// Reject moves any pre-Funded status to Rejected. Guard: a human-readable
// reason is required. Rejected is absorbing.
func (m *Machine) Reject(app *models.Application, actor, reason string) error {
	if app.Status == models.StatusRejected {
		return nil
	}
	if Rank(app.Status) >= Rank(models.StatusFunded) {
		return m.guardViolation("reject",
			fmt.Sprintf("cannot reject a funded application, status: %s", app.Status))
	}
	if strings.TrimSpace(reason) == "" {
		metrics.GuardViolations.WithLabelValues("reject", string(errors.ErrCodeReasonRequired)).Inc()
		return errors.NewReasonRequiredError("reject")
	}

	from := app.Status
	ts := m.now()
	scratch := app.Clone()
	scratch.RejectedFrom = from
	scratch.Status = models.StatusRejected
	rejectCurrentStep(scratch, ts)
	scratch.ActivityLog = append(scratch.ActivityLog, models.ActivityEntry{
		Actor:     actor,
		Action:    "reject",
		Details:   reason,
		Timestamp: ts,
	})
	scratch.UpdatedAt = ts
	*app = *scratch

	metrics.LifecycleTransitions.WithLabelValues(string(from), string(models.StatusRejected)).Inc()
	m.logger.Info("Application rejected", map[string]interface{}{
		"applicationId": app.ID,
		"from":          string(from),
		"reason":        reason,
		"actor":         actor,
	})
	return nil
}

// BankConfirms moves BankApproval -> Funded and anticipates the handover
// by starting the Active step. A confirmation arriving when the
// application is already past BankApproval returns a
// RECONCILIATION_CONFLICT error and mutates nothing; callers treat it as a
// benign duplicate.
func (m *Machine) BankConfirms(app *models.Application, actor string) error {
	if app.Blocked {
		return m.guardViolation("bankConfirms", "application is blocked")
	}
	if app.Status != models.StatusBankApproval {
		if Rank(app.Status) > Rank(models.StatusBankApproval) {
			return errors.NewReconciliationConflictError(app.ID, string(app.Status))
		}
		return m.guardViolation("bankConfirms",
			fmt.Sprintf("expected status %s, got %s", models.StatusBankApproval, app.Status))
	}

	return m.commit(app, actor, "bankConfirms", models.StatusFunded, func(scratch *models.Application, ts time.Time) {
		completeStep(scratch, StepBankApproval, ts)
		completeStep(scratch, StepFunded, ts)
		startStep(scratch, StepActive)
	})
}

// BankDeclines records an explicit decline decision against an application
// waiting on the bank, moving it to Rejected. The handshake never calls
// this automatically; a failed handshake leaves the application at
// BankApproval for a human to decide.
func (m *Machine) BankDeclines(app *models.Application, actor, reason string) error {
	if app.Status != models.StatusBankApproval {
		if Rank(app.Status) > Rank(models.StatusBankApproval) {
			return errors.NewReconciliationConflictError(app.ID, string(app.Status))
		}
		if app.Status == models.StatusRejected {
			return nil
		}
		return m.guardViolation("bankDeclines",
			fmt.Sprintf("expected status %s, got %s", models.StatusBankApproval, app.Status))
	}
	return m.Reject(app, actor, reason)
}

// HandoverConfirmed moves Funded -> Active once the landlord hands the
// property over. The confirmation is a trusted user action.
func (m *Machine) HandoverConfirmed(app *models.Application, actor string) error {
	if done, err := m.precheck(app, "handoverConfirmed", models.StatusFunded, models.StatusActive); done || err != nil {
		return err
	}

	return m.commit(app, actor, "handoverConfirmed", models.StatusActive, func(scratch *models.Application, ts time.Time) {
		completeStep(scratch, StepActive, ts)
		startStep(scratch, StepCompleted)
	})
}

// ScheduleComplete moves Active -> Completed. Guard: every installment is
// paid.
func (m *Machine) ScheduleComplete(app *models.Application, actor string) error {
	if done, err := m.precheck(app, "scheduleComplete", models.StatusActive, models.StatusCompleted); done || err != nil {
		return err
	}

	for _, inst := range app.Installments {
		if inst.Status != finance.InstallmentPaid {
			return m.guardViolation("scheduleComplete",
				fmt.Sprintf("installment %d not paid, status: %s", inst.Index, inst.Status))
		}
	}

	return m.commit(app, actor, "scheduleComplete", models.StatusCompleted, func(scratch *models.Application, ts time.Time) {
		completeStep(scratch, StepCompleted, ts)
	})
}

// precheck applies the shared transition rules: a blocked application does
// not move, re-entrant calls at or past the target are no-ops, Rejected is
// absorbing, and anything else out of place is a guard violation. done=true means the caller returns
// immediately with the accompanying error (nil for no-ops).
func (m *Machine) precheck(app *models.Application, action string, from, to models.Status) (bool, error) {
	if app.Blocked {
		return true, m.guardViolation(action, "application is blocked")
	}
	if app.Status == from {
		return false, nil
	}
	if app.Status == models.StatusRejected {
		return true, m.guardViolation(action, "application is rejected")
	}
	if Rank(app.Status) >= Rank(to) {
		m.logger.Debug("Transition already satisfied", map[string]interface{}{
			"applicationId": app.ID,
			"action":        action,
			"status":        string(app.Status),
		})
		return true, nil
	}
	return true, m.guardViolation(action,
		fmt.Sprintf("expected status %s, got %s", from, app.Status))
}

// commit runs the transition on a scratch copy and swaps it in whole.
func (m *Machine) commit(app *models.Application, actor, action string, to models.Status, mutate func(*models.Application, time.Time)) error {
	from := app.Status
	ts := m.now()

	scratch := app.Clone()
	scratch.Status = to
	mutate(scratch, ts)
	scratch.ActivityLog = append(scratch.ActivityLog, models.ActivityEntry{
		Actor:     actor,
		Action:    action,
		Timestamp: ts,
	})
	scratch.UpdatedAt = ts
	*app = *scratch

	metrics.LifecycleTransitions.WithLabelValues(string(from), string(to)).Inc()
	m.logger.Info("Lifecycle transition", map[string]interface{}{
		"applicationId": app.ID,
		"action":        action,
		"from":          string(from),
		"to":            string(to),
		"actor":         actor,
		"progress":      Progress(app),
	})
	return nil
}

func (m *Machine) guardViolation(action, details string) error {
	metrics.GuardViolations.WithLabelValues(action, string(errors.ErrCodeGuardViolation)).Inc()
	return errors.NewGuardViolationError(action, details)
}

func missingDocumentTypes(app *models.Application) []string {
	attached := make(map[string]bool, len(app.Documents))
	for _, doc := range app.Documents {
		attached[doc.Type] = true
	}
	var missing []string
	for _, required := range RequiredDocumentTypes {
		if !attached[required] {
			missing = append(missing, required)
		}
	}
	return missing
}
