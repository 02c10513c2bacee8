// internal/lifecycle/states.go

// Package lifecycle implements the application state machine: the closed
// status order, transition guards, and the derived progress figure.
package lifecycle

import (
	"time"

	"github.com/Synergyfy/Help2Home-sub002/internal/models"
)

// Timeline step titles, in order.
const (
	StepSubmitted    = "Submitted"
	StepUnderReview  = "Under Review"
	StepBankApproval = "Bank Approval"
	StepFunded       = "Funded"
	StepActive       = "Active"
	StepCompleted    = "Completed"
)

// RequiredDocumentTypes must all be attached before an application can be
// submitted.
var RequiredDocumentTypes = []string{
	"identity",
	"income_proof",
	"rental_agreement",
}

// statusRank gives the total order of the happy path. Rejected is absorbing
// and sits outside the order.
var statusRank = map[models.Status]int{
	models.StatusDraft:        0,
	models.StatusSubmitted:    1,
	models.StatusUnderReview:  2,
	models.StatusBankApproval: 3,
	models.StatusFunded:       4,
	models.StatusActive:       5,
	models.StatusCompleted:    6,
}

// progressByStatus is the fixed mapping rendered as progressPercent.
var progressByStatus = map[models.Status]int{
	models.StatusDraft:        10,
	models.StatusSubmitted:    25,
	models.StatusUnderReview:  35,
	models.StatusBankApproval: 60,
	models.StatusFunded:       80,
	models.StatusActive:       95,
	models.StatusCompleted:    100,
}

// Rank returns the position of a status on the happy path, or -1 for
// Rejected and unknown statuses.
func Rank(s models.Status) int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// ProgressFor returns the progress percentage derived from a status.
func ProgressFor(s models.Status) int {
	return progressByStatus[s]
}

// Progress returns the progress percentage for an application. A rejected
// application keeps the figure of the status it was rejected from.
func Progress(app *models.Application) int {
	if app.Status == models.StatusRejected {
		return progressByStatus[app.RejectedFrom]
	}
	return progressByStatus[app.Status]
}

// NewTimeline returns the fixed six-step timeline for a new application.
func NewTimeline() []models.TimelineStep {
	return []models.TimelineStep{
		{Title: StepSubmitted, Status: models.StepInProgress, ResponsibleParty: models.PartyTenant},
		{Title: StepUnderReview, Status: models.StepPending, ResponsibleParty: models.PartyHelpdesk},
		{Title: StepBankApproval, Status: models.StepPending, ResponsibleParty: models.PartyBank},
		{Title: StepFunded, Status: models.StepPending, ResponsibleParty: models.PartyBank},
		{Title: StepActive, Status: models.StepPending, ResponsibleParty: models.PartyLandlord},
		{Title: StepCompleted, Status: models.StepPending, ResponsibleParty: models.PartyTenant},
	}
}

func completeStep(app *models.Application, title string, ts time.Time) {
	if step := app.Step(title); step != nil {
		step.Status = models.StepCompleted
		t := ts
		step.Timestamp = &t
	}
}

func startStep(app *models.Application, title string) {
	if step := app.Step(title); step != nil && step.Status == models.StepPending {
		step.Status = models.StepInProgress
	}
}

func rejectCurrentStep(app *models.Application, ts time.Time) {
	for i := range app.Timeline {
		if app.Timeline[i].Status == models.StepInProgress || app.Timeline[i].Status == models.StepBlocked {
			app.Timeline[i].Status = models.StepRejected
			t := ts
			app.Timeline[i].Timestamp = &t
			return
		}
	}
}
