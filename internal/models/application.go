// internal/models/application.go
package models

import (
	"time"

	"github.com/Synergyfy/Help2Home-sub002/internal/finance"
)

// Status is the top-level lifecycle state of a financing application.
type Status string

const (
	StatusDraft        Status = "draft"
	StatusSubmitted    Status = "submitted"
	StatusUnderReview  Status = "under_review"
	StatusBankApproval Status = "bank_approval"
	StatusFunded       Status = "funded"
	StatusActive       Status = "active"
	StatusCompleted    Status = "completed"
	StatusRejected     Status = "rejected"
)

// StepStatus is the state of a single timeline step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepRejected   StepStatus = "rejected"
	StepBlocked    StepStatus = "blocked"
)

// DocumentStatus is the verification state of an uploaded document.
type DocumentStatus string

const (
	DocumentPending  DocumentStatus = "pending"
	DocumentInReview DocumentStatus = "in_review"
	DocumentVerified DocumentStatus = "verified"
	DocumentRejected DocumentStatus = "rejected"
)

// Responsible parties shown on timeline steps.
const (
	PartyTenant   = "tenant"
	PartyHelpdesk = "helpdesk"
	PartyBank     = "bank"
	PartyLandlord = "landlord"
)

// FinancingTerms are the tenant-chosen financing parameters. They are
// immutable once the application leaves draft.
type FinancingTerms struct {
	DownPaymentPercent  float64 `json:"downPaymentPercent"`
	DurationMonths      int     `json:"durationMonths"`
	InterestRatePercent float64 `json:"interestRatePercent"`
	ServiceFeeMinor     int64   `json:"serviceFeeMinor"`
}

// TimelineStep is one entry of the fixed six-step application timeline.
type TimelineStep struct {
	Title            string     `json:"title"`
	Status           StepStatus `json:"status"`
	ResponsibleParty string     `json:"responsibleParty"`
	Timestamp        *time.Time `json:"timestamp,omitempty"`
}

// ApplicationDocument tracks one uploaded document through verification.
// A rejected document always carries a rejection reason; re-uploading puts
// it back to in_review and clears the reason.
type ApplicationDocument struct {
	ID              string         `json:"id"`
	Type            string         `json:"type"`
	Status          DocumentStatus `json:"status"`
	RejectionReason string         `json:"rejectionReason,omitempty"`
}

// ActivityEntry is one append-only audit record on the application.
type ActivityEntry struct {
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Application is the aggregate root for one tenant's financing request on
// one property. Applications are never deleted; terminal states are kept
// for audit.
type Application struct {
	ID             string                `json:"id"`
	PropertyID     string                `json:"propertyId"`
	TenantID       string                `json:"tenantId"`
	Status         Status                `json:"status"`
	BasePriceMinor int64                 `json:"basePriceMinor"`
	Terms          FinancingTerms        `json:"terms"`
	Installments   []finance.Installment `json:"installments,omitempty"`
	Timeline       []TimelineStep        `json:"timeline"`
	Documents      []ApplicationDocument `json:"documents"`
	ActivityLog    []ActivityEntry       `json:"activityLog"`
	// RejectedFrom keeps the status a rejection absorbed from, so the
	// rendered progress stays frozen at the point of rejection.
	RejectedFrom Status    `json:"rejectedFrom,omitempty"`
	Blocked      bool      `json:"blocked"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Document returns the document with the given ID, or nil.
func (a *Application) Document(id string) *ApplicationDocument {
	for i := range a.Documents {
		if a.Documents[i].ID == id {
			return &a.Documents[i]
		}
	}
	return nil
}

// Step returns the timeline step with the given title, or nil.
func (a *Application) Step(title string) *TimelineStep {
	for i := range a.Timeline {
		if a.Timeline[i].Title == title {
			return &a.Timeline[i]
		}
	}
	return nil
}

// Clone returns a deep copy. Repositories hand out clones so callers never
// mutate stored state in place.
func (a *Application) Clone() *Application {
	cp := *a
	cp.Installments = append([]finance.Installment(nil), a.Installments...)
	cp.Timeline = append([]TimelineStep(nil), a.Timeline...)
	cp.Documents = append([]ApplicationDocument(nil), a.Documents...)
	cp.ActivityLog = append([]ActivityEntry(nil), a.ActivityLog...)
	return &cp
}
