package tasks

import (
	"time"

	"github.com/google/uuid"
)

// Task names. Provider-bound tasks run on the provider's own queue; the rest
// run on the default queue.
const (
	TaskVerifyRequest          = "verification.verify_request"
	TaskProviderVerify         = "verification.provider_verify"
	TaskVerificationSummary    = "verification.create_summary"
	TaskInstrumentReportUpdate = "reports.update_instrument"
	TaskActivityReportUpdate   = "reports.update_activity"
	TaskSampleValidate         = "enrolment.provider_validate"
	TaskValidationSummary      = "enrolment.create_validation_summary"
	TaskEnrolmentUpdate        = "enrolment.update_model"
	TaskProviderNotify         = "notifications.provider_notify"
)

const DefaultQueue = "default"

// VerifyRequestArgs fans a stored request out to its instruments' providers.
type VerifyRequestArgs struct {
	RequestID uuid.UUID `json:"request_id"`
}

// ProviderVerifyArgs asks one provider to analyse a verification request.
type ProviderVerifyArgs struct {
	RequestID  uuid.UUID `json:"request_id"`
	ProviderID uuid.UUID `json:"provider_id"`
}

// VerificationSummaryArgs re-reduces all provider results of a request.
type VerificationSummaryArgs struct {
	RequestID uuid.UUID `json:"request_id"`
}

// InstrumentReportUpdateArgs refreshes one instrument row of a learner's
// activity report.
type InstrumentReportUpdateArgs struct {
	ActivityID   uuid.UUID `json:"activity_id"`
	LearnerID    uuid.UUID `json:"learner_id"`
	InstrumentID uuid.UUID `json:"instrument_id"`
}

// ActivityReportUpdateArgs folds the instrument rows into the report levels.
type ActivityReportUpdateArgs struct {
	ActivityID uuid.UUID `json:"activity_id"`
	LearnerID  uuid.UUID `json:"learner_id"`
}

// SampleValidateArgs asks one validator provider to judge an enrolment sample.
type SampleValidateArgs struct {
	SampleID   uuid.UUID `json:"sample_id"`
	ProviderID uuid.UUID `json:"provider_id"`
}

// ValidationSummaryArgs folds the per-provider validations into the sample
// status. Attempt counts the delayed re-runs spent waiting for straggler
// validators.
type ValidationSummaryArgs struct {
	SampleID uuid.UUID `json:"sample_id"`
	Attempt  int       `json:"attempt"`
}

// EnrolmentUpdateArgs asks a provider to fold pending valid samples into its
// committed model for a learner.
type EnrolmentUpdateArgs struct {
	LearnerID  uuid.UUID `json:"learner_id"`
	ProviderID uuid.UUID `json:"provider_id"`
}

// ProviderNotifyArgs delivers a due deferred notification back to its
// provider.
type ProviderNotifyArgs struct {
	NotificationID uuid.UUID `json:"notification_id"`
	ProviderID     uuid.UUID `json:"provider_id"`
	Key            string    `json:"key"`
}

// Schedule carries optional dispatch options. A zero RunAt means run as soon
// as a worker picks the queue up.
type Schedule struct {
	RunAt time.Time
}
