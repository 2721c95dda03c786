package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tesla-ce/trust-backend/internal/cache"
	"github.com/tesla-ce/trust-backend/internal/logger"
	"github.com/tesla-ce/trust-backend/internal/tasks"
	"github.com/tesla-ce/trust-backend/internal/types"
)

// In-memory doubles for the repo and dispatcher ports. Services are built
// with a nil *gorm.DB so withTransaction calls straight through, and every
// fake ignores its tx argument the way the real repos treat a nil tx.

func testLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func clone[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneAll[T any](in []*T) []*T {
	out := make([]*T, 0, len(in))
	for _, v := range in {
		out = append(out, clone(v))
	}
	return out
}

func uuidSet(ids []uuid.UUID) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// --- institutions ---

type fakeInstitutionRepo struct {
	items map[uuid.UUID]*types.Institution
}

func newFakeInstitutionRepo() *fakeInstitutionRepo {
	return &fakeInstitutionRepo{items: map[uuid.UUID]*types.Institution{}}
}

func (f *fakeInstitutionRepo) Create(ctx context.Context, tx *gorm.DB, institutions []*types.Institution) ([]*types.Institution, error) {
	for _, row := range institutions {
		f.items[row.ID] = row
	}
	return institutions, nil
}

func (f *fakeInstitutionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Institution, error) {
	return clone(f.items[id]), nil
}

// --- learners ---

type fakeLearnerRepo struct {
	items map[uuid.UUID]*types.Learner
}

func newFakeLearnerRepo() *fakeLearnerRepo {
	return &fakeLearnerRepo{items: map[uuid.UUID]*types.Learner{}}
}

func (f *fakeLearnerRepo) Create(ctx context.Context, tx *gorm.DB, learners []*types.Learner) ([]*types.Learner, error) {
	for _, row := range learners {
		f.items[row.ID] = row
	}
	return learners, nil
}

func (f *fakeLearnerRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Learner, error) {
	return clone(f.items[id]), nil
}

func (f *fakeLearnerRepo) GetByLearnerID(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID) (*types.Learner, error) {
	for _, row := range f.items {
		if row.LearnerID == learnerID {
			return clone(row), nil
		}
	}
	return nil, nil
}

func (f *fakeLearnerRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	row, ok := f.items[id]
	if !ok {
		return nil
	}
	for key, value := range updates {
		switch key {
		case "consent_id":
			consentID := value.(uuid.UUID)
			row.ConsentID = &consentID
		case "consent_accepted":
			accepted := value.(time.Time)
			row.ConsentAccepted = &accepted
		case "consent_rejected":
			if value == nil {
				row.ConsentRejected = nil
			} else {
				rejected := value.(time.Time)
				row.ConsentRejected = &rejected
			}
		}
	}
	row.UpdatedAt = timeNow()
	return nil
}

// --- informed consents ---

type fakeConsentRepo struct {
	items []*types.InformedConsent
}

func newFakeConsentRepo() *fakeConsentRepo { return &fakeConsentRepo{} }

func (f *fakeConsentRepo) Create(ctx context.Context, tx *gorm.DB, consents []*types.InformedConsent) ([]*types.InformedConsent, error) {
	f.items = append(f.items, consents...)
	return consents, nil
}

func (f *fakeConsentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.InformedConsent, error) {
	for _, row := range f.items {
		if row.ID == id {
			return clone(row), nil
		}
	}
	return nil, nil
}

func (f *fakeConsentRepo) ListActiveByInstitution(ctx context.Context, tx *gorm.DB, institutionID uuid.UUID, now time.Time) ([]*types.InformedConsent, error) {
	var out []*types.InformedConsent
	for _, row := range f.items {
		if row.InstitutionID == institutionID && !row.ValidFrom.After(now) {
			out = append(out, clone(row))
		}
	}
	return out, nil
}

// --- instruments ---

type fakeInstrumentRepo struct {
	items map[uuid.UUID]*types.Instrument
	order []uuid.UUID
}

func newFakeInstrumentRepo() *fakeInstrumentRepo {
	return &fakeInstrumentRepo{items: map[uuid.UUID]*types.Instrument{}}
}

func (f *fakeInstrumentRepo) Create(ctx context.Context, tx *gorm.DB, instruments []*types.Instrument) ([]*types.Instrument, error) {
	for _, row := range instruments {
		f.items[row.ID] = row
		f.order = append(f.order, row.ID)
	}
	return instruments, nil
}

func (f *fakeInstrumentRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Instrument, error) {
	var out []*types.Instrument
	for _, id := range ids {
		if row, ok := f.items[id]; ok {
			out = append(out, clone(row))
		}
	}
	return out, nil
}

func (f *fakeInstrumentRepo) GetByAcronym(ctx context.Context, tx *gorm.DB, acronym string) (*types.Instrument, error) {
	for _, row := range f.items {
		if row.Acronym == acronym {
			return clone(row), nil
		}
	}
	return nil, nil
}

func (f *fakeInstrumentRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]*types.Instrument, error) {
	var out []*types.Instrument
	for _, id := range f.order {
		out = append(out, clone(f.items[id]))
	}
	return out, nil
}

// --- providers ---

type fakeProviderRepo struct {
	items []*types.Provider
}

func newFakeProviderRepo() *fakeProviderRepo { return &fakeProviderRepo{} }

func (f *fakeProviderRepo) Create(ctx context.Context, tx *gorm.DB, providers []*types.Provider) ([]*types.Provider, error) {
	f.items = append(f.items, providers...)
	return providers, nil
}

func (f *fakeProviderRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Provider, error) {
	for _, row := range f.items {
		if row.ID == id {
			return clone(row), nil
		}
	}
	return nil, nil
}

func (f *fakeProviderRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Provider, error) {
	set := uuidSet(ids)
	var out []*types.Provider
	for _, row := range f.items {
		if set[row.ID] {
			out = append(out, clone(row))
		}
	}
	return out, nil
}

func (f *fakeProviderRepo) GetByAcronym(ctx context.Context, tx *gorm.DB, acronym string) (*types.Provider, error) {
	for _, row := range f.items {
		if row.Acronym == acronym {
			return clone(row), nil
		}
	}
	return nil, nil
}

func (f *fakeProviderRepo) ListEnabled(ctx context.Context, tx *gorm.DB) ([]*types.Provider, error) {
	var out []*types.Provider
	for _, row := range f.items {
		if row.Enabled {
			out = append(out, clone(row))
		}
	}
	return out, nil
}

func (f *fakeProviderRepo) ListEnabledByInstrument(ctx context.Context, tx *gorm.DB, instrumentID uuid.UUID) ([]*types.Provider, error) {
	var out []*types.Provider
	for _, row := range f.items {
		if row.Enabled && row.InstrumentID == instrumentID {
			out = append(out, clone(row))
		}
	}
	return out, nil
}

func (f *fakeProviderRepo) ListValidatorsByInstrument(ctx context.Context, tx *gorm.DB, instrumentID uuid.UUID) ([]*types.Provider, error) {
	var out []*types.Provider
	for _, row := range f.items {
		if row.InstrumentID == instrumentID && row.Enabled && row.AllowValidation && row.ValidationActive {
			out = append(out, clone(row))
		}
	}
	return out, nil
}

// --- activities ---

type fakeActivityRepo struct {
	items    map[uuid.UUID]*types.Activity
	instRows []*types.ActivityInstrument
}

func newFakeActivityRepo() *fakeActivityRepo {
	return &fakeActivityRepo{items: map[uuid.UUID]*types.Activity{}}
}

func (f *fakeActivityRepo) Create(ctx context.Context, tx *gorm.DB, activities []*types.Activity) ([]*types.Activity, error) {
	for _, row := range activities {
		f.items[row.ID] = row
	}
	return activities, nil
}

func (f *fakeActivityRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Activity, error) {
	return clone(f.items[id]), nil
}

func (f *fakeActivityRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	row, ok := f.items[id]
	if !ok {
		return nil
	}
	for key, value := range updates {
		if key == "enabled" {
			row.Enabled = value.(bool)
		}
	}
	row.UpdatedAt = timeNow()
	return nil
}

func (f *fakeActivityRepo) CreateInstruments(ctx context.Context, tx *gorm.DB, rows []*types.ActivityInstrument) ([]*types.ActivityInstrument, error) {
	f.instRows = append(f.instRows, rows...)
	return rows, nil
}

func (f *fakeActivityRepo) ListInstruments(ctx context.Context, tx *gorm.DB, activityID uuid.UUID) ([]*types.ActivityInstrument, error) {
	var out []*types.ActivityInstrument
	for _, row := range f.instRows {
		if row.ActivityID == activityID {
			out = append(out, clone(row))
		}
	}
	return out, nil
}

func (f *fakeActivityRepo) ListActiveInstruments(ctx context.Context, tx *gorm.DB, activityID uuid.UUID) ([]*types.ActivityInstrument, error) {
	var out []*types.ActivityInstrument
	for _, row := range f.instRows {
		if row.ActivityID == activityID && row.Active {
			out = append(out, clone(row))
		}
	}
	return out, nil
}

func (f *fakeActivityRepo) DeleteInstrument(ctx context.Context, tx *gorm.DB, activityID, instrumentID uuid.UUID) error {
	var kept []*types.ActivityInstrument
	for _, row := range f.instRows {
		if row.ActivityID == activityID && row.InstrumentID == instrumentID {
			continue
		}
		kept = append(kept, row)
	}
	f.instRows = kept
	return nil
}

// --- enrolments ---

type fakeEnrolmentRepo struct {
	items        []*types.Enrolment
	modelSamples []*types.EnrolmentModelSample
}

func newFakeEnrolmentRepo() *fakeEnrolmentRepo { return &fakeEnrolmentRepo{} }

func (f *fakeEnrolmentRepo) find(id uuid.UUID) *types.Enrolment {
	for _, row := range f.items {
		if row.ID == id {
			return row
		}
	}
	return nil
}

func (f *fakeEnrolmentRepo) Create(ctx context.Context, tx *gorm.DB, enrolments []*types.Enrolment) ([]*types.Enrolment, error) {
	f.items = append(f.items, enrolments...)
	return enrolments, nil
}

func (f *fakeEnrolmentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Enrolment, error) {
	return clone(f.find(id)), nil
}

func (f *fakeEnrolmentRepo) GetByLearnerProvider(ctx context.Context, tx *gorm.DB, learnerID, providerID uuid.UUID) (*types.Enrolment, error) {
	for _, row := range f.items {
		if row.LearnerID == learnerID && row.ProviderID == providerID {
			return clone(row), nil
		}
	}
	return nil, nil
}

func (f *fakeEnrolmentRepo) ListByLearner(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID) ([]*types.Enrolment, error) {
	var out []*types.Enrolment
	for _, row := range f.items {
		if row.LearnerID == learnerID {
			out = append(out, clone(row))
		}
	}
	return out, nil
}

func (f *fakeEnrolmentRepo) ListByLearnerProviders(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, providerIDs []uuid.UUID) ([]*types.Enrolment, error) {
	set := uuidSet(providerIDs)
	var out []*types.Enrolment
	for _, row := range f.items {
		if row.LearnerID == learnerID && set[row.ProviderID] {
			out = append(out, clone(row))
		}
	}
	return out, nil
}

func (f *fakeEnrolmentRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	row := f.find(id)
	if row == nil {
		return nil
	}
	for key, value := range updates {
		switch key {
		case "percentage":
			row.Percentage = value.(float64)
		case "can_analyse":
			row.CanAnalyse = value.(bool)
		case "model":
			row.Model = value.(string)
		}
	}
	row.UpdatedAt = timeNow()
	return nil
}

func (f *fakeEnrolmentRepo) AcquireLock(ctx context.Context, tx *gorm.DB, id, token uuid.UUID, staleBefore time.Time) (bool, error) {
	row := f.find(id)
	if row == nil {
		return false, nil
	}
	if row.LockedAt != nil && !row.LockedAt.Before(staleBefore) {
		return false, nil
	}
	now := timeNow()
	tok := token
	row.LockedAt = &now
	row.LockedBy = &tok
	return true, nil
}

func (f *fakeEnrolmentRepo) ReleaseLock(ctx context.Context, tx *gorm.DB, id, token uuid.UUID) (bool, error) {
	row := f.find(id)
	if row == nil || row.LockedBy == nil || *row.LockedBy != token {
		return false, nil
	}
	row.LockedAt = nil
	row.LockedBy = nil
	return true, nil
}

func (f *fakeEnrolmentRepo) AddModelSamples(ctx context.Context, tx *gorm.DB, rows []*types.EnrolmentModelSample) error {
	f.modelSamples = append(f.modelSamples, rows...)
	return nil
}

func (f *fakeEnrolmentRepo) ListModelSampleIDs(ctx context.Context, tx *gorm.DB, enrolmentID uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, row := range f.modelSamples {
		if row.EnrolmentID == enrolmentID {
			out = append(out, row.SampleID)
		}
	}
	return out, nil
}

func (f *fakeEnrolmentRepo) ListUsedSampleIDs(ctx context.Context, tx *gorm.DB, sampleIDs []uuid.UUID) ([]uuid.UUID, error) {
	set := uuidSet(sampleIDs)
	var out []uuid.UUID
	for _, row := range f.modelSamples {
		if set[row.SampleID] {
			out = append(out, row.SampleID)
		}
	}
	return out, nil
}

// --- enrolment samples ---

type fakeSampleRepo struct {
	samples []*types.EnrolmentSample
	tags    []*types.EnrolmentSampleInstrument
}

func newFakeSampleRepo() *fakeSampleRepo { return &fakeSampleRepo{} }

func (f *fakeSampleRepo) Create(ctx context.Context, tx *gorm.DB, samples []*types.EnrolmentSample) ([]*types.EnrolmentSample, error) {
	f.samples = append(f.samples, samples...)
	return samples, nil
}

func (f *fakeSampleRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.EnrolmentSample, error) {
	for _, row := range f.samples {
		if row.ID == id {
			return clone(row), nil
		}
	}
	return nil, nil
}

func (f *fakeSampleRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	for _, row := range f.samples {
		if row.ID != id {
			continue
		}
		for key, value := range updates {
			if key == "status" {
				row.Status = value.(types.SampleStatus)
			}
		}
		row.UpdatedAt = timeNow()
	}
	return nil
}

func (f *fakeSampleRepo) AddInstruments(ctx context.Context, tx *gorm.DB, rows []*types.EnrolmentSampleInstrument) error {
	f.tags = append(f.tags, rows...)
	return nil
}

func (f *fakeSampleRepo) ListInstrumentIDs(ctx context.Context, tx *gorm.DB, sampleID uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, row := range f.tags {
		if row.SampleID == sampleID {
			out = append(out, row.InstrumentID)
		}
	}
	return out, nil
}

func (f *fakeSampleRepo) ListByLearner(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID) ([]*types.EnrolmentSample, error) {
	var out []*types.EnrolmentSample
	for _, row := range f.samples {
		if row.LearnerID == learnerID {
			out = append(out, clone(row))
		}
	}
	return out, nil
}

func (f *fakeSampleRepo) ListByLearnerInstrument(ctx context.Context, tx *gorm.DB, learnerID, instrumentID uuid.UUID) ([]*types.EnrolmentSample, error) {
	tagged := map[uuid.UUID]bool{}
	for _, row := range f.tags {
		if row.InstrumentID == instrumentID {
			tagged[row.SampleID] = true
		}
	}
	var out []*types.EnrolmentSample
	for _, row := range f.samples {
		if row.LearnerID == learnerID && tagged[row.ID] {
			out = append(out, clone(row))
		}
	}
	return out, nil
}

func (f *fakeSampleRepo) ListInstrumentRowsBySamples(ctx context.Context, tx *gorm.DB, sampleIDs []uuid.UUID) ([]*types.EnrolmentSampleInstrument, error) {
	set := uuidSet(sampleIDs)
	var out []*types.EnrolmentSampleInstrument
	for _, row := range f.tags {
		if set[row.SampleID] {
			out = append(out, clone(row))
		}
	}
	return out, nil
}

// --- sample validations ---

type fakeValidationRepo struct {
	items []*types.EnrolmentSampleValidation
}

func newFakeValidationRepo() *fakeValidationRepo { return &fakeValidationRepo{} }

func (f *fakeValidationRepo) Create(ctx context.Context, tx *gorm.DB, validations []*types.EnrolmentSampleValidation) ([]*types.EnrolmentSampleValidation, error) {
	f.items = append(f.items, validations...)
	return validations, nil
}

func (f *fakeValidationRepo) GetBySampleProvider(ctx context.Context, tx *gorm.DB, sampleID, providerID uuid.UUID) (*types.EnrolmentSampleValidation, error) {
	for _, row := range f.items {
		if row.SampleID == sampleID && row.ProviderID == providerID {
			return clone(row), nil
		}
	}
	return nil, nil
}

func (f *fakeValidationRepo) ListBySample(ctx context.Context, tx *gorm.DB, sampleID uuid.UUID) ([]*types.EnrolmentSampleValidation, error) {
	var out []*types.EnrolmentSampleValidation
	for _, row := range f.items {
		if row.SampleID == sampleID {
			out = append(out, clone(row))
		}
	}
	return out, nil
}

func (f *fakeValidationRepo) ListBySamples(ctx context.Context, tx *gorm.DB, sampleIDs []uuid.UUID) ([]*types.EnrolmentSampleValidation, error) {
	set := uuidSet(sampleIDs)
	var out []*types.EnrolmentSampleValidation
	for _, row := range f.items {
		if set[row.SampleID] {
			out = append(out, clone(row))
		}
	}
	return out, nil
}

func (f *fakeValidationRepo) ListValidByProvider(ctx context.Context, tx *gorm.DB, providerID uuid.UUID, sampleIDs []uuid.UUID) ([]*types.EnrolmentSampleValidation, error) {
	set := uuidSet(sampleIDs)
	var out []*types.EnrolmentSampleValidation
	for _, row := range f.items {
		if row.ProviderID == providerID && row.Status == types.ValidationValid && set[row.SampleID] {
			out = append(out, clone(row))
		}
	}
	return out, nil
}

func (f *fakeValidationRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	for _, row := range f.items {
		if row.ID != id {
			continue
		}
		for key, value := range updates {
			switch key {
			case "status":
				row.Status = value.(types.ValidationStatus)
			case "contribution":
				contribution := value.(float64)
				row.Contribution = &contribution
			case "error_message":
				msg := value.(string)
				row.ErrorMessage = &msg
			case "info":
				row.Info = value.(string)
			}
		}
		row.UpdatedAt = timeNow()
	}
	return nil
}

// --- requests and sessions ---

type fakeRequestRepo struct {
	requests []*types.Request
	instRows []*types.RequestInstrument
	sessions []*types.AssessmentSession
}

func newFakeRequestRepo() *fakeRequestRepo { return &fakeRequestRepo{} }

func (f *fakeRequestRepo) Create(ctx context.Context, tx *gorm.DB, requests []*types.Request) ([]*types.Request, error) {
	f.requests = append(f.requests, requests...)
	return requests, nil
}

func (f *fakeRequestRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Request, error) {
	for _, row := range f.requests {
		if row.ID == id {
			return clone(row), nil
		}
	}
	return nil, nil
}

func (f *fakeRequestRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	for _, row := range f.requests {
		if row.ID != id {
			continue
		}
		for key, value := range updates {
			switch key {
			case "status":
				row.Status = value.(types.RequestStatus)
			case "error_message":
				msg := value.(string)
				row.ErrorMessage = &msg
			}
		}
		row.UpdatedAt = timeNow()
	}
	return nil
}

func (f *fakeRequestRepo) ListByActivityLearner(ctx context.Context, tx *gorm.DB, activityID, learnerID uuid.UUID) ([]*types.Request, error) {
	var out []*types.Request
	for _, row := range f.requests {
		if row.ActivityID == activityID && row.LearnerID == learnerID {
			out = append(out, clone(row))
		}
	}
	return out, nil
}

func (f *fakeRequestRepo) AddInstruments(ctx context.Context, tx *gorm.DB, rows []*types.RequestInstrument) error {
	f.instRows = append(f.instRows, rows...)
	return nil
}

func (f *fakeRequestRepo) ListInstrumentIDs(ctx context.Context, tx *gorm.DB, requestID uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, row := range f.instRows {
		if row.RequestID == requestID {
			out = append(out, row.InstrumentID)
		}
	}
	return out, nil
}

func (f *fakeRequestRepo) CreateSessions(ctx context.Context, tx *gorm.DB, sessions []*types.AssessmentSession) ([]*types.AssessmentSession, error) {
	for _, session := range sessions {
		if session.StartedAt.IsZero() {
			session.StartedAt = timeNow()
		}
	}
	f.sessions = append(f.sessions, sessions...)
	return sessions, nil
}

func (f *fakeRequestRepo) GetSessionByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AssessmentSession, error) {
	for _, row := range f.sessions {
		if row.ID == id {
			return clone(row), nil
		}
	}
	return nil, nil
}

func (f *fakeRequestRepo) CloseSession(ctx context.Context, tx *gorm.DB, id uuid.UUID, closedAt time.Time) error {
	for _, row := range f.sessions {
		if row.ID == id {
			at := closedAt
			row.ClosedAt = &at
		}
	}
	return nil
}

// --- per-instrument results ---

type fakeResultRepo struct {
	items    []*types.RequestResult
	requests *fakeRequestRepo
}

func newFakeResultRepo(requests *fakeRequestRepo) *fakeResultRepo {
	return &fakeResultRepo{requests: requests}
}

func (f *fakeResultRepo) Create(ctx context.Context, tx *gorm.DB, results []*types.RequestResult) ([]*types.RequestResult, error) {
	f.items = append(f.items, results...)
	return results, nil
}

func (f *fakeResultRepo) GetByRequestInstrument(ctx context.Context, tx *gorm.DB, requestID, instrumentID uuid.UUID) (*types.RequestResult, error) {
	for _, row := range f.items {
		if row.RequestID == requestID && row.InstrumentID == instrumentID {
			return clone(row), nil
		}
	}
	return nil, nil
}

func (f *fakeResultRepo) ListByRequest(ctx context.Context, tx *gorm.DB, requestID uuid.UUID) ([]*types.RequestResult, error) {
	var out []*types.RequestResult
	for _, row := range f.items {
		if row.RequestID == requestID {
			out = append(out, clone(row))
		}
	}
	return out, nil
}

func (f *fakeResultRepo) ListByActivityLearnerInstrument(ctx context.Context, tx *gorm.DB, activityID, learnerID, instrumentID uuid.UUID) ([]*types.RequestResult, error) {
	matching := map[uuid.UUID]bool{}
	for _, request := range f.requests.requests {
		if request.ActivityID == activityID && request.LearnerID == learnerID {
			matching[request.ID] = true
		}
	}
	var out []*types.RequestResult
	for _, row := range f.items {
		if matching[row.RequestID] && row.InstrumentID == instrumentID {
			out = append(out, clone(row))
		}
	}
	return out, nil
}

func (f *fakeResultRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	for _, row := range f.items {
		if row.ID != id {
			continue
		}
		applyResultUpdates(updates, &row.Status, &row.Result, &row.Code, &row.ErrorMessage, nil)
		row.UpdatedAt = timeNow()
	}
	return nil
}

// --- per-provider results ---

type fakeProviderResultRepo struct {
	items []*types.RequestProviderResult
}

func newFakeProviderResultRepo() *fakeProviderResultRepo { return &fakeProviderResultRepo{} }

func (f *fakeProviderResultRepo) Create(ctx context.Context, tx *gorm.DB, results []*types.RequestProviderResult) ([]*types.RequestProviderResult, error) {
	f.items = append(f.items, results...)
	return results, nil
}

func (f *fakeProviderResultRepo) GetByRequestProvider(ctx context.Context, tx *gorm.DB, requestID, providerID uuid.UUID) (*types.RequestProviderResult, error) {
	for _, row := range f.items {
		if row.RequestID == requestID && row.ProviderID == providerID {
			return clone(row), nil
		}
	}
	return nil, nil
}

func (f *fakeProviderResultRepo) ListByRequest(ctx context.Context, tx *gorm.DB, requestID uuid.UUID) ([]*types.RequestProviderResult, error) {
	var out []*types.RequestProviderResult
	for _, row := range f.items {
		if row.RequestID == requestID {
			out = append(out, clone(row))
		}
	}
	return out, nil
}

func (f *fakeProviderResultRepo) ListByRequestProviders(ctx context.Context, tx *gorm.DB, requestID uuid.UUID, providerIDs []uuid.UUID) ([]*types.RequestProviderResult, error) {
	set := uuidSet(providerIDs)
	var out []*types.RequestProviderResult
	for _, row := range f.items {
		if row.RequestID == requestID && set[row.ProviderID] {
			out = append(out, clone(row))
		}
	}
	return out, nil
}

func (f *fakeProviderResultRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	for _, row := range f.items {
		if row.ID != id {
			continue
		}
		applyResultUpdates(updates, &row.Status, &row.Result, &row.Code, &row.ErrorMessage, &row.Audit)
		row.UpdatedAt = timeNow()
	}
	return nil
}

// applyResultUpdates is shared by the two result row shapes.
func applyResultUpdates(updates map[string]interface{}, status *types.ResultStatus, result **float64, code *types.ResultCode, errorMessage **string, audit *string) {
	for key, value := range updates {
		switch key {
		case "status":
			*status = value.(types.ResultStatus)
		case "result":
			v := value.(float64)
			*result = &v
		case "code":
			*code = value.(types.ResultCode)
		case "error_message":
			msg := value.(string)
			*errorMessage = &msg
		case "audit":
			if audit != nil {
				*audit = value.(string)
			}
		}
	}
}

// --- reports ---

type fakeReportRepo struct {
	reports []*types.ReportActivity
	rows    []*types.ReportActivityInstrument
}

func newFakeReportRepo() *fakeReportRepo { return &fakeReportRepo{} }

func (f *fakeReportRepo) Create(ctx context.Context, tx *gorm.DB, reports []*types.ReportActivity) ([]*types.ReportActivity, error) {
	now := timeNow()
	for _, row := range reports {
		row.CreatedAt = now
		row.UpdatedAt = now
	}
	f.reports = append(f.reports, reports...)
	return reports, nil
}

func (f *fakeReportRepo) GetByActivityLearner(ctx context.Context, tx *gorm.DB, activityID, learnerID uuid.UUID) (*types.ReportActivity, error) {
	for _, row := range f.reports {
		if row.ActivityID == activityID && row.LearnerID == learnerID {
			return clone(row), nil
		}
	}
	return nil, nil
}

func (f *fakeReportRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	for _, row := range f.reports {
		if row.ID != id {
			continue
		}
		for key, value := range updates {
			switch key {
			case "identity_level":
				row.IdentityLevel = value.(types.ReportLevel)
			case "content_level":
				row.ContentLevel = value.(types.ReportLevel)
			case "integrity_level":
				row.IntegrityLevel = value.(types.ReportLevel)
			}
		}
		row.UpdatedAt = timeNow()
	}
	return nil
}

func (f *fakeReportRepo) CreateInstrumentRows(ctx context.Context, tx *gorm.DB, rows []*types.ReportActivityInstrument) ([]*types.ReportActivityInstrument, error) {
	now := timeNow()
	for _, row := range rows {
		row.CreatedAt = now
		row.UpdatedAt = now
	}
	f.rows = append(f.rows, rows...)
	return rows, nil
}

func (f *fakeReportRepo) GetInstrumentRow(ctx context.Context, tx *gorm.DB, reportID, instrumentID uuid.UUID) (*types.ReportActivityInstrument, error) {
	for _, row := range f.rows {
		if row.ReportID == reportID && row.InstrumentID == instrumentID {
			return clone(row), nil
		}
	}
	return nil, nil
}

func (f *fakeReportRepo) ListInstrumentRows(ctx context.Context, tx *gorm.DB, reportID uuid.UUID) ([]*types.ReportActivityInstrument, error) {
	var out []*types.ReportActivityInstrument
	for _, row := range f.rows {
		if row.ReportID == reportID {
			out = append(out, clone(row))
		}
	}
	return out, nil
}

func (f *fakeReportRepo) UpdateInstrumentRowFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	for _, row := range f.rows {
		if row.ID != id {
			continue
		}
		for key, value := range updates {
			switch key {
			case "enrolment":
				row.Enrolment = value.(int)
			case "confidence":
				row.Confidence = value.(int)
			case "result":
				row.Result = value.(int)
			case "identity_level":
				row.IdentityLevel = value.(types.ReportLevel)
			case "content_level":
				row.ContentLevel = value.(types.ReportLevel)
			case "integrity_level":
				row.IntegrityLevel = value.(types.ReportLevel)
			}
		}
		row.UpdatedAt = timeNow()
	}
	return nil
}

// --- histograms ---

type histKey struct{ a, b uuid.UUID }

type fakeHistogramRepo struct {
	learnerInstrument  map[histKey]*types.HistogramLearnerInstrument
	learnerProvider    map[histKey]*types.HistogramLearnerProvider
	activityInstrument map[histKey]*types.HistogramActivityInstrument
	activityProvider   map[histKey]*types.HistogramActivityProvider
}

func newFakeHistogramRepo() *fakeHistogramRepo {
	return &fakeHistogramRepo{
		learnerInstrument:  map[histKey]*types.HistogramLearnerInstrument{},
		learnerProvider:    map[histKey]*types.HistogramLearnerProvider{},
		activityInstrument: map[histKey]*types.HistogramActivityInstrument{},
		activityProvider:   map[histKey]*types.HistogramActivityProvider{},
	}
}

func incBucket(h *types.HistogramBuckets, bucket int) {
	switch bucket {
	case 0:
		h.B0++
	case 1:
		h.B1++
	case 2:
		h.B2++
	case 3:
		h.B3++
	case 4:
		h.B4++
	case 5:
		h.B5++
	case 6:
		h.B6++
	case 7:
		h.B7++
	case 8:
		h.B8++
	default:
		h.B9++
	}
}

func (f *fakeHistogramRepo) IncrementLearnerInstrument(ctx context.Context, tx *gorm.DB, learnerID, instrumentID uuid.UUID, bucket int) error {
	key := histKey{learnerID, instrumentID}
	row, ok := f.learnerInstrument[key]
	if !ok {
		row = &types.HistogramLearnerInstrument{ID: uuid.New(), LearnerID: learnerID, InstrumentID: instrumentID}
		f.learnerInstrument[key] = row
	}
	incBucket(&row.HistogramBuckets, bucket)
	return nil
}

func (f *fakeHistogramRepo) IncrementLearnerProvider(ctx context.Context, tx *gorm.DB, learnerID, providerID uuid.UUID, bucket int) error {
	key := histKey{learnerID, providerID}
	row, ok := f.learnerProvider[key]
	if !ok {
		row = &types.HistogramLearnerProvider{ID: uuid.New(), LearnerID: learnerID, ProviderID: providerID}
		f.learnerProvider[key] = row
	}
	incBucket(&row.HistogramBuckets, bucket)
	return nil
}

func (f *fakeHistogramRepo) IncrementActivityInstrument(ctx context.Context, tx *gorm.DB, activityID, instrumentID uuid.UUID, bucket int) error {
	key := histKey{activityID, instrumentID}
	row, ok := f.activityInstrument[key]
	if !ok {
		row = &types.HistogramActivityInstrument{ID: uuid.New(), ActivityID: activityID, InstrumentID: instrumentID}
		f.activityInstrument[key] = row
	}
	incBucket(&row.HistogramBuckets, bucket)
	return nil
}

func (f *fakeHistogramRepo) IncrementActivityProvider(ctx context.Context, tx *gorm.DB, activityID, providerID uuid.UUID, bucket int) error {
	key := histKey{activityID, providerID}
	row, ok := f.activityProvider[key]
	if !ok {
		row = &types.HistogramActivityProvider{ID: uuid.New(), ActivityID: activityID, ProviderID: providerID}
		f.activityProvider[key] = row
	}
	incBucket(&row.HistogramBuckets, bucket)
	return nil
}

func (f *fakeHistogramRepo) GetLearnerInstrument(ctx context.Context, tx *gorm.DB, learnerID, instrumentID uuid.UUID) (*types.HistogramLearnerInstrument, error) {
	return clone(f.learnerInstrument[histKey{learnerID, instrumentID}]), nil
}

func (f *fakeHistogramRepo) GetLearnerProvider(ctx context.Context, tx *gorm.DB, learnerID, providerID uuid.UUID) (*types.HistogramLearnerProvider, error) {
	return clone(f.learnerProvider[histKey{learnerID, providerID}]), nil
}

func (f *fakeHistogramRepo) GetActivityInstrument(ctx context.Context, tx *gorm.DB, activityID, instrumentID uuid.UUID) (*types.HistogramActivityInstrument, error) {
	return clone(f.activityInstrument[histKey{activityID, instrumentID}]), nil
}

func (f *fakeHistogramRepo) GetActivityProvider(ctx context.Context, tx *gorm.DB, activityID, providerID uuid.UUID) (*types.HistogramActivityProvider, error) {
	return clone(f.activityProvider[histKey{activityID, providerID}]), nil
}

// --- provider notifications ---

type fakeNotificationRepo struct {
	items []*types.ProviderNotification
}

func newFakeNotificationRepo() *fakeNotificationRepo { return &fakeNotificationRepo{} }

func (f *fakeNotificationRepo) Upsert(ctx context.Context, tx *gorm.DB, notification *types.ProviderNotification) (*types.ProviderNotification, error) {
	for _, row := range f.items {
		if row.ProviderID == notification.ProviderID && row.Key == notification.Key {
			row.Info = notification.Info
			row.When = notification.When
			row.UpdatedAt = timeNow()
			return clone(row), nil
		}
	}
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	notification.CreatedAt = timeNow()
	notification.UpdatedAt = notification.CreatedAt
	f.items = append(f.items, notification)
	return clone(notification), nil
}

func (f *fakeNotificationRepo) GetByProviderKey(ctx context.Context, tx *gorm.DB, providerID uuid.UUID, key string) (*types.ProviderNotification, error) {
	for _, row := range f.items {
		if row.ProviderID == providerID && row.Key == key {
			return clone(row), nil
		}
	}
	return nil, nil
}

func (f *fakeNotificationRepo) ListByProvider(ctx context.Context, tx *gorm.DB, providerID uuid.UUID) ([]*types.ProviderNotification, error) {
	var out []*types.ProviderNotification
	for _, row := range f.items {
		if row.ProviderID == providerID {
			out = append(out, clone(row))
		}
	}
	return out, nil
}

func (f *fakeNotificationRepo) ListDue(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*types.ProviderNotification, error) {
	var due []*types.ProviderNotification
	for _, row := range f.items {
		if !row.When.After(now) {
			due = append(due, clone(row))
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].When.Before(due[j].When) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (f *fakeNotificationRepo) Reschedule(ctx context.Context, tx *gorm.DB, id uuid.UUID, when time.Time) error {
	for _, row := range f.items {
		if row.ID == id {
			row.When = when
			row.UpdatedAt = timeNow()
		}
	}
	return nil
}

func (f *fakeNotificationRepo) Delete(ctx context.Context, tx *gorm.DB, providerID uuid.UUID, key string) error {
	var kept []*types.ProviderNotification
	for _, row := range f.items {
		if row.ProviderID == providerID && row.Key == key {
			continue
		}
		kept = append(kept, row)
	}
	f.items = kept
	return nil
}

// --- SEND ---

type fakeSENDRepo struct {
	categories  map[uuid.UUID]*types.SENDCategory
	assignments []*types.SENDLearner
}

func newFakeSENDRepo() *fakeSENDRepo {
	return &fakeSENDRepo{categories: map[uuid.UUID]*types.SENDCategory{}}
}

func (f *fakeSENDRepo) CreateCategories(ctx context.Context, tx *gorm.DB, categories []*types.SENDCategory) ([]*types.SENDCategory, error) {
	for _, row := range categories {
		f.categories[row.ID] = row
	}
	return categories, nil
}

func (f *fakeSENDRepo) GetCategoryByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.SENDCategory, error) {
	return clone(f.categories[id]), nil
}

func (f *fakeSENDRepo) AssignLearner(ctx context.Context, tx *gorm.DB, rows []*types.SENDLearner) ([]*types.SENDLearner, error) {
	f.assignments = append(f.assignments, rows...)
	return rows, nil
}

func (f *fakeSENDRepo) RemoveLearner(ctx context.Context, tx *gorm.DB, learnerID, categoryID uuid.UUID) error {
	var kept []*types.SENDLearner
	for _, row := range f.assignments {
		if row.LearnerID == learnerID && row.CategoryID == categoryID {
			continue
		}
		kept = append(kept, row)
	}
	f.assignments = kept
	return nil
}

func (f *fakeSENDRepo) ListActiveByLearner(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, now time.Time) ([]*types.SENDLearner, error) {
	var out []*types.SENDLearner
	for _, row := range f.assignments {
		if row.LearnerID != learnerID {
			continue
		}
		if row.ExpiresAt != nil && !row.ExpiresAt.After(now) {
			continue
		}
		out = append(out, clone(row))
	}
	return out, nil
}

func (f *fakeSENDRepo) GetCategoriesByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.SENDCategory, error) {
	var out []*types.SENDCategory
	for _, id := range ids {
		if row, ok := f.categories[id]; ok {
			out = append(out, clone(row))
		}
	}
	return out, nil
}

// --- dispatcher ---

type dispatchedTask struct {
	Name  string
	Queue string
	Args  interface{}
	RunAt time.Time
}

type fakeDispatcher struct {
	dispatched []dispatchedTask
}

func newFakeDispatcher() *fakeDispatcher { return &fakeDispatcher{} }

func (f *fakeDispatcher) record(name, queue string, args interface{}, runAt time.Time) error {
	if queue == "" {
		queue = tasks.DefaultQueue
	}
	f.dispatched = append(f.dispatched, dispatchedTask{Name: name, Queue: queue, Args: args, RunAt: runAt})
	return nil
}

func (f *fakeDispatcher) byName(name string) []dispatchedTask {
	var out []dispatchedTask
	for _, task := range f.dispatched {
		if task.Name == name {
			out = append(out, task)
		}
	}
	return out
}

func (f *fakeDispatcher) reset() {
	f.dispatched = nil
}

func (f *fakeDispatcher) DispatchVerifyRequest(ctx context.Context, tx *gorm.DB, args tasks.VerifyRequestArgs) error {
	return f.record(tasks.TaskVerifyRequest, tasks.DefaultQueue, args, time.Time{})
}

func (f *fakeDispatcher) DispatchProviderVerify(ctx context.Context, tx *gorm.DB, queue string, args tasks.ProviderVerifyArgs) error {
	return f.record(tasks.TaskProviderVerify, queue, args, time.Time{})
}

func (f *fakeDispatcher) DispatchVerificationSummary(ctx context.Context, tx *gorm.DB, args tasks.VerificationSummaryArgs) error {
	return f.record(tasks.TaskVerificationSummary, tasks.DefaultQueue, args, time.Time{})
}

func (f *fakeDispatcher) DispatchInstrumentReportUpdate(ctx context.Context, tx *gorm.DB, args tasks.InstrumentReportUpdateArgs) error {
	return f.record(tasks.TaskInstrumentReportUpdate, tasks.DefaultQueue, args, time.Time{})
}

func (f *fakeDispatcher) DispatchActivityReportUpdate(ctx context.Context, tx *gorm.DB, args tasks.ActivityReportUpdateArgs) error {
	return f.record(tasks.TaskActivityReportUpdate, tasks.DefaultQueue, args, time.Time{})
}

func (f *fakeDispatcher) DispatchSampleValidate(ctx context.Context, tx *gorm.DB, queue string, args tasks.SampleValidateArgs) error {
	return f.record(tasks.TaskSampleValidate, queue, args, time.Time{})
}

func (f *fakeDispatcher) DispatchValidationSummary(ctx context.Context, tx *gorm.DB, args tasks.ValidationSummaryArgs, schedule tasks.Schedule) error {
	return f.record(tasks.TaskValidationSummary, tasks.DefaultQueue, args, schedule.RunAt)
}

func (f *fakeDispatcher) DispatchEnrolmentUpdate(ctx context.Context, tx *gorm.DB, queue string, args tasks.EnrolmentUpdateArgs) error {
	return f.record(tasks.TaskEnrolmentUpdate, queue, args, time.Time{})
}

func (f *fakeDispatcher) DispatchProviderNotify(ctx context.Context, tx *gorm.DB, queue string, args tasks.ProviderNotifyArgs, runAt time.Time) error {
	return f.record(tasks.TaskProviderNotify, queue, args, runAt)
}

// --- blob store ---

type fakeBucket struct {
	objects map[string][]byte
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}}
}

func (f *fakeBucket) Save(ctx context.Context, path string, data []byte) (string, error) {
	buf := make([]byte, len(data))
	copy(buf, data)
	f.objects[path] = buf
	return path, nil
}

func (f *fakeBucket) Read(ctx context.Context, path string) ([]byte, error) {
	return f.objects[path], nil
}

func (f *fakeBucket) Delete(ctx context.Context, path string) error {
	delete(f.objects, path)
	return nil
}

func (f *fakeBucket) Exists(ctx context.Context, path string) (bool, error) {
	_, ok := f.objects[path]
	return ok, nil
}

// --- fixture ---

// fixture wires every service against the in-memory doubles.
type fixture struct {
	institutions  *fakeInstitutionRepo
	learners      *fakeLearnerRepo
	consents      *fakeConsentRepo
	instruments   *fakeInstrumentRepo
	providers     *fakeProviderRepo
	activities    *fakeActivityRepo
	enrolments    *fakeEnrolmentRepo
	samples       *fakeSampleRepo
	validations   *fakeValidationRepo
	requests      *fakeRequestRepo
	results       *fakeResultRepo
	provResults   *fakeProviderResultRepo
	reports       *fakeReportRepo
	histograms    *fakeHistogramRepo
	notifications *fakeNotificationRepo
	send          *fakeSENDRepo

	cache      *cache.MemoryCache
	dispatcher *fakeDispatcher
	bucket     *fakeBucket

	consent      ConsentService
	sendSvc      SENDService
	resolver     ActivityInstrumentService
	enrolment    EnrolmentService
	validation   ValidationService
	verification VerificationService
	summary      SummaryService
	report       ReportService
	facts        FactsService
	notification NotificationService
}

func newFixture() *fixture {
	f := &fixture{
		institutions:  newFakeInstitutionRepo(),
		learners:      newFakeLearnerRepo(),
		consents:      newFakeConsentRepo(),
		instruments:   newFakeInstrumentRepo(),
		providers:     newFakeProviderRepo(),
		activities:    newFakeActivityRepo(),
		enrolments:    newFakeEnrolmentRepo(),
		samples:       newFakeSampleRepo(),
		validations:   newFakeValidationRepo(),
		requests:      newFakeRequestRepo(),
		reports:       newFakeReportRepo(),
		histograms:    newFakeHistogramRepo(),
		notifications: newFakeNotificationRepo(),
		send:          newFakeSENDRepo(),
		cache:         cache.NewMemoryCache(),
		dispatcher:    newFakeDispatcher(),
		bucket:        newFakeBucket(),
	}
	f.results = newFakeResultRepo(f.requests)
	f.provResults = newFakeProviderResultRepo()

	log := testLogger()
	f.consent = NewConsentService(nil, log, f.consents, f.learners, f.institutions, f.cache)
	f.sendSvc = NewSENDService(nil, log, f.send, f.learners, f.cache)
	f.resolver = NewActivityInstrumentService(nil, log, f.activities, f.sendSvc)
	f.enrolment = NewEnrolmentService(
		nil, log,
		f.enrolments, f.samples, f.validations, f.providers, f.instruments,
		f.learners, f.activities, f.resolver, f.bucket, f.cache,
	)
	f.validation = NewValidationService(
		nil, log,
		f.samples, f.validations, f.providers, f.instruments, f.learners,
		f.consent, f.enrolment, f.bucket, f.dispatcher,
	)
	f.verification = NewVerificationService(
		nil, log,
		f.requests, f.results, f.provResults, f.providers, f.instruments,
		f.learners, f.activities, f.enrolments, f.histograms,
		f.consent, f.enrolment, f.bucket, f.dispatcher,
	)
	f.summary = NewSummaryService(nil, log, f.requests, f.results, f.provResults, f.providers, f.dispatcher)
	f.report = NewReportService(
		nil, log,
		f.reports, f.requests, f.results, f.provResults, f.providers,
		f.instruments, f.enrolments, f.dispatcher,
	)
	f.facts = NewFactsService(nil, log, f.reports, f.providers, f.histograms)
	f.notification = NewNotificationService(nil, log, f.notifications, f.providers, f.verification, f.validation, f.dispatcher)
	return f
}

// seedInstitution defaults to external consent handling so tests that are
// not about consent do not have to publish and accept a version first.
func (f *fixture) seedInstitution(externalIC bool) *types.Institution {
	institution := &types.Institution{
		ID:         uuid.New(),
		Acronym:    "inst-" + uuid.NewString()[:8],
		Name:       "Test Institution",
		ExternalIC: externalIC,
	}
	f.institutions.items[institution.ID] = institution
	return institution
}

func (f *fixture) seedLearner(institution *types.Institution) *types.Learner {
	learner := &types.Learner{
		ID:            uuid.New(),
		InstitutionID: institution.ID,
		LearnerID:     uuid.New(),
		Email:         "learner@example.org",
		JoinedAt:      timeNow(),
	}
	f.learners.items[learner.ID] = learner
	return learner
}

func (f *fixture) seedInstrument(requiresEnrolment bool) *types.Instrument {
	instrument := &types.Instrument{
		ID:                uuid.New(),
		Name:              "Test Instrument",
		Acronym:           "in-" + uuid.NewString()[:8],
		Enabled:           true,
		RequiresEnrolment: requiresEnrolment,
		Identity:          true,
	}
	f.instruments.items[instrument.ID] = instrument
	f.instruments.order = append(f.instruments.order, instrument.ID)
	return instrument
}

func (f *fixture) seedProvider(instrument *types.Instrument, mutate ...func(*types.Provider)) *types.Provider {
	provider := &types.Provider{
		ID:           uuid.New(),
		InstrumentID: instrument.ID,
		Name:         "Test Provider",
		Acronym:      "pr-" + uuid.NewString()[:8],
		Queue:        "queue-" + uuid.NewString()[:8],
		Enabled:      true,
		WarningBelow: 0.6,
		AlertBelow:   0.4,
	}
	for _, fn := range mutate {
		fn(provider)
	}
	f.providers.items = append(f.providers.items, provider)
	return provider
}

func (f *fixture) seedActivity() *types.Activity {
	activity := &types.Activity{
		ID:      uuid.New(),
		Name:    "Test Activity",
		Enabled: true,
	}
	f.activities.items[activity.ID] = activity
	return activity
}

func float64Ptr(v float64) *float64 { return &v }

func stringPtr(v string) *string { return &v }
