package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tesla-ce/trust-backend/internal/logger"
	pkgerrors "github.com/tesla-ce/trust-backend/internal/pkg/errors"
	"github.com/tesla-ce/trust-backend/internal/repos"
	"github.com/tesla-ce/trust-backend/internal/tasks"
	"github.com/tesla-ce/trust-backend/internal/types"
)

// ValidationPayload is the provider write body for a sample validation. The
// deferred notification replay sends exactly this shape.
type ValidationPayload struct {
	Status       types.ValidationStatus `json:"status"`
	Contribution *float64               `json:"contribution"`
	ErrorMessage *string                `json:"error_message"`
	Info         json.RawMessage        `json:"validation_info"`
}

// ValidationService ingests enrolment samples, fans them out to validator
// providers, and folds the validations back into the sample status.
type ValidationService interface {
	StoreSample(ctx context.Context, learnerID uuid.UUID, instrumentIDs []uuid.UUID, data []byte) (*types.EnrolmentSample, error)
	PutValidation(ctx context.Context, sampleID, providerID uuid.UUID, payload ValidationPayload) error
	// CreateValidationSummary folds the per-provider validations into the
	// sample status. While validators are still pending it reschedules itself
	// with a growing delay; after validationSummaryMaxAttempts the stragglers
	// are marked timed out and the fold settles. Idempotent and order
	// independent.
	CreateValidationSummary(ctx context.Context, sampleID uuid.UUID, attempt int) error
}

// Straggler validators get validationSummaryMaxAttempts delayed re-runs
// before they count as timed out.
const validationSummaryMaxAttempts = 5

func validationSummaryBackoff(attempt int) time.Duration {
	return 15*time.Second + time.Duration(attempt)*90*time.Second
}

// Marker suffixes appended to the sample data path once the fold settles.
const (
	validationMarkerValid   = ".valid"
	validationMarkerError   = ".error"
	validationMarkerTimeout = ".timeout"
)

// validationSummaryDoc is the marker blob content: the settled outcome plus
// every validator's answer, keyed by provider id.
type validationSummaryDoc struct {
	Status      string                           `json:"status"`
	Validations map[string]validationSummaryItem `json:"validations"`
}

type validationSummaryItem struct {
	Status       types.ValidationStatus `json:"status"`
	Contribution *float64               `json:"contribution"`
	ErrorMessage *string                `json:"error_message"`
	Info         string                 `json:"info,omitempty"`
}

type validationService struct {
	db          *gorm.DB
	log         *logger.Logger
	samples     repos.EnrolmentSampleRepo
	validations repos.SampleValidationRepo
	providers   repos.ProviderRepo
	instruments repos.InstrumentRepo
	learners    repos.LearnerRepo
	consent     ConsentService
	enrolment   EnrolmentService
	bucket      BucketService
	dispatcher  tasks.Dispatcher
}

func NewValidationService(
	db *gorm.DB,
	log *logger.Logger,
	samples repos.EnrolmentSampleRepo,
	validations repos.SampleValidationRepo,
	providers repos.ProviderRepo,
	instruments repos.InstrumentRepo,
	learners repos.LearnerRepo,
	consent ConsentService,
	enrolment EnrolmentService,
	bucket BucketService,
	dispatcher tasks.Dispatcher,
) ValidationService {
	return &validationService{
		db:          db,
		log:         log.With("service", "ValidationService"),
		samples:     samples,
		validations: validations,
		providers:   providers,
		instruments: instruments,
		learners:    learners,
		consent:     consent,
		enrolment:   enrolment,
		bucket:      bucket,
		dispatcher:  dispatcher,
	}
}

func (s *validationService) StoreSample(ctx context.Context, learnerID uuid.UUID, instrumentIDs []uuid.UUID, data []byte) (*types.EnrolmentSample, error) {
	learner, err := s.learners.GetByID(ctx, nil, learnerID)
	if err != nil {
		return nil, err
	}
	if learner == nil {
		return nil, fmt.Errorf("%w: learner %s", pkgerrors.ErrNotFound, learnerID)
	}
	if err := s.consent.RequireValid(ctx, learner); err != nil {
		return nil, err
	}
	instruments, err := s.instruments.GetByIDs(ctx, nil, instrumentIDs)
	if err != nil {
		return nil, err
	}
	if len(instruments) != len(instrumentIDs) {
		return nil, &pkgerrors.InstrumentCountError{Requested: len(instrumentIDs), Found: len(instruments)}
	}

	sampleID := uuid.New()
	dataPath := SampleDataPath(learner.InstitutionID, learnerID, sampleID)
	if _, err := s.bucket.Save(ctx, dataPath, data); err != nil {
		return nil, err
	}

	sample := &types.EnrolmentSample{
		ID:        sampleID,
		LearnerID: learnerID,
		Status:    types.SampleStored,
		Data:      dataPath,
	}

	// Fan out to every active validator of every tagged instrument; a sample
	// nobody can validate is terminal immediately.
	var validators []*types.Provider
	for _, instrumentID := range instrumentIDs {
		providers, err := s.providers.ListValidatorsByInstrument(ctx, nil, instrumentID)
		if err != nil {
			return nil, err
		}
		validators = append(validators, providers...)
	}
	if len(validators) == 0 {
		sample.Status = types.SampleMissingValidator
	}

	err = withTransaction(s.db, func(tx *gorm.DB) error {
		if _, err := s.samples.Create(ctx, tx, []*types.EnrolmentSample{sample}); err != nil {
			return err
		}
		tagRows := make([]*types.EnrolmentSampleInstrument, 0, len(instrumentIDs))
		for _, instrumentID := range instrumentIDs {
			tagRows = append(tagRows, &types.EnrolmentSampleInstrument{
				SampleID:     sampleID,
				InstrumentID: instrumentID,
			})
		}
		if err := s.samples.AddInstruments(ctx, tx, tagRows); err != nil {
			return err
		}
		for _, provider := range validators {
			validation := &types.EnrolmentSampleValidation{
				ID:         uuid.New(),
				SampleID:   sampleID,
				ProviderID: provider.ID,
				Status:     types.ValidationValidating,
			}
			if _, err := s.validations.Create(ctx, tx, []*types.EnrolmentSampleValidation{validation}); err != nil {
				return err
			}
			if err := s.dispatcher.DispatchSampleValidate(ctx, tx, provider.Queue, tasks.SampleValidateArgs{
				SampleID:   sampleID,
				ProviderID: provider.ID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.enrolment.InvalidateLearner(ctx, learnerID)
	return sample, nil
}

func (s *validationService) PutValidation(ctx context.Context, sampleID, providerID uuid.UUID, payload ValidationPayload) error {
	validation, err := s.validations.GetBySampleProvider(ctx, nil, sampleID, providerID)
	if err != nil {
		return err
	}
	if validation == nil {
		return fmt.Errorf("%w: validation for sample %s provider %s", pkgerrors.ErrNotFound, sampleID, providerID)
	}
	sample, err := s.samples.GetByID(ctx, nil, sampleID)
	if err != nil {
		return err
	}
	if sample == nil {
		return fmt.Errorf("%w: sample %s", pkgerrors.ErrNotFound, sampleID)
	}

	updates := map[string]interface{}{
		"status": payload.Status,
	}
	if payload.Contribution != nil {
		updates["contribution"] = *payload.Contribution
	}
	if payload.ErrorMessage != nil {
		updates["error_message"] = *payload.ErrorMessage
	}
	if len(payload.Info) > 0 {
		learner, err := s.learners.GetByID(ctx, nil, sample.LearnerID)
		if err != nil {
			return err
		}
		institutionID := uuid.Nil
		if learner != nil {
			institutionID = learner.InstitutionID
		}
		infoPath := ValidationInfoPath(institutionID, sampleID, providerID)
		if _, err := s.bucket.Save(ctx, infoPath, payload.Info); err != nil {
			return err
		}
		updates["info"] = infoPath
	}

	err = withTransaction(s.db, func(tx *gorm.DB) error {
		if err := s.validations.UpdateFields(ctx, tx, validation.ID, updates); err != nil {
			return err
		}
		return s.dispatcher.DispatchValidationSummary(ctx, tx, tasks.ValidationSummaryArgs{SampleID: sampleID}, tasks.Schedule{})
	})
	if err != nil {
		return err
	}
	s.enrolment.InvalidateLearner(ctx, sample.LearnerID)
	return nil
}

func (s *validationService) CreateValidationSummary(ctx context.Context, sampleID uuid.UUID, attempt int) error {
	sample, err := s.samples.GetByID(ctx, nil, sampleID)
	if err != nil {
		return err
	}
	if sample == nil {
		return fmt.Errorf("%w: sample %s", pkgerrors.ErrNotFound, sampleID)
	}
	validations, err := s.validations.ListBySample(ctx, nil, sampleID)
	if err != nil {
		return err
	}
	if len(validations) == 0 {
		return nil
	}

	pending := false
	anyError := false
	anyTimeout := false
	for _, v := range validations {
		switch v.Status {
		case types.ValidationValidating, types.ValidationWaitingExternalService:
			pending = true
		case types.ValidationError:
			anyError = true
		case types.ValidationTimeout:
			anyTimeout = true
		}
	}

	if pending && attempt < validationSummaryMaxAttempts {
		// Not all answers are in yet; come back later with a growing delay.
		return withTransaction(s.db, func(tx *gorm.DB) error {
			return s.dispatcher.DispatchValidationSummary(ctx, tx, tasks.ValidationSummaryArgs{
				SampleID: sampleID,
				Attempt:  attempt + 1,
			}, tasks.Schedule{RunAt: timeNow().Add(validationSummaryBackoff(attempt))})
		})
	}

	// Attempts exhausted: validators that never answered count as timed out.
	var stragglers []uuid.UUID
	if pending {
		for _, v := range validations {
			if v.Status == types.ValidationValidating || v.Status == types.ValidationWaitingExternalService {
				v.Status = types.ValidationTimeout
				stragglers = append(stragglers, v.ID)
			}
		}
		anyTimeout = true
	}

	status := types.SampleValid
	marker := validationMarkerValid
	doc := validationSummaryDoc{Status: "VALID", Validations: map[string]validationSummaryItem{}}
	if anyError {
		status = types.SampleError
		marker = validationMarkerError
		doc.Status = "ERROR"
	} else if anyTimeout {
		status = types.SampleTimeout
		marker = validationMarkerTimeout
		doc.Status = "TIMEOUT"
	}
	for _, v := range validations {
		doc.Validations[v.ProviderID.String()] = validationSummaryItem{
			Status:       v.Status,
			Contribution: v.Contribution,
			ErrorMessage: v.ErrorMessage,
			Info:         v.Info,
		}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if _, err := s.bucket.Save(ctx, sample.Data+marker, raw); err != nil {
		return err
	}

	err = withTransaction(s.db, func(tx *gorm.DB) error {
		for _, id := range stragglers {
			if err := s.validations.UpdateFields(ctx, tx, id, map[string]interface{}{"status": types.ValidationTimeout}); err != nil {
				return err
			}
		}
		if err := s.samples.UpdateFields(ctx, tx, sampleID, map[string]interface{}{"status": status}); err != nil {
			return err
		}
		if status != types.SampleValid {
			return nil
		}
		// Valid sample: ask each provider that validated it to fold it into
		// its model.
		for _, v := range validations {
			if v.Status != types.ValidationValid {
				continue
			}
			provider, err := s.providers.GetByID(ctx, tx, v.ProviderID)
			if err != nil {
				return err
			}
			if provider == nil || !provider.Enabled {
				continue
			}
			if err := s.dispatcher.DispatchEnrolmentUpdate(ctx, tx, provider.Queue, tasks.EnrolmentUpdateArgs{
				LearnerID:  sample.LearnerID,
				ProviderID: provider.ID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.enrolment.InvalidateLearner(ctx, sample.LearnerID)
	return nil
}
