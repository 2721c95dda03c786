package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tesla-ce/trust-backend/internal/logger"
	pkgerrors "github.com/tesla-ce/trust-backend/internal/pkg/errors"
	"github.com/tesla-ce/trust-backend/internal/repos"
	"github.com/tesla-ce/trust-backend/internal/tasks"
	"github.com/tesla-ce/trust-backend/internal/types"
)

// ResultPayload is the provider write body for a verification result. The
// deferred notification replay sends exactly this shape.
type ResultPayload struct {
	Status       types.ResultStatus `json:"status"`
	Result       *float64           `json:"result"`
	Code         *types.ResultCode  `json:"code"`
	ErrorMessage *string            `json:"error_message"`
	Audit        json.RawMessage    `json:"audit"`
}

// VerificationService runs the request state machine: ingest, provider
// fan-out, and provider result intake with histogram updates.
type VerificationService interface {
	CreateRequest(ctx context.Context, learnerID, activityID uuid.UUID, sessionID *uuid.UUID, instrumentIDs []uuid.UUID, data []byte) (*types.Request, error)
	// VerifyRequest fans the stored request out to every enabled provider of
	// its instruments, applying the enrolment gate per provider.
	VerifyRequest(ctx context.Context, requestID uuid.UUID) error
	PutProviderResult(ctx context.Context, requestID, providerID uuid.UUID, payload ResultPayload) error

	OpenSession(ctx context.Context, activityID, learnerID uuid.UUID) (*types.AssessmentSession, error)
	CloseSession(ctx context.Context, sessionID uuid.UUID) error
}

type verificationService struct {
	db          *gorm.DB
	log         *logger.Logger
	requests    repos.RequestRepo
	results     repos.RequestResultRepo
	provResults repos.ProviderResultRepo
	providers   repos.ProviderRepo
	instruments repos.InstrumentRepo
	learners    repos.LearnerRepo
	activities  repos.ActivityRepo
	enrolments  repos.EnrolmentRepo
	histograms  repos.HistogramRepo
	consent     ConsentService
	enrolment   EnrolmentService
	bucket      BucketService
	dispatcher  tasks.Dispatcher
}

func NewVerificationService(
	db *gorm.DB,
	log *logger.Logger,
	requests repos.RequestRepo,
	results repos.RequestResultRepo,
	provResults repos.ProviderResultRepo,
	providers repos.ProviderRepo,
	instruments repos.InstrumentRepo,
	learners repos.LearnerRepo,
	activities repos.ActivityRepo,
	enrolments repos.EnrolmentRepo,
	histograms repos.HistogramRepo,
	consent ConsentService,
	enrolment EnrolmentService,
	bucket BucketService,
	dispatcher tasks.Dispatcher,
) VerificationService {
	return &verificationService{
		db:          db,
		log:         log.With("service", "VerificationService"),
		requests:    requests,
		results:     results,
		provResults: provResults,
		providers:   providers,
		instruments: instruments,
		learners:    learners,
		activities:  activities,
		enrolments:  enrolments,
		histograms:  histograms,
		consent:     consent,
		enrolment:   enrolment,
		bucket:      bucket,
		dispatcher:  dispatcher,
	}
}

func (s *verificationService) CreateRequest(ctx context.Context, learnerID, activityID uuid.UUID, sessionID *uuid.UUID, instrumentIDs []uuid.UUID, data []byte) (*types.Request, error) {
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
	activity, err := s.activities.GetByID(ctx, nil, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, fmt.Errorf("%w: activity %s", pkgerrors.ErrNotFound, activityID)
	}
	instruments, err := s.instruments.GetByIDs(ctx, nil, instrumentIDs)
	if err != nil {
		return nil, err
	}
	if len(instruments) != len(instrumentIDs) {
		return nil, &pkgerrors.InstrumentCountError{Requested: len(instrumentIDs), Found: len(instruments)}
	}

	requestID := uuid.New()
	dataPath := RequestDataPath(learner.InstitutionID, learnerID, requestID)
	if _, err := s.bucket.Save(ctx, dataPath, data); err != nil {
		return nil, err
	}

	request := &types.Request{
		ID:         requestID,
		LearnerID:  learnerID,
		ActivityID: activityID,
		SessionID:  sessionID,
		Status:     types.RequestStored,
		Data:       dataPath,
	}
	err = withTransaction(s.db, func(tx *gorm.DB) error {
		if _, err := s.requests.Create(ctx, tx, []*types.Request{request}); err != nil {
			return err
		}
		rows := make([]*types.RequestInstrument, 0, len(instrumentIDs))
		for _, instrumentID := range instrumentIDs {
			rows = append(rows, &types.RequestInstrument{
				RequestID:    requestID,
				InstrumentID: instrumentID,
			})
		}
		if err := s.requests.AddInstruments(ctx, tx, rows); err != nil {
			return err
		}
		return s.dispatcher.DispatchVerifyRequest(ctx, tx, tasks.VerifyRequestArgs{RequestID: requestID})
	})
	if err != nil {
		// Keep the blob store consistent with the failed write.
		if delErr := s.bucket.Delete(ctx, dataPath); delErr != nil {
			s.log.Warn("Failed to delete orphan request blob", "path", dataPath, "error", delErr)
		}
		return nil, err
	}
	return request, nil
}

func (s *verificationService) VerifyRequest(ctx context.Context, requestID uuid.UUID) error {
	request, err := s.requests.GetByID(ctx, nil, requestID)
	if err != nil {
		return err
	}
	if request == nil {
		return fmt.Errorf("%w: request %s", pkgerrors.ErrNotFound, requestID)
	}
	if request.Status != types.RequestStored {
		// Fan-out already ran; at-least-once delivery makes this normal.
		return nil
	}
	instrumentIDs, err := s.requests.ListInstrumentIDs(ctx, nil, requestID)
	if err != nil {
		return err
	}
	instruments, err := s.instruments.GetByIDs(ctx, nil, instrumentIDs)
	if err != nil {
		return err
	}

	dispatched := 0
	anyMissingProvider := false
	anyMissingEnrolment := false

	err = withTransaction(s.db, func(tx *gorm.DB) error {
		for _, instrument := range instruments {
			result := &types.RequestResult{
				ID:           uuid.New(),
				RequestID:    requestID,
				InstrumentID: instrument.ID,
				Status:       types.ResultPending,
			}
			providers, err := s.providers.ListEnabledByInstrument(ctx, tx, instrument.ID)
			if err != nil {
				return err
			}
			if len(providers) == 0 {
				result.Status = types.ResultMissingProvider
				anyMissingProvider = true
				if _, err := s.results.Create(ctx, tx, []*types.RequestResult{result}); err != nil {
					return err
				}
				continue
			}
			if _, err := s.results.Create(ctx, tx, []*types.RequestResult{result}); err != nil {
				return err
			}
			for _, provider := range providers {
				providerResult := &types.RequestProviderResult{
					ID:         uuid.New(),
					RequestID:  requestID,
					ProviderID: provider.ID,
					Status:     types.ResultPending,
				}
				if instrument.RequiresEnrolment {
					enrolment, err := s.enrolments.GetByLearnerProvider(ctx, tx, request.LearnerID, provider.ID)
					if err != nil {
						return err
					}
					if enrolment == nil || !enrolment.CanAnalyse {
						providerResult.Status = types.ResultMissingEnrolment
						anyMissingEnrolment = true
						if _, err := s.provResults.Create(ctx, tx, []*types.RequestProviderResult{providerResult}); err != nil {
							return err
						}
						continue
					}
				}
				if _, err := s.provResults.Create(ctx, tx, []*types.RequestProviderResult{providerResult}); err != nil {
					return err
				}
				if err := s.dispatcher.DispatchProviderVerify(ctx, tx, provider.Queue, tasks.ProviderVerifyArgs{
					RequestID:  requestID,
					ProviderID: provider.ID,
				}); err != nil {
					return err
				}
				dispatched++
			}
		}

		if dispatched > 0 {
			return s.requests.UpdateFields(ctx, tx, requestID, map[string]interface{}{
				"status": types.RequestScheduled,
			})
		}
		// Nothing could be dispatched: surface the most actionable failure.
		updates := map[string]interface{}{"status": types.RequestError}
		switch {
		case anyMissingProvider:
			updates["status"] = types.RequestMissingProvider
		case anyMissingEnrolment:
			updates["error_message"] = "missing enrolment for all providers"
		}
		if err := s.requests.UpdateFields(ctx, tx, requestID, updates); err != nil {
			return err
		}
		return s.dispatcher.DispatchVerificationSummary(ctx, tx, tasks.VerificationSummaryArgs{RequestID: requestID})
	})
	return err
}

func (s *verificationService) PutProviderResult(ctx context.Context, requestID, providerID uuid.UUID, payload ResultPayload) error {
	providerResult, err := s.provResults.GetByRequestProvider(ctx, nil, requestID, providerID)
	if err != nil {
		return err
	}
	if providerResult == nil {
		return fmt.Errorf("%w: provider result for request %s provider %s", pkgerrors.ErrNotFound, requestID, providerID)
	}
	provider, err := s.providers.GetByID(ctx, nil, providerID)
	if err != nil {
		return err
	}
	if provider == nil {
		return fmt.Errorf("%w: provider %s", pkgerrors.ErrNotFound, providerID)
	}
	request, err := s.requests.GetByID(ctx, nil, requestID)
	if err != nil {
		return err
	}
	if request == nil {
		return fmt.Errorf("%w: request %s", pkgerrors.ErrNotFound, requestID)
	}

	if payload.Status == types.ResultProcessed && payload.Result == nil {
		return fmt.Errorf("%w: processed result requires a result value", pkgerrors.ErrInvalidArgument)
	}

	updates := map[string]interface{}{
		"status": payload.Status,
	}
	if payload.Result != nil {
		updates["result"] = *payload.Result
		code := payload.Code
		if code == nil {
			computed := codeForResult(provider, *payload.Result)
			code = &computed
		}
		updates["code"] = *code
	}
	if payload.ErrorMessage != nil {
		updates["error_message"] = *payload.ErrorMessage
	}
	if len(payload.Audit) > 0 {
		learner, err := s.learners.GetByID(ctx, nil, request.LearnerID)
		if err != nil {
			return err
		}
		institutionID := uuid.Nil
		if learner != nil {
			institutionID = learner.InstitutionID
		}
		auditPath := ResultAuditPath(institutionID, requestID, providerID)
		if _, err := s.bucket.Save(ctx, auditPath, payload.Audit); err != nil {
			return err
		}
		updates["audit"] = auditPath
	}

	return withTransaction(s.db, func(tx *gorm.DB) error {
		if err := s.provResults.UpdateFields(ctx, tx, providerResult.ID, updates); err != nil {
			return err
		}
		// A processed result feeds the population statistics in the same
		// transaction as the row save.
		if payload.Status == types.ResultProcessed && providerResult.Status != types.ResultProcessed {
			bucket := types.ResultBucket(*payload.Result)
			if err := s.histograms.IncrementLearnerInstrument(ctx, tx, request.LearnerID, provider.InstrumentID, bucket); err != nil {
				return err
			}
			if err := s.histograms.IncrementLearnerProvider(ctx, tx, request.LearnerID, providerID, bucket); err != nil {
				return err
			}
			if err := s.histograms.IncrementActivityInstrument(ctx, tx, request.ActivityID, provider.InstrumentID, bucket); err != nil {
				return err
			}
			if err := s.histograms.IncrementActivityProvider(ctx, tx, request.ActivityID, providerID, bucket); err != nil {
				return err
			}
		}
		return s.dispatcher.DispatchVerificationSummary(ctx, tx, tasks.VerificationSummaryArgs{RequestID: requestID})
	})
}

func (s *verificationService) OpenSession(ctx context.Context, activityID, learnerID uuid.UUID) (*types.AssessmentSession, error) {
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
	if err := s.enrolment.RequireEnrolment(ctx, learnerID, activityID); err != nil {
		return nil, err
	}
	session := &types.AssessmentSession{
		ID:         uuid.New(),
		ActivityID: activityID,
		LearnerID:  learnerID,
	}
	created, err := s.requests.CreateSessions(ctx, nil, []*types.AssessmentSession{session})
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

func (s *verificationService) CloseSession(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.requests.GetSessionByID(ctx, nil, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("%w: session %s", pkgerrors.ErrNotFound, sessionID)
	}
	if session.ClosedAt != nil {
		return nil
	}
	return s.requests.CloseSession(ctx, nil, sessionID, timeNow())
}

// codeForResult maps a normalized result onto Ok/Warning/Alert using the
// provider thresholds. Thresholds are expressed on the normal-polarity scale,
// so both sides are multiplied by the polarity sign before comparing.
func codeForResult(provider *types.Provider, result float64) types.ResultCode {
	sign := float64(provider.Polarity())
	value := sign * result
	warn := sign * provider.WarningBelow
	alert := sign * provider.AlertBelow
	switch {
	case value < alert:
		return types.CodeAlert
	case value < warn:
		return types.CodeWarning
	default:
		return types.CodeOk
	}
}
