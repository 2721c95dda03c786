package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tesla-ce/trust-backend/internal/logger"
	pkgerrors "github.com/tesla-ce/trust-backend/internal/pkg/errors"
	"github.com/tesla-ce/trust-backend/internal/repos"
	"github.com/tesla-ce/trust-backend/internal/tasks"
	"github.com/tesla-ce/trust-backend/internal/types"
)

// SummaryService reduces provider results into per-instrument summaries and
// the request status. The reduction is an idempotent fold over persisted
// rows, never an incremental delta, because tasks arrive at least once and in
// any order.
type SummaryService interface {
	CreateVerificationSummary(ctx context.Context, requestID uuid.UUID) error
}

type summaryService struct {
	db          *gorm.DB
	log         *logger.Logger
	requests    repos.RequestRepo
	results     repos.RequestResultRepo
	provResults repos.ProviderResultRepo
	providers   repos.ProviderRepo
	dispatcher  tasks.Dispatcher
}

func NewSummaryService(
	db *gorm.DB,
	log *logger.Logger,
	requests repos.RequestRepo,
	results repos.RequestResultRepo,
	provResults repos.ProviderResultRepo,
	providers repos.ProviderRepo,
	dispatcher tasks.Dispatcher,
) SummaryService {
	return &summaryService{
		db:          db,
		log:         log.With("service", "SummaryService"),
		requests:    requests,
		results:     results,
		provResults: provResults,
		providers:   providers,
		dispatcher:  dispatcher,
	}
}

func resultStatusTerminal(status types.ResultStatus) bool {
	switch status {
	case types.ResultPending, types.ResultProcessing, types.ResultWaitingExternalService:
		return false
	default:
		return true
	}
}

func (s *summaryService) CreateVerificationSummary(ctx context.Context, requestID uuid.UUID) error {
	request, err := s.requests.GetByID(ctx, nil, requestID)
	if err != nil {
		return err
	}
	if request == nil {
		return fmt.Errorf("%w: request %s", pkgerrors.ErrNotFound, requestID)
	}
	results, err := s.results.ListByRequest(ctx, nil, requestID)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return nil
	}
	providerRows, err := s.provResults.ListByRequest(ctx, nil, requestID)
	if err != nil {
		return err
	}

	// Group provider answers by the instrument their provider serves.
	providerIDs := make([]uuid.UUID, 0, len(providerRows))
	for _, row := range providerRows {
		providerIDs = append(providerIDs, row.ProviderID)
	}
	providers, err := s.providers.GetByIDs(ctx, nil, providerIDs)
	if err != nil {
		return err
	}
	instrumentOf := map[uuid.UUID]uuid.UUID{}
	for _, provider := range providers {
		instrumentOf[provider.ID] = provider.InstrumentID
	}
	byInstrument := map[uuid.UUID][]*types.RequestProviderResult{}
	for _, row := range providerRows {
		instrumentID, ok := instrumentOf[row.ProviderID]
		if !ok {
			continue
		}
		byInstrument[instrumentID] = append(byInstrument[instrumentID], row)
	}

	return withTransaction(s.db, func(tx *gorm.DB) error {
		anyAnswer := false
		allTerminal := true
		maxInstrumentStatus := types.ResultPending

		for _, result := range results {
			rows := byInstrument[result.InstrumentID]
			status, value, code, settled := reduceInstrument(result, rows)
			if settled {
				updates := map[string]interface{}{
					"status": status,
					"code":   code,
				}
				if value != nil {
					updates["result"] = *value
				}
				if err := s.results.UpdateFields(ctx, tx, result.ID, updates); err != nil {
					return err
				}
				if err := s.dispatcher.DispatchInstrumentReportUpdate(ctx, tx, tasks.InstrumentReportUpdateArgs{
					ActivityID:   request.ActivityID,
					LearnerID:    request.LearnerID,
					InstrumentID: result.InstrumentID,
				}); err != nil {
					return err
				}
			} else {
				allTerminal = false
			}
			for _, row := range rows {
				if resultStatusTerminal(row.Status) {
					anyAnswer = true
				}
			}
			if settled && status > maxInstrumentStatus {
				maxInstrumentStatus = status
			}
		}

		newStatus := request.Status
		var errorMessage *string
		if !allTerminal {
			if anyAnswer {
				newStatus = types.RequestProcessing
			} else if request.Status == types.RequestStored {
				newStatus = types.RequestScheduled
			} else {
				newStatus = request.Status
			}
		} else {
			switch maxInstrumentStatus {
			case types.ResultProcessed:
				newStatus = types.RequestProcessed
			case types.ResultError:
				newStatus = types.RequestError
			case types.ResultTimeout:
				newStatus = types.RequestTimeout
			case types.ResultMissingProvider:
				newStatus = types.RequestMissingProvider
			case types.ResultMissingEnrolment:
				newStatus = types.RequestError
				msg := "missing enrolment"
				errorMessage = &msg
			default:
				newStatus = types.RequestError
			}
		}

		if newStatus == request.Status && errorMessage == nil {
			return nil
		}
		updates := map[string]interface{}{"status": newStatus}
		if errorMessage != nil {
			updates["error_message"] = *errorMessage
		}
		return s.requests.UpdateFields(ctx, tx, requestID, updates)
	})
}

// reduceInstrument folds the provider rows of one instrument. It reports
// settled=false while any provider is still working. A result row that was
// already terminal at fan-out (missing provider) settles on itself.
func reduceInstrument(result *types.RequestResult, rows []*types.RequestProviderResult) (types.ResultStatus, *float64, types.ResultCode, bool) {
	if len(rows) == 0 {
		if resultStatusTerminal(result.Status) {
			return result.Status, result.Result, result.Code, true
		}
		return result.Status, nil, result.Code, false
	}
	status := types.ResultPending
	code := types.CodePending
	var value *float64
	for _, row := range rows {
		if !resultStatusTerminal(row.Status) {
			return types.ResultPending, nil, types.CodePending, false
		}
		if row.Status > status {
			status = row.Status
		}
		if row.Status == types.ResultProcessed {
			if row.Result != nil && (value == nil || *row.Result > *value) {
				v := *row.Result
				value = &v
			}
			if row.Code > code {
				code = row.Code
			}
		}
	}
	return status, value, code, true
}
