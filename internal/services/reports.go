package services

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tesla-ce/trust-backend/internal/logger"
	pkgerrors "github.com/tesla-ce/trust-backend/internal/pkg/errors"
	"github.com/tesla-ce/trust-backend/internal/repos"
	"github.com/tesla-ce/trust-backend/internal/tasks"
	"github.com/tesla-ce/trust-backend/internal/types"
)

// ReportService maintains the per-instrument report rows and folds them into
// the activity trust report.
type ReportService interface {
	UpdateInstrumentReport(ctx context.Context, activityID, learnerID, instrumentID uuid.UUID) error
	UpdateActivityReport(ctx context.Context, activityID, learnerID uuid.UUID) error
	GetReport(ctx context.Context, activityID, learnerID uuid.UUID) (*types.ReportActivity, []*types.ReportActivityInstrument, error)
}

type reportService struct {
	db          *gorm.DB
	log         *logger.Logger
	reports     repos.ReportRepo
	requests    repos.RequestRepo
	results     repos.RequestResultRepo
	provResults repos.ProviderResultRepo
	providers   repos.ProviderRepo
	instruments repos.InstrumentRepo
	enrolments  repos.EnrolmentRepo
	dispatcher  tasks.Dispatcher
}

func NewReportService(
	db *gorm.DB,
	log *logger.Logger,
	reports repos.ReportRepo,
	requests repos.RequestRepo,
	results repos.RequestResultRepo,
	provResults repos.ProviderResultRepo,
	providers repos.ProviderRepo,
	instruments repos.InstrumentRepo,
	enrolments repos.EnrolmentRepo,
	dispatcher tasks.Dispatcher,
) ReportService {
	return &reportService{
		db:          db,
		log:         log.With("service", "ReportService"),
		reports:     reports,
		requests:    requests,
		results:     results,
		provResults: provResults,
		providers:   providers,
		instruments: instruments,
		enrolments:  enrolments,
		dispatcher:  dispatcher,
	}
}

func (s *reportService) UpdateInstrumentReport(ctx context.Context, activityID, learnerID, instrumentID uuid.UUID) error {
	instrumentRows, err := s.instruments.GetByIDs(ctx, nil, []uuid.UUID{instrumentID})
	if err != nil {
		return err
	}
	if len(instrumentRows) == 0 {
		return fmt.Errorf("%w: instrument %s", pkgerrors.ErrNotFound, instrumentID)
	}
	instrument := instrumentRows[0]

	report, err := s.reports.GetByActivityLearner(ctx, nil, activityID, learnerID)
	if err != nil {
		return err
	}
	if report == nil {
		created, err := s.reports.Create(ctx, nil, []*types.ReportActivity{{
			ID:         uuid.New(),
			ActivityID: activityID,
			LearnerID:  learnerID,
		}})
		if err != nil {
			return err
		}
		report = created[0]
	}

	results, err := s.results.ListByActivityLearnerInstrument(ctx, nil, activityID, learnerID, instrumentID)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return nil
	}

	total := 0
	success := 0
	sum := 0.0
	maxCode := types.CodePending
	for _, result := range results {
		total++
		if result.Status != types.ResultProcessed || result.Result == nil {
			continue
		}
		success++
		sum += *result.Result
		if result.Code > maxCode {
			maxCode = result.Code
		}
	}

	resultPct := 0
	if success > 0 {
		resultPct = int(math.Round(sum / float64(success) * 100))
	}
	confidence := 0
	if total > 0 {
		confidence = int(math.Round(float64(success) / float64(total) * 100))
	}

	// A nonzero code shifts by one onto the report scale; no data keeps the
	// row at NoInformation.
	level := types.LevelNoInformation
	if maxCode > types.CodePending {
		level = types.ReportLevel(int(maxCode) + 1)
	}

	enrolmentPct, err := s.contributingEnrolment(ctx, instrument, activityID, learnerID)
	if err != nil {
		return err
	}

	identity := types.LevelNoInformation
	content := types.LevelNoInformation
	integrity := types.LevelNoInformation
	if instrument.Identity {
		identity = level
	}
	if instrument.Originality || instrument.Authorship {
		content = level
	}
	if instrument.Integrity {
		integrity = level
	}

	err = withTransaction(s.db, func(tx *gorm.DB) error {
		row, err := s.reports.GetInstrumentRow(ctx, tx, report.ID, instrumentID)
		if err != nil {
			return err
		}
		if row == nil {
			_, err := s.reports.CreateInstrumentRows(ctx, tx, []*types.ReportActivityInstrument{{
				ID:             uuid.New(),
				ReportID:       report.ID,
				InstrumentID:   instrumentID,
				Enrolment:      enrolmentPct,
				Confidence:     confidence,
				Result:         resultPct,
				IdentityLevel:  identity,
				ContentLevel:   content,
				IntegrityLevel: integrity,
			}})
			return err
		}
		return s.reports.UpdateInstrumentRowFields(ctx, tx, row.ID, map[string]interface{}{
			"enrolment":       enrolmentPct,
			"confidence":      confidence,
			"result":          resultPct,
			"identity_level":  identity,
			"content_level":   content,
			"integrity_level": integrity,
		})
	})
	if err != nil {
		return err
	}
	return s.dispatcher.DispatchActivityReportUpdate(ctx, nil, tasks.ActivityReportUpdateArgs{
		ActivityID: activityID,
		LearnerID:  learnerID,
	})
}

// contributingEnrolment is the minimum committed enrolment percentage over
// the providers that actually answered for this instrument, scaled 0-100.
// Instruments without enrolment report 0.
func (s *reportService) contributingEnrolment(ctx context.Context, instrument *types.Instrument, activityID, learnerID uuid.UUID) (int, error) {
	if !instrument.RequiresEnrolment {
		return 0, nil
	}
	requests, err := s.requests.ListByActivityLearner(ctx, nil, activityID, learnerID)
	if err != nil {
		return 0, err
	}
	providersOf, err := s.providers.ListEnabledByInstrument(ctx, nil, instrument.ID)
	if err != nil {
		return 0, err
	}
	providerIDs := make([]uuid.UUID, 0, len(providersOf))
	for _, p := range providersOf {
		providerIDs = append(providerIDs, p.ID)
	}
	contributing := map[uuid.UUID]bool{}
	for _, request := range requests {
		rows, err := s.provResults.ListByRequestProviders(ctx, nil, request.ID, providerIDs)
		if err != nil {
			return 0, err
		}
		for _, row := range rows {
			if row.Status == types.ResultProcessed {
				contributing[row.ProviderID] = true
			}
		}
	}
	if len(contributing) == 0 {
		return 0, nil
	}
	ids := make([]uuid.UUID, 0, len(contributing))
	for id := range contributing {
		ids = append(ids, id)
	}
	enrolments, err := s.enrolments.ListByLearnerProviders(ctx, nil, learnerID, ids)
	if err != nil {
		return 0, err
	}
	if len(enrolments) == 0 {
		return 0, nil
	}
	minPct := enrolments[0].Percentage
	for _, e := range enrolments[1:] {
		if e.Percentage < minPct {
			minPct = e.Percentage
		}
	}
	return int(math.Round(minPct * 100)), nil
}

func (s *reportService) UpdateActivityReport(ctx context.Context, activityID, learnerID uuid.UUID) error {
	report, err := s.reports.GetByActivityLearner(ctx, nil, activityID, learnerID)
	if err != nil {
		return err
	}
	if report == nil {
		return fmt.Errorf("%w: report for activity %s learner %s", pkgerrors.ErrNotFound, activityID, learnerID)
	}
	rows, err := s.reports.ListInstrumentRows(ctx, nil, report.ID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	// Skip stale recomputes: another worker already folded newer rows.
	newest := rows[0].UpdatedAt
	for _, row := range rows[1:] {
		if row.UpdatedAt.After(newest) {
			newest = row.UpdatedAt
		}
	}
	if report.UpdatedAt.After(newest) {
		return nil
	}

	identity := types.LevelPending
	content := types.LevelPending
	integrity := types.LevelPending
	for _, row := range rows {
		if row.IdentityLevel > identity {
			identity = row.IdentityLevel
		}
		if row.ContentLevel > content {
			content = row.ContentLevel
		}
		if row.IntegrityLevel > integrity {
			integrity = row.IntegrityLevel
		}
	}

	return s.reports.UpdateFields(ctx, nil, report.ID, map[string]interface{}{
		"identity_level":  identity,
		"content_level":   content,
		"integrity_level": integrity,
	})
}

func (s *reportService) GetReport(ctx context.Context, activityID, learnerID uuid.UUID) (*types.ReportActivity, []*types.ReportActivityInstrument, error) {
	report, err := s.reports.GetByActivityLearner(ctx, nil, activityID, learnerID)
	if err != nil {
		return nil, nil, err
	}
	if report == nil {
		return nil, nil, fmt.Errorf("%w: report for activity %s learner %s", pkgerrors.ErrNotFound, activityID, learnerID)
	}
	rows, err := s.reports.ListInstrumentRows(ctx, nil, report.ID)
	if err != nil {
		return nil, nil, err
	}
	return report, rows, nil
}
