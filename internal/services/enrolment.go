package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tesla-ce/trust-backend/internal/cache"
	"github.com/tesla-ce/trust-backend/internal/logger"
	pkgerrors "github.com/tesla-ce/trust-backend/internal/pkg/errors"
	"github.com/tesla-ce/trust-backend/internal/repos"
	"github.com/tesla-ce/trust-backend/internal/types"
)

const (
	enrolmentStatusTTL  = 24 * time.Hour
	missingEnrolmentTTL = 30 * time.Second
	modelLockStale      = 5 * time.Minute
)

// PendingContribution is a validated sample not yet folded into a model.
type PendingContribution struct {
	SampleID     uuid.UUID `json:"sample_id"`
	ProviderID   uuid.UUID `json:"provider_id"`
	Contribution float64   `json:"contribution"`
}

// InstrumentEnrolment aggregates a learner's enrolment state for one
// instrument across its providers. Min/max pairs exist because providers may
// disagree.
type InstrumentEnrolment struct {
	InstrumentID         uuid.UUID             `json:"instrument_id"`
	PercentageMin        float64               `json:"percentage_min"`
	PercentageMax        float64               `json:"percentage_max"`
	CanAnalyseMin        bool                  `json:"can_analyse_min"`
	CanAnalyseMax        bool                  `json:"can_analyse_max"`
	Pending              []PendingContribution `json:"pending"`
	NotValidated         []uuid.UUID           `json:"not_validated"`
	PendingContributions float64               `json:"pending_contributions"`
	NotValidatedCount    int                   `json:"not_validated_count"`
}

// MissingEnrolmentResult is the gate decision for one (learner, activity).
type MissingEnrolmentResult struct {
	MissingEnrolments bool                                `json:"missing_enrolments"`
	Instruments       map[uuid.UUID]*InstrumentEnrolment `json:"instruments"`
}

// ModelLock is the token a writer holds while rewriting a committed model.
type ModelLock struct {
	Token     uuid.UUID
	Enrolment *types.Enrolment
	Pending   []PendingContribution
}

type EnrolmentService interface {
	// Status aggregates enrolment per instrument for the learner. Cached
	// until explicitly invalidated.
	Status(ctx context.Context, learnerID uuid.UUID) (map[uuid.UUID]*InstrumentEnrolment, error)
	// MissingEnrolment decides whether any required instrument of the
	// activity lacks a usable model for the learner.
	MissingEnrolment(ctx context.Context, learnerID, activityID uuid.UUID) (*MissingEnrolmentResult, error)
	// RequireEnrolment returns a MissingEnrolmentError when the gate is closed.
	RequireEnrolment(ctx context.Context, learnerID, activityID uuid.UUID) error
	InvalidateLearner(ctx context.Context, learnerID uuid.UUID)

	// LockModel claims the exclusive model write token and returns the
	// validated-but-uncommitted contributions available to consume.
	LockModel(ctx context.Context, learnerID, providerID uuid.UUID) (*ModelLock, error)
	// CommitModel folds the pending contributions into the model under the
	// held token, persists the model blob, and releases the lock.
	CommitModel(ctx context.Context, learnerID, providerID, token uuid.UUID, modelData []byte) error
	ReleaseModel(ctx context.Context, learnerID, providerID, token uuid.UUID) error

	// AvailableSamples lists validated contributions not yet consumed by
	// the provider's model. UsedSamples lists the consumed ones.
	AvailableSamples(ctx context.Context, learnerID, providerID uuid.UUID) ([]PendingContribution, error)
	UsedSamples(ctx context.Context, learnerID, providerID uuid.UUID) ([]uuid.UUID, error)
}

type enrolmentService struct {
	db          *gorm.DB
	log         *logger.Logger
	enrolments  repos.EnrolmentRepo
	samples     repos.EnrolmentSampleRepo
	validations repos.SampleValidationRepo
	providers   repos.ProviderRepo
	instruments repos.InstrumentRepo
	learners    repos.LearnerRepo
	activities  repos.ActivityRepo
	resolver    ActivityInstrumentService
	bucket      BucketService
	cache       cache.Cache
}

func NewEnrolmentService(
	db *gorm.DB,
	log *logger.Logger,
	enrolments repos.EnrolmentRepo,
	samples repos.EnrolmentSampleRepo,
	validations repos.SampleValidationRepo,
	providers repos.ProviderRepo,
	instruments repos.InstrumentRepo,
	learners repos.LearnerRepo,
	activities repos.ActivityRepo,
	resolver ActivityInstrumentService,
	bucket BucketService,
	c cache.Cache,
) EnrolmentService {
	return &enrolmentService{
		db:          db,
		log:         log.With("service", "EnrolmentService"),
		enrolments:  enrolments,
		samples:     samples,
		validations: validations,
		providers:   providers,
		instruments: instruments,
		learners:    learners,
		activities:  activities,
		resolver:    resolver,
		bucket:      bucket,
		cache:       c,
	}
}

func enrolmentStatusKey(learnerID uuid.UUID) string {
	return "enrolment:status:" + learnerID.String()
}

func gateEpochKey(learnerID uuid.UUID) string {
	return "gate:epoch:" + learnerID.String()
}

// The gate cache key embeds a per-learner epoch so one invalidation covers
// every activity without wildcard deletes.
func gateKey(learnerID, activityID uuid.UUID, epoch int64) string {
	return fmt.Sprintf("gate:%s:%d:%s", learnerID, epoch, activityID)
}

func gateEpoch(ctx context.Context, c cache.Cache, learnerID uuid.UUID) int64 {
	raw, ok, err := c.Get(ctx, gateEpochKey(learnerID))
	if err != nil || !ok {
		return 0
	}
	epoch, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0
	}
	return epoch
}

func invalidateLearnerGates(ctx context.Context, c cache.Cache, log *logger.Logger, learnerID uuid.UUID) {
	epoch := gateEpoch(ctx, c, learnerID)
	if err := c.Set(ctx, gateEpochKey(learnerID), []byte(strconv.FormatInt(epoch+1, 10)), 0); err != nil {
		log.Warn("Failed to bump gate epoch", "learner_id", learnerID, "error", err)
	}
}

func (s *enrolmentService) Status(ctx context.Context, learnerID uuid.UUID) (map[uuid.UUID]*InstrumentEnrolment, error) {
	key := enrolmentStatusKey(learnerID)
	if raw, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var cached map[uuid.UUID]*InstrumentEnrolment
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
	}

	status, err := s.computeStatus(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(status); err == nil {
		if err := s.cache.Set(ctx, key, raw, enrolmentStatusTTL); err != nil {
			s.log.Warn("Failed to cache enrolment status", "learner_id", learnerID, "error", err)
		}
	}
	return status, nil
}

func (s *enrolmentService) computeStatus(ctx context.Context, learnerID uuid.UUID) (map[uuid.UUID]*InstrumentEnrolment, error) {
	providers, err := s.providers.ListEnabled(ctx, nil)
	if err != nil {
		return nil, err
	}
	providerByID := map[uuid.UUID]*types.Provider{}
	for _, p := range providers {
		providerByID[p.ID] = p
	}

	status := map[uuid.UUID]*InstrumentEnrolment{}
	row := func(instrumentID uuid.UUID) *InstrumentEnrolment {
		if r, ok := status[instrumentID]; ok {
			return r
		}
		r := &InstrumentEnrolment{
			InstrumentID: instrumentID,
			Pending:      []PendingContribution{},
			NotValidated: []uuid.UUID{},
		}
		status[instrumentID] = r
		return r
	}

	enrolments, err := s.enrolments.ListByLearner(ctx, nil, learnerID)
	if err != nil {
		return nil, err
	}
	seeded := map[uuid.UUID]bool{}
	for _, e := range enrolments {
		provider, ok := providerByID[e.ProviderID]
		if !ok {
			continue
		}
		r := row(provider.InstrumentID)
		if !seeded[provider.InstrumentID] {
			seeded[provider.InstrumentID] = true
			r.PercentageMin = e.Percentage
			r.PercentageMax = e.Percentage
			r.CanAnalyseMin = e.CanAnalyse
			r.CanAnalyseMax = e.CanAnalyse
			continue
		}
		if e.Percentage < r.PercentageMin {
			r.PercentageMin = e.Percentage
		}
		if e.Percentage > r.PercentageMax {
			r.PercentageMax = e.Percentage
		}
		r.CanAnalyseMin = r.CanAnalyseMin && e.CanAnalyse
		r.CanAnalyseMax = r.CanAnalyseMax || e.CanAnalyse
	}

	samples, err := s.samples.ListByLearner(ctx, nil, learnerID)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return status, nil
	}
	sampleIDs := make([]uuid.UUID, 0, len(samples))
	for _, sample := range samples {
		sampleIDs = append(sampleIDs, sample.ID)
	}
	validations, err := s.validations.ListBySamples(ctx, nil, sampleIDs)
	if err != nil {
		return nil, err
	}
	usedIDs, err := s.enrolments.ListUsedSampleIDs(ctx, nil, sampleIDs)
	if err != nil {
		return nil, err
	}
	used := map[uuid.UUID]bool{}
	for _, id := range usedIDs {
		used[id] = true
	}

	for _, v := range validations {
		provider, ok := providerByID[v.ProviderID]
		if !ok {
			continue
		}
		r := row(provider.InstrumentID)
		switch v.Status {
		case types.ValidationValid:
			if used[v.SampleID] {
				continue
			}
			contribution := 0.0
			if v.Contribution != nil {
				contribution = *v.Contribution
			}
			r.Pending = append(r.Pending, PendingContribution{
				SampleID:     v.SampleID,
				ProviderID:   v.ProviderID,
				Contribution: contribution,
			})
			r.PendingContributions += contribution
		case types.ValidationValidating, types.ValidationWaitingExternalService:
			r.NotValidated = append(r.NotValidated, v.ProviderID)
			r.NotValidatedCount++
		}
	}
	return status, nil
}

func (s *enrolmentService) MissingEnrolment(ctx context.Context, learnerID, activityID uuid.UUID) (*MissingEnrolmentResult, error) {
	activity, err := s.activities.GetByID(ctx, nil, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, fmt.Errorf("%w: activity %s", pkgerrors.ErrNotFound, activityID)
	}
	if !activity.Enabled {
		return &MissingEnrolmentResult{
			MissingEnrolments: false,
			Instruments:       map[uuid.UUID]*InstrumentEnrolment{},
		}, nil
	}

	epoch := gateEpoch(ctx, s.cache, learnerID)
	key := gateKey(learnerID, activityID, epoch)
	if raw, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var cached MissingEnrolmentResult
		if err := json.Unmarshal(raw, &cached); err == nil {
			return &cached, nil
		}
	}

	result, err := s.computeMissingEnrolment(ctx, learnerID, activityID)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(result); err == nil {
		if err := s.cache.Set(ctx, key, raw, missingEnrolmentTTL); err != nil {
			s.log.Warn("Failed to cache enrolment gate", "learner_id", learnerID, "error", err)
		}
	}
	return result, nil
}

func (s *enrolmentService) computeMissingEnrolment(ctx context.Context, learnerID, activityID uuid.UUID) (*MissingEnrolmentResult, error) {
	resolved, err := s.resolver.ResolveForLearner(ctx, activityID, learnerID)
	if err != nil {
		return nil, err
	}
	result := &MissingEnrolmentResult{
		Instruments: map[uuid.UUID]*InstrumentEnrolment{},
	}
	if len(resolved) == 0 {
		return result, nil
	}
	instrumentIDs := make([]uuid.UUID, 0, len(resolved))
	for _, config := range resolved {
		instrumentIDs = append(instrumentIDs, config.InstrumentID)
	}
	instruments, err := s.instruments.GetByIDs(ctx, nil, instrumentIDs)
	if err != nil {
		return nil, err
	}
	status, err := s.Status(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	for _, instrument := range instruments {
		if !instrument.RequiresEnrolment {
			continue
		}
		r, ok := status[instrument.ID]
		if !ok {
			r = &InstrumentEnrolment{
				InstrumentID: instrument.ID,
				Pending:      []PendingContribution{},
				NotValidated: []uuid.UUID{},
			}
		}
		result.Instruments[instrument.ID] = r
		if !r.CanAnalyseMax {
			result.MissingEnrolments = true
		}
	}
	return result, nil
}

func (s *enrolmentService) RequireEnrolment(ctx context.Context, learnerID, activityID uuid.UUID) error {
	result, err := s.MissingEnrolment(ctx, learnerID, activityID)
	if err != nil {
		return err
	}
	if result.MissingEnrolments {
		return &pkgerrors.MissingEnrolmentError{
			LearnerID:  learnerID,
			ActivityID: activityID,
			Detail:     result.Instruments,
		}
	}
	return nil
}

func (s *enrolmentService) InvalidateLearner(ctx context.Context, learnerID uuid.UUID) {
	if err := s.cache.Invalidate(ctx, enrolmentStatusKey(learnerID)); err != nil {
		s.log.Warn("Failed to invalidate enrolment status", "learner_id", learnerID, "error", err)
	}
	invalidateLearnerGates(ctx, s.cache, s.log, learnerID)
}

func (s *enrolmentService) LockModel(ctx context.Context, learnerID, providerID uuid.UUID) (*ModelLock, error) {
	enrolment, err := s.enrolments.GetByLearnerProvider(ctx, nil, learnerID, providerID)
	if err != nil {
		return nil, err
	}
	if enrolment == nil {
		created, err := s.enrolments.Create(ctx, nil, []*types.Enrolment{{
			ID:         uuid.New(),
			LearnerID:  learnerID,
			ProviderID: providerID,
		}})
		if err != nil {
			return nil, err
		}
		enrolment = created[0]
	}

	token := uuid.New()
	acquired, err := s.enrolments.AcquireLock(ctx, nil, enrolment.ID, token, time.Now().Add(-modelLockStale))
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, pkgerrors.ErrLockConflict
	}

	pending, err := s.pendingContributions(ctx, learnerID, providerID)
	if err != nil {
		if _, releaseErr := s.enrolments.ReleaseLock(ctx, nil, enrolment.ID, token); releaseErr != nil {
			s.log.Warn("Failed to release model lock", "enrolment_id", enrolment.ID, "error", releaseErr)
		}
		return nil, err
	}
	return &ModelLock{Token: token, Enrolment: enrolment, Pending: pending}, nil
}

func (s *enrolmentService) pendingContributions(ctx context.Context, learnerID, providerID uuid.UUID) ([]PendingContribution, error) {
	samples, err := s.samples.ListByLearner(ctx, nil, learnerID)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, nil
	}
	sampleIDs := make([]uuid.UUID, 0, len(samples))
	for _, sample := range samples {
		sampleIDs = append(sampleIDs, sample.ID)
	}
	valid, err := s.validations.ListValidByProvider(ctx, nil, providerID, sampleIDs)
	if err != nil {
		return nil, err
	}
	usedIDs, err := s.enrolments.ListUsedSampleIDs(ctx, nil, sampleIDs)
	if err != nil {
		return nil, err
	}
	used := map[uuid.UUID]bool{}
	for _, id := range usedIDs {
		used[id] = true
	}
	var pending []PendingContribution
	for _, v := range valid {
		if used[v.SampleID] {
			continue
		}
		contribution := 0.0
		if v.Contribution != nil {
			contribution = *v.Contribution
		}
		pending = append(pending, PendingContribution{
			SampleID:     v.SampleID,
			ProviderID:   v.ProviderID,
			Contribution: contribution,
		})
	}
	return pending, nil
}

func (s *enrolmentService) CommitModel(ctx context.Context, learnerID, providerID, token uuid.UUID, modelData []byte) error {
	enrolment, err := s.enrolments.GetByLearnerProvider(ctx, nil, learnerID, providerID)
	if err != nil {
		return err
	}
	if enrolment == nil {
		return fmt.Errorf("%w: enrolment for learner %s provider %s", pkgerrors.ErrNotFound, learnerID, providerID)
	}
	if enrolment.LockedBy == nil || *enrolment.LockedBy != token {
		return pkgerrors.ErrLockConflict
	}

	pending, err := s.pendingContributions(ctx, learnerID, providerID)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return s.ReleaseModel(ctx, learnerID, providerID, token)
	}

	learner, err := s.learners.GetByID(ctx, nil, learnerID)
	if err != nil {
		return err
	}
	institutionID := uuid.Nil
	if learner != nil {
		institutionID = learner.InstitutionID
	}
	modelPath := ModelPath(institutionID, providerID, learnerID)
	if len(modelData) > 0 {
		if _, err := s.bucket.Save(ctx, modelPath, modelData); err != nil {
			return err
		}
	}

	percentage := enrolment.Percentage
	modelSamples := make([]*types.EnrolmentModelSample, 0, len(pending))
	for _, p := range pending {
		percentage += p.Contribution
		modelSamples = append(modelSamples, &types.EnrolmentModelSample{
			EnrolmentID: enrolment.ID,
			SampleID:    p.SampleID,
		})
	}
	if percentage > 1 {
		percentage = 1
	}

	err = withTransaction(s.db, func(tx *gorm.DB) error {
		if err := s.enrolments.AddModelSamples(ctx, tx, modelSamples); err != nil {
			return err
		}
		return s.enrolments.UpdateFields(ctx, tx, enrolment.ID, map[string]interface{}{
			"percentage":  percentage,
			"can_analyse": true,
			"model":       modelPath,
		})
	})
	if err != nil {
		return err
	}

	if err := s.ReleaseModel(ctx, learnerID, providerID, token); err != nil {
		return err
	}
	s.InvalidateLearner(ctx, learnerID)
	s.log.Info("Committed enrolment model",
		"learner_id", learnerID,
		"provider_id", providerID,
		"percentage", percentage,
		"consumed_samples", len(modelSamples),
	)
	return nil
}

func (s *enrolmentService) AvailableSamples(ctx context.Context, learnerID, providerID uuid.UUID) ([]PendingContribution, error) {
	return s.pendingContributions(ctx, learnerID, providerID)
}

func (s *enrolmentService) UsedSamples(ctx context.Context, learnerID, providerID uuid.UUID) ([]uuid.UUID, error) {
	enrolment, err := s.enrolments.GetByLearnerProvider(ctx, nil, learnerID, providerID)
	if err != nil {
		return nil, err
	}
	if enrolment == nil {
		return []uuid.UUID{}, nil
	}
	return s.enrolments.ListModelSampleIDs(ctx, nil, enrolment.ID)
}

func (s *enrolmentService) ReleaseModel(ctx context.Context, learnerID, providerID, token uuid.UUID) error {
	enrolment, err := s.enrolments.GetByLearnerProvider(ctx, nil, learnerID, providerID)
	if err != nil {
		return err
	}
	if enrolment == nil {
		return nil
	}
	released, err := s.enrolments.ReleaseLock(ctx, nil, enrolment.ID, token)
	if err != nil {
		return err
	}
	if !released {
		return pkgerrors.ErrLockConflict
	}
	return nil
}
