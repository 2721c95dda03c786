package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tesla-ce/trust-backend/internal/logger"
	pkgerrors "github.com/tesla-ce/trust-backend/internal/pkg/errors"
	"github.com/tesla-ce/trust-backend/internal/repos"
	"github.com/tesla-ce/trust-backend/internal/types"
)

// ActivityInstrumentService resolves which instrument configurations apply to
// a learner sitting an activity, honoring SEND substitutions.
type ActivityInstrumentService interface {
	Configure(ctx context.Context, activityID, instrumentID uuid.UUID, alternativeTo *uuid.UUID, options datatypes.JSON) (*types.ActivityInstrument, error)
	Deactivate(ctx context.Context, activityID, instrumentID uuid.UUID) error
	// ResolveForLearner returns the active primary configurations minus the
	// learner's SEND-disabled instruments, with each disabled primary
	// replaced by its active alternatives.
	ResolveForLearner(ctx context.Context, activityID, learnerID uuid.UUID) ([]*types.ActivityInstrument, error)
}

type activityInstrumentService struct {
	db         *gorm.DB
	log        *logger.Logger
	activities repos.ActivityRepo
	send       SENDService
}

func NewActivityInstrumentService(db *gorm.DB, log *logger.Logger, activities repos.ActivityRepo, send SENDService) ActivityInstrumentService {
	return &activityInstrumentService{
		db:         db,
		log:        log.With("service", "ActivityInstrumentService"),
		activities: activities,
		send:       send,
	}
}

func (s *activityInstrumentService) Configure(ctx context.Context, activityID, instrumentID uuid.UUID, alternativeTo *uuid.UUID, options datatypes.JSON) (*types.ActivityInstrument, error) {
	activity, err := s.activities.GetByID(ctx, nil, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, fmt.Errorf("%w: activity %s", pkgerrors.ErrNotFound, activityID)
	}
	row := &types.ActivityInstrument{
		ID:              uuid.New(),
		ActivityID:      activityID,
		InstrumentID:    instrumentID,
		Active:          true,
		AlternativeToID: alternativeTo,
		Options:         options,
	}
	created, err := s.activities.CreateInstruments(ctx, nil, []*types.ActivityInstrument{row})
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

func (s *activityInstrumentService) Deactivate(ctx context.Context, activityID, instrumentID uuid.UUID) error {
	return s.activities.DeleteInstrument(ctx, nil, activityID, instrumentID)
}

func (s *activityInstrumentService) ResolveForLearner(ctx context.Context, activityID, learnerID uuid.UUID) ([]*types.ActivityInstrument, error) {
	configured, err := s.activities.ListActiveInstruments(ctx, nil, activityID)
	if err != nil {
		return nil, err
	}
	status, err := s.send.Status(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	disabled := map[uuid.UUID]bool{}
	for _, id := range status.DisabledInstruments {
		disabled[id] = true
	}

	// Alternatives indexed by the primary configuration they substitute.
	alternatives := map[uuid.UUID][]*types.ActivityInstrument{}
	for _, row := range configured {
		if row.AlternativeToID != nil {
			alternatives[*row.AlternativeToID] = append(alternatives[*row.AlternativeToID], row)
		}
	}

	var resolved []*types.ActivityInstrument
	for _, row := range configured {
		if row.AlternativeToID != nil {
			continue
		}
		if !disabled[row.InstrumentID] {
			resolved = append(resolved, row)
			continue
		}
		for _, alt := range alternatives[row.ID] {
			if !disabled[alt.InstrumentID] {
				resolved = append(resolved, alt)
			}
		}
	}
	return resolved, nil
}
