package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tesla-ce/trust-backend/internal/cache"
	"github.com/tesla-ce/trust-backend/internal/logger"
	pkgerrors "github.com/tesla-ce/trust-backend/internal/pkg/errors"
	"github.com/tesla-ce/trust-backend/internal/repos"
	"github.com/tesla-ce/trust-backend/internal/types"
)

// SENDStatus is the union of a learner's active accommodation categories.
type SENDStatus struct {
	IsSEND              bool        `json:"is_send"`
	DisabledInstruments []uuid.UUID `json:"disabled_instruments"`
	EnabledOptions      []string    `json:"enabled_options"`
}

// SENDService manages special-needs accommodation categories and resolves
// their combined effect for a learner.
type SENDService interface {
	CreateCategory(ctx context.Context, institutionID uuid.UUID, description string, data types.SENDCategoryData) (*types.SENDCategory, error)
	Assign(ctx context.Context, learnerID, categoryID uuid.UUID, expiresAt *time.Time) error
	Remove(ctx context.Context, learnerID, categoryID uuid.UUID) error
	// Status unions the data of every active, non-expired assigned category.
	Status(ctx context.Context, learnerID uuid.UUID) (*SENDStatus, error)
}

type sendService struct {
	db       *gorm.DB
	log      *logger.Logger
	send     repos.SENDRepo
	learners repos.LearnerRepo
	cache    cache.Cache
}

func NewSENDService(db *gorm.DB, log *logger.Logger, send repos.SENDRepo, learners repos.LearnerRepo, c cache.Cache) SENDService {
	return &sendService{
		db:       db,
		log:      log.With("service", "SENDService"),
		send:     send,
		learners: learners,
		cache:    c,
	}
}

func (s *sendService) CreateCategory(ctx context.Context, institutionID uuid.UUID, description string, data types.SENDCategoryData) (*types.SENDCategory, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrInvalidArgument, err)
	}
	category := &types.SENDCategory{
		ID:            uuid.New(),
		InstitutionID: institutionID,
		Description:   description,
		Data:          datatypes.JSON(raw),
	}
	created, err := s.send.CreateCategories(ctx, nil, []*types.SENDCategory{category})
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

func (s *sendService) Assign(ctx context.Context, learnerID, categoryID uuid.UUID, expiresAt *time.Time) error {
	category, err := s.send.GetCategoryByID(ctx, nil, categoryID)
	if err != nil {
		return err
	}
	if category == nil {
		return fmt.Errorf("%w: SEND category %s", pkgerrors.ErrNotFound, categoryID)
	}
	row := &types.SENDLearner{
		ID:         uuid.New(),
		LearnerID:  learnerID,
		CategoryID: categoryID,
		ExpiresAt:  expiresAt,
	}
	if _, err := s.send.AssignLearner(ctx, nil, []*types.SENDLearner{row}); err != nil {
		return err
	}
	s.invalidate(ctx, learnerID)
	return nil
}

func (s *sendService) Remove(ctx context.Context, learnerID, categoryID uuid.UUID) error {
	if err := s.send.RemoveLearner(ctx, nil, learnerID, categoryID); err != nil {
		return err
	}
	s.invalidate(ctx, learnerID)
	return nil
}

func (s *sendService) Status(ctx context.Context, learnerID uuid.UUID) (*SENDStatus, error) {
	assignments, err := s.send.ListActiveByLearner(ctx, nil, learnerID, time.Now())
	if err != nil {
		return nil, err
	}
	status := &SENDStatus{
		DisabledInstruments: []uuid.UUID{},
		EnabledOptions:      []string{},
	}
	if len(assignments) == 0 {
		return status, nil
	}
	categoryIDs := make([]uuid.UUID, 0, len(assignments))
	for _, a := range assignments {
		categoryIDs = append(categoryIDs, a.CategoryID)
	}
	categories, err := s.send.GetCategoriesByIDs(ctx, nil, categoryIDs)
	if err != nil {
		return nil, err
	}
	seenInstruments := map[uuid.UUID]bool{}
	seenOptions := map[string]bool{}
	for _, category := range categories {
		var data types.SENDCategoryData
		if len(category.Data) > 0 {
			if err := json.Unmarshal(category.Data, &data); err != nil {
				s.log.Warn("Bad SEND category data", "category_id", category.ID, "error", err)
				continue
			}
		}
		for _, instrumentID := range data.DisabledInstruments {
			if !seenInstruments[instrumentID] {
				seenInstruments[instrumentID] = true
				status.DisabledInstruments = append(status.DisabledInstruments, instrumentID)
			}
		}
		for _, opt := range data.EnabledOptions {
			if !seenOptions[opt] {
				seenOptions[opt] = true
				status.EnabledOptions = append(status.EnabledOptions, opt)
			}
		}
	}
	status.IsSEND = true
	return status, nil
}

// SEND changes shift which instruments apply, so the missing-enrolment gate
// cache for the learner has to go.
func (s *sendService) invalidate(ctx context.Context, learnerID uuid.UUID) {
	invalidateLearnerGates(ctx, s.cache, s.log, learnerID)
}
