package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tesla-ce/trust-backend/internal/cache"
	"github.com/tesla-ce/trust-backend/internal/logger"
	pkgerrors "github.com/tesla-ce/trust-backend/internal/pkg/errors"
	"github.com/tesla-ce/trust-backend/internal/repos"
	"github.com/tesla-ce/trust-backend/internal/types"
)

const currentConsentTTL = 24 * time.Hour

// ConsentService manages informed consent versions and decides whether a
// learner may submit data.
type ConsentService interface {
	PublishVersion(ctx context.Context, institutionID uuid.UUID, version string, validFrom time.Time) (*types.InformedConsent, error)
	Accept(ctx context.Context, learnerID, consentID uuid.UUID) error
	Reject(ctx context.Context, learnerID uuid.UUID) error
	// Status returns one of the IC status labels for the learner.
	Status(ctx context.Context, learner *types.Learner) (string, error)
	// RequireValid returns a MissingICError unless the learner's status has
	// the VALID prefix.
	RequireValid(ctx context.Context, learner *types.Learner) error
}

type consentService struct {
	db          *gorm.DB
	log         *logger.Logger
	consents    repos.InformedConsentRepo
	learners    repos.LearnerRepo
	institution repos.InstitutionRepo
	cache       cache.Cache
}

func NewConsentService(db *gorm.DB, log *logger.Logger, consents repos.InformedConsentRepo, learners repos.LearnerRepo, institution repos.InstitutionRepo, c cache.Cache) ConsentService {
	return &consentService{
		db:          db,
		log:         log.With("service", "ConsentService"),
		consents:    consents,
		learners:    learners,
		institution: institution,
		cache:       c,
	}
}

func currentConsentKey(institutionID uuid.UUID) string {
	return "consent:current:" + institutionID.String()
}

func (s *consentService) PublishVersion(ctx context.Context, institutionID uuid.UUID, version string, validFrom time.Time) (*types.InformedConsent, error) {
	if _, _, err := parseVersion(version); err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrInvalidArgument, err)
	}
	consent := &types.InformedConsent{
		ID:            uuid.New(),
		InstitutionID: institutionID,
		Version:       version,
		ValidFrom:     validFrom,
	}
	created, err := s.consents.Create(ctx, nil, []*types.InformedConsent{consent})
	if err != nil {
		return nil, err
	}
	if err := s.cache.Invalidate(ctx, currentConsentKey(institutionID)); err != nil {
		s.log.Warn("Failed to invalidate current consent cache", "institution_id", institutionID, "error", err)
	}
	return created[0], nil
}

func (s *consentService) Accept(ctx context.Context, learnerID, consentID uuid.UUID) error {
	consent, err := s.consents.GetByID(ctx, nil, consentID)
	if err != nil {
		return err
	}
	if consent == nil {
		return fmt.Errorf("%w: informed consent %s", pkgerrors.ErrNotFound, consentID)
	}
	now := time.Now()
	return s.learners.UpdateFields(ctx, nil, learnerID, map[string]interface{}{
		"consent_id":       consentID,
		"consent_accepted": now,
		"consent_rejected": nil,
	})
}

func (s *consentService) Reject(ctx context.Context, learnerID uuid.UUID) error {
	now := time.Now()
	return s.learners.UpdateFields(ctx, nil, learnerID, map[string]interface{}{
		"consent_rejected": now,
	})
}

func (s *consentService) Status(ctx context.Context, learner *types.Learner) (string, error) {
	if learner == nil {
		return types.ICNotValidMissing, nil
	}
	institution, err := s.institution.GetByID(ctx, nil, learner.InstitutionID)
	if err != nil {
		return "", err
	}
	if institution != nil && institution.ExternalIC {
		return types.ICValidExternal, nil
	}
	if learner.ConsentRejected != nil {
		return types.ICRejected, nil
	}
	if learner.ConsentID == nil || learner.ConsentAccepted == nil {
		return types.ICNotValidMissing, nil
	}

	current, err := s.currentVersion(ctx, learner.InstitutionID)
	if err != nil {
		return "", err
	}
	if current == nil {
		// No published consent can mean the accepted one is not in force yet.
		return types.ICNotValidYet, nil
	}

	accepted, err := s.consents.GetByID(ctx, nil, *learner.ConsentID)
	if err != nil {
		return "", err
	}
	if accepted == nil {
		return types.ICNotValidMissing, nil
	}

	accMajor, accMinor, err := parseVersion(accepted.Version)
	if err != nil {
		return "", err
	}
	curMajor, curMinor, err := parseVersion(current.Version)
	if err != nil {
		return "", err
	}
	switch {
	case accMajor == curMajor && accMinor == curMinor:
		return types.ICValid, nil
	case accMajor == curMajor:
		return types.ICValidNeedUpdate, nil
	default:
		return types.ICNotValid, nil
	}
}

func (s *consentService) RequireValid(ctx context.Context, learner *types.Learner) error {
	status, err := s.Status(ctx, learner)
	if err != nil {
		return err
	}
	if strings.HasPrefix(status, "VALID") {
		return nil
	}
	learnerID := uuid.Nil
	if learner != nil {
		learnerID = learner.LearnerID
	}
	return &pkgerrors.MissingICError{LearnerID: learnerID, Status: status}
}

// currentVersion is the newest consent already in force, cached per
// institution with explicit invalidation on publish.
func (s *consentService) currentVersion(ctx context.Context, institutionID uuid.UUID) (*types.InformedConsent, error) {
	key := currentConsentKey(institutionID)
	if raw, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var cached types.InformedConsent
		if err := unmarshalCached(raw, &cached); err == nil && cached.ID != uuid.Nil {
			return &cached, nil
		}
	}
	active, err := s.consents.ListActiveByInstitution(ctx, nil, institutionID, time.Now())
	if err != nil {
		return nil, err
	}
	var current *types.InformedConsent
	for _, consent := range active {
		if current == nil || consent.ValidFrom.After(current.ValidFrom) {
			current = consent
		}
	}
	if current != nil {
		if raw, err := marshalCached(current); err == nil {
			if err := s.cache.Set(ctx, key, raw, currentConsentTTL); err != nil {
				s.log.Warn("Failed to cache current consent", "institution_id", institutionID, "error", err)
			}
		}
	}
	return current, nil
}

func parseVersion(version string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(version), ".")
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("invalid version %q", version)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid version %q", version)
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid version %q", version)
	}
	return major, minor, nil
}
