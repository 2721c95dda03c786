package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/tesla-ce/trust-backend/internal/pkg/errors"
	"github.com/tesla-ce/trust-backend/internal/types"
)

// seedValidatedSample wires a sample, its instrument tag and one provider
// validation straight into the fakes, skipping the ingest pipeline.
func seedValidatedSample(f *fixture, learnerID, instrumentID, providerID uuid.UUID, status types.ValidationStatus, contribution *float64) *types.EnrolmentSample {
	sample := &types.EnrolmentSample{
		ID:        uuid.New(),
		LearnerID: learnerID,
		Status:    types.SampleValid,
		Data:      "samples/" + uuid.NewString(),
	}
	f.samples.samples = append(f.samples.samples, sample)
	f.samples.tags = append(f.samples.tags, &types.EnrolmentSampleInstrument{
		SampleID:     sample.ID,
		InstrumentID: instrumentID,
	})
	f.validations.items = append(f.validations.items, &types.EnrolmentSampleValidation{
		ID:           uuid.New(),
		SampleID:     sample.ID,
		ProviderID:   providerID,
		Status:       status,
		Contribution: contribution,
	})
	return sample
}

func TestEnrolmentStatusFoldsProviders(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	learner := f.seedLearner(f.seedInstitution(true))
	instrument := f.seedInstrument(true)
	providerA := f.seedProvider(instrument)
	providerB := f.seedProvider(instrument)

	f.enrolments.items = append(f.enrolments.items,
		&types.Enrolment{ID: uuid.New(), LearnerID: learner.ID, ProviderID: providerA.ID, Percentage: 0.3, CanAnalyse: false},
		&types.Enrolment{ID: uuid.New(), LearnerID: learner.ID, ProviderID: providerB.ID, Percentage: 0.8, CanAnalyse: true},
	)
	seedValidatedSample(f, learner.ID, instrument.ID, providerA.ID, types.ValidationValid, float64Ptr(0.5))
	seedValidatedSample(f, learner.ID, instrument.ID, providerB.ID, types.ValidationValidating, nil)

	status, err := f.enrolment.Status(ctx, learner.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	row, ok := status[instrument.ID]
	if !ok {
		t.Fatalf("expected a row for the instrument, got %v", status)
	}
	if row.PercentageMin != 0.3 || row.PercentageMax != 0.8 {
		t.Fatalf("percentage fold: got min=%v max=%v", row.PercentageMin, row.PercentageMax)
	}
	if row.CanAnalyseMin || !row.CanAnalyseMax {
		t.Fatalf("can-analyse fold: got min=%v max=%v", row.CanAnalyseMin, row.CanAnalyseMax)
	}
	if len(row.Pending) != 1 || row.PendingContributions != 0.5 {
		t.Fatalf("pending: got %v sum=%v", row.Pending, row.PendingContributions)
	}
	if row.NotValidatedCount != 1 {
		t.Fatalf("not validated: got %d", row.NotValidatedCount)
	}
}

func TestEnrolmentStatusUsesCacheUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	learner := f.seedLearner(f.seedInstitution(true))
	instrument := f.seedInstrument(true)
	provider := f.seedProvider(instrument)

	status, err := f.enrolment.Status(ctx, learner.ID)
	if err != nil || len(status) != 0 {
		t.Fatalf("empty status expected, got %v err=%v", status, err)
	}

	// A write that bypasses the service must not show up while cached.
	f.enrolments.items = append(f.enrolments.items,
		&types.Enrolment{ID: uuid.New(), LearnerID: learner.ID, ProviderID: provider.ID, Percentage: 1, CanAnalyse: true},
	)
	status, err = f.enrolment.Status(ctx, learner.ID)
	if err != nil || len(status) != 0 {
		t.Fatalf("stale cache expected, got %v err=%v", status, err)
	}

	f.enrolment.InvalidateLearner(ctx, learner.ID)
	status, err = f.enrolment.Status(ctx, learner.ID)
	if err != nil || len(status) != 1 {
		t.Fatalf("fresh status expected after invalidation, got %v err=%v", status, err)
	}
}

func TestLockModelConflictsAndStaleReclaim(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	learner := f.seedLearner(f.seedInstitution(true))
	provider := f.seedProvider(f.seedInstrument(true))

	lock, err := f.enrolment.LockModel(ctx, learner.ID, provider.ID)
	if err != nil {
		t.Fatalf("LockModel: %v", err)
	}
	if lock.Enrolment == nil || lock.Token == uuid.Nil {
		t.Fatalf("expected a fresh enrolment and token, got %+v", lock)
	}

	if _, err := f.enrolment.LockModel(ctx, learner.ID, provider.ID); !errors.Is(err, pkgerrors.ErrLockConflict) {
		t.Fatalf("second lock should conflict, got %v", err)
	}

	if err := f.enrolment.ReleaseModel(ctx, learner.ID, provider.ID, lock.Token); err != nil {
		t.Fatalf("ReleaseModel: %v", err)
	}
	if _, err := f.enrolment.LockModel(ctx, learner.ID, provider.ID); err != nil {
		t.Fatalf("relock after release: %v", err)
	}

	// A holder that died leaves a stale timestamp behind; the next writer
	// reclaims it.
	stale := time.Now().Add(-2 * modelLockStale)
	f.enrolments.items[0].LockedAt = &stale
	if _, err := f.enrolment.LockModel(ctx, learner.ID, provider.ID); err != nil {
		t.Fatalf("stale lock should be reclaimed, got %v", err)
	}
}

func TestCommitModelFoldsContributions(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	institution := f.seedInstitution(true)
	learner := f.seedLearner(institution)
	instrument := f.seedInstrument(true)
	provider := f.seedProvider(instrument)

	for i := 0; i < 4; i++ {
		seedValidatedSample(f, learner.ID, instrument.ID, provider.ID, types.ValidationValid, float64Ptr(0.25))
	}

	lock, err := f.enrolment.LockModel(ctx, learner.ID, provider.ID)
	if err != nil {
		t.Fatalf("LockModel: %v", err)
	}
	if len(lock.Pending) != 4 {
		t.Fatalf("expected 4 pending contributions, got %d", len(lock.Pending))
	}

	if err := f.enrolment.CommitModel(ctx, learner.ID, provider.ID, lock.Token, []byte("model-bytes")); err != nil {
		t.Fatalf("CommitModel: %v", err)
	}

	enrolment, _ := f.enrolments.GetByLearnerProvider(ctx, nil, learner.ID, provider.ID)
	if enrolment.Percentage != 1 || !enrolment.CanAnalyse {
		t.Fatalf("expected a complete usable model, got pct=%v can=%v", enrolment.Percentage, enrolment.CanAnalyse)
	}
	if enrolment.LockedBy != nil {
		t.Fatal("commit should release the lock")
	}

	modelPath := ModelPath(institution.ID, provider.ID, learner.ID)
	if enrolment.Model != modelPath {
		t.Fatalf("model path: got %q want %q", enrolment.Model, modelPath)
	}
	if ok, _ := f.bucket.Exists(ctx, modelPath); !ok {
		t.Fatal("model blob was not persisted")
	}

	used, err := f.enrolment.UsedSamples(ctx, learner.ID, provider.ID)
	if err != nil || len(used) != 4 {
		t.Fatalf("used samples: got %d err=%v", len(used), err)
	}
	available, err := f.enrolment.AvailableSamples(ctx, learner.ID, provider.ID)
	if err != nil || len(available) != 0 {
		t.Fatalf("available samples after commit: got %d err=%v", len(available), err)
	}
}

func TestCommitModelClampsPercentage(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	learner := f.seedLearner(f.seedInstitution(true))
	instrument := f.seedInstrument(true)
	provider := f.seedProvider(instrument)

	for i := 0; i < 3; i++ {
		seedValidatedSample(f, learner.ID, instrument.ID, provider.ID, types.ValidationValid, float64Ptr(0.5))
	}

	lock, err := f.enrolment.LockModel(ctx, learner.ID, provider.ID)
	if err != nil {
		t.Fatalf("LockModel: %v", err)
	}
	if err := f.enrolment.CommitModel(ctx, learner.ID, provider.ID, lock.Token, []byte("m")); err != nil {
		t.Fatalf("CommitModel: %v", err)
	}
	enrolment, _ := f.enrolments.GetByLearnerProvider(ctx, nil, learner.ID, provider.ID)
	if enrolment.Percentage != 1 {
		t.Fatalf("percentage must clamp to 1, got %v", enrolment.Percentage)
	}
}

func TestCommitModelRequiresHeldToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	learner := f.seedLearner(f.seedInstitution(true))
	provider := f.seedProvider(f.seedInstrument(true))

	if _, err := f.enrolment.LockModel(ctx, learner.ID, provider.ID); err != nil {
		t.Fatalf("LockModel: %v", err)
	}
	err := f.enrolment.CommitModel(ctx, learner.ID, provider.ID, uuid.New(), []byte("m"))
	if !errors.Is(err, pkgerrors.ErrLockConflict) {
		t.Fatalf("commit with a foreign token should conflict, got %v", err)
	}
}

func TestCommitModelWithoutPendingReleases(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	learner := f.seedLearner(f.seedInstitution(true))
	provider := f.seedProvider(f.seedInstrument(true))

	lock, err := f.enrolment.LockModel(ctx, learner.ID, provider.ID)
	if err != nil {
		t.Fatalf("LockModel: %v", err)
	}
	if err := f.enrolment.CommitModel(ctx, learner.ID, provider.ID, lock.Token, nil); err != nil {
		t.Fatalf("CommitModel: %v", err)
	}
	enrolment, _ := f.enrolments.GetByLearnerProvider(ctx, nil, learner.ID, provider.ID)
	if enrolment.LockedBy != nil {
		t.Fatal("empty commit should still release the lock")
	}
	if enrolment.CanAnalyse || enrolment.Percentage != 0 {
		t.Fatalf("empty commit must not change the model, got %+v", enrolment)
	}
}

func TestMissingEnrolmentGate(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	learner := f.seedLearner(f.seedInstitution(true))
	activity := f.seedActivity()
	instrument := f.seedInstrument(true)
	provider := f.seedProvider(instrument)
	configureInstrument(t, f, activity.ID, instrument.ID, nil)

	result, err := f.enrolment.MissingEnrolment(ctx, learner.ID, activity.ID)
	if err != nil {
		t.Fatalf("MissingEnrolment: %v", err)
	}
	if !result.MissingEnrolments {
		t.Fatal("no model yet: the gate must be closed")
	}
	var gateErr *pkgerrors.MissingEnrolmentError
	if err := f.enrolment.RequireEnrolment(ctx, learner.ID, activity.ID); !errors.As(err, &gateErr) {
		t.Fatalf("want MissingEnrolmentError, got %v", err)
	}

	// The gate decision is cached per (learner, activity); a direct write is
	// invisible until the learner's epoch is bumped.
	f.enrolments.items = append(f.enrolments.items,
		&types.Enrolment{ID: uuid.New(), LearnerID: learner.ID, ProviderID: provider.ID, Percentage: 1, CanAnalyse: true},
	)
	result, err = f.enrolment.MissingEnrolment(ctx, learner.ID, activity.ID)
	if err != nil || !result.MissingEnrolments {
		t.Fatalf("expected the cached gate decision, got %+v err=%v", result, err)
	}

	f.enrolment.InvalidateLearner(ctx, learner.ID)
	result, err = f.enrolment.MissingEnrolment(ctx, learner.ID, activity.ID)
	if err != nil {
		t.Fatalf("MissingEnrolment after invalidation: %v", err)
	}
	if result.MissingEnrolments {
		t.Fatal("usable model present: the gate must be open")
	}
	if err := f.enrolment.RequireEnrolment(ctx, learner.ID, activity.ID); err != nil {
		t.Fatalf("RequireEnrolment after model commit: %v", err)
	}
}

func TestMissingEnrolmentSkipsNonEnrolmentInstruments(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	learner := f.seedLearner(f.seedInstitution(true))
	activity := f.seedActivity()
	instrument := f.seedInstrument(false)
	f.seedProvider(instrument)
	configureInstrument(t, f, activity.ID, instrument.ID, nil)

	result, err := f.enrolment.MissingEnrolment(ctx, learner.ID, activity.ID)
	if err != nil {
		t.Fatalf("MissingEnrolment: %v", err)
	}
	if result.MissingEnrolments || len(result.Instruments) != 0 {
		t.Fatalf("instrument without enrolment must not close the gate, got %+v", result)
	}
}

func TestMissingEnrolmentDisabledActivity(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	learner := f.seedLearner(f.seedInstitution(true))
	activity := f.seedActivity()
	activity.Enabled = false
	instrument := f.seedInstrument(true)
	configureInstrument(t, f, activity.ID, instrument.ID, nil)

	result, err := f.enrolment.MissingEnrolment(ctx, learner.ID, activity.ID)
	if err != nil {
		t.Fatalf("MissingEnrolment: %v", err)
	}
	if result.MissingEnrolments {
		t.Fatal("disabled activity never gates")
	}
}

func TestMissingEnrolmentUnknownActivity(t *testing.T) {
	f := newFixture()
	learner := f.seedLearner(f.seedInstitution(true))
	_, err := f.enrolment.MissingEnrolment(context.Background(), learner.ID, uuid.New())
	if !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
