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

func publishConsent(t *testing.T, f *fixture, institutionID uuid.UUID, version string, validFrom time.Time) *types.InformedConsent {
	t.Helper()
	consent, err := f.consent.PublishVersion(context.Background(), institutionID, version, validFrom)
	if err != nil {
		t.Fatalf("PublishVersion(%s): %v", version, err)
	}
	return consent
}

func acceptConsent(t *testing.T, f *fixture, learner *types.Learner, consentID uuid.UUID) {
	t.Helper()
	if err := f.consent.Accept(context.Background(), learner.ID, consentID); err != nil {
		t.Fatalf("Accept: %v", err)
	}
}

func TestConsentStatusLabels(t *testing.T) {
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)

	t.Run("nil learner is missing", func(t *testing.T) {
		f := newFixture()
		status, err := f.consent.Status(ctx, nil)
		if err != nil || status != types.ICNotValidMissing {
			t.Fatalf("got %q err=%v", status, err)
		}
	})

	t.Run("external institution", func(t *testing.T) {
		f := newFixture()
		learner := f.seedLearner(f.seedInstitution(true))
		status, err := f.consent.Status(ctx, learner)
		if err != nil || status != types.ICValidExternal {
			t.Fatalf("got %q err=%v", status, err)
		}
	})

	t.Run("rejected wins over accepted", func(t *testing.T) {
		f := newFixture()
		learner := f.seedLearner(f.seedInstitution(false))
		consent := publishConsent(t, f, learner.InstitutionID, "1.0.0", past)
		acceptConsent(t, f, learner, consent.ID)
		if err := f.consent.Reject(ctx, learner.ID); err != nil {
			t.Fatalf("Reject: %v", err)
		}
		learner, _ = f.learners.GetByID(ctx, nil, learner.ID)
		status, err := f.consent.Status(ctx, learner)
		if err != nil || status != types.ICRejected {
			t.Fatalf("got %q err=%v", status, err)
		}
	})

	t.Run("never accepted is missing", func(t *testing.T) {
		f := newFixture()
		learner := f.seedLearner(f.seedInstitution(false))
		publishConsent(t, f, learner.InstitutionID, "1.0.0", past)
		status, err := f.consent.Status(ctx, learner)
		if err != nil || status != types.ICNotValidMissing {
			t.Fatalf("got %q err=%v", status, err)
		}
	})

	t.Run("accepted before any version is in force", func(t *testing.T) {
		f := newFixture()
		learner := f.seedLearner(f.seedInstitution(false))
		consent := publishConsent(t, f, learner.InstitutionID, "1.0.0", time.Now().Add(time.Hour))
		acceptConsent(t, f, learner, consent.ID)
		learner, _ = f.learners.GetByID(ctx, nil, learner.ID)
		status, err := f.consent.Status(ctx, learner)
		if err != nil || status != types.ICNotValidYet {
			t.Fatalf("got %q err=%v", status, err)
		}
	})

	t.Run("version match matrix", func(t *testing.T) {
		cases := []struct {
			name     string
			accepted string
			current  string
			want     string
		}{
			{name: "exact match", accepted: "1.2.0", current: "1.2.0", want: types.ICValid},
			{name: "patch drift", accepted: "1.2.0", current: "1.2.3", want: types.ICValid},
			{name: "minor drift", accepted: "1.2.0", current: "1.3.0", want: types.ICValidNeedUpdate},
			{name: "major drift", accepted: "1.2.0", current: "2.0.0", want: types.ICNotValid},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				f := newFixture()
				learner := f.seedLearner(f.seedInstitution(false))
				accepted := publishConsent(t, f, learner.InstitutionID, tc.accepted, past.Add(-time.Hour))
				if tc.current != tc.accepted {
					publishConsent(t, f, learner.InstitutionID, tc.current, past)
				}
				acceptConsent(t, f, learner, accepted.ID)
				learner, _ = f.learners.GetByID(ctx, nil, learner.ID)
				status, err := f.consent.Status(ctx, learner)
				if err != nil {
					t.Fatalf("Status: %v", err)
				}
				if status != tc.want {
					t.Fatalf("accepted %s current %s: got %q want %q", tc.accepted, tc.current, status, tc.want)
				}
			})
		}
	})
}

func TestConsentPublishInvalidatesCurrentVersion(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	learner := f.seedLearner(f.seedInstitution(false))
	past := time.Now().Add(-time.Hour)

	accepted := publishConsent(t, f, learner.InstitutionID, "1.0.0", past)
	acceptConsent(t, f, learner, accepted.ID)
	learner, _ = f.learners.GetByID(ctx, nil, learner.ID)

	status, err := f.consent.Status(ctx, learner)
	if err != nil || status != types.ICValid {
		t.Fatalf("before new version: got %q err=%v", status, err)
	}

	// The current version is cached; publishing must invalidate it so the
	// new version takes effect without waiting out the TTL.
	publishConsent(t, f, learner.InstitutionID, "2.0.0", time.Now().Add(-time.Minute))
	status, err = f.consent.Status(ctx, learner)
	if err != nil || status != types.ICNotValid {
		t.Fatalf("after new version: got %q err=%v", status, err)
	}
}

func TestConsentPublishRejectsBadVersion(t *testing.T) {
	f := newFixture()
	institution := f.seedInstitution(false)
	_, err := f.consent.PublishVersion(context.Background(), institution.ID, "not-a-version", time.Now())
	if !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
}

func TestConsentAcceptUnknownVersion(t *testing.T) {
	f := newFixture()
	learner := f.seedLearner(f.seedInstitution(false))
	err := f.consent.Accept(context.Background(), learner.ID, uuid.New())
	if !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestConsentRequireValid(t *testing.T) {
	ctx := context.Background()

	t.Run("valid external passes", func(t *testing.T) {
		f := newFixture()
		learner := f.seedLearner(f.seedInstitution(true))
		if err := f.consent.RequireValid(ctx, learner); err != nil {
			t.Fatalf("expected pass, got %v", err)
		}
	})

	t.Run("need update still passes", func(t *testing.T) {
		f := newFixture()
		learner := f.seedLearner(f.seedInstitution(false))
		accepted := publishConsent(t, f, learner.InstitutionID, "1.0.0", time.Now().Add(-2*time.Hour))
		publishConsent(t, f, learner.InstitutionID, "1.1.0", time.Now().Add(-time.Hour))
		acceptConsent(t, f, learner, accepted.ID)
		learner, _ = f.learners.GetByID(ctx, nil, learner.ID)
		if err := f.consent.RequireValid(ctx, learner); err != nil {
			t.Fatalf("expected pass, got %v", err)
		}
	})

	t.Run("missing consent is rejected with status", func(t *testing.T) {
		f := newFixture()
		learner := f.seedLearner(f.seedInstitution(false))
		err := f.consent.RequireValid(ctx, learner)
		var icErr *pkgerrors.MissingICError
		if !errors.As(err, &icErr) {
			t.Fatalf("want MissingICError, got %v", err)
		}
		if icErr.Status != types.ICNotValidMissing {
			t.Fatalf("want status %s, got %s", types.ICNotValidMissing, icErr.Status)
		}
		if icErr.LearnerID != learner.LearnerID {
			t.Fatalf("error should carry the anonymized learner id")
		}
	})
}
