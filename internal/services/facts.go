package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tesla-ce/trust-backend/internal/logger"
	pkgerrors "github.com/tesla-ce/trust-backend/internal/pkg/errors"
	"github.com/tesla-ce/trust-backend/internal/repos"
	"github.com/tesla-ce/trust-backend/internal/types"
)

// Facts are human-auditable rationale labels derived from a report row and
// the running histograms. The scoring is deliberately simple (decile buckets,
// fixed thresholds) so every verdict can be explained to a reviewer.
const (
	FactNeutralMissingInformation = "NEUTRAL_MISSING_INFORMATION"
	FactPositiveConfidenceHigh    = "POSITIVE_CONFIDENCE_HIGH"
	FactNegativeConfidenceLow     = "NEGATIVE_CONFIDENCE_LOW"
	FactPositiveAboveThreshold    = "POSITIVE_ABOVE_THRESHOLD"
	FactNegativeBelowThreshold    = "NEGATIVE_BELOW_THRESHOLD"
	FactPositiveLearnerHistory    = "POSITIVE_GOOD_FOR_THIS_LEARNER"
	FactNegativeLearnerHistory    = "NEGATIVE_BAD_FOR_THIS_LEARNER"
	FactPositiveActivityHistory   = "POSITIVE_GOOD_FOR_THIS_ACTIVITY"
	FactNegativeActivityHistory   = "NEGATIVE_BAD_FOR_THIS_ACTIVITY"
	FactPositiveFrequentResult    = "POSITIVE_FREQUENT_RESULT"
)

const (
	factsEpsilon            = 0.01
	confidenceSplit         = 0.75
	learnerBetterPositive   = 0.4
	learnerBetterNegative   = 0.75
	activityBetterNegative  = 0.5
	frequentDensityPositive = 0.8
)

// FactsInput is everything GetFacts needs; it is a pure function of
// persisted state.
type FactsInput struct {
	Result          *float64
	Confidence      float64
	Polarity        int
	WarningBelow    float64
	AlertBelow      float64
	LearnerBuckets  []int64
	ActivityBuckets []int64
}

// GetFacts derives the fact set for one report row. Deterministic for a
// fixed input.
func GetFacts(in FactsInput) []string {
	if in.Result == nil || in.Confidence < factsEpsilon {
		return []string{FactNeutralMissingInformation}
	}
	var facts []string

	if in.Confidence < confidenceSplit {
		facts = append(facts, FactNegativeConfidenceLow)
	} else {
		facts = append(facts, FactPositiveConfidenceHigh)
	}

	sign := float64(in.Polarity)
	if sign == 0 {
		sign = 1
	}
	value := sign * *in.Result
	if value > sign*in.WarningBelow {
		facts = append(facts, FactPositiveAboveThreshold)
	}
	if value < sign*in.AlertBelow {
		facts = append(facts, FactNegativeBelowThreshold)
	}

	bucket := types.ResultBucket(*in.Result)

	if prob, ok := betterProbability(in.LearnerBuckets, bucket, in.Polarity); ok {
		if prob < learnerBetterPositive {
			facts = append(facts, FactPositiveLearnerHistory)
		}
		if prob > learnerBetterNegative {
			facts = append(facts, FactNegativeLearnerHistory)
		}
	}
	if prob, ok := betterProbability(in.ActivityBuckets, bucket, in.Polarity); ok {
		if prob < learnerBetterPositive {
			facts = append(facts, FactPositiveActivityHistory)
		}
		if prob > activityBetterNegative {
			facts = append(facts, FactNegativeActivityHistory)
		}
	}
	if density, ok := localDensity(in.LearnerBuckets, bucket); ok && density > frequentDensityPositive {
		facts = append(facts, FactPositiveFrequentResult)
	}
	return facts
}

// betterProbability is the half-open interval probability that a draw from
// the histogram beats the current bucket: counts strictly above it for
// normal polarity, strictly below for inverted.
func betterProbability(buckets []int64, bucket, polarity int) (float64, bool) {
	var total, better int64
	for i, count := range buckets {
		total += count
		if polarity >= 0 && i > bucket {
			better += count
		}
		if polarity < 0 && i < bucket {
			better += count
		}
	}
	if total == 0 {
		return 0, false
	}
	return float64(better) / float64(total), true
}

// localDensity is how common the exact bucket is, counting half of each
// neighboring bucket.
func localDensity(buckets []int64, bucket int) (float64, bool) {
	var total int64
	for _, count := range buckets {
		total += count
	}
	if total == 0 {
		return 0, false
	}
	density := float64(buckets[bucket])
	if bucket > 0 {
		density += float64(buckets[bucket-1]) / 2
	}
	if bucket < len(buckets)-1 {
		density += float64(buckets[bucket+1]) / 2
	}
	return density / float64(total), true
}

// FactsService assembles GetFacts inputs from the persisted report row,
// provider thresholds, and histograms.
type FactsService interface {
	FactsForInstrument(ctx context.Context, activityID, learnerID, instrumentID uuid.UUID) ([]string, error)
}

type factsService struct {
	db         *gorm.DB
	log        *logger.Logger
	reports    repos.ReportRepo
	providers  repos.ProviderRepo
	histograms repos.HistogramRepo
}

func NewFactsService(db *gorm.DB, log *logger.Logger, reports repos.ReportRepo, providers repos.ProviderRepo, histograms repos.HistogramRepo) FactsService {
	return &factsService{
		db:         db,
		log:        log.With("service", "FactsService"),
		reports:    reports,
		providers:  providers,
		histograms: histograms,
	}
}

func (s *factsService) FactsForInstrument(ctx context.Context, activityID, learnerID, instrumentID uuid.UUID) ([]string, error) {
	report, err := s.reports.GetByActivityLearner(ctx, nil, activityID, learnerID)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, fmt.Errorf("%w: report for activity %s learner %s", pkgerrors.ErrNotFound, activityID, learnerID)
	}
	row, err := s.reports.GetInstrumentRow(ctx, nil, report.ID, instrumentID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return []string{FactNeutralMissingInformation}, nil
	}

	in := FactsInput{
		Confidence: float64(row.Confidence) / 100,
		Polarity:   1,
	}
	if row.Confidence > 0 || row.Result > 0 {
		result := float64(row.Result) / 100
		in.Result = &result
	}

	// The strictest enabled provider of the instrument supplies the
	// threshold axis.
	providers, err := s.providers.ListEnabledByInstrument(ctx, nil, instrumentID)
	if err != nil {
		return nil, err
	}
	for _, provider := range providers {
		if provider.AlertBelow >= in.AlertBelow {
			in.Polarity = provider.Polarity()
			in.WarningBelow = provider.WarningBelow
			in.AlertBelow = provider.AlertBelow
		}
	}

	learnerHist, err := s.histograms.GetLearnerInstrument(ctx, nil, learnerID, instrumentID)
	if err != nil {
		return nil, err
	}
	if learnerHist != nil {
		in.LearnerBuckets = learnerHist.Buckets()
	}
	activityHist, err := s.histograms.GetActivityInstrument(ctx, nil, activityID, instrumentID)
	if err != nil {
		return nil, err
	}
	if activityHist != nil {
		in.ActivityBuckets = activityHist.Buckets()
	}
	return GetFacts(in), nil
}
