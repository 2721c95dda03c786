package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tesla-ce/trust-backend/internal/logger"
	"github.com/tesla-ce/trust-backend/internal/types"
)

type ReportRepo interface {
	Create(ctx context.Context, tx *gorm.DB, reports []*types.ReportActivity) ([]*types.ReportActivity, error)
	GetByActivityLearner(ctx context.Context, tx *gorm.DB, activityID, learnerID uuid.UUID) (*types.ReportActivity, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error

	CreateInstrumentRows(ctx context.Context, tx *gorm.DB, rows []*types.ReportActivityInstrument) ([]*types.ReportActivityInstrument, error)
	GetInstrumentRow(ctx context.Context, tx *gorm.DB, reportID, instrumentID uuid.UUID) (*types.ReportActivityInstrument, error)
	ListInstrumentRows(ctx context.Context, tx *gorm.DB, reportID uuid.UUID) ([]*types.ReportActivityInstrument, error)
	UpdateInstrumentRowFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type reportRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReportRepo(db *gorm.DB, baseLog *logger.Logger) ReportRepo {
	return &reportRepo{db: db, log: baseLog.With("repo", "ReportRepo")}
}

func (r *reportRepo) Create(ctx context.Context, tx *gorm.DB, reports []*types.ReportActivity) ([]*types.ReportActivity, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(reports) == 0 {
		return []*types.ReportActivity{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

func (r *reportRepo) GetByActivityLearner(ctx context.Context, tx *gorm.DB, activityID, learnerID uuid.UUID) (*types.ReportActivity, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var report types.ReportActivity
	err := transaction.WithContext(ctx).
		Where("activity_id = ? AND learner_id = ?", activityID, learnerID).
		Limit(1).
		Find(&report).Error
	if err != nil {
		return nil, err
	}
	if report.ID == uuid.Nil {
		return nil, nil
	}
	return &report, nil
}

func (r *reportRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.ReportActivity{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *reportRepo) CreateInstrumentRows(ctx context.Context, tx *gorm.DB, rows []*types.ReportActivityInstrument) ([]*types.ReportActivityInstrument, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.ReportActivityInstrument{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *reportRepo) GetInstrumentRow(ctx context.Context, tx *gorm.DB, reportID, instrumentID uuid.UUID) (*types.ReportActivityInstrument, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.ReportActivityInstrument
	err := transaction.WithContext(ctx).
		Where("report_id = ? AND instrument_id = ?", reportID, instrumentID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *reportRepo) ListInstrumentRows(ctx context.Context, tx *gorm.DB, reportID uuid.UUID) ([]*types.ReportActivityInstrument, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ReportActivityInstrument
	if err := transaction.WithContext(ctx).
		Where("report_id = ?", reportID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reportRepo) UpdateInstrumentRowFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.ReportActivityInstrument{}).
		Where("id = ?", id).
		Updates(updates).Error
}
