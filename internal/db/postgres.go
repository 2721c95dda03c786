package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tesla-ce/trust-backend/internal/logger"
	"github.com/tesla-ce/trust-backend/internal/types"
	"github.com/tesla-ce/trust-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	driver := utils.GetEnv("DB_DRIVER", "postgres", log)
	if driver == "sqlite" {
		// Local development only.
		path := utils.GetEnv("SQLITE_PATH", "trust.db", log)
		sqliteDB, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		return &PostgresService{db: sqliteDB, log: serviceLog}, nil
	}

	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "tesla", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	log.Info("Connecting to Postgres...")
	gormDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	if err := gormDB.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return nil, fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: gormDB, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...")
	err := s.db.AutoMigrate(
		&types.Institution{},
		&types.Learner{},
		&types.InformedConsent{},
		&types.Instrument{},
		&types.Provider{},
		&types.Activity{},
		&types.ActivityInstrument{},
		&types.AssessmentSession{},
		&types.SENDCategory{},
		&types.SENDLearner{},
		&types.Enrolment{},
		&types.EnrolmentModelSample{},
		&types.EnrolmentSample{},
		&types.EnrolmentSampleInstrument{},
		&types.EnrolmentSampleValidation{},
		&types.Request{},
		&types.RequestInstrument{},
		&types.RequestResult{},
		&types.RequestProviderResult{},
		&types.ReportActivity{},
		&types.ReportActivityInstrument{},
		&types.HistogramLearnerInstrument{},
		&types.HistogramLearnerProvider{},
		&types.HistogramActivityInstrument{},
		&types.HistogramActivityProvider{},
		&types.ProviderNotification{},
		&types.TaskRun{},
	)
	if err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}

	// Child rows are exclusively owned by their parent learner/activity.
	constraints := []struct {
		name   string
		table  string
		column string
		ref    string
	}{
		{"fk_learner_institution", "learner", "institution_id", "institution"},
		{"fk_enrolment_learner", "enrolment", "learner_id", "learner"},
		{"fk_enrolment_provider", "enrolment", "provider_id", "provider"},
		{"fk_sample_learner", "enrolment_sample", "learner_id", "learner"},
		{"fk_validation_sample", "enrolment_sample_validation", "sample_id", "enrolment_sample"},
		{"fk_validation_provider", "enrolment_sample_validation", "provider_id", "provider"},
		{"fk_request_learner", "request", "learner_id", "learner"},
		{"fk_request_activity", "request", "activity_id", "activity"},
		{"fk_request_result_request", "request_result", "request_id", "request"},
		{"fk_provider_result_request", "request_provider_result", "request_id", "request"},
		{"fk_provider_result_provider", "request_provider_result", "provider_id", "provider"},
		{"fk_report_activity", "report_activity", "activity_id", "activity"},
		{"fk_report_learner", "report_activity", "learner_id", "learner"},
		{"fk_report_instrument_report", "report_activity_instrument", "report_id", "report_activity"},
		{"fk_notification_provider", "provider_notification", "provider_id", "provider"},
		{"fk_send_learner_learner", "send_learner", "learner_id", "learner"},
		{"fk_send_learner_category", "send_learner", "category_id", "send_category"},
	}
	for _, c := range constraints {
		stmt := fmt.Sprintf(`
			ALTER TABLE %q
			ADD CONSTRAINT %q
			FOREIGN KEY (%q)
			REFERENCES %q("id")
			ON DELETE CASCADE
		`, c.table, c.name, c.column, c.ref)
		if err := s.db.Exec(stmt).Error; err != nil {
			s.log.Warn("Could not add constraint", "constraint", c.name, "error", err)
		}
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
