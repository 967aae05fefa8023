// Package migrations owns the Postgres schema the repositories query.
package migrations

import (
	"fmt"
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects gorm for schema work only. Request paths use pgxpool.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Warn),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetConnMaxLifetime(time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return db, nil
}

// Migrate applies every pending migration in order.
func Migrate(db *gorm.DB) error {
	return gormigrate.New(db, gormigrate.DefaultOptions, All()).Migrate()
}

// RollbackLast reverts the most recently applied migration.
func RollbackLast(db *gorm.DB) error {
	return gormigrate.New(db, gormigrate.DefaultOptions, All()).RollbackLast()
}

// All lists the migrations in application order.
func All() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		createTable("000001_create_phone_numbers", &phoneNumberModel{},
			`CREATE INDEX IF NOT EXISTS idx_phone_numbers_active_region ON phone_numbers (region) WHERE is_active`,
		),
		createTable("000002_create_caller_id_assignments", &assignmentModel{},
			`CREATE INDEX IF NOT EXISTS idx_assignments_created_number ON caller_id_assignments (created_at, phone_number_id)`,
			`CREATE INDEX IF NOT EXISTS idx_assignments_agent ON caller_id_assignments (agent_id, created_at)`,
		),
		createTable("000003_create_profiles", &profileModel{}),
		createTable("000004_create_contacts", &contactModel{}),
		createTable("000005_create_interactions", &interactionModel{},
			`CREATE INDEX IF NOT EXISTS idx_interactions_contact_created ON interactions (contact_id, created_at DESC)`,
		),
		createTable("000006_create_call_logs", &callLogModel{},
			`CREATE INDEX IF NOT EXISTS idx_call_logs_contact_started ON call_logs (contact_id, started_at DESC)`,
		),
		createTable("000007_create_call_quality_metrics", &qualitySampleModel{},
			`CREATE INDEX IF NOT EXISTS idx_quality_call_sid ON call_quality_metrics (call_sid)`,
			`CREATE INDEX IF NOT EXISTS idx_quality_created ON call_quality_metrics (created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_quality_number_created ON call_quality_metrics (phone_number_id, created_at) WHERE phone_number_id IS NOT NULL`,
		),
		createTable("000008_create_transcripts", &transcriptModel{},
			`CREATE INDEX IF NOT EXISTS idx_transcripts_call_created ON transcripts (call_sid, created_at)`,
		),
		createTable("000009_create_ai_analysis", &analysisModel{},
			`CREATE INDEX IF NOT EXISTS idx_ai_analysis_call ON ai_analysis (call_sid) WHERE call_sid IS NOT NULL`,
		),
	}
}

func createTable(id string, model any, indexes ...string) *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: id,
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(model); err != nil {
				return err
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(model)
		},
	}
}
