package db

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/homerepairhub/repair-scheduler/internal/models"
)

func Connect(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.ServiceRequest{},
		&models.ServiceProposal{},
		&models.ServiceAppointment{},
		&models.AppointmentHistory{},
		&models.AvailabilityRule{},
		&models.AvailabilityException{},
		&models.ScopeChangeRequest{},
		&models.ScopeChangeAttachment{},
		&models.CompletionTerm{},
		&models.ChecklistTemplate{},
		&models.ChecklistItem{},
		&models.ChecklistResponse{},
		&models.PushSubscription{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	if err := ensureExclusionConstraint(db); err != nil {
		return err
	}

	log.Println("database migrations applied")
	return nil
}

// ensureExclusionConstraint installs the storage-level guard against two
// blocking appointments of the same provider sharing any instant. Statuses
// listed here must stay in sync with the blocking set of the domain package.
func ensureExclusionConstraint(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS btree_gist`).Error; err != nil {
		return fmt.Errorf("installing btree_gist: %w", err)
	}

	const stmt = `
DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1 FROM pg_constraint WHERE conname = 'service_appointments_no_overlap'
	) THEN
		ALTER TABLE service_appointments
			ADD CONSTRAINT service_appointments_no_overlap
			EXCLUDE USING gist (
				provider_id WITH =,
				tsrange(window_start_utc, window_end_utc) WITH &&
			)
			WHERE (status IN (
				'pending_provider_confirmation',
				'confirmed',
				'reschedule_requested_by_client',
				'reschedule_requested_by_provider',
				'reschedule_confirmed',
				'arrived',
				'in_progress'
			));
	END IF;
END
$$;`

	if err := db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("installing overlap constraint: %w", err)
	}
	return nil
}
