package appointment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/homerepairhub/repair-scheduler/internal/audit"
	"github.com/homerepairhub/repair-scheduler/internal/auth"
	"github.com/homerepairhub/repair-scheduler/internal/infra/repository"
	"github.com/homerepairhub/repair-scheduler/internal/locking"
	"github.com/homerepairhub/repair-scheduler/internal/models"
	"github.com/homerepairhub/repair-scheduler/internal/notification"
)

// testMonday is a Monday far in the future so windows are never "in the past".
var testMonday = time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testMonday }

type testEnv struct {
	db     *gorm.DB
	repo   *repository.AppointmentGormRepository
	locker locking.Locker
	audit  *audit.Dispatcher
	notify *notification.Dispatcher

	client   models.User
	provider models.User
	request  models.ServiceRequest
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// sqlite em memória: uma conexão serializa as escritas
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
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
		&models.AuditLog{},
		&models.PushSubscription{},
	))
	return db
}

// newTestEnv seeds the usual cast: an active provider working Mondays
// 08:00-18:00 UTC, a client, an open request and an accepted proposal.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)

	env := &testEnv{
		db:     db,
		repo:   repository.NewAppointmentGormRepository(db),
		locker: locking.NewMemoryLocker(),
		audit:  audit.NewDispatcher(audit.New(db)),
		notify: notification.NewDispatcher(db, nil, "", "", ""),
	}

	env.provider = models.User{
		Name:     "Prestador",
		Email:    "provider@example.com",
		Role:     string(auth.RoleProvider),
		Timezone: "UTC",
		IsActive: true,
	}
	require.NoError(t, db.Create(&env.provider).Error)

	env.client = models.User{
		Name:     "Cliente",
		Email:    "client@example.com",
		Role:     string(auth.RoleClient),
		Timezone: "UTC",
		IsActive: true,
	}
	require.NoError(t, db.Create(&env.client).Error)

	env.request = models.ServiceRequest{
		ClientID: env.client.ID,
		Category: "plumbing",
		Status:   models.RequestStatusOpen,
	}
	require.NoError(t, db.Create(&env.request).Error)

	require.NoError(t, db.Create(&models.ServiceProposal{
		ServiceRequestID: env.request.ID,
		ProviderID:       env.provider.ID,
		Amount:           150,
		Accepted:         true,
	}).Error)

	require.NoError(t, db.Create(&models.AvailabilityRule{
		ProviderID:          env.provider.ID,
		Weekday:             int(time.Monday),
		StartTime:           "08:00",
		EndTime:             "18:00",
		SlotDurationMinutes: 60,
	}).Error)

	return env
}

func (e *testEnv) clientActor() auth.Actor {
	return auth.Actor{UserID: e.client.ID, Role: auth.RoleClient}
}

func (e *testEnv) providerActor() auth.Actor {
	return auth.Actor{UserID: e.provider.ID, Role: auth.RoleProvider}
}

func adminActor() auth.Actor {
	return auth.Actor{UserID: uuid.New(), Role: auth.RoleAdmin}
}

// newRequestFor seeds another client with an open request and an accepted
// proposal towards the shared provider.
func (e *testEnv) newRequestFor(t *testing.T, email string) (models.User, models.ServiceRequest) {
	t.Helper()

	client := models.User{
		Name:     "Outro Cliente",
		Email:    email,
		Role:     string(auth.RoleClient),
		Timezone: "UTC",
		IsActive: true,
	}
	require.NoError(t, e.db.Create(&client).Error)

	request := models.ServiceRequest{
		ClientID: client.ID,
		Category: "electrical",
		Status:   models.RequestStatusOpen,
	}
	require.NoError(t, e.db.Create(&request).Error)

	require.NoError(t, e.db.Create(&models.ServiceProposal{
		ServiceRequestID: request.ID,
		ProviderID:       e.provider.ID,
		Amount:           200,
		Accepted:         true,
	}).Error)

	return client, request
}

func (e *testEnv) newCreateAppointment() *CreateAppointment {
	uc := NewCreateAppointment(e.repo, e.locker, e.audit, e.notify, 12*time.Hour)
	uc.now = fixedNow
	return uc
}

func (e *testEnv) createConfirmedAppointment(t *testing.T) *models.ServiceAppointment {
	t.Helper()

	create := e.newCreateAppointment()
	ap, err := create.Execute(context.Background(), CreateAppointmentInput{
		Actor:            e.clientActor(),
		ServiceRequestID: e.request.ID,
		ProviderID:       e.provider.ID,
		WindowStartUtc:   testMonday.Add(9 * time.Hour),
		WindowEndUtc:     testMonday.Add(10 * time.Hour),
	})
	require.NoError(t, err)

	confirm := NewConfirmAppointment(e.repo, e.audit, e.notify)
	confirm.now = fixedNow
	ap, err = confirm.Execute(context.Background(), e.providerActor(), ap.ID)
	require.NoError(t, err)
	return ap
}
