package scopechange

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/homerepairhub/repair-scheduler/internal/audit"
	"github.com/homerepairhub/repair-scheduler/internal/auth"
	domain "github.com/homerepairhub/repair-scheduler/internal/domain/appointment"
	"github.com/homerepairhub/repair-scheduler/internal/httperr"
	"github.com/homerepairhub/repair-scheduler/internal/infra/repository"
	"github.com/homerepairhub/repair-scheduler/internal/models"
	"github.com/homerepairhub/repair-scheduler/internal/notification"
)

var testMonday = time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testMonday }

// fakeStore records saves and deletes in memory.
type fakeStore struct {
	saved   []string
	deleted []string
}

func (s *fakeStore) Save(ctx context.Context, r io.Reader, filename string, folder string) (string, error) {
	key := fmt.Sprintf("%s/%s", folder, filename)
	s.saved = append(s.saved, key)
	return key, nil
}

func (s *fakeStore) Delete(ctx context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	return nil
}

type testEnv struct {
	db     *gorm.DB
	repo   *repository.AppointmentGormRepository
	audit  *audit.Dispatcher
	notify *notification.Dispatcher

	client      models.User
	provider    models.User
	appointment models.ServiceAppointment
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.ServiceRequest{},
		&models.ServiceAppointment{},
		&models.ScopeChangeRequest{},
		&models.ScopeChangeAttachment{},
		&models.AuditLog{},
		&models.PushSubscription{},
	))

	env := &testEnv{
		db:     db,
		repo:   repository.NewAppointmentGormRepository(db),
		audit:  audit.NewDispatcher(audit.New(db)),
		notify: notification.NewDispatcher(db, nil, "", "", ""),
	}

	env.client = models.User{
		Name: "Cliente", Email: "client@example.com",
		Role: string(auth.RoleClient), Timezone: "UTC", IsActive: true,
	}
	require.NoError(t, db.Create(&env.client).Error)

	env.provider = models.User{
		Name: "Prestador", Email: "provider@example.com",
		Role: string(auth.RoleProvider), Timezone: "UTC", IsActive: true,
	}
	require.NoError(t, db.Create(&env.provider).Error)

	request := models.ServiceRequest{
		ClientID: env.client.ID,
		Category: "plumbing",
		Status:   models.RequestStatusScheduled,
	}
	require.NoError(t, db.Create(&request).Error)

	// serviço em andamento, condição para propor mudança de escopo
	env.appointment = models.ServiceAppointment{
		ServiceRequestID: request.ID,
		ClientID:         env.client.ID,
		ProviderID:       env.provider.ID,
		WindowStartUtc:   testMonday.Add(9 * time.Hour),
		WindowEndUtc:     testMonday.Add(10 * time.Hour),
		Status:           string(domain.StatusInProgress),
	}
	require.NoError(t, db.Create(&env.appointment).Error)

	return env
}

func (e *testEnv) clientActor() auth.Actor {
	return auth.Actor{UserID: e.client.ID, Role: auth.RoleClient}
}

func (e *testEnv) providerActor() auth.Actor {
	return auth.Actor{UserID: e.provider.ID, Role: auth.RoleProvider}
}

func (e *testEnv) newCreate() *CreateScopeChange {
	uc := NewCreateScopeChange(e.repo, e.repo, e.audit, e.notify, 24*time.Hour)
	uc.now = fixedNow
	return uc
}

func (e *testEnv) createPending(t *testing.T) *models.ScopeChangeRequest {
	t.Helper()

	delta := 80.0
	sc, err := e.newCreate().Execute(context.Background(), CreateScopeChangeInput{
		Actor:               e.providerActor(),
		AppointmentID:       e.appointment.ID,
		Reason:              "cano adicional comprometido",
		Description:         "a troca do sifão expôs um cano corroído que precisa ser substituído",
		EstimatedValueDelta: &delta,
	})
	require.NoError(t, err)
	return sc
}

func TestCreateScopeChange(t *testing.T) {
	env := newTestEnv(t)
	sc := env.createPending(t)

	assert.Equal(t, models.ScopeChangeStatusPending, sc.Status)
	assert.Equal(t, string(auth.RoleProvider), sc.RequestedByRole)
	assert.Equal(t, testMonday.Add(24*time.Hour), sc.ExpiresAt)
}

func TestCreateScopeChangeFieldValidation(t *testing.T) {
	env := newTestEnv(t)
	create := env.newCreate()

	zero := 0.0
	huge := 200000.0

	testCases := []struct {
		name string
		in   CreateScopeChangeInput
		code string
	}{
		{
			"blank reason",
			CreateScopeChangeInput{Actor: env.providerActor(), AppointmentID: env.appointment.ID, Reason: "   ", Description: "detalhes"},
			"invalid_scope_change_reason",
		},
		{
			"blank description",
			CreateScopeChangeInput{Actor: env.providerActor(), AppointmentID: env.appointment.ID, Reason: "motivo", Description: ""},
			"invalid_scope_change_description",
		},
		{
			"reason too long",
			CreateScopeChangeInput{Actor: env.providerActor(), AppointmentID: env.appointment.ID, Reason: strings.Repeat("x", 501), Description: "detalhes"},
			"invalid_scope_change_reason",
		},
		{
			"zero delta",
			CreateScopeChangeInput{Actor: env.providerActor(), AppointmentID: env.appointment.ID, Reason: "motivo", Description: "detalhes", EstimatedValueDelta: &zero},
			"invalid_scope_change_value",
		},
		{
			"delta beyond cap",
			CreateScopeChangeInput{Actor: env.providerActor(), AppointmentID: env.appointment.ID, Reason: "motivo", Description: "detalhes", EstimatedValueDelta: &huge},
			"invalid_scope_change_value",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := create.Execute(context.Background(), tc.in)
			assert.True(t, httperr.IsBusiness(err, tc.code), "got %v", err)
		})
	}
}

func TestCreateScopeChangeRequiresInProgress(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.db.Model(&models.ServiceAppointment{}).
		Where("id = ?", env.appointment.ID).
		Update("status", string(domain.StatusConfirmed)).Error)

	_, err := env.newCreate().Execute(context.Background(), CreateScopeChangeInput{
		Actor:         env.providerActor(),
		AppointmentID: env.appointment.ID,
		Reason:        "motivo",
		Description:   "detalhes",
	})
	assert.True(t, httperr.IsBusiness(err, "invalid_state"))
}

func TestCreateScopeChangeSinglePending(t *testing.T) {
	env := newTestEnv(t)
	env.createPending(t)

	_, err := env.newCreate().Execute(context.Background(), CreateScopeChangeInput{
		Actor:         env.clientActor(),
		AppointmentID: env.appointment.ID,
		Reason:        "outro motivo",
		Description:   "outros detalhes",
	})
	assert.True(t, httperr.IsBusiness(err, "scope_change_pending"))
}

func TestCreateScopeChangeLazyExpiresStalePending(t *testing.T) {
	env := newTestEnv(t)
	stale := env.createPending(t)

	create := env.newCreate()
	create.now = func() time.Time { return testMonday.Add(25 * time.Hour) }

	sc, err := create.Execute(context.Background(), CreateScopeChangeInput{
		Actor:         env.clientActor(),
		AppointmentID: env.appointment.ID,
		Reason:        "novo motivo",
		Description:   "novos detalhes",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ScopeChangeStatusPending, sc.Status)

	var old models.ScopeChangeRequest
	require.NoError(t, env.db.First(&old, "id = ?", stale.ID).Error)
	assert.Equal(t, models.ScopeChangeStatusExpired, old.Status)
}

func TestRespondScopeChange(t *testing.T) {
	env := newTestEnv(t)
	sc := env.createPending(t)

	respond := NewRespondScopeChange(env.repo, env.repo, env.audit, env.notify)
	respond.now = fixedNow

	// quem propôs não decide
	_, err := respond.Execute(context.Background(), RespondScopeChangeInput{
		Actor:         env.providerActor(),
		ScopeChangeID: sc.ID,
		Approve:       true,
	})
	assert.True(t, httperr.IsBusiness(err, "forbidden"))

	got, err := respond.Execute(context.Background(), RespondScopeChangeInput{
		Actor:         env.clientActor(),
		ScopeChangeID: sc.ID,
		Approve:       true,
		Reason:        "pode fazer",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ScopeChangeStatusApproved, got.Status)
	require.NotNil(t, got.DecidedAt)

	// decisão é única
	_, err = respond.Execute(context.Background(), RespondScopeChangeInput{
		Actor:         env.clientActor(),
		ScopeChangeID: sc.ID,
		Approve:       false,
	})
	assert.True(t, httperr.IsBusiness(err, "invalid_state"))
}

func TestRespondScopeChangeAfterDeadline(t *testing.T) {
	env := newTestEnv(t)
	sc := env.createPending(t)

	respond := NewRespondScopeChange(env.repo, env.repo, env.audit, env.notify)
	respond.now = func() time.Time { return testMonday.Add(25 * time.Hour) }

	_, err := respond.Execute(context.Background(), RespondScopeChangeInput{
		Actor:         env.clientActor(),
		ScopeChangeID: sc.ID,
		Approve:       true,
	})
	assert.True(t, httperr.IsBusiness(err, "scope_change_expired"))

	var stored models.ScopeChangeRequest
	require.NoError(t, env.db.First(&stored, "id = ?", sc.ID).Error)
	assert.Equal(t, models.ScopeChangeStatusExpired, stored.Status)
}

func TestExpireScopeChangesSweep(t *testing.T) {
	env := newTestEnv(t)
	env.createPending(t)

	expire := NewExpireScopeChanges(env.repo)

	expire.now = func() time.Time { return testMonday.Add(time.Hour) }
	n, err := expire.Execute(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	expire.now = func() time.Time { return testMonday.Add(25 * time.Hour) }
	n, err = expire.Execute(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestAddAttachment(t *testing.T) {
	env := newTestEnv(t)
	sc := env.createPending(t)

	store := &fakeStore{}
	add := NewAddAttachment(env.repo, env.repo, store, env.audit)
	add.now = fixedNow

	att, err := add.Execute(context.Background(), AddAttachmentInput{
		Actor:         env.providerActor(),
		ScopeChangeID: sc.ID,
		FileName:      "orcamento.pdf",
		ContentType:   "application/pdf",
		SizeBytes:     1024,
		Content:       strings.NewReader("%PDF-1.4 fake"),
	})
	require.NoError(t, err)
	assert.Equal(t, "scope-changes/orcamento.pdf", att.StorageKey)
	assert.Len(t, store.saved, 1)
}

func TestAddAttachmentValidation(t *testing.T) {
	env := newTestEnv(t)
	sc := env.createPending(t)

	store := &fakeStore{}
	add := NewAddAttachment(env.repo, env.repo, store, env.audit)
	add.now = fixedNow

	// tipo não permitido
	_, err := add.Execute(context.Background(), AddAttachmentInput{
		Actor:         env.providerActor(),
		ScopeChangeID: sc.ID,
		FileName:      "notas.txt",
		ContentType:   "text/plain",
		SizeBytes:     10,
		Content:       strings.NewReader("notas"),
	})
	assert.True(t, httperr.IsBusiness(err, "invalid_attachment"))

	// acima do teto de tamanho
	_, err = add.Execute(context.Background(), AddAttachmentInput{
		Actor:         env.providerActor(),
		ScopeChangeID: sc.ID,
		FileName:      "grande.pdf",
		ContentType:   "application/pdf",
		SizeBytes:     26 << 20,
		Content:       strings.NewReader("x"),
	})
	assert.True(t, httperr.IsBusiness(err, "invalid_attachment"))

	assert.Empty(t, store.saved)
}

func TestAddAttachmentLimit(t *testing.T) {
	env := newTestEnv(t)
	sc := env.createPending(t)

	store := &fakeStore{}
	add := NewAddAttachment(env.repo, env.repo, store, env.audit)
	add.now = fixedNow

	for i := 0; i < 5; i++ {
		_, err := add.Execute(context.Background(), AddAttachmentInput{
			Actor:         env.providerActor(),
			ScopeChangeID: sc.ID,
			FileName:      fmt.Sprintf("foto-%d.pdf", i),
			ContentType:   "application/pdf",
			SizeBytes:     100,
			Content:       strings.NewReader("conteudo"),
		})
		require.NoError(t, err)
	}

	_, err := add.Execute(context.Background(), AddAttachmentInput{
		Actor:         env.providerActor(),
		ScopeChangeID: sc.ID,
		FileName:      "foto-6.pdf",
		ContentType:   "application/pdf",
		SizeBytes:     100,
		Content:       strings.NewReader("conteudo"),
	})
	assert.True(t, httperr.IsBusiness(err, "attachment_limit_exceeded"))
}

func TestListScopeChanges(t *testing.T) {
	env := newTestEnv(t)
	sc := env.createPending(t)

	list := NewListScopeChanges(env.repo, env.repo)

	got, err := list.Execute(context.Background(), env.clientActor(), env.appointment.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, sc.ID, got[0].ID)

	stranger := auth.Actor{UserID: uuid.New(), Role: auth.RoleClient}
	_, err = list.Execute(context.Background(), stranger, env.appointment.ID)
	assert.True(t, httperr.IsBusiness(err, "forbidden"))
}
