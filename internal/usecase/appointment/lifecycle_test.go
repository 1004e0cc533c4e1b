package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/homerepairhub/repair-scheduler/internal/domain/appointment"
	"github.com/homerepairhub/repair-scheduler/internal/httperr"
	"github.com/homerepairhub/repair-scheduler/internal/models"
)

func TestConfirmAppointment(t *testing.T) {
	env := newTestEnv(t)
	create := env.newCreateAppointment()

	ap, err := create.Execute(context.Background(), CreateAppointmentInput{
		Actor:            env.clientActor(),
		ServiceRequestID: env.request.ID,
		ProviderID:       env.provider.ID,
		WindowStartUtc:   testMonday.Add(9 * time.Hour),
		WindowEndUtc:     testMonday.Add(10 * time.Hour),
	})
	require.NoError(t, err)

	confirm := NewConfirmAppointment(env.repo, env.audit, env.notify)
	confirm.now = fixedNow

	// só o prestador dono confirma
	_, err = confirm.Execute(context.Background(), env.clientActor(), ap.ID)
	assert.True(t, httperr.IsBusiness(err, "forbidden"))

	got, err := confirm.Execute(context.Background(), env.providerActor(), ap.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusConfirmed), got.Status)
	assert.Nil(t, got.ExpiresAt)
	require.NotNil(t, got.ConfirmedAt)

	// segunda confirmação é transição inválida
	_, err = confirm.Execute(context.Background(), env.providerActor(), ap.ID)
	assert.True(t, httperr.IsBusiness(err, "invalid_state"))
}

func TestConfirmAfterSLAExpires(t *testing.T) {
	env := newTestEnv(t)
	create := env.newCreateAppointment()

	ap, err := create.Execute(context.Background(), CreateAppointmentInput{
		Actor:            env.clientActor(),
		ServiceRequestID: env.request.ID,
		ProviderID:       env.provider.ID,
		WindowStartUtc:   testMonday.Add(14 * time.Hour),
		WindowEndUtc:     testMonday.Add(15 * time.Hour),
	})
	require.NoError(t, err)

	confirm := NewConfirmAppointment(env.repo, env.audit, env.notify)
	confirm.now = func() time.Time { return testMonday.Add(13 * time.Hour) } // SLA de 12h venceu

	_, err = confirm.Execute(context.Background(), env.providerActor(), ap.ID)
	assert.True(t, httperr.IsBusiness(err, "invalid_state"))

	// o sweeper preguiçoso expirou a visita na hora da tentativa
	var stored models.ServiceAppointment
	require.NoError(t, env.db.First(&stored, "id = ?", ap.ID).Error)
	assert.Equal(t, string(domain.StatusExpiredWithoutProviderAction), stored.Status)
}

func TestRejectAppointmentReopensRequest(t *testing.T) {
	env := newTestEnv(t)
	create := env.newCreateAppointment()

	ap, err := create.Execute(context.Background(), CreateAppointmentInput{
		Actor:            env.clientActor(),
		ServiceRequestID: env.request.ID,
		ProviderID:       env.provider.ID,
		WindowStartUtc:   testMonday.Add(9 * time.Hour),
		WindowEndUtc:     testMonday.Add(10 * time.Hour),
	})
	require.NoError(t, err)

	reject := NewRejectAppointment(env.repo, env.audit, env.notify)
	reject.now = fixedNow

	got, err := reject.Execute(context.Background(), env.providerActor(), ap.ID, "agenda cheia")
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusRejectedByProvider), got.Status)
	assert.Equal(t, "agenda cheia", got.RejectionReason)

	var request models.ServiceRequest
	require.NoError(t, env.db.First(&request, "id = ?", env.request.ID).Error)
	assert.Equal(t, models.RequestStatusOpen, request.Status)
}

func TestRejectAppointmentRequiresReason(t *testing.T) {
	env := newTestEnv(t)
	create := env.newCreateAppointment()

	ap, err := create.Execute(context.Background(), CreateAppointmentInput{
		Actor:            env.clientActor(),
		ServiceRequestID: env.request.ID,
		ProviderID:       env.provider.ID,
		WindowStartUtc:   testMonday.Add(9 * time.Hour),
		WindowEndUtc:     testMonday.Add(10 * time.Hour),
	})
	require.NoError(t, err)

	reject := NewRejectAppointment(env.repo, env.audit, env.notify)
	reject.now = fixedNow

	_, err = reject.Execute(context.Background(), env.providerActor(), ap.ID, "")
	assert.True(t, httperr.IsBusiness(err, "reason_required"))

	_, err = reject.Execute(context.Background(), env.providerActor(), ap.ID, "   ")
	assert.True(t, httperr.IsBusiness(err, "reason_required"))

	// nada mudou no banco
	var stored models.ServiceAppointment
	require.NoError(t, env.db.First(&stored, "id = ?", ap.ID).Error)
	assert.Equal(t, string(domain.StatusPendingProviderConfirmation), stored.Status)
}

func TestConfirmAppointmentByAdmin(t *testing.T) {
	env := newTestEnv(t)
	create := env.newCreateAppointment()

	ap, err := create.Execute(context.Background(), CreateAppointmentInput{
		Actor:            env.clientActor(),
		ServiceRequestID: env.request.ID,
		ProviderID:       env.provider.ID,
		WindowStartUtc:   testMonday.Add(9 * time.Hour),
		WindowEndUtc:     testMonday.Add(10 * time.Hour),
	})
	require.NoError(t, err)

	confirm := NewConfirmAppointment(env.repo, env.audit, env.notify)
	confirm.now = fixedNow

	got, err := confirm.Execute(context.Background(), adminActor(), ap.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusConfirmed), got.Status)
}

func TestCancelAppointment(t *testing.T) {
	env := newTestEnv(t)
	ap := env.createConfirmedAppointment(t)

	cancel := NewCancelAppointment(env.repo, env.audit, env.notify)
	cancel.now = fixedNow

	got, err := cancel.Execute(context.Background(), env.clientActor(), ap.ID, "imprevisto")
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusCancelledByClient), got.Status)

	// janela liberada, pedido volta à fila
	var request models.ServiceRequest
	require.NoError(t, env.db.First(&request, "id = ?", env.request.ID).Error)
	assert.Equal(t, models.RequestStatusOpen, request.Status)
}

func TestCancelAfterExecutionStartedFails(t *testing.T) {
	env := newTestEnv(t)
	ap := env.createConfirmedAppointment(t)

	arrive := NewMarkArrived(env.repo, env.audit, env.notify)
	arrive.now = fixedNow
	_, err := arrive.Execute(context.Background(), env.providerActor(), ap.ID)
	require.NoError(t, err)

	cancel := NewCancelAppointment(env.repo, env.audit, env.notify)
	cancel.now = fixedNow

	_, err = cancel.Execute(context.Background(), env.clientActor(), ap.ID, "desisti")
	assert.True(t, httperr.IsBusiness(err, "invalid_state"))
}

func TestArrivePresenceAndStart(t *testing.T) {
	env := newTestEnv(t)
	ap := env.createConfirmedAppointment(t)

	arrive := NewMarkArrived(env.repo, env.audit, env.notify)
	arrive.now = fixedNow

	got, err := arrive.Execute(context.Background(), env.providerActor(), ap.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusArrived), got.Status)
	require.NotNil(t, got.OperationalStatus)
	assert.Equal(t, string(domain.OpOnSite), *got.OperationalStatus)

	// check-in duplicado
	_, err = arrive.Execute(context.Background(), env.providerActor(), ap.ID)
	assert.True(t, httperr.IsBusiness(err, "duplicate_checkin"))

	presence := NewRespondPresence(env.repo, env.audit)
	presence.now = fixedNow
	got, err = presence.Execute(context.Background(), env.clientActor(), ap.ID, true)
	require.NoError(t, err)
	require.NotNil(t, got.PresenceConfirmedByClient)
	assert.True(t, *got.PresenceConfirmedByClient)

	start := NewStartExecution(env.repo, nil, env.audit, env.notify)
	start.now = fixedNow
	got, err = start.Execute(context.Background(), env.providerActor(), ap.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusInProgress), got.Status)
	assert.Equal(t, string(domain.OpInService), *got.OperationalStatus)

	_, err = start.Execute(context.Background(), env.providerActor(), ap.ID)
	assert.True(t, httperr.IsBusiness(err, "duplicate_start"))
}

func TestStartBeforeArrivalFails(t *testing.T) {
	env := newTestEnv(t)
	ap := env.createConfirmedAppointment(t)

	start := NewStartExecution(env.repo, nil, env.audit, env.notify)
	start.now = fixedNow

	_, err := start.Execute(context.Background(), env.providerActor(), ap.ID)
	assert.True(t, httperr.IsBusiness(err, "invalid_state"))
}

func TestUpdateOperationalStatus(t *testing.T) {
	env := newTestEnv(t)
	ap := env.createConfirmedAppointment(t)

	arrive := NewMarkArrived(env.repo, env.audit, env.notify)
	arrive.now = fixedNow
	_, err := arrive.Execute(context.Background(), env.providerActor(), ap.ID)
	require.NoError(t, err)

	start := NewStartExecution(env.repo, nil, env.audit, env.notify)
	start.now = fixedNow
	_, err = start.Execute(context.Background(), env.providerActor(), ap.ID)
	require.NoError(t, err)

	update := NewUpdateOperationalStatus(env.repo, env.audit)
	update.now = fixedNow

	got, err := update.Execute(context.Background(), env.providerActor(), ap.ID, "waiting_parts")
	require.NoError(t, err)
	assert.Equal(t, "waiting_parts", *got.OperationalStatus)

	got, err = update.Execute(context.Background(), env.providerActor(), ap.ID, "in_service")
	require.NoError(t, err)
	assert.Equal(t, "in_service", *got.OperationalStatus)

	// completed só sai pelo fluxo de PIN
	_, err = update.Execute(context.Background(), env.providerActor(), ap.ID, "completed")
	assert.True(t, httperr.IsBusiness(err, "invalid_state"))

	_, err = update.Execute(context.Background(), env.providerActor(), ap.ID, "teleported")
	assert.True(t, httperr.IsBusiness(err, "invalid_operational_status"))

	// waiting_parts não nasce de on_site
	_, err = update.Execute(context.Background(), env.providerActor(), ap.ID, "on_the_way")
	assert.True(t, httperr.IsBusiness(err, "invalid_operational_transition"))
}

func TestExpireAppointmentsSweep(t *testing.T) {
	env := newTestEnv(t)
	create := env.newCreateAppointment()

	ap, err := create.Execute(context.Background(), CreateAppointmentInput{
		Actor:            env.clientActor(),
		ServiceRequestID: env.request.ID,
		ProviderID:       env.provider.ID,
		WindowStartUtc:   testMonday.Add(9 * time.Hour),
		WindowEndUtc:     testMonday.Add(10 * time.Hour),
	})
	require.NoError(t, err)

	expire := NewExpireAppointments(env.repo, env.audit, env.notify)

	// antes do SLA nada expira
	expire.now = func() time.Time { return testMonday.Add(11 * time.Hour) }
	n, err := expire.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	expire.now = func() time.Time { return testMonday.Add(13 * time.Hour) }
	n, err = expire.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var stored models.ServiceAppointment
	require.NoError(t, env.db.First(&stored, "id = ?", ap.ID).Error)
	assert.Equal(t, string(domain.StatusExpiredWithoutProviderAction), stored.Status)

	var request models.ServiceRequest
	require.NoError(t, env.db.First(&request, "id = ?", env.request.ID).Error)
	assert.Equal(t, models.RequestStatusOpen, request.Status)

	// história registra o ator de sistema
	var history []models.AppointmentHistory
	require.NoError(t, env.db.Where("appointment_id = ?", ap.ID).
		Order("id ASC").Find(&history).Error)
	require.NotEmpty(t, history)
	assert.Equal(t, "system", history[len(history)-1].ActorRole)
}

func TestExpireElapsedConfirmedWithoutCheckin(t *testing.T) {
	env := newTestEnv(t)
	ap := env.createConfirmedAppointment(t)

	expire := NewExpireAppointments(env.repo, env.audit, env.notify)
	expire.now = func() time.Time { return ap.WindowEndUtc.Add(time.Hour) }

	n, err := expire.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var stored models.ServiceAppointment
	require.NoError(t, env.db.First(&stored, "id = ?", ap.ID).Error)
	assert.Equal(t, string(domain.StatusExpiredWithoutProviderAction), stored.Status)
}
