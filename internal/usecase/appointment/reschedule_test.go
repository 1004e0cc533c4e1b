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

func TestRequestReschedule(t *testing.T) {
	env := newTestEnv(t)
	ap := env.createConfirmedAppointment(t)

	reqResch := NewRequestReschedule(env.repo, env.audit, env.notify)
	reqResch.now = fixedNow

	got, err := reqResch.Execute(context.Background(), RequestRescheduleInput{
		Actor:            env.clientActor(),
		AppointmentID:    ap.ID,
		ProposedStartUtc: testMonday.Add(14 * time.Hour),
		ProposedEndUtc:   testMonday.Add(15 * time.Hour),
		Reason:           "compromisso de trabalho",
	})
	require.NoError(t, err)

	assert.Equal(t, string(domain.StatusRescheduleRequestedByClient), got.Status)
	require.NotNil(t, got.ProposedWindowStartUtc)
	assert.Equal(t, testMonday.Add(14*time.Hour), *got.ProposedWindowStartUtc)

	// janela original segue reservada até a resposta
	assert.Equal(t, testMonday.Add(9*time.Hour), got.WindowStartUtc)

	// segunda solicitação enquanto há uma pendente
	_, err = reqResch.Execute(context.Background(), RequestRescheduleInput{
		Actor:            env.providerActor(),
		AppointmentID:    ap.ID,
		ProposedStartUtc: testMonday.Add(16 * time.Hour),
		ProposedEndUtc:   testMonday.Add(17 * time.Hour),
	})
	assert.True(t, httperr.IsBusiness(err, "invalid_state"))
}

func TestRequestRescheduleRequiresConfirmedVisit(t *testing.T) {
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

	reqResch := NewRequestReschedule(env.repo, env.audit, env.notify)
	reqResch.now = fixedNow

	_, err = reqResch.Execute(context.Background(), RequestRescheduleInput{
		Actor:            env.clientActor(),
		AppointmentID:    ap.ID,
		ProposedStartUtc: testMonday.Add(14 * time.Hour),
		ProposedEndUtc:   testMonday.Add(15 * time.Hour),
	})
	assert.True(t, httperr.IsBusiness(err, "invalid_state"))
}

func TestRespondRescheduleOnlyCounterpart(t *testing.T) {
	env := newTestEnv(t)
	ap := env.createConfirmedAppointment(t)

	reqResch := NewRequestReschedule(env.repo, env.audit, env.notify)
	reqResch.now = fixedNow
	_, err := reqResch.Execute(context.Background(), RequestRescheduleInput{
		Actor:            env.clientActor(),
		AppointmentID:    ap.ID,
		ProposedStartUtc: testMonday.Add(14 * time.Hour),
		ProposedEndUtc:   testMonday.Add(15 * time.Hour),
	})
	require.NoError(t, err)

	respond := NewRespondReschedule(env.repo, env.locker, env.audit, env.notify)
	respond.now = fixedNow

	// quem pediu não pode aceitar a própria proposta
	_, err = respond.Execute(context.Background(), RespondRescheduleInput{
		Actor:         env.clientActor(),
		AppointmentID: ap.ID,
		Accept:        true,
	})
	assert.True(t, httperr.IsBusiness(err, "forbidden"))
}

func TestRespondRescheduleAccept(t *testing.T) {
	env := newTestEnv(t)
	ap := env.createConfirmedAppointment(t)

	reqResch := NewRequestReschedule(env.repo, env.audit, env.notify)
	reqResch.now = fixedNow
	_, err := reqResch.Execute(context.Background(), RequestRescheduleInput{
		Actor:            env.clientActor(),
		AppointmentID:    ap.ID,
		ProposedStartUtc: testMonday.Add(14 * time.Hour),
		ProposedEndUtc:   testMonday.Add(15 * time.Hour),
	})
	require.NoError(t, err)

	respond := NewRespondReschedule(env.repo, env.locker, env.audit, env.notify)
	respond.now = fixedNow

	got, err := respond.Execute(context.Background(), RespondRescheduleInput{
		Actor:         env.providerActor(),
		AppointmentID: ap.ID,
		Accept:        true,
	})
	require.NoError(t, err)

	assert.Equal(t, string(domain.StatusRescheduleConfirmed), got.Status)
	assert.Equal(t, testMonday.Add(14*time.Hour), got.WindowStartUtc)
	assert.Equal(t, testMonday.Add(15*time.Hour), got.WindowEndUtc)
	assert.Nil(t, got.ProposedWindowStartUtc)
	assert.Nil(t, got.RescheduleRequestedByRole)
}

func TestRespondRescheduleDeclineRestoresOriginalWindow(t *testing.T) {
	env := newTestEnv(t)
	ap := env.createConfirmedAppointment(t)

	reqResch := NewRequestReschedule(env.repo, env.audit, env.notify)
	reqResch.now = fixedNow
	_, err := reqResch.Execute(context.Background(), RequestRescheduleInput{
		Actor:            env.providerActor(),
		AppointmentID:    ap.ID,
		ProposedStartUtc: testMonday.Add(14 * time.Hour),
		ProposedEndUtc:   testMonday.Add(15 * time.Hour),
	})
	require.NoError(t, err)

	respond := NewRespondReschedule(env.repo, env.locker, env.audit, env.notify)
	respond.now = fixedNow

	got, err := respond.Execute(context.Background(), RespondRescheduleInput{
		Actor:         env.clientActor(),
		AppointmentID: ap.ID,
		Accept:        false,
		Reason:        "não posso nesse horário",
	})
	require.NoError(t, err)

	assert.Equal(t, string(domain.StatusConfirmed), got.Status)
	assert.Equal(t, testMonday.Add(9*time.Hour), got.WindowStartUtc)
	assert.Nil(t, got.ProposedWindowStartUtc)
}

func TestRespondRescheduleAcceptRevalidatesSchedule(t *testing.T) {
	env := newTestEnv(t)
	ap := env.createConfirmedAppointment(t)

	reqResch := NewRequestReschedule(env.repo, env.audit, env.notify)
	reqResch.now = fixedNow
	_, err := reqResch.Execute(context.Background(), RequestRescheduleInput{
		Actor:            env.clientActor(),
		AppointmentID:    ap.ID,
		ProposedStartUtc: testMonday.Add(14 * time.Hour),
		ProposedEndUtc:   testMonday.Add(15 * time.Hour),
	})
	require.NoError(t, err)

	// entre a proposta e o aceite, outra visita tomou a janela proposta
	_, otherRequest := env.newRequestFor(t, "meanwhile@example.com")
	taken := models.ServiceAppointment{
		ServiceRequestID: otherRequest.ID,
		ClientID:         env.client.ID,
		ProviderID:       env.provider.ID,
		WindowStartUtc:   testMonday.Add(14 * time.Hour),
		WindowEndUtc:     testMonday.Add(15 * time.Hour),
		Status:           string(domain.StatusConfirmed),
	}
	require.NoError(t, env.db.Create(&taken).Error)

	respond := NewRespondReschedule(env.repo, env.locker, env.audit, env.notify)
	respond.now = fixedNow

	_, err = respond.Execute(context.Background(), RespondRescheduleInput{
		Actor:         env.providerActor(),
		AppointmentID: ap.ID,
		Accept:        true,
	})
	assert.True(t, httperr.IsBusiness(err, "slot_unavailable"), "got %v", err)
}

func TestRespondRescheduleAcceptIgnoresOwnWindow(t *testing.T) {
	env := newTestEnv(t)
	ap := env.createConfirmedAppointment(t)

	reqResch := NewRequestReschedule(env.repo, env.audit, env.notify)
	reqResch.now = fixedNow

	// proposta sobrepondo a própria janela atual: 09:00-10:00 -> 09:30-10:30
	_, err := reqResch.Execute(context.Background(), RequestRescheduleInput{
		Actor:            env.clientActor(),
		AppointmentID:    ap.ID,
		ProposedStartUtc: testMonday.Add(9*time.Hour + 30*time.Minute),
		ProposedEndUtc:   testMonday.Add(10*time.Hour + 30*time.Minute),
	})
	require.NoError(t, err)

	respond := NewRespondReschedule(env.repo, env.locker, env.audit, env.notify)
	respond.now = fixedNow

	got, err := respond.Execute(context.Background(), RespondRescheduleInput{
		Actor:         env.providerActor(),
		AppointmentID: ap.ID,
		Accept:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, testMonday.Add(9*time.Hour+30*time.Minute), got.WindowStartUtc)
}
