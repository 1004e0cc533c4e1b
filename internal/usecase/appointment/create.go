package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/homerepairhub/repair-scheduler/internal/audit"
	"github.com/homerepairhub/repair-scheduler/internal/auth"
	domain "github.com/homerepairhub/repair-scheduler/internal/domain/appointment"
	"github.com/homerepairhub/repair-scheduler/internal/httperr"
	"github.com/homerepairhub/repair-scheduler/internal/locking"
	"github.com/homerepairhub/repair-scheduler/internal/models"
	"github.com/homerepairhub/repair-scheduler/internal/notification"
	"github.com/homerepairhub/repair-scheduler/internal/timezone"
)

// ======================================================
// INPUT
// ======================================================

type CreateAppointmentInput struct {
	Actor auth.Actor

	ServiceRequestID uuid.UUID
	ProviderID       uuid.UUID

	WindowStartUtc time.Time
	WindowEndUtc   time.Time

	Reason string
}

// ======================================================
// USE CASE
// ======================================================

type CreateAppointment struct {
	repo   domain.Repository
	locker locking.Locker
	audit  *audit.Dispatcher
	notify *notification.Dispatcher

	confirmationSLA time.Duration

	// injetável nos testes
	now func() time.Time
}

func NewCreateAppointment(
	repo domain.Repository,
	locker locking.Locker,
	auditD *audit.Dispatcher,
	notify *notification.Dispatcher,
	confirmationSLA time.Duration,
) *CreateAppointment {
	return &CreateAppointment{
		repo:            repo,
		locker:          locker,
		audit:           auditD,
		notify:          notify,
		confirmationSLA: confirmationSLA,
		now:             time.Now,
	}
}

// LockKey is the serialization key for reservations of one provider-day.
func LockKey(providerID uuid.UUID, windowStart time.Time) string {
	return fmt.Sprintf("appt:lock:%s:%s", providerID, windowStart.UTC().Format("20060102"))
}

// ======================================================
// EXECUTE
// ======================================================

func (uc *CreateAppointment) Execute(
	ctx context.Context,
	in CreateAppointmentInput,
) (*models.ServiceAppointment, error) {

	if !in.Actor.IsClient() && !in.Actor.IsAdmin() {
		return nil, httperr.ErrBusiness("forbidden")
	}

	now := uc.now().UTC()

	// --------------------------------------------------
	// 1️⃣ Janela solicitada
	// --------------------------------------------------
	window := domain.Window{Start: in.WindowStartUtc.UTC(), End: in.WindowEndUtc.UTC()}
	if err := validateRequestedWindow(window, now); err != nil {
		return nil, err
	}

	// --------------------------------------------------
	// 2️⃣ Prestador
	// --------------------------------------------------
	provider, err := uc.repo.GetUserByID(ctx, in.ProviderID)
	if err != nil || provider.Role != string(auth.RoleProvider) || !provider.IsActive {
		return nil, httperr.ErrBusiness("provider_not_found")
	}

	// --------------------------------------------------
	// 3️⃣ Pedido + proposta aceita
	// --------------------------------------------------
	request, err := uc.repo.GetServiceRequestByID(ctx, in.ServiceRequestID)
	if err != nil {
		return nil, httperr.ErrBusiness("request_not_found")
	}
	if !in.Actor.IsAdmin() && request.ClientID != in.Actor.UserID {
		return nil, httperr.ErrBusiness("forbidden")
	}
	if request.Status == models.RequestStatusCompleted || request.Status == models.RequestStatusCancelled {
		return nil, httperr.ErrBusiness("invalid_state")
	}

	if _, err := uc.repo.GetAcceptedProposal(ctx, request.ID, provider.ID); err != nil {
		return nil, httperr.ErrBusiness("proposal_not_accepted")
	}

	// --------------------------------------------------
	// 4️⃣ Seção crítica: um dia do prestador por vez
	// --------------------------------------------------
	var ap *models.ServiceAppointment

	lockErr := uc.locker.WithLock(ctx, LockKey(provider.ID, window.Start), func() error {

		// pedido já agendado?
		if existing, err := uc.repo.GetBlockingAppointmentByRequest(ctx, request.ID); err == nil && existing != nil {
			return httperr.ErrBusiness("appointment_already_exists")
		}

		loc := timezone.Location(provider.Timezone)

		rules, err := uc.repo.ListAvailabilityRules(ctx, provider.ID)
		if err != nil {
			return err
		}
		if !domain.WindowWithinRules(rules, window, loc) {
			return httperr.ErrBusiness("slot_unavailable")
		}

		exceptions, err := uc.repo.ListAvailabilityExceptions(ctx, provider.ID, window.Start, window.End)
		if err != nil {
			return err
		}
		if len(exceptions) > 0 {
			return httperr.ErrBusiness("slot_unavailable")
		}

		blocking, err := uc.repo.ListBlockingAppointmentsInRange(ctx, provider.ID, window.Start, window.End)
		if err != nil {
			return err
		}
		if conflict := domain.FirstConflicting(window, blocking, nil); conflict != nil {
			// visita já firmada responde com um código próprio para o
			// cliente entender que não adianta tentar de novo
			if domain.Status(conflict.Status).IsConfirmedVisit() && conflict.ServiceRequestID != request.ID {
				return httperr.ErrBusiness("request_window_conflict")
			}
			return httperr.ErrBusiness("slot_unavailable")
		}

		expiresAt := now.Add(uc.confirmationSLA)
		ap = &models.ServiceAppointment{
			ServiceRequestID: request.ID,
			ClientID:         request.ClientID,
			ProviderID:       provider.ID,
			WindowStartUtc:   window.Start,
			WindowEndUtc:     window.End,
			Status:           string(domain.InitialStatus()),
			Reason:           in.Reason,
			ExpiresAt:        &expiresAt,
		}

		if err := uc.repo.CreateAppointment(ctx, ap); err != nil {
			return err
		}

		if err := uc.repo.AddHistory(ctx, &models.AppointmentHistory{
			AppointmentID: ap.ID,
			NewStatus:     ap.Status,
			ActorUserID:   &in.Actor.UserID,
			ActorRole:     string(in.Actor.Role),
			Reason:        in.Reason,
		}); err != nil {
			return err
		}

		return uc.repo.UpdateServiceRequestStatus(ctx, request.ID, models.RequestStatusScheduled)
	})
	if lockErr != nil {
		return nil, lockErr
	}

	// --------------------------------------------------
	// 5️⃣ Auditoria + notificação
	// --------------------------------------------------
	uc.audit.Dispatch(audit.Event{
		ActorUserID: &in.Actor.UserID,
		Action:      "appointment_created",
		Entity:      "appointment",
		EntityID:    &ap.ID,
		Metadata: map[string]any{
			"provider_id":  provider.ID,
			"window_start": ap.WindowStartUtc,
			"window_end":   ap.WindowEndUtc,
		},
	})

	uc.notify.Dispatch(notification.Event{
		UserID: provider.ID,
		Title:  "Nova visita aguardando confirmação",
		Body:   "Um cliente agendou uma visita. Confirme dentro do prazo.",
		Data:   map[string]any{"appointment_id": ap.ID},
	})

	return ap, nil
}

// validateRequestedWindow applies the shape rules every requested window
// must satisfy, whether on create or on reschedule.
func validateRequestedWindow(w domain.Window, now time.Time) error {
	if !w.Valid() || !w.SameUTCDay() {
		return httperr.ErrBusiness("invalid_window")
	}

	minutes := int(w.Duration().Minutes())
	if minutes < domain.MinAppointmentWindowMinutes || minutes > domain.MaxAppointmentWindowMinutes {
		return httperr.ErrBusiness("invalid_window")
	}

	if !w.Start.After(now.Add(time.Minute)) {
		return httperr.ErrBusiness("invalid_window")
	}
	return nil
}
