package appointment

import (
	"context"
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
// Solicitação de reagendamento
// ======================================================

type RequestRescheduleInput struct {
	Actor auth.Actor

	AppointmentID uuid.UUID

	ProposedStartUtc time.Time
	ProposedEndUtc   time.Time

	Reason string
}

type RequestReschedule struct {
	repo   domain.Repository
	audit  *audit.Dispatcher
	notify *notification.Dispatcher

	now func() time.Time
}

func NewRequestReschedule(
	repo domain.Repository,
	auditD *audit.Dispatcher,
	notify *notification.Dispatcher,
) *RequestReschedule {
	return &RequestReschedule{
		repo:   repo,
		audit:  auditD,
		notify: notify,
		now:    time.Now,
	}
}

func (uc *RequestReschedule) Execute(
	ctx context.Context,
	in RequestRescheduleInput,
) (*models.ServiceAppointment, error) {

	ap, err := uc.repo.GetAppointmentByID(ctx, in.AppointmentID)
	if err != nil {
		return nil, httperr.ErrBusiness("appointment_not_found")
	}

	var target domain.Status
	switch {
	case in.Actor.IsClient() && ap.ClientID == in.Actor.UserID:
		target = domain.StatusRescheduleRequestedByClient
	case in.Actor.IsProvider() && ap.ProviderID == in.Actor.UserID:
		target = domain.StatusRescheduleRequestedByProvider
	default:
		return nil, httperr.ErrBusiness("forbidden")
	}

	current := domain.Status(ap.Status)
	if err := domain.CanRequestReschedule(current); err != nil {
		return nil, err
	}

	now := uc.now().UTC()
	proposed := domain.Window{Start: in.ProposedStartUtc.UTC(), End: in.ProposedEndUtc.UTC()}
	if err := validateRequestedWindow(proposed, now); err != nil {
		return nil, err
	}

	role := string(in.Actor.Role)
	ok, err := uc.repo.CasAppointmentStatus(ctx, ap.ID, current, target, map[string]any{
		"proposed_window_start_utc":    proposed.Start,
		"proposed_window_end_utc":      proposed.End,
		"reschedule_requested_by_role": role,
		"reschedule_reason":            in.Reason,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, httperr.ErrBusiness("invalid_state")
	}

	prev := string(current)
	_ = uc.repo.AddHistory(ctx, &models.AppointmentHistory{
		AppointmentID:  ap.ID,
		PreviousStatus: &prev,
		NewStatus:      string(target),
		ActorUserID:    &in.Actor.UserID,
		ActorRole:      role,
		Reason:         in.Reason,
	})

	ap.Status = string(target)
	ap.ProposedWindowStartUtc = &proposed.Start
	ap.ProposedWindowEndUtc = &proposed.End
	ap.RescheduleRequestedByRole = &role
	ap.RescheduleReason = in.Reason

	uc.audit.Dispatch(audit.Event{
		ActorUserID: &in.Actor.UserID,
		Action:      "reschedule_requested",
		Entity:      "appointment",
		EntityID:    &ap.ID,
		Metadata: map[string]any{
			"proposed_start": proposed.Start,
			"proposed_end":   proposed.End,
		},
	})

	counterpart := ap.ProviderID
	if in.Actor.IsProvider() {
		counterpart = ap.ClientID
	}
	uc.notify.Dispatch(notification.Event{
		UserID: counterpart,
		Title:  "Reagendamento proposto",
		Body:   "A outra parte propôs um novo horário para a visita.",
		Data:   map[string]any{"appointment_id": ap.ID},
	})

	return ap, nil
}

// ======================================================
// Resposta ao reagendamento
// ======================================================

type RespondRescheduleInput struct {
	Actor auth.Actor

	AppointmentID uuid.UUID
	Accept        bool
	Reason        string
}

type RespondReschedule struct {
	repo   domain.Repository
	locker locking.Locker
	audit  *audit.Dispatcher
	notify *notification.Dispatcher

	now func() time.Time
}

func NewRespondReschedule(
	repo domain.Repository,
	locker locking.Locker,
	auditD *audit.Dispatcher,
	notify *notification.Dispatcher,
) *RespondReschedule {
	return &RespondReschedule{
		repo:   repo,
		locker: locker,
		audit:  auditD,
		notify: notify,
		now:    time.Now,
	}
}

func (uc *RespondReschedule) Execute(
	ctx context.Context,
	in RespondRescheduleInput,
) (*models.ServiceAppointment, error) {

	ap, err := uc.repo.GetAppointmentByID(ctx, in.AppointmentID)
	if err != nil {
		return nil, httperr.ErrBusiness("appointment_not_found")
	}

	current := domain.Status(ap.Status)
	if current != domain.StatusRescheduleRequestedByClient &&
		current != domain.StatusRescheduleRequestedByProvider {
		return nil, httperr.ErrBusiness("invalid_state")
	}

	// quem respondeu tem que ser a contraparte de quem pediu
	if err := uc.ensureCounterpart(ap, in.Actor); err != nil {
		return nil, err
	}

	if ap.ProposedWindowStartUtc == nil || ap.ProposedWindowEndUtc == nil {
		return nil, httperr.ErrBusiness("invalid_state")
	}

	if !in.Accept {
		return uc.decline(ctx, ap, current, in)
	}
	return uc.accept(ctx, ap, current, in)
}

func (uc *RespondReschedule) ensureCounterpart(ap *models.ServiceAppointment, actor auth.Actor) error {
	if ap.RescheduleRequestedByRole == nil {
		return httperr.ErrBusiness("invalid_state")
	}
	switch *ap.RescheduleRequestedByRole {
	case string(auth.RoleClient):
		if !actor.IsProvider() || ap.ProviderID != actor.UserID {
			return httperr.ErrBusiness("forbidden")
		}
	case string(auth.RoleProvider):
		if !actor.IsClient() || ap.ClientID != actor.UserID {
			return httperr.ErrBusiness("forbidden")
		}
	default:
		return httperr.ErrBusiness("invalid_state")
	}
	return nil
}

func (uc *RespondReschedule) decline(
	ctx context.Context,
	ap *models.ServiceAppointment,
	current domain.Status,
	in RespondRescheduleInput,
) (*models.ServiceAppointment, error) {

	// volta ao horário original, já confirmado
	ok, err := uc.repo.CasAppointmentStatus(ctx, ap.ID, current, domain.StatusConfirmed, map[string]any{
		"proposed_window_start_utc":    nil,
		"proposed_window_end_utc":      nil,
		"reschedule_requested_by_role": nil,
		"reschedule_reason":            "",
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, httperr.ErrBusiness("invalid_state")
	}

	uc.finish(ctx, ap, current, domain.StatusConfirmed, in, "reschedule_declined")

	ap.Status = string(domain.StatusConfirmed)
	ap.ProposedWindowStartUtc = nil
	ap.ProposedWindowEndUtc = nil
	ap.RescheduleRequestedByRole = nil
	ap.RescheduleReason = ""
	return ap, nil
}

func (uc *RespondReschedule) accept(
	ctx context.Context,
	ap *models.ServiceAppointment,
	current domain.Status,
	in RespondRescheduleInput,
) (*models.ServiceAppointment, error) {

	proposed := domain.Window{
		Start: ap.ProposedWindowStartUtc.UTC(),
		End:   ap.ProposedWindowEndUtc.UTC(),
	}

	provider, err := uc.repo.GetUserByID(ctx, ap.ProviderID)
	if err != nil {
		return nil, httperr.ErrBusiness("provider_not_found")
	}

	// revalida a janela proposta no momento do aceite; o tempo passou desde
	// a proposta e a agenda pode ter mudado
	lockErr := uc.locker.WithLock(ctx, LockKey(ap.ProviderID, proposed.Start), func() error {
		loc := timezone.Location(provider.Timezone)

		rules, err := uc.repo.ListAvailabilityRules(ctx, ap.ProviderID)
		if err != nil {
			return err
		}
		if !domain.WindowWithinRules(rules, proposed, loc) {
			return httperr.ErrBusiness("slot_unavailable")
		}

		exceptions, err := uc.repo.ListAvailabilityExceptions(ctx, ap.ProviderID, proposed.Start, proposed.End)
		if err != nil {
			return err
		}
		if len(exceptions) > 0 {
			return httperr.ErrBusiness("slot_unavailable")
		}

		blocking, err := uc.repo.ListBlockingAppointmentsInRange(ctx, ap.ProviderID, proposed.Start, proposed.End)
		if err != nil {
			return err
		}
		if conflict := domain.FirstConflicting(proposed, blocking, ap); conflict != nil {
			return httperr.ErrBusiness("slot_unavailable")
		}

		ok, err := uc.repo.CasAppointmentStatus(ctx, ap.ID, current, domain.StatusRescheduleConfirmed, map[string]any{
			"window_start_utc":             proposed.Start,
			"window_end_utc":               proposed.End,
			"proposed_window_start_utc":    nil,
			"proposed_window_end_utc":      nil,
			"reschedule_requested_by_role": nil,
		})
		if err != nil {
			return err
		}
		if !ok {
			return httperr.ErrBusiness("invalid_state")
		}
		return nil
	})
	if lockErr != nil {
		return nil, lockErr
	}

	uc.finish(ctx, ap, current, domain.StatusRescheduleConfirmed, in, "reschedule_accepted")

	ap.Status = string(domain.StatusRescheduleConfirmed)
	ap.WindowStartUtc = proposed.Start
	ap.WindowEndUtc = proposed.End
	ap.ProposedWindowStartUtc = nil
	ap.ProposedWindowEndUtc = nil
	ap.RescheduleRequestedByRole = nil
	return ap, nil
}

func (uc *RespondReschedule) finish(
	ctx context.Context,
	ap *models.ServiceAppointment,
	prev domain.Status,
	next domain.Status,
	in RespondRescheduleInput,
	action string,
) {
	prevStr := string(prev)
	_ = uc.repo.AddHistory(ctx, &models.AppointmentHistory{
		AppointmentID:  ap.ID,
		PreviousStatus: &prevStr,
		NewStatus:      string(next),
		ActorUserID:    &in.Actor.UserID,
		ActorRole:      string(in.Actor.Role),
		Reason:         in.Reason,
	})

	uc.audit.Dispatch(audit.Event{
		ActorUserID: &in.Actor.UserID,
		Action:      action,
		Entity:      "appointment",
		EntityID:    &ap.ID,
	})

	counterpart := ap.ClientID
	if in.Actor.IsClient() {
		counterpart = ap.ProviderID
	}
	title := "Reagendamento aceito"
	if action == "reschedule_declined" {
		title = "Reagendamento recusado"
	}
	uc.notify.Dispatch(notification.Event{
		UserID: counterpart,
		Title:  title,
		Data:   map[string]any{"appointment_id": ap.ID},
	})
}
