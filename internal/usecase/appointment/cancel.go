package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/homerepairhub/repair-scheduler/internal/audit"
	"github.com/homerepairhub/repair-scheduler/internal/auth"
	domain "github.com/homerepairhub/repair-scheduler/internal/domain/appointment"
	"github.com/homerepairhub/repair-scheduler/internal/httperr"
	"github.com/homerepairhub/repair-scheduler/internal/models"
	"github.com/homerepairhub/repair-scheduler/internal/notification"
)

type CancelAppointment struct {
	repo   domain.Repository
	audit  *audit.Dispatcher
	notify *notification.Dispatcher

	now func() time.Time
}

func NewCancelAppointment(
	repo domain.Repository,
	auditD *audit.Dispatcher,
	notify *notification.Dispatcher,
) *CancelAppointment {
	return &CancelAppointment{
		repo:   repo,
		audit:  auditD,
		notify: notify,
		now:    time.Now,
	}
}

func (uc *CancelAppointment) Execute(
	ctx context.Context,
	actor auth.Actor,
	appointmentID uuid.UUID,
	reason string,
) (*models.ServiceAppointment, error) {

	ap, err := uc.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, httperr.ErrBusiness("appointment_not_found")
	}

	var target domain.Status
	switch {
	case actor.IsClient() && ap.ClientID == actor.UserID:
		target = domain.StatusCancelledByClient
	case actor.IsProvider() && ap.ProviderID == actor.UserID:
		target = domain.StatusCancelledByProvider
	default:
		return nil, httperr.ErrBusiness("forbidden")
	}

	current := domain.Status(ap.Status)
	if err := domain.CanCancel(current); err != nil {
		return nil, err
	}
	if err := domain.EnsureTransition(current, target); err != nil {
		return nil, err
	}

	now := uc.now().UTC()
	ok, err := uc.repo.CasAppointmentStatus(ctx, ap.ID, current, target, map[string]any{
		"cancelled_at":        now,
		"cancellation_reason": reason,
		"expires_at":          nil,
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
		ActorUserID:    &actor.UserID,
		ActorRole:      string(actor.Role),
		Reason:         reason,
	})

	// a janela foi liberada; o pedido pode ser agendado de novo
	_ = uc.repo.UpdateServiceRequestStatus(ctx, ap.ServiceRequestID, models.RequestStatusOpen)

	ap.Status = string(target)
	ap.CancelledAt = &now
	ap.CancellationReason = reason

	uc.audit.Dispatch(audit.Event{
		ActorUserID: &actor.UserID,
		Action:      "appointment_cancelled",
		Entity:      "appointment",
		EntityID:    &ap.ID,
		Metadata:    map[string]any{"reason": reason},
	})

	counterpart := ap.ClientID
	if actor.IsClient() {
		counterpart = ap.ProviderID
	}
	uc.notify.Dispatch(notification.Event{
		UserID: counterpart,
		Title:  "Visita cancelada",
		Body:   "A visita foi cancelada pela outra parte.",
		Data:   map[string]any{"appointment_id": ap.ID},
	})

	return ap, nil
}
