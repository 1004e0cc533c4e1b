package appointment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/homerepairhub/repair-scheduler/internal/audit"
	"github.com/homerepairhub/repair-scheduler/internal/auth"
	domain "github.com/homerepairhub/repair-scheduler/internal/domain/appointment"
	"github.com/homerepairhub/repair-scheduler/internal/httperr"
	"github.com/homerepairhub/repair-scheduler/internal/models"
	"github.com/homerepairhub/repair-scheduler/internal/notification"
)

// ConfirmAppointment is the provider accepting the pending visit inside the
// confirmation SLA.
type ConfirmAppointment struct {
	repo   domain.Repository
	audit  *audit.Dispatcher
	notify *notification.Dispatcher

	now func() time.Time
}

func NewConfirmAppointment(
	repo domain.Repository,
	auditD *audit.Dispatcher,
	notify *notification.Dispatcher,
) *ConfirmAppointment {
	return &ConfirmAppointment{
		repo:   repo,
		audit:  auditD,
		notify: notify,
		now:    time.Now,
	}
}

func (uc *ConfirmAppointment) Execute(
	ctx context.Context,
	actor auth.Actor,
	appointmentID uuid.UUID,
) (*models.ServiceAppointment, error) {

	ap, err := uc.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, httperr.ErrBusiness("appointment_not_found")
	}
	if !actor.IsAdmin() && (!actor.IsProvider() || ap.ProviderID != actor.UserID) {
		return nil, httperr.ErrBusiness("forbidden")
	}

	current := domain.Status(ap.Status)
	if err := domain.EnsureTransition(current, domain.StatusConfirmed); err != nil {
		return nil, err
	}

	now := uc.now().UTC()

	// SLA vencido mas o sweeper ainda não passou: expira aqui mesmo
	if ap.ExpiresAt != nil && now.After(*ap.ExpiresAt) {
		if ok, err := uc.repo.CasAppointmentStatus(ctx, ap.ID,
			current, domain.StatusExpiredWithoutProviderAction, nil); err != nil {
			return nil, err
		} else if ok {
			uc.recordTransition(ctx, ap, string(current), string(domain.StatusExpiredWithoutProviderAction), nil, "", "confirmation window elapsed")
		}
		return nil, httperr.ErrBusiness("invalid_state")
	}

	ok, err := uc.repo.CasAppointmentStatus(ctx, ap.ID, current, domain.StatusConfirmed, map[string]any{
		"confirmed_at": now,
		"expires_at":   nil,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, httperr.ErrBusiness("invalid_state")
	}

	uc.recordTransition(ctx, ap, string(current), string(domain.StatusConfirmed), &actor.UserID, string(actor.Role), "")

	ap.Status = string(domain.StatusConfirmed)
	ap.ConfirmedAt = &now
	ap.ExpiresAt = nil

	uc.audit.Dispatch(audit.Event{
		ActorUserID: &actor.UserID,
		Action:      "appointment_confirmed",
		Entity:      "appointment",
		EntityID:    &ap.ID,
	})
	uc.notify.Dispatch(notification.Event{
		UserID: ap.ClientID,
		Title:  "Visita confirmada",
		Body:   "O prestador confirmou sua visita.",
		Data:   map[string]any{"appointment_id": ap.ID},
	})

	return ap, nil
}

func (uc *ConfirmAppointment) recordTransition(
	ctx context.Context,
	ap *models.ServiceAppointment,
	prev string,
	next string,
	actorID *uuid.UUID,
	actorRole string,
	reason string,
) {
	_ = uc.repo.AddHistory(ctx, &models.AppointmentHistory{
		AppointmentID:  ap.ID,
		PreviousStatus: &prev,
		NewStatus:      next,
		ActorUserID:    actorID,
		ActorRole:      actorRole,
		Reason:         reason,
	})
}

// RejectAppointment is the provider declining the pending visit. The window
// is released and the service request goes back to open.
type RejectAppointment struct {
	repo   domain.Repository
	audit  *audit.Dispatcher
	notify *notification.Dispatcher

	now func() time.Time
}

func NewRejectAppointment(
	repo domain.Repository,
	auditD *audit.Dispatcher,
	notify *notification.Dispatcher,
) *RejectAppointment {
	return &RejectAppointment{
		repo:   repo,
		audit:  auditD,
		notify: notify,
		now:    time.Now,
	}
}

func (uc *RejectAppointment) Execute(
	ctx context.Context,
	actor auth.Actor,
	appointmentID uuid.UUID,
	reason string,
) (*models.ServiceAppointment, error) {

	ap, err := uc.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, httperr.ErrBusiness("appointment_not_found")
	}
	if !actor.IsProvider() || ap.ProviderID != actor.UserID {
		return nil, httperr.ErrBusiness("forbidden")
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, httperr.ErrBusiness("reason_required")
	}

	current := domain.Status(ap.Status)
	if err := domain.EnsureTransition(current, domain.StatusRejectedByProvider); err != nil {
		return nil, err
	}

	now := uc.now().UTC()
	ok, err := uc.repo.CasAppointmentStatus(ctx, ap.ID, current, domain.StatusRejectedByProvider, map[string]any{
		"rejected_at":      now,
		"rejection_reason": reason,
		"expires_at":       nil,
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
		NewStatus:      string(domain.StatusRejectedByProvider),
		ActorUserID:    &actor.UserID,
		ActorRole:      string(actor.Role),
		Reason:         reason,
	})

	// pedido volta para a fila
	_ = uc.repo.UpdateServiceRequestStatus(ctx, ap.ServiceRequestID, models.RequestStatusOpen)

	ap.Status = string(domain.StatusRejectedByProvider)
	ap.RejectedAt = &now
	ap.RejectionReason = reason

	uc.audit.Dispatch(audit.Event{
		ActorUserID: &actor.UserID,
		Action:      "appointment_rejected",
		Entity:      "appointment",
		EntityID:    &ap.ID,
		Metadata:    map[string]any{"reason": reason},
	})
	uc.notify.Dispatch(notification.Event{
		UserID: ap.ClientID,
		Title:  "Visita recusada",
		Body:   "O prestador não pôde aceitar sua visita. Escolha outro horário.",
		Data:   map[string]any{"appointment_id": ap.ID},
	})

	return ap, nil
}
