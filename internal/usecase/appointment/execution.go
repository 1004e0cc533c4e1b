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

// StartGate blocks execution start until pre-service requirements are met.
// The checklist package provides the real implementation.
type StartGate interface {
	EnsureCanStart(ctx context.Context, ap *models.ServiceAppointment) error
}

// ======================================================
// Check-in do prestador
// ======================================================

type MarkArrived struct {
	repo   domain.Repository
	audit  *audit.Dispatcher
	notify *notification.Dispatcher

	now func() time.Time
}

func NewMarkArrived(
	repo domain.Repository,
	auditD *audit.Dispatcher,
	notify *notification.Dispatcher,
) *MarkArrived {
	return &MarkArrived{
		repo:   repo,
		audit:  auditD,
		notify: notify,
		now:    time.Now,
	}
}

func (uc *MarkArrived) Execute(
	ctx context.Context,
	actor auth.Actor,
	appointmentID uuid.UUID,
) (*models.ServiceAppointment, error) {

	ap, err := uc.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, httperr.ErrBusiness("appointment_not_found")
	}
	if !actor.IsProvider() || ap.ProviderID != actor.UserID {
		return nil, httperr.ErrBusiness("forbidden")
	}

	if ap.ArrivedAt != nil {
		return nil, httperr.ErrBusiness("duplicate_checkin")
	}

	current := domain.Status(ap.Status)
	if err := domain.EnsureTransition(current, domain.StatusArrived); err != nil {
		return nil, err
	}

	now := uc.now().UTC()
	op := string(domain.OpOnSite)
	ok, err := uc.repo.CasAppointmentStatus(ctx, ap.ID, current, domain.StatusArrived, map[string]any{
		"arrived_at":                    now,
		"operational_status":            op,
		"operational_status_updated_at": now,
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
		NewStatus:      string(domain.StatusArrived),
		ActorUserID:    &actor.UserID,
		ActorRole:      string(actor.Role),
	})

	ap.Status = string(domain.StatusArrived)
	ap.ArrivedAt = &now
	ap.OperationalStatus = &op
	ap.OperationalStatusUpdatedAt = &now

	uc.audit.Dispatch(audit.Event{
		ActorUserID: &actor.UserID,
		Action:      "provider_arrived",
		Entity:      "appointment",
		EntityID:    &ap.ID,
	})
	uc.notify.Dispatch(notification.Event{
		UserID: ap.ClientID,
		Title:  "Prestador chegou",
		Body:   "Confirme a presença do prestador no local.",
		Data:   map[string]any{"appointment_id": ap.ID},
	})

	return ap, nil
}

// ======================================================
// Confirmação de presença pelo cliente
// ======================================================

type RespondPresence struct {
	repo  domain.Repository
	audit *audit.Dispatcher

	now func() time.Time
}

func NewRespondPresence(
	repo domain.Repository,
	auditD *audit.Dispatcher,
) *RespondPresence {
	return &RespondPresence{
		repo:  repo,
		audit: auditD,
		now:   time.Now,
	}
}

func (uc *RespondPresence) Execute(
	ctx context.Context,
	actor auth.Actor,
	appointmentID uuid.UUID,
	present bool,
) (*models.ServiceAppointment, error) {

	ap, err := uc.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, httperr.ErrBusiness("appointment_not_found")
	}
	if !actor.IsClient() || ap.ClientID != actor.UserID {
		return nil, httperr.ErrBusiness("forbidden")
	}

	if ap.ArrivedAt == nil {
		return nil, httperr.ErrBusiness("invalid_state")
	}

	now := uc.now().UTC()
	ap.PresenceConfirmedByClient = &present
	ap.PresenceRespondedAt = &now

	if err := uc.repo.UpdateAppointment(ctx, ap); err != nil {
		return nil, err
	}

	uc.audit.Dispatch(audit.Event{
		ActorUserID: &actor.UserID,
		Action:      "presence_responded",
		Entity:      "appointment",
		EntityID:    &ap.ID,
		Metadata:    map[string]any{"present": present},
	})

	return ap, nil
}

// ======================================================
// Início da execução
// ======================================================

type StartExecution struct {
	repo   domain.Repository
	gate   StartGate
	audit  *audit.Dispatcher
	notify *notification.Dispatcher

	now func() time.Time
}

func NewStartExecution(
	repo domain.Repository,
	gate StartGate,
	auditD *audit.Dispatcher,
	notify *notification.Dispatcher,
) *StartExecution {
	return &StartExecution{
		repo:   repo,
		gate:   gate,
		audit:  auditD,
		notify: notify,
		now:    time.Now,
	}
}

func (uc *StartExecution) Execute(
	ctx context.Context,
	actor auth.Actor,
	appointmentID uuid.UUID,
) (*models.ServiceAppointment, error) {

	ap, err := uc.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, httperr.ErrBusiness("appointment_not_found")
	}
	if !actor.IsProvider() || ap.ProviderID != actor.UserID {
		return nil, httperr.ErrBusiness("forbidden")
	}

	if ap.StartedAt != nil {
		return nil, httperr.ErrBusiness("duplicate_start")
	}

	current := domain.Status(ap.Status)
	if err := domain.EnsureTransition(current, domain.StatusInProgress); err != nil {
		return nil, err
	}

	if uc.gate != nil {
		if err := uc.gate.EnsureCanStart(ctx, ap); err != nil {
			return nil, err
		}
	}

	now := uc.now().UTC()
	op := string(domain.OpInService)
	ok, err := uc.repo.CasAppointmentStatus(ctx, ap.ID, current, domain.StatusInProgress, map[string]any{
		"started_at":                    now,
		"operational_status":            op,
		"operational_status_updated_at": now,
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
		NewStatus:      string(domain.StatusInProgress),
		ActorUserID:    &actor.UserID,
		ActorRole:      string(actor.Role),
	})

	ap.Status = string(domain.StatusInProgress)
	ap.StartedAt = &now
	ap.OperationalStatus = &op
	ap.OperationalStatusUpdatedAt = &now

	uc.audit.Dispatch(audit.Event{
		ActorUserID: &actor.UserID,
		Action:      "execution_started",
		Entity:      "appointment",
		EntityID:    &ap.ID,
	})
	uc.notify.Dispatch(notification.Event{
		UserID: ap.ClientID,
		Title:  "Serviço iniciado",
		Data:   map[string]any{"appointment_id": ap.ID},
	})

	return ap, nil
}

// ======================================================
// Sub-status operacional
// ======================================================

type UpdateOperationalStatus struct {
	repo  domain.Repository
	audit *audit.Dispatcher

	now func() time.Time
}

func NewUpdateOperationalStatus(
	repo domain.Repository,
	auditD *audit.Dispatcher,
) *UpdateOperationalStatus {
	return &UpdateOperationalStatus{
		repo:  repo,
		audit: auditD,
		now:   time.Now,
	}
}

func (uc *UpdateOperationalStatus) Execute(
	ctx context.Context,
	actor auth.Actor,
	appointmentID uuid.UUID,
	next string,
) (*models.ServiceAppointment, error) {

	ap, err := uc.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, httperr.ErrBusiness("appointment_not_found")
	}
	if !actor.IsProvider() || ap.ProviderID != actor.UserID {
		return nil, httperr.ErrBusiness("forbidden")
	}

	target, valid := domain.ParseOperationalStatus(next)
	if !valid {
		return nil, httperr.ErrBusiness("invalid_operational_status")
	}

	// sub-status só existe durante a execução; completed passa pelo fluxo
	// de confirmação com PIN, nunca por aqui
	current := domain.Status(ap.Status)
	if !current.ExecutionStarted() || target == domain.OpCompleted {
		return nil, httperr.ErrBusiness("invalid_state")
	}

	var op *domain.OperationalStatus
	if ap.OperationalStatus != nil {
		v := domain.OperationalStatus(*ap.OperationalStatus)
		op = &v
	}
	if !domain.CanAdvanceOperational(op, target) {
		return nil, httperr.ErrBusiness("invalid_operational_transition")
	}

	now := uc.now().UTC()
	value := string(target)
	ap.OperationalStatus = &value
	ap.OperationalStatusUpdatedAt = &now

	if err := uc.repo.UpdateAppointment(ctx, ap); err != nil {
		return nil, err
	}

	uc.audit.Dispatch(audit.Event{
		ActorUserID: &actor.UserID,
		Action:      "operational_status_updated",
		Entity:      "appointment",
		EntityID:    &ap.ID,
		Metadata:    map[string]any{"operational_status": value},
	})

	return ap, nil
}
