package scopechange

import (
	"context"
	"math"
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

const (
	maxReasonLen      = 500
	maxDescriptionLen = 2000
	maxValueDelta     = 100000.0
)

type CreateScopeChangeInput struct {
	Actor auth.Actor

	AppointmentID uuid.UUID

	Reason      string
	Description string

	// nil quando a mudança não altera o valor estimado
	EstimatedValueDelta *float64
}

type CreateScopeChange struct {
	appts  domain.Repository
	repo   domain.ScopeChangeRepository
	audit  *audit.Dispatcher
	notify *notification.Dispatcher

	expiry time.Duration

	now func() time.Time
}

func NewCreateScopeChange(
	appts domain.Repository,
	repo domain.ScopeChangeRepository,
	auditD *audit.Dispatcher,
	notify *notification.Dispatcher,
	expiry time.Duration,
) *CreateScopeChange {
	return &CreateScopeChange{
		appts:  appts,
		repo:   repo,
		audit:  auditD,
		notify: notify,
		expiry: expiry,
		now:    time.Now,
	}
}

func (uc *CreateScopeChange) Execute(
	ctx context.Context,
	in CreateScopeChangeInput,
) (*models.ScopeChangeRequest, error) {

	ap, err := uc.appts.GetAppointmentByID(ctx, in.AppointmentID)
	if err != nil {
		return nil, httperr.ErrBusiness("appointment_not_found")
	}

	// só participantes propõem mudança de escopo, e só com serviço em curso
	if !isParticipant(in.Actor, ap) {
		return nil, httperr.ErrBusiness("forbidden")
	}
	if domain.Status(ap.Status) != domain.StatusInProgress {
		return nil, httperr.ErrBusiness("invalid_state")
	}

	if err := validateScopeChangeFields(in); err != nil {
		return nil, err
	}

	now := uc.now().UTC()

	if pending, err := uc.repo.GetPendingScopeChange(ctx, ap.ID); err == nil && pending != nil {
		// pendência velha expira aqui mesmo, sem esperar o sweeper
		if now.After(pending.ExpiresAt) {
			pending.Status = models.ScopeChangeStatusExpired
			if err := uc.repo.UpdateScopeChange(ctx, pending); err != nil {
				return nil, err
			}
		} else {
			return nil, httperr.ErrBusiness("scope_change_pending")
		}
	}

	sc := &models.ScopeChangeRequest{
		AppointmentID:       ap.ID,
		RequestedByRole:     string(in.Actor.Role),
		Reason:              strings.TrimSpace(in.Reason),
		Description:         strings.TrimSpace(in.Description),
		EstimatedValueDelta: in.EstimatedValueDelta,
		Status:              models.ScopeChangeStatusPending,
		ExpiresAt:           now.Add(uc.expiry),
	}
	if err := uc.repo.CreateScopeChange(ctx, sc); err != nil {
		return nil, err
	}

	uc.audit.Dispatch(audit.Event{
		ActorUserID: &in.Actor.UserID,
		Action:      "scope_change_requested",
		Entity:      "scope_change",
		EntityID:    &sc.ID,
		Metadata:    map[string]any{"appointment_id": ap.ID},
	})

	counterpart := ap.ClientID
	if in.Actor.IsClient() {
		counterpart = ap.ProviderID
	}
	uc.notify.Dispatch(notification.Event{
		UserID: counterpart,
		Title:  "Mudança de escopo proposta",
		Body:   "Há uma alteração de escopo aguardando sua resposta.",
		Data:   map[string]any{"scope_change_id": sc.ID},
	})

	return sc, nil
}

func validateScopeChangeFields(in CreateScopeChangeInput) error {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" || len(reason) > maxReasonLen {
		return httperr.ErrBusiness("invalid_scope_change_reason")
	}

	desc := strings.TrimSpace(in.Description)
	if desc == "" || len(desc) > maxDescriptionLen {
		return httperr.ErrBusiness("invalid_scope_change_description")
	}

	if in.EstimatedValueDelta != nil {
		delta := *in.EstimatedValueDelta
		if delta == 0 || math.IsNaN(delta) || math.Abs(delta) > maxValueDelta {
			return httperr.ErrBusiness("invalid_scope_change_value")
		}
	}
	return nil
}

func isParticipant(actor auth.Actor, ap *models.ServiceAppointment) bool {
	if actor.IsClient() {
		return ap.ClientID == actor.UserID
	}
	if actor.IsProvider() {
		return ap.ProviderID == actor.UserID
	}
	return false
}
