package scopechange

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

type RespondScopeChangeInput struct {
	Actor auth.Actor

	ScopeChangeID uuid.UUID
	Approve       bool
	Reason        string
}

type RespondScopeChange struct {
	appts  domain.Repository
	repo   domain.ScopeChangeRepository
	audit  *audit.Dispatcher
	notify *notification.Dispatcher

	now func() time.Time
}

func NewRespondScopeChange(
	appts domain.Repository,
	repo domain.ScopeChangeRepository,
	auditD *audit.Dispatcher,
	notify *notification.Dispatcher,
) *RespondScopeChange {
	return &RespondScopeChange{
		appts:  appts,
		repo:   repo,
		audit:  auditD,
		notify: notify,
		now:    time.Now,
	}
}

func (uc *RespondScopeChange) Execute(
	ctx context.Context,
	in RespondScopeChangeInput,
) (*models.ScopeChangeRequest, error) {

	sc, err := uc.repo.GetScopeChangeByID(ctx, in.ScopeChangeID)
	if err != nil {
		return nil, httperr.ErrBusiness("scope_change_not_found")
	}

	ap, err := uc.appts.GetAppointmentByID(ctx, sc.AppointmentID)
	if err != nil {
		return nil, httperr.ErrBusiness("appointment_not_found")
	}

	// quem decide é a contraparte de quem propôs
	if err := ensureCounterpart(sc, ap, in.Actor); err != nil {
		return nil, err
	}

	if sc.Status != models.ScopeChangeStatusPending {
		return nil, httperr.ErrBusiness("invalid_state")
	}

	now := uc.now().UTC()
	if now.After(sc.ExpiresAt) {
		sc.Status = models.ScopeChangeStatusExpired
		if err := uc.repo.UpdateScopeChange(ctx, sc); err != nil {
			return nil, err
		}
		return nil, httperr.ErrBusiness("scope_change_expired")
	}

	action := "scope_change_rejected"
	sc.Status = models.ScopeChangeStatusRejected
	if in.Approve {
		action = "scope_change_approved"
		sc.Status = models.ScopeChangeStatusApproved
	}
	sc.DecidedAt = &now
	sc.DecisionReason = in.Reason

	if err := uc.repo.UpdateScopeChange(ctx, sc); err != nil {
		return nil, err
	}

	uc.audit.Dispatch(audit.Event{
		ActorUserID: &in.Actor.UserID,
		Action:      action,
		Entity:      "scope_change",
		EntityID:    &sc.ID,
		Metadata:    map[string]any{"reason": in.Reason},
	})

	counterpart := ap.ClientID
	if in.Actor.IsClient() {
		counterpart = ap.ProviderID
	}
	title := "Mudança de escopo recusada"
	if in.Approve {
		title = "Mudança de escopo aprovada"
	}
	uc.notify.Dispatch(notification.Event{
		UserID: counterpart,
		Title:  title,
		Data:   map[string]any{"scope_change_id": sc.ID},
	})

	return sc, nil
}

func ensureCounterpart(
	sc *models.ScopeChangeRequest,
	ap *models.ServiceAppointment,
	actor auth.Actor,
) error {
	switch sc.RequestedByRole {
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

// ======================================================
// Consulta e varredura
// ======================================================

type ListScopeChanges struct {
	appts domain.Repository
	repo  domain.ScopeChangeRepository
}

func NewListScopeChanges(
	appts domain.Repository,
	repo domain.ScopeChangeRepository,
) *ListScopeChanges {
	return &ListScopeChanges{appts: appts, repo: repo}
}

func (uc *ListScopeChanges) Execute(
	ctx context.Context,
	actor auth.Actor,
	appointmentID uuid.UUID,
) ([]models.ScopeChangeRequest, error) {

	ap, err := uc.appts.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, httperr.ErrBusiness("appointment_not_found")
	}
	if !actor.IsAdmin() && !isParticipant(actor, ap) {
		return nil, httperr.ErrBusiness("forbidden")
	}

	scs, err := uc.repo.ListScopeChangesByServiceRequest(ctx, ap.ServiceRequestID)
	if err != nil {
		return nil, err
	}
	if scs == nil {
		scs = []models.ScopeChangeRequest{}
	}
	return scs, nil
}

// ExpireScopeChanges bulk-expires pending requests past their deadline.
type ExpireScopeChanges struct {
	repo domain.ScopeChangeRepository

	now func() time.Time
}

func NewExpireScopeChanges(repo domain.ScopeChangeRepository) *ExpireScopeChanges {
	return &ExpireScopeChanges{repo: repo, now: time.Now}
}

func (uc *ExpireScopeChanges) Execute(ctx context.Context) (int64, error) {
	return uc.repo.ExpirePendingScopeChangesBefore(ctx, uc.now().UTC())
}
