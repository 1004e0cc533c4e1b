package completion

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

const (
	AcceptancePin       = "pin"
	AcceptanceSignature = "signature"

	// PolicyBoth requires both parties; PolicyClientOnly completes on the
	// client's acceptance alone.
	PolicyBoth       = "both"
	PolicyClientOnly = "client_only"
)

// ======================================================
// Confirmação de conclusão pelo cliente
// ======================================================

type ConfirmCompletionInput struct {
	Actor auth.Actor

	AppointmentID uuid.UUID

	// "pin" ou "signature"
	AcceptanceMethod string
	Signature        string
}

type ConfirmCompletion struct {
	appts  domain.Repository
	terms  domain.CompletionRepository
	gate   CompletionGate
	audit  *audit.Dispatcher
	notify *notification.Dispatcher

	policy string

	now func() time.Time
}

func NewConfirmCompletion(
	appts domain.Repository,
	terms domain.CompletionRepository,
	gate CompletionGate,
	auditD *audit.Dispatcher,
	notify *notification.Dispatcher,
	policy string,
) *ConfirmCompletion {
	return &ConfirmCompletion{
		appts:  appts,
		terms:  terms,
		gate:   gate,
		audit:  auditD,
		notify: notify,
		policy: policy,
		now:    time.Now,
	}
}

func (uc *ConfirmCompletion) Execute(
	ctx context.Context,
	in ConfirmCompletionInput,
) (*models.ServiceAppointment, error) {

	ap, err := uc.appts.GetAppointmentByID(ctx, in.AppointmentID)
	if err != nil {
		return nil, httperr.ErrBusiness("appointment_not_found")
	}
	if !in.Actor.IsClient() || ap.ClientID != in.Actor.UserID {
		return nil, httperr.ErrBusiness("forbidden")
	}

	current := domain.Status(ap.Status)
	if current != domain.StatusInProgress {
		return nil, httperr.ErrBusiness("invalid_state")
	}

	term, err := uc.terms.GetCompletionTerm(ctx, ap.ID)
	if err != nil {
		return nil, httperr.ErrBusiness("completion_term_not_found")
	}
	if term.Status == models.CompletionTermStatusContested {
		return nil, httperr.ErrBusiness("invalid_state")
	}

	switch in.AcceptanceMethod {
	case AcceptancePin, AcceptanceSignature:
	default:
		return nil, httperr.ErrBusiness("invalid_acceptance_method")
	}

	// a assinatura é só o artefato de aceite; o PIN trocado presencialmente
	// continua obrigatório em qualquer método
	if term.PinValidatedAt == nil {
		return nil, httperr.ErrBusiness("pin_not_validated")
	}
	if in.AcceptanceMethod == AcceptanceSignature && strings.TrimSpace(in.Signature) == "" {
		return nil, httperr.ErrBusiness("signature_required")
	}

	if uc.gate != nil {
		if err := uc.gate.EnsureSatisfied(ctx, ap); err != nil {
			return nil, err
		}
	}

	now := uc.now().UTC()

	term.ConfirmedByClient = true
	term.ConfirmedByClientAt = &now
	term.AcceptanceMethod = in.AcceptanceMethod
	if in.AcceptanceMethod == AcceptanceSignature {
		term.Signature = in.Signature
	}

	bothConfirmed := term.ConfirmedByProvider || uc.policy == PolicyClientOnly
	if !bothConfirmed {
		// aguardando a atestação do prestador
		if err := uc.terms.SaveCompletionTerm(ctx, term); err != nil {
			return nil, err
		}
		return ap, nil
	}

	op := string(domain.OpCompleted)
	ok, err := uc.appts.CasAppointmentStatus(ctx, ap.ID, current, domain.StatusCompleted, map[string]any{
		"completed_at":                  now,
		"operational_status":            op,
		"operational_status_updated_at": now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, httperr.ErrBusiness("invalid_state")
	}

	term.Status = models.CompletionTermStatusConfirmed
	if err := uc.terms.SaveCompletionTerm(ctx, term); err != nil {
		return nil, err
	}

	prev := string(current)
	_ = uc.appts.AddHistory(ctx, &models.AppointmentHistory{
		AppointmentID:  ap.ID,
		PreviousStatus: &prev,
		NewStatus:      string(domain.StatusCompleted),
		ActorUserID:    &in.Actor.UserID,
		ActorRole:      string(in.Actor.Role),
	})

	_ = uc.appts.UpdateServiceRequestStatus(ctx, ap.ServiceRequestID, models.RequestStatusCompleted)

	ap.Status = string(domain.StatusCompleted)
	ap.CompletedAt = &now
	ap.OperationalStatus = &op
	ap.OperationalStatusUpdatedAt = &now

	uc.audit.Dispatch(audit.Event{
		ActorUserID: &in.Actor.UserID,
		Action:      "appointment_completed",
		Entity:      "appointment",
		EntityID:    &ap.ID,
		Metadata:    map[string]any{"acceptance_method": in.AcceptanceMethod},
	})
	uc.notify.Dispatch(notification.Event{
		UserID: ap.ProviderID,
		Title:  "Serviço concluído",
		Body:   "O cliente confirmou a conclusão do serviço.",
		Data:   map[string]any{"appointment_id": ap.ID},
	})

	return ap, nil
}

// ======================================================
// Contestação por qualquer das partes
// ======================================================

// Escalator routes contested completions to human review.
type Escalator interface {
	Escalate(ctx context.Context, ap *models.ServiceAppointment, term *models.CompletionTerm)
}

type ContestCompletion struct {
	appts     domain.Repository
	terms     domain.CompletionRepository
	audit     *audit.Dispatcher
	notify    *notification.Dispatcher
	escalator Escalator

	now func() time.Time
}

func NewContestCompletion(
	appts domain.Repository,
	terms domain.CompletionRepository,
	auditD *audit.Dispatcher,
	notify *notification.Dispatcher,
	escalator Escalator,
) *ContestCompletion {
	return &ContestCompletion{
		appts:     appts,
		terms:     terms,
		audit:     auditD,
		notify:    notify,
		escalator: escalator,
		now:       time.Now,
	}
}

func (uc *ContestCompletion) Execute(
	ctx context.Context,
	actor auth.Actor,
	appointmentID uuid.UUID,
	reason string,
) (*models.CompletionTerm, error) {

	ap, err := uc.appts.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, httperr.ErrBusiness("appointment_not_found")
	}
	isClient := actor.IsClient() && ap.ClientID == actor.UserID
	isProvider := actor.IsProvider() && ap.ProviderID == actor.UserID
	if !isClient && !isProvider {
		return nil, httperr.ErrBusiness("forbidden")
	}

	if strings.TrimSpace(reason) == "" {
		return nil, httperr.ErrBusiness("contest_reason_required")
	}

	term, err := uc.terms.GetCompletionTerm(ctx, ap.ID)
	if err != nil {
		return nil, httperr.ErrBusiness("completion_term_not_found")
	}

	// depois da confirmação mútua não há mais contestação por aqui
	if term.Status == models.CompletionTermStatusConfirmed {
		return nil, httperr.ErrBusiness("invalid_state")
	}

	term.Status = models.CompletionTermStatusContested
	term.ContestReason = strings.TrimSpace(reason)
	if err := uc.terms.SaveCompletionTerm(ctx, term); err != nil {
		return nil, err
	}

	uc.audit.Dispatch(audit.Event{
		ActorUserID: &actor.UserID,
		Action:      "completion_contested",
		Entity:      "completion_term",
		EntityID:    &term.ID,
		Metadata:    map[string]any{"reason": term.ContestReason},
	})
	// a outra parte é avisada
	recipient := ap.ProviderID
	if isProvider {
		recipient = ap.ClientID
	}
	uc.notify.Dispatch(notification.Event{
		UserID: recipient,
		Title:  "Conclusão contestada",
		Body:   "A conclusão do serviço foi contestada.",
		Data:   map[string]any{"appointment_id": ap.ID},
	})

	if uc.escalator != nil {
		uc.escalator.Escalate(ctx, ap, term)
	}

	return term, nil
}
