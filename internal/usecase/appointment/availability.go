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
	"github.com/homerepairhub/repair-scheduler/internal/timezone"
)

// ======================================================
// Regras recorrentes
// ======================================================

type AddAvailabilityRuleInput struct {
	Actor auth.Actor

	Weekday             int
	StartTime           string
	EndTime             string
	SlotDurationMinutes int
}

type AddAvailabilityRule struct {
	repo  domain.Repository
	audit *audit.Dispatcher
}

func NewAddAvailabilityRule(
	repo domain.Repository,
	auditD *audit.Dispatcher,
) *AddAvailabilityRule {
	return &AddAvailabilityRule{repo: repo, audit: auditD}
}

func (uc *AddAvailabilityRule) Execute(
	ctx context.Context,
	in AddAvailabilityRuleInput,
) (*models.AvailabilityRule, error) {

	if !in.Actor.IsProvider() {
		return nil, httperr.ErrBusiness("forbidden")
	}

	if in.Weekday < 0 || in.Weekday > 6 {
		return nil, httperr.ErrBusiness("invalid_rule")
	}

	start, errS := time.Parse("15:04", in.StartTime)
	end, errE := time.Parse("15:04", in.EndTime)
	if errS != nil || errE != nil || !start.Before(end) {
		return nil, httperr.ErrBusiness("invalid_rule")
	}

	if in.SlotDurationMinutes == 0 {
		in.SlotDurationMinutes = 60
	}
	if in.SlotDurationMinutes < domain.MinSlotDurationMinutes ||
		in.SlotDurationMinutes > domain.MaxSlotDurationMinutes {
		return nil, httperr.ErrBusiness("invalid_slot_duration")
	}

	existing, err := uc.repo.ListAvailabilityRules(ctx, in.Actor.UserID)
	if err != nil {
		return nil, err
	}
	for _, r := range existing {
		if r.Weekday != in.Weekday {
			continue
		}
		// mesma semântica de janela aberta das janelas de visita
		if in.StartTime < r.EndTime && r.StartTime < in.EndTime {
			return nil, httperr.ErrBusiness("rule_overlap")
		}
	}

	rule := &models.AvailabilityRule{
		ProviderID:          in.Actor.UserID,
		Weekday:             in.Weekday,
		StartTime:           in.StartTime,
		EndTime:             in.EndTime,
		SlotDurationMinutes: in.SlotDurationMinutes,
	}
	if err := uc.repo.CreateAvailabilityRule(ctx, rule); err != nil {
		return nil, err
	}

	uc.audit.Dispatch(audit.Event{
		ActorUserID: &in.Actor.UserID,
		Action:      "availability_rule_added",
		Entity:      "availability_rule",
		EntityID:    &rule.ID,
	})

	return rule, nil
}

type RemoveAvailabilityRule struct {
	repo  domain.Repository
	audit *audit.Dispatcher
}

func NewRemoveAvailabilityRule(
	repo domain.Repository,
	auditD *audit.Dispatcher,
) *RemoveAvailabilityRule {
	return &RemoveAvailabilityRule{repo: repo, audit: auditD}
}

func (uc *RemoveAvailabilityRule) Execute(
	ctx context.Context,
	actor auth.Actor,
	ruleID uuid.UUID,
) error {

	rule, err := uc.repo.GetAvailabilityRule(ctx, ruleID)
	if err != nil {
		return httperr.ErrBusiness("rule_not_found")
	}
	if !actor.IsProvider() || rule.ProviderID != actor.UserID {
		return httperr.ErrBusiness("forbidden")
	}

	if err := uc.repo.DeleteAvailabilityRule(ctx, ruleID); err != nil {
		return err
	}

	uc.audit.Dispatch(audit.Event{
		ActorUserID: &actor.UserID,
		Action:      "availability_rule_removed",
		Entity:      "availability_rule",
		EntityID:    &ruleID,
	})
	return nil
}

// ======================================================
// Bloqueios pontuais
// ======================================================

type AddAvailabilityExceptionInput struct {
	Actor auth.Actor

	StartsAtUtc time.Time
	EndsAtUtc   time.Time
	Reason      string
}

type AddAvailabilityException struct {
	repo  domain.Repository
	audit *audit.Dispatcher
}

func NewAddAvailabilityException(
	repo domain.Repository,
	auditD *audit.Dispatcher,
) *AddAvailabilityException {
	return &AddAvailabilityException{repo: repo, audit: auditD}
}

func (uc *AddAvailabilityException) Execute(
	ctx context.Context,
	in AddAvailabilityExceptionInput,
) (*models.AvailabilityException, error) {

	if !in.Actor.IsProvider() {
		return nil, httperr.ErrBusiness("forbidden")
	}

	window := domain.Window{Start: in.StartsAtUtc.UTC(), End: in.EndsAtUtc.UTC()}
	if !window.Valid() {
		return nil, httperr.ErrBusiness("invalid_window")
	}

	existing, err := uc.repo.ListAvailabilityExceptions(ctx, in.Actor.UserID, window.Start, window.End)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, httperr.ErrBusiness("block_overlap")
	}

	// bloqueio não passa por cima de visita já reservada
	blocking, err := uc.repo.ListBlockingAppointmentsInRange(ctx, in.Actor.UserID, window.Start, window.End)
	if err != nil {
		return nil, err
	}
	if conflict := domain.FirstConflicting(window, blocking, nil); conflict != nil {
		return nil, httperr.ErrBusiness("block_conflict_appointment")
	}

	exc := &models.AvailabilityException{
		ProviderID:  in.Actor.UserID,
		StartsAtUtc: window.Start,
		EndsAtUtc:   window.End,
		Reason:      in.Reason,
	}
	if err := uc.repo.CreateAvailabilityException(ctx, exc); err != nil {
		return nil, err
	}

	uc.audit.Dispatch(audit.Event{
		ActorUserID: &in.Actor.UserID,
		Action:      "availability_block_added",
		Entity:      "availability_exception",
		EntityID:    &exc.ID,
	})

	return exc, nil
}

type RemoveAvailabilityException struct {
	repo  domain.Repository
	audit *audit.Dispatcher
}

func NewRemoveAvailabilityException(
	repo domain.Repository,
	auditD *audit.Dispatcher,
) *RemoveAvailabilityException {
	return &RemoveAvailabilityException{repo: repo, audit: auditD}
}

func (uc *RemoveAvailabilityException) Execute(
	ctx context.Context,
	actor auth.Actor,
	exceptionID uuid.UUID,
) error {

	exc, err := uc.repo.GetAvailabilityException(ctx, exceptionID)
	if err != nil {
		return httperr.ErrBusiness("block_not_found")
	}
	if !actor.IsProvider() || exc.ProviderID != actor.UserID {
		return httperr.ErrBusiness("forbidden")
	}

	if err := uc.repo.DeleteAvailabilityException(ctx, exceptionID); err != nil {
		return err
	}

	uc.audit.Dispatch(audit.Event{
		ActorUserID: &actor.UserID,
		Action:      "availability_block_removed",
		Entity:      "availability_exception",
		EntityID:    &exceptionID,
	})
	return nil
}

// ======================================================
// Visão geral da agenda do prestador
// ======================================================

type AvailabilityOverview struct {
	Timezone   string                         `json:"timezone"`
	Rules      []models.AvailabilityRule      `json:"rules"`
	Exceptions []models.AvailabilityException `json:"exceptions"`
}

type GetAvailabilityOverview struct {
	repo domain.Repository

	now func() time.Time
}

func NewGetAvailabilityOverview(repo domain.Repository) *GetAvailabilityOverview {
	return &GetAvailabilityOverview{repo: repo, now: time.Now}
}

func (uc *GetAvailabilityOverview) Execute(
	ctx context.Context,
	actor auth.Actor,
) (*AvailabilityOverview, error) {

	if !actor.IsProvider() {
		return nil, httperr.ErrBusiness("forbidden")
	}

	provider, err := uc.repo.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return nil, httperr.ErrBusiness("provider_not_found")
	}

	rules, err := uc.repo.ListAvailabilityRules(ctx, provider.ID)
	if err != nil {
		return nil, err
	}

	now := uc.now().UTC()
	exceptions, err := uc.repo.ListAvailabilityExceptions(ctx, provider.ID, now, now.AddDate(0, 3, 0))
	if err != nil {
		return nil, err
	}

	tz := provider.Timezone
	if !timezone.IsValid(tz) {
		tz = timezone.DefaultTimezone
	}

	return &AvailabilityOverview{
		Timezone:   tz,
		Rules:      rules,
		Exceptions: exceptions,
	}, nil
}
