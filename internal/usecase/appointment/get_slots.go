package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/homerepairhub/repair-scheduler/internal/auth"
	domain "github.com/homerepairhub/repair-scheduler/internal/domain/appointment"
	"github.com/homerepairhub/repair-scheduler/internal/httperr"
	"github.com/homerepairhub/repair-scheduler/internal/timezone"
)

type GetAvailableSlotsInput struct {
	ProviderID uuid.UUID

	FromUtc time.Time
	ToUtc   time.Time

	// 0 usa a duração configurada em cada regra
	SlotDurationMinutes int
}

type GetAvailableSlots struct {
	repo domain.Repository

	rangeMaxDays int

	now func() time.Time
}

func NewGetAvailableSlots(
	repo domain.Repository,
	rangeMaxDays int,
) *GetAvailableSlots {
	return &GetAvailableSlots{
		repo:         repo,
		rangeMaxDays: rangeMaxDays,
		now:          time.Now,
	}
}

func (uc *GetAvailableSlots) Execute(
	ctx context.Context,
	in GetAvailableSlotsInput,
) ([]domain.Window, error) {

	if !in.FromUtc.Before(in.ToUtc) {
		return nil, httperr.ErrBusiness("invalid_window")
	}
	if in.ToUtc.Sub(in.FromUtc) > time.Duration(uc.rangeMaxDays)*24*time.Hour {
		return nil, httperr.ErrBusiness("range_too_large")
	}
	if in.SlotDurationMinutes != 0 &&
		(in.SlotDurationMinutes < domain.MinSlotDurationMinutes ||
			in.SlotDurationMinutes > domain.MaxSlotDurationMinutes) {
		return nil, httperr.ErrBusiness("invalid_slot_duration")
	}

	provider, err := uc.repo.GetUserByID(ctx, in.ProviderID)
	if err != nil || provider.Role != string(auth.RoleProvider) || !provider.IsActive {
		return nil, httperr.ErrBusiness("provider_not_found")
	}

	rules, err := uc.repo.ListAvailabilityRules(ctx, provider.ID)
	if err != nil {
		return nil, err
	}
	exceptions, err := uc.repo.ListAvailabilityExceptions(ctx, provider.ID, in.FromUtc, in.ToUtc)
	if err != nil {
		return nil, err
	}
	blocking, err := uc.repo.ListBlockingAppointmentsInRange(ctx, provider.ID, in.FromUtc, in.ToUtc)
	if err != nil {
		return nil, err
	}

	slots := domain.ComputeAvailableSlots(rules, exceptions, blocking, domain.SlotQuery{
		FromUtc:             in.FromUtc.UTC(),
		ToUtc:               in.ToUtc.UTC(),
		SlotDurationMinutes: in.SlotDurationMinutes,
		Now:                 uc.now().UTC(),
		Location:            timezone.Location(provider.Timezone),
	})

	// lista vazia é resposta normal, nunca erro
	if slots == nil {
		slots = []domain.Window{}
	}
	return slots, nil
}
