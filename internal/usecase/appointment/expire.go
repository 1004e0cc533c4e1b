package appointment

import (
	"context"
	"time"

	"github.com/homerepairhub/repair-scheduler/internal/audit"
	domain "github.com/homerepairhub/repair-scheduler/internal/domain/appointment"
	"github.com/homerepairhub/repair-scheduler/internal/models"
	"github.com/homerepairhub/repair-scheduler/internal/notification"
)

const expireBatchSize = 200

// ExpireAppointments is the periodic sweep over appointments whose deadline
// passed: pending visits the provider never answered, and confirmed visits
// whose window elapsed without a check-in. Each row moves via CAS, so a
// concurrent confirmation always wins over the sweeper.
type ExpireAppointments struct {
	repo   domain.Repository
	audit  *audit.Dispatcher
	notify *notification.Dispatcher

	now func() time.Time
}

func NewExpireAppointments(
	repo domain.Repository,
	auditD *audit.Dispatcher,
	notify *notification.Dispatcher,
) *ExpireAppointments {
	return &ExpireAppointments{
		repo:   repo,
		audit:  auditD,
		notify: notify,
		now:    time.Now,
	}
}

// Execute returns how many appointments were expired in this pass.
func (uc *ExpireAppointments) Execute(ctx context.Context) (int, error) {
	now := uc.now().UTC()
	expired := 0

	pending, err := uc.repo.ListExpirablePending(ctx, now, expireBatchSize)
	if err != nil {
		return expired, err
	}
	for i := range pending {
		if uc.expireOne(ctx, &pending[i], "provider confirmation window elapsed") {
			expired++
		}
	}

	elapsed, err := uc.repo.ListElapsedConfirmed(ctx, now, expireBatchSize)
	if err != nil {
		return expired, err
	}
	for i := range elapsed {
		if uc.expireOne(ctx, &elapsed[i], "visit window elapsed without check-in") {
			expired++
		}
	}

	return expired, nil
}

func (uc *ExpireAppointments) expireOne(
	ctx context.Context,
	ap *models.ServiceAppointment,
	reason string,
) bool {

	current := domain.Status(ap.Status)
	ok, err := uc.repo.CasAppointmentStatus(ctx, ap.ID,
		current, domain.StatusExpiredWithoutProviderAction, map[string]any{
			"expires_at": nil,
		})
	if err != nil || !ok {
		return false
	}

	prev := string(current)
	_ = uc.repo.AddHistory(ctx, &models.AppointmentHistory{
		AppointmentID:  ap.ID,
		PreviousStatus: &prev,
		NewStatus:      string(domain.StatusExpiredWithoutProviderAction),
		ActorRole:      "system",
		Reason:         reason,
	})

	_ = uc.repo.UpdateServiceRequestStatus(ctx, ap.ServiceRequestID, models.RequestStatusOpen)

	uc.audit.Dispatch(audit.Event{
		Action:   "appointment_expired",
		Entity:   "appointment",
		EntityID: &ap.ID,
		Metadata: map[string]any{"reason": reason},
	})
	uc.notify.Dispatch(notification.Event{
		UserID: ap.ClientID,
		Title:  "Visita expirada",
		Body:   "A visita expirou sem ação do prestador. Escolha outro horário.",
		Data:   map[string]any{"appointment_id": ap.ID},
	})

	return true
}
