package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/homerepairhub/repair-scheduler/internal/auth"
	domain "github.com/homerepairhub/repair-scheduler/internal/domain/appointment"
	"github.com/homerepairhub/repair-scheduler/internal/httperr"
	"github.com/homerepairhub/repair-scheduler/internal/models"
)

// AppointmentDetail is the appointment plus its transition history.
type AppointmentDetail struct {
	Appointment *models.ServiceAppointment  `json:"appointment"`
	History     []models.AppointmentHistory `json:"history"`
}

type GetAppointment struct {
	repo domain.Repository
}

func NewGetAppointment(repo domain.Repository) *GetAppointment {
	return &GetAppointment{repo: repo}
}

func (uc *GetAppointment) Execute(
	ctx context.Context,
	actor auth.Actor,
	appointmentID uuid.UUID,
) (*AppointmentDetail, error) {

	ap, err := uc.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, httperr.ErrBusiness("appointment_not_found")
	}
	if !CanAccess(actor, ap) {
		return nil, httperr.ErrBusiness("forbidden")
	}

	history, err := uc.repo.ListHistory(ctx, ap.ID)
	if err != nil {
		return nil, err
	}

	return &AppointmentDetail{Appointment: ap, History: history}, nil
}

// CanAccess limits appointment reads to its participants and admins.
func CanAccess(actor auth.Actor, ap *models.ServiceAppointment) bool {
	if actor.IsAdmin() {
		return true
	}
	if actor.IsClient() && ap.ClientID == actor.UserID {
		return true
	}
	if actor.IsProvider() && ap.ProviderID == actor.UserID {
		return true
	}
	return false
}

type ListMyAppointmentsInput struct {
	Actor auth.Actor

	FromUtc *time.Time
	ToUtc   *time.Time
}

type ListMyAppointments struct {
	repo domain.Repository
}

func NewListMyAppointments(repo domain.Repository) *ListMyAppointments {
	return &ListMyAppointments{repo: repo}
}

func (uc *ListMyAppointments) Execute(
	ctx context.Context,
	in ListMyAppointmentsInput,
) ([]models.ServiceAppointment, error) {

	var (
		apps []models.ServiceAppointment
		err  error
	)

	switch {
	case in.Actor.IsClient():
		apps, err = uc.repo.ListAppointmentsByClient(ctx, in.Actor.UserID, in.FromUtc, in.ToUtc)
	case in.Actor.IsProvider():
		apps, err = uc.repo.ListAppointmentsByProvider(ctx, in.Actor.UserID, in.FromUtc, in.ToUtc)
	default:
		return nil, httperr.ErrBusiness("forbidden")
	}
	if err != nil {
		return nil, err
	}

	if apps == nil {
		apps = []models.ServiceAppointment{}
	}
	return apps, nil
}
