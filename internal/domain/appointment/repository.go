package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/homerepairhub/repair-scheduler/internal/models"
)

type Repository interface {
	// -------- Users / requests / proposals --------
	GetUserByID(
		ctx context.Context,
		id uuid.UUID,
	) (*models.User, error)

	GetServiceRequestByID(
		ctx context.Context,
		id uuid.UUID,
	) (*models.ServiceRequest, error)

	GetAcceptedProposal(
		ctx context.Context,
		requestID uuid.UUID,
		providerID uuid.UUID,
	) (*models.ServiceProposal, error)

	UpdateServiceRequestStatus(
		ctx context.Context,
		requestID uuid.UUID,
		status string,
	) error

	// -------- Appointment (create / conflict) --------
	CreateAppointment(
		ctx context.Context,
		ap *models.ServiceAppointment,
	) error

	GetAppointmentByID(
		ctx context.Context,
		id uuid.UUID,
	) (*models.ServiceAppointment, error)

	GetBlockingAppointmentByRequest(
		ctx context.Context,
		requestID uuid.UUID,
	) (*models.ServiceAppointment, error)

	ListBlockingAppointmentsInRange(
		ctx context.Context,
		providerID uuid.UUID,
		start time.Time,
		end time.Time,
	) ([]models.ServiceAppointment, error)

	// -------- Appointment (state change) --------
	UpdateAppointment(
		ctx context.Context,
		ap *models.ServiceAppointment,
	) error

	// CasAppointmentStatus conditionally moves id from one status to another,
	// applying updates atomically. Returns false when the precondition no
	// longer holds (someone else transitioned first).
	CasAppointmentStatus(
		ctx context.Context,
		id uuid.UUID,
		from Status,
		to Status,
		updates map[string]any,
	) (bool, error)

	AddHistory(
		ctx context.Context,
		h *models.AppointmentHistory,
	) error

	ListHistory(
		ctx context.Context,
		appointmentID uuid.UUID,
	) ([]models.AppointmentHistory, error)

	// -------- Listing --------
	ListAppointmentsByProvider(
		ctx context.Context,
		providerID uuid.UUID,
		from *time.Time,
		to *time.Time,
	) ([]models.ServiceAppointment, error)

	ListAppointmentsByClient(
		ctx context.Context,
		clientID uuid.UUID,
		from *time.Time,
		to *time.Time,
	) ([]models.ServiceAppointment, error)

	// -------- Availability --------
	ListAvailabilityRules(
		ctx context.Context,
		providerID uuid.UUID,
	) ([]models.AvailabilityRule, error)

	GetAvailabilityRule(
		ctx context.Context,
		id uuid.UUID,
	) (*models.AvailabilityRule, error)

	CreateAvailabilityRule(
		ctx context.Context,
		rule *models.AvailabilityRule,
	) error

	DeleteAvailabilityRule(
		ctx context.Context,
		id uuid.UUID,
	) error

	ListAvailabilityExceptions(
		ctx context.Context,
		providerID uuid.UUID,
		start time.Time,
		end time.Time,
	) ([]models.AvailabilityException, error)

	GetAvailabilityException(
		ctx context.Context,
		id uuid.UUID,
	) (*models.AvailabilityException, error)

	CreateAvailabilityException(
		ctx context.Context,
		exc *models.AvailabilityException,
	) error

	DeleteAvailabilityException(
		ctx context.Context,
		id uuid.UUID,
	) error

	// -------- Expiry sweep --------
	ListExpirablePending(
		ctx context.Context,
		now time.Time,
		limit int,
	) ([]models.ServiceAppointment, error)

	ListElapsedConfirmed(
		ctx context.Context,
		now time.Time,
		limit int,
	) ([]models.ServiceAppointment, error)
}

type ScopeChangeRepository interface {
	GetPendingScopeChange(
		ctx context.Context,
		appointmentID uuid.UUID,
	) (*models.ScopeChangeRequest, error)

	CreateScopeChange(
		ctx context.Context,
		sc *models.ScopeChangeRequest,
	) error

	GetScopeChangeByID(
		ctx context.Context,
		id uuid.UUID,
	) (*models.ScopeChangeRequest, error)

	UpdateScopeChange(
		ctx context.Context,
		sc *models.ScopeChangeRequest,
	) error

	CountAttachments(
		ctx context.Context,
		scopeChangeID uuid.UUID,
	) (int64, error)

	AddAttachment(
		ctx context.Context,
		att *models.ScopeChangeAttachment,
	) error

	ListScopeChangesByServiceRequest(
		ctx context.Context,
		serviceRequestID uuid.UUID,
	) ([]models.ScopeChangeRequest, error)

	ExpirePendingScopeChangesBefore(
		ctx context.Context,
		now time.Time,
	) (int64, error)
}

type CompletionRepository interface {
	GetCompletionTerm(
		ctx context.Context,
		appointmentID uuid.UUID,
	) (*models.CompletionTerm, error)

	SaveCompletionTerm(
		ctx context.Context,
		term *models.CompletionTerm,
	) error
}

type ChecklistRepository interface {
	GetActiveTemplateByCategory(
		ctx context.Context,
		category string,
	) (*models.ChecklistTemplate, error)

	GetChecklistItem(
		ctx context.Context,
		itemID uuid.UUID,
	) (*models.ChecklistItem, error)

	ListChecklistResponses(
		ctx context.Context,
		appointmentID uuid.UUID,
	) ([]models.ChecklistResponse, error)

	GetChecklistResponse(
		ctx context.Context,
		appointmentID uuid.UUID,
		itemID uuid.UUID,
	) (*models.ChecklistResponse, error)

	SaveChecklistResponse(
		ctx context.Context,
		resp *models.ChecklistResponse,
	) error
}
