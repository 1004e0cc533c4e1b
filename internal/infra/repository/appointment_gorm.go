package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	domain "github.com/homerepairhub/repair-scheduler/internal/domain/appointment"
	"github.com/homerepairhub/repair-scheduler/internal/httperr"
	"github.com/homerepairhub/repair-scheduler/internal/models"
)

type AppointmentGormRepository struct {
	db *gorm.DB
}

func NewAppointmentGormRepository(db *gorm.DB) *AppointmentGormRepository {
	return &AppointmentGormRepository{db: db}
}

// translateConflict maps Postgres constraint violations into the business
// codes callers expect. The exclusion constraint over (provider_id, window)
// is the storage-layer backstop for the no-double-booking invariant.
func translateConflict(err error, code string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 23P01 exclusion_violation, 23505 unique_violation
		if pgErr.Code == "23P01" || pgErr.Code == "23505" {
			return httperr.ErrBusiness(code)
		}
	}
	return err
}

// --------------------------------------------------
// Users / requests / proposals
// --------------------------------------------------

func (r *AppointmentGormRepository) GetUserByID(
	ctx context.Context,
	id uuid.UUID,
) (*models.User, error) {

	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *AppointmentGormRepository) GetServiceRequestByID(
	ctx context.Context,
	id uuid.UUID,
) (*models.ServiceRequest, error) {

	var req models.ServiceRequest
	if err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *AppointmentGormRepository) GetAcceptedProposal(
	ctx context.Context,
	requestID uuid.UUID,
	providerID uuid.UUID,
) (*models.ServiceProposal, error) {

	var proposal models.ServiceProposal
	if err := r.db.WithContext(ctx).
		Where(
			"service_request_id = ? AND provider_id = ? AND accepted = ? AND is_invalidated = ?",
			requestID, providerID, true, false,
		).
		First(&proposal).Error; err != nil {
		return nil, err
	}
	return &proposal, nil
}

func (r *AppointmentGormRepository) UpdateServiceRequestStatus(
	ctx context.Context,
	requestID uuid.UUID,
	status string,
) error {
	return r.db.WithContext(ctx).
		Model(&models.ServiceRequest{}).
		Where("id = ?", requestID).
		Update("status", status).Error
}

// --------------------------------------------------
// Appointment (create / conflict)
// --------------------------------------------------

func (r *AppointmentGormRepository) CreateAppointment(
	ctx context.Context,
	ap *models.ServiceAppointment,
) error {
	err := r.db.WithContext(ctx).Create(ap).Error
	return translateConflict(err, "slot_unavailable")
}

func (r *AppointmentGormRepository) GetAppointmentByID(
	ctx context.Context,
	id uuid.UUID,
) (*models.ServiceAppointment, error) {

	var ap models.ServiceAppointment
	if err := r.db.WithContext(ctx).First(&ap, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ap, nil
}

func (r *AppointmentGormRepository) GetBlockingAppointmentByRequest(
	ctx context.Context,
	requestID uuid.UUID,
) (*models.ServiceAppointment, error) {

	var ap models.ServiceAppointment
	err := r.db.WithContext(ctx).
		Where("service_request_id = ? AND status IN ?", requestID, domain.BlockingStatuses()).
		First(&ap).Error
	if err != nil {
		return nil, err
	}
	return &ap, nil
}

func (r *AppointmentGormRepository) ListBlockingAppointmentsInRange(
	ctx context.Context,
	providerID uuid.UUID,
	start time.Time,
	end time.Time,
) ([]models.ServiceAppointment, error) {

	var apps []models.ServiceAppointment
	err := r.db.WithContext(ctx).
		Where(
			"provider_id = ? AND status IN ? AND window_start_utc < ? AND window_end_utc > ?",
			providerID, domain.BlockingStatuses(), end, start,
		).
		Order("window_start_utc ASC").
		Find(&apps).Error
	if err != nil {
		return nil, err
	}
	return apps, nil
}

// --------------------------------------------------
// Appointment (state change)
// --------------------------------------------------

func (r *AppointmentGormRepository) UpdateAppointment(
	ctx context.Context,
	ap *models.ServiceAppointment,
) error {
	err := r.db.WithContext(ctx).Save(ap).Error
	return translateConflict(err, "slot_unavailable")
}

func (r *AppointmentGormRepository) CasAppointmentStatus(
	ctx context.Context,
	id uuid.UUID,
	from domain.Status,
	to domain.Status,
	updates map[string]any,
) (bool, error) {

	if updates == nil {
		updates = map[string]any{}
	}
	updates["status"] = string(to)

	res := r.db.WithContext(ctx).
		Model(&models.ServiceAppointment{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *AppointmentGormRepository) AddHistory(
	ctx context.Context,
	h *models.AppointmentHistory,
) error {
	return r.db.WithContext(ctx).Create(h).Error
}

func (r *AppointmentGormRepository) ListHistory(
	ctx context.Context,
	appointmentID uuid.UUID,
) ([]models.AppointmentHistory, error) {

	var history []models.AppointmentHistory
	err := r.db.WithContext(ctx).
		Where("appointment_id = ?", appointmentID).
		Order("occurred_at ASC, id ASC").
		Find(&history).Error
	if err != nil {
		return nil, err
	}
	return history, nil
}

// --------------------------------------------------
// Listing
// --------------------------------------------------

func (r *AppointmentGormRepository) listAppointments(
	ctx context.Context,
	column string,
	id uuid.UUID,
	from *time.Time,
	to *time.Time,
) ([]models.ServiceAppointment, error) {

	q := r.db.WithContext(ctx).Where(column+" = ?", id)
	if from != nil {
		q = q.Where("window_start_utc >= ?", *from)
	}
	if to != nil {
		q = q.Where("window_start_utc < ?", *to)
	}

	var apps []models.ServiceAppointment
	if err := q.Order("window_start_utc ASC").Find(&apps).Error; err != nil {
		return nil, err
	}
	return apps, nil
}

func (r *AppointmentGormRepository) ListAppointmentsByProvider(
	ctx context.Context,
	providerID uuid.UUID,
	from *time.Time,
	to *time.Time,
) ([]models.ServiceAppointment, error) {
	return r.listAppointments(ctx, "provider_id", providerID, from, to)
}

func (r *AppointmentGormRepository) ListAppointmentsByClient(
	ctx context.Context,
	clientID uuid.UUID,
	from *time.Time,
	to *time.Time,
) ([]models.ServiceAppointment, error) {
	return r.listAppointments(ctx, "client_id", clientID, from, to)
}

// --------------------------------------------------
// Availability
// --------------------------------------------------

func (r *AppointmentGormRepository) ListAvailabilityRules(
	ctx context.Context,
	providerID uuid.UUID,
) ([]models.AvailabilityRule, error) {

	var rules []models.AvailabilityRule
	err := r.db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Order("weekday ASC, start_time ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *AppointmentGormRepository) GetAvailabilityRule(
	ctx context.Context,
	id uuid.UUID,
) (*models.AvailabilityRule, error) {

	var rule models.AvailabilityRule
	if err := r.db.WithContext(ctx).First(&rule, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *AppointmentGormRepository) CreateAvailabilityRule(
	ctx context.Context,
	rule *models.AvailabilityRule,
) error {
	err := r.db.WithContext(ctx).Create(rule).Error
	return translateConflict(err, "rule_overlap")
}

func (r *AppointmentGormRepository) DeleteAvailabilityRule(
	ctx context.Context,
	id uuid.UUID,
) error {
	return r.db.WithContext(ctx).
		Delete(&models.AvailabilityRule{}, "id = ?", id).Error
}

func (r *AppointmentGormRepository) ListAvailabilityExceptions(
	ctx context.Context,
	providerID uuid.UUID,
	start time.Time,
	end time.Time,
) ([]models.AvailabilityException, error) {

	var excs []models.AvailabilityException
	err := r.db.WithContext(ctx).
		Where(
			"provider_id = ? AND starts_at_utc < ? AND ends_at_utc > ?",
			providerID, end, start,
		).
		Order("starts_at_utc ASC").
		Find(&excs).Error
	if err != nil {
		return nil, err
	}
	return excs, nil
}

func (r *AppointmentGormRepository) GetAvailabilityException(
	ctx context.Context,
	id uuid.UUID,
) (*models.AvailabilityException, error) {

	var exc models.AvailabilityException
	if err := r.db.WithContext(ctx).First(&exc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &exc, nil
}

func (r *AppointmentGormRepository) CreateAvailabilityException(
	ctx context.Context,
	exc *models.AvailabilityException,
) error {
	err := r.db.WithContext(ctx).Create(exc).Error
	return translateConflict(err, "block_overlap")
}

func (r *AppointmentGormRepository) DeleteAvailabilityException(
	ctx context.Context,
	id uuid.UUID,
) error {
	return r.db.WithContext(ctx).
		Delete(&models.AvailabilityException{}, "id = ?", id).Error
}

// --------------------------------------------------
// Expiry sweep
// --------------------------------------------------

func (r *AppointmentGormRepository) ListExpirablePending(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]models.ServiceAppointment, error) {

	var apps []models.ServiceAppointment
	err := r.db.WithContext(ctx).
		Where(
			"status = ? AND expires_at IS NOT NULL AND expires_at < ?",
			string(domain.StatusPendingProviderConfirmation), now,
		).
		Limit(limit).
		Find(&apps).Error
	if err != nil {
		return nil, err
	}
	return apps, nil
}

func (r *AppointmentGormRepository) ListElapsedConfirmed(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]models.ServiceAppointment, error) {

	var apps []models.ServiceAppointment
	err := r.db.WithContext(ctx).
		Where(
			"status IN ? AND window_end_utc < ? AND arrived_at IS NULL",
			[]string{string(domain.StatusConfirmed), string(domain.StatusRescheduleConfirmed)},
			now,
		).
		Limit(limit).
		Find(&apps).Error
	if err != nil {
		return nil, err
	}
	return apps, nil
}

// --------------------------------------------------
// Scope changes
// --------------------------------------------------

func (r *AppointmentGormRepository) GetPendingScopeChange(
	ctx context.Context,
	appointmentID uuid.UUID,
) (*models.ScopeChangeRequest, error) {

	var sc models.ScopeChangeRequest
	err := r.db.WithContext(ctx).
		Where("appointment_id = ? AND status = ?", appointmentID, models.ScopeChangeStatusPending).
		First(&sc).Error
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

func (r *AppointmentGormRepository) CreateScopeChange(
	ctx context.Context,
	sc *models.ScopeChangeRequest,
) error {
	return r.db.WithContext(ctx).Create(sc).Error
}

func (r *AppointmentGormRepository) GetScopeChangeByID(
	ctx context.Context,
	id uuid.UUID,
) (*models.ScopeChangeRequest, error) {

	var sc models.ScopeChangeRequest
	err := r.db.WithContext(ctx).
		Preload("Attachments").
		First(&sc, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

func (r *AppointmentGormRepository) UpdateScopeChange(
	ctx context.Context,
	sc *models.ScopeChangeRequest,
) error {
	return r.db.WithContext(ctx).
		Omit("Attachments").
		Save(sc).Error
}

func (r *AppointmentGormRepository) CountAttachments(
	ctx context.Context,
	scopeChangeID uuid.UUID,
) (int64, error) {

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ScopeChangeAttachment{}).
		Where("scope_change_request_id = ?", scopeChangeID).
		Count(&count).Error
	return count, err
}

func (r *AppointmentGormRepository) AddAttachment(
	ctx context.Context,
	att *models.ScopeChangeAttachment,
) error {
	return r.db.WithContext(ctx).Create(att).Error
}

func (r *AppointmentGormRepository) ListScopeChangesByServiceRequest(
	ctx context.Context,
	serviceRequestID uuid.UUID,
) ([]models.ScopeChangeRequest, error) {

	var scs []models.ScopeChangeRequest
	err := r.db.WithContext(ctx).
		Preload("Attachments").
		Joins("JOIN service_appointments ON service_appointments.id = scope_change_requests.appointment_id").
		Where("service_appointments.service_request_id = ?", serviceRequestID).
		Order("scope_change_requests.created_at ASC").
		Find(&scs).Error
	if err != nil {
		return nil, err
	}
	return scs, nil
}

func (r *AppointmentGormRepository) ExpirePendingScopeChangesBefore(
	ctx context.Context,
	now time.Time,
) (int64, error) {

	res := r.db.WithContext(ctx).
		Model(&models.ScopeChangeRequest{}).
		Where("status = ? AND expires_at < ?", models.ScopeChangeStatusPending, now).
		Update("status", models.ScopeChangeStatusExpired)
	return res.RowsAffected, res.Error
}

// --------------------------------------------------
// Completion terms
// --------------------------------------------------

func (r *AppointmentGormRepository) GetCompletionTerm(
	ctx context.Context,
	appointmentID uuid.UUID,
) (*models.CompletionTerm, error) {

	var term models.CompletionTerm
	err := r.db.WithContext(ctx).
		Where("appointment_id = ?", appointmentID).
		First(&term).Error
	if err != nil {
		return nil, err
	}
	return &term, nil
}

func (r *AppointmentGormRepository) SaveCompletionTerm(
	ctx context.Context,
	term *models.CompletionTerm,
) error {
	return r.db.WithContext(ctx).Save(term).Error
}

// --------------------------------------------------
// Checklist
// --------------------------------------------------

func (r *AppointmentGormRepository) GetActiveTemplateByCategory(
	ctx context.Context,
	category string,
) (*models.ChecklistTemplate, error) {

	var tpl models.ChecklistTemplate
	err := r.db.WithContext(ctx).
		Preload("Items", "is_active = ?", true).
		Where("category = ? AND is_active = ?", category, true).
		First(&tpl).Error
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *AppointmentGormRepository) GetChecklistItem(
	ctx context.Context,
	itemID uuid.UUID,
) (*models.ChecklistItem, error) {

	var item models.ChecklistItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", itemID).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *AppointmentGormRepository) ListChecklistResponses(
	ctx context.Context,
	appointmentID uuid.UUID,
) ([]models.ChecklistResponse, error) {

	var responses []models.ChecklistResponse
	err := r.db.WithContext(ctx).
		Where("appointment_id = ?", appointmentID).
		Find(&responses).Error
	if err != nil {
		return nil, err
	}
	return responses, nil
}

func (r *AppointmentGormRepository) GetChecklistResponse(
	ctx context.Context,
	appointmentID uuid.UUID,
	itemID uuid.UUID,
) (*models.ChecklistResponse, error) {

	var resp models.ChecklistResponse
	err := r.db.WithContext(ctx).
		Where("appointment_id = ? AND item_id = ?", appointmentID, itemID).
		First(&resp).Error
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *AppointmentGormRepository) SaveChecklistResponse(
	ctx context.Context,
	resp *models.ChecklistResponse,
) error {
	return r.db.WithContext(ctx).Save(resp).Error
}

// Compile-time checks
var (
	_ domain.Repository            = (*AppointmentGormRepository)(nil)
	_ domain.ScopeChangeRepository = (*AppointmentGormRepository)(nil)
	_ domain.CompletionRepository  = (*AppointmentGormRepository)(nil)
	_ domain.ChecklistRepository   = (*AppointmentGormRepository)(nil)
)
