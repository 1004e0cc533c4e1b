package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ServiceAppointment struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	ServiceRequestID uuid.UUID      `gorm:"type:uuid;index;not null" json:"service_request_id"`
	ServiceRequest   ServiceRequest `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`

	ClientID   uuid.UUID `gorm:"type:uuid;index;not null" json:"client_id"`
	ProviderID uuid.UUID `gorm:"type:uuid;index:idx_appointments_provider_window;not null" json:"provider_id"`

	WindowStartUtc time.Time `gorm:"index:idx_appointments_provider_window;not null" json:"window_start_utc"`
	WindowEndUtc   time.Time `gorm:"not null" json:"window_end_utc"`

	Status string `gorm:"size:40;default:'pending_provider_confirmation';index" json:"status"`

	// Sub-state active only while the visit is being executed.
	OperationalStatus          *string    `gorm:"size:20" json:"operational_status"`
	OperationalStatusUpdatedAt *time.Time `json:"operational_status_updated_at"`

	Reason             string `gorm:"size:500" json:"reason"`
	RejectionReason    string `gorm:"size:500" json:"rejection_reason"`
	CancellationReason string `gorm:"size:500" json:"cancellation_reason"`

	// Provider confirmation SLA deadline while pending.
	ExpiresAt *time.Time `json:"expires_at"`

	ProposedWindowStartUtc    *time.Time `json:"proposed_window_start_utc"`
	ProposedWindowEndUtc      *time.Time `json:"proposed_window_end_utc"`
	RescheduleRequestedByRole *string    `gorm:"size:20" json:"reschedule_requested_by_role"`
	RescheduleReason          string     `gorm:"size:500" json:"reschedule_reason"`

	ConfirmedAt *time.Time `json:"confirmed_at"`
	ArrivedAt   *time.Time `json:"arrived_at"`
	StartedAt   *time.Time `json:"started_at"`
	RejectedAt  *time.Time `json:"rejected_at"`
	CancelledAt *time.Time `json:"cancelled_at"`
	CompletedAt *time.Time `json:"completed_at"`

	PresenceConfirmedByClient *bool      `json:"presence_confirmed_by_client"`
	PresenceRespondedAt       *time.Time `json:"presence_responded_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *ServiceAppointment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// AppointmentHistory records every status transition for audit and disputes.
type AppointmentHistory struct {
	ID uint `gorm:"primaryKey" json:"id"`

	AppointmentID uuid.UUID `gorm:"type:uuid;index;not null" json:"appointment_id"`

	PreviousStatus *string `gorm:"size:40" json:"previous_status"`
	NewStatus      string  `gorm:"size:40;not null" json:"new_status"`

	ActorUserID *uuid.UUID `gorm:"type:uuid" json:"actor_user_id"`
	ActorRole   string     `gorm:"size:20" json:"actor_role"`
	Reason      string     `gorm:"size:500" json:"reason"`

	OccurredAt time.Time `gorm:"autoCreateTime" json:"occurred_at"`
}
