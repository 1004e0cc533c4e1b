package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ScopeChangeStatusPending  = "pending"
	ScopeChangeStatusApproved = "approved"
	ScopeChangeStatusRejected = "rejected"
	ScopeChangeStatusExpired  = "expired"
)

type ScopeChangeRequest struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	AppointmentID uuid.UUID          `gorm:"type:uuid;index;not null" json:"appointment_id"`
	Appointment   ServiceAppointment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`

	RequestedByRole string `gorm:"size:20;not null" json:"requested_by_role"`

	Reason      string `gorm:"size:500;not null" json:"reason"`
	Description string `gorm:"size:2000;not null" json:"description"`

	EstimatedValueDelta *float64 `json:"estimated_value_delta"`

	Status    string    `gorm:"size:20;default:'pending';index" json:"status"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`

	DecidedAt      *time.Time `json:"decided_at"`
	DecisionReason string     `gorm:"size:500" json:"decision_reason"`

	Attachments []ScopeChangeAttachment `json:"attachments"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *ScopeChangeRequest) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

type ScopeChangeAttachment struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	ScopeChangeRequestID uuid.UUID `gorm:"type:uuid;index;not null" json:"scope_change_request_id"`

	// Opaque storage key owned by the file-storage collaborator.
	StorageKey  string `gorm:"size:500;not null" json:"storage_key"`
	FileName    string `gorm:"size:255" json:"file_name"`
	ContentType string `gorm:"size:100" json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`

	CreatedAt time.Time `json:"created_at"`
}

func (a *ScopeChangeAttachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
