package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RequestStatusOpen      = "open"
	RequestStatusScheduled = "scheduled"
	RequestStatusCompleted = "completed"
	RequestStatusCancelled = "cancelled"
)

type ServiceRequest struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	ClientID uuid.UUID `gorm:"type:uuid;index;not null" json:"client_id"`
	Client   User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`

	Category    string `gorm:"size:60;not null" json:"category"`
	Description string `gorm:"size:2000" json:"description"`

	Status string `gorm:"size:20;default:'open'" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *ServiceRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// ServiceProposal is the commercial proposal a provider made for a request.
// Only an accepted, non-invalidated proposal authorizes an appointment.
type ServiceProposal struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	ServiceRequestID uuid.UUID `gorm:"type:uuid;index;not null" json:"service_request_id"`
	ProviderID       uuid.UUID `gorm:"type:uuid;index;not null" json:"provider_id"`

	Amount        float64 `json:"amount"`
	Accepted      bool    `gorm:"default:false" json:"accepted"`
	IsInvalidated bool    `gorm:"default:false" json:"is_invalidated"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *ServiceProposal) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
