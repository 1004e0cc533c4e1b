package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	CompletionTermStatusPending   = "pending"
	CompletionTermStatusConfirmed = "confirmed"
	CompletionTermStatusContested = "contested"
)

// CompletionTerm is the record of the PIN-based mutual completion
// confirmation. One active term per appointment; regenerating the PIN
// resets it. Only the salted hash of the PIN is ever stored.
type CompletionTerm struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	AppointmentID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"appointment_id"`

	PinHash      string    `gorm:"size:255;not null" json:"-"`
	PinExpiresAt time.Time `gorm:"not null" json:"pin_expires_at"`

	FailedAttempts int        `gorm:"default:0" json:"failed_attempts"`
	LockedUntil    *time.Time `json:"locked_until"`
	PinValidatedAt *time.Time `json:"pin_validated_at"`

	ConfirmedByClient     bool       `gorm:"default:false" json:"confirmed_by_client"`
	ConfirmedByClientAt   *time.Time `json:"confirmed_by_client_at"`
	ConfirmedByProvider   bool       `gorm:"default:false" json:"confirmed_by_provider"`
	ConfirmedByProviderAt *time.Time `json:"confirmed_by_provider_at"`

	AcceptanceMethod string `gorm:"size:20" json:"acceptance_method"`
	Signature        string `gorm:"size:500" json:"-"`

	ContestReason string `gorm:"size:500" json:"contest_reason"`

	Status string `gorm:"size:20;default:'pending'" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *CompletionTerm) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
