package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChecklistTemplate defines the per-category checklist. Required items gate
// completion; when RequireBeforeStart is set they gate execution start too.
type ChecklistTemplate struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Category string `gorm:"size:60;index;not null" json:"category"`
	Name     string `gorm:"size:100;not null" json:"name"`

	IsActive           bool `gorm:"default:true" json:"is_active"`
	RequireBeforeStart bool `gorm:"default:false" json:"require_before_start"`

	Items []ChecklistItem `json:"items"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *ChecklistTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

type ChecklistItem struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	ChecklistTemplateID uuid.UUID `gorm:"type:uuid;index;not null" json:"checklist_template_id"`

	Title    string `gorm:"size:255;not null" json:"title"`
	HelpText string `gorm:"size:500" json:"help_text"`

	IsRequired       bool `gorm:"default:false" json:"is_required"`
	RequiresEvidence bool `gorm:"default:false" json:"requires_evidence"`
	AllowNote        bool `gorm:"default:true" json:"allow_note"`

	SortOrder int  `gorm:"default:0" json:"sort_order"`
	IsActive  bool `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (i *ChecklistItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

type ChecklistResponse struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	AppointmentID uuid.UUID `gorm:"type:uuid;index:idx_checklist_response,unique;not null" json:"appointment_id"`
	ItemID        uuid.UUID `gorm:"type:uuid;index:idx_checklist_response,unique;not null" json:"item_id"`

	IsChecked bool   `gorm:"default:false" json:"is_checked"`
	Note      string `gorm:"size:1000" json:"note"`

	// Opaque storage key; empty when no evidence was attached.
	EvidenceKey string `gorm:"size:500" json:"evidence_key"`

	CheckedByUserID *uuid.UUID `gorm:"type:uuid" json:"checked_by_user_id"`
	CheckedAt       *time.Time `json:"checked_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *ChecklistResponse) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
