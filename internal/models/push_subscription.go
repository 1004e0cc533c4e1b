package models

import (
	"time"

	"github.com/google/uuid"
)

// PushSubscription is a web-push endpoint registered by a user's browser.
type PushSubscription struct {
	ID uint `gorm:"primaryKey" json:"id"`

	UserID uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`

	Endpoint string `gorm:"size:500;uniqueIndex;not null" json:"endpoint"`
	P256dh   string `gorm:"size:255;not null" json:"p256dh"`
	Auth     string `gorm:"size:255;not null" json:"auth"`

	CreatedAt time.Time `json:"created_at"`
}
