package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/homerepairhub/repair-scheduler/internal/models"
)

type AppointmentListDTO struct {
	ID                uuid.UUID  `json:"id"`
	ServiceRequestID  uuid.UUID  `json:"service_request_id"`
	WindowStartUtc    time.Time  `json:"window_start_utc"`
	WindowEndUtc      time.Time  `json:"window_end_utc"`
	Status            string     `json:"status"`
	OperationalStatus *string    `json:"operational_status"`
	ExpiresAt         *time.Time `json:"expires_at"`
}

func ToAppointmentList(apps []models.ServiceAppointment) []AppointmentListDTO {
	out := make([]AppointmentListDTO, 0, len(apps))
	for _, ap := range apps {
		out = append(out, AppointmentListDTO{
			ID:                ap.ID,
			ServiceRequestID:  ap.ServiceRequestID,
			WindowStartUtc:    ap.WindowStartUtc,
			WindowEndUtc:      ap.WindowEndUtc,
			Status:            ap.Status,
			OperationalStatus: ap.OperationalStatus,
			ExpiresAt:         ap.ExpiresAt,
		})
	}
	return out
}
