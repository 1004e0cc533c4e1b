package handlers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/homerepairhub/repair-scheduler/internal/httperr"
	"github.com/homerepairhub/repair-scheduler/internal/httpresp"
	"github.com/homerepairhub/repair-scheduler/internal/models"
)

type AuditLogsHandler struct {
	db *gorm.DB
}

func NewAuditLogsHandler(db *gorm.DB) *AuditLogsHandler {
	return &AuditLogsHandler{db: db}
}

// List returns the newest audit entries, optionally filtered by entity.
func (h *AuditLogsHandler) List(c *gin.Context) {
	q := h.db.Order("id DESC").Limit(200)

	if entity := c.Query("entity"); entity != "" {
		q = q.Where("entity = ?", entity)
	}
	if rawID := c.Query("entity_id"); rawID != "" {
		q = q.Where("entity_id = ?", rawID)
	}

	var logs []models.AuditLog
	if err := q.Find(&logs).Error; err != nil {
		httperr.Internal(c, "internal_error", "Erro interno.")
		return
	}
	httpresp.List(c, logs)
}
