package handlers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/homerepairhub/repair-scheduler/internal/httperr"
	"github.com/homerepairhub/repair-scheduler/internal/httpresp"
	"github.com/homerepairhub/repair-scheduler/internal/models"
	uc "github.com/homerepairhub/repair-scheduler/internal/usecase/checklist"
)

// ChecklistTemplateHandler is the admin surface for per-category checklist
// templates. Routes behind this handler already require the admin role.
type ChecklistTemplateHandler struct {
	db        *gorm.DB
	templates *uc.Templates
}

func NewChecklistTemplateHandler(db *gorm.DB, templates *uc.Templates) *ChecklistTemplateHandler {
	return &ChecklistTemplateHandler{db: db, templates: templates}
}

// --------- Requests ---------

type TemplateItemRequest struct {
	Title            string `json:"title" binding:"required"`
	HelpText         string `json:"help_text"`
	IsRequired       bool   `json:"is_required"`
	RequiresEvidence bool   `json:"requires_evidence"`
	AllowNote        *bool  `json:"allow_note"`
	SortOrder        int    `json:"sort_order"`
}

type CreateTemplateRequest struct {
	Category           string                `json:"category" binding:"required"`
	Name               string                `json:"name" binding:"required"`
	RequireBeforeStart bool                  `json:"require_before_start"`
	Items              []TemplateItemRequest `json:"items" binding:"required,min=1"`
}

// --------- Handlers ---------

func (h *ChecklistTemplateHandler) List(c *gin.Context) {
	var templates []models.ChecklistTemplate
	if err := h.db.Preload("Items").Order("category ASC").Find(&templates).Error; err != nil {
		httperr.Internal(c, "internal_error", "Erro interno.")
		return
	}
	httpresp.List(c, templates)
}

// Create activates a new template for the category and deactivates the
// previous one, so at most one template per category is active.
func (h *ChecklistTemplateHandler) Create(c *gin.Context) {
	var req CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", err.Error())
		return
	}

	tpl := models.ChecklistTemplate{
		Category:           req.Category,
		Name:               req.Name,
		IsActive:           true,
		RequireBeforeStart: req.RequireBeforeStart,
	}
	for i, item := range req.Items {
		allowNote := true
		if item.AllowNote != nil {
			allowNote = *item.AllowNote
		}
		sortOrder := item.SortOrder
		if sortOrder == 0 {
			sortOrder = i
		}
		tpl.Items = append(tpl.Items, models.ChecklistItem{
			Title:            item.Title,
			HelpText:         item.HelpText,
			IsRequired:       item.IsRequired,
			RequiresEvidence: item.RequiresEvidence,
			AllowNote:        allowNote,
			SortOrder:        sortOrder,
			IsActive:         true,
		})
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ChecklistTemplate{}).
			Where("category = ? AND is_active = ?", req.Category, true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Create(&tpl).Error
	})
	if err != nil {
		httperr.Internal(c, "internal_error", "Erro interno.")
		return
	}

	h.templates.Invalidate(req.Category)
	httpresp.Created(c, tpl)
}

func (h *ChecklistTemplateHandler) Deactivate(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var tpl models.ChecklistTemplate
	if err := h.db.First(&tpl, "id = ?", id).Error; err != nil {
		httperr.NotFound(c, "template_not_found", "Checklist não encontrado.")
		return
	}

	if err := h.db.Model(&tpl).Update("is_active", false).Error; err != nil {
		httperr.Internal(c, "internal_error", "Erro interno.")
		return
	}

	h.templates.Invalidate(tpl.Category)
	httpresp.OK(c, gin.H{"deactivated": true})
}
