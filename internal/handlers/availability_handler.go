package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/homerepairhub/repair-scheduler/internal/httperr"
	"github.com/homerepairhub/repair-scheduler/internal/httpresp"
	uc "github.com/homerepairhub/repair-scheduler/internal/usecase/appointment"
)

type AvailabilityHandler struct {
	addRule    *uc.AddAvailabilityRule
	removeRule *uc.RemoveAvailabilityRule
	addBlock   *uc.AddAvailabilityException
	rmBlock    *uc.RemoveAvailabilityException
	overview   *uc.GetAvailabilityOverview
	slots      *uc.GetAvailableSlots
}

func NewAvailabilityHandler(
	addRule *uc.AddAvailabilityRule,
	removeRule *uc.RemoveAvailabilityRule,
	addBlock *uc.AddAvailabilityException,
	rmBlock *uc.RemoveAvailabilityException,
	overview *uc.GetAvailabilityOverview,
	slots *uc.GetAvailableSlots,
) *AvailabilityHandler {
	return &AvailabilityHandler{
		addRule:    addRule,
		removeRule: removeRule,
		addBlock:   addBlock,
		rmBlock:    rmBlock,
		overview:   overview,
		slots:      slots,
	}
}

// --------- Requests ---------

type AddRuleRequest struct {
	Weekday             *int   `json:"weekday" binding:"required"`
	StartTime           string `json:"start_time" binding:"required"`
	EndTime             string `json:"end_time" binding:"required"`
	SlotDurationMinutes int    `json:"slot_duration_minutes"`
}

type AddBlockRequest struct {
	StartsAtUtc time.Time `json:"starts_at_utc" binding:"required"`
	EndsAtUtc   time.Time `json:"ends_at_utc" binding:"required"`
	Reason      string    `json:"reason"`
}

// --------- Handlers ---------

func (h *AvailabilityHandler) AddRule(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}

	var req AddRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", err.Error())
		return
	}

	rule, err := h.addRule.Execute(c.Request.Context(), uc.AddAvailabilityRuleInput{
		Actor:               actor,
		Weekday:             *req.Weekday,
		StartTime:           req.StartTime,
		EndTime:             req.EndTime,
		SlotDurationMinutes: req.SlotDurationMinutes,
	})
	if err != nil {
		httperr.FromBusiness(c, err)
		return
	}
	httpresp.Created(c, rule)
}

func (h *AvailabilityHandler) RemoveRule(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.removeRule.Execute(c.Request.Context(), actor, id); err != nil {
		httperr.FromBusiness(c, err)
		return
	}
	httpresp.OK(c, gin.H{"removed": true})
}

func (h *AvailabilityHandler) AddBlock(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}

	var req AddBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", err.Error())
		return
	}

	exc, err := h.addBlock.Execute(c.Request.Context(), uc.AddAvailabilityExceptionInput{
		Actor:       actor,
		StartsAtUtc: req.StartsAtUtc,
		EndsAtUtc:   req.EndsAtUtc,
		Reason:      req.Reason,
	})
	if err != nil {
		httperr.FromBusiness(c, err)
		return
	}
	httpresp.Created(c, exc)
}

func (h *AvailabilityHandler) RemoveBlock(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.rmBlock.Execute(c.Request.Context(), actor, id); err != nil {
		httperr.FromBusiness(c, err)
		return
	}
	httpresp.OK(c, gin.H{"removed": true})
}

func (h *AvailabilityHandler) Overview(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}

	ov, err := h.overview.Execute(c.Request.Context(), actor)
	if err != nil {
		httperr.FromBusiness(c, err)
		return
	}
	httpresp.OK(c, ov)
}

// Slots is the client-facing slot listing for one provider.
func (h *AvailabilityHandler) Slots(c *gin.Context) {
	providerID, ok := uuidParam(c, "providerId")
	if !ok {
		return
	}

	from, ok := timeQuery(c, "from")
	if !ok {
		return
	}
	to, ok := timeQuery(c, "to")
	if !ok {
		return
	}
	if from == nil || to == nil {
		httperr.BadRequest(c, "invalid_request", "Parâmetros from e to são obrigatórios.")
		return
	}

	duration := 0
	if raw := c.Query("slot_duration_minutes"); raw != "" {
		d, err := parsePositiveInt(raw)
		if err != nil {
			httperr.BadRequest(c, "invalid_slot_duration", "Duração de slot inválida.")
			return
		}
		duration = d
	}

	slots, err := h.slots.Execute(c.Request.Context(), uc.GetAvailableSlotsInput{
		ProviderID:          providerID,
		FromUtc:             *from,
		ToUtc:               *to,
		SlotDurationMinutes: duration,
	})
	if err != nil {
		httperr.FromBusiness(c, err)
		return
	}
	httpresp.List(c, slots)
}
