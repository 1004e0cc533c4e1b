package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/homerepairhub/repair-scheduler/internal/httperr"
	"github.com/homerepairhub/repair-scheduler/internal/httpresp"
	uc "github.com/homerepairhub/repair-scheduler/internal/usecase/completion"
)

type CompletionHandler struct {
	generate *uc.GenerateCompletionPin
	validate *uc.ValidateCompletionPin
	confirm  *uc.ConfirmCompletion
	contest  *uc.ContestCompletion
	getTerm  *uc.GetCompletionTerm
}

func NewCompletionHandler(
	generate *uc.GenerateCompletionPin,
	validate *uc.ValidateCompletionPin,
	confirm *uc.ConfirmCompletion,
	contest *uc.ContestCompletion,
	getTerm *uc.GetCompletionTerm,
) *CompletionHandler {
	return &CompletionHandler{
		generate: generate,
		validate: validate,
		confirm:  confirm,
		contest:  contest,
		getTerm:  getTerm,
	}
}

// --------- Requests ---------

type ValidatePinRequest struct {
	Pin string `json:"pin" binding:"required"`
}

type ConfirmCompletionRequest struct {
	AcceptanceMethod string `json:"acceptance_method" binding:"required"`
	Signature        string `json:"signature"`
}

type ContestRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// --------- Handlers ---------

func (h *CompletionHandler) GeneratePin(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	pin, err := h.generate.Execute(c.Request.Context(), actor, id)
	if err != nil {
		httperr.FromBusiness(c, err)
		return
	}
	httpresp.OK(c, pin)
}

func (h *CompletionHandler) ValidatePin(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req ValidatePinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_pin_format", "Formato de PIN inválido.")
		return
	}

	term, err := h.validate.Execute(c.Request.Context(), actor, id, req.Pin)
	if err != nil {
		httperr.FromBusiness(c, err)
		return
	}
	httpresp.OK(c, term)
}

func (h *CompletionHandler) Confirm(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req ConfirmCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", err.Error())
		return
	}

	ap, err := h.confirm.Execute(c.Request.Context(), uc.ConfirmCompletionInput{
		Actor:            actor,
		AppointmentID:    id,
		AcceptanceMethod: req.AcceptanceMethod,
		Signature:        req.Signature,
	})
	if err != nil {
		httperr.FromBusiness(c, err)
		return
	}
	httpresp.OK(c, ap)
}

func (h *CompletionHandler) Contest(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req ContestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "contest_reason_required", "Motivo da contestação é obrigatório.")
		return
	}

	term, err := h.contest.Execute(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		httperr.FromBusiness(c, err)
		return
	}
	httpresp.OK(c, term)
}

func (h *CompletionHandler) GetTerm(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	term, err := h.getTerm.Execute(c.Request.Context(), actor, id)
	if err != nil {
		httperr.FromBusiness(c, err)
		return
	}
	httpresp.OK(c, term)
}
