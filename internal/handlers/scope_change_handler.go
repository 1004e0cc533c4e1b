package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/homerepairhub/repair-scheduler/internal/httperr"
	"github.com/homerepairhub/repair-scheduler/internal/httpresp"
	uc "github.com/homerepairhub/repair-scheduler/internal/usecase/scopechange"
)

type ScopeChangeHandler struct {
	create  *uc.CreateScopeChange
	respond *uc.RespondScopeChange
	attach  *uc.AddAttachment
	list    *uc.ListScopeChanges
}

func NewScopeChangeHandler(
	create *uc.CreateScopeChange,
	respond *uc.RespondScopeChange,
	attach *uc.AddAttachment,
	list *uc.ListScopeChanges,
) *ScopeChangeHandler {
	return &ScopeChangeHandler{
		create:  create,
		respond: respond,
		attach:  attach,
		list:    list,
	}
}

// --------- Requests ---------

type CreateScopeChangeRequest struct {
	Reason              string   `json:"reason" binding:"required"`
	Description         string   `json:"description" binding:"required"`
	EstimatedValueDelta *float64 `json:"estimated_value_delta"`
}

type RespondScopeChangeRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

// --------- Handlers ---------

func (h *ScopeChangeHandler) Create(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}
	appointmentID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req CreateScopeChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", err.Error())
		return
	}

	sc, err := h.create.Execute(c.Request.Context(), uc.CreateScopeChangeInput{
		Actor:               actor,
		AppointmentID:       appointmentID,
		Reason:              req.Reason,
		Description:         req.Description,
		EstimatedValueDelta: req.EstimatedValueDelta,
	})
	if err != nil {
		httperr.FromBusiness(c, err)
		return
	}
	httpresp.Created(c, sc)
}

func (h *ScopeChangeHandler) Respond(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}
	scopeChangeID, ok := uuidParam(c, "scopeChangeId")
	if !ok {
		return
	}

	var req RespondScopeChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", err.Error())
		return
	}

	sc, err := h.respond.Execute(c.Request.Context(), uc.RespondScopeChangeInput{
		Actor:         actor,
		ScopeChangeID: scopeChangeID,
		Approve:       req.Approve,
		Reason:        req.Reason,
	})
	if err != nil {
		httperr.FromBusiness(c, err)
		return
	}
	httpresp.OK(c, sc)
}

// AddAttachment receives one multipart file under the "file" field.
func (h *ScopeChangeHandler) AddAttachment(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}
	scopeChangeID, ok := uuidParam(c, "scopeChangeId")
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		httperr.BadRequest(c, "invalid_attachment", "Arquivo ausente ou inválido.")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		httperr.BadRequest(c, "invalid_attachment", "Arquivo ausente ou inválido.")
		return
	}
	defer file.Close()

	att, err := h.attach.Execute(c.Request.Context(), uc.AddAttachmentInput{
		Actor:         actor,
		ScopeChangeID: scopeChangeID,
		FileName:      fileHeader.Filename,
		ContentType:   fileHeader.Header.Get("Content-Type"),
		SizeBytes:     fileHeader.Size,
		Content:       file,
	})
	if err != nil {
		httperr.FromBusiness(c, err)
		return
	}
	httpresp.Created(c, att)
}

func (h *ScopeChangeHandler) List(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}
	appointmentID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	scs, err := h.list.Execute(c.Request.Context(), actor, appointmentID)
	if err != nil {
		httperr.FromBusiness(c, err)
		return
	}
	httpresp.List(c, scs)
}
