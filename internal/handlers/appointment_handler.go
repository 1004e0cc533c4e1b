package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/homerepairhub/repair-scheduler/internal/dto"
	"github.com/homerepairhub/repair-scheduler/internal/httperr"
	"github.com/homerepairhub/repair-scheduler/internal/httpresp"
	uc "github.com/homerepairhub/repair-scheduler/internal/usecase/appointment"
)

// AppointmentHandler exposes the appointment lifecycle over HTTP. Each
// route delegates to one use case.
type AppointmentHandler struct {
	create     *uc.CreateAppointment
	confirm    *uc.ConfirmAppointment
	reject     *uc.RejectAppointment
	reqResch   *uc.RequestReschedule
	respResch  *uc.RespondReschedule
	cancel     *uc.CancelAppointment
	arrive     *uc.MarkArrived
	presence   *uc.RespondPresence
	start      *uc.StartExecution
	opStatus   *uc.UpdateOperationalStatus
	getByID    *uc.GetAppointment
	listMine   *uc.ListMyAppointments
}

func NewAppointmentHandler(
	create *uc.CreateAppointment,
	confirm *uc.ConfirmAppointment,
	reject *uc.RejectAppointment,
	reqResch *uc.RequestReschedule,
	respResch *uc.RespondReschedule,
	cancel *uc.CancelAppointment,
	arrive *uc.MarkArrived,
	presence *uc.RespondPresence,
	start *uc.StartExecution,
	opStatus *uc.UpdateOperationalStatus,
	getByID *uc.GetAppointment,
	listMine *uc.ListMyAppointments,
) *AppointmentHandler {
	return &AppointmentHandler{
		create:    create,
		confirm:   confirm,
		reject:    reject,
		reqResch:  reqResch,
		respResch: respResch,
		cancel:    cancel,
		arrive:    arrive,
		presence:  presence,
		start:     start,
		opStatus:  opStatus,
		getByID:   getByID,
		listMine:  listMine,
	}
}

// --------- Requests ---------

type CreateAppointmentRequest struct {
	ServiceRequestID string    `json:"service_request_id" binding:"required,uuid"`
	ProviderID       string    `json:"provider_id" binding:"required,uuid"`
	WindowStartUtc   time.Time `json:"window_start_utc" binding:"required"`
	WindowEndUtc     time.Time `json:"window_end_utc" binding:"required"`
	Reason           string    `json:"reason"`
}

type ReasonRequest struct {
	Reason string `json:"reason"`
}

type RescheduleRequest struct {
	ProposedStartUtc time.Time `json:"proposed_start_utc" binding:"required"`
	ProposedEndUtc   time.Time `json:"proposed_end_utc" binding:"required"`
	Reason           string    `json:"reason"`
}

type RescheduleResponseRequest struct {
	Accept bool   `json:"accept"`
	Reason string `json:"reason"`
}

type PresenceRequest struct {
	Present *bool `json:"present" binding:"required"`
}

type OperationalStatusRequest struct {
	OperationalStatus string `json:"operational_status" binding:"required"`
}

// --------- Handlers ---------

func (h *AppointmentHandler) Create(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}

	var req CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", err.Error())
		return
	}

	in := uc.CreateAppointmentInput{
		Actor:          actor,
		WindowStartUtc: req.WindowStartUtc,
		WindowEndUtc:   req.WindowEndUtc,
		Reason:         req.Reason,
	}
	// binding uuid garante o parse
	in.ServiceRequestID = mustUUID(req.ServiceRequestID)
	in.ProviderID = mustUUID(req.ProviderID)

	ap, err := h.create.Execute(c.Request.Context(), in)
	if err != nil {
		httperr.FromBusiness(c, err)
		return
	}
	httpresp.Created(c, ap)
}

func (h *AppointmentHandler) Get(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	detail, err := h.getByID.Execute(c.Request.Context(), actor, id)
	if err != nil {
		httperr.FromBusiness(c, err)
		return
	}
	httpresp.OK(c, detail)
}

func (h *AppointmentHandler) ListMine(c *gin.Context) {
	actor, ok := ActorFrom(c)
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

	apps, err := h.listMine.Execute(c.Request.Context(), uc.ListMyAppointmentsInput{
		Actor:   actor,
		FromUtc: from,
		ToUtc:   to,
	})
	if err != nil {
		httperr.FromBusiness(c, err)
		return
	}
	httpresp.List(c, dto.ToAppointmentList(apps))
}

func (h *AppointmentHandler) Confirm(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	ap, err := h.confirm.Execute(c.Request.Context(), actor, id)
	if err != nil {
		httperr.FromBusiness(c, err)
		return
	}
	httpresp.OK(c, ap)
}

func (h *AppointmentHandler) Reject(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req ReasonRequest
	_ = c.ShouldBindJSON(&req)

	ap, err := h.reject.Execute(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		httperr.FromBusiness(c, err)
		return
	}
	httpresp.OK(c, ap)
}

func (h *AppointmentHandler) RequestReschedule(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", err.Error())
		return
	}

	ap, err := h.reqResch.Execute(c.Request.Context(), uc.RequestRescheduleInput{
		Actor:            actor,
		AppointmentID:    id,
		ProposedStartUtc: req.ProposedStartUtc,
		ProposedEndUtc:   req.ProposedEndUtc,
		Reason:           req.Reason,
	})
	if err != nil {
		httperr.FromBusiness(c, err)
		return
	}
	httpresp.OK(c, ap)
}

func (h *AppointmentHandler) RespondReschedule(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req RescheduleResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", err.Error())
		return
	}

	ap, err := h.respResch.Execute(c.Request.Context(), uc.RespondRescheduleInput{
		Actor:         actor,
		AppointmentID: id,
		Accept:        req.Accept,
		Reason:        req.Reason,
	})
	if err != nil {
		httperr.FromBusiness(c, err)
		return
	}
	httpresp.OK(c, ap)
}

func (h *AppointmentHandler) Cancel(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req ReasonRequest
	_ = c.ShouldBindJSON(&req)

	ap, err := h.cancel.Execute(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		httperr.FromBusiness(c, err)
		return
	}
	httpresp.OK(c, ap)
}

func (h *AppointmentHandler) Arrive(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	ap, err := h.arrive.Execute(c.Request.Context(), actor, id)
	if err != nil {
		httperr.FromBusiness(c, err)
		return
	}
	httpresp.OK(c, ap)
}

func (h *AppointmentHandler) RespondPresence(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req PresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", err.Error())
		return
	}

	ap, err := h.presence.Execute(c.Request.Context(), actor, id, *req.Present)
	if err != nil {
		httperr.FromBusiness(c, err)
		return
	}
	httpresp.OK(c, ap)
}

func (h *AppointmentHandler) Start(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	ap, err := h.start.Execute(c.Request.Context(), actor, id)
	if err != nil {
		httperr.FromBusiness(c, err)
		return
	}
	httpresp.OK(c, ap)
}

func (h *AppointmentHandler) UpdateOperationalStatus(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req OperationalStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", err.Error())
		return
	}

	ap, err := h.opStatus.Execute(c.Request.Context(), actor, id, req.OperationalStatus)
	if err != nil {
		httperr.FromBusiness(c, err)
		return
	}
	httpresp.OK(c, ap)
}
