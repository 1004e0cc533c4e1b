package handlers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/homerepairhub/repair-scheduler/internal/httperr"
	"github.com/homerepairhub/repair-scheduler/internal/httpresp"
	"github.com/homerepairhub/repair-scheduler/internal/models"
)

// ServiceRequestHandler is the minimal request/proposal surface the
// scheduling flow depends on: a client opens a request, a provider sends a
// proposal, the client accepts one.
type ServiceRequestHandler struct {
	db *gorm.DB
}

func NewServiceRequestHandler(db *gorm.DB) *ServiceRequestHandler {
	return &ServiceRequestHandler{db: db}
}

// --------- Requests ---------

type CreateServiceRequestRequest struct {
	Category    string `json:"category" binding:"required"`
	Description string `json:"description"`
}

type CreateProposalRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

// --------- Handlers ---------

func (h *ServiceRequestHandler) Create(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}
	if !actor.IsClient() {
		httperr.Forbidden(c, "forbidden", "Sem permissão para esta operação.")
		return
	}

	var req CreateServiceRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", err.Error())
		return
	}

	request := models.ServiceRequest{
		ClientID:    actor.UserID,
		Category:    req.Category,
		Description: req.Description,
		Status:      models.RequestStatusOpen,
	}
	if err := h.db.Create(&request).Error; err != nil {
		httperr.Internal(c, "internal_error", "Erro interno.")
		return
	}

	httpresp.Created(c, request)
}

func (h *ServiceRequestHandler) ListMine(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}

	var requests []models.ServiceRequest
	q := h.db.Order("created_at DESC")
	switch {
	case actor.IsClient():
		q = q.Where("client_id = ?", actor.UserID)
	case actor.IsAdmin():
		// admin vê tudo
	default:
		httperr.Forbidden(c, "forbidden", "Sem permissão para esta operação.")
		return
	}
	if err := q.Find(&requests).Error; err != nil {
		httperr.Internal(c, "internal_error", "Erro interno.")
		return
	}
	httpresp.List(c, requests)
}

func (h *ServiceRequestHandler) CreateProposal(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}
	if !actor.IsProvider() {
		httperr.Forbidden(c, "forbidden", "Sem permissão para esta operação.")
		return
	}
	requestID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req CreateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", err.Error())
		return
	}

	var request models.ServiceRequest
	if err := h.db.First(&request, "id = ?", requestID).Error; err != nil {
		httperr.NotFound(c, "request_not_found", "Pedido não encontrado.")
		return
	}
	if request.Status != models.RequestStatusOpen {
		httperr.BadRequest(c, "invalid_state", "Estado atual não permite esta operação.")
		return
	}

	proposal := models.ServiceProposal{
		ServiceRequestID: request.ID,
		ProviderID:       actor.UserID,
		Amount:           req.Amount,
	}
	if err := h.db.Create(&proposal).Error; err != nil {
		httperr.Internal(c, "internal_error", "Erro interno.")
		return
	}

	httpresp.Created(c, proposal)
}

// AcceptProposal marks one proposal as accepted and invalidates the others
// for the same request.
func (h *ServiceRequestHandler) AcceptProposal(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}
	proposalID, ok := uuidParam(c, "proposalId")
	if !ok {
		return
	}

	var proposal models.ServiceProposal
	if err := h.db.First(&proposal, "id = ?", proposalID).Error; err != nil {
		httperr.NotFound(c, "proposal_not_found", "Proposta não encontrada.")
		return
	}

	var request models.ServiceRequest
	if err := h.db.First(&request, "id = ?", proposal.ServiceRequestID).Error; err != nil {
		httperr.NotFound(c, "request_not_found", "Pedido não encontrado.")
		return
	}
	if !actor.IsClient() || request.ClientID != actor.UserID {
		httperr.Forbidden(c, "forbidden", "Sem permissão para esta operação.")
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ServiceProposal{}).
			Where("service_request_id = ? AND id <> ?", request.ID, proposal.ID).
			Update("is_invalidated", true).Error; err != nil {
			return err
		}
		return tx.Model(&proposal).Update("accepted", true).Error
	})
	if err != nil {
		httperr.Internal(c, "internal_error", "Erro interno.")
		return
	}

	proposal.Accepted = true
	httpresp.OK(c, proposal)
}
