package handlers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/homerepairhub/repair-scheduler/internal/httperr"
	"github.com/homerepairhub/repair-scheduler/internal/httpresp"
	"github.com/homerepairhub/repair-scheduler/internal/models"
)

type PushHandler struct {
	db             *gorm.DB
	vapidPublicKey string
}

func NewPushHandler(db *gorm.DB, vapidPublicKey string) *PushHandler {
	return &PushHandler{db: db, vapidPublicKey: vapidPublicKey}
}

type SubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	Keys     struct {
		P256dh string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth" binding:"required"`
	} `json:"keys" binding:"required"`
}

// VAPIDKey exposes the public key the browser needs to subscribe.
func (h *PushHandler) VAPIDKey(c *gin.Context) {
	httpresp.OK(c, gin.H{"public_key": h.vapidPublicKey})
}

func (h *PushHandler) Subscribe(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}

	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", err.Error())
		return
	}

	sub := models.PushSubscription{
		UserID:   actor.UserID,
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	}

	// re-assinar o mesmo endpoint só atualiza as chaves
	err := h.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "p256dh", "auth"}),
	}).Create(&sub).Error
	if err != nil {
		httperr.Internal(c, "internal_error", "Erro interno.")
		return
	}

	httpresp.Created(c, gin.H{"subscribed": true})
}

func (h *PushHandler) Unsubscribe(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}

	var req struct {
		Endpoint string `json:"endpoint" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, "invalid_request", err.Error())
		return
	}

	h.db.Where("user_id = ? AND endpoint = ?", actor.UserID, req.Endpoint).
		Delete(&models.PushSubscription{})

	httpresp.OK(c, gin.H{"unsubscribed": true})
}
