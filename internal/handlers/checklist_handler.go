package handlers

import (
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/homerepairhub/repair-scheduler/internal/httperr"
	"github.com/homerepairhub/repair-scheduler/internal/httpresp"
	uc "github.com/homerepairhub/repair-scheduler/internal/usecase/checklist"
)

type ChecklistHandler struct {
	get    *uc.GetChecklist
	upsert *uc.UpsertItemResponse
}

func NewChecklistHandler(
	get *uc.GetChecklist,
	upsert *uc.UpsertItemResponse,
) *ChecklistHandler {
	return &ChecklistHandler{get: get, upsert: upsert}
}

func (h *ChecklistHandler) Get(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	view, err := h.get.Execute(c.Request.Context(), actor, id)
	if err != nil {
		httperr.FromBusiness(c, err)
		return
	}
	httpresp.OK(c, view)
}

// UpsertItem accepts a multipart form: is_checked, note and an optional
// evidence file under "evidence".
func (h *ChecklistHandler) UpsertItem(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		return
	}
	appointmentID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := uuidParam(c, "itemId")
	if !ok {
		return
	}

	isChecked, err := strconv.ParseBool(c.DefaultPostForm("is_checked", "false"))
	if err != nil {
		httperr.BadRequest(c, "invalid_request", "Campo is_checked inválido.")
		return
	}

	in := uc.UpsertItemResponseInput{
		Actor:         actor,
		AppointmentID: appointmentID,
		ItemID:        itemID,
		IsChecked:     isChecked,
		Note:          c.PostForm("note"),
	}

	if fileHeader, err := c.FormFile("evidence"); err == nil {
		file, err := fileHeader.Open()
		if err != nil {
			httperr.BadRequest(c, "invalid_attachment", "Evidência inválida.")
			return
		}
		defer file.Close()

		var reader io.Reader = file
		in.Evidence = reader
		in.EvidenceFileName = fileHeader.Filename
		in.EvidenceContentType = fileHeader.Header.Get("Content-Type")
	}

	resp, err := h.upsert.Execute(c.Request.Context(), in)
	if err != nil {
		httperr.FromBusiness(c, err)
		return
	}
	httpresp.OK(c, resp)
}
