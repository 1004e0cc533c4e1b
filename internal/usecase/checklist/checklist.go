package checklist

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"github.com/homerepairhub/repair-scheduler/internal/audit"
	"github.com/homerepairhub/repair-scheduler/internal/auth"
	domain "github.com/homerepairhub/repair-scheduler/internal/domain/appointment"
	"github.com/homerepairhub/repair-scheduler/internal/httperr"
	"github.com/homerepairhub/repair-scheduler/internal/models"
	"github.com/homerepairhub/repair-scheduler/internal/storage"
)

const evidenceFolder = "checklist-evidence"

// Templates wraps the checklist template lookup with a short-lived cache.
// Templates change rarely; the execution flow reads them constantly.
type Templates struct {
	repo  domain.ChecklistRepository
	cache *gocache.Cache
}

func NewTemplates(repo domain.ChecklistRepository) *Templates {
	return &Templates{
		repo:  repo,
		cache: gocache.New(5*time.Minute, 10*time.Minute),
	}
}

// ActiveByCategory returns (nil, nil) when the category has no active
// template configured.
func (t *Templates) ActiveByCategory(ctx context.Context, category string) (*models.ChecklistTemplate, error) {
	if cached, ok := t.cache.Get(category); ok {
		if cached == nil {
			return nil, nil
		}
		return cached.(*models.ChecklistTemplate), nil
	}

	tpl, err := t.repo.GetActiveTemplateByCategory(ctx, category)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			t.cache.Set(category, nil, gocache.DefaultExpiration)
			return nil, nil
		}
		return nil, err
	}

	t.cache.Set(category, tpl, gocache.DefaultExpiration)
	return tpl, nil
}

// Invalidate drops the cached entry after an admin edits the template.
func (t *Templates) Invalidate(category string) {
	t.cache.Delete(category)
}

// ======================================================
// Gate
// ======================================================

// Gate enforces checklist completion at the two moments that matter:
// starting execution (when the template demands it) and confirming
// completion (always).
type Gate struct {
	appts     domain.Repository
	checklist domain.ChecklistRepository
	templates *Templates
}

func NewGate(
	appts domain.Repository,
	checklistRepo domain.ChecklistRepository,
	templates *Templates,
) *Gate {
	return &Gate{
		appts:     appts,
		checklist: checklistRepo,
		templates: templates,
	}
}

func (g *Gate) templateFor(ctx context.Context, ap *models.ServiceAppointment) (*models.ChecklistTemplate, error) {
	request, err := g.appts.GetServiceRequestByID(ctx, ap.ServiceRequestID)
	if err != nil {
		return nil, err
	}
	return g.templates.ActiveByCategory(ctx, request.Category)
}

// EnsureCanStart gates StartExecution when the template requires the
// checklist before work begins. Categories without a template pass.
func (g *Gate) EnsureCanStart(ctx context.Context, ap *models.ServiceAppointment) error {
	tpl, err := g.templateFor(ctx, ap)
	if err != nil {
		return err
	}
	if tpl == nil || !tpl.RequireBeforeStart {
		return nil
	}
	return g.ensureRequiredSatisfied(ctx, ap, tpl)
}

// EnsureSatisfied gates completion confirmation: every required item of the
// active template must be checked, with evidence where demanded.
func (g *Gate) EnsureSatisfied(ctx context.Context, ap *models.ServiceAppointment) error {
	tpl, err := g.templateFor(ctx, ap)
	if err != nil {
		return err
	}
	if tpl == nil {
		return nil
	}
	return g.ensureRequiredSatisfied(ctx, ap, tpl)
}

func (g *Gate) ensureRequiredSatisfied(
	ctx context.Context,
	ap *models.ServiceAppointment,
	tpl *models.ChecklistTemplate,
) error {

	responses, err := g.checklist.ListChecklistResponses(ctx, ap.ID)
	if err != nil {
		return err
	}
	byItem := make(map[uuid.UUID]*models.ChecklistResponse, len(responses))
	for i := range responses {
		byItem[responses[i].ItemID] = &responses[i]
	}

	for _, item := range tpl.Items {
		if !item.IsActive || !item.IsRequired {
			continue
		}
		resp := byItem[item.ID]
		if resp == nil || !resp.IsChecked {
			return httperr.ErrBusiness("required_checklist_pending")
		}
		if item.RequiresEvidence && resp.EvidenceKey == "" {
			return httperr.ErrBusiness("evidence_required")
		}
	}
	return nil
}

// ======================================================
// Consulta do checklist da visita
// ======================================================

type ChecklistView struct {
	Template  *models.ChecklistTemplate  `json:"template"`
	Responses []models.ChecklistResponse `json:"responses"`
}

type GetChecklist struct {
	appts     domain.Repository
	checklist domain.ChecklistRepository
	templates *Templates
}

func NewGetChecklist(
	appts domain.Repository,
	checklistRepo domain.ChecklistRepository,
	templates *Templates,
) *GetChecklist {
	return &GetChecklist{
		appts:     appts,
		checklist: checklistRepo,
		templates: templates,
	}
}

func (uc *GetChecklist) Execute(
	ctx context.Context,
	actor auth.Actor,
	appointmentID uuid.UUID,
) (*ChecklistView, error) {

	ap, err := uc.appts.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, httperr.ErrBusiness("appointment_not_found")
	}
	if !canAccess(actor, ap) {
		return nil, httperr.ErrBusiness("forbidden")
	}

	request, err := uc.appts.GetServiceRequestByID(ctx, ap.ServiceRequestID)
	if err != nil {
		return nil, httperr.ErrBusiness("request_not_found")
	}

	tpl, err := uc.templates.ActiveByCategory(ctx, request.Category)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, httperr.ErrBusiness("checklist_not_configured")
	}

	responses, err := uc.checklist.ListChecklistResponses(ctx, ap.ID)
	if err != nil {
		return nil, err
	}
	if responses == nil {
		responses = []models.ChecklistResponse{}
	}

	return &ChecklistView{Template: tpl, Responses: responses}, nil
}

// ======================================================
// Resposta de item
// ======================================================

type UpsertItemResponseInput struct {
	Actor auth.Actor

	AppointmentID uuid.UUID
	ItemID        uuid.UUID

	IsChecked bool
	Note      string

	// Evidência opcional enviada junto com a resposta
	EvidenceFileName    string
	EvidenceContentType string
	Evidence            io.Reader
}

type UpsertItemResponse struct {
	appts     domain.Repository
	checklist domain.ChecklistRepository
	templates *Templates
	store     storage.Store
	audit     *audit.Dispatcher

	now func() time.Time
}

func NewUpsertItemResponse(
	appts domain.Repository,
	checklistRepo domain.ChecklistRepository,
	templates *Templates,
	store storage.Store,
	auditD *audit.Dispatcher,
) *UpsertItemResponse {
	return &UpsertItemResponse{
		appts:     appts,
		checklist: checklistRepo,
		templates: templates,
		store:     store,
		audit:     auditD,
		now:       time.Now,
	}
}

func (uc *UpsertItemResponse) Execute(
	ctx context.Context,
	in UpsertItemResponseInput,
) (*models.ChecklistResponse, error) {

	ap, err := uc.appts.GetAppointmentByID(ctx, in.AppointmentID)
	if err != nil {
		return nil, httperr.ErrBusiness("appointment_not_found")
	}
	if !in.Actor.IsProvider() || ap.ProviderID != in.Actor.UserID {
		return nil, httperr.ErrBusiness("forbidden")
	}
	if !domain.Status(ap.Status).ExecutionStarted() {
		return nil, httperr.ErrBusiness("invalid_state")
	}

	request, err := uc.appts.GetServiceRequestByID(ctx, ap.ServiceRequestID)
	if err != nil {
		return nil, httperr.ErrBusiness("request_not_found")
	}
	tpl, err := uc.templates.ActiveByCategory(ctx, request.Category)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, httperr.ErrBusiness("checklist_not_configured")
	}

	item := findItem(tpl, in.ItemID)
	if item == nil || !item.IsActive {
		return nil, httperr.ErrBusiness("item_not_found")
	}
	if in.Note != "" && !item.AllowNote {
		return nil, httperr.ErrBusiness("note_not_allowed")
	}

	resp, err := uc.checklist.GetChecklistResponse(ctx, ap.ID, item.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		resp = &models.ChecklistResponse{
			AppointmentID: ap.ID,
			ItemID:        item.ID,
		}
	}

	if in.Evidence != nil {
		content := in.Evidence
		if storage.IsImageContentType(in.EvidenceContentType) {
			normalized, err := storage.NormalizeImage(content)
			if err != nil {
				return nil, httperr.ErrBusiness("invalid_attachment")
			}
			content = normalized
		}
		key, err := uc.store.Save(ctx, content, in.EvidenceFileName, evidenceFolder)
		if err != nil {
			return nil, err
		}
		resp.EvidenceKey = key
	}

	now := uc.now().UTC()
	resp.IsChecked = in.IsChecked
	resp.Note = in.Note
	resp.CheckedByUserID = &in.Actor.UserID
	resp.CheckedAt = &now

	if err := uc.checklist.SaveChecklistResponse(ctx, resp); err != nil {
		return nil, err
	}

	uc.audit.Dispatch(audit.Event{
		ActorUserID: &in.Actor.UserID,
		Action:      "checklist_item_answered",
		Entity:      "checklist_response",
		EntityID:    &resp.ID,
		Metadata: map[string]any{
			"appointment_id": ap.ID,
			"item_id":        item.ID,
			"is_checked":     in.IsChecked,
		},
	})

	return resp, nil
}

func findItem(tpl *models.ChecklistTemplate, itemID uuid.UUID) *models.ChecklistItem {
	for i := range tpl.Items {
		if tpl.Items[i].ID == itemID {
			return &tpl.Items[i]
		}
	}
	return nil
}

func canAccess(actor auth.Actor, ap *models.ServiceAppointment) bool {
	if actor.IsAdmin() {
		return true
	}
	if actor.IsClient() && ap.ClientID == actor.UserID {
		return true
	}
	if actor.IsProvider() && ap.ProviderID == actor.UserID {
		return true
	}
	return false
}
