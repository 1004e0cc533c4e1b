package scopechange

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/homerepairhub/repair-scheduler/internal/audit"
	"github.com/homerepairhub/repair-scheduler/internal/auth"
	domain "github.com/homerepairhub/repair-scheduler/internal/domain/appointment"
	"github.com/homerepairhub/repair-scheduler/internal/httperr"
	"github.com/homerepairhub/repair-scheduler/internal/models"
	"github.com/homerepairhub/repair-scheduler/internal/storage"
)

const (
	maxAttachments     = 5
	maxAttachmentBytes = 25 << 20
	attachmentFolder   = "scope-changes"
)

var allowedAttachmentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"application/pdf": true,
}

type AddAttachmentInput struct {
	Actor auth.Actor

	ScopeChangeID uuid.UUID

	FileName    string
	ContentType string
	SizeBytes   int64
	Content     io.Reader
}

type AddAttachment struct {
	appts domain.Repository
	repo  domain.ScopeChangeRepository
	store storage.Store
	audit *audit.Dispatcher

	now func() time.Time
}

func NewAddAttachment(
	appts domain.Repository,
	repo domain.ScopeChangeRepository,
	store storage.Store,
	auditD *audit.Dispatcher,
) *AddAttachment {
	return &AddAttachment{
		appts: appts,
		repo:  repo,
		store: store,
		audit: auditD,
		now:   time.Now,
	}
}

func (uc *AddAttachment) Execute(
	ctx context.Context,
	in AddAttachmentInput,
) (*models.ScopeChangeAttachment, error) {

	sc, err := uc.repo.GetScopeChangeByID(ctx, in.ScopeChangeID)
	if err != nil {
		return nil, httperr.ErrBusiness("scope_change_not_found")
	}

	ap, err := uc.appts.GetAppointmentByID(ctx, sc.AppointmentID)
	if err != nil {
		return nil, httperr.ErrBusiness("appointment_not_found")
	}
	if !isParticipant(in.Actor, ap) {
		return nil, httperr.ErrBusiness("forbidden")
	}

	if sc.Status != models.ScopeChangeStatusPending {
		return nil, httperr.ErrBusiness("invalid_state")
	}
	if uc.now().UTC().After(sc.ExpiresAt) {
		return nil, httperr.ErrBusiness("scope_change_expired")
	}

	if in.SizeBytes <= 0 || in.SizeBytes > maxAttachmentBytes {
		return nil, httperr.ErrBusiness("invalid_attachment")
	}
	if !allowedAttachmentTypes[in.ContentType] {
		return nil, httperr.ErrBusiness("invalid_attachment")
	}

	count, err := uc.repo.CountAttachments(ctx, sc.ID)
	if err != nil {
		return nil, err
	}
	if count >= maxAttachments {
		return nil, httperr.ErrBusiness("attachment_limit_exceeded")
	}

	content := in.Content
	if storage.IsImageContentType(in.ContentType) {
		normalized, err := storage.NormalizeImage(content)
		if err != nil {
			return nil, httperr.ErrBusiness("invalid_attachment")
		}
		content = normalized
	}

	key, err := uc.store.Save(ctx, content, in.FileName, attachmentFolder)
	if err != nil {
		return nil, err
	}

	att := &models.ScopeChangeAttachment{
		ScopeChangeRequestID: sc.ID,
		StorageKey:           key,
		FileName:             in.FileName,
		ContentType:          in.ContentType,
		SizeBytes:            in.SizeBytes,
	}
	if err := uc.repo.AddAttachment(ctx, att); err != nil {
		// registro falhou: não deixamos o objeto órfão no bucket
		_ = uc.store.Delete(ctx, key)
		return nil, err
	}

	uc.audit.Dispatch(audit.Event{
		ActorUserID: &in.Actor.UserID,
		Action:      "scope_change_attachment_added",
		Entity:      "scope_change",
		EntityID:    &sc.ID,
		Metadata:    map[string]any{"file_name": in.FileName},
	})

	return att, nil
}
