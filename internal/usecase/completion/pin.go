package completion

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/homerepairhub/repair-scheduler/internal/audit"
	"github.com/homerepairhub/repair-scheduler/internal/auth"
	domain "github.com/homerepairhub/repair-scheduler/internal/domain/appointment"
	"github.com/homerepairhub/repair-scheduler/internal/httperr"
	"github.com/homerepairhub/repair-scheduler/internal/models"
)

// CompletionGate blocks completion until the service checklist is
// satisfied. The checklist package provides the real implementation.
type CompletionGate interface {
	EnsureSatisfied(ctx context.Context, ap *models.ServiceAppointment) error
}

var pinFormat = regexp.MustCompile(`^[0-9]{6}$`)

// generatePin draws a uniform 6-digit code from crypto/rand.
func generatePin() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// ======================================================
// Geração do PIN pelo prestador
// ======================================================

// GeneratedPin carries the plaintext PIN back to the provider exactly once.
// Only the bcrypt hash is persisted.
type GeneratedPin struct {
	Pin       string    `json:"pin"`
	ExpiresAt time.Time `json:"expires_at"`
}

type GenerateCompletionPin struct {
	appts domain.Repository
	terms domain.CompletionRepository
	gate  CompletionGate
	audit *audit.Dispatcher

	ttl         time.Duration
	maxAttempts int

	now func() time.Time
}

func NewGenerateCompletionPin(
	appts domain.Repository,
	terms domain.CompletionRepository,
	gate CompletionGate,
	auditD *audit.Dispatcher,
	ttl time.Duration,
	maxAttempts int,
) *GenerateCompletionPin {
	return &GenerateCompletionPin{
		appts:       appts,
		terms:       terms,
		gate:        gate,
		audit:       auditD,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

func (uc *GenerateCompletionPin) Execute(
	ctx context.Context,
	actor auth.Actor,
	appointmentID uuid.UUID,
) (*GeneratedPin, error) {

	ap, err := uc.appts.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, httperr.ErrBusiness("appointment_not_found")
	}
	if !actor.IsAdmin() && (!actor.IsProvider() || ap.ProviderID != actor.UserID) {
		return nil, httperr.ErrBusiness("forbidden")
	}
	if domain.Status(ap.Status) != domain.StatusInProgress {
		return nil, httperr.ErrBusiness("invalid_state")
	}

	// gerar o PIN é a atestação do prestador de que o serviço terminou;
	// o checklist precisa estar fechado antes disso
	if uc.gate != nil {
		if err := uc.gate.EnsureSatisfied(ctx, ap); err != nil {
			return nil, err
		}
	}

	pin, err := generatePin()
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := uc.now().UTC()

	term, err := uc.terms.GetCompletionTerm(ctx, ap.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		term = &models.CompletionTerm{AppointmentID: ap.ID}
	}
	if term.Status == models.CompletionTermStatusConfirmed {
		return nil, httperr.ErrBusiness("invalid_state")
	}

	// regenerar o PIN zera tentativas e validação anterior
	term.PinHash = string(hash)
	term.PinExpiresAt = now.Add(uc.ttl)
	term.FailedAttempts = 0
	term.LockedUntil = nil
	term.PinValidatedAt = nil
	term.ConfirmedByProvider = true
	term.ConfirmedByProviderAt = &now
	term.Status = models.CompletionTermStatusPending

	if err := uc.terms.SaveCompletionTerm(ctx, term); err != nil {
		return nil, err
	}

	uc.audit.Dispatch(audit.Event{
		ActorUserID: &actor.UserID,
		Action:      "completion_pin_generated",
		Entity:      "completion_term",
		EntityID:    &term.ID,
		Metadata:    map[string]any{"appointment_id": ap.ID},
	})

	return &GeneratedPin{Pin: pin, ExpiresAt: term.PinExpiresAt}, nil
}

// ======================================================
// Validação do PIN pelo cliente
// ======================================================

type ValidateCompletionPin struct {
	appts domain.Repository
	terms domain.CompletionRepository
	audit *audit.Dispatcher

	maxAttempts int
	lockout     time.Duration

	now func() time.Time
}

func NewValidateCompletionPin(
	appts domain.Repository,
	terms domain.CompletionRepository,
	auditD *audit.Dispatcher,
	maxAttempts int,
	lockout time.Duration,
) *ValidateCompletionPin {
	return &ValidateCompletionPin{
		appts:       appts,
		terms:       terms,
		audit:       auditD,
		maxAttempts: maxAttempts,
		lockout:     lockout,
		now:         time.Now,
	}
}

func (uc *ValidateCompletionPin) Execute(
	ctx context.Context,
	actor auth.Actor,
	appointmentID uuid.UUID,
	pin string,
) (*models.CompletionTerm, error) {

	ap, err := uc.appts.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, httperr.ErrBusiness("appointment_not_found")
	}
	if !actor.IsClient() || ap.ClientID != actor.UserID {
		return nil, httperr.ErrBusiness("forbidden")
	}
	if domain.Status(ap.Status) != domain.StatusInProgress {
		return nil, httperr.ErrBusiness("invalid_state")
	}

	term, err := uc.terms.GetCompletionTerm(ctx, ap.ID)
	if err != nil {
		return nil, httperr.ErrBusiness("pin_not_found")
	}

	if !pinFormat.MatchString(pin) {
		return nil, httperr.ErrBusiness("invalid_pin_format")
	}

	now := uc.now().UTC()

	if now.After(term.PinExpiresAt) {
		return nil, httperr.ErrBusiness("pin_expired")
	}

	if term.LockedUntil != nil {
		if now.Before(*term.LockedUntil) {
			return nil, httperr.ErrBusiness("pin_locked")
		}
		// castigo cumprido, contador zera
		term.LockedUntil = nil
		term.FailedAttempts = 0
	}

	if bcrypt.CompareHashAndPassword([]byte(term.PinHash), []byte(pin)) != nil {
		term.FailedAttempts++
		if term.FailedAttempts >= uc.maxAttempts {
			lockedUntil := now.Add(uc.lockout)
			term.LockedUntil = &lockedUntil
		}
		if err := uc.terms.SaveCompletionTerm(ctx, term); err != nil {
			return nil, err
		}

		uc.audit.Dispatch(audit.Event{
			ActorUserID: &actor.UserID,
			Action:      "completion_pin_rejected",
			Entity:      "completion_term",
			EntityID:    &term.ID,
			Metadata:    map[string]any{"failed_attempts": term.FailedAttempts},
		})

		return nil, httperr.ErrBusiness("invalid_pin")
	}

	term.PinValidatedAt = &now
	term.FailedAttempts = 0
	term.LockedUntil = nil
	if err := uc.terms.SaveCompletionTerm(ctx, term); err != nil {
		return nil, err
	}

	uc.audit.Dispatch(audit.Event{
		ActorUserID: &actor.UserID,
		Action:      "completion_pin_validated",
		Entity:      "completion_term",
		EntityID:    &term.ID,
	})

	return term, nil
}

// ======================================================
// Consulta do termo
// ======================================================

type GetCompletionTerm struct {
	appts domain.Repository
	terms domain.CompletionRepository
}

func NewGetCompletionTerm(
	appts domain.Repository,
	terms domain.CompletionRepository,
) *GetCompletionTerm {
	return &GetCompletionTerm{appts: appts, terms: terms}
}

func (uc *GetCompletionTerm) Execute(
	ctx context.Context,
	actor auth.Actor,
	appointmentID uuid.UUID,
) (*models.CompletionTerm, error) {

	ap, err := uc.appts.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, httperr.ErrBusiness("appointment_not_found")
	}

	allowed := actor.IsAdmin() ||
		(actor.IsClient() && ap.ClientID == actor.UserID) ||
		(actor.IsProvider() && ap.ProviderID == actor.UserID)
	if !allowed {
		return nil, httperr.ErrBusiness("forbidden")
	}

	term, err := uc.terms.GetCompletionTerm(ctx, ap.ID)
	if err != nil {
		return nil, httperr.ErrBusiness("completion_term_not_found")
	}
	return term, nil
}
