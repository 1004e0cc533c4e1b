package routes

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/homerepairhub/repair-scheduler/internal/audit"
	"github.com/homerepairhub/repair-scheduler/internal/auth"
	"github.com/homerepairhub/repair-scheduler/internal/config"
	"github.com/homerepairhub/repair-scheduler/internal/handlers"
	infraRepo "github.com/homerepairhub/repair-scheduler/internal/infra/repository"
	"github.com/homerepairhub/repair-scheduler/internal/jobs"
	"github.com/homerepairhub/repair-scheduler/internal/locking"
	"github.com/homerepairhub/repair-scheduler/internal/middleware"
	"github.com/homerepairhub/repair-scheduler/internal/notification"
	"github.com/homerepairhub/repair-scheduler/internal/storage"
	ucAppointment "github.com/homerepairhub/repair-scheduler/internal/usecase/appointment"
	ucChecklist "github.com/homerepairhub/repair-scheduler/internal/usecase/checklist"
	ucCompletion "github.com/homerepairhub/repair-scheduler/internal/usecase/completion"
	ucScopeChange "github.com/homerepairhub/repair-scheduler/internal/usecase/scopechange"
)

// RegisterRoutes wires repositories, use cases and handlers onto the gin
// engine and returns the background sweeper ready to run.
func RegisterRoutes(
	r *gin.Engine,
	db *gorm.DB,
	cfg *config.Config,
	locker locking.Locker,
	store storage.Store,
	notify *notification.Dispatcher,
) *jobs.Sweeper {

	// ======================================================
	// 🔧 INFRA (SINGLETONS)
	// ======================================================
	repo := infraRepo.NewAppointmentGormRepository(db)

	auditLogger := audit.New(db)
	auditDispatcher := audit.NewDispatcher(auditLogger)

	templates := ucChecklist.NewTemplates(repo)
	gate := ucChecklist.NewGate(repo, repo, templates)

	// ======================================================
	// 🧠 USE CASES — AGENDAMENTO
	// ======================================================
	createUC := ucAppointment.NewCreateAppointment(repo, locker, auditDispatcher, notify, cfg.ConfirmationSLA)
	confirmUC := ucAppointment.NewConfirmAppointment(repo, auditDispatcher, notify)
	rejectUC := ucAppointment.NewRejectAppointment(repo, auditDispatcher, notify)
	reqReschUC := ucAppointment.NewRequestReschedule(repo, auditDispatcher, notify)
	respReschUC := ucAppointment.NewRespondReschedule(repo, locker, auditDispatcher, notify)
	cancelUC := ucAppointment.NewCancelAppointment(repo, auditDispatcher, notify)
	arriveUC := ucAppointment.NewMarkArrived(repo, auditDispatcher, notify)
	presenceUC := ucAppointment.NewRespondPresence(repo, auditDispatcher)
	startUC := ucAppointment.NewStartExecution(repo, gate, auditDispatcher, notify)
	opStatusUC := ucAppointment.NewUpdateOperationalStatus(repo, auditDispatcher)
	getUC := ucAppointment.NewGetAppointment(repo)
	listMineUC := ucAppointment.NewListMyAppointments(repo)

	addRuleUC := ucAppointment.NewAddAvailabilityRule(repo, auditDispatcher)
	rmRuleUC := ucAppointment.NewRemoveAvailabilityRule(repo, auditDispatcher)
	addBlockUC := ucAppointment.NewAddAvailabilityException(repo, auditDispatcher)
	rmBlockUC := ucAppointment.NewRemoveAvailabilityException(repo, auditDispatcher)
	overviewUC := ucAppointment.NewGetAvailabilityOverview(repo)
	slotsUC := ucAppointment.NewGetAvailableSlots(repo, cfg.SlotRangeMaxDays)

	// ======================================================
	// 🧠 USE CASES — ESCOPO / CONCLUSÃO / CHECKLIST
	// ======================================================
	scCreateUC := ucScopeChange.NewCreateScopeChange(repo, repo, auditDispatcher, notify, cfg.ScopeChangeExpiry)
	scRespondUC := ucScopeChange.NewRespondScopeChange(repo, repo, auditDispatcher, notify)
	scAttachUC := ucScopeChange.NewAddAttachment(repo, repo, store, auditDispatcher)
	scListUC := ucScopeChange.NewListScopeChanges(repo, repo)

	genPinUC := ucCompletion.NewGenerateCompletionPin(repo, repo, gate, auditDispatcher, cfg.PinTTL, cfg.PinMaxAttempts)
	valPinUC := ucCompletion.NewValidateCompletionPin(repo, repo, auditDispatcher, cfg.PinMaxAttempts, cfg.PinLockout)
	confirmCompUC := ucCompletion.NewConfirmCompletion(repo, repo, gate, auditDispatcher, notify, cfg.CompletionPolicy)
	contestUC := ucCompletion.NewContestCompletion(repo, repo, auditDispatcher, notify, nil)
	getTermUC := ucCompletion.NewGetCompletionTerm(repo, repo)

	getChecklistUC := ucChecklist.NewGetChecklist(repo, repo, templates)
	upsertItemUC := ucChecklist.NewUpsertItemResponse(repo, repo, templates, store, auditDispatcher)

	// ======================================================
	// 🧩 HANDLERS
	// ======================================================
	authHandler := handlers.NewAuthHandler(db, cfg)
	profileHandler := handlers.NewProfileHandler(db)
	requestHandler := handlers.NewServiceRequestHandler(db)

	appointmentHandler := handlers.NewAppointmentHandler(
		createUC,
		confirmUC,
		rejectUC,
		reqReschUC,
		respReschUC,
		cancelUC,
		arriveUC,
		presenceUC,
		startUC,
		opStatusUC,
		getUC,
		listMineUC,
	)

	availabilityHandler := handlers.NewAvailabilityHandler(
		addRuleUC,
		rmRuleUC,
		addBlockUC,
		rmBlockUC,
		overviewUC,
		slotsUC,
	)

	scopeChangeHandler := handlers.NewScopeChangeHandler(scCreateUC, scRespondUC, scAttachUC, scListUC)
	completionHandler := handlers.NewCompletionHandler(genPinUC, valPinUC, confirmCompUC, contestUC, getTermUC)
	checklistHandler := handlers.NewChecklistHandler(getChecklistUC, upsertItemUC)
	templateHandler := handlers.NewChecklistTemplateHandler(db, templates)
	pushHandler := handlers.NewPushHandler(db, cfg.VAPIDPublicKey)
	auditLogsHandler := handlers.NewAuditLogsHandler(db)

	// ======================================================
	// 🌐 API (JSON)
	// ======================================================
	api := r.Group("/api")
	{
		// ------------------------------
		// 🔐 AUTH
		// ------------------------------
		api.POST("/auth/register", authHandler.Register)
		api.POST("/auth/login", authHandler.Login)

		api.GET("/push/vapid-key", pushHandler.VAPIDKey)

		// ------------------------------
		// 🔐 API PRIVADA
		// ------------------------------
		secured := api.Group("/")
		secured.Use(middleware.AuthMiddleware(cfg))
		{
			secured.GET("/me", profileHandler.GetMe)
			secured.PATCH("/me", profileHandler.UpdateMe)

			secured.POST("/push/subscriptions", pushHandler.Subscribe)
			secured.DELETE("/push/subscriptions", pushHandler.Unsubscribe)

			// pedidos e propostas
			secured.POST("/requests", requestHandler.Create)
			secured.GET("/requests", requestHandler.ListMine)
			secured.POST("/requests/:id/proposals", requestHandler.CreateProposal)
			secured.POST("/proposals/:proposalId/accept", requestHandler.AcceptProposal)

			// agenda do prestador
			secured.GET("/availability", availabilityHandler.Overview)
			secured.POST("/availability/rules", availabilityHandler.AddRule)
			secured.DELETE("/availability/rules/:id", availabilityHandler.RemoveRule)
			secured.POST("/availability/blocks", availabilityHandler.AddBlock)
			secured.DELETE("/availability/blocks/:id", availabilityHandler.RemoveBlock)

			// slots visíveis para o cliente
			secured.GET("/providers/:providerId/slots", availabilityHandler.Slots)

			// ciclo de vida da visita
			secured.POST("/appointments", appointmentHandler.Create)
			secured.GET("/appointments", appointmentHandler.ListMine)
			secured.GET("/appointments/:id", appointmentHandler.Get)
			secured.POST("/appointments/:id/confirm", appointmentHandler.Confirm)
			secured.POST("/appointments/:id/reject", appointmentHandler.Reject)
			secured.POST("/appointments/:id/reschedule", appointmentHandler.RequestReschedule)
			secured.POST("/appointments/:id/reschedule/respond", appointmentHandler.RespondReschedule)
			secured.POST("/appointments/:id/cancel", appointmentHandler.Cancel)
			secured.POST("/appointments/:id/arrive", appointmentHandler.Arrive)
			secured.POST("/appointments/:id/presence", appointmentHandler.RespondPresence)
			secured.POST("/appointments/:id/start", appointmentHandler.Start)
			secured.PATCH("/appointments/:id/operational-status", appointmentHandler.UpdateOperationalStatus)

			// mudança de escopo
			secured.POST("/appointments/:id/scope-changes", scopeChangeHandler.Create)
			secured.GET("/appointments/:id/scope-changes", scopeChangeHandler.List)
			secured.POST("/scope-changes/:scopeChangeId/respond", scopeChangeHandler.Respond)
			secured.POST("/scope-changes/:scopeChangeId/attachments", scopeChangeHandler.AddAttachment)

			// conclusão com PIN
			secured.POST("/appointments/:id/completion/pin", completionHandler.GeneratePin)
			secured.POST("/appointments/:id/completion/validate-pin",
				middleware.RateLimiter(rate.Limit(1), 5),
				completionHandler.ValidatePin,
			)
			secured.POST("/appointments/:id/completion/confirm", completionHandler.Confirm)
			secured.POST("/appointments/:id/completion/contest", completionHandler.Contest)
			secured.GET("/appointments/:id/completion", completionHandler.GetTerm)

			// checklist da visita
			secured.GET("/appointments/:id/checklist", checklistHandler.Get)
			secured.PUT("/appointments/:id/checklist/items/:itemId", checklistHandler.UpsertItem)

			// ------------------------------
			// 🛠️ ADMIN
			// ------------------------------
			admin := secured.Group("/admin")
			admin.Use(middleware.RequireRole(auth.RoleAdmin))
			{
				admin.GET("/checklist-templates", templateHandler.List)
				admin.POST("/checklist-templates", templateHandler.Create)
				admin.DELETE("/checklist-templates/:id", templateHandler.Deactivate)

				admin.GET("/audit-logs", auditLogsHandler.List)
			}
		}
	}

	// ======================================================
	// ⏲️ SWEEPER
	// ======================================================
	expireApptsUC := ucAppointment.NewExpireAppointments(repo, auditDispatcher, notify)
	expireScopesUC := ucScopeChange.NewExpireScopeChanges(repo)

	return jobs.NewSweeper(expireApptsUC, expireScopesUC, cfg.SweepInterval)
}
