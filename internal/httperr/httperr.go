package httperr

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type HTTPError struct {
	Success bool   `json:"success"`
	Code    string `json:"error_code"`
	Message string `json:"error_message"`
}

func Write(c *gin.Context, status int, code, message string) {
	c.JSON(status, HTTPError{
		Success: false,
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, code, message string) {
	Write(c, http.StatusBadRequest, code, message)
}

func NotFound(c *gin.Context, code, message string) {
	Write(c, http.StatusNotFound, code, message)
}

func Conflict(c *gin.Context, code, message string) {
	Write(c, http.StatusConflict, code, message)
}

func Forbidden(c *gin.Context, code, message string) {
	Write(c, http.StatusForbidden, code, message)
}

func Internal(c *gin.Context, code, message string) {
	Write(c, http.StatusInternalServerError, code, message)
}

func Unauthorized(c *gin.Context, code, message string) {
	Write(c, http.StatusUnauthorized, code, message)
}

// messages maps the stable machine codes to their human-readable text.
var messages = map[string]string{
	"forbidden":                  "Sem permissão para esta operação.",
	"invalid_state":              "Estado atual não permite esta operação.",
	"slot_unavailable":           "A janela escolhida não está disponível.",
	"appointment_already_exists": "Este pedido já possui agendamento.",
	"request_window_conflict":    "A janela conflita com outra visita confirmada.",
	"rule_overlap":               "Regra de disponibilidade sobrepõe outra existente.",
	"block_overlap":              "Bloqueio sobrepõe outro existente.",
	"block_conflict_appointment": "Bloqueio conflita com agendamento ativo.",
	"duplicate_checkin":          "Chegada já registrada.",
	"duplicate_start":            "Execução já iniciada.",
	"scope_change_pending":       "Já existe uma solicitação de escopo pendente.",
	"scope_change_expired":       "Solicitação de escopo expirada.",
	"attachment_limit_exceeded":  "Limite de anexos atingido.",
	"required_checklist_pending": "Checklist obrigatório pendente.",
	"checklist_not_configured":   "Categoria sem checklist configurado.",
	"evidence_required":          "Item exige evidência.",
	"invalid_pin":                "PIN incorreto.",
	"invalid_pin_format":         "Formato de PIN inválido.",
	"pin_expired":                "PIN expirado.",
	"pin_locked":                 "Validação de PIN bloqueada temporariamente.",
	"signature_required":         "Assinatura obrigatória.",
	"invalid_acceptance_method":  "Método de aceite inválido.",
	"contest_reason_required":    "Motivo da contestação é obrigatório.",
	"reason_required":            "Motivo é obrigatório.",
	"range_too_large":            "Intervalo de consulta muito grande.",
	"invalid_slot_duration":      "Duração de slot inválida.",
	"invalid_window":             "Janela de horário inválida.",
}

func messageFor(code string) string {
	if m, ok := messages[code]; ok {
		return m
	}
	return "Operação não permitida."
}

// FromBusiness maps a BusinessError to the HTTP layer; any other error is an
// infrastructure failure.
func FromBusiness(c *gin.Context, err error) {
	var be BusinessError
	if !AsBusiness(err, &be) {
		Internal(c, "internal_error", "Erro interno.")
		return
	}

	code := be.Code
	switch {
	case code == "forbidden":
		Forbidden(c, code, messageFor(code))
	case strings.HasSuffix(code, "_not_found"):
		NotFound(c, code, messageFor(code))
	case code == "slot_unavailable",
		code == "appointment_already_exists",
		code == "request_window_conflict",
		code == "rule_overlap",
		code == "block_overlap",
		code == "block_conflict_appointment",
		code == "duplicate_checkin",
		code == "duplicate_start",
		code == "scope_change_pending":
		Conflict(c, code, messageFor(code))
	case code == "pin_locked":
		Write(c, http.StatusTooManyRequests, code, messageFor(code))
	default:
		BadRequest(c, code, messageFor(code))
	}
}
