package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/homerepairhub/repair-scheduler/internal/auth"
	"github.com/homerepairhub/repair-scheduler/internal/httperr"
	"github.com/homerepairhub/repair-scheduler/internal/middleware"
)

// ActorFrom extracts the authenticated actor set by the auth middleware.
func ActorFrom(c *gin.Context) (auth.Actor, bool) {
	v, ok := c.Get(middleware.ContextActor)
	if !ok {
		httperr.Unauthorized(c, "unauthorized", "Autenticação necessária.")
		return auth.Actor{}, false
	}
	actor, ok := v.(auth.Actor)
	if !ok {
		httperr.Unauthorized(c, "unauthorized", "Autenticação necessária.")
		return auth.Actor{}, false
	}
	return actor, true
}

// mustUUID parses a string already validated by the uuid binding tag.
func mustUUID(s string) uuid.UUID {
	id, _ := uuid.Parse(s)
	return id
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httperr.BadRequest(c, "invalid_id", "Identificador inválido.")
		return uuid.Nil, false
	}
	return id, true
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}

// timeQuery parses an optional RFC3339 query parameter.
func timeQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		httperr.BadRequest(c, "invalid_date", "Data inválida, use RFC3339.")
		return nil, false
	}
	utc := t.UTC()
	return &utc, true
}
