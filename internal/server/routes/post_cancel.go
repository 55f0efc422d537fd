package routes

import (
	"net/http"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"github.com/Dango-F/medical-chat/internal/server/middleware"
	"github.com/Dango-F/medical-chat/pkg/logger"
)

// CancelQueryHandler stops the in-flight generation of a session. Always
// 200: cancelling an idle session is a no-op, not an error.
func CancelQueryHandler(c echo.Context) error {
	type cancelParams struct {
		SessionID string `json:"session_id" validate:"required"`
	}

	params := new(cancelParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"detail": "Invalid request body"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
	}

	orch := c.(*middleware.AppContext).App.Orchestrator
	cancelled := orch.Registry().Cancel(params.SessionID)
	logger.Debug("cancel requested", "session", params.SessionID, "cancelled", cancelled)

	return c.JSON(http.StatusOK, map[string]any{
		"session_id": params.SessionID,
		"cancelled":  cancelled,
	})
}
