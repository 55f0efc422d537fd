package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"github.com/Dango-F/medical-chat/internal/server/middleware"
	"github.com/Dango-F/medical-chat/pkg/logger"
	"github.com/Dango-F/medical-chat/pkg/qa"
)

type queryParams struct {
	Query           string        `json:"query" validate:"required,min=1,max=2000"`
	SessionID       string        `json:"session_id"`
	UserID          string        `json:"user_id"`
	History         []qa.ChatTurn `json:"history" validate:"omitempty,max=12,dive"`
	MaxAnswers      int           `json:"max_answers" validate:"omitempty,min=1,max=10"`
	IncludeKGPaths  *bool         `json:"include_kg_paths"`
	IncludeEvidence *bool         `json:"include_evidence"`
}

func (p *queryParams) toQuery() qa.Query {
	q := qa.Query{
		Text:            p.Query,
		SessionID:       p.SessionID,
		UserID:          p.UserID,
		History:         p.History,
		MaxAnswers:      p.MaxAnswers,
		IncludePaths:    true,
		IncludeEvidence: true,
	}
	if p.IncludeKGPaths != nil {
		q.IncludePaths = *p.IncludeKGPaths
	}
	if p.IncludeEvidence != nil {
		q.IncludeEvidence = *p.IncludeEvidence
	}
	return q
}

func bindQueryParams(c echo.Context) (*queryParams, error) {
	params := new(queryParams)
	if err := c.Bind(params); err != nil {
		return nil, c.JSON(http.StatusUnprocessableEntity, map[string]string{"detail": "Invalid request body"})
	}
	if err := c.Validate(params); err != nil {
		return nil, c.JSON(http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
	}
	return params, nil
}

// QueryHandler answers one medical question synchronously.
func QueryHandler(c echo.Context) error {
	params, err := bindQueryParams(c)
	if params == nil {
		return err
	}

	orch := c.(*middleware.AppContext).App.Orchestrator
	res, err := orch.Generate(c.Request().Context(), params.toQuery())
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		logger.Error("Failed to process query", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"detail": "Internal server error"})
	}
	return c.JSON(http.StatusOK, res)
}

// QueryStreamHandler answers one question as a server-sent event stream.
// Every stream ends with exactly one complete or error event.
func QueryStreamHandler(c echo.Context) error {
	params, err := bindQueryParams(c)
	if params == nil {
		return err
	}

	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set(echo.HeaderConnection, "keep-alive")
	// Disables proxy buffering so fragments reach the client promptly.
	h.Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	orch := c.(*middleware.AppContext).App.Orchestrator
	for event := range orch.GenerateStream(c.Request().Context(), params.toQuery()) {
		payload, err := json.Marshal(event)
		if err != nil {
			logger.Error("Failed to encode stream event", "err", err)
			continue
		}
		if _, err := c.Response().Write([]byte("data: ")); err != nil {
			return nil
		}
		if _, err := c.Response().Write(payload); err != nil {
			return nil
		}
		if _, err := c.Response().Write([]byte("\n\n")); err != nil {
			return nil
		}
		c.Response().Flush()
	}
	return nil
}
