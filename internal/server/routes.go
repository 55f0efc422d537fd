package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Dango-F/medical-chat/internal/server/middleware"
	"github.com/Dango-F/medical-chat/internal/server/routes"
)

func RegisterRoutes(e *echo.Echo, app *middleware.App) {
	e.GET("/health", func(c echo.Context) error {
		model := "mock-llm"
		if app.AiClient != nil {
			model = app.AiClient.ModelName()
		}
		return c.JSON(http.StatusOK, map[string]any{
			"status":       "ok",
			"kg_connected": app.Graph.Connected(),
			"model":        model,
		})
	})

	apiRoutes := e.Group("/api/v1")

	// Question answering
	apiRoutes.POST("/query", routes.QueryHandler)
	apiRoutes.POST("/query/stream", routes.QueryStreamHandler)
	apiRoutes.POST("/query/cancel", routes.CancelQueryHandler)
	apiRoutes.GET("/query/examples", routes.GetExamplesHandler)

	// Knowledge graph browsing
	apiRoutes.GET("/kg/search", routes.KGSearchHandler)
	apiRoutes.GET("/kg/node/:name/neighbors", routes.KGNodeNeighborsHandler)
	apiRoutes.GET("/kg/stats", routes.KGStatsHandler)
	apiRoutes.GET("/kg/graph", routes.KGGraphHandler)
}
