package routes

import (
	"net/http"
	"strings"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"github.com/Dango-F/medical-chat/internal/server/middleware"
	"github.com/Dango-F/medical-chat/pkg/kg"
	"github.com/Dango-F/medical-chat/pkg/logger"
)

// KGSearchHandler looks up graph nodes by partial name.
func KGSearchHandler(c echo.Context) error {
	type searchParams struct {
		Query string `query:"q" validate:"required,min=1,max=100"`
		Types string `query:"types"`
		Limit int    `query:"limit" validate:"omitempty,min=1,max=100"`
	}

	params := new(searchParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"detail": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
	}

	var kinds []string
	if params.Types != "" {
		kinds = strings.Split(params.Types, ",")
	}

	graph := c.(*middleware.AppContext).App.Graph
	nodes, err := graph.SearchNodes(c.Request().Context(), params.Query, kinds, params.Limit)
	if err != nil {
		logger.Error("Failed to search graph nodes", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"detail": "Internal server error"})
	}
	if nodes == nil {
		nodes = []kg.NodeView{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"query":   params.Query,
		"results": nodes,
		"count":   len(nodes),
	})
}

// KGNodeNeighborsHandler returns a node and its direct neighbors.
func KGNodeNeighborsHandler(c echo.Context) error {
	name := c.Param("name")
	if name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": "Missing node name"})
	}

	graph := c.(*middleware.AppContext).App.Graph
	result, err := graph.NodeNeighbors(c.Request().Context(), name)
	if err != nil {
		logger.Error("Failed to load node neighbors", "err", err, "node", name)
		return c.JSON(http.StatusInternalServerError, map[string]string{"detail": "Internal server error"})
	}
	if result == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"detail": "Node not found"})
	}
	return c.JSON(http.StatusOK, result)
}

// KGStatsHandler reports node counts per kind and the relationship total.
func KGStatsHandler(c echo.Context) error {
	graph := c.(*middleware.AppContext).App.Graph
	stats, err := graph.Stats(c.Request().Context())
	if err != nil {
		logger.Error("Failed to load graph stats", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"detail": "Internal server error"})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"connected": graph.Connected(),
		"stats":     stats,
	})
}

// KGGraphHandler returns a bounded disease-rooted subgraph for
// visualization.
func KGGraphHandler(c echo.Context) error {
	type graphParams struct {
		Limit int `query:"limit" validate:"omitempty,min=1,max=500"`
	}

	params := new(graphParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"detail": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
	}

	graph := c.(*middleware.AppContext).App.Graph
	sample, err := graph.Sample(c.Request().Context(), params.Limit)
	if err != nil {
		logger.Error("Failed to sample graph", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"detail": "Internal server error"})
	}
	if sample == nil {
		sample = &kg.GraphSample{Nodes: []kg.NodeView{}, Edges: []kg.GraphEdge{}}
	}
	return c.JSON(http.StatusOK, sample)
}
